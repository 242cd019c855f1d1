package constants

// Default broadcast rate limits. The intra-batch floor is derived from the
// per-minute target; the pause separates consecutive batches.
const (
	DefaultBroadcastBatchSize    = 5
	DefaultBroadcastMaxPerMinute = 10
	DefaultBroadcastPauseSec     = 30
)

// Default fallback behavior for rejected attachment sends.
const (
	DefaultFallbackSettleDelaySec = 2
)

// Default retry and retention values
const (
	DefaultRetryBackoffMs        = 1000
	DefaultMaxBackoffMs          = 60000
	DefaultMaxAttempts           = 5
	DefaultRetentionDays         = 90
	DefaultDatabaseRetryAttempts = 3
	DefaultServerPort            = 8082
)

// Default timeout values
const (
	DefaultGracefulShutdownSec    = 30
	DefaultServerReadTimeoutSec   = 15
	DefaultServerWriteTimeoutSec  = 15
	DefaultServerIdleTimeoutSec   = 60
	CleanupSchedulerIntervalHours = 24
)

// Privacy settings
const (
	DefaultPhoneMaskLength = 4
	DefaultMessageIDLength = 8
)

// Database field encryption parameters
const (
	EncryptionSalt       = "bluecast-db-salt-v1"
	EncryptionLookupSalt = "bluecast-lookup-salt-v1"
)

// Channel and buffer size constants
const (
	ServerErrorChannelSize = 1
)
