package constants

// Default timeout budgets used by the gateway client. Attachment processing
// on the gateway side is slower than text, so attachments get the long
// budget.
const (
	DefaultTextTimeoutSec       = 15
	DefaultAttachmentTimeoutSec = 60
)
