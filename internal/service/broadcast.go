package service

import (
	"context"
	"time"

	"bluecast/internal/models"
	"bluecast/internal/privacy"

	"github.com/sirupsen/logrus"
)

// Sender is the single-send contract the broadcaster drives. The Dispatcher
// satisfies it; the broadcaster itself carries no gateway knowledge.
type Sender interface {
	Send(ctx context.Context, req models.SendRequest) (*models.DispatchResult, error)
}

// Recipient is one broadcast target.
type Recipient struct {
	Phone    string `json:"phone"`
	MemberID string `json:"memberId"`
}

// RecipientOutcome records how one recipient fared.
type RecipientOutcome struct {
	Phone     string `json:"phone"`
	MemberID  string `json:"memberId,omitempty"`
	OK        bool   `json:"ok"`
	GatewayID string `json:"gatewayId,omitempty"`
	Error     string `json:"error,omitempty"`
}

// BroadcastReport accumulates per-recipient outcomes and aggregate counts.
type BroadcastReport struct {
	Total    int                `json:"total"`
	Sent     int                `json:"sent"`
	Failed   int                `json:"failed"`
	Outcomes []RecipientOutcome `json:"outcomes"`
}

// Broadcaster sequences per-recipient sends under a fixed rate plan:
// recipients are partitioned into fixed-size batches, consecutive sends
// inside a batch keep a minimum interval apart, and a longer pause separates
// batches. Sends never run concurrently; the rate plan is the contract.
type Broadcaster struct {
	sender     Sender
	batchSize  int
	interval   time.Duration
	batchPause time.Duration
	logger     *logrus.Logger
	onProgress func(sent, total int)

	// sleep is swapped in tests to observe the plan without real waiting.
	sleep func(ctx context.Context, d time.Duration) error
}

func NewBroadcaster(sender Sender, cfg models.BroadcastConfig, logger *logrus.Logger) *Broadcaster {
	return &Broadcaster{
		sender:     sender,
		batchSize:  cfg.BatchSize,
		interval:   time.Minute / time.Duration(cfg.MaxPerMinute),
		batchPause: time.Duration(cfg.BatchPauseSec) * time.Second,
		logger:     logger,
		sleep:      sleepWithContext,
	}
}

// SetProgressFunc installs an observer called after every recipient.
func (b *Broadcaster) SetProgressFunc(fn func(sent, total int)) {
	b.onProgress = fn
}

// SendBroadcast dispatches message to every recipient in order. One
// recipient's failure is recorded and the run continues; only context
// cancellation stops it early. No delay follows the final recipient.
func (b *Broadcaster) SendBroadcast(ctx context.Context, message string, recipients []Recipient) *BroadcastReport {
	report := &BroadcastReport{
		Total:    len(recipients),
		Outcomes: make([]RecipientOutcome, 0, len(recipients)),
	}

	for i, recipient := range recipients {
		outcome := RecipientOutcome{Phone: recipient.Phone, MemberID: recipient.MemberID}

		result, err := b.sender.Send(ctx, models.NewTextRequest(recipient.Phone, recipient.MemberID, message))
		if err != nil {
			outcome.Error = err.Error()
			report.Failed++
			b.logger.WithError(err).WithField("recipient", privacy.MaskPhoneNumber(recipient.Phone)).
				Warn("Broadcast send failed, continuing with next recipient")
		} else {
			outcome.OK = true
			outcome.GatewayID = result.GatewayID
			report.Sent++
		}
		report.Outcomes = append(report.Outcomes, outcome)

		if b.onProgress != nil {
			b.onProgress(report.Sent, report.Total)
		}

		if i == len(recipients)-1 {
			break
		}

		delay := b.interval
		if (i+1)%b.batchSize == 0 {
			delay = b.batchPause
		}
		if err := b.sleep(ctx, delay); err != nil {
			b.logger.WithField("remaining", len(recipients)-i-1).
				Warn("Broadcast cancelled before completion")
			break
		}
	}

	return report
}

func sleepWithContext(ctx context.Context, d time.Duration) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}
