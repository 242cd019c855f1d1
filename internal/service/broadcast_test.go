package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"bluecast/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func testBroadcastConfig() models.BroadcastConfig {
	return models.BroadcastConfig{BatchSize: 5, MaxPerMinute: 10, BatchPauseSec: 30}
}

func makeRecipients(n int) []Recipient {
	recipients := make([]Recipient, n)
	for i := range recipients {
		recipients[i] = Recipient{
			Phone:    fmt.Sprintf("+155512340%02d", i),
			MemberID: fmt.Sprintf("member-%d", i),
		}
	}
	return recipients
}

func TestBroadcastRatePlan(t *testing.T) {
	sender := &mockSender{}
	sender.On("Send", mock.Anything, mock.Anything).
		Return(&models.DispatchResult{GatewayID: "ABC", Status: models.DeliveryStatusSent}, nil)

	b := NewBroadcaster(sender, testBroadcastConfig(), quietLogger())

	var delays []time.Duration
	b.sleep = func(ctx context.Context, d time.Duration) error {
		delays = append(delays, d)
		return nil
	}

	report := b.SendBroadcast(context.Background(), "announcement", makeRecipients(12))

	assert.Equal(t, 12, report.Total)
	assert.Equal(t, 12, report.Sent)
	assert.Equal(t, 0, report.Failed)

	// Eleven waits: the intra-batch floor after most sends, the long pause
	// after each full batch, nothing after the final recipient.
	want := []time.Duration{
		6 * time.Second, 6 * time.Second, 6 * time.Second, 6 * time.Second,
		30 * time.Second,
		6 * time.Second, 6 * time.Second, 6 * time.Second, 6 * time.Second,
		30 * time.Second,
		6 * time.Second,
	}
	assert.Equal(t, want, delays)
	sender.AssertNumberOfCalls(t, "Send", 12)
}

func TestBroadcastNoDelayForSingleRecipient(t *testing.T) {
	sender := &mockSender{}
	sender.On("Send", mock.Anything, mock.Anything).
		Return(&models.DispatchResult{GatewayID: "ABC", Status: models.DeliveryStatusSent}, nil)

	b := NewBroadcaster(sender, testBroadcastConfig(), quietLogger())

	slept := false
	b.sleep = func(ctx context.Context, d time.Duration) error {
		slept = true
		return nil
	}

	report := b.SendBroadcast(context.Background(), "announcement", makeRecipients(1))

	assert.Equal(t, 1, report.Sent)
	assert.False(t, slept)
}

func TestBroadcastFailureContinues(t *testing.T) {
	recipients := makeRecipients(3)

	sender := &mockSender{}
	sender.On("Send", mock.Anything, mock.MatchedBy(func(req models.SendRequest) bool {
		return req.Routing == recipients[1].Phone
	})).Return(nil, &models.GatewayError{StatusCode: 500, Reason: "gateway down"})
	sender.On("Send", mock.Anything, mock.Anything).
		Return(&models.DispatchResult{GatewayID: "ABC", Status: models.DeliveryStatusSent}, nil)

	b := NewBroadcaster(sender, testBroadcastConfig(), quietLogger())
	b.sleep = func(ctx context.Context, d time.Duration) error { return nil }

	report := b.SendBroadcast(context.Background(), "announcement", recipients)

	assert.Equal(t, 3, report.Total)
	assert.Equal(t, 2, report.Sent)
	assert.Equal(t, 1, report.Failed)

	require.Len(t, report.Outcomes, 3)
	assert.True(t, report.Outcomes[0].OK)
	assert.False(t, report.Outcomes[1].OK)
	assert.Contains(t, report.Outcomes[1].Error, "gateway down")
	assert.True(t, report.Outcomes[2].OK)
}

func TestBroadcastCancellationStopsEarly(t *testing.T) {
	sender := &mockSender{}
	sender.On("Send", mock.Anything, mock.Anything).
		Return(&models.DispatchResult{GatewayID: "ABC", Status: models.DeliveryStatusSent}, nil)

	b := NewBroadcaster(sender, testBroadcastConfig(), quietLogger())

	calls := 0
	b.sleep = func(ctx context.Context, d time.Duration) error {
		calls++
		if calls == 2 {
			return context.Canceled
		}
		return nil
	}

	report := b.SendBroadcast(context.Background(), "announcement", makeRecipients(10))

	assert.Equal(t, 2, report.Sent)
	assert.Len(t, report.Outcomes, 2)
	sender.AssertNumberOfCalls(t, "Send", 2)
}

func TestBroadcastProgressCallback(t *testing.T) {
	sender := &mockSender{}
	sender.On("Send", mock.Anything, mock.Anything).
		Return(&models.DispatchResult{GatewayID: "ABC", Status: models.DeliveryStatusSent}, nil)

	b := NewBroadcaster(sender, testBroadcastConfig(), quietLogger())
	b.sleep = func(ctx context.Context, d time.Duration) error { return nil }

	var progress []int
	b.SetProgressFunc(func(sent, total int) {
		assert.Equal(t, 3, total)
		progress = append(progress, sent)
	})

	b.SendBroadcast(context.Background(), "announcement", makeRecipients(3))

	assert.Equal(t, []int{1, 2, 3}, progress)
}
