package types

import "context"

// Client submits logical sends to the remote gateway. Implementations own
// timeout and abort policy per call and never touch persistent state; they
// report outcomes for the caller to interpret.
type Client interface {
	SendText(ctx context.Context, chatGUID, tempGUID, text string) Outcome
	SendReply(ctx context.Context, chatGUID, tempGUID, text, targetGUID string, partIndex int) Outcome
	SendAttachment(ctx context.Context, chatGUID, tempGUID string, data []byte, filename, mimeType, caption string) Outcome
	SendReaction(ctx context.Context, chatGUID, targetGUID, reaction string, partIndex int) Outcome

	// CreateChat provisions a chat on the given service and returns the
	// gateway's chat GUID, or "" when the gateway accepted the request but
	// did not return one.
	CreateChat(ctx context.Context, address, service string) (string, error)
}

// EventHandler consumes gateway reconciliation events.
type EventHandler interface {
	Apply(ctx context.Context, event Event) error
}
