package service

import (
	"context"
	"strings"
	"time"

	"bluecast/internal/models"
	"bluecast/internal/privacy"
	gwtypes "bluecast/pkg/gateway/types"

	"github.com/sirupsen/logrus"
)

// MessageStore is the persistence boundary the engine writes through. The
// SQLite database implements it; tests substitute mocks.
type MessageStore interface {
	FindOrCreateConversation(ctx context.Context, memberID string) (*models.Conversation, error)
	UpdateConversationSnapshot(ctx context.Context, conversationID int64, body string, at time.Time) error
	InsertMessage(ctx context.Context, msg *models.Message) error
	GetMessageByGatewayID(ctx context.Context, gatewayID string) (*models.Message, error)
	UpdateMessageBody(ctx context.Context, gatewayID, body string) (bool, error)
	MarkMessageDelivered(ctx context.Context, gatewayID string, at time.Time) (bool, error)
	MarkMessageRead(ctx context.Context, gatewayID string, at time.Time) (bool, error)
	CleanupOldMessages(ctx context.Context, retentionDays int) (int64, error)
}

// Dispatcher orchestrates one logical send: validation, chat resolution,
// gateway submission, attachment fallback, and best-effort persistence.
type Dispatcher struct {
	gateway  gwtypes.Client
	store    MessageStore
	fallback *FallbackPolicy
	logger   *logrus.Logger
}

func NewDispatcher(gateway gwtypes.Client, store MessageStore, fallback *FallbackPolicy, logger *logrus.Logger) *Dispatcher {
	return &Dispatcher{
		gateway:  gateway,
		store:    store,
		fallback: fallback,
		logger:   logger,
	}
}

// Send dispatches one request. A terminal gateway failure returns an error
// and leaves no local trace; success and soft timeout both persist exactly
// one message row. A store failure after the gateway accepted the send is
// logged, never surfaced: the message went out, the caller hears success.
func (d *Dispatcher) Send(ctx context.Context, req models.SendRequest) (*models.DispatchResult, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	chatGUID := resolveChatGUID(req.Routing)

	// The provisional identifier doubles as the gateway's tempGuid, so a
	// gateway that echoes it back gives us a correlation key for free.
	tempGUID := models.NewProvisionalID()

	outcome := d.submit(ctx, req, chatGUID, tempGUID)

	if outcome.Kind == gwtypes.OutcomeHardFailure &&
		req.Kind == models.RequestAttachment &&
		!strings.HasPrefix(chatGUID, gwtypes.ServiceSMS+gwtypes.ServiceSeparator) {
		outcome = d.retryOnFallback(ctx, req, chatGUID, tempGUID, outcome)
	}

	if outcome.Kind == gwtypes.OutcomeHardFailure {
		d.logger.WithFields(logrus.Fields{
			"kind":   req.Kind,
			"chat":   privacy.MaskChatGUID(chatGUID),
			"reason": outcome.Reason,
		}).Error("Gateway rejected send")
		return nil, &models.GatewayError{StatusCode: outcome.StatusCode, Reason: outcome.Reason}
	}

	result := &models.DispatchResult{
		GatewayID: tempGUID,
		Status:    models.DeliveryStatusQueued,
	}
	if outcome.Kind == gwtypes.OutcomeAcknowledged {
		result.GatewayID = outcome.GUID
		result.Status = models.DeliveryStatusSent
	}
	if outcome.Kind == gwtypes.OutcomeSoftTimeout {
		result.Note = "still processing"
	}

	d.persist(ctx, req, result)

	return result, nil
}

func (d *Dispatcher) submit(ctx context.Context, req models.SendRequest, chatGUID, tempGUID string) gwtypes.Outcome {
	switch req.Kind {
	case models.RequestText:
		return d.gateway.SendText(ctx, chatGUID, tempGUID, req.Body)
	case models.RequestReply:
		return d.gateway.SendReply(ctx, chatGUID, tempGUID, req.Body, req.TargetID, req.PartIndex)
	case models.RequestReaction:
		return d.gateway.SendReaction(ctx, chatGUID, req.TargetID, req.Reaction, req.PartIndex)
	case models.RequestAttachment:
		return d.gateway.SendAttachment(ctx, chatGUID, tempGUID,
			req.Attachment.Data, req.Attachment.Filename, req.Attachment.MimeType, req.Body)
	default:
		// Validate rejects unknown kinds before we get here.
		return gwtypes.Outcome{Kind: gwtypes.OutcomeHardFailure, Reason: "unknown request kind"}
	}
}

// retryOnFallback retargets a rejected attachment at the SMS transport and
// resubmits the identical payload once. A second rejection is terminal.
func (d *Dispatcher) retryOnFallback(ctx context.Context, req models.SendRequest, chatGUID, tempGUID string, primary gwtypes.Outcome) gwtypes.Outcome {
	d.logger.WithFields(logrus.Fields{
		"chat":   privacy.MaskChatGUID(chatGUID),
		"reason": primary.Reason,
	}).Warn("Attachment rejected on primary transport, retargeting at SMS")

	smsChatGUID, err := d.fallback.Retarget(ctx, routingAddress(req.Routing))
	if err != nil {
		d.logger.WithError(err).Error("SMS retarget failed")
		return primary
	}

	return d.gateway.SendAttachment(ctx, smsChatGUID, tempGUID,
		req.Attachment.Data, req.Attachment.Filename, req.Attachment.MimeType, req.Body)
}

// persist writes the single message row and refreshes the conversation
// snapshot. Requests without a member reference skip persistence entirely.
func (d *Dispatcher) persist(ctx context.Context, req models.SendRequest, result *models.DispatchResult) {
	if req.MemberID == "" {
		return
	}

	conv, err := d.store.FindOrCreateConversation(ctx, req.MemberID)
	if err != nil {
		d.logger.WithError(err).WithField("member", privacy.MaskMemberID(req.MemberID)).
			Warn("Failed to resolve conversation, message sent but not recorded")
		return
	}

	now := time.Now().UTC()
	msg := &models.Message{
		ConversationID: conv.ID,
		Direction:      models.DirectionOutbound,
		Body:           req.Body,
		DeliveryStatus: result.Status,
		GatewayID:      result.GatewayID,
		PartIndex:      req.PartIndex,
		CreatedAt:      now,
	}

	switch req.Kind {
	case models.RequestReaction:
		target := req.TargetID
		reaction := req.Reaction
		msg.ReactionToID = &target
		msg.ReactionKind = &reaction
	case models.RequestReply:
		target := req.TargetID
		msg.ReplyToID = &target
	}

	if err := d.store.InsertMessage(ctx, msg); err != nil {
		d.logger.WithError(err).WithField("gatewayId", privacy.MaskMessageID(result.GatewayID)).
			Warn("Failed to record sent message")
		return
	}

	if err := d.store.UpdateConversationSnapshot(ctx, conv.ID, snapshotBody(req), now); err != nil {
		d.logger.WithError(err).WithField("conversation", conv.ID).
			Warn("Failed to refresh conversation snapshot")
	}
}

func snapshotBody(req models.SendRequest) string {
	switch req.Kind {
	case models.RequestAttachment:
		if req.Body != "" {
			return req.Body
		}
		return req.Attachment.Filename
	case models.RequestReaction:
		return req.Reaction
	default:
		return req.Body
	}
}

// resolveChatGUID reuses a routing value that already carries a service tag
// and otherwise targets the primary transport.
func resolveChatGUID(routing string) string {
	if gwtypes.IsChatGUID(routing) {
		return routing
	}
	return gwtypes.ChatGUID(gwtypes.ServiceIMessage, routing)
}

// routingAddress strips the service tag from a routing value, if present.
func routingAddress(routing string) string {
	if idx := strings.Index(routing, gwtypes.ServiceSeparator); idx >= 0 {
		return routing[idx+len(gwtypes.ServiceSeparator):]
	}
	return routing
}
