package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"bluecast/internal/models"
	"bluecast/internal/privacy"
	gwtypes "bluecast/pkg/gateway/types"

	"github.com/sirupsen/logrus"
)

// Directory is the read-only boundary to the member directory collaborator:
// reverse lookup of the member owning a phone number.
type Directory interface {
	MemberIDByPhone(ctx context.Context, phone string) (string, error)
}

// DeliveryReconciler applies asynchronous gateway callbacks to the store.
// Events match messages by durable gateway identifier only; an event with no
// match is discarded and never creates a synthetic outbound message.
type DeliveryReconciler struct {
	store     MessageStore
	directory Directory
	logger    *logrus.Logger
}

func NewDeliveryReconciler(store MessageStore, directory Directory, logger *logrus.Logger) *DeliveryReconciler {
	return &DeliveryReconciler{
		store:     store,
		directory: directory,
		logger:    logger,
	}
}

// Apply consumes one gateway event. Webhook deliveries are unordered and
// duplicated; every branch here is idempotent and monotonic. Unknown event
// types are logged and ignored.
func (r *DeliveryReconciler) Apply(ctx context.Context, event gwtypes.Event) error {
	switch event.Type {
	case gwtypes.EventNewMessage:
		return r.applyMessage(ctx, event.Data, true)
	case gwtypes.EventUpdatedMessage:
		return r.applyMessage(ctx, event.Data, false)
	case gwtypes.EventMessageDelivered:
		return r.applyDelivered(ctx, event.Data)
	case gwtypes.EventReadReceipt:
		return r.applyRead(ctx, event.Data)
	case gwtypes.EventTypingIndicator:
		r.logger.Debug("Typing indicator received, nothing to persist")
		return nil
	default:
		r.logger.WithField("type", event.Type).Warn("Ignoring unknown gateway event type")
		return nil
	}
}

func (r *DeliveryReconciler) applyMessage(ctx context.Context, data json.RawMessage, allowInsert bool) error {
	var payload gwtypes.MessageEventData
	if err := json.Unmarshal(data, &payload); err != nil {
		return fmt.Errorf("failed to unmarshal message event: %w", err)
	}
	if payload.GUID == "" {
		r.logger.Debug("Message event without GUID discarded")
		return nil
	}

	existing, err := r.store.GetMessageByGatewayID(ctx, payload.GUID)
	if err != nil {
		return fmt.Errorf("failed to look up message %s: %w", payload.GUID, err)
	}

	if existing != nil {
		return r.applyToExisting(ctx, &payload, existing)
	}

	if !allowInsert || payload.IsFromMe {
		// Reconciliation never fabricates an outbound row; a miss means the
		// send was recorded under a provisional identifier (or not at all)
		// and stays that way until superseded.
		r.logger.WithField("gatewayId", privacy.MaskMessageID(payload.GUID)).
			Debug("Message event matched nothing, discarding")
		return nil
	}

	return r.insertInbound(ctx, &payload)
}

// applyToExisting handles text edits and piggybacked delivery information
// for a message we already track. Body updates never touch delivery status.
func (r *DeliveryReconciler) applyToExisting(ctx context.Context, payload *gwtypes.MessageEventData, existing *models.Message) error {
	if payload.Text != "" && payload.Text != existing.Body {
		if _, err := r.store.UpdateMessageBody(ctx, payload.GUID, payload.Text); err != nil {
			return fmt.Errorf("failed to apply text edit: %w", err)
		}
	}

	if existing.Direction != models.DirectionOutbound {
		return nil
	}

	if payload.DateDelivered > 0 {
		if err := r.markDelivered(ctx, payload.GUID, gwtypes.EpochMillis(payload.DateDelivered)); err != nil {
			return err
		}
	}
	if payload.DateRead > 0 {
		if err := r.markRead(ctx, payload.GUID, gwtypes.EpochMillis(payload.DateRead)); err != nil {
			return err
		}
	}

	return nil
}

// insertInbound records a message a member sent to the organization. The
// gateway redelivers events, so a lost race on the unique gateway ID is a
// duplicate, not an error.
func (r *DeliveryReconciler) insertInbound(ctx context.Context, payload *gwtypes.MessageEventData) error {
	phone := payload.Handle.Address
	if phone == "" {
		r.logger.WithField("gatewayId", privacy.MaskMessageID(payload.GUID)).
			Debug("Inbound message without sender address discarded")
		return nil
	}

	memberID, err := r.directory.MemberIDByPhone(ctx, phone)
	if err != nil {
		return fmt.Errorf("failed to look up member for %s: %w", privacy.MaskPhoneNumber(phone), err)
	}
	if memberID == "" {
		r.logger.WithField("phone", privacy.MaskPhoneNumber(phone)).
			Info("Inbound message from unknown number discarded")
		return nil
	}

	conv, err := r.store.FindOrCreateConversation(ctx, memberID)
	if err != nil {
		return fmt.Errorf("failed to resolve conversation: %w", err)
	}

	createdAt := gwtypes.EpochMillis(payload.DateCreated)
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	msg := &models.Message{
		ConversationID: conv.ID,
		Direction:      models.DirectionInbound,
		Body:           payload.Text,
		DeliveryStatus: models.DeliveryStatusDelivered,
		GatewayID:      payload.GUID,
		CreatedAt:      createdAt,
	}
	if payload.AttachmentURL != "" {
		url := payload.AttachmentURL
		msg.MediaURL = &url
	}

	if err := r.store.InsertMessage(ctx, msg); err != nil {
		if dup, lookupErr := r.store.GetMessageByGatewayID(ctx, payload.GUID); lookupErr == nil && dup != nil {
			return nil
		}
		return fmt.Errorf("failed to insert inbound message: %w", err)
	}

	if err := r.store.UpdateConversationSnapshot(ctx, conv.ID, payload.Text, createdAt); err != nil {
		r.logger.WithError(err).WithField("conversation", conv.ID).
			Warn("Failed to refresh conversation snapshot")
	}

	r.logger.WithFields(logrus.Fields{
		"conversation": conv.ID,
		"gatewayId":    privacy.MaskMessageID(payload.GUID),
	}).Info("Recorded inbound message")

	return nil
}

func (r *DeliveryReconciler) applyDelivered(ctx context.Context, data json.RawMessage) error {
	var payload gwtypes.ReceiptEventData
	if err := json.Unmarshal(data, &payload); err != nil {
		return fmt.Errorf("failed to unmarshal delivered event: %w", err)
	}
	if payload.GUID == "" {
		return nil
	}

	at := gwtypes.EpochMillis(payload.Timestamp)
	if at.IsZero() {
		at = time.Now().UTC()
	}
	return r.markDelivered(ctx, payload.GUID, at)
}

func (r *DeliveryReconciler) applyRead(ctx context.Context, data json.RawMessage) error {
	var payload gwtypes.ReceiptEventData
	if err := json.Unmarshal(data, &payload); err != nil {
		return fmt.Errorf("failed to unmarshal read receipt: %w", err)
	}
	if payload.GUID == "" {
		return nil
	}

	at := gwtypes.EpochMillis(payload.Timestamp)
	if at.IsZero() {
		at = time.Now().UTC()
	}
	return r.markRead(ctx, payload.GUID, at)
}

func (r *DeliveryReconciler) markDelivered(ctx context.Context, gatewayID string, at time.Time) error {
	matched, err := r.store.MarkMessageDelivered(ctx, gatewayID, at)
	if err != nil {
		return fmt.Errorf("failed to mark delivered: %w", err)
	}
	if !matched {
		// Either no such message or it already advanced past delivered.
		r.logger.WithField("gatewayId", privacy.MaskMessageID(gatewayID)).
			Debug("Delivered event matched nothing, discarding")
	}
	return nil
}

func (r *DeliveryReconciler) markRead(ctx context.Context, gatewayID string, at time.Time) error {
	matched, err := r.store.MarkMessageRead(ctx, gatewayID, at)
	if err != nil {
		return fmt.Errorf("failed to mark read: %w", err)
	}
	if !matched {
		r.logger.WithField("gatewayId", privacy.MaskMessageID(gatewayID)).
			Debug("Read receipt matched nothing, discarding")
	}
	return nil
}
