package service

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"bluecast/internal/models"
	gwtypes "bluecast/pkg/gateway/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func makeEvent(t *testing.T, eventType string, payload interface{}) gwtypes.Event {
	t.Helper()
	data, err := json.Marshal(payload)
	require.NoError(t, err)
	return gwtypes.Event{Type: eventType, Data: data}
}

func TestReconcilerDeliveredReceipt(t *testing.T) {
	store := &mockStore{}
	directory := &mockDirectory{}
	r := NewDeliveryReconciler(store, directory, quietLogger())

	at := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	store.On("MarkMessageDelivered", mock.Anything, "ABC-1", at).Return(true, nil)

	event := makeEvent(t, gwtypes.EventMessageDelivered, gwtypes.ReceiptEventData{
		GUID:      "ABC-1",
		Timestamp: at.UnixMilli(),
	})

	require.NoError(t, r.Apply(context.Background(), event))
	store.AssertExpectations(t)
}

func TestReconcilerReadReceipt(t *testing.T) {
	store := &mockStore{}
	directory := &mockDirectory{}
	r := NewDeliveryReconciler(store, directory, quietLogger())

	store.On("MarkMessageRead", mock.Anything, "ABC-1", mock.Anything).Return(true, nil)

	event := makeEvent(t, gwtypes.EventReadReceipt, gwtypes.ReceiptEventData{
		GUID:      "ABC-1",
		Timestamp: time.Now().UnixMilli(),
	})

	require.NoError(t, r.Apply(context.Background(), event))
	store.AssertExpectations(t)
}

func TestReconcilerUnmatchedReceiptDiscarded(t *testing.T) {
	store := &mockStore{}
	directory := &mockDirectory{}
	r := NewDeliveryReconciler(store, directory, quietLogger())

	// An out-of-order delivered event after read matches nothing; that is
	// a silent no-op, not an error.
	store.On("MarkMessageDelivered", mock.Anything, "GONE-1", mock.Anything).Return(false, nil)

	event := makeEvent(t, gwtypes.EventMessageDelivered, gwtypes.ReceiptEventData{GUID: "GONE-1"})

	require.NoError(t, r.Apply(context.Background(), event))
}

func TestReconcilerPiggybackedDeliveryInfo(t *testing.T) {
	store := &mockStore{}
	directory := &mockDirectory{}
	r := NewDeliveryReconciler(store, directory, quietLogger())

	existing := &models.Message{
		ID:             1,
		Direction:      models.DirectionOutbound,
		Body:           "hello",
		GatewayID:      "ABC-1",
		DeliveryStatus: models.DeliveryStatusSent,
	}
	store.On("GetMessageByGatewayID", mock.Anything, "ABC-1").Return(existing, nil)
	store.On("MarkMessageDelivered", mock.Anything, "ABC-1", mock.Anything).Return(true, nil)
	store.On("MarkMessageRead", mock.Anything, "ABC-1", mock.Anything).Return(true, nil)

	payload := gwtypes.MessageEventData{
		GUID:          "ABC-1",
		Text:          "hello",
		IsFromMe:      true,
		DateDelivered: time.Now().UnixMilli(),
		DateRead:      time.Now().UnixMilli(),
	}

	require.NoError(t, r.Apply(context.Background(), makeEvent(t, gwtypes.EventUpdatedMessage, payload)))
	store.AssertExpectations(t)
}

func TestReconcilerTextEditKeepsStatus(t *testing.T) {
	store := &mockStore{}
	directory := &mockDirectory{}
	r := NewDeliveryReconciler(store, directory, quietLogger())

	existing := &models.Message{
		ID:             1,
		Direction:      models.DirectionOutbound,
		Body:           "hello",
		GatewayID:      "ABC-1",
		DeliveryStatus: models.DeliveryStatusRead,
	}
	store.On("GetMessageByGatewayID", mock.Anything, "ABC-1").Return(existing, nil)
	store.On("UpdateMessageBody", mock.Anything, "ABC-1", "hello, edited").Return(true, nil)

	payload := gwtypes.MessageEventData{GUID: "ABC-1", Text: "hello, edited", IsFromMe: true}

	require.NoError(t, r.Apply(context.Background(), makeEvent(t, gwtypes.EventUpdatedMessage, payload)))

	store.AssertExpectations(t)
	store.AssertNotCalled(t, "MarkMessageDelivered", mock.Anything, mock.Anything, mock.Anything)
	store.AssertNotCalled(t, "MarkMessageRead", mock.Anything, mock.Anything, mock.Anything)
}

func TestReconcilerInsertsInboundMessage(t *testing.T) {
	store := &mockStore{}
	directory := &mockDirectory{}
	r := NewDeliveryReconciler(store, directory, quietLogger())

	store.On("GetMessageByGatewayID", mock.Anything, "IN-1").Return(nil, nil)
	directory.On("MemberIDByPhone", mock.Anything, "+15551234567").Return("member-1", nil)
	store.On("FindOrCreateConversation", mock.Anything, "member-1").
		Return(&models.Conversation{ID: 4, MemberID: "member-1"}, nil)
	store.On("InsertMessage", mock.Anything, mock.MatchedBy(func(msg *models.Message) bool {
		return msg.ConversationID == 4 &&
			msg.Direction == models.DirectionInbound &&
			msg.GatewayID == "IN-1" &&
			msg.DeliveryStatus == models.DeliveryStatusDelivered &&
			msg.Body == "hi there"
	})).Return(nil)
	store.On("UpdateConversationSnapshot", mock.Anything, int64(4), "hi there", mock.Anything).Return(nil)

	payload := gwtypes.MessageEventData{
		GUID:        "IN-1",
		Text:        "hi there",
		DateCreated: time.Now().UnixMilli(),
	}
	payload.Handle.Address = "+15551234567"

	require.NoError(t, r.Apply(context.Background(), makeEvent(t, gwtypes.EventNewMessage, payload)))
	store.AssertExpectations(t)
}

func TestReconcilerInboundFromUnknownNumberDiscarded(t *testing.T) {
	store := &mockStore{}
	directory := &mockDirectory{}
	r := NewDeliveryReconciler(store, directory, quietLogger())

	store.On("GetMessageByGatewayID", mock.Anything, "IN-2").Return(nil, nil)
	directory.On("MemberIDByPhone", mock.Anything, "+19990000000").Return("", nil)

	payload := gwtypes.MessageEventData{GUID: "IN-2", Text: "spam"}
	payload.Handle.Address = "+19990000000"

	require.NoError(t, r.Apply(context.Background(), makeEvent(t, gwtypes.EventNewMessage, payload)))
	store.AssertNotCalled(t, "InsertMessage", mock.Anything, mock.Anything)
}

func TestReconcilerNeverFabricatesOutboundRow(t *testing.T) {
	store := &mockStore{}
	directory := &mockDirectory{}
	r := NewDeliveryReconciler(store, directory, quietLogger())

	store.On("GetMessageByGatewayID", mock.Anything, "MISS-1").Return(nil, nil)

	payload := gwtypes.MessageEventData{GUID: "MISS-1", Text: "sent elsewhere", IsFromMe: true}
	payload.Handle.Address = "+15551234567"

	require.NoError(t, r.Apply(context.Background(), makeEvent(t, gwtypes.EventNewMessage, payload)))
	store.AssertNotCalled(t, "InsertMessage", mock.Anything, mock.Anything)
	directory.AssertNotCalled(t, "MemberIDByPhone", mock.Anything, mock.Anything)
}

func TestReconcilerUpdatedMessageMissDiscarded(t *testing.T) {
	store := &mockStore{}
	directory := &mockDirectory{}
	r := NewDeliveryReconciler(store, directory, quietLogger())

	store.On("GetMessageByGatewayID", mock.Anything, "MISS-2").Return(nil, nil)

	payload := gwtypes.MessageEventData{GUID: "MISS-2", Text: "edited"}
	payload.Handle.Address = "+15551234567"

	require.NoError(t, r.Apply(context.Background(), makeEvent(t, gwtypes.EventUpdatedMessage, payload)))
	store.AssertNotCalled(t, "InsertMessage", mock.Anything, mock.Anything)
}

func TestReconcilerDuplicateInboundTolerated(t *testing.T) {
	store := &mockStore{}
	directory := &mockDirectory{}
	r := NewDeliveryReconciler(store, directory, quietLogger())

	store.On("GetMessageByGatewayID", mock.Anything, "IN-3").Return(nil, nil).Once()
	directory.On("MemberIDByPhone", mock.Anything, "+15551234567").Return("member-1", nil)
	store.On("FindOrCreateConversation", mock.Anything, "member-1").
		Return(&models.Conversation{ID: 4, MemberID: "member-1"}, nil)
	store.On("InsertMessage", mock.Anything, mock.Anything).Return(assert.AnError)
	store.On("GetMessageByGatewayID", mock.Anything, "IN-3").
		Return(&models.Message{ID: 9, GatewayID: "IN-3"}, nil).Once()

	payload := gwtypes.MessageEventData{GUID: "IN-3", Text: "hi"}
	payload.Handle.Address = "+15551234567"

	require.NoError(t, r.Apply(context.Background(), makeEvent(t, gwtypes.EventNewMessage, payload)))
}

func TestReconcilerEventWithoutGUIDDiscarded(t *testing.T) {
	store := &mockStore{}
	directory := &mockDirectory{}
	r := NewDeliveryReconciler(store, directory, quietLogger())

	require.NoError(t, r.Apply(context.Background(), makeEvent(t, gwtypes.EventNewMessage, gwtypes.MessageEventData{})))
	require.NoError(t, r.Apply(context.Background(), makeEvent(t, gwtypes.EventMessageDelivered, gwtypes.ReceiptEventData{})))
	store.AssertNotCalled(t, "GetMessageByGatewayID", mock.Anything, mock.Anything)
}

func TestReconcilerIgnoresTypingAndUnknownEvents(t *testing.T) {
	store := &mockStore{}
	directory := &mockDirectory{}
	r := NewDeliveryReconciler(store, directory, quietLogger())

	require.NoError(t, r.Apply(context.Background(), gwtypes.Event{Type: gwtypes.EventTypingIndicator}))
	require.NoError(t, r.Apply(context.Background(), gwtypes.Event{Type: "group-renamed"}))
	store.AssertNotCalled(t, "GetMessageByGatewayID", mock.Anything, mock.Anything)
}
