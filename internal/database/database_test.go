package database

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"bluecast/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestDatabase(t *testing.T) *Database {
	t.Helper()
	t.Setenv("BLUECAST_ENABLE_ENCRYPTION", "false")

	db, err := New(filepath.Join(t.TempDir(), "bluecast.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestNewRejectsInvalidPath(t *testing.T) {
	_, err := New("")
	assert.Error(t, err)

	_, err = New("../escape/bluecast.db")
	assert.Error(t, err)
}

func TestFindOrCreateConversation(t *testing.T) {
	db := setupTestDatabase(t)
	ctx := context.Background()

	conv, err := db.FindOrCreateConversation(ctx, "member-1")
	require.NoError(t, err)
	assert.Equal(t, "member-1", conv.MemberID)
	assert.Equal(t, "active", conv.Status)

	again, err := db.FindOrCreateConversation(ctx, "member-1")
	require.NoError(t, err)
	assert.Equal(t, conv.ID, again.ID)

	other, err := db.FindOrCreateConversation(ctx, "member-2")
	require.NoError(t, err)
	assert.NotEqual(t, conv.ID, other.ID)
}

func TestFindOrCreateConversationRequiresMember(t *testing.T) {
	db := setupTestDatabase(t)

	_, err := db.FindOrCreateConversation(context.Background(), "")
	assert.Error(t, err)
}

func TestInsertAndGetMessage(t *testing.T) {
	db := setupTestDatabase(t)
	ctx := context.Background()

	conv, err := db.FindOrCreateConversation(ctx, "member-1")
	require.NoError(t, err)

	mediaURL := "http://gateway/attachment/1"
	msg := &models.Message{
		ConversationID: conv.ID,
		Direction:      models.DirectionOutbound,
		Body:           "hello",
		DeliveryStatus: models.DeliveryStatusSent,
		GatewayID:      "ABC-1",
		MediaURL:       &mediaURL,
	}
	require.NoError(t, db.InsertMessage(ctx, msg))
	assert.NotZero(t, msg.ID)

	got, err := db.GetMessageByGatewayID(ctx, "ABC-1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "hello", got.Body)
	assert.Equal(t, models.DeliveryStatusSent, got.DeliveryStatus)
	assert.Equal(t, models.DirectionOutbound, got.Direction)
	require.NotNil(t, got.MediaURL)
	assert.Equal(t, mediaURL, *got.MediaURL)

	missing, err := db.GetMessageByGatewayID(ctx, "NOPE")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestInsertMessageDuplicateGatewayID(t *testing.T) {
	db := setupTestDatabase(t)
	ctx := context.Background()

	conv, err := db.FindOrCreateConversation(ctx, "member-1")
	require.NoError(t, err)

	first := &models.Message{ConversationID: conv.ID, Direction: models.DirectionInbound, DeliveryStatus: models.DeliveryStatusDelivered, GatewayID: "DUP-1"}
	require.NoError(t, db.InsertMessage(ctx, first))

	second := &models.Message{ConversationID: conv.ID, Direction: models.DirectionInbound, DeliveryStatus: models.DeliveryStatusDelivered, GatewayID: "DUP-1"}
	assert.Error(t, db.InsertMessage(ctx, second))
}

func TestReactionAndReplyLinkage(t *testing.T) {
	db := setupTestDatabase(t)
	ctx := context.Background()

	conv, err := db.FindOrCreateConversation(ctx, "member-1")
	require.NoError(t, err)

	target := "TARGET-1"
	kind := "love"
	msg := &models.Message{
		ConversationID: conv.ID,
		Direction:      models.DirectionOutbound,
		DeliveryStatus: models.DeliveryStatusSent,
		GatewayID:      "REACT-1",
		ReactionToID:   &target,
		ReactionKind:   &kind,
	}
	require.NoError(t, db.InsertMessage(ctx, msg))

	got, err := db.GetMessageByGatewayID(ctx, "REACT-1")
	require.NoError(t, err)
	require.NotNil(t, got.ReactionToID)
	assert.Equal(t, "TARGET-1", *got.ReactionToID)
	require.NotNil(t, got.ReactionKind)
	assert.Equal(t, "love", *got.ReactionKind)
	assert.Nil(t, got.ReplyToID)
}

func TestDeliveryStatusProgression(t *testing.T) {
	db := setupTestDatabase(t)
	ctx := context.Background()

	conv, err := db.FindOrCreateConversation(ctx, "member-1")
	require.NoError(t, err)

	msg := &models.Message{
		ConversationID: conv.ID,
		Direction:      models.DirectionOutbound,
		DeliveryStatus: models.DeliveryStatusQueued,
		GatewayID:      "ABC-1",
	}
	require.NoError(t, db.InsertMessage(ctx, msg))

	now := time.Now().UTC()

	matched, err := db.MarkMessageDelivered(ctx, "ABC-1", now)
	require.NoError(t, err)
	assert.True(t, matched)

	matched, err = db.MarkMessageRead(ctx, "ABC-1", now)
	require.NoError(t, err)
	assert.True(t, matched)

	got, err := db.GetMessageByGatewayID(ctx, "ABC-1")
	require.NoError(t, err)
	assert.Equal(t, models.DeliveryStatusRead, got.DeliveryStatus)
	assert.True(t, got.Read)
	assert.NotNil(t, got.DeliveredAt)
	assert.NotNil(t, got.ReadAt)
}

func TestDeliveredNeverRegressesRead(t *testing.T) {
	db := setupTestDatabase(t)
	ctx := context.Background()

	conv, err := db.FindOrCreateConversation(ctx, "member-1")
	require.NoError(t, err)

	msg := &models.Message{
		ConversationID: conv.ID,
		Direction:      models.DirectionOutbound,
		DeliveryStatus: models.DeliveryStatusSent,
		GatewayID:      "ABC-1",
	}
	require.NoError(t, db.InsertMessage(ctx, msg))

	now := time.Now().UTC()

	matched, err := db.MarkMessageRead(ctx, "ABC-1", now)
	require.NoError(t, err)
	assert.True(t, matched)

	// The late delivered event matches nothing.
	matched, err = db.MarkMessageDelivered(ctx, "ABC-1", now)
	require.NoError(t, err)
	assert.False(t, matched)

	got, err := db.GetMessageByGatewayID(ctx, "ABC-1")
	require.NoError(t, err)
	assert.Equal(t, models.DeliveryStatusRead, got.DeliveryStatus)
}

func TestReadRequiresSentOrDelivered(t *testing.T) {
	db := setupTestDatabase(t)
	ctx := context.Background()

	conv, err := db.FindOrCreateConversation(ctx, "member-1")
	require.NoError(t, err)

	msg := &models.Message{
		ConversationID: conv.ID,
		Direction:      models.DirectionOutbound,
		DeliveryStatus: models.DeliveryStatusQueued,
		GatewayID:      "ABC-1",
	}
	require.NoError(t, db.InsertMessage(ctx, msg))

	matched, err := db.MarkMessageRead(ctx, "ABC-1", time.Now().UTC())
	require.NoError(t, err)
	assert.False(t, matched)
}

func TestUpdateMessageBody(t *testing.T) {
	db := setupTestDatabase(t)
	ctx := context.Background()

	conv, err := db.FindOrCreateConversation(ctx, "member-1")
	require.NoError(t, err)

	msg := &models.Message{
		ConversationID: conv.ID,
		Direction:      models.DirectionOutbound,
		Body:           "hello",
		DeliveryStatus: models.DeliveryStatusRead,
		GatewayID:      "ABC-1",
	}
	require.NoError(t, db.InsertMessage(ctx, msg))

	matched, err := db.UpdateMessageBody(ctx, "ABC-1", "hello, edited")
	require.NoError(t, err)
	assert.True(t, matched)

	got, err := db.GetMessageByGatewayID(ctx, "ABC-1")
	require.NoError(t, err)
	assert.Equal(t, "hello, edited", got.Body)
	assert.Equal(t, models.DeliveryStatusRead, got.DeliveryStatus)

	matched, err = db.UpdateMessageBody(ctx, "NOPE", "whatever")
	require.NoError(t, err)
	assert.False(t, matched)
}

func TestUpdateConversationSnapshot(t *testing.T) {
	db := setupTestDatabase(t)
	ctx := context.Background()

	conv, err := db.FindOrCreateConversation(ctx, "member-1")
	require.NoError(t, err)

	at := time.Now().UTC().Truncate(time.Second)
	require.NoError(t, db.UpdateConversationSnapshot(ctx, conv.ID, "latest message", at))

	got, err := db.FindOrCreateConversation(ctx, "member-1")
	require.NoError(t, err)
	assert.Equal(t, "latest message", got.LastMessage)
	assert.Equal(t, at, got.LastMessageAt.UTC().Truncate(time.Second))
}

func TestMemberIDByPhone(t *testing.T) {
	db := setupTestDatabase(t)
	ctx := context.Background()

	_, err := db.db.Exec(`INSERT INTO members (id, phone, name) VALUES ('member-1', '+15551234567', 'Pat')`)
	require.NoError(t, err)

	memberID, err := db.MemberIDByPhone(ctx, "+15551234567")
	require.NoError(t, err)
	assert.Equal(t, "member-1", memberID)

	memberID, err = db.MemberIDByPhone(ctx, "+19990000000")
	require.NoError(t, err)
	assert.Empty(t, memberID)
}

func TestCleanupOldMessages(t *testing.T) {
	db := setupTestDatabase(t)
	ctx := context.Background()

	conv, err := db.FindOrCreateConversation(ctx, "member-1")
	require.NoError(t, err)

	old := &models.Message{
		ConversationID: conv.ID,
		Direction:      models.DirectionOutbound,
		DeliveryStatus: models.DeliveryStatusRead,
		GatewayID:      "OLD-1",
		CreatedAt:      time.Now().UTC().AddDate(0, 0, -60),
	}
	require.NoError(t, db.InsertMessage(ctx, old))

	fresh := &models.Message{
		ConversationID: conv.ID,
		Direction:      models.DirectionOutbound,
		DeliveryStatus: models.DeliveryStatusSent,
		GatewayID:      "NEW-1",
	}
	require.NoError(t, db.InsertMessage(ctx, fresh))

	removed, err := db.CleanupOldMessages(ctx, 30)
	require.NoError(t, err)
	assert.Equal(t, int64(1), removed)

	gone, err := db.GetMessageByGatewayID(ctx, "OLD-1")
	require.NoError(t, err)
	assert.Nil(t, gone)

	kept, err := db.GetMessageByGatewayID(ctx, "NEW-1")
	require.NoError(t, err)
	assert.NotNil(t, kept)
}
