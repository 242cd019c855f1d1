package service

import (
	"context"
	"io"
	"time"

	"bluecast/internal/models"
	gwtypes "bluecast/pkg/gateway/types"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/mock"
)

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

type mockGateway struct {
	mock.Mock
}

func (m *mockGateway) SendText(ctx context.Context, chatGUID, tempGUID, text string) gwtypes.Outcome {
	args := m.Called(ctx, chatGUID, tempGUID, text)
	return args.Get(0).(gwtypes.Outcome)
}

func (m *mockGateway) SendReply(ctx context.Context, chatGUID, tempGUID, text, targetGUID string, partIndex int) gwtypes.Outcome {
	args := m.Called(ctx, chatGUID, tempGUID, text, targetGUID, partIndex)
	return args.Get(0).(gwtypes.Outcome)
}

func (m *mockGateway) SendAttachment(ctx context.Context, chatGUID, tempGUID string, data []byte, filename, mimeType, caption string) gwtypes.Outcome {
	args := m.Called(ctx, chatGUID, tempGUID, data, filename, mimeType, caption)
	return args.Get(0).(gwtypes.Outcome)
}

func (m *mockGateway) SendReaction(ctx context.Context, chatGUID, targetGUID, reaction string, partIndex int) gwtypes.Outcome {
	args := m.Called(ctx, chatGUID, targetGUID, reaction, partIndex)
	return args.Get(0).(gwtypes.Outcome)
}

func (m *mockGateway) CreateChat(ctx context.Context, address, service string) (string, error) {
	args := m.Called(ctx, address, service)
	return args.String(0), args.Error(1)
}

type mockStore struct {
	mock.Mock
}

func (m *mockStore) FindOrCreateConversation(ctx context.Context, memberID string) (*models.Conversation, error) {
	args := m.Called(ctx, memberID)
	if conv := args.Get(0); conv != nil {
		return conv.(*models.Conversation), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockStore) UpdateConversationSnapshot(ctx context.Context, conversationID int64, body string, at time.Time) error {
	args := m.Called(ctx, conversationID, body, at)
	return args.Error(0)
}

func (m *mockStore) InsertMessage(ctx context.Context, msg *models.Message) error {
	args := m.Called(ctx, msg)
	return args.Error(0)
}

func (m *mockStore) GetMessageByGatewayID(ctx context.Context, gatewayID string) (*models.Message, error) {
	args := m.Called(ctx, gatewayID)
	if msg := args.Get(0); msg != nil {
		return msg.(*models.Message), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockStore) UpdateMessageBody(ctx context.Context, gatewayID, body string) (bool, error) {
	args := m.Called(ctx, gatewayID, body)
	return args.Bool(0), args.Error(1)
}

func (m *mockStore) MarkMessageDelivered(ctx context.Context, gatewayID string, at time.Time) (bool, error) {
	args := m.Called(ctx, gatewayID, at)
	return args.Bool(0), args.Error(1)
}

func (m *mockStore) MarkMessageRead(ctx context.Context, gatewayID string, at time.Time) (bool, error) {
	args := m.Called(ctx, gatewayID, at)
	return args.Bool(0), args.Error(1)
}

func (m *mockStore) CleanupOldMessages(ctx context.Context, retentionDays int) (int64, error) {
	args := m.Called(ctx, retentionDays)
	return args.Get(0).(int64), args.Error(1)
}

type mockDirectory struct {
	mock.Mock
}

func (m *mockDirectory) MemberIDByPhone(ctx context.Context, phone string) (string, error) {
	args := m.Called(ctx, phone)
	return args.String(0), args.Error(1)
}

type mockSender struct {
	mock.Mock
}

func (m *mockSender) Send(ctx context.Context, req models.SendRequest) (*models.DispatchResult, error) {
	args := m.Called(ctx, req)
	if result := args.Get(0); result != nil {
		return result.(*models.DispatchResult), args.Error(1)
	}
	return nil, args.Error(1)
}
