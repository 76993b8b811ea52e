package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"chat-client/internal/api"
	"chat-client/internal/chat"
	"chat-client/internal/models"
	"chat-client/internal/repositories"
	"chat-client/internal/view"
	"chat-client/internal/ws"
)

type BackendMock struct {
	mock.Mock
}

func (m *BackendMock) ListConversations(ctx context.Context) ([]models.ConversationPatch, error) {
	args := m.Called(ctx)
	var list []models.ConversationPatch
	if val := args.Get(0); val != nil {
		list = val.([]models.ConversationPatch)
	}
	return list, args.Error(1)
}

func (m *BackendMock) FetchHistory(ctx context.Context, localUserID, counterpartID string) ([]models.Message, error) {
	args := m.Called(ctx, localUserID, counterpartID)
	var msgs []models.Message
	if val := args.Get(0); val != nil {
		msgs = val.([]models.Message)
	}
	return msgs, args.Error(1)
}

func (m *BackendMock) MarkRead(ctx context.Context, localUserID, counterpartID string) error {
	args := m.Called(ctx, localUserID, counterpartID)
	return args.Error(0)
}

type TransportMock struct {
	mock.Mock
}

func (m *TransportMock) Connect(identityID string, onMessage func([]byte)) {
	m.Called(identityID, onMessage)
}

func (m *TransportMock) Disconnect() {
	m.Called()
}

func (m *TransportMock) Send(msg models.OutboundMessage) error {
	args := m.Called(msg)
	return args.Error(0)
}

func (m *TransportMock) State() ws.State {
	args := m.Called()
	return args.Get(0).(ws.State)
}

func (m *TransportMock) Info() ws.ConnInfo {
	args := m.Called()
	return args.Get(0).(ws.ConnInfo)
}

type IdentityProviderMock struct {
	mock.Mock
}

func (m *IdentityProviderMock) Identity(ctx context.Context) (models.Identity, error) {
	args := m.Called(ctx)
	var identity models.Identity
	if val := args.Get(0); val != nil {
		identity = val.(models.Identity)
	}
	return identity, args.Error(1)
}

type CacheRepositoryMock struct {
	mock.Mock
}

func (m *CacheRepositoryMock) SaveSnapshot(ctx context.Context, conversations []models.Conversation) error {
	args := m.Called(ctx, conversations)
	return args.Error(0)
}

func (m *CacheRepositoryMock) LoadSnapshot(ctx context.Context) ([]models.Conversation, error) {
	args := m.Called(ctx)
	var list []models.Conversation
	if val := args.Get(0); val != nil {
		list = val.([]models.Conversation)
	}
	return list, args.Error(1)
}

func (m *CacheRepositoryMock) ReplaceMessages(ctx context.Context, conversationID string, msgs []models.Message) error {
	args := m.Called(ctx, conversationID, msgs)
	return args.Error(0)
}

func (m *CacheRepositoryMock) AppendMessage(ctx context.Context, conversationID string, msg models.Message) error {
	args := m.Called(ctx, conversationID, msg)
	return args.Error(0)
}

// ChatServiceMock stands in for the chat service behind the local API.
type ChatServiceMock struct {
	mock.Mock
}

func (m *ChatServiceMock) Conversations(query string, sortByActivity bool) []view.ConversationItem {
	args := m.Called(query, sortByActivity)
	var items []view.ConversationItem
	if val := args.Get(0); val != nil {
		items = val.([]view.ConversationItem)
	}
	return items
}

func (m *ChatServiceMock) Messages(conversationID string) ([]view.Bubble, error) {
	args := m.Called(conversationID)
	var bubbles []view.Bubble
	if val := args.Get(0); val != nil {
		bubbles = val.([]view.Bubble)
	}
	return bubbles, args.Error(1)
}

func (m *ChatServiceMock) SelectConversation(ctx context.Context, conversationID string) error {
	args := m.Called(ctx, conversationID)
	return args.Error(0)
}

func (m *ChatServiceMock) StartConversation(counterpartID, displayName string) (models.Conversation, error) {
	args := m.Called(counterpartID, displayName)
	var conv models.Conversation
	if val := args.Get(0); val != nil {
		conv = val.(models.Conversation)
	}
	return conv, args.Error(1)
}

func (m *ChatServiceMock) CloseConversation() {
	m.Called()
}

func (m *ChatServiceMock) MarkRead(ctx context.Context, conversationID string) error {
	args := m.Called(ctx, conversationID)
	return args.Error(0)
}

func (m *ChatServiceMock) Send(ctx context.Context, text string) (models.Message, error) {
	args := m.Called(ctx, text)
	var msg models.Message
	if val := args.Get(0); val != nil {
		msg = val.(models.Message)
	}
	return msg, args.Error(1)
}

func (m *ChatServiceMock) RefreshConversations(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *ChatServiceMock) Status() chat.Status {
	args := m.Called()
	return args.Get(0).(chat.Status)
}

var _ chat.Backend = (*BackendMock)(nil)
var _ chat.Transport = (*TransportMock)(nil)
var _ chat.Notifier = (*NotifierMock)(nil)
var _ api.IdentityProvider = (*IdentityProviderMock)(nil)
var _ repositories.CacheRepository = (*CacheRepositoryMock)(nil)
