package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"chat-client/internal/rabbitmq"
)

type PublisherMock struct {
	mock.Mock
}

func (m *PublisherMock) Publish(ctx context.Context, routingKey string, event any, headers map[string]string) error {
	args := m.Called(ctx, routingKey, event, headers)
	return args.Error(0)
}

func (m *PublisherMock) Close() error {
	args := m.Called()
	return args.Error(0)
}

type NotifierMock struct {
	mock.Mock
}

func (m *NotifierMock) Notify(ctx context.Context, level, text, userID string) {
	m.Called(ctx, level, text, userID)
}

var _ rabbitmq.Publisher = (*PublisherMock)(nil)
