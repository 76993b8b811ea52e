package reconcile

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"chat-client/internal/models"
	"chat-client/internal/store"
)

func TestRouteBySenderOrReceiver(t *testing.T) {
	s := store.New()
	s.ReplaceConversationList([]models.ConversationPatch{{ID: "c1", CounterpartID: "u2"}})
	policy := NewPolicy(s)

	id, ok := policy.Route("u1", models.InboundMessage{SenderID: "u2", ReceiverID: "u1"})
	assert.True(t, ok)
	assert.Equal(t, "c1", id)

	// echo of our own send comes back keyed by the receiver
	id, ok = policy.Route("u1", models.InboundMessage{SenderID: "u1", ReceiverID: "u2"})
	assert.True(t, ok)
	assert.Equal(t, "c1", id)
}

func TestRouteUnknownCounterpart(t *testing.T) {
	s := store.New()
	s.ReplaceConversationList([]models.ConversationPatch{{ID: "c1", CounterpartID: "u2"}})
	policy := NewPolicy(s)

	_, ok := policy.Route("u1", models.InboundMessage{
		SenderID:   "u9",
		ReceiverID: "u1",
		Message:    models.Message{ID: "1", SenderID: "u9", Text: "hey", SentAt: time.Now()},
	})
	assert.False(t, ok)
}

func TestCounterpart(t *testing.T) {
	assert.Equal(t, "u2", Counterpart("u1", models.InboundMessage{SenderID: "u2", ReceiverID: "u1"}))
	assert.Equal(t, "u3", Counterpart("u1", models.InboundMessage{SenderID: "u1", ReceiverID: "u3"}))
}
