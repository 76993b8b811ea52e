package reconcile

import "chat-client/internal/models"

// CounterpartIndex resolves a counterpart user to a conversation id.
type CounterpartIndex interface {
	FindByCounterpart(userID string) (string, bool)
}

// Policy maps inbound pushes, keyed by user identities, onto conversations.
type Policy struct {
	index CounterpartIndex
}

// NewPolicy constructs a Policy backed by index.
func NewPolicy(index CounterpartIndex) *Policy {
	return &Policy{index: index}
}

// Counterpart returns the identity on the message that is not localID.
func Counterpart(localID string, in models.InboundMessage) string {
	if in.SenderID != localID {
		return in.SenderID
	}
	return in.ReceiverID
}

// Route returns the conversation an inbound message belongs to. A
// message from a counterpart with no conversation yields ok == false.
func (p *Policy) Route(localID string, in models.InboundMessage) (string, bool) {
	counterpart := Counterpart(localID, in)
	if counterpart == "" {
		return "", false
	}
	return p.index.FindByCounterpart(counterpart)
}
