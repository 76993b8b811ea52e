package store

import (
	"errors"
	"strconv"
	"sync"

	"chat-client/internal/models"
)

var ErrConversationNotFound = errors.New("conversation not found")

// HistoryTicket tags an in-flight history request.
type HistoryTicket struct {
	ConversationID string
	seq            uint64
}

// Store holds conversations, their messages and the active selector.
type Store struct {
	mu            sync.RWMutex
	conversations []*models.Conversation
	byID          map[string]*models.Conversation
	byCounterpart map[string]string
	active        string
	provisional   uint64
	historySeq    uint64
	latestHistory map[string]uint64
}

// New creates an empty store.
func New() *Store {
	return &Store{
		byID:          make(map[string]*models.Conversation),
		byCounterpart: make(map[string]string),
		latestHistory: make(map[string]uint64),
	}
}

// ReplaceConversationList swaps the conversation set. Metadata is taken
// from the patches; messages already in memory are kept unless a patch
// carries its own.
func (s *Store) ReplaceConversationList(list []models.ConversationPatch) {
	s.mu.Lock()
	defer s.mu.Unlock()

	conversations := make([]*models.Conversation, 0, len(list))
	byID := make(map[string]*models.Conversation, len(list))
	for _, p := range list {
		if _, dup := byID[p.ID]; dup {
			continue
		}
		conv := &models.Conversation{}
		if prev, ok := s.byID[p.ID]; ok {
			conv.Messages = prev.Messages
		}
		applyPatch(conv, p)
		conversations = append(conversations, conv)
		byID[p.ID] = conv
	}

	s.conversations = conversations
	s.byID = byID
	s.reindex()
	if _, ok := s.byID[s.active]; !ok {
		s.active = ""
	}
}

// CreateConversation inserts a single conversation at the tail of the list.
func (s *Store) CreateConversation(p models.ConversationPatch) models.Conversation {
	s.mu.Lock()
	defer s.mu.Unlock()

	if conv, ok := s.byID[p.ID]; ok {
		applyPatch(conv, p)
		s.reindex()
		return conv.Clone()
	}
	conv := &models.Conversation{}
	applyPatch(conv, p)
	s.conversations = append(s.conversations, conv)
	s.byID[p.ID] = conv
	if conv.CounterpartID != "" {
		s.byCounterpart[conv.CounterpartID] = conv.ID
	}
	return conv.Clone()
}

// SetActive marks the conversation as the one open in the UI.
func (s *Store) SetActive(conversationID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byID[conversationID]; !ok {
		return ErrConversationNotFound
	}
	s.active = conversationID
	return nil
}

// ClearActive resets the active selector.
func (s *Store) ClearActive() {
	s.mu.Lock()
	s.active = ""
	s.mu.Unlock()
}

// Active returns the active conversation id, if any.
func (s *Store) Active() (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.active, s.active != ""
}

// ReplaceMessages swaps a conversation's message sequence.
func (s *Store) ReplaceMessages(conversationID string, msgs []models.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	conv, ok := s.byID[conversationID]
	if !ok {
		return ErrConversationNotFound
	}
	conv.Messages = cloneMessages(msgs)
	return nil
}

// BeginHistory issues a ticket for a history request on conversationID.
// Only the newest ticket per conversation can be applied.
func (s *Store) BeginHistory(conversationID string) HistoryTicket {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.historySeq++
	s.latestHistory[conversationID] = s.historySeq
	return HistoryTicket{ConversationID: conversationID, seq: s.historySeq}
}

// ApplyHistory replaces messages for the ticket's conversation if the
// ticket is still current and the conversation is still active. It
// reports whether the response was applied.
func (s *Store) ApplyHistory(ticket HistoryTicket, msgs []models.Message) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active != ticket.ConversationID || s.latestHistory[ticket.ConversationID] != ticket.seq {
		return false
	}
	conv, ok := s.byID[ticket.ConversationID]
	if !ok {
		return false
	}
	conv.Messages = cloneMessages(msgs)
	return true
}

// AppendMessageOptimistic appends a locally sent message. Unread is untouched.
func (s *Store) AppendMessageOptimistic(conversationID string, msg models.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	conv, ok := s.byID[conversationID]
	if !ok {
		return ErrConversationNotFound
	}
	appendMessage(conv, msg)
	return nil
}

// AppendMessageInbound appends a pushed message and bumps unread unless
// the conversation is active.
func (s *Store) AppendMessageInbound(conversationID string, msg models.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	conv, ok := s.byID[conversationID]
	if !ok {
		return ErrConversationNotFound
	}
	appendMessage(conv, msg)
	if s.active != conversationID {
		conv.UnreadCount++
	}
	return nil
}

// MarkRead resets the unread counter.
func (s *Store) MarkRead(conversationID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	conv, ok := s.byID[conversationID]
	if !ok {
		return ErrConversationNotFound
	}
	conv.UnreadCount = 0
	return nil
}

// NextProvisionalID returns a session-unique id for an optimistic message.
func (s *Store) NextProvisionalID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.provisional++
	return models.ProvisionalPrefix + strconv.FormatUint(s.provisional, 10)
}

// FindByCounterpart returns the conversation id for a counterpart user.
func (s *Store) FindByCounterpart(userID string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.byCounterpart[userID]
	return id, ok
}

// Get returns a copy of a conversation.
func (s *Store) Get(conversationID string) (models.Conversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	conv, ok := s.byID[conversationID]
	if !ok {
		return models.Conversation{}, ErrConversationNotFound
	}
	return conv.Clone(), nil
}

// List returns copies of all conversations in list order.
func (s *Store) List() []models.Conversation {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.Conversation, 0, len(s.conversations))
	for _, conv := range s.conversations {
		out = append(out, conv.Clone())
	}
	return out
}

func (s *Store) reindex() {
	s.byCounterpart = make(map[string]string, len(s.conversations))
	for _, conv := range s.conversations {
		if conv.CounterpartID == "" {
			continue
		}
		// first entry wins on duplicate counterparts
		if _, ok := s.byCounterpart[conv.CounterpartID]; !ok {
			s.byCounterpart[conv.CounterpartID] = conv.ID
		}
	}
}

func applyPatch(conv *models.Conversation, p models.ConversationPatch) {
	conv.ID = p.ID
	conv.CounterpartID = p.CounterpartID
	conv.DisplayName = p.DisplayName
	conv.DisplayHandle = p.DisplayHandle
	conv.AvatarRef = p.AvatarRef
	conv.IsOnline = p.IsOnline
	conv.LastMessagePreview = p.LastMessagePreview
	conv.LastActivityAt = p.LastActivityAt
	conv.UnreadCount = p.UnreadCount
	if conv.UnreadCount < 0 {
		conv.UnreadCount = 0
	}
	if p.Messages != nil {
		conv.Messages = cloneMessages(*p.Messages)
	}
}

func appendMessage(conv *models.Conversation, msg models.Message) {
	conv.Messages = append(conv.Messages, msg)
	conv.LastMessagePreview = msg.Text
	conv.LastActivityAt = msg.SentAt
}

func cloneMessages(msgs []models.Message) []models.Message {
	out := make([]models.Message, len(msgs))
	copy(out, msgs)
	return out
}
