package chat

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"chat-client/internal/api"
	"chat-client/internal/models"
	"chat-client/internal/observability"
	"chat-client/internal/reconcile"
	"chat-client/internal/repositories"
	"chat-client/internal/store"
	"chat-client/internal/telemetry"
	"chat-client/internal/view"
	"chat-client/internal/ws"
)

var (
	ErrEmptyMessage         = errors.New("message is empty")
	ErrNoActiveConversation = errors.New("no active conversation")
	ErrMessageNotSent       = errors.New("message not sent")
	ErrNotStarted           = errors.New("chat service has no identity")
	ErrNoCounterpart        = errors.New("counterpart is required")
)

// draftPrefix marks conversations opened locally before the backend lists them.
const draftPrefix = "draft-"

const cacheTimeout = 5 * time.Second

// Backend is the subset of the REST client the service depends on.
type Backend interface {
	ListConversations(ctx context.Context) ([]models.ConversationPatch, error)
	FetchHistory(ctx context.Context, localUserID, counterpartID string) ([]models.Message, error)
	MarkRead(ctx context.Context, localUserID, counterpartID string) error
}

// Transport is the realtime connection.
type Transport interface {
	Connect(identityID string, onMessage func([]byte))
	Disconnect()
	Send(msg models.OutboundMessage) error
	State() ws.State
	Info() ws.ConnInfo
}

// Notifier surfaces user-visible notices.
type Notifier interface {
	Notify(ctx context.Context, level, text, userID string)
}

// Status describes the session for the UI.
type Status struct {
	UserID        string     `json:"userId"`
	Connection    string     `json:"connection"`
	ConnID        string     `json:"connId,omitempty"`
	ConnectedAt   *time.Time `json:"connectedAt,omitempty"`
	ActiveID      string     `json:"activeId,omitempty"`
	Conversations int        `json:"conversations"`
}

// Service drives the store from the UI, the REST backend and the socket.
type Service struct {
	store     *store.Store
	policy    *reconcile.Policy
	backend   Backend
	transport Transport
	identity  api.IdentityProvider
	cache     repositories.CacheRepository
	notifier  Notifier

	location *time.Location
	now      func() time.Time

	mu      sync.RWMutex
	localID string
}

// NewService builds a Service. cache and notifier may be nil.
func NewService(st *store.Store, backend Backend, transport Transport, identity api.IdentityProvider, cache repositories.CacheRepository, notifier Notifier) *Service {
	return &Service{
		store:     st,
		policy:    reconcile.NewPolicy(st),
		backend:   backend,
		transport: transport,
		identity:  identity,
		cache:     cache,
		notifier:  notifier,
		location:  time.Local,
		now:       time.Now,
	}
}

// SetLocation changes the zone used to format view timestamps.
func (s *Service) SetLocation(loc *time.Location) {
	if loc != nil {
		s.location = loc
	}
}

// LocalID returns the current identity, empty before Start succeeds.
func (s *Service) LocalID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.localID
}

// Start resolves the identity, loads conversations and connects the
// socket. Without an identity the service stays inert and the error is
// returned.
func (s *Service) Start(ctx context.Context) error {
	identity, err := s.identity.Identity(ctx)
	if err != nil {
		return fmt.Errorf("resolve identity: %w", err)
	}
	if identity.ID == "" {
		return api.ErrNoIdentity
	}

	s.mu.Lock()
	s.localID = identity.ID
	s.mu.Unlock()

	if err := s.RefreshConversations(ctx); err != nil {
		s.loadCached(ctx)
	}

	s.transport.Connect(identity.ID, s.HandleInbound)
	log.Printf("chat service started user_id=%s conversations=%d", identity.ID, len(s.store.List()))
	return nil
}

// Stop tears down the socket session.
func (s *Service) Stop() {
	s.transport.Disconnect()
}

// SwitchIdentity drops the current session and state, then starts again
// for whatever identity the provider now reports.
func (s *Service) SwitchIdentity(ctx context.Context) error {
	s.transport.Disconnect()

	s.mu.Lock()
	s.localID = ""
	s.mu.Unlock()
	s.store.ReplaceConversationList(nil)

	return s.Start(ctx)
}

// RefreshConversations replaces the conversation list from the backend.
// On failure the previous state is kept.
func (s *Service) RefreshConversations(ctx context.Context) error {
	list, err := s.backend.ListConversations(ctx)
	if err != nil {
		log.Printf("conversation list fetch failed user_id=%s err=%v", s.LocalID(), err)
		s.notify(ctx, telemetry.LevelError, "could not load conversations")
		return err
	}
	s.store.ReplaceConversationList(list)

	if s.cache != nil {
		cctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cacheTimeout)
		defer cancel()
		if err := s.cache.SaveSnapshot(cctx, s.store.List()); err != nil {
			log.Printf("cache snapshot failed: %v", err)
		}
	}
	return nil
}

func (s *Service) loadCached(ctx context.Context) {
	if s.cache == nil {
		return
	}
	cached, err := s.cache.LoadSnapshot(ctx)
	if err != nil {
		log.Printf("cache load failed: %v", err)
		return
	}
	patches := make([]models.ConversationPatch, 0, len(cached))
	for _, c := range cached {
		patches = append(patches, models.PatchFromConversation(c))
	}
	s.store.ReplaceConversationList(patches)
	log.Printf("conversations restored from cache count=%d", len(patches))
}

// SelectConversation opens a conversation: it becomes active, its unread
// counter is cleared locally and on the backend, and its history is
// fetched. A history response that arrives after the selection moved on
// is discarded.
func (s *Service) SelectConversation(ctx context.Context, conversationID string) error {
	if err := s.store.SetActive(conversationID); err != nil {
		return err
	}
	if err := s.store.MarkRead(conversationID); err != nil {
		return err
	}
	conv, err := s.store.Get(conversationID)
	if err != nil {
		return err
	}

	localID := s.LocalID()
	if localID == "" {
		return nil
	}

	if err := s.backend.MarkRead(ctx, localID, conv.CounterpartID); err != nil {
		log.Printf("mark read failed conversation_id=%s err=%v", conversationID, err)
	}

	ticket := s.store.BeginHistory(conversationID)
	msgs, err := s.backend.FetchHistory(ctx, localID, conv.CounterpartID)
	if err != nil {
		observability.IncHistory("failed")
		log.Printf("history fetch failed conversation_id=%s err=%v", conversationID, err)
		s.notify(ctx, telemetry.LevelError, "could not load messages")
		return err
	}
	if !s.store.ApplyHistory(ticket, msgs) {
		observability.IncHistory("stale")
		log.Printf("history discarded conversation_id=%s reason=stale", conversationID)
		return nil
	}
	observability.IncHistory("applied")

	if s.cache != nil {
		cctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cacheTimeout)
		defer cancel()
		if err := s.cache.ReplaceMessages(cctx, conversationID, msgs); err != nil {
			log.Printf("cache history write failed conversation_id=%s err=%v", conversationID, err)
		}
	}
	return nil
}

// StartConversation returns the conversation with counterpartID, creating
// a local draft when none is listed yet. A later list refresh replaces
// the draft with the backend's own entry.
func (s *Service) StartConversation(counterpartID, displayName string) (models.Conversation, error) {
	counterpartID = strings.TrimSpace(counterpartID)
	if counterpartID == "" || counterpartID == s.LocalID() {
		return models.Conversation{}, ErrNoCounterpart
	}
	if id, ok := s.store.FindByCounterpart(counterpartID); ok {
		return s.store.Get(id)
	}
	if displayName == "" {
		displayName = counterpartID
	}
	conv := s.store.CreateConversation(models.ConversationPatch{
		ID:            draftPrefix + counterpartID,
		CounterpartID: counterpartID,
		DisplayName:   displayName,
	})
	log.Printf("conversation drafted conversation_id=%s counterpart_id=%s", conv.ID, counterpartID)
	return conv, nil
}

// CloseConversation clears the active selection.
func (s *Service) CloseConversation() {
	s.store.ClearActive()
}

// MarkRead clears unread for a conversation locally and on the backend.
func (s *Service) MarkRead(ctx context.Context, conversationID string) error {
	if err := s.store.MarkRead(conversationID); err != nil {
		return err
	}
	localID := s.LocalID()
	if localID == "" {
		return nil
	}
	conv, err := s.store.Get(conversationID)
	if err != nil {
		return err
	}
	return s.backend.MarkRead(ctx, localID, conv.CounterpartID)
}

// Send appends text to the active conversation immediately and publishes
// it. A transport failure leaves the optimistic copy in place.
func (s *Service) Send(ctx context.Context, text string) (models.Message, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return models.Message{}, ErrEmptyMessage
	}
	activeID, ok := s.store.Active()
	if !ok {
		return models.Message{}, ErrNoActiveConversation
	}
	localID := s.LocalID()
	if localID == "" {
		return models.Message{}, ErrNotStarted
	}
	conv, err := s.store.Get(activeID)
	if err != nil {
		return models.Message{}, ErrNoActiveConversation
	}

	msg := models.Message{
		ID:       s.store.NextProvisionalID(),
		SenderID: localID,
		Text:     text,
		SentAt:   s.now(),
	}
	if err := s.store.AppendMessageOptimistic(activeID, msg); err != nil {
		return models.Message{}, err
	}

	err = s.transport.Send(models.OutboundMessage{
		SenderID:   localID,
		ReceiverID: conv.CounterpartID,
		Text:       text,
	})
	if err != nil {
		observability.IncOutbound("failed")
		log.Printf("send failed conversation_id=%s err=%v", activeID, err)
		s.notify(ctx, telemetry.LevelError, "message not sent")
		return msg, fmt.Errorf("%w: %v", ErrMessageNotSent, err)
	}
	observability.IncOutbound("sent")
	return msg, nil
}

// HandleInbound applies one pushed payload. Malformed payloads and
// messages for unknown counterparts are dropped.
func (s *Service) HandleInbound(raw []byte) {
	in, err := reconcile.ParseInbound(raw)
	if err != nil {
		observability.IncInbound("malformed")
		log.Printf("inbound dropped reason=malformed err=%v", err)
		return
	}

	localID := s.LocalID()
	conversationID, ok := s.policy.Route(localID, in)
	if !ok {
		observability.IncInbound("unrouted")
		log.Printf("inbound dropped reason=unknown_counterpart sender_id=%s receiver_id=%s", in.SenderID, in.ReceiverID)
		return
	}
	appendMessage := s.store.AppendMessageInbound
	if in.SenderID == localID {
		// echo of our own send: never unread
		appendMessage = s.store.AppendMessageOptimistic
	}
	if err := appendMessage(conversationID, in.Message); err != nil {
		observability.IncInbound("unrouted")
		log.Printf("inbound dropped conversation_id=%s err=%v", conversationID, err)
		return
	}
	observability.IncInbound("applied")

	if s.cache != nil {
		ctx, cancel := context.WithTimeout(context.Background(), cacheTimeout)
		defer cancel()
		if err := s.cache.AppendMessage(ctx, conversationID, in.Message); err != nil {
			log.Printf("cache append failed conversation_id=%s err=%v", conversationID, err)
		}
	}
}

// Conversations returns the list projection for the UI.
func (s *Service) Conversations(query string, sortByActivity bool) []view.ConversationItem {
	activeID, _ := s.store.Active()
	return view.Conversations(s.store.List(), view.ListOptions{
		Query:          query,
		SortByActivity: sortByActivity,
		ActiveID:       activeID,
		Now:            s.now(),
		Location:       s.location,
	})
}

// Messages returns the rendered messages of a conversation.
func (s *Service) Messages(conversationID string) ([]view.Bubble, error) {
	conv, err := s.store.Get(conversationID)
	if err != nil {
		return nil, err
	}
	return view.Messages(conv, s.LocalID(), s.location), nil
}

// Status reports identity, connection and selection.
func (s *Service) Status() Status {
	activeID, _ := s.store.Active()
	status := Status{
		UserID:        s.LocalID(),
		Connection:    s.transport.State().String(),
		ActiveID:      activeID,
		Conversations: len(s.store.List()),
	}
	if info := s.transport.Info(); info.ConnID != "" {
		status.ConnID = info.ConnID
		connectedAt := info.ConnectedAt
		status.ConnectedAt = &connectedAt
	}
	return status
}

func (s *Service) notify(ctx context.Context, level, text string) {
	if s.notifier == nil {
		return
	}
	s.notifier.Notify(ctx, level, text, s.LocalID())
}
