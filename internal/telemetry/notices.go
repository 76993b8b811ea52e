package telemetry

import (
	"context"
	"log"
	"sync"
	"time"
)

const (
	LevelInfo  = "INFO"
	LevelError = "ERROR"
)

type Publisher interface {
	Publish(ctx context.Context, routingKey string, event any, headers map[string]string) error
}

// Notice is a user-visible, non-blocking message such as "message not sent".
type Notice struct {
	Level      string    `json:"level"`
	Text       string    `json:"text"`
	OccurredAt time.Time `json:"occurredAt"`
}

type NoticeEnvelope struct {
	SchemaVersion int           `json:"schema_version"`
	EventType     string        `json:"event_type"`
	OccurredAt    string        `json:"occurred_at"`
	Service       string        `json:"service"`
	Environment   string        `json:"environment"`
	UserID        *string       `json:"user_id,omitempty"`
	Payload       NoticePayload `json:"payload"`
}

type NoticePayload struct {
	Level string `json:"level"`
	Text  string `json:"text"`
}

// NoticeEmitter keeps the most recent notices for the UI and mirrors
// them to the event exchange.
type NoticeEmitter struct {
	publisher   Publisher
	routingKey  string
	service     string
	environment string
	limit       int

	mu     sync.Mutex
	recent []Notice
}

func NewNoticeEmitter(publisher Publisher, routingKey, service, environment string, limit int) *NoticeEmitter {
	if limit <= 0 {
		limit = 50
	}
	return &NoticeEmitter{
		publisher:   publisher,
		routingKey:  routingKey,
		service:     service,
		environment: environment,
		limit:       limit,
	}
}

func (e *NoticeEmitter) Notify(ctx context.Context, level, text, userID string) {
	if e == nil {
		return
	}

	now := time.Now().UTC()
	log.Printf("notice: level=%s user_id=%s text=%q", level, userID, text)

	e.mu.Lock()
	e.recent = append(e.recent, Notice{Level: level, Text: text, OccurredAt: now})
	if over := len(e.recent) - e.limit; over > 0 {
		e.recent = append([]Notice(nil), e.recent[over:]...)
	}
	e.mu.Unlock()

	if e.publisher == nil {
		return
	}
	envelope := NoticeEnvelope{
		SchemaVersion: 1,
		EventType:     "chat_notice",
		OccurredAt:    now.Format(time.RFC3339Nano),
		Service:       e.service,
		Environment:   e.environment,
		Payload: NoticePayload{
			Level: level,
			Text:  text,
		},
	}
	if userID != "" {
		envelope.UserID = &userID
	}
	if err := e.publisher.Publish(ctx, e.routingKey, envelope, nil); err != nil {
		log.Printf("notice publish failed: %v", err)
	}
}

// Recent returns the retained notices, oldest first.
func (e *NoticeEmitter) Recent() []Notice {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]Notice, len(e.recent))
	copy(out, e.recent)
	return out
}
