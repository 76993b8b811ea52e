package repositories

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"

	"chat-client/internal/models"
)

// CacheRepository persists confirmed conversation state for offline starts.
type CacheRepository interface {
	SaveSnapshot(ctx context.Context, conversations []models.Conversation) error
	LoadSnapshot(ctx context.Context) ([]models.Conversation, error)
	ReplaceMessages(ctx context.Context, conversationID string, msgs []models.Message) error
	AppendMessage(ctx context.Context, conversationID string, msg models.Message) error
}

// CacheRepo is a sqlx implementation of CacheRepository.
type CacheRepo struct {
	db *sqlx.DB
}

// NewCacheRepo constructs a CacheRepo.
func NewCacheRepo(db *sqlx.DB) *CacheRepo {
	return &CacheRepo{db: db}
}

type conversationRow struct {
	ID                 string       `db:"id"`
	Position           int          `db:"position"`
	CounterpartID      string       `db:"counterpart_id"`
	DisplayName        string       `db:"display_name"`
	DisplayHandle      string       `db:"display_handle"`
	AvatarRef          string       `db:"avatar_ref"`
	IsOnline           bool         `db:"is_online"`
	LastMessagePreview string       `db:"last_message_preview"`
	LastActivityAt     sql.NullTime `db:"last_activity_at"`
	UnreadCount        int          `db:"unread_count"`
}

type messageRow struct {
	ConversationID string       `db:"conversation_id"`
	Seq            int          `db:"seq"`
	ID             string       `db:"id"`
	SenderID       string       `db:"sender_id"`
	Text           string       `db:"text"`
	SentAt         sql.NullTime `db:"sent_at"`
}

// SaveSnapshot replaces the whole cache with the given conversations.
// Optimistic messages are not persisted.
func (r *CacheRepo) SaveSnapshot(ctx context.Context, conversations []models.Conversation) (err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, `DELETE FROM messages`); err != nil {
		return err
	}
	if _, err = tx.ExecContext(ctx, `DELETE FROM conversations`); err != nil {
		return err
	}

	insertConv := tx.Rebind(`INSERT INTO conversations (id, position, counterpart_id, display_name, display_handle, avatar_ref, is_online, last_message_preview, last_activity_at, unread_count)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	for i, c := range conversations {
		if _, err = tx.ExecContext(ctx, insertConv, c.ID, i, c.CounterpartID, c.DisplayName, c.DisplayHandle, c.AvatarRef, c.IsOnline, c.LastMessagePreview, nullTime(c.LastActivityAt), c.UnreadCount); err != nil {
			return err
		}
		if err = insertMessages(ctx, tx, c.ID, confirmed(c.Messages), 1); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// LoadSnapshot returns cached conversations in list order with their messages.
func (r *CacheRepo) LoadSnapshot(ctx context.Context) ([]models.Conversation, error) {
	var convRows []conversationRow
	if err := r.db.SelectContext(ctx, &convRows, `SELECT id, position, counterpart_id, display_name, display_handle, avatar_ref, is_online, last_message_preview, last_activity_at, unread_count
        FROM conversations ORDER BY position ASC`); err != nil {
		return nil, err
	}

	var msgRows []messageRow
	if err := r.db.SelectContext(ctx, &msgRows, `SELECT conversation_id, seq, id, sender_id, text, sent_at FROM messages ORDER BY conversation_id, seq ASC`); err != nil {
		return nil, err
	}
	byConv := make(map[string][]models.Message)
	for _, m := range msgRows {
		byConv[m.ConversationID] = append(byConv[m.ConversationID], models.Message{
			ID:       m.ID,
			SenderID: m.SenderID,
			Text:     m.Text,
			SentAt:   m.SentAt.Time,
		})
	}

	out := make([]models.Conversation, 0, len(convRows))
	for _, c := range convRows {
		out = append(out, models.Conversation{
			ID:                 c.ID,
			CounterpartID:      c.CounterpartID,
			DisplayName:        c.DisplayName,
			DisplayHandle:      c.DisplayHandle,
			AvatarRef:          c.AvatarRef,
			IsOnline:           c.IsOnline,
			LastMessagePreview: c.LastMessagePreview,
			LastActivityAt:     c.LastActivityAt.Time,
			UnreadCount:        c.UnreadCount,
			Messages:           byConv[c.ID],
		})
	}
	return out, nil
}

// ReplaceMessages swaps the cached messages of one conversation.
func (r *CacheRepo) ReplaceMessages(ctx context.Context, conversationID string, msgs []models.Message) (err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, tx.Rebind(`DELETE FROM messages WHERE conversation_id = ?`), conversationID); err != nil {
		return err
	}
	if err = insertMessages(ctx, tx, conversationID, confirmed(msgs), 1); err != nil {
		return err
	}
	return tx.Commit()
}

// AppendMessage adds a confirmed message after the cached tail.
func (r *CacheRepo) AppendMessage(ctx context.Context, conversationID string, msg models.Message) (err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	var last sql.NullInt64
	if err = tx.GetContext(ctx, &last, tx.Rebind(`SELECT MAX(seq) FROM messages WHERE conversation_id = ?`), conversationID); err != nil {
		return err
	}
	if err = insertMessages(ctx, tx, conversationID, []models.Message{msg}, int(last.Int64)+1); err != nil {
		return err
	}
	return tx.Commit()
}

func insertMessages(ctx context.Context, tx *sqlx.Tx, conversationID string, msgs []models.Message, firstSeq int) error {
	query := tx.Rebind(`INSERT INTO messages (conversation_id, seq, id, sender_id, text, sent_at) VALUES (?, ?, ?, ?, ?, ?)`)
	for i, m := range msgs {
		if _, err := tx.ExecContext(ctx, query, conversationID, firstSeq+i, m.ID, m.SenderID, m.Text, nullTime(m.SentAt)); err != nil {
			return err
		}
	}
	return nil
}

func confirmed(msgs []models.Message) []models.Message {
	out := make([]models.Message, 0, len(msgs))
	for _, m := range msgs {
		if models.IsProvisionalID(m.ID) {
			continue
		}
		out = append(out, m)
	}
	return out
}

func nullTime(t time.Time) sql.NullTime {
	if t.IsZero() {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t.UTC(), Valid: true}
}
