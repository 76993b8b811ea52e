package reconcile

import (
	"bytes"
	"encoding/json"
	"errors"
	"strconv"
	"strings"
	"time"

	"chat-client/internal/models"
)

const (
	sourceInbound  = "inbound message"
	sourceList     = "conversation list"
	sourceHistory  = "message history"
	sourceIdentity = "identity"
)

// flexID accepts ids sent either as JSON strings or numbers.
type flexID string

func (f *flexID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*f = ""
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*f = flexID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return errors.New("id must be a string or number")
	}
	*f = flexID(n.String())
	return nil
}

// flexTime accepts RFC3339 strings or epoch milliseconds.
type flexTime struct {
	time.Time
	set bool
}

func (f *flexTime) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		if strings.TrimSpace(s) == "" {
			return nil
		}
		t, err := parseTimeString(s)
		if err != nil {
			return err
		}
		f.Time, f.set = t, true
		return nil
	}
	ms, err := strconv.ParseInt(string(b), 10, 64)
	if err != nil {
		return errors.New("timestamp must be a string or epoch milliseconds")
	}
	f.Time, f.set = time.UnixMilli(ms).UTC(), true
	return nil
}

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05",
}

func parseTimeString(s string) (time.Time, error) {
	var lastErr error
	for _, layout := range timeLayouts {
		t, err := time.Parse(layout, s)
		if err == nil {
			return t, nil
		}
		lastErr = err
	}
	return time.Time{}, lastErr
}

type inboundWire struct {
	ID         flexID   `json:"id"`
	SenderID   flexID   `json:"senderId"`
	ReceiverID flexID   `json:"receiverId"`
	Content    *string  `json:"content"`
	Created    flexTime `json:"created"`
}

// ParseInbound decodes a pushed message and normalizes content/created
// into the Message text/sentAt fields.
func ParseInbound(raw []byte) (models.InboundMessage, error) {
	var w inboundWire
	if err := json.Unmarshal(raw, &w); err != nil {
		return models.InboundMessage{}, &MalformedError{Source: sourceInbound, Err: err}
	}
	switch {
	case w.ID == "":
		return models.InboundMessage{}, missing(sourceInbound, "id")
	case w.SenderID == "":
		return models.InboundMessage{}, missing(sourceInbound, "senderId")
	case w.ReceiverID == "":
		return models.InboundMessage{}, missing(sourceInbound, "receiverId")
	case w.Content == nil:
		return models.InboundMessage{}, missing(sourceInbound, "content")
	case !w.Created.set:
		return models.InboundMessage{}, missing(sourceInbound, "created")
	}
	return models.InboundMessage{
		SenderID:   string(w.SenderID),
		ReceiverID: string(w.ReceiverID),
		Message: models.Message{
			ID:       string(w.ID),
			SenderID: string(w.SenderID),
			Text:     *w.Content,
			SentAt:   w.Created.Time,
		},
	}, nil
}

type conversationWire struct {
	ID                 flexID   `json:"id"`
	CounterpartID      flexID   `json:"counterpartId"`
	DisplayName        string   `json:"displayName"`
	DisplayHandle      string   `json:"displayHandle"`
	AvatarRef          string   `json:"avatarRef"`
	IsOnline           bool     `json:"isOnline"`
	LastMessagePreview string   `json:"lastMessagePreview"`
	LastActivityAt     flexTime `json:"lastActivityAt"`
	UnreadCount        int      `json:"unreadCount"`
}

// ParseConversationList decodes the conversation list response. Entries
// never carry messages.
func ParseConversationList(raw []byte) ([]models.ConversationPatch, error) {
	var items []conversationWire
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, &MalformedError{Source: sourceList, Err: err}
	}
	out := make([]models.ConversationPatch, 0, len(items))
	for i, it := range items {
		if it.ID == "" {
			return nil, missing(sourceList, "["+strconv.Itoa(i)+"].id")
		}
		if it.CounterpartID == "" {
			return nil, missing(sourceList, "["+strconv.Itoa(i)+"].counterpartId")
		}
		if it.UnreadCount < 0 {
			return nil, invalid(sourceList, "["+strconv.Itoa(i)+"].unreadCount", errors.New("negative"))
		}
		out = append(out, models.ConversationPatch{
			ID:                 string(it.ID),
			CounterpartID:      string(it.CounterpartID),
			DisplayName:        it.DisplayName,
			DisplayHandle:      it.DisplayHandle,
			AvatarRef:          it.AvatarRef,
			IsOnline:           it.IsOnline,
			LastMessagePreview: it.LastMessagePreview,
			LastActivityAt:     it.LastActivityAt.Time,
			UnreadCount:        it.UnreadCount,
		})
	}
	return out, nil
}

type historyWire struct {
	ID       flexID   `json:"id"`
	SenderID flexID   `json:"senderId"`
	Text     string   `json:"text"`
	SentAt   flexTime `json:"sentAt"`
}

// ParseHistory decodes a message history response, preserving order.
func ParseHistory(raw []byte) ([]models.Message, error) {
	var items []historyWire
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, &MalformedError{Source: sourceHistory, Err: err}
	}
	out := make([]models.Message, 0, len(items))
	for i, it := range items {
		if it.ID == "" {
			return nil, missing(sourceHistory, "["+strconv.Itoa(i)+"].id")
		}
		if it.SenderID == "" {
			return nil, missing(sourceHistory, "["+strconv.Itoa(i)+"].senderId")
		}
		out = append(out, models.Message{
			ID:       string(it.ID),
			SenderID: string(it.SenderID),
			Text:     it.Text,
			SentAt:   it.SentAt.Time,
		})
	}
	return out, nil
}

// ParseIdentity decodes the current-user response.
func ParseIdentity(raw []byte) (models.Identity, error) {
	var w struct {
		ID flexID `json:"id"`
	}
	if err := json.Unmarshal(raw, &w); err != nil {
		return models.Identity{}, &MalformedError{Source: sourceIdentity, Err: err}
	}
	if w.ID == "" {
		return models.Identity{}, missing(sourceIdentity, "id")
	}
	return models.Identity{ID: string(w.ID)}, nil
}
