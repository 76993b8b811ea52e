package models

import "time"

// Conversation is a two-party thread as seen by the local user.
type Conversation struct {
	ID                 string    `db:"id" json:"id"`
	CounterpartID      string    `db:"counterpart_id" json:"counterpartId"`
	DisplayName        string    `db:"display_name" json:"displayName"`
	DisplayHandle      string    `db:"display_handle" json:"displayHandle"`
	AvatarRef          string    `db:"avatar_ref" json:"avatarRef"`
	IsOnline           bool      `db:"is_online" json:"isOnline"`
	LastMessagePreview string    `db:"last_message_preview" json:"lastMessagePreview"`
	LastActivityAt     time.Time `db:"last_activity_at" json:"lastActivityAt"`
	UnreadCount        int       `db:"unread_count" json:"unreadCount"`
	Messages           []Message `db:"-" json:"messages,omitempty"`
}

// Clone returns a deep copy of the conversation.
func (c Conversation) Clone() Conversation {
	out := c
	if c.Messages != nil {
		out.Messages = make([]Message, len(c.Messages))
		copy(out.Messages, c.Messages)
	}
	return out
}

// ConversationPatch carries list metadata. A nil Messages leaves the
// stored message sequence untouched.
type ConversationPatch struct {
	ID                 string     `json:"id"`
	CounterpartID      string     `json:"counterpartId"`
	DisplayName        string     `json:"displayName"`
	DisplayHandle      string     `json:"displayHandle"`
	AvatarRef          string     `json:"avatarRef"`
	IsOnline           bool       `json:"isOnline"`
	LastMessagePreview string     `json:"lastMessagePreview"`
	LastActivityAt     time.Time  `json:"lastActivityAt"`
	UnreadCount        int        `json:"unreadCount"`
	Messages           *[]Message `json:"messages,omitempty"`
}

// PatchFromConversation builds a patch that carries the conversation's messages.
func PatchFromConversation(c Conversation) ConversationPatch {
	msgs := make([]Message, len(c.Messages))
	copy(msgs, c.Messages)
	return ConversationPatch{
		ID:                 c.ID,
		CounterpartID:      c.CounterpartID,
		DisplayName:        c.DisplayName,
		DisplayHandle:      c.DisplayHandle,
		AvatarRef:          c.AvatarRef,
		IsOnline:           c.IsOnline,
		LastMessagePreview: c.LastMessagePreview,
		LastActivityAt:     c.LastActivityAt,
		UnreadCount:        c.UnreadCount,
		Messages:           &msgs,
	}
}

// Identity is the authenticated local user.
type Identity struct {
	ID string `json:"id"`
}
