package view

import (
	"sort"
	"strings"
	"time"

	"chat-client/internal/models"
)

// ConversationItem is one row of the conversation list.
type ConversationItem struct {
	ID            string `json:"id"`
	CounterpartID string `json:"counterpartId"`
	DisplayName   string `json:"displayName"`
	DisplayHandle string `json:"displayHandle"`
	AvatarRef     string `json:"avatarRef"`
	IsOnline      bool   `json:"isOnline"`
	Preview       string `json:"preview"`
	When          string `json:"when"`
	UnreadCount   int    `json:"unreadCount"`
	Active        bool   `json:"active"`
}

// Bubble is one rendered message.
type Bubble struct {
	ID       string `json:"id"`
	SenderID string `json:"senderId"`
	Text     string `json:"text"`
	Time     string `json:"time"`
	Mine     bool   `json:"mine"`
	Pending  bool   `json:"pending"`
}

// ListOptions controls the list projection.
type ListOptions struct {
	Query          string
	SortByActivity bool
	ActiveID       string
	Now            time.Time
	Location       *time.Location
}

// Conversations filters and formats the conversation list. List order is
// preserved unless SortByActivity is set.
func Conversations(list []models.Conversation, opts ListOptions) []ConversationItem {
	loc := opts.Location
	if loc == nil {
		loc = time.Local
	}
	now := opts.Now
	if now.IsZero() {
		now = time.Now()
	}
	query := strings.ToLower(strings.TrimSpace(opts.Query))

	filtered := make([]models.Conversation, 0, len(list))
	for _, c := range list {
		if query == "" || matches(c, query) {
			filtered = append(filtered, c)
		}
	}
	if opts.SortByActivity {
		sort.SliceStable(filtered, func(i, j int) bool {
			return filtered[i].LastActivityAt.After(filtered[j].LastActivityAt)
		})
	}

	items := make([]ConversationItem, 0, len(filtered))
	for _, c := range filtered {
		items = append(items, ConversationItem{
			ID:            c.ID,
			CounterpartID: c.CounterpartID,
			DisplayName:   c.DisplayName,
			DisplayHandle: c.DisplayHandle,
			AvatarRef:     c.AvatarRef,
			IsOnline:      c.IsOnline,
			Preview:       c.LastMessagePreview,
			When:          FormatListTime(c.LastActivityAt, now, loc),
			UnreadCount:   c.UnreadCount,
			Active:        c.ID == opts.ActiveID,
		})
	}
	return items
}

func matches(c models.Conversation, query string) bool {
	return strings.Contains(strings.ToLower(c.DisplayName), query) ||
		strings.Contains(strings.ToLower(c.DisplayHandle), query)
}

// Messages renders a conversation's messages as bubbles.
func Messages(c models.Conversation, localID string, loc *time.Location) []Bubble {
	if loc == nil {
		loc = time.Local
	}
	out := make([]Bubble, 0, len(c.Messages))
	for _, m := range c.Messages {
		out = append(out, Bubble{
			ID:       m.ID,
			SenderID: m.SenderID,
			Text:     m.Text,
			Time:     FormatMessageTime(m.SentAt, loc),
			Mine:     m.SenderID == localID,
			Pending:  models.IsProvisionalID(m.ID),
		})
	}
	return out
}

// FormatMessageTime renders the short clock time shown on a bubble.
func FormatMessageTime(t time.Time, loc *time.Location) string {
	if t.IsZero() {
		return ""
	}
	if loc == nil {
		loc = time.Local
	}
	return t.In(loc).Format("15:04")
}

// FormatListTime renders the relative or absolute date shown on a list row.
func FormatListTime(t, now time.Time, loc *time.Location) string {
	if t.IsZero() {
		return ""
	}
	if loc == nil {
		loc = time.Local
	}
	t, now = t.In(loc), now.In(loc)

	days := calendarDays(t, now)
	switch {
	case days <= 0:
		return t.Format("15:04")
	case days == 1:
		return "Yesterday"
	case days < 7:
		return t.Format("Monday")
	case t.Year() == now.Year():
		return t.Format("02 Jan")
	default:
		return t.Format("02 Jan 2006")
	}
}

// calendarDays counts calendar dates from t to now, whatever the day length.
func calendarDays(t, now time.Time) int {
	date := func(x time.Time) time.Time {
		y, m, d := x.Date()
		return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	}
	return int(date(now).Sub(date(t)) / (24 * time.Hour))
}
