package reconcile

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseInboundNormalizesFields(t *testing.T) {
	raw := []byte(`{"id":"m1","senderId":"u2","receiverId":"u1","content":"hi","created":"2024-05-01T10:00:00Z"}`)

	in, err := ParseInbound(raw)
	require.NoError(t, err)
	assert.Equal(t, "u2", in.SenderID)
	assert.Equal(t, "u1", in.ReceiverID)
	assert.Equal(t, "m1", in.Message.ID)
	assert.Equal(t, "u2", in.Message.SenderID)
	assert.Equal(t, "hi", in.Message.Text)
	assert.True(t, in.Message.SentAt.Equal(time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)))
}

func TestParseInboundNumericIDsAndEpoch(t *testing.T) {
	raw := []byte(`{"id":42,"senderId":7,"receiverId":8,"content":"","created":1714557600000}`)

	in, err := ParseInbound(raw)
	require.NoError(t, err)
	assert.Equal(t, "42", in.Message.ID)
	assert.Equal(t, "7", in.SenderID)
	assert.Equal(t, "8", in.ReceiverID)
	assert.Equal(t, int64(1714557600000), in.Message.SentAt.UnixMilli())
}

func TestParseInboundMalformed(t *testing.T) {
	cases := map[string]string{
		"not json":         `{`,
		"missing id":       `{"senderId":"u2","receiverId":"u1","content":"x","created":"2024-05-01T10:00:00Z"}`,
		"missing sender":   `{"id":"1","receiverId":"u1","content":"x","created":"2024-05-01T10:00:00Z"}`,
		"missing receiver": `{"id":"1","senderId":"u2","content":"x","created":"2024-05-01T10:00:00Z"}`,
		"missing content":  `{"id":"1","senderId":"u2","receiverId":"u1","created":"2024-05-01T10:00:00Z"}`,
		"missing created":  `{"id":"1","senderId":"u2","receiverId":"u1","content":"x"}`,
		"bad created":      `{"id":"1","senderId":"u2","receiverId":"u1","content":"x","created":"yesterday"}`,
		"bool id":          `{"id":true,"senderId":"u2","receiverId":"u1","content":"x","created":1}`,
	}
	for name, raw := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := ParseInbound([]byte(raw))
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrMalformedResponse)

			var malformed *MalformedError
			assert.True(t, errors.As(err, &malformed))
			assert.Equal(t, sourceInbound, malformed.Source)
		})
	}
}

func TestParseConversationList(t *testing.T) {
	raw := []byte(`[
		{"id":"c1","counterpartId":"u2","displayName":"Bob","displayHandle":"@bob","isOnline":true,"unreadCount":2,"lastActivityAt":"2024-05-01T10:00:00Z"},
		{"id":"c2","counterpartId":"u3"}
	]`)

	list, err := ParseConversationList(raw)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "c1", list[0].ID)
	assert.Equal(t, "@bob", list[0].DisplayHandle)
	assert.True(t, list[0].IsOnline)
	assert.Equal(t, 2, list[0].UnreadCount)
	assert.Nil(t, list[0].Messages)
	assert.True(t, list[1].LastActivityAt.IsZero())
}

func TestParseConversationListMalformed(t *testing.T) {
	_, err := ParseConversationList([]byte(`[{"id":"c1"}]`))
	assert.ErrorIs(t, err, ErrMalformedResponse)
	assert.Contains(t, err.Error(), "counterpartId")

	_, err = ParseConversationList([]byte(`{"chats":[]}`))
	assert.ErrorIs(t, err, ErrMalformedResponse)

	_, err = ParseConversationList([]byte(`[{"id":"c1","counterpartId":"u2","unreadCount":-1}]`))
	assert.ErrorIs(t, err, ErrMalformedResponse)
}

func TestParseHistoryKeepsOrder(t *testing.T) {
	raw := []byte(`[
		{"id":"2","senderId":"u1","text":"second","sentAt":"2024-05-01T10:01:00Z"},
		{"id":"1","senderId":"u2","text":"first","sentAt":"2024-05-01T10:00:00Z"}
	]`)

	msgs, err := ParseHistory(raw)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, "2", msgs[0].ID)
	assert.Equal(t, "1", msgs[1].ID)

	_, err = ParseHistory([]byte(`[{"id":"1"}]`))
	assert.ErrorIs(t, err, ErrMalformedResponse)
}

func TestParseIdentity(t *testing.T) {
	id, err := ParseIdentity([]byte(`{"id":17,"username":"amy"}`))
	require.NoError(t, err)
	assert.Equal(t, "17", id.ID)

	_, err = ParseIdentity([]byte(`{}`))
	assert.ErrorIs(t, err, ErrMalformedResponse)
}
