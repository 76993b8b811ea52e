package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chat-client/internal/reconcile"
)

func newBackend(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(srv.URL, "tok", time.Second)
}

func TestIdentitySendsBearer(t *testing.T) {
	client := newBackend(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/users/me", r.URL.Path)
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		assert.NotEmpty(t, r.Header.Get("X-Request-Id"))
		_, _ = w.Write([]byte(`{"id":"u1"}`))
	})

	id, err := client.Identity(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "u1", id.ID)
}

func TestListConversations(t *testing.T) {
	client := newBackend(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/chats", r.URL.Path)
		_, _ = w.Write([]byte(`[{"id":"c1","counterpartId":"u2","displayName":"Bob"}]`))
	})

	list, err := client.ListConversations(context.Background())
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "u2", list[0].CounterpartID)
}

func TestFetchHistoryAndMarkReadPaths(t *testing.T) {
	var mu sync.Mutex
	var calls []string
	client := newBackend(t, func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		calls = append(calls, r.Method+" "+r.URL.Path)
		mu.Unlock()
		if r.Method == http.MethodGet {
			_, _ = w.Write([]byte(`[{"id":"1","senderId":"u2","text":"hi","sentAt":"2024-05-01T10:00:00Z"}]`))
			return
		}
		w.WriteHeader(http.StatusNoContent)
	})

	msgs, err := client.FetchHistory(context.Background(), "u1", "u2")
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	require.NoError(t, client.MarkRead(context.Background(), "u1", "u2"))

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"GET /api/chats/u1/u2/messages", "PUT /api/chats/u1/u2/read"}, calls)
}

func TestStatusErrors(t *testing.T) {
	client := newBackend(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/users/me" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.WriteHeader(http.StatusBadGateway)
	})

	_, err := client.Identity(context.Background())
	assert.ErrorIs(t, err, ErrUnauthorized)

	_, err = client.ListConversations(context.Background())
	var statusErr *StatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, http.StatusBadGateway, statusErr.Code)
}

func TestMalformedBody(t *testing.T) {
	client := newBackend(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"items":{"content":[]}}`))
	})

	_, err := client.FetchHistory(context.Background(), "u1", "u2")
	assert.ErrorIs(t, err, reconcile.ErrMalformedResponse)
}

func TestTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer srv.Close()
	client := NewClient(srv.URL, "", 50*time.Millisecond)

	_, err := client.ListConversations(context.Background())
	assert.Error(t, err)
}
