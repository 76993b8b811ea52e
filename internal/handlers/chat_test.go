package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"chat-client/internal/chat"
	"chat-client/internal/mocks"
	"chat-client/internal/models"
	"chat-client/internal/store"
	"chat-client/internal/telemetry"
	"chat-client/internal/view"
)

func setupChatRouter(handler *ChatHandler) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(RequestIDMiddleware())
	handler.RegisterRoutes(r)
	return r
}

func serve(r *gin.Engine, method, path string, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, bytes.NewBufferString(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func TestListConversationsPassesQuery(t *testing.T) {
	svc := new(mocks.ChatServiceMock)
	router := setupChatRouter(NewChatHandler(svc, nil))

	svc.On("Conversations", "bo", true).Return([]view.ConversationItem{{ID: "c1", DisplayName: "Bob", UnreadCount: 2}}).Once()

	rec := serve(router, http.MethodGet, "/conversations?q=bo&sort=activity", "")

	require.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		Conversations []view.ConversationItem `json:"conversations"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	require.Len(t, resp.Conversations, 1)
	assert.Equal(t, 2, resp.Conversations[0].UnreadCount)
	assert.NotEmpty(t, rec.Header().Get("X-Request-Id"))
	svc.AssertExpectations(t)
}

func TestListConversationsEmpty(t *testing.T) {
	svc := new(mocks.ChatServiceMock)
	router := setupChatRouter(NewChatHandler(svc, nil))
	svc.On("Conversations", "", false).Return(nil).Once()

	rec := serve(router, http.MethodGet, "/conversations", "")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"conversations":[]}`, rec.Body.String())
}

func TestRefreshConversationsFailure(t *testing.T) {
	svc := new(mocks.ChatServiceMock)
	router := setupChatRouter(NewChatHandler(svc, nil))
	svc.On("RefreshConversations", mock.Anything).Return(assert.AnError).Once()

	rec := serve(router, http.MethodPost, "/conversations/refresh", "")

	require.Equal(t, http.StatusBadGateway, rec.Code)
	svc.AssertExpectations(t)
}

func TestSelectConversation(t *testing.T) {
	svc := new(mocks.ChatServiceMock)
	router := setupChatRouter(NewChatHandler(svc, nil))
	svc.On("SelectConversation", mock.Anything, "c1").Return(nil).Once()
	svc.On("SelectConversation", mock.Anything, "nope").Return(store.ErrConversationNotFound).Once()
	svc.On("SelectConversation", mock.Anything, "c2").Return(assert.AnError).Once()

	assert.Equal(t, http.StatusNoContent, serve(router, http.MethodPost, "/conversations/c1/select", "").Code)
	assert.Equal(t, http.StatusNotFound, serve(router, http.MethodPost, "/conversations/nope/select", "").Code)
	assert.Equal(t, http.StatusBadGateway, serve(router, http.MethodPost, "/conversations/c2/select", "").Code)
	svc.AssertExpectations(t)
}

func TestStartConversation(t *testing.T) {
	svc := new(mocks.ChatServiceMock)
	router := setupChatRouter(NewChatHandler(svc, nil))
	svc.On("StartConversation", "u9", "Zed").Return(models.Conversation{ID: "draft-u9", CounterpartID: "u9"}, nil).Once()
	svc.On("StartConversation", "u1", "").Return(nil, chat.ErrNoCounterpart).Once()

	rec := serve(router, http.MethodPost, "/conversations", `{"counterpartId":"u9","displayName":"Zed"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"conversation_id":"draft-u9"}`, rec.Body.String())

	assert.Equal(t, http.StatusBadRequest, serve(router, http.MethodPost, "/conversations", `{"counterpartId":"u1"}`).Code)
	assert.Equal(t, http.StatusBadRequest, serve(router, http.MethodPost, "/conversations", `{}`).Code)
	svc.AssertExpectations(t)
}

func TestCloseConversation(t *testing.T) {
	svc := new(mocks.ChatServiceMock)
	router := setupChatRouter(NewChatHandler(svc, nil))
	svc.On("CloseConversation").Return().Once()

	rec := serve(router, http.MethodDelete, "/active", "")

	require.Equal(t, http.StatusNoContent, rec.Code)
	svc.AssertExpectations(t)
}

func TestGetMessages(t *testing.T) {
	svc := new(mocks.ChatServiceMock)
	router := setupChatRouter(NewChatHandler(svc, nil))
	svc.On("Messages", "c1").Return([]view.Bubble{{ID: "1", Text: "hi", Time: "10:00", Mine: true}}, nil).Once()
	svc.On("Messages", "nope").Return(nil, store.ErrConversationNotFound).Once()

	rec := serve(router, http.MethodGet, "/conversations/c1/messages", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		Messages []view.Bubble `json:"messages"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	require.Len(t, resp.Messages, 1)
	assert.True(t, resp.Messages[0].Mine)

	assert.Equal(t, http.StatusNotFound, serve(router, http.MethodGet, "/conversations/nope/messages", "").Code)
	svc.AssertExpectations(t)
}

func TestMarkRead(t *testing.T) {
	svc := new(mocks.ChatServiceMock)
	router := setupChatRouter(NewChatHandler(svc, nil))
	svc.On("MarkRead", mock.Anything, "c1").Return(nil).Once()
	svc.On("MarkRead", mock.Anything, "c2").Return(assert.AnError).Once()

	assert.Equal(t, http.StatusNoContent, serve(router, http.MethodPost, "/conversations/c1/read", "").Code)
	assert.Equal(t, http.StatusBadGateway, serve(router, http.MethodPost, "/conversations/c2/read", "").Code)
	svc.AssertExpectations(t)
}

func TestPostMessageSuccess(t *testing.T) {
	svc := new(mocks.ChatServiceMock)
	router := setupChatRouter(NewChatHandler(svc, nil))
	sent := models.Message{ID: "local-1", SenderID: "u1", Text: "hello", SentAt: time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)}
	svc.On("Send", mock.Anything, "hello").Return(sent, nil).Once()

	rec := serve(router, http.MethodPost, "/messages", `{"text":"hello"}`)

	require.Equal(t, http.StatusCreated, rec.Code)
	var got models.Message
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&got))
	assert.Equal(t, "local-1", got.ID)
	svc.AssertExpectations(t)
}

func TestPostMessageErrors(t *testing.T) {
	svc := new(mocks.ChatServiceMock)
	router := setupChatRouter(NewChatHandler(svc, nil))
	svc.On("Send", mock.Anything, "  ").Return(nil, chat.ErrEmptyMessage).Once()
	svc.On("Send", mock.Anything, "no-active").Return(nil, chat.ErrNoActiveConversation).Once()
	svc.On("Send", mock.Anything, "offline").Return(models.Message{ID: "local-2"}, chat.ErrMessageNotSent).Once()

	assert.Equal(t, http.StatusBadRequest, serve(router, http.MethodPost, "/messages", `{}`).Code)
	assert.Equal(t, http.StatusBadRequest, serve(router, http.MethodPost, "/messages", `{"text":"  "}`).Code)
	assert.Equal(t, http.StatusConflict, serve(router, http.MethodPost, "/messages", `{"text":"no-active"}`).Code)

	rec := serve(router, http.MethodPost, "/messages", `{"text":"offline"}`)
	require.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Contains(t, rec.Body.String(), "local-2")
	svc.AssertExpectations(t)
}

func TestStatus(t *testing.T) {
	svc := new(mocks.ChatServiceMock)
	router := setupChatRouter(NewChatHandler(svc, nil))
	svc.On("Status").Return(chat.Status{UserID: "u1", Connection: "connected", Conversations: 3}).Once()

	rec := serve(router, http.MethodGet, "/status", "")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"userId":"u1","connection":"connected","conversations":3}`, rec.Body.String())
}

func TestListNotices(t *testing.T) {
	emitter := telemetry.NewNoticeEmitter(nil, "", "chat-client", "test", 5)
	router := setupChatRouter(NewChatHandler(new(mocks.ChatServiceMock), emitter))
	emitter.Notify(context.Background(), telemetry.LevelError, "message not sent", "u1")

	rec := serve(router, http.MethodGet, "/notices", "")

	require.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		Notices []telemetry.Notice `json:"notices"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	require.Len(t, resp.Notices, 1)
	assert.Equal(t, "message not sent", resp.Notices[0].Text)
}

func TestDebugRoutes(t *testing.T) {
	gin.SetMode(gin.TestMode)
	emitter := telemetry.NewNoticeEmitter(nil, "", "chat-client", "test", 5)

	disabled := gin.New()
	RegisterDebugRoutes(disabled, emitter, func() string { return "u1" }, false)
	assert.Equal(t, http.StatusNotFound, serve(disabled, http.MethodPost, "/debug/notice-test", "").Code)

	enabled := gin.New()
	RegisterDebugRoutes(enabled, emitter, func() string { return "u1" }, true)
	assert.Equal(t, http.StatusOK, serve(enabled, http.MethodPost, "/debug/notice-test", "").Code)
	assert.Len(t, emitter.Recent(), 1)
}
