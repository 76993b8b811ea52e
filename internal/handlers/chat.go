package handlers

import (
	"context"
	"errors"
	"log"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"chat-client/internal/chat"
	"chat-client/internal/models"
	"chat-client/internal/store"
	"chat-client/internal/telemetry"
	"chat-client/internal/view"
)

// ChatService is the part of chat.Service the local API drives.
type ChatService interface {
	Conversations(query string, sortByActivity bool) []view.ConversationItem
	Messages(conversationID string) ([]view.Bubble, error)
	SelectConversation(ctx context.Context, conversationID string) error
	StartConversation(counterpartID, displayName string) (models.Conversation, error)
	CloseConversation()
	MarkRead(ctx context.Context, conversationID string) error
	Send(ctx context.Context, text string) (models.Message, error)
	RefreshConversations(ctx context.Context) error
	Status() chat.Status
}

// NoticeSource lists recent user-visible notices.
type NoticeSource interface {
	Recent() []telemetry.Notice
}

// ChatHandler serves the local view API.
type ChatHandler struct {
	svc     ChatService
	notices NoticeSource
}

// NewChatHandler builds a ChatHandler. notices may be nil.
func NewChatHandler(svc ChatService, notices NoticeSource) *ChatHandler {
	return &ChatHandler{svc: svc, notices: notices}
}

// ListConversations returns the filtered conversation list.
func (h *ChatHandler) ListConversations(c *gin.Context) {
	sortByActivity := strings.EqualFold(c.Query("sort"), "activity")
	items := h.svc.Conversations(c.Query("q"), sortByActivity)
	if items == nil {
		items = []view.ConversationItem{}
	}
	c.JSON(http.StatusOK, gin.H{"conversations": items})
}

// RefreshConversations reloads the list from the backend.
func (h *ChatHandler) RefreshConversations(c *gin.Context) {
	if err := h.svc.RefreshConversations(c.Request.Context()); err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": "failed to load conversations"})
		return
	}
	c.Status(http.StatusNoContent)
}

// SelectConversation opens a conversation and loads its history.
func (h *ChatHandler) SelectConversation(c *gin.Context) {
	conversationID := c.Param("conversation_id")
	if err := h.svc.SelectConversation(c.Request.Context(), conversationID); err != nil {
		if errors.Is(err, store.ErrConversationNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "conversation not found"})
			return
		}
		log.Printf("select conversation failed request_id=%s conversation_id=%s err=%v", requestIDFromContext(c), conversationID, err)
		c.JSON(http.StatusBadGateway, gin.H{"error": "failed to load messages"})
		return
	}
	c.Status(http.StatusNoContent)
}

// StartConversation opens or reuses the conversation with a user.
func (h *ChatHandler) StartConversation(c *gin.Context) {
	var req struct {
		CounterpartID string `json:"counterpartId" binding:"required"`
		DisplayName   string `json:"displayName"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	conv, err := h.svc.StartConversation(req.CounterpartID, req.DisplayName)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, chat.ErrNoCounterpart) {
			status = http.StatusBadRequest
		}
		c.JSON(status, gin.H{"error": "cannot start conversation"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"conversation_id": conv.ID})
}

// CloseConversation clears the active conversation.
func (h *ChatHandler) CloseConversation(c *gin.Context) {
	h.svc.CloseConversation()
	c.Status(http.StatusNoContent)
}

// GetMessages returns rendered messages for a conversation.
func (h *ChatHandler) GetMessages(c *gin.Context) {
	bubbles, err := h.svc.Messages(c.Param("conversation_id"))
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, store.ErrConversationNotFound) {
			status = http.StatusNotFound
		}
		c.JSON(status, gin.H{"error": "conversation not found"})
		return
	}
	if bubbles == nil {
		bubbles = []view.Bubble{}
	}
	c.JSON(http.StatusOK, gin.H{"messages": bubbles})
}

// MarkRead clears the unread counter of a conversation.
func (h *ChatHandler) MarkRead(c *gin.Context) {
	conversationID := c.Param("conversation_id")
	if err := h.svc.MarkRead(c.Request.Context(), conversationID); err != nil {
		if errors.Is(err, store.ErrConversationNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "conversation not found"})
			return
		}
		log.Printf("mark read failed request_id=%s conversation_id=%s err=%v", requestIDFromContext(c), conversationID, err)
		c.JSON(http.StatusBadGateway, gin.H{"error": "failed to mark read"})
		return
	}
	c.Status(http.StatusNoContent)
}

// PostMessage sends text to the active conversation.
func (h *ChatHandler) PostMessage(c *gin.Context) {
	var req struct {
		Text string `json:"text" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	msg, err := h.svc.Send(c.Request.Context(), req.Text)
	switch {
	case err == nil:
		c.JSON(http.StatusCreated, msg)
	case errors.Is(err, chat.ErrEmptyMessage):
		c.JSON(http.StatusBadRequest, gin.H{"error": "message is empty"})
	case errors.Is(err, chat.ErrNoActiveConversation):
		c.JSON(http.StatusConflict, gin.H{"error": "no active conversation"})
	case errors.Is(err, chat.ErrNotStarted):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "not signed in"})
	case errors.Is(err, chat.ErrMessageNotSent):
		c.JSON(http.StatusBadGateway, gin.H{"error": "message not sent", "message": msg})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not send message"})
	}
}

// Status reports identity and connection state.
func (h *ChatHandler) Status(c *gin.Context) {
	c.JSON(http.StatusOK, h.svc.Status())
}

// ListNotices returns recent notices, oldest first.
func (h *ChatHandler) ListNotices(c *gin.Context) {
	notices := []telemetry.Notice{}
	if h.notices != nil {
		notices = append(notices, h.notices.Recent()...)
	}
	c.JSON(http.StatusOK, gin.H{"notices": notices})
}

// RegisterRoutes wires the local view API onto r.
func (h *ChatHandler) RegisterRoutes(r gin.IRoutes) {
	r.GET("/conversations", h.ListConversations)
	r.POST("/conversations", h.StartConversation)
	r.POST("/conversations/refresh", h.RefreshConversations)
	r.POST("/conversations/:conversation_id/select", h.SelectConversation)
	r.GET("/conversations/:conversation_id/messages", h.GetMessages)
	r.POST("/conversations/:conversation_id/read", h.MarkRead)
	r.DELETE("/active", h.CloseConversation)
	r.POST("/messages", h.PostMessage)
	r.GET("/status", h.Status)
	r.GET("/notices", h.ListNotices)
}
