package api

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"

	"chat-client/internal/models"
	"chat-client/internal/observability"
	"chat-client/internal/reconcile"
)

const (
	DefaultTimeout  = 10 * time.Second
	maxResponseSize = 4 << 20
)

var ErrUnauthorized = errors.New("chat api: unauthorized")

// StatusError is returned for non-2xx responses.
type StatusError struct {
	Endpoint string
	Code     int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("chat api %s: unexpected status %d", e.Endpoint, e.Code)
}

// Client talks to the chat backend REST endpoints.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

// NewClient constructs a Client. A zero timeout uses DefaultTimeout.
func NewClient(baseURL, token string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		http:    &http.Client{Timeout: timeout},
	}
}

// Identity fetches the authenticated user.
func (c *Client) Identity(ctx context.Context) (models.Identity, error) {
	body, err := c.do(ctx, http.MethodGet, "identity", "/api/users/me")
	if err != nil {
		return models.Identity{}, err
	}
	return reconcile.ParseIdentity(body)
}

// ListConversations fetches conversation metadata for the current user.
func (c *Client) ListConversations(ctx context.Context) ([]models.ConversationPatch, error) {
	body, err := c.do(ctx, http.MethodGet, "conversations", "/api/chats")
	if err != nil {
		return nil, err
	}
	return reconcile.ParseConversationList(body)
}

// FetchHistory returns the ordered messages between the two users.
func (c *Client) FetchHistory(ctx context.Context, localUserID, counterpartID string) ([]models.Message, error) {
	body, err := c.do(ctx, http.MethodGet, "history", "/api/chats/"+url.PathEscape(localUserID)+"/"+url.PathEscape(counterpartID)+"/messages")
	if err != nil {
		return nil, err
	}
	return reconcile.ParseHistory(body)
}

// MarkRead marks the counterpart's messages as read server-side.
func (c *Client) MarkRead(ctx context.Context, localUserID, counterpartID string) error {
	_, err := c.do(ctx, http.MethodPut, "mark_read", "/api/chats/"+url.PathEscape(localUserID)+"/"+url.PathEscape(counterpartID)+"/read")
	return err
}

func (c *Client) do(ctx context.Context, method, endpoint, path string) ([]byte, error) {
	ctx, span := otel.Tracer("chat-client/api").Start(ctx, "api."+endpoint, trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()
	span.SetAttributes(attribute.String("http.method", method), attribute.String("http.route", path))

	started := time.Now()
	outcome := "error"
	defer func() { observability.ObserveREST(endpoint, outcome, started) }()

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	observability.EnsureRequestID(req)
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(req.Header))

	resp, err := c.http.Do(req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("chat api %s: %w", endpoint, err)
	}
	defer resp.Body.Close()
	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, fmt.Errorf("chat api %s: read body: %w", endpoint, err)
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		outcome = "unauthorized"
		return nil, ErrUnauthorized
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		outcome = "status_" + strconv.Itoa(resp.StatusCode)
		err := &StatusError{Endpoint: endpoint, Code: resp.StatusCode}
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	outcome = "ok"
	return body, nil
}
