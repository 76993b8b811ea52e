package ws

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"chat-client/internal/models"
	"chat-client/internal/observability"
)

var ErrNotConnected = errors.New("chat socket not connected")

const (
	defaultReconnectDelay = 3 * time.Second
	writeWait             = 10 * time.Second
	pongWait              = 60 * time.Second
	pingInterval          = 30 * time.Second
	maxMessageSize        = 64 * 1024

	sendDestination = "/app/chat"
	eventsKey       = "ws_events.chat"
)

// InboxDestination is the per-user channel the server routes pushes to.
func InboxDestination(identityID string) string {
	return "/user/" + identityID + "/queue/messages"
}

// Options configures a Manager.
type Options struct {
	URL            string
	Header         http.Header
	ReconnectDelay time.Duration
	// OnStateChange is called after every state transition, outside any lock.
	OnStateChange func(State)
}

// Manager owns the single chat socket session for the process.
type Manager struct {
	opts   Options
	dialer *websocket.Dialer

	mu     sync.Mutex
	state  State
	conn   *websocket.Conn
	info   ConnInfo
	cancel context.CancelFunc
	done   chan struct{}

	writeMu sync.Mutex
}

// NewManager constructs a Manager in the Disconnected state.
func NewManager(opts Options) *Manager {
	if opts.ReconnectDelay <= 0 {
		opts.ReconnectDelay = defaultReconnectDelay
	}
	return &Manager{
		opts: opts,
		dialer: &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: writeWait,
		},
	}
}

// Connect starts a session for identityID, tearing down any previous one
// first. onMessage receives each inbound payload in order from a single
// goroutine; it must not call Disconnect or Connect. Connection errors
// never surface here, they only move the state.
func (m *Manager) Connect(identityID string, onMessage func([]byte)) {
	m.Disconnect()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	m.mu.Lock()
	m.cancel = cancel
	m.done = done
	m.mu.Unlock()

	go m.run(ctx, identityID, onMessage, done)
}

// Disconnect stops the session and its reconnect loop. Safe to call repeatedly.
func (m *Manager) Disconnect() {
	m.mu.Lock()
	cancel, done, conn := m.cancel, m.done, m.conn
	m.cancel, m.done = nil, nil
	m.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	if conn != nil {
		_ = conn.Close()
	}
	<-done
}

// State reports the current connection state.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Info describes the live socket. It is zero while disconnected.
func (m *Manager) Info() ConnInfo {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.conn == nil {
		return ConnInfo{}
	}
	return m.info
}

// Send publishes an outbound message. It returns ErrNotConnected when no
// socket is up; there is no delivery acknowledgement.
func (m *Manager) Send(msg models.OutboundMessage) error {
	m.mu.Lock()
	conn, state := m.conn, m.state
	m.mu.Unlock()
	if conn == nil || state != Connected {
		return ErrNotConnected
	}

	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("encode outbound message: %w", err)
	}
	if err := m.writeFrame(conn, models.Frame{Type: models.FrameSend, Destination: sendDestination, Payload: payload}); err != nil {
		return fmt.Errorf("%w: %v", ErrNotConnected, err)
	}
	return nil
}

func (m *Manager) run(ctx context.Context, identityID string, onMessage func([]byte), done chan struct{}) {
	defer close(done)

	for {
		m.setState(Connecting)
		conn, info, err := m.dial(ctx, identityID)
		if err == nil {
			m.attach(conn, info)
			err = m.readLoop(ctx, conn, onMessage)
			m.detach(conn)
			m.publish(ctx, "ws_disconnect", info, err)
		}
		m.setState(Disconnected)

		if ctx.Err() != nil {
			return
		}
		log.Printf("chat socket lost user_id=%s retry_in=%s err=%v", identityID, m.opts.ReconnectDelay, err)
		observability.IncWSEvent("ws_error")
		m.publish(ctx, "ws_error", ConnInfo{UserID: identityID, URL: m.opts.URL}, err)

		timer := time.NewTimer(m.opts.ReconnectDelay)
		select {
		case <-timer.C:
			observability.IncWSEvent("ws_reconnect")
		case <-ctx.Done():
			timer.Stop()
			return
		}
	}
}

func (m *Manager) dial(ctx context.Context, identityID string) (*websocket.Conn, ConnInfo, error) {
	ctx, span := otel.Tracer("chat-client/ws").Start(ctx, "ws.dial", trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()

	conn, _, err := m.dialer.DialContext(ctx, m.opts.URL, m.opts.Header)
	if err != nil {
		span.RecordError(err)
		return nil, ConnInfo{}, fmt.Errorf("dial %s: %w", m.opts.URL, err)
	}
	conn.SetReadLimit(maxMessageSize)

	info := ConnInfo{
		ConnID:      uuid.NewString(),
		UserID:      identityID,
		URL:         m.opts.URL,
		TraceID:     span.SpanContext().TraceID().String(),
		ConnectedAt: time.Now(),
	}
	if err := m.writeFrame(conn, models.Frame{Type: models.FrameSubscribe, Destination: InboxDestination(identityID)}); err != nil {
		_ = conn.Close()
		span.RecordError(err)
		return nil, ConnInfo{}, fmt.Errorf("subscribe: %w", err)
	}
	return conn, info, nil
}

func (m *Manager) attach(conn *websocket.Conn, info ConnInfo) {
	m.mu.Lock()
	m.conn = conn
	m.info = info
	m.mu.Unlock()

	m.setState(Connected)
	observability.IncWSEvent("ws_connect")
	log.Printf("chat socket connected user_id=%s conn_id=%s", info.UserID, info.ConnID)
	m.publish(context.Background(), "ws_connect", info, nil)
}

func (m *Manager) detach(conn *websocket.Conn) {
	m.mu.Lock()
	if m.conn == conn {
		m.conn = nil
		m.info = ConnInfo{}
	}
	m.mu.Unlock()
	_ = conn.Close()
}

func (m *Manager) readLoop(ctx context.Context, conn *websocket.Conn, onMessage func([]byte)) error {
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	stopPing := make(chan struct{})
	defer close(stopPing)
	go m.pingLoop(ctx, conn, stopPing)

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		_ = conn.SetReadDeadline(time.Now().Add(pongWait))

		var frame models.Frame
		if err := json.Unmarshal(data, &frame); err != nil {
			log.Printf("chat socket dropped undecodable frame: %v", err)
			observability.IncInbound("malformed")
			continue
		}
		switch frame.Type {
		case models.FrameMessage:
			if onMessage != nil {
				onMessage(frame.Payload)
			}
		case models.FramePing:
			if err := m.writeFrame(conn, models.Frame{Type: models.FramePong}); err != nil {
				return err
			}
		}
	}
}

// pingLoop keeps the socket alive and closes it once ctx is cancelled so
// the blocked reader returns.
func (m *Manager) pingLoop(ctx context.Context, conn *websocket.Conn, stop <-chan struct{}) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			_ = conn.Close()
			return
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		case <-stop:
			return
		}
	}
}

func (m *Manager) writeFrame(conn *websocket.Conn, frame models.Frame) error {
	m.writeMu.Lock()
	defer m.writeMu.Unlock()
	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteJSON(frame)
}

func (m *Manager) setState(state State) {
	m.mu.Lock()
	if m.state == state {
		m.mu.Unlock()
		return
	}
	m.state = state
	m.mu.Unlock()

	observability.SetWSConnected(state == Connected)
	if m.opts.OnStateChange != nil {
		m.opts.OnStateChange(state)
	}
}

func (m *Manager) publish(ctx context.Context, event string, info ConnInfo, cause error) {
	reason := ""
	if cause != nil {
		reason = cause.Error()
	}
	var duration int64
	if !info.ConnectedAt.IsZero() {
		duration = time.Since(info.ConnectedAt).Milliseconds()
	}
	_ = observability.PublishEvent(context.WithoutCancel(ctx), eventsKey, observability.EventEnvelope{
		EventType: "ws_events",
		EventName: event,
		Payload: map[string]interface{}{
			"ws": map[string]interface{}{
				"event":       event,
				"conn_id":     info.ConnID,
				"url":         info.URL,
				"duration_ms": duration,
				"reason":      reason,
			},
			"identity": map[string]interface{}{
				"user_id": info.UserID,
			},
		},
	}, observability.BuildHeaders("", info.TraceID))
}
