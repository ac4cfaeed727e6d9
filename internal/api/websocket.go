package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/openlumen/lumen-core/internal/auth"
	"github.com/openlumen/lumen-core/internal/display"
	"github.com/openlumen/lumen-core/internal/infrastructure/config"
)

// Display protocol message types.
const (
	wsTypeGet          = "get"
	wsTypeAuthenticate = "authenticate"
	wsTypeSet          = "set"
	wsTypeState        = "state"
	wsTypeAuthResult   = "auth_result"
)

// wsInbound is a client message on the display socket.
type wsInbound struct {
	Type  string         `json:"type"`
	Token string         `json:"token,omitempty"`
	State *display.State `json:"state,omitempty"`
}

// wsStateMessage carries the display state to the client.
type wsStateMessage struct {
	Type  string        `json:"type"`
	State display.State `json:"state"`
}

// wsAuthResult reports the outcome of an authenticate or set request.
type wsAuthResult struct {
	Type       string `json:"type"`
	Authorized bool   `json:"authorized"`
}

// upgrader configures the WebSocket upgrader.
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(_ *http.Request) bool {
		// Origin checking is handled by CORS middleware
		return true
	},
}

// displayConn is one display socket. Three goroutines serve it: the
// writer drains the outbound queue, the reader dispatches client
// messages, and the forwarder pushes state replacements from the cell.
// The reader or writer finishing cancels the connection context and so
// stops all three; the forwarder finishing stops only itself.
type displayConn struct {
	server *Server
	conn   *websocket.Conn
	cancel context.CancelFunc

	// out holds at most one pending frame. A new frame displaces an
	// undelivered one, so a slow viewer sees the latest state rather
	// than a growing backlog.
	out chan any

	// token is the bearer token remembered from the last authenticate
	// message. It is re-authorised on every set; nothing about a past
	// success is trusted.
	mu    sync.Mutex
	token string
}

// handleDisplaySocket upgrades the HTTP connection and runs the display
// protocol until the client leaves or the server shuts down.
//
// The socket starts unauthenticated: get works for anyone holding the
// URL, which is how kiosk displays follow the state without an account.
// Only set demands a session with the operation permission.
func (s *Server) handleDisplaySocket(ctx context.Context, w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("websocket upgrade failed", "error", err)
		return
	}

	ctx, cancel := context.WithCancel(ctx)
	c := &displayConn{
		server: s,
		conn:   conn,
		cancel: cancel,
		out:    make(chan any, 1),
	}

	s.registerViewer(c)
	defer func() {
		cancel()
		conn.Close()
		s.unregisterViewer(c)
	}()

	// Subscribe before the pumps start so a replacement racing the
	// handshake is never missed.
	sub := s.cell.Subscribe()

	go c.writePump(ctx, s.wsCfg)
	go c.forwardChanges(ctx, sub)

	c.readPump(ctx, s.wsCfg)
}

// shutdown tears the connection down from outside, typically during
// server shutdown.
func (c *displayConn) shutdown() {
	c.cancel()
	c.conn.Close()
}

// offer queues a frame for delivery, displacing any undelivered one.
func (c *displayConn) offer(msg any) {
	for {
		select {
		case c.out <- msg:
			return
		default:
		}
		select {
		case <-c.out:
			// Stale frame dropped; retry with the fresh one.
		default:
		}
	}
}

// writePump delivers queued frames and protocol pings. It owns all
// writes to the connection.
func (c *displayConn) writePump(ctx context.Context, cfg config.WebSocketConfig) {
	ticker := time.NewTicker(cfg.GetPingInterval())
	defer func() {
		ticker.Stop()
		c.cancel()
		c.conn.Close()
	}()

	for {
		select {
		case <-ctx.Done():
			//nolint:errcheck // Best-effort close message
			c.conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"))
			return
		case msg := <-c.out:
			//nolint:errcheck // Best-effort deadline; write error caught below
			c.conn.SetWriteDeadline(time.Now().Add(cfg.GetPongTimeout()))
			if err := c.conn.WriteJSON(msg); err != nil {
				return
			}
		case <-ticker.C:
			//nolint:errcheck // Best-effort deadline; ping error caught below
			c.conn.SetWriteDeadline(time.Now().Add(cfg.GetPongTimeout()))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump reads and dispatches client messages. A malformed message is
// a protocol violation and closes this connection only; other viewers
// are unaffected.
func (c *displayConn) readPump(ctx context.Context, cfg config.WebSocketConfig) {
	defer c.cancel()

	readWait := cfg.GetPingInterval() + cfg.GetPongTimeout()
	c.conn.SetReadLimit(int64(cfg.MaxMessageSize))
	//nolint:errcheck // Best-effort deadline on connection setup
	c.conn.SetReadDeadline(time.Now().Add(readWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(readWait))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.server.logger.Debug("display socket read error", "error", err)
			}
			return
		}
		//nolint:errcheck // Best-effort deadline reset
		c.conn.SetReadDeadline(time.Now().Add(readWait))

		var msg wsInbound
		if err := json.Unmarshal(data, &msg); err != nil {
			c.server.logger.Debug("display socket sent invalid JSON, closing")
			return
		}

		switch msg.Type {
		case wsTypeGet:
			c.offer(wsStateMessage{Type: wsTypeState, State: c.server.cell.Current()})
		case wsTypeAuthenticate:
			c.handleAuthenticate(ctx, msg.Token)
		case wsTypeSet:
			if msg.State == nil {
				c.server.logger.Debug("display socket sent set without state, closing")
				return
			}
			c.handleSet(ctx, *msg.State)
		default:
			c.server.logger.Debug("display socket sent unknown message type, closing", "type", msg.Type)
			return
		}
	}
}

// forwardChanges pushes state replacements from the cell to the client.
// It never closes the connection itself: if it stops while the reader
// and writer are healthy, the client merely stops seeing live updates
// and can still get on demand.
func (c *displayConn) forwardChanges(ctx context.Context, sub *display.Subscription) {
	for {
		state, err := sub.Next(ctx)
		if err != nil {
			return
		}
		c.offer(wsStateMessage{Type: wsTypeState, State: state})
	}
}

// handleAuthenticate remembers the token for later set messages and
// reports whether it currently authorises display writes. The token is
// kept even when the check fails: a session created moments later can
// make it valid, and every set re-checks anyway.
func (c *displayConn) handleAuthenticate(ctx context.Context, token string) {
	c.mu.Lock()
	c.token = token
	c.mu.Unlock()

	authorized := c.authorize(ctx) == nil
	c.offer(wsAuthResult{Type: wsTypeAuthResult, Authorized: authorized})
}

// handleSet replaces the display state after re-authorising the
// remembered token. A denial answers auth_result rather than closing:
// the viewer half of the connection stays useful even when the session
// behind it has been revoked.
func (c *displayConn) handleSet(ctx context.Context, state display.State) {
	if err := c.authorize(ctx); err != nil {
		if c.server.influx != nil {
			c.server.influx.CountAuthFailure("authorize")
		}
		c.offer(wsAuthResult{Type: wsTypeAuthResult, Authorized: false})
		return
	}

	c.server.cell.Replace(state)
	c.server.mirrorState(state)
	if c.server.influx != nil {
		c.server.influx.CountStateReplace("websocket")
	}
}

// authorize re-validates the remembered token against the session
// authority, demanding the operation permission.
func (c *displayConn) authorize(ctx context.Context) error {
	c.mu.Lock()
	token := c.token
	c.mu.Unlock()

	if token == "" {
		return auth.ErrSessionNotFound
	}

	_, err := c.server.auth.Authorize(ctx, token, auth.PermOperation)
	if err != nil && !isAuthFailure(err) {
		c.server.logger.Error("display socket authorise failed", "error", err)
	}
	return err
}

// isAuthFailure reports whether err is an expected authorisation
// rejection rather than an infrastructure fault.
func isAuthFailure(err error) bool {
	return errors.Is(err, auth.ErrSessionNotFound) ||
		errors.Is(err, auth.ErrSessionInvalid) ||
		errors.Is(err, auth.ErrSessionExpired) ||
		errors.Is(err, auth.ErrUserNotFound) ||
		errors.Is(err, auth.ErrUserDisabled) ||
		errors.Is(err, auth.ErrForbidden)
}

// mirrorState publishes the new display state to the MQTT broker when a
// mirror is configured. Mirror failures are logged and swallowed; the
// broker is an observer, not a dependency.
func (s *Server) mirrorState(state display.State) {
	if s.mqtt == nil {
		return
	}
	if err := s.mqtt.PublishDisplayState(state); err != nil {
		s.logger.Warn("mqtt state mirror failed", "error", err)
	}
}
