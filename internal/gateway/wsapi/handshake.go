// Copyright (c) 2025 Justin Cranford

// Package wsapi implements the gateway's privileged WebSocket surface:
// cookie-based handshake authentication and scoped method dispatch, per
// spec.md §4.7's "WebSocket handshake" section.
package wsapi

import (
	"crypto/subtle"
	"log/slog"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"

	"github.com/CohesiumAI/openclaw-sub001/internal/gateway/session"
	"github.com/CohesiumAI/openclaw-sub001/internal/shared/magic"
)

// Conn is the per-connection context stamped at handshake time. It is
// passed explicitly into every handler closure — never stored in a
// thread-local — per SPEC_FULL.md §9's "opaque connection context" note.
type Conn struct {
	WS          *websocket.Conn
	AuthUser    string
	AuthScopes  []magic.Scope
	SessionID   string
	LegacyToken bool
}

// HasScope reports whether the connection carries scope.
func (c *Conn) HasScope(scope magic.Scope) bool {
	for _, s := range c.AuthScopes {
		if s == scope {
			return true
		}
	}
	return false
}

// Server dispatches authenticated WebSocket connections to Handlers.
type Server struct {
	Sessions    *session.Store
	Logger      *slog.Logger
	LegacyToken string // empty disables legacy-token fallback
	Handlers    *Dispatcher
}

// Upgrade is the fiber handler registered on a websocket.New-wrapped route.
// It resolves the session cookie, falls back to the legacy token if
// configured, and otherwise closes the connection per spec.md §4.7.
func (s *Server) Upgrade(c *websocket.Conn) {
	conn := s.authenticate(c)
	defer c.Close()

	if conn == nil {
		_ = c.WriteJSON(fiber.Map{"ok": false, "error": "policy violation: authentication required"})
		return
	}

	s.Logger.Info("ws connected", "user", conn.AuthUser)
	s.serve(conn)
}

func (s *Server) authenticate(c *websocket.Conn) *Conn {
	cookie := c.Cookies(magic.SessionCookieName)
	if cookie != "" {
		if sess := s.Sessions.Refresh(cookie); sess != nil {
			return &Conn{WS: c, AuthUser: sess.Username, AuthScopes: sess.Scopes, SessionID: sess.ID}
		}
	}

	if s.LegacyToken != "" {
		token := c.Query("token")
		if subtle.ConstantTimeCompare([]byte(token), []byte(s.LegacyToken)) == 1 {
			return &Conn{WS: c, AuthUser: "legacy", LegacyToken: true}
		}
	}
	return nil
}

// serve reads one JSON-RPC-style message at a time and dispatches it,
// writing back either a result or an error envelope.
func (s *Server) serve(conn *Conn) {
	for {
		var req Request
		if err := conn.WS.ReadJSON(&req); err != nil {
			return
		}
		resp := s.Handlers.Dispatch(conn, req)
		if err := conn.WS.WriteJSON(resp); err != nil {
			return
		}
	}
}

// Request is an incoming privileged method call.
type Request struct {
	ID     string          `json:"id"`
	Method string          `json:"method"`
	Params RawParams       `json:"params"`
}

// RawParams defers decoding until the method handler knows its shape.
type RawParams = map[string]any

// Response is the reply envelope for a Request.
type Response struct {
	ID     string `json:"id"`
	OK     bool   `json:"ok"`
	Result any    `json:"result,omitempty"`
	Error  string `json:"error,omitempty"`
}
