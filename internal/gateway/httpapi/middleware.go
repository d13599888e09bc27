// Copyright (c) 2025 Justin Cranford

package httpapi

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"fmt"

	"github.com/gofiber/fiber/v2"

	"github.com/CohesiumAI/openclaw-sub001/internal/gateway/session"
)

const csrfHeader = "X-CSRF-Token"

// stateChangingMethods is the set of HTTP verbs that require a valid CSRF
// token, per spec.md §4.7.
var stateChangingMethods = map[string]bool{
	fiber.MethodPost:   true,
	fiber.MethodPut:    true,
	fiber.MethodPatch:  true,
	fiber.MethodDelete: true,
}

// securityHeadersMiddleware sets the Control UI response headers named in
// spec.md §4.7, including a fresh per-response CSP nonce.
func (s *Server) securityHeadersMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		nonce, err := randomNonce()
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "nonce generation failed")
		}
		c.Locals("cspNonce", nonce)

		c.Set("X-Frame-Options", "DENY")
		c.Set("X-XSS-Protection", "0")
		c.Set("Permissions-Policy", "camera=(), microphone=(self), geolocation=(), payment=()")
		c.Set("Content-Security-Policy", fmt.Sprintf(
			"frame-ancestors 'none'; script-src 'self' 'nonce-%s'; connect-src 'self' ws: wss:; img-src 'self' data: blob:",
			nonce,
		))
		return c.Next()
	}
}

func randomNonce() (string, error) {
	raw := make([]byte, 16)
	if _, err := rand.Read(raw); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(raw), nil
}

// requireSession resolves the caller's session from the openclaw_session
// cookie, refreshing its sliding expiry. Responds 401 and returns nil when
// no live session exists.
func (s *Server) requireSession(c *fiber.Ctx) *session.Session {
	id := c.Cookies(cookieName)
	if id == "" {
		writeErrorJSON(c, fiber.StatusUnauthorized, "authentication required")
		return nil
	}
	sess := s.Sessions.Refresh(id)
	if sess == nil {
		writeErrorJSON(c, fiber.StatusUnauthorized, "session expired or not found")
		return nil
	}
	if s.Persistence != nil {
		s.Persistence.ScheduleFlush()
	}
	return sess
}

// requireCSRF validates X-CSRF-Token against sess.CSRFToken for
// state-changing verbs. Safe verbs (GET/HEAD/OPTIONS) are exempt.
func (s *Server) requireCSRF(c *fiber.Ctx, sess *session.Session) bool {
	if !stateChangingMethods[c.Method()] {
		return true
	}
	token := c.Get(csrfHeader)
	if subtle.ConstantTimeCompare([]byte(token), []byte(sess.CSRFToken)) != 1 {
		writeErrorJSON(c, fiber.StatusForbidden, "csrf token mismatch")
		return false
	}
	return true
}

// requireScope reports whether sess carries scope, writing a 403 if not.
func (s *Server) requireScope(c *fiber.Ctx, sess *session.Session, scope string) bool {
	for _, sc := range sess.Scopes {
		if string(sc) == scope {
			return true
		}
	}
	writeErrorJSON(c, fiber.StatusForbidden, "missing required scope")
	return false
}

func writeErrorJSON(c *fiber.Ctx, status int, message string) error {
	return c.Status(status).JSON(fiber.Map{"ok": false, "error": message})
}
