// Copyright (c) 2025 Justin Cranford

package httpapi

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/CohesiumAI/openclaw-sub001/internal/gateway/credentials"
	"github.com/CohesiumAI/openclaw-sub001/internal/gateway/crypto"
	"github.com/CohesiumAI/openclaw-sub001/internal/gateway/ratelimit"
	"github.com/CohesiumAI/openclaw-sub001/internal/gateway/session"
	"github.com/CohesiumAI/openclaw-sub001/internal/shared/magic"
)

const cookieName = magic.SessionCookieName

func (s *Server) registerAuthRoutes(app *fiber.App) {
	grp := app.Group("/auth")
	grp.Post("/login", s.handleLogin)
	grp.Get("/me", s.handleMe)
	grp.Post("/refresh", s.handleRefresh)
	grp.Post("/logout", s.handleLogout)
}

type loginRequest struct {
	Username   string `json:"username"`
	Password   string `json:"password"`
	TOTPCode   string `json:"totpCode,omitempty"`
	BackupCode string `json:"backupCode,omitempty"`
}

type publicUser struct {
	Username    string `json:"username"`
	Role        string `json:"role"`
	TOTPEnabled bool   `json:"totpEnabled"`
}

// handleLogin implements the algorithm in spec.md §4.7's "POST /auth/login".
func (s *Server) handleLogin(c *fiber.Ctx) error {
	var req loginRequest
	if err := c.BodyParser(&req); err != nil {
		return writeErrorJSON(c, fiber.StatusBadRequest, "malformed request body")
	}
	ip := c.IP()
	ctx := c.UserContext()
	if ctx == nil {
		ctx = context.Background()
	}

	if locked := s.Limiter.CheckDoubleKey(ratelimit.IPKey(ip), ratelimit.UserKey(req.Username)); locked > 0 {
		c.Set("Retry-After", retryAfterSeconds(locked))
		return writeErrorJSON(c, fiber.StatusTooManyRequests, "too many attempts")
	}

	user := s.Creds.Get(req.Username)

	// Always run password verification, even for a nonexistent user, so the
	// response timing doesn't distinguish "no such user" from "wrong
	// password" (spec.md §4.7 step 2). Unknown users are checked against a
	// well-formed dummy scrypt hash, so the same scrypt cost is paid.
	candidateHash := "$scrypt$ln=14,r=8,p=1$" + strings.Repeat("A", 43) + "$" + strings.Repeat("A", 86)
	if user != nil {
		candidateHash = user.PasswordHash
	}
	// Verified off the request goroutine: scrypt/argon2 cost is deliberately
	// high, and the fiber worker shouldn't stall holding it.
	var matched, needsUpgrade bool
	select {
	case verifyResult := <-crypto.VerifyPasswordAsync(ctx, req.Password, candidateHash):
		matched, needsUpgrade = verifyResult.Matched, verifyResult.NeedsUpgrade
	case <-ctx.Done():
		return writeErrorJSON(c, fiber.StatusRequestTimeout, "request cancelled")
	}
	if user == nil || !matched {
		s.Limiter.RecordDoubleKeyFailure(ctx, ratelimit.IPKey(ip), ratelimit.UserKey(req.Username))
		s.Audit.Append("auth.login.failed", req.Username, ip, nil)
		return writeErrorJSON(c, fiber.StatusUnauthorized, "invalid credentials")
	}

	if needsUpgrade {
		if newHash, err := crypto.HashPassword(req.Password); err == nil {
			_ = s.Creds.UpdatePassword(user.Username, newHash)
		}
	}

	if user.TOTPEnabled {
		if ok := s.verifySecondFactor(ctx, user, req.TOTPCode, req.BackupCode); !ok {
			s.Limiter.RecordDoubleKeyFailure(ctx, ratelimit.IPKey(ip), ratelimit.UserKey(req.Username))
			s.Audit.Append("auth.login.failed", req.Username, ip, map[string]any{"reason": "second_factor"})
			return writeErrorJSON(c, fiber.StatusUnauthorized, "invalid credentials")
		}
	}

	s.Limiter.ResetDoubleKey(ctx, ratelimit.IPKey(ip), ratelimit.UserKey(req.Username))

	sess, err := s.Sessions.Create(ctx, session.CreateParams{Username: user.Username, Role: user.Role})
	if err != nil {
		return writeErrorJSON(c, fiber.StatusInternalServerError, "session creation failed")
	}
	if s.Persistence != nil {
		s.Persistence.ScheduleFlush()
	}

	setSessionCookie(c, sess.ID, c.Protocol() == "https")
	s.Audit.Append("auth.login.success", user.Username, ip, nil)

	return c.JSON(fiber.Map{
		"ok":        true,
		"user":      toPublicUser(user),
		"csrfToken": sess.CSRFToken,
	})
}

// verifySecondFactor enforces the XOR of totpCode/backupCode from spec.md
// §4.7 step 3 and applies the matching anti-replay/consumption side effect.
func (s *Server) verifySecondFactor(ctx context.Context, user *credentials.User, totpCode, backupCode string) bool {
	haveTOTP := totpCode != ""
	haveBackup := backupCode != ""
	if haveTOTP == haveBackup { // neither or both supplied
		return false
	}

	if haveTOTP {
		matched, ok := crypto.VerifyTOTP(user.TOTPSecret, totpCode, user.LastUsedTOTPCode, time.Now())
		if !ok {
			return false
		}
		_ = s.Creds.UpdateLastUsedTOTPCode(user.Username, matched)
		return true
	}

	idx := crypto.VerifyBackupCode(backupCode, user.BackupCodeHashes)
	if idx < 0 {
		return false
	}
	_ = s.Creds.RemoveBackupCodeHash(user.Username, idx)
	return true
}

// handleMe resolves the caller's session and refreshes its sliding expiry.
func (s *Server) handleMe(c *fiber.Ctx) error {
	sess := s.requireSession(c)
	if sess == nil {
		return nil
	}
	user := s.Creds.Get(sess.Username)
	if user == nil {
		return writeErrorJSON(c, fiber.StatusUnauthorized, "session expired or not found")
	}
	return c.JSON(fiber.Map{"ok": true, "user": toPublicUser(user), "csrfToken": sess.CSRFToken})
}

// handleRefresh is the sliding-window keepalive endpoint from spec.md §4.8.
func (s *Server) handleRefresh(c *fiber.Ctx) error {
	return s.handleMe(c)
}

// handleLogout always returns 200, per spec.md §4.7.
func (s *Server) handleLogout(c *fiber.Ctx) error {
	ctx := c.UserContext()
	if ctx == nil {
		ctx = context.Background()
	}
	if id := c.Cookies(cookieName); id != "" {
		s.Sessions.DeleteByID(ctx, id)
		if s.Persistence != nil {
			s.Persistence.ScheduleFlush()
		}
	}
	clearSessionCookie(c)
	return c.JSON(fiber.Map{"ok": true})
}

func setSessionCookie(c *fiber.Ctx, id string, secure bool) {
	c.Cookie(&fiber.Cookie{
		Name:     cookieName,
		Value:    id,
		Path:     "/",
		HTTPOnly: true,
		SameSite: fiber.CookieSameSiteStrictMode,
		MaxAge:   1800,
		Secure:   secure,
	})
}

func clearSessionCookie(c *fiber.Ctx) {
	c.Cookie(&fiber.Cookie{
		Name:     cookieName,
		Value:    "",
		Path:     "/",
		HTTPOnly: true,
		SameSite: fiber.CookieSameSiteStrictMode,
		MaxAge:   -1,
	})
}

func retryAfterSeconds(d time.Duration) string {
	secs := int64(d / time.Second)
	if secs < 1 {
		secs = 1
	}
	return strconv.FormatInt(secs, 10)
}

func toPublicUser(u *credentials.User) publicUser {
	return publicUser{Username: u.Username, Role: string(u.Role), TOTPEnabled: u.TOTPEnabled}
}
