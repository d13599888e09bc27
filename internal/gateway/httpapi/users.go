// Copyright (c) 2025 Justin Cranford

package httpapi

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/CohesiumAI/openclaw-sub001/internal/gateway/credentials"
	"github.com/CohesiumAI/openclaw-sub001/internal/gateway/crypto"
	"github.com/CohesiumAI/openclaw-sub001/internal/shared/magic"
)

// registerUserRoutes wires the HTTP mirror of the privileged WebSocket user
// lifecycle methods named in SPEC_FULL.md §4.7. Scope enforcement follows
// the same rule as the WS surface: admin-scoped except the self-service
// subset, which only requires a valid session.
func (s *Server) registerUserRoutes(app *fiber.App) {
	grp := app.Group("/api/users")
	grp.Get("/", s.requireAdmin(s.handleListUsers))
	grp.Post("/", s.requireAdmin(s.handleCreateUser))
	grp.Delete("/:username", s.requireAdmin(s.handleDeleteUser))
	grp.Put("/:username/role", s.requireAdmin(s.handleSetRole))
	grp.Post("/:username/revoke-sessions", s.requireAdmin(s.handleRevokeAllSessions))

	grp.Put("/:username/password", s.handleSetPassword)
	grp.Post("/:username/totp/enroll-begin", s.handleTOTPEnrollBegin)
	grp.Post("/:username/totp/enroll-confirm", s.handleTOTPEnrollConfirm)
	grp.Post("/:username/totp/disable", s.handleTOTPDisable)
	grp.Post("/:username/totp/backup-regenerate", s.handleTOTPBackupRegenerate)
}

// requireAdmin wraps a handler so it only runs for sessions carrying
// operator.admin, after the usual session+CSRF checks.
func (s *Server) requireAdmin(next fiber.Handler) fiber.Handler {
	return func(c *fiber.Ctx) error {
		sess := s.requireSession(c)
		if sess == nil {
			return nil
		}
		if !s.requireCSRF(c, sess) {
			return nil
		}
		if !s.requireScope(c, sess, string(magic.ScopeAdmin)) {
			return nil
		}
		return next(c)
	}
}

// requireSelfOrAdmin returns the caller's session if it belongs to the
// :username path param or carries operator.admin; otherwise writes 403 and
// returns nil. Self-service routes derive the principal from the path
// param only after this check passes, never trusting it blindly.
func (s *Server) requireSelfOrAdmin(c *fiber.Ctx) (*credentials.User, bool) {
	sess := s.requireSession(c)
	if sess == nil {
		return nil, false
	}
	if !s.requireCSRF(c, sess) {
		return nil, false
	}
	target := c.Params("username")
	isSelf := crypto.FoldUsername(target) == crypto.FoldUsername(sess.Username)
	if !isSelf && !s.requireScope(c, sess, string(magic.ScopeAdmin)) {
		return nil, false
	}
	user := s.Creds.Get(target)
	if user == nil {
		writeErrorJSON(c, fiber.StatusNotFound, "user not found")
		return nil, false
	}
	return user, true
}

func (s *Server) handleListUsers(c *fiber.Ctx) error {
	list := s.Creds.List()
	out := make([]publicUser, 0, len(list))
	for _, u := range list {
		out = append(out, toPublicUser(u))
	}
	return c.JSON(fiber.Map{"ok": true, "users": out})
}

type createUserRequest struct {
	Username string     `json:"username"`
	Password string     `json:"password"`
	Role     magic.Role `json:"role"`
}

func (s *Server) handleCreateUser(c *fiber.Ctx) error {
	var req createUserRequest
	if err := c.BodyParser(&req); err != nil {
		return writeErrorJSON(c, fiber.StatusBadRequest, "malformed request body")
	}
	hash, err := crypto.HashPassword(req.Password)
	if err != nil {
		return writeErrorJSON(c, fiber.StatusInternalServerError, "password hashing failed")
	}
	user := &credentials.User{Username: req.Username, PasswordHash: hash, Role: req.Role}
	if err := s.Creds.Create(user); err != nil {
		return mapGatewayErr(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"ok": true, "user": toPublicUser(user)})
}

func (s *Server) handleDeleteUser(c *fiber.Ctx) error {
	username := c.Params("username")
	if err := s.Creds.Delete(username); err != nil {
		return mapGatewayErr(c, err)
	}
	ctx := c.UserContext()
	s.Sessions.DeleteByUser(ctx, username)
	return c.JSON(fiber.Map{"ok": true})
}

type setRoleRequest struct {
	Role magic.Role `json:"role"`
}

func (s *Server) handleSetRole(c *fiber.Ctx) error {
	var req setRoleRequest
	if err := c.BodyParser(&req); err != nil {
		return writeErrorJSON(c, fiber.StatusBadRequest, "malformed request body")
	}
	if err := s.Creds.UpdateRole(c.Params("username"), req.Role); err != nil {
		return mapGatewayErr(c, err)
	}
	return c.JSON(fiber.Map{"ok": true})
}

func (s *Server) handleRevokeAllSessions(c *fiber.Ctx) error {
	username := c.Params("username")
	s.Sessions.DeleteByUser(c.UserContext(), username)
	if s.Persistence != nil {
		s.Persistence.ScheduleFlush()
	}
	return c.JSON(fiber.Map{"ok": true})
}

type setPasswordRequest struct {
	CurrentPassword string `json:"currentPassword"`
	NewPassword     string `json:"newPassword"`
}

// handleSetPassword requires current-password verification, per spec.md
// §4.9's "2FA enrolment ... gated by current-password verification" rule,
// generalized here to every self-service credential change.
func (s *Server) handleSetPassword(c *fiber.Ctx) error {
	user, ok := s.requireSelfOrAdmin(c)
	if !ok {
		return nil
	}
	var req setPasswordRequest
	if err := c.BodyParser(&req); err != nil {
		return writeErrorJSON(c, fiber.StatusBadRequest, "malformed request body")
	}
	matched, _, _ := crypto.VerifyPassword(req.CurrentPassword, user.PasswordHash)
	if !matched {
		return writeErrorJSON(c, fiber.StatusUnauthorized, "current password incorrect")
	}
	hash, err := crypto.HashPassword(req.NewPassword)
	if err != nil {
		return writeErrorJSON(c, fiber.StatusInternalServerError, "password hashing failed")
	}
	if err := s.Creds.UpdatePassword(user.Username, hash); err != nil {
		return mapGatewayErr(c, err)
	}
	return c.JSON(fiber.Map{"ok": true})
}

type totpEnrollBeginResponse struct {
	Secret            string `json:"secret"`
	ProvisioningURI   string `json:"provisioningUri"`
}

// handleTOTPEnrollBegin generates a fresh secret and returns its
// provisioning URI; the secret is not yet persisted as enabled until
// handleTOTPEnrollConfirm succeeds, per spec.md §4.9's enrolment state
// machine ("pending" state).
func (s *Server) handleTOTPEnrollBegin(c *fiber.Ctx) error {
	user, ok := s.requireSelfOrAdmin(c)
	if !ok {
		return nil
	}
	secret, err := crypto.GenerateTOTPSecret()
	if err != nil {
		return writeErrorJSON(c, fiber.StatusInternalServerError, "secret generation failed")
	}
	if err := s.Creds.UpdateTOTP(user.Username, credentials.TOTPFields{Enabled: false, Secret: secret}); err != nil {
		return mapGatewayErr(c, err)
	}
	return c.JSON(fiber.Map{
		"ok": true,
		"enrollment": totpEnrollBeginResponse{
			Secret:          secret,
			ProvisioningURI: crypto.TOTPProvisioningURI("OpenClaw", user.Username, secret),
		},
	})
}

type totpConfirmRequest struct {
	Code string `json:"code"`
}

// handleTOTPEnrollConfirm transitions pending -> enabled on first
// successful code, generating backup codes, per spec.md §4.9.
func (s *Server) handleTOTPEnrollConfirm(c *fiber.Ctx) error {
	user, ok := s.requireSelfOrAdmin(c)
	if !ok {
		return nil
	}
	var req totpConfirmRequest
	if err := c.BodyParser(&req); err != nil {
		return writeErrorJSON(c, fiber.StatusBadRequest, "malformed request body")
	}
	if user.TOTPSecret == "" {
		return writeErrorJSON(c, fiber.StatusConflict, "no pending totp enrollment")
	}
	matched, ok2 := crypto.VerifyTOTP(user.TOTPSecret, req.Code, user.LastUsedTOTPCode, time.Now())
	if !ok2 {
		return writeErrorJSON(c, fiber.StatusUnauthorized, "invalid totp code")
	}

	codes, err := crypto.GenerateBackupCodes(magic.BackupCodeCount)
	if err != nil {
		return writeErrorJSON(c, fiber.StatusInternalServerError, "backup code generation failed")
	}
	hashes := make([]string, 0, len(codes))
	for _, code := range codes {
		h, err := crypto.HashBackupCode(code)
		if err != nil {
			return writeErrorJSON(c, fiber.StatusInternalServerError, "backup code hashing failed")
		}
		hashes = append(hashes, h)
	}

	fields := credentials.TOTPFields{Enabled: true, Secret: user.TOTPSecret, BackupCodeHashes: hashes, LastUsedCode: matched}
	if err := s.Creds.UpdateTOTP(user.Username, fields); err != nil {
		return mapGatewayErr(c, err)
	}
	return c.JSON(fiber.Map{"ok": true, "backupCodes": codes})
}

type totpDisableRequest struct {
	Password string `json:"password"`
}

func (s *Server) handleTOTPDisable(c *fiber.Ctx) error {
	user, ok := s.requireSelfOrAdmin(c)
	if !ok {
		return nil
	}
	var req totpDisableRequest
	if err := c.BodyParser(&req); err != nil {
		return writeErrorJSON(c, fiber.StatusBadRequest, "malformed request body")
	}
	matched, _, _ := crypto.VerifyPassword(req.Password, user.PasswordHash)
	if !matched {
		return writeErrorJSON(c, fiber.StatusUnauthorized, "password incorrect")
	}
	if err := s.Creds.UpdateTOTP(user.Username, credentials.TOTPFields{Enabled: false}); err != nil {
		return mapGatewayErr(c, err)
	}
	return c.JSON(fiber.Map{"ok": true})
}

func (s *Server) handleTOTPBackupRegenerate(c *fiber.Ctx) error {
	user, ok := s.requireSelfOrAdmin(c)
	if !ok {
		return nil
	}
	var req totpDisableRequest
	if err := c.BodyParser(&req); err != nil {
		return writeErrorJSON(c, fiber.StatusBadRequest, "malformed request body")
	}
	matched, _, _ := crypto.VerifyPassword(req.Password, user.PasswordHash)
	if !matched {
		return writeErrorJSON(c, fiber.StatusUnauthorized, "password incorrect")
	}
	if !user.TOTPEnabled {
		return writeErrorJSON(c, fiber.StatusConflict, "totp is not enabled")
	}

	codes, err := crypto.GenerateBackupCodes(magic.BackupCodeCount)
	if err != nil {
		return writeErrorJSON(c, fiber.StatusInternalServerError, "backup code generation failed")
	}
	hashes := make([]string, 0, len(codes))
	for _, code := range codes {
		h, err := crypto.HashBackupCode(code)
		if err != nil {
			return writeErrorJSON(c, fiber.StatusInternalServerError, "backup code hashing failed")
		}
		hashes = append(hashes, h)
	}
	fields := credentials.TOTPFields{Enabled: true, Secret: user.TOTPSecret, BackupCodeHashes: hashes, LastUsedCode: user.LastUsedTOTPCode}
	if err := s.Creds.UpdateTOTP(user.Username, fields); err != nil {
		return mapGatewayErr(c, err)
	}
	return c.JSON(fiber.Map{"ok": true, "backupCodes": codes})
}
