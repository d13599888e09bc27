// Copyright (c) 2025 Justin Cranford

package httpapi

import "github.com/gofiber/fiber/v2"

// registerPreferencesRoutes wires the REST mirror of `user.preferences.get/set`
// named in SPEC_FULL.md §4.7.
func (s *Server) registerPreferencesRoutes(app *fiber.App) {
	grp := app.Group("/api/preferences")
	grp.Get("/", s.handleGetPreferences)
	grp.Put("/", s.handleSetPreferences)
}

func (s *Server) handleGetPreferences(c *fiber.Ctx) error {
	sess := s.requireSession(c)
	if sess == nil {
		return nil
	}
	doc, err := s.Prefs.Get(sess.Username)
	if err != nil {
		return writeErrorJSON(c, fiber.StatusInternalServerError, "failed to load preferences")
	}
	return c.JSON(fiber.Map{"ok": true, "preferences": doc})
}

func (s *Server) handleSetPreferences(c *fiber.Ctx) error {
	sess := s.requireSession(c)
	if sess == nil {
		return nil
	}
	if !s.requireCSRF(c, sess) {
		return nil
	}

	var patch map[string]any
	if err := c.BodyParser(&patch); err != nil {
		return writeErrorJSON(c, fiber.StatusBadRequest, "malformed request body")
	}

	doc, err := s.Prefs.Merge(sess.Username, patch)
	if err != nil {
		return writeErrorJSON(c, fiber.StatusInternalServerError, "failed to save preferences")
	}
	return c.JSON(fiber.Map{"ok": true, "preferences": doc})
}
