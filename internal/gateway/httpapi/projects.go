// Copyright (c) 2025 Justin Cranford

package httpapi

import (
	"encoding/base64"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/CohesiumAI/openclaw-sub001/internal/gateway/projects"
	"github.com/CohesiumAI/openclaw-sub001/internal/shared/gatewayerr"
)

// registerProjectsRoutes wires the REST CRUD surface implied by spec.md
// §3's Project record, per SPEC_FULL.md §4.7.
func (s *Server) registerProjectsRoutes(app *fiber.App) {
	grp := app.Group("/api/projects")
	grp.Get("/", s.handleListProjects)
	grp.Post("/", s.handleCreateProject)
	grp.Delete("/:id", s.handleDeleteProject)
	grp.Post("/:id/files", s.handleAddProjectFile)
	grp.Delete("/:id/files/:fileId", s.handleDeleteProjectFile)
}

func (s *Server) handleListProjects(c *fiber.Ctx) error {
	sess := s.requireSession(c)
	if sess == nil {
		return nil
	}
	list, err := s.Projects.List(sess.Username)
	if err != nil {
		return writeErrorJSON(c, fiber.StatusInternalServerError, "failed to list projects")
	}
	return c.JSON(fiber.Map{"ok": true, "projects": list})
}

type createProjectRequest struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Color       string   `json:"color"`
	SessionKeys []string `json:"sessionKeys"`
}

func (s *Server) handleCreateProject(c *fiber.Ctx) error {
	sess := s.requireSession(c)
	if sess == nil {
		return nil
	}
	if !s.requireCSRF(c, sess) {
		return nil
	}

	var req createProjectRequest
	if err := c.BodyParser(&req); err != nil {
		return writeErrorJSON(c, fiber.StatusBadRequest, "malformed request body")
	}
	if req.ID == "" {
		req.ID = uuid.NewString()
	}

	proj := &projects.Project{ID: req.ID, Name: req.Name, Color: req.Color, SessionKeys: req.SessionKeys}
	if err := s.Projects.Create(sess.Username, proj); err != nil {
		return mapGatewayErr(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"ok": true, "project": proj})
}

func (s *Server) handleDeleteProject(c *fiber.Ctx) error {
	sess := s.requireSession(c)
	if sess == nil {
		return nil
	}
	if !s.requireCSRF(c, sess) {
		return nil
	}
	if err := s.Projects.Delete(sess.Username, c.Params("id")); err != nil {
		return mapGatewayErr(c, err)
	}
	return c.JSON(fiber.Map{"ok": true})
}

type addFileRequest struct {
	FileName       string `json:"fileName"`
	MimeType       string `json:"mimeType"`
	SessionKey     string `json:"sessionKey"`
	PayloadBase64  string `json:"payloadBase64"`
}

func (s *Server) handleAddProjectFile(c *fiber.Ctx) error {
	sess := s.requireSession(c)
	if sess == nil {
		return nil
	}
	if !s.requireCSRF(c, sess) {
		return nil
	}

	var req addFileRequest
	if err := c.BodyParser(&req); err != nil {
		return writeErrorJSON(c, fiber.StatusBadRequest, "malformed request body")
	}
	payload, err := base64.StdEncoding.DecodeString(req.PayloadBase64)
	if err != nil {
		return writeErrorJSON(c, fiber.StatusBadRequest, "payload is not valid base64")
	}

	meta := projects.File{
		ID:         uuid.NewString(),
		FileName:   req.FileName,
		MimeType:   req.MimeType,
		SessionKey: req.SessionKey,
		SizeBytes:  int64(len(payload)),
	}
	if err := s.Projects.AddFile(sess.Username, c.Params("id"), meta, payload); err != nil {
		return mapGatewayErr(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"ok": true, "file": meta})
}

func (s *Server) handleDeleteProjectFile(c *fiber.Ctx) error {
	sess := s.requireSession(c)
	if sess == nil {
		return nil
	}
	if !s.requireCSRF(c, sess) {
		return nil
	}
	if err := s.Projects.RemoveFile(sess.Username, c.Params("id"), c.Params("fileId")); err != nil {
		return mapGatewayErr(c, err)
	}
	return c.JSON(fiber.Map{"ok": true})
}

func mapGatewayErr(c *fiber.Ctx, err error) error {
	status := fiber.StatusInternalServerError
	switch gatewayerr.KindOf(err) {
	case gatewayerr.KindInvalidInput:
		status = fiber.StatusBadRequest
	case gatewayerr.KindNotFound:
		status = fiber.StatusNotFound
	case gatewayerr.KindConflict:
		status = fiber.StatusConflict
	case gatewayerr.KindResourceLimit:
		status = fiber.StatusRequestEntityTooLarge
	}
	return writeErrorJSON(c, status, err.Error())
}
