// Copyright (c) 2025 Justin Cranford

// Package httpapi wires the gateway's fiber-based HTTP surface: the public
// auth endpoints, the CSRF/security-header middleware stack, and the REST
// mirrors of the privileged WebSocket methods, per spec.md §4.7.
package httpapi

import (
	"context"
	"log/slog"
	"time"

	"github.com/gofiber/contrib/otelfiber"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/gofiber/swagger"

	"github.com/CohesiumAI/openclaw-sub001/internal/gateway/audit"
	"github.com/CohesiumAI/openclaw-sub001/internal/gateway/credentials"
	"github.com/CohesiumAI/openclaw-sub001/internal/gateway/preferences"
	"github.com/CohesiumAI/openclaw-sub001/internal/gateway/projects"
	"github.com/CohesiumAI/openclaw-sub001/internal/gateway/ratelimit"
	"github.com/CohesiumAI/openclaw-sub001/internal/gateway/session"
	"github.com/CohesiumAI/openclaw-sub001/internal/gateway/wsapi"
	"github.com/CohesiumAI/openclaw-sub001/internal/shared/config"
	"github.com/CohesiumAI/openclaw-sub001/internal/shared/magic"
)

// Server bundles the fiber app with the gateway components its handlers
// operate on. It owns no state of its own beyond routing.
type Server struct {
	App *fiber.App

	Cfg         *config.Config
	Logger      *slog.Logger
	Sessions    *session.Store
	Persistence *session.Persistence
	Creds       *credentials.Store
	Limiter     *ratelimit.Limiter
	Audit       *audit.Log
	Prefs       *preferences.Store
	Projects    *projects.Store
	WS          *wsapi.Server

	openapiDoc []byte
}

// Deps is the constructor input for Server. Persistence and WS may be nil:
// persistence flushes and the /ws route are then skipped. openapiDoc is not
// part of Deps; New derives it internally.
type Deps struct {
	Cfg         *config.Config
	Logger      *slog.Logger
	Sessions    *session.Store
	Persistence *session.Persistence
	Creds       *credentials.Store
	Limiter     *ratelimit.Limiter
	Audit       *audit.Log
	Prefs       *preferences.Store
	Projects    *projects.Store
	WS          *wsapi.Server
}

// New builds the fiber app and registers every route.
func New(d Deps) *Server {
	s := &Server{
		Cfg:         d.Cfg,
		Logger:      d.Logger,
		Sessions:    d.Sessions,
		Persistence: d.Persistence,
		Creds:       d.Creds,
		Limiter:     d.Limiter,
		Audit:       d.Audit,
		Prefs:       d.Prefs,
		Projects:    d.Projects,
		WS:          d.WS,
	}

	app := fiber.New(fiber.Config{
		ReadTimeout:  magic.ServerRequestDeadline,
		WriteTimeout: magic.ServerRequestDeadline,
		IdleTimeout:  2 * magic.ServerRequestDeadline,
		AppName:      "openclaw-gateway",
	})

	app.Use(requestid.New())
	app.Use(otelfiber.Middleware())
	app.Use(s.requestDeadlineMiddleware())
	app.Use(s.securityHeadersMiddleware())
	app.Use(s.accessLogMiddleware())

	s.registerAuthRoutes(app)
	s.registerPreferencesRoutes(app)
	s.registerProjectsRoutes(app)
	s.registerUserRoutes(app)
	s.registerOpenAPIRoutes(app)

	if s.WS != nil {
		s.WS.Register(app, "/ws")
	}

	app.Get("/docs/*", swagger.HandlerDefault)

	s.App = app
	return s
}

// accessLogMiddleware emits a structured line per request through the
// shared logger instead of fiber's default stdout logger, per SPEC_FULL.md
// §4.11's "every gateway component logs through it" rule.
func (s *Server) accessLogMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()
		s.Logger.Info("http request",
			"method", c.Method(),
			"path", c.Path(),
			"status", c.Response().StatusCode(),
			"duration_ms", time.Since(start).Milliseconds(),
			"request_id", c.Locals("requestid"),
		)
		return err
	}
}

// requestDeadlineMiddleware bounds every request to ServerRequestDeadline,
// per spec.md §5's "HTTP requests inherit a server-wide deadline".
func (s *Server) requestDeadlineMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		ctx, cancel := context.WithTimeout(c.Context(), magic.ServerRequestDeadline)
		defer cancel()
		c.SetUserContext(ctx)
		return c.Next()
	}
}
