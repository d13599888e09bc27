// Copyright (c) 2025 Justin Cranford

package command

import (
	"github.com/spf13/cobra"

	"github.com/CohesiumAI/openclaw-sub001/internal/gateway/audit"
	"github.com/CohesiumAI/openclaw-sub001/internal/gateway/httpapi"
	"github.com/CohesiumAI/openclaw-sub001/internal/gateway/preferences"
	"github.com/CohesiumAI/openclaw-sub001/internal/gateway/projects"
	"github.com/CohesiumAI/openclaw-sub001/internal/gateway/ratelimit"
	"github.com/CohesiumAI/openclaw-sub001/internal/gateway/session"
	"github.com/CohesiumAI/openclaw-sub001/internal/gateway/tlsboot"
	"github.com/CohesiumAI/openclaw-sub001/internal/gateway/wsapi"
	"github.com/CohesiumAI/openclaw-sub001/internal/shared/logging"
	"github.com/CohesiumAI/openclaw-sub001/internal/shared/telemetry"
)

func newServeCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the gateway's HTTP/WebSocket server",
		RunE:  runServe,
	}
	return cmd
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return fail(cmd, "load config: %v", err)
	}
	if err := ensureStateDir(cfg); err != nil {
		return fail(cmd, "create state dir: %v", err)
	}

	logger := logging.Default()
	meters, err := telemetry.NewStdout()
	if err != nil {
		return fail(cmd, "telemetry init: %v", err)
	}
	defer meters.Shutdown(cmd.Context())

	creds, err := openCredentials(cfg)
	if err != nil {
		return fail(cmd, "open credentials: %v", err)
	}

	limiter := ratelimit.New(ratelimit.WithMeters(meters.RateLimitLocked, meters.RateLimitReset))

	auditLog := audit.New(audit.WithLogger(logging.WithComponent(logger, "audit")),
		audit.WithMeters(meters.AuditFlushed, meters.AuditRotated, meters.AuditWriteFailed))
	if err := auditLog.Init(cfg.StateDir, cfg.AuditRetention); err != nil {
		return fail(cmd, "audit init: %v", err)
	}
	defer auditLog.Shutdown()

	sessions := session.New(
		session.WithTTL(cfg.SessionTTL()),
		session.WithMeters(meters.SessionsCreated, meters.SessionsExpired, meters.SessionsRevoked),
	)
	persistence, err := session.NewPersistence(cfg.StateDir, sessions, logging.WithComponent(logger, "session-persistence"))
	if err != nil {
		return fail(cmd, "session persistence init: %v", err)
	}
	persistence.Load()
	persistence.Start()
	defer persistence.Stop()

	prefs := preferences.New(cfg.StateDir)
	projectsStore := projects.New(cfg.StateDir)

	dispatcher := wsapi.NewDispatcher(sessions, creds, prefs, persistence)
	wsServer := &wsapi.Server{
		Sessions:    sessions,
		Logger:      logging.WithComponent(logger, "wsapi"),
		LegacyToken: cfg.LegacyTokenAuth,
		Handlers:    dispatcher,
	}

	server := httpapi.New(httpapi.Deps{
		Cfg:         cfg,
		Logger:      logging.WithComponent(logger, "httpapi"),
		Sessions:    sessions,
		Persistence: persistence,
		Creds:       creds,
		Limiter:     limiter,
		Audit:       auditLog,
		Prefs:       prefs,
		Projects:    projectsStore,
		WS:          wsServer,
	})

	if cfg.TLSEnabled {
		certPath, keyPath := tlsboot.Paths(cfg.StateDir)
		if !tlsboot.Status(cfg.StateDir) {
			if err := tlsboot.Enable(cfg.StateDir, "openclaw-gateway"); err != nil {
				return fail(cmd, "tls bootstrap: %v", err)
			}
		}
		logger.Info("gateway listening", "addr", cfg.ListenAddr, "tls", true)
		return server.App.ListenTLS(cfg.ListenAddr, certPath, keyPath)
	}

	logger.Info("gateway listening", "addr", cfg.ListenAddr, "tls", false)
	return server.App.Listen(cfg.ListenAddr)
}
