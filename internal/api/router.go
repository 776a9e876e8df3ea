package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/adamscao/agentca/internal/api/handlers"
	"github.com/adamscao/agentca/internal/api/middleware"
	"github.com/adamscao/agentca/internal/auth"
	"github.com/adamscao/agentca/internal/ca"
	"github.com/adamscao/agentca/internal/clock"
	"github.com/adamscao/agentca/internal/config"
	"github.com/adamscao/agentca/internal/db/repository"
	"github.com/adamscao/agentca/internal/session"
)

const shutdownTimeout = 10 * time.Second

// Server represents the HTTP server
type Server struct {
	router *gin.Engine
	config *config.Config
	logger *slog.Logger
}

// NewServer creates a new API server
func NewServer(
	cfg *config.Config,
	authority *ca.Authority,
	authenticator *auth.Authenticator,
	sessions *session.Manager,
	auditRepo *repository.AuditRepository,
	clk clock.Clock,
	logger *slog.Logger,
) *Server {
	// Set Gin mode
	if cfg.Logging.Level == "debug" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()

	// Global middleware
	router.Use(gin.Recovery())
	router.Use(middleware.Logger(logger))

	// Create handlers
	auditor := handlers.NewAuditor(auditRepo, logger)
	caHandler := handlers.NewCAHandler(authority)
	authHandler := handlers.NewAuthHandler(authenticator, auditor)
	sessionHandler := handlers.NewSessionHandler(sessions, auditor)
	adminHandler := handlers.NewAdminHandler(authority, sessions, auditRepo, auditor)

	// API v1 routes
	v1 := router.Group("/v1")
	{
		// Public endpoints
		caGroup := v1.Group("/ca")
		{
			caGroup.GET("/root", caHandler.GetRootCertificate)
		}

		// Agent authentication
		authGroup := v1.Group("/auth")
		{
			authGroup.POST("/agent", authHandler.AuthenticateAgent)
		}

		// Session endpoints
		sessionsGroup := v1.Group("/sessions")
		{
			sessionsGroup.POST("/validate", sessionHandler.ValidateSession)
			sessionsGroup.POST("/revoke", sessionHandler.RevokeSession)
			sessionsGroup.GET("/me", middleware.RequireSession(sessions), sessionHandler.Me)
		}

		// Admin endpoints (require admin token)
		admin := v1.Group("/admin")
		admin.Use(middleware.AdminAuth(cfg.Admin.Token, cfg.Admin.TOTPSecret, clk))
		{
			admin.POST("/agents", adminHandler.IssueAgent)
			admin.POST("/sessions/cleanup", adminHandler.CleanupSessions)
			admin.GET("/audit", adminHandler.ListAudit)
		}
	}

	// Health check
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status": "ok",
		})
	})

	return &Server{
		router: router,
		config: cfg,
		logger: logger,
	}
}

// Run serves HTTP until ctx is cancelled, then shuts down gracefully
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.config.Server.ListenAddr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("starting HTTP server", "addr", srv.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return nil
}

// Router returns the underlying Gin router
func (s *Server) Router() *gin.Engine {
	return s.router
}
