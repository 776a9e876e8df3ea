// Package app wires the configured storage, certificate authority, session
// manager and authenticator together for the server and the admin CLI.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/adamscao/agentca/internal/auth"
	"github.com/adamscao/agentca/internal/ca"
	"github.com/adamscao/agentca/internal/clock"
	"github.com/adamscao/agentca/internal/config"
	"github.com/adamscao/agentca/internal/db"
	"github.com/adamscao/agentca/internal/db/repository"
	"github.com/adamscao/agentca/internal/models"
	"github.com/adamscao/agentca/internal/policy"
	"github.com/adamscao/agentca/internal/session"
	"github.com/adamscao/agentca/internal/store"
)

// App holds the wired components
type App struct {
	Config        *config.Config
	Logger        *slog.Logger
	Clock         clock.Clock
	DB            *db.DB
	Backend       store.Backend
	Certs         *store.CertStore
	Registry      *policy.Registry
	Authority     *ca.Authority
	Sessions      *session.Manager
	Authenticator *auth.Authenticator
	AuditRepo     *repository.AuditRepository
}

// Open connects storage and builds every component. clk may be nil.
func Open(cfg *config.Config, clk clock.Clock, logger *slog.Logger) (*App, error) {
	if clk == nil {
		clk = clock.Real()
	}

	logger.Debug("connecting to database", "path", cfg.Database.Path)
	database, err := db.New(cfg.Database.Path)
	if err != nil {
		return nil, err
	}
	if err := db.RunMigrations(database); err != nil {
		database.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	var backend store.Backend
	switch cfg.Storage.Driver {
	case config.StorageDriverSQLite:
		backend = store.NewSQLiteBackend(database)
	default:
		fileBackend, err := store.NewFileBackend(cfg.Storage.RootDir)
		if err != nil {
			database.Close()
			return nil, err
		}
		backend = fileBackend
		logger.Debug("opened file record store", "root", fileBackend.Root())
	}

	certs := store.NewCertStore(backend)
	registry := policy.NewRegistry(cfg.Permissions)
	authority := ca.NewAuthority(certs, registry, ca.Options{
		KeyType:       cfg.CA.KeyType,
		CommonName:    cfg.CA.CommonName,
		Organization:  cfg.CA.Organization,
		Country:       cfg.CA.Country,
		AgentValidity: cfg.AgentValidityDuration(),
		Clock:         clk,
	}, logger.With("component", "ca"))

	sessions := session.NewManager(store.NewSessionStore(backend), session.Options{
		TTL:   cfg.SessionTTLDuration(),
		Clock: clk,
	}, logger.With("component", "session"))

	authenticator := auth.NewAuthenticator(certs, sessions, auth.Options{
		Scheme: authority.Scheme(),
		Clock:  clk,
	}, logger.With("component", "auth"))

	return &App{
		Config:        cfg,
		Logger:        logger,
		Clock:         clk,
		DB:            database,
		Backend:       backend,
		Certs:         certs,
		Registry:      registry,
		Authority:     authority,
		Sessions:      sessions,
		Authenticator: authenticator,
		AuditRepo:     repository.NewAuditRepository(database.DB),
	}, nil
}

// Initialize initializes the certificate authority and records a newly
// generated root in the audit log
func (a *App) Initialize(ctx context.Context, source string) (*ca.InitResult, error) {
	result, err := a.Authority.Initialize(ctx)
	if err != nil {
		return nil, err
	}
	if result.Generated {
		a.Audit(ctx, &models.AuditLog{
			Action:   models.ActionCAInit,
			ClientIP: source,
			Success:  true,
		})
	}
	return result, nil
}

// Audit writes an audit entry, logging rather than returning failures
func (a *App) Audit(ctx context.Context, entry *models.AuditLog) {
	if err := a.AuditRepo.Create(ctx, entry); err != nil {
		a.Logger.Warn("failed to write audit log", "action", entry.Action, "error", err)
	}
}

// Close releases the record store and the database
func (a *App) Close() error {
	return errors.Join(a.Backend.Close(), a.DB.Close())
}
