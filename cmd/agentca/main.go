package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"

	"github.com/adamscao/agentca/internal/api"
	"github.com/adamscao/agentca/internal/app"
	"github.com/adamscao/agentca/internal/config"
	"github.com/adamscao/agentca/internal/logging"
)

var (
	// Version information (set via ldflags)
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "agentca: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// Parse command line flags
	configPath := pflag.StringP("config", "c", "", "Path to configuration file (defaults plus AGENT_CA_* environment when empty)")
	showVersion := pflag.Bool("version", false, "Show version information")
	pflag.Parse()

	if *showVersion {
		fmt.Printf("Agent CA Server\n")
		fmt.Printf("Version:    %s\n", Version)
		fmt.Printf("Commit:     %s\n", Commit)
		fmt.Printf("Build Time: %s\n", BuildTime)
		return nil
	}

	// Load configuration
	cfg, err := config.LoadWithEnv(*configPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	logger, err := logging.New(cfg.Logging, os.Stderr)
	if err != nil {
		return err
	}
	logger.Info("starting agent CA server", "version", Version, "commit", Commit)

	a, err := app.Open(cfg, nil, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Initialize the root authority; storage failures here are fatal
	result, err := a.Initialize(ctx, "server")
	if err != nil {
		return err
	}
	logger.Info(result.Message, "generated", result.Generated)

	go a.Sessions.RunCleanup(ctx, cfg.CleanupIntervalDuration())

	server := api.NewServer(cfg, a.Authority, a.Authenticator, a.Sessions, a.AuditRepo, a.Clock, logger)
	if err := server.Run(ctx); err != nil {
		return fmt.Errorf("server failed: %w", err)
	}

	logger.Info("server stopped")
	return nil
}
