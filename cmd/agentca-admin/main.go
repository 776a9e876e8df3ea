package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/adamscao/agentca/internal/app"
	"github.com/adamscao/agentca/internal/auth"
	"github.com/adamscao/agentca/internal/config"
	"github.com/adamscao/agentca/internal/logging"
	"github.com/adamscao/agentca/internal/models"
)

const auditSource = "cli"

var (
	configPath string
	verbose    bool
)

var rootCmd = &cobra.Command{
	Use:           "agentca-admin",
	Short:         "Agent CA administration tool",
	Long:          "Administrative tool for the agent certificate authority: root initialization, agent issuance, sessions and audit logs",
	SilenceUsage:  true,
	SilenceErrors: true,
}

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize the certificate authority",
	RunE:  initCA,
}

var issueCmd = &cobra.Command{
	Use:   "issue",
	Short: "Issue a certificate for an agent",
	RunE:  issueAgent,
}

var agentsCmd = &cobra.Command{
	Use:   "agents",
	Short: "List issued agents",
	RunE:  listAgents,
}

var signCmd = &cobra.Command{
	Use:   "sign",
	Short: "Sign data with an agent's private key",
	RunE:  signData,
}

var authenticateCmd = &cobra.Command{
	Use:   "authenticate",
	Short: "Authenticate an agent and open a session",
	RunE:  authenticateAgent,
}

var sessionCmd = &cobra.Command{
	Use:   "session",
	Short: "Manage sessions",
}

var sessionValidateCmd = &cobra.Command{
	Use:   "validate <token>",
	Short: "Validate a session token",
	Args:  cobra.ExactArgs(1),
	RunE:  validateSession,
}

var sessionRevokeCmd = &cobra.Command{
	Use:   "revoke <token>",
	Short: "Revoke a session",
	Args:  cobra.ExactArgs(1),
	RunE:  revokeSession,
}

var sessionCleanupCmd = &cobra.Command{
	Use:   "cleanup",
	Short: "Delete expired sessions",
	RunE:  cleanupSessions,
}

var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "View audit logs",
}

var auditListCmd = &cobra.Command{
	Use:   "list",
	Short: "List audit log entries",
	RunE:  listAudit,
}

var auditFailedCmd = &cobra.Command{
	Use:   "failed",
	Short: "List recent failed authentication attempts",
	RunE:  listFailedAuth,
}

var auditStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Count recent audit entries by action",
	RunE:  auditStats,
}

var auditPruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Delete old audit entries",
	RunE:  pruneAudit,
}

var totpCmd = &cobra.Command{
	Use:   "totp",
	Short: "Manage the admin second factor",
}

var totpGenerateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Generate a TOTP secret for admin.totp_secret",
	RunE:  generateTOTP,
}

var (
	agentID     string
	agentType   string
	data        string
	signature   string
	auditAgent  string
	auditAction string
	auditLimit  int
	auditSince  time.Duration
	auditMaxAge time.Duration
	accountName string
)

func init() {
	// Root flags
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Config file path (defaults plus AGENT_CA_* environment when empty)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Log component activity to stderr")

	// Issue flags
	issueCmd.Flags().StringVar(&agentID, "agent-id", "", "Agent ID (required)")
	issueCmd.Flags().StringVar(&agentType, "agent-type", "", "Agent type (required)")
	issueCmd.MarkFlagRequired("agent-id")
	issueCmd.MarkFlagRequired("agent-type")

	// Sign flags
	signCmd.Flags().StringVar(&agentID, "agent-id", "", "Agent ID (required)")
	signCmd.Flags().StringVar(&data, "data", "", "Data to sign (required)")
	signCmd.MarkFlagRequired("agent-id")
	signCmd.MarkFlagRequired("data")

	// Authenticate flags
	authenticateCmd.Flags().StringVar(&agentID, "agent-id", "", "Agent ID (required)")
	authenticateCmd.Flags().StringVar(&signature, "signature", "", "Signature over data (required)")
	authenticateCmd.Flags().StringVar(&data, "data", "", "Signed data (required)")
	authenticateCmd.MarkFlagRequired("agent-id")
	authenticateCmd.MarkFlagRequired("signature")
	authenticateCmd.MarkFlagRequired("data")

	// Audit flags
	auditListCmd.Flags().StringVar(&auditAgent, "agent-id", "", "Filter by agent ID")
	auditListCmd.Flags().StringVar(&auditAction, "action", "", "Filter by action")
	auditListCmd.Flags().IntVarP(&auditLimit, "limit", "n", 50, "Maximum number of entries")

	auditFailedCmd.Flags().DurationVar(&auditSince, "since", 24*time.Hour, "Look back this far")
	auditFailedCmd.Flags().IntVarP(&auditLimit, "limit", "n", 50, "Maximum number of entries")
	auditStatsCmd.Flags().DurationVar(&auditSince, "since", 24*time.Hour, "Look back this far")
	auditPruneCmd.Flags().DurationVar(&auditMaxAge, "older-than", 90*24*time.Hour, "Delete entries older than this")

	// TOTP flags
	totpGenerateCmd.Flags().StringVar(&accountName, "account", "admin", "Account name shown in the authenticator app")

	// Add commands
	sessionCmd.AddCommand(sessionValidateCmd, sessionRevokeCmd, sessionCleanupCmd)
	auditCmd.AddCommand(auditListCmd, auditFailedCmd, auditStatsCmd, auditPruneCmd)
	totpCmd.AddCommand(totpGenerateCmd)
	rootCmd.AddCommand(initCmd, issueCmd, agentsCmd, signCmd, authenticateCmd, sessionCmd, auditCmd, totpCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func openApp() (*app.App, error) {
	// Load configuration
	cfg, err := config.LoadWithEnv(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	logger := logging.Discard()
	if verbose {
		if logger, err = logging.New(cfg.Logging, os.Stderr); err != nil {
			return nil, err
		}
	}

	return app.Open(cfg, nil, logger)
}

func printJSON(v any) error {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}

func initCA(cmd *cobra.Command, args []string) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	result, err := a.Initialize(cmd.Context(), auditSource)
	if err != nil {
		return err
	}
	fmt.Println(result.Message)

	fingerprint, err := a.Authority.RootFingerprint(cmd.Context())
	if err != nil {
		return err
	}
	fmt.Printf("Root fingerprint: %s\n", fingerprint)
	return nil
}

func issueAgent(cmd *cobra.Command, args []string) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()
	ctx := cmd.Context()

	issued, err := a.Authority.GenerateAgentCertificate(ctx, agentID, agentType)
	if err != nil {
		a.Audit(ctx, &models.AuditLog{Action: models.ActionCertIssue, AgentID: agentID, ClientIP: auditSource, ErrorMsg: err.Error()})
		return fmt.Errorf("failed to issue certificate: %w", err)
	}
	a.Audit(ctx, &models.AuditLog{Action: models.ActionCertIssue, AgentID: agentID, ClientIP: auditSource, Success: true})

	if !a.Registry.IsKnown(agentType) {
		fmt.Fprintf(os.Stderr, "WARNING: unknown agent type %q granted default permissions (known types: %s)\n",
			agentType, strings.Join(a.Registry.AgentTypes(), ", "))
	}

	return printJSON(issued)
}

func listAgents(cmd *cobra.Command, args []string) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()
	ctx := cmd.Context()

	agents, err := a.Certs.ListAgents(ctx)
	if err != nil {
		return fmt.Errorf("failed to list agents: %w", err)
	}
	if len(agents) == 0 {
		fmt.Println("No agents found")
		return nil
	}

	now := a.Clock.Now()
	fmt.Printf("\nTotal agents: %d\n\n", len(agents))
	fmt.Printf("%-30s %-20s %-10s %s\n", "Agent ID", "Type", "Status", "Expires")
	fmt.Println("--------------------------------------------------------------------------------")
	for _, id := range agents {
		meta, err := a.Certs.LoadAgentMetadata(ctx, id)
		if err != nil {
			fmt.Printf("%-30s %-20s %-10s %s\n", id, "-", "partial", "-")
			continue
		}
		status := "valid"
		if meta.IsExpired(now) {
			status = "expired"
		}
		fmt.Printf("%-30s %-20s %-10s %s\n", id, meta.AgentType, status, meta.ExpiresAt.Format("2006-01-02 15:04:05"))
	}
	return nil
}

func signData(cmd *cobra.Command, args []string) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	sig, err := a.Authenticator.SignData(cmd.Context(), agentID, []byte(data))
	if err != nil {
		return err
	}
	fmt.Println(sig)
	return nil
}

func authenticateAgent(cmd *cobra.Command, args []string) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()
	ctx := cmd.Context()

	result := a.Authenticator.AuthenticateAgent(ctx, agentID, signature, []byte(data))
	action := models.ActionAuthSuccess
	if !result.Authenticated {
		action = models.ActionAuthFailed
	}
	a.Audit(ctx, &models.AuditLog{
		Action:   action,
		AgentID:  agentID,
		ClientIP: auditSource,
		Success:  result.Authenticated,
		ErrorMsg: result.Error,
	})

	if err := printJSON(result); err != nil {
		return err
	}
	if !result.Authenticated {
		return fmt.Errorf("authentication failed: %s", result.Error)
	}
	return nil
}

func validateSession(cmd *cobra.Command, args []string) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	return printJSON(a.Sessions.ValidateSession(cmd.Context(), args[0]))
}

func revokeSession(cmd *cobra.Command, args []string) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()
	ctx := cmd.Context()

	result := a.Sessions.RevokeSession(ctx, args[0])
	a.Audit(ctx, &models.AuditLog{
		Action:   models.ActionSessionRevoke,
		ClientIP: auditSource,
		Success:  result.Success,
		ErrorMsg: result.Error,
	})

	if err := printJSON(result); err != nil {
		return err
	}
	if !result.Success {
		return fmt.Errorf("revoke failed: %s", result.Error)
	}
	return nil
}

func cleanupSessions(cmd *cobra.Command, args []string) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()
	ctx := cmd.Context()

	result := a.Sessions.CleanupExpiredSessions(ctx)
	a.Audit(ctx, &models.AuditLog{
		Action:   models.ActionSessionsCleanup,
		ClientIP: auditSource,
		Success:  result.Error == "",
		ErrorMsg: result.Error,
		Details:  fmt.Sprintf(`{"cleaned":%d}`, result.Cleaned),
	})

	return printJSON(result)
}

func listAudit(cmd *cobra.Command, args []string) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	logs, err := a.AuditRepo.List(cmd.Context(), auditAgent, auditAction, auditLimit)
	if err != nil {
		return err
	}
	printAuditLogs(logs)
	return nil
}

func listFailedAuth(cmd *cobra.Command, args []string) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	logs, err := a.AuditRepo.ListFailedAuth(cmd.Context(), a.Clock.Now().Add(-auditSince), auditLimit)
	if err != nil {
		return err
	}
	printAuditLogs(logs)
	return nil
}

func auditStats(cmd *cobra.Command, args []string) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	since := a.Clock.Now().Add(-auditSince)
	fmt.Printf("Audit entries since %s\n\n", since.Format("2006-01-02 15:04:05"))
	for _, action := range []string{
		models.ActionCAInit,
		models.ActionCertIssue,
		models.ActionAuthSuccess,
		models.ActionAuthFailed,
		models.ActionSessionRevoke,
		models.ActionSessionsCleanup,
	} {
		count, err := a.AuditRepo.CountByAction(cmd.Context(), action, since)
		if err != nil {
			return err
		}
		fmt.Printf("%-18s %d\n", action, count)
	}
	return nil
}

func pruneAudit(cmd *cobra.Command, args []string) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	deleted, err := a.AuditRepo.DeleteOld(cmd.Context(), a.Clock.Now().Add(-auditMaxAge))
	if err != nil {
		return err
	}
	fmt.Printf("Deleted %d audit entries\n", deleted)
	return nil
}

func printAuditLogs(logs []*models.AuditLog) {
	if len(logs) == 0 {
		fmt.Println("No audit entries found")
		return
	}

	fmt.Printf("%-20s %-18s %-25s %-8s %s\n", "Time", "Action", "Agent", "Success", "Error")
	fmt.Println("--------------------------------------------------------------------------------")
	for _, log := range logs {
		successStr := "No"
		if log.Success {
			successStr = "Yes"
		}
		fmt.Printf("%-20s %-18s %-25s %-8s %s\n",
			log.Timestamp.Format("2006-01-02 15:04:05"),
			log.Action,
			log.AgentID,
			successStr,
			log.ErrorMsg,
		)
	}
}

func generateTOTP(cmd *cobra.Command, args []string) error {
	secret, err := auth.GenerateTOTPSecret(accountName)
	if err != nil {
		return err
	}

	fmt.Printf("TOTP Secret: %s\n", secret)
	fmt.Printf("TOTP QR URL: %s\n", auth.GenerateQRCodeURL(secret, accountName, ""))
	fmt.Printf("\nSet admin.totp_secret (or AGENT_CA_ADMIN_TOTP_SECRET) to this secret and\n")
	fmt.Printf("send the current code in the X-Admin-TOTP header on admin requests.\n")
	return nil
}
