// Secondary CLI command constructors kept out of main.go
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/alekspetrov/shipbot/internal/adapters/circleci"
	"github.com/alekspetrov/shipbot/internal/banner"
	"github.com/alekspetrov/shipbot/internal/commands"
	"github.com/alekspetrov/shipbot/internal/config"
	"github.com/alekspetrov/shipbot/internal/dashboard"
	"github.com/alekspetrov/shipbot/internal/health"
	"github.com/alekspetrov/shipbot/internal/history"
	"github.com/alekspetrov/shipbot/internal/logging"
	"github.com/alekspetrov/shipbot/internal/trigger"
)

// consoleResponder prints deferred replies to stdout. The CLI waits for the
// trigger chain, so the reply lands before the process exits.
type consoleResponder struct{}

func (consoleResponder) Respond(_ context.Context, _ *trigger.Invocation, text string) error {
	fmt.Println(text)
	return nil
}

func newTriggerCmd() *cobra.Command {
	var verbose bool

	cmd := &cobra.Command{
		Use:   "trigger <command> [args...]",
		Short: "Run a trigger command from the terminal",
		Long: `Run one of the chat commands directly, without going through Slack.

The same command table, branch resolution, and journaling apply; only the
reply lands on stdout instead of a channel.

Examples:
  shipbot trigger ci build_ios version:3.13.0
  shipbot trigger fastlane build_testflight branch:develop
  shipbot trigger testflight ios
  shipbot trigger help`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("invalid config: %w", err)
			}

			// Chain logs would interleave with the replies on the terminal.
			if !verbose {
				logging.Suppress()
			}

			var journal *history.Store
			if cfg.History != nil && cfg.History.Enabled {
				journal, err = history.NewStore(cfg.History.Path)
				if err != nil {
					return fmt.Errorf("failed to open trigger journal: %w", err)
				}
				defer func() { _ = journal.Close() }()
			}

			svc := trigger.NewService(circleci.NewClientFromConfig(cfg.CircleCI), journal)

			regCfg := commands.Config{
				Project:       cfg.Project.Repository,
				DefaultBranch: cfg.Project.DefaultBranch,
			}
			if cfg.Commands != nil {
				regCfg.Channels = cfg.Commands.Channels
			}
			// No rate limiter: a one-shot process starts with fresh counters
			// anyway.
			registry := commands.NewRegistry(regCfg, svc)

			inv := &trigger.Invocation{
				ID:      uuid.New().String(),
				Command: args[0],
				Args:    args[1:],
				Source:  "cli",
				User:    os.Getenv("USER"),
				Text:    strings.Join(args[1:], " "),
			}

			reply, err := registry.Dispatch(cmd.Context(), inv, consoleResponder{})
			if err != nil {
				if reply != "" {
					fmt.Println(reply)
				}
				return err
			}
			fmt.Println(reply)

			// Block until the deferred reply has been printed.
			svc.Wait()
			return nil
		},
	}

	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Show log output alongside the replies")

	return cmd
}

func newHistoryCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "history [invocation-id]",
		Short: "Show journaled triggers",
		Long: `List recent triggers from the journal, or show one in full detail
when an invocation ID is given.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if cfg.History == nil || !cfg.History.Enabled {
				return fmt.Errorf("history is disabled; set history.enabled in the config")
			}

			store, err := history.NewStore(cfg.History.Path)
			if err != nil {
				return fmt.Errorf("failed to open trigger journal: %w", err)
			}
			defer func() { _ = store.Close() }()

			if len(args) == 1 {
				return showTrigger(store, args[0])
			}
			return listTriggers(store, limit)
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 20, "Maximum triggers to show")

	return cmd
}

func listTriggers(store *history.Store, limit int) error {
	records, err := store.Recent(limit)
	if err != nil {
		return fmt.Errorf("failed to read journal: %w", err)
	}

	if len(records) == 0 {
		fmt.Println("No triggers journaled yet.")
		fmt.Println()
		fmt.Println("💡 Triggers are recorded automatically once the gateway runs.")
		return nil
	}

	fmt.Println("📜 Trigger History")
	fmt.Println("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
	fmt.Println()

	for _, rec := range records {
		fmt.Printf("%s %s (%s) on %s\n", statusIcon(rec.Status), rec.Command, rec.Mode, rec.Branch)
		fmt.Printf("   ID:        %s\n", rec.ID)
		fmt.Printf("   Source:    %s\n", sourceLine(rec))
		fmt.Printf("   Requested: %s\n", rec.CreatedAt.Format("2006-01-02 15:04:05"))
		if rec.BuildURL != "" {
			fmt.Printf("   Build:     %s\n", rec.BuildURL)
		}
		if rec.Error != "" {
			fmt.Printf("   Error:     %s\n", rec.Error)
		}
		fmt.Println()
	}

	counts, err := store.CountByStatus()
	if err == nil {
		total := 0
		for _, n := range counts {
			total += n
		}
		fmt.Printf("Showing %d of %d trigger(s): %d triggered, %d failed, %d pending\n",
			len(records), total,
			counts[history.StatusTriggered], counts[history.StatusFailed], counts[history.StatusPending])
	}
	fmt.Println()
	fmt.Println("💡 Use 'shipbot history <id>' for details")
	fmt.Println("   Use 'shipbot dashboard' for a live view")

	return nil
}

func showTrigger(store *history.Store, id string) error {
	rec, err := store.Get(id)
	if err != nil {
		return fmt.Errorf("trigger not found: %w", err)
	}

	fmt.Println("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
	fmt.Printf("%s TRIGGER: %s\n", statusIcon(rec.Status), rec.ID)
	fmt.Println("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
	fmt.Println()

	fmt.Printf("Status:    %s\n", rec.Status)
	fmt.Printf("Command:   %s (%s mode)\n", rec.Command, rec.Mode)
	fmt.Printf("Project:   %s\n", rec.Project)
	fmt.Printf("Branch:    %s\n", rec.Branch)
	fmt.Printf("Source:    %s\n", sourceLine(rec))
	fmt.Printf("Requested: %s\n", rec.CreatedAt.Format("2006-01-02 15:04:05"))
	if rec.CompletedAt != nil {
		fmt.Printf("Completed: %s\n", rec.CompletedAt.Format("2006-01-02 15:04:05"))
	}
	if rec.BuildURL != "" {
		fmt.Printf("Build:     %s\n", rec.BuildURL)
	}
	if rec.Error != "" {
		fmt.Printf("Error:     %s\n", rec.Error)
	}

	if rec.Parameters != "" && rec.Parameters != "{}" {
		fmt.Println()
		fmt.Println("PARAMETERS")
		fmt.Println("───────────────────────────────────────")
		fmt.Printf("  %s\n", rec.Parameters)
	}

	return nil
}

// statusIcon maps a journal status to the icon used across list output.
func statusIcon(status string) string {
	switch status {
	case history.StatusTriggered:
		return "✅"
	case history.StatusFailed:
		return "❌"
	default:
		return "⏳"
	}
}

// sourceLine renders "slack #ios-build by maria" with the optional parts
// dropped when empty.
func sourceLine(rec *history.Record) string {
	line := rec.Source
	if rec.Channel != "" {
		line += " #" + strings.TrimPrefix(rec.Channel, "#")
	}
	if rec.RequestedBy != "" {
		line += " by " + rec.RequestedBy
	}
	return line
}

func newDashboardCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "dashboard",
		Short: "Live trigger dashboard",
		Long:  `Open a terminal dashboard over the trigger journal: totals by status and the most recent triggers, refreshed every few seconds.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if cfg.History == nil || !cfg.History.Enabled {
				return fmt.Errorf("history is disabled; set history.enabled in the config")
			}

			store, err := history.NewStore(cfg.History.Path)
			if err != nil {
				return fmt.Errorf("failed to open trigger journal: %w", err)
			}
			defer func() { _ = store.Close() }()

			// Suppress slog output to keep it from corrupting the TUI display.
			logging.Suppress()

			model := dashboard.NewModel(store, version)
			program := tea.NewProgram(model, tea.WithAltScreen())
			if _, err := program.Run(); err != nil {
				return fmt.Errorf("dashboard error: %w", err)
			}
			return nil
		},
	}
}

func newStatusCmd() *cobra.Command {
	var (
		verbose    bool
		jsonOutput bool
	)

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Check configuration and feature health",
		Long: `Run health checks on the configuration and surfaces.

Shows what's working, what's missing, and how to fix issues.

Examples:
  shipbot status            # Run all checks
  shipbot status --verbose  # Show fix suggestions
  shipbot status --json     # Machine-readable output`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				cfg = config.DefaultConfig()
			}

			report := health.RunChecks(cfg)

			if jsonOutput {
				gatewayAddr := ""
				if cfg.Gateway != nil {
					gatewayAddr = fmt.Sprintf("http://%s:%d", cfg.Gateway.Host, cfg.Gateway.Port)
				}
				features := map[string]bool{}
				for _, f := range report.Features {
					features[f.Name] = f.Enabled
				}
				status := map[string]interface{}{
					"gateway":   gatewayAddr,
					"ready":     report.ReadyToStart(),
					"features":  features,
					"schedules": report.Schedules,
				}

				data, err := json.MarshalIndent(status, "", "  ")
				if err != nil {
					return fmt.Errorf("failed to marshal status: %w", err)
				}
				fmt.Println(string(data))
				return nil
			}

			fmt.Println()
			fmt.Println("Shipbot Health Check")
			fmt.Println("====================")
			fmt.Println()

			fmt.Println("Configuration:")
			for _, c := range report.Config {
				fmt.Printf("  %s %-12s %s\n", c.Status.Symbol(), c.Name, c.Message)
				if verbose && c.Fix != "" && c.Status != health.StatusOK {
					fmt.Printf("                 → %s\n", c.Fix)
				}
			}
			fmt.Println()

			fmt.Println("Features:")
			for _, f := range report.Features {
				note := ""
				if f.Note != "" {
					note = " (" + f.Note + ")"
				}
				fmt.Printf("  %s %-12s%s\n", f.Status.Symbol(), f.Name, note)
			}
			fmt.Println()

			if report.Schedules > 0 {
				fmt.Printf("Schedules: %d configured\n", report.Schedules)
				fmt.Println()
			}

			errors, warnings := report.Summary()
			if errors > 0 {
				fmt.Println("Recommendations:")
				shown := 0
				for _, c := range report.Config {
					if c.Status == health.StatusError && c.Fix != "" && shown < 5 {
						fmt.Printf("  %d. %s: %s\n", shown+1, c.Name, c.Fix)
						shown++
					}
				}
				fmt.Println()
			}

			if report.ReadyToStart() {
				if errors == 0 && warnings == 0 {
					fmt.Println("✅ All systems operational!")
				} else {
					fmt.Printf("✅ Ready to start (%d warning(s))\n", warnings)
				}
			} else {
				fmt.Printf("❌ Not ready - %d error(s)\n", errors)
				fmt.Println("   Run 'shipbot init' to scaffold a config")
			}

			return nil
		},
	}

	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Show fix suggestions")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")

	return cmd
}

func newInitCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Initialize Shipbot configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			configPath := cfgFile
			if configPath == "" {
				configPath = config.DefaultConfigPath()
			}

			// Check if config already exists
			if _, err := os.Stat(configPath); err == nil {
				if force {
					// Backup existing config
					backupPath := configPath + ".bak"
					if err := os.Rename(configPath, backupPath); err != nil {
						return fmt.Errorf("failed to backup config: %w", err)
					}
					fmt.Printf("   📦 Backed up existing config to %s\n\n", backupPath)
				} else {
					return showExistingConfigInfo(configPath)
				}
			}

			cfg := config.DefaultConfig()

			if err := config.Save(cfg, configPath); err != nil {
				return fmt.Errorf("failed to save config: %w", err)
			}

			banner.PrintWithVersion(version)

			fmt.Println("   ✅ Initialized!")
			fmt.Printf("   Config: %s\n", configPath)
			fmt.Println()
			fmt.Println("   Next steps:")
			fmt.Println("   1. Add your CircleCI token and project repository")
			fmt.Println("   2. Wire up Slack and GitHub credentials")
			fmt.Println("   3. Run 'shipbot serve'")

			return nil
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Reinitialize config (backs up existing to .bak)")

	return cmd
}

// showExistingConfigInfo displays a summary of the existing config and helpful options
func showExistingConfigInfo(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// Use ~ for home directory in display
	displayPath := configPath
	if home, err := os.UserHomeDir(); err == nil {
		displayPath = strings.Replace(configPath, home, "~", 1)
	}

	fmt.Printf("⚠️  Config already exists: %s\n\n", displayPath)
	fmt.Println("   Current settings:")

	if cfg.Project != nil && cfg.Project.Repository != "" {
		fmt.Printf("   • Project: %s\n", cfg.Project.Repository)
	} else {
		fmt.Println("   • Project: not configured")
	}

	if cfg.Slack != nil && cfg.Slack.Enabled {
		fmt.Println("   • Slack: enabled")
	} else {
		fmt.Println("   • Slack: disabled")
	}

	if cfg.GitHub != nil && cfg.GitHub.Enabled {
		fmt.Println("   • GitHub: enabled")
	} else {
		fmt.Println("   • GitHub: disabled")
	}

	switch scheduleCount := len(cfg.Schedules); scheduleCount {
	case 0:
		fmt.Println("   • Schedules: none configured")
	case 1:
		fmt.Println("   • Schedules: 1 configured")
	default:
		fmt.Printf("   • Schedules: %d configured\n", scheduleCount)
	}

	fmt.Println()
	fmt.Println("   Options:")
	fmt.Printf("   • Edit:   $EDITOR %s\n", displayPath)
	fmt.Println("   • Reset:  shipbot init --force")
	fmt.Println("   • Start:  shipbot serve --help")

	return nil
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show Shipbot version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("Shipbot v%s\n", version)
			if buildTime != "unknown" {
				fmt.Printf("Built: %s\n", buildTime)
			}
		},
	}
}
