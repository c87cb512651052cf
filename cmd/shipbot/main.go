package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/alekspetrov/shipbot/internal/banner"
	"github.com/alekspetrov/shipbot/internal/bot"
	"github.com/alekspetrov/shipbot/internal/config"
	"github.com/alekspetrov/shipbot/internal/logging"
)

// Set via -ldflags at release build time.
var (
	version   = "0.1.0"
	buildTime = "unknown"
)

// cfgFile holds the --config override shared by every subcommand.
var cfgFile string

func main() {
	rootCmd := &cobra.Command{
		Use:   "shipbot",
		Short: "ChatOps triggers for CircleCI",
		Long:  `Shipbot turns Slack slash commands, GitHub PR comments, and cron schedules into CircleCI builds, then posts the build link back where the request came from.`,
	}

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Config file path (default ~/.shipbot/config.yaml)")

	rootCmd.AddCommand(
		newServeCmd(),
		newTriggerCmd(),
		newHistoryCmd(),
		newDashboardCmd(),
		newStatusCmd(),
		newInitCmd(),
		newVersionCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newServeCmd() *cobra.Command {
	var (
		quiet      bool
		slackFlag  bool
		githubFlag bool
		port       int
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the Shipbot gateway",
		Long: `Start the HTTP gateway and every surface enabled in the config:
Slack slash commands, GitHub PR comments, and cron schedules.

Runs in the foreground until SIGINT or SIGTERM.

Examples:
  shipbot serve
  shipbot serve --port 9191
  shipbot serve --slack=false    # HTTP and GitHub only`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			// Flags override the config only when set explicitly.
			if cmd.Flags().Changed("slack") && cfg.Slack != nil {
				cfg.Slack.Enabled = slackFlag
			}
			if cmd.Flags().Changed("github") && cfg.GitHub != nil {
				cfg.GitHub.Enabled = githubFlag
			}
			if cmd.Flags().Changed("port") && cfg.Gateway != nil {
				cfg.Gateway.Port = port
			}

			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("invalid config: %w", err)
			}

			if err := logging.Init(cfg.Logging); err != nil {
				return fmt.Errorf("failed to init logging: %w", err)
			}

			if !quiet {
				banner.StartupWithHealth(version, cfg)
			}

			b, err := bot.New(cfg)
			if err != nil {
				return err
			}
			if err := b.Start(); err != nil {
				return err
			}

			sigCh := make(chan os.Signal, 1)
			signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
			<-sigCh

			fmt.Println()
			logging.Info("Shutdown signal received")
			return b.Stop()
		},
	}

	cmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "Skip the startup banner")
	cmd.Flags().BoolVar(&slackFlag, "slack", true, "Enable the Slack surface (overrides config)")
	cmd.Flags().BoolVar(&githubFlag, "github", true, "Enable the GitHub surface (overrides config)")
	cmd.Flags().IntVar(&port, "port", 0, "Gateway port (overrides config)")

	return cmd
}

func loadConfig() (*config.Config, error) {
	configPath := cfgFile
	if configPath == "" {
		configPath = config.DefaultConfigPath()
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	return cfg, nil
}
