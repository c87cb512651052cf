package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
)

// TestServeCommandFlags verifies all expected flags exist on the serve command
func TestServeCommandFlags(t *testing.T) {
	cmd := newServeCmd()

	expectedFlags := []struct {
		name      string
		shorthand string
	}{
		{"quiet", "q"},
		{"slack", ""},
		{"github", ""},
		{"port", ""},
	}

	for _, ef := range expectedFlags {
		flag := cmd.Flags().Lookup(ef.name)
		if flag == nil {
			t.Errorf("missing flag: --%s", ef.name)
			continue
		}
		if ef.shorthand != "" && flag.Shorthand != ef.shorthand {
			t.Errorf("flag --%s: expected shorthand -%s, got -%s", ef.name, ef.shorthand, flag.Shorthand)
		}
	}
}

// TestTriggerCommandFlags verifies all expected flags exist on the trigger command
func TestTriggerCommandFlags(t *testing.T) {
	cmd := newTriggerCmd()

	flag := cmd.Flags().Lookup("verbose")
	if flag == nil {
		t.Fatal("missing flag: --verbose")
	}
	if flag.Shorthand != "v" {
		t.Errorf("flag --verbose: expected shorthand -v, got -%s", flag.Shorthand)
	}
}

// TestStatusCommandFlags verifies all expected flags exist on the status command
func TestStatusCommandFlags(t *testing.T) {
	cmd := newStatusCmd()

	expectedFlags := []struct {
		name      string
		shorthand string
	}{
		{"verbose", "v"},
		{"json", ""},
	}

	for _, ef := range expectedFlags {
		flag := cmd.Flags().Lookup(ef.name)
		if flag == nil {
			t.Errorf("missing flag: --%s", ef.name)
			continue
		}
		if ef.shorthand != "" && flag.Shorthand != ef.shorthand {
			t.Errorf("flag --%s: expected shorthand -%s, got -%s", ef.name, ef.shorthand, flag.Shorthand)
		}
	}
}

// TestFlagParsing verifies flags can be parsed correctly using ParseFlags
// (not Execute which also validates args)
func TestFlagParsing(t *testing.T) {
	tests := []struct {
		name    string
		cmdFunc func() *cobra.Command
		args    []string
		wantErr bool
	}{
		{
			name:    "serve with port",
			cmdFunc: newServeCmd,
			args:    []string{"--port", "9191"},
			wantErr: false,
		},
		{
			name:    "serve with surface overrides",
			cmdFunc: newServeCmd,
			args:    []string{"--slack=false", "--github=true"},
			wantErr: false,
		},
		{
			name:    "serve quiet",
			cmdFunc: newServeCmd,
			args:    []string{"-q"},
			wantErr: false,
		},
		{
			name:    "trigger with verbose",
			cmdFunc: newTriggerCmd,
			args:    []string{"--verbose"},
			wantErr: false,
		},
		{
			name:    "history with limit",
			cmdFunc: newHistoryCmd,
			args:    []string{"--limit", "5"},
			wantErr: false,
		},
		{
			name:    "status with json",
			cmdFunc: newStatusCmd,
			args:    []string{"--json"},
			wantErr: false,
		},
		{
			name:    "init with force",
			cmdFunc: newInitCmd,
			args:    []string{"--force"},
			wantErr: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd := tt.cmdFunc()
			err := cmd.ParseFlags(tt.args)
			if (err != nil) != tt.wantErr {
				t.Errorf("ParseFlags() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

// TestFlagDefaults verifies default values for important flags
func TestFlagDefaults(t *testing.T) {
	t.Run("serve command defaults", func(t *testing.T) {
		cmd := newServeCmd()

		if flag := cmd.Flags().Lookup("quiet"); flag != nil {
			if flag.DefValue != "false" {
				t.Errorf("quiet default should be false, got %s", flag.DefValue)
			}
		}

		if flag := cmd.Flags().Lookup("slack"); flag != nil {
			if flag.DefValue != "true" {
				t.Errorf("slack default should be true, got %s", flag.DefValue)
			}
		}

		if flag := cmd.Flags().Lookup("port"); flag != nil {
			if flag.DefValue != "0" {
				t.Errorf("port default should be 0, got %s", flag.DefValue)
			}
		}
	})

	t.Run("history command defaults", func(t *testing.T) {
		cmd := newHistoryCmd()

		if flag := cmd.Flags().Lookup("limit"); flag != nil {
			if flag.DefValue != "20" {
				t.Errorf("limit default should be 20, got %s", flag.DefValue)
			}
		}
	})
}

// TestLoadConfigOverride verifies --config wins over the default path and
// that defaults fill whatever the file leaves out.
func TestLoadConfigOverride(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "config.yaml")
	configYAML := `project:
  repository: acme/ios-app
gateway:
  port: 9191
`
	if err := os.WriteFile(configPath, []byte(configYAML), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	oldCfgFile := cfgFile
	cfgFile = configPath
	defer func() { cfgFile = oldCfgFile }()

	cfg, err := loadConfig()
	if err != nil {
		t.Fatalf("loadConfig() error = %v", err)
	}

	if cfg.Project.Repository != "acme/ios-app" {
		t.Errorf("expected repository acme/ios-app, got %q", cfg.Project.Repository)
	}
	if cfg.Gateway.Port != 9191 {
		t.Errorf("expected port 9191, got %d", cfg.Gateway.Port)
	}
	if cfg.Project.DefaultBranch != "develop" {
		t.Errorf("expected default branch develop, got %q", cfg.Project.DefaultBranch)
	}
}
