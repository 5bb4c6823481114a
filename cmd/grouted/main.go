// Command grouted is the grout control-plane daemon: it owns the
// Interface Registry, Worker Registry, Port and VLAN subsystems, and the
// IPv4 next-hop table, and exposes them over the API transport.
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/vjardin/grout/pkg/config"
	"github.com/vjardin/grout/pkg/grlog"
)

// App holds the daemon's command-line state, mirroring the CLI's own
// App struct: flags are gathered here during PersistentPreRunE, then
// consulted by runDaemon.
type App struct {
	configPath string
	socketPath string
	backend    string
	logLevel   string
	logJSON    bool

	cfg *config.Config
}

var app = &App{}

func main() {
	rootCmd := &cobra.Command{
		Use:   "grouted",
		Short: "grout control-plane daemon",
		Long: `grouted owns interface, port, VLAN, and IPv4 next-hop state for a
grout forwarding process and serves it over a Unix domain socket to grctl.`,
		SilenceUsage:      true,
		SilenceErrors:     true,
		CompletionOptions: cobra.CompletionOptions{HiddenDefaultCmd: true},
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(app.configPath)
			if err != nil {
				return err
			}
			if app.socketPath != "" {
				cfg.SocketPath = app.socketPath
			}
			if app.logLevel != "" {
				cfg.LogLevel = app.logLevel
			}
			if app.logJSON {
				cfg.LogJSON = true
			}
			if err := grlog.SetLevel(cfg.LogLevel); err != nil {
				return fmt.Errorf("log level: %w", err)
			}
			if cfg.LogJSON {
				grlog.SetJSONFormat()
			}
			app.cfg = cfg
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDaemon(app.cfg, app.backend)
		},
	}

	rootCmd.PersistentFlags().StringVar(&app.configPath, "config", "", "path to grout.yaml (default "+config.DefaultConfigPath+")")
	rootCmd.PersistentFlags().StringVar(&app.socketPath, "socket", "", "API socket path (overrides config)")
	rootCmd.PersistentFlags().StringVar(&app.logLevel, "log-level", "", "log level: trace, debug, info, warn, error (overrides config)")
	rootCmd.PersistentFlags().BoolVar(&app.logJSON, "log-json", false, "emit logs as JSON (overrides config)")
	rootCmd.Flags().StringVar(&app.backend, "backend", "simnic", "device backend: simnic or netlinkdev")

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "grouted:", err)
		os.Exit(1)
	}
}

// loadConfig reads the config file at path (or the default location if
// path is empty), falling back to built-in defaults when the file does
// not exist — a fresh grouted install has nothing to probe yet.
func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		path = config.DefaultConfigPath
	}
	cfg, err := config.Load(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return config.Default(), nil
		}
		return nil, err
	}
	return cfg, nil
}
