// Command grctl is the CLI client for grouted: it dials the daemon's
// API socket and issues port, VLAN, and IPv4 next-hop requests.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/vjardin/grout/pkg/api"
	"github.com/vjardin/grout/pkg/config"
)

// App holds CLI state shared across all commands.
type App struct {
	socketPath string
	client     *api.Client
}

var app = &App{}

var rootCmd = &cobra.Command{
	Use:   "grctl",
	Short: "control grouted, the grout control-plane daemon",
	Long: `grctl manages ports, VLAN sub-interfaces, and IPv4 next hops on a
running grouted instance over its Unix domain socket.`,
	SilenceUsage:      true,
	SilenceErrors:     true,
	CompletionOptions: cobra.CompletionOptions{HiddenDefaultCmd: true},
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if isHelp(cmd) {
			return nil
		}
		client, err := api.Dial(app.socketPath)
		if err != nil {
			return fmt.Errorf("connect to grouted at %s: %w", app.socketPath, err)
		}
		app.client = client
		return nil
	},
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		if app.client != nil {
			return app.client.Close()
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&app.socketPath, "socket", config.DefaultSocketPath, "grouted API socket path")

	rootCmd.AddGroup(
		&cobra.Group{ID: "resource", Title: "Resource commands:"},
	)

	portCmd.GroupID = "resource"
	vlanCmd.GroupID = "resource"
	nhCmd.GroupID = "resource"

	rootCmd.AddCommand(portCmd, vlanCmd, nhCmd)
}

// isHelp reports whether cmd (or its invocation) is a help/completion
// request, which should not require a live daemon connection.
func isHelp(cmd *cobra.Command) bool {
	return cmd.Name() == "help" || cmd.Name() == "completion"
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "grctl:", err)
		os.Exit(1)
	}
}
