package cmd

import (
	"fmt"
	"net"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/bnema/webloop/internal/cli/console"
	"github.com/bnema/webloop/internal/remote"
)

var consoleOpts struct {
	addr  string
	token string
}

var consoleCmd = &cobra.Command{
	Use:   "console",
	Short: "Drive a running 'webloop serve' interactively",
	Long: `Console connects to a webloop server and reads commands such as
"window <title>", "view 0 main https://example.com" or "eval 1 document.title".
Type "help" inside the console for the full list.

Page messages and loop events pushed by the server are shown as they arrive.

Examples:
  webloop console
  webloop console --addr 127.0.0.1:9000 --token s3cret`,
	RunE: runConsole,
}

func init() {
	rootCmd.AddCommand(consoleCmd)
	consoleCmd.Flags().StringVar(&consoleOpts.addr, "addr", "", "server address or ws:// URL (default from config)")
	consoleCmd.Flags().StringVar(&consoleOpts.token, "token", "", "bearer token (default from config)")
}

func runConsole(cmd *cobra.Command, _ []string) error {
	app := GetApp()
	if app == nil {
		return fmt.Errorf("app not initialized")
	}

	addr := consoleOpts.addr
	if addr == "" {
		addr = app.Config.Remote.Listen
	}
	token := consoleOpts.token
	if token == "" {
		token = app.Config.Remote.Token
	}
	url := websocketURL(addr)

	client, err := remote.Dial(cmd.Context(), url,
		remote.WithBearerToken(token),
		remote.WithClientLogger(app.Logger),
	)
	if err != nil {
		return err
	}
	defer client.Close()

	model := console.New(client, console.Options{
		Addr:    url,
		Events:  client.Events(),
		Timeout: app.Config.Remote.RequestTimeout,
		Theme:   app.Theme,
	})
	_, err = tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(cmd.Context())).Run()
	return err
}

// websocketURL turns host:port into a ws:// URL; URLs pass through.
func websocketURL(addr string) string {
	if strings.HasPrefix(addr, "ws://") || strings.HasPrefix(addr, "wss://") {
		return addr
	}
	host, port, err := net.SplitHostPort(addr)
	if err == nil && (host == "" || host == "0.0.0.0" || host == "::") {
		addr = net.JoinHostPort("127.0.0.1", port)
	}
	return "ws://" + addr + "/"
}
