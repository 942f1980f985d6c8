package main

import (
	"fmt"
	"net/url"
	"os"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/pcg-live/monitor/internal/tui/app"
	"github.com/pcg-live/monitor/internal/tui/client"
)

var (
	wsURL  string
	token  string
	locale string
)

var rootCmd = &cobra.Command{
	Use:          "pcg-tui",
	Short:        "Terminal dashboard for the live PCG monitor",
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		ws := client.NewWSClient(wsURL, token)
		defer ws.Close()
		api := client.NewHTTPClient(deriveHTTPBase(wsURL), token, locale)

		p := tea.NewProgram(app.New(ws, api, locale), tea.WithAltScreen())
		_, err := p.Run()
		return err
	},
}

func init() {
	rootCmd.Flags().StringVar(&wsURL, "url", "ws://127.0.0.1:8080/ws", "websocket URL of the monitor server")
	rootCmd.Flags().StringVar(&token, "token", os.Getenv("PCG_TOKEN"), "auth token, if the server requires one")
	rootCmd.Flags().StringVar(&locale, "locale", "en", "label locale")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// deriveHTTPBase converts ws://host:port/ws to http://host:port.
func deriveHTTPBase(wsURL string) string {
	u, err := url.Parse(wsURL)
	if err != nil || u.Host == "" {
		return "http://127.0.0.1:8080"
	}
	scheme := "http"
	if strings.HasPrefix(u.Scheme, "wss") {
		scheme = "https"
	}
	return fmt.Sprintf("%s://%s", scheme, u.Host)
}
