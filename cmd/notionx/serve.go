package main

import (
	"github.com/spf13/cobra"

	"notionx/internal/server"
	"notionx/pkg/ui"
)

var serveAddr string

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the local HTTP bridge",
	Long: `Listen on a loopback address and save URLs posted by a browser extension
or userscript:

  POST /save     {"url": "...", "force": false}
  GET  /history  ?limit=50
  GET  /healthz`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (default "+server.DefaultAddr+")")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(map[string]interface{}{"addr": serveAddr})
	if err != nil {
		return err
	}

	a, err := newApp(cfg, appOptions{})
	if err != nil {
		return err
	}
	defer a.Close()

	var history server.History
	if a.journal != nil {
		history = a.journal
	}

	ui.PrintInfo("Listening", "http://"+cfg.Server.Addr)
	return server.New(a.saver, history, version, a.log).ListenAndServe(cmd.Context(), cfg.Server.Addr)
}
