package main

import (
	"github.com/spf13/cobra"

	"notionx/pkg/browser"
	"notionx/pkg/ui"
)

// browserCmd represents the browser command
var browserCmd = &cobra.Command{
	Use:   "browser",
	Short: "Manage the browser profile used to read pages",
}

var browserLoginCmd = &cobra.Command{
	Use:   "login [url]",
	Short: "Open a visible browser to sign in",
	Long: `Open the browser profile notionx uses so you can sign in to X/Twitter.
The session stays in the profile directory. Press Ctrl+C when done.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runBrowserLogin,
}

func init() {
	rootCmd.AddCommand(browserCmd)
	browserCmd.AddCommand(browserLoginCmd)
}

func runBrowserLogin(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(nil)
	if err != nil {
		return err
	}

	url := "https://x.com/login"
	if len(args) == 1 {
		url = args[0]
	}

	ui.PrintInfo("Profile", cfg.Browser.ProfileDir)
	ui.PrintHighlight("Sign in, then press Ctrl+C to close the browser")

	bridge := browser.NewBridge(cfg.Browser, nil)
	return bridge.Login(cmd.Context(), url)
}
