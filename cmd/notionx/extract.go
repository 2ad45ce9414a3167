package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"notionx/pkg/models"
	"notionx/pkg/ui"
)

var (
	extractHTML string
	extractJSON bool
)

// extractCmd represents the extract command
var extractCmd = &cobra.Command{
	Use:   "extract [url]",
	Short: "Extract a thread without saving it",
	Long: `Run the thread extractor and print the result. With --html the
extractor reads a saved page instead of opening a browser; the URL then
only selects the anchor post.`,
	Example: `  notionx extract https://x.com/alice/status/1
  notionx extract --html thread.html --json`,
	Args: func(cmd *cobra.Command, args []string) error {
		if extractHTML == "" && len(args) != 1 {
			return errors.New("a URL is required without --html")
		}
		return cobra.MaximumNArgs(1)(cmd, args)
	},
	RunE: runExtract,
}

func init() {
	rootCmd.AddCommand(extractCmd)
	extractCmd.Flags().StringVar(&extractHTML, "html", "", "saved HTML file to read")
	extractCmd.Flags().BoolVar(&extractJSON, "json", false, "print the content as JSON")
}

func runExtract(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(nil)
	if err != nil {
		return err
	}

	a, err := newApp(cfg, appOptions{snapshotPath: extractHTML, extractOnly: true})
	if err != nil {
		return err
	}
	defer a.Close()

	url := ""
	if len(args) == 1 {
		url = args[0]
	}
	content, err := a.saver.Extract(cmd.Context(), url)
	if err != nil {
		return err
	}

	if extractJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		enc.SetEscapeHTML(false)
		return enc.Encode(content)
	}
	printContent(content)
	return nil
}

func printContent(c *models.Content) {
	ui.PrintInfo("URL", c.URL)
	ui.PrintInfo("Type", c.Type)
	if c.Author != "" {
		ui.PrintInfo("Author", c.Author)
	}
	if c.Reason != "" {
		ui.PrintInfo("Stopped", c.Reason)
	}
	if c.Cover != "" {
		ui.PrintInfo("Cover", c.Cover)
	}

	if len(c.Items) == 0 {
		fmt.Println()
		fmt.Println(c.Body)
		return
	}
	for i, item := range c.Items {
		fmt.Printf("\n%s\n%s\n", ui.Dim(fmt.Sprintf("── %d/%d ──", i+1, len(c.Items))), item)
	}
}
