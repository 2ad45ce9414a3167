package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"notionx/internal/batch"
	"notionx/pkg/saver"
	"notionx/pkg/ui"
)

var (
	saveForce      bool
	saveDatabase   string
	saveTargets    []string
	saveOutput     string
	saveConcurrent int
	saveHeadless   bool
	saveRPS        float64
	saveHTML       string
)

// saveCmd represents the save command
var saveCmd = &cobra.Command{
	Use:   "save <url>...",
	Short: "Save threads or pages to Notion",
	Long: `Open each URL, extract the thread (or the page text for non-thread pages)
and deliver it to the configured targets.

URLs already saved to a target are skipped unless --force is given.`,
	Example: `  # Save a thread
  notionx save https://x.com/alice/status/1790000000000000000

  # Save several posts, also exporting markdown
  notionx save --targets notion,markdown URL1 URL2 URL3

  # Save from a page saved with the browser
  notionx save --html thread.html https://x.com/alice/status/1`,
	Args: func(cmd *cobra.Command, args []string) error {
		if saveHTML == "" && len(args) == 0 {
			return errors.New("at least one URL is required")
		}
		if saveHTML != "" && len(args) > 1 {
			return errors.New("--html takes at most one URL")
		}
		return nil
	},
	RunE: runSave,
}

func init() {
	rootCmd.AddCommand(saveCmd)

	saveCmd.Flags().BoolVarP(&saveForce, "force", "f", false, "save again even if already saved")
	saveCmd.Flags().StringVarP(&saveDatabase, "database", "d", "", "Notion database id")
	saveCmd.Flags().StringSliceVarP(&saveTargets, "targets", "t", nil, "delivery targets (notion, markdown)")
	saveCmd.Flags().StringVarP(&saveOutput, "output", "o", "", "markdown export directory")
	saveCmd.Flags().IntVar(&saveConcurrent, "concurrent", 0, "pages extracted at once")
	saveCmd.Flags().BoolVar(&saveHeadless, "headless", true, "run the browser headless")
	saveCmd.Flags().Float64Var(&saveRPS, "rps", 0, "Notion requests per second")
	saveCmd.Flags().StringVar(&saveHTML, "html", "", "read a saved HTML file instead of opening a browser")
}

func runSave(cmd *cobra.Command, args []string) error {
	flags := map[string]interface{}{
		"database":   saveDatabase,
		"targets":    saveTargets,
		"output":     saveOutput,
		"concurrent": saveConcurrent,
		"rps":        saveRPS,
	}
	if cmd.Flags().Changed("headless") {
		flags["headless"] = saveHeadless
	}

	cfg, err := loadConfig(flags)
	if err != nil {
		return err
	}

	a, err := newApp(cfg, appOptions{snapshotPath: saveHTML})
	if err != nil {
		return err
	}
	defer a.Close()

	ui.PrintInfo("Targets", strings.Join(a.saver.SinkNames(), ", "))

	ctx := cmd.Context()
	if saveHTML != "" {
		url := ""
		if len(args) == 1 {
			url = args[0]
		}
		content, err := a.saver.Extract(ctx, url)
		if err != nil {
			return err
		}
		outcome, err := a.saver.Deliver(ctx, content, saveForce)
		printOutcome(content.URL, outcome, err)
		return err
	}

	if len(args) == 1 {
		ui.PrintInfo("URL", args[0])
		outcome, err := a.saver.Save(ctx, args[0], saveForce)
		printOutcome(args[0], outcome, err)
		return err
	}

	tracker := ui.NewStatusTracker(len(args))
	results := a.saver.SaveAll(ctx, args, saveForce, cfg.Browser.ConcurrentPages, func(r batch.Result[*saver.Outcome]) {
		switch {
		case r.Error != nil:
			tracker.RecordFailed()
		case r.Value != nil && r.Value.AlreadySaved():
			tracker.RecordSkipped()
		default:
			tracker.RecordSaved()
		}
		tracker.PrintProgress()
	})
	if !ui.IsQuietMode() {
		fmt.Println()
	}

	var failed int
	for _, r := range results {
		printOutcome(r.Job.URL, r.Value, r.Error)
		if r.Error != nil {
			failed++
		}
	}
	ui.PrintHighlight(tracker.Summary())
	if failed > 0 {
		return fmt.Errorf("%d of %d URLs failed", failed, len(args))
	}
	return nil
}

func printOutcome(url string, o *saver.Outcome, err error) {
	if err != nil {
		ui.PrintError(url, saver.Describe(err))
	}
	if o == nil {
		return
	}
	if o.AlreadySaved() {
		ui.PrintWarning("Already saved", url)
		return
	}
	for _, r := range o.Receipts {
		where := r.Location
		if where == "" {
			where = r.RemoteID
		}
		ui.PrintSuccess(fmt.Sprintf("✓ %s → %s %s", url, r.Sink, where))
	}
	for _, name := range o.Skipped {
		ui.PrintInfo("Skipped", name+" already has "+url)
	}
}
