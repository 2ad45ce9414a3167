package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"notionx/pkg/archive"
)

var (
	historyLimit int
	historyJSON  bool
)

// historyCmd represents the history command
var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List saved URLs",
	RunE:  runHistory,
}

func init() {
	rootCmd.AddCommand(historyCmd)
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 20, "number of entries, 0 for all")
	historyCmd.Flags().BoolVar(&historyJSON, "json", false, "print entries as JSON")
}

func runHistory(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(nil)
	if err != nil {
		return err
	}
	if !cfg.Archive.Enabled {
		return errors.New("history is disabled (archive.enabled: false)")
	}

	journal, err := archive.Open(cfg.Archive.Path)
	if err != nil {
		return err
	}
	defer journal.Close()

	entries, err := journal.List(cmd.Context(), historyLimit)
	if err != nil {
		return err
	}

	if historyJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(entries)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "SAVED\tKIND\tAUTHOR\tITEMS\tDESTINATION\tURL")
	for _, e := range entries {
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\t%s\n",
			e.SavedAt.Local().Format("2006-01-02 15:04"), e.Kind, e.Author, e.Items, e.Destination, e.URL)
	}
	return w.Flush()
}
