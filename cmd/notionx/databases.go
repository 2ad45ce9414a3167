package main

import (
	"errors"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"notionx/pkg/notion"
	"notionx/pkg/ui"
)

var databasesDatabase string

// databasesCmd represents the databases command
var databasesCmd = &cobra.Command{
	Use:   "databases",
	Short: "Inspect and prepare Notion databases",
}

var databasesListCmd = &cobra.Command{
	Use:   "list [query]",
	Short: "List databases shared with the integration",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runDatabasesList,
}

var databasesPrepareCmd = &cobra.Command{
	Use:   "prepare",
	Short: "Add the content type options to the database",
	Long: `Add the select options used for the content type (` + notion.TypeProperty + `)
to the target database, with their colors, and print the columns notionx fills.`,
	RunE: runDatabasesPrepare,
}

func init() {
	rootCmd.AddCommand(databasesCmd)
	databasesCmd.AddCommand(databasesListCmd)
	databasesCmd.AddCommand(databasesPrepareCmd)
	databasesPrepareCmd.Flags().StringVarP(&databasesDatabase, "database", "d", "", "Notion database id")
}

func runDatabasesList(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(nil)
	if err != nil {
		return err
	}
	a, err := notionOnly(cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	query := ""
	if len(args) == 1 {
		query = args[0]
	}
	dbs, err := a.client.SearchDatabases(cmd.Context(), query)
	if err != nil {
		return err
	}
	if len(dbs) == 0 {
		ui.PrintWarning("No databases found. Share a database with the integration first.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tURL")
	for _, db := range dbs {
		marker := ""
		if db.ID == cfg.Notion.DatabaseID {
			marker = " *"
		}
		fmt.Fprintf(w, "%s\t%s%s\t%s\n", db.ID, db.Name(), marker, db.URL)
	}
	return w.Flush()
}

func runDatabasesPrepare(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(map[string]interface{}{"database": databasesDatabase})
	if err != nil {
		return err
	}
	a, err := notionOnly(cfg)
	if err != nil {
		return err
	}
	defer a.Close()
	if a.sink == nil {
		return errors.New("no Notion database configured, pass --database or set notion.database_id")
	}

	ctx := cmd.Context()
	if err := a.sink.Prepare(ctx); err != nil {
		return err
	}
	db, err := a.sink.Schema(ctx)
	if err != nil {
		return err
	}

	ui.PrintSuccess(fmt.Sprintf("Database %q is ready", db.Name()))
	for name, prop := range db.Properties {
		ui.PrintInfo(name, prop.Type)
	}
	return nil
}
