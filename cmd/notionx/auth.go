package main

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"notionx/pkg/auth"
	"notionx/pkg/config"
	"notionx/pkg/notion"
	"notionx/pkg/ui"
)

var (
	authProfile    string
	authDatabase   string
	authSkipVerify bool
)

// authCmd represents the auth command
var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Manage the Notion integration token",
	Long: `Manage the stored Notion integration token.

Tokens are stored using:
  - System keychain (when available)
  - Encrypted file with PBKDF2 key derivation
  - ` + auth.EnvToken + ` environment variable (read-only)`,
}

var authLoginCmd = &cobra.Command{
	Use:   "login",
	Short: "Store a Notion integration token",
	Example: `  notionx auth login
  notionx auth login --database 0123456789abcdef0123456789abcdef`,
	Args: cobra.NoArgs,
	RunE: runAuthLogin,
}

var authLogoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Remove the stored token",
	Args:  cobra.NoArgs,
	RunE:  runAuthLogout,
}

var authStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the stored token and check it against Notion",
	Args:  cobra.NoArgs,
	RunE:  runAuthStatus,
}

func init() {
	rootCmd.AddCommand(authCmd)
	authCmd.AddCommand(authLoginCmd, authLogoutCmd, authStatusCmd)

	authCmd.PersistentFlags().StringVar(&authProfile, "profile", auth.DefaultProfile, "credential profile")
	authLoginCmd.Flags().StringVarP(&authDatabase, "database", "d", "", "database id to save into")
	authLoginCmd.Flags().BoolVar(&authSkipVerify, "skip-verify", false, "store without checking the token against Notion")
	authStatusCmd.Flags().BoolVar(&authSkipVerify, "skip-verify", false, "do not contact Notion")
}

func runAuthLogin(cmd *cobra.Command, args []string) error {
	manager, err := auth.NewManager("")
	if err != nil {
		return fmt.Errorf("failed to initialize credential manager: %w", err)
	}

	auth.ShowTokenGuide(os.Stdout)
	reader := bufio.NewReader(os.Stdin)

	var token string
	for {
		fmt.Print("\nIntegration token (hidden): ")
		token, err = readPassword(reader)
		if err != nil {
			return fmt.Errorf("failed to read token: %w", err)
		}
		if err := auth.ValidateToken(token); err != nil {
			ui.PrintError("That doesn't look like a Notion token", err)
			continue
		}
		break
	}

	database := authDatabase
	if database == "" {
		fmt.Print("Database id (optional): ")
		input, _ := reader.ReadString('\n')
		database = strings.TrimSpace(input)
	}

	cred := &auth.Credential{Profile: authProfile, Token: strings.TrimSpace(token), DatabaseID: database}
	if !authSkipVerify {
		if err := verifyCredential(cmd, cred); err != nil {
			return err
		}
	}

	if err := manager.Store(cred); err != nil {
		return err
	}
	ui.PrintSuccess(fmt.Sprintf("Token stored for profile %q", cred.Profile))
	if cred.DatabaseID == "" {
		ui.PrintWarning("No database set; run 'notionx databases list' and save with --database")
	}
	return nil
}

func runAuthLogout(cmd *cobra.Command, args []string) error {
	manager, err := auth.NewManager("")
	if err != nil {
		return fmt.Errorf("failed to initialize credential manager: %w", err)
	}
	if err := manager.Delete(authProfile); err != nil {
		return err
	}
	ui.PrintSuccess(fmt.Sprintf("Removed profile %q", authProfile))
	return nil
}

func runAuthStatus(cmd *cobra.Command, args []string) error {
	manager, err := auth.NewManager("")
	if err != nil {
		return fmt.Errorf("failed to initialize credential manager: %w", err)
	}
	cred, err := manager.Retrieve(authProfile)
	if errors.Is(err, auth.ErrCredentialsNotFound) {
		ui.PrintWarning("Not logged in; run 'notionx auth login'")
		return nil
	}
	if err != nil {
		return err
	}

	shown := auth.SanitizeCredential(cred)
	ui.PrintInfo("Profile", shown.Profile)
	ui.PrintInfo("Token", shown.Token)
	if shown.DatabaseID != "" {
		ui.PrintInfo("Database", shown.DatabaseID)
	}
	if !cred.LastModified.IsZero() {
		ui.PrintInfo("Updated", cred.LastModified.Local().Format("2006-01-02 15:04"))
	}

	if authSkipVerify {
		return nil
	}
	if err := verifyCredential(cmd, cred); err != nil {
		return err
	}
	ui.PrintSuccess("Token is valid")
	return nil
}

// verifyCredential searches for databases with the token, and retrieves the
// configured database when one is set
func verifyCredential(cmd *cobra.Command, cred *auth.Credential) error {
	cfg, err := loadConfig(nil)
	if err != nil {
		cfg = config.DefaultConfig()
	}
	client := notion.NewClient(notion.Options{
		Token:      cred.Token,
		BaseURL:    cfg.Notion.BaseURL,
		Version:    cfg.Notion.APIVersion,
		Timeout:    cfg.Notion.Timeout,
		MaxRetries: 1,
	})

	ctx := cmd.Context()
	if cred.DatabaseID == "" {
		dbs, err := client.SearchDatabases(ctx, "")
		if err != nil {
			return err
		}
		ui.PrintInfo("Databases shared", fmt.Sprint(len(dbs)))
		return nil
	}

	db, err := client.RetrieveDatabase(ctx, cred.DatabaseID)
	if err != nil {
		return err
	}
	ui.PrintInfo("Database", db.Name())
	return nil
}

func readPassword(reader *bufio.Reader) (string, error) {
	fd := int(os.Stdin.Fd())
	if term.IsTerminal(fd) {
		password, err := term.ReadPassword(fd)
		fmt.Println()
		if err == nil {
			return strings.TrimSpace(string(password)), nil
		}
	}

	input, err := reader.ReadString('\n')
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(input), nil
}
