package auth

import (
	"fmt"
	"io"
	"strings"
)

// IntegrationsURL is where Notion integrations are created
const IntegrationsURL = "https://www.notion.so/my-integrations"

// ShowTokenGuide explains how to obtain an integration token and share a database with it
func ShowTokenGuide(w io.Writer) {
	fmt.Fprintln(w, strings.Repeat("=", 72))
	fmt.Fprintln(w, "NOTION INTEGRATION SETUP")
	fmt.Fprintln(w, strings.Repeat("=", 72))
	fmt.Fprintln(w)
	fmt.Fprintln(w, "STEP 1: Create an internal integration")
	fmt.Fprintf(w, "   - Open %s\n", IntegrationsURL)
	fmt.Fprintln(w, "   - Click 'New integration', pick the workspace and save")
	fmt.Fprintln(w, "   - Copy the 'Internal Integration Secret' (starts with ntn_ or secret_)")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "STEP 2: Share the target database with the integration")
	fmt.Fprintln(w, "   - Open the database page in Notion")
	fmt.Fprintln(w, "   - Click '...' → 'Connections' → add your integration")
	fmt.Fprintln(w, "   - Without this step every save fails with 无访问权限")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "STEP 3: Find the database id")
	fmt.Fprintln(w, "   - Copy the database link; the id is the 32 hex characters before '?v='")
	fmt.Fprintln(w, "   - Or run 'notionx databases list' after logging in")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "The token is kept in the system keychain, or in an encrypted file")
	fmt.Fprintln(w, "when no keychain is available.")
	fmt.Fprintln(w, strings.Repeat("=", 72))
}
