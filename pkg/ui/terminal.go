package ui

import (
	"fmt"
	"io"
	"os"
	"sync/atomic"
)

// ASCIILogo is printed by the root command
const ASCIILogo = `
    ╔═══════════════════════════════════════════════╗
    ║  ███╗   ██╗ ██████╗ ████████╗██╗ ██████╗ ███╗   ██╗██╗  ██╗ ║
    ║  ████╗  ██║██╔═══██╗╚══██╔══╝██║██╔═══██╗████╗  ██║╚██╗██╔╝ ║
    ║  ██╔██╗ ██║██║   ██║   ██║   ██║██║   ██║██╔██╗ ██║ ╚███╔╝  ║
    ║  ██║╚██╗██║██║   ██║   ██║   ██║██║   ██║██║╚██╗██║ ██╔██╗  ║
    ║  ██║ ╚████║╚██████╔╝   ██║   ██║╚██████╔╝██║ ╚████║██╔╝ ██╗ ║
    ║  ╚═╝  ╚═══╝ ╚═════╝    ╚═╝   ╚═╝ ╚═════╝ ╚═╝  ╚═══╝╚═╝  ╚═╝ ║
    ║          THREAD HARVESTER - SAVE TO NOTION          ║
    ╚═══════════════════════════════════════════════╝
`

// Color functions for terminal output
var (
	Cyan    = colorize("\033[36m%s\033[0m")
	Yellow  = colorize("\033[33m%s\033[0m")
	Red     = colorize("\033[31m%s\033[0m")
	Green   = colorize("\033[32m%s\033[0m")
	Magenta = colorize("\033[35m%s\033[0m")
	Dim     = colorize("\033[2m%s\033[0m")
)

var (
	quiet   atomic.Bool
	noColor atomic.Bool
	out     io.Writer = os.Stdout
)

// SetQuietMode suppresses informational output
func SetQuietMode(q bool) { quiet.Store(q) }

// IsQuietMode reports whether informational output is suppressed
func IsQuietMode() bool { return quiet.Load() }

// SetNoColor disables ANSI colors
func SetNoColor(v bool) { noColor.Store(v) }

// SetOutput redirects terminal output, mainly for tests
func SetOutput(w io.Writer) { out = w }

// colorize returns a function that wraps text with ANSI color codes
func colorize(colorString string) func(string) string {
	return func(text string) string {
		if noColor.Load() {
			return text
		}
		return fmt.Sprintf(colorString, text)
	}
}

// PrintLogo prints the ASCII logo with color
func PrintLogo() {
	if IsQuietMode() {
		return
	}
	fmt.Fprint(out, Cyan(ASCIILogo))
}

// PrintError prints an error message in red. Errors are printed in quiet mode too.
func PrintError(msg string, args ...interface{}) {
	if len(args) > 0 {
		fmt.Fprintln(out, Red(msg+": "+fmt.Sprintf("%v", args[0])))
	} else {
		fmt.Fprintln(out, Red(msg))
	}
}

// PrintSuccess prints a success message in green
func PrintSuccess(msg string) {
	if IsQuietMode() {
		return
	}
	fmt.Fprintln(out, Green(msg))
}

// PrintInfo prints a label and value
func PrintInfo(label string, value string) {
	if IsQuietMode() {
		return
	}
	fmt.Fprintf(out, "%s: %s\n", Cyan(label), Yellow(value))
}

// PrintWarning prints a warning message in yellow
func PrintWarning(msg string, args ...interface{}) {
	if IsQuietMode() {
		return
	}
	if len(args) > 0 {
		fmt.Fprintln(out, Yellow(msg+": "+fmt.Sprintf("%v", args[0])))
	} else {
		fmt.Fprintln(out, Yellow(msg))
	}
}

// PrintHighlight prints a highlighted message in magenta
func PrintHighlight(msg string) {
	if IsQuietMode() {
		return
	}
	fmt.Fprintln(out, Magenta(msg))
}
