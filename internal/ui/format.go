package ui

import (
	stderrors "errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"cda/pkg/errors"
	"github.com/mattn/go-isatty"
	"github.com/mgutz/ansi"
)

var (
	// Output receives every status line; tests swap it for a buffer
	Output io.Writer = os.Stdout

	supportsColor = isatty.IsTerminal(os.Stdout.Fd()) || isatty.IsCygwinTerminal(os.Stdout.Fd())

	ColorSuccess  = colorFunc(ansi.Green)
	ColorError    = colorFunc(ansi.Red)
	ColorWarning  = colorFunc(ansi.Yellow)
	ColorInfo     = colorFunc(ansi.Cyan)
	ColorProgress = colorFunc(ansi.Blue)
	ColorBold     = colorFunc("default+b")
	ColorDim      = colorFunc("default+h")
)

// colorFunc returns a function that colors text if supported
func colorFunc(color string) func(string) string {
	return func(text string) string {
		if supportsColor {
			return ansi.Color(text, color)
		}
		return text
	}
}

// ShowHeader displays a formatted header
func ShowHeader(title string) {
	width := 50
	if len(title)+4 > width {
		width = len(title) + 4
	}
	padding := (width - len(title) - 2) / 2

	fmt.Fprintln(Output, "\n+"+strings.Repeat("-", width-2)+"+")
	fmt.Fprintf(Output, "|%s%s%s|\n",
		strings.Repeat(" ", padding),
		ColorBold(title),
		strings.Repeat(" ", width-2-padding-len(title)),
	)
	fmt.Fprintln(Output, "+"+strings.Repeat("-", width-2)+"+")
}

// ShowError displays an error; suggestions carried by the error are printed as part
// of its message, otherwise a hint is derived from the text
func ShowError(err error) {
	lines := strings.Split(err.Error(), "\n")
	fmt.Fprintf(Output, "\n%s %s\n", ColorError("ERROR:"), lines[0])
	for _, line := range lines[1:] {
		fmt.Fprintf(Output, "  %s\n", ColorDim(line))
	}

	var appErr *errors.AppError
	if stderrors.As(err, &appErr) && len(appErr.Suggestions) > 0 {
		return
	}
	if suggestion := getSuggestion(err.Error()); suggestion != "" {
		fmt.Fprintf(Output, "\n  %s %s\n", ColorInfo("TIP:"), suggestion)
	}
}

// ShowSuccess displays a success message
func ShowSuccess(message string) {
	fmt.Fprintf(Output, "%s %s\n", ColorSuccess("SUCCESS:"), message)
}

// ShowWarning displays a warning message
func ShowWarning(message string) {
	fmt.Fprintf(Output, "%s %s\n", ColorWarning("WARNING:"), ColorWarning(message))
}

// ShowInfo displays an info message
func ShowInfo(message string) {
	fmt.Fprintf(Output, "%s %s\n", ColorInfo("INFO:"), message)
}

// PrintSection prints a section header
func PrintSection(title string) {
	fmt.Fprintf(Output, "\n%s %s\n", ColorBold("▶"), ColorBold(title))
	fmt.Fprintln(Output, strings.Repeat("─", 50))
}

// PrintKeyValue prints a key-value pair in a formatted way
func PrintKeyValue(key, value string) {
	fmt.Fprintf(Output, "  %-20s %s\n", ColorDim(key+":"), value)
}

func getSuggestion(message string) string {
	lower := strings.ToLower(message)

	switch {
	case strings.Contains(lower, "authentication failed"):
		return "Run 'cda setup' to store the Snowflake password again"
	case strings.Contains(lower, "connection refused"):
		return "Verify your Snowflake account identifier and network connectivity"
	case strings.Contains(lower, "_success"):
		return "Wait for the ingestion run to finish writing its _SUCCESS marker"
	case strings.Contains(lower, "does not exist"):
		return "Check the raw_schema setting and that the connector has landed the table"
	default:
		return ""
	}
}

// formatDuration formats a duration in a human-readable way
func formatDuration(d time.Duration) string {
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	if d < time.Minute {
		return fmt.Sprintf("%.1fs", d.Seconds())
	}
	if d < time.Hour {
		minutes := int(d.Minutes())
		seconds := int(d.Seconds()) % 60
		return fmt.Sprintf("%dm%ds", minutes, seconds)
	}
	hours := int(d.Hours())
	minutes := int(d.Minutes()) % 60
	return fmt.Sprintf("%dh%dm", hours, minutes)
}
