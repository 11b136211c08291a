package main

import (
	"fmt"
	"os"
)

const (
	colorReset  = "\033[0m"
	colorRed    = "\033[31m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
	colorCyan   = "\033[36m"
	colorBold   = "\033[1m"
)

func colorize(color, text string) string {
	if noColor {
		return text
	}
	return color + text + colorReset
}

// stderrLine writes one tagged, colorized line to stderr. All CLI feedback
// goes to stderr so stdout stays clean for piped command output.
func stderrLine(color, tag, format string, args ...any) {
	fmt.Fprintln(os.Stderr, colorize(color, tag+" "+fmt.Sprintf(format, args...)))
}

func printSuccess(format string, args ...any) { stderrLine(colorGreen, "✓", format, args...) }

func printError(format string, args ...any) { stderrLine(colorRed, "✗", format, args...) }

func printWarning(format string, args ...any) { stderrLine(colorYellow, "⚠", format, args...) }

func printStep(format string, args ...any) { stderrLine(colorCyan, "→", format, args...) }

// printStatus renders one "Label: value" row of the status report.
func printStatus(label string, format string, args ...any) {
	fmt.Fprintf(os.Stderr, "  %s %s\n", colorize(colorBold, label+":"), fmt.Sprintf(format, args...))
}
