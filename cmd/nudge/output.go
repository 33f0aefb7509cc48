package main

import (
	"fmt"
	"os"
)

// ANSI codes for CLI output. paint strips them when --no-color is set.
const (
	ansiReset  = "\033[0m"
	ansiRed    = "\033[31m"
	ansiGreen  = "\033[32m"
	ansiYellow = "\033[33m"
	ansiCyan   = "\033[36m"
	ansiBold   = "\033[1m"
)

func paint(code, text string) string {
	if noColor {
		return text
	}
	return code + text + ansiReset
}

// note writes one glyph-prefixed status line to stderr, keeping stdout clean
// for machine-readable output.
func note(code, glyph, format string, args ...any) {
	fmt.Fprintln(os.Stderr, paint(code, glyph+" "+fmt.Sprintf(format, args...)))
}

func printSuccess(format string, args ...any) { note(ansiGreen, "✓", format, args...) }
func printError(format string, args ...any)   { note(ansiRed, "✗", format, args...) }
func printWarning(format string, args ...any) { note(ansiYellow, "⚠", format, args...) }
func printStep(format string, args ...any)    { note(ansiCyan, "→", format, args...) }

func printStatus(label, format string, args ...any) {
	fmt.Fprintf(os.Stderr, "  %s %s\n", paint(ansiBold, label+":"), fmt.Sprintf(format, args...))
}
