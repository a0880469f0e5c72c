package main

import (
	"fmt"
	"os"
)

// All human-facing chatter goes to stderr so stdout stays parseable
// (profile JSON, shot URLs).

const (
	ansiReset  = "\033[0m"
	ansiRed    = "\033[31m"
	ansiGreen  = "\033[32m"
	ansiYellow = "\033[33m"
	ansiBold   = "\033[1m"
)

func paint(code, s string) string {
	if noColor {
		return s
	}
	return code + s + ansiReset
}

func stderrf(code, prefix, format string, args ...any) {
	fmt.Fprintln(os.Stderr, paint(code, prefix+fmt.Sprintf(format, args...)))
}

func printSuccess(format string, args ...any) { stderrf(ansiGreen, "✓ ", format, args...) }
func printError(format string, args ...any)   { stderrf(ansiRed, "✗ ", format, args...) }
func printWarning(format string, args ...any) { stderrf(ansiYellow, "⚠ ", format, args...) }

func printStatus(label, format string, args ...any) {
	fmt.Fprintf(os.Stderr, "  %s %s\n", paint(ansiBold, label+":"), fmt.Sprintf(format, args...))
}
