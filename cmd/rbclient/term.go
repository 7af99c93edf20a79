package main

import (
	"fmt"
	"io"
	"os"

	"golang.org/x/term"
)

// ANSI color codes
const (
	ansiReset = "\033[0m"
	ansiBold  = "\033[1m"
	ansiDim   = "\033[2m"
	ansiRed   = "\033[31m"
	ansiGreen = "\033[32m"
	ansiCyan  = "\033[36m"
)

// termStyle provides terminal styling helpers with automatic color detection
type termStyle struct {
	out       io.Writer
	useColors bool
}

func newTermStyle(out io.Writer) *termStyle {
	return &termStyle{
		out:       out,
		useColors: isTerminal(out),
	}
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// terminalWidth returns the width of w, or 0 when it is not a terminal.
func terminalWidth(w io.Writer) int {
	f, ok := w.(*os.File)
	if !ok || !term.IsTerminal(int(f.Fd())) {
		return 0
	}
	width, _, err := term.GetSize(int(f.Fd()))
	if err != nil {
		return 0
	}
	return width
}

func (t *termStyle) colorize(code, text string) string {
	if !t.useColors {
		return text
	}
	return code + text + ansiReset
}

// Success prints a success message with green checkmark
func (t *termStyle) Success(msg string) {
	fmt.Fprintln(t.out, t.colorize(ansiGreen, "✓ "+msg))
}

// Error prints an error message with red X
func (t *termStyle) Error(msg string) {
	fmt.Fprintln(t.out, t.colorize(ansiRed, "✗ "+msg))
}

// Dim returns dimmed text
func (t *termStyle) Dim(text string) string {
	return t.colorize(ansiDim, text)
}

// Bold returns bold text
func (t *termStyle) Bold(text string) string {
	return t.colorize(ansiBold, text)
}

// Cyan returns cyan text (for URLs, commands, paths)
func (t *termStyle) Cyan(text string) string {
	return t.colorize(ansiCyan, text)
}

// KeyValue prints a key-value pair for summaries
func (t *termStyle) KeyValue(key, value string) {
	fmt.Fprintf(t.out, "  %s  %s\n", t.Bold(fmt.Sprintf("%-22s", key+":")), value)
}

// Blank prints a blank line
func (t *termStyle) Blank() {
	fmt.Fprintln(t.out)
}
