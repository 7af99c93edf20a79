// Package editor collects free-form text, such as commit messages, from the
// user.
package editor

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"

	"golang.org/x/term"
)

// ErrNoTerminal is returned when editing needs a terminal and stdin is not one.
var ErrNoTerminal = errors.New("no interactive terminal available")

// Editor lets the user edit text. Implementations return the edited text
// exactly as the user left it, apart from trailing whitespace.
type Editor interface {
	Edit(ctx context.Context, text string) (string, error)
}

// Default returns an External editor when command or the environment names
// one, and the built-in Form otherwise.
func Default(command string) Editor {
	if command != "" {
		return &External{Command: command}
	}
	if os.Getenv("VISUAL") != "" || os.Getenv("EDITOR") != "" {
		return &External{}
	}
	return &Form{}
}

// External runs a text editor on a temporary file.
type External struct {
	// Command is the editor to run. Empty falls back to $VISUAL, $EDITOR
	// and then vi.
	Command string
	// In, Out and Err default to the process's standard streams.
	In  *os.File
	Out *os.File
	Err *os.File
}

func (e *External) command() []string {
	for _, candidate := range []string{e.Command, os.Getenv("VISUAL"), os.Getenv("EDITOR")} {
		if fields := strings.Fields(candidate); len(fields) > 0 {
			return fields
		}
	}
	return []string{"vi"}
}

// Edit writes text to a temporary file, runs the editor on it and returns
// the file's new contents.
func (e *External) Edit(ctx context.Context, text string) (string, error) {
	in, out, errOut := e.In, e.Out, e.Err
	if in == nil {
		in = os.Stdin
	}
	if out == nil {
		out = os.Stdout
	}
	if errOut == nil {
		errOut = os.Stderr
	}
	if !term.IsTerminal(int(in.Fd())) {
		return "", ErrNoTerminal
	}

	f, err := os.CreateTemp("", "rbclient-edit-*.txt")
	if err != nil {
		return "", fmt.Errorf("failed to create temp file: %w", err)
	}
	path := f.Name()
	defer os.Remove(path)

	if _, err := f.WriteString(text); err != nil {
		f.Close()
		return "", fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("failed to write temp file: %w", err)
	}

	argv := append(e.command(), path)
	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	cmd.Stdin = in
	cmd.Stdout = out
	cmd.Stderr = errOut
	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("editor %s failed: %w", argv[0], err)
	}

	edited, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read edited file: %w", err)
	}
	return strings.TrimRight(string(edited), " \t\r\n"), nil
}
