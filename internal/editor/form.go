package editor

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/huh"
	"golang.org/x/term"
)

// Form edits text in a multi-line huh form, for terminals without a
// configured editor.
type Form struct {
	Title string
	// In and Out default to stdin and stdout.
	In  *os.File
	Out *os.File
}

func (f *Form) Edit(ctx context.Context, text string) (string, error) {
	in, out := f.In, f.Out
	if in == nil {
		in = os.Stdin
	}
	if out == nil {
		out = os.Stdout
	}
	if !term.IsTerminal(int(in.Fd())) {
		return "", ErrNoTerminal
	}

	title := f.Title
	if title == "" {
		title = "Commit message"
	}

	value := text
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewText().
				Title(title).
				Description("Leave empty to abort.").
				Lines(10).
				Value(&value),
		),
	).WithInput(in).WithOutput(out)

	if err := form.RunWithContext(ctx); err != nil {
		if errors.Is(err, huh.ErrUserAborted) {
			return "", nil
		}
		return "", fmt.Errorf("failed to read text: %w", err)
	}
	return strings.TrimRight(value, " \t\r\n"), nil
}
