package status

import (
	"fmt"
	"io"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
)

// Tabulate writes entries as a table no wider than width, or the empty
// report when there are none. width <= 0 leaves the table unconstrained.
func Tabulate(w io.Writer, entries []Entry, width int) error {
	if len(entries) == 0 {
		_, err := fmt.Fprint(w, "No review requests found.\n\n")
		return err
	}

	var hasBranches, hasBookmarks bool
	for _, e := range entries {
		hasBranches = hasBranches || e.HasBranch
		hasBookmarks = hasBookmarks || e.HasBookmark
	}

	headers := []string{"Status", "Review Request"}
	if hasBranches {
		headers = append(headers, "Branch")
	}
	if hasBookmarks {
		headers = append(headers, "Bookmark")
	}

	t := table.New().
		Border(lipgloss.NormalBorder()).
		Headers(headers...).
		StyleFunc(func(row, col int) lipgloss.Style {
			return lipgloss.NewStyle().Padding(0, 1)
		})
	for _, e := range entries {
		row := []string{e.Status, fmt.Sprintf("r/%d - %s", e.ID, e.Summary)}
		if hasBranches {
			row = append(row, e.Branch)
		}
		if hasBookmarks {
			row = append(row, e.Bookmark)
		}
		t.Row(row...)
	}
	if width > 0 {
		t.Width(width)
	}

	_, err := fmt.Fprintf(w, "%s\n\n", t.String())
	return err
}
