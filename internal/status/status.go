// Package status summarizes a user's pending review requests.
package status

import (
	"fmt"
	"strings"

	"github.com/sergeknystautas/rbclient/pkg/rbapi"
)

// Review request states shown by the status command.
const (
	Draft      = "Draft"
	OpenIssues = "Open Issues"
	Pending    = "Pending"
	ShipIt     = "Ship It!"
)

// States lists every state, in display order.
var States = []string{Draft, OpenIssues, Pending, ShipIt}

// Entry is one row of the status report.
type Entry struct {
	ID          int
	Status      string
	Summary     string
	Description string

	Branch      string
	HasBranch   bool
	Bookmark    string
	HasBookmark bool
}

// ValidateFilter rejects unknown state names.
func ValidateFilter(filter []string) error {
	for _, s := range filter {
		if !isState(s) {
			return fmt.Errorf("invalid status filter %q (choose from %s)", s, strings.Join(quoted(States), ", "))
		}
	}
	return nil
}

// Summarize computes the state of each review request. Requests whose state
// is excluded by filter are dropped; an empty filter keeps everything.
//
// Open issues and ship-its can coexist, so a request with either gets a
// combined state such as "Open Issues (1); Ship It! (2)" listing only the
// filtered-in counts. Otherwise a request is a Draft or Pending.
func Summarize(requests []rbapi.ReviewRequest, filter []string) []Entry {
	allowed := make(map[string]bool)
	for _, s := range filter {
		allowed[s] = true
	}
	if len(allowed) == 0 {
		for _, s := range States {
			allowed[s] = true
		}
	}

	var entries []Entry
	for i := range requests {
		rr := &requests[i]

		var state string
		if rr.IssueOpenCount > 0 || rr.ShipItCount > 0 {
			var parts []string
			if rr.IssueOpenCount > 0 && allowed[OpenIssues] {
				parts = append(parts, fmt.Sprintf("%s (%d)", OpenIssues, rr.IssueOpenCount))
			}
			if rr.ShipItCount > 0 && allowed[ShipIt] {
				parts = append(parts, fmt.Sprintf("%s (%d)", ShipIt, rr.ShipItCount))
			}
			state = strings.Join(parts, "; ")
		} else {
			state = Pending
			if rr.HasDraft() {
				state = Draft
			}
			if !allowed[state] {
				state = ""
			}
		}
		if state == "" {
			continue
		}

		entry := Entry{
			ID:          rr.ID,
			Status:      state,
			Summary:     rr.Summary,
			Description: rr.Description,
		}
		if branch, ok := rr.ExtraString("local_branch"); ok {
			entry.Branch, entry.HasBranch = branch, true
		} else if bookmark, ok := rr.ExtraString("local_bookmark"); ok {
			entry.Bookmark, entry.HasBookmark = bookmark, true
		}
		entries = append(entries, entry)
	}
	return entries
}

func isState(s string) bool {
	for _, state := range States {
		if s == state {
			return true
		}
	}
	return false
}

func quoted(values []string) []string {
	out := make([]string, len(values))
	for i, v := range values {
		out[i] = fmt.Sprintf("%q", v)
	}
	return out
}
