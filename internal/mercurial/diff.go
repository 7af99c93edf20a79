package mercurial

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/sergeknystautas/rbclient/internal/scm"
)

// Diff produces a git-style diff of revisions, plus a parent diff when the
// range has a parent base and the repository supports parent diffs. Files
// matching opts.ExcludePatterns are left out; when that leaves nothing, the
// diff is empty rather than an error.
func (c *Client) Diff(ctx context.Context, revisions *scm.RevisionRange, opts scm.DiffOptions) (*scm.DiffResult, error) {
	if revisions == nil || revisions.Base == "" || revisions.Tip == "" {
		return nil, fmt.Errorf("diff needs both a base and a tip revision")
	}
	patterns, err := normalizePatterns(opts.ExcludePatterns)
	if err != nil {
		return nil, err
	}

	result := &scm.DiffResult{
		CommitID:     revisions.CommitID,
		BaseCommitID: revisions.Base,
	}

	result.Diff, err = c.diffBetween(ctx, revisions.Base, revisions.Tip, patterns, opts.IncludeFiles)
	if err != nil {
		return nil, err
	}

	if revisions.HasParentBase() && c.info.SupportsParentDiffs {
		result.ParentDiff, err = c.diffBetween(ctx, revisions.ParentBase, revisions.Base, patterns, opts.IncludeFiles)
		if err != nil {
			return nil, err
		}
		result.BaseCommitID = revisions.ParentBase
	}
	return result, nil
}

// diffBetween runs hg diff from base to tip. The returned slice is never nil.
func (c *Client) diffBetween(ctx context.Context, base, tip string, patterns, include []string) ([]byte, error) {
	var excluded []string
	if len(patterns) > 0 {
		changed, err := c.changedFiles(ctx, base, tip)
		if err != nil {
			return nil, err
		}
		if len(include) > 0 {
			changed = intersect(changed, include)
		}

		excluded = matchingFiles(changed, patterns)
		if len(changed) > 0 && len(excluded) == len(changed) {
			c.log.Debugf("every file changed in %s..%s is excluded", base, tip)
			return []byte{}, nil
		}
	}

	res, err := c.run(ctx, c.hg.Diff(base, tip, excluded, include))
	if err != nil {
		return nil, err
	}
	if !res.OK() {
		return nil, &scm.DiffGenerationError{Base: base, Tip: tip, Err: res.Err()}
	}
	if res.Stdout == nil {
		return []byte{}, nil
	}
	return res.Stdout, nil
}

// changedFiles lists root-relative paths changed between base and tip.
func (c *Client) changedFiles(ctx context.Context, base, tip string) ([]string, error) {
	res, err := c.run(ctx, c.hg.StatusBetween(base, tip))
	if err != nil {
		return nil, err
	}
	if !res.OK() {
		return nil, &scm.DiffGenerationError{Base: base, Tip: tip, Err: res.Err()}
	}

	var files []string
	for _, line := range strings.Split(res.Text(), "\n") {
		if line = strings.TrimSpace(line); line != "" {
			files = append(files, line)
		}
	}
	return files, nil
}

// normalizePatterns makes patterns root-relative and checks their syntax.
func normalizePatterns(patterns []string) ([]string, error) {
	out := make([]string, 0, len(patterns))
	for _, p := range patterns {
		p = strings.TrimSpace(p)
		p = strings.TrimPrefix(p, "./")
		p = strings.TrimLeft(p, "/")
		if p == "" {
			continue
		}
		if !doublestar.ValidatePattern(p) {
			return nil, fmt.Errorf("invalid exclude pattern %q", p)
		}
		out = append(out, p)
	}
	return out, nil
}

// matchingFiles returns the sorted subset of files matched by any pattern. A
// pattern naming a directory also matches everything beneath it.
func matchingFiles(files, patterns []string) []string {
	var matched []string
	for _, f := range files {
		for _, p := range patterns {
			if ok, _ := doublestar.Match(p, f); ok {
				matched = append(matched, f)
				break
			}
			if ok, _ := doublestar.Match(strings.TrimSuffix(p, "/")+"/**", f); ok {
				matched = append(matched, f)
				break
			}
		}
	}
	sort.Strings(matched)
	return matched
}

func intersect(files, include []string) []string {
	want := make(map[string]bool, len(include))
	for _, f := range include {
		want[f] = true
	}
	var out []string
	for _, f := range files {
		if want[f] {
			out = append(out, f)
		}
	}
	return out
}
