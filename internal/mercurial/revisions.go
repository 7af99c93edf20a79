package mercurial

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/sergeknystautas/rbclient/internal/scm"
)

const (
	// nullRevision names the empty revision that every root commit
	// descends from.
	nullRevision = "null"
	// nullNode is the short hash hg reports for nullRevision.
	nullNode = "000000000000"
)

// rangeSeparators are the accepted spellings of an explicit A..B range.
var rangeSeparators = []string{"..", "::"}

// changeset is one line of "hg outgoing" output.
type changeset struct {
	Rev    int
	Node   string
	Branch string
}

// ParseRevisionSpec resolves zero, one or two revision tokens into a range.
//
// With no tokens the range covers the outgoing changesets on the current
// branch. One token is either an explicit "A..B" / "A::B" range or a single
// revision diffed against its parent. Two tokens are base and tip. For plain
// Mercurial clones a parent base is added when base itself has not been
// pushed to the remote yet.
func (c *Client) ParseRevisionSpec(ctx context.Context, revisions []string) (*scm.RevisionRange, error) {
	var (
		result *scm.RevisionRange
		err    error
	)

	switch len(revisions) {
	case 0:
		result, err = c.resolveDefault(ctx)
	case 1:
		if base, tip, ok, splitErr := splitRange(revisions[0]); splitErr != nil {
			return nil, splitErr
		} else if ok {
			result, err = c.resolvePair(ctx, base, tip)
		} else {
			result, err = c.resolveSingle(ctx, revisions[0])
		}
	case 2:
		result, err = c.resolvePair(ctx, revisions[0], revisions[1])
	default:
		return nil, &scm.TooManyRevisionsError{Count: len(revisions)}
	}
	if err != nil {
		return nil, err
	}

	if c.repoType == scm.TypeMercurial && result.ParentBase == "" && result.Base != nullNode && c.remote() != "" {
		parentBase, err := c.unpublishedParent(ctx, result.Base)
		if err != nil {
			return nil, err
		}
		result.ParentBase = parentBase
	}
	if result.ParentBase == result.Base {
		result.ParentBase = ""
	}

	c.log.Debugf("resolved %q to base=%s tip=%s parent_base=%s commit_id=%s",
		revisions, result.Base, result.Tip, result.ParentBase, result.CommitID)
	return result, nil
}

// splitRange splits an explicit two-endpoint range. ok is false when token
// is a single revision.
func splitRange(token string) (base, tip string, ok bool, err error) {
	for _, sep := range rangeSeparators {
		before, after, found := strings.Cut(token, sep)
		if !found {
			continue
		}
		if before == "" || after == "" {
			return "", "", false, &scm.InvalidRevisionSpecError{
				Revision: token,
				Reason:   "a range needs both a start and an end revision",
			}
		}
		return before, after, true, nil
	}
	return "", "", false, nil
}

func (c *Client) resolveDefault(ctx context.Context) (*scm.RevisionRange, error) {
	if c.repoType == scm.TypeSubversion {
		return c.resolveSubversionDefault(ctx)
	}

	c.warnIfDirty(ctx)

	remote := c.remote()
	if remote == "" {
		return nil, &scm.InvalidRevisionSpecError{
			Reason: "there is no remote repository to compare against; set paths.default or use --tracking-branch",
			Err:    scm.ErrNoRemote,
		}
	}

	branch, err := c.currentBranch(ctx)
	if err != nil {
		return nil, err
	}
	all, err := c.outgoing(ctx, remote, ".")
	if err != nil {
		return nil, err
	}
	var outgoing []changeset
	for _, cs := range all {
		if cs.Branch == branch {
			outgoing = append(outgoing, cs)
		}
	}
	if len(outgoing) == 0 {
		return nil, &scm.InvalidRevisionSpecError{Err: scm.ErrNoOutgoingChanges}
	}

	bottom, top, err := c.outgoingBounds(ctx, outgoing)
	if err != nil {
		return nil, err
	}
	result := &scm.RevisionRange{}
	if result.Base, err = c.identify(ctx, bottom); err != nil {
		return nil, err
	}
	if result.Tip, err = c.identify(ctx, top); err != nil {
		return nil, err
	}

	if c.opts.ParentBranch != "" {
		result.ParentBase = result.Base
		if result.Base, err = c.identify(ctx, c.opts.ParentBranch); err != nil {
			return nil, err
		}
	} else if len(outgoing) == 1 {
		result.CommitID = result.Tip
	}
	return result, nil
}

func (c *Client) resolveSingle(ctx context.Context, token string) (*scm.RevisionRange, error) {
	tip, err := c.identify(ctx, token)
	if err != nil {
		return nil, err
	}

	parents, err := c.parents(ctx, tip)
	if err != nil {
		return nil, err
	}
	switch len(parents) {
	case 0:
		return nil, &scm.InvalidRevisionSpecError{Revision: token, Reason: "can't determine parent revision"}
	case 1:
	default:
		return nil, &scm.InvalidRevisionSpecError{
			Revision: token,
			Reason:   "revision is a merge; specify the base revision explicitly",
		}
	}

	return &scm.RevisionRange{Base: parents[0], Tip: tip, CommitID: tip}, nil
}

func (c *Client) resolvePair(ctx context.Context, baseToken, tipToken string) (*scm.RevisionRange, error) {
	base, err := c.identify(ctx, baseToken)
	if err != nil {
		return nil, err
	}
	tip, err := c.identify(ctx, tipToken)
	if err != nil {
		return nil, err
	}
	return &scm.RevisionRange{Base: base, Tip: tip}, nil
}

// unpublishedParent returns the parent of the earliest changeset between
// the remote and base, or "" when base is already on the remote.
func (c *Client) unpublishedParent(ctx context.Context, base string) (string, error) {
	outgoing, err := c.outgoing(ctx, c.remote(), base)
	if err != nil {
		return "", err
	}
	if len(outgoing) == 0 {
		return "", nil
	}

	earliest := outgoing[0]
	for _, cs := range outgoing[1:] {
		if cs.Rev < earliest.Rev {
			earliest = cs
		}
	}
	parents, err := c.parents(ctx, earliest.Node)
	if err != nil {
		return "", err
	}
	if len(parents) == 0 {
		return "", nil
	}
	return parents[0], nil
}

// outgoingBounds returns the revision the outgoing changesets were built on
// and the newest of them. Walking down from the newest, the first parent
// outside the set is the bottom. A root changeset makes the bottom null;
// otherwise, when no outside parent is found, the bottom is the revision
// before the oldest changeset.
func (c *Client) outgoingBounds(ctx context.Context, outgoing []changeset) (bottom, top string, err error) {
	inSet := make(map[int]bool, len(outgoing))
	revs := make([]int, 0, len(outgoing))
	for _, cs := range outgoing {
		if !inSet[cs.Rev] {
			inSet[cs.Rev] = true
			revs = append(revs, cs.Rev)
		}
	}
	sort.Sort(sort.Reverse(sort.IntSlice(revs)))

	bottomRev := -1
	found := false
	for _, rev := range revs {
		parents, err := c.revisionParents(ctx, rev)
		if err != nil {
			return "", "", err
		}
		if len(parents) == 0 {
			// A root: the changes start from the empty revision.
			bottomRev = -1
			break
		}
		for _, p := range parents {
			if !inSet[p] {
				bottomRev = p
				found = true
				break
			}
		}
		if found {
			break
		}
		bottomRev = rev - 1
	}

	top = strconv.Itoa(revs[0])
	if bottomRev < 0 {
		return nullRevision, top, nil
	}
	return strconv.Itoa(bottomRev), top, nil
}

// outgoing lists changesets that are ancestors of rev and missing from
// remote, in revision order.
func (c *Client) outgoing(ctx context.Context, remote, rev string) ([]changeset, error) {
	res, err := c.run(ctx, c.hg.Outgoing(remote, rev))
	if err != nil {
		return nil, err
	}
	// Exit status 1 means nothing is outgoing.
	if !res.AllowExit(1) {
		return nil, res.Err()
	}
	if res.ExitCode == 1 {
		return nil, nil
	}
	return parseOutgoing(res.Text())
}

func parseOutgoing(out string) ([]changeset, error) {
	var changesets []changeset
	for _, line := range strings.Split(out, "\n") {
		if strings.TrimSpace(line) == "" || strings.HasPrefix(line, "warning: ") {
			continue
		}
		fields := strings.Split(line, "\t")
		if len(fields) != 3 {
			return nil, fmt.Errorf("unexpected hg outgoing output: %q", line)
		}
		rev, err := strconv.Atoi(strings.TrimSpace(fields[0]))
		if err != nil {
			return nil, fmt.Errorf("unexpected revision in hg outgoing output: %q", line)
		}
		branch := strings.TrimSpace(fields[2])
		if branch == "" {
			branch = "default"
		}
		changesets = append(changesets, changeset{
			Rev:    rev,
			Node:   strings.TrimSpace(fields[1]),
			Branch: branch,
		})
	}
	return changesets, nil
}

// identify resolves a revision token to its short hash.
func (c *Client) identify(ctx context.Context, token string) (string, error) {
	res, err := c.run(ctx, c.hg.Identify(token))
	if err != nil {
		return "", err
	}
	if !res.OK() {
		return "", &scm.InvalidRevisionSpecError{Revision: token, Err: res.Err()}
	}
	fields := strings.Fields(res.Text())
	if len(fields) == 0 {
		return "", &scm.InvalidRevisionSpecError{Revision: token, Reason: "revision not found"}
	}
	return fields[0], nil
}

// parents returns the short hashes of rev's parents.
func (c *Client) parents(ctx context.Context, rev string) ([]string, error) {
	res, err := c.run(ctx, c.hg.Parents(rev))
	if err != nil {
		return nil, err
	}
	if !res.OK() {
		return nil, &scm.InvalidRevisionSpecError{Revision: rev, Err: res.Err()}
	}
	return strings.Fields(res.Text()), nil
}

// revisionParents returns the local revision numbers of rev's parents.
func (c *Client) revisionParents(ctx context.Context, rev int) ([]int, error) {
	token := strconv.Itoa(rev)
	res, err := c.run(ctx, c.hg.RevisionParents(token))
	if err != nil {
		return nil, err
	}
	if !res.OK() {
		return nil, &scm.InvalidRevisionSpecError{Revision: token, Err: res.Err()}
	}

	var parents []int
	for _, field := range strings.Fields(res.Text()) {
		p, err := strconv.Atoi(field)
		if err != nil {
			return nil, fmt.Errorf("unexpected parent revision %q for %s", field, token)
		}
		if p >= 0 {
			parents = append(parents, p)
		}
	}
	return parents, nil
}

func (c *Client) currentBranch(ctx context.Context) (string, error) {
	res, err := c.run(ctx, c.hg.Branch())
	if err != nil {
		return "", err
	}
	if !res.OK() {
		return "", res.Err()
	}
	return strings.TrimSpace(res.Text()), nil
}

func (c *Client) warnIfDirty(ctx context.Context) {
	if c.opts.SuppressWarnings {
		return
	}
	dirty, err := c.HasPendingChanges(ctx)
	if err != nil {
		c.log.Debugf("could not check for uncommitted changes: %v", err)
		return
	}
	if dirty {
		c.log.Warnf("Your working directory has uncommitted changes; they will not be included in the diff.")
	}
}
