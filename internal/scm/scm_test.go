package scm

import (
	"errors"
	"strings"
	"testing"
)

func TestCapabilityCache_ChecksOnce(t *testing.T) {
	c := NewCapabilityCache()
	calls := 0
	check := func() bool {
		calls++
		return true
	}

	if !c.Lookup("hg.hgsubversion", check) {
		t.Fatal("first Lookup() = false, want true")
	}
	if !c.Lookup("hg.hgsubversion", check) {
		t.Fatal("second Lookup() = false, want true")
	}
	if calls != 1 {
		t.Errorf("check ran %d times, want 1", calls)
	}
	if c.Checks() != 1 {
		t.Errorf("Checks() = %d, want 1", c.Checks())
	}

	if v, ok := c.Cached("hg.hgsubversion"); !ok || !v {
		t.Errorf("Cached() = %v, %v; want true, true", v, ok)
	}
	if _, ok := c.Cached("hg.other"); ok {
		t.Error("Cached() reported a key that was never checked")
	}
}

func TestCapabilityCache_CachesFalse(t *testing.T) {
	c := NewCapabilityCache()
	calls := 0
	check := func() bool {
		calls++
		return false
	}

	c.Lookup("hg.hgsubversion", check)
	c.Lookup("hg.hgsubversion", check)
	if calls != 1 {
		t.Errorf("check ran %d times, want 1", calls)
	}
}

func TestCapabilityCache_Reset(t *testing.T) {
	c := NewCapabilityCache()
	c.Lookup("hg.hgsubversion", func() bool { return true })
	c.Reset()

	if _, ok := c.Cached("hg.hgsubversion"); ok {
		t.Error("Reset() kept a cached value")
	}
	if got := c.Lookup("hg.hgsubversion", func() bool { return false }); got {
		t.Error("Lookup() after Reset() returned the stale value")
	}
}

func TestRevisionRange_HasParentBase(t *testing.T) {
	tests := []struct {
		name string
		r    RevisionRange
		want bool
	}{
		{"absent", RevisionRange{Base: "a", Tip: "b"}, false},
		{"same as base", RevisionRange{Base: "a", Tip: "b", ParentBase: "a"}, false},
		{"distinct", RevisionRange{Base: "a", Tip: "b", ParentBase: "c"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.r.HasParentBase(); got != tt.want {
				t.Errorf("HasParentBase() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestCommitAuthor_String(t *testing.T) {
	a := CommitAuthor{Fullname: "name", Email: "email"}
	if got := a.String(); got != "name <email>" {
		t.Errorf("String() = %q", got)
	}
}

func TestErrorMessages(t *testing.T) {
	cause := errors.New("abort: unknown revision 'zzz'")

	tests := []struct {
		name string
		err  error
		want string
	}{
		{
			name: "invalid revision with cause",
			err:  &InvalidRevisionSpecError{Revision: "zzz", Err: cause},
			want: `invalid revision "zzz": abort: unknown revision 'zzz'`,
		},
		{
			name: "invalid revision with reason",
			err:  &InvalidRevisionSpecError{Revision: "5", Reason: "revision is a merge"},
			want: `invalid revision "5": revision is a merge`,
		},
		{
			name: "no outgoing",
			err:  &InvalidRevisionSpecError{Err: ErrNoOutgoingChanges},
			want: "there are no outgoing changes",
		},
		{
			name: "too many",
			err:  &TooManyRevisionsError{Count: 3},
			want: "too many revisions specified (3); at most 2 are allowed",
		},
		{
			name: "commit without cause",
			err:  &CreateCommitError{Message: "nothing to commit"},
			want: "nothing to commit",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.want {
				t.Errorf("Error() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestErrorsUnwrap(t *testing.T) {
	cause := errors.New("hg diff exited with status 255")

	diffErr := &DiffGenerationError{Base: "a", Tip: "b", Err: cause}
	if !errors.Is(diffErr, cause) {
		t.Error("DiffGenerationError does not unwrap to its cause")
	}
	if !strings.Contains(diffErr.Error(), "a..b") {
		t.Errorf("DiffGenerationError message missing range: %q", diffErr.Error())
	}

	commitErr := &CreateCommitError{Message: "commit failed", Err: cause}
	if !errors.Is(commitErr, cause) {
		t.Error("CreateCommitError does not unwrap to its cause")
	}

	specErr := &InvalidRevisionSpecError{Err: ErrNoOutgoingChanges}
	if !errors.Is(specErr, ErrNoOutgoingChanges) {
		t.Error("InvalidRevisionSpecError does not unwrap to ErrNoOutgoingChanges")
	}
}
