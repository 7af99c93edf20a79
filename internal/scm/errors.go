package scm

import (
	"errors"
	"fmt"
)

var (
	// ErrNoRepository is returned when no supported repository contains the
	// working directory.
	ErrNoRepository = errors.New("no supported repository found")
	// ErrNoRemote is returned when a resolution needs a remote and none is
	// configured.
	ErrNoRemote = errors.New("no remote repository configured")
	// ErrNoOutgoingChanges is wrapped by InvalidRevisionSpecError when
	// nothing is outgoing to the remote.
	ErrNoOutgoingChanges = errors.New("there are no outgoing changes")
)

// InvalidRevisionSpecError reports a malformed or unresolvable revision.
type InvalidRevisionSpecError struct {
	// Revision is the offending token, if there is one.
	Revision string
	Reason   string
	Err      error
}

func (e *InvalidRevisionSpecError) Error() string {
	switch {
	case e.Revision != "" && e.Reason != "":
		return fmt.Sprintf("invalid revision %q: %s", e.Revision, e.Reason)
	case e.Revision != "" && e.Err != nil:
		return fmt.Sprintf("invalid revision %q: %v", e.Revision, e.Err)
	case e.Revision != "":
		return fmt.Sprintf("invalid revision %q", e.Revision)
	case e.Reason != "":
		return e.Reason
	case e.Err != nil:
		return e.Err.Error()
	}
	return "invalid revision spec"
}

func (e *InvalidRevisionSpecError) Unwrap() error {
	return e.Err
}

// TooManyRevisionsError is returned when more than two revisions are given.
type TooManyRevisionsError struct {
	Count int
}

func (e *TooManyRevisionsError) Error() string {
	return fmt.Sprintf("too many revisions specified (%d); at most 2 are allowed", e.Count)
}

// As lets callers that only handle InvalidRevisionSpecError see this error
// as one.
func (e *TooManyRevisionsError) As(target any) bool {
	t, ok := target.(**InvalidRevisionSpecError)
	if !ok {
		return false
	}
	*t = &InvalidRevisionSpecError{Reason: e.Error(), Err: e}
	return true
}

// DiffGenerationError wraps a failure of the backend's diff command.
type DiffGenerationError struct {
	Base string
	Tip  string
	Err  error
}

func (e *DiffGenerationError) Error() string {
	return fmt.Sprintf("failed to generate diff %s..%s: %v", e.Base, e.Tip, e.Err)
}

func (e *DiffGenerationError) Unwrap() error {
	return e.Err
}

// CreateCommitError reports a commit that was not created.
type CreateCommitError struct {
	Message string
	Err     error
}

func (e *CreateCommitError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *CreateCommitError) Unwrap() error {
	return e.Err
}
