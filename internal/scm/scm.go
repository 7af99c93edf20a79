// Package scm defines the types shared by every source code management
// backend: revision ranges, repository info, diff results and the Client
// interface the CLI drives.
package scm

import (
	"context"
	"fmt"
)

// RepositoryType identifies a backend variant.
type RepositoryType string

const (
	// TypeMercurial is a plain Mercurial clone.
	TypeMercurial RepositoryType = "hg"
	// TypeSubversion is a Mercurial clone of a Subversion repository made
	// with hgsubversion.
	TypeSubversion RepositoryType = "svn"
)

// RevisionRange is a resolved revision spec. Empty strings mean the field is
// absent.
type RevisionRange struct {
	// Base is excluded from the diff.
	Base string
	// Tip is included in the diff.
	Tip string
	// ParentBase is the ancestor of Base that the parent diff starts from.
	ParentBase string
	// CommitID is set only when the range covers exactly one commit.
	CommitID string
}

// HasParentBase reports whether a parent diff applies to the range.
func (r RevisionRange) HasParentBase() bool {
	return r.ParentBase != "" && r.ParentBase != r.Base
}

// RepositoryInfo describes the repository detected in the working directory.
type RepositoryInfo struct {
	Type RepositoryType
	// Path is what the review server knows the repository as.
	Path string
	// BasePath is the path of the checkout below Path.
	BasePath string
	// LocalPath is the root of the working copy on disk.
	LocalPath           string
	SupportsParentDiffs bool
	SupportsChangesets  bool
}

// DiffResult is the output of Client.Diff.
type DiffResult struct {
	// Diff is never nil. An empty diff is valid.
	Diff []byte
	// ParentDiff is nil when no parent baseline applies.
	ParentDiff   []byte
	CommitID     string
	BaseCommitID string
}

// CommitAuthor overrides the identity recorded on a new commit.
type CommitAuthor struct {
	Fullname string
	Email    string
}

func (a CommitAuthor) String() string {
	return fmt.Sprintf("%s <%s>", a.Fullname, a.Email)
}

// CommitOptions controls Client.CreateCommit.
type CommitOptions struct {
	Message string
	// Author is optional; nil uses the backend's configured identity.
	Author    *CommitAuthor
	RunEditor bool
	Files     []string
	AllFiles  bool
}

// DiffOptions filters the files a diff covers.
type DiffOptions struct {
	// ExcludePatterns are glob patterns relative to the repository root.
	ExcludePatterns []string
	// IncludeFiles limits the diff to these root-relative paths.
	IncludeFiles []string
}

// CommitMessage is a summary and description guessed from commit history.
type CommitMessage struct {
	Summary     string
	Description string
}

// Client is the capability set every backend implements.
type Client interface {
	// Name returns the backend name used in logs and capability keys.
	Name() string
	RepositoryInfo(ctx context.Context) (*RepositoryInfo, error)
	// ScanForServer returns the review server URL recorded for the
	// repository, or "" when none is known.
	ScanForServer(ctx context.Context, info *RepositoryInfo) (string, error)
	ParseRevisionSpec(ctx context.Context, revisions []string) (*RevisionRange, error)
	Diff(ctx context.Context, revisions *RevisionRange, opts DiffOptions) (*DiffResult, error)
	CreateCommit(ctx context.Context, opts CommitOptions) error
	CommitMessage(ctx context.Context, revisions *RevisionRange) (*CommitMessage, error)
	HasPendingChanges(ctx context.Context) (bool, error)
}
