// Package vcs provides a command builder abstraction for the Mercurial
// command line. It assembles argument vectors and environments as
// process.Command values, so the same resolution logic works for plain
// Mercurial clones and hgsubversion clones by swapping the builder.
package vcs

import (
	"os"

	"github.com/sergeknystautas/rbclient/internal/process"
)

// DefaultBinary is the Mercurial executable used when none is configured.
const DefaultBinary = "hg"

// CommandBuilder generates commands for VCS operations.
type CommandBuilder interface {
	// Root returns the command printing the repository root.
	Root() process.Command
	// ShowConfig returns the command listing every config value as
	// section.key=value lines.
	ShowConfig() process.Command
	// Identify returns the command printing the short hash of rev.
	Identify(rev string) process.Command
	// Parents returns the command printing the short hash of each parent of
	// rev, one per line.
	Parents(rev string) process.Command
	// RevisionParents returns the command printing "p1rev p2rev" for rev,
	// where a missing parent is -1.
	RevisionParents(rev string) process.Command
	// Branch returns the command printing the working copy's branch.
	Branch() process.Command
	// Outgoing returns the command listing changesets not in remote as
	// "rev\tnode\tbranch" lines. Exit status 1 means there are none.
	Outgoing(remote, rev string) process.Command
	// StatusBetween returns the command listing files changed between
	// base and tip, one path per line.
	StatusBetween(base, tip string) process.Command
	// PendingStatus returns the command listing uncommitted changes.
	PendingStatus() process.Command
	// Diff returns the git-style diff command between base and tip.
	Diff(base, tip string, exclude, include []string) process.Command
	// Descriptions returns the command printing the description of every
	// revision in base::tip, each followed by delimiter.
	Descriptions(base, tip, delimiter string) process.Command
	// Commit returns the commit command. author may be empty.
	Commit(message, author string, files []string, all bool) process.Command
	// SvnHelp returns the command used to detect hgsubversion.
	SvnHelp() process.Command
	// SvnInfo returns the hgsubversion info command.
	SvnInfo() process.Command
	// SvnPropGet returns the svn command reading a property of url.
	SvnPropGet(name, url string) process.Command
	// UpstreamBase returns the command printing the node the working copy
	// was last synchronized from.
	UpstreamBase() process.Command
}

// Env returns the environment every Mercurial command runs with. Unless
// readUserConfig is set, user and system hgrc files are ignored so that
// resolution does not depend on the caller's setup.
func Env(readUserConfig bool) map[string]string {
	env := map[string]string{"HGPLAIN": "1"}
	if !readUserConfig {
		env["HGRCPATH"] = os.DevNull
	}
	return env
}
