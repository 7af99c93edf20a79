package vcs

import "github.com/sergeknystautas/rbclient/internal/process"

// SubversionCommandBuilder implements CommandBuilder for hgsubversion clones.
// It differs from plain Mercurial only in how the upstream base is found.
type SubversionCommandBuilder struct {
	*HgCommandBuilder
}

// UpstreamBase returns the last revision pulled from Subversion.
func (s *SubversionCommandBuilder) UpstreamBase() process.Command {
	return s.command("parent", "--svn", "--template", "{node}\n")
}
