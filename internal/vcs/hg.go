package vcs

import (
	"github.com/sergeknystautas/rbclient/internal/process"
)

// outgoingTemplate matches the "rev\tnode\tbranch" format Outgoing promises.
const outgoingTemplate = "{rev}\t{node|short}\t{branch}\n"

// HgCommandBuilder implements CommandBuilder for plain Mercurial clones.
type HgCommandBuilder struct {
	Binary string
	Env    map[string]string
}

func (h *HgCommandBuilder) command(args ...string) process.Command {
	return process.Command{Name: h.Binary, Args: args, Env: h.Env}
}

func (h *HgCommandBuilder) Root() process.Command {
	return h.command("root")
}

func (h *HgCommandBuilder) ShowConfig() process.Command {
	return h.command("showconfig")
}

func (h *HgCommandBuilder) Identify(rev string) process.Command {
	return h.command("identify", "-i", "--hidden", "-r", rev)
}

func (h *HgCommandBuilder) Parents(rev string) process.Command {
	return h.command("log", "--hidden", "-r", "parents("+rev+")", "--template", "{node|short}\n")
}

func (h *HgCommandBuilder) RevisionParents(rev string) process.Command {
	return h.command("log", "--hidden", "-r", rev, "--template", "{p1rev} {p2rev}\n")
}

func (h *HgCommandBuilder) Branch() process.Command {
	return h.command("branch")
}

func (h *HgCommandBuilder) Outgoing(remote, rev string) process.Command {
	args := []string{"-q", "outgoing", "--template", outgoingTemplate, remote}
	if rev != "" {
		args = append(args, "-r", rev)
	}
	return h.command(args...)
}

func (h *HgCommandBuilder) StatusBetween(base, tip string) process.Command {
	return h.command("status", "--hidden", "-n", "--rev", base, "--rev", tip)
}

func (h *HgCommandBuilder) PendingStatus() process.Command {
	return h.command("status", "--modified", "--added", "--removed", "--deleted")
}

func (h *HgCommandBuilder) Diff(base, tip string, exclude, include []string) process.Command {
	args := []string{"diff", "--hidden", "--nodates", "--git"}
	for _, path := range exclude {
		args = append(args, "-X", "path:"+path)
	}
	args = append(args, "-r", base, "-r", tip)
	for _, path := range include {
		args = append(args, "path:"+path)
	}
	return h.command(args...)
}

func (h *HgCommandBuilder) Descriptions(base, tip, delimiter string) process.Command {
	return h.command("log", "--hidden", "-r", base+"::"+tip, "--template", "{desc}"+delimiter)
}

func (h *HgCommandBuilder) Commit(message, author string, files []string, all bool) process.Command {
	args := []string{"commit", "-m", message}
	if author != "" {
		args = append(args, "-u", author)
	}
	if all {
		args = append(args, "-A")
	} else {
		args = append(args, "--")
		args = append(args, files...)
	}
	return h.command(args...)
}

func (h *HgCommandBuilder) SvnHelp() process.Command {
	return h.command("svn", "--help")
}

func (h *HgCommandBuilder) SvnInfo() process.Command {
	return h.command("svn", "info")
}

func (h *HgCommandBuilder) SvnPropGet(name, url string) process.Command {
	return process.Command{Name: "svn", Args: []string{"propget", name, url}}
}

// UpstreamBase returns the newest public ancestor of the working copy.
func (h *HgCommandBuilder) UpstreamBase() process.Command {
	return h.command("log", "--hidden", "-r", "last(public() and ancestors(.))", "--template", "{node}\n")
}
