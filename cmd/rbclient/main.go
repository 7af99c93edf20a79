package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/sergeknystautas/rbclient/internal/version"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

// command is one rbclient subcommand.
type command interface {
	Run(ctx context.Context, args []string) error
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	if len(args) < 1 {
		printUsage(stderr)
		return 1
	}

	a := newApp(stdout, stderr)
	var cmd command

	switch args[0] {
	case "info":
		cmd = NewInfoCommand(a)
	case "diff":
		cmd = NewDiffCommand(a)
	case "commit":
		cmd = NewCommitCommand(a)
	case "post":
		cmd = NewPostCommand(a)
	case "status":
		cmd = NewStatusCommand(a)
	case "version", "--version":
		fmt.Fprintf(stdout, "rbclient %s\n", version.Version)
		return 0
	case "help", "-h", "--help":
		printUsage(stdout)
		return 0
	default:
		fmt.Fprintf(stderr, "Unknown command: %s\n\n", args[0])
		printUsage(stderr)
		return 1
	}

	if err := cmd.Run(ctx, args[1:]); err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}

func printUsage(w io.Writer) {
	fmt.Fprintln(w, "rbclient - post Mercurial changes to Review Board")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Usage:")
	fmt.Fprintln(w, "  rbclient <command> [flags] [args]")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Commands:")
	fmt.Fprintln(w, "  info        Show the detected repository and review server")
	fmt.Fprintln(w, "  diff        Print the diff that would be posted")
	fmt.Fprintln(w, "  commit      Commit pending changes")
	fmt.Fprintln(w, "  post        Create or update a review request")
	fmt.Fprintln(w, "  status      List your open review requests")
	fmt.Fprintln(w, "  version     Show the version")
	fmt.Fprintln(w, "  help        Show this help message")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Revisions:")
	fmt.Fprintln(w, "  (none)      outgoing changes of the current branch")
	fmt.Fprintln(w, "  REV         a single changeset against its parent")
	fmt.Fprintln(w, "  A B, A..B   the changes from A to B (A::B also accepted)")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Global flags:")
	fmt.Fprintln(w, "  --debug                 show debug output")
	fmt.Fprintln(w, "  --server URL            Review Board server URL")
	fmt.Fprintln(w, "  --repository-type TYPE  only detect this repository type (hg or svn)")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Examples:")
	fmt.Fprintln(w, "  rbclient diff --exclude 'docs/**'   # Outgoing diff without docs")
	fmt.Fprintln(w, "  rbclient post -r 42 .                # Update r/42 with the current changeset")
	fmt.Fprintln(w, "  rbclient status --format '%(id)s\\x09%(summary)s'")
}
