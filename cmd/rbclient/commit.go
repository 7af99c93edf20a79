package main

import (
	"context"
	"flag"
	"fmt"
	"net/mail"
	"strings"

	"github.com/sergeknystautas/rbclient/internal/scm"
)

// CommitCommand commits pending changes in the working copy.
type CommitCommand struct {
	app *app
}

func NewCommitCommand(a *app) *CommitCommand {
	return &CommitCommand{app: a}
}

func (cmd *CommitCommand) Run(ctx context.Context, args []string) error {
	var g globalFlags
	fs := flag.NewFlagSet("commit", flag.ContinueOnError)
	fs.SetOutput(cmd.app.stderr)
	g.register(fs)
	message := fs.String("m", "", "commit message")
	edit := fs.Bool("e", false, "edit the commit message before committing")
	all := fs.Bool("A", false, "commit every change in the working copy, including new and removed files")
	authorFlag := fs.String("author", "", "commit as `\"Name <email>\"`")
	if ok, err := parseFlags(fs, args); !ok {
		return err
	}

	author, err := parseAuthor(*authorFlag)
	if err != nil {
		return err
	}
	var files []string
	if fs.NArg() > 0 {
		files = fs.Args()
	}
	if *all && len(files) > 0 {
		return fmt.Errorf("-A cannot be combined with a file list")
	}

	if err := cmd.app.setup(&g); err != nil {
		return err
	}
	repo, err := cmd.app.repository(ctx, &g)
	if err != nil {
		return err
	}

	err = repo.Client.CreateCommit(ctx, scm.CommitOptions{
		Message:   *message,
		Author:    author,
		RunEditor: *edit || *message == "",
		Files:     files,
		AllFiles:  *all,
	})
	if err != nil {
		return err
	}
	newTermStyle(cmd.app.stdout).Success("Changes committed")
	return nil
}

// parseAuthor parses "Name <email>". Empty input means the backend's
// configured identity.
func parseAuthor(s string) (*scm.CommitAuthor, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	addr, err := mail.ParseAddress(s)
	if err != nil {
		return nil, fmt.Errorf("invalid author %q: expected \"Name <email>\"", s)
	}
	return &scm.CommitAuthor{Fullname: addr.Name, Email: addr.Address}, nil
}
