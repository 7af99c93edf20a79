package main

import (
	"context"
	"flag"
	"fmt"
	"sync"

	"github.com/sergeknystautas/rbclient/internal/detect"
	"github.com/sergeknystautas/rbclient/internal/scm"
	"github.com/sergeknystautas/rbclient/internal/watch"
)

// DiffCommand writes the diff for a revision spec to stdout.
type DiffCommand struct {
	app *app

	// watchStarted is called once the watcher is running. Tests use it
	// to know when to touch the repository.
	watchStarted func()
}

func NewDiffCommand(a *app) *DiffCommand {
	return &DiffCommand{app: a}
}

func (cmd *DiffCommand) Run(ctx context.Context, args []string) error {
	var g globalFlags
	var exclude stringList
	fs := flag.NewFlagSet("diff", flag.ContinueOnError)
	fs.SetOutput(cmd.app.stderr)
	g.register(fs)
	fs.Var(&exclude, "exclude", "exclude files matching `pattern` (repeatable)")
	fs.Var(&exclude, "X", "shorthand for --exclude")
	parent := fs.String("parent", "", "diff against this parent revision instead of the remote")
	tracking := fs.String("tracking-branch", "", "remote to compute outgoing changes against")
	watchFlag := fs.Bool("watch", false, "print the diff again whenever the repository changes")
	if ok, err := parseFlags(fs, args); !ok {
		return err
	}
	if err := cmd.app.setup(&g); err != nil {
		return err
	}
	if *parent != "" {
		cmd.app.cfg.ParentBranch = *parent
	}
	if *tracking != "" {
		cmd.app.cfg.TrackingBranch = *tracking
	}

	repo, err := cmd.app.repository(ctx, &g)
	if err != nil {
		return err
	}
	revisions := fs.Args()
	patterns := append([]string{}, cmd.app.cfg.GetExcludePatterns()...)
	opts := scm.DiffOptions{ExcludePatterns: append(patterns, exclude...)}

	if err := cmd.writeDiff(ctx, repo.Client, revisions, opts); err != nil {
		return err
	}
	if !*watchFlag {
		return nil
	}
	return cmd.watch(ctx, repo, revisions, opts)
}

func (cmd *DiffCommand) writeDiff(ctx context.Context, client scm.Client, revisions []string, opts scm.DiffOptions) error {
	rng, err := client.ParseRevisionSpec(ctx, revisions)
	if err != nil {
		return err
	}
	cmd.app.log.Debugf("diffing %s..%s (parent base %q)", rng.Base, rng.Tip, rng.ParentBase)

	res, err := client.Diff(ctx, rng, opts)
	if err != nil {
		return err
	}
	_, err = cmd.app.stdout.Write(res.Diff)
	return err
}

// watch re-resolves the revisions and prints the diff after every change
// to the repository until ctx is cancelled.
func (cmd *DiffCommand) watch(ctx context.Context, repo *detect.Result, revisions []string, opts scm.DiffOptions) error {
	var mu sync.Mutex
	out := newTermStyle(cmd.app.stderr)

	onChange := func(root string) {
		mu.Lock()
		defer mu.Unlock()
		if ctx.Err() != nil {
			return
		}
		fmt.Fprintln(cmd.app.stderr, out.Dim("--- "+root+" changed"))
		if err := cmd.writeDiff(ctx, repo.Client, revisions, opts); err != nil {
			out.Error(err.Error())
		}
	}

	w, err := watch.New(cmd.app.cfg.WatchDebounce(), onChange, cmd.app.log)
	if err != nil {
		return err
	}
	if err := w.AddRepository(repo.Info.LocalPath); err != nil {
		w.Stop()
		return err
	}
	w.Start()
	defer w.Stop()

	fmt.Fprintln(cmd.app.stderr, out.Dim("Watching "+repo.Info.LocalPath+" for changes (Ctrl-C to stop)"))
	if cmd.watchStarted != nil {
		cmd.watchStarted()
	}
	<-ctx.Done()
	return nil
}
