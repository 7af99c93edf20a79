package main

import (
	"context"
	"errors"
	"flag"
	"fmt"

	"github.com/sergeknystautas/rbclient/internal/config"
	"github.com/sergeknystautas/rbclient/internal/detect"
	"github.com/sergeknystautas/rbclient/internal/status"
	"github.com/sergeknystautas/rbclient/pkg/rbapi"
)

// StatusCommand lists the user's pending review requests.
type StatusCommand struct {
	app *app
}

func NewStatusCommand(a *app) *StatusCommand {
	return &StatusCommand{app: a}
}

func (cmd *StatusCommand) Run(ctx context.Context, args []string) error {
	var g globalFlags
	var filter stringList
	fs := flag.NewFlagSet("status", flag.ContinueOnError)
	fs.SetOutput(cmd.app.stderr)
	g.register(fs)
	format := fs.String("format", "", "print each review request with `format`, e.g. '%(id)s %(summary)s'")
	nul := fs.Bool("z", false, "terminate --format output with NUL instead of newline")
	all := fs.Bool("all", false, "include review requests from every repository")
	fs.Var(&filter, "status-filter", "only show review requests in this `state` (repeatable)")
	if ok, err := parseFlags(fs, args); !ok {
		return err
	}
	if fs.NArg() > 0 {
		return fmt.Errorf("status takes no arguments")
	}
	if err := status.ValidateFilter(filter); err != nil {
		return err
	}
	if *format != "" {
		if _, err := status.ParseFormat(*format); err != nil {
			return err
		}
	}
	if err := cmd.app.setup(&g); err != nil {
		return err
	}

	// Outside a working copy the configured server is enough when listing
	// every repository.
	repo, err := cmd.app.repository(ctx, &g)
	if err != nil {
		if !*all {
			return err
		}
		cmd.app.log.Debugf("no repository: %v", err)
	}
	server, err := cmd.app.server(ctx, repo)
	if err != nil {
		return err
	}
	api := cmd.app.newAPI(server, cmd.app.cfg.APIToken)

	user, err := api.CurrentUser(ctx)
	if errors.Is(err, rbapi.ErrNotAuthenticated) {
		return fmt.Errorf("not logged in to %s; set api_token or %s", server, config.EnvAPIToken)
	}
	if err != nil {
		return err
	}

	query := rbapi.ReviewRequestQuery{
		FromUser:    user,
		Status:      "pending",
		ExpandDraft: true,
	}
	if !*all {
		id, err := cmd.repositoryID(ctx, api, repo)
		if err != nil {
			return err
		}
		query.RepositoryID = id
	}

	requests, err := api.ListReviewRequests(ctx, query)
	if err != nil {
		return err
	}
	entries := status.Summarize(requests, filter)

	if *format != "" {
		return status.FormatResults(cmd.app.stdout, entries, *format, *nul)
	}
	return status.Tabulate(cmd.app.stdout, entries, terminalWidth(cmd.app.stdout))
}

func (cmd *StatusCommand) repositoryID(ctx context.Context, api rbapi.API, repo *detect.Result) (int, error) {
	id, err := api.FindRepositoryID(ctx, repo.Info.Path, cmd.app.cfg.Repository)
	if err != nil {
		return 0, err
	}
	if id == 0 {
		// Zero leaves the query unfiltered.
		cmd.app.log.Warnf("the repository %s is not configured on the Review Board server; showing review requests from every repository", repo.Info.Path)
	}
	return id, nil
}
