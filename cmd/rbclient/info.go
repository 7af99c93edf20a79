package main

import (
	"context"
	"errors"
	"flag"
	"strconv"
)

// InfoCommand prints the detected repository.
type InfoCommand struct {
	app *app
}

func NewInfoCommand(a *app) *InfoCommand {
	return &InfoCommand{app: a}
}

func (cmd *InfoCommand) Run(ctx context.Context, args []string) error {
	var g globalFlags
	fs := flag.NewFlagSet("info", flag.ContinueOnError)
	fs.SetOutput(cmd.app.stderr)
	g.register(fs)
	if ok, err := parseFlags(fs, args); !ok {
		return err
	}
	if err := cmd.app.setup(&g); err != nil {
		return err
	}

	repo, err := cmd.app.repository(ctx, &g)
	if err != nil {
		return err
	}
	server, err := cmd.app.server(ctx, repo)
	if err != nil && !errors.Is(err, errNoServer) {
		return err
	}
	if server == "" {
		server = "(none)"
	}

	info := repo.Info
	out := newTermStyle(cmd.app.stdout)
	out.KeyValue("Type", string(info.Type))
	out.KeyValue("Repository", out.Cyan(info.Path))
	out.KeyValue("Base path", info.BasePath)
	out.KeyValue("Local path", info.LocalPath)
	out.KeyValue("Parent diffs", strconv.FormatBool(info.SupportsParentDiffs))
	out.KeyValue("Changesets", strconv.FormatBool(info.SupportsChangesets))
	out.KeyValue("Review Board", out.Cyan(server))
	return nil
}
