package main

import (
	"context"
	"errors"
	"flag"
	"fmt"

	"github.com/sergeknystautas/rbclient/internal/scm"
	"github.com/sergeknystautas/rbclient/pkg/rbapi"
)

var errEmptyDiff = errors.New("There don't seem to be any diffs!")

// PostCommand uploads a diff to a new or existing review request.
type PostCommand struct {
	app *app
}

func NewPostCommand(a *app) *PostCommand {
	return &PostCommand{app: a}
}

func (cmd *PostCommand) Run(ctx context.Context, args []string) error {
	var g globalFlags
	var exclude stringList
	fs := flag.NewFlagSet("post", flag.ContinueOnError)
	fs.SetOutput(cmd.app.stderr)
	g.register(fs)
	reviewRequestID := fs.Int("r", 0, "update the review request with this `id` instead of creating one")
	publish := fs.Bool("publish", false, "publish the review request immediately")
	fs.Var(&exclude, "exclude", "exclude files matching `pattern` (repeatable)")
	fs.Var(&exclude, "X", "shorthand for --exclude")
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
	if err != nil {
		return err
	}

	rng, err := repo.Client.ParseRevisionSpec(ctx, fs.Args())
	if err != nil {
		return err
	}
	patterns := append([]string{}, cmd.app.cfg.GetExcludePatterns()...)
	res, err := repo.Client.Diff(ctx, rng, scm.DiffOptions{ExcludePatterns: append(patterns, exclude...)})
	if err != nil {
		return err
	}
	if len(res.Diff) == 0 {
		return errEmptyDiff
	}

	api := cmd.app.newAPI(server, cmd.app.cfg.APIToken)
	id, isNew, err := cmd.reviewRequest(ctx, api, repo.Info, res.CommitID, *reviewRequestID)
	if err != nil {
		return err
	}

	diff, err := api.UploadDiff(ctx, id, rbapi.DiffUpload{
		Diff:         res.Diff,
		ParentDiff:   res.ParentDiff,
		BaseDir:      repo.Info.BasePath,
		BaseCommitID: res.BaseCommitID,
	})
	if err != nil {
		return fmt.Errorf("failed to upload diff to r/%d: %w", id, err)
	}
	cmd.app.log.Debugf("uploaded diff revision %d to r/%d", diff.Revision, id)

	var update rbapi.DraftUpdate
	if isNew {
		msg, err := repo.Client.CommitMessage(ctx, rng)
		if err != nil {
			cmd.app.log.Warnf("could not guess a summary: %v", err)
		} else if msg != nil {
			update.Summary = msg.Summary
			update.Description = msg.Description
		}
	}
	update.Public = *publish
	if update != (rbapi.DraftUpdate{}) {
		if _, err := api.UpdateDraft(ctx, id, update); err != nil {
			return fmt.Errorf("failed to update r/%d: %w", id, err)
		}
	}

	out := newTermStyle(cmd.app.stdout)
	if isNew {
		out.Success(fmt.Sprintf("Review request #%d posted.", id))
	} else {
		out.Success(fmt.Sprintf("Review request #%d updated.", id))
	}
	out.Blank()
	fmt.Fprintln(cmd.app.stdout, out.Cyan(api.ReviewRequestURL(id)))
	return nil
}

// reviewRequest returns the review request to upload to, creating one when
// existingID is 0.
func (cmd *PostCommand) reviewRequest(ctx context.Context, api rbapi.API, info *scm.RepositoryInfo, commitID string, existingID int) (int, bool, error) {
	if existingID != 0 {
		rr, err := api.GetReviewRequest(ctx, existingID)
		if err != nil {
			return 0, false, fmt.Errorf("failed to get r/%d: %w", existingID, err)
		}
		return rr.ID, false, nil
	}

	repoID, err := api.FindRepositoryID(ctx, info.Path, cmd.app.cfg.Repository)
	if err != nil {
		return 0, false, err
	}
	if repoID == 0 {
		return 0, false, fmt.Errorf("the repository %s is not configured on the Review Board server", info.Path)
	}
	rr, err := api.CreateReviewRequest(ctx, repoID, commitID)
	if err != nil {
		return 0, false, fmt.Errorf("failed to create review request: %w", err)
	}
	return rr.ID, true, nil
}
