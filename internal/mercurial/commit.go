package mercurial

import (
	"context"
	"errors"
	"strings"

	"github.com/sergeknystautas/rbclient/internal/editor"
	"github.com/sergeknystautas/rbclient/internal/scm"
)

const emptyCommitMessage = "A commit message wasn't provided. The patched files are in your tree but haven't been committed."

// CreateCommit commits pending changes. With RunEditor the message is passed
// through the configured editor first; when no terminal is available the
// message is used as given.
func (c *Client) CreateCommit(ctx context.Context, opts scm.CommitOptions) error {
	if !opts.AllFiles && len(opts.Files) == 0 {
		return &scm.CreateCommitError{Message: "no files were given to commit"}
	}

	message := opts.Message
	if opts.RunEditor {
		edited, err := c.editMessage(ctx, message)
		if err != nil {
			return err
		}
		message = edited
	}
	if strings.TrimSpace(message) == "" {
		return &scm.CreateCommitError{Message: emptyCommitMessage}
	}

	var author string
	if opts.Author != nil {
		author = opts.Author.String()
	}

	res, err := c.run(ctx, c.hg.Commit(message, author, opts.Files, opts.AllFiles))
	if err != nil {
		return &scm.CreateCommitError{Message: "failed to create commit", Err: err}
	}
	if !res.OK() {
		return &scm.CreateCommitError{Message: "failed to create commit", Err: res.Err()}
	}
	return nil
}

func (c *Client) editMessage(ctx context.Context, message string) (string, error) {
	if c.opts.Editor == nil {
		c.log.Debugf("no editor configured; using the message as given")
		return message, nil
	}
	edited, err := c.opts.Editor.Edit(ctx, message)
	if errors.Is(err, editor.ErrNoTerminal) {
		c.log.Debugf("no terminal for the editor; using the message as given")
		return message, nil
	}
	if err != nil {
		return "", &scm.CreateCommitError{Message: "failed to edit the commit message", Err: err}
	}
	return edited, nil
}

// CommitMessage guesses a summary and description from the descriptions of
// every commit in the range. The first line of the oldest commit is the
// summary; everything else, joined by blank lines, is the description.
func (c *Client) CommitMessage(ctx context.Context, revisions *scm.RevisionRange) (*scm.CommitMessage, error) {
	delimiter := c.opts.Delimiter()
	res, err := c.run(ctx, c.hg.Descriptions(revisions.Base, revisions.Tip, delimiter))
	if err != nil {
		return nil, err
	}
	if !res.OK() {
		return nil, res.Err()
	}

	// The first entry belongs to base, which is not part of the range, and
	// the last is the empty text after the final delimiter.
	parts := strings.Split(res.Text(), delimiter)
	if len(parts) <= 2 {
		return &scm.CommitMessage{}, nil
	}
	descs := make([]string, 0, len(parts)-2)
	for _, desc := range parts[1 : len(parts)-1] {
		descs = append(descs, strings.TrimSpace(desc))
	}

	return splitCommitMessage(strings.Join(descs, "\n\n")), nil
}

func splitCommitMessage(text string) *scm.CommitMessage {
	text = strings.TrimSpace(text)
	summary, description, _ := strings.Cut(text, "\n")
	return &scm.CommitMessage{
		Summary:     strings.TrimSpace(summary),
		Description: strings.TrimSpace(description),
	}
}
