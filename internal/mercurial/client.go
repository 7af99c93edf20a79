// Package mercurial implements scm.Client for Mercurial working copies,
// including clones of Subversion repositories made with hgsubversion.
package mercurial

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/sergeknystautas/rbclient/internal/editor"
	"github.com/sergeknystautas/rbclient/internal/logging"
	"github.com/sergeknystautas/rbclient/internal/process"
	"github.com/sergeknystautas/rbclient/internal/scm"
	"github.com/sergeknystautas/rbclient/internal/vcs"
)

// capHgSubversion is the capability cache key for the hgsubversion check.
const capHgSubversion = "hg.hgsubversion"

var unknownSvnCommand = regexp.MustCompile(`(?i)unknown command ['"]svn['"]`)

// Options configures a Client.
type Options struct {
	// Dir is any directory inside the working copy.
	Dir    string
	Binary string
	// TrackingBranch overrides the remote that outgoing changes are
	// computed against.
	TrackingBranch string
	// ParentBranch makes a no-argument revision spec diff against this
	// revision, with the outgoing base used for the parent diff.
	ParentBranch string
	// ServerURL is the configured review server, used by ScanForServer
	// when the repository does not name one.
	ServerURL        string
	ReadUserConfig   bool
	SuppressWarnings bool

	Runner       process.Runner
	Editor       editor.Editor
	Logger       *logging.Logger
	Capabilities *scm.CapabilityCache
	// Delimiter returns the separator used when reading commit
	// descriptions. Defaults to a random UUID.
	Delimiter func() string
}

// Client is a Mercurial backend bound to one working copy.
type Client struct {
	opts   Options
	runner process.Runner
	log    *logging.Logger
	caps   *scm.CapabilityCache
	hg     vcs.CommandBuilder

	repoType   scm.RepositoryType
	root       string
	hgrc       map[string]string
	remoteName string
	remoteURL  string
	info       *scm.RepositoryInfo
}

var _ scm.Client = (*Client)(nil)

// New inspects opts.Dir and returns a client for the repository containing it.
// It returns an error wrapping scm.ErrNoRepository when there is none.
func New(ctx context.Context, opts Options) (*Client, error) {
	c := &Client{
		opts:     opts,
		runner:   opts.Runner,
		log:      opts.Logger.Component("mercurial"),
		caps:     opts.Capabilities,
		repoType: scm.TypeMercurial,
	}
	if c.runner == nil {
		c.runner = process.NewExecRunner(0, opts.Logger)
	}
	if c.caps == nil {
		c.caps = scm.DefaultCapabilities
	}
	if c.opts.Delimiter == nil {
		c.opts.Delimiter = uuid.NewString
	}
	env := vcs.Env(opts.ReadUserConfig)
	c.hg = vcs.NewCommandBuilder(string(scm.TypeMercurial), opts.Binary, env)

	res, err := c.runner.Run(ctx, c.at(opts.Dir, c.hg.Root()))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", scm.ErrNoRepository, err)
	}
	if !res.OK() {
		return nil, fmt.Errorf("%w: %s is not inside a Mercurial repository", scm.ErrNoRepository, opts.Dir)
	}
	c.root = strings.TrimSpace(res.Text())

	if err := c.loadConfig(ctx); err != nil {
		return nil, err
	}
	c.selectRemote()

	if svnInfo, ok := c.detectSubversion(ctx); ok {
		c.repoType = scm.TypeSubversion
		c.hg = vcs.NewCommandBuilder(string(scm.TypeSubversion), opts.Binary, env)
		info, err := subversionRepositoryInfo(svnInfo)
		if err != nil {
			return nil, err
		}
		c.info = info
	} else {
		c.info = c.mercurialRepositoryInfo()
	}
	c.info.LocalPath = c.root

	c.log.Debugf("detected %s repository at %s (remote %q)", c.repoType, c.root, c.remoteURL)
	return c, nil
}

// Name returns the backend name.
func (c *Client) Name() string {
	return "mercurial"
}

// Type returns whether this is a plain or hgsubversion clone.
func (c *Client) Type() scm.RepositoryType {
	return c.repoType
}

// RepositoryInfo returns the repository description computed by New.
func (c *Client) RepositoryInfo(ctx context.Context) (*scm.RepositoryInfo, error) {
	info := *c.info
	return &info, nil
}

// ScanForServer returns the review server URL for the repository. The
// repository's own hgrc wins over the configured URL, and Subversion clones
// fall back to the reviewboard:url property.
func (c *Client) ScanForServer(ctx context.Context, info *scm.RepositoryInfo) (string, error) {
	if url := c.hgrc["reviewboard.url"]; url != "" {
		return url, nil
	}
	if c.opts.ServerURL != "" {
		return c.opts.ServerURL, nil
	}
	if c.repoType != scm.TypeSubversion || info == nil {
		return "", nil
	}

	res, err := c.run(ctx, c.hg.SvnPropGet("reviewboard:url", info.Path))
	if err != nil {
		return "", err
	}
	if !res.AllowExit(1) {
		c.log.Debugf("svn propget failed: %v", res.Err())
		return "", nil
	}
	return strings.TrimSpace(res.Text()), nil
}

// HasPendingChanges reports whether the working copy has uncommitted
// modifications to tracked files.
func (c *Client) HasPendingChanges(ctx context.Context) (bool, error) {
	res, err := c.run(ctx, c.hg.PendingStatus())
	if err != nil {
		return false, err
	}
	if !res.OK() {
		return false, res.Err()
	}
	return strings.TrimSpace(res.Text()) != "", nil
}

// run executes cmd from the repository root.
func (c *Client) run(ctx context.Context, cmd process.Command) (*process.Result, error) {
	return c.runner.Run(ctx, c.at(c.root, cmd))
}

func (c *Client) at(dir string, cmd process.Command) process.Command {
	cmd.Dir = dir
	return cmd
}

// loadConfig reads the merged configuration as a flat section.key map.
func (c *Client) loadConfig(ctx context.Context) error {
	res, err := c.run(ctx, c.hg.ShowConfig())
	if err != nil {
		return err
	}
	if !res.OK() {
		return fmt.Errorf("failed to read hg config: %w", res.Err())
	}
	c.hgrc = parseConfig(res.Text())
	return nil
}

func parseConfig(out string) map[string]string {
	hgrc := make(map[string]string)
	for _, line := range strings.Split(out, "\n") {
		key, value, ok := strings.Cut(line, "=")
		if !ok || key == "" {
			continue
		}
		hgrc[strings.TrimSpace(key)] = strings.TrimSpace(value)
	}
	return hgrc
}

// selectRemote picks paths.reviewboard, then paths.default, then the first
// other path alphabetically.
func (c *Client) selectRemote() {
	for _, name := range []string{"reviewboard", "default"} {
		if url := c.hgrc["paths."+name]; url != "" {
			c.remoteName, c.remoteURL = name, url
			return
		}
	}

	var names []string
	for key := range c.hgrc {
		if name, ok := strings.CutPrefix(key, "paths."); ok && c.hgrc[key] != "" {
			names = append(names, name)
		}
	}
	if len(names) == 0 {
		return
	}
	sort.Strings(names)
	c.remoteName, c.remoteURL = names[0], c.hgrc["paths."+names[0]]
}

// remote returns the name of the repository outgoing changes are computed
// against, or "" when there is none.
func (c *Client) remote() string {
	if c.opts.TrackingBranch != "" {
		return c.opts.TrackingBranch
	}
	return c.remoteName
}

func (c *Client) hasSubversionExtension(ctx context.Context) bool {
	return c.caps.Lookup(capHgSubversion, func() bool {
		res, err := c.run(ctx, c.hg.SvnHelp())
		if err != nil || !res.OK() {
			return false
		}
		return !unknownSvnCommand.Match(res.Stdout) && !unknownSvnCommand.Match(res.Stderr)
	})
}

// detectSubversion returns the output of "hg svn info" when the working copy
// is an hgsubversion clone.
func (c *Client) detectSubversion(ctx context.Context) (string, bool) {
	if !c.hasSubversionExtension(ctx) {
		return "", false
	}
	res, err := c.run(ctx, c.hg.SvnInfo())
	if err != nil || !res.OK() {
		return "", false
	}
	out := res.Text()
	if !strings.Contains(out, "Repository Root:") {
		return "", false
	}
	return out, true
}

func (c *Client) mercurialRepositoryInfo() *scm.RepositoryInfo {
	info := &scm.RepositoryInfo{
		Type:                scm.TypeMercurial,
		SupportsParentDiffs: true,
	}
	if c.remoteURL != "" {
		info.Path = c.remoteURL
		info.BasePath = ""
	} else {
		info.Path = c.root
		info.BasePath = "/"
	}
	return info
}
