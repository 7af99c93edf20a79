package mercurial

import (
	"context"
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/sergeknystautas/rbclient/internal/scm"
)

var (
	svnRootRE = regexp.MustCompile(`(?m)^Repository Root: (.+)$`)
	svnURLRE  = regexp.MustCompile(`(?m)^URL: (.+)$`)
)

// subversionRepositoryInfo derives the repository root and the checkout's
// path below it from "hg svn info" output. Credentials in the root URL are
// dropped.
func subversionRepositoryInfo(svnInfo string) (*scm.RepositoryInfo, error) {
	rootMatch := svnRootRE.FindStringSubmatch(svnInfo)
	urlMatch := svnURLRE.FindStringSubmatch(svnInfo)
	if rootMatch == nil || urlMatch == nil {
		return nil, fmt.Errorf("unrecognized hg svn info output: %q", svnInfo)
	}

	root, err := url.Parse(strings.TrimSpace(rootMatch[1]))
	if err != nil {
		return nil, fmt.Errorf("invalid repository root: %w", err)
	}
	checkout, err := url.Parse(strings.TrimSpace(urlMatch[1]))
	if err != nil {
		return nil, fmt.Errorf("invalid checkout URL: %w", err)
	}

	root.User = nil
	basePath := strings.TrimPrefix(checkout.Path, root.Path)

	return &scm.RepositoryInfo{
		Type:     scm.TypeSubversion,
		Path:     root.String(),
		BasePath: basePath,
	}, nil
}

// resolveSubversionDefault resolves an empty revision spec for an
// hgsubversion clone: everything since the last revision pulled from
// Subversion, or since the tracking branch when one is set.
func (c *Client) resolveSubversionDefault(ctx context.Context) (*scm.RevisionRange, error) {
	parent := c.opts.TrackingBranch
	if parent == "" {
		res, err := c.run(ctx, c.hg.UpstreamBase())
		if err != nil {
			return nil, err
		}
		if !res.OK() {
			return nil, res.Err()
		}
		parent = strings.TrimSpace(res.Text())
		if parent == "" {
			return nil, &scm.InvalidRevisionSpecError{Reason: "could not determine the Subversion parent revision"}
		}
	}

	base, err := c.identify(ctx, parent)
	if err != nil {
		return nil, err
	}
	tip, err := c.identify(ctx, ".")
	if err != nil {
		return nil, err
	}
	return &scm.RevisionRange{Base: base, Tip: tip}, nil
}
