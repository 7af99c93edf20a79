// Package detect finds the version control backend for a working directory.
package detect

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/sergeknystautas/rbclient/internal/logging"
	"github.com/sergeknystautas/rbclient/internal/mercurial"
	"github.com/sergeknystautas/rbclient/internal/scm"
)

// Detector looks for one kind of working copy.
type Detector interface {
	// Name is the backend name accepted by Options.RepositoryType.
	Name() string

	// Detect returns a client when opts.Dir is inside a working copy this
	// detector understands, or an error wrapping scm.ErrNoRepository.
	Detect(ctx context.Context, opts Options) (scm.Client, error)
}

// Options configures detection.
type Options struct {
	// RepositoryType restricts detection to one backend ("mercurial" or
	// "hg"), or to one repository type ("svn" for hgsubversion clones).
	RepositoryType string

	// Mercurial is passed through to the Mercurial backend. Its Dir is the
	// directory that is examined.
	Mercurial mercurial.Options

	Logger *logging.Logger
}

// Result is a detected repository.
type Result struct {
	Client scm.Client
	Info   *scm.RepositoryInfo
}

// detectors is the closed list of backends, in priority order.
var detectors = []Detector{
	&mercurialDetector{},
}

var detectTimeout = 30 * time.Second

var aliases = map[string]string{
	"hg":        "mercurial",
	"mercurial": "mercurial",
}

// Repository runs the detectors concurrently and returns the
// highest-priority backend that recognized the working copy.
func Repository(ctx context.Context, opts Options) (*Result, error) {
	log := opts.Logger.Component("detect")

	forced := strings.ToLower(strings.TrimSpace(opts.RepositoryType))
	candidates, err := selectDetectors(forced)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, detectTimeout)
	defer cancel()

	type result struct {
		client scm.Client
		err    error
	}
	results := make([]result, len(candidates))

	var wg sync.WaitGroup
	for i, d := range candidates {
		wg.Add(1)
		go func(i int, d Detector) {
			defer wg.Done()
			client, err := d.Detect(ctx, opts)
			results[i] = result{client, err}
		}(i, d)
	}
	wg.Wait()

	for i, r := range results {
		name := candidates[i].Name()
		if r.err != nil {
			if !errors.Is(r.err, scm.ErrNoRepository) {
				return nil, fmt.Errorf("%s: %w", name, r.err)
			}
			log.Debugf("%s: %v", name, r.err)
			continue
		}

		info, err := r.client.RepositoryInfo(ctx)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
		if forced == string(scm.TypeSubversion) && info.Type != scm.TypeSubversion {
			log.Debugf("%s: found a %s repository, want %s", name, info.Type, forced)
			continue
		}
		log.Debugf("%s: found %s repository at %s", name, info.Type, info.LocalPath)
		return &Result{Client: r.client, Info: info}, nil
	}

	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	return nil, fmt.Errorf("%w in %s", scm.ErrNoRepository, describeDir(opts.Mercurial.Dir))
}

// selectDetectors returns the detectors allowed by a forced type.
func selectDetectors(forced string) ([]Detector, error) {
	if forced == "" || forced == string(scm.TypeSubversion) {
		return detectors, nil
	}
	name, ok := aliases[forced]
	if !ok {
		return nil, fmt.Errorf("unknown repository type %q", forced)
	}
	for _, d := range detectors {
		if d.Name() == name {
			return []Detector{d}, nil
		}
	}
	return nil, fmt.Errorf("unknown repository type %q", forced)
}

func describeDir(dir string) string {
	if dir == "" {
		return "the current directory"
	}
	return dir
}

type mercurialDetector struct{}

func (d *mercurialDetector) Name() string {
	return "mercurial"
}

func (d *mercurialDetector) Detect(ctx context.Context, opts Options) (scm.Client, error) {
	hgOpts := opts.Mercurial
	if hgOpts.Logger == nil {
		hgOpts.Logger = opts.Logger
	}
	return mercurial.New(ctx, hgOpts)
}
