package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/sergeknystautas/rbclient/internal/config"
	"github.com/sergeknystautas/rbclient/internal/detect"
	"github.com/sergeknystautas/rbclient/internal/editor"
	"github.com/sergeknystautas/rbclient/internal/logging"
	"github.com/sergeknystautas/rbclient/internal/mercurial"
	"github.com/sergeknystautas/rbclient/internal/process"
	"github.com/sergeknystautas/rbclient/pkg/rbapi"
)

// app carries what every command needs: output streams, the loaded
// configuration and the factories tests replace.
type app struct {
	stdout io.Writer
	stderr io.Writer
	// dir is the directory commands operate on. Empty means the current
	// directory.
	dir string

	detect    func(ctx context.Context, opts detect.Options) (*detect.Result, error)
	newAPI    func(baseURL, token string) rbapi.API
	newEditor func(command string) editor.Editor
	loadCfg   func(dir string) (*config.Config, error)

	cfg *config.Config
	log *logging.Logger
	// serverFlag is --server, which wins over every other source.
	serverFlag string
}

func newApp(stdout, stderr io.Writer) *app {
	return &app{
		stdout:    stdout,
		stderr:    stderr,
		detect:    detect.Repository,
		newAPI:    func(baseURL, token string) rbapi.API { return rbapi.NewClient(baseURL, token) },
		newEditor: editor.Default,
		loadCfg:   config.LoadForDir,
	}
}

// globalFlags are accepted by every command.
type globalFlags struct {
	debug          bool
	server         string
	repositoryType string
}

func (g *globalFlags) register(fs *flag.FlagSet) {
	fs.BoolVar(&g.debug, "debug", false, "show debug output")
	fs.StringVar(&g.server, "server", "", "Review Board server URL")
	fs.StringVar(&g.repositoryType, "repository-type", "", "only detect this repository type (hg or svn)")
}

// setup loads configuration and creates the logger. It runs after flag
// parsing so --debug and --server take effect.
func (a *app) setup(g *globalFlags) error {
	if a.dir == "" {
		wd, err := os.Getwd()
		if err != nil {
			return fmt.Errorf("failed to get current directory: %w", err)
		}
		a.dir = wd
	}

	cfg, err := a.loadCfg(a.dir)
	if err != nil {
		return err
	}
	a.serverFlag = strings.TrimSpace(g.server)
	if a.serverFlag != "" {
		cfg.ReviewBoardURL = a.serverFlag
	}
	a.cfg = cfg

	level := cfg.GetLogLevel()
	if g.debug {
		level = "debug"
	}
	a.log = logging.New(a.stderr, level, cfg.GetLogFormat())
	if cfg.Path() != "" {
		a.log.Debugf("loaded config from %s", cfg.Path())
	}
	return nil
}

// repository detects the working copy at a.dir.
func (a *app) repository(ctx context.Context, g *globalFlags) (*detect.Result, error) {
	return a.detect(ctx, detect.Options{
		RepositoryType: g.repositoryType,
		Logger:         a.log,
		Mercurial: mercurial.Options{
			Dir:              a.dir,
			Binary:           a.cfg.GetMercurialBinary(),
			TrackingBranch:   a.cfg.TrackingBranch,
			ParentBranch:     a.cfg.ParentBranch,
			ServerURL:        a.cfg.ReviewBoardURL,
			ReadUserConfig:   a.cfg.GetReadUserConfig(),
			SuppressWarnings: a.cfg.SuppressClientWarnings,
			Runner:           process.NewExecRunner(a.cfg.CommandTimeout(), a.log),
			Editor:           a.newEditor(a.cfg.Editor),
			Logger:           a.log,
		},
	})
}

// server returns the Review Board URL from --server, the repository or the
// config, in that order.
func (a *app) server(ctx context.Context, repo *detect.Result) (string, error) {
	if a.serverFlag != "" {
		return a.serverFlag, nil
	}
	if repo != nil {
		url, err := repo.Client.ScanForServer(ctx, repo.Info)
		if err != nil {
			return "", err
		}
		if url != "" {
			return url, nil
		}
	}
	if a.cfg.ReviewBoardURL != "" {
		return a.cfg.ReviewBoardURL, nil
	}
	return "", errNoServer
}

var errNoServer = errors.New("no Review Board server found; set reviewboard_url in " + config.FileName + " or pass --server")

// parseFlags parses args, treating -h as a successful request for help.
func parseFlags(fs *flag.FlagSet, args []string) (bool, error) {
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}
