package mercurial

import (
	"context"
	"strings"
	"testing"

	"github.com/sergeknystautas/rbclient/internal/process"
	"github.com/sergeknystautas/rbclient/internal/scm"
	"github.com/sergeknystautas/rbclient/internal/vcs"
)

const testDelimiter = "--DELIM--"

// fakeRunner answers commands from a table keyed on argv. Commands that were
// not registered fail the way hg does on an unknown revision.
type fakeRunner struct {
	responses map[string]*process.Result
	errs      map[string]error
	calls     []process.Command
}

func newFakeRunner() *fakeRunner {
	return &fakeRunner{
		responses: make(map[string]*process.Result),
		errs:      make(map[string]error),
	}
}

func argvKey(cmd process.Command) string {
	return strings.Join(cmd.Argv(), "\x00")
}

func (f *fakeRunner) on(cmd process.Command, stdout string) {
	f.onExit(cmd, 0, stdout, "")
}

func (f *fakeRunner) onExit(cmd process.Command, code int, stdout, stderr string) {
	f.responses[argvKey(cmd)] = &process.Result{
		Argv:     cmd.Argv(),
		ExitCode: code,
		Stdout:   []byte(stdout),
		Stderr:   []byte(stderr),
	}
}

func (f *fakeRunner) onError(cmd process.Command, err error) {
	f.errs[argvKey(cmd)] = err
}

func (f *fakeRunner) Run(ctx context.Context, cmd process.Command) (*process.Result, error) {
	f.calls = append(f.calls, cmd)
	key := argvKey(cmd)
	if err, ok := f.errs[key]; ok {
		return nil, err
	}
	if res, ok := f.responses[key]; ok {
		copied := *res
		return &copied, nil
	}
	return &process.Result{
		Argv:     cmd.Argv(),
		ExitCode: 255,
		Stderr:   []byte("abort: unexpected command: " + cmd.String() + "\n"),
	}, nil
}

// count returns how many times cmd ran.
func (f *fakeRunner) count(cmd process.Command) int {
	n := 0
	for _, call := range f.calls {
		if argvKey(call) == argvKey(cmd) {
			n++
		}
	}
	return n
}

func (f *fakeRunner) last() process.Command {
	if len(f.calls) == 0 {
		return process.Command{}
	}
	return f.calls[len(f.calls)-1]
}

// editorFunc adapts a function to editor.Editor.
type editorFunc func(ctx context.Context, text string) (string, error)

func (f editorFunc) Edit(ctx context.Context, text string) (string, error) {
	return f(ctx, text)
}

var (
	hg  = vcs.NewCommandBuilder("hg", "hg", nil)
	svn = vcs.NewCommandBuilder("svn", "hg", nil)
)

const defaultHgrc = "paths.default=/srv/hg/repo\nreviewboard.url=http://127.0.0.1:8080\nui.username=test user <user at example.com>\n"

// newTestClient builds a plain Mercurial client rooted at /repo over fr.
func newTestClient(t *testing.T, fr *fakeRunner, hgrc string, opts Options) *Client {
	t.Helper()
	fr.on(hg.Root(), "/repo\n")
	fr.on(hg.ShowConfig(), hgrc)

	if opts.Capabilities == nil {
		opts.Capabilities = scm.NewCapabilityCache()
		opts.Capabilities.Lookup(capHgSubversion, func() bool { return false })
	}
	opts.Runner = fr
	opts.Dir = "/repo"
	opts.Delimiter = func() string { return testDelimiter }

	c, err := New(context.Background(), opts)
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	return c
}
