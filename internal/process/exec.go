package process

import (
	"bytes"
	"context"
	"errors"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/sergeknystautas/rbclient/internal/logging"
)

// waitDelay bounds how long Run waits for output pipes after the process is
// killed, in case a grandchild still holds them open.
const waitDelay = 2 * time.Second

// ExecRunner runs commands with os/exec.
type ExecRunner struct {
	// Timeout bounds every command. Zero means no limit beyond the caller's context.
	Timeout time.Duration
	Logger  *logging.Logger
}

// NewExecRunner creates a runner with the given per-command timeout.
func NewExecRunner(timeout time.Duration, logger *logging.Logger) *ExecRunner {
	return &ExecRunner{Timeout: timeout, Logger: logger.Component("process")}
}

// Run executes cmd and waits for it to exit.
func (r *ExecRunner) Run(ctx context.Context, cmd Command) (*Result, error) {
	if r.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.Timeout)
		defer cancel()
	}

	log := r.Logger
	if log == nil {
		log = logging.Nop()
	}
	log.Debugf("running %s", cmd.String())

	c := exec.CommandContext(ctx, cmd.Name, cmd.Args...)
	c.Dir = cmd.Dir
	c.WaitDelay = waitDelay
	c.Env = mergeEnv(os.Environ(), cmd.EnvList())
	if cmd.Stdin != nil {
		c.Stdin = bytes.NewReader(cmd.Stdin)
	}

	var stdout, stderr bytes.Buffer
	c.Stdout = &stdout
	c.Stderr = &stderr

	err := c.Run()
	if ctxErr := ctx.Err(); ctxErr != nil && errors.Is(ctxErr, context.DeadlineExceeded) {
		return nil, &TimeoutError{Argv: cmd.Argv(), Timeout: r.Timeout, Stderr: stderr.Bytes()}
	}

	result := &Result{
		Argv:   cmd.Argv(),
		Stdout: stdout.Bytes(),
		Stderr: stderr.Bytes(),
	}

	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			result.ExitCode = exitErr.ExitCode()
			log.Debugf("%s exited with status %d", cmd.Name, result.ExitCode)
			return result, nil
		}
		return nil, &ExecutionError{Argv: cmd.Argv(), ExitCode: -1, Stderr: stderr.Bytes(), Err: err}
	}

	return result, nil
}

// mergeEnv overlays KEY=VALUE pairs from overrides on base.
func mergeEnv(base, overrides []string) []string {
	if len(overrides) == 0 {
		return base
	}

	replaced := make(map[string]bool, len(overrides))
	for _, kv := range overrides {
		if idx := strings.IndexByte(kv, '='); idx > 0 {
			replaced[kv[:idx]] = true
		}
	}

	out := make([]string, 0, len(base)+len(overrides))
	for _, kv := range base {
		if idx := strings.IndexByte(kv, '='); idx > 0 && replaced[kv[:idx]] {
			continue
		}
		out = append(out, kv)
	}
	return append(out, overrides...)
}
