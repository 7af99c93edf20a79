// Package process runs external VCS binaries and returns their output as typed
// results. A non-zero exit status is data, not an error: callers inspect
// Result.ExitCode and decide what it means for their command.
package process

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"
)

// ErrRepositoryLocked matches an ExecutionError whose stderr shows that the
// working copy lock was held by another process.
var ErrRepositoryLocked = errors.New("repository is locked")

// Command describes a single invocation of an external binary.
type Command struct {
	Name string
	Args []string
	// Env is overlaid on the parent environment.
	Env   map[string]string
	Dir   string
	Stdin []byte
}

// Argv returns the full argument vector, binary first.
func (c Command) Argv() []string {
	return append([]string{c.Name}, c.Args...)
}

// String returns the command as a shell-quoted line, suitable for logs.
func (c Command) String() string {
	parts := make([]string, 0, len(c.Args)+1)
	for _, arg := range c.Argv() {
		parts = append(parts, shellQuote(arg))
	}
	return strings.Join(parts, " ")
}

// EnvList returns Env as sorted KEY=VALUE pairs.
func (c Command) EnvList() []string {
	keys := make([]string, 0, len(c.Env))
	for k := range c.Env {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]string, 0, len(keys))
	for _, k := range keys {
		out = append(out, k+"="+c.Env[k])
	}
	return out
}

// Result is the outcome of a command that ran to completion.
type Result struct {
	Argv     []string
	ExitCode int
	Stdout   []byte
	Stderr   []byte
}

// OK reports whether the command exited with status 0.
func (r *Result) OK() bool {
	return r.ExitCode == 0
}

// AllowExit reports whether the exit status is 0 or one of codes.
func (r *Result) AllowExit(codes ...int) bool {
	if r.ExitCode == 0 {
		return true
	}
	for _, code := range codes {
		if r.ExitCode == code {
			return true
		}
	}
	return false
}

// Text returns stdout as a string.
func (r *Result) Text() string {
	return string(r.Stdout)
}

// Err returns nil for a zero exit status and an *ExecutionError otherwise.
func (r *Result) Err() error {
	if r.OK() {
		return nil
	}
	return &ExecutionError{Argv: r.Argv, ExitCode: r.ExitCode, Stderr: r.Stderr, Stdout: r.Stdout}
}

// Runner executes commands. Implementations block until the process exits.
type Runner interface {
	Run(ctx context.Context, cmd Command) (*Result, error)
}

// ExecutionError reports a command that failed to start or exited non-zero.
type ExecutionError struct {
	Argv     []string
	ExitCode int
	Stdout   []byte
	Stderr   []byte
	Err      error
}

func (e *ExecutionError) Error() string {
	name := strings.Join(e.Argv, " ")
	if len(e.Argv) > 2 {
		name = strings.Join(e.Argv[:2], " ")
	}
	if e.Err != nil {
		return fmt.Sprintf("failed to run %s: %v", name, e.Err)
	}
	msg := strings.TrimSpace(string(e.Stderr))
	if msg == "" {
		msg = strings.TrimSpace(string(e.Stdout))
	}
	if msg == "" {
		return fmt.Sprintf("%s exited with status %d", name, e.ExitCode)
	}
	return fmt.Sprintf("%s exited with status %d: %s", name, e.ExitCode, msg)
}

func (e *ExecutionError) Unwrap() error {
	return e.Err
}

// Is matches ErrRepositoryLocked when the failure came from a held lock.
func (e *ExecutionError) Is(target error) bool {
	return target == ErrRepositoryLocked && e.Locked()
}

// Locked reports whether stderr shows that the repository lock was held.
// hg runs with HGPLAIN=1, which keeps these messages untranslated, so the
// English text is stable.
func (e *ExecutionError) Locked() bool {
	stderr := string(e.Stderr)
	return strings.Contains(stderr, "waiting for lock") ||
		strings.Contains(stderr, "timed out waiting for lock")
}

// TimeoutError is returned when a command exceeds its deadline and is killed.
type TimeoutError struct {
	Argv    []string
	Timeout time.Duration
	Stderr  []byte
}

func (e *TimeoutError) Error() string {
	if e.Timeout > 0 {
		return fmt.Sprintf("%s timed out after %s", strings.Join(e.Argv, " "), e.Timeout)
	}
	return fmt.Sprintf("%s timed out", strings.Join(e.Argv, " "))
}

// shellQuote quotes a string for safe use in shell commands.
func shellQuote(s string) string {
	if s != "" && !strings.ContainsAny(s, " \t\n'\"\\$`|&;<>()*?[]{}!#~") {
		return s
	}
	return "'" + strings.ReplaceAll(s, "'", "'\\''") + "'"
}
