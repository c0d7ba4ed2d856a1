package toolrunner

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"time"
)

// ErrToolNotFound means the executable resolves neither on PATH nor in any
// fallback directory. Callers turn this into a structured result instead of
// attempting execution.
var ErrToolNotFound = errors.New("tool not installed")

// Result captures one subprocess invocation.
type Result struct {
	Stdout   []byte
	Stderr   []byte
	ExitCode int
	TimedOut bool
	Duration time.Duration
}

// Invocation describes what to run. Timeout is mandatory: there is no
// unbounded subprocess in this subsystem.
type Invocation struct {
	Tool    string
	Args    []string
	Dir     string
	Timeout time.Duration
}

// Runner executes external analysis tools with a hard timeout and a
// predictable text encoding. FallbackDirs lists install locations (for
// example a bundled virtualenv bin directory) tried after PATH.
type Runner struct {
	FallbackDirs []string
}

func NewRunner(fallbackDirs ...string) *Runner {
	return &Runner{FallbackDirs: fallbackDirs}
}

// Resolve finds the tool binary: PATH first, then the fallback dirs.
func (r *Runner) Resolve(tool string) (string, error) {
	if p, err := exec.LookPath(tool); err == nil {
		return p, nil
	}
	for _, dir := range r.FallbackDirs {
		p := filepath.Join(dir, tool)
		if info, err := os.Stat(p); err == nil && !info.IsDir() {
			return p, nil
		}
	}
	return "", fmt.Errorf("%w: %s", ErrToolNotFound, tool)
}

// Run executes the invocation. On timeout the subprocess is killed and the
// result comes back with TimedOut set; the caller never sees a raw context
// error for an expired tool.
func (r *Runner) Run(ctx context.Context, inv Invocation) (Result, error) {
	path, err := r.Resolve(inv.Tool)
	if err != nil {
		return Result{}, err
	}

	runCtx, cancel := context.WithTimeout(ctx, inv.Timeout)
	defer cancel()

	cmd := exec.CommandContext(runCtx, path, inv.Args...)
	cmd.Dir = inv.Dir
	cmd.Env = append(os.Environ(),
		"PYTHONIOENCODING=utf-8",
		"PYTHONUTF8=1",
		"LANG=C.UTF-8",
	)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	runErr := cmd.Run()
	res := Result{
		Stdout:   stdout.Bytes(),
		Stderr:   stderr.Bytes(),
		Duration: time.Since(start),
	}

	if runCtx.Err() == context.DeadlineExceeded {
		res.TimedOut = true
		res.ExitCode = -1
		return res, nil
	}

	if runErr != nil {
		var ee *exec.ExitError
		if errors.As(runErr, &ee) {
			res.ExitCode = ee.ExitCode()
			return res, nil
		}
		return res, fmt.Errorf("run %s: %w", inv.Tool, runErr)
	}
	return res, nil
}
