package toolrunner

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveToolNotFound(t *testing.T) {
	r := NewRunner()
	_, err := r.Resolve("definitely-not-a-real-tool-xyz")
	assert.ErrorIs(t, err, ErrToolNotFound)
}

func TestResolveFallbackDir(t *testing.T) {
	dir := t.TempDir()
	bin := filepath.Join(dir, "faketool")
	require.NoError(t, os.WriteFile(bin, []byte("#!/bin/sh\necho hi\n"), 0o755))

	r := NewRunner(dir)
	p, err := r.Resolve("faketool")
	require.NoError(t, err)
	assert.Equal(t, bin, p)
}

func TestRunCapturesOutputAndExitCode(t *testing.T) {
	r := NewRunner()
	res, err := r.Run(context.Background(), Invocation{
		Tool:    "sh",
		Args:    []string{"-c", "echo out; echo err >&2; exit 1"},
		Timeout: 5 * time.Second,
	})
	require.NoError(t, err)
	assert.Equal(t, 1, res.ExitCode)
	assert.Equal(t, "out\n", string(res.Stdout))
	assert.Equal(t, "err\n", string(res.Stderr))
	assert.False(t, res.TimedOut)
}

func TestRunTimeoutKillsSubprocess(t *testing.T) {
	r := NewRunner()
	start := time.Now()
	res, err := r.Run(context.Background(), Invocation{
		Tool:    "sleep",
		Args:    []string{"30"},
		Timeout: 200 * time.Millisecond,
	})
	require.NoError(t, err)
	assert.True(t, res.TimedOut)
	// returns promptly, not after the subprocess would have finished
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestRunMissingToolFailsFast(t *testing.T) {
	r := NewRunner()
	_, err := r.Run(context.Background(), Invocation{
		Tool:    "definitely-not-a-real-tool-xyz",
		Timeout: time.Second,
	})
	assert.ErrorIs(t, err, ErrToolNotFound)
}
