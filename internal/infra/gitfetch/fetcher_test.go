package gitfetch

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domain "github.com/bryanwahyu/repoguard/internal/domain/scans"
)

// fakeGit scripts successive clone outcomes and records every invocation.
type fakeGit struct {
	calls   [][]string
	results []fakeResult
}

type fakeResult struct {
	stderr string
	exit   int
	err    error
}

func (f *fakeGit) run(ctx context.Context, args ...string) (string, int, error) {
	f.calls = append(f.calls, args)
	i := len(f.calls) - 1
	if i >= len(f.results) {
		i = len(f.results) - 1
	}
	r := f.results[i]
	if r.err == nil && r.exit == 0 {
		// a real clone materializes the destination directory
		dest := args[len(args)-1]
		_ = os.MkdirAll(dest, 0o755)
	}
	return r.stderr, r.exit, r.err
}

func newTestFetcher(fg *fakeGit) *Fetcher {
	f := NewFetcher()
	f.AttemptTimeout = 5 * time.Second
	f.run = fg.run
	return f
}

func TestFetchSucceedsOnThirdAttempt(t *testing.T) {
	fg := &fakeGit{results: []fakeResult{
		{stderr: "error: RPC failed", exit: 128, err: errors.New("exit status 128")},
		{stderr: "error: RPC failed", exit: 128, err: errors.New("exit status 128")},
		{exit: 0},
	}}
	f := newTestFetcher(fg)

	dir := t.TempDir()
	h, err := f.Fetch(context.Background(), dir, domain.FetchRequest{
		URL:    "https://github.com/owner/sample",
		Branch: "main",
	})
	require.NoError(t, err)
	assert.Len(t, fg.calls, 3)
	assert.Equal(t, filepath.Join(dir, "sample"), h.Path)
	assert.Equal(t, "main", h.Branch)
	assert.DirExists(t, h.Path)
}

func TestFetchEmptyBranchDefaultsToMain(t *testing.T) {
	fg := &fakeGit{results: []fakeResult{{exit: 0}}}
	f := newTestFetcher(fg)

	h, err := f.Fetch(context.Background(), t.TempDir(), domain.FetchRequest{
		URL: "https://github.com/owner/sample",
	})
	require.NoError(t, err)
	require.Len(t, fg.calls, 1)

	args := fg.calls[0]
	for i, a := range args {
		if a == "--branch" {
			assert.Equal(t, "main", args[i+1])
		}
	}
	assert.NotContains(t, args, "")
	assert.Equal(t, "main", h.Branch)
}

func TestFetchClassifiesTerminalError(t *testing.T) {
	cases := []struct {
		stderr string
		want   domain.CloneReason
	}{
		{"fatal: Authentication failed for 'https://github.com/x/y'", domain.CloneAuth},
		{"fatal: repository 'https://github.com/x/y' not found", domain.CloneNotFound},
		{"fatal: invalid index-pack output", domain.CloneTooLarge},
		{"error: fetch-pack: unable to spawn", domain.CloneTooLarge},
		{"fatal: unable to access: could not resolve host", domain.CloneNetwork},
	}
	for _, tc := range cases {
		fail := fakeResult{stderr: tc.stderr, exit: 128, err: errors.New("exit status 128")}
		fg := &fakeGit{results: []fakeResult{fail, fail, fail}}
		f := newTestFetcher(fg)

		dir := t.TempDir()
		_, err := f.Fetch(context.Background(), dir, domain.FetchRequest{
			URL:    "https://github.com/owner/sample",
			Branch: "main",
		})
		require.Error(t, err, tc.stderr)

		var ce *domain.CloneError
		require.ErrorAs(t, err, &ce)
		assert.Equal(t, tc.want, ce.Reason, tc.stderr)
		assert.Equal(t, 3, ce.Attempts)
		assert.Len(t, fg.calls, 3)

		// no partial clone artifacts left behind
		assert.NoDirExists(t, filepath.Join(dir, "sample"))
	}
}

func TestFetchEmbedsTokenOnlyForGitHub(t *testing.T) {
	assert.Equal(t,
		"https://tok123@github.com/owner/repo",
		authCloneURL("https://github.com/owner/repo", "tok123"))
	assert.Equal(t,
		"https://github.com/owner/repo",
		authCloneURL("https://github.com/owner/repo", ""))
	// unrecognized hosts never receive credentials
	assert.Equal(t,
		"https://evil.example.com/owner/repo",
		authCloneURL("https://evil.example.com/owner/repo", "tok123"))
	assert.Equal(t,
		"http://github.com/owner/repo",
		authCloneURL("http://github.com/owner/repo", "tok123"))
}

func TestRepoName(t *testing.T) {
	assert.Equal(t, "repo", repoName("https://github.com/owner/repo"))
	assert.Equal(t, "repo", repoName("https://github.com/owner/repo.git"))
	assert.Equal(t, "repo", repoName("https://github.com/owner/repo/"))
	assert.Equal(t, "repository", repoName(""))
}

func TestFetchProgressNeverBlocks(t *testing.T) {
	fg := &fakeGit{results: []fakeResult{{exit: 0}}}
	f := newTestFetcher(fg)

	// unbuffered channel with no reader: sends must be dropped, not block
	ch := make(chan string)
	done := make(chan struct{})
	go func() {
		defer close(done)
		_, err := f.Fetch(context.Background(), t.TempDir(), domain.FetchRequest{
			URL:      "https://github.com/owner/sample",
			Branch:   "main",
			Progress: ch,
		})
		assert.NoError(t, err)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("fetch blocked on progress channel")
	}
}
