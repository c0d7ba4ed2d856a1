package gitfetch

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"

	domain "github.com/bryanwahyu/repoguard/internal/domain/scans"
)

const (
	defaultAttempts       = 3
	defaultAttemptTimeout = 15 * time.Minute
)

// runGitFunc executes git with the given args and returns stderr, the exit
// code and the raw error. Seam for tests.
type runGitFunc func(ctx context.Context, args ...string) (stderr string, exitCode int, err error)

// Fetcher clones a shallow single-branch copy of a repository into a
// workspace directory. Large repositories are expected, hence the generous
// per-attempt timeout.
type Fetcher struct {
	GitPath        string
	Attempts       int
	AttemptTimeout time.Duration

	run runGitFunc
}

func NewFetcher() *Fetcher {
	f := &Fetcher{
		GitPath:        "git",
		Attempts:       defaultAttempts,
		AttemptTimeout: defaultAttemptTimeout,
	}
	f.run = f.runGit
	return f
}

// Fetch clones req.URL (branch req.Branch, "main" when empty) under dir and
// returns the handle. Up to Attempts tries with no delay in between; a
// partial clone is removed before every retry. The terminal error is always
// a *scans.CloneError.
func (f *Fetcher) Fetch(ctx context.Context, dir string, req domain.FetchRequest) (domain.RepositoryHandle, error) {
	dest := filepath.Join(dir, repoName(req.URL))
	cloneURL := authCloneURL(req.URL, req.Token)
	branch := req.Branch
	if branch == "" {
		branch = "main"
	}

	start := time.Now()
	attempt := 0
	var lastStderr string

	op := func() error {
		attempt++
		progress(req.Progress, fmt.Sprintf("cloning repository (attempt %d/%d)", attempt, f.Attempts))

		attemptCtx, cancel := context.WithTimeout(ctx, f.AttemptTimeout)
		defer cancel()

		stderr, exit, err := f.run(attemptCtx,
			"clone", "--depth", "1", "--single-branch", "--branch", branch, "--progress",
			cloneURL, dest,
		)
		if err == nil && exit == 0 {
			return nil
		}
		lastStderr = stderr

		// never leave half a clone behind for the next attempt
		_ = os.RemoveAll(dest)

		if attemptCtx.Err() != nil {
			lastStderr = "" // timeout, stderr is just truncated progress
			return fmt.Errorf("attempt timed out after %s", f.AttemptTimeout)
		}
		if err == nil {
			err = fmt.Errorf("git exited with code %d", exit)
		}
		return err
	}

	policy := backoff.WithContext(backoff.WithMaxRetries(&backoff.ZeroBackOff{}, uint64(f.Attempts-1)), ctx)
	if err := backoff.Retry(op, policy); err != nil {
		_ = os.RemoveAll(dest)
		return domain.RepositoryHandle{}, classify(err, lastStderr, attempt)
	}

	progress(req.Progress, "clone complete: "+dest)
	return domain.RepositoryHandle{
		Path:          dest,
		URL:           req.URL,
		Branch:        branch,
		CloneDuration: time.Since(start),
	}, nil
}

func (f *Fetcher) runGit(ctx context.Context, args ...string) (string, int, error) {
	cmd := exec.CommandContext(ctx, f.GitPath, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	err := cmd.Run()
	exit := 0
	var ee *exec.ExitError
	if errors.As(err, &ee) {
		exit = ee.ExitCode()
	}
	return stderr.String(), exit, err
}

// authCloneURL embeds the token into the URL authority, but only for hosts
// we recognize. Appending credentials to an arbitrary remote would leak them.
func authCloneURL(rawURL, token string) string {
	if token == "" {
		return rawURL
	}
	u, err := url.Parse(rawURL)
	if err != nil || u.Scheme != "https" || u.Hostname() != "github.com" {
		return rawURL
	}
	u.User = url.User(token)
	return u.String()
}

// repoName extracts the trailing path segment, minus any .git suffix.
func repoName(rawURL string) string {
	name := strings.TrimSuffix(strings.TrimRight(rawURL, "/"), ".git")
	if i := strings.LastIndex(name, "/"); i >= 0 {
		name = name[i+1:]
	}
	if name == "" {
		name = "repository"
	}
	return name
}

// classify maps the terminal failure onto a CloneError reason. Transport
// payload failures get their own reason so callers can tell the user the
// repository is probably too large rather than echoing raw git output.
func classify(err error, stderr string, attempts int) *domain.CloneError {
	msg := strings.ToLower(stderr + " " + err.Error())

	reason := domain.CloneNetwork
	switch {
	case strings.Contains(msg, "invalid index-pack output"),
		strings.Contains(msg, "fetch-pack"),
		strings.Contains(msg, "early eof"),
		strings.Contains(msg, "rpc failed"):
		reason = domain.CloneTooLarge
	case strings.Contains(msg, "timed out"),
		strings.Contains(msg, "deadline exceeded"):
		reason = domain.CloneTimeout
	case strings.Contains(msg, "authentication failed"),
		strings.Contains(msg, "could not read username"),
		strings.Contains(msg, "invalid username or password"),
		strings.Contains(msg, "403"):
		reason = domain.CloneAuth
	case strings.Contains(msg, "not found"),
		strings.Contains(msg, "repository does not exist"),
		strings.Contains(msg, "404"):
		reason = domain.CloneNotFound
	}

	if stderr != "" {
		err = fmt.Errorf("%s", strings.TrimSpace(stderr))
	}
	return &domain.CloneError{Reason: reason, Attempts: attempts, Err: err}
}

// progress sends best-effort. A slow or absent consumer must never stall
// or abort the clone, so the send is non-blocking.
func progress(ch chan<- string, msg string) {
	if ch == nil {
		return
	}
	select {
	case ch <- msg:
	default:
	}
}
