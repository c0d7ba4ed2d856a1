package deploy

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	domain "github.com/bryanwahyu/repoguard/internal/domain/scans"
	"github.com/bryanwahyu/repoguard/internal/infra/dast"
)

const (
	buildTimeout    = 5 * time.Minute
	runTimeout      = 30 * time.Second
	teardownTimeout = 30 * time.Second
	warmUpDefault   = 10 * time.Second
)

// dockerCLI is the seam over the docker binary. available() mirrors a PATH
// lookup; run executes one docker subcommand with a timeout.
type dockerCLI interface {
	available() bool
	run(ctx context.Context, timeout time.Duration, args ...string) (stdout string, err error)
}

// Manager builds and runs a short-lived container so the URL scanner has a
// reachable target, then tears everything down again. It owns at most one
// container at a time, named uniquely per attempt so concurrent sessions
// cannot collide on the shared docker daemon.
type Manager struct {
	Scanner dast.URLScanner
	WarmUp  time.Duration

	cli   dockerCLI
	sleep func(ctx context.Context, d time.Duration)
}

func NewManager(scanner dast.URLScanner) *Manager {
	return &Manager{
		Scanner: scanner,
		WarmUp:  warmUpDefault,
		cli:     execCLI{},
		sleep:   ctxSleep,
	}
}

// DeployAndScan runs the whole tier-3 attempt. ok=false means the tier was
// unavailable for this repository (no docker, unknown stack, failed
// build/run); the orchestrator then falls through. Teardown of whatever got
// created is unconditional, including on cancellation and panics in the
// scan step.
func (m *Manager) DeployAndScan(ctx context.Context, repo domain.RepositoryHandle) (result domain.ToolResult, ok bool) {
	if !m.cli.available() {
		log.Printf("docker deploy skipped: runtime not available")
		return domain.ToolResult{}, false
	}

	projectType, port := Classify(repo.Path)
	if projectType == TypeUnknown {
		log.Printf("docker deploy skipped: unknown project type repo=%s", repo.URL)
		return domain.ToolResult{}, false
	}

	if err := m.ensureDockerfile(repo.Path, projectType); err != nil {
		log.Printf("dockerfile synthesis failed: %v", err)
		return domain.ToolResult{}, false
	}

	// session-unique name shared by image and container
	name := fmt.Sprintf("dast-scan-%s-%s", time.Now().Format("20060102150405"), uuid.NewString()[:8])

	var imageBuilt, containerStarted bool
	defer func() {
		if r := recover(); r != nil {
			log.Printf("docker deploy panic recovered: %v", r)
			result, ok = domain.ToolResult{}, false
		}
		// teardown runs on a background context: request cancellation
		// must not leak containers or images
		tctx := context.Background()
		if containerStarted {
			if _, err := m.cli.run(tctx, teardownTimeout, "stop", name); err != nil {
				log.Printf("docker stop failed name=%s err=%v", name, err)
			}
			if _, err := m.cli.run(tctx, teardownTimeout, "rm", name); err != nil {
				log.Printf("docker rm failed name=%s err=%v", name, err)
			}
		}
		if imageBuilt {
			if _, err := m.cli.run(tctx, teardownTimeout, "rmi", name); err != nil {
				log.Printf("docker rmi failed name=%s err=%v", name, err)
			}
		}
	}()

	if _, err := m.cli.run(ctx, buildTimeout, "build", "-t", name, repo.Path); err != nil {
		log.Printf("docker build failed: %v", err)
		return domain.ToolResult{}, false
	}
	imageBuilt = true

	out, err := m.cli.run(ctx, runTimeout,
		"run", "-d",
		"-p", fmt.Sprintf("%d:%d", port, port),
		"--name", name,
		name,
	)
	if err != nil {
		log.Printf("docker run failed: %v", err)
		return domain.ToolResult{}, false
	}
	containerStarted = true
	log.Printf("container started name=%s id=%s type=%s port=%d", name, strings.TrimSpace(out), projectType, port)

	// give the application time to bind before probing
	m.sleep(ctx, m.WarmUp)
	if ctx.Err() != nil {
		return domain.ToolResult{}, false
	}

	target := fmt.Sprintf("http://localhost:%d", port)
	return m.Scanner.ScanURL(ctx, target), true
}

// ensureDockerfile writes a per-stack template only when the repository has
// none. The workspace owns the file's lifetime.
func (m *Manager) ensureDockerfile(repoPath string, t ProjectType) error {
	path := filepath.Join(repoPath, "Dockerfile")
	if _, err := os.Stat(path); err == nil {
		return nil
	}
	tmpl := DockerfileFor(t)
	if tmpl == "" {
		return fmt.Errorf("no dockerfile template for project type %s", t)
	}
	return os.WriteFile(path, []byte(tmpl), 0o644)
}

// execCLI is the real docker binary.
type execCLI struct{}

func (execCLI) available() bool {
	_, err := exec.LookPath("docker")
	return err == nil
}

func (execCLI) run(ctx context.Context, timeout time.Duration, args ...string) (string, error) {
	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(runCtx, "docker", args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		var ee *exec.ExitError
		if errors.As(err, &ee) {
			return stdout.String(), fmt.Errorf("docker %s exited with code %d: %s", args[0], ee.ExitCode(), strings.TrimSpace(stderr.String()))
		}
		return stdout.String(), err
	}
	return stdout.String(), nil
}

func ctxSleep(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
