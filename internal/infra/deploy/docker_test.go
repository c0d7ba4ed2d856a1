package deploy

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

// fakeCLI records docker invocations and scripts failures per subcommand.
type fakeCLI struct {
	up      bool
	calls   [][]string
	failOn  map[string]error
	runsOut string
}

func (f *fakeCLI) available() bool { return f.up }

func (f *fakeCLI) run(ctx context.Context, timeout time.Duration, args ...string) (string, error) {
	f.calls = append(f.calls, args)
	if err := f.failOn[args[0]]; err != nil {
		return "", err
	}
	if args[0] == "run" {
		return f.runsOut, nil
	}
	return "", nil
}

func (f *fakeCLI) subcommands() []string {
	var out []string
	for _, c := range f.calls {
		out = append(out, c[0])
	}
	return out
}

type recordingScanner struct {
	target string
	panics bool
}

func (r *recordingScanner) ScanURL(ctx context.Context, target string) domain.ToolResult {
	r.target = target
	if r.panics {
		panic("scanner blew up")
	}
	return domain.ToolResult{Tool: "Nuclei", ScanType: domain.TypeDAST, Target: target, Findings: []domain.Finding{}}
}

func flaskRepo(t *testing.T) domain.RepositoryHandle {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "requirements.txt"), []byte("flask\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "app.py"), []byte("app\n"), 0o644))
	return domain.RepositoryHandle{Path: dir, URL: "https://github.com/o/r", Branch: "main"}
}

func newTestManager(cli *fakeCLI, sc *recordingScanner) *Manager {
	return &Manager{
		Scanner: sc,
		WarmUp:  time.Millisecond,
		cli:     cli,
		sleep:   func(ctx context.Context, d time.Duration) {},
	}
}

func TestDeployAndScanHappyPath(t *testing.T) {
	cli := &fakeCLI{up: true, runsOut: "abc123\n"}
	sc := &recordingScanner{}
	m := newTestManager(cli, sc)

	res, ok := m.DeployAndScan(context.Background(), flaskRepo(t))
	require.True(t, ok)
	assert.Equal(t, "http://localhost:5000", res.Target)
	assert.Equal(t, "http://localhost:5000", sc.target)
	assert.Equal(t, []string{"build", "run", "stop", "rm", "rmi"}, cli.subcommands())
}

func TestDeployUnavailableWithoutDocker(t *testing.T) {
	cli := &fakeCLI{up: false}
	m := newTestManager(cli, &recordingScanner{})

	_, ok := m.DeployAndScan(context.Background(), flaskRepo(t))
	assert.False(t, ok)
	assert.Empty(t, cli.calls)
}

func TestDeployUnavailableForUnknownProject(t *testing.T) {
	cli := &fakeCLI{up: true}
	m := newTestManager(cli, &recordingScanner{})

	_, ok := m.DeployAndScan(context.Background(), domain.RepositoryHandle{Path: t.TempDir()})
	assert.False(t, ok)
	assert.Empty(t, cli.calls)
}

func TestDeployBuildFailureCleansImageAttempts(t *testing.T) {
	cli := &fakeCLI{up: true, failOn: map[string]error{"build": errors.New("build broke")}}
	m := newTestManager(cli, &recordingScanner{})

	_, ok := m.DeployAndScan(context.Background(), flaskRepo(t))
	assert.False(t, ok)
	// nothing was created, so nothing to tear down
	assert.Equal(t, []string{"build"}, cli.subcommands())
}

func TestDeployRunFailureStillRemovesImage(t *testing.T) {
	cli := &fakeCLI{up: true, failOn: map[string]error{"run": errors.New("port taken")}}
	m := newTestManager(cli, &recordingScanner{})

	_, ok := m.DeployAndScan(context.Background(), flaskRepo(t))
	assert.False(t, ok)
	assert.Equal(t, []string{"build", "run", "rmi"}, cli.subcommands())
}

func TestDeployTeardownRunsEvenWhenScanPanics(t *testing.T) {
	cli := &fakeCLI{up: true, runsOut: "abc123\n"}
	sc := &recordingScanner{panics: true}
	m := newTestManager(cli, sc)

	res, ok := m.DeployAndScan(context.Background(), flaskRepo(t))
	assert.False(t, ok)
	assert.Empty(t, res.Tool)
	// container and image removal were both attempted regardless
	assert.Equal(t, []string{"build", "run", "stop", "rm", "rmi"}, cli.subcommands())
}

func TestDeployTeardownFailureDoesNotMaskResult(t *testing.T) {
	cli := &fakeCLI{up: true, runsOut: "abc123\n", failOn: map[string]error{
		"stop": errors.New("already stopped"),
		"rmi":  errors.New("image busy"),
	}}
	sc := &recordingScanner{}
	m := newTestManager(cli, sc)

	res, ok := m.DeployAndScan(context.Background(), flaskRepo(t))
	require.True(t, ok)
	assert.Equal(t, "http://localhost:5000", res.Target)
	// every teardown step attempted even when earlier ones fail
	assert.Equal(t, []string{"build", "run", "stop", "rm", "rmi"}, cli.subcommands())
}

func TestDeploySynthesizesDockerfileOnlyWhenAbsent(t *testing.T) {
	cli := &fakeCLI{up: true, runsOut: "abc\n"}
	m := newTestManager(cli, &recordingScanner{})

	repo := flaskRepo(t)
	_, ok := m.DeployAndScan(context.Background(), repo)
	require.True(t, ok)
	data, err := os.ReadFile(filepath.Join(repo.Path, "Dockerfile"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "FLASK_APP=app.py")

	// existing Dockerfile must be reused untouched
	dir := t.TempDir()
	custom := "FROM scratch\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "Dockerfile"), []byte(custom), 0o644))
	repo2 := domain.RepositoryHandle{Path: dir, URL: repo.URL, Branch: "main"}
	_, ok = m.DeployAndScan(context.Background(), repo2)
	require.True(t, ok)
	data, err = os.ReadFile(filepath.Join(dir, "Dockerfile"))
	require.NoError(t, err)
	assert.Equal(t, custom, string(data))
}
