package sca

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domain "github.com/bryanwahyu/repoguard/internal/domain/scans"
	"github.com/bryanwahyu/repoguard/internal/infra/toolrunner"
)

type fakeRunner struct {
	res    toolrunner.Result
	err    error
	called bool
}

func (f *fakeRunner) Run(ctx context.Context, inv toolrunner.Invocation) (toolrunner.Result, error) {
	f.called = true
	return f.res, f.err
}

func repoWithManifest(t *testing.T, rel string) domain.RepositoryHandle {
	t.Helper()
	dir := t.TempDir()
	p := filepath.Join(dir, rel)
	require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
	require.NoError(t, os.WriteFile(p, []byte("flask==0.12\n"), 0o644))
	return domain.RepositoryHandle{Path: dir, Branch: "main"}
}

func TestScanNoManifestReturnsNoteNotError(t *testing.T) {
	fr := &fakeRunner{}
	s := &Scanner{Runner: fr, Timeout: time.Minute}

	r := s.Scan(context.Background(), domain.RepositoryHandle{Path: t.TempDir()})
	assert.Empty(t, r.Error)
	assert.Equal(t, "No requirements.txt found", r.Note)
	assert.Empty(t, r.Findings)
	assert.False(t, fr.called, "tool must not be invoked without a manifest")
}

func TestScanFindsManifestInOrderedLocations(t *testing.T) {
	fr := &fakeRunner{res: toolrunner.Result{Stdout: []byte("[]")}}
	s := &Scanner{Runner: fr, Timeout: time.Minute}

	r := s.Scan(context.Background(), repoWithManifest(t, filepath.Join("requirements", "base.txt")))
	assert.True(t, fr.called)
	assert.Empty(t, r.Note)
	assert.Empty(t, r.Error)
}

func TestScanParsesFindings(t *testing.T) {
	out := `[{"package":"flask","advisory":"Flask before 0.12.3 is vulnerable","installed_version":"0.12",
	"affected_versions":"<0.12.3","cve":"CVE-2018-1000656","fixed_version":"0.12.3"}]`
	fr := &fakeRunner{res: toolrunner.Result{Stdout: []byte(out), ExitCode: 255}}
	s := &Scanner{Runner: fr, Timeout: time.Minute}

	r := s.Scan(context.Background(), repoWithManifest(t, "requirements.txt"))
	require.Len(t, r.Findings, 1)
	f := r.Findings[0]
	assert.Equal(t, "Vulnerable dependency: flask", f.Title)
	assert.Equal(t, domain.SeverityHigh, f.Severity)
	assert.Equal(t, "0.12", f.InstalledVer)
	assert.Equal(t, "CVE-2018-1000656", f.CVE)
	assert.Equal(t, "Upgrade to version 0.12.3", f.Recommendation)
	assert.Equal(t, 1, r.Summary.High)
}

func TestScanNonJSONOutputMeansClean(t *testing.T) {
	fr := &fakeRunner{res: toolrunner.Result{Stdout: []byte("All good, no known vulnerabilities found")}}
	s := &Scanner{Runner: fr, Timeout: time.Minute}

	r := s.Scan(context.Background(), repoWithManifest(t, "requirements.txt"))
	assert.Empty(t, r.Error)
	assert.Empty(t, r.Findings)
}

func TestScanToolMissing(t *testing.T) {
	fr := &fakeRunner{err: toolrunner.ErrToolNotFound}
	s := &Scanner{Runner: fr, Timeout: time.Minute}

	r := s.Scan(context.Background(), repoWithManifest(t, "requirements.txt"))
	assert.Contains(t, r.Error, "not found")
}
