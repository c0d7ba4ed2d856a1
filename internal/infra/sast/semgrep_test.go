package sast

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	domain "github.com/bryanwahyu/repoguard/internal/domain/scans"
	"github.com/bryanwahyu/repoguard/internal/infra/toolrunner"
)

type fakeRunner struct {
	res toolrunner.Result
	err error
}

func (f *fakeRunner) Run(ctx context.Context, inv toolrunner.Invocation) (toolrunner.Result, error) {
	return f.res, f.err
}

var handle = domain.RepositoryHandle{Path: "/tmp/ws/repo", URL: "https://github.com/o/r", Branch: "main"}

func TestScanParsesFindings(t *testing.T) {
	out := `{"results":[
		{"check_id":"python.lang.security.audit.eval-detected",
		 "path":"app/views.py",
		 "start":{"line":42},
		 "extra":{"severity":"ERROR","message":"Detected eval usage","lines":"eval(data)",
		          "metadata":{"cwe":["CWE-95"],"references":["https://owasp.org"]}}},
		{"check_id":"generic.secrets.api-key",
		 "path":"config.py",
		 "start":{"line":7},
		 "extra":{"severity":"WARNING","message":"Hardcoded key","lines":"KEY=1",
		          "metadata":{"cwe":"CWE-798"}}}
	]}`
	s := &Scanner{Runner: &fakeRunner{res: toolrunner.Result{Stdout: []byte(out), ExitCode: 1}}, Timeout: time.Minute}

	r := s.Scan(context.Background(), handle)
	assert.Empty(t, r.Error)
	assert.Equal(t, "Semgrep", r.Tool)
	assert.Equal(t, domain.TypeSAST, r.ScanType)
	assert.Len(t, r.Findings, 2)

	assert.Equal(t, "python.lang.security.audit.eval-detected", r.Findings[0].Title)
	assert.Equal(t, domain.SeverityHigh, r.Findings[0].Severity)
	assert.Equal(t, "app/views.py", r.Findings[0].File)
	assert.Equal(t, 42, r.Findings[0].Line)
	assert.Equal(t, []string{"CWE-95"}, r.Findings[0].CWE)

	assert.Equal(t, domain.SeverityMedium, r.Findings[1].Severity)
	assert.Equal(t, []string{"CWE-798"}, r.Findings[1].CWE)

	assert.Equal(t, domain.SeverityCounts{High: 1, Medium: 1, Total: 2}, r.Summary)
}

func TestScanCleanExitNoOutput(t *testing.T) {
	s := &Scanner{Runner: &fakeRunner{res: toolrunner.Result{ExitCode: 0}}, Timeout: time.Minute}
	r := s.Scan(context.Background(), handle)
	assert.Empty(t, r.Error)
	assert.Empty(t, r.Findings)
	assert.Zero(t, r.Summary.Total)
}

func TestScanExecutionErrorExitCode(t *testing.T) {
	s := &Scanner{Runner: &fakeRunner{res: toolrunner.Result{ExitCode: 2, Stderr: []byte("boom")}}, Timeout: time.Minute}
	r := s.Scan(context.Background(), handle)
	assert.Contains(t, r.Error, "code 2")
	assert.Empty(t, r.Findings)
}

func TestScanMalformedJSONIsRecordedNotFatal(t *testing.T) {
	s := &Scanner{Runner: &fakeRunner{res: toolrunner.Result{Stdout: []byte("{nope"), ExitCode: 1}}, Timeout: time.Minute}
	r := s.Scan(context.Background(), handle)
	assert.Contains(t, r.Error, "parse")
	assert.Empty(t, r.Findings)
}

func TestScanTimeout(t *testing.T) {
	s := &Scanner{Runner: &fakeRunner{res: toolrunner.Result{TimedOut: true}}, Timeout: time.Minute}
	r := s.Scan(context.Background(), handle)
	assert.Contains(t, r.Error, "timeout")
}

func TestScanToolMissing(t *testing.T) {
	s := &Scanner{Runner: &fakeRunner{err: toolrunner.ErrToolNotFound}, Timeout: time.Minute}
	r := s.Scan(context.Background(), handle)
	assert.Contains(t, r.Error, "not found")
	assert.Empty(t, r.Findings)
}
