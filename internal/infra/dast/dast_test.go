package dast

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domain "github.com/bryanwahyu/repoguard/internal/domain/scans"
)

func TestProberAliveOnSuccessAndRedirect(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/moved":
			http.Redirect(w, r, "/", http.StatusFound)
		case "/broken":
			w.WriteHeader(http.StatusInternalServerError)
		default:
			w.WriteHeader(http.StatusOK)
		}
	}))
	defer srv.Close()

	p := NewProber()
	ctx := context.Background()
	assert.True(t, p.IsAlive(ctx, srv.URL))
	assert.True(t, p.IsAlive(ctx, srv.URL+"/moved"))
	assert.False(t, p.IsAlive(ctx, srv.URL+"/broken"))
}

func TestProberDeadOnConnectionError(t *testing.T) {
	p := NewProber()
	// closed server: connection refused, must be "not alive", not an error
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()
	assert.False(t, p.IsAlive(context.Background(), url))
	assert.False(t, p.IsAlive(context.Background(), "http://definitely-not-a-host.invalid"))
	assert.False(t, p.IsAlive(context.Background(), "::notaurl"))
}

// stubProber marks a fixed set of URLs as alive and records probes.
type stubProber struct {
	alive  map[string]bool
	probed []string
}

func (s *stubProber) IsAlive(ctx context.Context, url string) bool {
	s.probed = append(s.probed, url)
	return s.alive[url]
}

func TestDetectorReturnsFirstAliveCandidateInPriorityOrder(t *testing.T) {
	p := &stubProber{alive: map[string]bool{
		"https://owner.github.io": true, // user page, second in order
		"https://repo.vercel.app": true, // must never be reached
	}}
	d := NewDetector(p)

	c := d.Detect(context.Background(), "https://github.com/owner/repo", "main")
	require.NotNil(t, c)
	assert.Equal(t, "https://owner.github.io", c.URL)
	assert.Equal(t, "github-pages", c.Platform)
	assert.True(t, c.Alive)
	// project page probed first, then user page; vercel never probed
	assert.Equal(t, []string{"https://owner.github.io/repo", "https://owner.github.io"}, p.probed)
}

func TestDetectorNoCandidateAlive(t *testing.T) {
	p := &stubProber{alive: map[string]bool{}}
	d := NewDetector(p)

	c := d.Detect(context.Background(), "https://github.com/owner/repo.git", "main")
	assert.Nil(t, c)
	assert.Len(t, p.probed, 6)
}

func TestDetectorUnparseableURL(t *testing.T) {
	p := &stubProber{alive: map[string]bool{}}
	d := NewDetector(p)
	assert.Nil(t, d.Detect(context.Background(), "https://gitlab.example.com/x/y", "main"))
	assert.Empty(t, p.probed)
}

// stubURLScanner records the target it was pointed at.
type stubURLScanner struct {
	targets []string
}

func (s *stubURLScanner) ScanURL(ctx context.Context, target string) domain.ToolResult {
	s.targets = append(s.targets, target)
	return domain.ToolResult{
		Tool:     "Nuclei",
		ScanType: domain.TypeDAST,
		Target:   target,
		Findings: []domain.Finding{},
	}
}

type stubDeployer struct {
	res    domain.ToolResult
	ok     bool
	called bool
}

func (s *stubDeployer) DeployAndScan(ctx context.Context, repo domain.RepositoryHandle) (domain.ToolResult, bool) {
	s.called = true
	return s.res, s.ok
}

var repo = domain.RepositoryHandle{Path: "/tmp/ws/repo", URL: "https://github.com/owner/repo", Branch: "main"}

func TestOrchestratorTier1WinsWhenProvidedURLAlive(t *testing.T) {
	p := &stubProber{alive: map[string]bool{"https://mine.example.com": true}}
	sc := &stubURLScanner{}
	dep := &stubDeployer{}
	o := NewOrchestrator(p, NewDetector(p), sc, dep)

	res := o.Scan(context.Background(), repo, "https://mine.example.com")
	assert.Equal(t, "https://mine.example.com", res.Target)
	assert.False(t, dep.called)
}

func TestOrchestratorDeadProvidedURLFallsToTier2(t *testing.T) {
	// provided URL dead, auto-detected project page alive, no container runtime
	p := &stubProber{alive: map[string]bool{"https://owner.github.io/repo": true}}
	sc := &stubURLScanner{}
	dep := &stubDeployer{ok: false}
	o := NewOrchestrator(p, NewDetector(p), sc, dep)

	res := o.Scan(context.Background(), repo, "https://dead.example.com")
	assert.Equal(t, "https://owner.github.io/repo", res.Target)
	assert.Equal(t, "Nuclei", res.Tool)
	assert.Empty(t, res.Note)
	assert.False(t, dep.called)
}

func TestOrchestratorTier3WhenNothingPublic(t *testing.T) {
	p := &stubProber{alive: map[string]bool{}}
	sc := &stubURLScanner{}
	dep := &stubDeployer{
		res: domain.ToolResult{Tool: "Nuclei", ScanType: domain.TypeDAST, Target: "http://localhost:5000"},
		ok:  true,
	}
	o := NewOrchestrator(p, NewDetector(p), sc, dep)

	res := o.Scan(context.Background(), repo, "")
	assert.True(t, dep.called)
	assert.Equal(t, "http://localhost:5000", res.Target)
}

func TestOrchestratorFallbackWhenAllTiersExhausted(t *testing.T) {
	p := &stubProber{alive: map[string]bool{}}
	sc := &stubURLScanner{}
	dep := &stubDeployer{ok: false}
	o := NewOrchestrator(p, NewDetector(p), sc, dep)

	res := o.Scan(context.Background(), repo, "")
	assert.Equal(t, "DAST scanning not possible", res.Note)
	assert.Empty(t, res.Findings)
	assert.Empty(t, res.Error)
	assert.NotEmpty(t, res.Instructions)
	assert.NotEmpty(t, res.SupportedDeployments)
	assert.NotEmpty(t, res.SupportedFrameworks)
	assert.Empty(t, sc.targets)
}
