package dast

import (
	"context"
	"log"
	"time"

	domain "github.com/bryanwahyu/repoguard/internal/domain/scans"
)

// ContainerDeployer is tier 3: stand the application up locally and scan
// it. ok=false means the tier was unavailable (no runtime, unknown stack,
// failed build) — a normal outcome, never an error.
type ContainerDeployer interface {
	DeployAndScan(ctx context.Context, repo domain.RepositoryHandle) (domain.ToolResult, bool)
}

// Orchestrator is the tiered decision engine for dynamic scanning. Tiers in
// priority order: user-supplied URL, auto-detected deployment, local
// container deployment, guidance fallback. The first tier that yields a
// result short-circuits the rest; total exhaustion always produces the
// structured fallback.
type Orchestrator struct {
	Prober   LivenessProber
	Detector *Detector
	Scanner  URLScanner
	Deployer ContainerDeployer
}

func NewOrchestrator(prober LivenessProber, detector *Detector, scanner URLScanner, deployer ContainerDeployer) *Orchestrator {
	return &Orchestrator{Prober: prober, Detector: detector, Scanner: scanner, Deployer: deployer}
}

func (o *Orchestrator) Scan(ctx context.Context, repo domain.RepositoryHandle, providedURL string) domain.ToolResult {
	// Tier 1: user-supplied URL
	if providedURL != "" {
		if o.Prober.IsAlive(ctx, providedURL) {
			log.Printf("dast tier=1 target=%s", providedURL)
			return o.Scanner.ScanURL(ctx, providedURL)
		}
		log.Printf("dast tier=1 skipped: provided url not reachable url=%s", providedURL)
	}

	// Tier 2: auto-detected public deployment
	if o.Detector != nil {
		if c := o.Detector.Detect(ctx, repo.URL, repo.Branch); c != nil {
			log.Printf("dast tier=2 platform=%s target=%s", c.Platform, c.URL)
			return o.Scanner.ScanURL(ctx, c.URL)
		}
	}

	// Tier 3: build and run the application locally
	if o.Deployer != nil {
		if res, ok := o.Deployer.DeployAndScan(ctx, repo); ok {
			log.Printf("dast tier=3 target=%s", res.Target)
			return res
		}
	}

	// Tier 4: nothing reachable — explain what would make DAST possible
	log.Printf("dast tier=4 fallback repo=%s", repo.URL)
	return Fallback()
}

// Fallback is the guaranteed tier-4 result: zero findings, no error, and
// actionable guidance for the caller's UI.
func Fallback() domain.ToolResult {
	return domain.ToolResult{
		Tool:      "Smart DAST Scanner",
		ScanType:  domain.TypeDAST,
		Timestamp: time.Now(),
		Findings:  []domain.Finding{},
		Note:      "DAST scanning not possible",
		Instructions: map[string]string{
			"tier1": "Provide a live URL in the 'DAST URL' field for immediate scanning",
			"tier2": "Deploy to GitHub Pages, Vercel, or Netlify for automatic detection",
			"tier3": "Add a Dockerfile to enable local Docker-based scanning",
			"tier4": "DAST requires a running application - consider manual deployment",
		},
		SupportedDeployments: []string{
			"GitHub Pages (username.github.io/repo)",
			"Vercel (repo.vercel.app)",
			"Netlify (repo.netlify.app)",
			"Render (repo.onrender.com)",
			"Heroku (repo.herokuapp.com)",
		},
		SupportedFrameworks: []string{
			"Flask (Python)",
			"Django (Python)",
			"Node.js / Express",
			"React / Next.js",
			"Vue.js",
			"Static HTML",
			"PHP / Laravel",
		},
	}
}
