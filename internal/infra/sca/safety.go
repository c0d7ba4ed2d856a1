package sca

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	domain "github.com/bryanwahyu/repoguard/internal/domain/scans"
	"github.com/bryanwahyu/repoguard/internal/infra/toolrunner"
)

const (
	toolName       = "Safety"
	defaultTimeout = 5 * time.Minute
)

// manifestLocations is the ordered search list for dependency manifests,
// most specific first.
var manifestLocations = []string{
	"requirements.txt",
	filepath.Join("requirements", "base.txt"),
	filepath.Join("requirements", "prod.txt"),
}

type commandRunner interface {
	Run(ctx context.Context, inv toolrunner.Invocation) (toolrunner.Result, error)
}

// Scanner checks declared dependencies against known-vulnerability data via
// the safety CLI.
type Scanner struct {
	Runner  commandRunner
	Timeout time.Duration
}

func NewScanner(runner *toolrunner.Runner) *Scanner {
	return &Scanner{Runner: runner, Timeout: defaultTimeout}
}

type safetyFinding struct {
	Package        string `json:"package"`
	Advisory       string `json:"advisory"`
	InstalledVer   string `json:"installed_version"`
	AffectedVers   string `json:"affected_versions"`
	VulnerableSpec string `json:"vulnerable_spec"`
	CVE            string `json:"cve"`
	FixedVersion   string `json:"fixed_version"`
}

// Scan locates a manifest and runs safety against it. A repository without
// a manifest yields a zero-finding result with a note — that is an expected
// outcome, not a tool failure.
func (s *Scanner) Scan(ctx context.Context, repo domain.RepositoryHandle) domain.ToolResult {
	result := domain.ToolResult{
		Tool:      toolName,
		ScanType:  domain.TypeSCA,
		Timestamp: time.Now(),
		Findings:  []domain.Finding{},
	}

	manifest := findManifest(repo.Path)
	if manifest == "" {
		result.Note = "No requirements.txt found"
		return result
	}

	res, err := s.Runner.Run(ctx, toolrunner.Invocation{
		Tool:    "safety",
		Args:    []string{"check", "--file", manifest, "--json", "--output", "json"},
		Timeout: s.Timeout,
	})
	if err != nil {
		if errors.Is(err, toolrunner.ErrToolNotFound) {
			result.Error = "safety executable not found, please ensure it is installed"
		} else {
			result.Error = err.Error()
		}
		return result
	}
	result.DurationMS = res.Duration.Milliseconds()

	if res.TimedOut {
		result.Error = fmt.Sprintf("scan timeout (>%s)", s.Timeout)
		return result
	}

	result.Raw = res.Stdout

	// safety emits plain text instead of JSON when nothing is vulnerable
	var findings []safetyFinding
	if err := json.Unmarshal(res.Stdout, &findings); err != nil {
		return result
	}

	for _, f := range findings {
		rec := "Update to a non-vulnerable version"
		if f.FixedVersion != "" {
			rec = "Upgrade to version " + f.FixedVersion
		}
		result.Findings = append(result.Findings, domain.Finding{
			Title: "Vulnerable dependency: " + f.Package,
			// the advisory feed carries no severity rating
			Severity:       domain.SeverityHigh,
			Description:    f.Advisory,
			Package:        f.Package,
			InstalledVer:   f.InstalledVer,
			AffectedVers:   f.AffectedVers,
			CVE:            f.CVE,
			Recommendation: rec,
		})
	}
	result.Summary = domain.Summarize(result.Findings)
	return result
}

// findManifest returns the first manifest that exists, or "".
func findManifest(root string) string {
	for _, rel := range manifestLocations {
		p := filepath.Join(root, rel)
		if info, err := os.Stat(p); err == nil && !info.IsDir() {
			return p
		}
	}
	return ""
}
