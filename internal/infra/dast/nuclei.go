package dast

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	domain "github.com/bryanwahyu/repoguard/internal/domain/scans"
	"github.com/bryanwahyu/repoguard/internal/infra/toolrunner"
)

const (
	nucleiTool     = "Nuclei"
	nucleiTimeout  = 5 * time.Minute
	templateUpdate = time.Minute
)

// URLScanner probes a live target and returns normalized findings. The
// orchestrator and the container deployment manager both consume this.
type URLScanner interface {
	ScanURL(ctx context.Context, target string) domain.ToolResult
}

type commandRunner interface {
	Run(ctx context.Context, inv toolrunner.Invocation) (toolrunner.Result, error)
}

// NucleiScanner drives the nuclei CLI against a reachable URL.
type NucleiScanner struct {
	Runner     commandRunner
	Timeout    time.Duration
	Severities []string
}

func NewNucleiScanner(runner *toolrunner.Runner) *NucleiScanner {
	return &NucleiScanner{
		Runner:     runner,
		Timeout:    nucleiTimeout,
		Severities: []string{"critical", "high", "medium"},
	}
}

// nucleiFinding mirrors one JSONL line of nuclei output.
type nucleiFinding struct {
	TemplateID string `json:"template-id"`
	MatchedAt  string `json:"matched-at"`
	Info       struct {
		Name           string   `json:"name"`
		Severity       string   `json:"severity"`
		Description    string   `json:"description"`
		Remediation    string   `json:"remediation"`
		Reference      []string `json:"reference"`
		Classification struct {
			CWEID []string `json:"cwe-id"`
			CVEID []string `json:"cve-id"`
		} `json:"classification"`
	} `json:"info"`
}

// ScanURL runs nuclei with JSONL output. Template refresh beforehand is
// best-effort. Per the adapter contract, failures land in the result's
// Error field.
func (n *NucleiScanner) ScanURL(ctx context.Context, target string) domain.ToolResult {
	result := domain.ToolResult{
		Tool:      nucleiTool,
		ScanType:  domain.TypeDAST,
		Target:    target,
		Timestamp: time.Now(),
		Findings:  []domain.Finding{},
	}

	// stale templates miss current CVEs, but an update failure is no
	// reason to skip the scan
	_, _ = n.Runner.Run(ctx, toolrunner.Invocation{
		Tool:    "nuclei",
		Args:    []string{"-update-templates"},
		Timeout: templateUpdate,
	})

	res, err := n.Runner.Run(ctx, toolrunner.Invocation{
		Tool: "nuclei",
		Args: []string{
			"-u", target,
			"-jsonl",
			"-silent",
			"-severity", strings.Join(n.Severities, ","),
		},
		Timeout: n.Timeout,
	})
	if err != nil {
		if errors.Is(err, toolrunner.ErrToolNotFound) {
			result.Error = "nuclei executable not found, please ensure it is installed"
		} else {
			result.Error = err.Error()
		}
		return result
	}
	result.DurationMS = res.Duration.Milliseconds()

	if res.TimedOut {
		result.Error = fmt.Sprintf("scan timeout (>%s)", n.Timeout)
		return result
	}

	result.Raw = res.Stdout
	result.Findings = parseNucleiJSONL(target, res.Stdout)
	result.Summary = domain.Summarize(result.Findings)
	return result
}

// parseNucleiJSONL decodes one finding per line; unparseable lines are
// skipped, not fatal.
func parseNucleiJSONL(target string, raw []byte) []domain.Finding {
	findings := []domain.Finding{}
	sc := bufio.NewScanner(bytes.NewReader(raw))
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		var f nucleiFinding
		if err := json.Unmarshal([]byte(line), &f); err != nil {
			log.Printf("nuclei line parse skipped: %v", err)
			continue
		}
		rec := f.Info.Remediation
		if rec == "" {
			rec = "Review and fix the vulnerability"
		}
		cve := ""
		if len(f.Info.Classification.CVEID) > 0 {
			cve = f.Info.Classification.CVEID[0]
		}
		finding := domain.Finding{
			Title:          f.Info.Name,
			Severity:       domain.NormalizeSeverity(f.Info.Severity),
			Description:    f.Info.Description,
			URL:            f.MatchedAt,
			TemplateID:     f.TemplateID,
			CWE:            f.Info.Classification.CWEID,
			CVE:            cve,
			Recommendation: rec,
			References:     f.Info.Reference,
		}
		if finding.URL == "" {
			finding.URL = target
		}
		findings = append(findings, finding)
	}
	return findings
}
