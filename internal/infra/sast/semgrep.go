package sast

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	domain "github.com/bryanwahyu/repoguard/internal/domain/scans"
	"github.com/bryanwahyu/repoguard/internal/infra/toolrunner"
)

const (
	toolName       = "Semgrep"
	ruleset        = "p/security-audit"
	defaultTimeout = 10 * time.Minute
)

// commandRunner is the slice of toolrunner we depend on. Seam for tests.
type commandRunner interface {
	Run(ctx context.Context, inv toolrunner.Invocation) (toolrunner.Result, error)
}

// Scanner runs semgrep with a general security ruleset against a clone and
// normalizes its JSON findings.
type Scanner struct {
	Runner  commandRunner
	Timeout time.Duration
}

func NewScanner(runner *toolrunner.Runner) *Scanner {
	return &Scanner{Runner: runner, Timeout: defaultTimeout}
}

// semgrepOutput mirrors the slice of semgrep JSON we consume.
type semgrepOutput struct {
	Results []struct {
		CheckID string `json:"check_id"`
		Path    string `json:"path"`
		Start   struct {
			Line int `json:"line"`
		} `json:"start"`
		Extra struct {
			Severity string `json:"severity"`
			Message  string `json:"message"`
			Lines    string `json:"lines"`
			Metadata struct {
				CWE        any      `json:"cwe"`
				References []string `json:"references"`
			} `json:"metadata"`
		} `json:"extra"`
	} `json:"results"`
}

// Scan never returns an error; tool failures come back inside the result.
// Semgrep exit codes: 0 clean, 1 findings present, anything above is an
// execution error.
func (s *Scanner) Scan(ctx context.Context, repo domain.RepositoryHandle) domain.ToolResult {
	result := domain.ToolResult{
		Tool:      toolName,
		ScanType:  domain.TypeSAST,
		Timestamp: time.Now(),
		Findings:  []domain.Finding{},
	}

	res, err := s.Runner.Run(ctx, toolrunner.Invocation{
		Tool:    "semgrep",
		Args:    []string{"--config=" + ruleset, "--json", repo.Path},
		Timeout: s.Timeout,
	})
	if err != nil {
		if errors.Is(err, toolrunner.ErrToolNotFound) {
			result.Error = "semgrep executable not found, please ensure it is installed"
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
	if res.ExitCode > 1 {
		result.Error = fmt.Sprintf("semgrep exited with code %d: %s", res.ExitCode, truncate(string(res.Stderr), 500))
		return result
	}

	result.Raw = res.Stdout
	if len(res.Stdout) == 0 {
		// no output with a clean exit means no findings
		return result
	}

	var out semgrepOutput
	if err := json.Unmarshal(res.Stdout, &out); err != nil {
		log.Printf("semgrep output parse failed: %v", err)
		result.Error = fmt.Sprintf("failed to parse semgrep output: %v", err)
		return result
	}

	for _, r := range out.Results {
		result.Findings = append(result.Findings, domain.Finding{
			Title:          r.CheckID,
			Severity:       domain.NormalizeSeverity(r.Extra.Severity),
			Description:    r.Extra.Message,
			File:           r.Path,
			Line:           r.Start.Line,
			Code:           r.Extra.Lines,
			CWE:            toStringSlice(r.Extra.Metadata.CWE),
			References:     r.Extra.Metadata.References,
			Recommendation: "Review and fix the vulnerability",
		})
	}
	result.Summary = domain.Summarize(result.Findings)
	return result
}

// toStringSlice coerces metadata that semgrep emits as either a string or a
// list of strings.
func toStringSlice(v any) []string {
	switch t := v.(type) {
	case string:
		if t == "" {
			return nil
		}
		return []string{t}
	case []any:
		var out []string
		for _, e := range t {
			if s, ok := e.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
