package dast

import (
	"context"
	"fmt"
	"strings"
	"time"

	domain "github.com/bryanwahyu/repoguard/internal/domain/scans"
	"github.com/bryanwahyu/repoguard/internal/infra/toolrunner"
)

const nucleiImage = "projectdiscovery/nuclei:latest"

// DockerNucleiScanner runs nuclei from its official image, for hosts that
// have docker but no nuclei binary on PATH.
type DockerNucleiScanner struct {
	Runner     commandRunner
	Timeout    time.Duration
	Severities []string
}

func NewDockerNucleiScanner(runner *toolrunner.Runner) *DockerNucleiScanner {
	return &DockerNucleiScanner{
		Runner:     runner,
		Timeout:    nucleiTimeout,
		Severities: []string{"critical", "high", "medium"},
	}
}

func (n *DockerNucleiScanner) ScanURL(ctx context.Context, target string) domain.ToolResult {
	result := domain.ToolResult{
		Tool:      nucleiTool,
		ScanType:  domain.TypeDAST,
		Target:    target,
		Timestamp: time.Now(),
		Findings:  []domain.Finding{},
	}

	res, err := n.Runner.Run(ctx, toolrunner.Invocation{
		Tool: "docker",
		Args: []string{
			"run", "--rm", "--network", "host",
			nucleiImage,
			"-u", target,
			"-jsonl",
			"-silent",
			"-severity", strings.Join(n.Severities, ","),
			"-rl", "50", "-c", "50",
		},
		Timeout: n.Timeout,
	})
	if err != nil {
		result.Error = err.Error()
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
