package scans

import "strings"

// Severity is one of the four canonical levels. Anything a tool reports is
// folded into these; unknown vocabulary defaults to MEDIUM.
type Severity string

const (
	SeverityCritical Severity = "CRITICAL"
	SeverityHigh     Severity = "HIGH"
	SeverityMedium   Severity = "MEDIUM"
	SeverityLow      Severity = "LOW"
)

// NormalizeSeverity maps tool-specific severity strings (semgrep
// ERROR/WARNING/INFO, nuclei critical..info, advisory moderate/negligible,
// any casing) onto the canonical four levels.
func NormalizeSeverity(raw string) Severity {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "critical":
		return SeverityCritical
	case "high", "error":
		return SeverityHigh
	case "medium", "moderate", "warning":
		return SeverityMedium
	case "low", "negligible", "info", "informational", "note":
		return SeverityLow
	default:
		return SeverityMedium
	}
}
