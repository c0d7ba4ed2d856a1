package scans

import (
	"time"
)

// ID tipe untuk Scan
type ScanID string

// ScanType enum
type ScanType string

const (
	TypeSAST ScanType = "SAST"
	TypeSCA  ScanType = "SCA"
	TypeDAST ScanType = "DAST"
)

// Key is the lowercase form used as the map key in aggregate results.
func (t ScanType) Key() string {
	switch t {
	case TypeSAST:
		return "sast"
	case TypeSCA:
		return "sca"
	case TypeDAST:
		return "dast"
	}
	return string(t)
}

// Status enum
type Status string

const (
	StatusRunning Status = "running"
	StatusSuccess Status = "success"
	StatusFailed  Status = "failed"
)

// SeverityCounts value object
type SeverityCounts struct {
	Critical int `json:"critical"`
	High     int `json:"high"`
	Medium   int `json:"medium"`
	Low      int `json:"low"`
	Total    int `json:"total"`
}

// Finding is one normalized vulnerability record. The location fields differ
// per scan type: SAST fills File/Line, SCA fills Package/InstalledVer,
// DAST fills URL/TemplateID.
type Finding struct {
	Title          string   `json:"title"`
	Severity       Severity `json:"severity"`
	Description    string   `json:"description,omitempty"`
	File           string   `json:"file,omitempty"`
	Line           int      `json:"line,omitempty"`
	Code           string   `json:"code,omitempty"`
	Package        string   `json:"package,omitempty"`
	InstalledVer   string   `json:"installed_version,omitempty"`
	AffectedVers   string   `json:"affected_versions,omitempty"`
	URL            string   `json:"url,omitempty"`
	TemplateID     string   `json:"template_id,omitempty"`
	CWE            []string `json:"cwe,omitempty"`
	CVE            string   `json:"cve,omitempty"`
	Recommendation string   `json:"recommendation,omitempty"`
	References     []string `json:"references,omitempty"`
}

// ToolResult is the externally visible contract per tool invocation.
// A non-empty Error and findings are mutually exclusive; zero findings with
// no error is a clean scan. The DAST fallback additionally carries Note,
// Instructions and the supported-platform lists.
type ToolResult struct {
	Tool                 string            `json:"tool"`
	ScanType             ScanType          `json:"scan_type"`
	Target               string            `json:"target,omitempty"`
	Timestamp            time.Time         `json:"timestamp"`
	Findings             []Finding         `json:"vulnerabilities"`
	Summary              SeverityCounts    `json:"summary"`
	Error                string            `json:"error,omitempty"`
	Note                 string            `json:"note,omitempty"`
	Instructions         map[string]string `json:"instructions,omitempty"`
	SupportedDeployments []string          `json:"supported_deployments,omitempty"`
	SupportedFrameworks  []string          `json:"supported_frameworks,omitempty"`
	DurationMS           int64             `json:"duration_ms,omitempty"`
	ArtifactURL          string            `json:"artifact_url,omitempty"`

	// Raw is the unparsed tool output, kept only for artifact upload.
	Raw []byte `json:"-"`
}

// Summarize counts findings per canonical severity.
func Summarize(findings []Finding) SeverityCounts {
	var c SeverityCounts
	for _, f := range findings {
		switch f.Severity {
		case SeverityCritical:
			c.Critical++
		case SeverityHigh:
			c.High++
		case SeverityMedium:
			c.Medium++
		case SeverityLow:
			c.Low++
		}
		c.Total++
	}
	return c
}

// AggregatedResult is what one session returns to the caller. Scans holds
// only the requested types; an absent key means the type was not selected.
type AggregatedResult struct {
	Repository    string                 `json:"repository"`
	Branch        string                 `json:"branch"`
	ScanTimestamp time.Time              `json:"scan_timestamp"`
	Scans         map[string]*ToolResult `json:"scans"`
}

// Selection picks which scan types a session runs. DASTURL is the optional
// user-supplied live URL for the dynamic tier.
type Selection struct {
	SAST    bool   `json:"sast"`
	SCA     bool   `json:"sca"`
	DAST    bool   `json:"dast"`
	DASTURL string `json:"dast_url,omitempty"`
}

// RepositoryHandle is the materialized clone. Never mutated after the
// fetcher returns it.
type RepositoryHandle struct {
	Path          string
	URL           string
	Branch        string
	CloneDuration time.Duration
}

// Aggregate Root: Scan — one persisted row per session and scan type.
type Scan struct {
	ID          ScanID         `json:"id"`
	TenantID    string         `json:"tenant_id"`
	SessionID   string         `json:"session_id"`
	TriggeredAt time.Time      `json:"triggered_at"`
	Repository  string         `json:"repository"`
	Branch      string         `json:"branch"`
	Tool        string         `json:"tool"`
	ScanType    ScanType       `json:"scan_type"`
	Target      string         `json:"target,omitempty"`
	Status      Status         `json:"status"`
	Counts      SeverityCounts `json:"counts"`
	ArtifactURL string         `json:"artifact_url,omitempty"`
	DurationMS  int64          `json:"duration_ms"`
	Error       string         `json:"error,omitempty"`
}
