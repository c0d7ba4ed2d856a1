package prompt

import (
	"encoding/json"
	"regexp"
	"sort"
	"strings"
)

// AnalyzeArtifactContent builds an analysis of raw scanner output without
// calling an AI provider. It reads the normalized result JSON when the
// artifact parses, then sweeps the raw text for leaked credentials that
// scanners quote in their evidence snippets. Returns a JSON string matching
// the analyst schema.
func AnalyzeArtifactContent(artifactURL string, content string) string {
	type Finding struct {
		Title          string `json:"title"`
		Severity       string `json:"severity"`
		Summary        string `json:"summary"`
		Recommendation string `json:"recommendation"`
	}

	type Counts struct {
		Critical int `json:"critical"`
		High     int `json:"high"`
		Medium   int `json:"medium"`
		Low      int `json:"low"`
		Total    int `json:"total"`
	}

	type Output struct {
		ArtifactURL string    `json:"artifact_url"`
		Counts      Counts    `json:"counts"`
		Findings    []Finding `json:"findings"`
		Advice      string    `json:"advice"`
	}

	out := Output{ArtifactURL: artifactURL}
	findings := make([]Finding, 0, 16)

	addFinding := func(sev, title, summary, rec string) {
		sev = strings.ToLower(sev)
		findings = append(findings, Finding{Title: title, Severity: sev, Summary: summary, Recommendation: rec})
		switch sev {
		case "critical":
			out.Counts.Critical++
		case "high":
			out.Counts.High++
		case "medium":
			out.Counts.Medium++
		case "low":
			out.Counts.Low++
		}
	}

	trim := func(s string, n int) string {
		if len(s) <= n {
			return s
		}
		return s[:n] + "..."
	}

	// First pass: the artifact is normally the normalized tool result JSON.
	var result struct {
		Tool            string `json:"tool"`
		Vulnerabilities []struct {
			Title          string `json:"title"`
			Severity       string `json:"severity"`
			Description    string `json:"description"`
			Recommendation string `json:"recommendation"`
			Package        string `json:"package"`
			File           string `json:"file"`
		} `json:"vulnerabilities"`
	}
	if err := json.Unmarshal([]byte(content), &result); err == nil && len(result.Vulnerabilities) > 0 {
		vulns := result.Vulnerabilities
		rank := map[string]int{"critical": 0, "high": 1, "medium": 2, "low": 3}
		sort.SliceStable(vulns, func(i, j int) bool {
			ri, ok := rank[strings.ToLower(vulns[i].Severity)]
			if !ok {
				ri = 4
			}
			rj, ok := rank[strings.ToLower(vulns[j].Severity)]
			if !ok {
				rj = 4
			}
			return ri < rj
		})
		seen := map[string]bool{}
		for _, v := range vulns {
			key := v.Title + "|" + v.Package + "|" + v.File
			if seen[key] {
				continue
			}
			seen[key] = true
			summary := v.Description
			if summary == "" {
				summary = "Reported by " + result.Tool + "."
			}
			rec := v.Recommendation
			if rec == "" {
				rec = "Review the finding and apply the vendor-recommended fix."
			}
			addFinding(v.Severity, v.Title, trim(summary, 240), rec)
		}
	}

	// Second pass: scanners quote offending source lines; those snippets can
	// carry live credentials that deserve their own critical findings.
	detectors := []struct {
		re             *regexp.Regexp
		title          string
		recommendation string
	}{
		{regexp.MustCompile(`-----BEGIN (?:RSA |EC |DSA |OPENSSH )?PRIVATE KEY-----`), "Private key material in scanner evidence", "Remove private keys from the repository; use a secure secrets manager and rotate affected keys immediately."},
		{regexp.MustCompile(`AKIA[0-9A-Z]{16}`), "AWS access key exposed", "Revoke the access key, create a new one with least privilege, and configure credentials via IAM roles/secret manager."},
		{regexp.MustCompile(`gh[pousr]_[A-Za-z0-9_]{20,}`), "GitHub token exposed", "Revoke the token, create a new token with minimal scopes, and store in CI/CD secrets."},
		{regexp.MustCompile(`github_pat_[A-Za-z0-9_]{20,}`), "GitHub PAT exposed", "Revoke the PAT and rotate; use repository/org secrets to inject at runtime."},
		{regexp.MustCompile(`AIza[0-9A-Za-z\-_]{35}`), "Google API key exposed", "Restrict the API key by IP/referrer/service, rotate it, and move to secret management."},
		{regexp.MustCompile(`xox[baprs]-[A-Za-z0-9\-]{10,}`), "Slack token exposed", "Revoke the token in Slack admin, rotate, and scope minimally."},
		{regexp.MustCompile(`sk_(?:live|test)_[0-9A-Za-z]{10,}`), "Stripe secret key exposed", "Rotate the key in Stripe dashboard and move to server-side secret storage."},
		{regexp.MustCompile(`[A-Za-z0-9-_]{8,}\.eyJ[A-Za-z0-9-_]{5,}\.[A-Za-z0-9-_]{10,}`), "JWT token present", "Avoid committing tokens; rotate, invalidate sessions, and prefer short-lived tokens from an identity provider."},
		{regexp.MustCompile(`://[^\s/:@]+:[^\s/@]+@`), "Credentials embedded in URL", "Strip credentials from URLs; pass via configuration or secret store."},
	}

	seenTitles := map[string]bool{}
	for _, d := range detectors {
		if match := d.re.FindString(content); match != "" && !seenTitles[d.title] {
			addFinding("critical", d.title, "Example: "+trim(match, 64), d.recommendation)
			seenTitles[d.title] = true
		}
	}

	// Nothing detected: conservative baseline guidance
	if len(findings) == 0 {
		addFinding("low", "Enable secret scanning", "No explicit issues detected in this artifact, but false negatives are possible.", "Enable pre-commit hooks and CI/CD secret scanners (e.g., gitleaks, trufflehog).")
		findings = append(findings, Finding{
			Title:          "Use least privilege",
			Severity:       "info",
			Summary:        "Review access scopes for any tokens used by this project.",
			Recommendation: "Scope tokens narrowly and rotate regularly with audit logs enabled.",
		})
	}

	if len(findings) > 20 {
		findings = findings[:20]
	}

	out.Findings = findings
	// counts.total equals the sum of counted severities (info not counted)
	out.Counts.Total = out.Counts.Critical + out.Counts.High + out.Counts.Medium + out.Counts.Low

	if out.Counts.Critical > 0 {
		out.Advice = "Immediate action required: rotate exposed credentials, fix critical findings, and remove secrets from the repository. Add automated secret scanning to CI/CD."
	} else if out.Counts.High+out.Counts.Medium > 0 {
		out.Advice = "Address the high and medium findings first, enforce TLS everywhere, and review credentials handling."
	} else {
		out.Advice = "Maintain good hygiene: enable secret scanning, keep dependencies patched, and periodically rotate tokens."
	}

	b, err := json.Marshal(out)
	if err != nil {
		fb := Output{
			ArtifactURL: artifactURL,
			Advice:      "Analysis error; ensure the artifact is accessible and try again.",
		}
		data, _ := json.Marshal(fb)
		return string(data)
	}
	return string(b)
}
