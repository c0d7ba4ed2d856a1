package dast

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domain "github.com/bryanwahyu/repoguard/internal/domain/scans"
)

func TestParseNucleiJSONL(t *testing.T) {
	raw := strings.Join([]string{
		`{"template-id":"tech-detect","matched-at":"http://example.com/","info":{"name":"Tech Detect","severity":"info","description":"stack fingerprint"}}`,
		``,
		`not json at all`,
		`{"template-id":"CVE-2021-44228","matched-at":"http://example.com/api","info":{"name":"Log4j RCE","severity":"critical","remediation":"Upgrade log4j","classification":{"cwe-id":["CWE-502"],"cve-id":["CVE-2021-44228"]}}}`,
	}, "\n")

	findings := parseNucleiJSONL("http://example.com", []byte(raw))
	require.Len(t, findings, 2)

	assert.Equal(t, domain.SeverityLow, findings[0].Severity)
	assert.Equal(t, "http://example.com/", findings[0].URL)
	assert.Equal(t, "Review and fix the vulnerability", findings[0].Recommendation)

	assert.Equal(t, domain.SeverityCritical, findings[1].Severity)
	assert.Equal(t, "Upgrade log4j", findings[1].Recommendation)
	assert.Equal(t, "CVE-2021-44228", findings[1].CVE)
	assert.Equal(t, []string{"CWE-502"}, findings[1].CWE)
}

func TestParseNucleiJSONLEmptyTarget(t *testing.T) {
	raw := `{"template-id":"x","info":{"name":"No matched-at","severity":"medium"}}`
	findings := parseNucleiJSONL("http://fallback.test", []byte(raw))
	require.Len(t, findings, 1)
	assert.Equal(t, "http://fallback.test", findings[0].URL)
}
