package dast

import (
	"context"
	"fmt"
	"log"
	"regexp"
)

// LivenessProber is what the detector and orchestrator need from a prober.
type LivenessProber interface {
	IsAlive(ctx context.Context, url string) bool
}

// Candidate is one derived deployment URL plus the hosting pattern it came
// from.
type Candidate struct {
	URL      string
	Platform string
	Alive    bool
}

var githubRepoRe = regexp.MustCompile(`github\.com/([^/]+)/([^/]+?)(?:\.git)?/?$`)

// Detector derives candidate public-hosting URLs from a repository identity
// and probes them in a fixed priority order. Best-effort heuristic: no
// detected deployment is a normal outcome.
type Detector struct {
	Prober LivenessProber
}

func NewDetector(prober LivenessProber) *Detector {
	return &Detector{Prober: prober}
}

// Detect returns the first live candidate, or nil.
func (d *Detector) Detect(ctx context.Context, repoURL, branch string) *Candidate {
	m := githubRepoRe.FindStringSubmatch(repoURL)
	if m == nil {
		return nil
	}
	owner, repo := m[1], m[2]

	for _, c := range candidates(owner, repo) {
		if d.Prober.IsAlive(ctx, c.URL) {
			c.Alive = true
			log.Printf("deployment detected platform=%s url=%s", c.Platform, c.URL)
			return &c
		}
	}
	return nil
}

// candidates lists the supported hosting patterns, project pages before
// user pages before the PaaS providers. The order is a fixed heuristic.
func candidates(owner, repo string) []Candidate {
	return []Candidate{
		{URL: fmt.Sprintf("https://%s.github.io/%s", owner, repo), Platform: "github-pages"},
		{URL: fmt.Sprintf("https://%s.github.io", owner), Platform: "github-pages"},
		{URL: fmt.Sprintf("https://%s.vercel.app", repo), Platform: "vercel"},
		{URL: fmt.Sprintf("https://%s.netlify.app", repo), Platform: "netlify"},
		{URL: fmt.Sprintf("https://%s.onrender.com", repo), Platform: "render"},
		{URL: fmt.Sprintf("https://%s.herokuapp.com", repo), Platform: "heroku"},
	}
}
