package dast

import (
	"context"
	"net/http"
	"time"
)

const probeTimeout = 10 * time.Second

// Prober answers "does this URL respond with a non-error status" within a
// bound. Any failure — DNS, TLS, refused connection, timeout — means not
// alive; nothing propagates.
type Prober struct {
	Client *http.Client
}

func NewProber() *Prober {
	return &Prober{Client: &http.Client{Timeout: probeTimeout}}
}

// IsAlive probes with a GET, following redirects. Status < 400 counts as
// alive.
func (p *Prober) IsAlive(ctx context.Context, url string) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return false
	}
	resp, err := p.Client.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode < 400
}
