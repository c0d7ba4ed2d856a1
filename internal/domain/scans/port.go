package scans

import "context"

// Repository port (interface untuk persistence)
type Repository interface {
	Save(ctx context.Context, s *Scan) error
	Get(ctx context.Context, tenant string, id ScanID) (*Scan, error)
	Latest(ctx context.Context, tenant string, limit int) ([]*Scan, error)
	Summary(ctx context.Context, tenant string, sinceDays int) (int, int, int, int, error)
}

// ArtifactStore port (interface for raw tool output storage)
type ArtifactStore interface {
	Upload(ctx context.Context, key string, data []byte, contentType string) (string, error)
}

// Workspace port: one isolated temp directory per session. Destroy is
// best-effort and idempotent; it must never fail the scan.
type Workspace interface {
	Create() (string, error)
	Destroy(path string)
}

// FetchRequest describes one clone. Progress is optional; the fetcher sends
// best-effort status lines and must never block on it.
type FetchRequest struct {
	URL      string
	Branch   string
	Token    string
	Progress chan<- string
}

// Fetcher port: materialize a shallow clone under dir. Failures come back
// as *CloneError after retries exhaust.
type Fetcher interface {
	Fetch(ctx context.Context, dir string, req FetchRequest) (RepositoryHandle, error)
}

// RepoScanner port: one static or dependency tool run against a clone.
// Implementations never return an error; tool failures are folded into the
// result's Error field so one scanner cannot block the others.
type RepoScanner interface {
	Scan(ctx context.Context, repo RepositoryHandle) ToolResult
}

// DynamicScanner port: the tiered DAST engine. providedURL is the optional
// user-supplied target for tier 1. Always returns a structurally complete
// result; total tier exhaustion yields the guidance fallback.
type DynamicScanner interface {
	Scan(ctx context.Context, repo RepositoryHandle, providedURL string) ToolResult
}
