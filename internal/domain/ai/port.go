package ai

import "context"

// Client analyzes the raw scanner artifact at the given URL and returns a
// JSON report string.
type Client interface {
	Analyze(ctx context.Context, artifactURL string) (string, error)
}
