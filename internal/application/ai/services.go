package ai

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/bryanwahyu/repoguard/internal/domain/ai"
	"github.com/bryanwahyu/repoguard/internal/domain/analyst"
	"github.com/bryanwahyu/repoguard/internal/infra/ai/prompt"
)

const maxArtifactBytes = 2 << 20

// Service analyzes stored scan artifacts. When no AI client is configured it
// falls back to the local heuristic analyzer over the fetched artifact.
type Service struct {
	client   ai.Client
	analyses analyst.Repository
	httpc    *http.Client
}

func NewService(client ai.Client, analyses analyst.Repository) *Service {
	return &Service{
		client:   client,
		analyses: analyses,
		httpc:    &http.Client{Timeout: 30 * time.Second},
	}
}

// AnalyzeAndStore runs the analysis for one scan's artifact and persists the
// result when a repository is configured.
func (s *Service) AnalyzeAndStore(ctx context.Context, tenant, scanID, artifactURL string) (*analyst.Analysis, error) {
	var result string
	var err error
	if s.client != nil {
		result, err = s.client.Analyze(ctx, artifactURL)
		if err != nil {
			return nil, err
		}
	} else {
		content, ferr := s.fetchArtifact(ctx, artifactURL)
		if ferr != nil {
			return nil, fmt.Errorf("fetch artifact: %w", ferr)
		}
		result = prompt.AnalyzeArtifactContent(artifactURL, content)
	}

	a := &analyst.Analysis{
		ID:          analyst.AnalysisID(uuid.NewString()),
		TenantID:    tenant,
		ScanID:      scanID,
		ArtifactURL: artifactURL,
		Result:      result,
		CreatedAt:   time.Now(),
	}
	if s.analyses != nil {
		if err := s.analyses.Save(ctx, a); err != nil {
			return nil, fmt.Errorf("save analysis: %w", err)
		}
	}
	return a, nil
}

// ListAnalyses returns stored analyses for a tenant, newest first.
func (s *Service) ListAnalyses(ctx context.Context, tenant string, page, pageSize int) ([]*analyst.Analysis, error) {
	if s.analyses == nil {
		return nil, nil
	}
	return s.analyses.Paginate(ctx, tenant, page, pageSize)
}

// LatestByScan returns the most recent analysis for one scan.
func (s *Service) LatestByScan(ctx context.Context, tenant, scanID string) (*analyst.Analysis, error) {
	if s.analyses == nil {
		return nil, nil
	}
	return s.analyses.LatestByScan(ctx, tenant, scanID)
}

func (s *Service) fetchArtifact(ctx context.Context, url string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", err
	}
	resp, err := s.httpc.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	b, err := io.ReadAll(io.LimitReader(resp.Body, maxArtifactBytes))
	if err != nil {
		return "", err
	}
	return string(b), nil
}
