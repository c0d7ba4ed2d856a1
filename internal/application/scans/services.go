package scans

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/bryanwahyu/repoguard/internal/domain/scanerrors"
	domain "github.com/bryanwahyu/repoguard/internal/domain/scans"
)

// Service implements the scan-session use case: one call owns one
// workspace, one clone and whatever container the dynamic tier spawns, and
// releases all of it before returning. Safe for concurrent sessions; the
// scanners inside a session run sequentially to bound resource usage.
type Service struct {
	Workspace domain.Workspace
	Fetcher   domain.Fetcher
	SAST      domain.RepoScanner
	SCA       domain.RepoScanner
	DAST      domain.DynamicScanner

	// optional: scan history, raw artifact upload and failure log
	Repo      domain.Repository
	Artifacts domain.ArtifactStore
	Errors    scanerrors.Repository

	Clock Clock
}

// Clock abstraction supaya gampang ditest
type Clock interface {
	Now() time.Time
}

type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }

// Command untuk trigger scan session
type ScanRepositoryCommand struct {
	TenantID  string
	RepoURL   string
	Branch    string
	Token     string
	Selection domain.Selection
	Progress  chan<- string
}

// RunUntilDone executes the session detached from the request context, for
// callers that queue the scan in a goroutine and reply immediately.
func (s *Service) RunUntilDone(cmd ScanRepositoryCommand) (*domain.AggregatedResult, error) {
	return s.Run(context.Background(), cmd)
}

// Run executes one scan session. Only repository acquisition can fail the
// session; every scanner failure is folded into that type's result so the
// caller always receives a complete aggregate. Workspace cleanup runs on
// every path, cancellation included.
func (s *Service) Run(ctx context.Context, cmd ScanRepositoryCommand) (*domain.AggregatedResult, error) {
	sessionID := uuid.NewString()

	ws, err := s.Workspace.Create()
	if err != nil {
		return nil, fmt.Errorf("create workspace: %w", err)
	}
	defer s.Workspace.Destroy(ws)

	handle, err := s.Fetcher.Fetch(ctx, ws, domain.FetchRequest{
		URL:      cmd.RepoURL,
		Branch:   cmd.Branch,
		Token:    cmd.Token,
		Progress: cmd.Progress,
	})
	if err != nil {
		s.logFailure(ctx, cmd.TenantID, sessionID, "git", "clone", err)
		return nil, err
	}
	log.Printf("repository cloned session=%s repo=%s took=%s", sessionID, cmd.RepoURL, handle.CloneDuration)

	result := &domain.AggregatedResult{
		Repository:    cmd.RepoURL,
		Branch:        cmd.Branch,
		ScanTimestamp: s.Clock.Now(),
		Scans:         map[string]*domain.ToolResult{},
	}

	if cmd.Selection.SAST {
		r := s.runIsolated(ctx, domain.TypeSAST, "Semgrep", func(ctx context.Context) domain.ToolResult {
			return s.SAST.Scan(ctx, handle)
		})
		s.record(ctx, cmd.TenantID, sessionID, cmd, &r)
		result.Scans[domain.TypeSAST.Key()] = &r
	}

	if cmd.Selection.SCA {
		r := s.runIsolated(ctx, domain.TypeSCA, "Safety", func(ctx context.Context) domain.ToolResult {
			return s.SCA.Scan(ctx, handle)
		})
		s.record(ctx, cmd.TenantID, sessionID, cmd, &r)
		result.Scans[domain.TypeSCA.Key()] = &r
	}

	if cmd.Selection.DAST {
		r := s.runIsolated(ctx, domain.TypeDAST, "Smart DAST Scanner", func(ctx context.Context) domain.ToolResult {
			return s.DAST.Scan(ctx, handle, cmd.Selection.DASTURL)
		})
		s.record(ctx, cmd.TenantID, sessionID, cmd, &r)
		result.Scans[domain.TypeDAST.Key()] = &r
	}

	return result, nil
}

// runIsolated shields the session from a scanner crash: a panic becomes an
// error-annotated empty result for that type only.
func (s *Service) runIsolated(ctx context.Context, t domain.ScanType, tool string, scan func(context.Context) domain.ToolResult) (result domain.ToolResult) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("scanner panic type=%s err=%v", t, r)
			result = domain.ToolResult{
				Tool:      tool,
				ScanType:  t,
				Timestamp: s.Clock.Now(),
				Findings:  []domain.Finding{},
				Error:     fmt.Sprintf("scanner crashed: %v", r),
			}
		}
	}()
	return scan(ctx)
}

// record uploads the raw tool output and persists the scan row. Both are
// best-effort: history must never mask a result that was produced.
func (s *Service) record(ctx context.Context, tenant, sessionID string, cmd ScanRepositoryCommand, r *domain.ToolResult) {
	if s.Artifacts != nil && len(r.Raw) > 0 {
		key := fmt.Sprintf("%s/%s/%s.json", tenant, sessionID, r.ScanType.Key())
		url, err := s.Artifacts.Upload(ctx, key, r.Raw, "application/json")
		if err != nil {
			log.Printf("artifact upload failed key=%s err=%v", key, err)
		} else {
			r.ArtifactURL = url
		}
	}

	if s.Repo == nil {
		return
	}
	status := domain.StatusSuccess
	if r.Error != "" {
		status = domain.StatusFailed
	}
	row := &domain.Scan{
		ID:          domain.ScanID(fmt.Sprintf("%s-%s", sessionID, r.ScanType.Key())),
		TenantID:    tenant,
		SessionID:   sessionID,
		TriggeredAt: r.Timestamp,
		Repository:  cmd.RepoURL,
		Branch:      cmd.Branch,
		Tool:        r.Tool,
		ScanType:    r.ScanType,
		Target:      r.Target,
		Status:      status,
		Counts:      r.Summary,
		ArtifactURL: r.ArtifactURL,
		DurationMS:  r.DurationMS,
		Error:       r.Error,
	}
	if err := s.Repo.Save(ctx, row); err != nil {
		log.Printf("scan history save failed id=%s err=%v", row.ID, err)
	}
	if status == domain.StatusFailed {
		s.logFailure(ctx, tenant, sessionID, r.Tool, "scan", fmt.Errorf("%s", r.Error))
	}
}

// logFailure records a session failure for later inspection. Best-effort.
func (s *Service) logFailure(ctx context.Context, tenant, sessionID, tool, phase string, cause error) {
	if s.Errors == nil || cause == nil {
		return
	}
	e := &scanerrors.ScanError{
		TenantID:  tenant,
		SessionID: sessionID,
		Tool:      tool,
		Phase:     phase,
		Message:   cause.Error(),
		CreatedAt: s.Clock.Now(),
	}
	var ce *domain.CloneError
	if errors.As(cause, &ce) {
		details, _ := json.Marshal(map[string]any{
			"reason":   string(ce.Reason),
			"attempts": ce.Attempts,
		})
		e.DetailsJSON = string(details)
	}
	if err := s.Errors.Save(ctx, e); err != nil {
		log.Printf("failure log save failed session=%s err=%v", sessionID, err)
	}
}

// ListErrors returns the failure log for one session.
func (s *Service) ListErrors(ctx context.Context, tenant, sessionID string, limit int) ([]*scanerrors.ScanError, error) {
	if s.Errors == nil {
		return nil, nil
	}
	return s.Errors.ListBySession(ctx, tenant, sessionID, limit)
}

// Latest ambil N scan terakhir
func (s *Service) Latest(ctx context.Context, tenant string, limit int) ([]*domain.Scan, error) {
	return s.Repo.Latest(ctx, tenant, limit)
}

// Get ambil 1 scan by id
func (s *Service) Get(ctx context.Context, tenant string, id domain.ScanID) (*domain.Scan, error) {
	return s.Repo.Get(ctx, tenant, id)
}

// Summary rekap hasil scan N hari terakhir
func (s *Service) Summary(ctx context.Context, tenant string, sinceDays int) (map[string]any, error) {
	total, critical, high, medium, err := s.Repo.Summary(ctx, tenant, sinceDays)
	if err != nil {
		return nil, err
	}
	return map[string]any{
		"total_scans": total,
		"critical":    critical,
		"high":        high,
		"medium":      medium,
	}, nil
}
