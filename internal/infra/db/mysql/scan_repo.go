package mysql

import (
	"context"
	"database/sql"
	"time"

	domain "github.com/bryanwahyu/repoguard/internal/domain/scans"
)

type ScanRepository struct {
	db *sql.DB
}

func NewScanRepository(db *sql.DB) *ScanRepository {
	return &ScanRepository{db: db}
}

// Save insert/update Scan record
func (r *ScanRepository) Save(ctx context.Context, s *domain.Scan) error {
	const q = `
INSERT INTO repository_scans
(id, tenant_id, session_id, triggered_at, repository, branch, tool, scan_type, target, status,
 critical, high, medium, low, findings_total,
 artifact_url, duration_ms, error)
VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)
ON DUPLICATE KEY UPDATE
 status=VALUES(status),
 critical=VALUES(critical), high=VALUES(high), medium=VALUES(medium), low=VALUES(low),
 findings_total=VALUES(findings_total),
 artifact_url=VALUES(artifact_url), duration_ms=VALUES(duration_ms), error=VALUES(error);
`
	// Ensure non-nullable string fields have safe defaults
	tenant := stringOrDash(s.TenantID)
	tool := stringOrDash(s.Tool)
	status := stringOrDash(string(s.Status))
	triggered := s.TriggeredAt
	if triggered.IsZero() {
		triggered = time.Now()
	}

	_, err := r.db.ExecContext(ctx, q,
		s.ID, tenant, s.SessionID, triggered, s.Repository, s.Branch, tool, string(s.ScanType), s.Target, status,
		s.Counts.Critical, s.Counts.High, s.Counts.Medium, s.Counts.Low, s.Counts.Total,
		s.ArtifactURL, s.DurationMS, s.Error,
	)
	return err
}

// Get by ID + Tenant
func (r *ScanRepository) Get(ctx context.Context, tenant string, id domain.ScanID) (*domain.Scan, error) {
	const q = `
SELECT id, tenant_id, session_id, triggered_at, repository, branch, tool, scan_type, target, status,
       critical, high, medium, low, findings_total,
       artifact_url, duration_ms, error
FROM repository_scans
WHERE tenant_id=? AND id=? LIMIT 1;
`
	row := r.db.QueryRowContext(ctx, q, tenant, id)
	return scanRow(row.Scan)
}

// Latest scans per tenant
func (r *ScanRepository) Latest(ctx context.Context, tenant string, limit int) ([]*domain.Scan, error) {
	if limit <= 0 {
		limit = 20
	}
	const q = `
SELECT id, tenant_id, session_id, triggered_at, repository, branch, tool, scan_type, target, status,
       critical, high, medium, low, findings_total,
       artifact_url, duration_ms, error
FROM repository_scans
WHERE tenant_id=? ORDER BY triggered_at DESC, id DESC LIMIT ?;
`
	rows, err := r.db.QueryContext(ctx, q, tenant, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.Scan
	for rows.Next() {
		s, err := scanRow(rows.Scan)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// Summary counts scan results since N days
func (r *ScanRepository) Summary(ctx context.Context, tenant string, sinceDays int) (int, int, int, int, error) {
	if sinceDays <= 0 {
		sinceDays = 7
	}
	cut := time.Now().AddDate(0, 0, -sinceDays)

	const q = `
SELECT COUNT(*) AS total_scans,
       COALESCE(SUM(critical),0) AS critical,
       COALESCE(SUM(high),0)     AS high,
       COALESCE(SUM(medium),0)   AS medium
FROM repository_scans
WHERE tenant_id=? AND triggered_at >= ?;
`
	var t, c, h, m int
	if err := r.db.QueryRowContext(ctx, q, tenant, cut).Scan(&t, &c, &h, &m); err != nil {
		return 0, 0, 0, 0, err
	}
	return t, c, h, m, nil
}

// scanRow maps one row into a Scan regardless of which query produced it.
func scanRow(scan func(dest ...interface{}) error) (*domain.Scan, error) {
	var s domain.Scan
	var crit, hi, med, lo, tot int
	if err := scan(
		&s.ID, &s.TenantID, &s.SessionID, &s.TriggeredAt, &s.Repository, &s.Branch, &s.Tool, &s.ScanType, &s.Target, &s.Status,
		&crit, &hi, &med, &lo, &tot,
		&s.ArtifactURL, &s.DurationMS, &s.Error,
	); err != nil {
		return nil, err
	}
	s.Counts = domain.SeverityCounts{Critical: crit, High: hi, Medium: med, Low: lo, Total: tot}
	return &s, nil
}
