package postgres

import (
	"context"
	"database/sql"
	"time"

	domain "github.com/bryanwahyu/repoguard/internal/domain/scans"
)

type ScanRepository struct{ db *sql.DB }

func NewScanRepository(db *sql.DB) *ScanRepository { return &ScanRepository{db: db} }

// Save insert/update Scan record
func (r *ScanRepository) Save(ctx context.Context, s *domain.Scan) error {
	const q = `
INSERT INTO repository_scans
(id, tenant_id, session_id, triggered_at, repository, branch, tool, scan_type, target, status,
 critical, high, medium, low, findings_total,
 artifact_url, duration_ms, error)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,
        $11,$12,$13,$14,$15,
        $16,$17,$18)
ON CONFLICT (id) DO UPDATE SET
 status = EXCLUDED.status,
 critical = EXCLUDED.critical,
 high = EXCLUDED.high,
 medium = EXCLUDED.medium,
 low = EXCLUDED.low,
 findings_total = EXCLUDED.findings_total,
 artifact_url = EXCLUDED.artifact_url,
 duration_ms = EXCLUDED.duration_ms,
 error = EXCLUDED.error;`

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
WHERE tenant_id=$1 AND id=$2
LIMIT 1;`
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
WHERE tenant_id=$1 ORDER BY triggered_at DESC, id DESC
LIMIT $2;`
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
WHERE tenant_id=$1 AND triggered_at >= $2;`
	var t, c, h, m int
	if err := r.db.QueryRowContext(ctx, q, tenant, cut).Scan(&t, &c, &h, &m); err != nil {
		return 0, 0, 0, 0, err
	}
	return t, c, h, m, nil
}

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
