package scanerrors

import (
	"context"
)

// Repository defines persistence for scan session failures
type Repository interface {
	Save(ctx context.Context, e *ScanError) error
	ListBySession(ctx context.Context, tenant string, sessionID string, limit int) ([]*ScanError, error)
}
