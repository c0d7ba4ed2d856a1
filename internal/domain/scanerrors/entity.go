package scanerrors

import "time"

// ScanError represents a persisted failure entry for one scan session
type ScanError struct {
	ID          int64     `json:"id"`
	TenantID    string    `json:"tenant_id"`
	SessionID   string    `json:"session_id"`
	Tool        string    `json:"tool,omitempty"`
	Phase       string    `json:"phase,omitempty"` // clone | scan | persist
	Message     string    `json:"message"`
	DetailsJSON string    `json:"details_json,omitempty"` // raw JSON string
	CreatedAt   time.Time `json:"created_at"`
}
