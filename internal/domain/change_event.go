package domain

import "time"

// ChangeOperation describes a persisted activity operation for the ledger.
type ChangeOperation string

// ChangeOperation values used by the local activity ledger.
const (
	ChangeOperationRecord ChangeOperation = "record"
	ChangeOperationAmend  ChangeOperation = "amend"
	ChangeOperationRemove ChangeOperation = "remove"
	ChangeOperationReseed ChangeOperation = "reseed"
	ChangeOperationImport ChangeOperation = "import"
)

// ChangeEvent represents a single activity-log entry for a ledger mutation.
type ChangeEvent struct {
	ID            int64             `json:"id"`
	Operation     ChangeOperation   `json:"operation"`
	TransactionID string            `json:"transaction_id"`
	ItemName      string            `json:"item"`
	Metadata      map[string]string `json:"metadata"`
	OccurredAt    time.Time         `json:"occurred_at"`
}
