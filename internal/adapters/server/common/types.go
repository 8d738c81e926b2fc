// Package common provides transport-agnostic server contracts used by HTTP and MCP adapters.
package common

import (
	"context"
	"errors"

	"github.com/hylla/gudang/internal/app"
	"github.com/hylla/gudang/internal/domain"
)

// ErrInvalidRequest reports malformed or rule-breaking transport input.
var ErrInvalidRequest = errors.New("invalid request")

// ErrNotFound reports missing transport-visible resources.
var ErrNotFound = errors.New("not found")

// ErrPersist reports a mutation that applied in memory but could not be stored.
var ErrPersist = errors.New("persist failed")

// ErrActivityUnavailable reports missing activity-log backing support.
var ErrActivityUnavailable = errors.New("activity surface unavailable")

// RangeRequest captures an inclusive date-range report query. Empty bounds are open.
type RangeRequest struct {
	Start string `json:"start,omitempty"`
	End   string `json:"end,omitempty"`
}

// MonthlyRequest captures a monthly summary query as raw transport text.
type MonthlyRequest struct {
	Month string `json:"month"`
	Year  string `json:"year"`
}

// ItemListRequest captures catalog list filters.
type ItemListRequest struct {
	Category string
	Query    string
}

// RangeReport wraps a date-range report with its resolved bounds.
type RangeReport struct {
	Start        string               `json:"start,omitempty"`
	End          string               `json:"end,omitempty"`
	Count        int                  `json:"count"`
	Transactions []domain.Transaction `json:"transactions"`
}

// LedgerService exposes ledger writes and reports to transports.
type LedgerService interface {
	RecordTransaction(context.Context, domain.TransactionInput) (domain.Transaction, error)
	AmendTransaction(context.Context, string, domain.TransactionInput) (domain.Transaction, error)
	RemoveTransaction(context.Context, string) (domain.Transaction, error)
	GetTransaction(context.Context, string) (domain.Transaction, error)
	ListTransactions(context.Context) ([]domain.Transaction, error)
	Inventory(context.Context) ([]domain.InventoryEntry, error)
	TransactionsInRange(context.Context, RangeRequest) (RangeReport, error)
	MonthlySummary(context.Context, MonthlyRequest) (domain.MonthlySummary, error)
	RecentTransactions(context.Context, int) ([]domain.Transaction, error)
}

// CatalogService exposes catalog reads and writes to transports.
type CatalogService interface {
	ListItems(context.Context, ItemListRequest) ([]domain.Item, error)
	GetItem(context.Context, string) (domain.Item, error)
	AddItem(context.Context, domain.ItemInput) (domain.Item, error)
	UpdateItem(context.Context, string, domain.ItemPatch) (domain.Item, error)
	DeleteItem(context.Context, string) error
	LowStockItems(context.Context) ([]domain.Item, error)
	CriticalStockItems(context.Context) ([]domain.Item, error)
	Dashboard(context.Context) (app.Dashboard, error)
}

// ActivityService exposes the optional change-event log.
type ActivityService interface {
	ListActivity(context.Context, int) ([]domain.ChangeEvent, error)
}

// FieldErrors returns per-field validation messages carried by err, if any.
func FieldErrors(err error) map[string]string {
	var vErr *app.ValidationError
	if !errors.As(err, &vErr) || len(vErr.Fields) == 0 {
		return nil
	}
	out := make(map[string]string, len(vErr.Fields))
	for key, msg := range vErr.Fields {
		out[key] = msg
	}
	return out
}
