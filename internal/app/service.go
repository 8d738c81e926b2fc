package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hylla/gudang/internal/domain"
)

// DashboardRecentCount is how many log-order transactions the dashboard shows.
const DashboardRecentCount = 10

// ServiceConfig holds configuration for service.
type ServiceConfig struct {
	Ledger  LedgerConfig
	Catalog CatalogConfig
}

// ServiceDeps carries optional collaborators shared by the ledger and catalog.
type ServiceDeps struct {
	Activity ActivityRecorder
	Logger   Logger
	Metrics  Metrics
	Clock    Clock
	NewUUID  IDGenerator
}

// Dashboard combines catalog statistics with the head of the log.
type Dashboard struct {
	CatalogStats
	RecentTransactions []domain.Transaction `json:"recent_transactions"`
}

// Service composes the ledger and catalog over one store.
type Service struct {
	store    Store
	ledger   *Ledger
	catalog  *Catalog
	activity ActivityRecorder
	clock    Clock
}

// NewService constructs a new value for this package.
func NewService(store Store, deps ServiceDeps, cfg ServiceConfig) *Service {
	if deps.Clock == nil {
		deps.Clock = time.Now
	}
	catalog := NewCatalog(store, deps.Logger, deps.Clock, cfg.Catalog)
	ledger := NewLedger(store, LedgerDeps{
		Catalog:  catalog,
		Activity: deps.Activity,
		Logger:   deps.Logger,
		Metrics:  deps.Metrics,
		Clock:    deps.Clock,
		NewUUID:  deps.NewUUID,
	}, cfg.Ledger)
	return &Service{
		store:    store,
		ledger:   ledger,
		catalog:  catalog,
		activity: deps.Activity,
		clock:    deps.Clock,
	}
}

// Open loads the catalog and then the ledger so item ids can be backfilled.
func (s *Service) Open(ctx context.Context) error {
	if err := s.catalog.Load(ctx); err != nil {
		return fmt.Errorf("open catalog: %w", err)
	}
	if err := s.ledger.Load(ctx); err != nil {
		return fmt.Errorf("open ledger: %w", err)
	}
	return nil
}

// Reset drops the stored log and catalog and reloads both, which restores the starter data.
func (s *Service) Reset(ctx context.Context) error {
	deleter, ok := s.store.(KeyDeleter)
	if !ok {
		return ErrResetUnsupported
	}
	for _, key := range []string{s.catalog.cfg.ItemsKey, s.ledger.cfg.LogKey} {
		if err := deleter.Delete(ctx, key); err != nil && !errors.Is(err, ErrKeyNotFound) {
			return fmt.Errorf("reset %q: %w", key, err)
		}
	}
	return s.Open(ctx)
}

// RecordTransaction appends a new transaction.
func (s *Service) RecordTransaction(ctx context.Context, in domain.TransactionInput) (domain.Transaction, error) {
	return s.ledger.Record(ctx, in)
}

// AmendTransaction overwrites the transaction with id.
func (s *Service) AmendTransaction(ctx context.Context, id string, in domain.TransactionInput) (domain.Transaction, error) {
	return s.ledger.Amend(ctx, id, in)
}

// RemoveTransaction deletes the transaction with id.
func (s *Service) RemoveTransaction(ctx context.Context, id string) (domain.Transaction, error) {
	return s.ledger.Remove(ctx, id)
}

// GetTransaction returns one transaction.
func (s *Service) GetTransaction(ctx context.Context, id string) (domain.Transaction, error) {
	return s.ledger.Get(ctx, id)
}

// ListTransactions returns the log in storage order.
func (s *Service) ListTransactions(ctx context.Context) ([]domain.Transaction, error) {
	return s.ledger.Transactions(ctx)
}

// Inventory returns the derived stock snapshot.
func (s *Service) Inventory(ctx context.Context) ([]domain.InventoryEntry, error) {
	return s.ledger.Inventory(ctx)
}

// TransactionsInRange returns the inclusive date-range report.
func (s *Service) TransactionsInRange(ctx context.Context, start, end domain.Date) ([]domain.Transaction, error) {
	return s.ledger.FilterByDateRange(ctx, start, end)
}

// MonthlySummary returns the month report.
func (s *Service) MonthlySummary(ctx context.Context, month time.Month, year int) (domain.MonthlySummary, error) {
	return s.ledger.MonthlySummary(ctx, month, year)
}

// RecentTransactions returns the newest transactions.
func (s *Service) RecentTransactions(ctx context.Context, limit int) ([]domain.Transaction, error) {
	return s.ledger.Recent(ctx, limit)
}

// ListItems returns the catalog.
func (s *Service) ListItems(ctx context.Context) ([]domain.Item, error) {
	return s.catalog.List(ctx)
}

// GetItem returns one catalog item.
func (s *Service) GetItem(ctx context.Context, id string) (domain.Item, error) {
	return s.catalog.Get(ctx, id)
}

// AddItem creates a catalog item.
func (s *Service) AddItem(ctx context.Context, in domain.ItemInput) (domain.Item, error) {
	return s.catalog.Add(ctx, in)
}

// UpdateItem patches a catalog item.
func (s *Service) UpdateItem(ctx context.Context, id string, patch domain.ItemPatch) (domain.Item, error) {
	return s.catalog.Update(ctx, id, patch)
}

// DeleteItem removes a catalog item.
func (s *Service) DeleteItem(ctx context.Context, id string) error {
	return s.catalog.Delete(ctx, id)
}

// ItemsByCategory filters the catalog by category.
func (s *Service) ItemsByCategory(ctx context.Context, category string) ([]domain.Item, error) {
	return s.catalog.ByCategory(ctx, category)
}

// LowStockItems lists low and critical items.
func (s *Service) LowStockItems(ctx context.Context) ([]domain.Item, error) {
	return s.catalog.LowStock(ctx)
}

// CriticalStockItems lists critical items.
func (s *Service) CriticalStockItems(ctx context.Context) ([]domain.Item, error) {
	return s.catalog.CriticalStock(ctx)
}

// SearchItems searches the catalog.
func (s *Service) SearchItems(ctx context.Context, query string) ([]domain.Item, error) {
	return s.catalog.Search(ctx, query)
}

// Dashboard returns catalog stats and the first transactions in storage order.
func (s *Service) Dashboard(ctx context.Context) (Dashboard, error) {
	stats, err := s.catalog.Stats(ctx)
	if err != nil {
		return Dashboard{}, err
	}
	head, err := s.ledger.Head(ctx, DashboardRecentCount)
	if err != nil {
		return Dashboard{}, err
	}
	return Dashboard{CatalogStats: stats, RecentTransactions: head}, nil
}

// ListActivity returns recent ledger change events.
func (s *Service) ListActivity(ctx context.Context, limit int) ([]domain.ChangeEvent, error) {
	if s.activity == nil {
		return nil, ErrActivityUnavailable
	}
	return s.activity.ListChangeEvents(ctx, limit)
}

// ExportSnapshot captures the ledger and catalog.
func (s *Service) ExportSnapshot(ctx context.Context) (Snapshot, error) {
	txSeq, txs, err := s.ledger.state(ctx)
	if err != nil {
		return Snapshot{}, err
	}
	itemSeq, items, err := s.catalog.state(ctx)
	if err != nil {
		return Snapshot{}, err
	}
	return Snapshot{
		Version:            SnapshotVersion,
		ExportedAt:         s.clock().UTC(),
		NextTransactionSeq: txSeq,
		Transactions:       snapshotTransactionsFromDomain(txs),
		NextItemSeq:        itemSeq,
		Items:              snapshotItemsFromDomain(items),
	}, nil
}

// ImportSnapshot replaces the ledger and catalog with the snapshot contents.
func (s *Service) ImportSnapshot(ctx context.Context, snap Snapshot) error {
	if err := snap.Validate(); err != nil {
		return err
	}
	if err := s.catalog.replace(ctx, snap.NextItemSeq, itemsFromSnapshot(snap.Items)); err != nil {
		return fmt.Errorf("import catalog: %w", err)
	}
	if err := s.ledger.replace(ctx, snap.NextTransactionSeq, transactionsFromSnapshot(snap.Transactions)); err != nil {
		return fmt.Errorf("import ledger: %w", err)
	}
	return nil
}
