package app

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/hylla/gudang/internal/domain"
)

// Default ledger settings.
const (
	DefaultLogKey   = "transactions"
	DefaultIDPrefix = "TXN"
	DefaultIDWidth  = 3
)

// LedgerConfig holds configuration for the ledger engine.
type LedgerConfig struct {
	LogKey      string
	IDScheme    IDScheme
	IDPrefix    string
	IDWidth     int
	Validate    bool
	LastUpdated domain.LastUpdatedPolicy
	RecentLimit int
}

// LedgerDeps carries optional collaborators. Nil fields fall back to no-ops.
type LedgerDeps struct {
	Catalog  ItemCatalog
	Activity ActivityRecorder
	Logger   Logger
	Metrics  Metrics
	Clock    Clock
	NewUUID  IDGenerator
}

// Ledger owns the transaction log and the inventory derived from it.
type Ledger struct {
	mu        sync.Mutex
	store     Store
	catalog   ItemCatalog
	activity  ActivityRecorder
	logger    Logger
	metrics   Metrics
	clock     Clock
	newUUID   IDGenerator
	cfg       LedgerConfig
	log       []domain.Transaction
	nextSeq   int64
	inventory []domain.InventoryEntry
	loaded    bool
}

// NewLedger constructs a ledger over store. Call Load before use or let the first call load lazily.
func NewLedger(store Store, deps LedgerDeps, cfg LedgerConfig) *Ledger {
	if strings.TrimSpace(cfg.LogKey) == "" {
		cfg.LogKey = DefaultLogKey
	}
	switch cfg.IDScheme {
	case IDSchemeSequence, IDSchemeUUID:
	default:
		cfg.IDScheme = IDSchemeSequence
	}
	if cfg.IDPrefix == "" {
		cfg.IDPrefix = DefaultIDPrefix
	}
	if cfg.IDWidth <= 0 {
		cfg.IDWidth = DefaultIDWidth
	}
	cfg.LastUpdated = domain.NormalizeLastUpdatedPolicy(string(cfg.LastUpdated))
	if cfg.RecentLimit <= 0 {
		cfg.RecentLimit = domain.DefaultRecentLimit
	}
	if deps.Logger == nil {
		deps.Logger = nopLogger{}
	}
	if deps.Metrics == nil {
		deps.Metrics = nopMetrics{}
	}
	if deps.Clock == nil {
		deps.Clock = time.Now
	}
	return &Ledger{
		store:    store,
		catalog:  deps.Catalog,
		activity: deps.Activity,
		logger:   deps.Logger,
		metrics:  deps.Metrics,
		clock:    deps.Clock,
		newUUID:  deps.NewUUID,
		cfg:      cfg,
		log:      []domain.Transaction{},
	}
}

// Load reads the persisted log. Missing or unreadable data is replaced by the seed log and persisted.
func (l *Ledger) Load(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.loadLocked(ctx)
}

func (l *Ledger) loadLocked(ctx context.Context) error {
	raw, err := l.store.Load(ctx, l.cfg.LogKey)
	switch {
	case errors.Is(err, ErrKeyNotFound):
		l.logger.Info("ledger log not found, seeding", "key", l.cfg.LogKey)
		return l.reseedLocked(ctx, "missing")
	case err != nil:
		return fmt.Errorf("load ledger %q: %w", l.cfg.LogKey, err)
	}

	doc, err := decodeLedgerDocument(raw)
	if err != nil {
		l.logger.Warn("ledger log unreadable, reseeding", "key", l.cfg.LogKey, "err", err)
		return l.reseedLocked(ctx, "corrupt")
	}
	l.log = transactionsFromSnapshot(doc.Transactions)
	l.nextSeq = nextSequenceAfter(l.cfg.IDPrefix, doc.NextSeq, transactionIDs(l.log))
	backfilled := l.backfillItemIDsLocked(ctx)
	l.loaded = true
	l.refreshLocked()
	l.logger.Debug("ledger loaded", "key", l.cfg.LogKey, "transactions", len(l.log), "next_seq", l.nextSeq, "backfilled_item_ids", backfilled)
	if backfilled > 0 {
		if err := l.persistLocked(ctx); err != nil {
			return err
		}
	}
	return nil
}

func (l *Ledger) reseedLocked(ctx context.Context, reason string) error {
	l.log = domain.SeedTransactions()
	l.nextSeq = nextSequenceAfter(l.cfg.IDPrefix, 0, transactionIDs(l.log))
	l.loaded = true
	l.refreshLocked()
	l.metrics.IncReseed(l.cfg.LogKey)
	l.appendEventLocked(ctx, domain.ChangeEvent{
		Operation: domain.ChangeOperationReseed,
		Metadata:  map[string]string{"reason": reason, "transactions": strconv.Itoa(len(l.log))},
	})
	return l.persistLocked(ctx)
}

// backfillItemIDsLocked fills missing catalog keys by name lookup and returns how many changed.
func (l *Ledger) backfillItemIDsLocked(ctx context.Context) int {
	if l.catalog == nil {
		return 0
	}
	changed := 0
	for idx := range l.log {
		if l.log[idx].ItemID != "" {
			continue
		}
		if item, ok := l.catalog.FindItem(ctx, "", l.log[idx].ItemName); ok {
			l.log[idx].ItemID = item.ID
			changed++
		}
	}
	return changed
}

// Record validates input, assigns a fresh id, and prepends the transaction to the log.
func (l *Ledger) Record(ctx context.Context, in domain.TransactionInput) (domain.Transaction, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.ensureLoadedLocked(ctx); err != nil {
		return domain.Transaction{}, err
	}

	id, seq := l.nextIDLocked()
	tx, err := l.buildTransaction(id, in)
	if err != nil {
		l.metrics.ObserveMutation(string(domain.ChangeOperationRecord), "rejected")
		return domain.Transaction{}, err
	}
	tx = l.resolveItemIDLocked(ctx, tx)

	l.log = append([]domain.Transaction{tx}, l.log...)
	l.nextSeq = seq + 1
	l.refreshLocked()
	l.applyCatalogEffectLocked(ctx, tx, 1)
	l.appendEventLocked(ctx, domain.ChangeEvent{
		Operation:     domain.ChangeOperationRecord,
		TransactionID: tx.ID,
		ItemName:      tx.ItemName,
		Metadata: map[string]string{
			"type":     string(tx.Direction),
			"quantity": strconv.Itoa(tx.Quantity),
			"date":     tx.Date.String(),
		},
	})
	if err := l.persistLocked(ctx); err != nil {
		l.metrics.ObserveMutation(string(domain.ChangeOperationRecord), "persist_failed")
		return tx, err
	}
	l.metrics.ObserveMutation(string(domain.ChangeOperationRecord), "ok")
	l.logger.Info("transaction recorded", "id", tx.ID, "type", tx.Direction, "item", tx.ItemName, "quantity", tx.Quantity)
	return tx, nil
}

// Amend replaces every field of the transaction with id, keeping the id.
func (l *Ledger) Amend(ctx context.Context, id string, in domain.TransactionInput) (domain.Transaction, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.ensureLoadedLocked(ctx); err != nil {
		return domain.Transaction{}, err
	}

	id = strings.TrimSpace(id)
	idx := l.indexLocked(id)
	if idx < 0 {
		l.metrics.ObserveMutation(string(domain.ChangeOperationAmend), "not_found")
		return domain.Transaction{}, fmt.Errorf("amend transaction %q: %w", id, ErrNotFound)
	}
	tx, err := l.buildTransaction(id, in)
	if err != nil {
		l.metrics.ObserveMutation(string(domain.ChangeOperationAmend), "rejected")
		return domain.Transaction{}, err
	}
	tx = l.resolveItemIDLocked(ctx, tx)

	prev := l.log[idx]
	l.log[idx] = tx
	l.refreshLocked()
	l.applyCatalogEffectLocked(ctx, prev, -1)
	l.applyCatalogEffectLocked(ctx, tx, 1)
	l.appendEventLocked(ctx, domain.ChangeEvent{
		Operation:     domain.ChangeOperationAmend,
		TransactionID: tx.ID,
		ItemName:      tx.ItemName,
		Metadata:      amendedFields(prev, tx),
	})
	if err := l.persistLocked(ctx); err != nil {
		l.metrics.ObserveMutation(string(domain.ChangeOperationAmend), "persist_failed")
		return tx, err
	}
	l.metrics.ObserveMutation(string(domain.ChangeOperationAmend), "ok")
	l.logger.Info("transaction amended", "id", tx.ID, "item", tx.ItemName)
	return tx, nil
}

// Remove deletes the transaction with id and returns it.
func (l *Ledger) Remove(ctx context.Context, id string) (domain.Transaction, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.ensureLoadedLocked(ctx); err != nil {
		return domain.Transaction{}, err
	}

	id = strings.TrimSpace(id)
	idx := l.indexLocked(id)
	if idx < 0 {
		l.metrics.ObserveMutation(string(domain.ChangeOperationRemove), "not_found")
		return domain.Transaction{}, fmt.Errorf("remove transaction %q: %w", id, ErrNotFound)
	}
	removed := l.log[idx]
	l.log = slices.Delete(slices.Clone(l.log), idx, idx+1)
	l.refreshLocked()
	l.applyCatalogEffectLocked(ctx, removed, -1)
	l.appendEventLocked(ctx, domain.ChangeEvent{
		Operation:     domain.ChangeOperationRemove,
		TransactionID: removed.ID,
		ItemName:      removed.ItemName,
		Metadata: map[string]string{
			"type":     string(removed.Direction),
			"quantity": strconv.Itoa(removed.Quantity),
		},
	})
	if err := l.persistLocked(ctx); err != nil {
		l.metrics.ObserveMutation(string(domain.ChangeOperationRemove), "persist_failed")
		return removed, err
	}
	l.metrics.ObserveMutation(string(domain.ChangeOperationRemove), "ok")
	l.logger.Info("transaction removed", "id", removed.ID, "item", removed.ItemName)
	return removed, nil
}

// Get returns one transaction by id.
func (l *Ledger) Get(ctx context.Context, id string) (domain.Transaction, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.ensureLoadedLocked(ctx); err != nil {
		return domain.Transaction{}, err
	}
	idx := l.indexLocked(strings.TrimSpace(id))
	if idx < 0 {
		return domain.Transaction{}, fmt.Errorf("get transaction %q: %w", id, ErrNotFound)
	}
	return l.log[idx], nil
}

// Transactions returns a copy of the log in storage order, most recent first.
func (l *Ledger) Transactions(ctx context.Context) ([]domain.Transaction, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.ensureLoadedLocked(ctx); err != nil {
		return nil, err
	}
	return slices.Clone(l.log), nil
}

// Inventory returns the current derived stock snapshot.
func (l *Ledger) Inventory(ctx context.Context) ([]domain.InventoryEntry, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.ensureLoadedLocked(ctx); err != nil {
		return nil, err
	}
	return slices.Clone(l.inventory), nil
}

// FilterByDateRange returns transactions within the inclusive bounds, newest first.
func (l *Ledger) FilterByDateRange(ctx context.Context, start, end domain.Date) ([]domain.Transaction, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.ensureLoadedLocked(ctx); err != nil {
		return nil, err
	}
	return domain.FilterByDateRange(l.log, start, end), nil
}

// MonthlySummary totals one calendar month.
func (l *Ledger) MonthlySummary(ctx context.Context, month time.Month, year int) (domain.MonthlySummary, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.ensureLoadedLocked(ctx); err != nil {
		return domain.MonthlySummary{}, err
	}
	return domain.SummarizeMonth(l.log, month, year), nil
}

// Recent returns up to limit transactions newest first; limit <= 0 uses the configured default.
func (l *Ledger) Recent(ctx context.Context, limit int) ([]domain.Transaction, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.ensureLoadedLocked(ctx); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = l.cfg.RecentLimit
	}
	return domain.Recent(l.log, limit), nil
}

// Head returns up to n transactions in storage order.
func (l *Ledger) Head(ctx context.Context, n int) ([]domain.Transaction, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.ensureLoadedLocked(ctx); err != nil {
		return nil, err
	}
	if n < 0 || n > len(l.log) {
		n = len(l.log)
	}
	return slices.Clone(l.log[:n]), nil
}

// state returns the counter and a copy of the log for export.
func (l *Ledger) state(ctx context.Context) (int64, []domain.Transaction, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.ensureLoadedLocked(ctx); err != nil {
		return 0, nil, err
	}
	return l.nextSeq, slices.Clone(l.log), nil
}

// replace swaps in an imported log and persists it. Catalog stock is not adjusted.
func (l *Ledger) replace(ctx context.Context, nextSeq int64, txs []domain.Transaction) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.log = slices.Clone(txs)
	if l.log == nil {
		l.log = []domain.Transaction{}
	}
	l.nextSeq = nextSequenceAfter(l.cfg.IDPrefix, nextSeq, transactionIDs(l.log))
	l.loaded = true
	l.backfillItemIDsLocked(ctx)
	l.refreshLocked()
	l.appendEventLocked(ctx, domain.ChangeEvent{
		Operation: domain.ChangeOperationImport,
		Metadata:  map[string]string{"transactions": strconv.Itoa(len(l.log))},
	})
	if err := l.persistLocked(ctx); err != nil {
		l.metrics.ObserveMutation(string(domain.ChangeOperationImport), "persist_failed")
		return err
	}
	l.metrics.ObserveMutation(string(domain.ChangeOperationImport), "ok")
	return nil
}

func (l *Ledger) ensureLoadedLocked(ctx context.Context) error {
	if l.loaded {
		return nil
	}
	return l.loadLocked(ctx)
}

// nextIDLocked returns a candidate id and the counter value it consumes.
func (l *Ledger) nextIDLocked() (string, int64) {
	seq := l.nextSeq
	if seq <= 0 {
		seq = 1
	}
	if l.cfg.IDScheme == IDSchemeUUID && l.newUUID != nil {
		if id := strings.TrimSpace(l.newUUID()); id != "" && l.indexLocked(id) < 0 {
			return id, seq
		}
	}
	for {
		id := formatSequenceID(l.cfg.IDPrefix, l.cfg.IDWidth, seq)
		if l.indexLocked(id) < 0 {
			return id, seq
		}
		seq++
	}
}

func (l *Ledger) buildTransaction(id string, in domain.TransactionInput) (domain.Transaction, error) {
	if !l.cfg.Validate {
		return domain.BuildTransaction(id, in), nil
	}
	normalized := domain.BuildTransaction(id, in).Input()
	if err := validateStruct(normalized); err != nil {
		return domain.Transaction{}, err
	}
	tx, err := domain.NewTransaction(id, normalized)
	if err != nil {
		return domain.Transaction{}, newValidationError(err)
	}
	return tx, nil
}

// resolveItemIDLocked fills the catalog key from the item name when the caller omitted it.
// A key whose catalog item carries a different name is replaced by the name lookup.
func (l *Ledger) resolveItemIDLocked(ctx context.Context, tx domain.Transaction) domain.Transaction {
	if l.catalog == nil {
		return tx
	}
	if tx.ItemID != "" {
		item, ok := l.catalog.FindItem(ctx, tx.ItemID, "")
		if !ok || item.Name == tx.ItemName {
			return tx
		}
		tx.ItemID = ""
	}
	if item, ok := l.catalog.FindItem(ctx, "", tx.ItemName); ok {
		tx.ItemID = item.ID
	}
	return tx
}

// applyCatalogEffectLocked offers sign*delta of tx to the catalog. Failures are logged, not returned.
func (l *Ledger) applyCatalogEffectLocked(ctx context.Context, tx domain.Transaction, sign int) {
	if l.catalog == nil {
		return
	}
	item, ok := l.catalog.FindItem(ctx, tx.ItemID, tx.ItemName)
	if !ok {
		l.logger.Debug("no catalog item for transaction", "id", tx.ID, "item", tx.ItemName, "item_id", tx.ItemID)
		return
	}
	if _, err := l.catalog.AdjustStock(ctx, item.ID, sign*tx.StockDelta()); err != nil {
		l.logger.Warn("catalog stock sync failed", "id", tx.ID, "item_id", item.ID, "err", err)
	}
}

func (l *Ledger) appendEventLocked(ctx context.Context, event domain.ChangeEvent) {
	if l.activity == nil {
		return
	}
	if event.OccurredAt.IsZero() {
		event.OccurredAt = l.clock().UTC()
	}
	if event.Metadata == nil {
		event.Metadata = map[string]string{}
	}
	if err := l.activity.AppendChangeEvent(ctx, event); err != nil {
		l.logger.Warn("activity append failed", "operation", event.Operation, "id", event.TransactionID, "err", err)
	}
}

func (l *Ledger) persistLocked(ctx context.Context) error {
	encoded, err := encodeLedgerDocument(l.nextSeq, l.log)
	if err != nil {
		l.metrics.IncPersistFailure(l.cfg.LogKey)
		l.logger.Error("ledger encode failed", "key", l.cfg.LogKey, "err", err)
		return fmt.Errorf("%w: %v", ErrPersist, err)
	}
	if err := l.store.Save(ctx, l.cfg.LogKey, encoded); err != nil {
		l.metrics.IncPersistFailure(l.cfg.LogKey)
		l.logger.Error("ledger persist failed", "key", l.cfg.LogKey, "err", err)
		return fmt.Errorf("%w: save %q: %w", ErrPersist, l.cfg.LogKey, err)
	}
	return nil
}

func (l *Ledger) refreshLocked() {
	l.inventory = domain.DeriveInventory(l.log, l.cfg.LastUpdated)
	l.metrics.SetTransactionCount(len(l.log))
}

func (l *Ledger) indexLocked(id string) int {
	return slices.IndexFunc(l.log, func(tx domain.Transaction) bool {
		return tx.ID == id
	})
}

func transactionIDs(txs []domain.Transaction) []string {
	out := make([]string, 0, len(txs))
	for _, tx := range txs {
		out = append(out, tx.ID)
	}
	return out
}

// amendedFields lists the fields an amend changed as metadata.
func amendedFields(prev, next domain.Transaction) map[string]string {
	changed := make([]string, 0, 7)
	if prev.Direction != next.Direction {
		changed = append(changed, "type")
	}
	if prev.ItemName != next.ItemName {
		changed = append(changed, "item")
	}
	if prev.ItemID != next.ItemID {
		changed = append(changed, "item_id")
	}
	if prev.Quantity != next.Quantity {
		changed = append(changed, "quantity")
	}
	if prev.Date != next.Date {
		changed = append(changed, "date")
	}
	if prev.Operator != next.Operator {
		changed = append(changed, "operator")
	}
	if prev.Notes != next.Notes {
		changed = append(changed, "notes")
	}
	return map[string]string{"changed_fields": strings.Join(changed, ",")}
}
