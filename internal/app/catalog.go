package app

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/hylla/gudang/internal/domain"
)

// Default catalog settings.
const (
	DefaultItemsKey     = "warehouse_items"
	DefaultItemIDPrefix = "WH"
)

// CatalogConfig holds configuration for the item catalog.
type CatalogConfig struct {
	ItemsKey string
	IDPrefix string
	IDWidth  int
	Validate bool
}

// CatalogStats summarizes the catalog for dashboards.
type CatalogStats struct {
	TotalItems         int      `json:"total_items"`
	TotalStock         int      `json:"total_stock"`
	LowStockItems      int      `json:"low_stock_items"`
	CriticalStockItems int      `json:"critical_stock_items"`
	Categories         []string `json:"categories"`
}

// Catalog holds warehouse item metadata and stock levels.
type Catalog struct {
	mu      sync.Mutex
	store   Store
	logger  Logger
	clock   Clock
	cfg     CatalogConfig
	items   []domain.Item
	nextSeq int64
	loaded  bool
}

// NewCatalog constructs a catalog over store.
func NewCatalog(store Store, logger Logger, clock Clock, cfg CatalogConfig) *Catalog {
	if strings.TrimSpace(cfg.ItemsKey) == "" {
		cfg.ItemsKey = DefaultItemsKey
	}
	if cfg.IDPrefix == "" {
		cfg.IDPrefix = DefaultItemIDPrefix
	}
	if cfg.IDWidth <= 0 {
		cfg.IDWidth = DefaultIDWidth
	}
	if logger == nil {
		logger = nopLogger{}
	}
	if clock == nil {
		clock = time.Now
	}
	return &Catalog{
		store:  store,
		logger: logger,
		clock:  clock,
		cfg:    cfg,
		items:  []domain.Item{},
	}
}

// Load reads the persisted catalog. Missing or unreadable data is replaced by the seed catalog and persisted.
func (c *Catalog) Load(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.loadLocked(ctx)
}

func (c *Catalog) loadLocked(ctx context.Context) error {
	raw, err := c.store.Load(ctx, c.cfg.ItemsKey)
	switch {
	case errors.Is(err, ErrKeyNotFound):
		c.logger.Info("catalog not found, seeding", "key", c.cfg.ItemsKey)
		return c.reseedLocked(ctx)
	case err != nil:
		return fmt.Errorf("load catalog %q: %w", c.cfg.ItemsKey, err)
	}
	doc, err := decodeCatalogDocument(raw)
	if err != nil {
		c.logger.Warn("catalog unreadable, reseeding", "key", c.cfg.ItemsKey, "err", err)
		return c.reseedLocked(ctx)
	}
	c.items = itemsFromSnapshot(doc.Items)
	c.nextSeq = nextSequenceAfter(c.cfg.IDPrefix, doc.NextSeq, itemIDs(c.items))
	c.loaded = true
	c.logger.Debug("catalog loaded", "key", c.cfg.ItemsKey, "items", len(c.items))
	return nil
}

func (c *Catalog) reseedLocked(ctx context.Context) error {
	c.items = domain.SeedItems(c.clock())
	c.nextSeq = nextSequenceAfter(c.cfg.IDPrefix, 0, itemIDs(c.items))
	c.loaded = true
	return c.persistLocked(ctx)
}

// List returns all items in catalog order.
func (c *Catalog) List(ctx context.Context) ([]domain.Item, error) {
	return c.filter(ctx, func(domain.Item) bool { return true })
}

// Get returns one item by id.
func (c *Catalog) Get(ctx context.Context, id string) (domain.Item, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.ensureLoadedLocked(ctx); err != nil {
		return domain.Item{}, err
	}
	idx := c.indexLocked(strings.TrimSpace(id))
	if idx < 0 {
		return domain.Item{}, fmt.Errorf("get item %q: %w", id, ErrNotFound)
	}
	return c.items[idx], nil
}

// FindItem resolves an item by id, falling back to an exact name match.
func (c *Catalog) FindItem(ctx context.Context, id, name string) (domain.Item, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.ensureLoadedLocked(ctx); err != nil {
		c.logger.Warn("catalog lookup skipped", "err", err)
		return domain.Item{}, false
	}
	if id = strings.TrimSpace(id); id != "" {
		if idx := c.indexLocked(id); idx >= 0 {
			return c.items[idx], true
		}
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return domain.Item{}, false
	}
	idx := slices.IndexFunc(c.items, func(item domain.Item) bool {
		return item.Name == name
	})
	if idx < 0 {
		return domain.Item{}, false
	}
	return c.items[idx], true
}

// Add creates an item with the next WH id.
func (c *Catalog) Add(ctx context.Context, in domain.ItemInput) (domain.Item, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.ensureLoadedLocked(ctx); err != nil {
		return domain.Item{}, err
	}
	if c.cfg.Validate {
		if err := validateStruct(in); err != nil {
			return domain.Item{}, err
		}
	}
	seq := c.nextSeq
	if seq <= 0 {
		seq = 1
	}
	id := formatSequenceID(c.cfg.IDPrefix, c.cfg.IDWidth, seq)
	for c.indexLocked(id) >= 0 {
		seq++
		id = formatSequenceID(c.cfg.IDPrefix, c.cfg.IDWidth, seq)
	}
	item, err := domain.NewItem(id, in, c.clock())
	if err != nil {
		return domain.Item{}, newValidationError(err)
	}
	c.items = append(c.items, item)
	c.nextSeq = seq + 1
	if err := c.persistLocked(ctx); err != nil {
		return item, err
	}
	c.logger.Info("catalog item added", "id", item.ID, "name", item.Name)
	return item, nil
}

// Update merges patch into the item with id.
func (c *Catalog) Update(ctx context.Context, id string, patch domain.ItemPatch) (domain.Item, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.ensureLoadedLocked(ctx); err != nil {
		return domain.Item{}, err
	}
	if c.cfg.Validate {
		if err := validateStruct(patch); err != nil {
			return domain.Item{}, err
		}
	}
	idx := c.indexLocked(strings.TrimSpace(id))
	if idx < 0 {
		return domain.Item{}, fmt.Errorf("update item %q: %w", id, ErrNotFound)
	}
	item, err := c.items[idx].Apply(patch, c.clock())
	if err != nil {
		return domain.Item{}, newValidationError(err)
	}
	c.items[idx] = item
	if err := c.persistLocked(ctx); err != nil {
		return item, err
	}
	return item, nil
}

// AdjustStock adds delta to the item's stock, clamping at zero.
func (c *Catalog) AdjustStock(ctx context.Context, id string, delta int) (domain.Item, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.ensureLoadedLocked(ctx); err != nil {
		return domain.Item{}, err
	}
	idx := c.indexLocked(strings.TrimSpace(id))
	if idx < 0 {
		return domain.Item{}, fmt.Errorf("adjust stock %q: %w", id, ErrNotFound)
	}
	stock := max(0, c.items[idx].Stock+delta)
	item, err := c.items[idx].Apply(domain.ItemPatch{Stock: &stock}, c.clock())
	if err != nil {
		return domain.Item{}, err
	}
	c.items[idx] = item
	if err := c.persistLocked(ctx); err != nil {
		return item, err
	}
	c.logger.Debug("catalog stock adjusted", "id", item.ID, "delta", delta, "stock", item.Stock, "status", item.Status)
	return item, nil
}

// Delete removes the item with id.
func (c *Catalog) Delete(ctx context.Context, id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.ensureLoadedLocked(ctx); err != nil {
		return err
	}
	idx := c.indexLocked(strings.TrimSpace(id))
	if idx < 0 {
		return fmt.Errorf("delete item %q: %w", id, ErrNotFound)
	}
	c.items = slices.Delete(slices.Clone(c.items), idx, idx+1)
	if err := c.persistLocked(ctx); err != nil {
		return err
	}
	c.logger.Info("catalog item deleted", "id", id)
	return nil
}

// ByCategory returns items whose category equals category exactly.
func (c *Catalog) ByCategory(ctx context.Context, category string) ([]domain.Item, error) {
	return c.filter(ctx, func(item domain.Item) bool { return item.Category == category })
}

// LowStock returns items in low or critical status.
func (c *Catalog) LowStock(ctx context.Context) ([]domain.Item, error) {
	return c.filter(ctx, domain.Item.NeedsRestock)
}

// CriticalStock returns items in critical status.
func (c *Catalog) CriticalStock(ctx context.Context) ([]domain.Item, error) {
	return c.filter(ctx, func(item domain.Item) bool { return item.Status == domain.StockCritical })
}

// Search matches query case-insensitively against item text fields.
func (c *Catalog) Search(ctx context.Context, query string) ([]domain.Item, error) {
	return c.filter(ctx, func(item domain.Item) bool { return item.Matches(query) })
}

// Stats summarizes the catalog.
func (c *Catalog) Stats(ctx context.Context) (CatalogStats, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.ensureLoadedLocked(ctx); err != nil {
		return CatalogStats{}, err
	}
	stats := CatalogStats{
		TotalItems: len(c.items),
		Categories: make([]string, 0),
	}
	for _, item := range c.items {
		stats.TotalStock += item.Stock
		if item.NeedsRestock() {
			stats.LowStockItems++
		}
		if item.Status == domain.StockCritical {
			stats.CriticalStockItems++
		}
		if !slices.Contains(stats.Categories, item.Category) {
			stats.Categories = append(stats.Categories, item.Category)
		}
	}
	return stats, nil
}

// state returns the counter and a copy of the items for export.
func (c *Catalog) state(ctx context.Context) (int64, []domain.Item, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.ensureLoadedLocked(ctx); err != nil {
		return 0, nil, err
	}
	return c.nextSeq, slices.Clone(c.items), nil
}

// replace swaps in imported items and persists them.
func (c *Catalog) replace(ctx context.Context, nextSeq int64, items []domain.Item) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items = slices.Clone(items)
	if c.items == nil {
		c.items = []domain.Item{}
	}
	c.nextSeq = nextSequenceAfter(c.cfg.IDPrefix, nextSeq, itemIDs(c.items))
	c.loaded = true
	return c.persistLocked(ctx)
}

func (c *Catalog) filter(ctx context.Context, keep func(domain.Item) bool) ([]domain.Item, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.ensureLoadedLocked(ctx); err != nil {
		return nil, err
	}
	out := make([]domain.Item, 0, len(c.items))
	for _, item := range c.items {
		if keep(item) {
			out = append(out, item)
		}
	}
	return out, nil
}

func (c *Catalog) ensureLoadedLocked(ctx context.Context) error {
	if c.loaded {
		return nil
	}
	return c.loadLocked(ctx)
}

func (c *Catalog) persistLocked(ctx context.Context) error {
	encoded, err := encodeCatalogDocument(c.nextSeq, c.items)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrPersist, err)
	}
	if err := c.store.Save(ctx, c.cfg.ItemsKey, encoded); err != nil {
		c.logger.Error("catalog persist failed", "key", c.cfg.ItemsKey, "err", err)
		return fmt.Errorf("%w: save %q: %w", ErrPersist, c.cfg.ItemsKey, err)
	}
	return nil
}

func (c *Catalog) indexLocked(id string) int {
	return slices.IndexFunc(c.items, func(item domain.Item) bool {
		return item.ID == id
	})
}

func itemIDs(items []domain.Item) []string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		out = append(out, item.ID)
	}
	return out
}
