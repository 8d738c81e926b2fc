package app

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/hylla/gudang/internal/domain"
)

// SnapshotVersion defines a package constant value.
const SnapshotVersion = "gudang.snapshot.v1"

const (
	ledgerDocumentVersion  = "gudang.ledger.v1"
	catalogDocumentVersion = "gudang.catalog.v1"
)

// Snapshot is the portable export of the ledger and catalog.
type Snapshot struct {
	Version            string                `json:"version"`
	ExportedAt         time.Time             `json:"exported_at"`
	NextTransactionSeq int64                 `json:"next_transaction_seq"`
	Transactions       []SnapshotTransaction `json:"transactions"`
	NextItemSeq        int64                 `json:"next_item_seq"`
	Items              []SnapshotItem        `json:"items"`
}

// SnapshotTransaction is the stored shape of one transaction.
type SnapshotTransaction struct {
	ID       string           `json:"id"`
	Type     domain.Direction `json:"type"`
	Item     string           `json:"item"`
	ItemID   string           `json:"item_id,omitempty"`
	Quantity int              `json:"quantity"`
	Date     domain.Date      `json:"date"`
	Operator string           `json:"operator"`
	Notes    string           `json:"notes,omitempty"`
}

// SnapshotItem is the stored shape of one catalog item.
type SnapshotItem struct {
	ID          string             `json:"id"`
	Name        string             `json:"name"`
	Category    string             `json:"category"`
	Stock       int                `json:"stock"`
	MinStock    int                `json:"minStock"`
	Location    string             `json:"location"`
	Description string             `json:"description"`
	LastUpdated time.Time          `json:"lastUpdated"`
	Status      domain.StockStatus `json:"status"`
}

// ledgerDocument is the value persisted under the ledger log key.
type ledgerDocument struct {
	Version      string                `json:"version"`
	NextSeq      int64                 `json:"next_seq"`
	Transactions []SnapshotTransaction `json:"transactions"`
}

// catalogDocument is the value persisted under the catalog key.
type catalogDocument struct {
	Version string         `json:"version"`
	NextSeq int64          `json:"next_seq"`
	Items   []SnapshotItem `json:"items"`
}

// Validate checks version, id uniqueness, and per-record rules.
func (s *Snapshot) Validate() error {
	if s == nil {
		return fmt.Errorf("%w: snapshot is nil", ErrInvalidSnapshot)
	}
	if strings.TrimSpace(s.Version) != SnapshotVersion {
		return fmt.Errorf("%w: unsupported version %q", ErrInvalidSnapshot, s.Version)
	}
	if s.NextTransactionSeq < 0 || s.NextItemSeq < 0 {
		return fmt.Errorf("%w: sequence counters must be >= 0", ErrInvalidSnapshot)
	}
	seenTx := make(map[string]struct{}, len(s.Transactions))
	for idx, tx := range s.Transactions {
		if _, err := domain.NewTransaction(tx.ID, tx.toDomain().Input()); err != nil {
			return fmt.Errorf("%w: transactions[%d]: %v", ErrInvalidSnapshot, idx, err)
		}
		id := strings.TrimSpace(tx.ID)
		if _, ok := seenTx[id]; ok {
			return fmt.Errorf("%w: duplicate transaction id %q", ErrInvalidSnapshot, id)
		}
		seenTx[id] = struct{}{}
	}
	seenItems := make(map[string]struct{}, len(s.Items))
	for idx, item := range s.Items {
		if _, err := domain.NewItem(item.ID, domain.ItemInput{
			Name:     item.Name,
			Category: item.Category,
			Stock:    item.Stock,
			MinStock: item.MinStock,
		}, item.LastUpdated); err != nil {
			return fmt.Errorf("%w: items[%d]: %v", ErrInvalidSnapshot, idx, err)
		}
		id := strings.TrimSpace(item.ID)
		if _, ok := seenItems[id]; ok {
			return fmt.Errorf("%w: duplicate item id %q", ErrInvalidSnapshot, id)
		}
		seenItems[id] = struct{}{}
	}
	return nil
}

// decodeLedgerDocument accepts the versioned document or a bare transaction array.
func decodeLedgerDocument(raw []byte) (ledgerDocument, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return ledgerDocument{}, fmt.Errorf("%w: empty ledger document", ErrDeserialize)
	}
	switch trimmed[0] {
	case '[':
		var txs []SnapshotTransaction
		if err := json.Unmarshal(trimmed, &txs); err != nil {
			return ledgerDocument{}, fmt.Errorf("%w: %v", ErrDeserialize, err)
		}
		return ledgerDocument{Version: ledgerDocumentVersion, Transactions: txs}, nil
	case '{':
		var doc ledgerDocument
		if err := json.Unmarshal(trimmed, &doc); err != nil {
			return ledgerDocument{}, fmt.Errorf("%w: %v", ErrDeserialize, err)
		}
		if doc.Version != ledgerDocumentVersion {
			return ledgerDocument{}, fmt.Errorf("%w: unsupported ledger version %q", ErrDeserialize, doc.Version)
		}
		if doc.NextSeq < 0 {
			return ledgerDocument{}, fmt.Errorf("%w: negative next_seq", ErrDeserialize)
		}
		return doc, nil
	default:
		return ledgerDocument{}, fmt.Errorf("%w: unexpected ledger payload", ErrDeserialize)
	}
}

// decodeCatalogDocument accepts the versioned document or a bare item array.
func decodeCatalogDocument(raw []byte) (catalogDocument, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return catalogDocument{}, fmt.Errorf("%w: empty catalog document", ErrDeserialize)
	}
	switch trimmed[0] {
	case '[':
		var items []SnapshotItem
		if err := json.Unmarshal(trimmed, &items); err != nil {
			return catalogDocument{}, fmt.Errorf("%w: %v", ErrDeserialize, err)
		}
		return catalogDocument{Version: catalogDocumentVersion, Items: items}, nil
	case '{':
		var doc catalogDocument
		if err := json.Unmarshal(trimmed, &doc); err != nil {
			return catalogDocument{}, fmt.Errorf("%w: %v", ErrDeserialize, err)
		}
		if doc.Version != catalogDocumentVersion {
			return catalogDocument{}, fmt.Errorf("%w: unsupported catalog version %q", ErrDeserialize, doc.Version)
		}
		if doc.NextSeq < 0 {
			return catalogDocument{}, fmt.Errorf("%w: negative next_seq", ErrDeserialize)
		}
		return doc, nil
	default:
		return catalogDocument{}, fmt.Errorf("%w: unexpected catalog payload", ErrDeserialize)
	}
}

func encodeLedgerDocument(nextSeq int64, txs []domain.Transaction) ([]byte, error) {
	doc := ledgerDocument{
		Version:      ledgerDocumentVersion,
		NextSeq:      nextSeq,
		Transactions: snapshotTransactionsFromDomain(txs),
	}
	encoded, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("encode ledger document: %w", err)
	}
	return encoded, nil
}

func encodeCatalogDocument(nextSeq int64, items []domain.Item) ([]byte, error) {
	doc := catalogDocument{
		Version: catalogDocumentVersion,
		NextSeq: nextSeq,
		Items:   snapshotItemsFromDomain(items),
	}
	encoded, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("encode catalog document: %w", err)
	}
	return encoded, nil
}

func snapshotTransactionFromDomain(t domain.Transaction) SnapshotTransaction {
	return SnapshotTransaction{
		ID:       t.ID,
		Type:     t.Direction,
		Item:     t.ItemName,
		ItemID:   t.ItemID,
		Quantity: t.Quantity,
		Date:     t.Date,
		Operator: t.Operator,
		Notes:    t.Notes,
	}
}

func snapshotTransactionsFromDomain(txs []domain.Transaction) []SnapshotTransaction {
	out := make([]SnapshotTransaction, 0, len(txs))
	for _, tx := range txs {
		out = append(out, snapshotTransactionFromDomain(tx))
	}
	return out
}

func snapshotItemFromDomain(i domain.Item) SnapshotItem {
	return SnapshotItem{
		ID:          i.ID,
		Name:        i.Name,
		Category:    i.Category,
		Stock:       i.Stock,
		MinStock:    i.MinStock,
		Location:    i.Location,
		Description: i.Description,
		LastUpdated: i.LastUpdated.UTC(),
		Status:      i.Status,
	}
}

func snapshotItemsFromDomain(items []domain.Item) []SnapshotItem {
	out := make([]SnapshotItem, 0, len(items))
	for _, item := range items {
		out = append(out, snapshotItemFromDomain(item))
	}
	return out
}

// toDomain converts a stored transaction without enforcing field rules.
func (t SnapshotTransaction) toDomain() domain.Transaction {
	return domain.BuildTransaction(t.ID, domain.TransactionInput{
		Direction: t.Type,
		ItemName:  t.Item,
		ItemID:    t.ItemID,
		Quantity:  t.Quantity,
		Date:      t.Date,
		Operator:  t.Operator,
		Notes:     t.Notes,
	})
}

// toDomain converts a stored item, recomputing status when the stored one is unknown.
func (i SnapshotItem) toDomain() domain.Item {
	status := i.Status
	switch status {
	case domain.StockCritical, domain.StockLow, domain.StockNormal, domain.StockGood:
	default:
		status = domain.ClassifyStock(i.Stock, i.MinStock)
	}
	return domain.Item{
		ID:          strings.TrimSpace(i.ID),
		Name:        strings.TrimSpace(i.Name),
		Category:    strings.TrimSpace(i.Category),
		Stock:       i.Stock,
		MinStock:    i.MinStock,
		Location:    strings.TrimSpace(i.Location),
		Description: strings.TrimSpace(i.Description),
		LastUpdated: i.LastUpdated.UTC(),
		Status:      status,
	}
}

func transactionsFromSnapshot(in []SnapshotTransaction) []domain.Transaction {
	out := make([]domain.Transaction, 0, len(in))
	for _, tx := range in {
		out = append(out, tx.toDomain())
	}
	return out
}

func itemsFromSnapshot(in []SnapshotItem) []domain.Item {
	out := make([]domain.Item, 0, len(in))
	for _, item := range in {
		out = append(out, item.toDomain())
	}
	return out
}
