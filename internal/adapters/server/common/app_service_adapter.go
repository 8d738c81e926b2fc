package common

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/hylla/gudang/internal/app"
	"github.com/hylla/gudang/internal/domain"
)

// AppServiceAdapter maps transport contracts onto app.Service ledger and catalog APIs.
type AppServiceAdapter struct {
	service *app.Service
}

// NewAppServiceAdapter builds one common adapter over an app.Service instance.
func NewAppServiceAdapter(service *app.Service) *AppServiceAdapter {
	return &AppServiceAdapter{service: service}
}

// RecordTransaction records one movement. A persist failure still returns the recorded transaction.
func (a *AppServiceAdapter) RecordTransaction(ctx context.Context, in domain.TransactionInput) (domain.Transaction, error) {
	if err := a.ready(); err != nil {
		return domain.Transaction{}, err
	}
	tx, err := a.service.RecordTransaction(ctx, in)
	return tx, mapAppError("record transaction", err)
}

// AmendTransaction replaces one transaction by id.
func (a *AppServiceAdapter) AmendTransaction(ctx context.Context, id string, in domain.TransactionInput) (domain.Transaction, error) {
	if err := a.ready(); err != nil {
		return domain.Transaction{}, err
	}
	if strings.TrimSpace(id) == "" {
		return domain.Transaction{}, fmt.Errorf("id is required: %w", ErrInvalidRequest)
	}
	tx, err := a.service.AmendTransaction(ctx, id, in)
	return tx, mapAppError("amend transaction", err)
}

// RemoveTransaction deletes one transaction by id.
func (a *AppServiceAdapter) RemoveTransaction(ctx context.Context, id string) (domain.Transaction, error) {
	if err := a.ready(); err != nil {
		return domain.Transaction{}, err
	}
	if strings.TrimSpace(id) == "" {
		return domain.Transaction{}, fmt.Errorf("id is required: %w", ErrInvalidRequest)
	}
	tx, err := a.service.RemoveTransaction(ctx, id)
	return tx, mapAppError("remove transaction", err)
}

// GetTransaction returns one transaction by id.
func (a *AppServiceAdapter) GetTransaction(ctx context.Context, id string) (domain.Transaction, error) {
	if err := a.ready(); err != nil {
		return domain.Transaction{}, err
	}
	tx, err := a.service.GetTransaction(ctx, id)
	return tx, mapAppError("get transaction", err)
}

// ListTransactions returns the log in storage order.
func (a *AppServiceAdapter) ListTransactions(ctx context.Context) ([]domain.Transaction, error) {
	if err := a.ready(); err != nil {
		return nil, err
	}
	txs, err := a.service.ListTransactions(ctx)
	return txs, mapAppError("list transactions", err)
}

// Inventory returns the derived stock snapshot.
func (a *AppServiceAdapter) Inventory(ctx context.Context) ([]domain.InventoryEntry, error) {
	if err := a.ready(); err != nil {
		return nil, err
	}
	entries, err := a.service.Inventory(ctx)
	return entries, mapAppError("inventory", err)
}

// TransactionsInRange parses the bounds and returns the range report.
func (a *AppServiceAdapter) TransactionsInRange(ctx context.Context, in RangeRequest) (RangeReport, error) {
	if err := a.ready(); err != nil {
		return RangeReport{}, err
	}
	start, err := app.ParseDateBound("start", in.Start)
	if err != nil {
		return RangeReport{}, mapAppError("report range", err)
	}
	end, err := app.ParseDateBound("end", in.End)
	if err != nil {
		return RangeReport{}, mapAppError("report range", err)
	}
	txs, err := a.service.TransactionsInRange(ctx, start, end)
	if err != nil {
		return RangeReport{}, mapAppError("report range", err)
	}
	return RangeReport{
		Start:        start.String(),
		End:          end.String(),
		Count:        len(txs),
		Transactions: txs,
	}, nil
}

// MonthlySummary parses month and year and returns the summary.
func (a *AppServiceAdapter) MonthlySummary(ctx context.Context, in MonthlyRequest) (domain.MonthlySummary, error) {
	if err := a.ready(); err != nil {
		return domain.MonthlySummary{}, err
	}
	month, year, err := app.ParseMonthYear(in.Month, in.Year)
	if err != nil {
		return domain.MonthlySummary{}, mapAppError("monthly summary", err)
	}
	summary, err := a.service.MonthlySummary(ctx, month, year)
	return summary, mapAppError("monthly summary", err)
}

// RecentTransactions returns the newest transactions; limit <= 0 uses the configured default.
func (a *AppServiceAdapter) RecentTransactions(ctx context.Context, limit int) ([]domain.Transaction, error) {
	if err := a.ready(); err != nil {
		return nil, err
	}
	txs, err := a.service.RecentTransactions(ctx, limit)
	return txs, mapAppError("recent transactions", err)
}

// ListItems lists catalog items, filtered by category or search text when given.
func (a *AppServiceAdapter) ListItems(ctx context.Context, in ItemListRequest) ([]domain.Item, error) {
	if err := a.ready(); err != nil {
		return nil, err
	}
	var (
		items []domain.Item
		err   error
	)
	switch {
	case strings.TrimSpace(in.Query) != "":
		items, err = a.service.SearchItems(ctx, in.Query)
		if err == nil && strings.TrimSpace(in.Category) != "" {
			items = filterCategory(items, strings.TrimSpace(in.Category))
		}
	case strings.TrimSpace(in.Category) != "":
		items, err = a.service.ItemsByCategory(ctx, strings.TrimSpace(in.Category))
	default:
		items, err = a.service.ListItems(ctx)
	}
	return items, mapAppError("list items", err)
}

// GetItem returns one catalog item.
func (a *AppServiceAdapter) GetItem(ctx context.Context, id string) (domain.Item, error) {
	if err := a.ready(); err != nil {
		return domain.Item{}, err
	}
	item, err := a.service.GetItem(ctx, id)
	return item, mapAppError("get item", err)
}

// AddItem creates a catalog item.
func (a *AppServiceAdapter) AddItem(ctx context.Context, in domain.ItemInput) (domain.Item, error) {
	if err := a.ready(); err != nil {
		return domain.Item{}, err
	}
	item, err := a.service.AddItem(ctx, in)
	return item, mapAppError("add item", err)
}

// UpdateItem patches a catalog item.
func (a *AppServiceAdapter) UpdateItem(ctx context.Context, id string, patch domain.ItemPatch) (domain.Item, error) {
	if err := a.ready(); err != nil {
		return domain.Item{}, err
	}
	item, err := a.service.UpdateItem(ctx, id, patch)
	return item, mapAppError("update item", err)
}

// DeleteItem removes a catalog item.
func (a *AppServiceAdapter) DeleteItem(ctx context.Context, id string) error {
	if err := a.ready(); err != nil {
		return err
	}
	return mapAppError("delete item", a.service.DeleteItem(ctx, id))
}

// LowStockItems lists low and critical items.
func (a *AppServiceAdapter) LowStockItems(ctx context.Context) ([]domain.Item, error) {
	if err := a.ready(); err != nil {
		return nil, err
	}
	items, err := a.service.LowStockItems(ctx)
	return items, mapAppError("low stock items", err)
}

// CriticalStockItems lists critical items.
func (a *AppServiceAdapter) CriticalStockItems(ctx context.Context) ([]domain.Item, error) {
	if err := a.ready(); err != nil {
		return nil, err
	}
	items, err := a.service.CriticalStockItems(ctx)
	return items, mapAppError("critical stock items", err)
}

// Dashboard returns catalog statistics with the head of the log.
func (a *AppServiceAdapter) Dashboard(ctx context.Context) (app.Dashboard, error) {
	if err := a.ready(); err != nil {
		return app.Dashboard{}, err
	}
	dash, err := a.service.Dashboard(ctx)
	return dash, mapAppError("dashboard", err)
}

// ListActivity returns recent change events.
func (a *AppServiceAdapter) ListActivity(ctx context.Context, limit int) ([]domain.ChangeEvent, error) {
	if err := a.ready(); err != nil {
		return nil, err
	}
	events, err := a.service.ListActivity(ctx, limit)
	return events, mapAppError("list activity", err)
}

func (a *AppServiceAdapter) ready() error {
	if a == nil || a.service == nil {
		return fmt.Errorf("app service adapter is not configured: %w", ErrInvalidRequest)
	}
	return nil
}

func filterCategory(items []domain.Item, category string) []domain.Item {
	out := make([]domain.Item, 0, len(items))
	for _, item := range items {
		if item.Category == category {
			out = append(out, item)
		}
	}
	return out
}

// mapAppError joins the transport sentinel matching an app or domain error.
func mapAppError(operation string, err error) error {
	if err == nil {
		return nil
	}

	switch {
	case errors.Is(err, app.ErrNotFound):
		return fmt.Errorf("%s: %w", operation, errors.Join(ErrNotFound, err))
	case errors.Is(err, app.ErrValidation), errors.Is(err, app.ErrInvalidSnapshot):
		return fmt.Errorf("%s: %w", operation, errors.Join(ErrInvalidRequest, err))
	case errors.Is(err, domain.ErrInvalidID),
		errors.Is(err, domain.ErrInvalidName),
		errors.Is(err, domain.ErrInvalidItemName),
		errors.Is(err, domain.ErrInvalidDirection),
		errors.Is(err, domain.ErrInvalidQuantity),
		errors.Is(err, domain.ErrInvalidDate),
		errors.Is(err, domain.ErrInvalidMonth),
		errors.Is(err, domain.ErrInvalidStock),
		errors.Is(err, domain.ErrInvalidCategory):
		return fmt.Errorf("%s: %w", operation, errors.Join(ErrInvalidRequest, err))
	case errors.Is(err, app.ErrPersist):
		return fmt.Errorf("%s: %w", operation, errors.Join(ErrPersist, err))
	case errors.Is(err, app.ErrActivityUnavailable):
		return fmt.Errorf("%s: %w", operation, errors.Join(ErrActivityUnavailable, err))
	default:
		return fmt.Errorf("%s: %w", operation, err)
	}
}
