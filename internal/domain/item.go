package domain

import (
	"strings"
	"time"
)

// StockStatus classifies an item's stock against its minimum level.
type StockStatus string

const (
	StockCritical StockStatus = "critical"
	StockLow      StockStatus = "low"
	StockNormal   StockStatus = "normal"
	StockGood     StockStatus = "good"
)

// ClassifyStock applies the thresholds in order: critical at half the minimum or less,
// low at the minimum or less, good at twice the minimum or more, otherwise normal.
func ClassifyStock(stock, minStock int) StockStatus {
	switch {
	case 2*stock <= minStock:
		return StockCritical
	case stock <= minStock:
		return StockLow
	case stock >= 2*minStock:
		return StockGood
	default:
		return StockNormal
	}
}

// Item represents one warehouse catalog entry.
type Item struct {
	ID          string      `json:"id"`
	Name        string      `json:"name"`
	Category    string      `json:"category"`
	Stock       int         `json:"stock"`
	MinStock    int         `json:"min_stock"`
	Location    string      `json:"location"`
	Description string      `json:"description"`
	LastUpdated time.Time   `json:"last_updated"`
	Status      StockStatus `json:"status"`
}

// ItemInput holds the fields needed to add a catalog item.
type ItemInput struct {
	Name        string `json:"name" validate:"required,max=200"`
	Category    string `json:"category" validate:"required,max=100"`
	Stock       int    `json:"stock" validate:"gte=0"`
	MinStock    int    `json:"min_stock" validate:"gte=0"`
	Location    string `json:"location" validate:"max=100"`
	Description string `json:"description" validate:"max=1000"`
}

// ItemPatch carries a partial catalog update; nil fields are left unchanged.
type ItemPatch struct {
	Name        *string `json:"name,omitempty" validate:"omitempty,min=1,max=200"`
	Category    *string `json:"category,omitempty" validate:"omitempty,min=1,max=100"`
	Stock       *int    `json:"stock,omitempty" validate:"omitempty,gte=0"`
	MinStock    *int    `json:"min_stock,omitempty" validate:"omitempty,gte=0"`
	Location    *string `json:"location,omitempty" validate:"omitempty,max=100"`
	Description *string `json:"description,omitempty" validate:"omitempty,max=1000"`
}

// NewItem validates input and builds a catalog item.
func NewItem(id string, in ItemInput, now time.Time) (Item, error) {
	id = strings.TrimSpace(id)
	in.Name = strings.TrimSpace(in.Name)
	in.Category = strings.TrimSpace(in.Category)
	if id == "" {
		return Item{}, ErrInvalidID
	}
	if in.Name == "" {
		return Item{}, ErrInvalidName
	}
	if in.Category == "" {
		return Item{}, ErrInvalidCategory
	}
	if in.Stock < 0 || in.MinStock < 0 {
		return Item{}, ErrInvalidStock
	}
	return Item{
		ID:          id,
		Name:        in.Name,
		Category:    in.Category,
		Stock:       in.Stock,
		MinStock:    in.MinStock,
		Location:    strings.TrimSpace(in.Location),
		Description: strings.TrimSpace(in.Description),
		LastUpdated: now.UTC(),
		Status:      ClassifyStock(in.Stock, in.MinStock),
	}, nil
}

// Apply merges a patch into the item. Status is recomputed only when stock or minimum stock changes.
func (i Item) Apply(p ItemPatch, now time.Time) (Item, error) {
	if p.Name != nil {
		name := strings.TrimSpace(*p.Name)
		if name == "" {
			return Item{}, ErrInvalidName
		}
		i.Name = name
	}
	if p.Category != nil {
		category := strings.TrimSpace(*p.Category)
		if category == "" {
			return Item{}, ErrInvalidCategory
		}
		i.Category = category
	}
	if p.Location != nil {
		i.Location = strings.TrimSpace(*p.Location)
	}
	if p.Description != nil {
		i.Description = strings.TrimSpace(*p.Description)
	}
	if p.Stock != nil || p.MinStock != nil {
		if p.Stock != nil {
			if *p.Stock < 0 {
				return Item{}, ErrInvalidStock
			}
			i.Stock = *p.Stock
		}
		if p.MinStock != nil {
			if *p.MinStock < 0 {
				return Item{}, ErrInvalidStock
			}
			i.MinStock = *p.MinStock
		}
		i.Status = ClassifyStock(i.Stock, i.MinStock)
	}
	i.LastUpdated = now.UTC()
	return i, nil
}

// Matches reports whether query appears, case-insensitively, in the name, id, category, or location.
func (i Item) Matches(query string) bool {
	q := strings.ToLower(strings.TrimSpace(query))
	for _, field := range []string{i.Name, i.ID, i.Category, i.Location} {
		if strings.Contains(strings.ToLower(field), q) {
			return true
		}
	}
	return false
}

// NeedsRestock reports whether the item is low or critical.
func (i Item) NeedsRestock() bool {
	return i.Status == StockLow || i.Status == StockCritical
}
