package domain

import "time"

// SeedTransactions returns the starter log, most recent first.
func SeedTransactions() []Transaction {
	return []Transaction{
		{
			ID:        "TXN001",
			Direction: DirectionIn,
			ItemName:  "Kabel XLPE 150mm",
			ItemID:    "KB001",
			Quantity:  20,
			Date:      "2024-01-15",
			Operator:  "Ahmad Rizki",
			Notes:     "Pengadaan rutin Q1",
		},
		{
			ID:        "TXN002",
			Direction: DirectionOut,
			ItemName:  "Isolator Keramik 20kV",
			ItemID:    "IS002",
			Quantity:  5,
			Date:      "2024-01-14",
			Operator:  "Siti Nurhaliza",
			Notes:     "Proyek Gardu Induk Cibinong",
		},
		{
			ID:        "TXN003",
			Direction: DirectionIn,
			ItemName:  "Trafo Distribusi 400kVA",
			ItemID:    "TR003",
			Quantity:  2,
			Date:      "2024-01-13",
			Operator:  "Budi Santoso",
			Notes:     "Pengadaan khusus",
		},
		{
			ID:        "TXN004",
			Direction: DirectionOut,
			ItemName:  "Panel Distribusi 20kV",
			ItemID:    "PN004",
			Quantity:  3,
			Date:      "2024-01-12",
			Operator:  "Maya Sari",
			Notes:     "Maintenance rutin",
		},
	}
}

// SeedItems returns the starter catalog stamped with now.
func SeedItems(now time.Time) []Item {
	now = now.UTC()
	items := []Item{
		{
			ID:          "KB001",
			Name:        "Kabel XLPE 150mm",
			Category:    "Kabel",
			Stock:       45,
			MinStock:    20,
			Location:    "Rak A-01",
			Description: "Kabel XLPE untuk distribusi tegangan menengah",
		},
		{
			ID:          "IS002",
			Name:        "Isolator Keramik 20kV",
			Category:    "Isolator",
			Stock:       8,
			MinStock:    15,
			Location:    "Rak B-02",
			Description: "Isolator keramik untuk gardu distribusi",
		},
		{
			ID:          "TR003",
			Name:        "Trafo Distribusi 400kVA",
			Category:    "Trafo",
			Stock:       3,
			MinStock:    2,
			Location:    "Area C",
			Description: "Trafo distribusi 20kV/0.4kV",
		},
		{
			ID:          "PN004",
			Name:        "Panel Distribusi 20kV",
			Category:    "Panel",
			Stock:       12,
			MinStock:    5,
			Location:    "Area D",
			Description: "Panel kontrol dan proteksi distribusi",
		},
	}
	for idx := range items {
		items[idx].LastUpdated = now
		items[idx].Status = ClassifyStock(items[idx].Stock, items[idx].MinStock)
	}
	return items
}
