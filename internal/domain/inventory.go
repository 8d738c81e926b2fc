package domain

import "strings"

// LastUpdatedPolicy selects how an inventory entry's LastUpdated date is chosen.
type LastUpdatedPolicy string

const (
	// LastUpdatedOverwrite assigns every visited transaction's date in storage order,
	// so the entry ends with the date of the oldest-stored record for the item.
	LastUpdatedOverwrite LastUpdatedPolicy = "overwrite"
	// LastUpdatedLatest keeps the maximum transaction date seen for the item.
	LastUpdatedLatest LastUpdatedPolicy = "latest"
)

// Valid reports whether the policy is known.
func (p LastUpdatedPolicy) Valid() bool {
	switch p {
	case LastUpdatedOverwrite, LastUpdatedLatest:
		return true
	default:
		return false
	}
}

// NormalizeLastUpdatedPolicy maps empty or unknown values to the overwrite policy.
func NormalizeLastUpdatedPolicy(raw string) LastUpdatedPolicy {
	p := LastUpdatedPolicy(strings.ToLower(strings.TrimSpace(raw)))
	if !p.Valid() {
		return LastUpdatedOverwrite
	}
	return p
}

// InventoryEntry is the derived per-item stock position.
type InventoryEntry struct {
	ItemName     string `json:"name"`
	CurrentStock int    `json:"current_stock"`
	LastUpdated  Date   `json:"last_updated"`
	TotalIn      int    `json:"total_in"`
	TotalOut     int    `json:"total_out"`
}

// DeriveInventory folds the log, in storage order, into one entry per item name.
// Entries are returned in first-sighting order and CurrentStock is never clamped.
func DeriveInventory(txs []Transaction, policy LastUpdatedPolicy) []InventoryEntry {
	policy = NormalizeLastUpdatedPolicy(string(policy))
	index := make(map[string]int, len(txs))
	out := make([]InventoryEntry, 0)
	for _, tx := range txs {
		pos, ok := index[tx.ItemName]
		if !ok {
			out = append(out, InventoryEntry{
				ItemName:    tx.ItemName,
				LastUpdated: tx.Date,
			})
			pos = len(out) - 1
			index[tx.ItemName] = pos
		}
		entry := &out[pos]
		if tx.Direction == DirectionIn {
			entry.TotalIn += tx.Quantity
			entry.CurrentStock += tx.Quantity
		} else {
			entry.TotalOut += tx.Quantity
			entry.CurrentStock -= tx.Quantity
		}
		switch policy {
		case LastUpdatedLatest:
			if tx.Date > entry.LastUpdated {
				entry.LastUpdated = tx.Date
			}
		default:
			entry.LastUpdated = tx.Date
		}
	}
	return out
}
