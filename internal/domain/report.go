package domain

import (
	"slices"
	"strings"
	"time"
)

// DefaultRecentLimit is the number of transactions returned by Recent when no limit is given.
const DefaultRecentLimit = 10

// MonthlySummary aggregates the transactions of one calendar month.
type MonthlySummary struct {
	Month        int           `json:"month"`
	Year         int           `json:"year"`
	TotalIn      int           `json:"total_in"`
	TotalOut     int           `json:"total_out"`
	NetChange    int           `json:"net_change"`
	Transactions []Transaction `json:"transactions"`
}

// FilterByDateRange keeps transactions with start <= date <= end and orders them newest first.
// An empty bound is unbounded. The input slice is not modified.
func FilterByDateRange(txs []Transaction, start, end Date) []Transaction {
	start = Date(strings.TrimSpace(string(start)))
	end = Date(strings.TrimSpace(string(end)))
	out := make([]Transaction, 0, len(txs))
	for _, tx := range txs {
		if start != "" && tx.Date < start {
			continue
		}
		if end != "" && tx.Date > end {
			continue
		}
		out = append(out, tx)
	}
	SortNewestFirst(out)
	return out
}

// SummarizeMonth totals the transactions dated in month/year, keeping log order.
func SummarizeMonth(txs []Transaction, month time.Month, year int) MonthlySummary {
	summary := MonthlySummary{
		Month:        int(month),
		Year:         year,
		Transactions: make([]Transaction, 0),
	}
	for _, tx := range txs {
		y, m := tx.Date.YearMonth()
		if m == 0 || m != month || y != year {
			continue
		}
		switch tx.Direction {
		case DirectionIn:
			summary.TotalIn += tx.Quantity
		case DirectionOut:
			summary.TotalOut += tx.Quantity
		}
		summary.Transactions = append(summary.Transactions, tx)
	}
	summary.NetChange = summary.TotalIn - summary.TotalOut
	return summary
}

// Recent returns up to limit transactions ordered newest first without touching the input order.
func Recent(txs []Transaction, limit int) []Transaction {
	if limit <= 0 {
		limit = DefaultRecentLimit
	}
	out := slices.Clone(txs)
	if out == nil {
		out = []Transaction{}
	}
	SortNewestFirst(out)
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}

// SortNewestFirst stably orders transactions by descending date; ties keep their relative order.
func SortNewestFirst(txs []Transaction) {
	slices.SortStableFunc(txs, func(a, b Transaction) int {
		return strings.Compare(string(b.Date), string(a.Date))
	})
}
