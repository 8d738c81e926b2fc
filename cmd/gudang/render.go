package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/hylla/gudang/internal/adapters/server/common"
	"github.com/hylla/gudang/internal/app"
	"github.com/hylla/gudang/internal/domain"
)

var (
	headerStyle   = lipgloss.NewStyle().Bold(true).Padding(0, 1)
	cellStyle     = lipgloss.NewStyle().Padding(0, 1)
	numberStyle   = cellStyle.Align(lipgloss.Right)
	titleStyle    = lipgloss.NewStyle().Bold(true)
	inStyle       = cellStyle.Foreground(lipgloss.Color("2"))
	outStyle      = cellStyle.Foreground(lipgloss.Color("1"))
	lowStyle      = cellStyle.Foreground(lipgloss.Color("3"))
	criticalStyle = cellStyle.Foreground(lipgloss.Color("1")).Bold(true)
)

// printer writes command results as tables or JSON.
type printer struct {
	out  io.Writer
	json bool
}

// emit writes v as indented JSON when JSON output is selected, otherwise calls render.
func (p printer) emit(v any, render func() string) error {
	if p.json {
		encoded, err := json.MarshalIndent(v, "", "  ")
		if err != nil {
			return fmt.Errorf("encode json output: %w", err)
		}
		_, err = fmt.Fprintln(p.out, string(encoded))
		return err
	}
	_, err := fmt.Fprintln(p.out, render())
	return err
}

// newTable builds a bordered table with a bold header and right-aligned numeric columns.
func newTable(headers []string, numeric map[int]bool, rows [][]string, styleRow func(row, col int) (lipgloss.Style, bool)) string {
	t := table.New().
		Border(lipgloss.NormalBorder()).
		Headers(headers...).
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			if styleRow != nil {
				if style, ok := styleRow(row, col); ok {
					return style
				}
			}
			if numeric[col] {
				return numberStyle
			}
			return cellStyle
		})
	return t.String()
}

func renderTransactions(txs []domain.Transaction) string {
	if len(txs) == 0 {
		return "no transactions"
	}
	rows := make([][]string, 0, len(txs))
	for _, tx := range txs {
		rows = append(rows, []string{
			tx.ID,
			string(tx.Direction),
			tx.ItemName,
			strconv.Itoa(tx.Quantity),
			tx.Date.String(),
			tx.Operator,
			tx.Notes,
		})
	}
	return newTable(
		[]string{"ID", "Type", "Item", "Qty", "Date", "Operator", "Notes"},
		map[int]bool{3: true},
		rows,
		func(row, col int) (lipgloss.Style, bool) {
			if col != 1 || row < 0 || row >= len(txs) {
				return lipgloss.Style{}, false
			}
			if txs[row].Direction == domain.DirectionIn {
				return inStyle, true
			}
			return outStyle, true
		},
	)
}

func renderTransaction(tx domain.Transaction) string {
	return renderTransactions([]domain.Transaction{tx})
}

func renderInventory(entries []domain.InventoryEntry) string {
	if len(entries) == 0 {
		return "inventory is empty"
	}
	rows := make([][]string, 0, len(entries))
	for _, entry := range entries {
		rows = append(rows, []string{
			entry.ItemName,
			strconv.Itoa(entry.CurrentStock),
			strconv.Itoa(entry.TotalIn),
			strconv.Itoa(entry.TotalOut),
			entry.LastUpdated.String(),
		})
	}
	return newTable(
		[]string{"Item", "Stock", "In", "Out", "Last Updated"},
		map[int]bool{1: true, 2: true, 3: true},
		rows,
		func(row, col int) (lipgloss.Style, bool) {
			if col == 1 && row >= 0 && row < len(entries) && entries[row].CurrentStock < 0 {
				return criticalStyle.Align(lipgloss.Right), true
			}
			return lipgloss.Style{}, false
		},
	)
}

func renderRangeReport(report common.RangeReport) string {
	start, end := report.Start, report.End
	if start == "" {
		start = "…"
	}
	if end == "" {
		end = "…"
	}
	title := titleStyle.Render(fmt.Sprintf("%s to %s: %d transaction(s)", start, end, report.Count))
	return title + "\n" + renderTransactions(report.Transactions)
}

func renderMonthlySummary(summary domain.MonthlySummary) string {
	title := titleStyle.Render(fmt.Sprintf("%s %d", time.Month(summary.Month), summary.Year))
	totals := newTable(
		[]string{"In", "Out", "Net"},
		map[int]bool{0: true, 1: true, 2: true},
		[][]string{{
			strconv.Itoa(summary.TotalIn),
			strconv.Itoa(summary.TotalOut),
			strconv.Itoa(summary.NetChange),
		}},
		nil,
	)
	return strings.Join([]string{title, totals, renderTransactions(summary.Transactions)}, "\n")
}

func renderItems(items []domain.Item) string {
	if len(items) == 0 {
		return "no items"
	}
	rows := make([][]string, 0, len(items))
	for _, item := range items {
		rows = append(rows, []string{
			item.ID,
			item.Name,
			item.Category,
			strconv.Itoa(item.Stock),
			strconv.Itoa(item.MinStock),
			item.Location,
			string(item.Status),
		})
	}
	return newTable(
		[]string{"ID", "Name", "Category", "Stock", "Min", "Location", "Status"},
		map[int]bool{3: true, 4: true},
		rows,
		func(row, col int) (lipgloss.Style, bool) {
			if col != 6 || row < 0 || row >= len(items) {
				return lipgloss.Style{}, false
			}
			switch items[row].Status {
			case domain.StockCritical:
				return criticalStyle, true
			case domain.StockLow:
				return lowStyle, true
			}
			return lipgloss.Style{}, false
		},
	)
}

func renderItem(item domain.Item) string {
	return renderItems([]domain.Item{item})
}

func renderDashboard(dash app.Dashboard) string {
	stats := newTable(
		[]string{"Items", "Stock", "Low", "Critical", "Categories"},
		map[int]bool{0: true, 1: true, 2: true, 3: true},
		[][]string{{
			strconv.Itoa(dash.TotalItems),
			strconv.Itoa(dash.TotalStock),
			strconv.Itoa(dash.LowStockItems),
			strconv.Itoa(dash.CriticalStockItems),
			strings.Join(dash.Categories, ", "),
		}},
		nil,
	)
	return strings.Join([]string{
		stats,
		titleStyle.Render("Recent transactions"),
		renderTransactions(dash.RecentTransactions),
	}, "\n")
}

func renderActivity(events []domain.ChangeEvent) string {
	if len(events) == 0 {
		return "no activity"
	}
	rows := make([][]string, 0, len(events))
	for _, event := range events {
		rows = append(rows, []string{
			event.OccurredAt.UTC().Format(time.RFC3339),
			string(event.Operation),
			event.TransactionID,
			event.ItemName,
		})
	}
	return newTable([]string{"When", "Operation", "Transaction", "Item"}, nil, rows, nil)
}
