package domain

import (
	"slices"
	"strings"
	"time"
)

// Direction describes whether a transaction moves stock into or out of the warehouse.
type Direction string

const (
	DirectionIn  Direction = "in"
	DirectionOut Direction = "out"
)

var validDirections = []Direction{DirectionIn, DirectionOut}

// Valid reports whether the direction is one of the known values.
func (d Direction) Valid() bool {
	return slices.Contains(validDirections, d)
}

// dateLayout is the ISO calendar-date layout used by every stored date.
const dateLayout = "2006-01-02"

// Date is an ISO YYYY-MM-DD calendar date. Lexicographic order equals calendar order.
type Date string

// ParseDate validates and normalizes one ISO calendar date.
func ParseDate(raw string) (Date, error) {
	raw = strings.TrimSpace(raw)
	if _, err := time.Parse(dateLayout, raw); err != nil {
		return "", ErrInvalidDate
	}
	return Date(raw), nil
}

// DateOf formats a timestamp as a calendar date in its own location.
func DateOf(t time.Time) Date {
	return Date(t.Format(dateLayout))
}

// Valid reports whether the date parses as YYYY-MM-DD.
func (d Date) Valid() bool {
	_, err := time.Parse(dateLayout, string(d))
	return err == nil
}

// YearMonth returns the calendar year and month, or zeros when the date is malformed.
func (d Date) YearMonth() (int, time.Month) {
	t, err := time.Parse(dateLayout, string(d))
	if err != nil {
		return 0, 0
	}
	return t.Year(), t.Month()
}

// String returns the raw date text.
func (d Date) String() string {
	return string(d)
}

// Transaction represents one goods movement recorded in the ledger.
type Transaction struct {
	ID        string    `json:"id"`
	Direction Direction `json:"type"`
	ItemName  string    `json:"item"`
	ItemID    string    `json:"item_id,omitempty"`
	Quantity  int       `json:"quantity"`
	Date      Date      `json:"date"`
	Operator  string    `json:"operator"`
	Notes     string    `json:"notes,omitempty"`
}

// TransactionInput holds caller-supplied transaction fields; the ledger assigns the id.
type TransactionInput struct {
	Direction Direction `json:"type" validate:"required,oneof=in out"`
	ItemName  string    `json:"item" validate:"required,max=200"`
	ItemID    string    `json:"item_id,omitempty" validate:"max=64"`
	Quantity  int       `json:"quantity" validate:"gte=0"`
	Date      Date      `json:"date" validate:"required,isodate"`
	Operator  string    `json:"operator" validate:"max=120"`
	Notes     string    `json:"notes,omitempty" validate:"max=1000"`
}

// NewTransaction validates input and builds a transaction with the supplied id.
func NewTransaction(id string, in TransactionInput) (Transaction, error) {
	tx := BuildTransaction(id, in)
	if tx.ID == "" {
		return Transaction{}, ErrInvalidID
	}
	if !tx.Direction.Valid() {
		return Transaction{}, ErrInvalidDirection
	}
	if tx.ItemName == "" {
		return Transaction{}, ErrInvalidItemName
	}
	if tx.Quantity < 0 {
		return Transaction{}, ErrInvalidQuantity
	}
	if !tx.Date.Valid() {
		return Transaction{}, ErrInvalidDate
	}
	return tx, nil
}

// BuildTransaction normalizes input without enforcing field rules.
func BuildTransaction(id string, in TransactionInput) Transaction {
	return Transaction{
		ID:        strings.TrimSpace(id),
		Direction: Direction(strings.ToLower(strings.TrimSpace(string(in.Direction)))),
		ItemName:  strings.TrimSpace(in.ItemName),
		ItemID:    strings.TrimSpace(in.ItemID),
		Quantity:  in.Quantity,
		Date:      Date(strings.TrimSpace(string(in.Date))),
		Operator:  strings.TrimSpace(in.Operator),
		Notes:     strings.TrimSpace(in.Notes),
	}
}

// Input returns the caller-editable fields of the transaction.
func (t Transaction) Input() TransactionInput {
	return TransactionInput{
		Direction: t.Direction,
		ItemName:  t.ItemName,
		ItemID:    t.ItemID,
		Quantity:  t.Quantity,
		Date:      t.Date,
		Operator:  t.Operator,
		Notes:     t.Notes,
	}
}

// StockDelta returns the signed stock effect of the transaction.
func (t Transaction) StockDelta() int {
	if t.Direction == DirectionIn {
		return t.Quantity
	}
	return -t.Quantity
}
