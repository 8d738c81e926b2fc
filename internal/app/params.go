package app

import (
	"strconv"
	"strings"
	"time"

	"github.com/hylla/gudang/internal/domain"
)

// ParseMonthYear parses textual month (1-12) and year values.
func ParseMonthYear(monthRaw, yearRaw string) (time.Month, int, error) {
	month, err := strconv.Atoi(strings.TrimSpace(monthRaw))
	if err != nil || month < 1 || month > 12 {
		return 0, 0, &ValidationError{Fields: map[string]string{"month": "must be a number from 1 to 12"}, Err: domain.ErrInvalidMonth}
	}
	year, err := strconv.Atoi(strings.TrimSpace(yearRaw))
	if err != nil || year < 1 {
		return 0, 0, &ValidationError{Fields: map[string]string{"year": "must be a positive number"}, Err: domain.ErrInvalidDate}
	}
	return time.Month(month), year, nil
}

// ParseDateBound parses an optional range bound; empty input is unbounded.
func ParseDateBound(field, raw string) (domain.Date, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", nil
	}
	d, err := domain.ParseDate(raw)
	if err != nil {
		return "", &ValidationError{Fields: map[string]string{field: "must be a YYYY-MM-DD date"}, Err: err}
	}
	return d, nil
}
