package app

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// IDScheme selects how the ledger assigns transaction ids.
type IDScheme string

const (
	IDSchemeSequence IDScheme = "sequence"
	IDSchemeUUID     IDScheme = "uuid"
)

// IDGenerator returns unique identifiers for new entities.
type IDGenerator func() string

// Clock returns the current time.
type Clock func() time.Time

// formatSequenceID renders prefix plus a zero-padded counter value.
func formatSequenceID(prefix string, width int, seq int64) string {
	if width <= 0 {
		return prefix + strconv.FormatInt(seq, 10)
	}
	return fmt.Sprintf("%s%0*d", prefix, width, seq)
}

// sequenceSuffix parses the numeric tail of a prefixed id.
func sequenceSuffix(prefix, id string) (int64, bool) {
	if !strings.HasPrefix(id, prefix) {
		return 0, false
	}
	n, err := strconv.ParseInt(strings.TrimPrefix(id, prefix), 10, 64)
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}

// nextSequenceAfter returns a counter value past both the count and every prefixed numeric id.
func nextSequenceAfter(prefix string, stored int64, ids []string) int64 {
	next := int64(len(ids)) + 1
	for _, id := range ids {
		if n, ok := sequenceSuffix(prefix, id); ok && n+1 > next {
			next = n + 1
		}
	}
	if stored > next {
		next = stored
	}
	return next
}
