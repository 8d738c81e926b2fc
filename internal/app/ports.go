package app

import (
	"context"

	"github.com/hylla/gudang/internal/domain"
)

// Store persists serialized documents under string keys.
// Load returns ErrKeyNotFound when nothing is stored under the key.
type Store interface {
	Load(ctx context.Context, key string) ([]byte, error)
	Save(ctx context.Context, key string, data []byte) error
}

// KeyDeleter is implemented by stores that can drop a stored document.
// Delete returns ErrKeyNotFound when nothing is stored under the key.
type KeyDeleter interface {
	Delete(ctx context.Context, key string) error
}

// ActivityRecorder keeps an append-only feed of ledger mutations.
type ActivityRecorder interface {
	AppendChangeEvent(context.Context, domain.ChangeEvent) error
	ListChangeEvents(ctx context.Context, limit int) ([]domain.ChangeEvent, error)
}

// ItemCatalog is the catalog surface the ledger keeps in step with its mutations.
type ItemCatalog interface {
	FindItem(ctx context.Context, id, name string) (domain.Item, bool)
	AdjustStock(ctx context.Context, id string, delta int) (domain.Item, error)
}

// Logger receives structured runtime events.
type Logger interface {
	Debug(msg string, keyvals ...any)
	Info(msg string, keyvals ...any)
	Warn(msg string, keyvals ...any)
	Error(msg string, keyvals ...any)
}

// Metrics receives ledger counters and gauges.
type Metrics interface {
	ObserveMutation(operation, outcome string)
	SetTransactionCount(n int)
	IncPersistFailure(key string)
	IncReseed(key string)
}

type nopLogger struct{}

func (nopLogger) Debug(string, ...any) {}
func (nopLogger) Info(string, ...any)  {}
func (nopLogger) Warn(string, ...any)  {}
func (nopLogger) Error(string, ...any) {}

type nopMetrics struct{}

func (nopMetrics) ObserveMutation(string, string) {}
func (nopMetrics) SetTransactionCount(int)        {}
func (nopMetrics) IncPersistFailure(string)       {}
func (nopMetrics) IncReseed(string)               {}
