package redisstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/hylla/gudang/internal/app"
	"github.com/hylla/gudang/internal/domain"
	"github.com/redis/go-redis/v9"
)

const (
	defaultKeyPrefix     = "gudang"
	changeEventsKey      = "change_events"
	changeEventSeqKey    = "change_events:seq"
	defaultEventLimit    = 50
	defaultMaxEventCount = 1000
)

type cmdable interface {
	Ping(context.Context) *redis.StatusCmd
	Get(context.Context, string) *redis.StringCmd
	Set(context.Context, string, any, time.Duration) *redis.StatusCmd
	Del(context.Context, ...string) *redis.IntCmd
	Incr(context.Context, string) *redis.IntCmd
	LPush(context.Context, string, ...any) *redis.IntCmd
	LTrim(context.Context, string, int64, int64) *redis.StatusCmd
	LRange(context.Context, string, int64, int64) *redis.StringSliceCmd
}

// Config describes how to reach redis.
type Config struct {
	URL         string
	Addr        string
	Password    string
	DB          int
	KeyPrefix   string
	DialTimeout time.Duration
	MaxEvents   int64
}

// Store keeps ledger documents and change events in redis.
type Store struct {
	client    cmdable
	raw       *redis.Client
	keyPrefix string
	maxEvents int64
	now       func() time.Time
}

// New bootstraps a redis client and verifies connectivity.
func New(ctx context.Context, cfg Config) (*Store, error) {
	opts, err := optionsFromConfig(cfg)
	if err != nil {
		return nil, err
	}
	raw := redis.NewClient(opts)
	if err := raw.Ping(ctx).Err(); err != nil {
		_ = raw.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	store := newStore(raw, cfg)
	store.raw = raw
	return store, nil
}

func newStore(client cmdable, cfg Config) *Store {
	prefix := strings.Trim(strings.TrimSpace(cfg.KeyPrefix), ":")
	if prefix == "" {
		prefix = defaultKeyPrefix
	}
	maxEvents := cfg.MaxEvents
	if maxEvents <= 0 {
		maxEvents = defaultMaxEventCount
	}
	return &Store{
		client:    client,
		keyPrefix: prefix,
		maxEvents: maxEvents,
		now:       time.Now,
	}
}

func optionsFromConfig(cfg Config) (*redis.Options, error) {
	if cfg.URL == "" && cfg.Addr == "" {
		return nil, errors.New("redis url or address is required")
	}
	var opts *redis.Options
	if cfg.URL != "" {
		parsed, err := redis.ParseURL(cfg.URL)
		if err != nil {
			return nil, fmt.Errorf("parsing redis url: %w", err)
		}
		opts = parsed
	} else {
		opts = &redis.Options{
			Addr:     cfg.Addr,
			Password: cfg.Password,
			DB:       cfg.DB,
		}
	}
	if opts.DB == 0 {
		opts.DB = cfg.DB
	}
	if opts.DialTimeout == 0 {
		opts.DialTimeout = cfg.DialTimeout
	}
	return opts, nil
}

// Load returns the document stored under key.
func (s *Store) Load(ctx context.Context, key string) ([]byte, error) {
	value, err := s.client.Get(ctx, s.key(key)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, app.ErrKeyNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load %q: %w", key, err)
	}
	return []byte(value), nil
}

// Save replaces the document stored under key. Documents never expire.
func (s *Store) Save(ctx context.Context, key string, data []byte) error {
	if err := s.client.Set(ctx, s.key(key), string(data), 0).Err(); err != nil {
		return fmt.Errorf("save %q: %w", key, err)
	}
	return nil
}

// Delete removes the document stored under key.
func (s *Store) Delete(ctx context.Context, key string) error {
	removed, err := s.client.Del(ctx, s.key(key)).Result()
	if err != nil {
		return fmt.Errorf("delete %q: %w", key, err)
	}
	if removed == 0 {
		return app.ErrKeyNotFound
	}
	return nil
}

// AppendChangeEvent pushes an event onto the capped activity list.
func (s *Store) AppendChangeEvent(ctx context.Context, event domain.ChangeEvent) error {
	id, err := s.client.Incr(ctx, s.key(changeEventSeqKey)).Result()
	if err != nil {
		return fmt.Errorf("allocate change event id: %w", err)
	}
	event.ID = id
	if event.OccurredAt.IsZero() {
		event.OccurredAt = s.now()
	}
	event.OccurredAt = event.OccurredAt.UTC()
	if event.Metadata == nil {
		event.Metadata = map[string]string{}
	}
	encoded, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode change event: %w", err)
	}
	listKey := s.key(changeEventsKey)
	if err := s.client.LPush(ctx, listKey, string(encoded)).Err(); err != nil {
		return fmt.Errorf("push change event: %w", err)
	}
	if err := s.client.LTrim(ctx, listKey, 0, s.maxEvents-1).Err(); err != nil {
		return fmt.Errorf("trim change events: %w", err)
	}
	return nil
}

// ListChangeEvents returns up to limit events, newest first.
func (s *Store) ListChangeEvents(ctx context.Context, limit int) ([]domain.ChangeEvent, error) {
	if limit <= 0 {
		limit = defaultEventLimit
	}
	raw, err := s.client.LRange(ctx, s.key(changeEventsKey), 0, int64(limit)-1).Result()
	if err != nil {
		return nil, fmt.Errorf("list change events: %w", err)
	}
	out := make([]domain.ChangeEvent, 0, len(raw))
	for _, item := range raw {
		var event domain.ChangeEvent
		if err := json.Unmarshal([]byte(item), &event); err != nil {
			return nil, fmt.Errorf("decode change event: %w", err)
		}
		if event.Metadata == nil {
			event.Metadata = map[string]string{}
		}
		out = append(out, event)
	}
	return out, nil
}

// Ping verifies the redis connection.
func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Close shuts down the underlying client if available.
func (s *Store) Close() error {
	if s.raw == nil {
		return nil
	}
	return s.raw.Close()
}

func (s *Store) key(name string) string {
	return s.keyPrefix + ":" + strings.TrimSpace(name)
}
