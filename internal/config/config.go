package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	charmLog "github.com/charmbracelet/log"
	toml "github.com/pelletier/go-toml/v2"
)

// StorageBackend selects where ledger documents are kept.
type StorageBackend string

const (
	StorageSQLite StorageBackend = "sqlite"
	StorageRedis  StorageBackend = "redis"
)

type Config struct {
	Database  DatabaseConfig  `toml:"database"`
	Storage   StorageConfig   `toml:"storage"`
	Redis     RedisConfig     `toml:"redis"`
	Ledger    LedgerConfig    `toml:"ledger"`
	Inventory InventoryConfig `toml:"inventory"`
	Catalog   CatalogConfig   `toml:"catalog"`
	Logging   LoggingConfig   `toml:"logging"`
	Server    ServerConfig    `toml:"server"`
}

type DatabaseConfig struct {
	Path string `toml:"path"`
}

type StorageConfig struct {
	Backend StorageBackend `toml:"backend"`
}

type RedisConfig struct {
	Addr        string `toml:"addr"`
	URL         string `toml:"url"`
	Password    string `toml:"password"`
	DB          int    `toml:"db"`
	KeyPrefix   string `toml:"key_prefix"`
	DialTimeout string `toml:"dial_timeout"`
}

type LedgerConfig struct {
	LogKey      string `toml:"log_key"`
	IDScheme    string `toml:"id_scheme"` // sequence | uuid
	IDPrefix    string `toml:"id_prefix"`
	IDWidth     int    `toml:"id_width"`
	Validate    bool   `toml:"validate"`
	RecentLimit int    `toml:"recent_limit"`
}

type InventoryConfig struct {
	LastUpdated string `toml:"last_updated"` // overwrite | latest
}

type CatalogConfig struct {
	ItemsKey string `toml:"items_key"`
	IDPrefix string `toml:"id_prefix"`
}

type LoggingConfig struct {
	Level   string           `toml:"level"`
	DevFile DevFileLogConfig `toml:"dev_file"`
}

type DevFileLogConfig struct {
	Enabled bool   `toml:"enabled"`
	Dir     string `toml:"dir"`
}

type ServerConfig struct {
	HTTP            string `toml:"http"`
	APIEndpoint     string `toml:"api_endpoint"`
	MCPEndpoint     string `toml:"mcp_endpoint"`
	MetricsEndpoint string `toml:"metrics_endpoint"`
}

func Default(dbPath string) Config {
	return Config{
		Database: DatabaseConfig{
			Path: dbPath,
		},
		Storage: StorageConfig{
			Backend: StorageSQLite,
		},
		Redis: RedisConfig{
			Addr:        "127.0.0.1:6379",
			KeyPrefix:   "gudang",
			DialTimeout: "5s",
		},
		Ledger: LedgerConfig{
			LogKey:      "transactions",
			IDScheme:    "sequence",
			IDPrefix:    "TXN",
			IDWidth:     3,
			Validate:    true,
			RecentLimit: 10,
		},
		Inventory: InventoryConfig{
			LastUpdated: "overwrite",
		},
		Catalog: CatalogConfig{
			ItemsKey: "warehouse_items",
			IDPrefix: "WH",
		},
		Logging: LoggingConfig{
			Level: "info",
			DevFile: DevFileLogConfig{
				Enabled: true,
				Dir:     ".gudang/log",
			},
		},
		Server: ServerConfig{
			HTTP:            "127.0.0.1:8080",
			APIEndpoint:     "/api/v1",
			MCPEndpoint:     "/mcp",
			MetricsEndpoint: "/metrics",
		},
	}
}

func Load(path string, defaults Config) (Config, error) {
	cfg := defaults
	if strings.TrimSpace(path) == "" {
		return cfg, nil
	}

	content, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	if len(content) == 0 {
		return cfg, nil
	}

	if err := toml.Unmarshal(content, &cfg); err != nil {
		return Config{}, fmt.Errorf("decode toml: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func (c Config) Validate() error {
	switch c.Storage.Backend {
	case StorageSQLite, "":
		if strings.TrimSpace(c.Database.Path) == "" {
			return errors.New("database path is required")
		}
	case StorageRedis:
		if strings.TrimSpace(c.Redis.Addr) == "" && strings.TrimSpace(c.Redis.URL) == "" {
			return errors.New("redis.addr or redis.url is required for the redis backend")
		}
	default:
		return fmt.Errorf("invalid storage.backend: %q", c.Storage.Backend)
	}
	if c.Redis.DB < 0 {
		return fmt.Errorf("redis.db must be >= 0")
	}

	switch strings.TrimSpace(strings.ToLower(c.Ledger.IDScheme)) {
	case "", "sequence", "uuid":
	default:
		return fmt.Errorf("invalid ledger.id_scheme: %q", c.Ledger.IDScheme)
	}
	if c.Ledger.IDWidth < 0 || c.Ledger.IDWidth > 12 {
		return fmt.Errorf("ledger.id_width must be between 0 and 12")
	}
	if c.Ledger.RecentLimit < 0 {
		return fmt.Errorf("ledger.recent_limit must be >= 0")
	}
	if strings.TrimSpace(c.Ledger.LogKey) != "" && strings.TrimSpace(c.Ledger.LogKey) == strings.TrimSpace(c.Catalog.ItemsKey) {
		return fmt.Errorf("ledger.log_key and catalog.items_key must differ")
	}

	switch strings.TrimSpace(strings.ToLower(c.Inventory.LastUpdated)) {
	case "", "overwrite", "latest":
	default:
		return fmt.Errorf("invalid inventory.last_updated: %q", c.Inventory.LastUpdated)
	}

	if _, err := charmLog.ParseLevel(strings.TrimSpace(c.Logging.Level)); err != nil {
		return fmt.Errorf("invalid logging.level: %q", c.Logging.Level)
	}

	for name, endpoint := range map[string]string{
		"server.api_endpoint":     c.Server.APIEndpoint,
		"server.mcp_endpoint":     c.Server.MCPEndpoint,
		"server.metrics_endpoint": c.Server.MetricsEndpoint,
	} {
		endpoint = strings.TrimSpace(endpoint)
		if endpoint != "" && !strings.HasPrefix(endpoint, "/") {
			return fmt.Errorf("%s must start with /: %q", name, endpoint)
		}
	}

	return nil
}

func EnsureConfigDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}
