package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestDefaultConfig(t *testing.T) {
	cfg := Default("/tmp/gudang.db")
	if cfg.Database.Path != "/tmp/gudang.db" {
		t.Fatalf("unexpected db path %q", cfg.Database.Path)
	}
	if cfg.Storage.Backend != StorageSQLite {
		t.Fatalf("unexpected storage backend %q", cfg.Storage.Backend)
	}
	if cfg.Ledger.IDScheme != "sequence" || cfg.Ledger.IDPrefix != "TXN" || cfg.Ledger.IDWidth != 3 {
		t.Fatalf("unexpected ledger defaults %+v", cfg.Ledger)
	}
	if !cfg.Ledger.Validate {
		t.Fatal("expected validation enabled by default")
	}
	if cfg.Inventory.LastUpdated != "overwrite" {
		t.Fatalf("unexpected last_updated policy %q", cfg.Inventory.LastUpdated)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate() default error = %v", err)
	}
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	defaults := Default("/tmp/gudang.db")
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.toml"), defaults)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Database.Path != defaults.Database.Path {
		t.Fatalf("expected default db path, got %q", cfg.Database.Path)
	}
}

func TestLoadFileOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	content := `
[database]
path = "/custom/gudang.db"

[storage]
backend = "redis"

[redis]
url = "redis://localhost:6379/1"
key_prefix = "wh"

[ledger]
id_scheme = "uuid"
validate = false
recent_limit = 25

[inventory]
last_updated = "latest"

[logging]
level = "debug"

[logging.dev_file]
enabled = false

[server]
http = "0.0.0.0:9090"
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	cfg, err := Load(path, Default("/tmp/default.db"))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Database.Path != "/custom/gudang.db" {
		t.Fatalf("unexpected db path %q", cfg.Database.Path)
	}
	if cfg.Storage.Backend != StorageRedis || cfg.Redis.URL != "redis://localhost:6379/1" || cfg.Redis.KeyPrefix != "wh" {
		t.Fatalf("unexpected storage config %+v %+v", cfg.Storage, cfg.Redis)
	}
	if cfg.Ledger.IDScheme != "uuid" || cfg.Ledger.Validate || cfg.Ledger.RecentLimit != 25 {
		t.Fatalf("unexpected ledger config %+v", cfg.Ledger)
	}
	if cfg.Ledger.IDPrefix != "TXN" {
		t.Fatalf("expected untouched keys to keep defaults, got prefix %q", cfg.Ledger.IDPrefix)
	}
	if cfg.Inventory.LastUpdated != "latest" {
		t.Fatalf("unexpected last_updated %q", cfg.Inventory.LastUpdated)
	}
	if cfg.Logging.Level != "debug" || cfg.Logging.DevFile.Enabled {
		t.Fatalf("unexpected logging config %+v", cfg.Logging)
	}
	if cfg.Server.HTTP != "0.0.0.0:9090" || cfg.Server.APIEndpoint != "/api/v1" {
		t.Fatalf("unexpected server config %+v", cfg.Server)
	}
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	cases := map[string]string{
		"backend":      "[storage]\nbackend = \"mongo\"\n",
		"id scheme":    "[ledger]\nid_scheme = \"random\"\n",
		"last updated": "[inventory]\nlast_updated = \"newest\"\n",
		"log level":    "[logging]\nlevel = \"loud\"\n",
		"endpoint":     "[server]\napi_endpoint = \"api\"\n",
		"same keys":    "[ledger]\nlog_key = \"data\"\n[catalog]\nitems_key = \"data\"\n",
		"no db path":   "[database]\npath = \"  \"\n",
		"redis addr":   "[storage]\nbackend = \"redis\"\n[redis]\naddr = \"\"\n",
	}
	for name, content := range cases {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "config.toml")
			if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
				t.Fatalf("WriteFile() error = %v", err)
			}
			if _, err := Load(path, Default("/tmp/gudang.db")); err == nil {
				t.Fatalf("expected Load() to reject %q", strings.TrimSpace(content))
			}
		})
	}
}

func TestLoadRejectsMalformedTOML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte("[ledger\nid_scheme = 1"), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	_, err := Load(path, Default("/tmp/gudang.db"))
	if err == nil || !strings.Contains(err.Error(), "decode toml") {
		t.Fatalf("expected decode error, got %v", err)
	}
}

func TestEnsureConfigDir(t *testing.T) {
	path := filepath.Join(t.TempDir(), "a", "b", "config.toml")
	if err := EnsureConfigDir(path); err != nil {
		t.Fatalf("EnsureConfigDir() error = %v", err)
	}
	if info, err := os.Stat(filepath.Dir(path)); err != nil || !info.IsDir() {
		t.Fatalf("expected config dir created, err=%v", err)
	}
	if err := EnsureConfigDir("config.toml"); err != nil {
		t.Fatalf("EnsureConfigDir(relative) error = %v", err)
	}
}
