package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/charmbracelet/fang"
	"github.com/google/uuid"
	"github.com/hylla/gudang/internal/adapters/server/common"
	"github.com/hylla/gudang/internal/adapters/storage/redisstore"
	"github.com/hylla/gudang/internal/adapters/storage/sqlite"
	"github.com/hylla/gudang/internal/app"
	"github.com/hylla/gudang/internal/config"
	"github.com/hylla/gudang/internal/domain"
	"github.com/hylla/gudang/internal/metrics"
	"github.com/hylla/gudang/internal/platform"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
)

// version is stamped at build time.
var version = "dev"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := fang.Execute(ctx, newRootCommand(os.Stdout, os.Stderr), fang.WithVersion(version)); err != nil {
		stop()
		os.Exit(1)
	}
}

// run executes one command line against explicit streams.
func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	root := newRootCommand(stdout, stderr)
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)
	root.SilenceUsage = true
	root.SilenceErrors = true
	return root.ExecuteContext(ctx)
}

// rootOptions holds persistent flags shared by every subcommand.
type rootOptions struct {
	configPath string
	dbPath     string
	appName    string
	devMode    bool
	jsonOut    bool
	dotEnvErr  error

	stdout io.Writer
	stderr io.Writer
}

// backend is the storage surface every supported store provides.
type backend interface {
	app.Store
	app.ActivityRecorder
	app.KeyDeleter
	Ping(context.Context) error
	Close() error
}

// appRuntime bundles the opened service and its collaborators for one command.
type appRuntime struct {
	cfg         config.Config
	configPath  string
	logger      *runtimeLogger
	store       backend
	svc         *app.Service
	api         *common.AppServiceAdapter
	registry    *prometheus.Registry
	httpMetrics *metrics.HTTPMetrics
}

func newRootCommand(stdout, stderr io.Writer) *cobra.Command {
	if stdout == nil {
		stdout = io.Discard
	}
	if stderr == nil {
		stderr = io.Discard
	}
	opts := &rootOptions{stdout: stdout, stderr: stderr}
	opts.dotEnvErr = loadDotEnv(".env")

	defaultDevMode := version == "dev"
	if envDev, ok := parseBoolEnv("GUDANG_DEV_MODE"); ok {
		defaultDevMode = envDev
	}
	defaultApp := platform.DefaultAppName
	if envApp := strings.TrimSpace(os.Getenv("GUDANG_APP_NAME")); envApp != "" {
		defaultApp = envApp
	}

	root := &cobra.Command{
		Use:     "gudang",
		Version: version,
		Short:   "Warehouse goods-in/goods-out ledger",
		Long:    "gudang records warehouse stock movements, derives current inventory, and reports by date range or month.",
	}
	flags := root.PersistentFlags()
	flags.StringVar(&opts.configPath, "config", "", "path to config TOML")
	flags.StringVar(&opts.dbPath, "db", "", "path to sqlite database")
	flags.StringVar(&opts.appName, "app", defaultApp, "application name for config/data path resolution")
	flags.BoolVar(&opts.devMode, "dev", defaultDevMode, "use dev mode paths (<app>-dev)")
	flags.BoolVar(&opts.jsonOut, "json", false, "write JSON instead of tables")

	root.AddCommand(
		newPathsCommand(opts),
		newRecordCommand(opts),
		newAmendCommand(opts),
		newRemoveCommand(opts),
		newListCommand(opts),
		newInventoryCommand(opts),
		newReportCommand(opts),
		newItemsCommand(opts),
		newDashboardCommand(opts),
		newActivityCommand(opts),
		newExportCommand(opts),
		newImportCommand(opts),
		newResetCommand(opts),
		newServeCommand(opts),
	)
	return root
}

// resolvePaths computes platform paths and loads any .env file found beside the config.
// The working-directory .env is loaded earlier so it can supply flag defaults.
func (o *rootOptions) resolvePaths() (platform.Paths, error) {
	if o.dotEnvErr != nil {
		return platform.Paths{}, o.dotEnvErr
	}
	paths, err := platform.DefaultPathsWithOptions(platform.Options{
		AppName: o.appName,
		DevMode: o.devMode,
	})
	if err != nil {
		return platform.Paths{}, err
	}
	if err := loadDotEnv(paths.EnvPath); err != nil {
		return platform.Paths{}, err
	}
	return paths, nil
}

// loadDotEnv loads KEY=VALUE pairs without overriding variables already set.
func loadDotEnv(path string) error {
	if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("load env file %q: %w", path, err)
	}
	return nil
}

// open loads configuration, opens the configured store, and builds the service.
func (o *rootOptions) open(ctx context.Context, command string) (*appRuntime, error) {
	paths, err := o.resolvePaths()
	if err != nil {
		return nil, err
	}

	configPath := strings.TrimSpace(o.configPath)
	if configPath == "" {
		if envPath := strings.TrimSpace(os.Getenv("GUDANG_CONFIG")); envPath != "" {
			configPath = envPath
		} else {
			configPath = paths.ConfigPath
		}
	}
	dbPath := strings.TrimSpace(o.dbPath)
	dbOverridden := dbPath != ""
	if !dbOverridden {
		if envPath := strings.TrimSpace(os.Getenv("GUDANG_DB_PATH")); envPath != "" {
			dbPath = envPath
			dbOverridden = true
		} else {
			dbPath = paths.DBPath
		}
	}

	cfg, err := config.Load(configPath, config.Default(dbPath))
	if err != nil {
		return nil, fmt.Errorf("load config %q: %w", configPath, err)
	}
	if dbOverridden {
		cfg.Database.Path = dbPath
	}
	applyEnvOverrides(&cfg, os.Getenv)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	logger, err := newRuntimeLogger(o.stderr, o.appName, o.devMode, cfg.Logging, time.Now)
	if err != nil {
		return nil, fmt.Errorf("configure runtime logger: %w", err)
	}
	logger.Debug("startup configuration resolved", "app", o.appName, "dev_mode", o.devMode, "command", command)
	logger.Debug("runtime paths resolved", "config_path", configPath, "data_dir", paths.DataDir, "db_path", cfg.Database.Path)
	if devPath := logger.DevLogPath(); devPath != "" {
		logger.Debug("dev file logging enabled", "path", devPath)
	}

	store, err := openBackend(ctx, cfg, logger)
	if err != nil {
		_ = logger.Close()
		return nil, err
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	svc := app.NewService(store, app.ServiceDeps{
		Activity: store,
		Logger:   logger,
		Metrics:  metrics.NewLedgerMetrics(registry),
		Clock:    time.Now,
		NewUUID:  uuid.NewString,
	}, serviceConfigFrom(cfg))
	if err := svc.Open(ctx); err != nil {
		_ = store.Close()
		_ = logger.Close()
		return nil, fmt.Errorf("open ledger: %w", err)
	}
	logger.Debug("application service initialized", "backend", cfg.Storage.Backend, "id_scheme", cfg.Ledger.IDScheme)

	return &appRuntime{
		cfg:         cfg,
		configPath:  configPath,
		logger:      logger,
		store:       store,
		svc:         svc,
		api:         common.NewAppServiceAdapter(svc),
		registry:    registry,
		httpMetrics: metrics.NewHTTPMetrics(registry),
	}, nil
}

// Close releases the store and the log sinks.
func (r *appRuntime) Close() {
	if r == nil {
		return
	}
	if err := r.store.Close(); err != nil {
		r.logger.Warn("store close failed", "backend", r.cfg.Storage.Backend, "err", err)
	}
	_ = r.logger.Close()
}

// openBackend opens the configured storage backend.
func openBackend(ctx context.Context, cfg config.Config, logger *runtimeLogger) (backend, error) {
	switch cfg.Storage.Backend {
	case config.StorageRedis:
		dialTimeout, err := parseOptionalDuration(cfg.Redis.DialTimeout)
		if err != nil {
			return nil, fmt.Errorf("parse redis.dial_timeout: %w", err)
		}
		logger.Debug("connecting to redis", "addr", cfg.Redis.Addr, "key_prefix", cfg.Redis.KeyPrefix)
		store, err := redisstore.New(ctx, redisstore.Config{
			URL:         cfg.Redis.URL,
			Addr:        cfg.Redis.Addr,
			Password:    cfg.Redis.Password,
			DB:          cfg.Redis.DB,
			KeyPrefix:   cfg.Redis.KeyPrefix,
			DialTimeout: dialTimeout,
		})
		if err != nil {
			logger.Error("redis connect failed", "addr", cfg.Redis.Addr, "err", err)
			return nil, fmt.Errorf("open redis store: %w", err)
		}
		return store, nil
	default:
		if cfg.Database.Path == sqlite.MemoryPath {
			logger.Debug("opening in-memory sqlite repository")
			repo, err := sqlite.OpenInMemory()
			if err != nil {
				return nil, fmt.Errorf("open in-memory sqlite repository: %w", err)
			}
			return repo, nil
		}
		if err := config.EnsureConfigDir(cfg.Database.Path); err != nil {
			return nil, fmt.Errorf("create database dir: %w", err)
		}
		logger.Debug("opening sqlite repository", "db_path", cfg.Database.Path)
		repo, err := sqlite.Open(cfg.Database.Path)
		if err != nil {
			logger.Error("sqlite open failed", "db_path", cfg.Database.Path, "err", err)
			return nil, fmt.Errorf("open sqlite repository: %w", err)
		}
		return repo, nil
	}
}

// serviceConfigFrom maps persisted config onto ledger and catalog settings.
func serviceConfigFrom(cfg config.Config) app.ServiceConfig {
	return app.ServiceConfig{
		Ledger: app.LedgerConfig{
			LogKey:      cfg.Ledger.LogKey,
			IDScheme:    app.IDScheme(strings.ToLower(strings.TrimSpace(cfg.Ledger.IDScheme))),
			IDPrefix:    cfg.Ledger.IDPrefix,
			IDWidth:     cfg.Ledger.IDWidth,
			Validate:    cfg.Ledger.Validate,
			LastUpdated: domain.NormalizeLastUpdatedPolicy(cfg.Inventory.LastUpdated),
			RecentLimit: cfg.Ledger.RecentLimit,
		},
		Catalog: app.CatalogConfig{
			ItemsKey: cfg.Catalog.ItemsKey,
			IDPrefix: cfg.Catalog.IDPrefix,
			Validate: cfg.Ledger.Validate,
		},
	}
}

// applyEnvOverrides lets deployment environments pick the backend and log level without editing TOML.
func applyEnvOverrides(cfg *config.Config, getenv func(string) string) {
	if v := strings.TrimSpace(getenv("GUDANG_STORAGE_BACKEND")); v != "" {
		cfg.Storage.Backend = config.StorageBackend(strings.ToLower(v))
	}
	if v := strings.TrimSpace(getenv("GUDANG_REDIS_URL")); v != "" {
		cfg.Redis.URL = v
	}
	if v := strings.TrimSpace(getenv("GUDANG_REDIS_ADDR")); v != "" {
		cfg.Redis.Addr = v
	}
	if v := getenv("GUDANG_REDIS_PASSWORD"); v != "" {
		cfg.Redis.Password = v
	}
	if v := strings.TrimSpace(getenv("GUDANG_LOG_LEVEL")); v != "" {
		cfg.Logging.Level = v
	}
	if v := strings.TrimSpace(getenv("GUDANG_HTTP")); v != "" {
		cfg.Server.HTTP = v
	}
}

// parseOptionalDuration parses a Go duration, treating blank input as zero.
func parseOptionalDuration(raw string) (time.Duration, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, nil
	}
	return time.ParseDuration(raw)
}

// parseBoolEnv parses a boolean environment variable, reporting whether it was set and valid.
func parseBoolEnv(name string) (bool, bool) {
	raw := strings.TrimSpace(os.Getenv(name))
	if raw == "" {
		return false, false
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, false
	}
	return v, true
}
