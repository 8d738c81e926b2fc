package platform

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
)

// DefaultAppName names the config and data directories when no override is given.
const DefaultAppName = "gudang"

// HomeEnv, when set, places both the config and data directories under one root.
const HomeEnv = "GUDANG_HOME"

const (
	configFileName = "config.toml"
	envFileName    = ".env"
	devSuffix      = "-dev"
)

// Paths lists the per-user locations the CLI reads and writes.
type Paths struct {
	ConfigPath string `json:"config_path"`
	EnvPath    string `json:"env_path"`
	DataDir    string `json:"data_dir"`
	DBPath     string `json:"db_path"`
}

// Options selects the directory name paths are resolved for.
type Options struct {
	AppName string
	DevMode bool
}

// dirName returns the per-app directory name, suffixed in dev mode.
func (o Options) dirName() string {
	name := strings.TrimSpace(o.AppName)
	if name == "" {
		name = DefaultAppName
	}
	if o.DevMode {
		name += devSuffix
	}
	return name
}

// baseEnv names the variables that move the config and data roots on one OS.
type baseEnv struct {
	config string
	data   string
}

var baseEnvByOS = map[string]baseEnv{
	"linux":   {config: "XDG_CONFIG_HOME", data: "XDG_DATA_HOME"},
	"windows": {config: "APPDATA", data: "LOCALAPPDATA"},
}

// Resolver computes Paths from injected OS facts.
type Resolver struct {
	GOOS      string
	Getenv    func(string) string
	ConfigDir func() (string, error)
	HomeDir   func() (string, error)
}

// HostResolver reads the running process's OS and environment.
func HostResolver() Resolver {
	return Resolver{
		GOOS:      runtime.GOOS,
		Getenv:    os.Getenv,
		ConfigDir: os.UserConfigDir,
		HomeDir:   os.UserHomeDir,
	}
}

// Resolve returns the config and data layout for opts.
func (r Resolver) Resolve(opts Options) (Paths, error) {
	getenv := r.Getenv
	if getenv == nil {
		getenv = func(string) string { return "" }
	}
	if root := strings.TrimSpace(getenv(HomeEnv)); root != "" {
		return layout(root, root, opts.dirName()), nil
	}

	configBase, dataBase, err := r.fallbackBases()
	if err != nil {
		return Paths{}, err
	}
	if vars, ok := baseEnvByOS[r.GOOS]; ok {
		if v := strings.TrimSpace(getenv(vars.config)); v != "" {
			configBase = v
		}
		if v := strings.TrimSpace(getenv(vars.data)); v != "" {
			dataBase = v
		}
	}
	return layout(configBase, dataBase, opts.dirName()), nil
}

// fallbackBases returns the roots used when no override variable is set.
// Linux keeps data under ~/.local/share; elsewhere data shares the config root.
func (r Resolver) fallbackBases() (string, string, error) {
	if r.ConfigDir == nil {
		return "", "", errors.New("no config dir source")
	}
	configBase, err := r.ConfigDir()
	if err != nil {
		return "", "", fmt.Errorf("user config dir: %w", err)
	}
	if r.GOOS != "linux" {
		return configBase, configBase, nil
	}
	if r.HomeDir == nil {
		return "", "", errors.New("no home dir source")
	}
	home, err := r.HomeDir()
	if err != nil {
		return "", "", fmt.Errorf("user home dir: %w", err)
	}
	return configBase, filepath.Join(home, ".local", "share"), nil
}

func layout(configBase, dataBase, dir string) Paths {
	configDir := filepath.Join(configBase, dir)
	dataDir := filepath.Join(dataBase, dir)
	return Paths{
		ConfigPath: filepath.Join(configDir, configFileName),
		EnvPath:    filepath.Join(configDir, envFileName),
		DataDir:    dataDir,
		DBPath:     filepath.Join(dataDir, dir+".db"),
	}
}

// DefaultPaths resolves paths for the default app name on this host.
func DefaultPaths() (Paths, error) {
	return DefaultPathsWithOptions(Options{})
}

// DefaultPathsWithOptions resolves paths for opts on this host.
func DefaultPathsWithOptions(opts Options) (Paths, error) {
	return HostResolver().Resolve(opts)
}
