package platform

import (
	"errors"
	"path/filepath"
	"testing"
)

func envOf(vars map[string]string) func(string) string {
	return func(key string) string { return vars[key] }
}

func fixedDir(dir string) func() (string, error) {
	return func() (string, error) { return dir, nil }
}

// TestResolverResolve verifies per-OS base directory selection.
func TestResolverResolve(t *testing.T) {
	cases := []struct {
		name       string
		goos       string
		env        map[string]string
		configDir  string
		homeDir    string
		wantConfig string
		wantData   string
	}{
		{
			name:       "linux xdg",
			goos:       "linux",
			env:        map[string]string{"XDG_CONFIG_HOME": "/xdg/config", "XDG_DATA_HOME": "/xdg/data"},
			configDir:  "/fallback/config",
			homeDir:    "/home/me",
			wantConfig: "/xdg/config",
			wantData:   "/xdg/data",
		},
		{
			name:       "linux without xdg",
			goos:       "linux",
			configDir:  "/home/me/.config",
			homeDir:    "/home/me",
			wantConfig: "/home/me/.config",
			wantData:   "/home/me/.local/share",
		},
		{
			name:       "windows appdata",
			goos:       "windows",
			env:        map[string]string{"APPDATA": `C:\Users\me\AppData\Roaming`, "LOCALAPPDATA": `C:\Users\me\AppData\Local`},
			configDir:  `C:\fallback\config`,
			wantConfig: `C:\Users\me\AppData\Roaming`,
			wantData:   `C:\Users\me\AppData\Local`,
		},
		{
			name:       "darwin ignores xdg",
			goos:       "darwin",
			env:        map[string]string{"XDG_CONFIG_HOME": "/ignored", "XDG_DATA_HOME": "/ignored"},
			configDir:  "/Users/me/Library/Application Support",
			wantConfig: "/Users/me/Library/Application Support",
			wantData:   "/Users/me/Library/Application Support",
		},
		{
			name:       "unknown os",
			goos:       "freebsd",
			configDir:  "/cfg",
			wantConfig: "/cfg",
			wantData:   "/cfg",
		},
		{
			name:       "gudang home wins",
			goos:       "linux",
			env:        map[string]string{HomeEnv: "/srv/gudang", "XDG_CONFIG_HOME": "/xdg/config"},
			configDir:  "/home/me/.config",
			homeDir:    "/home/me",
			wantConfig: "/srv/gudang",
			wantData:   "/srv/gudang",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := Resolver{GOOS: tc.goos, Getenv: envOf(tc.env), ConfigDir: fixedDir(tc.configDir), HomeDir: fixedDir(tc.homeDir)}
			p, err := r.Resolve(Options{AppName: "gudang"})
			if err != nil {
				t.Fatalf("Resolve() error = %v", err)
			}
			if want := filepath.Join(tc.wantConfig, "gudang", "config.toml"); p.ConfigPath != want {
				t.Fatalf("config path = %q, want %q", p.ConfigPath, want)
			}
			if want := filepath.Join(tc.wantConfig, "gudang", ".env"); p.EnvPath != want {
				t.Fatalf("env path = %q, want %q", p.EnvPath, want)
			}
			if want := filepath.Join(tc.wantData, "gudang"); p.DataDir != want {
				t.Fatalf("data dir = %q, want %q", p.DataDir, want)
			}
			if want := filepath.Join(tc.wantData, "gudang", "gudang.db"); p.DBPath != want {
				t.Fatalf("db path = %q, want %q", p.DBPath, want)
			}
		})
	}
}

// TestResolverDirName verifies the default name and the dev suffix.
func TestResolverDirName(t *testing.T) {
	r := Resolver{GOOS: "darwin", Getenv: envOf(nil), ConfigDir: fixedDir("/cfg")}
	p, err := r.Resolve(Options{AppName: "  ", DevMode: true})
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if want := filepath.Join("/cfg", DefaultAppName+"-dev", "config.toml"); p.ConfigPath != want {
		t.Fatalf("config path = %q, want %q", p.ConfigPath, want)
	}
	if filepath.Base(p.DBPath) != DefaultAppName+"-dev.db" {
		t.Fatalf("expected dev db name, got %q", p.DBPath)
	}
}

// TestResolverReportsDirErrors verifies lookup failures surface.
func TestResolverReportsDirErrors(t *testing.T) {
	boom := errors.New("no home")
	failing := func() (string, error) { return "", boom }

	if _, err := (Resolver{GOOS: "darwin", ConfigDir: failing}).Resolve(Options{}); !errors.Is(err, boom) {
		t.Fatalf("expected config dir error, got %v", err)
	}
	if _, err := (Resolver{GOOS: "linux", ConfigDir: fixedDir("/cfg"), HomeDir: failing}).Resolve(Options{}); !errors.Is(err, boom) {
		t.Fatalf("expected home dir error, got %v", err)
	}
	if _, err := (Resolver{GOOS: "linux"}).Resolve(Options{}); err == nil {
		t.Fatal("expected error without a config dir source")
	}
}

// TestDefaultPathsSmoke verifies the current OS resolves every path.
func TestDefaultPathsSmoke(t *testing.T) {
	p, err := DefaultPaths()
	if err != nil {
		t.Fatalf("DefaultPaths() error = %v", err)
	}
	if p.ConfigPath == "" || p.DBPath == "" || p.DataDir == "" || p.EnvPath == "" {
		t.Fatalf("expected non-empty paths, got %#v", p)
	}
	if filepath.Base(p.DBPath) != DefaultAppName+".db" {
		t.Fatalf("expected default app db name, got %q", p.DBPath)
	}
}

// TestDefaultPathsWithOptionsDevMode verifies dev mode isolates its directories.
func TestDefaultPathsWithOptionsDevMode(t *testing.T) {
	p, err := DefaultPathsWithOptions(Options{AppName: "gudang", DevMode: true})
	if err != nil {
		t.Fatalf("DefaultPathsWithOptions() error = %v", err)
	}
	if filepath.Base(filepath.Dir(p.ConfigPath)) != "gudang-dev" {
		t.Fatalf("expected dev config dir suffix, got %q", p.ConfigPath)
	}
	if filepath.Base(p.DBPath) != "gudang-dev.db" {
		t.Fatalf("expected dev db name, got %q", p.DBPath)
	}
}
