package internal

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	pkgconfig "github.com/starford/projectsync/pkg/config"
)

func TestAuthConfig_DisabledMode(t *testing.T) {
	cfg := AuthConfig{Mode: "disabled", Token: ""}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("disabled mode should pass: %v", err)
	}
	if cfg.AuthEnabled() {
		t.Error("disabled mode should not be enabled")
	}
}

func TestAuthConfig_EmptyModeDefaultsDisabled(t *testing.T) {
	cfg := AuthConfig{Mode: "", Token: ""}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("empty mode should default to disabled: %v", err)
	}
	if cfg.Mode != AuthModeDisabled {
		t.Errorf("mode = %q, want %q", cfg.Mode, AuthModeDisabled)
	}
}

func TestAuthConfig_TokenModeValid(t *testing.T) {
	cfg := AuthConfig{Mode: "token", Token: "mysecret"}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("token mode with token should pass: %v", err)
	}
	if !cfg.AuthEnabled() {
		t.Error("token mode should be enabled")
	}
}

func TestAuthConfig_TokenModeEmptyToken(t *testing.T) {
	cfg := AuthConfig{Mode: "token", Token: ""}
	err := cfg.Validate()
	if err == nil {
		t.Fatal("token mode with empty token should fail")
	}
	if !strings.Contains(err.Error(), "token is empty") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestAuthConfig_InvalidMode(t *testing.T) {
	cfg := AuthConfig{Mode: "magic", Token: "x"}
	err := cfg.Validate()
	if err == nil {
		t.Fatal("invalid mode should fail validation")
	}
}

func TestFullConfig_AuthValidationCalled(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Auth.Mode = "token"
	cfg.Auth.Token = ""
	err := cfg.Validate()
	if err == nil {
		t.Fatal("full config validate should catch auth error")
	}
}

func TestStorageConfig_DefaultsToFS(t *testing.T) {
	cfg := StorageConfig{Path: "./data"}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("empty driver should default to fs: %v", err)
	}
	if cfg.Driver != "fs" {
		t.Errorf("driver = %q, want fs", cfg.Driver)
	}
}

func TestStorageConfig_UnknownDriver(t *testing.T) {
	cfg := StorageConfig{Driver: "postgres", Path: "x"}
	if err := cfg.Validate(); err == nil {
		t.Fatal("unknown driver should fail validation")
	}
}

func TestStorageConfig_PathRequired(t *testing.T) {
	cfg := StorageConfig{Driver: "sqlite"}
	if err := cfg.Validate(); err == nil {
		t.Fatal("missing path should fail validation")
	}
}

func TestStorageConfig_WatchOnlyForFS(t *testing.T) {
	fs := StorageConfig{Driver: "fs", Path: "x", Watch: true}
	if !fs.WatchEnabled() {
		t.Error("fs driver with watch should be enabled")
	}
	db := StorageConfig{Driver: "sqlite", Path: "x.db", Watch: true}
	if db.WatchEnabled() {
		t.Error("sqlite driver should never be watched")
	}
}

func TestLoadConfigFile(t *testing.T) {
	t.Setenv("PROJECTSYNC_TOKEN", "from-env")
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
app:
  log_level: debug
  http:
    port: 9090
storage:
  driver: sqlite
  path: ./projects.db
projects:
  no_auto_projects: true
auth:
  mode: token
  token: ${PROJECTSYNC_TOKEN}
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg := NewDefaultConfig()
	if err := pkgconfig.Load(path, cfg); err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.App.HTTP.Port != 9090 || cfg.App.LogLevel != slog.LevelDebug {
		t.Errorf("app = %+v", cfg.App)
	}
	if cfg.Storage.Driver != "sqlite" || cfg.Storage.Path != "./projects.db" {
		t.Errorf("storage = %+v", cfg.Storage)
	}
	if !cfg.Projects.NoAutoProjects {
		t.Error("no_auto_projects not loaded")
	}
	if cfg.Auth.Token != "from-env" {
		t.Errorf("token = %q, want env expansion", cfg.Auth.Token)
	}
}
