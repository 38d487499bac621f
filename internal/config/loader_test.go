package config

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"
)

// setupTestHome points HOME at a temporary directory for the test.
func setupTestHome(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	return home
}

func writeConfig(t *testing.T, home, content string, perm os.FileMode) string {
	t.Helper()
	dir := filepath.Join(home, ".config", "codefinder")
	if err := os.MkdirAll(dir, 0700); err != nil {
		t.Fatalf("Failed to create config dir: %v", err)
	}
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte(content), perm); err != nil {
		t.Fatalf("Failed to write test config: %v", err)
	}
	return path
}

func TestLoadWithFile_ValidYAML(t *testing.T) {
	home := setupTestHome(t)
	path := writeConfig(t, home, `server:
  http_port: 9191
qdrant:
  host: qdrant.internal
  api_key: s3cret
ingest:
  language: go
  collection: repo_chunks
  chunk_size: 512
  exclude_dirs: [testdata, third_party]
watch:
  debounce: 500ms
`, 0600)

	cfg, err := LoadWithFile(path)
	if err != nil {
		t.Fatalf("LoadWithFile() error = %v, want nil", err)
	}

	if cfg.Server.Port != 9191 {
		t.Errorf("Server.Port = %d, want 9191", cfg.Server.Port)
	}
	if cfg.Qdrant.Host != "qdrant.internal" {
		t.Errorf("Qdrant.Host = %q, want qdrant.internal", cfg.Qdrant.Host)
	}
	if cfg.Qdrant.APIKey.Value() != "s3cret" {
		t.Errorf("Qdrant.APIKey not loaded")
	}
	if cfg.Ingest.Language != "go" || cfg.Ingest.Collection != "repo_chunks" || cfg.Ingest.ChunkSize != 512 {
		t.Errorf("Ingest = %+v", cfg.Ingest)
	}
	if len(cfg.Ingest.ExcludeDirs) != 2 || cfg.Ingest.ExcludeDirs[0] != "testdata" {
		t.Errorf("Ingest.ExcludeDirs = %v", cfg.Ingest.ExcludeDirs)
	}
	if cfg.Watch.Debounce.Duration() != 500*time.Millisecond {
		t.Errorf("Watch.Debounce = %v, want 500ms", cfg.Watch.Debounce.Duration())
	}
	// Untouched sections keep their defaults.
	if cfg.Qdrant.Port != 6334 {
		t.Errorf("Qdrant.Port = %d, want default 6334", cfg.Qdrant.Port)
	}
	if !cfg.Secrets.Enabled {
		t.Error("Secrets.Enabled = false, want default true")
	}
}

func TestLoadWithFile_EnvironmentOverride(t *testing.T) {
	home := setupTestHome(t)
	path := writeConfig(t, home, `qdrant:
  host: from-yaml
ingest:
  chunk_size: 1024
`, 0600)

	t.Setenv("CODEFINDER_QDRANT_HOST", "from-env")
	t.Setenv("CODEFINDER_INGEST_CHUNK_SIZE", "256")
	t.Setenv("CODEFINDER_INGEST_CONTINUE_ON_ERROR", "true")
	t.Setenv("CODEFINDER_SERVER_SHUTDOWN_TIMEOUT", "3s")

	cfg, err := LoadWithFile(path)
	if err != nil {
		t.Fatalf("LoadWithFile() error = %v", err)
	}

	if cfg.Qdrant.Host != "from-env" {
		t.Errorf("Qdrant.Host = %q, want from-env", cfg.Qdrant.Host)
	}
	if cfg.Ingest.ChunkSize != 256 {
		t.Errorf("Ingest.ChunkSize = %d, want 256", cfg.Ingest.ChunkSize)
	}
	if !cfg.Ingest.ContinueOnError {
		t.Error("Ingest.ContinueOnError = false, want true")
	}
	if cfg.Server.ShutdownTimeout.Duration() != 3*time.Second {
		t.Errorf("Server.ShutdownTimeout = %v, want 3s", cfg.Server.ShutdownTimeout.Duration())
	}
}

func TestLoadWithFile_MissingFileUsesDefaults(t *testing.T) {
	setupTestHome(t)

	cfg, err := LoadWithFile("")
	if err != nil {
		t.Fatalf("LoadWithFile() error = %v", err)
	}
	want := Default()
	if cfg.Ingest.Collection != want.Ingest.Collection || cfg.Ingest.ChunkSize != want.Ingest.ChunkSize {
		t.Errorf("defaults not applied: %+v", cfg.Ingest)
	}
}

func TestLoadWithFile_InvalidYAML(t *testing.T) {
	home := setupTestHome(t)
	path := writeConfig(t, home, "server: [unterminated", 0600)

	if _, err := LoadWithFile(path); err == nil {
		t.Fatal("LoadWithFile() expected error for invalid YAML")
	}
}

func TestLoadWithFile_ValidationFailure(t *testing.T) {
	home := setupTestHome(t)
	path := writeConfig(t, home, `ingest:
  chunk_size: -1
`, 0600)

	_, err := LoadWithFile(path)
	if err == nil || !strings.Contains(err.Error(), "chunk_size") {
		t.Fatalf("LoadWithFile() error = %v, want chunk_size validation error", err)
	}
}

func TestLoadWithFile_InsecurePermissions(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("permission model differs on windows")
	}
	home := setupTestHome(t)
	path := writeConfig(t, home, "server:\n  http_port: 9090\n", 0644)

	_, err := LoadWithFile(path)
	if err == nil || !strings.Contains(err.Error(), "insecure config file permissions") {
		t.Fatalf("LoadWithFile() error = %v, want permission error", err)
	}
}

func TestLoadWithFile_FileTooLarge(t *testing.T) {
	home := setupTestHome(t)
	big := "# " + strings.Repeat("x", maxConfigFileSize) + "\n"
	path := writeConfig(t, home, big, 0600)

	_, err := LoadWithFile(path)
	if err == nil || !strings.Contains(err.Error(), "too large") {
		t.Fatalf("LoadWithFile() error = %v, want size error", err)
	}
}

func TestValidateConfigPath(t *testing.T) {
	home := setupTestHome(t)

	tests := []struct {
		name    string
		path    string
		wantErr bool
	}{
		{"user config", filepath.Join(home, ".config", "codefinder", "config.yaml"), false},
		{"user config subdir", filepath.Join(home, ".config", "codefinder", "prod", "config.yaml"), false},
		{"system config", "/etc/codefinder/config.yaml", false},
		{"sibling prefix", "/etc/codefinder../etc/passwd", true},
		{"traversal", filepath.Join(home, ".config", "codefinder", "..", "..", "x.yaml"), true},
		{"outside", "/tmp/config.yaml", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateConfigPath(tt.path)
			if (err != nil) != tt.wantErr {
				t.Errorf("validateConfigPath(%q) error = %v, wantErr %v", tt.path, err, tt.wantErr)
			}
		})
	}
}

func TestEnvKey(t *testing.T) {
	tests := map[string]string{
		"CODEFINDER_QDRANT_API_KEY":    "qdrant.api_key",
		"CODEFINDER_INGEST_CHUNK_SIZE": "ingest.chunk_size",
		"CODEFINDER_DEBUG":             "debug",
	}
	for in, want := range tests {
		if got := envKey(in); got != want {
			t.Errorf("envKey(%q) = %q, want %q", in, got, want)
		}
	}
}
