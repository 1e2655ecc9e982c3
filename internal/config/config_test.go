package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/newthinker/lasr-archive/archive"
	_ "github.com/newthinker/lasr-archive/archive/memory"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	cfgPath := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(cfgPath, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return cfgPath
}

func TestLoad_FromFile(t *testing.T) {
	cfgPath := writeConfig(t, `
archive:
  backend: sql
  uri: "postgres://localhost:5432/lasr"
  datastore: lasr_archive
  policy: pooled
  connect_timeout: 3s

log:
  development: true
`)

	cfg, err := Load(cfgPath)
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}

	if cfg.Archive.Backend != "sql" {
		t.Errorf("expected sql, got %s", cfg.Archive.Backend)
	}
	if cfg.Archive.Policy != "pooled" {
		t.Errorf("expected pooled, got %s", cfg.Archive.Policy)
	}
	if cfg.Archive.ConnectTimeout != 3*time.Second {
		t.Errorf("expected 3s, got %s", cfg.Archive.ConnectTimeout)
	}
	if !cfg.Log.Development {
		t.Error("expected development logging")
	}
	// Omitted keys keep their defaults
	if cfg.Log.Level != "info" {
		t.Errorf("expected default level info, got %s", cfg.Log.Level)
	}
}

func TestLoad_EnvExpansion(t *testing.T) {
	t.Setenv("LASR_TEST_MONGO_URI", "mongodb://user:pw@db:27017")
	cfgPath := writeConfig(t, `
archive:
  backend: mongodb
  uri: "${LASR_TEST_MONGO_URI}"
  datastore: lasr_archive
`)

	cfg, err := Load(cfgPath)
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}
	if cfg.Archive.URI != "mongodb://user:pw@db:27017" {
		t.Errorf("expected expanded uri, got %s", cfg.Archive.URI)
	}
}

func TestLoad_EnvOverride(t *testing.T) {
	t.Setenv("ARCHIVE_DATASTORE", "from_env")
	cfgPath := writeConfig(t, `
archive:
  backend: memory
  uri: "memory://cfg"
`)

	cfg, err := Load(cfgPath)
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}
	if cfg.Archive.Datastore != "from_env" {
		t.Errorf("expected datastore from env, got %s", cfg.Archive.Datastore)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestDefaults(t *testing.T) {
	cfg := Defaults()

	if cfg.Archive.Backend != "mongodb" {
		t.Errorf("expected default backend mongodb, got %s", cfg.Archive.Backend)
	}
	if cfg.Archive.Policy != "per_call" {
		t.Errorf("expected default policy per_call, got %s", cfg.Archive.Policy)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("defaults should validate: %v", err)
	}
}

func TestConfig_Validate(t *testing.T) {
	valid := ArchiveConfig{Backend: "memory", URI: "memory://v", Datastore: "ds"}

	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr error
	}{
		{
			name:   "valid config",
			mutate: func(c *Config) {},
		},
		{
			name:    "missing backend",
			mutate:  func(c *Config) { c.Archive.Backend = "" },
			wantErr: archive.ErrConfigMissing,
		},
		{
			name:    "missing datastore",
			mutate:  func(c *Config) { c.Archive.Datastore = "" },
			wantErr: archive.ErrConfigMissing,
		},
		{
			name:    "unknown backend",
			mutate:  func(c *Config) { c.Archive.Backend = "cassandra" },
			wantErr: archive.ErrConfigInvalid,
		},
		{
			name:    "unknown policy",
			mutate:  func(c *Config) { c.Archive.Policy = "sometimes" },
			wantErr: archive.ErrConfigInvalid,
		},
		{
			name:    "negative timeout",
			mutate:  func(c *Config) { c.Archive.ConnectTimeout = -time.Second },
			wantErr: archive.ErrConfigInvalid,
		},
		{
			name: "tracing without service name",
			mutate: func(c *Config) {
				c.Tracing.Enabled = true
				c.Tracing.ServiceName = ""
			},
			wantErr: archive.ErrConfigMissing,
		},
		{
			name:   "empty uri is allowed",
			mutate: func(c *Config) { c.Archive.URI = "" },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Config{Archive: valid}
			tt.mutate(&cfg)

			err := cfg.Validate()
			if tt.wantErr == nil {
				if err != nil {
					t.Errorf("Validate() unexpected error = %v", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Validate() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestConfig_StoreBuilder(t *testing.T) {
	cfg := Config{Archive: ArchiveConfig{
		Backend:   "memory",
		URI:       "memory://builder",
		Datastore: "ds",
		Policy:    "pooled",
	}}

	b, err := cfg.StoreBuilder()
	if err != nil {
		t.Fatalf("StoreBuilder() error = %v", err)
	}
	store, err := b.Build()
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	if store.Kind() != archive.KindMemory {
		t.Errorf("expected memory backend, got %s", store.Kind())
	}
	if store.Policy() != archive.PolicyPooled {
		t.Errorf("expected pooled policy, got %s", store.Policy())
	}
	if store.Datastore() != "ds" {
		t.Errorf("expected datastore ds, got %s", store.Datastore())
	}
}

func TestConfig_StoreBuilder_MissingFieldsReachBuild(t *testing.T) {
	cfg := Config{}

	b, err := cfg.StoreBuilder()
	if err != nil {
		t.Fatalf("StoreBuilder() error = %v", err)
	}
	if _, err := b.Build(); !errors.Is(err, archive.ErrConfigMissing) {
		t.Errorf("Build() error = %v, want ErrConfigMissing", err)
	}
}
