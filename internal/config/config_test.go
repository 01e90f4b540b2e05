package config_test

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"

	"fo-go/internal/config"
)

func TestNewConfig(t *testing.T) {
	cfg := config.NewConfig("/base")

	if cfg.BaseDir != "/base" {
		t.Errorf("BaseDir = %q", cfg.BaseDir)
	}
	if cfg.LogDir != filepath.Join("/base", "log") {
		t.Errorf("LogDir = %q", cfg.LogDir)
	}
	if cfg.Watch.DebounceMS != 500 {
		t.Errorf("DebounceMS = %d, want 500", cfg.Watch.DebounceMS)
	}
	if cfg.Organize.Fallback != "{category}" || !cfg.Organize.AutoTag {
		t.Errorf("Organize = %+v", cfg.Organize)
	}
	if cfg.Store.Type != "sqlite" || cfg.Store.DataDir != filepath.Join("/base", "data") {
		t.Errorf("Store = %+v", cfg.Store)
	}
	if cfg.Vault.Type != "filesystem" {
		t.Errorf("Vault.Type = %q", cfg.Vault.Type)
	}
	if cfg.Backup.MaxAttempts != 5 {
		t.Errorf("Backup.MaxAttempts = %d, want 5", cfg.Backup.MaxAttempts)
	}
}

func TestManagerRoundTrip(t *testing.T) {
	m := &config.Manager{}
	cfg := config.NewConfig("/base")
	cfg.Vault = config.VaultConfig{
		Type:     "s3",
		S3Bucket: "backups",
		S3Prefix: "fo/",
		S3Region: "eu-west-1",
	}
	cfg.Encryption = config.EncryptionConfig{
		Type:           "age",
		PublicKeyPath:  "/base/keys/public.key",
		PrivateKeyPath: "/base/keys/private.key",
	}

	var buf bytes.Buffer
	if err := m.Write(&buf, cfg); err != nil {
		t.Fatalf("Write() error = %v", err)
	}

	got, err := m.Read(&buf)
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}
	if *got != *cfg {
		t.Errorf("round-trip mismatch:\n got %+v\nwant %+v", got, cfg)
	}
}

func TestManagerRead(t *testing.T) {
	t.Run("partial config leaves zero values", func(t *testing.T) {
		m := &config.Manager{}
		cfg, err := m.Read(strings.NewReader(`
base_dir = "/base"

[watch]
debounce_ms = 250

[vault]
type = "memory"
`))
		if err != nil {
			t.Fatalf("Read() error = %v", err)
		}
		if cfg.Watch.DebounceMS != 250 {
			t.Errorf("DebounceMS = %d", cfg.Watch.DebounceMS)
		}
		if cfg.Vault.Type != "memory" {
			t.Errorf("Vault.Type = %q", cfg.Vault.Type)
		}
		if cfg.Organize.Root != "" {
			t.Errorf("Organize.Root = %q, want empty", cfg.Organize.Root)
		}
	})

	t.Run("malformed input reports an error", func(t *testing.T) {
		m := &config.Manager{}
		if _, err := m.Read(strings.NewReader("base_dir = [")); err == nil {
			t.Error("expected decode error")
		}
	})
}

func TestInit(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sub", "fo.toml")
	cfg := config.NewConfig("/base")

	if err := config.Init(path, cfg); err != nil {
		t.Fatalf("Init() error = %v", err)
	}

	got, err := config.ReadFromFile(path)
	if err != nil {
		t.Fatalf("ReadFromFile() error = %v", err)
	}
	if got.BaseDir != "/base" {
		t.Errorf("BaseDir = %q", got.BaseDir)
	}

	if err := config.Init(path, cfg); err == nil {
		t.Error("Init() overwrote an existing config")
	}
}
