package app

import (
	"os"
	"path/filepath"
	"testing"
)

func TestGetDefaults(t *testing.T) {
	t.Run("environment overrides", func(t *testing.T) {
		t.Setenv("FO_CONFIG_PATH", "/custom/fo.toml")
		t.Setenv("FO_HOME", "/custom/home")

		defaults, err := GetDefaults()
		if err != nil {
			t.Fatalf("GetDefaults() error = %v", err)
		}
		if defaults["config_path"] != "/custom/fo.toml" {
			t.Errorf("config_path = %q", defaults["config_path"])
		}
		if defaults["base_dir"] != "/custom/home" {
			t.Errorf("base_dir = %q", defaults["base_dir"])
		}
		if defaults["log_dir"] != filepath.Join("/custom/home", "log") {
			t.Errorf("log_dir = %q", defaults["log_dir"])
		}
	})

	t.Run("home directory fallbacks", func(t *testing.T) {
		t.Setenv("FO_CONFIG_PATH", "")
		t.Setenv("FO_HOME", "")

		home, err := os.UserHomeDir()
		if err != nil {
			t.Skipf("no home directory: %v", err)
		}

		defaults, err := GetDefaults()
		if err != nil {
			t.Fatalf("GetDefaults() error = %v", err)
		}
		if defaults["config_path"] != filepath.Join(home, ".config", "fo.toml") {
			t.Errorf("config_path = %q", defaults["config_path"])
		}
		if defaults["base_dir"] != filepath.Join(home, ".local", "share", "fo") {
			t.Errorf("base_dir = %q", defaults["base_dir"])
		}
	})
}
