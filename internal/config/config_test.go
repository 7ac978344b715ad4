package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoadFromEnvDefaults(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	for _, k := range []string{
		"PERSISTED_MAP_STORE_SOCK", "PERSISTED_MAP_STORE_DB", "PERSISTED_MAP_STORE_DRIVER",
		"PERSISTED_MAP_SESSION_QUOTA", "PERSISTED_MAP_DEFAULT_TTL", "PERSISTED_MAP_METRICS_ADDR",
	} {
		t.Setenv(k, "")
		os.Unsetenv(k)
	}

	cfg, err := LoadFromEnv()
	if err != nil {
		t.Fatalf("LoadFromEnv: %v", err)
	}
	if cfg.StoreDriver != DriverBolt {
		t.Errorf("StoreDriver = %q", cfg.StoreDriver)
	}
	if cfg.SessionQuota != 5<<20 {
		t.Errorf("SessionQuota = %d", cfg.SessionQuota)
	}
	if cfg.DefaultTTL != 0 {
		t.Errorf("DefaultTTL = %v", cfg.DefaultTTL)
	}
	wantDir := filepath.Join(home, ".cache", "persisted-map")
	if cfg.StoreSocket != filepath.Join(wantDir, "store.sock") {
		t.Errorf("StoreSocket = %q", cfg.StoreSocket)
	}
	if cfg.StoreDB != filepath.Join(wantDir, "store.bolt") {
		t.Errorf("StoreDB = %q", cfg.StoreDB)
	}
}

func TestLoadFromEnvOverrides(t *testing.T) {
	t.Setenv("PERSISTED_MAP_STORE_SOCK", "/tmp/pm.sock")
	t.Setenv("PERSISTED_MAP_STORE_DB", "/tmp/pm.db")
	t.Setenv("PERSISTED_MAP_STORE_DRIVER", "sqlite")
	t.Setenv("PERSISTED_MAP_SESSION_QUOTA", "1024")
	t.Setenv("PERSISTED_MAP_DEFAULT_TTL", "15m")
	t.Setenv("PERSISTED_MAP_METRICS_ADDR", "127.0.0.1:9464")

	cfg, err := LoadFromEnv()
	if err != nil {
		t.Fatalf("LoadFromEnv: %v", err)
	}
	want := Config{
		StoreSocket:  "/tmp/pm.sock",
		StoreDB:      "/tmp/pm.db",
		StoreDriver:  DriverSQLite,
		SessionQuota: 1024,
		DefaultTTL:   15 * time.Minute,
		MetricsAddr:  "127.0.0.1:9464",
	}
	if cfg != want {
		t.Fatalf("LoadFromEnv() = %+v, want %+v", cfg, want)
	}
}

func TestLoadFromEnvErrors(t *testing.T) {
	tests := []struct {
		name, key, value, want string
	}{
		{"bad driver", "PERSISTED_MAP_STORE_DRIVER", "redis", "unknown store driver"},
		{"bad ttl", "PERSISTED_MAP_DEFAULT_TTL", "soon", "parse env"},
		{"negative quota", "PERSISTED_MAP_SESSION_QUOTA", "-1", "quota"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)
			_, err := LoadFromEnv()
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("LoadFromEnv() err = %v, want containing %q", err, tt.want)
			}
		})
	}
}
