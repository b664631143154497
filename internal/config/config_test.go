package config

import (
	"path/filepath"
	"testing"
	"time"
)

func TestLoadServerDefaults(t *testing.T) {
	t.Setenv("DB_DRIVER", "sqlite")
	t.Setenv("DB_DSN", "file:test.db")
	t.Setenv("JWT_SECRET", "secret")

	cfg, err := LoadServer()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Port != "8080" {
		t.Fatalf("port = %q", cfg.Port)
	}
	if cfg.JWTTTL != 72*time.Hour {
		t.Fatalf("jwt ttl = %v", cfg.JWTTTL)
	}
	if cfg.Retention() != 90*24*time.Hour {
		t.Fatalf("retention = %v", cfg.Retention())
	}
	if cfg.MaxPerRecipient != 500 {
		t.Fatalf("max per recipient = %d", cfg.MaxPerRecipient)
	}
	if cfg.PurgeInterval != time.Hour {
		t.Fatalf("purge interval = %v", cfg.PurgeInterval)
	}
}

func TestLoadServerOverrides(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("DB_DRIVER", "postgres")
	t.Setenv("DB_DSN", "postgres://localhost/servehub")
	t.Setenv("JWT_SECRET", "secret")
	t.Setenv("JWT_TTL", "15m")
	t.Setenv("NOTIFICATION_RETENTION_DAYS", "30")
	t.Setenv("NOTIFICATION_MAX_PER_RECIPIENT", "50")

	cfg, err := LoadServer()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Port != "9090" || cfg.DBDriver != "postgres" {
		t.Fatalf("unexpected config: %+v", cfg)
	}
	if cfg.JWTTTL != 15*time.Minute {
		t.Fatalf("jwt ttl = %v", cfg.JWTTTL)
	}
	if cfg.RetentionDays != 30 || cfg.MaxPerRecipient != 50 {
		t.Fatalf("retention = %d/%d", cfg.RetentionDays, cfg.MaxPerRecipient)
	}
}

func TestLoadServerRequiresSecrets(t *testing.T) {
	t.Setenv("DB_DRIVER", "sqlite")
	t.Setenv("DB_DSN", "file:test.db")
	t.Setenv("JWT_SECRET", "")
	if _, err := LoadServer(); err == nil {
		t.Fatal("expected error without JWT_SECRET")
	}

	t.Setenv("JWT_SECRET", "secret")
	t.Setenv("DB_DRIVER", "oracle")
	if _, err := LoadServer(); err == nil {
		t.Fatal("expected error for unsupported driver")
	}
}

func TestClientConfigRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "notifybar.yaml")

	cfg, err := LoadClient(path)
	if err != nil {
		t.Fatalf("load missing: %v", err)
	}
	if cfg.APIURL != "http://localhost:8080" {
		t.Fatalf("default api url = %q", cfg.APIURL)
	}

	want := Client{APIURL: "https://servehub.example", Email: "vol@example.com"}
	if err := SaveClient(path, want); err != nil {
		t.Fatalf("save: %v", err)
	}
	got, err := LoadClient(path)
	if err != nil {
		t.Fatalf("load saved: %v", err)
	}
	if got != want {
		t.Fatalf("got %+v, want %+v", got, want)
	}
}

func TestClientConfigEnvOverride(t *testing.T) {
	t.Setenv("SERVEHUB_API_URL", "http://override:1234")
	cfg, err := LoadClient(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.APIURL != "http://override:1234" {
		t.Fatalf("api url = %q", cfg.APIURL)
	}
}
