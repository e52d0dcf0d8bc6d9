package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	for _, k := range []string{"PORT", "DB_PORT", "MIGRATIONS", "CURRENCY", "NOTIFY_TIMEOUT", "REDIS_ADDR"} {
		t.Setenv(k, "")
	}
	cfg := Load()
	if cfg.Server.Port != "8080" {
		t.Fatalf("expected default port 8080 got %q", cfg.Server.Port)
	}
	if cfg.Database.Port != 5432 {
		t.Fatalf("expected default db port got %d", cfg.Database.Port)
	}
	if cfg.App.Migrations {
		t.Fatalf("expected migrations off by default")
	}
	if cfg.App.Currency != "SEK" {
		t.Fatalf("expected SEK got %q", cfg.App.Currency)
	}
	if cfg.Notify.Timeout != 10*time.Second {
		t.Fatalf("expected 10s notify timeout got %s", cfg.Notify.Timeout)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("DB_PORT", "6543")
	t.Setenv("MIGRATIONS", "yes")
	t.Setenv("NOTIFY_TIMEOUT", "3")
	t.Setenv("NOTIFY_WEBHOOK_URL", "https://hooks.example.com/discounts")
	t.Setenv("SERVER_READ_TIMEOUT", "not-a-number")

	cfg := Load()
	if cfg.Database.Port != 6543 {
		t.Fatalf("expected 6543 got %d", cfg.Database.Port)
	}
	if !cfg.App.Migrations {
		t.Fatalf("expected migrations on")
	}
	if cfg.Notify.Timeout != 3*time.Second {
		t.Fatalf("expected 3s got %s", cfg.Notify.Timeout)
	}
	if cfg.Notify.WebhookURL == "" {
		t.Fatalf("expected webhook url")
	}
	if cfg.Server.ReadTimeout != 15 {
		t.Fatalf("expected fallback read timeout 15 got %d", cfg.Server.ReadTimeout)
	}
}

func TestDatabaseURL(t *testing.T) {
	d := DatabaseConfig{Host: "db", Port: 5432, User: "u", Password: "p", DBName: "fb", SSLMode: "disable"}
	if got := d.URL(); got != "postgres://u:p@db:5432/fb?sslmode=disable" {
		t.Fatalf("unexpected url %q", got)
	}
}
