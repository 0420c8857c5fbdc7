package config

import (
	"strings"
	"testing"
	"time"
)

func validLocal() Config {
	return Config{
		App:     AppConfig{Env: "local", Port: 8000},
		Session: SessionConfig{Secret: "secret", Store: StoreMemory},
	}
}

func TestValidate_ReportsMissingRequired(t *testing.T) {
	c := Config{}
	err := c.Validate()
	if err == nil {
		t.Fatalf("expected validation error")
	}
	for _, want := range []string{"APP_ENV", "APP_PORT", "SESSION_SECRET"} {
		if !strings.Contains(err.Error(), want) {
			t.Fatalf("expected %s in %q", want, err)
		}
	}
}

func TestValidate_LocalDefaults(t *testing.T) {
	c := validLocal()
	if err := c.Validate(); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if c.Gateway.BaseURL != "http://localhost:3000" {
		t.Fatalf("unexpected gateway default %q", c.Gateway.BaseURL)
	}
	if c.Gateway.Timeout != 30*time.Second || c.Gateway.DirectTimeout != 10*time.Second {
		t.Fatalf("unexpected timeouts %v %v", c.Gateway.Timeout, c.Gateway.DirectTimeout)
	}
	if c.Session.TTL != 24*time.Hour || c.Session.RememberTTL != 30*24*time.Hour {
		t.Fatalf("unexpected session ttls %v %v", c.Session.TTL, c.Session.RememberTTL)
	}
	if len(c.Crypto.EncryptionKey) != 64 {
		t.Fatalf("expected dev encryption key default")
	}
}

func TestValidate_ProductionRequiresEncryptionKey(t *testing.T) {
	c := validLocal()
	c.App.Env = "production"
	c.Session.Store = StoreRedis
	c.Redis.Host = "redis"
	err := c.Validate()
	if err == nil || !strings.Contains(err.Error(), "ENCRYPTION_KEY") {
		t.Fatalf("expected ENCRYPTION_KEY error, got %v", err)
	}
}

func TestValidate_RejectsShortKey(t *testing.T) {
	c := validLocal()
	c.Crypto.EncryptionKey = "abcd"
	if err := c.Validate(); err == nil {
		t.Fatalf("expected key length error")
	}
}

func TestValidate_PostgresStoreRequiresDB(t *testing.T) {
	c := validLocal()
	c.Session.Store = StorePostgres
	if err := c.Validate(); err == nil {
		t.Fatalf("expected DB errors")
	}

	c = validLocal()
	c.Session.Store = StorePostgres
	c.DB = DBConfig{Host: "localhost", User: "postgres", Name: "frontend"}
	if err := c.Validate(); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if c.DB.SSLMode != "disable" || c.DB.Port != 5432 {
		t.Fatalf("expected local db defaults, got %+v", c.DB)
	}
}

func TestLoad_FromEnv(t *testing.T) {
	t.Setenv("APP_ENV", "dev")
	t.Setenv("APP_PORT", "8000")
	t.Setenv("SESSION_SECRET", "s3cret")
	t.Setenv("SESSION_STORE", "sqlite")
	t.Setenv("GATEWAY_BASE_URL", "http://gateway:3000/")
	t.Setenv("GATEWAY_TIMEOUT", "5s")
	t.Setenv("LEGACY_SERVICE_URLS", "appointments=http://appt:3003, users=http://users:3001/")

	c, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if c.Gateway.BaseURL != "http://gateway:3000" {
		t.Fatalf("expected trailing slash trimmed, got %q", c.Gateway.BaseURL)
	}
	if c.Gateway.Timeout != 5*time.Second {
		t.Fatalf("expected 5s timeout, got %v", c.Gateway.Timeout)
	}
	if c.Gateway.Services["users"] != "http://users:3001" {
		t.Fatalf("unexpected services %v", c.Gateway.Services)
	}
	if got := c.ServiceNames(); len(got) != 2 || got[0] != "appointments" {
		t.Fatalf("unexpected service names %v", got)
	}
	if c.SQLite.Path == "" {
		t.Fatalf("expected sqlite path default")
	}
}

func TestLoad_RejectsBadServiceEntry(t *testing.T) {
	t.Setenv("APP_ENV", "dev")
	t.Setenv("APP_PORT", "8000")
	t.Setenv("SESSION_SECRET", "s3cret")
	t.Setenv("LEGACY_SERVICE_URLS", "appointments")

	if _, err := Load(); err == nil {
		t.Fatalf("expected parse error")
	}
}

func TestValidate_RedisURLReplacesHost(t *testing.T) {
	c := validLocal()
	c.Session.Store = StoreRedis
	c.Redis.URL = "redis://cache:6380/2"
	if err := c.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	c.Redis.URL = "cache:6380"
	if err := c.Validate(); err == nil || !strings.Contains(err.Error(), "REDIS_URL") {
		t.Fatalf("expected REDIS_URL scheme error, got %v", err)
	}
}
