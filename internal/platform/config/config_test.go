package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("API_PORT", "")
	os.Unsetenv("API_PORT")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.StorageDriver != DriverMemory {
		t.Fatalf("storage driver = %q, want memory", cfg.StorageDriver)
	}
	if cfg.DueSoonDays != 3 {
		t.Fatalf("due soon days = %d, want 3", cfg.DueSoonDays)
	}
	if cfg.JWTExp != 24*time.Hour {
		t.Fatalf("jwt exp = %v", cfg.JWTExp)
	}
}

func TestLoadFileThenEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "taskmaster.yaml")
	body := []byte(`
server:
  port: "9000"
auth:
  jwt_expiration_hours: 2
storage:
  driver: postgres
  auto_migrate: false
  postgres:
    host: db.internal
events:
  publisher: kafka
  kafka_brokers: ["k1:9092"]
`)
	if err := os.WriteFile(path, body, 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("DB_HOST", "override.internal")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.StorageDriver != DriverPostgres || cfg.DBAutoMigrate {
		t.Fatalf("storage = %q automigrate = %v", cfg.StorageDriver, cfg.DBAutoMigrate)
	}
	if cfg.JWTExp != 2*time.Hour {
		t.Fatalf("jwt exp = %v, want 2h", cfg.JWTExp)
	}
	if cfg.DBHost != "override.internal" {
		t.Fatalf("env should win over file, got %q", cfg.DBHost)
	}
	if len(cfg.KafkaBrokers) != 1 || cfg.KafkaBrokers[0] != "k1:9092" {
		t.Fatalf("brokers = %v", cfg.KafkaBrokers)
	}
}

func TestValidateRejectsUnknownDrivers(t *testing.T) {
	cfg := defaults()
	cfg.StorageDriver = "mongo"
	cfg.EventPublisher = DriverKafka
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected validation error")
	}
}

func TestGetEnvAsList(t *testing.T) {
	t.Setenv("TEST_LIST", " a, ,b ")
	got := getEnvAsList("TEST_LIST", nil)
	if len(got) != 2 || got[0] != "a" || got[1] != "b" {
		t.Fatalf("got %v", got)
	}
}
