package backend

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"budgetbook/internal/config"
	"budgetbook/internal/core"
)

func TestFromAppConfig(t *testing.T) {
	if _, err := FromAppConfig(nil); err == nil {
		t.Error("FromAppConfig(nil) should fail")
	}
	if _, err := FromAppConfig(&config.Config{DataBackend: "redis"}); err == nil {
		t.Error("FromAppConfig should reject unknown backends")
	}

	cfg, err := FromAppConfig(&config.Config{DataBackend: "postgres", PostgresDSN: "postgres://x/y", AMQPQueue: "q"})
	if err != nil {
		t.Fatalf("FromAppConfig() error = %v", err)
	}
	if cfg.Type != PostgresBackend || cfg.PostgresDSN != "postgres://x/y" || cfg.AMQPQueue != "q" {
		t.Errorf("FromAppConfig() = %+v", cfg)
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		config  Config
		wantErr bool
	}{
		{"memory", Config{Type: MemoryBackend}, false},
		{"sqlite", Config{Type: SQLiteBackend, SQLiteDBPath: "x.db"}, false},
		{"sqlite without path", Config{Type: SQLiteBackend}, true},
		{"postgres without dsn", Config{Type: PostgresBackend}, true},
		{"seed without user", Config{Type: MemoryBackend, SeedCategoriesFile: "c.txt"}, true},
		{"unknown", Config{Type: "redis"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.config.Validate(); (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestCreateBackend_MemoryWithSeed(t *testing.T) {
	seed := filepath.Join(t.TempDir(), "categories.txt")
	if err := os.WriteFile(seed, []byte("# demo\nEXPENSE food 🍔\nINCOME salary\n"), 0644); err != nil {
		t.Fatal(err)
	}

	res, err := NewFactory(nil).CreateBackend(context.Background(), Config{
		Type:               MemoryBackend,
		SeedUserID:         "alice",
		SeedCategoriesFile: seed,
	})
	if err != nil {
		t.Fatalf("CreateBackend() error = %v", err)
	}
	defer res.Cleanup()

	if res.Broker != nil || res.Publisher() != nil {
		t.Error("no broker should be configured without an AMQP URL")
	}
	cats, err := res.Store.ListCategories(context.Background(), "alice", 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(cats) != 2 {
		t.Fatalf("seeded %d categories, want 2", len(cats))
	}
	expense, err := res.Store.ListCategories(context.Background(), "alice", core.Expense)
	if err != nil {
		t.Fatal(err)
	}
	if len(expense) != 1 || expense[0].Name != "food" {
		t.Errorf("expense categories = %+v", expense)
	}
}

func TestCreateBackend_SQLite(t *testing.T) {
	res, err := NewFactory(nil).CreateBackend(context.Background(), Config{
		Type:         SQLiteBackend,
		SQLiteDBPath: filepath.Join(t.TempDir(), "budget.db"),
	})
	if err != nil {
		t.Fatalf("CreateBackend() error = %v", err)
	}
	if err := res.Store.Ping(context.Background()); err != nil {
		t.Errorf("Ping() error = %v", err)
	}
	if err := res.Cleanup(); err != nil {
		t.Errorf("Cleanup() error = %v", err)
	}
}
