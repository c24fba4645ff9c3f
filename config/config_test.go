package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadCreatesDefault(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.RPCAddress != ":8080" {
		t.Fatalf("unexpected rpc address: %s", cfg.RPCAddress)
	}
	if cfg.DBBackend != "leveldb" {
		t.Fatalf("unexpected backend: %s", cfg.DBBackend)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("default config not written: %v", err)
	}

	// The written file must round-trip.
	again, err := Load(path)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if again.ManagerAddress != cfg.ManagerAddress {
		t.Fatalf("reload mismatch: %s vs %s", again.ManagerAddress, cfg.ManagerAddress)
	}
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	doc := "ManagerAddress = \"mgr\"\nOwnerAddress = \"owner\"\n"
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.MaxRequestsPerMin != 120 || cfg.QuotaEpochSeconds != 60 {
		t.Fatalf("quota defaults not applied: %+v", cfg)
	}
	if cfg.Environment != "local" {
		t.Fatalf("environment default not applied: %s", cfg.Environment)
	}
}

func TestValidateRejectsBadBackend(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	doc := "ManagerAddress = \"mgr\"\nOwnerAddress = \"owner\"\nDBBackend = \"oracle\"\n"
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := Load(path); err == nil {
		t.Fatalf("expected error for unknown backend")
	}
}

func TestValidateRequiresAddresses(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	doc := "OwnerAddress = \"owner\"\n"
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := Load(path); err == nil {
		t.Fatalf("expected error for missing manager address")
	}
}
