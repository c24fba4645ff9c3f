package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
)

// Config is the credit daemon configuration loaded from TOML.
type Config struct {
	RPCAddress       string `toml:"RPCAddress"`
	DataDir          string `toml:"DataDir"`
	DBBackend        string `toml:"DBBackend"`
	ManagerAddress   string `toml:"ManagerAddress"`
	OwnerAddress     string `toml:"OwnerAddress"`
	RewardsCollector string `toml:"RewardsCollector"`
	ParamsFile       string `toml:"ParamsFile"`
	Environment      string `toml:"Environment"`
	LogFile          string `toml:"LogFile"`

	// Per-caller request quota enforced by the RPC server.
	MaxRequestsPerMin uint32 `toml:"MaxRequestsPerMin"`
	QuotaEpochSeconds uint32 `toml:"QuotaEpochSeconds"`
}

// Load loads the configuration from the given path, creating a default file
// when none exists.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return createDefault(path)
	}

	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, err
	}
	applyDefaults(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyDefaults(cfg *Config) {
	if strings.TrimSpace(cfg.RPCAddress) == "" {
		cfg.RPCAddress = ":8080"
	}
	if strings.TrimSpace(cfg.DataDir) == "" {
		cfg.DataDir = "./credit-data"
	}
	if strings.TrimSpace(cfg.DBBackend) == "" {
		cfg.DBBackend = "leveldb"
	}
	if cfg.MaxRequestsPerMin == 0 {
		cfg.MaxRequestsPerMin = 120
	}
	if cfg.QuotaEpochSeconds == 0 {
		cfg.QuotaEpochSeconds = 60
	}
	if strings.TrimSpace(cfg.Environment) == "" {
		cfg.Environment = "local"
	}
}

// Validate rejects configurations the daemon cannot start with.
func (cfg *Config) Validate() error {
	switch cfg.DBBackend {
	case "memory", "leveldb", "bolt":
	default:
		return fmt.Errorf("config: unknown DBBackend %q", cfg.DBBackend)
	}
	if strings.TrimSpace(cfg.ManagerAddress) == "" {
		return fmt.Errorf("config: ManagerAddress is required")
	}
	if strings.TrimSpace(cfg.OwnerAddress) == "" {
		return fmt.Errorf("config: OwnerAddress is required")
	}
	return nil
}

func createDefault(path string) (*Config, error) {
	cfg := &Config{
		RPCAddress:       ":8080",
		DataDir:          "./credit-data",
		DBBackend:        "leveldb",
		ManagerAddress:   "credit-manager",
		OwnerAddress:     "credit-owner",
		RewardsCollector: "credit-rewards",
		ParamsFile:       "params.yaml",
		Environment:      "local",
	}
	applyDefaults(cfg)
	if err := persist(path, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func persist(path string, cfg *Config) error {
	dir := filepath.Dir(path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_TRUNC|os.O_CREATE, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	return toml.NewEncoder(f).Encode(cfg)
}
