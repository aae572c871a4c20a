package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"

	"arenapool/native/pool"
)

// Config holds the daemon configuration. Addresses are bech32 strings decoded
// at wiring time so a malformed file fails fast.
type Config struct {
	RPCAddress           string `toml:"RPCAddress"`
	MetricsAddress       string `toml:"MetricsAddress"`
	DataDir              string `toml:"DataDir"`
	Env                  string `toml:"Env"`
	AuthorityAddress     string `toml:"AuthorityAddress"`
	AdminAddress         string `toml:"AdminAddress"`
	OwnerAddress         string `toml:"OwnerAddress"`
	VaultAddress         string `toml:"VaultAddress"`
	RewardVaultAddress   string `toml:"RewardVaultAddress"`
	RewardVaultEndpoint  string `toml:"RewardVaultEndpoint"`
	AbandonWindowSeconds int64  `toml:"AbandonWindowSeconds"`
	StaleWindowSeconds   int64  `toml:"StaleWindowSeconds"`
}

// Load loads the configuration from the given path, creating a commented-out
// default file on first run.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return createDefault(path)
	}

	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, err
	}
	applyDefaults(cfg)
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.RPCAddress == "" {
		cfg.RPCAddress = ":8545"
	}
	if cfg.MetricsAddress == "" {
		cfg.MetricsAddress = ":9090"
	}
	if cfg.DataDir == "" {
		cfg.DataDir = "./arenapool-data"
	}
	if cfg.AbandonWindowSeconds <= 0 {
		cfg.AbandonWindowSeconds = pool.DefaultAbandonWindow
	}
	if cfg.StaleWindowSeconds <= 0 {
		cfg.StaleWindowSeconds = pool.DefaultStaleWindow
	}
}

// createDefault saves a skeleton configuration file and reports that the
// operator must fill in the required identities before the daemon can run.
func createDefault(path string) (*Config, error) {
	cfg := &Config{}
	applyDefaults(cfg)

	if err := persist(path, cfg); err != nil {
		return nil, err
	}
	return nil, fmt.Errorf("config: wrote default configuration to %s; fill in the authority, admin, owner and vault addresses", path)
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
