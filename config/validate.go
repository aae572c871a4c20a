package config

import (
	"fmt"
	"net/url"
	"strings"

	"arenapool/crypto"
)

// Validate rejects configurations the daemon cannot safely run with. The
// authority, admin, owner and vault identities are mandatory; the reward vault
// pair is optional but must be supplied together.
func Validate(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("config: nil configuration")
	}
	required := map[string]string{
		"AuthorityAddress": cfg.AuthorityAddress,
		"AdminAddress":     cfg.AdminAddress,
		"OwnerAddress":     cfg.OwnerAddress,
		"VaultAddress":     cfg.VaultAddress,
	}
	for field, value := range required {
		if strings.TrimSpace(value) == "" {
			return fmt.Errorf("config: %s is required", field)
		}
		if _, err := crypto.DecodeAddress(value); err != nil {
			return fmt.Errorf("config: %s: %w", field, err)
		}
	}
	hasAddr := strings.TrimSpace(cfg.RewardVaultAddress) != ""
	hasEndpoint := strings.TrimSpace(cfg.RewardVaultEndpoint) != ""
	if hasAddr != hasEndpoint {
		return fmt.Errorf("config: RewardVaultAddress and RewardVaultEndpoint must be set together")
	}
	if hasAddr {
		if _, err := crypto.DecodeAddress(cfg.RewardVaultAddress); err != nil {
			return fmt.Errorf("config: RewardVaultAddress: %w", err)
		}
		if _, err := url.Parse(cfg.RewardVaultEndpoint); err != nil {
			return fmt.Errorf("config: RewardVaultEndpoint: %w", err)
		}
	}
	return nil
}
