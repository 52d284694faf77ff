package config

import (
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/BurntSushi/toml"
)

// VerifierConfig names one external proof-verification gateway and the
// endpoint serving it.
type VerifierConfig struct {
	Address   string `toml:"Address"`
	Endpoint  string `toml:"Endpoint"`
	AuthToken string `toml:"AuthToken"`
}

// Config is the marketd daemon configuration.
type Config struct {
	ListenAddress        string           `toml:"ListenAddress"`
	DataDir              string           `toml:"DataDir"`
	ServiceEnv           string           `toml:"ServiceEnv"`
	ReserveWindowSeconds int64            `toml:"ReserveWindowSeconds"`
	CustodyAddress       string           `toml:"CustodyAddress"`
	SchedulerAddress     string           `toml:"SchedulerAddress"`
	AdminAddresses       []string         `toml:"AdminAddresses"`
	AllowedAssets        []string         `toml:"AllowedAssets"`
	Verifiers            []VerifierConfig `toml:"Verifiers"`
}

// Load decodes and validates the configuration at the given path, filling in
// defaults for optional fields.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, err
	}
	if strings.TrimSpace(cfg.ListenAddress) == "" {
		cfg.ListenAddress = ":8645"
	}
	if strings.TrimSpace(cfg.DataDir) == "" {
		cfg.DataDir = "./marketd-data"
	}
	if cfg.ReserveWindowSeconds < 0 {
		return nil, fmt.Errorf("config: ReserveWindowSeconds must not be negative")
	}
	if strings.TrimSpace(cfg.CustodyAddress) == "" {
		return nil, fmt.Errorf("config: CustodyAddress is required")
	}
	if _, err := ParseAddress(cfg.CustodyAddress); err != nil {
		return nil, fmt.Errorf("config: CustodyAddress: %w", err)
	}
	if strings.TrimSpace(cfg.SchedulerAddress) != "" {
		if _, err := ParseAddress(cfg.SchedulerAddress); err != nil {
			return nil, fmt.Errorf("config: SchedulerAddress: %w", err)
		}
	}
	for i, admin := range cfg.AdminAddresses {
		if _, err := ParseAddress(admin); err != nil {
			return nil, fmt.Errorf("config: AdminAddresses[%d]: %w", i, err)
		}
	}
	for i, asset := range cfg.AllowedAssets {
		if _, err := ParseAddress(asset); err != nil {
			return nil, fmt.Errorf("config: AllowedAssets[%d]: %w", i, err)
		}
	}
	for i, v := range cfg.Verifiers {
		if _, err := ParseAddress(v.Address); err != nil {
			return nil, fmt.Errorf("config: Verifiers[%d].Address: %w", i, err)
		}
		if strings.TrimSpace(v.Endpoint) == "" {
			return nil, fmt.Errorf("config: Verifiers[%d].Endpoint is required", i)
		}
	}
	return cfg, nil
}

// ParseAddress normalises and validates a 20-byte address expressed as a hex
// string with an optional 0x prefix.
func ParseAddress(value string) ([20]byte, error) {
	var addr [20]byte
	trimmed := strings.TrimSpace(value)
	if strings.HasPrefix(trimmed, "0x") || strings.HasPrefix(trimmed, "0X") {
		trimmed = trimmed[2:]
	}
	if len(trimmed) != 40 {
		return addr, fmt.Errorf("address must be 20 bytes (got %d hex chars)", len(trimmed))
	}
	decoded, err := hex.DecodeString(trimmed)
	if err != nil {
		return addr, fmt.Errorf("decode address: %w", err)
	}
	copy(addr[:], decoded)
	return addr, nil
}
