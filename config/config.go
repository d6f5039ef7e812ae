package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"

	"lendchain/crypto"
)

// Config captures the runtime settings for a lendchain node.
type Config struct {
	RPCAddress     string   `toml:"RPCAddress"`
	GatewayAddress string   `toml:"GatewayAddress"`
	DataDir        string   `toml:"DataDir"`
	Backend        string   `toml:"Backend"`
	GenesisFile    string   `toml:"GenesisFile"`
	ModuleAddress  string   `toml:"ModuleAddress"`
	PoolAddress    string   `toml:"PoolAddress"`
	PoolOperator   string   `toml:"PoolOperator"`
	PausedModules  []string `toml:"PausedModules"`

	Environment string `toml:"Environment"`
	LogFile     string `toml:"LogFile"`

	GatewayJWTSecret string `toml:"GatewayJWTSecret"`

	IndexerDriver string `toml:"IndexerDriver"`
	IndexerDSN    string `toml:"IndexerDSN"`

	Telemetry         bool   `toml:"Telemetry"`
	TelemetryEndpoint string `toml:"TelemetryEndpoint"`
}

const (
	defaultRPCAddress     = ":8545"
	defaultGatewayAddress = ":8080"
	defaultDataDir        = "./lendchain-data"
	defaultBackend        = "leveldb"
)

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
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if strings.TrimSpace(c.RPCAddress) == "" {
		c.RPCAddress = defaultRPCAddress
	}
	if strings.TrimSpace(c.GatewayAddress) == "" {
		c.GatewayAddress = defaultGatewayAddress
	}
	if strings.TrimSpace(c.DataDir) == "" {
		c.DataDir = defaultDataDir
	}
	if strings.TrimSpace(c.Backend) == "" {
		c.Backend = defaultBackend
	}
	if c.PausedModules == nil {
		c.PausedModules = []string{}
	}
	if strings.TrimSpace(c.IndexerDriver) == "" {
		c.IndexerDriver = "sqlite"
	}
}

// Validate rejects configurations with malformed addresses or unknown storage
// backends before the node starts mutating state.
func (c *Config) Validate() error {
	switch strings.ToLower(strings.TrimSpace(c.Backend)) {
	case "memory", "leveldb", "bolt":
	default:
		return fmt.Errorf("config: unknown storage backend %q", c.Backend)
	}
	for name, value := range map[string]string{
		"ModuleAddress": c.ModuleAddress,
		"PoolAddress":   c.PoolAddress,
		"PoolOperator":  c.PoolOperator,
	} {
		if strings.TrimSpace(value) == "" {
			continue
		}
		if _, err := crypto.DecodeAddress(value); err != nil {
			return fmt.Errorf("config: %s: %w", name, err)
		}
	}
	switch strings.ToLower(strings.TrimSpace(c.IndexerDriver)) {
	case "", "sqlite", "postgres":
	default:
		return fmt.Errorf("config: unknown indexer driver %q", c.IndexerDriver)
	}
	return nil
}

// Pauses converts the configured pause list into the view consumed by the
// engines.
func (c *Config) Pauses() map[string]bool {
	paused := make(map[string]bool, len(c.PausedModules))
	for _, module := range c.PausedModules {
		if trimmed := strings.TrimSpace(module); trimmed != "" {
			paused[trimmed] = true
		}
	}
	return paused
}

func createDefault(path string) (*Config, error) {
	cfg := &Config{}
	cfg.applyDefaults()
	if err := persist(path, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func persist(path string, cfg *Config) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()
	return toml.NewEncoder(file).Encode(cfg)
}
