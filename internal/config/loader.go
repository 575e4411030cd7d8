package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// Load reads configuration from file and environment variables
func Load(configPath string) (*Config, error) {
	v := viper.New()

	// 1. Set defaults
	v.SetDefault("log_level", "info")
	v.SetDefault("http_port", 8080)
	v.SetDefault("rate_per_minute", 120)
	v.SetDefault("refresh_interval", "")
	v.SetDefault("wallet.network", "ethereum")
	v.SetDefault("oracle.kind", "simulated")

	// 2. Configure config file
	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("toml")
		v.AddConfigPath(".")
	}

	// 3. Environment variables
	// CHAINBRIDGE_WALLET_ADDRESS -> wallet.address
	v.SetEnvPrefix("CHAINBRIDGE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	for _, key := range []string{
		"log_level",
		"http_port",
		"allowed_origins",
		"rate_per_minute",
		"refresh_interval",
		"wallet.address",
		"wallet.network",
		"wallet.networks",
		"wallet.strategies",
		"wallet.walletconnect_project_id",
		"simulation.approval_delay",
		"simulation.bridge_delay",
		"simulation.settlement_delay",
		"simulation.reset_delay",
		"simulation.error_reset_delay",
		"simulation.seed",
		"oracle.kind",
		"oracle.rpc_url",
		"oracle.rpc_urls",
	} {
		v.BindEnv(key)
	}

	// 4. Read config file
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	// 5. Unmarshal into struct
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// Comma-separated lists from env vars
	splitList(v, "allowed_origins", &cfg.AllowedOrigins)
	splitList(v, "wallet.networks", &cfg.Wallet.Networks)
	splitList(v, "wallet.strategies", &cfg.Wallet.Strategies)
	splitList(v, "oracle.rpc_urls", &cfg.Oracle.RPCUrls)

	// 6. Normalize: default tokens, strategies and delays
	if err := cfg.Normalize(); err != nil {
		return nil, fmt.Errorf("config normalization failed: %w", err)
	}

	// 7. Validate with validator
	validate := NewValidator()
	if err := validate.Struct(&cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	// 8. Catalog-level checks (duplicates) the struct tags cannot express
	if _, err := cfg.Catalog(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

func splitList(v *viper.Viper, key string, dst *[]string) {
	raw := v.GetString(key)
	if raw == "" || !strings.Contains(raw, ",") {
		return
	}
	parts := strings.Split(raw, ",")
	out := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	*dst = out
}

// LoadWithDefaults loads config and the optional DATABASE_URL from the
// environment. An empty URL disables the transfer journal.
func LoadWithDefaults(configPath string) (*Config, string, error) {
	cfg, err := Load(configPath)
	if err != nil {
		return nil, "", err
	}

	v := viper.New()
	v.BindEnv("database_url", "DATABASE_URL")

	return cfg, v.GetString("database_url"), nil
}

// RequireDatabaseURL returns DATABASE_URL or an error when it is unset.
func RequireDatabaseURL() (string, error) {
	v := viper.New()
	v.BindEnv("database_url", "DATABASE_URL")
	databaseURL := v.GetString("database_url")
	if databaseURL == "" {
		return "", fmt.Errorf("DATABASE_URL is required")
	}
	return databaseURL, nil
}
