package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/go-playground/validator/v10"
	"github.com/matrixise/chainbridge/internal/catalog"
	"github.com/matrixise/chainbridge/internal/lifecycle"
	"github.com/matrixise/chainbridge/internal/scheduler"
	"github.com/matrixise/chainbridge/internal/wallet"
)

// Config represents the application configuration
type Config struct {
	LogLevel        string           `mapstructure:"log_level" validate:"omitempty,oneof=debug info warn error"`
	HTTPPort        int              `mapstructure:"http_port" validate:"omitempty,min=1024,max=65535"`
	AllowedOrigins  []string         `mapstructure:"allowed_origins"`
	RatePerMinute   int              `mapstructure:"rate_per_minute" validate:"omitempty,min=1"`
	RefreshInterval string           `mapstructure:"refresh_interval" validate:"omitempty,schedule"`
	Wallet          WalletConfig     `mapstructure:"wallet"`
	Simulation      SimulationConfig `mapstructure:"simulation"`
	Oracle          OracleConfig     `mapstructure:"oracle"`
	Tokens          []TokenConfig    `mapstructure:"tokens" validate:"required,min=1,dive"`
}

// WalletConfig describes the simulated wallet provider
type WalletConfig struct {
	Address                string   `mapstructure:"address" validate:"required,eth_addr"`
	Network                string   `mapstructure:"network" validate:"required"`
	Networks               []string `mapstructure:"networks"`
	Strategies             []string `mapstructure:"strategies" validate:"dive,oneof=metamask injected walletconnect"`
	WalletConnectProjectID string   `mapstructure:"walletconnect_project_id"`
}

// SimulationConfig holds the simulated latencies
type SimulationConfig struct {
	ApprovalDelay   string `mapstructure:"approval_delay" validate:"omitempty,duration"`
	BridgeDelay     string `mapstructure:"bridge_delay" validate:"omitempty,duration"`
	SettlementDelay string `mapstructure:"settlement_delay" validate:"omitempty,duration"`
	ResetDelay      string `mapstructure:"reset_delay" validate:"omitempty,duration"`
	ErrorResetDelay string `mapstructure:"error_reset_delay" validate:"omitempty,duration"`
	Seed            uint64 `mapstructure:"seed"`
}

// OracleConfig selects the balance source
type OracleConfig struct {
	Kind    string   `mapstructure:"kind" validate:"omitempty,oneof=simulated ethereum"`
	RPCUrl  string   `mapstructure:"rpc_url"`
	RPCUrls []string `mapstructure:"rpc_urls" validate:"dive,url"`
}

// TokenConfig represents a single catalog entry
type TokenConfig struct {
	Symbol   string `mapstructure:"symbol" validate:"required,min=1,max=16"`
	Name     string `mapstructure:"name" validate:"required,min=1,max=100"`
	Family   string `mapstructure:"family" validate:"required,oneof=erc20 trc20 ERC20 TRC20"`
	Address  string `mapstructure:"address" validate:"required,family_addr"`
	Decimals int32  `mapstructure:"decimals" validate:"min=0,max=36"`
	Native   bool   `mapstructure:"native"`
}

// Normalize fills defaults and folds the single rpc_url into rpc_urls.
func (c *Config) Normalize() error {
	if len(c.Tokens) == 0 {
		for _, t := range catalog.DefaultTokens() {
			c.Tokens = append(c.Tokens, TokenConfig{
				Symbol:   t.Symbol,
				Name:     t.Name,
				Family:   string(t.Family),
				Address:  t.Address,
				Decimals: t.Decimals,
				Native:   t.Native,
			})
		}
	}

	if len(c.Wallet.Strategies) == 0 {
		for _, s := range wallet.DefaultOrder {
			c.Wallet.Strategies = append(c.Wallet.Strategies, string(s))
		}
	}

	d := lifecycle.DefaultTimings()
	defaultDuration(&c.Simulation.ApprovalDelay, d.Approval)
	defaultDuration(&c.Simulation.BridgeDelay, d.Bridge)
	defaultDuration(&c.Simulation.SettlementDelay, d.Settlement)
	defaultDuration(&c.Simulation.ResetDelay, d.Reset)

	if c.Oracle.Kind == "" {
		c.Oracle.Kind = "simulated"
	}
	if c.Oracle.RPCUrl != "" && len(c.Oracle.RPCUrls) == 0 {
		c.Oracle.RPCUrls = []string{c.Oracle.RPCUrl}
	}
	c.Oracle.RPCUrl = ""
	if c.Oracle.Kind == "ethereum" && len(c.Oracle.RPCUrls) == 0 {
		return errors.New("oracle.rpc_urls is required when oracle.kind is ethereum")
	}

	return nil
}

func defaultDuration(field *string, d time.Duration) {
	if *field == "" {
		*field = d.String()
	}
}

// Timings converts the simulation delays. Call after Normalize.
func (c *Config) Timings() (lifecycle.Timings, error) {
	var t lifecycle.Timings
	for _, f := range []struct {
		name string
		raw  string
		dst  *time.Duration
	}{
		{"approval_delay", c.Simulation.ApprovalDelay, &t.Approval},
		{"bridge_delay", c.Simulation.BridgeDelay, &t.Bridge},
		{"settlement_delay", c.Simulation.SettlementDelay, &t.Settlement},
		{"reset_delay", c.Simulation.ResetDelay, &t.Reset},
		{"error_reset_delay", c.Simulation.ErrorResetDelay, &t.ErrorReset},
	} {
		if f.raw == "" {
			continue
		}
		d, err := time.ParseDuration(f.raw)
		if err != nil {
			return lifecycle.Timings{}, fmt.Errorf("simulation.%s: %w", f.name, err)
		}
		*f.dst = d
	}
	return t, nil
}

// Catalog builds the token catalog from the configured tokens.
func (c *Config) Catalog() (*catalog.Catalog, error) {
	tokens := make([]catalog.Token, 0, len(c.Tokens))
	for _, tc := range c.Tokens {
		f, err := catalog.ParseFamily(tc.Family)
		if err != nil {
			return nil, err
		}
		tokens = append(tokens, catalog.Token{
			Symbol:   strings.ToUpper(tc.Symbol),
			Name:     tc.Name,
			Family:   f,
			Address:  tc.Address,
			Decimals: tc.Decimals,
			Native:   tc.Native,
		})
	}
	return catalog.New(tokens)
}

// Strategies returns the reachable wallet strategies.
func (c *Config) Strategies() ([]wallet.Strategy, error) {
	out := make([]wallet.Strategy, 0, len(c.Wallet.Strategies))
	for _, s := range c.Wallet.Strategies {
		st, err := wallet.ParseStrategy(s)
		if err != nil {
			return nil, err
		}
		out = append(out, st)
	}
	return out, nil
}

// ethAddressValidator validates Ethereum addresses
func ethAddressValidator(fl validator.FieldLevel) bool {
	return common.IsHexAddress(fl.Field().String())
}

// tronAddressValidator validates base58check TRON addresses
func tronAddressValidator(fl validator.FieldLevel) bool {
	return catalog.IsTronAddress(fl.Field().String())
}

// familyAddressValidator checks a token address against its sibling
// Family field.
func familyAddressValidator(fl validator.FieldLevel) bool {
	tc, ok := fl.Parent().Interface().(TokenConfig)
	if !ok {
		return false
	}
	f, err := catalog.ParseFamily(tc.Family)
	if err != nil {
		return false
	}
	return catalog.IsFamilyAddress(f, fl.Field().String())
}

// durationValidator validates duration strings
func durationValidator(fl validator.FieldLevel) bool {
	if fl.Field().String() == "" {
		return true
	}
	d, err := time.ParseDuration(fl.Field().String())
	return err == nil && d >= 0
}

// scheduleValidator accepts a clock-aligned duration or a cron expression
func scheduleValidator(fl validator.FieldLevel) bool {
	return scheduler.ValidateScheduleInterval(fl.Field().String()) == nil
}

// NewValidator creates a validator with custom validation rules
func NewValidator() *validator.Validate {
	validate := validator.New()
	validate.RegisterValidation("eth_addr", ethAddressValidator)
	validate.RegisterValidation("tron_addr", tronAddressValidator)
	validate.RegisterValidation("family_addr", familyAddressValidator)
	validate.RegisterValidation("duration", durationValidator)
	validate.RegisterValidation("schedule", scheduleValidator)
	return validate
}
