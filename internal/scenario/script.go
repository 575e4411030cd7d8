// Package scenario replays scripted user sessions against the bridge on
// virtual time. Scripts are TOML files with an ordered list of steps.
package scenario

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pelletier/go-toml/v2"
	"github.com/shopspring/decimal"

	"github.com/matrixise/chainbridge/internal/catalog"
)

// Step actions.
const (
	ActionConnect           = "connect"
	ActionDisconnect        = "disconnect"
	ActionRefresh           = "refresh"
	ActionNetwork           = "network"
	ActionSelectSource      = "select_source"
	ActionSelectDestination = "select_destination"
	ActionAmount            = "amount"
	ActionSwap              = "swap"
	ActionMax               = "max"
	ActionSubmit            = "submit"
	ActionDismiss           = "dismiss"
	ActionFault             = "fault"
	ActionAdvance           = "advance"
	ActionSettle            = "settle"
	ActionExpect            = "expect"
)

// Script is a named sequence of steps.
type Script struct {
	Name        string `toml:"name"`
	Description string `toml:"description"`
	// Start is the virtual clock origin; zero uses 2026-01-01T00:00:00Z.
	Start time.Time `toml:"start"`
	// Balances, keyed SYMBOL-FAMILY, replace the random oracle so that
	// expectations can name exact values.
	Balances map[string]string `toml:"balances"`
	Steps    []Step            `toml:"steps" validate:"required,min=1,dive"`
}

// Fixture parses Balances. It returns nil when the script has none.
func (sc *Script) Fixture() (map[catalog.Key]decimal.Decimal, error) {
	if len(sc.Balances) == 0 {
		return nil, nil
	}
	out := make(map[catalog.Key]decimal.Decimal, len(sc.Balances))
	for k, v := range sc.Balances {
		symbol, family, ok := strings.Cut(k, "-")
		if !ok {
			return nil, fmt.Errorf("balance key %q must be SYMBOL-FAMILY", k)
		}
		f, err := catalog.ParseFamily(family)
		if err != nil {
			return nil, err
		}
		d, err := decimal.NewFromString(v)
		if err != nil || d.IsNegative() {
			return nil, fmt.Errorf("balance %s: invalid value %q", k, v)
		}
		out[catalog.Key{Symbol: strings.ToUpper(symbol), Family: f}] = d
	}
	return out, nil
}

// Step is one command or assertion.
type Step struct {
	Action string `toml:"action" validate:"required,oneof=connect disconnect refresh network select_source select_destination amount swap max submit dismiss fault advance settle expect"`

	Symbol   string `toml:"symbol"`
	Family   string `toml:"family" validate:"omitempty,oneof=erc20 trc20 ERC20 TRC20"`
	Amount   string `toml:"amount"`
	Network  string `toml:"network" validate:"required_if=Action network"`
	Stage    string `toml:"stage" validate:"omitempty,oneof=approval bridge"`
	Duration string `toml:"duration" validate:"required_if=Action advance"`

	// ExpectError makes the step pass only when its command fails with an
	// error containing this text.
	ExpectError string `toml:"expect_error"`

	// Assertions for expect steps.
	Status    string            `toml:"status" validate:"omitempty,oneof=idle pending success error"`
	Connected *bool             `toml:"connected"`
	Balances  map[string]string `toml:"balances"`
	Selected  *string           `toml:"selected_amount"`
	Credited  *bool             `toml:"credited"`
}

func (s Step) String() string {
	var b strings.Builder
	b.WriteString(s.Action)
	switch s.Action {
	case ActionSelectSource, ActionSelectDestination:
		fmt.Fprintf(&b, " %s-%s", strings.ToUpper(s.Symbol), strings.ToUpper(s.Family))
	case ActionAmount:
		fmt.Fprintf(&b, " %q", s.Amount)
	case ActionNetwork:
		b.WriteString(" " + s.Network)
	case ActionAdvance:
		b.WriteString(" " + s.Duration)
	case ActionFault:
		if s.Stage == "" {
			b.WriteString(" off")
		} else {
			b.WriteString(" " + s.Stage)
		}
	}
	return b.String()
}

// Load reads and validates a script file.
func Load(path string) (*Script, error) {
	if !strings.HasSuffix(path, ".toml") {
		return nil, fmt.Errorf("scenario file must be a .toml file: %s", path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario %s: %w", path, err)
	}
	sc, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return sc, nil
}

// Parse decodes and validates a script.
func Parse(data []byte) (*Script, error) {
	var sc Script
	if err := toml.Unmarshal(data, &sc); err != nil {
		return nil, fmt.Errorf("failed to parse scenario: %w", err)
	}
	if err := validator.New().Struct(&sc); err != nil {
		return nil, fmt.Errorf("scenario validation failed: %w", err)
	}
	for i, st := range sc.Steps {
		switch st.Action {
		case ActionSelectSource, ActionSelectDestination:
			if st.Symbol == "" || st.Family == "" {
				return nil, fmt.Errorf("step %d: %s needs symbol and family", i+1, st.Action)
			}
		case ActionAdvance:
			if d, err := time.ParseDuration(st.Duration); err != nil || d < 0 {
				return nil, fmt.Errorf("step %d: invalid duration %q", i+1, st.Duration)
			}
		}
	}
	if _, err := sc.Fixture(); err != nil {
		return nil, err
	}
	if sc.Start.IsZero() {
		sc.Start = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	}
	return &sc, nil
}
