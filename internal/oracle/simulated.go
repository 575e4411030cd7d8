// Package oracle provides balance sources for the balance store.
package oracle

import (
	"context"
	"errors"
	"math/rand/v2"
	"sync"

	"github.com/matrixise/chainbridge/internal/catalog"
	"github.com/shopspring/decimal"
)

// maxSimulatedBalance bounds synthetic balances to [0, 100).
var maxSimulatedBalance = decimal.NewFromInt(100)

// Simulated generates synthetic balances for every catalog token.
type Simulated struct {
	catalog *catalog.Catalog
	mu      sync.Mutex
	rng     *rand.Rand
}

// NewSimulated returns a simulated oracle. The same seed yields the same
// sequence of balances.
func NewSimulated(c *catalog.Catalog, seed uint64) *Simulated {
	return &Simulated{
		catalog: c,
		rng:     rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
	}
}

func (s *Simulated) FetchBalances(ctx context.Context, address string) (map[catalog.Key]decimal.Decimal, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	out := make(map[catalog.Key]decimal.Decimal, s.catalog.Len())
	for _, t := range s.catalog.List() {
		v := decimal.NewFromFloat(s.rng.Float64()).Mul(maxSimulatedBalance)
		out[t.Key()] = v.RoundFloor(t.DisplayDecimals)
	}
	return out, nil
}

// ErrStaticUnavailable is returned by a Static oracle marked down.
var ErrStaticUnavailable = errors.New("static oracle down")

// Static serves a fixed set of balances.
type Static struct {
	mu       sync.Mutex
	balances map[catalog.Key]decimal.Decimal
	down     bool
	calls    int
}

// NewStatic returns an oracle that always answers with balances.
func NewStatic(balances map[catalog.Key]decimal.Decimal) *Static {
	return &Static{balances: balances}
}

// SetDown makes subsequent fetches fail.
func (s *Static) SetDown(down bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.down = down
}

// Calls returns the number of fetches served or refused.
func (s *Static) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func (s *Static) FetchBalances(ctx context.Context, address string) (map[catalog.Key]decimal.Decimal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.down {
		return nil, ErrStaticUnavailable
	}
	out := make(map[catalog.Key]decimal.Decimal, len(s.balances))
	for k, v := range s.balances {
		out[k] = v
	}
	return out, nil
}
