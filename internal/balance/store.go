// Package balance holds the per-token balances of the connected account.
//
// A Store is not safe for concurrent use; it is owned by a session and only
// touched from the session's event loop.
package balance

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/matrixise/chainbridge/internal/catalog"
	"github.com/matrixise/chainbridge/internal/wallet"
	"github.com/shopspring/decimal"
)

var (
	ErrOracleUnavailable = errors.New("balance oracle unavailable")
	ErrUnknownToken      = errors.New("token not in catalog")
	ErrNegativeAmount    = errors.New("amount must not be negative")
)

// Oracle supplies balances for an account address.
type Oracle interface {
	FetchBalances(ctx context.Context, address string) (map[catalog.Key]decimal.Decimal, error)
}

// Store maps every catalog token to a non-negative balance.
type Store struct {
	catalog     *catalog.Catalog
	oracle      Oracle
	balances    map[catalog.Key]decimal.Decimal
	refreshedAt time.Time
	logger      *slog.Logger
}

// NewStore creates a store with every balance at zero.
func NewStore(c *catalog.Catalog, oracle Oracle, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Store{
		catalog:  c,
		oracle:   oracle,
		balances: make(map[catalog.Key]decimal.Decimal, c.Len()),
		logger:   logger,
	}
	s.Reset()
	return s
}

// Reset zeroes every balance.
func (s *Store) Reset() {
	for _, t := range s.catalog.List() {
		s.balances[t.Key()] = decimal.Zero
	}
	s.refreshedAt = time.Time{}
}

// Refresh replaces all balances with fresh oracle values. On failure the
// previous balances are retained.
func (s *Store) Refresh(ctx context.Context, conn wallet.Connection) (map[catalog.Key]decimal.Decimal, error) {
	if !conn.Connected || conn.Address == "" {
		return nil, fmt.Errorf("%w: wallet not connected", ErrOracleUnavailable)
	}

	fetched, err := s.oracle.FetchBalances(ctx, conn.Address)
	if err != nil {
		s.logger.Warn("Balance refresh failed, keeping previous balances", "address", conn.Address, "error", err)
		return nil, fmt.Errorf("%w: %v", ErrOracleUnavailable, err)
	}

	for _, t := range s.catalog.List() {
		v, ok := fetched[t.Key()]
		if !ok || v.IsNegative() {
			v = decimal.Zero
		}
		s.balances[t.Key()] = v.RoundFloor(t.Decimals)
	}
	s.refreshedAt = time.Now()

	s.logger.Debug("Balances refreshed", "address", conn.Address, "tokens", len(s.balances))
	return s.Snapshot(), nil
}

// Get returns the balance of a token, zero when unknown.
func (s *Store) Get(symbol string, family catalog.Family) decimal.Decimal {
	return s.balances[catalog.Key{Symbol: symbol, Family: family}]
}

// Debit subtracts amount, flooring at zero and truncating to the token's
// decimals. It returns the new balance.
func (s *Store) Debit(symbol string, family catalog.Family, amount decimal.Decimal) (decimal.Decimal, error) {
	t, err := s.token(symbol, family, amount)
	if err != nil {
		return decimal.Zero, err
	}
	next := decimal.Max(decimal.Zero, s.balances[t.Key()].Sub(amount)).RoundFloor(t.Decimals)
	s.balances[t.Key()] = next
	return next, nil
}

// Credit adds amount, truncating to the token's decimals. It returns the
// new balance.
func (s *Store) Credit(symbol string, family catalog.Family, amount decimal.Decimal) (decimal.Decimal, error) {
	t, err := s.token(symbol, family, amount)
	if err != nil {
		return decimal.Zero, err
	}
	next := s.balances[t.Key()].Add(amount).RoundFloor(t.Decimals)
	s.balances[t.Key()] = next
	return next, nil
}

func (s *Store) token(symbol string, family catalog.Family, amount decimal.Decimal) (catalog.Token, error) {
	if amount.IsNegative() {
		return catalog.Token{}, ErrNegativeAmount
	}
	t, ok := s.catalog.Find(symbol, family)
	if !ok {
		return catalog.Token{}, fmt.Errorf("%w: %s-%s", ErrUnknownToken, symbol, family)
	}
	return t, nil
}

// Format renders a balance truncated to the token's display precision
// ("9.0000"). Stored balances keep the full decimals.
func (s *Store) Format(t catalog.Token) string {
	return s.Get(t.Symbol, t.Family).RoundFloor(t.DisplayDecimals).StringFixed(t.DisplayDecimals)
}

// Snapshot returns a copy of all balances.
func (s *Store) Snapshot() map[catalog.Key]decimal.Decimal {
	out := make(map[catalog.Key]decimal.Decimal, len(s.balances))
	for k, v := range s.balances {
		out[k] = v
	}
	return out
}

// RefreshedAt returns when the last successful refresh happened.
func (s *Store) RefreshedAt() time.Time {
	return s.refreshedAt
}
