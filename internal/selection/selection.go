// Package selection holds the in-progress transfer choice: source token,
// destination token and amount.
package selection

import (
	"errors"
	"fmt"

	"github.com/matrixise/chainbridge/internal/amount"
	"github.com/matrixise/chainbridge/internal/catalog"
)

var (
	ErrValidation   = errors.New("amount rejected")
	ErrUnknownToken = errors.New("token not in catalog")
	ErrNoSource     = errors.New("no source token selected")
)

// Balances renders the current balance of a token.
type Balances interface {
	Format(t catalog.Token) string
}

// Option is a selectable token with its balance attached.
type Option struct {
	Token   catalog.Token
	Balance string
}

// Selection is the working state of one session.
type Selection struct {
	catalog     *catalog.Catalog
	balances    Balances
	source      *catalog.Token
	destination *catalog.Token
	amount      string
}

// New creates an empty selection.
func New(c *catalog.Catalog, balances Balances) *Selection {
	return &Selection{catalog: c, balances: balances}
}

// SelectSource sets the source token. When the destination is the same
// token it moves to the other-family variant, if the catalog has one.
func (s *Selection) SelectSource(t catalog.Token) error {
	tok, err := s.resolve(t)
	if err != nil {
		return err
	}
	s.source = &tok
	if s.destination != nil && s.destination.Same(tok) {
		if other, ok := s.catalog.OtherFamilyVariant(tok); ok {
			s.destination = &other
		}
	}
	return nil
}

// SelectDestination sets the destination token. Picking the current source
// selects its other-family variant instead, so the source stays as chosen;
// without a variant the token is taken as is.
func (s *Selection) SelectDestination(t catalog.Token) error {
	tok, err := s.resolve(t)
	if err != nil {
		return err
	}
	if s.source != nil && s.source.Same(tok) {
		if other, ok := s.catalog.OtherFamilyVariant(tok); ok {
			tok = other
		}
	}
	s.destination = &tok
	return nil
}

func (s *Selection) resolve(t catalog.Token) (catalog.Token, error) {
	tok, ok := s.catalog.Lookup(t.Key())
	if !ok {
		return catalog.Token{}, fmt.Errorf("%w: %s", ErrUnknownToken, t.Key())
	}
	return tok, nil
}

// SetAmount stores raw if it is empty or an unsigned decimal with at most
// eight fractional digits. Rejected input leaves the amount unchanged.
func (s *Selection) SetAmount(raw string) error {
	if err := amount.Validate(raw); err != nil {
		return fmt.Errorf("%w: %w", ErrValidation, err)
	}
	s.amount = raw
	return nil
}

// ClearAmount empties the amount.
func (s *Selection) ClearAmount() {
	s.amount = ""
}

// Swap exchanges source and destination. It does nothing unless both are set.
func (s *Selection) Swap() {
	if s.source == nil || s.destination == nil {
		return
	}
	s.source, s.destination = s.destination, s.source
}

// MaxAmount sets the amount to the source balance.
func (s *Selection) MaxAmount() error {
	if s.source == nil {
		return ErrNoSource
	}
	return s.SetAmount(s.balances.Format(*s.source))
}

// Source returns a copy of the source token, nil when unset.
func (s *Selection) Source() *catalog.Token {
	return clone(s.source)
}

// Destination returns a copy of the destination token, nil when unset.
func (s *Selection) Destination() *catalog.Token {
	return clone(s.destination)
}

// Amount returns the raw amount input.
func (s *Selection) Amount() string {
	return s.amount
}

// SourceBalance is the balance attached to the source, "" when unset.
func (s *Selection) SourceBalance() string {
	if s.source == nil {
		return ""
	}
	return s.balances.Format(*s.source)
}

// DestinationBalance is the balance attached to the destination.
func (s *Selection) DestinationBalance() string {
	if s.destination == nil {
		return ""
	}
	return s.balances.Format(*s.destination)
}

// AvailableSources lists every catalog token with its balance.
func (s *Selection) AvailableSources() []Option {
	tokens := s.catalog.List()
	out := make([]Option, 0, len(tokens))
	for _, t := range tokens {
		out = append(out, Option{Token: t, Balance: s.balances.Format(t)})
	}
	return out
}

// AvailableDestinations lists every catalog token except the current
// source, with balances.
func (s *Selection) AvailableDestinations() []Option {
	tokens := s.catalog.List()
	out := make([]Option, 0, len(tokens))
	for _, t := range tokens {
		if s.source != nil && s.source.Same(t) {
			continue
		}
		out = append(out, Option{Token: t, Balance: s.balances.Format(t)})
	}
	return out
}

func clone(t *catalog.Token) *catalog.Token {
	if t == nil {
		return nil
	}
	c := *t
	return &c
}
