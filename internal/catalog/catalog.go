package catalog

import (
	"errors"
	"fmt"
)

var (
	ErrUnknownFamily  = errors.New("unknown token family")
	ErrDuplicateToken = errors.New("duplicate token")
	ErrInvalidAddress = errors.New("address does not match token family")
	ErrInvalidToken   = errors.New("invalid token")
	ErrEmptyCatalog   = errors.New("catalog has no tokens")
)

const (
	nativeDisplayDecimals  = 4
	defaultDisplayDecimals = 2
)

// Catalog is the registry of transferable tokens. It is built once and
// never mutated afterwards, so it is safe to share.
type Catalog struct {
	tokens []Token
	index  map[Key]int
}

// New validates the definitions and builds a catalog preserving their order.
func New(tokens []Token) (*Catalog, error) {
	if len(tokens) == 0 {
		return nil, ErrEmptyCatalog
	}

	nativeSymbol := ""
	for _, t := range tokens {
		if t.Native && t.Family == FamilyERC20 {
			nativeSymbol = t.Symbol
			break
		}
	}

	c := &Catalog{
		tokens: make([]Token, 0, len(tokens)),
		index:  make(map[Key]int, len(tokens)),
	}
	for _, t := range tokens {
		if t.Symbol == "" {
			return nil, fmt.Errorf("%w: empty symbol", ErrInvalidToken)
		}
		if !t.Family.Valid() {
			return nil, fmt.Errorf("%w: %s has family %q", ErrUnknownFamily, t.Symbol, t.Family)
		}
		if t.Decimals < 0 || t.Decimals > 36 {
			return nil, fmt.Errorf("%w: %s decimals %d out of range", ErrInvalidToken, t.Key(), t.Decimals)
		}
		if !IsFamilyAddress(t.Family, t.Address) {
			return nil, fmt.Errorf("%w: %s %q", ErrInvalidAddress, t.Key(), t.Address)
		}
		if _, ok := c.index[t.Key()]; ok {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateToken, t.Key())
		}

		t.DisplayDecimals = defaultDisplayDecimals
		if nativeSymbol != "" && t.Symbol == nativeSymbol {
			t.DisplayDecimals = nativeDisplayDecimals
		}

		c.index[t.Key()] = len(c.tokens)
		c.tokens = append(c.tokens, t)
	}
	return c, nil
}

// MustNew is New for static definitions known to be valid.
func MustNew(tokens []Token) *Catalog {
	c, err := New(tokens)
	if err != nil {
		panic(err)
	}
	return c
}

// Default returns the catalog of the eight bridgeable tokens.
func Default() *Catalog {
	return MustNew(DefaultTokens())
}

// DefaultTokens returns the built-in token definitions.
func DefaultTokens() []Token {
	return []Token{
		{Symbol: "ETH", Name: "Ethereum", Family: FamilyERC20, Decimals: 18, Native: true, Address: "0x0000000000000000000000000000000000000000"},
		{Symbol: "USDT", Name: "Tether USD", Family: FamilyERC20, Decimals: 6, Address: "0xdac17f958d2ee523a2206206994597c13d831ec7"},
		{Symbol: "USDC", Name: "USD Coin", Family: FamilyERC20, Decimals: 6, Address: "0xa0b86991c6218b36c1d19d4a2e9eb0ce3606eb48"},
		{Symbol: "BNB", Name: "Binance Coin (ERC20)", Family: FamilyERC20, Decimals: 18, Address: "0xB8c77482e45F1F44dE1745F52C74426C631bDD52"},
		{Symbol: "TRX", Name: "TRON", Family: FamilyTRC20, Decimals: 6, Native: true, Address: "T9yD14Nj9j7xAB4dbGeiX9h8unkKHxuWwb"},
		{Symbol: "USDT", Name: "Tether USD", Family: FamilyTRC20, Decimals: 6, Address: "TR7NHqjeKQxGTCi8q8ZY4pL8otSzgjLj6t"},
		{Symbol: "USDC", Name: "USD Coin", Family: FamilyTRC20, Decimals: 6, Address: "TEkxiTehnzSmSe2XqrBj4w32RUN966rdz8"},
		{Symbol: "BTT", Name: "BitTorrent", Family: FamilyTRC20, Decimals: 18, Address: "TAFjULxiVgT4qWk6UZwjqwZXTSaGaqnVp4"},
	}
}

// List returns the tokens in definition order.
func (c *Catalog) List() []Token {
	out := make([]Token, len(c.tokens))
	copy(out, c.tokens)
	return out
}

// Len returns the number of tokens.
func (c *Catalog) Len() int {
	return len(c.tokens)
}

// Find looks a token up by its (symbol, family) identity.
func (c *Catalog) Find(symbol string, family Family) (Token, bool) {
	i, ok := c.index[Key{Symbol: symbol, Family: family}]
	if !ok {
		return Token{}, false
	}
	return c.tokens[i], true
}

// Lookup is Find keyed by Key.
func (c *Catalog) Lookup(k Key) (Token, bool) {
	return c.Find(k.Symbol, k.Family)
}

// OtherFamilyVariant returns the token with the same symbol in the opposite
// family, e.g. USDT/TRC20 for USDT/ERC20.
func (c *Catalog) OtherFamilyVariant(t Token) (Token, bool) {
	return c.Find(t.Symbol, t.Family.Other())
}
