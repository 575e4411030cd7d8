package catalog

import (
	"fmt"
	"strings"
)

// Family is the account-model convention a token belongs to.
type Family string

const (
	FamilyERC20 Family = "ERC20"
	FamilyTRC20 Family = "TRC20"
)

// ParseFamily accepts "erc20"/"trc20" in any case.
func ParseFamily(s string) (Family, error) {
	switch Family(strings.ToUpper(strings.TrimSpace(s))) {
	case FamilyERC20:
		return FamilyERC20, nil
	case FamilyTRC20:
		return FamilyTRC20, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownFamily, s)
	}
}

// Other returns the opposite family.
func (f Family) Other() Family {
	if f == FamilyERC20 {
		return FamilyTRC20
	}
	return FamilyERC20
}

// Valid reports whether f is one of the two known families.
func (f Family) Valid() bool {
	return f == FamilyERC20 || f == FamilyTRC20
}

// Key identifies a token uniquely. A symbol alone is not unique: USDT
// exists in both families as two distinct tokens.
type Key struct {
	Symbol string
	Family Family
}

func (k Key) String() string {
	return k.Symbol + "-" + string(k.Family)
}

// Token is an immutable transferable asset.
type Token struct {
	Symbol   string
	Name     string
	Family   Family
	Address  string
	Decimals int32
	// Native marks the chain-native asset of its family (ETH, TRX).
	Native bool
	// DisplayDecimals is the simplified precision bucket used to render
	// balances and received amounts: 4 for the ERC20 native symbol, 2
	// otherwise. Stored balances use Decimals. Set by New.
	DisplayDecimals int32
}

// Key returns the (symbol, family) identity of the token.
func (t Token) Key() Key {
	return Key{Symbol: t.Symbol, Family: t.Family}
}

// Same reports whether both tokens share symbol and family.
func (t Token) Same(o Token) bool {
	return t.Key() == o.Key()
}
