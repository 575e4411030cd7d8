package balance

import (
	"context"
	"testing"

	"github.com/matrixise/chainbridge/internal/catalog"
	"github.com/matrixise/chainbridge/internal/oracle"
	"github.com/matrixise/chainbridge/internal/wallet"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	ethA  = catalog.Key{Symbol: "ETH", Family: catalog.FamilyERC20}
	usdtA = catalog.Key{Symbol: "USDT", Family: catalog.FamilyERC20}
	usdtB = catalog.Key{Symbol: "USDT", Family: catalog.FamilyTRC20}

	connected = wallet.Connection{Address: "0x742d35Cc6634C0532925a3b844Bc9e7595f0bEb0", Connected: true, Network: "ethereum"}
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func newStore(t *testing.T, balances map[catalog.Key]decimal.Decimal) (*Store, *oracle.Static) {
	t.Helper()
	o := oracle.NewStatic(balances)
	s := NewStore(catalog.Default(), o, nil)
	_, err := s.Refresh(context.Background(), connected)
	require.NoError(t, err)
	return s, o
}

func token(t *testing.T, k catalog.Key) catalog.Token {
	t.Helper()
	tok, ok := catalog.Default().Lookup(k)
	require.True(t, ok)
	return tok
}

func TestNewStoreStartsAtZero(t *testing.T) {
	s := NewStore(catalog.Default(), oracle.NewStatic(nil), nil)

	snap := s.Snapshot()
	assert.Len(t, snap, 8)
	for k, v := range snap {
		assert.True(t, v.IsZero(), k.String())
	}
	assert.True(t, s.RefreshedAt().IsZero())
}

func TestRefreshRequiresConnection(t *testing.T) {
	o := oracle.NewStatic(map[catalog.Key]decimal.Decimal{ethA: dec("1")})
	s := NewStore(catalog.Default(), o, nil)

	_, err := s.Refresh(context.Background(), wallet.Connection{})
	assert.ErrorIs(t, err, ErrOracleUnavailable)
	assert.Equal(t, 0, o.Calls())
}

func TestRefreshFillsEveryToken(t *testing.T) {
	s, _ := newStore(t, map[catalog.Key]decimal.Decimal{
		ethA:  dec("10.123456"),
		usdtB: dec("-3"),
	})

	assert.Equal(t, "10.123456", s.Get("ETH", catalog.FamilyERC20).String())
	assert.Equal(t, "10.1234", s.Format(token(t, ethA)))
	assert.True(t, s.Get("USDT", catalog.FamilyTRC20).IsZero(), "negative oracle values clamp to zero")
	assert.True(t, s.Get("BTT", catalog.FamilyTRC20).IsZero(), "missing tokens read as zero")
	assert.Len(t, s.Snapshot(), 8)
	assert.False(t, s.RefreshedAt().IsZero())
}

func TestRefreshFailureKeepsPreviousBalances(t *testing.T) {
	s, o := newStore(t, map[catalog.Key]decimal.Decimal{ethA: dec("5")})

	o.SetDown(true)
	_, err := s.Refresh(context.Background(), connected)
	assert.ErrorIs(t, err, ErrOracleUnavailable)
	assert.Equal(t, "5", s.Get("ETH", catalog.FamilyERC20).String())
}

func TestGetUnknownIsZero(t *testing.T) {
	s, _ := newStore(t, nil)
	assert.True(t, s.Get("DOGE", catalog.FamilyERC20).IsZero())
}

func TestDebit(t *testing.T) {
	tests := []struct {
		name    string
		key     catalog.Key
		start   string
		amount  string
		want    string
		display string
	}{
		{"simple", ethA, "10", "1", "9", "9.0000"},
		{"floors at zero", usdtA, "1", "5", "0", "0.00"},
		{"keeps full ETH precision", ethA, "1", "0.123456", "0.876544", "0.8765"},
		{"keeps sub-cent stablecoin amounts", usdtA, "10", "0.005", "9.995", "9.99"},
		{"truncates to token decimals", usdtA, "1", "0.0000001", "0.999999", "0.99"},
		{"exact", usdtA, "3.5", "3.5", "0", "0.00"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, _ := newStore(t, map[catalog.Key]decimal.Decimal{tt.key: dec(tt.start)})

			got, err := s.Debit(tt.key.Symbol, tt.key.Family, dec(tt.amount))
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.String())
			assert.False(t, got.IsNegative())

			assert.Equal(t, tt.display, s.Format(token(t, tt.key)))
		})
	}
}

func TestCredit(t *testing.T) {
	tests := []struct {
		name   string
		key    catalog.Key
		start  string
		amount string
		want   string
	}{
		{"simple", usdtB, "0", "1", "1"},
		{"sub-cent amount", usdtB, "0", "0.001", "0.001"},
		{"truncates not rounds", usdtB, "0", "0.9999999", "0.999999"},
		{"eth precision", ethA, "1.5", "0.00019", "1.50019"},
		{"eth truncates past 18 places", ethA, "0", "0.0000000000000000019", "0.000000000000000001"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, _ := newStore(t, map[catalog.Key]decimal.Decimal{tt.key: dec(tt.start)})

			got, err := s.Credit(tt.key.Symbol, tt.key.Family, dec(tt.amount))
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.String())
			assert.True(t, got.Equal(s.Get(tt.key.Symbol, tt.key.Family)))
		})
	}
}

func TestDebitCreditRoundTrip(t *testing.T) {
	s, _ := newStore(t, map[catalog.Key]decimal.Decimal{usdtA: dec("50")})

	_, err := s.Debit("USDT", catalog.FamilyERC20, dec("12.34"))
	require.NoError(t, err)
	_, err = s.Credit("USDT", catalog.FamilyERC20, dec("12.34"))
	require.NoError(t, err)

	assert.Equal(t, "50", s.Get("USDT", catalog.FamilyERC20).String())
}

func TestSubBucketTransferRoundTrip(t *testing.T) {
	s, _ := newStore(t, map[catalog.Key]decimal.Decimal{usdtA: dec("50")})

	got, err := s.Debit("USDT", catalog.FamilyERC20, dec("0.001"))
	require.NoError(t, err)
	assert.Equal(t, "49.999", got.String())

	got, err = s.Credit("USDT", catalog.FamilyTRC20, dec("0.001"))
	require.NoError(t, err)
	assert.Equal(t, "0.001", got.String())

	got, err = s.Credit("USDT", catalog.FamilyERC20, dec("0.001"))
	require.NoError(t, err)
	assert.Equal(t, "50", got.String())
}

func TestFormatTruncates(t *testing.T) {
	s, _ := newStore(t, map[catalog.Key]decimal.Decimal{usdtA: dec("49.999"), ethA: dec("0.99999")})

	assert.Equal(t, "49.99", s.Format(token(t, usdtA)))
	assert.Equal(t, "0.9999", s.Format(token(t, ethA)))
}

func TestMutationErrors(t *testing.T) {
	s, _ := newStore(t, nil)

	_, err := s.Debit("DOGE", catalog.FamilyERC20, dec("1"))
	assert.ErrorIs(t, err, ErrUnknownToken)

	_, err = s.Credit("ETH", catalog.FamilyERC20, dec("-1"))
	assert.ErrorIs(t, err, ErrNegativeAmount)

	_, err = s.Debit("ETH", catalog.FamilyERC20, dec("-1"))
	assert.ErrorIs(t, err, ErrNegativeAmount)
}

func TestSnapshotIsCopy(t *testing.T) {
	s, _ := newStore(t, map[catalog.Key]decimal.Decimal{ethA: dec("3")})

	snap := s.Snapshot()
	snap[ethA] = dec("100")
	assert.Equal(t, "3", s.Get("ETH", catalog.FamilyERC20).String())
}

func TestReset(t *testing.T) {
	s, _ := newStore(t, map[catalog.Key]decimal.Decimal{ethA: dec("3")})
	s.Reset()

	assert.True(t, s.Get("ETH", catalog.FamilyERC20).IsZero())
	assert.True(t, s.RefreshedAt().IsZero())
}
