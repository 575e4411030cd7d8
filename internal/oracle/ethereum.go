package oracle

import (
	"context"
	"fmt"
	"log/slog"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/matrixise/chainbridge/internal/catalog"
	"github.com/shopspring/decimal"
)

const (
	rpcTimeout    = 10 * time.Second
	maxRetries    = 3
	retryInterval = 500 * time.Millisecond
)

const erc20BalanceABI = `[
	{"constant":true,"inputs":[{"name":"_owner","type":"address"}],"name":"balanceOf","outputs":[{"name":"balance","type":"uint256"}],"payable":false,"stateMutability":"view","type":"function"}
]`

// Ethereum reads ERC20-family balances from JSON-RPC endpoints. TRC20
// tokens are not served and read as zero in the store.
type Ethereum struct {
	pool    *EndpointPool
	catalog *catalog.Catalog
	abi     abi.ABI
}

// NewEthereum connects to the given endpoints.
func NewEthereum(ctx context.Context, c *catalog.Catalog, urls []string) (*Ethereum, error) {
	pool, err := NewEndpointPool(ctx, urls)
	if err != nil {
		return nil, err
	}
	parsed, err := abi.JSON(strings.NewReader(erc20BalanceABI))
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to parse ABI: %w", err)
	}
	return &Ethereum{pool: pool, catalog: c, abi: parsed}, nil
}

// Close closes the RPC clients.
func (e *Ethereum) Close() {
	e.pool.Close()
}

// Health reports per-endpoint health.
func (e *Ethereum) Health() map[string]bool {
	return e.pool.Health()
}

func (e *Ethereum) FetchBalances(ctx context.Context, address string) (map[catalog.Key]decimal.Decimal, error) {
	if !common.IsHexAddress(address) {
		return nil, fmt.Errorf("not an account address: %q", address)
	}
	owner := common.HexToAddress(address)

	out := make(map[catalog.Key]decimal.Decimal)
	for _, t := range e.catalog.List() {
		if t.Family != catalog.FamilyERC20 {
			continue
		}
		raw, err := e.balanceOf(ctx, owner, t)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", t.Key(), err)
		}
		out[t.Key()] = ToDecimal(raw, t.Decimals)
		slog.Debug("On-chain balance read", "token", t.Key().String(), "raw", raw.String())
	}
	return out, nil
}

func (e *Ethereum) balanceOf(ctx context.Context, owner common.Address, t catalog.Token) (*big.Int, error) {
	rpcCtx, cancel := context.WithTimeout(ctx, rpcTimeout)
	defer cancel()

	var raw *big.Int
	err := e.withRetry(rpcCtx, func(call bindCaller) error {
		if t.Native {
			v, err := call.BalanceAt(rpcCtx, owner, nil)
			raw = v
			return err
		}
		contract := bind.NewBoundContract(common.HexToAddress(t.Address), e.abi, call, nil, nil)
		var res []any
		if err := contract.Call(&bind.CallOpts{Context: rpcCtx}, &res, "balanceOf", owner); err != nil {
			return err
		}
		v, ok := res[0].(*big.Int)
		if !ok {
			return fmt.Errorf("unexpected balanceOf result %T", res[0])
		}
		raw = v
		return nil
	})
	return raw, err
}

// bindCaller is the subset of ethclient.Client used here.
type bindCaller interface {
	bind.ContractCaller
	BalanceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (*big.Int, error)
}

// withRetry runs fn with exponential backoff, moving to another endpoint
// after each failure.
func (e *Ethereum) withRetry(ctx context.Context, fn func(bindCaller) error) error {
	var lastErr error
	for attempt := range maxRetries {
		if attempt > 0 {
			backoff := retryInterval * time.Duration(1<<uint(attempt-1))
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		client, url, err := e.pool.Acquire(ctx)
		if err != nil {
			lastErr = err
			continue
		}
		if err := fn(client); err != nil {
			lastErr = err
			e.pool.MarkUnhealthy(url, err)
			continue
		}
		return nil
	}
	return fmt.Errorf("failed after %d retries: %w", maxRetries, lastErr)
}

// ToDecimal scales a raw integer amount by 10^-decimals.
func ToDecimal(raw *big.Int, decimals int32) decimal.Decimal {
	if raw == nil {
		return decimal.Zero
	}
	return decimal.NewFromBigInt(raw, -decimals)
}
