package oracle

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/ethclient"
)

const (
	endpointCooldown = 5 * time.Minute
	dialCheckTimeout = 5 * time.Second
)

var ErrNoHealthyEndpoint = errors.New("no healthy RPC endpoint available")

type endpoint struct {
	url       string
	client    *ethclient.Client
	healthy   bool
	lastError error
	failedAt  time.Time
}

// EndpointPool rotates across RPC endpoints, parking failed ones for a
// cooldown before redialing.
type EndpointPool struct {
	mu        sync.Mutex
	endpoints []*endpoint
	current   int
	dial      func(ctx context.Context, url string) (*ethclient.Client, error)
}

// NewEndpointPool dials every URL. It fails only when none answers.
func NewEndpointPool(ctx context.Context, urls []string) (*EndpointPool, error) {
	if len(urls) == 0 {
		return nil, fmt.Errorf("at least one RPC URL is required")
	}

	p := &EndpointPool{dial: dialChecked}
	healthy := 0
	for _, url := range urls {
		client, err := p.dial(ctx, url)
		ep := &endpoint{url: url, client: client, healthy: err == nil, lastError: err}
		if err != nil {
			ep.failedAt = time.Now()
			slog.Warn("RPC endpoint unreachable, will retry after cooldown", "url", url, "error", err)
		} else {
			healthy++
			slog.Info("Connected to RPC endpoint", "url", url)
		}
		p.endpoints = append(p.endpoints, ep)
	}

	if healthy == 0 {
		return nil, ErrNoHealthyEndpoint
	}
	return p, nil
}

// dialChecked dials url and confirms it answers eth_chainId.
func dialChecked(ctx context.Context, url string) (*ethclient.Client, error) {
	client, err := ethclient.DialContext(ctx, url)
	if err != nil {
		return nil, err
	}
	checkCtx, cancel := context.WithTimeout(ctx, dialCheckTimeout)
	defer cancel()
	if _, err := client.ChainID(checkCtx); err != nil {
		client.Close()
		return nil, err
	}
	return client, nil
}

// Acquire returns a healthy client, redialing parked endpoints whose
// cooldown has expired.
func (p *EndpointPool) Acquire(ctx context.Context) (*ethclient.Client, string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for i := range p.endpoints {
		idx := (p.current + i) % len(p.endpoints)
		ep := p.endpoints[idx]

		if ep.healthy && ep.client != nil {
			p.current = idx
			return ep.client, ep.url, nil
		}
		if time.Since(ep.failedAt) <= endpointCooldown {
			continue
		}

		client, err := p.dial(ctx, ep.url)
		if err != nil {
			ep.lastError = err
			ep.failedAt = time.Now()
			continue
		}
		ep.client = client
		ep.healthy = true
		ep.lastError = nil
		p.current = idx
		slog.Info("Reconnected to RPC endpoint", "url", ep.url)
		return client, ep.url, nil
	}

	return nil, "", ErrNoHealthyEndpoint
}

// MarkUnhealthy parks the endpoint and closes its client.
func (p *EndpointPool) MarkUnhealthy(url string, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for _, ep := range p.endpoints {
		if ep.url != url {
			continue
		}
		ep.healthy = false
		ep.lastError = err
		ep.failedAt = time.Now()
		if ep.client != nil {
			ep.client.Close()
			ep.client = nil
		}
		slog.Warn("Marked RPC endpoint unhealthy", "url", url, "error", err, "retry_after", endpointCooldown)
		return
	}
}

// Health reports per-URL health.
func (p *EndpointPool) Health() map[string]bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	out := make(map[string]bool, len(p.endpoints))
	for _, ep := range p.endpoints {
		out[ep.url] = ep.healthy
	}
	return out
}

// Close closes every client.
func (p *EndpointPool) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()

	for _, ep := range p.endpoints {
		if ep.client != nil {
			ep.client.Close()
			ep.client = nil
		}
	}
}
