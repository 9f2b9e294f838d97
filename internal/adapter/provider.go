package adapter

import (
	"fmt"
	"sync"
	"time"
)

// RPCProvider tracks primary/secondary RPC endpoints for one chain and
// switches between them on failure.
type RPCProvider struct {
	mu sync.RWMutex

	primaryURL   string
	secondaryURL string
	currentURL   string

	consecutiveFails int
	lastFailure      time.Time
}

// NewRPCProvider creates a new RPC provider with primary and optional
// secondary URLs.
func NewRPCProvider(primaryURL, secondaryURL string) (*RPCProvider, error) {
	if primaryURL == "" {
		return nil, fmt.Errorf("primary URL cannot be empty")
	}

	return &RPCProvider{
		primaryURL:   primaryURL,
		secondaryURL: secondaryURL,
		currentURL:   primaryURL,
	}, nil
}

// CurrentURL returns the currently active RPC endpoint URL.
func (p *RPCProvider) CurrentURL() string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.currentURL
}

// Failover switches to the other endpoint. Returns an error if only one
// endpoint is configured.
func (p *RPCProvider) Failover() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.secondaryURL == "" {
		return fmt.Errorf("no secondary provider configured")
	}

	if p.currentURL == p.primaryURL {
		p.currentURL = p.secondaryURL
	} else {
		p.currentURL = p.primaryURL
	}

	return nil
}

// RecordFailure records a failed request for health tracking.
func (p *RPCProvider) RecordFailure() {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.consecutiveFails++
	p.lastFailure = time.Now()
}

// RecordSuccess resets the consecutive failure count.
func (p *RPCProvider) RecordSuccess() {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.consecutiveFails = 0
}

// Reset returns the provider to the primary endpoint.
func (p *RPCProvider) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.currentURL = p.primaryURL
	p.consecutiveFails = 0
}
