// Package stubs provides canned collaborators for handshake tests.
package stubs

import (
	"context"
	"sync"

	"github.com/layer-3/tonbridge/core"
)

// Connector returns canned connection results and records requests
type Connector struct {
	mu         sync.Mutex
	ConnectURL string
	BeginErr   error
	Wallet     *core.WalletInfo
	RestoreErr error
	Requests   []core.ConnectRequest
	Restores   int
}

// BeginConnection records the request and returns ConnectURL
func (c *Connector) BeginConnection(ctx context.Context, req core.ConnectRequest) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.Requests = append(c.Requests, req)
	if c.BeginErr != nil {
		return "", c.BeginErr
	}
	return c.ConnectURL, nil
}

// RestoreConnection returns Wallet
func (c *Connector) RestoreConnection(ctx context.Context) (*core.WalletInfo, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.Restores++
	return c.Wallet, c.RestoreErr
}

// SetWallet replaces the wallet returned by RestoreConnection
func (c *Connector) SetWallet(address string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if address == "" {
		c.Wallet = nil
		return
	}
	c.Wallet = &core.WalletInfo{Account: core.Account{Address: address}}
}

// LastRequest returns the most recent connect request
func (c *Connector) LastRequest() core.ConnectRequest {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.Requests) == 0 {
		return core.ConnectRequest{}
	}
	return c.Requests[len(c.Requests)-1]
}

// BackendCall is one forwarded identity
type BackendCall struct {
	ChatID        string
	WalletAddress string
}

// Backend records forwarded identities and answers with Response or Err
type Backend struct {
	mu       sync.Mutex
	Response core.BackendResponse
	Err      error
	Calls    []BackendCall
}

// AuthCallback records the call
func (b *Backend) AuthCallback(ctx context.Context, chatID, walletAddress string) (core.BackendResponse, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.Calls = append(b.Calls, BackendCall{ChatID: chatID, WalletAddress: walletAddress})
	if b.Err != nil {
		return core.BackendResponse{}, b.Err
	}
	return b.Response, nil
}

// CallCount returns how many identities were forwarded
func (b *Backend) CallCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()

	return len(b.Calls)
}

// Publisher records published events
type Publisher struct {
	mu     sync.Mutex
	Err    error
	Events []core.WalletConnectedEvent
}

// PublishWalletConnected records the event
func (p *Publisher) PublishWalletConnected(ctx context.Context, event core.WalletConnectedEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.Events = append(p.Events, event)
	return p.Err
}
