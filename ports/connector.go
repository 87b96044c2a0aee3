package ports

import (
	"context"

	"github.com/layer-3/tonbridge/core"
)

// Connector is the wallet connection capability
type Connector interface {
	// BeginConnection returns the URL the user opens in a wallet app
	BeginConnection(ctx context.Context, req core.ConnectRequest) (string, error)

	// RestoreConnection resolves the most recently completed connection; nil means none
	RestoreConnection(ctx context.Context) (*core.WalletInfo, error)
}

// Backend receives authenticated identities
type Backend interface {
	AuthCallback(ctx context.Context, chatID, walletAddress string) (core.BackendResponse, error)
}

// ProofIssuer produces the ton_proof payload the wallet signs
type ProofIssuer interface {
	IssuePayload(chatID, state string) (string, error)
}
