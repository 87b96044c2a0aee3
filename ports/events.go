package ports

import (
	"context"

	"github.com/layer-3/tonbridge/core"
)

// EventPublisher publishes events to notify other services
type EventPublisher interface {
	PublishWalletConnected(ctx context.Context, event core.WalletConnectedEvent) error
}
