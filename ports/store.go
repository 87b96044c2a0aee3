package ports

import (
	"context"

	"github.com/layer-3/tonbridge/core"
)

// Registry keeps at most one pending state token per requester
type Registry interface {
	// Put stores the entry, replacing any previous token for the same chat
	Put(ctx context.Context, pending core.PendingAuth) error

	// Get returns the live entry for a chat, if any
	Get(ctx context.Context, chatID string) (core.PendingAuth, bool, error)

	// Consume deletes the entry only if it still holds the given state
	Consume(ctx context.Context, chatID, state string) (bool, error)
}
