package events

import (
	"context"

	"github.com/segyhp/collection-ledger/internal/domain"
)

// Publisher delivers ledger events to interested collaborators
type Publisher interface {
	Publish(ctx context.Context, event domain.LedgerEvent) error
}

// NoopPublisher is an event publisher that does nothing.
// Used when no message bus is configured and in tests.
type NoopPublisher struct{}

// NewNoopPublisher creates a new no-op event publisher
func NewNoopPublisher() *NoopPublisher {
	return &NoopPublisher{}
}

// Publish does nothing with the event
func (n *NoopPublisher) Publish(ctx context.Context, event domain.LedgerEvent) error {
	return nil
}
