package ports

import (
	"context"

	"github.com/coinvault/coinvault/internal/domain/events"
)

// EventPublisher emits integration events after commit. Publishing is
// best-effort: the caller logs failures and never fails the mutation.
type EventPublisher interface {
	PublishTransactionPosted(ctx context.Context, event events.TransactionPosted) error
}
