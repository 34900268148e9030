package ports

import (
	"context"

	"github.com/bizdesk/backoffice/internal/core/domain"
)

// AuditSink receives order events fire-and-forget. Implementations must not
// block the caller or report failures back to it.
type AuditSink interface {
	Notify(event domain.OrderEvent)
}

// AuditRepository persists order events.
type AuditRepository interface {
	InsertEvent(ctx context.Context, event *domain.OrderEvent) error
}

// IdempotencyStore remembers which order a client-supplied key produced.
type IdempotencyStore interface {
	// Lookup returns the order id recorded for (actorID, key).
	Lookup(ctx context.Context, actorID, key string) (string, bool, error)
	Remember(ctx context.Context, actorID, key, orderID string) error
}
