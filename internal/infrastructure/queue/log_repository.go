package queue

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/bizdesk/backoffice/internal/core/domain"
	"github.com/bizdesk/backoffice/internal/core/ports"
)

// LogRepository is the audit store used when no database is configured:
// every event becomes one structured log line.
type LogRepository struct {
	log zerolog.Logger
}

var _ ports.AuditRepository = (*LogRepository)(nil)

func NewLogRepository(log zerolog.Logger) *LogRepository {
	return &LogRepository{log: log.With().Str("component", "audit").Logger()}
}

func (r *LogRepository) InsertEvent(_ context.Context, event *domain.OrderEvent) error {
	entry := r.log.Info().
		Str("order_id", event.OrderID).
		Str("action", string(event.Action)).
		Str("to", string(event.To)).
		Str("actor_id", event.ActorID).
		Time("timestamp", event.Timestamp)
	if event.From != "" {
		entry = entry.Str("from", string(event.From))
	}
	if event.AssignedToID != "" {
		entry = entry.Str("assigned_to_id", event.AssignedToID)
	}
	entry.Msg("order event")
	return nil
}
