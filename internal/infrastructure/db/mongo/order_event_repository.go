package mongo

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/bizdesk/backoffice/internal/core/domain"
	"github.com/bizdesk/backoffice/internal/core/ports"
)

const collectionOrderEvents = "order_events"

// OrderEventRepository implements ports.AuditRepository using MongoDB.
type OrderEventRepository struct {
	col *mongo.Collection
}

var _ ports.AuditRepository = (*OrderEventRepository)(nil)

func NewOrderEventRepository(db *mongo.Database) *OrderEventRepository {
	return &OrderEventRepository{col: db.Collection(collectionOrderEvents)}
}

// InsertEvent appends an order event to the audit collection.
func (r *OrderEventRepository) InsertEvent(ctx context.Context, event *domain.OrderEvent) error {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	if _, err := r.col.InsertOne(ctx, eventDocument(event, time.Now())); err != nil {
		return fmt.Errorf("insert order event %s: %w", event.OrderID, err)
	}
	return nil
}

// ListByOrder returns the recorded events of one order, oldest first.
func (r *OrderEventRepository) ListByOrder(ctx context.Context, orderID string) ([]domain.OrderEvent, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	cur, err := r.col.Find(ctx, bson.M{"order_id": orderID})
	if err != nil {
		return nil, fmt.Errorf("find order events: %w", err)
	}
	defer cur.Close(ctx)

	var docs []bson.M
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode order events: %w", err)
	}
	events := make([]domain.OrderEvent, 0, len(docs))
	for _, doc := range docs {
		events = append(events, eventFromDocument(doc))
	}
	return events, nil
}

// EnsureIndexes creates the indexes used by the audit queries.
func (r *OrderEventRepository) EnsureIndexes(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	indexes := []mongo.IndexModel{
		{Keys: bson.D{{Key: "order_id", Value: 1}, {Key: "timestamp", Value: 1}}},
		{Keys: bson.D{{Key: "actor_id", Value: 1}}},
	}

	_, err := r.col.Indexes().CreateMany(ctx, indexes)
	return err
}

func eventDocument(event *domain.OrderEvent, processedAt time.Time) bson.M {
	doc := bson.M{
		"order_id":     event.OrderID,
		"action":       string(event.Action),
		"to":           string(event.To),
		"actor_id":     event.ActorID,
		"timestamp":    event.Timestamp.UTC(),
		"processed_at": processedAt.UTC(),
	}
	if event.From != "" {
		doc["from"] = string(event.From)
	}
	if event.AssignedToID != "" {
		doc["assigned_to_id"] = event.AssignedToID
	}
	return doc
}

func eventFromDocument(doc bson.M) domain.OrderEvent {
	str := func(key string) string {
		s, _ := doc[key].(string)
		return s
	}
	event := domain.OrderEvent{
		OrderID:      str("order_id"),
		Action:       domain.OrderAction(str("action")),
		From:         domain.OrderStatus(str("from")),
		To:           domain.OrderStatus(str("to")),
		ActorID:      str("actor_id"),
		AssignedToID: str("assigned_to_id"),
	}
	switch ts := doc["timestamp"].(type) {
	case time.Time:
		event.Timestamp = ts.UTC()
	case interface{ Time() time.Time }:
		event.Timestamp = ts.Time().UTC()
	}
	return event
}
