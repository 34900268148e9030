package domain

import "time"

// OrderAction names what happened to an order in an audit event.
type OrderAction string

const (
	ActionCreated      OrderAction = "created"
	ActionTransitioned OrderAction = "transitioned"
	ActionReassigned   OrderAction = "reassigned"
	ActionDeleted      OrderAction = "deleted"
)

// OrderEvent records a successful state machine operation for the audit trail.
type OrderEvent struct {
	OrderID      string
	Action       OrderAction
	From         OrderStatus // empty on create
	To           OrderStatus
	ActorID      string
	AssignedToID string
	Timestamp    time.Time
}
