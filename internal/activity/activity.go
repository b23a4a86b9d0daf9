// Package activity records an append-only trail of actions users take on
// their contacts.
package activity

import (
	"context"
	"time"
)

// Actions written by the contact service.
const (
	ActionContactAdded   = "Added a new contact"
	ActionContactUpdated = "Updated a contact"
	ActionContactDeleted = "Deleted a contact"
)

// Record is a single immutable log entry.
type Record struct {
	ID        string    `json:"id"`
	OwnerID   string    `json:"owner_id"`
	Action    string    `json:"action"`
	ContactID string    `json:"contact_id"`
	CreatedAt time.Time `json:"created_at"`
}

// Log is the append-only activity store.
type Log interface {
	Append(ctx context.Context, record Record) error
	ListByOwner(ctx context.Context, ownerID string) ([]Record, error)
}

// Sink receives a copy of every appended record, e.g. a message broker.
type Sink interface {
	Publish(ctx context.Context, record Record) error
}
