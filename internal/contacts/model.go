package contacts

import (
	"errors"
	"time"
)

var (
	// ErrNotFound indicates the referenced contact does not exist.
	ErrNotFound = errors.New("contact not found")
	// ErrNotOwner indicates the caller does not own the referenced contact.
	ErrNotOwner = errors.New("not owner of contact")
)

// Contact is a person stored in a user's address book.
type Contact struct {
	ID        string    `json:"id"`
	OwnerID   string    `json:"owner_id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Photo     string    `json:"photo"`
	Tags      []string  `json:"tags"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (c Contact) clone() Contact {
	c.Tags = append(make([]string, 0, len(c.Tags)), c.Tags...)
	return c
}
