package contacts

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository persists contacts. Each method is a single-document write or
// read; the store's own atomicity is relied upon and last write wins.
type Repository interface {
	FindByOwner(ctx context.Context, ownerID string) ([]Contact, error)
	Insert(ctx context.Context, contact Contact) error
	FindByID(ctx context.Context, id string) (Contact, error)
	Save(ctx context.Context, contact Contact) error
	Delete(ctx context.Context, id string) error
}

// PostgresRepository stores contacts in PostgreSQL.
type PostgresRepository struct {
	db *pgxpool.Pool
}

// NewPostgresRepository builds a repository backed by PostgreSQL.
func NewPostgresRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const selectContact = `SELECT id, owner_id, name, email, photo, tags, created_at, updated_at FROM contacts`

// FindByOwner lists the owner's contacts in creation order.
func (r *PostgresRepository) FindByOwner(ctx context.Context, ownerID string) ([]Contact, error) {
	owner, err := uuid.Parse(ownerID)
	if err != nil {
		return []Contact{}, nil
	}
	rows, err := r.db.Query(ctx, selectContact+` WHERE owner_id = $1 ORDER BY created_at, id`, owner)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]Contact, 0)
	for rows.Next() {
		c, err := scanContact(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// Insert stores a new contact.
func (r *PostgresRepository) Insert(ctx context.Context, c Contact) error {
	id, err := uuid.Parse(c.ID)
	if err != nil {
		return err
	}
	owner, err := uuid.Parse(c.OwnerID)
	if err != nil {
		return err
	}
	_, err = r.db.Exec(ctx, `INSERT INTO contacts (id, owner_id, name, email, photo, tags, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		id, owner, c.Name, c.Email, c.Photo, nonNil(c.Tags), c.CreatedAt.UTC(), c.UpdatedAt.UTC())
	return err
}

// FindByID fetches a contact; unknown or malformed ids yield ErrNotFound.
func (r *PostgresRepository) FindByID(ctx context.Context, id string) (Contact, error) {
	contactID, err := uuid.Parse(id)
	if err != nil {
		return Contact{}, ErrNotFound
	}
	return scanContact(r.db.QueryRow(ctx, selectContact+` WHERE id = $1`, contactID))
}

// Save overwrites the mutable fields of an existing contact in one statement.
func (r *PostgresRepository) Save(ctx context.Context, c Contact) error {
	id, err := uuid.Parse(c.ID)
	if err != nil {
		return ErrNotFound
	}
	cmd, err := r.db.Exec(ctx, `UPDATE contacts SET name = $1, email = $2, photo = $3, tags = $4, updated_at = $5
        WHERE id = $6`, c.Name, c.Email, c.Photo, nonNil(c.Tags), c.UpdatedAt.UTC(), id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete removes the contact if it exists.
func (r *PostgresRepository) Delete(ctx context.Context, id string) error {
	contactID, err := uuid.Parse(id)
	if err != nil {
		return nil
	}
	_, err = r.db.Exec(ctx, `DELETE FROM contacts WHERE id = $1`, contactID)
	return err
}

func scanContact(row pgx.Row) (Contact, error) {
	var (
		id, owner            uuid.UUID
		createdAt, updatedAt time.Time
		c                    Contact
	)
	if err := row.Scan(&id, &owner, &c.Name, &c.Email, &c.Photo, &c.Tags, &createdAt, &updatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Contact{}, ErrNotFound
		}
		return Contact{}, err
	}
	c.ID = id.String()
	c.OwnerID = owner.String()
	c.Tags = nonNil(c.Tags)
	c.CreatedAt = createdAt.UTC()
	c.UpdatedAt = updatedAt.UTC()
	return c, nil
}

func nonNil(tags []string) []string {
	if tags == nil {
		return []string{}
	}
	return tags
}
