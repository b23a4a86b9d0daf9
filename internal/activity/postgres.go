package activity

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresLog stores activity records in PostgreSQL.
type PostgresLog struct {
	db *pgxpool.Pool
}

// NewPostgresLog builds a Postgres-backed activity log.
func NewPostgresLog(db *pgxpool.Pool) *PostgresLog {
	return &PostgresLog{db: db}
}

// Append inserts a record.
func (l *PostgresLog) Append(ctx context.Context, record Record) error {
	id, err := uuid.Parse(record.ID)
	if err != nil {
		return err
	}
	ownerID, err := uuid.Parse(record.OwnerID)
	if err != nil {
		return err
	}
	contactID, err := uuid.Parse(record.ContactID)
	if err != nil {
		return err
	}
	_, err = l.db.Exec(ctx, `INSERT INTO activities (id, owner_id, action, contact_id, created_at)
        VALUES ($1, $2, $3, $4, $5)`, id, ownerID, record.Action, contactID, record.CreatedAt.UTC())
	return err
}

// ListByOwner returns the owner's records ordered by write time.
func (l *PostgresLog) ListByOwner(ctx context.Context, ownerID string) ([]Record, error) {
	owner, err := uuid.Parse(ownerID)
	if err != nil {
		return []Record{}, nil
	}
	rows, err := l.db.Query(ctx, `SELECT id, owner_id, action, contact_id, created_at
        FROM activities WHERE owner_id = $1 ORDER BY created_at, id`, owner)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]Record, 0)
	for rows.Next() {
		var (
			id, oid, cid uuid.UUID
			createdAt    time.Time
			rec          Record
		)
		if err := rows.Scan(&id, &oid, &rec.Action, &cid, &createdAt); err != nil {
			return nil, err
		}
		rec.ID = id.String()
		rec.OwnerID = oid.String()
		rec.ContactID = cid.String()
		rec.CreatedAt = createdAt.UTC()
		out = append(out, rec)
	}
	return out, rows.Err()
}
