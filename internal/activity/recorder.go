package activity

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// Recorder stamps records with an id and write time, persists them to the
// Log and forwards them to optional sinks. Sink failures are logged only.
type Recorder struct {
	log    Log
	sinks  []Sink
	logger *slog.Logger
	now    func() time.Time
}

// NewRecorder builds a recorder over the given log.
func NewRecorder(log Log, logger *slog.Logger, sinks ...Sink) *Recorder {
	return &Recorder{log: log, sinks: sinks, logger: logger, now: time.Now}
}

// Append writes a new record for the owner.
func (r *Recorder) Append(ctx context.Context, ownerID, action, contactID string) (Record, error) {
	rec := Record{
		ID:        uuid.NewString(),
		OwnerID:   ownerID,
		Action:    action,
		ContactID: contactID,
		CreatedAt: r.now().UTC(),
	}
	if err := r.log.Append(ctx, rec); err != nil {
		return Record{}, fmt.Errorf("append activity: %w", err)
	}
	for _, sink := range r.sinks {
		if err := sink.Publish(ctx, rec); err != nil {
			r.logger.Warn("activity sink publish failed",
				slog.String("activity_id", rec.ID),
				slog.Any("error", err),
			)
		}
	}
	return rec, nil
}

// List returns the owner's records, oldest first.
func (r *Recorder) List(ctx context.Context, ownerID string) ([]Record, error) {
	return r.log.ListByOwner(ctx, ownerID)
}
