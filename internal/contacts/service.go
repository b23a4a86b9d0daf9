package contacts

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
	"github.com/google/uuid"

	"github.com/contacthub/contacthub/internal/activity"
	"github.com/contacthub/contacthub/internal/files"
	"github.com/contacthub/contacthub/internal/realtime"
)

const defaultSideEffectTimeout = 5 * time.Second

// ActivityRecorder appends entries to the activity log.
type ActivityRecorder interface {
	Append(ctx context.Context, ownerID, action, contactID string) (activity.Record, error)
}

// Notifier pushes an event to a user's realtime channel.
type Notifier interface {
	Publish(ctx context.Context, userID, event string, payload any) error
}

// Service owns the ownership-scoped lifecycle of contacts. Activity logging
// and realtime notification follow every successful mutation; their
// failures are logged and never reach the caller.
type Service struct {
	repo              Repository
	photos            files.Store
	recorder          ActivityRecorder
	notifier          Notifier
	logger            *slog.Logger
	now               func() time.Time
	sideEffectTimeout time.Duration
}

// NewService constructs a contact service.
func NewService(repo Repository, photos files.Store, recorder ActivityRecorder, notifier Notifier, logger *slog.Logger) *Service {
	return &Service{
		repo:              repo,
		photos:            photos,
		recorder:          recorder,
		notifier:          notifier,
		logger:            logger,
		now:               time.Now,
		sideEffectTimeout: defaultSideEffectTimeout,
	}
}

// CreateInput captures the data needed to add a contact.
type CreateInput struct {
	OwnerID string
	Name    string
	Email   string
	Tags    []string
	Photo   *files.Upload
}

// Validate checks the create payload.
func (in CreateInput) Validate() error {
	return validation.ValidateStruct(&in,
		validation.Field(&in.OwnerID, validation.Required),
		validation.Field(&in.Name, validation.Required, validation.Length(1, 200)),
		validation.Field(&in.Email, validation.Length(0, 320), is.EmailFormat),
		validation.Field(&in.Tags, validation.Each(validation.Length(0, 100))),
	)
}

// UpdateInput captures an edit. A nil Tags keeps the current tags; a
// non-nil pointer, even to an empty slice, replaces them.
type UpdateInput struct {
	OwnerID string
	ID      string
	Name    string
	Email   string
	Tags    *[]string
}

// Validate checks the update payload.
func (in UpdateInput) Validate() error {
	var tags []string
	if in.Tags != nil {
		tags = *in.Tags
	}
	return validation.Errors{
		"owner_id": validation.Validate(in.OwnerID, validation.Required),
		"id":       validation.Validate(in.ID, validation.Required),
		"name":     validation.Validate(in.Name, validation.Required, validation.Length(1, 200)),
		"email":    validation.Validate(in.Email, validation.Length(0, 320), is.EmailFormat),
		"tags":     validation.Validate(tags, validation.Each(validation.Length(0, 100))),
	}.Filter()
}

// List returns every contact owned by ownerID.
func (s *Service) List(ctx context.Context, ownerID string) ([]Contact, error) {
	return s.repo.FindByOwner(ctx, ownerID)
}

// Get returns one of the owner's contacts.
func (s *Service) Get(ctx context.Context, ownerID, id string) (Contact, error) {
	return s.owned(ctx, ownerID, id)
}

// Create stores the optional photo, persists the contact, then records the
// activity and notifies the owner's channel.
func (s *Service) Create(ctx context.Context, in CreateInput) (Contact, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.Email = strings.TrimSpace(in.Email)
	if err := in.Validate(); err != nil {
		return Contact{}, err
	}

	var photo string
	if in.Photo != nil {
		if s.photos == nil {
			return Contact{}, fmt.Errorf("photo uploads are not configured")
		}
		url, err := s.photos.Store(ctx, *in.Photo)
		if err != nil {
			return Contact{}, fmt.Errorf("store photo: %w", err)
		}
		photo = url
	}

	tags := in.Tags
	if tags == nil {
		tags = []string{}
	}
	now := s.now().UTC()
	contact := Contact{
		ID:        uuid.NewString(),
		OwnerID:   in.OwnerID,
		Name:      in.Name,
		Email:     in.Email,
		Photo:     photo,
		Tags:      append([]string{}, tags...),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.repo.Insert(ctx, contact); err != nil {
		return Contact{}, fmt.Errorf("insert contact: %w", err)
	}

	s.afterMutation(ctx, contact.OwnerID, activity.ActionContactAdded, contact.ID, realtime.EventUpdateContactList, contact)
	return contact, nil
}

// Update overwrites name and email, replaces tags when supplied and
// notifies the caller's channel.
func (s *Service) Update(ctx context.Context, in UpdateInput) (Contact, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.Email = strings.TrimSpace(in.Email)
	if err := in.Validate(); err != nil {
		return Contact{}, err
	}

	contact, err := s.owned(ctx, in.OwnerID, in.ID)
	if err != nil {
		return Contact{}, err
	}

	contact.Name = in.Name
	contact.Email = in.Email
	if in.Tags != nil {
		contact.Tags = append([]string{}, (*in.Tags)...)
	}
	contact.UpdatedAt = s.now().UTC()

	if err := s.repo.Save(ctx, contact); err != nil {
		return Contact{}, fmt.Errorf("save contact: %w", err)
	}

	s.afterMutation(ctx, in.OwnerID, activity.ActionContactUpdated, contact.ID, realtime.EventUpdateContactList, contact)
	return contact, nil
}

// Delete removes one of the owner's contacts. Deleting an id that does not
// exist succeeds without side effects.
func (s *Service) Delete(ctx context.Context, ownerID, id string) error {
	contact, err := s.owned(ctx, ownerID, id)
	switch {
	case errors.Is(err, ErrNotFound):
		return nil
	case err != nil:
		return err
	}

	if err := s.repo.Delete(ctx, contact.ID); err != nil {
		return fmt.Errorf("delete contact: %w", err)
	}

	s.afterMutation(ctx, ownerID, activity.ActionContactDeleted, contact.ID, realtime.EventContactDeleted, map[string]string{"id": contact.ID})
	return nil
}

func (s *Service) owned(ctx context.Context, ownerID, id string) (Contact, error) {
	contact, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return Contact{}, err
	}
	if contact.OwnerID != ownerID {
		return Contact{}, ErrNotOwner
	}
	return contact, nil
}

// afterMutation runs the activity append and the realtime publish side by
// side and waits for both. They get their own deadline, detached from the
// request, so a client hanging up does not cancel them.
func (s *Service) afterMutation(ctx context.Context, ownerID, action, contactID, event string, payload any) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.sideEffectTimeout)
	defer cancel()

	attrs := []any{slog.String("owner_id", ownerID), slog.String("contact_id", contactID)}

	var wg sync.WaitGroup
	if s.recorder != nil {
		wg.Add(1)
		go s.isolate(&wg, "activity append failed", attrs, func() error {
			_, err := s.recorder.Append(ctx, ownerID, action, contactID)
			return err
		})
	}
	if s.notifier != nil {
		wg.Add(1)
		go s.isolate(&wg, "realtime publish failed", attrs, func() error {
			return s.notifier.Publish(ctx, ownerID, event, payload)
		})
	}
	wg.Wait()
}

func (s *Service) isolate(wg *sync.WaitGroup, msg string, attrs []any, fn func() error) {
	defer wg.Done()
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error(msg, append(attrs, slog.Any("panic", r))...)
		}
	}()
	if err := fn(); err != nil {
		s.logger.Warn(msg, append(attrs, slog.Any("error", err))...)
	}
}
