// Package notify owns the notification log: emitting records on behalf of
// domain operations and serving a recipient's read/delete requests.
package notify

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/01moynul/servehub/internal/models"
)

var (
	// ErrNotFound indicates a notification does not exist or belongs to another recipient.
	ErrNotFound = errors.New("notification not found")
	// ErrRecipientRequired indicates a recipient id is required.
	ErrRecipientRequired = errors.New("recipient id is required")
	// ErrInvalidInput wraps emit validation failures.
	ErrInvalidInput = errors.New("invalid notification input")
	// ErrStoreNotConfigured indicates the service is missing persistence wiring.
	ErrStoreNotConfigured = errors.New("notification store is not configured")
)

const (
	// DefaultListLimit matches the dropdown page size.
	DefaultListLimit = 10
	// MaxListLimit bounds a single list request.
	MaxListLimit = 100
)

// Store is the persistence boundary for the notification log.
type Store interface {
	InsertNotification(ctx context.Context, n models.Notification) error
	GetNotificationByDedupeKey(ctx context.Context, recipientID, dedupeKey string) (models.Notification, error)
	ListNotifications(ctx context.Context, recipientID string, limit int) ([]models.Notification, error)
	CountUnread(ctx context.Context, recipientID string) (int, error)
	MarkRead(ctx context.Context, recipientID string, ids []string) (int, error)
	MarkAllRead(ctx context.Context, recipientID string) (int, error)
	DeleteNotification(ctx context.Context, recipientID, id string) error
	PurgeNotifications(ctx context.Context, olderThan time.Time, maxPerRecipient int) (int, error)
}

// EmitInput describes one notification to append to a single recipient's log.
// Fan-out to several recipients is the caller's loop.
type EmitInput struct {
	RecipientID string                  `validate:"required,max=36"`
	Type        models.NotificationType `validate:"required,notification_type"`
	Title       string                  `validate:"required,max=255"`
	Message     string                  `validate:"required"`
	ActionURL   string                  `validate:"omitempty,max=512"`
	Sender      *models.Sender
	Metadata    models.Metadata
	// DedupeKey makes the emission idempotent per recipient.
	DedupeKey string `validate:"omitempty,max=255"`
}

// Service implements the emitter and the recipient-facing store operations.
type Service struct {
	store    Store
	clock    func() time.Time
	newID    func() string
	validate *validator.Validate
}

// NewService constructs the notification service. A nil clock or id generator
// falls back to time.Now and random UUIDs.
func NewService(store Store, clock func() time.Time, newID func() string) *Service {
	if clock == nil {
		clock = time.Now
	}
	if newID == nil {
		newID = func() string { return uuid.New().String() }
	}
	v := validator.New(validator.WithRequiredStructEnabled())
	_ = v.RegisterValidation("notification_type", func(fl validator.FieldLevel) bool {
		return models.NotificationType(fl.Field().String()).Valid()
	})
	return &Service{store: store, clock: clock, newID: newID, validate: v}
}

// Emit appends one notification and returns it. With a dedupe key, an existing
// record for the same recipient and key is returned instead of a new one.
func (s *Service) Emit(ctx context.Context, input EmitInput) (models.Notification, error) {
	if s == nil || s.store == nil {
		return models.Notification{}, ErrStoreNotConfigured
	}
	input.RecipientID = strings.TrimSpace(input.RecipientID)
	input.Title = strings.TrimSpace(input.Title)
	input.ActionURL = strings.TrimSpace(input.ActionURL)
	input.DedupeKey = strings.TrimSpace(input.DedupeKey)
	if err := s.validate.Struct(input); err != nil {
		return models.Notification{}, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}

	if input.DedupeKey != "" {
		existing, err := s.store.GetNotificationByDedupeKey(ctx, input.RecipientID, input.DedupeKey)
		if err == nil {
			return existing, nil
		}
		if !errors.Is(err, ErrNotFound) {
			return models.Notification{}, err
		}
	}

	n := models.Notification{
		ID:          s.newID(),
		RecipientID: input.RecipientID,
		Type:        input.Type,
		Title:       input.Title,
		Message:     input.Message,
		CreatedAt:   s.clock().UTC(),
		Sender:      input.Sender,
		Metadata:    input.Metadata,
		DedupeKey:   input.DedupeKey,
	}
	if input.ActionURL != "" {
		url := input.ActionURL
		n.ActionURL = &url
	}

	if err := s.store.InsertNotification(ctx, n); err != nil {
		// A concurrent emitter may have won the unique (recipient, dedupe_key) race.
		if input.DedupeKey != "" {
			if existing, lookupErr := s.store.GetNotificationByDedupeKey(ctx, input.RecipientID, input.DedupeKey); lookupErr == nil {
				return existing, nil
			}
		}
		return models.Notification{}, err
	}
	return n, nil
}

// List returns the recipient's newest notifications first.
func (s *Service) List(ctx context.Context, recipientID string, limit int) ([]models.Notification, error) {
	if s == nil || s.store == nil {
		return nil, ErrStoreNotConfigured
	}
	recipientID = strings.TrimSpace(recipientID)
	if recipientID == "" {
		return nil, ErrRecipientRequired
	}
	return s.store.ListNotifications(ctx, recipientID, ClampLimit(limit))
}

// UnreadCount returns the number of unread notifications for the recipient.
func (s *Service) UnreadCount(ctx context.Context, recipientID string) (int, error) {
	if s == nil || s.store == nil {
		return 0, ErrStoreNotConfigured
	}
	recipientID = strings.TrimSpace(recipientID)
	if recipientID == "" {
		return 0, ErrRecipientRequired
	}
	return s.store.CountUnread(ctx, recipientID)
}

// MarkRead marks the given notifications as read. Already-read ids are no-ops;
// an id that is unknown or foreign fails the whole call with ErrNotFound.
func (s *Service) MarkRead(ctx context.Context, recipientID string, ids []string) (int, error) {
	if s == nil || s.store == nil {
		return 0, ErrStoreNotConfigured
	}
	recipientID = strings.TrimSpace(recipientID)
	if recipientID == "" {
		return 0, ErrRecipientRequired
	}
	unique := dedupeIDs(ids)
	if len(unique) == 0 {
		return 0, nil
	}
	return s.store.MarkRead(ctx, recipientID, unique)
}

// MarkAllRead marks every notification of the recipient as read.
func (s *Service) MarkAllRead(ctx context.Context, recipientID string) (int, error) {
	if s == nil || s.store == nil {
		return 0, ErrStoreNotConfigured
	}
	recipientID = strings.TrimSpace(recipientID)
	if recipientID == "" {
		return 0, ErrRecipientRequired
	}
	return s.store.MarkAllRead(ctx, recipientID)
}

// Delete removes one notification owned by the recipient.
func (s *Service) Delete(ctx context.Context, recipientID, id string) error {
	if s == nil || s.store == nil {
		return ErrStoreNotConfigured
	}
	recipientID = strings.TrimSpace(recipientID)
	if recipientID == "" {
		return ErrRecipientRequired
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return ErrNotFound
	}
	return s.store.DeleteNotification(ctx, recipientID, id)
}

// ClampLimit applies the default and maximum list sizes.
func ClampLimit(limit int) int {
	switch {
	case limit <= 0:
		return DefaultListLimit
	case limit > MaxListLimit:
		return MaxListLimit
	}
	return limit
}

func dedupeIDs(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
