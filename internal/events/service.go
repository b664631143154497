// Package events runs the event lifecycle: organizer submission, admin
// approval, and the completion review that awards volunteer points.
package events

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gosimple/slug"

	"github.com/01moynul/servehub/internal/audit"
	"github.com/01moynul/servehub/internal/models"
	"github.com/01moynul/servehub/internal/notify"
)

var (
	// ErrNotFound indicates the event does not exist.
	ErrNotFound = errors.New("event not found")
	// ErrUserNotFound indicates the acting user does not exist.
	ErrUserNotFound = errors.New("user not found")
	// ErrForbidden indicates the actor may not perform the operation.
	ErrForbidden = errors.New("not allowed to manage this event")
	// ErrInvalidTransition indicates the event is not in the status the operation requires.
	ErrInvalidTransition = errors.New("event status does not allow this operation")
	// ErrInvalidInput indicates a malformed submission.
	ErrInvalidInput = errors.New("invalid event input")
	// ErrReasonTooLong indicates the rejection reason exceeds MaxRejectionReasonLength.
	ErrReasonTooLong = fmt.Errorf("rejection reason must be at most %d characters", models.MaxRejectionReasonLength)
)

// Badge is a points milestone.
type Badge struct {
	Name      string
	Threshold int64
}

// Badges are ordered by threshold.
var Badges = []Badge{
	{Name: "Helper", Threshold: 100},
	{Name: "Champion", Threshold: 500},
	{Name: "Hero", Threshold: 1000},
}

// BadgesCrossed returns the badges reached when a total moves from before to after.
func BadgesCrossed(before, after int64) []Badge {
	var crossed []Badge
	for _, b := range Badges {
		if before < b.Threshold && after >= b.Threshold {
			crossed = append(crossed, b)
		}
	}
	return crossed
}

// Transition is a conditional status change: it applies only while the event is in From.
type Transition struct {
	EventID string
	From    string
	To      string
	Reason  string
	At      time.Time
}

// Award is the points credited to one volunteer by a completed event.
type Award struct {
	VolunteerID string
	Points      int64
	TotalBefore int64
	TotalAfter  int64
}

// Store is the persistence boundary for events.
type Store interface {
	CreateEvent(ctx context.Context, e models.Event) error
	GetEvent(ctx context.Context, eventID string) (models.Event, error)
	ListEventsByStatus(ctx context.Context, status string) ([]models.Event, error)
	ListUserIDsByRole(ctx context.Context, role string) ([]string, error)
	GetUser(ctx context.Context, userID string) (models.User, error)
	// TransitionEvent returns ErrInvalidTransition when the event left t.From.
	TransitionEvent(ctx context.Context, t Transition) error
	// CompleteEvent moves completion_requested -> completed and credits every
	// accepted volunteer in one transaction.
	CompleteEvent(ctx context.Context, eventID string, at time.Time) ([]Award, error)
}

// SubmitInput is an organizer's new event.
type SubmitInput struct {
	Title       string
	Description string
	Points      int64
}

// Service implements the event workflow.
type Service struct {
	store    Store
	notifier *notify.Notifier
	audit    audit.Recorder
	clock    func() time.Time
	newID    func() string
	logger   *log.Logger
}

// Config wires a Service.
type Config struct {
	Store    Store
	Notifier *notify.Notifier
	Audit    audit.Recorder
	Clock    func() time.Time
	NewID    func() string
	Logger   *log.Logger
}

// NewService constructs a Service.
func NewService(cfg Config) *Service {
	s := &Service{
		store:    cfg.Store,
		notifier: cfg.Notifier,
		audit:    cfg.Audit,
		clock:    cfg.Clock,
		newID:    cfg.NewID,
		logger:   cfg.Logger,
	}
	if s.clock == nil {
		s.clock = time.Now
	}
	if s.newID == nil {
		s.newID = func() string { return uuid.New().String() }
	}
	if s.logger == nil {
		s.logger = log.Default()
	}
	return s
}

// Submit creates a pending event and asks every admin to review it.
func (s *Service) Submit(ctx context.Context, organizerID string, input SubmitInput) (models.Event, error) {
	title := strings.TrimSpace(input.Title)
	if title == "" || input.Points < 0 {
		return models.Event{}, ErrInvalidInput
	}
	organizer, err := s.store.GetUser(ctx, organizerID)
	if err != nil {
		return models.Event{}, err
	}
	if organizer.Role != models.RoleOrganizer && organizer.Role != models.RoleAdmin {
		return models.Event{}, ErrForbidden
	}

	now := s.clock().UTC()
	event := models.Event{
		ID:          s.newID(),
		OrganizerID: organizer.ID,
		Title:       title,
		Slug:        slug.Make(title),
		Description: strings.TrimSpace(input.Description),
		Status:      models.EventStatusPending,
		Points:      input.Points,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.store.CreateEvent(ctx, event); err != nil {
		return models.Event{}, err
	}

	s.notifier.Notify(ctx, notify.EmitInput{
		RecipientID: organizer.ID,
		Type:        models.TypeEventSubmitted,
		Title:       "Event submitted",
		Message:     fmt.Sprintf("%q was submitted and is waiting for review.", event.Title),
		ActionURL:   event.URL(),
		Metadata:    models.Metadata{"eventId": event.ID},
		DedupeKey:   "event:" + event.ID + ":submitted",
	})
	s.notifyAdmins(ctx, func(string) notify.EmitInput {
		return notify.EmitInput{
			Type:      models.TypeEventApprovalRequest,
			Title:     "Event awaiting approval",
			Message:   fmt.Sprintf("%s submitted %q for approval.", organizer.FullName, event.Title),
			ActionURL: "/admin/events/" + event.ID,
			Sender:    organizer.AsSender(),
			Metadata:  models.Metadata{"eventId": event.ID},
			DedupeKey: "event:" + event.ID + ":approval_request",
		}
	})
	return event, nil
}

// ListPending returns the admin review queue, oldest first.
func (s *Service) ListPending(ctx context.Context) ([]models.Event, error) {
	return s.store.ListEventsByStatus(ctx, models.EventStatusPending)
}

// Approve publishes a pending event.
func (s *Service) Approve(ctx context.Context, eventID, adminID string) (models.Event, error) {
	event, admin, err := s.transition(ctx, eventID, adminID, models.RoleAdmin, models.EventStatusPending, models.EventStatusApproved, "")
	if err != nil {
		return models.Event{}, err
	}
	s.notifier.Notify(ctx, notify.EmitInput{
		RecipientID: event.OrganizerID,
		Type:        models.TypeEventApproved,
		Title:       "Event approved",
		Message:     fmt.Sprintf("%q is now live and open for volunteers.", event.Title),
		ActionURL:   event.URL(),
		Sender:      admin.AsSender(),
		Metadata:    models.Metadata{"eventId": event.ID},
		DedupeKey:   "event:" + event.ID + ":approved",
	})
	return event, nil
}

// Reject declines a pending event.
func (s *Service) Reject(ctx context.Context, eventID, adminID, reason string) (models.Event, error) {
	reason, err := cleanReason(reason)
	if err != nil {
		return models.Event{}, err
	}
	event, admin, err := s.transition(ctx, eventID, adminID, models.RoleAdmin, models.EventStatusPending, models.EventStatusRejected, reason)
	if err != nil {
		return models.Event{}, err
	}
	s.notifier.Notify(ctx, notify.EmitInput{
		RecipientID: event.OrganizerID,
		Type:        models.TypeEventRejected,
		Title:       "Event rejected",
		Message:     withReason(fmt.Sprintf("%q was not approved.", event.Title), reason),
		ActionURL:   event.URL(),
		Sender:      admin.AsSender(),
		Metadata:    models.Metadata{"eventId": event.ID},
		DedupeKey:   "event:" + event.ID + ":rejected",
	})
	return event, nil
}

// RequestCompletion is the organizer reporting the event as done.
func (s *Service) RequestCompletion(ctx context.Context, eventID, organizerID string) (models.Event, error) {
	event, organizer, err := s.transition(ctx, eventID, organizerID, models.RoleOrganizer, models.EventStatusApproved, models.EventStatusCompletionRequested, "")
	if err != nil {
		return models.Event{}, err
	}
	stamp := event.UpdatedAt.UnixMilli()
	s.notifyAdmins(ctx, func(string) notify.EmitInput {
		return notify.EmitInput{
			Type:      models.TypeEventCompletionRequest,
			Title:     "Completion review requested",
			Message:   fmt.Sprintf("%s marked %q as completed.", organizer.FullName, event.Title),
			ActionURL: "/admin/events/" + event.ID,
			Sender:    organizer.AsSender(),
			Metadata:  models.Metadata{"eventId": event.ID},
			DedupeKey: fmt.Sprintf("event:%s:completion_request:%d", event.ID, stamp),
		}
	})
	return event, nil
}

// RejectCompletion sends the event back to approved.
func (s *Service) RejectCompletion(ctx context.Context, eventID, adminID, reason string) (models.Event, error) {
	reason, err := cleanReason(reason)
	if err != nil {
		return models.Event{}, err
	}
	event, admin, err := s.transition(ctx, eventID, adminID, models.RoleAdmin, models.EventStatusCompletionRequested, models.EventStatusApproved, reason)
	if err != nil {
		return models.Event{}, err
	}
	s.notifier.Notify(ctx, notify.EmitInput{
		RecipientID: event.OrganizerID,
		Type:        models.TypeEventCompletionRejected,
		Title:       "Completion not approved",
		Message:     withReason(fmt.Sprintf("The completion of %q was not approved.", event.Title), reason),
		ActionURL:   event.URL(),
		Sender:      admin.AsSender(),
		Metadata:    models.Metadata{"eventId": event.ID},
		DedupeKey:   fmt.Sprintf("event:%s:completion_rejected:%d", event.ID, event.UpdatedAt.UnixMilli()),
	})
	return event, nil
}

// ApproveCompletion closes the event and credits its accepted volunteers.
func (s *Service) ApproveCompletion(ctx context.Context, eventID, adminID string) (models.Event, []Award, error) {
	// 1. --- Load and authorize ---
	event, err := s.store.GetEvent(ctx, eventID)
	if err != nil {
		return models.Event{}, nil, err
	}
	admin, err := s.store.GetUser(ctx, adminID)
	if err != nil {
		return models.Event{}, nil, err
	}
	if admin.Role != models.RoleAdmin {
		return models.Event{}, nil, ErrForbidden
	}
	if event.Status != models.EventStatusCompletionRequested {
		return models.Event{}, nil, ErrInvalidTransition
	}

	// 2. --- Complete and award atomically ---
	now := s.clock().UTC()
	awards, err := s.store.CompleteEvent(ctx, event.ID, now)
	if err != nil {
		return models.Event{}, nil, err
	}
	event.Status = models.EventStatusCompleted
	event.UpdatedAt = now

	s.record(ctx, event.ID, models.EventStatusCompletionRequested, models.EventStatusCompleted, admin.ID, "", now)

	// 3. --- Notify volunteers, then the organizer ---
	meta := func(extra models.Metadata) models.Metadata {
		m := models.Metadata{"eventId": event.ID}
		for k, v := range extra {
			m[k] = v
		}
		return m
	}
	for _, a := range awards {
		s.notifier.Notify(ctx, notify.EmitInput{
			RecipientID: a.VolunteerID,
			Type:        models.TypePointsAwarded,
			Title:       "Points awarded",
			Message:     fmt.Sprintf("You earned %d points for volunteering at %q.", a.Points, event.Title),
			ActionURL:   event.URL(),
			Sender:      admin.AsSender(),
			Metadata:    meta(models.Metadata{"points": a.Points, "total": a.TotalAfter}),
			DedupeKey:   "event:" + event.ID + ":points",
		})
		s.notifier.Notify(ctx, notify.EmitInput{
			RecipientID: a.VolunteerID,
			Type:        models.TypeCertificateAwarded,
			Title:       "Certificate available",
			Message:     fmt.Sprintf("Your certificate for %q is ready.", event.Title),
			ActionURL:   "/certificates/" + event.ID,
			Metadata:    meta(nil),
			DedupeKey:   "event:" + event.ID + ":certificate",
		})
		for _, b := range BadgesCrossed(a.TotalBefore, a.TotalAfter) {
			s.notifier.Notify(ctx, notify.EmitInput{
				RecipientID: a.VolunteerID,
				Type:        models.TypeBadgeEarned,
				Title:       "Badge earned",
				Message:     fmt.Sprintf("You reached %d points and earned the %s badge.", b.Threshold, b.Name),
				ActionURL:   "/profile/badges",
				Metadata:    meta(models.Metadata{"badge": b.Name}),
				DedupeKey:   "badge:" + strings.ToLower(b.Name),
			})
		}
	}

	s.notifier.Notify(ctx, notify.EmitInput{
		RecipientID: event.OrganizerID,
		Type:        models.TypeEventCompletionApproved,
		Title:       "Event completed",
		Message:     fmt.Sprintf("The completion of %q was approved. %d volunteers received points.", event.Title, len(awards)),
		ActionURL:   event.URL(),
		Sender:      admin.AsSender(),
		Metadata:    meta(models.Metadata{"volunteers": len(awards)}),
		DedupeKey:   "event:" + event.ID + ":completion_approved",
	})
	return event, awards, nil
}

// transition loads the event and actor, authorizes the actor, and applies from -> to.
// Organizers may only act on their own events; admins may act on any.
func (s *Service) transition(ctx context.Context, eventID, actorID, role, from, to, reason string) (models.Event, models.User, error) {
	event, err := s.store.GetEvent(ctx, eventID)
	if err != nil {
		return models.Event{}, models.User{}, err
	}
	actor, err := s.store.GetUser(ctx, actorID)
	if err != nil {
		return models.Event{}, models.User{}, err
	}
	switch role {
	case models.RoleAdmin:
		if actor.Role != models.RoleAdmin {
			return models.Event{}, models.User{}, ErrForbidden
		}
	case models.RoleOrganizer:
		if actor.ID != event.OrganizerID && actor.Role != models.RoleAdmin {
			return models.Event{}, models.User{}, ErrForbidden
		}
	}
	if event.Status != from {
		return models.Event{}, models.User{}, ErrInvalidTransition
	}

	now := s.clock().UTC()
	if err := s.store.TransitionEvent(ctx, Transition{EventID: event.ID, From: from, To: to, Reason: reason, At: now}); err != nil {
		return models.Event{}, models.User{}, err
	}
	event.Status = to
	event.RejectionReason = reason
	event.UpdatedAt = now

	s.record(ctx, event.ID, from, to, actor.ID, reason, now)
	return event, actor, nil
}

func (s *Service) record(ctx context.Context, eventID, from, to, actorID, reason string, at time.Time) {
	audit.RecordBestEffort(ctx, s.audit, s.logger, audit.Transition{
		Entity:     "event",
		EntityID:   eventID,
		From:       from,
		To:         to,
		ActorID:    actorID,
		Reason:     reason,
		OccurredAt: at,
	})
}

func (s *Service) notifyAdmins(ctx context.Context, build func(string) notify.EmitInput) {
	admins, err := s.store.ListUserIDsByRole(ctx, models.RoleAdmin)
	if err != nil {
		s.logger.Printf("Warning: failed to load admins for notification: %v", err)
		return
	}
	s.notifier.NotifyAll(ctx, admins, build)
}

func cleanReason(reason string) (string, error) {
	reason = strings.TrimSpace(reason)
	if len([]rune(reason)) > models.MaxRejectionReasonLength {
		return "", ErrReasonTooLong
	}
	return reason, nil
}

func withReason(message, reason string) string {
	if reason == "" {
		return message
	}
	return message + " Reason: " + reason
}
