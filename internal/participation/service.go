// Package participation handles volunteers' requests to join events and the
// organizer's accept/reject decision, the dominant notification producer.
package participation

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/01moynul/servehub/internal/audit"
	"github.com/01moynul/servehub/internal/email"
	"github.com/01moynul/servehub/internal/models"
	"github.com/01moynul/servehub/internal/notify"
)

var (
	// ErrNotFound indicates the participation request does not exist.
	ErrNotFound = errors.New("participation request not found")
	// ErrEventNotFound indicates the event does not exist.
	ErrEventNotFound = errors.New("event not found")
	// ErrUserNotFound indicates the acting or requesting user does not exist.
	ErrUserNotFound = errors.New("user not found")
	// ErrEventNotOpen indicates the event does not accept requests in its current status.
	ErrEventNotOpen = errors.New("event is not open for participation")
	// ErrDuplicateRequest indicates the volunteer already asked to join the event.
	ErrDuplicateRequest = errors.New("participation already requested")
	// ErrAlreadyDecided indicates the request left the pending state already.
	ErrAlreadyDecided = errors.New("participation request has already been processed")
	// ErrForbidden indicates the actor may not perform the operation.
	ErrForbidden = errors.New("not allowed to manage this participation request")
	// ErrReasonTooLong indicates the rejection reason exceeds MaxRejectionReasonLength.
	ErrReasonTooLong = fmt.Errorf("rejection reason must be at most %d characters", models.MaxRejectionReasonLength)
)

// Decision is the atomic pending -> accepted|rejected transition.
type Decision struct {
	RequestID string
	EventID   string
	Status    string
	Reason    string
	DecidedBy string
	DecidedAt time.Time
}

// Store is the persistence boundary for participation requests.
type Store interface {
	GetEvent(ctx context.Context, eventID string) (models.Event, error)
	GetUser(ctx context.Context, userID string) (models.User, error)
	CreateRequest(ctx context.Context, req models.ParticipationRequest) error
	GetRequest(ctx context.Context, requestID string) (models.ParticipationRequest, error)
	ListRequests(ctx context.Context, eventID string) ([]models.ParticipationRequest, error)
	// DecideRequest applies d only while the request is pending and, on
	// acceptance, counts the volunteer on the event in the same transaction.
	DecideRequest(ctx context.Context, d Decision) error
}

// Config wires a Service.
type Config struct {
	Store    Store
	Notifier *notify.Notifier
	Audit    audit.Recorder
	Mailer   email.Sender
	Clock    func() time.Time
	NewID    func() string
	Logger   *log.Logger
}

// Service implements the participation workflow.
type Service struct {
	store    Store
	notifier *notify.Notifier
	audit    audit.Recorder
	mailer   email.Sender
	clock    func() time.Time
	newID    func() string
	logger   *log.Logger
}

// NewService constructs a Service from cfg, filling defaults for optional fields.
func NewService(cfg Config) *Service {
	s := &Service{
		store:    cfg.Store,
		notifier: cfg.Notifier,
		audit:    cfg.Audit,
		mailer:   cfg.Mailer,
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

// ValidateReason enforces the rejection reason length limit.
func ValidateReason(reason string) error {
	if utf8.RuneCountInString(strings.TrimSpace(reason)) > models.MaxRejectionReasonLength {
		return ErrReasonTooLong
	}
	return nil
}

// Request records a volunteer's wish to join an approved event and tells the organizer.
func (s *Service) Request(ctx context.Context, eventID, volunteerID, message string) (models.ParticipationRequest, error) {
	event, err := s.store.GetEvent(ctx, eventID)
	if err != nil {
		return models.ParticipationRequest{}, err
	}
	if event.Status != models.EventStatusApproved {
		return models.ParticipationRequest{}, ErrEventNotOpen
	}
	volunteer, err := s.store.GetUser(ctx, volunteerID)
	if err != nil {
		return models.ParticipationRequest{}, err
	}
	if volunteer.Role != models.RoleVolunteer || volunteer.ID == event.OrganizerID {
		return models.ParticipationRequest{}, ErrForbidden
	}

	req := models.ParticipationRequest{
		ID:          s.newID(),
		EventID:     event.ID,
		VolunteerID: volunteer.ID,
		Message:     strings.TrimSpace(message),
		Status:      models.ParticipationPending,
		CreatedAt:   s.clock().UTC(),
	}
	if err := s.store.CreateRequest(ctx, req); err != nil {
		return models.ParticipationRequest{}, err
	}

	s.notifier.Notify(ctx, notify.EmitInput{
		RecipientID: event.OrganizerID,
		Type:        models.TypeParticipationRequest,
		Title:       "New participation request",
		Message:     fmt.Sprintf("%s wants to join %q.", volunteer.FullName, event.Title),
		ActionURL:   "/organizer/events/" + event.ID + "/requests",
		Sender:      volunteer.AsSender(),
		Metadata:    models.Metadata{"eventId": event.ID, "requestId": req.ID},
		DedupeKey:   "participation:" + req.ID + ":requested",
	})
	return req, nil
}

// ListForEvent returns every request for the event. Only the organizer or an admin may list.
func (s *Service) ListForEvent(ctx context.Context, eventID, actorID string) ([]models.ParticipationRequest, error) {
	event, err := s.store.GetEvent(ctx, eventID)
	if err != nil {
		return nil, err
	}
	actor, err := s.store.GetUser(ctx, actorID)
	if err != nil {
		return nil, err
	}
	if !canManage(actor, event) {
		return nil, ErrForbidden
	}
	return s.store.ListRequests(ctx, eventID)
}

// Accept moves a pending request to accepted.
func (s *Service) Accept(ctx context.Context, requestID, actorID string) (models.ParticipationRequest, error) {
	return s.decide(ctx, requestID, actorID, models.ParticipationAccepted, "")
}

// Reject moves a pending request to rejected with an optional reason.
func (s *Service) Reject(ctx context.Context, requestID, actorID, reason string) (models.ParticipationRequest, error) {
	if err := ValidateReason(reason); err != nil {
		return models.ParticipationRequest{}, err
	}
	return s.decide(ctx, requestID, actorID, models.ParticipationRejected, strings.TrimSpace(reason))
}

func (s *Service) decide(ctx context.Context, requestID, actorID, status, reason string) (models.ParticipationRequest, error) {
	// 1. --- Load request, event and actor ---
	req, err := s.store.GetRequest(ctx, requestID)
	if err != nil {
		return models.ParticipationRequest{}, err
	}
	event, err := s.store.GetEvent(ctx, req.EventID)
	if err != nil {
		return models.ParticipationRequest{}, err
	}
	actor, err := s.store.GetUser(ctx, actorID)
	if err != nil {
		return models.ParticipationRequest{}, err
	}

	// 2. --- Authorize and check state ---
	if !canManage(actor, event) {
		return models.ParticipationRequest{}, ErrForbidden
	}
	if req.Status != models.ParticipationPending {
		return models.ParticipationRequest{}, ErrAlreadyDecided
	}
	if event.Status != models.EventStatusApproved {
		return models.ParticipationRequest{}, ErrEventNotOpen
	}

	// 3. --- Apply the transition (store re-checks pending atomically) ---
	now := s.clock().UTC()
	if err := s.store.DecideRequest(ctx, Decision{
		RequestID: req.ID,
		EventID:   event.ID,
		Status:    status,
		Reason:    reason,
		DecidedBy: actor.ID,
		DecidedAt: now,
	}); err != nil {
		return models.ParticipationRequest{}, err
	}
	req.Status = status
	req.RejectionReason = reason
	req.DecidedBy = actor.ID
	req.DecidedAt = &now

	// 4. --- Side effects, exactly once per transition ---
	input := decisionNotification(req, event, actor)
	s.notifier.Notify(ctx, input)

	volunteer, volunteerErr := s.store.GetUser(ctx, req.VolunteerID)
	if volunteerErr == nil && status == models.ParticipationAccepted {
		s.notifier.Notify(ctx, notify.EmitInput{
			RecipientID: event.OrganizerID,
			Type:        models.TypeVolunteerJoined,
			Title:       "Volunteer joined",
			Message:     fmt.Sprintf("%s joined %q.", volunteer.FullName, event.Title),
			ActionURL:   "/organizer/events/" + event.ID + "/requests",
			Sender:      volunteer.AsSender(),
			Metadata:    models.Metadata{"eventId": event.ID, "requestId": req.ID},
			DedupeKey:   "participation:" + req.ID + ":joined",
		})
	}

	audit.RecordBestEffort(ctx, s.audit, s.logger, audit.Transition{
		Entity:     "participation_request",
		EntityID:   req.ID,
		From:       models.ParticipationPending,
		To:         status,
		ActorID:    actor.ID,
		Reason:     reason,
		OccurredAt: now,
	})

	if volunteerErr == nil {
		if err := email.SendDecisionEmail(ctx, s.mailer, volunteer.Email, input.Title, input.Message); err != nil {
			s.logger.Printf("Warning: failed to email %s about request %s: %v", volunteer.ID, req.ID, err)
		}
	}

	return req, nil
}

func decisionNotification(req models.ParticipationRequest, event models.Event, actor models.User) notify.EmitInput {
	input := notify.EmitInput{
		RecipientID: req.VolunteerID,
		ActionURL:   event.URL(),
		Sender:      actor.AsSender(),
		Metadata:    models.Metadata{"eventId": event.ID, "requestId": req.ID},
		DedupeKey:   "participation:" + req.ID + ":" + req.Status,
	}
	if req.Status == models.ParticipationAccepted {
		input.Type = models.TypeParticipationAccepted
		input.Title = "Participation accepted"
		input.Message = fmt.Sprintf("Your request to join %q has been accepted.", event.Title)
		return input
	}
	input.Type = models.TypeParticipationRejected
	input.Title = "Participation declined"
	input.Message = fmt.Sprintf("Your request to join %q was declined.", event.Title)
	if req.RejectionReason != "" {
		input.Message += " Reason: " + req.RejectionReason
		input.Metadata["reason"] = req.RejectionReason
	}
	return input
}

func canManage(actor models.User, event models.Event) bool {
	return actor.Role == models.RoleAdmin || actor.ID == event.OrganizerID
}
