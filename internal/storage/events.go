package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/01moynul/servehub/internal/events"
	"github.com/01moynul/servehub/internal/models"
)

const eventColumns = `id, organizer_id, title, slug, description, status, rejection_reason,
	points, volunteers_joined, created_at, updated_at`

type eventRow struct {
	ID               string `db:"id"`
	OrganizerID      string `db:"organizer_id"`
	Title            string `db:"title"`
	Slug             string `db:"slug"`
	Description      string `db:"description"`
	Status           string `db:"status"`
	RejectionReason  string `db:"rejection_reason"`
	Points           int64  `db:"points"`
	VolunteersJoined int64  `db:"volunteers_joined"`
	CreatedAt        int64  `db:"created_at"`
	UpdatedAt        int64  `db:"updated_at"`
}

func (r eventRow) toModel() models.Event {
	return models.Event{
		ID:               r.ID,
		OrganizerID:      r.OrganizerID,
		Title:            r.Title,
		Slug:             r.Slug,
		Description:      r.Description,
		Status:           r.Status,
		RejectionReason:  r.RejectionReason,
		Points:           r.Points,
		VolunteersJoined: r.VolunteersJoined,
		CreatedAt:        fromMillis(r.CreatedAt),
		UpdatedAt:        fromMillis(r.UpdatedAt),
	}
}

// errEventMissing is mapped to each domain package's own not-found error.
var errEventMissing = errors.New("event missing")

func getEvent(ctx context.Context, q queryer, id string) (models.Event, error) {
	var row eventRow
	query := q.Rebind(`SELECT ` + eventColumns + ` FROM events WHERE id = ?`)
	if err := sqlx.GetContext(ctx, q, &row, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.Event{}, errEventMissing
		}
		return models.Event{}, fmt.Errorf("getting event %s: %w", id, err)
	}
	return row.toModel(), nil
}

// EventStore implements events.Store.
type EventStore struct {
	db *sqlx.DB
}

var _ events.Store = (*EventStore)(nil)

// NewEventStore wraps an open connection pool.
func NewEventStore(db *sqlx.DB) *EventStore {
	return &EventStore{db: db}
}

// CreateEvent inserts a new event.
func (s *EventStore) CreateEvent(ctx context.Context, e models.Event) error {
	query := s.db.Rebind(`INSERT INTO events (` + eventColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	_, err := s.db.ExecContext(ctx, query,
		e.ID, e.OrganizerID, e.Title, e.Slug, e.Description, e.Status, e.RejectionReason,
		e.Points, e.VolunteersJoined, toMillis(e.CreatedAt), toMillis(e.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("creating event: %w", err)
	}
	return nil
}

// GetEvent loads an event by id.
func (s *EventStore) GetEvent(ctx context.Context, id string) (models.Event, error) {
	event, err := getEvent(ctx, s.db, id)
	if errors.Is(err, errEventMissing) {
		return models.Event{}, events.ErrNotFound
	}
	return event, err
}

// ListEventsByStatus returns events in status, oldest first.
func (s *EventStore) ListEventsByStatus(ctx context.Context, status string) ([]models.Event, error) {
	var rows []eventRow
	query := s.db.Rebind(`SELECT ` + eventColumns + ` FROM events WHERE status = ? ORDER BY created_at ASC, id ASC`)
	if err := s.db.SelectContext(ctx, &rows, query, status); err != nil {
		return nil, fmt.Errorf("listing %s events: %w", status, err)
	}
	list := make([]models.Event, 0, len(rows))
	for _, row := range rows {
		list = append(list, row.toModel())
	}
	return list, nil
}

// ListUserIDsByRole returns the ids of every user with role.
func (s *EventStore) ListUserIDsByRole(ctx context.Context, role string) ([]string, error) {
	return listUserIDsByRole(ctx, s.db, role)
}

// GetUser loads a user by id.
func (s *EventStore) GetUser(ctx context.Context, id string) (models.User, error) {
	user, err := getUser(ctx, s.db, id)
	if errors.Is(err, ErrUserNotFound) {
		return models.User{}, events.ErrUserNotFound
	}
	return user, err
}

// TransitionEvent applies t only while the event is still in t.From.
func (s *EventStore) TransitionEvent(ctx context.Context, t events.Transition) error {
	query := s.db.Rebind(`
		UPDATE events
		SET status = ?, rejection_reason = ?, updated_at = ?
		WHERE id = ? AND status = ?`)
	result, err := s.db.ExecContext(ctx, query, t.To, t.Reason, toMillis(t.At), t.EventID, t.From)
	if err != nil {
		return fmt.Errorf("updating event status: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check affected rows: %w", err)
	}
	if rows == 0 {
		return events.ErrInvalidTransition
	}
	return nil
}

// CompleteEvent marks the event completed and credits every accepted volunteer.
func (s *EventStore) CompleteEvent(ctx context.Context, eventID string, at time.Time) ([]events.Award, error) {
	var awards []events.Award
	err := withTx(ctx, s.db, func(tx *sqlx.Tx) error {
		// 1. --- Claim the transition ---
		result, err := tx.ExecContext(ctx, tx.Rebind(`
			UPDATE events SET status = ?, updated_at = ?
			WHERE id = ? AND status = ?`),
			models.EventStatusCompleted, toMillis(at), eventID, models.EventStatusCompletionRequested)
		if err != nil {
			return fmt.Errorf("completing event: %w", err)
		}
		rows, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to check affected rows: %w", err)
		}
		if rows == 0 {
			return events.ErrInvalidTransition
		}

		event, err := getEvent(ctx, tx, eventID)
		if err != nil {
			return err
		}

		// 2. --- Load accepted volunteers with their current totals ---
		var volunteers []struct {
			ID     string `db:"id"`
			Points int64  `db:"points"`
		}
		err = tx.SelectContext(ctx, &volunteers, tx.Rebind(`
			SELECT u.id, u.points
			FROM participation_requests pr
			JOIN users u ON u.id = pr.volunteer_id
			WHERE pr.event_id = ? AND pr.status = ?
			ORDER BY pr.created_at ASC, pr.id ASC`),
			eventID, models.ParticipationAccepted)
		if err != nil {
			return fmt.Errorf("loading accepted volunteers: %w", err)
		}

		// 3. --- Credit points ---
		credit := tx.Rebind(`UPDATE users SET points = points + ? WHERE id = ?`)
		for _, v := range volunteers {
			if _, err := tx.ExecContext(ctx, credit, event.Points, v.ID); err != nil {
				return fmt.Errorf("awarding points to %s: %w", v.ID, err)
			}
			awards = append(awards, events.Award{
				VolunteerID: v.ID,
				Points:      event.Points,
				TotalBefore: v.Points,
				TotalAfter:  v.Points + event.Points,
			})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return awards, nil
}
