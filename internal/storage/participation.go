package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/01moynul/servehub/internal/models"
	"github.com/01moynul/servehub/internal/participation"
)

const participationColumns = `pr.id, pr.event_id, pr.volunteer_id, pr.message, pr.status,
	pr.rejection_reason, pr.decided_by, pr.decided_at, pr.created_at`

type participationRow struct {
	ID              string         `db:"id"`
	EventID         string         `db:"event_id"`
	VolunteerID     string         `db:"volunteer_id"`
	Message         string         `db:"message"`
	Status          string         `db:"status"`
	RejectionReason string         `db:"rejection_reason"`
	DecidedBy       string         `db:"decided_by"`
	DecidedAt       sql.NullInt64  `db:"decided_at"`
	CreatedAt       int64          `db:"created_at"`
	VolunteerName   sql.NullString `db:"volunteer_name"`
}

func (r participationRow) toModel() models.ParticipationRequest {
	req := models.ParticipationRequest{
		ID:              r.ID,
		EventID:         r.EventID,
		VolunteerID:     r.VolunteerID,
		Message:         r.Message,
		Status:          r.Status,
		RejectionReason: r.RejectionReason,
		DecidedBy:       r.DecidedBy,
		CreatedAt:       fromMillis(r.CreatedAt),
		VolunteerName:   r.VolunteerName.String,
	}
	if r.DecidedAt.Valid {
		at := fromMillis(r.DecidedAt.Int64)
		req.DecidedAt = &at
	}
	return req
}

// ParticipationStore implements participation.Store.
type ParticipationStore struct {
	db *sqlx.DB
}

var _ participation.Store = (*ParticipationStore)(nil)

// NewParticipationStore wraps an open connection pool.
func NewParticipationStore(db *sqlx.DB) *ParticipationStore {
	return &ParticipationStore{db: db}
}

// GetEvent loads the event a request targets.
func (s *ParticipationStore) GetEvent(ctx context.Context, id string) (models.Event, error) {
	event, err := getEvent(ctx, s.db, id)
	if errors.Is(err, errEventMissing) {
		return models.Event{}, participation.ErrEventNotFound
	}
	return event, err
}

// GetUser loads a user by id.
func (s *ParticipationStore) GetUser(ctx context.Context, id string) (models.User, error) {
	user, err := getUser(ctx, s.db, id)
	if errors.Is(err, ErrUserNotFound) {
		return models.User{}, participation.ErrUserNotFound
	}
	return user, err
}

// CreateRequest inserts a pending request; one per (event, volunteer).
func (s *ParticipationStore) CreateRequest(ctx context.Context, req models.ParticipationRequest) error {
	exists, err := s.requestExists(ctx, req.EventID, req.VolunteerID)
	if err != nil {
		return err
	}
	if exists {
		return participation.ErrDuplicateRequest
	}

	query := s.db.Rebind(`
		INSERT INTO participation_requests
			(id, event_id, volunteer_id, message, status, rejection_reason, decided_by, decided_at, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	_, err = s.db.ExecContext(ctx, query,
		req.ID, req.EventID, req.VolunteerID, req.Message, req.Status,
		req.RejectionReason, req.DecidedBy, nullMillis(req.DecidedAt), toMillis(req.CreatedAt),
	)
	if err != nil {
		// A concurrent request may have won the unique constraint.
		if exists, checkErr := s.requestExists(ctx, req.EventID, req.VolunteerID); checkErr == nil && exists {
			return participation.ErrDuplicateRequest
		}
		return fmt.Errorf("creating participation request: %w", err)
	}
	return nil
}

func (s *ParticipationStore) requestExists(ctx context.Context, eventID, volunteerID string) (bool, error) {
	var count int
	query := s.db.Rebind(`SELECT COUNT(*) FROM participation_requests WHERE event_id = ? AND volunteer_id = ?`)
	if err := s.db.GetContext(ctx, &count, query, eventID, volunteerID); err != nil {
		return false, fmt.Errorf("checking existing participation: %w", err)
	}
	return count > 0, nil
}

// GetRequest loads a request by id.
func (s *ParticipationStore) GetRequest(ctx context.Context, id string) (models.ParticipationRequest, error) {
	var row participationRow
	query := s.db.Rebind(`
		SELECT ` + participationColumns + `, u.full_name AS volunteer_name
		FROM participation_requests pr
		LEFT JOIN users u ON u.id = pr.volunteer_id
		WHERE pr.id = ?`)
	if err := s.db.GetContext(ctx, &row, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.ParticipationRequest{}, participation.ErrNotFound
		}
		return models.ParticipationRequest{}, fmt.Errorf("getting participation request: %w", err)
	}
	return row.toModel(), nil
}

// ListRequests returns every request for the event, oldest first.
func (s *ParticipationStore) ListRequests(ctx context.Context, eventID string) ([]models.ParticipationRequest, error) {
	var rows []participationRow
	query := s.db.Rebind(`
		SELECT ` + participationColumns + `, u.full_name AS volunteer_name
		FROM participation_requests pr
		LEFT JOIN users u ON u.id = pr.volunteer_id
		WHERE pr.event_id = ?
		ORDER BY pr.created_at ASC, pr.id ASC`)
	if err := s.db.SelectContext(ctx, &rows, query, eventID); err != nil {
		return nil, fmt.Errorf("listing participation requests: %w", err)
	}
	list := make([]models.ParticipationRequest, 0, len(rows))
	for _, row := range rows {
		list = append(list, row.toModel())
	}
	return list, nil
}

// DecideRequest applies the decision while the request is pending. Acceptance
// also counts the volunteer on the event, in the same transaction.
func (s *ParticipationStore) DecideRequest(ctx context.Context, d participation.Decision) error {
	return withTx(ctx, s.db, func(tx *sqlx.Tx) error {
		// 1. --- Conditional update ---
		result, err := tx.ExecContext(ctx, tx.Rebind(`
			UPDATE participation_requests
			SET status = ?, rejection_reason = ?, decided_by = ?, decided_at = ?
			WHERE id = ? AND status = ?`),
			d.Status, d.Reason, d.DecidedBy, toMillis(d.DecidedAt), d.RequestID, models.ParticipationPending)
		if err != nil {
			return fmt.Errorf("updating participation request: %w", err)
		}
		rows, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to check affected rows: %w", err)
		}
		if rows == 0 {
			return participation.ErrAlreadyDecided
		}

		// 2. --- Count the volunteer ---
		if d.Status != models.ParticipationAccepted {
			return nil
		}
		_, err = tx.ExecContext(ctx, tx.Rebind(`
			UPDATE events SET volunteers_joined = volunteers_joined + 1, updated_at = ?
			WHERE id = ?`),
			toMillis(d.DecidedAt), d.EventID)
		if err != nil {
			return fmt.Errorf("incrementing volunteers joined: %w", err)
		}
		return nil
	})
}
