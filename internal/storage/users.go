package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"

	"github.com/01moynul/servehub/internal/models"
)

var (
	// ErrUserNotFound indicates no user matched the lookup.
	ErrUserNotFound = errors.New("user not found")
	// ErrEmailTaken indicates the email is already registered.
	ErrEmailTaken = errors.New("email already registered")
)

const userColumns = `id, role, email, password_hash, full_name, avatar_url, points, created_at`

type userRow struct {
	ID           string `db:"id"`
	Role         string `db:"role"`
	Email        string `db:"email"`
	PasswordHash string `db:"password_hash"`
	FullName     string `db:"full_name"`
	AvatarURL    string `db:"avatar_url"`
	Points       int64  `db:"points"`
	CreatedAt    int64  `db:"created_at"`
}

func (r userRow) toModel() models.User {
	return models.User{
		ID:           r.ID,
		Role:         r.Role,
		Email:        r.Email,
		PasswordHash: r.PasswordHash,
		FullName:     r.FullName,
		AvatarURL:    r.AvatarURL,
		Points:       r.Points,
		CreatedAt:    fromMillis(r.CreatedAt),
	}
}

// UserStore persists platform accounts.
type UserStore struct {
	db *sqlx.DB
}

// NewUserStore wraps an open connection pool.
func NewUserStore(db *sqlx.DB) *UserStore {
	return &UserStore{db: db}
}

// CreateUser inserts a new account. The email is stored lower-cased.
func (s *UserStore) CreateUser(ctx context.Context, u models.User) error {
	email := strings.ToLower(strings.TrimSpace(u.Email))

	var exists int
	if err := s.db.GetContext(ctx, &exists, s.db.Rebind(`SELECT COUNT(*) FROM users WHERE email = ?`), email); err != nil {
		return fmt.Errorf("checking email: %w", err)
	}
	if exists > 0 {
		return ErrEmailTaken
	}

	query := s.db.Rebind(`INSERT INTO users (` + userColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	_, err := s.db.ExecContext(ctx, query,
		u.ID, u.Role, email, u.PasswordHash, u.FullName, u.AvatarURL, u.Points, toMillis(u.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("creating user: %w", err)
	}
	return nil
}

// GetUser loads a user by id.
func (s *UserStore) GetUser(ctx context.Context, id string) (models.User, error) {
	return getUser(ctx, s.db, id)
}

// GetUserByEmail loads a user by (case-insensitive) email.
func (s *UserStore) GetUserByEmail(ctx context.Context, email string) (models.User, error) {
	var row userRow
	query := s.db.Rebind(`SELECT ` + userColumns + ` FROM users WHERE email = ?`)
	if err := s.db.GetContext(ctx, &row, query, strings.ToLower(strings.TrimSpace(email))); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.User{}, ErrUserNotFound
		}
		return models.User{}, fmt.Errorf("getting user by email: %w", err)
	}
	return row.toModel(), nil
}

// GetUserRole returns only the role column, used by the role middleware.
func (s *UserStore) GetUserRole(ctx context.Context, id string) (string, error) {
	var role string
	if err := s.db.GetContext(ctx, &role, s.db.Rebind(`SELECT role FROM users WHERE id = ?`), id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", ErrUserNotFound
		}
		return "", fmt.Errorf("getting user role: %w", err)
	}
	return role, nil
}

// queryer is satisfied by both *sqlx.DB and *sqlx.Tx.
type queryer interface {
	sqlx.QueryerContext
	Rebind(query string) string
}

// getUser is shared by the domain stores that need sender snapshots.
func getUser(ctx context.Context, q queryer, id string) (models.User, error) {
	var row userRow
	query := q.Rebind(`SELECT ` + userColumns + ` FROM users WHERE id = ?`)
	if err := sqlx.GetContext(ctx, q, &row, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.User{}, ErrUserNotFound
		}
		return models.User{}, fmt.Errorf("getting user %s: %w", id, err)
	}
	return row.toModel(), nil
}

// listUserIDsByRole returns ids of every user with role.
func listUserIDsByRole(ctx context.Context, db *sqlx.DB, role string) ([]string, error) {
	var ids []string
	query := db.Rebind(`SELECT id FROM users WHERE role = ? ORDER BY created_at ASC, id ASC`)
	if err := db.SelectContext(ctx, &ids, query, role); err != nil {
		return nil, fmt.Errorf("listing %s users: %w", role, err)
	}
	return ids, nil
}
