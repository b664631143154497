package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/01moynul/servehub/internal/models"
	"github.com/01moynul/servehub/internal/notify"
)

const notificationColumns = `id, recipient_id, type, title, message, is_read, action_url,
	sender_name, sender_avatar, metadata, dedupe_key, created_at`

// NotificationStore implements notify.Store on top of a SQL database.
type NotificationStore struct {
	db *sqlx.DB
}

var _ notify.Store = (*NotificationStore)(nil)

// NewNotificationStore wraps an open connection pool.
func NewNotificationStore(db *sqlx.DB) *NotificationStore {
	return &NotificationStore{db: db}
}

type notificationRow struct {
	ID           string          `db:"id"`
	RecipientID  string          `db:"recipient_id"`
	Type         string          `db:"type"`
	Title        string          `db:"title"`
	Message      string          `db:"message"`
	IsRead       bool            `db:"is_read"`
	ActionURL    sql.NullString  `db:"action_url"`
	SenderName   sql.NullString  `db:"sender_name"`
	SenderAvatar sql.NullString  `db:"sender_avatar"`
	Metadata     models.Metadata `db:"metadata"`
	DedupeKey    sql.NullString  `db:"dedupe_key"`
	CreatedAt    int64           `db:"created_at"`
}

func (r notificationRow) toModel() models.Notification {
	n := models.Notification{
		ID:          r.ID,
		RecipientID: r.RecipientID,
		Type:        models.NotificationType(r.Type),
		Title:       r.Title,
		Message:     r.Message,
		Read:        r.IsRead,
		CreatedAt:   fromMillis(r.CreatedAt),
		Metadata:    r.Metadata,
		DedupeKey:   r.DedupeKey.String,
	}
	if r.ActionURL.Valid && r.ActionURL.String != "" {
		url := r.ActionURL.String
		n.ActionURL = &url
	}
	if r.SenderName.Valid {
		n.Sender = &models.Sender{Name: r.SenderName.String, Avatar: r.SenderAvatar.String}
	}
	return n
}

// InsertNotification appends one record to the log.
func (s *NotificationStore) InsertNotification(ctx context.Context, n models.Notification) error {
	var actionURL string
	if n.ActionURL != nil {
		actionURL = *n.ActionURL
	}
	var senderName, senderAvatar sql.NullString
	if n.Sender != nil {
		senderName = sql.NullString{String: n.Sender.Name, Valid: true}
		senderAvatar = nullString(n.Sender.Avatar)
	}

	query := s.db.Rebind(`
		INSERT INTO notifications (` + notificationColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	_, err := s.db.ExecContext(ctx, query,
		n.ID, n.RecipientID, string(n.Type), n.Title, n.Message, n.Read,
		nullString(actionURL), senderName, senderAvatar, n.Metadata,
		nullString(n.DedupeKey), toMillis(n.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to add notification: %w", err)
	}
	return nil
}

// GetNotificationByDedupeKey loads the recipient's notification carrying dedupeKey.
func (s *NotificationStore) GetNotificationByDedupeKey(ctx context.Context, recipientID, dedupeKey string) (models.Notification, error) {
	if dedupeKey == "" {
		return models.Notification{}, notify.ErrNotFound
	}
	var row notificationRow
	query := s.db.Rebind(`SELECT ` + notificationColumns + ` FROM notifications WHERE recipient_id = ? AND dedupe_key = ?`)
	if err := s.db.GetContext(ctx, &row, query, recipientID, dedupeKey); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.Notification{}, notify.ErrNotFound
		}
		return models.Notification{}, fmt.Errorf("getting notification by dedupe key: %w", err)
	}
	return row.toModel(), nil
}

// ListNotifications returns up to limit notifications, newest first.
func (s *NotificationStore) ListNotifications(ctx context.Context, recipientID string, limit int) ([]models.Notification, error) {
	var rows []notificationRow
	query := s.db.Rebind(`
		SELECT ` + notificationColumns + `
		FROM notifications
		WHERE recipient_id = ?
		ORDER BY created_at DESC, id DESC
		LIMIT ?`)
	if err := s.db.SelectContext(ctx, &rows, query, recipientID, limit); err != nil {
		return nil, fmt.Errorf("listing notifications: %w", err)
	}

	notifications := make([]models.Notification, 0, len(rows))
	for _, row := range rows {
		notifications = append(notifications, row.toModel())
	}
	return notifications, nil
}

// CountUnread returns the recipient's unread total.
func (s *NotificationStore) CountUnread(ctx context.Context, recipientID string) (int, error) {
	var count int
	query := s.db.Rebind(`SELECT COUNT(*) FROM notifications WHERE recipient_id = ? AND is_read = ?`)
	if err := s.db.GetContext(ctx, &count, query, recipientID, false); err != nil {
		return 0, fmt.Errorf("counting unread notifications: %w", err)
	}
	return count, nil
}

// MarkRead flips the given ids to read. Every id must belong to the recipient,
// otherwise nothing changes and notify.ErrNotFound is returned.
func (s *NotificationStore) MarkRead(ctx context.Context, recipientID string, ids []string) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}

	var updated int64
	err := withTx(ctx, s.db, func(tx *sqlx.Tx) error {
		// 1. --- Ownership check ---
		countQuery, args, err := sqlx.In(`SELECT COUNT(*) FROM notifications WHERE recipient_id = ? AND id IN (?)`, recipientID, ids)
		if err != nil {
			return fmt.Errorf("building ownership query: %w", err)
		}
		var owned int
		if err := tx.GetContext(ctx, &owned, tx.Rebind(countQuery), args...); err != nil {
			return fmt.Errorf("checking notification ownership: %w", err)
		}
		if owned != len(ids) {
			return notify.ErrNotFound
		}

		// 2. --- Flip unread rows only ---
		updateQuery, args, err := sqlx.In(`UPDATE notifications SET is_read = ? WHERE recipient_id = ? AND is_read = ? AND id IN (?)`, true, recipientID, false, ids)
		if err != nil {
			return fmt.Errorf("building mark read query: %w", err)
		}
		result, err := tx.ExecContext(ctx, tx.Rebind(updateQuery), args...)
		if err != nil {
			return fmt.Errorf("marking notifications read: %w", err)
		}
		updated, err = result.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to check affected rows: %w", err)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return int(updated), nil
}

// MarkAllRead flips every unread notification of the recipient.
func (s *NotificationStore) MarkAllRead(ctx context.Context, recipientID string) (int, error) {
	query := s.db.Rebind(`UPDATE notifications SET is_read = ? WHERE recipient_id = ? AND is_read = ?`)
	result, err := s.db.ExecContext(ctx, query, true, recipientID, false)
	if err != nil {
		return 0, fmt.Errorf("marking all notifications read: %w", err)
	}
	updated, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to check affected rows: %w", err)
	}
	return int(updated), nil
}

// DeleteNotification removes one notification owned by the recipient.
func (s *NotificationStore) DeleteNotification(ctx context.Context, recipientID, id string) error {
	query := s.db.Rebind(`DELETE FROM notifications WHERE id = ? AND recipient_id = ?`)
	result, err := s.db.ExecContext(ctx, query, id, recipientID)
	if err != nil {
		return fmt.Errorf("deleting notification %s: %w", id, err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check affected rows: %w", err)
	}
	// 0 rows: the notification either didn't exist or didn't belong to this user.
	if rows == 0 {
		return notify.ErrNotFound
	}
	return nil
}

// PurgeNotifications deletes rows created before olderThan (when non-zero) and
// trims every recipient to the newest maxPerRecipient rows (when positive).
// Rows sharing the boundary timestamp are kept, so a recipient may briefly
// exceed the cap by the size of that tie.
func (s *NotificationStore) PurgeNotifications(ctx context.Context, olderThan time.Time, maxPerRecipient int) (int, error) {
	var removed int64

	if !olderThan.IsZero() {
		query := s.db.Rebind(`DELETE FROM notifications WHERE created_at < ?`)
		result, err := s.db.ExecContext(ctx, query, toMillis(olderThan))
		if err != nil {
			return 0, fmt.Errorf("purging expired notifications: %w", err)
		}
		n, err := result.RowsAffected()
		if err != nil {
			return 0, fmt.Errorf("failed to check affected rows: %w", err)
		}
		removed += n
	}

	if maxPerRecipient > 0 {
		var recipients []string
		overflowQuery := s.db.Rebind(`
			SELECT recipient_id
			FROM notifications
			GROUP BY recipient_id
			HAVING COUNT(*) > ?`)
		if err := s.db.SelectContext(ctx, &recipients, overflowQuery, maxPerRecipient); err != nil {
			return int(removed), fmt.Errorf("finding recipients over cap: %w", err)
		}

		boundaryQuery := s.db.Rebind(`
			SELECT created_at
			FROM notifications
			WHERE recipient_id = ?
			ORDER BY created_at DESC
			LIMIT 1 OFFSET ?`)
		trimQuery := s.db.Rebind(`DELETE FROM notifications WHERE recipient_id = ? AND created_at < ?`)
		for _, recipientID := range recipients {
			var boundary int64
			if err := s.db.GetContext(ctx, &boundary, boundaryQuery, recipientID, maxPerRecipient-1); err != nil {
				return int(removed), fmt.Errorf("finding cap boundary for %s: %w", recipientID, err)
			}
			result, err := s.db.ExecContext(ctx, trimQuery, recipientID, boundary)
			if err != nil {
				return int(removed), fmt.Errorf("trimming notifications for %s: %w", recipientID, err)
			}
			n, err := result.RowsAffected()
			if err != nil {
				return int(removed), fmt.Errorf("failed to check affected rows: %w", err)
			}
			removed += n
		}
	}

	return int(removed), nil
}
