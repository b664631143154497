package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// NotificationType is the closed set of notification kinds the platform emits.
type NotificationType string

const (
	TypeEventApprovalRequest    NotificationType = "event_approval_request"
	TypeEventSubmitted          NotificationType = "event_submitted"
	TypeEventApproved           NotificationType = "event_approved"
	TypeEventRejected           NotificationType = "event_rejected"
	TypeParticipationRequest    NotificationType = "participation_request"
	TypeParticipationAccepted   NotificationType = "participation_accepted"
	TypeParticipationRejected   NotificationType = "participation_rejected"
	TypeVolunteerJoined         NotificationType = "volunteer_joined"
	TypePointsAwarded           NotificationType = "points_awarded"
	TypeBadgeEarned             NotificationType = "badge_earned"
	TypeCertificateAwarded      NotificationType = "certificate_awarded"
	TypeEventCompletionRequest  NotificationType = "event_completion_request"
	TypeEventCompletionApproved NotificationType = "event_completion_approved"
	TypeEventCompletionRejected NotificationType = "event_completion_rejected"
)

// NotificationTypes lists every valid NotificationType in declaration order.
var NotificationTypes = []NotificationType{
	TypeEventApprovalRequest,
	TypeEventSubmitted,
	TypeEventApproved,
	TypeEventRejected,
	TypeParticipationRequest,
	TypeParticipationAccepted,
	TypeParticipationRejected,
	TypeVolunteerJoined,
	TypePointsAwarded,
	TypeBadgeEarned,
	TypeCertificateAwarded,
	TypeEventCompletionRequest,
	TypeEventCompletionApproved,
	TypeEventCompletionRejected,
}

// Valid reports whether t is one of the known notification types.
func (t NotificationType) Valid() bool {
	for _, known := range NotificationTypes {
		if t == known {
			return true
		}
	}
	return false
}

// Sender is a read-only snapshot of who triggered a notification.
type Sender struct {
	Name   string `json:"name"`
	Avatar string `json:"avatar,omitempty"`
}

// Metadata is free-form rendering context (eventId, points, badgeName...).
// It is stored as a JSON object.
type Metadata map[string]any

// Value implements driver.Valuer.
func (m Metadata) Value() (driver.Value, error) {
	if len(m) == 0 {
		return nil, nil
	}
	b, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("encoding notification metadata: %w", err)
	}
	return string(b), nil
}

// Scan implements sql.Scanner.
func (m *Metadata) Scan(src any) error {
	var raw []byte
	switch v := src.(type) {
	case nil:
		*m = nil
		return nil
	case string:
		raw = []byte(v)
	case []byte:
		raw = v
	default:
		return fmt.Errorf("unsupported metadata column type %T", src)
	}
	if len(raw) == 0 {
		*m = nil
		return nil
	}
	out := Metadata{}
	if err := json.Unmarshal(raw, &out); err != nil {
		return fmt.Errorf("decoding notification metadata: %w", err)
	}
	*m = out
	return nil
}

// Notification is one entry in a recipient's notification log.
// Only Read ever changes after creation, and only from false to true.
type Notification struct {
	ID          string           `json:"id"`
	RecipientID string           `json:"recipientId"`
	Type        NotificationType `json:"type"`
	Title       string           `json:"title"`
	Message     string           `json:"message"`
	Read        bool             `json:"read"`
	CreatedAt   time.Time        `json:"createdAt"`
	ActionURL   *string          `json:"actionUrl,omitempty"`
	Sender      *Sender          `json:"sender,omitempty"`
	Metadata    Metadata         `json:"metadata,omitempty"`

	// DedupeKey is server-internal and never leaves the API.
	DedupeKey string `json:"-"`
}

// HasAction reports whether the notification carries a deep link.
func (n Notification) HasAction() bool {
	return n.ActionURL != nil && *n.ActionURL != ""
}
