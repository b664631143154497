package models

import "time"

// Participation request statuses. Accepted and rejected are terminal.
const (
	ParticipationPending  = "pending"
	ParticipationAccepted = "accepted"
	ParticipationRejected = "rejected"
)

// MaxRejectionReasonLength caps the free-text reason attached to a rejection.
const MaxRejectionReasonLength = 500

// ParticipationRequest is the model for the 'participation_requests' table.
type ParticipationRequest struct {
	ID              string     `json:"id"`
	EventID         string     `json:"eventId"`
	VolunteerID     string     `json:"volunteerId"`
	Message         string     `json:"message,omitempty"`
	Status          string     `json:"status"`
	RejectionReason string     `json:"rejectionReason,omitempty"`
	DecidedBy       string     `json:"decidedBy,omitempty"`
	DecidedAt       *time.Time `json:"decidedAt,omitempty"`
	CreatedAt       time.Time  `json:"createdAt"`

	// Populated on listing for the organizer.
	VolunteerName string `json:"volunteerName,omitempty"`
}
