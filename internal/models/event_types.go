package models

import "time"

// Event statuses.
const (
	EventStatusPending             = "pending"
	EventStatusApproved            = "approved"
	EventStatusRejected            = "rejected"
	EventStatusCompletionRequested = "completion_requested"
	EventStatusCompleted           = "completed"
)

// Event is the model for the 'events' table.
type Event struct {
	ID               string    `json:"id"`
	OrganizerID      string    `json:"organizerId"`
	Title            string    `json:"title"`
	Slug             string    `json:"slug"`
	Description      string    `json:"description,omitempty"`
	Status           string    `json:"status"`
	RejectionReason  string    `json:"rejectionReason,omitempty"`
	Points           int64     `json:"points"`
	VolunteersJoined int64     `json:"volunteersJoined"`
	CreatedAt        time.Time `json:"createdAt"`
	UpdatedAt        time.Time `json:"updatedAt"`
}

// URL is the in-app deep link for the event.
func (e Event) URL() string {
	if e.Slug == "" {
		return "/events/" + e.ID
	}
	return "/events/" + e.ID + "/" + e.Slug
}
