package models

import (
	"time"

	"gorm.io/datatypes"
)

// EventStatus is the persisted lifecycle state of an inquiry. Declined
// inquiries are deleted, so only pending and accepted are ever stored.
type EventStatus string

const (
	EventStatusPending  EventStatus = "pending"
	EventStatusAccepted EventStatus = "accepted"
	// EventStatusDeclined only appears in the status change audit trail.
	EventStatusDeclined EventStatus = "declined"
)

// Event is a single wedding inquiry and its booking state.
type Event struct {
	BaseModel

	AcceptToken  string `gorm:"type:varchar(64);uniqueIndex;not null" json:"-"`
	DeclineToken string `gorm:"type:varchar(64);uniqueIndex;not null" json:"-"`

	FirstName string `gorm:"type:varchar(120);not null" json:"first_name"`
	LastName  string `gorm:"type:varchar(120);not null" json:"last_name"`
	Email     string `gorm:"type:varchar(255);not null;index" json:"email"`
	Phone     string `gorm:"type:varchar(80);not null" json:"phone"`

	WeddingDate datatypes.Date `gorm:"not null;index" json:"wedding_date"`
	Venue       string         `gorm:"type:varchar(255);not null" json:"venue"`
	GuestCount  int            `gorm:"not null" json:"guest_count"`
	Message     string         `gorm:"type:text" json:"message,omitempty"`

	Status       EventStatus `gorm:"type:varchar(16);not null;default:'pending';index" json:"status"`
	Accepted     bool        `gorm:"not null;default:false" json:"accepted"`
	ReminderSent bool        `gorm:"not null;default:false" json:"reminder_sent"`

	AcceptedAt     *time.Time `json:"accepted_at,omitempty"`
	OfferSentAt    *time.Time `json:"offer_sent_at,omitempty"`
	ReminderSentAt *time.Time `json:"reminder_sent_at,omitempty"`
}

// WeddingDay returns the wedding date as a civil date at UTC midnight.
func (e *Event) WeddingDay() time.Time {
	y, m, d := time.Time(e.WeddingDate).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// FullName joins the couple contact's first and last name.
func (e *Event) FullName() string {
	switch {
	case e.FirstName == "":
		return e.LastName
	case e.LastName == "":
		return e.FirstName
	default:
		return e.FirstName + " " + e.LastName
	}
}

// IsPending reports whether the inquiry still awaits a decision.
func (e *Event) IsPending() bool {
	return e.Status == EventStatusPending && !e.Accepted
}
