package models

// EmailKind identifies which template produced a notification.
type EmailKind string

const (
	EmailKindOffer                EmailKind = "offer"
	EmailKindInternalNewInquiry   EmailKind = "internal_new_inquiry"
	EmailKindConfirmation         EmailKind = "confirmation"
	EmailKindInternalConfirmation EmailKind = "internal_confirmation"
	EmailKindReminder             EmailKind = "reminder"
	EmailKindResendOffer          EmailKind = "resend_offer"
	EmailKindOfferFollowUp        EmailKind = "offer_followup"
	EmailKindManualReminder       EmailKind = "manual_reminder"
)

// Delivery outcomes recorded on EmailLog.
const (
	EmailStatusSent   = "sent"
	EmailStatusFailed = "failed"
)

// EmailLog records one delivery attempt. EventID is kept after a decline
// removes the event so the trail stays intact.
type EmailLog struct {
	BaseModel

	EventID   string    `gorm:"type:uuid;index" json:"event_id"`
	Kind      EmailKind `gorm:"type:varchar(32);not null;index" json:"kind"`
	Recipient string    `gorm:"type:varchar(255);not null" json:"recipient"`
	Subject   string    `gorm:"type:varchar(255)" json:"subject"`
	Provider  string    `gorm:"type:varchar(16);not null" json:"provider"`
	Status    string    `gorm:"type:varchar(16);not null;index" json:"status"`
	Error     string    `gorm:"type:text" json:"error,omitempty"`
}
