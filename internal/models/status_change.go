package models

import "gorm.io/datatypes"

// Sources of a lifecycle transition.
const (
	ChangeSourcePublic    = "public"
	ChangeSourceAdmin     = "admin"
	ChangeSourceScheduler = "scheduler"
)

// StatusChange is an audit record for one inquiry lifecycle transition.
type StatusChange struct {
	BaseModel

	EventID   string         `gorm:"type:uuid;index;not null" json:"event_id"`
	OldStatus EventStatus    `gorm:"type:varchar(16)" json:"old_status,omitempty"`
	NewStatus EventStatus    `gorm:"type:varchar(16);not null" json:"new_status"`
	Source    string         `gorm:"type:varchar(16);not null" json:"source"`
	ClientIP  string         `gorm:"type:varchar(64)" json:"client_ip,omitempty"`
	UserAgent string         `gorm:"type:varchar(255)" json:"user_agent,omitempty"`
	Metadata  datatypes.JSON `json:"metadata,omitempty"`
}
