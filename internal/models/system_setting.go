package models

import "time"

// Well known SystemSetting keys.
const (
	// SettingLastReminderSweep holds the RFC3339 time of the last completed reminder sweep.
	SettingLastReminderSweep = "reminders.last_sweep_at"
	// SettingLastRetentionRun holds the RFC3339 time of the last retention prune.
	SettingLastRetentionRun = "retention.last_run_at"
)

// SystemSetting persists small operational values that must survive restarts.
type SystemSetting struct {
	Key       string    `gorm:"primaryKey;type:varchar(128)" json:"key"`
	Value     string    `gorm:"not null" json:"value"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
