package models

import "time"

// ReminderJobStatus tracks a reminder job through claim and delivery.
type ReminderJobStatus string

const (
	ReminderJobPending   ReminderJobStatus = "pending"
	ReminderJobRunning   ReminderJobStatus = "running"
	ReminderJobDone      ReminderJobStatus = "done"
	ReminderJobCancelled ReminderJobStatus = "cancelled"
	ReminderJobFailed    ReminderJobStatus = "failed"
)

// ReminderKind identifies what a reminder job delivers.
type ReminderKind string

const (
	// ReminderKindWedding is the internal reminder before an accepted wedding.
	ReminderKindWedding ReminderKind = "wedding"
	// ReminderKindFollowUpFirst and ReminderKindFollowUpSecond nudge couples
	// who have not answered the offer yet.
	ReminderKindFollowUpFirst  ReminderKind = "offer_followup_1"
	ReminderKindFollowUpSecond ReminderKind = "offer_followup_2"
)

// IsFollowUp reports whether k is an offer follow-up for a pending inquiry.
func (k ReminderKind) IsFollowUp() bool {
	return k == ReminderKindFollowUpFirst || k == ReminderKindFollowUpSecond
}

// ReminderJob is a durable one-shot reminder. An event owns at most one job
// per kind.
//
// ClaimToken identifies the sweep currently holding a running job; every
// completion is conditional on it. DispatchedAt is set once, right before the
// message is handed to the transport, and is never cleared by lease release,
// so a job whose claim expired mid-send is not delivered a second time.
type ReminderJob struct {
	BaseModel

	EventID       string            `gorm:"type:uuid;not null;uniqueIndex:idx_reminder_jobs_event_kind,priority:1" json:"event_id"`
	Kind          ReminderKind      `gorm:"type:varchar(32);not null;default:'wedding';uniqueIndex:idx_reminder_jobs_event_kind,priority:2" json:"kind"`
	FireAt        time.Time         `gorm:"not null;index" json:"fire_at"`
	Status        ReminderJobStatus `gorm:"type:varchar(16);not null;default:'pending';index:idx_reminder_jobs_due,priority:1" json:"status"`
	NextAttemptAt time.Time         `gorm:"not null;index:idx_reminder_jobs_due,priority:2" json:"next_attempt_at"`
	Attempts      int               `gorm:"not null;default:0" json:"attempts"`
	LastError     string            `gorm:"type:text" json:"last_error,omitempty"`
	ClaimToken    string            `gorm:"type:varchar(36)" json:"-"`
	ClaimedAt     *time.Time        `json:"claimed_at,omitempty"`
	DispatchedAt  *time.Time        `json:"dispatched_at,omitempty"`
	CompletedAt   *time.Time        `json:"completed_at,omitempty"`
}
