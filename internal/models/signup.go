package models

import "gorm.io/datatypes"

// SignupStatus tracks the lifecycle of one signup record.
type SignupStatus string

const (
	SignupActive   SignupStatus = "active"
	SignupCanceled SignupStatus = "canceled"
	// SignupRejected marks records screened out by the blacklist. They are
	// kept for leader review and never count toward capacity.
	SignupRejected SignupStatus = "rejected"
)

// Signup is a user's submitted questionnaire for one activity.
//
// Cancellation flips Status and keeps the row; a fresh apply after cancel
// creates a new row, so canceled rows accumulate as history. The partial
// unique index backstops the pre-commit capacity re-check: at most one
// active row may exist per (activity, user), while canceled and rejected
// history rows accumulate freely.
type Signup struct {
	BaseModel

	ActivityID string         `gorm:"type:uuid;not null;index:idx_signup_one_active,unique,where:status = 'active'" json:"activity_id"`
	UserID     string         `gorm:"size:64;not null;index:idx_signup_one_active,unique,where:status = 'active'" json:"user_id"`
	Nickname   string         `gorm:"size:128" json:"nickname"`
	World      string         `gorm:"size:64" json:"world"`
	Content    datatypes.JSON `gorm:"not null" json:"content"`
	Status     SignupStatus   `gorm:"size:16;not null;default:'active';index" json:"status"`

	Activity *Activity `gorm:"constraint:OnDelete:CASCADE" json:"activity,omitempty"`
}
