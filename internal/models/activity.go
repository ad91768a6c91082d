package models

import "time"

// ActivityCategory labels the kind of scheduled event an activity represents.
type ActivityCategory string

const (
	// CategoryRaid is a full alliance raid roster.
	CategoryRaid ActivityCategory = "raid"
	// CategoryParty is a single light-party or full-party team.
	CategoryParty ActivityCategory = "party"
)

// DefaultCapacity returns the default roster size for a category.
//
// The original rollout assigned both categories the same default through a
// fallthrough; that behaviour is kept until a product decision says otherwise.
func (c ActivityCategory) DefaultCapacity() int {
	switch c {
	case CategoryRaid, CategoryParty:
		return 40
	default:
		return 40
	}
}

// Activity is one scheduled group event that players sign up for.
type Activity struct {
	BaseModel

	GroupName      string           `gorm:"size:128;not null;uniqueIndex:idx_activity_group_name,priority:1" json:"group_name"`
	Name           string           `gorm:"size:128;not null;uniqueIndex:idx_activity_group_name,priority:2" json:"name"`
	Category       ActivityCategory `gorm:"size:32;not null;default:'raid'" json:"category"`
	Capacity       int              `gorm:"not null" json:"capacity"`
	LeaderID       string           `gorm:"size:64;not null;index" json:"leader_id"`
	StartTime      time.Time        `gorm:"not null;index" json:"start_time"`
	Region         string           `gorm:"size:64" json:"region"`
	EnrollmentOpen bool             `gorm:"not null;default:true" json:"enrollment_open"`
}
