package models

import "time"

// ExemptMember is a trusted regular whose questionnaire is partially
// auto-filled. The exemption is time-limited and must be refreshed.
type ExemptMember struct {
	BaseModel

	GroupName string    `gorm:"size:128;not null;index" json:"group_name"`
	UserID    string    `gorm:"size:64;not null;index" json:"user_id"`
	Nickname  string    `gorm:"size:128;not null" json:"nickname"`
	World     string    `gorm:"size:64;not null" json:"world"`
	Contact   string    `gorm:"size:128" json:"contact"`
	Remark    string    `gorm:"size:255" json:"remark"`
	ExpiresAt time.Time `gorm:"not null;index" json:"expires_at"`
}
