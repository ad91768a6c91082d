package models

// BlacklistEntry is a screening rule rejecting matching applicants for a group.
//
// A match on either the platform user id or the (nickname, world) pair blocks
// the signup. Removal flips Active rather than deleting the row.
type BlacklistEntry struct {
	BaseModel

	GroupName string `gorm:"size:128;not null;index" json:"group_name"`
	UserID    string `gorm:"size:64;index" json:"user_id"`
	Nickname  string `gorm:"size:128;index" json:"nickname"`
	World     string `gorm:"size:64" json:"world"`
	Reason    string `gorm:"size:255" json:"reason"`
	Active    bool   `gorm:"not null;default:true;index" json:"active"`
}
