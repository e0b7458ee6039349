package models

import "time"

// Announcement is a staff broadcast shown in the app banner. Optional expiry;
// the scheduler deactivates expired rows.
type Announcement struct {
	ID        string     `gorm:"primaryKey;type:uuid" json:"id"`
	Title     string     `gorm:"not null" json:"title"`
	Body      string     `gorm:"type:text" json:"body"`
	Active    bool       `gorm:"default:true;index" json:"active"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
	CreatedBy string     `gorm:"index" json:"created_by"`
	CreatedAt time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

// StaffRole marks a user as staff/admin. The admin middleware consults this
// table in addition to the gateway role header.
type StaffRole struct {
	ID             string    `gorm:"primaryKey;type:uuid" json:"id"`
	ExternalUserID string    `gorm:"uniqueIndex;not null" json:"user_id"`
	Role           string    `gorm:"not null;default:'admin'" json:"role"`
	GrantedBy      string    `json:"granted_by"`
	CreatedAt      time.Time `gorm:"autoCreateTime" json:"created_at"`
}
