package models

import "gorm.io/gorm"

// User owns campaigns and the sending identity used for outreach email.
// Account registration and OAuth token handling live outside this service;
// the JWT middleware only needs to resolve an existing row.
type User struct {
	gorm.Model
	Email string `gorm:"not null;uniqueIndex" json:"email"`
	Name  string `json:"name"`

	Company string `json:"company"`

	// Sending identity used when composing outreach email.
	FromName  string `json:"from_name"`
	FromEmail string `json:"from_email"`

	IsActive     bool `gorm:"default:true" json:"is_active"`
	TokenVersion int  `gorm:"default:0" json:"-"`

	// Relations
	Campaigns []Campaign `gorm:"foreignKey:UserID" json:"campaigns,omitempty"`
}
