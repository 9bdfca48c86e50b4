package models

import (
	"time"

	"gorm.io/gorm"
)

// Engagement statuses. Under normal flow a prospect only advances
// (new -> contacted -> replied -> meeting_scheduled|completed), but a
// not-interested reply forces completed early from any state except
// meeting_scheduled.
const (
	EngagementNew              = "new"
	EngagementContacted        = "contacted"
	EngagementReplied          = "replied"
	EngagementMeetingScheduled = "meeting_scheduled"
	EngagementCompleted        = "completed"
)

// Prospect represents a single target contact within a campaign.
type Prospect struct {
	gorm.Model
	CampaignID uint `gorm:"not null;index;uniqueIndex:idx_prospect_campaign_email" json:"campaign_id"`
	UserID     uint `gorm:"index" json:"user_id"`

	// One row per address per campaign; bulk imports rely on this to dedupe.
	Email     string `gorm:"not null;index;uniqueIndex:idx_prospect_campaign_email" json:"email"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Company   string `json:"company"`
	Position  string `json:"position"`

	EngagementStatus string `gorm:"default:'new';index" json:"engagement_status"`

	// A hard bounce or complaint flips this; the executor skips the prospect.
	IsDoNotContact bool `gorm:"default:false" json:"is_do_not_contact"`

	LastContact *time.Time `json:"last_contact"`

	// Relations
	Campaign Campaign     `json:"-"`
	Events   []EmailEvent `gorm:"foreignKey:ProspectID" json:"events,omitempty"`
}

// SequenceHalted reports whether the sequence is permanently done with this
// prospect.
func (p *Prospect) SequenceHalted() bool {
	return p.EngagementStatus == EngagementMeetingScheduled ||
		p.EngagementStatus == EngagementCompleted
}

// FullName joins first and last name, tolerating either being empty.
func (p *Prospect) FullName() string {
	switch {
	case p.FirstName == "":
		return p.LastName
	case p.LastName == "":
		return p.FirstName
	default:
		return p.FirstName + " " + p.LastName
	}
}
