package models

import (
	"time"

	"gorm.io/gorm"
)

// SequenceProgress is the per-prospect cursor into a campaign's sequence:
// which step was last sent and when. One row per (campaign, prospect),
// created on the first send and updated on every subsequent send. The unique
// index doubles as the guard against concurrent first sends.
type SequenceProgress struct {
	gorm.Model
	CampaignID uint `gorm:"not null;index;uniqueIndex:idx_progress_campaign_prospect" json:"campaign_id"`
	ProspectID uint `gorm:"not null;index;uniqueIndex:idx_progress_campaign_prospect" json:"prospect_id"`

	// 0 means nothing sent yet; in practice a row only exists once step 1 went out.
	CurrentStep     int        `gorm:"not null;default:0" json:"current_step"`
	LastSentAt      *time.Time `json:"last_sent_at"`
	NextScheduledAt *time.Time `json:"next_scheduled_at"`

	// Relations
	Campaign Campaign `json:"-"`
	Prospect Prospect `json:"-"`
}
