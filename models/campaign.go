package models

import (
	"time"

	"gorm.io/gorm"
)

// Campaign statuses. Transitions only move forward along
// draft -> scheduled -> active -> (paused <-> active) -> completed.
const (
	CampaignStatusDraft     = "draft"
	CampaignStatusScheduled = "scheduled"
	CampaignStatusActive    = "active"
	CampaignStatusPaused    = "paused"
	CampaignStatusCompleted = "completed"
)

// Campaign represents a user-owned outreach effort targeting a set of prospects
// with a defined email sequence.
type Campaign struct {
	gorm.Model
	UserID uint `gorm:"not null;index" json:"user_id"`

	// Campaign details
	Name        string `gorm:"not null" json:"name"`
	Description string `json:"description"`

	// Scheduling
	Status             string     `gorm:"default:'draft';index" json:"status"`
	ScheduledStartTime *time.Time `json:"scheduled_start_time"`
	StartedAt          *time.Time `json:"started_at"`
	CompletedAt        *time.Time `json:"completed_at"`
	PausedAt           *time.Time `json:"paused_at"`

	// Derived performance metrics, recomputed by the status tracker. Never hand-edited.
	ReplyRate      float64 `gorm:"default:0" json:"reply_rate"`
	MeetingRate    float64 `gorm:"default:0" json:"meeting_booking_rate"`
	EngagementRate float64 `gorm:"default:0" json:"engagement_rate"`

	// Relations
	Prospects []Prospect     `gorm:"foreignKey:CampaignID;constraint:OnDelete:CASCADE" json:"prospects,omitempty"`
	Steps     []SequenceStep `gorm:"foreignKey:CampaignID;constraint:OnDelete:CASCADE" json:"steps,omitempty"`
	User      User           `json:"-"`
}

// CampaignMetrics carries one recompute of a campaign's derived rates.
type CampaignMetrics struct {
	ReplyRate      float64 `json:"reply_rate"`
	MeetingRate    float64 `json:"meeting_booking_rate"`
	EngagementRate float64 `json:"engagement_rate"`
}

// EngagementCounts aggregates prospect engagement for one campaign.
type EngagementCounts struct {
	Total            int `json:"total"`
	Contacted        int `json:"contacted"`
	Replied          int `json:"replied"`
	MeetingScheduled int `json:"meeting_scheduled"`
	Completed        int `json:"completed"`
}

// Finished counts prospects the sequence will never touch again.
func (ec EngagementCounts) Finished() int {
	return ec.MeetingScheduled + ec.Completed
}

// Metrics derives the campaign rates. All rates are 0 for an empty campaign.
func (ec EngagementCounts) Metrics() CampaignMetrics {
	if ec.Total == 0 {
		return CampaignMetrics{}
	}
	responded := ec.Replied + ec.MeetingScheduled + ec.Completed
	return CampaignMetrics{
		ReplyRate:      float64(responded) / float64(ec.Total),
		MeetingRate:    float64(ec.MeetingScheduled+ec.Completed) / float64(ec.Total),
		EngagementRate: float64(responded) / float64(ec.Total),
	}
}
