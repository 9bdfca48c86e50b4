package models

import (
	"time"

	"gorm.io/gorm"
)

// Email event types. The log is append-only and is the source of truth for
// engagement aggregation; rows are never mutated after insert.
const (
	EventSent      = "sent"
	EventDelivered = "delivered"
	EventOpened    = "opened"
	EventClicked   = "clicked"
	EventReplied   = "replied"
	EventBounced   = "bounced"
	EventComplaint = "complaint"
	EventRejected  = "rejected"
)

// EmailEvent records one delivery or engagement event for a prospect.
type EmailEvent struct {
	gorm.Model
	ProspectID uint `gorm:"not null;index" json:"prospect_id"`
	CampaignID uint `gorm:"not null;index" json:"campaign_id"`

	EventType  string    `gorm:"not null;index" json:"event_type"`
	OccurredAt time.Time `gorm:"not null;index" json:"occurred_at"`

	MessageID  string `gorm:"index" json:"message_id"`
	ThreadID   string `json:"thread_id"`
	StepNumber int    `json:"step_number"`
	Detail     string `gorm:"type:text" json:"detail"`

	// Relations
	Prospect Prospect `json:"-"`
}
