package models

import (
	"time"

	"gorm.io/gorm"
)

// Thread sentiments as reported by the reply classifier.
const (
	SentimentPositive      = "positive"
	SentimentNegative      = "negative"
	SentimentNeutral       = "neutral"
	SentimentBookingIntent = "booking_intent"
)

// EmailThread tracks the most recent state of one prospect-campaign email
// exchange. One active row per (prospect, campaign); updated on every
// outbound send and every detected inbound reply.
type EmailThread struct {
	gorm.Model
	CampaignID uint `gorm:"not null;index;uniqueIndex:idx_thread_campaign_prospect" json:"campaign_id"`
	ProspectID uint `gorm:"not null;index;uniqueIndex:idx_thread_campaign_prospect" json:"prospect_id"`

	ThreadID        string `gorm:"index" json:"thread_id"`
	LastMessageBody string `gorm:"type:text" json:"last_message_body"`

	SentAt      *time.Time `json:"sent_at"`
	LastReplyAt *time.Time `json:"last_reply_at"`
	// Monotonic non-decreasing.
	ReplyCount int    `gorm:"default:0" json:"reply_count"`
	Sentiment  string `gorm:"default:'neutral'" json:"sentiment"`
	IsActive   bool   `gorm:"default:true" json:"is_active"`

	// Relations
	Campaign Campaign `json:"-"`
	Prospect Prospect `json:"-"`
}
