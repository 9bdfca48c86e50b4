package models

import "gorm.io/gorm"

// Trigger condition types understood by the evaluator. Anything else is
// treated as permissive and logged.
const (
	TriggerProspectReplied = "prospect_replied"
	TriggerPreviousOpened  = "previous_opened"
)

// TriggerCondition is an optional predicate gating a step. Stored as jsonb.
type TriggerCondition struct {
	Type  string `json:"type"`
	Value bool   `json:"value"`
}

// IsZero reports whether no condition was configured.
func (tc *TriggerCondition) IsZero() bool {
	return tc == nil || tc.Type == ""
}

// SequenceStep is one templated email at a fixed position in a campaign's
// outreach plan, gated by a delay and an optional trigger condition.
// step_number values for an active campaign are 1-based, dense and unique.
type SequenceStep struct {
	gorm.Model
	CampaignID uint `gorm:"not null;index;uniqueIndex:idx_campaign_step" json:"campaign_id"`

	StepNumber int `gorm:"not null;uniqueIndex:idx_campaign_step" json:"step_number"`
	// Days since the previous step's send before this step becomes eligible.
	DelayDays int `gorm:"not null;default:0" json:"delay_days"`

	Subject  string `gorm:"not null" json:"subject"`
	BodyHTML string `gorm:"type:text" json:"body_html"`

	TriggerCondition *TriggerCondition `gorm:"type:jsonb;serializer:json" json:"trigger_condition,omitempty"`
	IsActive         bool              `gorm:"default:true" json:"is_active"`

	// Tracking (denormalized for the stats endpoint)
	SentCount int `gorm:"default:0" json:"sent_count"`

	// Relations
	Campaign Campaign `json:"-"`
}
