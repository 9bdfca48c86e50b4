package store

import (
	"context"
	"time"

	"gorm.io/gorm"

	"reachflow/models"
)

// RecordOutbound upserts the conversation record after a sequence send. The
// caller holds the per-prospect lock, so read-then-write is safe here.
func (s *Store) RecordOutbound(ctx context.Context, campaignID, prospectID uint, threadID, body string, at time.Time) error {
	var thread models.EmailThread
	err := s.db.WithContext(ctx).
		Where("campaign_id = ? AND prospect_id = ?", campaignID, prospectID).
		First(&thread).Error

	if notFound(err) {
		return s.db.WithContext(ctx).Create(&models.EmailThread{
			CampaignID:      campaignID,
			ProspectID:      prospectID,
			ThreadID:        threadID,
			LastMessageBody: body,
			SentAt:          &at,
			IsActive:        true,
		}).Error
	}
	if err != nil {
		return err
	}

	return s.db.WithContext(ctx).
		Model(&thread).
		Updates(map[string]interface{}{
			"last_message_body": body,
			"sent_at":           at,
			"is_active":         true,
		}).Error
}

// RecordReply stamps an inbound reply onto the thread. reply_count only ever
// grows.
func (s *Store) RecordReply(ctx context.Context, campaignID, prospectID uint, body string, at time.Time) error {
	res := s.db.WithContext(ctx).
		Model(&models.EmailThread{}).
		Where("campaign_id = ? AND prospect_id = ?", campaignID, prospectID).
		Updates(map[string]interface{}{
			"last_message_body": body,
			"last_reply_at":     at,
			"reply_count":       gorm.Expr("reply_count + ?", 1),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		// Reply arrived before any send was recorded; keep the conversation.
		return s.db.WithContext(ctx).Create(&models.EmailThread{
			CampaignID:      campaignID,
			ProspectID:      prospectID,
			LastMessageBody: body,
			LastReplyAt:     &at,
			ReplyCount:      1,
			IsActive:        true,
		}).Error
	}
	return nil
}

// SetSentiment records the classifier's read of the latest reply.
func (s *Store) SetSentiment(ctx context.Context, campaignID, prospectID uint, sentiment string) error {
	return s.db.WithContext(ctx).
		Model(&models.EmailThread{}).
		Where("campaign_id = ? AND prospect_id = ?", campaignID, prospectID).
		Update("sentiment", sentiment).Error
}

// ThreadFor returns the conversation record for the stats and detail
// endpoints, nil when nothing was exchanged yet.
func (s *Store) ThreadFor(ctx context.Context, campaignID, prospectID uint) (*models.EmailThread, error) {
	var thread models.EmailThread
	err := s.db.WithContext(ctx).
		Where("campaign_id = ? AND prospect_id = ?", campaignID, prospectID).
		First(&thread).Error
	if notFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &thread, nil
}
