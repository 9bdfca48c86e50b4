package store

import (
	"context"
	"time"

	"reachflow/models"
)

// ActiveCampaigns returns every campaign currently in the active status.
func (s *Store) ActiveCampaigns(ctx context.Context) ([]models.Campaign, error) {
	var campaigns []models.Campaign
	err := s.db.WithContext(ctx).
		Where("status = ?", models.CampaignStatusActive).
		Order("id asc").
		Find(&campaigns).Error
	return campaigns, err
}

// DueScheduled returns scheduled campaigns whose start time has arrived.
func (s *Store) DueScheduled(ctx context.Context, now time.Time) ([]models.Campaign, error) {
	var campaigns []models.Campaign
	err := s.db.WithContext(ctx).
		Where("status = ? AND scheduled_start_time IS NOT NULL AND scheduled_start_time <= ?",
			models.CampaignStatusScheduled, now).
		Order("id asc").
		Find(&campaigns).Error
	return campaigns, err
}

// TransitionStatus performs a guarded status change. The WHERE clause carries
// the expected current status, so a concurrent pause/resume/complete loses
// cleanly instead of clobbering.
func (s *Store) TransitionStatus(ctx context.Context, campaignID uint, from, to string, stamps map[string]interface{}) (bool, error) {
	updates := map[string]interface{}{"status": to}
	for col, val := range stamps {
		updates[col] = val
	}

	res := s.db.WithContext(ctx).
		Model(&models.Campaign{}).
		Where("id = ? AND status = ?", campaignID, from).
		Updates(updates)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// SaveMetrics writes one recompute of the derived campaign rates.
func (s *Store) SaveMetrics(ctx context.Context, campaignID uint, m models.CampaignMetrics) error {
	return s.db.WithContext(ctx).
		Model(&models.Campaign{}).
		Where("id = ?", campaignID).
		Updates(map[string]interface{}{
			"reply_rate":      m.ReplyRate,
			"meeting_rate":    m.MeetingRate,
			"engagement_rate": m.EngagementRate,
		}).Error
}
