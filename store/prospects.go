package store

import (
	"context"
	"time"

	"reachflow/models"
)

// ByCampaign returns all prospects of a campaign in insertion order.
func (s *Store) ByCampaign(ctx context.Context, campaignID uint) ([]models.Prospect, error) {
	var prospects []models.Prospect
	err := s.db.WithContext(ctx).
		Where("campaign_id = ?", campaignID).
		Order("id asc").
		Find(&prospects).Error
	return prospects, err
}

func (s *Store) GetProspect(ctx context.Context, prospectID uint) (*models.Prospect, error) {
	var prospect models.Prospect
	if err := s.db.WithContext(ctx).First(&prospect, prospectID).Error; err != nil {
		return nil, err
	}
	return &prospect, nil
}

// FindActiveByEmail matches an inbound sender address to the most recently
// contacted prospect inside an active campaign.
func (s *Store) FindActiveByEmail(ctx context.Context, email string) (*models.Prospect, error) {
	var prospect models.Prospect
	err := s.db.WithContext(ctx).
		Joins("JOIN campaigns ON campaigns.id = prospects.campaign_id").
		Where("prospects.email = ? AND campaigns.status = ?", email, models.CampaignStatusActive).
		Order("prospects.last_contact DESC NULLS LAST").
		First(&prospect).Error
	if notFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &prospect, nil
}

// EngagementCounts aggregates engagement statuses for one campaign in a
// single scan.
func (s *Store) EngagementCounts(ctx context.Context, campaignID uint) (models.EngagementCounts, error) {
	var counts models.EngagementCounts
	err := s.db.WithContext(ctx).Raw(`
        SELECT
            COUNT(*) AS total,
            SUM(CASE WHEN engagement_status = 'contacted' THEN 1 ELSE 0 END) AS contacted,
            SUM(CASE WHEN engagement_status = 'replied' THEN 1 ELSE 0 END) AS replied,
            SUM(CASE WHEN engagement_status = 'meeting_scheduled' THEN 1 ELSE 0 END) AS meeting_scheduled,
            SUM(CASE WHEN engagement_status = 'completed' THEN 1 ELSE 0 END) AS completed
        FROM prospects
        WHERE campaign_id = ? AND deleted_at IS NULL
    `, campaignID).Scan(&counts).Error
	return counts, err
}

// AdvanceEngagement moves a prospect forward in the funnel only when it is
// still in one of the expected states, so a further-along prospect is never
// regressed.
func (s *Store) AdvanceEngagement(ctx context.Context, prospectID uint, from []string, to string) (bool, error) {
	res := s.db.WithContext(ctx).
		Model(&models.Prospect{}).
		Where("id = ? AND engagement_status IN ?", prospectID, from).
		Updates(map[string]interface{}{
			"engagement_status": to,
			"last_contact":      time.Now(),
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// MarkDoNotContact flags a prospect after a hard bounce or complaint.
func (s *Store) MarkDoNotContact(ctx context.Context, prospectID uint) error {
	return s.db.WithContext(ctx).
		Model(&models.Prospect{}).
		Where("id = ?", prospectID).
		Update("is_do_not_contact", true).Error
}
