package store

import (
	"context"

	"gorm.io/gorm"

	"reachflow/models"
)

// ActiveSteps returns a campaign's active steps ordered by step number.
func (s *Store) ActiveSteps(ctx context.Context, campaignID uint) ([]models.SequenceStep, error) {
	var steps []models.SequenceStep
	err := s.db.WithContext(ctx).
		Where("campaign_id = ? AND is_active = ?", campaignID, true).
		Order("step_number asc").
		Find(&steps).Error
	return steps, err
}

// IncrementSent bumps the denormalized sent counter on a step.
func (s *Store) IncrementSent(ctx context.Context, stepID uint) error {
	return s.db.WithContext(ctx).
		Model(&models.SequenceStep{}).
		Where("id = ?", stepID).
		Update("sent_count", gorm.Expr("sent_count + ?", 1)).Error
}
