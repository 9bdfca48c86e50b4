package store

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"reachflow/models"
)

// Get returns the sequence cursor for one (campaign, prospect), or nil when
// no step has been sent yet.
func (s *Store) Get(ctx context.Context, campaignID, prospectID uint) (*models.SequenceProgress, error) {
	var prog models.SequenceProgress
	err := s.db.WithContext(ctx).
		Where("campaign_id = ? AND prospect_id = ?", campaignID, prospectID).
		First(&prog).Error
	if notFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &prog, nil
}

// CreateFirst inserts the step-1 progress row. The unique
// (campaign_id, prospect_id) index makes a concurrent duplicate insert a
// no-op, reported as false so the caller can flag the race.
func (s *Store) CreateFirst(ctx context.Context, p *models.SequenceProgress) (bool, error) {
	res := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "campaign_id"}, {Name: "prospect_id"}},
			DoNothing: true,
		}).
		Create(p)
	if res.Error != nil {
		if errors.Is(res.Error, gorm.ErrDuplicatedKey) {
			return false, nil
		}
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// Advance moves the cursor from fromStep to toStep in one conditional UPDATE.
// An overlapping run that already advanced the row makes the WHERE clause
// miss, which is the at-most-once guarantee for step sends.
func (s *Store) Advance(ctx context.Context, campaignID, prospectID uint, fromStep, toStep int, sentAt time.Time, nextAt *time.Time) (bool, error) {
	res := s.db.WithContext(ctx).
		Model(&models.SequenceProgress{}).
		Where("campaign_id = ? AND prospect_id = ? AND current_step = ?",
			campaignID, prospectID, fromStep).
		Updates(map[string]interface{}{
			"current_step":      toStep,
			"last_sent_at":      sentAt,
			"next_scheduled_at": nextAt,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// ShiftTimers pushes every progress timer of a campaign forward by d. Used on
// resume so time spent paused never counts toward a step delay.
func (s *Store) ShiftTimers(ctx context.Context, campaignID uint, d time.Duration) error {
	secs := d.Seconds()
	return s.db.WithContext(ctx).
		Model(&models.SequenceProgress{}).
		Where("campaign_id = ?", campaignID).
		Updates(map[string]interface{}{
			"last_sent_at":      gorm.Expr("last_sent_at + make_interval(secs => ?)", secs),
			"next_scheduled_at": gorm.Expr("next_scheduled_at + make_interval(secs => ?)", secs),
		}).Error
}
