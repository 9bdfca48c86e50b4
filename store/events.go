package store

import (
	"context"
	"time"

	"reachflow/models"
)

// Append inserts one row into the append-only event log. Rows are never
// mutated afterwards.
func (s *Store) Append(ctx context.Context, ev *models.EmailEvent) error {
	return s.db.WithContext(ctx).Create(ev).Error
}

// HasEventSince reports whether the prospect has an event of the given type
// newer than since.
func (s *Store) HasEventSince(ctx context.Context, prospectID uint, eventType string, since time.Time) (bool, error) {
	var count int64
	err := s.db.WithContext(ctx).
		Model(&models.EmailEvent{}).
		Where("prospect_id = ? AND event_type = ? AND occurred_at >= ?",
			prospectID, eventType, since).
		Count(&count).Error
	return count > 0, err
}

// FindEventByMessageID resolves a tracking callback to its sent event.
func (s *Store) FindEventByMessageID(ctx context.Context, messageID string) (*models.EmailEvent, error) {
	var ev models.EmailEvent
	err := s.db.WithContext(ctx).
		Where("message_id = ? AND event_type = ?", messageID, models.EventSent).
		First(&ev).Error
	if notFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &ev, nil
}

// CountEvents tallies events of one type for a campaign, for the stats
// endpoint.
func (s *Store) CountEvents(ctx context.Context, campaignID uint, eventType string) (int64, error) {
	var count int64
	err := s.db.WithContext(ctx).
		Model(&models.EmailEvent{}).
		Where("campaign_id = ? AND event_type = ?", campaignID, eventType).
		Count(&count).Error
	return count, err
}
