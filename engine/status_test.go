package engine

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"reachflow/models"
)

func newTrackerFixture() (*fakeStore, *StatusTracker, time.Time) {
	fs := newFakeStore()
	tracker := NewStatusTracker(fs, fs, fs, testLogger())
	now := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)
	tracker.nowFn = func() time.Time { return now }
	return fs, tracker, now
}

func addTrackedProspect(fs *fakeStore, id, campaignID uint, status string) {
	fs.prospects[id] = &models.Prospect{
		Model:            gorm.Model{ID: id},
		CampaignID:       campaignID,
		EngagementStatus: status,
	}
}

func TestUpdateScheduledToActivePromotesDueCampaigns(t *testing.T) {
	fs, tracker, now := newTrackerFixture()

	due := now.Add(-time.Minute)
	future := now.Add(time.Hour)
	fs.campaigns[1] = &models.Campaign{Model: gorm.Model{ID: 1},
		Status: models.CampaignStatusScheduled, ScheduledStartTime: &due}
	fs.campaigns[2] = &models.Campaign{Model: gorm.Model{ID: 2},
		Status: models.CampaignStatusScheduled, ScheduledStartTime: &future}
	fs.campaigns[3] = &models.Campaign{Model: gorm.Model{ID: 3},
		Status: models.CampaignStatusDraft}

	require.NoError(t, tracker.UpdateScheduledToActive(context.Background()))

	assert.Equal(t, models.CampaignStatusActive, fs.campaigns[1].Status)
	require.NotNil(t, fs.campaigns[1].StartedAt)
	assert.True(t, fs.campaigns[1].StartedAt.Equal(now))

	assert.Equal(t, models.CampaignStatusScheduled, fs.campaigns[2].Status)
	assert.Equal(t, models.CampaignStatusDraft, fs.campaigns[3].Status)
}

func TestUpdateCampaignStatusByEngagementCompletesFinishedCampaigns(t *testing.T) {
	fs, tracker, now := newTrackerFixture()

	fs.campaigns[1] = &models.Campaign{Model: gorm.Model{ID: 1}, Status: models.CampaignStatusActive}
	addTrackedProspect(fs, 10, 1, models.EngagementMeetingScheduled)
	addTrackedProspect(fs, 11, 1, models.EngagementCompleted)

	// Campaign 2 still has a live prospect.
	fs.campaigns[2] = &models.Campaign{Model: gorm.Model{ID: 2}, Status: models.CampaignStatusActive}
	addTrackedProspect(fs, 20, 2, models.EngagementCompleted)
	addTrackedProspect(fs, 21, 2, models.EngagementContacted)

	require.NoError(t, tracker.UpdateCampaignStatusByEngagement(context.Background()))

	assert.Equal(t, models.CampaignStatusCompleted, fs.campaigns[1].Status)
	require.NotNil(t, fs.campaigns[1].CompletedAt)
	assert.True(t, fs.campaigns[1].CompletedAt.Equal(now))

	assert.Equal(t, models.CampaignStatusActive, fs.campaigns[2].Status)
	assert.Nil(t, fs.campaigns[2].CompletedAt)
}

func TestUpdateCampaignStatusByEngagementCompletesEmptyCampaign(t *testing.T) {
	fs, tracker, _ := newTrackerFixture()
	fs.campaigns[1] = &models.Campaign{Model: gorm.Model{ID: 1}, Status: models.CampaignStatusActive}

	require.NoError(t, tracker.UpdateCampaignStatusByEngagement(context.Background()))
	assert.Equal(t, models.CampaignStatusCompleted, fs.campaigns[1].Status)
}

func TestUpdateCampaignMetrics(t *testing.T) {
	fs, tracker, _ := newTrackerFixture()
	fs.campaigns[1] = &models.Campaign{Model: gorm.Model{ID: 1}, Status: models.CampaignStatusActive}
	addTrackedProspect(fs, 10, 1, models.EngagementContacted)
	addTrackedProspect(fs, 11, 1, models.EngagementReplied)
	addTrackedProspect(fs, 12, 1, models.EngagementMeetingScheduled)
	addTrackedProspect(fs, 13, 1, models.EngagementCompleted)

	require.NoError(t, tracker.UpdateCampaignMetrics(context.Background()))

	m := fs.metrics[1]
	assert.InDelta(t, 0.75, m.ReplyRate, 1e-9)
	assert.InDelta(t, 0.5, m.MeetingRate, 1e-9)
	assert.InDelta(t, 0.75, m.EngagementRate, 1e-9)
}

func TestUpdateCampaignMetricsEmptyCampaignIsZero(t *testing.T) {
	fs, tracker, _ := newTrackerFixture()
	fs.campaigns[1] = &models.Campaign{Model: gorm.Model{ID: 1}, Status: models.CampaignStatusActive}

	require.NoError(t, tracker.UpdateCampaignMetrics(context.Background()))

	m := fs.metrics[1]
	assert.Zero(t, m.ReplyRate)
	assert.Zero(t, m.MeetingRate)
	assert.Zero(t, m.EngagementRate)
}

func TestScheduleCampaignOnlyFromDraft(t *testing.T) {
	fs, tracker, now := newTrackerFixture()
	fs.campaigns[1] = &models.Campaign{Model: gorm.Model{ID: 1}, Status: models.CampaignStatusDraft}
	fs.campaigns[2] = &models.Campaign{Model: gorm.Model{ID: 2}, Status: models.CampaignStatusActive}

	startAt := now.Add(time.Hour)
	require.NoError(t, tracker.ScheduleCampaign(context.Background(), 1, startAt))
	assert.Equal(t, models.CampaignStatusScheduled, fs.campaigns[1].Status)
	require.NotNil(t, fs.campaigns[1].ScheduledStartTime)
	assert.True(t, fs.campaigns[1].ScheduledStartTime.Equal(startAt))

	err := tracker.ScheduleCampaign(context.Background(), 2, startAt)
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestPauseCampaignOnlyFromActive(t *testing.T) {
	fs, tracker, now := newTrackerFixture()
	fs.campaigns[1] = &models.Campaign{Model: gorm.Model{ID: 1}, Status: models.CampaignStatusActive}
	fs.campaigns[2] = &models.Campaign{Model: gorm.Model{ID: 2}, Status: models.CampaignStatusDraft}

	require.NoError(t, tracker.PauseCampaign(context.Background(), 1))
	assert.Equal(t, models.CampaignStatusPaused, fs.campaigns[1].Status)
	require.NotNil(t, fs.campaigns[1].PausedAt)
	assert.True(t, fs.campaigns[1].PausedAt.Equal(now))

	assert.ErrorIs(t, tracker.PauseCampaign(context.Background(), 2), ErrInvalidTransition)
}

func TestResumeCampaignShiftsTimersByPauseDuration(t *testing.T) {
	fs, tracker, now := newTrackerFixture()

	pausedAt := now.Add(-90 * time.Minute)
	campaign := &models.Campaign{Model: gorm.Model{ID: 1},
		Status: models.CampaignStatusPaused, PausedAt: &pausedAt}
	fs.campaigns[1] = campaign

	require.NoError(t, tracker.ResumeCampaign(context.Background(), campaign))

	assert.Equal(t, models.CampaignStatusActive, fs.campaigns[1].Status)
	assert.Nil(t, fs.campaigns[1].PausedAt)

	// Time spent paused must not count toward step delays.
	assert.Equal(t, uint(1), fs.shiftedFor)
	assert.Equal(t, 90*time.Minute, fs.shiftedBy)
}

func TestResumeCampaignOnlyFromPaused(t *testing.T) {
	fs, tracker, _ := newTrackerFixture()
	campaign := &models.Campaign{Model: gorm.Model{ID: 1}, Status: models.CampaignStatusCompleted}
	fs.campaigns[1] = campaign

	assert.ErrorIs(t, tracker.ResumeCampaign(context.Background(), campaign), ErrInvalidTransition)
	assert.Zero(t, fs.shiftedBy)
}
