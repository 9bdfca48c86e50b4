package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"reachflow/models"
)

// StatusTracker derives campaign-level status from schedule and aggregate
// prospect engagement, and recomputes the derived performance metrics. Every
// routine is idempotent and safe to re-run on any cadence.
type StatusTracker struct {
	campaigns CampaignStore
	prospects ProspectStore
	progress  ProgressStore
	log       *logrus.Entry
	nowFn     func() time.Time
}

func NewStatusTracker(campaigns CampaignStore, prospects ProspectStore, progress ProgressStore, log *logrus.Entry) *StatusTracker {
	return &StatusTracker{
		campaigns: campaigns,
		prospects: prospects,
		progress:  progress,
		log:       log,
		nowFn:     time.Now,
	}
}

// UpdateScheduledToActive activates every scheduled campaign whose start time
// has arrived. One campaign at a time; a failure on one never blocks the rest.
func (st *StatusTracker) UpdateScheduledToActive(ctx context.Context) error {
	now := st.nowFn()
	due, err := st.campaigns.DueScheduled(ctx, now)
	if err != nil {
		return fmt.Errorf("failed to list due scheduled campaigns: %w", err)
	}

	for i := range due {
		ok, err := st.campaigns.TransitionStatus(ctx, due[i].ID,
			models.CampaignStatusScheduled, models.CampaignStatusActive,
			map[string]interface{}{"started_at": now})
		if err != nil {
			st.log.WithError(err).WithField("campaign_id", due[i].ID).
				Error("failed to activate scheduled campaign")
			continue
		}
		if ok {
			st.log.WithField("campaign_id", due[i].ID).Info("campaign activated")
		}
	}
	return nil
}

// UpdateCampaignStatusByEngagement completes every active campaign whose
// prospects are all finished (or that has no prospects at all). Completion is
// terminal: this routine never reactivates a completed campaign.
func (st *StatusTracker) UpdateCampaignStatusByEngagement(ctx context.Context) error {
	active, err := st.campaigns.ActiveCampaigns(ctx)
	if err != nil {
		return fmt.Errorf("failed to list active campaigns: %w", err)
	}

	for i := range active {
		counts, err := st.prospects.EngagementCounts(ctx, active[i].ID)
		if err != nil {
			st.log.WithError(err).WithField("campaign_id", active[i].ID).
				Error("failed to count prospect engagement")
			continue
		}

		if counts.Total != 0 && counts.Finished() != counts.Total {
			continue
		}

		ok, err := st.campaigns.TransitionStatus(ctx, active[i].ID,
			models.CampaignStatusActive, models.CampaignStatusCompleted,
			map[string]interface{}{"completed_at": st.nowFn()})
		if err != nil {
			st.log.WithError(err).WithField("campaign_id", active[i].ID).
				Error("failed to complete campaign")
			continue
		}
		if ok {
			st.log.WithFields(logrus.Fields{
				"campaign_id": active[i].ID,
				"prospects":   counts.Total,
			}).Info("campaign completed")
		}
	}
	return nil
}

// UpdateCampaignMetrics recomputes reply, meeting and engagement rates for
// every active campaign. Rates of an empty campaign are 0, never NaN.
func (st *StatusTracker) UpdateCampaignMetrics(ctx context.Context) error {
	active, err := st.campaigns.ActiveCampaigns(ctx)
	if err != nil {
		return fmt.Errorf("failed to list active campaigns: %w", err)
	}

	for i := range active {
		counts, err := st.prospects.EngagementCounts(ctx, active[i].ID)
		if err != nil {
			st.log.WithError(err).WithField("campaign_id", active[i].ID).
				Error("failed to count prospect engagement")
			continue
		}
		if err := st.campaigns.SaveMetrics(ctx, active[i].ID, counts.Metrics()); err != nil {
			st.log.WithError(err).WithField("campaign_id", active[i].ID).
				Error("failed to save campaign metrics")
		}
	}
	return nil
}

// ScheduleCampaign moves a draft campaign onto the schedule. The worker
// activates it once scheduled_start_time arrives.
func (st *StatusTracker) ScheduleCampaign(ctx context.Context, campaignID uint, startAt time.Time) error {
	ok, err := st.campaigns.TransitionStatus(ctx, campaignID,
		models.CampaignStatusDraft, models.CampaignStatusScheduled,
		map[string]interface{}{"scheduled_start_time": startAt})
	if err != nil {
		return fmt.Errorf("failed to schedule campaign: %w", err)
	}
	if !ok {
		return ErrInvalidTransition
	}
	return nil
}

// PauseCampaign is an explicit user command; it only succeeds from active.
// The pause timestamp lets ResumeCampaign freeze the delay clock.
func (st *StatusTracker) PauseCampaign(ctx context.Context, campaignID uint) error {
	ok, err := st.campaigns.TransitionStatus(ctx, campaignID,
		models.CampaignStatusActive, models.CampaignStatusPaused,
		map[string]interface{}{"paused_at": st.nowFn()})
	if err != nil {
		return fmt.Errorf("failed to pause campaign: %w", err)
	}
	if !ok {
		return ErrInvalidTransition
	}
	return nil
}

// ResumeCampaign only succeeds from paused. Time spent paused does not count
// toward step delays: every progress timer in the campaign is shifted forward
// by the pause duration, so eligibility is recomputed from resume time rather
// than catching up retroactively.
func (st *StatusTracker) ResumeCampaign(ctx context.Context, campaign *models.Campaign) error {
	now := st.nowFn()

	// The transition clears paused_at, and the store may write through the
	// caller's struct. Read the pause timestamp first.
	var pausedAt *time.Time
	if campaign.PausedAt != nil {
		t := *campaign.PausedAt
		pausedAt = &t
	}

	ok, err := st.campaigns.TransitionStatus(ctx, campaign.ID,
		models.CampaignStatusPaused, models.CampaignStatusActive,
		map[string]interface{}{"paused_at": nil})
	if err != nil {
		return fmt.Errorf("failed to resume campaign: %w", err)
	}
	if !ok {
		return ErrInvalidTransition
	}

	if pausedAt != nil {
		if d := now.Sub(*pausedAt); d > 0 {
			if err := st.progress.ShiftTimers(ctx, campaign.ID, d); err != nil {
				return fmt.Errorf("failed to shift progress timers: %w", err)
			}
		}
	}
	return nil
}
