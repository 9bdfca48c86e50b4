package worker

import (
	"context"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/sirupsen/logrus"

	"reachflow/engine"
)

// SequenceWorker drives the campaign loop on a fixed interval: promote
// scheduled campaigns, send due sequence steps, then refresh campaign
// status and metrics from engagement counts.
type SequenceWorker struct {
	Executor *engine.Executor
	Tracker  *engine.StatusTracker
	Interval time.Duration
	Logger   *logrus.Entry
}

func NewSequenceWorker(executor *engine.Executor, tracker *engine.StatusTracker, interval time.Duration, logger *logrus.Entry) *SequenceWorker {
	return &SequenceWorker{
		Executor: executor,
		Tracker:  tracker,
		Interval: interval,
		Logger:   logger,
	}
}

func (sw *SequenceWorker) Start(ctx context.Context) {
	// Initial delay to let the server start up
	time.Sleep(5 * time.Second)

	sw.Logger.WithField("interval", sw.Interval.String()).Info("Sequence worker started")

	ticker := time.NewTicker(sw.Interval)
	defer ticker.Stop()

	sw.runOnce(ctx)
	for {
		select {
		case <-ctx.Done():
			sw.Logger.Info("Sequence worker shutting down...")
			return
		case <-ticker.C:
			sw.runOnce(ctx)
		}
	}
}

func (sw *SequenceWorker) runOnce(ctx context.Context) {
	if err := sw.Tracker.UpdateScheduledToActive(ctx); err != nil {
		sw.Logger.WithError(err).Error("Failed to promote scheduled campaigns")
		sentry.CaptureException(err)
	}

	if err := sw.Executor.ExecuteSequences(ctx); err != nil {
		sw.Logger.WithError(err).Error("Sequence execution pass failed")
		sentry.CaptureException(err)
	}

	if err := sw.Tracker.UpdateCampaignStatusByEngagement(ctx); err != nil {
		sw.Logger.WithError(err).Error("Failed to update campaign statuses")
		sentry.CaptureException(err)
	}

	if err := sw.Tracker.UpdateCampaignMetrics(ctx); err != nil {
		sw.Logger.WithError(err).Error("Failed to refresh campaign metrics")
		sentry.CaptureException(err)
	}
}
