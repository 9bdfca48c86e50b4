package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"reachflow/models"
)

// Reply is one inbound message detected by the mailbox provider, however it
// was discovered (IMAP poll, webhook). The processor does not care.
type Reply struct {
	FromEmail  string
	Body       string
	MessageID  string
	ThreadID   string
	ReceivedAt time.Time
}

// ReplyProcessor folds an inbound reply into prospect and thread state:
// event log append, engagement advancement, classification, and the
// classification-driven transition. not_interested always wins over
// meeting_intent, so a decline that superficially mentions a meeting still
// completes the prospect.
type ReplyProcessor struct {
	prospects  ProspectStore
	events     EventStore
	threads    ThreadStore
	classifier Classifier
	log        *logrus.Entry

	classifyTimeout time.Duration
}

func NewReplyProcessor(prospects ProspectStore, events EventStore, threads ThreadStore, cl Classifier, log *logrus.Entry, timeout time.Duration) *ReplyProcessor {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &ReplyProcessor{
		prospects:       prospects,
		events:          events,
		threads:         threads,
		classifier:      cl,
		log:             log,
		classifyTimeout: timeout,
	}
}

// ProcessReply handles one inbound reply end to end. Unknown senders are
// ignored; everything else is best-effort with the event append as the one
// hard requirement.
func (rp *ReplyProcessor) ProcessReply(ctx context.Context, reply Reply) error {
	prospect, err := rp.prospects.FindActiveByEmail(ctx, reply.FromEmail)
	if err != nil {
		return fmt.Errorf("failed to resolve reply sender: %w", err)
	}
	if prospect == nil {
		rp.log.WithField("from", reply.FromEmail).Debug("reply from unknown sender, ignoring")
		return nil
	}

	if err := rp.events.Append(ctx, &models.EmailEvent{
		ProspectID: prospect.ID,
		CampaignID: prospect.CampaignID,
		EventType:  models.EventReplied,
		OccurredAt: reply.ReceivedAt,
		MessageID:  reply.MessageID,
		ThreadID:   reply.ThreadID,
	}); err != nil {
		return fmt.Errorf("failed to append replied event: %w", err)
	}

	// Never regress: a prospect already at meeting_scheduled or completed
	// stays there.
	if _, err := rp.prospects.AdvanceEngagement(ctx, prospect.ID,
		[]string{models.EngagementNew, models.EngagementContacted},
		models.EngagementReplied); err != nil {
		rp.log.WithError(err).WithField("prospect_id", prospect.ID).
			Error("failed to mark prospect replied")
	}

	if err := rp.threads.RecordReply(ctx, prospect.CampaignID, prospect.ID, reply.Body, reply.ReceivedAt); err != nil {
		rp.log.WithError(err).WithField("prospect_id", prospect.ID).
			Error("failed to record reply on thread")
	}

	classifyCtx, cancel := context.WithTimeout(ctx, rp.classifyTimeout)
	defer cancel()
	result := rp.classifier.Classify(classifyCtx, reply.Body)

	// Priority order, first match wins.
	switch {
	case result.NotInterested:
		if _, err := rp.prospects.AdvanceEngagement(ctx, prospect.ID,
			[]string{models.EngagementNew, models.EngagementContacted, models.EngagementReplied},
			models.EngagementCompleted); err != nil {
			rp.log.WithError(err).WithField("prospect_id", prospect.ID).
				Error("failed to complete not-interested prospect")
		}
	case result.MeetingIntent:
		if _, err := rp.prospects.AdvanceEngagement(ctx, prospect.ID,
			[]string{models.EngagementNew, models.EngagementContacted, models.EngagementReplied},
			models.EngagementMeetingScheduled); err != nil {
			rp.log.WithError(err).WithField("prospect_id", prospect.ID).
				Error("failed to mark prospect meeting_scheduled")
		}
	}

	if err := rp.threads.SetSentiment(ctx, prospect.CampaignID, prospect.ID, result.Sentiment); err != nil {
		rp.log.WithError(err).WithField("prospect_id", prospect.ID).
			Error("failed to update thread sentiment")
	}

	rp.log.WithFields(logrus.Fields{
		"prospect_id":    prospect.ID,
		"campaign_id":    prospect.CampaignID,
		"sentiment":      result.Sentiment,
		"meeting_intent": result.MeetingIntent,
		"not_interested": result.NotInterested,
	}).Info("reply processed")
	return nil
}
