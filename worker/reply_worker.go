package worker

import (
	"context"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/sirupsen/logrus"

	"reachflow/engine"
)

// ReplySource lists inbound replies that arrived after the cursor.
type ReplySource interface {
	ListNewReplies(since time.Time) ([]engine.Reply, error)
}

// ReplyHandler folds one inbound reply into campaign state.
type ReplyHandler interface {
	ProcessReply(ctx context.Context, reply engine.Reply) error
}

// ReplyWorker polls the mailbox and runs every new reply through the
// reply processor. The cursor only advances after a successful poll so
// a failed fetch is retried on the next tick. Polls overlap at the
// cursor boundary, so replies already handled are remembered by message
// id and skipped when the mailbox returns them again.
type ReplyWorker struct {
	Source    ReplySource
	Processor ReplyHandler
	Interval  time.Duration
	Logger    *logrus.Entry

	cursor time.Time
	seen   map[string]time.Time
}

func NewReplyWorker(source ReplySource, processor ReplyHandler, interval time.Duration, logger *logrus.Entry) *ReplyWorker {
	return &ReplyWorker{
		Source:    source,
		Processor: processor,
		Interval:  interval,
		Logger:    logger,
		cursor:    time.Now(),
		seen:      make(map[string]time.Time),
	}
}

func (rw *ReplyWorker) Start(ctx context.Context) {
	// Initial delay to let the server start up
	time.Sleep(10 * time.Second)

	rw.Logger.WithField("interval", rw.Interval.String()).Info("Reply worker started")

	ticker := time.NewTicker(rw.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			rw.Logger.Info("Reply worker shutting down...")
			return
		case <-ticker.C:
			rw.pollOnce(ctx)
		}
	}
}

func (rw *ReplyWorker) pollOnce(ctx context.Context) {
	polledAt := time.Now()

	replies, err := rw.Source.ListNewReplies(rw.cursor)
	if err != nil {
		rw.Logger.WithError(err).Error("Failed to fetch new replies")
		sentry.CaptureException(err)
		return
	}

	processed := 0
	for _, reply := range replies {
		if reply.MessageID != "" {
			if _, done := rw.seen[reply.MessageID]; done {
				continue
			}
			rw.seen[reply.MessageID] = reply.ReceivedAt
		}
		processed++
		if err := rw.Processor.ProcessReply(ctx, reply); err != nil {
			rw.Logger.WithError(err).WithField("from", reply.FromEmail).Error("Failed to process reply")
			sentry.CaptureException(err)
		}
	}

	rw.cursor = polledAt

	// The mailbox only re-returns replies received at or after the cursor,
	// so anything remembered from before it can be forgotten.
	for id, receivedAt := range rw.seen {
		if receivedAt.Before(rw.cursor) {
			delete(rw.seen, id)
		}
	}

	if processed > 0 {
		rw.Logger.WithField("count", processed).Info("Processed inbound replies")
	}
}
