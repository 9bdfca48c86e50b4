package engine

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"reachflow/models"
)

// openedLookback is how far back an "opened" event still satisfies the
// previous_opened condition.
const openedLookback = 7 * 24 * time.Hour

// TriggerEvaluator decides whether a step's trigger condition holds for a
// prospect. It has no side effects and is safe to call redundantly.
type TriggerEvaluator struct {
	events EventStore
	log    *logrus.Entry
	nowFn  func() time.Time
}

func NewTriggerEvaluator(events EventStore, log *logrus.Entry) *TriggerEvaluator {
	return &TriggerEvaluator{
		events: events,
		log:    log,
		nowFn:  time.Now,
	}
}

// Evaluate maps (prospect state, event history, condition) to a boolean.
// A missing condition, or one with an unrecognized type, is permissive.
func (te *TriggerEvaluator) Evaluate(ctx context.Context, prospect *models.Prospect, cond *models.TriggerCondition) (bool, error) {
	if cond.IsZero() {
		return true, nil
	}

	switch cond.Type {
	case models.TriggerProspectReplied:
		return (prospect.EngagementStatus == models.EngagementReplied) == cond.Value, nil

	case models.TriggerPreviousOpened:
		since := te.nowFn().Add(-openedLookback)
		opened, err := te.events.HasEventSince(ctx, prospect.ID, models.EventOpened, since)
		if err != nil {
			return false, err
		}
		return opened == cond.Value, nil

	default:
		te.log.WithFields(logrus.Fields{
			"prospect_id":    prospect.ID,
			"condition_type": cond.Type,
		}).Warn("unknown trigger condition type, treating as satisfied")
		return true, nil
	}
}
