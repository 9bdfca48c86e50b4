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

func newTriggerFixture() (*fakeStore, *TriggerEvaluator, time.Time) {
	fs := newFakeStore()
	te := NewTriggerEvaluator(fs, testLogger())
	now := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)
	te.nowFn = func() time.Time { return now }
	return fs, te, now
}

func TestEvaluateMissingConditionIsPermissive(t *testing.T) {
	_, te, _ := newTriggerFixture()
	prospect := &models.Prospect{Model: gorm.Model{ID: 100}}

	ok, err := te.Evaluate(context.Background(), prospect, nil)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = te.Evaluate(context.Background(), prospect, &models.TriggerCondition{})
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestEvaluateProspectReplied(t *testing.T) {
	_, te, _ := newTriggerFixture()

	replied := &models.Prospect{Model: gorm.Model{ID: 100}, EngagementStatus: models.EngagementReplied}
	contacted := &models.Prospect{Model: gorm.Model{ID: 101}, EngagementStatus: models.EngagementContacted}

	wantReply := &models.TriggerCondition{Type: models.TriggerProspectReplied, Value: true}
	wantNoReply := &models.TriggerCondition{Type: models.TriggerProspectReplied, Value: false}

	ok, err := te.Evaluate(context.Background(), replied, wantReply)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = te.Evaluate(context.Background(), contacted, wantReply)
	require.NoError(t, err)
	assert.False(t, ok)

	// Inverted condition selects prospects who did NOT reply.
	ok, err = te.Evaluate(context.Background(), contacted, wantNoReply)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestEvaluatePreviousOpenedUsesLookbackWindow(t *testing.T) {
	fs, te, now := newTriggerFixture()
	prospect := &models.Prospect{Model: gorm.Model{ID: 100}}
	cond := &models.TriggerCondition{Type: models.TriggerPreviousOpened, Value: true}

	ok, err := te.Evaluate(context.Background(), prospect, cond)
	require.NoError(t, err)
	assert.False(t, ok, "no open event yet")

	// An open older than the lookback window does not count.
	fs.events = append(fs.events, models.EmailEvent{
		ProspectID: 100, EventType: models.EventOpened,
		OccurredAt: now.Add(-8 * 24 * time.Hour),
	})
	ok, err = te.Evaluate(context.Background(), prospect, cond)
	require.NoError(t, err)
	assert.False(t, ok)

	fs.events = append(fs.events, models.EmailEvent{
		ProspectID: 100, EventType: models.EventOpened,
		OccurredAt: now.Add(-24 * time.Hour),
	})
	ok, err = te.Evaluate(context.Background(), prospect, cond)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestEvaluateUnknownConditionTypeIsPermissive(t *testing.T) {
	_, te, _ := newTriggerFixture()
	prospect := &models.Prospect{Model: gorm.Model{ID: 100}}

	ok, err := te.Evaluate(context.Background(), prospect,
		&models.TriggerCondition{Type: "clicked_pricing_page", Value: true})
	require.NoError(t, err)
	assert.True(t, ok)
}
