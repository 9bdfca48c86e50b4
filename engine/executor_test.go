package engine

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"reachflow/models"
)

type executorFixture struct {
	store  *fakeStore
	mailer *fakeMailer
	locker *fakeLocker
	exec   *Executor
	now    time.Time
}

func newExecutorFixture(t *testing.T) *executorFixture {
	t.Helper()
	fs := newFakeStore()
	mailer := &fakeMailer{}
	locker := &fakeLocker{}
	log := testLogger()

	exec := NewExecutor(ExecutorDeps{
		Campaigns: fs,
		Prospects: fs,
		Sequences: fs,
		Progress:  fs,
		Events:    fs,
		Threads:   fs,
		Users:     fs,
		Mailer:    mailer,
		Triggers:  NewTriggerEvaluator(fs, log),
		Locker:    locker,
		Logger:    log,
		BaseURL:   "https://track.example.com",
	})

	fx := &executorFixture{
		store:  fs,
		mailer: mailer,
		locker: locker,
		exec:   exec,
		now:    time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC),
	}
	exec.nowFn = func() time.Time { return fx.now }
	return fx
}

func (fx *executorFixture) addCampaign(id uint, status string) *models.Campaign {
	c := &models.Campaign{Model: gorm.Model{ID: id}, UserID: 1, Name: "Q2 Outreach", Status: status}
	fx.store.campaigns[id] = c
	fx.store.users[1] = &models.User{
		Model:     gorm.Model{ID: 1},
		Email:     "sales@acme.io",
		Name:      "Dana Cole",
		Company:   "Acme",
		FromName:  "Dana Cole",
		FromEmail: "dana@acme.io",
		IsActive:  true,
	}
	return c
}

func (fx *executorFixture) addProspect(id, campaignID uint, status string) *models.Prospect {
	p := &models.Prospect{
		Model:            gorm.Model{ID: id},
		CampaignID:       campaignID,
		UserID:           1,
		Email:            "lee@prospect.co",
		FirstName:        "Lee",
		LastName:         "Park",
		Company:          "Prospect Co",
		EngagementStatus: status,
	}
	fx.store.prospects[id] = p
	return p
}

// Three-step sequence with delays 0, 3 and 5 days.
func (fx *executorFixture) addStandardSteps(campaignID uint) {
	fx.store.steps[campaignID] = []models.SequenceStep{
		{Model: gorm.Model{ID: 11}, CampaignID: campaignID, StepNumber: 1, DelayDays: 0,
			Subject: "Hi {{first_name}}", BodyHTML: "<p>Intro for {{company}}</p>", IsActive: true},
		{Model: gorm.Model{ID: 12}, CampaignID: campaignID, StepNumber: 2, DelayDays: 3,
			Subject: "Following up", BodyHTML: "<p>Bump</p>", IsActive: true},
		{Model: gorm.Model{ID: 13}, CampaignID: campaignID, StepNumber: 3, DelayDays: 5,
			Subject: "Last try", BodyHTML: "<p>Closing the loop</p>", IsActive: true},
	}
}

func (fx *executorFixture) progressAt(campaignID, prospectID uint, step int, lastSent time.Time) {
	fx.store.progress[progressKey(campaignID, prospectID)] = &models.SequenceProgress{
		CampaignID:  campaignID,
		ProspectID:  prospectID,
		CurrentStep: step,
		LastSentAt:  &lastSent,
	}
}

func TestExecuteSequencesSendsFirstStepImmediately(t *testing.T) {
	fx := newExecutorFixture(t)
	fx.addCampaign(1, models.CampaignStatusActive)
	fx.addProspect(100, 1, models.EngagementNew)
	fx.addStandardSteps(1)

	require.NoError(t, fx.exec.ExecuteSequences(context.Background()))

	require.Len(t, fx.mailer.sent, 1)
	msg := fx.mailer.sent[0]
	assert.Equal(t, "lee@prospect.co", msg.To)
	assert.Equal(t, "Hi Lee", msg.Subject)
	assert.Contains(t, msg.HTML, "Intro for Prospect Co")
	assert.Contains(t, msg.HTML, "https://track.example.com/track/open/")
	assert.Equal(t, "dana@acme.io", msg.FromEmail)

	prog := fx.store.progress[progressKey(1, 100)]
	require.NotNil(t, prog)
	assert.Equal(t, 1, prog.CurrentStep)
	require.NotNil(t, prog.LastSentAt)
	assert.True(t, prog.LastSentAt.Equal(fx.now))

	// next_scheduled_at reflects step 2's three day delay
	require.NotNil(t, prog.NextScheduledAt)
	assert.True(t, prog.NextScheduledAt.Equal(fx.now.Add(3*24*time.Hour)))

	sent := fx.store.eventsOfType(models.EventSent)
	require.Len(t, sent, 1)
	assert.Equal(t, 1, sent[0].StepNumber)
	assert.NotEmpty(t, sent[0].MessageID)

	assert.Equal(t, models.EngagementContacted, fx.store.prospects[100].EngagementStatus)
	assert.Equal(t, 1, fx.store.sentCounts[11])
	assert.Equal(t, fx.locker.acquired, fx.locker.released)
}

func TestExecuteSequencesHonorsStepDelay(t *testing.T) {
	fx := newExecutorFixture(t)
	fx.addCampaign(1, models.CampaignStatusActive)
	fx.addProspect(100, 1, models.EngagementContacted)
	fx.addStandardSteps(1)

	lastSent := fx.now.Add(-2 * 24 * time.Hour)
	fx.progressAt(1, 100, 1, lastSent)

	// Only two of step 2's three delay days have elapsed.
	require.NoError(t, fx.exec.ExecuteSequences(context.Background()))
	assert.Empty(t, fx.mailer.sent)
	assert.Equal(t, 1, fx.store.progress[progressKey(1, 100)].CurrentStep)
}

func TestExecuteSequencesDelayBoundaryIsInclusive(t *testing.T) {
	fx := newExecutorFixture(t)
	fx.addCampaign(1, models.CampaignStatusActive)
	fx.addProspect(100, 1, models.EngagementContacted)
	fx.addStandardSteps(1)

	// Exactly 3 days since step 1: step 2 is due.
	fx.progressAt(1, 100, 1, fx.now.Add(-3*24*time.Hour))

	require.NoError(t, fx.exec.ExecuteSequences(context.Background()))
	require.Len(t, fx.mailer.sent, 1)
	assert.Equal(t, "Following up", fx.mailer.sent[0].Subject)
	assert.Equal(t, 2, fx.store.progress[progressKey(1, 100)].CurrentStep)
}

func TestExecuteSequencesSendsAtMostOneStepPerRun(t *testing.T) {
	fx := newExecutorFixture(t)
	fx.addCampaign(1, models.CampaignStatusActive)
	fx.addProspect(100, 1, models.EngagementContacted)
	fx.addStandardSteps(1)

	// Both step 2 and step 3 are overdue, but one invocation may only
	// advance the prospect by one step.
	fx.progressAt(1, 100, 1, fx.now.Add(-30*24*time.Hour))

	require.NoError(t, fx.exec.ExecuteSequences(context.Background()))
	require.Len(t, fx.mailer.sent, 1)
	assert.Equal(t, 2, fx.store.progress[progressKey(1, 100)].CurrentStep)

	// The following run, with step 3's delay met relative to the new send
	// time, sends step 3.
	fx.now = fx.now.Add(5 * 24 * time.Hour)
	require.NoError(t, fx.exec.ExecuteSequences(context.Background()))
	require.Len(t, fx.mailer.sent, 2)
	assert.Equal(t, 3, fx.store.progress[progressKey(1, 100)].CurrentStep)

	// Sequence exhausted: nothing further ever goes out.
	fx.now = fx.now.Add(30 * 24 * time.Hour)
	require.NoError(t, fx.exec.ExecuteSequences(context.Background()))
	assert.Len(t, fx.mailer.sent, 2)
	assert.Nil(t, fx.store.progress[progressKey(1, 100)].NextScheduledAt)
}

func TestExecuteSequencesSkipsHaltedProspects(t *testing.T) {
	fx := newExecutorFixture(t)
	fx.addCampaign(1, models.CampaignStatusActive)
	fx.addStandardSteps(1)

	fx.addProspect(100, 1, models.EngagementMeetingScheduled)
	fx.addProspect(101, 1, models.EngagementCompleted)
	dnc := fx.addProspect(102, 1, models.EngagementContacted)
	dnc.IsDoNotContact = true

	require.NoError(t, fx.exec.ExecuteSequences(context.Background()))
	assert.Empty(t, fx.mailer.sent)
}

func TestExecuteSequencesFirstStepWithDelayWaits(t *testing.T) {
	fx := newExecutorFixture(t)
	fx.addCampaign(1, models.CampaignStatusActive)
	fx.addProspect(100, 1, models.EngagementNew)
	fx.store.steps[1] = []models.SequenceStep{
		{Model: gorm.Model{ID: 11}, CampaignID: 1, StepNumber: 1, DelayDays: 2,
			Subject: "Hello", BodyHTML: "<p>Hi</p>", IsActive: true},
	}

	// No progress row exists, so there is no anchor to measure the delay
	// from; a delayed first step never fires.
	require.NoError(t, fx.exec.ExecuteSequences(context.Background()))
	assert.Empty(t, fx.mailer.sent)
	assert.Nil(t, fx.store.progress[progressKey(1, 100)])
}

func TestExecuteSequencesTriggerGatesStep(t *testing.T) {
	fx := newExecutorFixture(t)
	fx.addCampaign(1, models.CampaignStatusActive)
	prospect := fx.addProspect(100, 1, models.EngagementContacted)
	fx.store.steps[1] = []models.SequenceStep{
		{Model: gorm.Model{ID: 11}, CampaignID: 1, StepNumber: 1, DelayDays: 0,
			Subject: "Intro", BodyHTML: "<p>Hi</p>", IsActive: true},
		{Model: gorm.Model{ID: 12}, CampaignID: 1, StepNumber: 2, DelayDays: 0,
			Subject: "Since you replied", BodyHTML: "<p>Thanks</p>", IsActive: true,
			TriggerCondition: &models.TriggerCondition{Type: models.TriggerProspectReplied, Value: true}},
	}
	fx.progressAt(1, 100, 1, fx.now.Add(-time.Hour))

	// Condition requires a reply; the prospect has not replied.
	require.NoError(t, fx.exec.ExecuteSequences(context.Background()))
	assert.Empty(t, fx.mailer.sent)

	// Once the prospect replies the same step goes out.
	prospect.EngagementStatus = models.EngagementReplied
	require.NoError(t, fx.exec.ExecuteSequences(context.Background()))
	require.Len(t, fx.mailer.sent, 1)
	assert.Equal(t, "Since you replied", fx.mailer.sent[0].Subject)
}

func TestExecuteSequencesSendFailureLeavesProgressUntouched(t *testing.T) {
	fx := newExecutorFixture(t)
	fx.addCampaign(1, models.CampaignStatusActive)
	fx.addProspect(100, 1, models.EngagementNew)
	fx.addStandardSteps(1)
	fx.mailer.failErr = errors.New("smtp unreachable")

	require.NoError(t, fx.exec.ExecuteSequences(context.Background()))

	assert.Nil(t, fx.store.progress[progressKey(1, 100)])
	assert.Empty(t, fx.store.eventsOfType(models.EventSent))
	assert.Equal(t, models.EngagementNew, fx.store.prospects[100].EngagementStatus)

	// Next run, with the mailer healthy, retries the same step.
	fx.mailer.failErr = nil
	require.NoError(t, fx.exec.ExecuteSequences(context.Background()))
	require.Len(t, fx.mailer.sent, 1)
	assert.Equal(t, 1, fx.store.progress[progressKey(1, 100)].CurrentStep)
}

func TestExecuteSequencesSkipsLockedProspects(t *testing.T) {
	fx := newExecutorFixture(t)
	fx.addCampaign(1, models.CampaignStatusActive)
	fx.addProspect(100, 1, models.EngagementNew)
	fx.addStandardSteps(1)
	fx.locker.denied = true

	require.NoError(t, fx.exec.ExecuteSequences(context.Background()))
	assert.Empty(t, fx.mailer.sent)
	assert.Nil(t, fx.store.progress[progressKey(1, 100)])
}

func TestExecuteSequencesSkipsNonDenseSequences(t *testing.T) {
	fx := newExecutorFixture(t)
	fx.addCampaign(1, models.CampaignStatusActive)
	fx.addProspect(100, 1, models.EngagementNew)
	fx.store.steps[1] = []models.SequenceStep{
		{Model: gorm.Model{ID: 11}, CampaignID: 1, StepNumber: 1, DelayDays: 0,
			Subject: "One", BodyHTML: "<p>1</p>", IsActive: true},
		{Model: gorm.Model{ID: 13}, CampaignID: 1, StepNumber: 3, DelayDays: 0,
			Subject: "Three", BodyHTML: "<p>3</p>", IsActive: true},
	}

	require.NoError(t, fx.exec.ExecuteSequences(context.Background()))
	assert.Empty(t, fx.mailer.sent)
}

func TestExecuteSequencesAbortsWhenCampaignListFails(t *testing.T) {
	fx := newExecutorFixture(t)
	fx.store.listErr = errors.New("db down")

	err := fx.exec.ExecuteSequences(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to list active campaigns")
}

func TestExecuteSequencesCampaignFailureDoesNotBlockOthers(t *testing.T) {
	fx := newExecutorFixture(t)

	// Campaign 1's owner is missing, so its processing fails outright.
	broken := fx.addCampaign(1, models.CampaignStatusActive)
	broken.UserID = 99
	fx.addStandardSteps(1)
	fx.addProspect(100, 1, models.EngagementNew)

	fx.addCampaign(2, models.CampaignStatusActive)
	fx.addStandardSteps(2)
	p := fx.addProspect(101, 2, models.EngagementNew)
	p.Email = "pat@other.co"

	require.NoError(t, fx.exec.ExecuteSequences(context.Background()))
	require.Len(t, fx.mailer.sent, 1)
	assert.Equal(t, "pat@other.co", fx.mailer.sent[0].To)
}
