package engine

import (
	"context"
	"errors"
	"io"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"reachflow/classifier"
	"reachflow/models"
)

func testLogger() *logrus.Entry {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return logrus.NewEntry(l)
}

// fakeStore is an in-memory implementation of every store interface the
// engine consumes. Conditional writes behave like their SQL counterparts so
// the concurrency guards can be exercised without a database.
type fakeStore struct {
	campaigns map[uint]*models.Campaign
	prospects map[uint]*models.Prospect
	steps     map[uint][]models.SequenceStep // by campaign id
	progress  map[string]*models.SequenceProgress
	events    []models.EmailEvent
	threads   map[string]*models.EmailThread
	users     map[uint]*models.User

	metrics    map[uint]models.CampaignMetrics
	sentCounts map[uint]int
	shiftedBy  time.Duration
	shiftedFor uint
	listErr    error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		campaigns:  make(map[uint]*models.Campaign),
		prospects:  make(map[uint]*models.Prospect),
		steps:      make(map[uint][]models.SequenceStep),
		progress:   make(map[string]*models.SequenceProgress),
		threads:    make(map[string]*models.EmailThread),
		users:      make(map[uint]*models.User),
		metrics:    make(map[uint]models.CampaignMetrics),
		sentCounts: make(map[uint]int),
	}
}

func progressKey(campaignID, prospectID uint) string {
	return threadIDFor(campaignID, prospectID)
}

func (f *fakeStore) ActiveCampaigns(ctx context.Context) ([]models.Campaign, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	var out []models.Campaign
	for _, c := range f.campaigns {
		if c.Status == models.CampaignStatusActive {
			out = append(out, *c)
		}
	}
	return out, nil
}

func (f *fakeStore) DueScheduled(ctx context.Context, now time.Time) ([]models.Campaign, error) {
	var out []models.Campaign
	for _, c := range f.campaigns {
		if c.Status == models.CampaignStatusScheduled &&
			c.ScheduledStartTime != nil && !c.ScheduledStartTime.After(now) {
			out = append(out, *c)
		}
	}
	return out, nil
}

func (f *fakeStore) TransitionStatus(ctx context.Context, campaignID uint, from, to string, stamps map[string]interface{}) (bool, error) {
	c, ok := f.campaigns[campaignID]
	if !ok || c.Status != from {
		return false, nil
	}
	c.Status = to
	for col, val := range stamps {
		switch col {
		case "started_at":
			t := val.(time.Time)
			c.StartedAt = &t
		case "completed_at":
			t := val.(time.Time)
			c.CompletedAt = &t
		case "scheduled_start_time":
			t := val.(time.Time)
			c.ScheduledStartTime = &t
		case "paused_at":
			if val == nil {
				c.PausedAt = nil
			} else {
				t := val.(time.Time)
				c.PausedAt = &t
			}
		}
	}
	return true, nil
}

func (f *fakeStore) SaveMetrics(ctx context.Context, campaignID uint, m models.CampaignMetrics) error {
	f.metrics[campaignID] = m
	return nil
}

func (f *fakeStore) ByCampaign(ctx context.Context, campaignID uint) ([]models.Prospect, error) {
	var out []models.Prospect
	for _, p := range f.prospects {
		if p.CampaignID == campaignID {
			out = append(out, *p)
		}
	}
	return out, nil
}

func (f *fakeStore) GetProspect(ctx context.Context, prospectID uint) (*models.Prospect, error) {
	p, ok := f.prospects[prospectID]
	if !ok {
		return nil, errors.New("prospect not found")
	}
	cp := *p
	return &cp, nil
}

func (f *fakeStore) FindActiveByEmail(ctx context.Context, email string) (*models.Prospect, error) {
	for _, p := range f.prospects {
		c := f.campaigns[p.CampaignID]
		if c == nil || c.Status != models.CampaignStatusActive {
			continue
		}
		if strings.EqualFold(p.Email, email) {
			cp := *p
			return &cp, nil
		}
	}
	return nil, nil
}

func (f *fakeStore) EngagementCounts(ctx context.Context, campaignID uint) (models.EngagementCounts, error) {
	var counts models.EngagementCounts
	for _, p := range f.prospects {
		if p.CampaignID != campaignID {
			continue
		}
		counts.Total++
		switch p.EngagementStatus {
		case models.EngagementContacted:
			counts.Contacted++
		case models.EngagementReplied:
			counts.Replied++
		case models.EngagementMeetingScheduled:
			counts.MeetingScheduled++
		case models.EngagementCompleted:
			counts.Completed++
		}
	}
	return counts, nil
}

func (f *fakeStore) AdvanceEngagement(ctx context.Context, prospectID uint, from []string, to string) (bool, error) {
	p, ok := f.prospects[prospectID]
	if !ok {
		return false, nil
	}
	for _, s := range from {
		if p.EngagementStatus == s {
			p.EngagementStatus = to
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeStore) ActiveSteps(ctx context.Context, campaignID uint) ([]models.SequenceStep, error) {
	return f.steps[campaignID], nil
}

func (f *fakeStore) IncrementSent(ctx context.Context, stepID uint) error {
	f.sentCounts[stepID]++
	return nil
}

func (f *fakeStore) Get(ctx context.Context, campaignID, prospectID uint) (*models.SequenceProgress, error) {
	p, ok := f.progress[progressKey(campaignID, prospectID)]
	if !ok {
		return nil, nil
	}
	cp := *p
	return &cp, nil
}

func (f *fakeStore) CreateFirst(ctx context.Context, p *models.SequenceProgress) (bool, error) {
	key := progressKey(p.CampaignID, p.ProspectID)
	if _, exists := f.progress[key]; exists {
		return false, nil
	}
	cp := *p
	f.progress[key] = &cp
	return true, nil
}

func (f *fakeStore) Advance(ctx context.Context, campaignID, prospectID uint, fromStep, toStep int, sentAt time.Time, nextAt *time.Time) (bool, error) {
	p, ok := f.progress[progressKey(campaignID, prospectID)]
	if !ok || p.CurrentStep != fromStep {
		return false, nil
	}
	p.CurrentStep = toStep
	p.LastSentAt = &sentAt
	p.NextScheduledAt = nextAt
	return true, nil
}

func (f *fakeStore) ShiftTimers(ctx context.Context, campaignID uint, d time.Duration) error {
	f.shiftedFor = campaignID
	f.shiftedBy = d
	return nil
}

func (f *fakeStore) Append(ctx context.Context, ev *models.EmailEvent) error {
	f.events = append(f.events, *ev)
	return nil
}

func (f *fakeStore) HasEventSince(ctx context.Context, prospectID uint, eventType string, since time.Time) (bool, error) {
	for _, ev := range f.events {
		if ev.ProspectID == prospectID && ev.EventType == eventType && !ev.OccurredAt.Before(since) {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeStore) RecordOutbound(ctx context.Context, campaignID, prospectID uint, threadID, body string, at time.Time) error {
	key := progressKey(campaignID, prospectID)
	f.threads[key] = &models.EmailThread{
		CampaignID:      campaignID,
		ProspectID:      prospectID,
		ThreadID:        threadID,
		LastMessageBody: body,
		SentAt:          &at,
		IsActive:        true,
	}
	return nil
}

func (f *fakeStore) RecordReply(ctx context.Context, campaignID, prospectID uint, body string, at time.Time) error {
	key := progressKey(campaignID, prospectID)
	t, ok := f.threads[key]
	if !ok {
		t = &models.EmailThread{CampaignID: campaignID, ProspectID: prospectID, IsActive: true}
		f.threads[key] = t
	}
	t.LastReplyAt = &at
	t.ReplyCount++
	t.LastMessageBody = body
	return nil
}

func (f *fakeStore) SetSentiment(ctx context.Context, campaignID, prospectID uint, sentiment string) error {
	key := progressKey(campaignID, prospectID)
	t, ok := f.threads[key]
	if !ok {
		t = &models.EmailThread{CampaignID: campaignID, ProspectID: prospectID}
		f.threads[key] = t
	}
	t.Sentiment = sentiment
	return nil
}

func (f *fakeStore) GetUser(ctx context.Context, userID uint) (*models.User, error) {
	u, ok := f.users[userID]
	if !ok {
		return nil, errors.New("user not found")
	}
	cp := *u
	return &cp, nil
}

func (f *fakeStore) eventsOfType(eventType string) []models.EmailEvent {
	var out []models.EmailEvent
	for _, ev := range f.events {
		if ev.EventType == eventType {
			out = append(out, ev)
		}
	}
	return out
}

// fakeMailer records sends and can be told to fail.
type fakeMailer struct {
	sent    []OutboundMessage
	failErr error
}

func (m *fakeMailer) Send(ctx context.Context, userID uint, msg OutboundMessage) (string, error) {
	if m.failErr != nil {
		return "", m.failErr
	}
	m.sent = append(m.sent, msg)
	return "provider-id", nil
}

// fakeLocker grants every acquire unless told otherwise.
type fakeLocker struct {
	denied   bool
	acquired int
	released int
}

func (l *fakeLocker) Acquire(ctx context.Context, campaignID, prospectID uint, ttl time.Duration) (bool, error) {
	if l.denied {
		return false, nil
	}
	l.acquired++
	return true, nil
}

func (l *fakeLocker) Release(ctx context.Context, campaignID, prospectID uint) error {
	l.released++
	return nil
}

// fakeClassifier returns a canned classification.
type fakeClassifier struct {
	result classifier.Classification
	calls  int
}

func (c *fakeClassifier) Classify(ctx context.Context, body string) classifier.Classification {
	c.calls++
	return c.result
}
