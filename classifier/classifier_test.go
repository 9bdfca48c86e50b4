package classifier

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseClassification(t *testing.T) {
	c, err := parseClassification(`{
		"sentiment": "booking_intent",
		"meeting_intent": true,
		"interested": true,
		"availability": "Tuesday afternoon",
		"follow_up_needed": true
	}`)
	require.NoError(t, err)
	assert.Equal(t, "booking_intent", c.Sentiment)
	assert.True(t, c.MeetingIntent)
	assert.Equal(t, "Tuesday afternoon", c.Availability)
}

func TestParseClassificationStripsCodeFence(t *testing.T) {
	c, err := parseClassification("```json\n{\"sentiment\": \"negative\", \"not_interested\": true}\n```")
	require.NoError(t, err)
	assert.Equal(t, "negative", c.Sentiment)
	assert.True(t, c.NotInterested)
}

func TestParseClassificationDefaultsEmptySentiment(t *testing.T) {
	c, err := parseClassification(`{"follow_up_needed": true}`)
	require.NoError(t, err)
	assert.Equal(t, "neutral", c.Sentiment)
}

func TestParseClassificationRejectsGarbage(t *testing.T) {
	_, err := parseClassification("I think they are interested!")
	assert.Error(t, err)

	_, err = parseClassification(`{"sentiment": "ecstatic"}`)
	assert.Error(t, err)
}

func TestDefaultClassification(t *testing.T) {
	c := Default()
	assert.Equal(t, "neutral", c.Sentiment)
	assert.True(t, c.FollowUpNeeded)
	assert.False(t, c.MeetingIntent)
	assert.False(t, c.NotInterested)
}

func TestKeywordClassifier(t *testing.T) {
	kc := NewKeywordClassifier()
	ctx := context.Background()

	c := kc.Classify(ctx, "Please remove me from your list, not interested.")
	assert.True(t, c.NotInterested)
	assert.Equal(t, "negative", c.Sentiment)

	c = kc.Classify(ctx, "Sounds useful, can we schedule a call next week?")
	assert.True(t, c.MeetingIntent)
	assert.False(t, c.NotInterested)

	c = kc.Classify(ctx, "Who gave you my address?")
	assert.Equal(t, Default(), c)
}
