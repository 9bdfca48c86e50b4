package classifier

import (
	"context"
	"strings"
)

// KeywordClassifier is the degraded mode used when no Gemini API key is
// configured. It only catches unambiguous phrasing; everything else falls
// through to the neutral default so a human can follow up.
type KeywordClassifier struct{}

func NewKeywordClassifier() *KeywordClassifier {
	return &KeywordClassifier{}
}

var notInterestedPhrases = []string{
	"not interested",
	"no thanks",
	"unsubscribe",
	"remove me",
	"stop emailing",
	"stop contacting",
}

var meetingPhrases = []string{
	"schedule a call",
	"schedule a meeting",
	"book a call",
	"book a meeting",
	"set up a call",
	"calendar link",
	"calendly",
	"happy to chat",
	"let's talk",
}

func (kc *KeywordClassifier) Classify(ctx context.Context, body string) Classification {
	text := strings.ToLower(body)

	for _, phrase := range notInterestedPhrases {
		if strings.Contains(text, phrase) {
			return Classification{
				Sentiment:     "negative",
				NotInterested: true,
			}
		}
	}

	for _, phrase := range meetingPhrases {
		if strings.Contains(text, phrase) {
			return Classification{
				Sentiment:      "positive",
				MeetingIntent:  true,
				Interested:     true,
				FollowUpNeeded: true,
			}
		}
	}

	return Default()
}
