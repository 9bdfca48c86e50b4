package classifier

// Classification is the structured read of one inbound reply.
type Classification struct {
	Sentiment      string `json:"sentiment"` // positive, negative, neutral, booking_intent
	MeetingIntent  bool   `json:"meeting_intent"`
	NeedsInfo      bool   `json:"needs_info"`
	Objection      bool   `json:"objection"`
	Interested     bool   `json:"interested"`
	NotInterested  bool   `json:"not_interested"`
	Availability   string `json:"availability"`
	FollowUpNeeded bool   `json:"follow_up_needed"`
}

// Default is the fail-safe classification used whenever the model is
// unavailable or returns garbage. It keeps the caller's flow intact: a
// neutral reply that still warrants a human follow-up.
func Default() Classification {
	return Classification{
		Sentiment:      "neutral",
		FollowUpNeeded: true,
	}
}
