package classifier

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"
	"google.golang.org/genai"
)

const classifyPrompt = `You analyze replies to B2B outreach email.
Return ONLY a JSON object with these fields:
  sentiment: one of "positive", "negative", "neutral", "booking_intent"
  meeting_intent: true if the sender wants to schedule a call or meeting
  needs_info: true if the sender asks for more information
  objection: true if the sender raises an objection (price, timing, fit)
  interested: true if the sender shows buying interest
  not_interested: true if the sender declines or asks to stop being contacted
  availability: free-text availability the sender mentions, else ""
  follow_up_needed: true if a human should follow up

Reply to analyze:
---
%s
---`

// GeminiClassifier reads reply sentiment and intent with the Gemini API.
type GeminiClassifier struct {
	client *genai.Client
	model  string
	log    *logrus.Entry
}

// NewGeminiClassifier creates a classifier backed by the Gemini API.
func NewGeminiClassifier(ctx context.Context, apiKey, model string, log *logrus.Entry) (*GeminiClassifier, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("gemini API key is required")
	}
	if model == "" {
		model = "gemini-2.0-flash"
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}

	return &GeminiClassifier{client: client, model: model, log: log}, nil
}

// Classify analyzes one reply body. It never returns an error: on any
// internal failure it falls back to the neutral default so reply handling
// keeps moving.
func (g *GeminiClassifier) Classify(ctx context.Context, body string) Classification {
	body = strings.TrimSpace(body)
	if body == "" {
		return Default()
	}

	prompt := fmt.Sprintf(classifyPrompt, body)
	resp, err := g.client.Models.GenerateContent(ctx,
		g.model,
		genai.Text(prompt),
		&genai.GenerateContentConfig{
			ResponseMIMEType: "application/json",
		},
	)
	if err != nil {
		g.log.WithError(err).Warn("gemini classify failed, using neutral default")
		return Default()
	}

	result, err := parseClassification(resp.Text())
	if err != nil {
		g.log.WithError(err).Warn("unparseable classifier output, using neutral default")
		return Default()
	}
	return result
}

func parseClassification(text string) (Classification, error) {
	text = strings.TrimSpace(text)
	// The model occasionally wraps JSON in a code fence despite the MIME type.
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(text, "```")
	text = strings.TrimSpace(text)

	var c Classification
	if err := json.Unmarshal([]byte(text), &c); err != nil {
		return Classification{}, fmt.Errorf("decode classification: %w", err)
	}

	switch c.Sentiment {
	case "positive", "negative", "neutral", "booking_intent":
	case "":
		c.Sentiment = "neutral"
	default:
		return Classification{}, fmt.Errorf("unknown sentiment %q", c.Sentiment)
	}
	return c, nil
}
