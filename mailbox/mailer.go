// Package mailbox is the mailbox-provider boundary: outbound email over SMTP
// and inbound reply discovery over IMAP.
package mailbox

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gopkg.in/gomail.v2"

	"reachflow/config"
	"reachflow/engine"
)

// SMTPMailer sends outreach email through the configured SMTP relay.
type SMTPMailer struct {
	cfg config.SMTPConfig
	log *logrus.Entry
}

func NewSMTPMailer(cfg config.SMTPConfig, log *logrus.Entry) *SMTPMailer {
	return &SMTPMailer{cfg: cfg, log: log}
}

// Send delivers one message and returns the Message-ID it was sent under.
// The context bounds the whole dial-and-send; gomail has no native deadline
// support, so the send runs in its own goroutine.
func (m *SMTPMailer) Send(ctx context.Context, userID uint, msg engine.OutboundMessage) (string, error) {
	from := msg.FromEmail
	if from == "" {
		from = m.cfg.Username
	}

	messageID := fmt.Sprintf("<%s@reachflow>", uuid.NewString())

	gm := gomail.NewMessage()
	if msg.FromName != "" {
		gm.SetHeader("From", fmt.Sprintf("%s <%s>", msg.FromName, from))
	} else {
		gm.SetHeader("From", from)
	}
	gm.SetHeader("To", msg.To)
	gm.SetHeader("Subject", msg.Subject)
	gm.SetHeader("Message-ID", messageID)
	if msg.ThreadID != "" {
		// Keeps follow-up steps threaded in the recipient's client.
		gm.SetHeader("References", fmt.Sprintf("<%s@reachflow>", msg.ThreadID))
	}
	gm.SetBody("text/plain", msg.Text)
	gm.AddAlternative("text/html", msg.HTML)

	dialer := gomail.NewDialer(m.cfg.Host, m.cfg.Port, m.cfg.Username, m.cfg.Password)

	done := make(chan error, 1)
	go func() {
		done <- dialer.DialAndSend(gm)
	}()

	select {
	case err := <-done:
		if err != nil {
			return "", fmt.Errorf("smtp send failed: %w", err)
		}
		m.log.WithFields(logrus.Fields{
			"user_id": userID,
			"to":      msg.To,
		}).Debug("email sent")
		return messageID, nil
	case <-ctx.Done():
		return "", fmt.Errorf("smtp send timed out: %w", ctx.Err())
	}
}
