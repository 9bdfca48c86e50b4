package mailbox

import (
	"crypto/tls"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/emersion/go-imap"
	"github.com/emersion/go-imap/client"
	"github.com/emersion/go-message/mail"
	"github.com/sirupsen/logrus"

	"reachflow/config"
	"reachflow/engine"
)

// IMAPPoller discovers inbound replies by polling the configured mailbox.
// How replies are found is invisible to the reply processor; this is just
// one implementation of ListNewReplies.
type IMAPPoller struct {
	cfg config.IMAPConfig
	// own address, filtered out of results so we never classify ourselves
	selfAddress string
	log         *logrus.Entry
}

func NewIMAPPoller(cfg config.IMAPConfig, selfAddress string, log *logrus.Entry) *IMAPPoller {
	return &IMAPPoller{cfg: cfg, selfAddress: strings.ToLower(selfAddress), log: log}
}

// ListNewReplies returns messages that arrived in the mailbox since the
// cursor. Each call opens a fresh connection; polls are minutes apart.
func (p *IMAPPoller) ListNewReplies(since time.Time) ([]engine.Reply, error) {
	c, err := p.dial()
	if err != nil {
		return nil, err
	}
	defer c.Logout()

	if err := c.Login(p.cfg.Username, p.cfg.Password); err != nil {
		return nil, fmt.Errorf("imap login failed: %w", err)
	}

	if _, err := c.Select(p.cfg.Mailbox, true); err != nil {
		return nil, fmt.Errorf("failed to select mailbox %s: %w", p.cfg.Mailbox, err)
	}

	criteria := imap.NewSearchCriteria()
	criteria.Since = since
	ids, err := c.Search(criteria)
	if err != nil {
		return nil, fmt.Errorf("imap search failed: %w", err)
	}
	if len(ids) == 0 {
		return nil, nil
	}

	seqset := new(imap.SeqSet)
	seqset.AddNum(ids...)

	section := &imap.BodySectionName{Peek: true}
	items := []imap.FetchItem{imap.FetchEnvelope, imap.FetchInternalDate, section.FetchItem()}

	messages := make(chan *imap.Message, 16)
	fetchDone := make(chan error, 1)
	go func() {
		fetchDone <- c.Fetch(seqset, items, messages)
	}()

	var replies []engine.Reply
	for msg := range messages {
		reply, ok := p.toReply(msg, section, since)
		if ok {
			replies = append(replies, reply)
		}
	}

	if err := <-fetchDone; err != nil {
		return nil, fmt.Errorf("imap fetch failed: %w", err)
	}
	return replies, nil
}

func (p *IMAPPoller) dial() (*client.Client, error) {
	addr := fmt.Sprintf("%s:%d", p.cfg.Host, p.cfg.Port)

	var c *client.Client
	var err error
	switch strings.ToUpper(p.cfg.Encryption) {
	case "SSL", "TLS":
		c, err = client.DialTLS(addr, &tls.Config{ServerName: p.cfg.Host})
	case "STARTTLS":
		c, err = client.Dial(addr)
		if err == nil {
			err = c.StartTLS(&tls.Config{ServerName: p.cfg.Host})
		}
	default:
		c, err = client.Dial(addr)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to connect to IMAP server: %w", err)
	}
	return c, nil
}

func (p *IMAPPoller) toReply(msg *imap.Message, section *imap.BodySectionName, since time.Time) (engine.Reply, bool) {
	if msg.Envelope == nil || len(msg.Envelope.From) == 0 {
		return engine.Reply{}, false
	}
	// SINCE only has day granularity; drop anything older than the cursor.
	if msg.InternalDate.Before(since) {
		return engine.Reply{}, false
	}

	from := strings.ToLower(msg.Envelope.From[0].Address())
	if from == "" || from == p.selfAddress {
		return engine.Reply{}, false
	}

	body := p.extractText(msg.GetBody(section))

	return engine.Reply{
		FromEmail:  from,
		Body:       body,
		MessageID:  msg.Envelope.MessageId,
		ThreadID:   msg.Envelope.InReplyTo,
		ReceivedAt: msg.InternalDate,
	}, true
}

// extractText pulls the first text part of the message body.
func (p *IMAPPoller) extractText(r io.Reader) string {
	if r == nil {
		return ""
	}
	mr, err := mail.CreateReader(r)
	if err != nil {
		p.log.WithError(err).Debug("failed to parse message body")
		return ""
	}

	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			p.log.WithError(err).Debug("failed to read message part")
			break
		}
		if _, ok := part.Header.(*mail.InlineHeader); ok {
			b, err := io.ReadAll(part.Body)
			if err != nil {
				continue
			}
			if text := strings.TrimSpace(string(b)); text != "" {
				return text
			}
		}
	}
	return ""
}
