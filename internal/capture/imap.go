package capture

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/emersion/go-imap/v2"
	"github.com/emersion/go-imap/v2/imapclient"
	"github.com/emersion/go-message/mail"

	"github.com/ldiaz/taskboard/internal/model"
)

// IMAPMailbox reads capture candidates from an IMAP mailbox.
type IMAPMailbox struct {
	host     string
	port     int
	username string
	password string
	tls      bool
	mailbox  string
	lookback time.Duration
}

// NewIMAPMailbox builds a mailbox reader from the capture settings and
// the account password.
func NewIMAPMailbox(cfg model.CaptureConfig, password string) *IMAPMailbox {
	return &IMAPMailbox{
		host:     cfg.Host,
		port:     cfg.Port,
		username: cfg.Username,
		password: password,
		tls:      cfg.TLS,
		mailbox:  cfg.Mailbox,
		lookback: time.Duration(cfg.LookbackDays) * 24 * time.Hour,
	}
}

// connect dials the IMAP server, authenticates, and returns the
// connected client. The caller is responsible for Logout.
func (m *IMAPMailbox) connect(_ context.Context) (*imapclient.Client, error) {
	addr := fmt.Sprintf("%s:%d", m.host, m.port)

	var client *imapclient.Client
	var err error

	if m.tls {
		client, err = imapclient.DialTLS(addr, nil)
	} else {
		client, err = imapclient.DialStartTLS(addr, nil)
	}
	if err != nil {
		return nil, fmt.Errorf("connecting to IMAP %s: %w", addr, err)
	}

	if err := client.Login(m.username, m.password).Wait(); err != nil {
		_ = client.Logout().Wait()
		return nil, fmt.Errorf("authenticating %s: %w", m.username, err)
	}

	return client, nil
}

// Unseen returns the unread messages received within the lookback
// window, bodies included. Messages are fetched with Peek so reading
// them here does not mark them seen.
func (m *IMAPMailbox) Unseen(ctx context.Context) ([]Message, error) {
	client, err := m.connect(ctx)
	if err != nil {
		return nil, err
	}
	defer func() { _ = client.Logout().Wait() }()

	if _, err := client.Select(m.mailbox, nil).Wait(); err != nil {
		return nil, fmt.Errorf("selecting %s: %w", m.mailbox, err)
	}

	criteria := &imap.SearchCriteria{
		Since:   time.Now().Add(-m.lookback),
		NotFlag: []imap.Flag{imap.FlagSeen},
	}

	searchData, err := client.UIDSearch(criteria, nil).Wait()
	if err != nil {
		return nil, fmt.Errorf("searching unseen messages: %w", err)
	}

	uids := searchData.AllUIDs()
	if len(uids) == 0 {
		return nil, nil
	}

	bodySection := &imap.FetchItemBodySection{Peek: true}
	fetchOpts := &imap.FetchOptions{
		Envelope:    true,
		Flags:       true,
		UID:         true,
		BodySection: []*imap.FetchItemBodySection{bodySection},
	}

	fetchCmd := client.Fetch(imap.UIDSetNum(uids...), fetchOpts)
	defer fetchCmd.Close()

	var messages []Message
	for {
		next := fetchCmd.Next()
		if next == nil {
			break
		}

		buf, err := next.Collect()
		if err != nil {
			continue
		}

		msg := messageFromBuffer(buf)
		if raw := buf.FindBodySection(bodySection); raw != nil {
			msg.TextBody, msg.HTMLBody = parseBody(raw)
		}
		messages = append(messages, msg)
	}

	if err := fetchCmd.Close(); err != nil {
		return messages, fmt.Errorf("fetching messages: %w", err)
	}

	return messages, nil
}

// MarkSeen flags a message so later sweeps skip it.
func (m *IMAPMailbox) MarkSeen(ctx context.Context, uid uint32) error {
	client, err := m.connect(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = client.Logout().Wait() }()

	if _, err := client.Select(m.mailbox, nil).Wait(); err != nil {
		return fmt.Errorf("selecting %s: %w", m.mailbox, err)
	}

	storeCmd := client.Store(imap.UIDSetNum(imap.UID(uid)), &imap.StoreFlags{
		Op:     imap.StoreFlagsAdd,
		Silent: true,
		Flags:  []imap.Flag{imap.FlagSeen},
	}, nil)

	return storeCmd.Close()
}

// messageFromBuffer extracts a Message from a fetched buffer.
func messageFromBuffer(buf *imapclient.FetchMessageBuffer) Message {
	msg := Message{
		UID: uint32(buf.UID),
	}

	if buf.Envelope != nil {
		msg.MessageID = buf.Envelope.MessageID
		msg.Subject = buf.Envelope.Subject
		msg.Date = buf.Envelope.Date

		if len(buf.Envelope.From) > 0 {
			from := buf.Envelope.From[0]
			if from.Name != "" {
				msg.From = from.Name
			} else {
				msg.From = from.Addr()
			}
		}
	}

	for _, flag := range buf.Flags {
		if flag == imap.FlagFlagged {
			msg.Flagged = true
		}
	}

	return msg
}

// parseBody parses a raw RFC 2822 body using go-message and extracts
// the text/plain and text/html parts.
func parseBody(raw []byte) (textBody, htmlBody string) {
	mr, err := mail.CreateReader(bytes.NewReader(raw))
	if err != nil {
		// Unparseable MIME; treat the whole thing as plain text.
		return string(raw), ""
	}
	defer mr.Close()

	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			break
		}

		h, ok := part.Header.(*mail.InlineHeader)
		if !ok {
			continue
		}

		contentType, _, _ := h.ContentType()
		body, readErr := io.ReadAll(part.Body)
		if readErr != nil {
			continue
		}

		switch {
		case strings.HasPrefix(contentType, "text/plain"):
			textBody = string(body)
		case strings.HasPrefix(contentType, "text/html"):
			htmlBody = string(body)
		}
	}

	return textBody, htmlBody
}
