// Package mailclient implements the mail transport over IMAP (inbox
// enumeration and the drafts folder) and SMTP (transmission).
package mailclient

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sort"
	"time"

	"github.com/emersion/go-imap/v2"
	"github.com/emersion/go-imap/v2/imapclient"

	"github.com/akashrathod3565/Vendor-Automation-Application/internal/model"
	"github.com/akashrathod3565/Vendor-Automation-Application/internal/transport"
)

const (
	defaultInbox  = "INBOX"
	defaultDrafts = "Drafts"
)

// Client holds the account settings. Every Connect dials a fresh IMAP
// connection owned by the returned session.
type Client struct {
	cfg    model.MailConfig
	logger *slog.Logger
}

// New creates a client for the given account.
func New(cfg model.MailConfig, logger *slog.Logger) *Client {
	if cfg.InboxMailbox == "" {
		cfg.InboxMailbox = defaultInbox
	}
	if cfg.DraftsMailbox == "" {
		cfg.DraftsMailbox = defaultDrafts
	}
	if cfg.From == "" {
		cfg.From = cfg.Username
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{cfg: cfg, logger: logger}
}

// Connect dials and authenticates against the IMAP server and selects the
// inbox. The caller must Close the returned session.
func (c *Client) Connect(_ context.Context) (transport.Session, error) {
	if c.cfg.IMAPHost == "" {
		return nil, &transport.ConnectionError{Endpoint: "imap", Err: errors.New("no IMAP host configured")}
	}
	addr := net.JoinHostPort(c.cfg.IMAPHost, c.cfg.IMAPPort)

	opts := &imapclient.Options{TLSConfig: &tls.Config{ServerName: c.cfg.IMAPHost}}

	var client *imapclient.Client
	var err error
	if c.cfg.TLS {
		client, err = imapclient.DialTLS(addr, opts)
	} else {
		client, err = imapclient.DialStartTLS(addr, opts)
	}
	if err != nil {
		return nil, &transport.ConnectionError{Endpoint: addr, Err: err}
	}

	if err := client.Login(c.cfg.Username, c.cfg.Password).Wait(); err != nil {
		_ = client.Logout().Wait()
		return nil, &transport.ConnectionError{
			Endpoint: addr,
			Err:      fmt.Errorf("authentication failed for %s: %w", c.cfg.Username, err),
		}
	}

	if _, err := client.Select(c.cfg.InboxMailbox, nil).Wait(); err != nil {
		_ = client.Logout().Wait()
		return nil, &transport.ConnectionError{
			Endpoint: addr,
			Err:      fmt.Errorf("selecting %s: %w", c.cfg.InboxMailbox, err),
		}
	}

	c.logger.Debug("imap session opened", "addr", addr, "mailbox", c.cfg.InboxMailbox)
	return &session{client: c, imap: client}, nil
}

type session struct {
	client *Client
	imap   *imapclient.Client
}

// ListSince searches with SINCE, which has day granularity, and then
// trims the result to the exact instant using the internal date.
func (s *session) ListSince(_ context.Context, since time.Time) ([]transport.Message, error) {
	data, err := s.imap.UIDSearch(&imap.SearchCriteria{Since: since}, nil).Wait()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", transport.ErrFilterUnsupported, err)
	}

	msgs, err := s.fetch(data.AllUIDs())
	if err != nil {
		return nil, err
	}

	kept := msgs[:0]
	for _, m := range msgs {
		if m.ReceivedAt().IsZero() || !m.ReceivedAt().Before(since) {
			kept = append(kept, m)
		}
	}
	return newestFirst(kept), nil
}

func (s *session) ListAll(_ context.Context) ([]transport.Message, error) {
	data, err := s.imap.UIDSearch(&imap.SearchCriteria{}, nil).Wait()
	if err != nil {
		return nil, fmt.Errorf("listing %s: %w", s.client.cfg.InboxMailbox, err)
	}

	msgs, err := s.fetch(data.AllUIDs())
	if err != nil {
		return nil, err
	}
	return newestFirst(msgs), nil
}

func (s *session) NewDraft(_ context.Context) (transport.Draft, error) {
	return newDraft(s.client, s.imap), nil
}

func (s *session) Close() error {
	if err := s.imap.Logout().Wait(); err != nil {
		return fmt.Errorf("imap logout: %w", err)
	}
	return nil
}

// fetch retrieves envelope, internal date and the full body of each UID.
func (s *session) fetch(uids []imap.UID) ([]*message, error) {
	if len(uids) == 0 {
		return nil, nil
	}

	section := &imap.FetchItemBodySection{Peek: true}
	fetchOpts := &imap.FetchOptions{
		Envelope:     true,
		UID:          true,
		InternalDate: true,
		BodySection:  []*imap.FetchItemBodySection{section},
	}

	fetchCmd := s.imap.Fetch(imap.UIDSetNum(uids...), fetchOpts)
	defer fetchCmd.Close()

	var msgs []*message
	for {
		msg := fetchCmd.Next()
		if msg == nil {
			break
		}

		buf, err := msg.Collect()
		if err != nil {
			s.client.logger.Warn("skipping unreadable message", "error", err)
			continue
		}
		msgs = append(msgs, newMessage(buf.Envelope, buf.InternalDate, buf.FindBodySection(section)))
	}

	if err := fetchCmd.Close(); err != nil {
		return msgs, fmt.Errorf("fetching messages: %w", err)
	}
	return msgs, nil
}

func newestFirst(msgs []*message) []transport.Message {
	sort.SliceStable(msgs, func(i, j int) bool {
		return msgs[i].ReceivedAt().After(msgs[j].ReceivedAt())
	})
	out := make([]transport.Message, len(msgs))
	for i, m := range msgs {
		out[i] = m
	}
	return out
}
