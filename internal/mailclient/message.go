package mailclient

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/emersion/go-imap/v2"
	"github.com/emersion/go-message/mail"

	"github.com/akashrathod3565/Vendor-Automation-Application/internal/identity"
	"github.com/akashrathod3565/Vendor-Automation-Application/internal/transport"
)

var errNoBody = errors.New("message body was not fetched")

// message is an inbound message with its full RFC 5322 body in memory.
type message struct {
	env      *imap.Envelope
	received time.Time
	raw      []byte
}

func newMessage(env *imap.Envelope, received time.Time, raw []byte) *message {
	if received.IsZero() && env != nil {
		received = env.Date
	}
	return &message{env: env, received: received, raw: raw}
}

func (m *message) Sender() identity.Descriptor {
	d := identity.Descriptor{Object: headerSender{env: m.env, raw: m.raw}}
	if m.env != nil && len(m.env.From) > 0 {
		from := m.env.From[0]
		d.RawAddress = from.Addr()
		d.DisplayName = from.Name
	}
	return d
}

func (m *message) Subject() string {
	if m.env == nil {
		return ""
	}
	return m.env.Subject
}

func (m *message) ReceivedAt() time.Time {
	return m.received
}

func (m *message) Attachments() ([]transport.Attachment, error) {
	if len(m.raw) == 0 {
		return nil, errNoBody
	}
	return parseAttachments(m.raw)
}

func (m *message) SaveAs(path string, format transport.SaveFormat) error {
	if len(m.raw) == 0 {
		return errNoBody
	}

	data := m.raw
	if format == transport.FormatLegacy {
		from := ""
		if m.env != nil && len(m.env.From) > 0 {
			from = m.env.From[0].Addr()
		}
		data = mboxFrame(from, m.received, m.raw)
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing message to %s: %w", path, err)
	}
	return nil
}

// headerSender exposes the envelope Sender field as the primary address
// and the raw From header as the generic address.
type headerSender struct {
	env *imap.Envelope
	raw []byte
}

func (h headerSender) PrimaryAddress() (string, error) {
	if h.env == nil || len(h.env.Sender) == 0 {
		return "", errors.New("no sender field")
	}
	addr := h.env.Sender[0].Addr()
	if addr == "" {
		return "", errors.New("sender field has no address")
	}
	return addr, nil
}

func (h headerSender) Address() (string, error) {
	if len(h.raw) == 0 {
		return "", errNoBody
	}
	mr, err := mail.CreateReader(bytes.NewReader(h.raw))
	if err != nil {
		return "", fmt.Errorf("parsing headers: %w", err)
	}
	defer mr.Close()

	from := mr.Header.Get("From")
	if from == "" {
		return "", errors.New("no From header")
	}
	return from, nil
}

// attachment is a decoded inbound attachment held in memory.
type attachment struct {
	name string
	data []byte
}

func (a *attachment) Filename() string { return a.name }

func (a *attachment) SaveAs(path string) error {
	if err := os.WriteFile(path, a.data, 0o644); err != nil {
		return fmt.Errorf("writing attachment to %s: %w", path, err)
	}
	return nil
}

// parseAttachments walks the MIME tree and returns every part with an
// attachment disposition.
func parseAttachments(raw []byte) ([]transport.Attachment, error) {
	mr, err := mail.CreateReader(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("parsing message: %w", err)
	}
	defer mr.Close()

	var out []transport.Attachment
	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			return out, fmt.Errorf("reading message part: %w", err)
		}

		h, ok := part.Header.(*mail.AttachmentHeader)
		if !ok {
			continue
		}
		filename, _ := h.Filename()
		body, err := io.ReadAll(part.Body)
		if err != nil {
			return out, fmt.Errorf("reading attachment %q: %w", filename, err)
		}
		out = append(out, &attachment{name: filename, data: body})
	}
	return out, nil
}
