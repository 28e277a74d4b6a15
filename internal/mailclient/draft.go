package mailclient

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"mime"
	"net"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/emersion/go-imap/v2"
	"github.com/emersion/go-imap/v2/imapclient"
	"github.com/emersion/go-message/mail"
	"github.com/emersion/go-sasl"
	"github.com/emersion/go-smtp"
	"github.com/google/uuid"
	"github.com/k3a/html2text"

	"github.com/akashrathod3565/Vendor-Automation-Application/internal/transport"
)

// draft composes an outbound message. The Message-ID and Date are fixed
// at creation so every saved copy and the transmitted message agree.
type draft struct {
	client *Client
	imap   *imapclient.Client

	mu          sync.Mutex
	messageID   string
	date        time.Time
	fields      transport.DraftFields
	attachments []string
}

func newDraft(c *Client, imapClient *imapclient.Client) *draft {
	return &draft{
		client:    c,
		imap:      imapClient,
		messageID: uuid.NewString() + "@vendorauto",
		date:      time.Now(),
	}
}

func (d *draft) SetFields(f transport.DraftFields) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.fields = f
}

func (d *draft) Attach(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("attaching %s: %w", path, err)
	}
	if info.IsDir() {
		return fmt.Errorf("attaching %s: is a directory", path)
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	d.attachments = append(d.attachments, path)
	return nil
}

func (d *draft) Attachments() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.attachments...)
}

// Save appends the draft to the account's drafts mailbox with the \Draft
// flag.
func (d *draft) Save(_ context.Context) error {
	if d.imap == nil {
		return fmt.Errorf("no IMAP session for drafts")
	}
	raw, err := d.compose()
	if err != nil {
		return err
	}

	mailbox := d.client.cfg.DraftsMailbox
	appendCmd := d.imap.Append(mailbox, int64(len(raw)), &imap.AppendOptions{
		Flags: []imap.Flag{imap.FlagDraft},
		Time:  d.date,
	})
	if _, err := appendCmd.Write(raw); err != nil {
		_ = appendCmd.Close()
		return fmt.Errorf("appending draft to %s: %w", mailbox, err)
	}
	if err := appendCmd.Close(); err != nil {
		return fmt.Errorf("appending draft to %s: %w", mailbox, err)
	}
	if _, err := appendCmd.Wait(); err != nil {
		return fmt.Errorf("appending draft to %s: %w", mailbox, err)
	}
	return nil
}

func (d *draft) SaveAs(path string, format transport.SaveFormat) error {
	raw, err := d.compose()
	if err != nil {
		return err
	}
	if format == transport.FormatLegacy {
		raw = mboxFrame(d.client.cfg.From, d.date, raw)
	}
	if err := os.WriteFile(path, raw, 0o644); err != nil {
		return fmt.Errorf("writing draft to %s: %w", path, err)
	}
	return nil
}

// Transmit sends the draft over SMTP to its To and Cc recipients.
func (d *draft) Transmit(_ context.Context) error {
	raw, err := d.compose()
	if err != nil {
		return err
	}

	d.mu.Lock()
	rcpts := append([]string{d.fields.To}, d.fields.CC...)
	d.mu.Unlock()

	return d.client.send(rcpts, raw)
}

func (d *draft) compose() ([]byte, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return compose(d.client.cfg.From, d.fields, d.messageID, d.date, d.attachments)
}

// compose renders an RFC 5322 message. Markup bodies get a text/plain
// alternative generated with html2text.
func compose(
	from string,
	f transport.DraftFields,
	messageID string,
	date time.Time,
	attachments []string,
) ([]byte, error) {
	var h mail.Header
	h.SetDate(date)
	h.SetMessageID(messageID)
	h.SetSubject(f.Subject)
	if from != "" {
		h.SetAddressList("From", []*mail.Address{{Address: from}})
	}
	h.SetAddressList("To", []*mail.Address{{Address: f.To}})
	if len(f.CC) > 0 {
		cc := make([]*mail.Address, 0, len(f.CC))
		for _, addr := range f.CC {
			cc = append(cc, &mail.Address{Address: addr})
		}
		h.SetAddressList("Cc", cc)
	}

	var buf bytes.Buffer
	w, err := mail.CreateWriter(&buf, h)
	if err != nil {
		return nil, fmt.Errorf("creating message writer: %w", err)
	}

	if err := writeBody(w, f); err != nil {
		return nil, err
	}
	for _, path := range attachments {
		if err := writeAttachment(w, path); err != nil {
			return nil, err
		}
	}

	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("finishing message: %w", err)
	}
	return buf.Bytes(), nil
}

func writeBody(w *mail.Writer, f transport.DraftFields) error {
	type part struct {
		contentType string
		body        string
	}
	parts := []part{{"text/plain", f.Body}}
	if f.IsMarkup {
		parts = []part{
			{"text/plain", html2text.HTML2Text(f.Body)},
			{"text/html", f.Body},
		}
	}

	iw, err := w.CreateInline()
	if err != nil {
		return fmt.Errorf("creating body: %w", err)
	}
	for _, p := range parts {
		var ih mail.InlineHeader
		ih.SetContentType(p.contentType, map[string]string{"charset": "utf-8"})
		ih.Set("Content-Transfer-Encoding", "quoted-printable")

		pw, err := iw.CreatePart(ih)
		if err != nil {
			return fmt.Errorf("creating %s part: %w", p.contentType, err)
		}
		if _, err := io.WriteString(pw, p.body); err != nil {
			pw.Close()
			return fmt.Errorf("writing %s part: %w", p.contentType, err)
		}
		if err := pw.Close(); err != nil {
			return fmt.Errorf("closing %s part: %w", p.contentType, err)
		}
	}
	return iw.Close()
}

func writeAttachment(w *mail.Writer, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading attachment %s: %w", path, err)
	}

	contentType := mime.TypeByExtension(filepath.Ext(path))
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	var ah mail.AttachmentHeader
	ah.Set("Content-Type", contentType)
	ah.Set("Content-Transfer-Encoding", "base64")
	ah.SetFilename(filepath.Base(path))

	aw, err := w.CreateAttachment(ah)
	if err != nil {
		return fmt.Errorf("creating attachment part: %w", err)
	}
	if _, err := aw.Write(data); err != nil {
		aw.Close()
		return fmt.Errorf("writing attachment %s: %w", path, err)
	}
	return aw.Close()
}

// send delivers raw over an implicit TLS or STARTTLS connection,
// authenticating with SASL PLAIN when a username is configured.
func (c *Client) send(rcpts []string, raw []byte) error {
	if c.cfg.SMTPHost == "" {
		return fmt.Errorf("no SMTP host configured")
	}
	addr := net.JoinHostPort(c.cfg.SMTPHost, c.cfg.SMTPPort)
	tlsConfig := &tls.Config{ServerName: c.cfg.SMTPHost}

	var sc *smtp.Client
	var err error
	if c.cfg.TLS {
		sc, err = smtp.DialTLS(addr, tlsConfig)
	} else {
		sc, err = smtp.DialStartTLS(addr, tlsConfig)
	}
	if err != nil {
		return fmt.Errorf("connecting to SMTP %s: %w", addr, err)
	}
	defer sc.Close()

	if c.cfg.Username != "" {
		if err := sc.Auth(sasl.NewPlainClient("", c.cfg.Username, c.cfg.Password)); err != nil {
			return fmt.Errorf("SMTP auth: %w", err)
		}
	}

	if err := sc.SendMail(c.cfg.From, rcpts, bytes.NewReader(raw)); err != nil {
		return fmt.Errorf("sending message: %w", err)
	}

	if err := sc.Quit(); err != nil {
		c.logger.Warn("SMTP QUIT failed", "error", err)
	}
	return nil
}
