// Package fake provides an in-memory mail transport with programmable
// failures for tests.
package fake

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/akashrathod3565/Vendor-Automation-Application/internal/identity"
	"github.com/akashrathod3565/Vendor-Automation-Application/internal/transport"
)

// Transport is an in-memory transport. Exported fields configure
// behaviour and must be set before Connect is called.
type Transport struct {
	Messages []*Message

	ConnectErr error

	// FilterUnsupported makes ListSince return ErrFilterUnsupported.
	FilterUnsupported bool
	ListErr           error

	NewDraftErr  error
	AttachErr    error
	DraftSaveErr error
	SaveAsErr    map[transport.SaveFormat]error
	TransmitErr  error

	mu       sync.Mutex
	attempts int
	connects int
	closes   int
	drafts   []*Draft
	listAll  int
}

// New returns a transport serving msgs.
func New(msgs ...*Message) *Transport {
	return &Transport{Messages: msgs}
}

// Connect implements transport.Transport.
func (t *Transport) Connect(_ context.Context) (transport.Session, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.attempts++
	if t.ConnectErr != nil {
		return nil, &transport.ConnectionError{Endpoint: "fake", Err: t.ConnectErr}
	}
	t.connects++
	return &session{t: t}, nil
}

// ConnectAttempts counts Connect calls, failed ones included.
func (t *Transport) ConnectAttempts() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.attempts
}

// Connects returns how many sessions were opened.
func (t *Transport) Connects() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.connects
}

// Closes returns how many sessions were closed.
func (t *Transport) Closes() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.closes
}

// ListAllCalls returns how many times the full store was enumerated.
func (t *Transport) ListAllCalls() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.listAll
}

// Drafts returns every draft created so far.
func (t *Transport) Drafts() []*Draft {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]*Draft(nil), t.drafts...)
}

type session struct {
	t      *Transport
	closed bool
}

func (s *session) ListSince(_ context.Context, since time.Time) ([]transport.Message, error) {
	if s.t.FilterUnsupported {
		return nil, transport.ErrFilterUnsupported
	}
	if s.t.ListErr != nil {
		return nil, s.t.ListErr
	}

	var out []*Message
	for _, m := range s.t.Messages {
		if !m.Received.Before(since) {
			out = append(out, m)
		}
	}
	return newestFirst(out), nil
}

func (s *session) ListAll(_ context.Context) ([]transport.Message, error) {
	s.t.mu.Lock()
	s.t.listAll++
	s.t.mu.Unlock()

	if s.t.ListErr != nil {
		return nil, s.t.ListErr
	}
	return newestFirst(s.t.Messages), nil
}

func (s *session) NewDraft(_ context.Context) (transport.Draft, error) {
	if s.t.NewDraftErr != nil {
		return nil, s.t.NewDraftErr
	}
	d := &Draft{t: s.t}
	s.t.mu.Lock()
	s.t.drafts = append(s.t.drafts, d)
	s.t.mu.Unlock()
	return d, nil
}

func (s *session) Close() error {
	s.t.mu.Lock()
	defer s.t.mu.Unlock()
	if s.closed {
		return errors.New("session already closed")
	}
	s.closed = true
	s.t.closes++
	return nil
}

func newestFirst(msgs []*Message) []transport.Message {
	sorted := append([]*Message(nil), msgs...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Received.After(sorted[j].Received)
	})
	out := make([]transport.Message, len(sorted))
	for i, m := range sorted {
		out[i] = m
	}
	return out
}

// Message is an inbound message.
type Message struct {
	From     identity.Descriptor
	Title    string
	Received time.Time
	Raw      []byte
	Files    []*Attachment

	SaveErr        error
	AttachmentsErr error
}

func (m *Message) Sender() identity.Descriptor { return m.From }
func (m *Message) Subject() string             { return m.Title }
func (m *Message) ReceivedAt() time.Time       { return m.Received }

func (m *Message) Attachments() ([]transport.Attachment, error) {
	if m.AttachmentsErr != nil {
		return nil, m.AttachmentsErr
	}
	out := make([]transport.Attachment, len(m.Files))
	for i, a := range m.Files {
		out[i] = a
	}
	return out, nil
}

func (m *Message) SaveAs(path string, _ transport.SaveFormat) error {
	if m.SaveErr != nil {
		return m.SaveErr
	}
	return os.WriteFile(path, m.Raw, 0o644)
}

// Attachment is an inbound attachment.
type Attachment struct {
	Name string
	Data []byte
	Err  error
}

func (a *Attachment) Filename() string { return a.Name }

func (a *Attachment) SaveAs(path string) error {
	if a.Err != nil {
		return a.Err
	}
	return os.WriteFile(path, a.Data, 0o644)
}

// Draft records what the engine did with an outbound message.
type Draft struct {
	t *Transport

	mu          sync.Mutex
	fields      transport.DraftFields
	attached    []string
	saved       bool
	savedPaths  []string
	transmitted bool
}

func (d *Draft) SetFields(f transport.DraftFields) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.fields = f
}

func (d *Draft) Attach(path string) error {
	if d.t.AttachErr != nil {
		return d.t.AttachErr
	}
	if _, err := os.Stat(path); err != nil {
		return err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.attached = append(d.attached, path)
	return nil
}

func (d *Draft) Attachments() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.attached...)
}

func (d *Draft) Save(_ context.Context) error {
	if d.t.DraftSaveErr != nil {
		return d.t.DraftSaveErr
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.saved = true
	return nil
}

func (d *Draft) SaveAs(path string, format transport.SaveFormat) error {
	if err := d.t.SaveAsErr[format]; err != nil {
		return err
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	content := fmt.Sprintf("Format: %s\nTo: %s\nCc: %s\nSubject: %s\n\n%s",
		format, d.fields.To, strings.Join(d.fields.CC, "; "), d.fields.Subject, d.fields.Body)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return err
	}
	d.savedPaths = append(d.savedPaths, path)
	return nil
}

func (d *Draft) Transmit(_ context.Context) error {
	if d.t.TransmitErr != nil {
		return d.t.TransmitErr
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.transmitted = true
	return nil
}

// Fields returns the values last set on the draft.
func (d *Draft) Fields() transport.DraftFields {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.fields
}

// Saved reports whether Save succeeded.
func (d *Draft) Saved() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.saved
}

// SavedPaths returns the local files written by SaveAs.
func (d *Draft) SavedPaths() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.savedPaths...)
}

// Transmitted reports whether Transmit succeeded.
func (d *Draft) Transmitted() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.transmitted
}
