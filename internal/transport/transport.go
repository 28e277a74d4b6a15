// Package transport defines the mail store contract the matching and
// dispatch engine depends on.
package transport

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/akashrathod3565/Vendor-Automation-Application/internal/identity"
)

// ConnectionError indicates that the mail store could not be reached or
// refused the session. It is fatal for the run that hit it.
type ConnectionError struct {
	Endpoint string
	Err      error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("could not connect to %s: %v", e.Endpoint, e.Err)
}

func (e *ConnectionError) Unwrap() error {
	return e.Err
}

// IsConnectionError reports whether err (or any error in its chain) is a
// ConnectionError.
func IsConnectionError(err error) bool {
	var connErr *ConnectionError
	return errors.As(err, &connErr)
}

// ErrFilterUnsupported is returned by ListSince when the store cannot
// filter by received time; callers fall back to ListAll.
var ErrFilterUnsupported = errors.New("server-side date filtering unsupported")

// SaveFormat selects the on-disk representation of a saved message.
type SaveFormat int

const (
	// FormatNative is the store's preferred full-fidelity format.
	FormatNative SaveFormat = iota

	// FormatLegacy is the older alternate format tried when the native
	// one cannot be written.
	FormatLegacy
)

func (f SaveFormat) String() string {
	switch f {
	case FormatNative:
		return "native"
	case FormatLegacy:
		return "legacy"
	default:
		return fmt.Sprintf("format(%d)", int(f))
	}
}

// Transport opens sessions against a mail store.
type Transport interface {
	// Connect acquires a session. Failures are *ConnectionError.
	Connect(ctx context.Context) (Session, error)
}

// Session is a connected handle on the default inbound store. It must be
// closed by the worker that opened it.
type Session interface {
	// ListSince returns messages received at or after since, newest first
	// when the store can sort. It returns ErrFilterUnsupported when the
	// store cannot filter.
	ListSince(ctx context.Context, since time.Time) ([]Message, error)

	// ListAll returns every message in the inbound store.
	ListAll(ctx context.Context) ([]Message, error)

	// NewDraft creates an empty outbound message.
	NewDraft(ctx context.Context) (Draft, error)

	Close() error
}

// Message is an inbound message reference.
type Message interface {
	Sender() identity.Descriptor
	Subject() string

	// ReceivedAt returns the store's received time, zero when unknown.
	ReceivedAt() time.Time

	Attachments() ([]Attachment, error)
	SaveAs(path string, format SaveFormat) error
}

// Attachment is one file attached to an inbound message.
type Attachment interface {
	Filename() string
	SaveAs(path string) error
}

// DraftFields are the header and body values of an outbound message.
type DraftFields struct {
	To       string
	CC       []string
	Subject  string
	Body     string
	IsMarkup bool
}

// Draft is an outbound message being composed.
type Draft interface {
	SetFields(fields DraftFields)

	// Attach adds the file at path.
	Attach(path string) error

	// Attachments returns the paths attached so far.
	Attachments() []string

	// Save stores the draft in the store's own drafts folder.
	Save(ctx context.Context) error

	// SaveAs writes the draft to a local file.
	SaveAs(path string, format SaveFormat) error

	// Transmit sends the draft to its recipients.
	Transmit(ctx context.Context) error
}
