// Package checkpoint persists the instant up to which the inbox has been
// scanned.
package checkpoint

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// DefaultLookback is how far back the first run scans when no checkpoint
// has been saved.
const DefaultLookback = 7 * 24 * time.Hour

// legacyLayout matches timestamps written without a zone offset; they are
// read as local time.
const legacyLayout = "2006-01-02T15:04:05.999999999"

type document struct {
	LastFetch string `json:"last_fetch"`
}

// File is a JSON checkpoint file ({"last_fetch": "<RFC 3339>"}).
type File struct {
	path string
	mu   sync.Mutex
	now  func() time.Time
}

// New returns a checkpoint stored at path.
func New(path string) *File {
	return &File{path: path, now: time.Now}
}

// Path returns the file location.
func (f *File) Path() string {
	return f.path
}

// Load returns the saved instant, or DefaultLookback before now when the
// file is missing or unreadable. found reports whether a saved value was
// used.
func (f *File) Load() (ts time.Time, found bool) {
	ts, err := f.read()
	if err != nil {
		return f.now().Add(-DefaultLookback), false
	}
	return ts, true
}

// Save records ts. See Advance.
func (f *File) Save(ts time.Time) error {
	_, err := f.Advance(ts)
	return err
}

// Advance records ts unless the value on disk is later, and returns the
// instant the file holds afterwards. The write goes to a temporary file
// that is renamed over the old one.
func (f *File) Advance(ts time.Time) (time.Time, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if current, err := f.read(); err == nil && ts.Before(current) {
		return current, nil
	}
	if err := f.write(ts); err != nil {
		return time.Time{}, err
	}
	return ts, nil
}

func (f *File) write(ts time.Time) error {
	data, err := json.Marshal(document{LastFetch: ts.Format(time.RFC3339Nano)})
	if err != nil {
		return fmt.Errorf("encoding checkpoint: %w", err)
	}

	dir := filepath.Dir(f.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating checkpoint directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".last_fetch-*.tmp")
	if err != nil {
		return fmt.Errorf("creating checkpoint temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("writing checkpoint: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("syncing checkpoint: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing checkpoint: %w", err)
	}
	if err := os.Rename(tmpName, f.path); err != nil {
		return fmt.Errorf("replacing checkpoint: %w", err)
	}
	return nil
}

func (f *File) read() (time.Time, error) {
	data, err := os.ReadFile(f.path)
	if err != nil {
		return time.Time{}, err
	}

	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		return time.Time{}, fmt.Errorf("decoding checkpoint: %w", err)
	}

	if ts, err := time.Parse(time.RFC3339Nano, doc.LastFetch); err == nil {
		return ts, nil
	}
	ts, err := time.ParseInLocation(legacyLayout, doc.LastFetch, time.Local)
	if err != nil {
		return time.Time{}, fmt.Errorf("parsing checkpoint %q: %w", doc.LastFetch, err)
	}
	return ts, nil
}
