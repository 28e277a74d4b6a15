package engine

import (
	"errors"
	"fmt"
)

// Save stages, in the order a dispatch attempts them.
const (
	StageFolder     = "folder"
	StageDraftStore = "draft_store"
	StagePreferred  = "preferred"
	StageLegacy     = "legacy"
	StageText       = "text"
	StageMessage    = "message"
	StageAttachment = "attachment"
)

// SaveError reports a failed persistence step for a single item. It never
// aborts the surrounding run.
type SaveError struct {
	Stage string
	Path  string
	Err   error
}

func (e *SaveError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("save failed (%s): %v", e.Stage, e.Err)
	}
	return fmt.Sprintf("save failed (%s) for %s: %v", e.Stage, e.Path, e.Err)
}

func (e *SaveError) Unwrap() error {
	return e.Err
}

// IsSaveError reports whether err (or any error in its chain) is a
// SaveError.
func IsSaveError(err error) bool {
	var saveErr *SaveError
	return errors.As(err, &saveErr)
}

// TransmitError reports that sending failed after the draft was
// persisted. The draft stays on disk.
type TransmitError struct {
	Recipient string
	Err       error
}

func (e *TransmitError) Error() string {
	return fmt.Sprintf("transmit to %s failed: %v", e.Recipient, e.Err)
}

func (e *TransmitError) Unwrap() error {
	return e.Err
}

// IsTransmitError reports whether err (or any error in its chain) is a
// TransmitError.
func IsTransmitError(err error) bool {
	var txErr *TransmitError
	return errors.As(err, &txErr)
}
