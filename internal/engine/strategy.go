package engine

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/akashrathod3565/Vendor-Automation-Application/internal/folders"
	"github.com/akashrathod3565/Vendor-Automation-Application/internal/model"
	"github.com/akashrathod3565/Vendor-Automation-Application/internal/transport"
)

// PersistTarget describes where a dispatch may persist its draft.
type PersistTarget struct {
	// MsgPath is the draft file path for full-fidelity formats.
	MsgPath string

	// AttachmentsDir receives separately saved attachments.
	AttachmentsDir string

	Fields transport.DraftFields
}

// Strategy is one way of persisting a draft locally. Save returns the path
// it wrote and, for degraded strategies, errors for individual pieces that
// could not be saved.
type Strategy struct {
	Name   string
	Action model.Action
	Save   func(d transport.Draft, t PersistTarget) (path string, warnings []error, err error)
}

// DefaultStrategies returns the dispatch persistence order: the preferred
// message format, the legacy format and finally a plain-text rendering
// with attachments copied next to it.
func DefaultStrategies() []Strategy {
	return []Strategy{
		{Name: StagePreferred, Action: model.ActionSendDraft, Save: saveFormat(transport.FormatNative)},
		{Name: StageLegacy, Action: model.ActionSendDraft, Save: saveFormat(transport.FormatLegacy)},
		{Name: StageText, Action: model.ActionSendDraftTxt, Save: saveText},
	}
}

// PersistOutcome is the result of running a strategy list.
type PersistOutcome struct {
	Strategy Strategy
	Path     string
	Warnings []error

	// Failures holds the error of every strategy that was tried and failed.
	Failures []error
}

// OK reports whether some strategy succeeded.
func (o PersistOutcome) OK() bool {
	return o.Strategy.Save != nil
}

// Persist tries each strategy in order and stops at the first success.
func Persist(strategies []Strategy, d transport.Draft, t PersistTarget) PersistOutcome {
	var out PersistOutcome
	for _, s := range strategies {
		path, warnings, err := s.Save(d, t)
		if err != nil {
			out.Failures = append(out.Failures, &SaveError{Stage: s.Name, Path: path, Err: err})
			continue
		}
		out.Strategy = s
		out.Path = path
		out.Warnings = warnings
		return out
	}
	return out
}

// Err joins every failure.
func (o PersistOutcome) Err() error {
	return errors.Join(o.Failures...)
}

func saveFormat(format transport.SaveFormat) func(transport.Draft, PersistTarget) (string, []error, error) {
	return func(d transport.Draft, t PersistTarget) (string, []error, error) {
		if err := d.SaveAs(t.MsgPath, format); err != nil {
			return t.MsgPath, nil, err
		}
		return t.MsgPath, nil, nil
	}
}

// saveText writes "To:", "Subject:" and the body to a .txt file next to the
// draft path, then copies each attachment into the attachments folder.
func saveText(d transport.Draft, t PersistTarget) (string, []error, error) {
	path := folders.UniquePath(folders.WithExt(t.MsgPath, ".txt"))

	var b strings.Builder
	fmt.Fprintf(&b, "To: %s\nSubject: %s\n\n", t.Fields.To, t.Fields.Subject)
	b.WriteString(t.Fields.Body)
	if err := os.WriteFile(path, []byte(b.String()), 0o644); err != nil {
		return path, nil, err
	}

	attachments := d.Attachments()
	if len(attachments) == 0 {
		return path, nil, nil
	}

	if err := os.MkdirAll(t.AttachmentsDir, 0o755); err != nil {
		return path, []error{&SaveError{Stage: StageAttachment, Path: t.AttachmentsDir, Err: err}}, nil
	}

	var warnings []error
	for _, src := range attachments {
		name := folders.Sanitize(filepath.Base(src), folders.DefaultMaxLength)
		dst := folders.UniquePath(filepath.Join(t.AttachmentsDir, name))
		if err := copyFile(src, dst); err != nil {
			warnings = append(warnings, &SaveError{Stage: StageAttachment, Path: dst, Err: err})
		}
	}
	return path, warnings, nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
