package engine

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/akashrathod3565/Vendor-Automation-Application/internal/folders"
	"github.com/akashrathod3565/Vendor-Automation-Application/internal/model"
	"github.com/akashrathod3565/Vendor-Automation-Application/internal/transport"
)

// State is a step of an inbound run.
type State int

const (
	StateIdle State = iota
	StateConnecting
	StateLoadingCheckpoint
	StateEnumerating
	StateMatching
	StatePersistingCheckpoint
	StateDone
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConnecting:
		return "connecting"
	case StateLoadingCheckpoint:
		return "loading_checkpoint"
	case StateEnumerating:
		return "enumerating"
	case StateMatching:
		return "matching"
	case StatePersistingCheckpoint:
		return "persisting_checkpoint"
	case StateDone:
		return "done"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// messageFormats is the order in which inbound messages are written.
var messageFormats = []transport.SaveFormat{transport.FormatNative, transport.FormatLegacy}

// Fetch runs one inbound pass: it lists messages received since the
// checkpoint, files every message whose sender matches a vendor and then
// advances the checkpoint. A connection or enumeration failure leaves the
// checkpoint untouched.
func (e *Engine) Fetch(ctx context.Context, req FetchRequest) *Report {
	rep := e.newReport(model.RunKindFetch, req.Trigger)
	defer e.finish(ctx, rep)

	e.setState(rep, StateConnecting)
	sess, err := e.connect(ctx)
	if err != nil {
		e.reportf("Could not connect to the mail store: %v", err)
		rep.Err = err
		e.setState(rep, StateFailed)
		return rep
	}
	defer e.closeSession(sess)

	e.setState(rep, StateLoadingCheckpoint)
	since, found := e.cfg.Checkpoint.Load()
	if !found {
		e.cfg.Logger.Info("no checkpoint, scanning default window", "since", since)
	}

	e.setState(rep, StateEnumerating)
	// Messages that arrive while this run is matching are picked up by
	// the next run.
	scanStart := e.cfg.Now()
	msgs, err := e.enumerate(ctx, sess, since)
	if err != nil {
		e.reportf("Could not access inbox items: %v", err)
		rep.Err = err
		e.setState(rep, StateFailed)
		return rep
	}
	e.cfg.Logger.Info("enumerated inbox", "run_id", rep.ID, "since", since, "count", len(msgs))

	lookup := e.lookupSet(req.ManualEmail)

	e.setState(rep, StateMatching)
	for _, m := range msgs {
		if err := ctx.Err(); err != nil {
			e.reportf("Fetch cancelled: %v", err)
			rep.Err = err
			e.setState(rep, StateFailed)
			return rep
		}
		rep.add(e.matchMessage(m, lookup))
	}

	e.setState(rep, StatePersistingCheckpoint)
	if kept, err := e.cfg.Checkpoint.Advance(scanStart); err != nil {
		e.reportf("Warning: could not save fetch checkpoint: %v", err)
	} else {
		if kept.After(scanStart) {
			e.cfg.Logger.Warn("checkpoint ahead of scan start, left unchanged",
				"run_id", rep.ID, "checkpoint", kept, "scan_start", scanStart)
		}
		rep.Checkpoint = kept
	}

	e.report("Fetch completed.")
	e.setState(rep, StateDone)
	return rep
}

func (e *Engine) setState(rep *Report, s State) {
	rep.State = s
	if e.cfg.StateHook != nil {
		e.cfg.StateHook(rep.ID, s)
	}
}

// enumerate lists messages since the checkpoint, falling back to the whole
// store (filtered locally by received time) when filtering fails.
func (e *Engine) enumerate(ctx context.Context, sess transport.Session, since time.Time) ([]transport.Message, error) {
	msgs, err := sess.ListSince(ctx, since)
	if err == nil {
		return msgs, nil
	}
	if errors.Is(err, transport.ErrFilterUnsupported) {
		e.cfg.Logger.Info("server-side filtering unavailable, listing all messages")
	} else {
		e.cfg.Logger.Warn("filtered listing failed, listing all messages", "error", err)
	}

	all, err := sess.ListAll(ctx)
	if err != nil {
		return nil, err
	}

	kept := make([]transport.Message, 0, len(all))
	for _, m := range all {
		if at := m.ReceivedAt(); at.IsZero() || !at.Before(since) {
			kept = append(kept, m)
		}
	}
	return kept, nil
}

// lookupSet maps lowercased addresses to their targets. With a manual
// address only that address is matched; otherwise every registry vendor
// is, the first occurrence of an address winning.
func (e *Engine) lookupSet(manual string) map[string]model.Target {
	if manual = strings.TrimSpace(manual); manual != "" {
		t := model.ManualTarget(manual)
		return map[string]model.Target{t.Vendor.Email: t}
	}

	targets := e.cfg.Registry.Snapshot().Targets()
	lookup := make(map[string]model.Target, len(targets))
	for _, t := range targets {
		key := strings.ToLower(t.Vendor.Email)
		if _, dup := lookup[key]; !dup {
			lookup[key] = t
		}
	}
	return lookup
}

func (e *Engine) matchMessage(m transport.Message, lookup map[string]model.Target) ItemResult {
	subject := m.Subject()
	desc := m.Sender()

	addr, stage, ok := e.cfg.Resolver.Resolve(desc)
	if !ok {
		e.reportf("Skipped a mail because the sender address could not be determined (subject=%s).", subject)
		e.cfg.Audit.Append(model.ActionFetchSkipped, "", []string{desc.DisplayName}, "No SMTP")
		return ItemResult{
			Address: desc.DisplayName,
			Subject: subject,
			Action:  model.ActionFetchSkipped,
			Status:  StatusSkipped,
			Detail:  "sender unresolved",
		}
	}
	e.cfg.Logger.Debug("sender resolved", "address", addr, "stage", stage)

	target, ok := lookup[addr]
	if !ok {
		e.reportf("Skipped mail from %s (no match).", addr)
		e.cfg.Audit.Append(model.ActionFetchSkipped, "", []string{addr}, "subject="+subject)
		return ItemResult{
			Address: addr,
			Subject: subject,
			Action:  model.ActionFetchSkipped,
			Status:  StatusSkipped,
			Detail:  "no matching vendor",
		}
	}

	res := ItemResult{
		Address:  addr,
		Supplier: target.Supplier,
		Subject:  subject,
		Action:   model.ActionFetch,
		Status:   StatusOK,
	}

	folder, err := e.cfg.Folders.FolderFor(target.Supplier, target.Vendor.Email)
	if err != nil {
		serr := &SaveError{Stage: StageFolder, Err: err}
		e.reportf("Error processing mail from %s: %v", addr, serr)
		e.cfg.Audit.Append(model.ActionFetchSkipped, target.Supplier, []string{addr}, serr.Error())
		res.Action = model.ActionFetchSkipped
		res.Status = StatusFailed
		res.Errs = append(res.Errs, serr)
		return res
	}
	e.warnShared(folder, target.Supplier, target.Vendor.Email)

	msgPath := folders.UniqueMessagePath(folder.Base, "mail_", e.cfg.Now())
	if err := saveMessage(m, msgPath); err != nil {
		e.reportf("Warning: Could not save message for %s: %v", addr, err)
		res.Errs = append(res.Errs, err)
		res.Status = StatusPartial
	} else {
		res.Path = msgPath
	}

	saved, errs := e.saveAttachments(m, folder.Quotations, addr)
	res.Attachments = saved
	if len(errs) > 0 {
		res.Errs = append(res.Errs, errs...)
		res.Status = StatusPartial
	}

	e.reportf("Fetched mail from %s for supplier %s.", addr, target.Supplier)
	e.cfg.Audit.Append(model.ActionFetch, target.Supplier, []string{addr}, "subject="+subject)
	return res
}

// saveMessage writes m in the first format that succeeds.
func saveMessage(m transport.Message, path string) error {
	var errs []error
	for _, f := range messageFormats {
		err := m.SaveAs(path, f)
		if err == nil {
			return nil
		}
		errs = append(errs, fmt.Errorf("%s: %w", f, err))
	}
	return &SaveError{Stage: StageMessage, Path: path, Err: errors.Join(errs...)}
}

// saveAttachments stores every attachment under dir, continuing past
// individual failures.
func (e *Engine) saveAttachments(m transport.Message, dir, addr string) ([]string, []error) {
	atts, err := m.Attachments()
	if err != nil {
		e.reportf("Attachment save failed for %s: %v", addr, err)
		return nil, []error{&SaveError{Stage: StageAttachment, Err: err}}
	}
	if len(atts) == 0 {
		return nil, nil
	}

	var saved []string
	var errs []error
	for _, att := range atts {
		name := att.Filename()
		if strings.TrimSpace(name) == "" {
			name = "attachment"
		}
		path := folders.UniquePath(filepath.Join(dir, folders.Sanitize(name, folders.DefaultMaxLength)))
		if filepath.Dir(path) != filepath.Clean(dir) {
			err := fmt.Errorf("attachment name %q leaves %s", name, dir)
			e.reportf("Failed to save one attachment for %s: %v", addr, err)
			errs = append(errs, &SaveError{Stage: StageAttachment, Path: path, Err: err})
			continue
		}
		if err := att.SaveAs(path); err != nil {
			e.reportf("Failed to save one attachment for %s: %v", addr, err)
			errs = append(errs, &SaveError{Stage: StageAttachment, Path: path, Err: err})
			continue
		}
		e.reportf("Saved attachment for %s: %s", addr, path)
		saved = append(saved, path)
	}

	if len(saved) == 0 {
		e.report("Attachment save attempted but none saved.")
	}
	return saved, errs
}
