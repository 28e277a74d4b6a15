package engine

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/akashrathod3565/Vendor-Automation-Application/internal/folders"
	"github.com/akashrathod3565/Vendor-Automation-Application/internal/model"
	"github.com/akashrathod3565/Vendor-Automation-Application/internal/template"
	"github.com/akashrathod3565/Vendor-Automation-Application/internal/transport"
)

// Dispatch composes an RFQ for the manual address or for every registry
// vendor, persists each draft through the strategy list and optionally
// transmits it. Failures for one vendor never stop the others.
func (e *Engine) Dispatch(ctx context.Context, req DispatchRequest) *Report {
	rep := e.newReport(model.RunKindDispatch, req.Trigger)
	defer e.finish(ctx, rep)

	targets := e.dispatchTargets(req.ManualEmail)

	// The session is opened for the first valid target. Invalid targets
	// are skipped and audited even when the store is unreachable.
	var sess transport.Session
	var connErr error
	defer func() {
		if sess != nil {
			e.closeSession(sess)
		}
	}()

	processed := 0
	for _, t := range targets {
		if err := ctx.Err(); err != nil {
			e.reportf("Dispatch cancelled: %v", err)
			rep.Err = err
			rep.State = StateFailed
			return rep
		}

		if !validAddress(t.Vendor.Email) {
			rep.add(e.skipInvalid(t))
			continue
		}
		if connErr != nil {
			continue
		}
		if sess == nil {
			sess, connErr = e.connect(ctx)
			if connErr != nil {
				e.reportf("Could not connect to the mail store: %v", connErr)
				continue
			}
		}
		if processed > 0 && e.cfg.Throttle > 0 {
			e.cfg.Sleep(e.cfg.Throttle)
		}
		processed++
		rep.add(e.dispatchOne(ctx, sess, t, req))
	}

	if connErr != nil {
		rep.Err = connErr
		rep.State = StateFailed
		return rep
	}
	e.reportf("Dispatch completed for %d vendor(s).", processed)
	rep.State = StateDone
	return rep
}

func (e *Engine) dispatchTargets(manual string) []model.Target {
	if strings.TrimSpace(manual) != "" {
		return []model.Target{model.ManualTarget(manual)}
	}
	return e.cfg.Registry.Snapshot().Targets()
}

func validAddress(addr string) bool {
	addr = strings.TrimSpace(addr)
	return addr != "" && strings.Contains(addr, "@")
}

func (e *Engine) skipInvalid(t model.Target) ItemResult {
	addr := strings.TrimSpace(t.Vendor.Email)
	e.reportf("Skipping invalid vendor email: %s", addr)
	e.cfg.Audit.Append(model.ActionSendSkipped, t.Supplier, []string{addr}, "Invalid email")
	return ItemResult{
		Address:  addr,
		Supplier: t.Supplier,
		Action:   model.ActionSendSkipped,
		Status:   StatusSkipped,
		Detail:   "invalid address",
	}
}

func (e *Engine) dispatchOne(ctx context.Context, sess transport.Session, t model.Target, req DispatchRequest) ItemResult {
	addr := strings.TrimSpace(t.Vendor.Email)
	res := ItemResult{Address: addr, Supplier: t.Supplier, Subject: req.Subject}

	body, ok := e.cfg.Renderer.Render(req.BodyTemplate, map[string]string{
		template.VarSupplierName:  t.Supplier,
		template.VarVendorName:    t.Vendor.DisplayName,
		template.VarVendorAddress: t.Vendor.Address,
		template.VarCC:            strings.TrimSpace(t.Vendor.CC),
	})
	if !ok {
		e.cfg.Logger.Warn("body template could not be rendered, using it verbatim", "vendor", addr)
	}

	draft, err := sess.NewDraft(ctx)
	if err != nil {
		e.reportf("Error creating mail item for %s: %v", addr, err)
		e.cfg.Audit.Append(model.ActionSendError, t.Supplier, []string{addr}, "create draft failed: "+err.Error())
		res.Action = model.ActionSendError
		res.Status = StatusFailed
		res.Errs = append(res.Errs, err)
		return res
	}

	fields := transport.DraftFields{
		To:       addr,
		CC:       MergeCC(t.Vendor.CC, req.ManualCC),
		Subject:  req.Subject,
		Body:     body,
		IsMarkup: template.IsMarkup(body),
	}
	draft.SetFields(fields)
	e.attach(draft, req.AttachmentPath, addr)

	persisted := e.persistDraft(ctx, draft, t, fields, &res)

	if req.AutoSend {
		if err := draft.Transmit(ctx); err != nil {
			txErr := &TransmitError{Recipient: addr, Err: err}
			e.reportf("Send failed for %s: %v", addr, err)
			e.cfg.Audit.Append(model.ActionSendError, t.Supplier, []string{addr}, err.Error())
			res.Action = model.ActionSendError
			res.Errs = append(res.Errs, txErr)
			if persisted {
				res.Status = StatusPartial
			} else {
				res.Status = StatusFailed
			}
			return res
		}
		e.reportf("Sent RFQ to %s", addr)
		e.cfg.Audit.Append(model.ActionSend, t.Supplier, []string{addr}, "")
		res.Action = model.ActionSend
		if res.Status == StatusFailed {
			res.Status = StatusPartial
		}
	}
	return res
}

// attach adds the configured attachment when the file exists. A missing
// or unreadable attachment never fails the dispatch.
func (e *Engine) attach(d transport.Draft, path, addr string) {
	if strings.TrimSpace(path) == "" {
		return
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}
	if _, err := os.Stat(abs); err != nil {
		e.reportf("Attachment not found, skipping attach: %s", abs)
		return
	}
	if err := d.Attach(abs); err != nil {
		e.reportf("Warning: Could not add attachment to mail for %s: %v", addr, err)
	}
}

// persistDraft saves the draft to the store's drafts folder and then runs
// the local strategy list. It records the outcome on res and in the audit
// log and reports whether any local copy was written.
func (e *Engine) persistDraft(
	ctx context.Context,
	d transport.Draft,
	t model.Target,
	fields transport.DraftFields,
	res *ItemResult,
) bool {
	addr := fields.To

	folder, err := e.cfg.Folders.FolderFor(t.Supplier, addr)
	if err != nil {
		serr := &SaveError{Stage: StageFolder, Err: err}
		e.reportf("Warning: Could not determine outbox path for %s: %v", addr, err)
		e.cfg.Audit.Append(model.ActionSendDraftFailed, t.Supplier, []string{addr}, serr.Error())
		res.Action = model.ActionSendDraftFailed
		res.Status = StatusFailed
		res.Errs = append(res.Errs, serr)
		return false
	}
	e.warnShared(folder, t.Supplier, addr)

	if err := d.Save(ctx); err != nil {
		e.reportf("Warning: saving draft to the mail store failed for %s: %v", addr, err)
		res.Errs = append(res.Errs, &SaveError{Stage: StageDraftStore, Err: err})
	}

	target := PersistTarget{
		MsgPath:        folders.UniqueMessagePath(folder.Outbox, "rfq_", e.cfg.Now()),
		AttachmentsDir: folder.Attachments(),
		Fields:         fields,
	}
	out := Persist(e.cfg.Strategies, d, target)
	res.Errs = append(res.Errs, out.Failures...)
	res.Errs = append(res.Errs, out.Warnings...)

	if !out.OK() {
		err := out.Err()
		e.reportf("Warning: Could not save draft for %s: %v", addr, err)
		e.cfg.Audit.Append(model.ActionSendDraftFailed, t.Supplier, []string{addr}, err.Error())
		res.Action = model.ActionSendDraftFailed
		res.Status = StatusFailed
		return false
	}

	res.Action = out.Strategy.Action
	res.Path = out.Path
	res.Status = StatusOK
	if len(out.Failures) > 0 || len(out.Warnings) > 0 {
		res.Detail = "saved with " + out.Strategy.Name + " strategy"
	}

	switch out.Strategy.Action {
	case model.ActionSendDraftTxt:
		res.Status = StatusPartial
		for _, w := range out.Warnings {
			e.reportf("Warning: %v", w)
		}
		e.reportf("Saved fallback TXT for %s at %s", addr, out.Path)
		e.cfg.Audit.Append(model.ActionSendDraftTxt, t.Supplier, []string{addr}, out.Path)
	default:
		suffix := ""
		if out.Strategy.Name != StagePreferred {
			suffix = " (" + out.Strategy.Name + " format)"
		}
		e.reportf("Draft saved for %s at %s%s", addr, out.Path, suffix)
		e.cfg.Audit.Append(out.Strategy.Action, t.Supplier, []string{addr}, "attachment="+attachmentNames(d.Attachments()))
	}
	return true
}

// attachmentNames joins the base names of the attached files.
func attachmentNames(paths []string) string {
	names := make([]string, len(paths))
	for i, p := range paths {
		names[i] = filepath.Base(p)
	}
	return strings.Join(names, ";")
}

// MergeCC combines the vendor's CC cell and a manual CC override. Entries
// may be separated by ';' or ','; only address-shaped entries are kept and
// duplicates are dropped case-insensitively, first occurrence winning.
func MergeCC(lists ...string) []string {
	var out []string
	seen := make(map[string]bool)
	for _, list := range lists {
		for _, part := range strings.FieldsFunc(list, func(r rune) bool { return r == ';' || r == ',' }) {
			addr := strings.TrimSpace(part)
			if !strings.Contains(addr, "@") {
				continue
			}
			key := strings.ToLower(addr)
			if seen[key] {
				continue
			}
			seen[key] = true
			out = append(out, addr)
		}
	}
	return out
}
