package model

import "time"

// Action identifies the kind of engine action recorded in the audit log.
type Action string

const (
	ActionFetch           Action = "fetch"
	ActionFetchSkipped    Action = "fetch_skipped"
	ActionSend            Action = "send"
	ActionSendDraft       Action = "send_draft"
	ActionSendDraftTxt    Action = "send_draft_txt"
	ActionSendError       Action = "send_error"
	ActionSendDraftFailed Action = "send_draft_failed"
	ActionSendSkipped     Action = "send_skipped"
)

// Actions lists every audit action in declaration order.
func Actions() []Action {
	return []Action{
		ActionFetch,
		ActionFetchSkipped,
		ActionSend,
		ActionSendDraft,
		ActionSendDraftTxt,
		ActionSendError,
		ActionSendDraftFailed,
		ActionSendSkipped,
	}
}

// AuditEntry is one append-only record of an engine action.
type AuditEntry struct {
	Timestamp    time.Time
	Action       Action
	Supplier     string
	VendorEmails []string
	Details      string
}
