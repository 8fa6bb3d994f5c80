package model

import "time"

// BlockedReason enumerates why an email's body may not be shown to the
// semantic tier. Check order is fixed; the first match wins.
type BlockedReason string

const (
	BlockedSender BlockedReason = "sender_blocklist"
	BlockedDomain BlockedReason = "sensitive_domain"
	BlockedLabel  BlockedReason = "sensitive_label"
)

// BlocklistEntry is one row of the GLOBAL sender blocklist. Hard
// entries can never be overridden, not even per call.
type BlocklistEntry struct {
	ID        int64     `json:"id"`
	Sender    string    `json:"sender"`
	Hard      bool      `json:"hard"`
	Note      string    `json:"note,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// PrivacyDecision is the result of evaluating one email against the
// privacy policy. OverrideGranted applies to this call only and is
// never persisted.
type PrivacyDecision struct {
	CanSeeBody      bool          `json:"can_see_body"`
	BlockedReason   BlockedReason `json:"blocked_reason,omitempty"`
	OverrideGranted bool          `json:"override_granted"`
}
