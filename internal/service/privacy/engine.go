package privacy

import (
	"strings"

	"attention-engine/internal/model"
	"attention-engine/internal/service/patterns"
)

// Engine decides whether an email's body may be shown to the semantic
// tier. It is a pure decision function over a snapshot of the GLOBAL
// blocklist; callers rebuild it per analysis run.
type Engine struct {
	lib  *patterns.Library
	soft map[string]bool // blocked senders, overridable
	hard map[string]bool // blocked senders, never overridable
}

func NewEngine(lib *patterns.Library, blocklist []model.BlocklistEntry) *Engine {
	e := &Engine{
		lib:  lib,
		soft: make(map[string]bool),
		hard: make(map[string]bool),
	}
	for _, entry := range blocklist {
		sender := strings.ToLower(entry.Sender)
		if entry.Hard {
			e.hard[sender] = true
		} else {
			e.soft[sender] = true
		}
	}
	return e
}

// Evaluate applies the check order sender blocklist → sensitive domain
// → sensitive label; the first match is the reported reason. Unknown
// senders fail open: the earlier tiers never need body text, so an
// over-strict default would only hurt the semantic tier.
//
// An override is granted for this call only and never persisted. Hard
// blocklist entries are not overridable.
func (e *Engine) Evaluate(email model.Email, overrideRequested bool) model.PrivacyDecision {
	sender := strings.ToLower(email.From)

	if e.hard[sender] {
		return model.PrivacyDecision{
			CanSeeBody:    false,
			BlockedReason: model.BlockedSender,
		}
	}

	var reason model.BlockedReason
	switch {
	case e.soft[sender]:
		reason = model.BlockedSender
	case e.lib.IsSensitiveDomain(email.From):
		reason = model.BlockedDomain
	case e.lib.HasSensitiveLabel(email.Labels):
		reason = model.BlockedLabel
	default:
		return model.PrivacyDecision{CanSeeBody: true}
	}

	if overrideRequested {
		return model.PrivacyDecision{
			CanSeeBody:      true,
			BlockedReason:   reason,
			OverrideGranted: true,
		}
	}
	return model.PrivacyDecision{
		CanSeeBody:    false,
		BlockedReason: reason,
	}
}
