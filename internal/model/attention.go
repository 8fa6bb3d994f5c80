package model

import (
	"fmt"
	"time"
)

type AttentionStatus string

const (
	AttentionActive    AttentionStatus = "active"
	AttentionDismissed AttentionStatus = "dismissed"
	AttentionSnoozed   AttentionStatus = "snoozed"
	AttentionActed     AttentionStatus = "acted"
)

type DismissReason string

const (
	DismissNotActionable DismissReason = "not_actionable"
	DismissHandled       DismissReason = "handled"
	DismissFalsePositive DismissReason = "false_positive"
)

// Retention windows per status. Dismissed items are kept just long
// enough that re-analysis cannot resurface them.
const (
	ActiveTTL    = 30 * 24 * time.Hour
	DismissedTTL = 7 * 24 * time.Hour
)

func (r DismissReason) Valid() bool {
	switch r {
	case DismissNotActionable, DismissHandled, DismissFalsePositive:
		return true
	}
	return false
}

// AttentionItem is a persisted verdict that one email needs human
// action. (account, email_id) is unique.
type AttentionItem struct {
	ID              int64           `json:"id"`
	Account         AccountID       `json:"account"`
	EmailID         string          `json:"email_id"`
	From            string          `json:"from"`
	Subject         string          `json:"subject"`
	Method          AnalysisMethod  `json:"analysis_method"`
	MatchedRole     string          `json:"matched_role,omitempty"`
	Confidence      float64         `json:"confidence"`
	Rationale       string          `json:"rationale"`
	Status          AttentionStatus `json:"status"`
	DismissedReason DismissReason   `json:"dismissed_reason,omitempty"`
	SnoozedUntil    *time.Time      `json:"snoozed_until,omitempty"`
	FirstViewedAt   *time.Time      `json:"first_viewed_at,omitempty"`
	ActedAt         *time.Time      `json:"acted_at,omitempty"`
	ActionType      string          `json:"action_type,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
	StatusChangedAt time.Time       `json:"status_changed_at"`
}

// ExpiresAt returns the moment this item becomes eligible for purge,
// per-status retention.
func (i *AttentionItem) ExpiresAt() time.Time {
	if i.Status == AttentionDismissed {
		return i.StatusChangedAt.Add(DismissedTTL)
	}
	return i.StatusChangedAt.Add(ActiveTTL)
}

func (i *AttentionItem) Expired(now time.Time) bool {
	return now.After(i.ExpiresAt())
}

// Validate checks the classification fields before persisting.
func (i *AttentionItem) Validate() error {
	if i.Account == "" {
		return fmt.Errorf("%w: account required", ErrValidation)
	}
	if i.EmailID == "" {
		return fmt.Errorf("%w: email_id required", ErrValidation)
	}
	if !i.Method.Valid() {
		return fmt.Errorf("%w: analysis method %q", ErrValidation, i.Method)
	}
	if i.Confidence < 0 || i.Confidence > 1 {
		return fmt.Errorf("%w: confidence %f out of range", ErrValidation, i.Confidence)
	}
	return nil
}
