package model

import (
	"fmt"
	"time"
)

type SuggestionStatus string

const (
	SuggestionPending  SuggestionStatus = "pending"
	SuggestionApproved SuggestionStatus = "approved"
	SuggestionRejected SuggestionStatus = "rejected"
)

type SuggestionAction string

const (
	ActionArchive     SuggestionAction = "archive"
	ActionLabel       SuggestionAction = "label"
	ActionCreateTask  SuggestionAction = "create_task"
	ActionDelete      SuggestionAction = "delete"
	ActionUnsubscribe SuggestionAction = "unsubscribe"
)

// Retention windows after a decision. Rejected suggestions are kept a
// short while so rejection patterns can still be mined.
const (
	ApprovedTTL = 30 * 24 * time.Hour
	RejectedTTL = 7 * 24 * time.Hour
)

func (s SuggestionStatus) Valid() bool {
	switch s {
	case SuggestionPending, SuggestionApproved, SuggestionRejected:
		return true
	}
	return false
}

func (a SuggestionAction) Valid() bool {
	switch a {
	case ActionArchive, ActionLabel, ActionCreateTask, ActionDelete, ActionUnsubscribe:
		return true
	}
	return false
}

// ActionSuggestion is a proposed one-off mailbox action awaiting human
// approval.
type ActionSuggestion struct {
	ID              string           `json:"id"`
	Account         AccountID        `json:"account"`
	EmailID         string           `json:"email_id"`
	Action          SuggestionAction `json:"action"`
	Label           string           `json:"label,omitempty"`
	Rationale       string           `json:"rationale"`
	Confidence      float64          `json:"confidence"`
	Method          AnalysisMethod   `json:"analysis_method"`
	Pattern         string           `json:"pattern,omitempty"`
	Status          SuggestionStatus `json:"status"`
	RejectionReason string           `json:"rejection_reason,omitempty"`
	CreatedAt       time.Time        `json:"created_at"`
	DecidedAt       *time.Time       `json:"decided_at,omitempty"`
}

func (s *ActionSuggestion) Validate() error {
	if s.Account == "" || s.EmailID == "" {
		return fmt.Errorf("%w: account and email_id required", ErrValidation)
	}
	if !s.Action.Valid() {
		return fmt.Errorf("%w: action %q", ErrValidation, s.Action)
	}
	if s.Confidence < 0 || s.Confidence > 1 {
		return fmt.Errorf("%w: confidence %f out of range", ErrValidation, s.Confidence)
	}
	return nil
}

// ExpiresAt is only meaningful once the suggestion has been decided;
// pending suggestions never expire.
func (s *ActionSuggestion) ExpiresAt() (time.Time, bool) {
	if s.DecidedAt == nil {
		return time.Time{}, false
	}
	switch s.Status {
	case SuggestionApproved:
		return s.DecidedAt.Add(ApprovedTTL), true
	case SuggestionRejected:
		return s.DecidedAt.Add(RejectedTTL), true
	}
	return time.Time{}, false
}

// RuleSuggestion proposes a persistent categorization rule, as opposed
// to a one-off action.
type RuleSuggestion struct {
	ID              string           `json:"id"`
	Account         AccountID        `json:"account"`
	Field           string           `json:"field"`    // from, subject, label
	Operator        string           `json:"operator"` // contains, equals, matches
	Value           string           `json:"value"`
	Action          SuggestionAction `json:"action"`
	Rationale       string           `json:"rationale"`
	Confidence      float64          `json:"confidence"`
	ExampleCount    int              `json:"example_count"`
	Status          SuggestionStatus `json:"status"`
	RejectionReason string           `json:"rejection_reason,omitempty"`
	CreatedAt       time.Time        `json:"created_at"`
	DecidedAt       *time.Time       `json:"decided_at,omitempty"`
}

func (r *RuleSuggestion) Validate() error {
	if r.Account == "" {
		return fmt.Errorf("%w: account required", ErrValidation)
	}
	switch r.Field {
	case "from", "subject", "label":
	default:
		return fmt.Errorf("%w: rule field %q", ErrValidation, r.Field)
	}
	switch r.Operator {
	case "contains", "equals", "matches":
	default:
		return fmt.Errorf("%w: rule operator %q", ErrValidation, r.Operator)
	}
	if !r.Action.Valid() {
		return fmt.Errorf("%w: action %q", ErrValidation, r.Action)
	}
	return nil
}

func (r *RuleSuggestion) ExpiresAt() (time.Time, bool) {
	if r.DecidedAt == nil {
		return time.Time{}, false
	}
	switch r.Status {
	case SuggestionApproved:
		return r.DecidedAt.Add(ApprovedTTL), true
	case SuggestionRejected:
		return r.DecidedAt.Add(RejectedTTL), true
	}
	return time.Time{}, false
}

// DecisionKind separates one-off suggestions from rule proposals in
// the ledger.
type DecisionKind string

const (
	DecisionSuggestion DecisionKind = "suggestion"
	DecisionRule       DecisionKind = "rule"
)

// Decision is one immutable ledger entry. The ledger is a full
// history: re-deciding the same suggestion appends a new row.
type Decision struct {
	ID              int64            `json:"id"`
	Account         AccountID        `json:"account"`
	Kind            DecisionKind     `json:"kind"`
	TargetID        string           `json:"target_id"`
	Approved        bool             `json:"approved"`
	RejectionReason string           `json:"rejection_reason,omitempty"`
	Method          AnalysisMethod   `json:"analysis_method,omitempty"`
	Action          SuggestionAction `json:"action,omitempty"`
	Pattern         string           `json:"pattern,omitempty"`
	DecidedAt       time.Time        `json:"decided_at"`
}
