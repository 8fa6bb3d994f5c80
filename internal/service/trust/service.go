package trust

import (
	"context"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"attention-engine/internal/model"
	"attention-engine/pkg/metrics"
)

// SuggestionStore is the persistence port for one-off action
// suggestions.
type SuggestionStore interface {
	Upsert(ctx context.Context, s *model.ActionSuggestion) error
	ListByStatus(ctx context.Context, account model.AccountID, status model.SuggestionStatus) ([]model.ActionSuggestion, error)
	Find(ctx context.Context, account model.AccountID, id string) (*model.ActionSuggestion, error)
	SetDecision(ctx context.Context, account model.AccountID, id string, status model.SuggestionStatus, rejectionReason string, decidedAt time.Time) error
	PurgeExpired(ctx context.Context, now time.Time) (int, error)
}

// RuleStore is the persistence port for proposed categorization rules.
type RuleStore interface {
	Upsert(ctx context.Context, r *model.RuleSuggestion) error
	ListByStatus(ctx context.Context, account model.AccountID, status model.SuggestionStatus) ([]model.RuleSuggestion, error)
	Find(ctx context.Context, account model.AccountID, id string) (*model.RuleSuggestion, error)
	SetDecision(ctx context.Context, account model.AccountID, id string, status model.SuggestionStatus, rejectionReason string, decidedAt time.Time) error
	PurgeExpired(ctx context.Context, now time.Time) (int, error)
}

// Ledger is the append-only decision history.
type Ledger interface {
	Append(ctx context.Context, d *model.Decision) error
	ListByAccountSince(ctx context.Context, account model.AccountID, since time.Time) ([]model.Decision, error)
	ListSince(ctx context.Context, since time.Time) ([]model.Decision, error)
}

// Service records approve/reject decisions and derives the acceptance
// statistics that drive the trust gradient.
type Service struct {
	suggestions SuggestionStore
	rules       RuleStore
	ledger      Ledger
	logger      *zap.Logger
	now         func() time.Time
}

func NewService(suggestions SuggestionStore, rules RuleStore, ledger Ledger, logger *zap.Logger) *Service {
	return &Service{
		suggestions: suggestions,
		rules:       rules,
		ledger:      ledger,
		logger:      logger,
		now:         time.Now,
	}
}

// WithClock overrides the service clock. Tests only.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

func (s *Service) ListSuggestions(ctx context.Context, account model.AccountID, status model.SuggestionStatus) ([]model.ActionSuggestion, error) {
	return s.suggestions.ListByStatus(ctx, account, status)
}

func (s *Service) ListRules(ctx context.Context, account model.AccountID, status model.SuggestionStatus) ([]model.RuleSuggestion, error) {
	return s.rules.ListByStatus(ctx, account, status)
}

func decisionStatus(approved bool) model.SuggestionStatus {
	if approved {
		return model.SuggestionApproved
	}
	return model.SuggestionRejected
}

// DecideSuggestion records the human's verdict on a suggestion. It is
// idempotent on the store row — re-deciding overwrites status and
// timestamp — but every call appends a fresh ledger entry: the row is
// current state, the ledger is history.
func (s *Service) DecideSuggestion(ctx context.Context, account model.AccountID, id string, approved bool, rejectionReason string) (*model.ActionSuggestion, error) {
	sg, err := s.suggestions.Find(ctx, account, id)
	if err != nil {
		return nil, err
	}

	now := s.now()
	status := decisionStatus(approved)
	if err := s.suggestions.SetDecision(ctx, account, id, status, rejectionReason, now); err != nil {
		return nil, err
	}

	entry := &model.Decision{
		Account:         account,
		Kind:            model.DecisionSuggestion,
		TargetID:        id,
		Approved:        approved,
		RejectionReason: rejectionReason,
		Method:          sg.Method,
		Action:          sg.Action,
		Pattern:         sg.Pattern,
		DecidedAt:       now,
	}
	if err := s.ledger.Append(ctx, entry); err != nil {
		return nil, fmt.Errorf("failed to append decision ledger entry: %w", err)
	}

	metrics.IncrementSuggestionDecision("suggestion", string(status))
	s.logger.Info("Suggestion decided",
		zap.String("account", account.String()),
		zap.String("suggestion_id", id),
		zap.Bool("approved", approved),
	)

	sg.Status = status
	sg.RejectionReason = rejectionReason
	sg.DecidedAt = &now
	return sg, nil
}

// DecideRule is the rule-proposal equivalent of DecideSuggestion.
func (s *Service) DecideRule(ctx context.Context, account model.AccountID, id string, approved bool, rejectionReason string) (*model.RuleSuggestion, error) {
	rule, err := s.rules.Find(ctx, account, id)
	if err != nil {
		return nil, err
	}

	now := s.now()
	status := decisionStatus(approved)
	if err := s.rules.SetDecision(ctx, account, id, status, rejectionReason, now); err != nil {
		return nil, err
	}

	entry := &model.Decision{
		Account:         account,
		Kind:            model.DecisionRule,
		TargetID:        id,
		Approved:        approved,
		RejectionReason: rejectionReason,
		Action:          rule.Action,
		Pattern:         rule.Value,
		DecidedAt:       now,
	}
	if err := s.ledger.Append(ctx, entry); err != nil {
		return nil, fmt.Errorf("failed to append decision ledger entry: %w", err)
	}

	metrics.IncrementSuggestionDecision("rule", string(status))
	s.logger.Info("Rule proposal decided",
		zap.String("account", account.String()),
		zap.String("rule_id", id),
		zap.Bool("approved", approved),
	)

	rule.Status = status
	rule.RejectionReason = rejectionReason
	rule.DecidedAt = &now
	return rule, nil
}

// RateCount is an approval breakdown for one method or action.
type RateCount struct {
	Approved int     `json:"approved"`
	Rejected int     `json:"rejected"`
	Rate     float64 `json:"rate"`
}

// Stats is the acceptance-rate summary over a time window.
type Stats struct {
	Total        int                  `json:"total"`
	Approved     int                  `json:"approved"`
	Rejected     int                  `json:"rejected"`
	ApprovalRate float64              `json:"approval_rate"`
	ByMethod     map[string]RateCount `json:"by_method"`
	ByAction     map[string]RateCount `json:"by_action"`
}

// ComputeStats aggregates the ledger for one account over the last
// windowDays. Read-only: nothing on the classification hot path waits
// on it.
func (s *Service) ComputeStats(ctx context.Context, account model.AccountID, windowDays int) (*Stats, error) {
	if windowDays <= 0 {
		return nil, fmt.Errorf("%w: window_days must be positive", model.ErrValidation)
	}

	since := s.now().AddDate(0, 0, -windowDays)
	decisions, err := s.ledger.ListByAccountSince(ctx, account, since)
	if err != nil {
		return nil, err
	}

	stats := &Stats{
		ByMethod: make(map[string]RateCount),
		ByAction: make(map[string]RateCount),
	}
	for _, d := range decisions {
		stats.Total++
		if d.Approved {
			stats.Approved++
		} else {
			stats.Rejected++
		}
		if d.Method != "" {
			bump(stats.ByMethod, string(d.Method), d.Approved)
		}
		if d.Action != "" {
			bump(stats.ByAction, string(d.Action), d.Approved)
		}
	}
	if stats.Total > 0 {
		stats.ApprovalRate = float64(stats.Approved) / float64(stats.Total)
	}
	for k, v := range stats.ByMethod {
		stats.ByMethod[k] = withRate(v)
	}
	for k, v := range stats.ByAction {
		stats.ByAction[k] = withRate(v)
	}
	return stats, nil
}

func bump(m map[string]RateCount, key string, approved bool) {
	c := m[key]
	if approved {
		c.Approved++
	} else {
		c.Rejected++
	}
	m[key] = c
}

func withRate(c RateCount) RateCount {
	if total := c.Approved + c.Rejected; total > 0 {
		c.Rate = float64(c.Approved) / float64(total)
	}
	return c
}

// RejectionPattern is a pattern the user keeps rejecting — a candidate
// for promotion into the exclusion set.
type RejectionPattern struct {
	Pattern    string `json:"pattern"`
	Rejections int    `json:"rejections"`
}

// RejectionPatterns returns patterns rejected at least minRejections
// times within the window, most-rejected first. Mining is global
// across accounts: noise is noise in every mailbox.
func (s *Service) RejectionPatterns(ctx context.Context, windowDays, minRejections int) ([]RejectionPattern, error) {
	if windowDays <= 0 || minRejections <= 0 {
		return nil, fmt.Errorf("%w: window_days and min_rejections must be positive", model.ErrValidation)
	}

	since := s.now().AddDate(0, 0, -windowDays)
	decisions, err := s.ledger.ListSince(ctx, since)
	if err != nil {
		return nil, err
	}

	counts := make(map[string]int)
	for _, d := range decisions {
		if d.Approved || d.Pattern == "" {
			continue
		}
		counts[d.Pattern]++
	}

	out := []RejectionPattern{}
	for pattern, n := range counts {
		if n >= minRejections {
			out = append(out, RejectionPattern{Pattern: pattern, Rejections: n})
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Rejections != out[j].Rejections {
			return out[i].Rejections > out[j].Rejections
		}
		return out[i].Pattern < out[j].Pattern
	})
	return out, nil
}

// UpsertSuggestion validates and stores a generated suggestion.
func (s *Service) UpsertSuggestion(ctx context.Context, sg *model.ActionSuggestion) error {
	if err := sg.Validate(); err != nil {
		return err
	}
	return s.suggestions.Upsert(ctx, sg)
}

// UpsertRule validates and stores a generated rule proposal.
func (s *Service) UpsertRule(ctx context.Context, r *model.RuleSuggestion) error {
	if err := r.Validate(); err != nil {
		return err
	}
	return s.rules.Upsert(ctx, r)
}

// PurgeExpired removes decided suggestions and rules past retention.
func (s *Service) PurgeExpired(ctx context.Context) (int, error) {
	now := s.now()
	ns, err := s.suggestions.PurgeExpired(ctx, now)
	if err != nil {
		return 0, err
	}
	metrics.IncrementPurgedItems("suggestion", ns)
	nr, err := s.rules.PurgeExpired(ctx, now)
	if err != nil {
		return ns, err
	}
	metrics.IncrementPurgedItems("rule", nr)
	return ns + nr, nil
}
