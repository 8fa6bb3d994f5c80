package trust

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"attention-engine/internal/model"
)

type fakeSuggestionStore struct {
	items map[string]*model.ActionSuggestion
}

func newFakeSuggestionStore() *fakeSuggestionStore {
	return &fakeSuggestionStore{items: make(map[string]*model.ActionSuggestion)}
}

func sgKey(account model.AccountID, id string) string {
	return account.String() + "/" + id
}

func (f *fakeSuggestionStore) Upsert(_ context.Context, s *model.ActionSuggestion) error {
	k := sgKey(s.Account, s.ID)
	if _, ok := f.items[k]; ok {
		// decision state survives regeneration
		return nil
	}
	cp := *s
	f.items[k] = &cp
	return nil
}

func (f *fakeSuggestionStore) ListByStatus(_ context.Context, account model.AccountID, status model.SuggestionStatus) ([]model.ActionSuggestion, error) {
	var out []model.ActionSuggestion
	for _, s := range f.items {
		if s.Account == account && s.Status == status {
			out = append(out, *s)
		}
	}
	return out, nil
}

func (f *fakeSuggestionStore) Find(_ context.Context, account model.AccountID, id string) (*model.ActionSuggestion, error) {
	s, ok := f.items[sgKey(account, id)]
	if !ok {
		return nil, model.ErrNotFound
	}
	cp := *s
	return &cp, nil
}

func (f *fakeSuggestionStore) SetDecision(_ context.Context, account model.AccountID, id string, status model.SuggestionStatus, reason string, decidedAt time.Time) error {
	s, ok := f.items[sgKey(account, id)]
	if !ok {
		return model.ErrNotFound
	}
	s.Status = status
	s.RejectionReason = reason
	s.DecidedAt = &decidedAt
	return nil
}

func (f *fakeSuggestionStore) PurgeExpired(_ context.Context, now time.Time) (int, error) {
	n := 0
	for k, s := range f.items {
		if exp, ok := s.ExpiresAt(); ok && now.After(exp) {
			delete(f.items, k)
			n++
		}
	}
	return n, nil
}

type fakeRuleStore struct {
	items map[string]*model.RuleSuggestion
}

func newFakeRuleStore() *fakeRuleStore {
	return &fakeRuleStore{items: make(map[string]*model.RuleSuggestion)}
}

func (f *fakeRuleStore) Upsert(_ context.Context, r *model.RuleSuggestion) error {
	k := sgKey(r.Account, r.ID)
	if _, ok := f.items[k]; ok {
		return nil
	}
	cp := *r
	f.items[k] = &cp
	return nil
}

func (f *fakeRuleStore) ListByStatus(_ context.Context, account model.AccountID, status model.SuggestionStatus) ([]model.RuleSuggestion, error) {
	var out []model.RuleSuggestion
	for _, r := range f.items {
		if r.Account == account && r.Status == status {
			out = append(out, *r)
		}
	}
	return out, nil
}

func (f *fakeRuleStore) Find(_ context.Context, account model.AccountID, id string) (*model.RuleSuggestion, error) {
	r, ok := f.items[sgKey(account, id)]
	if !ok {
		return nil, model.ErrNotFound
	}
	cp := *r
	return &cp, nil
}

func (f *fakeRuleStore) SetDecision(_ context.Context, account model.AccountID, id string, status model.SuggestionStatus, reason string, decidedAt time.Time) error {
	r, ok := f.items[sgKey(account, id)]
	if !ok {
		return model.ErrNotFound
	}
	r.Status = status
	r.RejectionReason = reason
	r.DecidedAt = &decidedAt
	return nil
}

func (f *fakeRuleStore) PurgeExpired(_ context.Context, now time.Time) (int, error) {
	return 0, nil
}

type fakeLedger struct {
	entries []model.Decision
}

func (f *fakeLedger) Append(_ context.Context, d *model.Decision) error {
	cp := *d
	cp.ID = int64(len(f.entries) + 1)
	f.entries = append(f.entries, cp)
	return nil
}

func (f *fakeLedger) ListByAccountSince(_ context.Context, account model.AccountID, since time.Time) ([]model.Decision, error) {
	var out []model.Decision
	for _, d := range f.entries {
		if d.Account == account && !d.DecidedAt.Before(since) {
			out = append(out, d)
		}
	}
	return out, nil
}

func (f *fakeLedger) ListSince(_ context.Context, since time.Time) ([]model.Decision, error) {
	var out []model.Decision
	for _, d := range f.entries {
		if !d.DecidedAt.Before(since) {
			out = append(out, d)
		}
	}
	return out, nil
}

var trustNow = time.Date(2025, 6, 10, 9, 0, 0, 0, time.UTC)

type trustFixture struct {
	svc         *Service
	suggestions *fakeSuggestionStore
	rules       *fakeRuleStore
	ledger      *fakeLedger
}

func newFixture() *trustFixture {
	f := &trustFixture{
		suggestions: newFakeSuggestionStore(),
		rules:       newFakeRuleStore(),
		ledger:      &fakeLedger{},
	}
	f.svc = NewService(f.suggestions, f.rules, f.ledger, zap.NewNop()).
		WithClock(func() time.Time { return trustNow })
	return f
}

func (f *trustFixture) seedSuggestion(t *testing.T, id string) {
	t.Helper()
	require.NoError(t, f.svc.UpsertSuggestion(context.Background(), &model.ActionSuggestion{
		ID:         id,
		Account:    "church",
		EmailID:    "m-" + id,
		Action:     model.ActionArchive,
		Method:     model.MethodRegex,
		Pattern:    `(?i)\bnewsletter\b`,
		Confidence: model.RegexConfidence,
		Status:     model.SuggestionPending,
	}))
}

func TestDecideSuggestionApprove(t *testing.T) {
	f := newFixture()
	f.seedSuggestion(t, "sg1")

	sg, err := f.svc.DecideSuggestion(context.Background(), "church", "sg1", true, "")
	require.NoError(t, err)
	assert.Equal(t, model.SuggestionApproved, sg.Status)
	require.NotNil(t, sg.DecidedAt)
	assert.Equal(t, trustNow, *sg.DecidedAt)

	require.Len(t, f.ledger.entries, 1)
	entry := f.ledger.entries[0]
	assert.Equal(t, model.DecisionSuggestion, entry.Kind)
	assert.Equal(t, "sg1", entry.TargetID)
	assert.True(t, entry.Approved)
}

func TestDecideSuggestionUnknownID(t *testing.T) {
	f := newFixture()

	_, err := f.svc.DecideSuggestion(context.Background(), "church", "nope", true, "")
	assert.ErrorIs(t, err, model.ErrNotFound)
	assert.Empty(t, f.ledger.entries)
}

func TestRedecideOverwritesRowButGrowsLedger(t *testing.T) {
	f := newFixture()
	f.seedSuggestion(t, "sg1")

	_, err := f.svc.DecideSuggestion(context.Background(), "church", "sg1", true, "")
	require.NoError(t, err)
	sg, err := f.svc.DecideSuggestion(context.Background(), "church", "sg1", false, "too noisy")
	require.NoError(t, err)

	assert.Equal(t, model.SuggestionRejected, sg.Status)
	assert.Equal(t, "too noisy", sg.RejectionReason)
	// the row holds current state; the ledger holds the full history
	assert.Len(t, f.ledger.entries, 2)
}

func TestDecideRule(t *testing.T) {
	f := newFixture()
	require.NoError(t, f.svc.UpsertRule(context.Background(), &model.RuleSuggestion{
		ID:         "rl1",
		Account:    "church",
		Field:      "from",
		Operator:   "equals",
		Value:      "bank@church.example.org",
		Action:     model.ActionLabel,
		Confidence: model.ProfileConfidence,
		Status:     model.SuggestionPending,
	}))

	rule, err := f.svc.DecideRule(context.Background(), "church", "rl1", false, "wrong label")
	require.NoError(t, err)
	assert.Equal(t, model.SuggestionRejected, rule.Status)

	require.Len(t, f.ledger.entries, 1)
	assert.Equal(t, model.DecisionRule, f.ledger.entries[0].Kind)
	assert.Equal(t, "bank@church.example.org", f.ledger.entries[0].Pattern)
}

func TestComputeStatsApprovalRate(t *testing.T) {
	f := newFixture()
	for i := 0; i < 10; i++ {
		id := fmt.Sprintf("sg%d", i)
		f.seedSuggestion(t, id)
		_, err := f.svc.DecideSuggestion(context.Background(), "church", id, i < 9, "")
		require.NoError(t, err)
	}

	stats, err := f.svc.ComputeStats(context.Background(), "church", 30)
	require.NoError(t, err)
	assert.Equal(t, 10, stats.Total)
	assert.Equal(t, 9, stats.Approved)
	assert.Equal(t, 1, stats.Rejected)
	assert.InDelta(t, 0.9, stats.ApprovalRate, 1e-9)

	byMethod := stats.ByMethod[string(model.MethodRegex)]
	assert.Equal(t, 9, byMethod.Approved)
	assert.Equal(t, 1, byMethod.Rejected)
	assert.InDelta(t, 0.9, byMethod.Rate, 1e-9)

	byAction := stats.ByAction[string(model.ActionArchive)]
	assert.InDelta(t, 0.9, byAction.Rate, 1e-9)
}

func TestComputeStatsWindowAndIsolation(t *testing.T) {
	f := newFixture()
	f.ledger.entries = []model.Decision{
		{Account: "church", Approved: true, DecidedAt: trustNow.AddDate(0, 0, -40)},
		{Account: "church", Approved: false, DecidedAt: trustNow.AddDate(0, 0, -1)},
		{Account: "personal", Approved: true, DecidedAt: trustNow},
	}

	stats, err := f.svc.ComputeStats(context.Background(), "church", 30)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Total)
	assert.Equal(t, 1, stats.Rejected)

	_, err = f.svc.ComputeStats(context.Background(), "church", 0)
	assert.ErrorIs(t, err, model.ErrValidation)
}

func TestRejectionPatternsSortedAndThresholded(t *testing.T) {
	f := newFixture()
	add := func(account model.AccountID, pattern string, approved bool) {
		f.ledger.entries = append(f.ledger.entries, model.Decision{
			Account:   account,
			Pattern:   pattern,
			Approved:  approved,
			DecidedAt: trustNow.AddDate(0, 0, -2),
		})
	}
	for i := 0; i < 4; i++ {
		add("church", "noisy", false)
	}
	// global mining: rejections from another account count too
	add("personal", "noisy", false)
	add("church", "rare", false)
	add("church", "rare", false)
	add("church", "loved", true)
	add("church", "loved", true)
	add("church", "loved", true)

	patterns, err := f.svc.RejectionPatterns(context.Background(), 30, 2)
	require.NoError(t, err)
	require.Len(t, patterns, 2)
	assert.Equal(t, RejectionPattern{Pattern: "noisy", Rejections: 5}, patterns[0])
	assert.Equal(t, RejectionPattern{Pattern: "rare", Rejections: 2}, patterns[1])
}

func TestUpsertValidates(t *testing.T) {
	f := newFixture()

	err := f.svc.UpsertSuggestion(context.Background(), &model.ActionSuggestion{
		ID: "bad", Account: "church", EmailID: "m", Action: "explode",
	})
	assert.ErrorIs(t, err, model.ErrValidation)

	err = f.svc.UpsertRule(context.Background(), &model.RuleSuggestion{
		ID: "bad", Account: "church", Field: "body", Operator: "equals", Value: "x", Action: model.ActionLabel,
	})
	assert.ErrorIs(t, err, model.ErrValidation)
}

func TestPurgeExpiredDecidedSuggestions(t *testing.T) {
	f := newFixture()
	f.seedSuggestion(t, "old")
	f.seedSuggestion(t, "fresh")

	past := trustNow.Add(-8 * 24 * time.Hour)
	require.NoError(t, f.suggestions.SetDecision(context.Background(), "church", "old", model.SuggestionRejected, "", past))

	n, err := f.svc.PurgeExpired(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	// pending suggestions never expire
	n, err = f.svc.PurgeExpired(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
}
