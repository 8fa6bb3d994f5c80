package attention

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"attention-engine/internal/model"
)

type fakeStore struct {
	items map[string]*model.AttentionItem // key: account + "/" + emailID
}

func newFakeStore() *fakeStore {
	return &fakeStore{items: make(map[string]*model.AttentionItem)}
}

func key(account model.AccountID, emailID string) string {
	return account.String() + "/" + emailID
}

func (f *fakeStore) Upsert(_ context.Context, item *model.AttentionItem) error {
	k := key(item.Account, item.EmailID)
	if existing, ok := f.items[k]; ok && !existing.Expired(item.CreatedAt) {
		// classification fields only; lifecycle stays untouched
		existing.Method = item.Method
		existing.MatchedRole = item.MatchedRole
		existing.Confidence = item.Confidence
		existing.Rationale = item.Rationale
		return nil
	}
	cp := *item
	f.items[k] = &cp
	return nil
}

func (f *fakeStore) Find(_ context.Context, account model.AccountID, emailID string) (*model.AttentionItem, error) {
	item, ok := f.items[key(account, emailID)]
	if !ok {
		return nil, model.ErrNotFound
	}
	return item, nil
}

func (f *fakeStore) List(_ context.Context, account model.AccountID, includeExpired bool, now time.Time) ([]model.AttentionItem, error) {
	var out []model.AttentionItem
	for _, item := range f.items {
		if item.Account != account {
			continue
		}
		if includeExpired {
			out = append(out, *item)
			continue
		}
		if item.Status != model.AttentionActive && item.Status != model.AttentionSnoozed {
			continue
		}
		if item.Status == model.AttentionSnoozed && item.SnoozedUntil != nil && item.SnoozedUntil.After(now) {
			continue
		}
		if item.Expired(now) {
			continue
		}
		out = append(out, *item)
	}
	return out, nil
}

func (f *fakeStore) SetDismissed(_ context.Context, account model.AccountID, emailID string, reason model.DismissReason, now time.Time) error {
	item, ok := f.items[key(account, emailID)]
	if !ok {
		return model.ErrNotFound
	}
	item.Status = model.AttentionDismissed
	item.DismissedReason = reason
	item.StatusChangedAt = now
	return nil
}

func (f *fakeStore) SetSnoozed(_ context.Context, account model.AccountID, emailID string, until time.Time, now time.Time) error {
	item, ok := f.items[key(account, emailID)]
	if !ok {
		return model.ErrNotFound
	}
	item.Status = model.AttentionSnoozed
	item.SnoozedUntil = &until
	item.StatusChangedAt = now
	return nil
}

func (f *fakeStore) SetFirstViewed(_ context.Context, account model.AccountID, emailID string, now time.Time) error {
	item, ok := f.items[key(account, emailID)]
	if !ok {
		return model.ErrNotFound
	}
	if item.FirstViewedAt == nil {
		item.FirstViewedAt = &now
	}
	return nil
}

func (f *fakeStore) SetActed(_ context.Context, account model.AccountID, emailID, actionType string, now time.Time) error {
	item, ok := f.items[key(account, emailID)]
	if !ok {
		return model.ErrNotFound
	}
	item.Status = model.AttentionActed
	item.ActionType = actionType
	item.ActedAt = &now
	item.StatusChangedAt = now
	return nil
}

func (f *fakeStore) PurgeExpired(_ context.Context, now time.Time) (int, error) {
	n := 0
	for k, item := range f.items {
		if item.Expired(now) {
			delete(f.items, k)
			n++
		}
	}
	return n, nil
}

var baseTime = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func newTestService(store Store) *Service {
	return NewService(store, zap.NewNop()).WithClock(func() time.Time { return baseTime })
}

func seed(t *testing.T, store *fakeStore, account model.AccountID, emailID string) {
	t.Helper()
	require.NoError(t, store.Upsert(context.Background(), &model.AttentionItem{
		Account:         account,
		EmailID:         emailID,
		Method:          model.MethodVIP,
		Confidence:      1.0,
		Status:          model.AttentionActive,
		CreatedAt:       baseTime,
		StatusChangedAt: baseTime,
	}))
}

func TestDismissValidatesReasonBeforeStore(t *testing.T) {
	store := newFakeStore()
	svc := newTestService(store)

	// invalid reason on a missing item must be a validation error, not
	// a not-found error
	err := svc.Dismiss(context.Background(), "church", "missing", "whatever")
	assert.ErrorIs(t, err, model.ErrValidation)

	err = svc.Dismiss(context.Background(), "church", "missing", model.DismissHandled)
	assert.ErrorIs(t, err, model.ErrNotFound)
}

func TestDismissSetsStatusAndReason(t *testing.T) {
	store := newFakeStore()
	svc := newTestService(store)
	seed(t, store, "church", "m1")

	require.NoError(t, svc.Dismiss(context.Background(), "church", "m1", model.DismissFalsePositive))

	item, err := store.Find(context.Background(), "church", "m1")
	require.NoError(t, err)
	assert.Equal(t, model.AttentionDismissed, item.Status)
	assert.Equal(t, model.DismissFalsePositive, item.DismissedReason)
	assert.Equal(t, baseTime, item.StatusChangedAt)
}

func TestSnoozeRejectsPastTime(t *testing.T) {
	store := newFakeStore()
	svc := newTestService(store)
	seed(t, store, "church", "m1")

	err := svc.Snooze(context.Background(), "church", "m1", baseTime.Add(-time.Hour))
	assert.ErrorIs(t, err, model.ErrValidation)

	err = svc.Snooze(context.Background(), "church", "m1", baseTime)
	assert.ErrorIs(t, err, model.ErrValidation)

	require.NoError(t, svc.Snooze(context.Background(), "church", "m1", baseTime.Add(time.Hour)))
}

func TestSnoozedItemHiddenUntilElapsed(t *testing.T) {
	store := newFakeStore()
	svc := newTestService(store)
	seed(t, store, "church", "m1")

	until := baseTime.Add(2 * time.Hour)
	require.NoError(t, svc.Snooze(context.Background(), "church", "m1", until))

	items, err := svc.List(context.Background(), "church", false)
	require.NoError(t, err)
	assert.Empty(t, items)

	later := NewService(store, zap.NewNop()).WithClock(func() time.Time { return until.Add(time.Minute) })
	items, err = later.List(context.Background(), "church", false)
	require.NoError(t, err)
	assert.Len(t, items, 1)
}

func TestMarkViewedKeepsFirstTimestamp(t *testing.T) {
	store := newFakeStore()
	svc := newTestService(store)
	seed(t, store, "church", "m1")

	require.NoError(t, svc.MarkViewed(context.Background(), "church", "m1"))
	first, err := store.Find(context.Background(), "church", "m1")
	require.NoError(t, err)
	require.NotNil(t, first.FirstViewedAt)

	later := NewService(store, zap.NewNop()).WithClock(func() time.Time { return baseTime.Add(time.Hour) })
	require.NoError(t, later.MarkViewed(context.Background(), "church", "m1"))

	again, err := store.Find(context.Background(), "church", "m1")
	require.NoError(t, err)
	assert.Equal(t, first.FirstViewedAt, again.FirstViewedAt)
}

func TestMarkActedRequiresActionType(t *testing.T) {
	store := newFakeStore()
	svc := newTestService(store)
	seed(t, store, "church", "m1")

	err := svc.MarkActed(context.Background(), "church", "m1", "")
	assert.ErrorIs(t, err, model.ErrValidation)

	require.NoError(t, svc.MarkActed(context.Background(), "church", "m1", "archived"))
	item, err := store.Find(context.Background(), "church", "m1")
	require.NoError(t, err)
	assert.Equal(t, model.AttentionActed, item.Status)
	assert.Equal(t, "archived", item.ActionType)
}

func TestAccountIsolation(t *testing.T) {
	store := newFakeStore()
	svc := newTestService(store)
	seed(t, store, "church", "m1")
	seed(t, store, "personal", "m1")

	require.NoError(t, svc.Dismiss(context.Background(), "church", "m1", model.DismissHandled))

	// same email id under another account is untouched
	items, err := svc.List(context.Background(), "personal", false)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, model.AttentionActive, items[0].Status)
}

func TestPurgeExpiredIsIdempotent(t *testing.T) {
	store := newFakeStore()
	seed(t, store, "church", "old")
	seed(t, store, "church", "fresh")
	require.NoError(t, store.SetDismissed(context.Background(), "church", "old", model.DismissHandled, baseTime.Add(-8*24*time.Hour)))

	svc := newTestService(store)
	n, err := svc.PurgeExpired(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	n, err = svc.PurgeExpired(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)

	_, err = store.Find(context.Background(), "church", "fresh")
	assert.NoError(t, err)
}
