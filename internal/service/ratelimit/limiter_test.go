package ratelimit

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"attention-engine/internal/model"
)

type memCounterStore struct {
	mu       sync.Mutex
	counts   map[string]int64
	incrErr  error
	lastTTLs map[string]time.Duration
}

func newMemCounterStore() *memCounterStore {
	return &memCounterStore{
		counts:   make(map[string]int64),
		lastTTLs: make(map[string]time.Duration),
	}
}

func (m *memCounterStore) Increment(_ context.Context, key string, ttl time.Duration) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.incrErr != nil {
		return 0, m.incrErr
	}
	m.counts[key]++
	m.lastTTLs[key] = ttl
	return m.counts[key], nil
}

func (m *memCounterStore) Decrement(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.counts[key]--
	return nil
}

func (m *memCounterStore) Get(_ context.Context, key string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.counts[key], nil
}

type memSettingsStore struct {
	s   Settings
	err error
}

func (m *memSettingsStore) Get(context.Context) (Settings, error) { return m.s, m.err }
func (m *memSettingsStore) Put(_ context.Context, s Settings) error {
	m.s = s
	return nil
}

// fixed Wednesday to keep day/week keys stable
var testNow = time.Date(2025, 6, 4, 15, 30, 0, 0, time.UTC)

func newTestLimiter(counters CounterStore, s Settings) *Limiter {
	return NewLimiter(counters, &memSettingsStore{s: s}).WithClock(func() time.Time { return testNow })
}

func TestTryReserveConsumesBothCounters(t *testing.T) {
	counters := newMemCounterStore()
	l := newTestLimiter(counters, Settings{Enabled: true, DailyLimit: 5, WeeklyLimit: 10})

	ok, err := l.TryReserve(context.Background(), "church")
	require.NoError(t, err)
	assert.True(t, ok)

	u, err := l.Usage(context.Background(), "church")
	require.NoError(t, err)
	assert.Equal(t, 1, u.DailyCount)
	assert.Equal(t, 1, u.WeeklyCount)
	assert.Equal(t, 4, u.DailyRemaining)
	assert.Equal(t, 9, u.WeeklyRemaining)
	assert.True(t, u.CanAnalyze)
}

func TestTryReserveDailyExhaustion(t *testing.T) {
	l := newTestLimiter(newMemCounterStore(), Settings{Enabled: true, DailyLimit: 2, WeeklyLimit: 100})
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		ok, err := l.TryReserve(ctx, "church")
		require.NoError(t, err)
		require.True(t, ok)
	}

	ok, err := l.TryReserve(ctx, "church")
	require.NoError(t, err)
	assert.False(t, ok)

	// denied reservation consumes no capacity
	u, err := l.Usage(ctx, "church")
	require.NoError(t, err)
	assert.Equal(t, 2, u.DailyCount)
	assert.Equal(t, 2, u.WeeklyCount)
}

func TestTryReserveWeeklyExhaustionRollsBackDaily(t *testing.T) {
	l := newTestLimiter(newMemCounterStore(), Settings{Enabled: true, DailyLimit: 100, WeeklyLimit: 1})
	ctx := context.Background()

	ok, err := l.TryReserve(ctx, "church")
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = l.TryReserve(ctx, "church")
	require.NoError(t, err)
	assert.False(t, ok)

	u, err := l.Usage(ctx, "church")
	require.NoError(t, err)
	assert.Equal(t, 1, u.DailyCount)
	assert.Equal(t, 1, u.WeeklyCount)
}

func TestTryReserveDisabledAlwaysDenies(t *testing.T) {
	counters := newMemCounterStore()
	l := newTestLimiter(counters, Settings{Enabled: false, DailyLimit: 100, WeeklyLimit: 100})

	ok, err := l.TryReserve(context.Background(), "church")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Empty(t, counters.counts)
}

func TestTryReservePerAccountIsolation(t *testing.T) {
	l := newTestLimiter(newMemCounterStore(), Settings{Enabled: true, DailyLimit: 1, WeeklyLimit: 10})
	ctx := context.Background()

	ok, err := l.TryReserve(ctx, "church")
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = l.TryReserve(ctx, "church")
	require.NoError(t, err)
	require.False(t, ok)

	// the personal account has its own budget
	ok, err = l.TryReserve(ctx, "personal")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestTryReserveSettingsErrorPropagates(t *testing.T) {
	l := NewLimiter(newMemCounterStore(), &memSettingsStore{err: errors.New("db down")})

	_, err := l.TryReserve(context.Background(), "church")
	require.Error(t, err)
}

func TestKeyBoundaries(t *testing.T) {
	assert.Equal(t, "haiku:daily:church:2025-06-04", dailyKey(model.AccountID("church"), testNow))
	assert.Equal(t, "haiku:weekly:church:2025-W23", weeklyKey(model.AccountID("church"), testNow))

	// counter TTLs end exactly at the next boundary
	assert.Equal(t, 8*time.Hour+30*time.Minute, untilNextDay(testNow))
	// Wednesday 15:30 → next Monday 00:00 is 4 days 8.5 hours away
	assert.Equal(t, 4*24*time.Hour+8*time.Hour+30*time.Minute, untilNextWeek(testNow))
}

func TestSettingsValidate(t *testing.T) {
	assert.NoError(t, Settings{DailyLimit: 0, WeeklyLimit: 0}.Validate())
	assert.ErrorIs(t, Settings{DailyLimit: -1}.Validate(), model.ErrValidation)
	assert.ErrorIs(t, Settings{WeeklyLimit: -5}.Validate(), model.ErrValidation)
}
