package ratelimit

import (
	"context"
	"fmt"
	"time"

	"attention-engine/internal/model"
	"attention-engine/pkg/metrics"
)

// Settings controls the semantic ("haiku") tier budget. Mutable at run
// time through the API; persisted by the settings store.
type Settings struct {
	Enabled     bool `json:"enabled"`
	DailyLimit  int  `json:"daily_limit"`
	WeeklyLimit int  `json:"weekly_limit"`
}

func (s Settings) Validate() error {
	if s.DailyLimit < 0 || s.WeeklyLimit < 0 {
		return fmt.Errorf("%w: limits must be non-negative", model.ErrValidation)
	}
	return nil
}

// Usage is the externally visible limiter state for one account.
type Usage struct {
	DailyCount      int  `json:"daily_count"`
	WeeklyCount     int  `json:"weekly_count"`
	DailyLimit      int  `json:"daily_limit"`
	WeeklyLimit     int  `json:"weekly_limit"`
	DailyRemaining  int  `json:"daily_remaining"`
	WeeklyRemaining int  `json:"weekly_remaining"`
	CanAnalyze      bool `json:"can_analyze"`
}

// CounterStore is the shared counter backend. Counters must be atomic
// across concurrent analysis runs; the Redis implementation is the
// production one, tests use an in-memory store.
type CounterStore interface {
	Increment(ctx context.Context, key string, ttl time.Duration) (int64, error)
	Decrement(ctx context.Context, key string) error
	Get(ctx context.Context, key string) (int64, error)
}

// SettingsStore persists the mutable limiter settings.
type SettingsStore interface {
	Get(ctx context.Context) (Settings, error)
	Put(ctx context.Context, s Settings) error
}

// Limiter caps haiku-tier usage per account per day and week. Counters
// are keyed by account, never by caller identity, and roll over on
// fixed UTC boundaries (midnight / ISO week Monday).
type Limiter struct {
	counters CounterStore
	settings SettingsStore
	now      func() time.Time
}

func NewLimiter(counters CounterStore, settings SettingsStore) *Limiter {
	return &Limiter{
		counters: counters,
		settings: settings,
		now:      time.Now,
	}
}

// WithClock overrides the limiter clock. Tests only.
func (l *Limiter) WithClock(now func() time.Time) *Limiter {
	l.now = now
	return l
}

func dailyKey(account model.AccountID, now time.Time) string {
	return fmt.Sprintf("haiku:daily:%s:%s", account, now.UTC().Format("2006-01-02"))
}

func weeklyKey(account model.AccountID, now time.Time) string {
	year, week := now.UTC().ISOWeek()
	return fmt.Sprintf("haiku:weekly:%s:%d-W%02d", account, year, week)
}

func untilNextDay(now time.Time) time.Duration {
	u := now.UTC()
	next := time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC).Add(24 * time.Hour)
	return next.Sub(u)
}

func untilNextWeek(now time.Time) time.Duration {
	u := now.UTC()
	// days until next Monday 00:00 UTC
	days := (8 - int(u.Weekday())) % 7
	if days == 0 {
		days = 7
	}
	next := time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC).AddDate(0, 0, days)
	return next.Sub(u)
}

// TryReserve atomically reserves one haiku call for the account. Both
// counters are incremented together; when either limit is already
// reached the increment is rolled back and no capacity is consumed.
func (l *Limiter) TryReserve(ctx context.Context, account model.AccountID) (bool, error) {
	s, err := l.settings.Get(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to load limiter settings: %w", err)
	}
	if !s.Enabled {
		metrics.IncrementRateLimitRejection(account.String(), "disabled")
		return false, nil
	}

	now := l.now()

	daily, err := l.counters.Increment(ctx, dailyKey(account, now), untilNextDay(now))
	if err != nil {
		return false, err
	}
	if daily > int64(s.DailyLimit) {
		_ = l.counters.Decrement(ctx, dailyKey(account, now))
		metrics.IncrementRateLimitRejection(account.String(), "daily")
		return false, nil
	}

	weekly, err := l.counters.Increment(ctx, weeklyKey(account, now), untilNextWeek(now))
	if err != nil {
		_ = l.counters.Decrement(ctx, dailyKey(account, now))
		return false, err
	}
	if weekly > int64(s.WeeklyLimit) {
		_ = l.counters.Decrement(ctx, weeklyKey(account, now))
		_ = l.counters.Decrement(ctx, dailyKey(account, now))
		metrics.IncrementRateLimitRejection(account.String(), "weekly")
		return false, nil
	}

	return true, nil
}

// Usage reports the current counters without consuming capacity.
func (l *Limiter) Usage(ctx context.Context, account model.AccountID) (Usage, error) {
	s, err := l.settings.Get(ctx)
	if err != nil {
		return Usage{}, fmt.Errorf("failed to load limiter settings: %w", err)
	}

	now := l.now()
	daily, err := l.counters.Get(ctx, dailyKey(account, now))
	if err != nil {
		return Usage{}, err
	}
	weekly, err := l.counters.Get(ctx, weeklyKey(account, now))
	if err != nil {
		return Usage{}, err
	}

	u := Usage{
		DailyCount:      int(daily),
		WeeklyCount:     int(weekly),
		DailyLimit:      s.DailyLimit,
		WeeklyLimit:     s.WeeklyLimit,
		DailyRemaining:  max(0, s.DailyLimit-int(daily)),
		WeeklyRemaining: max(0, s.WeeklyLimit-int(weekly)),
	}
	u.CanAnalyze = s.Enabled && u.DailyRemaining > 0 && u.WeeklyRemaining > 0
	return u, nil
}
