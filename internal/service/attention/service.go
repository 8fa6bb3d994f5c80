package attention

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"attention-engine/internal/model"
	"attention-engine/pkg/metrics"
)

// Store is the persistence port for attention items. Implemented by
// the Postgres repository; tests use an in-memory fake. Everything is
// keyed by account — caller identity never appears here.
type Store interface {
	Upsert(ctx context.Context, item *model.AttentionItem) error
	Find(ctx context.Context, account model.AccountID, emailID string) (*model.AttentionItem, error)
	List(ctx context.Context, account model.AccountID, includeExpired bool, now time.Time) ([]model.AttentionItem, error)
	SetDismissed(ctx context.Context, account model.AccountID, emailID string, reason model.DismissReason, now time.Time) error
	SetSnoozed(ctx context.Context, account model.AccountID, emailID string, until time.Time, now time.Time) error
	SetFirstViewed(ctx context.Context, account model.AccountID, emailID string, now time.Time) error
	SetActed(ctx context.Context, account model.AccountID, emailID, actionType string, now time.Time) error
	PurgeExpired(ctx context.Context, now time.Time) (int, error)
}

type Service struct {
	store  Store
	logger *zap.Logger
	now    func() time.Time
}

func NewService(store Store, logger *zap.Logger) *Service {
	return &Service{store: store, logger: logger, now: time.Now}
}

// WithClock overrides the service clock. Tests only.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

func (s *Service) List(ctx context.Context, account model.AccountID, includeExpired bool) ([]model.AttentionItem, error) {
	return s.store.List(ctx, account, includeExpired, s.now())
}

// Dismiss marks an item as decided-on by the user. The reason enum is
// validated before any store mutation so a bad payload can never be
// mistaken for a missing item.
func (s *Service) Dismiss(ctx context.Context, account model.AccountID, emailID string, reason model.DismissReason) error {
	if !reason.Valid() {
		return fmt.Errorf("%w: dismiss reason %q", model.ErrValidation, reason)
	}
	if err := s.store.SetDismissed(ctx, account, emailID, reason, s.now()); err != nil {
		return err
	}
	s.logger.Info("Attention item dismissed",
		zap.String("account", account.String()),
		zap.String("email_id", emailID),
		zap.String("reason", string(reason)),
	)
	return nil
}

// Snooze hides an item until a future time.
func (s *Service) Snooze(ctx context.Context, account model.AccountID, emailID string, until time.Time) error {
	now := s.now()
	if !until.After(now) {
		return fmt.Errorf("%w: snooze time %s is not in the future", model.ErrValidation, until.Format(time.RFC3339))
	}
	if err := s.store.SetSnoozed(ctx, account, emailID, until, now); err != nil {
		return err
	}
	s.logger.Info("Attention item snoozed",
		zap.String("account", account.String()),
		zap.String("email_id", emailID),
		zap.Time("until", until),
	)
	return nil
}

func (s *Service) MarkViewed(ctx context.Context, account model.AccountID, emailID string) error {
	return s.store.SetFirstViewed(ctx, account, emailID, s.now())
}

func (s *Service) MarkActed(ctx context.Context, account model.AccountID, emailID, actionType string) error {
	if actionType == "" {
		return fmt.Errorf("%w: action_type required", model.ErrValidation)
	}
	return s.store.SetActed(ctx, account, emailID, actionType, s.now())
}

// PurgeExpired removes items past their per-status retention window.
func (s *Service) PurgeExpired(ctx context.Context) (int, error) {
	n, err := s.store.PurgeExpired(ctx, s.now())
	if err != nil {
		return 0, err
	}
	if n > 0 {
		metrics.IncrementPurgedItems("attention", n)
		s.logger.Info("Purged expired attention items", zap.Int("count", n))
	}
	return n, nil
}
