package classify

import (
	"context"
	"errors"

	"attention-engine/internal/model"
)

// ErrTierUnavailable means a tier could not run at all (rate limit
// exhausted, limiter disabled, circuit open). The cascade skips the
// tier and continues; it is not a failure.
var ErrTierUnavailable = errors.New("classification tier unavailable")

// Tier is one strategy in the cascade. A nil verdict with a nil error
// means the tier ran and found nothing.
type Tier interface {
	Name() string
	Classify(ctx context.Context, account model.AccountID, in model.EmailInput) (*model.Verdict, error)
}
