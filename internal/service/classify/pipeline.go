package classify

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"attention-engine/internal/model"
	"attention-engine/internal/service/patterns"
	"attention-engine/internal/service/privacy"
	"attention-engine/internal/service/ratelimit"
	"attention-engine/pkg/metrics"
)

// Result is one email's classification outcome. A nil Verdict means
// "not actionable".
type Result struct {
	Verdict *model.Verdict
	// ExcludedBy is the soft-exclusion pattern that suppressed any
	// match, when one applied.
	ExcludedBy string
	// HaikuAttempted means a limiter reservation was consumed.
	HaikuAttempted bool
	// HaikuFailed means the semantic call failed after its retry.
	HaikuFailed bool
}

// Pipeline runs the ordered tier cascade, cheapest and most certain
// first, short-circuiting on the first positive match.
type Pipeline struct {
	tiers  []Tier
	lib    *patterns.Library
	logger *zap.Logger
}

// NewPipeline assembles the cascade. sem may be nil: the semantic tier
// is an optional enhancement and the cascade simply ends at regex
// without it.
func NewPipeline(
	lib *patterns.Library,
	priv *privacy.Engine,
	limiter *ratelimit.Limiter,
	sem SemanticClassifier,
	bodies BodyFetcher,
	logger *zap.Logger,
) *Pipeline {
	tiers := []Tier{
		&vipTier{lib: lib},
		&roleTier{lib: lib},
		&regexTier{lib: lib},
	}
	if sem != nil {
		tiers = append(tiers, &semanticTier{
			limiter: limiter,
			privacy: priv,
			bodies:  bodies,
			client:  sem,
			logger:  logger,
		})
	}
	return &Pipeline{tiers: tiers, lib: lib, logger: logger}
}

// Classify runs the cascade for one email. Tier failures never
// propagate: a failed semantic call degrades to "no verdict" so a
// transient provider outage cannot block the rest of the batch.
func (p *Pipeline) Classify(ctx context.Context, account model.AccountID, in model.EmailInput) Result {
	var res Result

	for _, tier := range p.tiers {
		start := time.Now()
		verdict, err := tier.Classify(ctx, account, in)
		isHaiku := tier.Name() == "haiku"

		if err != nil {
			if errors.Is(err, ErrTierUnavailable) {
				continue
			}
			if isHaiku {
				res.HaikuAttempted = true
				res.HaikuFailed = true
			}
			p.logger.Warn("Classification tier failed",
				zap.String("tier", tier.Name()),
				zap.String("account", account.String()),
				zap.String("email_id", in.ID),
				zap.Error(err),
			)
			continue
		}
		if isHaiku {
			res.HaikuAttempted = true
		}
		if verdict == nil {
			continue
		}

		clampVerdict(verdict)
		metrics.RecordClassificationLatency(tier.Name(), time.Since(start))
		res.Verdict = verdict
		return res
	}

	res.ExcludedBy = p.lib.FirstExclusionMatch(in.Subject + " " + in.Snippet)
	return res
}

// clampVerdict enforces the output contract regardless of what a tier
// reported.
func clampVerdict(v *model.Verdict) {
	if v.Confidence < 0 {
		v.Confidence = 0
	}
	if v.Confidence > 1 {
		v.Confidence = 1
	}
}
