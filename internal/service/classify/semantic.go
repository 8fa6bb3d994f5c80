package classify

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"attention-engine/internal/model"
	"attention-engine/internal/service/privacy"
	"attention-engine/internal/service/ratelimit"
)

// SemanticInput is what gets sent to the semantic classifier. Body is
// empty in metadata-only mode, which is a degraded but valid input.
type SemanticInput struct {
	From         string `json:"from"`
	Subject      string `json:"subject"`
	Snippet      string `json:"snippet"`
	Body         string `json:"body,omitempty"`
	MetadataOnly bool   `json:"metadata_only"`
}

// SemanticResult is the raw collaborator answer. RawConfidence is not
// trusted: the tier clamps it into the haiku band.
type SemanticResult struct {
	IsActionable  bool    `json:"is_actionable"`
	Rationale     string  `json:"rationale"`
	RawConfidence float64 `json:"raw_confidence"`
}

// SemanticClassifier is the single-shot, stateless LLM collaborator.
type SemanticClassifier interface {
	ClassifySemantic(ctx context.Context, in SemanticInput) (*SemanticResult, error)
}

// BodyFetcher fetches an email body on demand. Bodies are only pulled
// once the privacy policy has granted access.
type BodyFetcher interface {
	FetchBody(ctx context.Context, account model.AccountID, emailID string) (string, error)
}

// semanticTier is the last and most expensive tier. It runs only when
// the limiter grants a reservation; privacy decides whether the body
// goes along or the call degrades to metadata only.
type semanticTier struct {
	limiter *ratelimit.Limiter
	privacy *privacy.Engine
	bodies  BodyFetcher
	client  SemanticClassifier
	logger  *zap.Logger
}

func (t *semanticTier) Name() string { return "haiku" }

func (t *semanticTier) Classify(ctx context.Context, account model.AccountID, in model.EmailInput) (*model.Verdict, error) {
	ok, err := t.limiter.TryReserve(ctx, account)
	if err != nil {
		t.logger.Warn("Rate limiter unavailable, skipping semantic tier",
			zap.String("account", account.String()),
			zap.Error(err),
		)
		return nil, ErrTierUnavailable
	}
	if !ok {
		return nil, ErrTierUnavailable
	}

	input := SemanticInput{
		From:         in.From,
		Subject:      in.Subject,
		Snippet:      in.Snippet,
		MetadataOnly: true,
	}

	decision := t.privacy.Evaluate(in.Email, false)
	if decision.CanSeeBody {
		body, err := t.bodies.FetchBody(ctx, account, in.ID)
		if err != nil {
			// Body fetch failure degrades to metadata only; the
			// reservation is already spent either way.
			t.logger.Warn("Body fetch failed, degrading to metadata-only",
				zap.String("account", account.String()),
				zap.String("email_id", in.ID),
				zap.Error(err),
			)
		} else {
			input.Body = body
			input.MetadataOnly = false
		}
	}

	result, err := t.client.ClassifySemantic(ctx, input)
	if err != nil {
		// 最多重试一次
		result, err = t.client.ClassifySemantic(ctx, input)
	}
	if err != nil {
		return nil, fmt.Errorf("semantic classification failed: %w", err)
	}

	if !result.IsActionable {
		return nil, nil
	}

	return &model.Verdict{
		Method:     model.MethodHaiku,
		Confidence: clampConfidence(result.RawConfidence),
		Rationale:  result.Rationale,
	}, nil
}

// clampConfidence forces the reported confidence into the haiku band.
// The band is a contract, not an LLM-reported value to trust.
func clampConfidence(raw float64) float64 {
	if raw < model.HaikuConfidenceLo {
		return model.HaikuConfidenceLo
	}
	if raw > model.HaikuConfidenceHi {
		return model.HaikuConfidenceHi
	}
	return raw
}
