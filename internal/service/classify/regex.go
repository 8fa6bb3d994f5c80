package classify

import (
	"context"
	"fmt"

	"attention-engine/internal/model"
	"attention-engine/internal/service/patterns"
)

// regexTier matches generic action-required patterns against subject
// and snippet. A soft-exclusion match suppresses the verdict even when
// a positive pattern also matched: exclusion wins over inclusion.
type regexTier struct {
	lib *patterns.Library
}

func (t *regexTier) Name() string { return "regex" }

func (t *regexTier) Classify(ctx context.Context, account model.AccountID, in model.EmailInput) (*model.Verdict, error) {
	text := in.Subject + " " + in.Snippet

	if excluded := t.lib.FirstExclusionMatch(text); excluded != "" {
		return nil, nil
	}

	matched := t.lib.FirstActionMatch(text)
	if matched == "" {
		return nil, nil
	}

	return &model.Verdict{
		Method:     model.MethodRegex,
		Confidence: model.RegexConfidence,
		Rationale:  fmt.Sprintf("Action pattern %q matched", matched),
	}, nil
}
