package classify

import (
	"context"
	"fmt"
	"strings"

	"attention-engine/internal/model"
	"attention-engine/internal/service/patterns"
)

// vipTier matches the sender address against the account's VIP list.
// Sender-address only, so it never needs the privacy gate.
type vipTier struct {
	lib *patterns.Library
}

func (t *vipTier) Name() string { return "vip" }

func (t *vipTier) Classify(ctx context.Context, account model.AccountID, in model.EmailInput) (*model.Verdict, error) {
	sender := strings.ToLower(in.From)
	for _, vip := range t.lib.VIPSenders(account.String()) {
		if strings.Contains(sender, strings.ToLower(vip)) {
			return &model.Verdict{
				Method:     model.MethodVIP,
				Confidence: model.VIPConfidence,
				Rationale:  fmt.Sprintf("VIP sender match: %s", vip),
			}, nil
		}
	}
	return nil, nil
}
