package classify

import (
	"context"
	"fmt"
	"strings"

	"attention-engine/internal/model"
	"attention-engine/internal/service/patterns"
)

// roleTier matches sender, subject, or label against the account's
// configured role patterns.
type roleTier struct {
	lib *patterns.Library
}

func (t *roleTier) Name() string { return "profile" }

func (t *roleTier) Classify(ctx context.Context, account model.AccountID, in model.EmailInput) (*model.Verdict, error) {
	sender := strings.ToLower(in.From)
	subject := strings.ToLower(in.Subject)

	for _, role := range t.lib.Roles(account.String()) {
		for _, s := range role.Senders {
			if strings.Contains(sender, strings.ToLower(s)) {
				return roleVerdict(role.Role, fmt.Sprintf("sender matches %q", s)), nil
			}
		}
		for _, kw := range role.SubjectKeywords {
			if strings.Contains(subject, strings.ToLower(kw)) {
				return roleVerdict(role.Role, fmt.Sprintf("subject contains %q", kw)), nil
			}
		}
		for _, rl := range role.Labels {
			for _, label := range in.Labels {
				if strings.EqualFold(label, rl) {
					return roleVerdict(role.Role, fmt.Sprintf("label %q", rl)), nil
				}
			}
		}
	}
	return nil, nil
}

func roleVerdict(role, match string) *model.Verdict {
	return &model.Verdict{
		Method:      model.MethodProfile,
		MatchedRole: role,
		Confidence:  model.ProfileConfidence,
		Rationale:   fmt.Sprintf("Role %s: %s", role, match),
	}
}
