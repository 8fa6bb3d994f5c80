package analyze

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"attention-engine/internal/config"
	"attention-engine/internal/model"
	"attention-engine/internal/service/attention"
	"attention-engine/internal/service/classify"
	"attention-engine/internal/service/mailgw"
	"attention-engine/internal/service/patterns"
	"attention-engine/internal/service/privacy"
	"attention-engine/internal/service/ratelimit"
	"attention-engine/internal/service/trust"
	"attention-engine/pkg/metrics"
	"attention-engine/pkg/trace"
)

// SummaryStore persists the one-row-per-account run audit record.
type SummaryStore interface {
	Upsert(ctx context.Context, s *model.AnalysisSummary) error
	Get(ctx context.Context, account model.AccountID) (*model.AnalysisSummary, error)
}

// BlocklistSource provides the privacy blocklist snapshot taken at the
// start of each run. Mid-run blocklist edits apply to the next run.
type BlocklistSource interface {
	List(ctx context.Context) ([]model.BlocklistEntry, error)
}

// EventPublisher emits run lifecycle events onto the message bus.
type EventPublisher interface {
	Publish(routingKey string, payload any) error
}

// ruleMiningThreshold is how many actionable emails from one sender a
// single run must see before a persistent rule is proposed.
const ruleMiningThreshold = 3

// Orchestrator drives one full analysis pass for an account: fetch
// candidates, merge against tracked state, classify the unseen,
// persist verdicts and suggestions, then write the run summary.
type Orchestrator struct {
	gateway   mailgw.Gateway
	attention attention.Store
	trust     *trust.Service
	summaries SummaryStore
	blocklist BlocklistSource
	lib       *patterns.Library
	limiter   *ratelimit.Limiter
	sem       classify.SemanticClassifier
	publisher EventPublisher
	lock      RunLock
	logger    *zap.Logger
	now       func() time.Time
}

func NewOrchestrator(
	gateway mailgw.Gateway,
	attentionStore attention.Store,
	trustSvc *trust.Service,
	summaries SummaryStore,
	blocklist BlocklistSource,
	lib *patterns.Library,
	limiter *ratelimit.Limiter,
	sem classify.SemanticClassifier,
	publisher EventPublisher,
	lock RunLock,
	logger *zap.Logger,
) *Orchestrator {
	return &Orchestrator{
		gateway:   gateway,
		attention: attentionStore,
		trust:     trustSvc,
		summaries: summaries,
		blocklist: blocklist,
		lib:       lib,
		limiter:   limiter,
		sem:       sem,
		publisher: publisher,
		lock:      lock,
		logger:    logger,
		now:       time.Now,
	}
}

func (o *Orchestrator) WithClock(now func() time.Time) *Orchestrator {
	o.now = now
	return o
}

// LastSummary returns the audit record of the most recent run.
func (o *Orchestrator) LastSummary(ctx context.Context, account model.AccountID) (*model.AnalysisSummary, error) {
	return o.summaries.Get(ctx, account)
}

type completedEvent struct {
	Account string                 `json:"account"`
	TraceID string                 `json:"trace_id,omitempty"`
	Summary *model.AnalysisSummary `json:"summary"`
}

// Run executes one analysis pass. A concurrent run for the same
// account returns model.ErrRunInProgress. A fetch failure aborts the
// run before anything is written.
func (o *Orchestrator) Run(ctx context.Context, acct config.AccountConfig) (*model.AnalysisSummary, error) {
	account := model.AccountID(acct.Name)

	ok, err := o.lock.Acquire(ctx, account)
	if err != nil {
		return nil, fmt.Errorf("acquire run lock: %w", err)
	}
	if !ok {
		return nil, model.ErrRunInProgress
	}
	defer func() {
		if err := o.lock.Release(context.WithoutCancel(ctx), account); err != nil {
			o.logger.Warn("Run lock release failed",
				zap.String("account", account.String()),
				zap.Error(err),
			)
		}
	}()

	start := o.now()
	log := o.logger.With(
		zap.String("account", account.String()),
		zap.String("trace_id", trace.FromContext(ctx)),
	)
	log.Info("Analysis run started")

	emails, err := o.gateway.FetchCandidates(ctx, account, mailgw.CandidateQuery{
		IncludeLabels: acct.IncludeLabels,
		ExcludeLabels: acct.ExcludeLabels,
		LookbackDays:  acct.LookbackDays,
	})
	if err != nil {
		log.Error("Candidate fetch failed, run aborted", zap.Error(err))
		return nil, fmt.Errorf("fetch candidates: %w", err)
	}

	// Privacy decisions inside one run use a single blocklist snapshot.
	entries, err := o.blocklist.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("load blocklist: %w", err)
	}
	priv := privacy.NewEngine(o.lib, entries)
	pipeline := classify.NewPipeline(o.lib, priv, o.limiter, o.sem, o.gateway, o.logger)

	summary := &model.AnalysisSummary{
		Account:       account,
		EmailsFetched: len(emails),
		RanAt:         start,
	}
	senderHits := make(map[string]int)

	for _, email := range emails {
		tracked, err := o.attention.Find(ctx, account, email.ID)
		switch {
		case err == nil:
			// Dismissed items stay invisible until their retention
			// lapses; any other live item is simply already tracked.
			if !tracked.Expired(o.now()) {
				if tracked.Status == model.AttentionDismissed {
					summary.Dismissed++
				} else {
					summary.AlreadyTracked++
				}
				continue
			}
		case !errors.Is(err, model.ErrNotFound):
			log.Warn("Tracked lookup failed, treating as unseen",
				zap.String("email_id", email.ID),
				zap.Error(err),
			)
		}

		summary.EmailsAnalyzed++
		res := pipeline.Classify(ctx, account, model.EmailInput{Email: email})
		if res.HaikuAttempted {
			summary.HaikuAnalyzed++
		}
		if res.HaikuFailed {
			summary.HaikuFailures++
		}

		if res.Verdict != nil {
			if err := o.persistVerdict(ctx, account, email, res.Verdict); err != nil {
				summary.PersistFailures++
				log.Warn("Attention item persist failed",
					zap.String("email_id", email.ID),
					zap.Error(err),
				)
				continue
			}
			summary.AttentionItems++
			senderHits[email.From]++
			metrics.IncrementEmailsAnalyzed(account.String(), "attention")
			continue
		}

		if res.ExcludedBy != "" {
			if err := o.suggestArchive(ctx, account, email, res.ExcludedBy); err != nil {
				summary.PersistFailures++
				log.Warn("Suggestion persist failed",
					zap.String("email_id", email.ID),
					zap.Error(err),
				)
				continue
			}
			summary.SuggestionsGenerated++
			metrics.IncrementEmailsAnalyzed(account.String(), "suggested")
			continue
		}
		metrics.IncrementEmailsAnalyzed(account.String(), "not_actionable")
	}

	summary.RulesGenerated = o.mineRules(ctx, account, senderHits, log)

	usage, err := o.limiter.Usage(ctx, account)
	if err != nil {
		log.Warn("Limiter usage lookup failed", zap.Error(err))
	} else {
		summary.HaikuRemaining = usage.DailyRemaining
	}

	if err := o.summaries.Upsert(ctx, summary); err != nil {
		return nil, fmt.Errorf("persist summary: %w", err)
	}

	if o.publisher != nil {
		event := completedEvent{
			Account: account.String(),
			TraceID: trace.FromContext(ctx),
			Summary: summary,
		}
		if err := o.publisher.Publish("analysis.completed", event); err != nil {
			log.Warn("Completion event publish failed", zap.Error(err))
		}
	}

	log.Info("Analysis run finished",
		zap.Int("fetched", summary.EmailsFetched),
		zap.Int("analyzed", summary.EmailsAnalyzed),
		zap.Int("attention_items", summary.AttentionItems),
		zap.Int("suggestions", summary.SuggestionsGenerated),
		zap.Int("rules", summary.RulesGenerated),
		zap.Int("haiku_failures", summary.HaikuFailures),
		zap.Int("persist_failures", summary.PersistFailures),
		zap.Duration("elapsed", o.now().Sub(start)),
	)
	return summary, nil
}

func (o *Orchestrator) persistVerdict(ctx context.Context, account model.AccountID, email model.Email, v *model.Verdict) error {
	item := &model.AttentionItem{
		Account:     account,
		EmailID:     email.ID,
		From:        email.From,
		Subject:     email.Subject,
		Method:      v.Method,
		MatchedRole: v.MatchedRole,
		Confidence:  v.Confidence,
		Rationale:   v.Rationale,
		Status:      model.AttentionActive,
	}
	if err := item.Validate(); err != nil {
		return err
	}
	return o.attention.Upsert(ctx, item)
}

// suggestArchive proposes archiving an email that only matched a soft
// exclusion. IDs are deterministic so re-running analysis cannot
// re-open a suggestion the user already decided.
func (o *Orchestrator) suggestArchive(ctx context.Context, account model.AccountID, email model.Email, pattern string) error {
	sg := &model.ActionSuggestion{
		ID:         fmt.Sprintf("sg:%s:%s:archive", account, email.ID),
		Account:    account,
		EmailID:    email.ID,
		Action:     model.ActionArchive,
		Rationale:  fmt.Sprintf("matched exclusion pattern %q", pattern),
		Confidence: model.RegexConfidence,
		Method:     model.MethodRegex,
		Pattern:    pattern,
		Status:     model.SuggestionPending,
	}
	return o.trust.UpsertSuggestion(ctx, sg)
}

// mineRules turns repeated per-sender attention hits within one run
// into persistent rule proposals.
func (o *Orchestrator) mineRules(ctx context.Context, account model.AccountID, senderHits map[string]int, log *zap.Logger) int {
	generated := 0
	for sender, hits := range senderHits {
		if hits < ruleMiningThreshold {
			continue
		}
		rule := &model.RuleSuggestion{
			ID:           fmt.Sprintf("rl:%s:from:%s:label", account, sender),
			Account:      account,
			Field:        "from",
			Operator:     "equals",
			Value:        sender,
			Action:       model.ActionLabel,
			Rationale:    fmt.Sprintf("%d attention items from %s in one run", hits, sender),
			Confidence:   model.ProfileConfidence,
			ExampleCount: hits,
			Status:       model.SuggestionPending,
		}
		if err := o.trust.UpsertRule(ctx, rule); err != nil {
			log.Warn("Rule suggestion persist failed",
				zap.String("sender", sender),
				zap.Error(err),
			)
			continue
		}
		generated++
	}
	return generated
}
