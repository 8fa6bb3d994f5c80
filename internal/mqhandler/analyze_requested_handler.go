package mqhandler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"attention-engine/internal/config"
	"attention-engine/internal/model"
	"attention-engine/pkg/logger"
	"attention-engine/pkg/metrics"
	"attention-engine/pkg/trace"
	"attention-engine/pkg/util"
)

const maxRetries = 5

// AnalyzeRequestedPayload is the analysis.requested event body.
type AnalyzeRequestedPayload struct {
	EventID string `json:"event_id"`
	Account string `json:"account"`
	TraceID string `json:"trace_id,omitempty"`
}

// AnalysisRunner is the orchestrator surface the handler drives.
type AnalysisRunner interface {
	Run(ctx context.Context, acct config.AccountConfig) (*model.AnalysisSummary, error)
}

// OnceGuard deduplicates event deliveries. Release must be called when
// a message is nacked for retry, or the redelivery would be skipped as
// a duplicate.
type OnceGuard interface {
	AcquireOnce(ctx context.Context, handler, eventID string) bool
	Release(ctx context.Context, handler, eventID string)
}

// RetryTracker counts delivery attempts per event.
type RetryTracker interface {
	IncrementAndGet(ctx context.Context, key string) (int64, error)
	Reset(ctx context.Context, key string) error
}

// DeadLetterPublisher routes poison messages to the DLQ.
type DeadLetterPublisher interface {
	PublishToDLQ(routingKey string, payload []byte, originalError string) error
}

// AnalyzeRequestedHandler consumes analysis.requested events and runs
// the orchestrator out of band.
type AnalyzeRequestedHandler struct {
	orch         AnalysisRunner
	cfg          *config.Config
	retryCounter RetryTracker
	deduper      OnceGuard
	dlqPublisher DeadLetterPublisher
	logger       *zap.Logger
}

func NewAnalyzeRequestedHandler(
	orch AnalysisRunner,
	cfg *config.Config,
	retryCounter RetryTracker,
	deduper OnceGuard,
	dlqPublisher DeadLetterPublisher,
	logger *zap.Logger,
) *AnalyzeRequestedHandler {
	return &AnalyzeRequestedHandler{
		orch:         orch,
		cfg:          cfg,
		retryCounter: retryCounter,
		deduper:      deduper,
		dlqPublisher: dlqPublisher,
		logger:       logger,
	}
}

func (h *AnalyzeRequestedHandler) Handle(ctx context.Context, raw json.RawMessage) error {
	start := time.Now()
	defer func() {
		metrics.RecordMQConsumeLatency("analysis.requested", "attention.analysis", time.Since(start))
	}()

	// --------------------------
	// Step 1: decode payload
	// --------------------------
	var payload AnalyzeRequestedPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		h.logger.Error("Invalid AnalyzeRequestedPayload, sending to DLQ",
			zap.String("raw", string(raw)),
			zap.Error(err),
		)
		h.toDLQ(raw, "bad_payload: "+err.Error())
		return nil // ack，坏消息重投没有意义
	}
	if payload.EventID == "" || payload.Account == "" {
		h.toDLQ(raw, "missing event_id or account")
		return nil
	}

	if payload.TraceID != "" {
		ctx = trace.WithContext(ctx, payload.TraceID)
	}
	traceLogger := logger.WithTrace(ctx, h.logger)
	traceLogger.Info("AnalyzeRequestedHandler: received request",
		zap.String("event_id", payload.EventID),
		zap.String("account", payload.Account),
	)

	// --------------------------
	// Step 2: validate account
	// --------------------------
	acct := h.cfg.Account(payload.Account)
	if acct == nil {
		traceLogger.Warn("Unknown account in analysis.requested, dropping",
			zap.String("account", payload.Account),
		)
		return nil // ack
	}

	// Redis 去重（避免并发重复消费）
	if !h.deduper.AcquireOnce(ctx, "analyze", payload.EventID) {
		traceLogger.Info("Duplicated event, skip",
			zap.String("event_id", payload.EventID),
		)
		return nil
	}

	// --------------------------
	// Step 3: retry count
	// --------------------------
	retryKey := util.FormatRetryKey("analyze", payload.EventID)
	retryCount, _ := h.retryCounter.IncrementAndGet(ctx, retryKey)

	// --------------------------
	// Step 4: run analysis
	// --------------------------
	summary, err := h.orch.Run(ctx, *acct)
	if err != nil {
		return h.handleRunError(ctx, raw, err, retryKey, retryCount, payload)
	}

	h.retryCounter.Reset(ctx, retryKey)
	traceLogger.Info("Analysis request processed",
		zap.String("account", payload.Account),
		zap.Int("emails_fetched", summary.EmailsFetched),
		zap.Int("attention_items", summary.AttentionItems),
	)
	return nil
}

func (h *AnalyzeRequestedHandler) handleRunError(ctx context.Context, raw json.RawMessage, err error, retryKey string, retryCount int64, payload AnalyzeRequestedPayload) error {
	// A concurrent run already covers this request; requeueing would
	// just collide again.
	if errors.Is(err, model.ErrRunInProgress) {
		h.logger.Info("Run already in progress, dropping request",
			zap.String("account", payload.Account),
		)
		h.retryCounter.Reset(ctx, retryKey)
		return nil // ack
	}

	isRetryable, errType := util.IsRetryableError(err)
	h.logger.Warn("Analysis run error",
		zap.String("account", payload.Account),
		zap.String("error_type", errType),
		zap.Bool("retryable", isRetryable),
		zap.Int64("retry", retryCount),
		zap.Error(err),
	)

	if retryCount > maxRetries {
		h.logger.Warn("Max retries exceeded, sending to DLQ",
			zap.String("event_id", payload.EventID),
		)
		h.toDLQ(raw, fmt.Sprintf("max retries exceeded: %v", err))
		h.retryCounter.Reset(ctx, retryKey)
		return nil // ack
	}

	if !isRetryable {
		h.toDLQ(raw, "non-retryable: "+err.Error())
		h.retryCounter.Reset(ctx, retryKey)
		return nil // ack
	}

	// 释放去重 key：nack 重投的消息必须能再次被处理
	h.deduper.Release(ctx, "analyze", payload.EventID)
	return err // nack → 重试
}

func (h *AnalyzeRequestedHandler) toDLQ(raw json.RawMessage, reason string) {
	if h.dlqPublisher == nil {
		return
	}
	if err := h.dlqPublisher.PublishToDLQ("analysis.requested", raw, reason); err != nil {
		h.logger.Error("Failed to publish to DLQ", zap.Error(err))
	}
}
