package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"attention-engine/internal/config"
	"attention-engine/internal/mqhandler"
	"attention-engine/internal/repository"
	"attention-engine/internal/service/analyze"
	"attention-engine/internal/service/attention"
	"attention-engine/internal/service/classify"
	"attention-engine/internal/service/mailgw"
	"attention-engine/internal/service/patterns"
	"attention-engine/internal/service/ratelimit"
	"attention-engine/internal/service/trust"
	"attention-engine/pkg/db"
	"attention-engine/pkg/logger"
	"attention-engine/pkg/mq"
	"attention-engine/pkg/redis"
	"attention-engine/pkg/util"
)

const purgeInterval = time.Hour

func main() {
	cfg := config.Load()
	logger := logger.NewLogger()
	defer logger.Sync()

	logger.Info("Starting attention-engine worker...")

	lib, err := patterns.Load(cfg.PatternsFile)
	if err != nil {
		logger.Fatal("Pattern library load failed", zap.Error(err))
	}

	// Redis
	rdb := redis.NewRedisClient(cfg.Redis)
	defer rdb.Close()

	deduper := util.NewDeduper(rdb, time.Hour)
	retryCounter := util.NewRetryCounter(rdb, time.Hour)

	// DB
	dbConn, err := db.NewConnection(cfg.DB, logger)
	if err != nil {
		logger.Fatal("DB connection failed", zap.Error(err))
	}
	defer dbConn.Close()

	logger.Info("DB ready")

	// repositories
	attentionRepo := repository.NewAttentionRepository(dbConn)
	suggestionRepo := repository.NewSuggestionRepository(dbConn)
	ruleRepo := repository.NewRuleRepository(dbConn)
	decisionRepo := repository.NewDecisionRepository(dbConn)
	blocklistRepo := repository.NewBlocklistRepository(dbConn)
	summaryRepo := repository.NewSummaryRepository(dbConn)
	settingsRepo := repository.NewSettingsRepository(dbConn, ratelimit.Settings{
		Enabled:     cfg.RateLimit.Enabled,
		DailyLimit:  cfg.RateLimit.DailyLimit,
		WeeklyLimit: cfg.RateLimit.WeeklyLimit,
	})

	// services
	limiter := ratelimit.NewLimiter(ratelimit.NewRedisCounterStore(rdb), settingsRepo)
	attentionSvc := attention.NewService(attentionRepo, logger)
	trustSvc := trust.NewService(suggestionRepo, ruleRepo, decisionRepo, logger)

	publisher, err := mq.NewPublisher(cfg.MQ.URL)
	if err != nil {
		logger.Fatal("failed to init publisher", zap.Error(err))
	}
	defer publisher.Close()

	if err := publisher.SetupDLQ("analysis.requested"); err != nil {
		logger.Fatal("DLQ setup failed", zap.Error(err))
	}

	orch := analyze.NewOrchestrator(
		mailgw.NewClient(cfg.MailGateway.BaseURL),
		attentionRepo,
		trustSvc,
		summaryRepo,
		blocklistRepo,
		lib,
		limiter,
		classify.NewHaikuClient(cfg.Haiku.BaseURL),
		publisher,
		analyze.NewRedisRunLock(rdb),
		logger,
	)

	analyzeHandler := mqhandler.NewAnalyzeRequestedHandler(
		orch,
		cfg,
		retryCounter,
		deduper,
		publisher,
		logger,
	)

	// -------------------------
	// Analysis Request Consumer
	// -------------------------
	logger.Info("Init consumer: attention.analysis.q")
	consumer, err := mq.NewConsumer(
		cfg.MQ.URL,
		"attention.analysis.q",
		"analysis.requested",
		logger,
	)
	if err != nil {
		logger.Fatal("Analysis consumer init failed", zap.Error(err))
	}
	consumer.SetHandler(analyzeHandler.Handle)

	go func() {
		if err := consumer.StartConsuming(); err != nil {
			logger.Fatal("Analysis consumer crashed", zap.Error(err))
		}
	}()
	defer consumer.Close()

	// -------------------------
	// Retention purge ticker
	// -------------------------
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go runPurgeLoop(ctx, attentionSvc, trustSvc, logger)

	logger.Info("Worker ready")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Shutting down worker...")
}

// runPurgeLoop drops expired attention items and decided suggestions
// on a fixed interval. Purge is idempotent, so overlapping with a
// concurrent server-side purge is harmless.
func runPurgeLoop(ctx context.Context, attentionSvc *attention.Service, trustSvc *trust.Service, logger *zap.Logger) {
	ticker := time.NewTicker(purgeInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			purgeCtx, cancel := context.WithTimeout(ctx, time.Minute)
			attnPurged, err := attentionSvc.PurgeExpired(purgeCtx)
			if err != nil {
				logger.Error("Attention purge failed", zap.Error(err))
			}
			sgPurged, err := trustSvc.PurgeExpired(purgeCtx)
			if err != nil {
				logger.Error("Suggestion purge failed", zap.Error(err))
			}
			cancel()

			if attnPurged > 0 || sgPurged > 0 {
				logger.Info("Retention purge complete",
					zap.Int("attention_purged", attnPurged),
					zap.Int("suggestions_purged", sgPurged),
				)
			}
		}
	}
}
