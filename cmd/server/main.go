package main

import (
	"go.uber.org/zap"

	"attention-engine/internal/config"
	"attention-engine/internal/handler"
	"attention-engine/internal/httpserver"
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
)

func main() {
	cfg := config.Load()
	logger := logger.NewLogger()
	defer logger.Sync()

	logger.Info("Starting attention-engine server...")

	// pattern library
	lib, err := patterns.Load(cfg.PatternsFile)
	if err != nil {
		logger.Fatal("Pattern library load failed", zap.Error(err))
	}

	// Redis
	rdb := redis.NewRedisClient(cfg.Redis)
	defer rdb.Close()

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

	gateway := mailgw.NewClient(cfg.MailGateway.BaseURL)
	haiku := classify.NewHaikuClient(cfg.Haiku.BaseURL)

	// event publisher (completion events; optional at runtime)
	var publisher analyze.EventPublisher
	pub, err := mq.NewPublisher(cfg.MQ.URL)
	if err != nil {
		logger.Warn("MQ publisher unavailable, completion events disabled", zap.Error(err))
	} else {
		defer pub.Close()
		publisher = pub
	}

	orch := analyze.NewOrchestrator(
		gateway,
		attentionRepo,
		trustSvc,
		summaryRepo,
		blocklistRepo,
		lib,
		limiter,
		haiku,
		publisher,
		analyze.NewRedisRunLock(rdb),
		logger,
	)

	router := httpserver.NewRouter(httpserver.Handlers{
		Attention:  handler.NewAttentionHandler(attentionSvc, logger),
		Suggestion: handler.NewSuggestionHandler(trustSvc, logger),
		Analysis:   handler.NewAnalysisHandler(orch, cfg, logger),
		Quality:    handler.NewQualityHandler(trustSvc, logger),
		Limits:     handler.NewLimitsHandler(limiter, settingsRepo, logger),
		Privacy:    handler.NewPrivacyHandler(blocklistRepo, logger),
	}, cfg, logger, dbConn)

	logger.Info("HTTP server listening", zap.String("port", cfg.Server.Port))
	if err := router.Run(":" + cfg.Server.Port); err != nil {
		logger.Fatal("HTTP server crashed", zap.Error(err))
	}
}
