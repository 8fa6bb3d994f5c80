package httpserver

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"attention-engine/internal/config"
	"attention-engine/internal/handler"
)

type Handlers struct {
	Attention  *handler.AttentionHandler
	Suggestion *handler.SuggestionHandler
	Analysis   *handler.AnalysisHandler
	Quality    *handler.QualityHandler
	Limits     *handler.LimitsHandler
	Privacy    *handler.PrivacyHandler
}

type Router struct {
	Engine *gin.Engine
}

func NewRouter(h Handlers, cfg *config.Config, logger *zap.Logger, db *pgxpool.Pool) *Router {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(TraceMiddleware())
	r.Use(RequestLogMiddleware(logger))

	// Health endpoints (放在最前面)
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})
	r.HEAD("/healthz", func(c *gin.Context) {
		c.Status(200)
	})

	r.GET("/readyz", func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c, 1*time.Second)
		defer cancel()

		if err := db.Ping(ctx); err != nil {
			c.JSON(500, gin.H{"status": "db_not_ready", "error": err.Error()})
			return
		}
		c.JSON(200, gin.H{"status": "ready"})
	})

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := r.Group("/api")
	api.Use(AuthMiddleware(cfg.JWT.Secret))
	{
		api.GET("/quality/rejection-patterns", h.Quality.RejectionPatterns)

		api.GET("/privacy/blocklist", h.Privacy.ListBlocklist)
		api.POST("/privacy/blocklist", h.Privacy.BlockSender)
		api.DELETE("/privacy/blocklist/:sender", h.Privacy.UnblockSender)

		acct := api.Group("/accounts/:account")
		acct.Use(AccountMiddleware(cfg))
		{
			acct.GET("/attention", h.Attention.List)
			acct.POST("/attention/:emailId/dismiss", h.Attention.Dismiss)
			acct.POST("/attention/:emailId/snooze", h.Attention.Snooze)
			acct.POST("/attention/:emailId/viewed", h.Attention.MarkViewed)
			acct.POST("/attention/:emailId/acted", h.Attention.MarkActed)

			acct.GET("/suggestions", h.Suggestion.ListSuggestions)
			acct.POST("/suggestions/:id/decide", h.Suggestion.DecideSuggestion)
			acct.GET("/rules", h.Suggestion.ListRules)
			acct.POST("/rules/:id/decide", h.Suggestion.DecideRule)

			acct.POST("/analyze", h.Analysis.Analyze)
			acct.GET("/analysis/last", h.Analysis.LastSummary)

			acct.GET("/quality", h.Quality.Stats)

			acct.GET("/limits", h.Limits.Usage)
			acct.PUT("/limits", h.Limits.UpdateSettings)
		}
	}

	return &Router{Engine: r}
}

func (r *Router) Run(port string) error {
	return r.Engine.Run(port)
}
