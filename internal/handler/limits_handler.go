package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"attention-engine/internal/service/ratelimit"
)

type LimitsHandler struct {
	limiter  *ratelimit.Limiter
	settings ratelimit.SettingsStore
	logger   *zap.Logger
}

func NewLimitsHandler(limiter *ratelimit.Limiter, settings ratelimit.SettingsStore, logger *zap.Logger) *LimitsHandler {
	return &LimitsHandler{limiter: limiter, settings: settings, logger: logger}
}

func (h *LimitsHandler) Usage(c *gin.Context) {
	account := Account(c)

	usage, err := h.limiter.Usage(c.Request.Context(), account)
	if err != nil {
		h.logger.Error("Limiter usage failed",
			zap.String("account", account.String()),
			zap.Error(err),
		)
		writeServiceError(c, err)
		return
	}

	settings, err := h.settings.Get(c.Request.Context())
	if err != nil {
		writeServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"enabled": settings.Enabled,
		"usage":   usage,
	})
}

// UpdateSettings replaces the limiter settings. Settings are global:
// limits protect spend, not fairness between accounts.
func (h *LimitsHandler) UpdateSettings(c *gin.Context) {
	var req ratelimit.Settings
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	if err := req.Validate(); err != nil {
		writeServiceError(c, err)
		return
	}

	if err := h.settings.Put(c.Request.Context(), req); err != nil {
		h.logger.Error("Limiter settings update failed", zap.Error(err))
		writeServiceError(c, err)
		return
	}

	h.logger.Info("Limiter settings updated",
		zap.Bool("enabled", req.Enabled),
		zap.Int("daily_limit", req.DailyLimit),
		zap.Int("weekly_limit", req.WeeklyLimit),
	)
	c.JSON(http.StatusOK, req)
}
