package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"attention-engine/internal/service/trust"
)

const (
	defaultStatsWindowDays = 30
	defaultMinRejections   = 3
)

type QualityHandler struct {
	svc    *trust.Service
	logger *zap.Logger
}

func NewQualityHandler(svc *trust.Service, logger *zap.Logger) *QualityHandler {
	return &QualityHandler{svc: svc, logger: logger}
}

func intQuery(c *gin.Context, name string, def int) (int, bool) {
	raw := c.Query(name)
	if raw == "" {
		return def, true
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid " + name})
		return 0, false
	}
	return v, true
}

func (h *QualityHandler) Stats(c *gin.Context) {
	account := Account(c)
	windowDays, ok := intQuery(c, "window_days", defaultStatsWindowDays)
	if !ok {
		return
	}

	stats, err := h.svc.ComputeStats(c.Request.Context(), account, windowDays)
	if err != nil {
		h.logger.Error("Quality stats failed",
			zap.String("account", account.String()),
			zap.Error(err),
		)
		writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

// RejectionPatterns is cross-account on purpose: a pattern the user
// keeps rejecting is bad regardless of which mailbox surfaced it.
func (h *QualityHandler) RejectionPatterns(c *gin.Context) {
	windowDays, ok := intQuery(c, "window_days", defaultStatsWindowDays)
	if !ok {
		return
	}
	minRejections, ok := intQuery(c, "min_rejections", defaultMinRejections)
	if !ok {
		return
	}

	patterns, err := h.svc.RejectionPatterns(c.Request.Context(), windowDays, minRejections)
	if err != nil {
		h.logger.Error("Rejection patterns failed", zap.Error(err))
		writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"patterns": patterns})
}
