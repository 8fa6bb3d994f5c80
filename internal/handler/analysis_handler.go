package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"attention-engine/internal/config"
	"attention-engine/internal/service/analyze"
)

type AnalysisHandler struct {
	orch   *analyze.Orchestrator
	cfg    *config.Config
	logger *zap.Logger
}

func NewAnalysisHandler(orch *analyze.Orchestrator, cfg *config.Config, logger *zap.Logger) *AnalysisHandler {
	return &AnalysisHandler{orch: orch, cfg: cfg, logger: logger}
}

// Analyze runs a full analysis pass inline and returns its summary.
// Long-running callers should publish analysis.requested instead.
func (h *AnalysisHandler) Analyze(c *gin.Context) {
	account := Account(c)
	acct := h.cfg.Account(account.String())
	if acct == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown account"})
		return
	}

	summary, err := h.orch.Run(c.Request.Context(), *acct)
	if err != nil {
		h.logger.Error("Analysis run failed",
			zap.String("account", account.String()),
			zap.Error(err),
		)
		writeServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"summary": summary})
}

func (h *AnalysisHandler) LastSummary(c *gin.Context) {
	account := Account(c)

	summary, err := h.orch.LastSummary(c.Request.Context(), account)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"summary": summary})
}
