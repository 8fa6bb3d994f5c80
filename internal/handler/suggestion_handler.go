package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"attention-engine/internal/model"
	"attention-engine/internal/service/trust"
)

type SuggestionHandler struct {
	svc    *trust.Service
	logger *zap.Logger
}

func NewSuggestionHandler(svc *trust.Service, logger *zap.Logger) *SuggestionHandler {
	return &SuggestionHandler{svc: svc, logger: logger}
}

func statusFilter(c *gin.Context) (model.SuggestionStatus, bool) {
	raw := c.DefaultQuery("status", string(model.SuggestionPending))
	status := model.SuggestionStatus(raw)
	if !status.Valid() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid status"})
		return "", false
	}
	return status, true
}

func (h *SuggestionHandler) ListSuggestions(c *gin.Context) {
	account := Account(c)
	status, ok := statusFilter(c)
	if !ok {
		return
	}

	suggestions, err := h.svc.ListSuggestions(c.Request.Context(), account, status)
	if err != nil {
		h.logger.Error("List suggestions failed",
			zap.String("account", account.String()),
			zap.Error(err),
		)
		writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"suggestions": suggestions})
}

type decideRequest struct {
	Approved        *bool  `json:"approved"`
	RejectionReason string `json:"rejection_reason"`
}

func (h *SuggestionHandler) DecideSuggestion(c *gin.Context) {
	account := Account(c)
	id := c.Param("id")

	var req decideRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Approved == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "approved required"})
		return
	}

	sg, err := h.svc.DecideSuggestion(c.Request.Context(), account, id, *req.Approved, req.RejectionReason)
	if err != nil {
		writeServiceError(c, err)
		return
	}

	h.logger.Info("Suggestion decided",
		zap.String("account", account.String()),
		zap.String("suggestion_id", id),
		zap.Bool("approved", *req.Approved),
	)
	c.JSON(http.StatusOK, gin.H{"suggestion": sg})
}

func (h *SuggestionHandler) ListRules(c *gin.Context) {
	account := Account(c)
	status, ok := statusFilter(c)
	if !ok {
		return
	}

	rules, err := h.svc.ListRules(c.Request.Context(), account, status)
	if err != nil {
		h.logger.Error("List rules failed",
			zap.String("account", account.String()),
			zap.Error(err),
		)
		writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"rules": rules})
}

func (h *SuggestionHandler) DecideRule(c *gin.Context) {
	account := Account(c)
	id := c.Param("id")

	var req decideRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Approved == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "approved required"})
		return
	}

	rule, err := h.svc.DecideRule(c.Request.Context(), account, id, *req.Approved, req.RejectionReason)
	if err != nil {
		writeServiceError(c, err)
		return
	}

	h.logger.Info("Rule decided",
		zap.String("account", account.String()),
		zap.String("rule_id", id),
		zap.Bool("approved", *req.Approved),
	)
	c.JSON(http.StatusOK, gin.H{"rule": rule})
}
