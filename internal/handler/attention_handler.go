package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"attention-engine/internal/model"
	"attention-engine/internal/service/attention"
)

type AttentionHandler struct {
	svc    *attention.Service
	logger *zap.Logger
}

func NewAttentionHandler(svc *attention.Service, logger *zap.Logger) *AttentionHandler {
	return &AttentionHandler{svc: svc, logger: logger}
}

func (h *AttentionHandler) List(c *gin.Context) {
	account := Account(c)
	includeExpired := c.Query("include_expired") == "true"

	items, err := h.svc.List(c.Request.Context(), account, includeExpired)
	if err != nil {
		h.logger.Error("List attention items failed",
			zap.String("account", account.String()),
			zap.Error(err),
		)
		writeServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"items": items})
}

type dismissRequest struct {
	Reason string `json:"reason"`
}

func (h *AttentionHandler) Dismiss(c *gin.Context) {
	account := Account(c)
	emailID := c.Param("emailId")

	var req dismissRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	if err := h.svc.Dismiss(c.Request.Context(), account, emailID, model.DismissReason(req.Reason)); err != nil {
		h.logger.Warn("Dismiss failed",
			zap.String("account", account.String()),
			zap.String("email_id", emailID),
			zap.String("reason", req.Reason),
			zap.Error(err),
		)
		writeServiceError(c, err)
		return
	}

	h.logger.Info("Attention item dismissed",
		zap.String("account", account.String()),
		zap.String("email_id", emailID),
		zap.String("reason", req.Reason),
	)
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

type snoozeRequest struct {
	Until time.Time `json:"until"`
}

func (h *AttentionHandler) Snooze(c *gin.Context) {
	account := Account(c)
	emailID := c.Param("emailId")

	var req snoozeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid until timestamp"})
		return
	}

	if err := h.svc.Snooze(c.Request.Context(), account, emailID, req.Until); err != nil {
		writeServiceError(c, err)
		return
	}

	h.logger.Info("Attention item snoozed",
		zap.String("account", account.String()),
		zap.String("email_id", emailID),
		zap.Time("until", req.Until),
	)
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *AttentionHandler) MarkViewed(c *gin.Context) {
	account := Account(c)
	emailID := c.Param("emailId")

	if err := h.svc.MarkViewed(c.Request.Context(), account, emailID); err != nil {
		writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

type actedRequest struct {
	ActionType string `json:"action_type"`
}

func (h *AttentionHandler) MarkActed(c *gin.Context) {
	account := Account(c)
	emailID := c.Param("emailId")

	var req actedRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	if err := h.svc.MarkActed(c.Request.Context(), account, emailID, req.ActionType); err != nil {
		writeServiceError(c, err)
		return
	}

	h.logger.Info("Attention item acted",
		zap.String("account", account.String()),
		zap.String("email_id", emailID),
		zap.String("action_type", req.ActionType),
	)
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
