package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"attention-engine/internal/repository"
)

// PrivacyHandler manages the sender blocklist that gates body access.
// The blocklist is global: a sender blocked for one mailbox is blocked
// for all of them.
type PrivacyHandler struct {
	blocklist *repository.BlocklistRepository
	logger    *zap.Logger
}

func NewPrivacyHandler(blocklist *repository.BlocklistRepository, logger *zap.Logger) *PrivacyHandler {
	return &PrivacyHandler{blocklist: blocklist, logger: logger}
}

func (h *PrivacyHandler) ListBlocklist(c *gin.Context) {
	entries, err := h.blocklist.List(c.Request.Context())
	if err != nil {
		h.logger.Error("Blocklist list failed", zap.Error(err))
		writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"entries": entries})
}

type blockSenderRequest struct {
	Sender string `json:"sender"`
	Hard   bool   `json:"hard"`
	Note   string `json:"note"`
}

func (h *PrivacyHandler) BlockSender(c *gin.Context) {
	var req blockSenderRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Sender == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "sender required"})
		return
	}

	entry, err := h.blocklist.Add(c.Request.Context(), req.Sender, req.Hard, req.Note)
	if err != nil {
		h.logger.Error("Blocklist add failed",
			zap.String("sender", req.Sender),
			zap.Error(err),
		)
		writeServiceError(c, err)
		return
	}

	h.logger.Info("Sender blocked",
		zap.String("sender", req.Sender),
		zap.Bool("hard", req.Hard),
	)
	c.JSON(http.StatusOK, gin.H{"entry": entry})
}

func (h *PrivacyHandler) UnblockSender(c *gin.Context) {
	sender := c.Param("sender")

	if err := h.blocklist.Remove(c.Request.Context(), sender); err != nil {
		writeServiceError(c, err)
		return
	}

	h.logger.Info("Sender unblocked", zap.String("sender", sender))
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
