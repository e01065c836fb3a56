package handler

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"optionbot/internal/pipeline"
)

// WebhookHandler accepts pre-decided signals pushed by external alerting.
// The response shape is flat, not the envelope: alert senders expect the
// status/message fields at the top level.
type WebhookHandler struct {
	Pipeline *pipeline.Pipeline
	Logger   *zap.Logger
}

func (h *WebhookHandler) Register(r *gin.Engine) {
	r.POST("/api/webhook/tradingview/:userID", h.tradingView)
}

type webhookPayload struct {
	Signal   string `json:"signal"`
	Asset    string `json:"asset"`
	Expiry   int    `json:"expiry"`
	Strategy string `json:"strategy"`
}

func (h *WebhookHandler) tradingView(c *gin.Context) {
	if h.Pipeline == nil {
		c.JSON(http.StatusInternalServerError, gin.H{"status": "error", "message": "pipeline unavailable"})
		return
	}

	var payload webhookPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"status": "error", "message": "invalid JSON payload"})
		return
	}

	res, err := h.Pipeline.RunEvent(c.Request.Context(), pipeline.EventRequest{
		UserID:        c.Param("userID"),
		Direction:     strings.ToUpper(strings.TrimSpace(payload.Signal)),
		Asset:         strings.TrimSpace(payload.Asset),
		ExpirySeconds: payload.Expiry,
		StrategyName:  strings.TrimSpace(payload.Strategy),
	})
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":   "success",
		"message":  res.Message,
		"trade_id": res.TradeID,
		"outcome":  res.Outcome,
	})
}

func (h *WebhookHandler) writeError(c *gin.Context, err error) {
	var ve *pipeline.ValidationError
	if errors.As(err, &ve) {
		c.JSON(http.StatusBadRequest, gin.H{"status": "error", "message": ve.Error()})
		return
	}
	var nf *pipeline.NotFoundError
	if errors.As(err, &nf) {
		c.JSON(http.StatusNotFound, gin.H{"status": "error", "message": nf.Error()})
		return
	}
	if h.Logger != nil {
		h.Logger.Error("webhook cycle failed", zap.Error(err))
	}
	c.JSON(http.StatusInternalServerError, gin.H{"status": "error", "message": "trade cycle failed"})
}
