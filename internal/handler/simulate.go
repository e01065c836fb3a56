package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"optionbot/internal/pipeline"
)

// SimulateHandler runs an on-demand synthetic decision cycle. Prices are
// optional: when absent the pipeline draws a mock series.
type SimulateHandler struct {
	Pipeline *pipeline.Pipeline
	Logger   *zap.Logger
}

func (h *SimulateHandler) Register(r *gin.Engine) {
	r.POST("/api/simulate/trading", h.simulate)
}

type simulateRequest struct {
	AccountID  string    `json:"account_id"`
	StrategyID string    `json:"strategy_id"`
	Asset      string    `json:"asset"`
	Prices     []float64 `json:"prices"`
	Charging   bool      `json:"charging_mode"`
	Force      bool      `json:"force"`
}

func (h *SimulateHandler) simulate(c *gin.Context) {
	if h.Pipeline == nil {
		Error(c, http.StatusInternalServerError, codeInternal, "pipeline unavailable")
		return
	}

	var req simulateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		Error(c, http.StatusBadRequest, codeValidation, "invalid JSON payload")
		return
	}
	if req.AccountID == "" {
		Error(c, http.StatusBadRequest, codeValidation, "missing required field: account_id")
		return
	}

	res, err := h.Pipeline.RunSynthetic(c.Request.Context(), pipeline.SyntheticRequest{
		AccountID:  req.AccountID,
		StrategyID: req.StrategyID,
		Asset:      req.Asset,
		Prices:     req.Prices,
		Charging:   req.Charging,
		Force:      req.Force,
	})
	if err != nil {
		if h.Logger != nil {
			h.Logger.Warn("simulated cycle failed", zap.String("account_id", req.AccountID), zap.Error(err))
		}
		cycleError(c, err)
		return
	}

	Ok(c, gin.H{
		"fired":     res.Fired,
		"trade_id":  res.TradeID,
		"direction": res.Direction,
		"asset":     res.Asset,
		"stake":     res.Stake,
		"outcome":   res.Outcome,
		"message":   res.Message,
	}, nil)
}
