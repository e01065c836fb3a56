package handler

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/datatypes"

	"optionbot/internal/config"
	"optionbot/internal/models"
	"optionbot/internal/repository"
)

type StrategyHandler struct {
	Repo    repository.Repository
	Trading config.TradingConfig
}

func (h *StrategyHandler) Register(r *gin.Engine) {
	r.GET("/api/users/:userID/strategies", h.listStrategies)
	r.POST("/api/users/:userID/strategies", h.createStrategy)
	r.PUT("/api/strategies/:id", h.updateStrategy)
}

type strategyPayload struct {
	Name           string         `json:"name"`
	UpperThreshold *float64       `json:"upper_threshold"`
	LowerThreshold *float64       `json:"lower_threshold"`
	TradeAmount    *float64       `json:"trade_amount"`
	ExpirySeconds  *int           `json:"expiry_seconds"`
	Params         datatypes.JSON `json:"params"`
}

func (h *StrategyHandler) listStrategies(c *gin.Context) {
	if h.Repo == nil {
		Error(c, http.StatusInternalServerError, codeInternal, "repo unavailable")
		return
	}
	items, err := h.Repo.ListStrategiesByUserID(c.Request.Context(), c.Param("userID"))
	if err != nil {
		Error(c, http.StatusBadGateway, codeStore, err.Error())
		return
	}
	Ok(c, items, nil)
}

func (h *StrategyHandler) createStrategy(c *gin.Context) {
	if h.Repo == nil {
		Error(c, http.StatusInternalServerError, codeInternal, "repo unavailable")
		return
	}
	userID := c.Param("userID")
	user, err := h.Repo.GetUserByID(c.Request.Context(), userID)
	if err != nil {
		Error(c, http.StatusBadGateway, codeStore, err.Error())
		return
	}
	if user == nil {
		Error(c, http.StatusNotFound, codeNotFound, "user not found")
		return
	}

	var payload strategyPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		Error(c, http.StatusBadRequest, codeValidation, "invalid JSON payload")
		return
	}
	payload.Name = strings.TrimSpace(payload.Name)
	if payload.Name == "" {
		Error(c, http.StatusBadRequest, codeValidation, "missing required field: name")
		return
	}
	existing, err := h.Repo.GetStrategyByName(c.Request.Context(), userID, payload.Name)
	if err != nil {
		Error(c, http.StatusBadGateway, codeStore, err.Error())
		return
	}
	if existing != nil {
		Error(c, http.StatusBadRequest, codeValidation, "strategy name already in use")
		return
	}

	strat := &models.Strategy{
		ID:             uuid.NewString(),
		UserID:         userID,
		Name:           payload.Name,
		UpperThreshold: h.Trading.UpperThreshold,
		LowerThreshold: h.Trading.LowerThreshold,
		TradeAmount:    h.Trading.BaseStake,
		ExpirySeconds:  h.Trading.ExpirySeconds,
		Params:         payload.Params,
	}
	applyStrategyPayload(strat, &payload)
	if strat.UpperThreshold <= strat.LowerThreshold {
		Error(c, http.StatusBadRequest, codeValidation, "upper_threshold must exceed lower_threshold")
		return
	}
	if err := h.Repo.CreateStrategy(c.Request.Context(), strat); err != nil {
		Error(c, http.StatusBadGateway, codeStore, err.Error())
		return
	}
	Ok(c, strat, nil)
}

func (h *StrategyHandler) updateStrategy(c *gin.Context) {
	if h.Repo == nil {
		Error(c, http.StatusInternalServerError, codeInternal, "repo unavailable")
		return
	}
	strat, err := h.Repo.GetStrategyByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		Error(c, http.StatusBadGateway, codeStore, err.Error())
		return
	}
	if strat == nil {
		Error(c, http.StatusNotFound, codeNotFound, "strategy not found")
		return
	}

	var payload strategyPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		Error(c, http.StatusBadRequest, codeValidation, "invalid JSON payload")
		return
	}
	if name := strings.TrimSpace(payload.Name); name != "" {
		strat.Name = name
	}
	applyStrategyPayload(strat, &payload)
	if strat.UpperThreshold <= strat.LowerThreshold {
		Error(c, http.StatusBadRequest, codeValidation, "upper_threshold must exceed lower_threshold")
		return
	}
	if err := h.Repo.UpdateStrategy(c.Request.Context(), strat); err != nil {
		Error(c, http.StatusBadGateway, codeStore, err.Error())
		return
	}
	Ok(c, strat, nil)
}

func applyStrategyPayload(strat *models.Strategy, payload *strategyPayload) {
	if payload.UpperThreshold != nil {
		strat.UpperThreshold = *payload.UpperThreshold
	}
	if payload.LowerThreshold != nil {
		strat.LowerThreshold = *payload.LowerThreshold
	}
	if payload.TradeAmount != nil {
		strat.TradeAmount = *payload.TradeAmount
	}
	if payload.ExpirySeconds != nil && *payload.ExpirySeconds > 0 {
		strat.ExpirySeconds = *payload.ExpirySeconds
	}
	if len(payload.Params) > 0 {
		strat.Params = payload.Params
	}
}
