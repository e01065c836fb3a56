package handler

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"optionbot/internal/automation"
	"optionbot/internal/models"
	"optionbot/internal/pipeline"
	"optionbot/internal/repository"
)

type AccountHandler struct {
	Repo     repository.Repository
	Surfaces pipeline.SurfaceFactory
	Logger   *zap.Logger
}

func (h *AccountHandler) Register(r *gin.Engine) {
	r.GET("/api/users/:userID/accounts", h.listAccounts)
	r.POST("/api/users/:userID/accounts", h.createAccount)
	r.DELETE("/api/accounts/:id", h.deleteAccount)
	r.POST("/api/accounts/:id/test", h.testAccount)
}

type accountPayload struct {
	AccountName  string `json:"account_name"`
	Username     string `json:"username"`
	Password     string `json:"password"`
	IsDemo       *bool  `json:"is_demo"`
	AutoTrade    bool   `json:"auto_trade"`
	ChargingMode bool   `json:"charging_mode"`
}

func (h *AccountHandler) listAccounts(c *gin.Context) {
	if h.Repo == nil {
		Error(c, http.StatusInternalServerError, codeInternal, "repo unavailable")
		return
	}
	items, err := h.Repo.ListAccountsByUserID(c.Request.Context(), c.Param("userID"))
	if err != nil {
		Error(c, http.StatusBadGateway, codeStore, err.Error())
		return
	}
	Ok(c, items, nil)
}

func (h *AccountHandler) createAccount(c *gin.Context) {
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

	var payload accountPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		Error(c, http.StatusBadRequest, codeValidation, "invalid JSON payload")
		return
	}
	payload.Username = strings.TrimSpace(payload.Username)
	if payload.Username == "" {
		Error(c, http.StatusBadRequest, codeValidation, "missing required field: username")
		return
	}
	if payload.Password == "" {
		Error(c, http.StatusBadRequest, codeValidation, "missing required field: password")
		return
	}
	if payload.AccountName == "" {
		payload.AccountName = payload.Username
	}
	isDemo := true
	if payload.IsDemo != nil {
		isDemo = *payload.IsDemo
	}

	account := &models.VenueAccount{
		ID:           uuid.NewString(),
		UserID:       userID,
		AccountName:  payload.AccountName,
		Username:     payload.Username,
		Password:     payload.Password,
		IsDemo:       isDemo,
		AutoTrade:    payload.AutoTrade,
		ChargingMode: payload.ChargingMode,
	}
	if err := h.Repo.CreateAccount(c.Request.Context(), account); err != nil {
		Error(c, http.StatusBadGateway, codeStore, err.Error())
		return
	}
	Ok(c, account, nil)
}

func (h *AccountHandler) deleteAccount(c *gin.Context) {
	if h.Repo == nil {
		Error(c, http.StatusInternalServerError, codeInternal, "repo unavailable")
		return
	}
	id := c.Param("id")
	account, err := h.Repo.GetAccountByID(c.Request.Context(), id)
	if err != nil {
		Error(c, http.StatusBadGateway, codeStore, err.Error())
		return
	}
	if account == nil {
		Error(c, http.StatusNotFound, codeNotFound, "account not found")
		return
	}
	if err := h.Repo.DeleteAccount(c.Request.Context(), id); err != nil {
		Error(c, http.StatusBadGateway, codeStore, err.Error())
		return
	}
	Ok(c, gin.H{"deleted": id}, nil)
}

// testAccount checks the stored credentials against the venue. Without an
// automation surface configured the check degrades to a stored-credentials
// presence check.
func (h *AccountHandler) testAccount(c *gin.Context) {
	if h.Repo == nil {
		Error(c, http.StatusInternalServerError, codeInternal, "repo unavailable")
		return
	}
	account, err := h.Repo.GetAccountByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		Error(c, http.StatusBadGateway, codeStore, err.Error())
		return
	}
	if account == nil {
		Error(c, http.StatusNotFound, codeNotFound, "account not found")
		return
	}

	if h.Surfaces == nil {
		Ok(c, gin.H{"connected": true, "mode": "simulation"}, nil)
		return
	}

	surface, err := h.Surfaces(c.Request.Context())
	if err != nil {
		Ok(c, gin.H{"connected": false, "mode": "live", "reason": err.Error()}, nil)
		return
	}
	defer func() {
		if err := surface.Release(); err != nil && h.Logger != nil {
			h.Logger.Warn("surface release failed", zap.Error(err))
		}
	}()

	creds := automation.Credentials{Username: account.Username, Password: account.Password}
	if err := surface.Authenticate(c.Request.Context(), creds); err != nil {
		Ok(c, gin.H{"connected": false, "mode": "live", "reason": err.Error()}, nil)
		return
	}
	Ok(c, gin.H{"connected": true, "mode": "live"}, nil)
}
