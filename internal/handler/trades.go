package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"optionbot/internal/repository"
)

type TradeHandler struct {
	Repo repository.Repository

	// DefaultLimit is the page size applied when the request names none.
	DefaultLimit int
}

func (h *TradeHandler) Register(r *gin.Engine) {
	r.GET("/api/users/:userID/trades", h.listTrades)
	r.GET("/api/trades/:id", h.getTrade)
}

func (h *TradeHandler) listTrades(c *gin.Context) {
	if h.Repo == nil {
		Error(c, http.StatusInternalServerError, codeInternal, "repo unavailable")
		return
	}
	userID := c.Param("userID")
	def := h.DefaultLimit
	if def <= 0 {
		def = 50
	}
	limit := intQuery(c, "limit", def)
	offset := intQuery(c, "offset", 0)

	accounts, err := h.Repo.ListAccountsByUserID(c.Request.Context(), userID)
	if err != nil {
		Error(c, http.StatusBadGateway, codeStore, err.Error())
		return
	}
	if len(accounts) == 0 {
		Ok(c, []any{}, paginationMeta(limit, offset, 0))
		return
	}
	accountIDs := make([]string, 0, len(accounts))
	for _, acct := range accounts {
		accountIDs = append(accountIDs, acct.ID)
	}

	items, err := h.Repo.ListTradeSignals(c.Request.Context(), repository.ListTradesParams{
		AccountIDs: accountIDs,
		Limit:      limit,
		Offset:     offset,
	})
	if err != nil {
		Error(c, http.StatusBadGateway, codeStore, err.Error())
		return
	}
	Ok(c, items, paginationMeta(limit, offset, len(items)))
}

func (h *TradeHandler) getTrade(c *gin.Context) {
	if h.Repo == nil {
		Error(c, http.StatusInternalServerError, codeInternal, "repo unavailable")
		return
	}
	trade, err := h.Repo.GetTradeSignalByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		Error(c, http.StatusBadGateway, codeStore, err.Error())
		return
	}
	if trade == nil {
		Error(c, http.StatusNotFound, codeNotFound, "trade not found")
		return
	}
	Ok(c, trade, nil)
}
