package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"optionbot/internal/automation"
	"optionbot/internal/pipeline"
	"optionbot/internal/signal"
)

// Stable machine-readable codes carried in every envelope.
const (
	codeOK           = "OK"
	codeValidation   = "VALIDATION_ERROR"
	codeNotFound     = "NOT_FOUND"
	codeSessionAbort = "SESSION_ABORTED"
	codeStore        = "STORE_ERROR"
	codeInternal     = "INTERNAL_ERROR"
)

type apiResponse struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Data    any            `json:"data,omitempty"`
	Meta    map[string]any `json:"meta,omitempty"`
}

func Ok(c *gin.Context, data any, meta map[string]any) {
	c.JSON(http.StatusOK, apiResponse{
		Code:    codeOK,
		Message: "ok",
		Data:    data,
		Meta:    meta,
	})
}

func Error(c *gin.Context, status int, code, message string) {
	c.JSON(status, apiResponse{
		Code:    code,
		Message: message,
	})
}

// cycleError maps pipeline errors onto the envelope. Unknown errors are kept
// vague in the body; the caller logs the detail.
func cycleError(c *gin.Context, err error) {
	var ve *pipeline.ValidationError
	if errors.As(err, &ve) {
		Error(c, http.StatusBadRequest, codeValidation, ve.Error())
		return
	}
	var nf *pipeline.NotFoundError
	if errors.As(err, &nf) {
		Error(c, http.StatusNotFound, codeNotFound, nf.Error())
		return
	}
	if errors.Is(err, signal.ErrInsufficientData) {
		Error(c, http.StatusBadRequest, codeValidation, err.Error())
		return
	}
	// The pipeline normally folds aborts into the ABORTED outcome, but a
	// StepError that does escape still maps to its own code.
	var se *automation.StepError
	if errors.As(err, &se) {
		Error(c, http.StatusBadGateway, codeSessionAbort, se.Error())
		return
	}
	var pe *pipeline.PersistenceError
	if errors.As(err, &pe) {
		Error(c, http.StatusBadGateway, codeStore, pe.Error())
		return
	}
	Error(c, http.StatusInternalServerError, codeInternal, "decision cycle failed")
}

func intQuery(c *gin.Context, key string, def int) int {
	raw := c.Query(key)
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return v
}

func paginationMeta(limit, offset int, count int) map[string]any {
	return map[string]any{
		"limit":  limit,
		"offset": offset,
		"count":  count,
	}
}
