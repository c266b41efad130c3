// README: Base handler utilities (JSON helpers, error mapping).
package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"cargoline/internal/http/middleware"
	"cargoline/internal/integrations/backend"
	"cargoline/internal/modules/drivers"
	"cargoline/internal/modules/jobs"
	"cargoline/internal/modules/notify"
)

type errorResponse struct {
	Error string `json:"error"`
}

// isValidID ensures IDs are alphanumeric and at most 32 chars (matches the
// ID generator).
func isValidID(v string) bool {
	if v == "" || len(v) > 32 {
		return false
	}
	for _, c := range v {
		if (c >= '0' && c <= '9') || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') {
			continue
		}
		return false
	}
	return true
}

func callerUID(c *gin.Context) string {
	return middleware.CallerUID(c)
}

func callerRole(c *gin.Context) string {
	return middleware.CallerRole(c)
}

func writeJSON(c *gin.Context, status int, v any) {
	c.JSON(status, v)
}

func writeError(c *gin.Context, status int, msg string) {
	writeJSON(c, status, errorResponse{Error: msg})
}

func writeServiceError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, jobs.ErrValidation),
		errors.Is(err, drivers.ErrBadRequest):
		writeError(c, http.StatusBadRequest, err.Error())
	case errors.Is(err, jobs.ErrNotFound),
		errors.Is(err, drivers.ErrNotFound),
		errors.Is(err, notify.ErrNotFound):
		writeError(c, http.StatusNotFound, err.Error())
	case errors.Is(err, jobs.ErrInvalidTransition),
		errors.Is(err, jobs.ErrConflict),
		errors.Is(err, drivers.ErrNotAvailable),
		errors.Is(err, drivers.ErrActiveAssignment):
		writeError(c, http.StatusConflict, err.Error())
	case errors.Is(err, backend.ErrUnavailable):
		writeError(c, http.StatusBadGateway, err.Error())
	default:
		writeError(c, http.StatusInternalServerError, "internal error")
	}
}
