package api

import (
	"errors"
	"net/http"

	"sales-order-service/internal/service"
	"sales-order-service/internal/util"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func ok(c *gin.Context, status int, data interface{}) {
	c.JSON(status, gin.H{"success": true, "data": data})
}

func fail(c *gin.Context, status int, message string, details interface{}) {
	body := gin.H{"success": false, "error": message}
	if details != nil {
		body["details"] = details
	}
	c.AbortWithStatusJSON(status, body)
}

// listDetails keeps an empty list out of the envelope
func listDetails(items []string) interface{} {
	if len(items) == 0 {
		return nil
	}
	return items
}

// respondError maps service errors onto the response envelope
func respondError(c *gin.Context, err error) {
	var verr *service.ValidationError
	var conflict *service.ConflictError
	switch {
	case errors.As(err, &verr):
		fail(c, http.StatusBadRequest, verr.Message, listDetails(verr.Problems))
	case errors.As(err, &conflict):
		fail(c, http.StatusConflict, conflict.Error(), listDetails(conflict.OrderIDs))
	case errors.Is(err, service.ErrNotFound):
		fail(c, http.StatusNotFound, "Not found", nil)
	case errors.Is(err, service.ErrForbidden):
		fail(c, http.StatusForbidden, "Forbidden", nil)
	case errors.Is(err, service.ErrUnauthorized):
		fail(c, http.StatusUnauthorized, "Unauthorized", nil)
	default:
		util.LoggerFromContext(c.Request.Context()).Error("Request failed",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Error(err))
		fail(c, http.StatusInternalServerError, "Internal server error", nil)
	}
}
