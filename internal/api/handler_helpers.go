package api

import (
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	"github.com/keshav323/digital-clock-application/internal"
	"github.com/keshav323/digital-clock-application/internal/response"
)

func HandleError(c *gin.Context, logger internal.Logger, err error, status int, msg string) {
	requestID := c.GetString("request_id")
	logger.Errorf("[request_id=%s] %s: %v", requestID, msg, err)
	var resp response.APIResponse
	switch status {
	case 400:
		resp = response.BadRequest(msg + ": " + err.Error())
	case 404:
		resp = response.NotFound(msg + ": " + err.Error())
	case 409:
		resp = response.Conflict(msg + ": " + err.Error())
	case 500:
		resp = response.InternalError(msg + ": " + err.Error())
	default:
		resp = response.NewAppError(status, msg+": "+err.Error())
	}
	c.JSON(status, resp)
}

// HandleServiceError maps each service error kind onto its HTTP status.
func HandleServiceError(c *gin.Context, logger internal.Logger, err error) {
	var vErrs validator.ValidationErrors
	if errors.As(err, &vErrs) {
		HandleError(c, logger, err, 400, "Validation failed")
		return
	}
	switch {
	case errors.Is(err, internal.ErrSessionConflict):
		HandleError(c, logger, err, 409, "Session already active")
	case errors.Is(err, internal.ErrNoActiveSession):
		HandleError(c, logger, err, 404, "No active session")
	case errors.Is(err, internal.ErrInvalidDuration):
		HandleError(c, logger, err, 400, "Invalid duration")
	case errors.Is(err, internal.ErrProviderMisconfigured):
		HandleError(c, logger, err, 503, "Weather service is not properly configured")
	case errors.Is(err, internal.ErrProviderUnavailable):
		HandleError(c, logger, err, 503, "Weather service is temporarily unavailable")
	case errors.Is(err, internal.ErrProviderError):
		HandleError(c, logger, err, 502, "Weather service error")
	default:
		HandleError(c, logger, err, 500, "Internal error")
	}
}

func HandleSuccess(c *gin.Context, logger internal.Logger, data interface{}, meta map[string]any) {
	requestID := c.GetString("request_id")
	logger.Infof("[request_id=%s] Success", requestID)
	c.JSON(200, response.Success(data, meta))
}
