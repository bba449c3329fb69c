package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	"github.com/Rapid-Works/RapidWorks-sub002/internal/integrations"
	"github.com/Rapid-Works/RapidWorks-sub002/internal/logging"
)

// Error codes returned in failure bodies.
const (
	CodeInvalidArgument = "invalid-argument"
	CodeNotFound        = "not-found"
	CodeUnavailable     = "unavailable"
	CodeInternal        = "internal"
)

// ErrInvalidInput marks caller input errors.
var ErrInvalidInput = errors.New("invalid input")

// ErrPushDisabled is returned when the token registry or dispatcher is missing.
var ErrPushDisabled = errors.New("push dispatch is not configured")

type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func Success(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, data)
}

func Fail(c *gin.Context, status int, code, message string) {
	c.AbortWithStatusJSON(status, ErrorResponse{Code: code, Message: message})
}

// Error maps err onto a status code and failure body.
func Error(c *gin.Context, err error) {
	var ve validator.ValidationErrors
	switch {
	case errors.Is(err, ErrInvalidInput), errors.As(err, &ve):
		Fail(c, http.StatusBadRequest, CodeInvalidArgument, err.Error())
	case errors.Is(err, integrations.ErrAssistantDisabled),
		errors.Is(err, integrations.ErrRelayDisabled),
		errors.Is(err, ErrPushDisabled):
		Fail(c, http.StatusServiceUnavailable, CodeUnavailable, err.Error())
	default:
		logging.Error().Err(err).Str("path", c.FullPath()).Msg("request failed")
		Fail(c, http.StatusInternalServerError, CodeInternal, "internal error")
	}
}
