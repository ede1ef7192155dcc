package http

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"referral-system/internal/codegen"
	"referral-system/internal/service"
)

// Códigos de error expuestos en el campo "code" de las respuestas.
const (
	codeValidationError        = "VALIDATION_ERROR"
	codeCodeGenerationError    = "CODE_GENERATION_ERROR"
	codeCodeExpired            = "CODE_EXPIRED"
	codeInvalidCode            = "INVALID_CODE"
	codeUserCreationError      = "USER_CREATION_ERROR"
	codeNotAuthenticated       = "NOT_AUTHENTICATED"
	codeUserNotFound           = "USER_NOT_FOUND"
	codeInviteAlreadyActivated = "INVITE_ALREADY_ACTIVATED"
	codeInvalidInviteCode      = "INVALID_INVITE_CODE"
	codeSelfInviteNotAllowed   = "SELF_INVITE_NOT_ALLOWED"
	codeInternalError          = "INTERNAL_ERROR"
)

// statusClientClosedRequest marca peticiones abandonadas por el cliente (convención de nginx).
const statusClientClosedRequest = 499

// ErrorResponse es el cuerpo uniforme de todas las respuestas de error.
type ErrorResponse struct {
	Status  string            `json:"status"`
	Message string            `json:"message"`
	Code    string            `json:"code,omitempty"`
	Details map[string]string `json:"details,omitempty"`
}

func abortWithError(c *gin.Context, httpStatus int, code, message string, details map[string]string) {
	c.AbortWithStatusJSON(httpStatus, ErrorResponse{
		Status:  "error",
		Message: message,
		Code:    code,
		Details: details,
	})
}

// respondError traduce errores de dominio a la respuesta HTTP correspondiente.
func respondError(c *gin.Context, logger *zap.Logger, err error) {
	var vErr *service.ValidationError
	switch {
	case errors.As(err, &vErr):
		abortWithError(c, http.StatusBadRequest, codeValidationError, "invalid request data", vErr.Fields)
	case errors.Is(err, codegen.ErrCodeGeneration):
		logger.Error("code generation failed", zap.Error(err))
		abortWithError(c, http.StatusInternalServerError, codeCodeGenerationError, err.Error(), nil)
	case errors.Is(err, service.ErrUserCreation):
		logger.Error("user creation failed", zap.Error(err))
		abortWithError(c, http.StatusInternalServerError, codeUserCreationError, "could not create user", nil)
	case errors.Is(err, service.ErrCodeExpired):
		abortWithError(c, http.StatusBadRequest, codeCodeExpired, "code expired", nil)
	case errors.Is(err, service.ErrInvalidCode):
		abortWithError(c, http.StatusBadRequest, codeInvalidCode, "invalid code", nil)
	case errors.Is(err, service.ErrInviteAlreadyActivated):
		abortWithError(c, http.StatusBadRequest, codeInviteAlreadyActivated, "invite code already activated", nil)
	case errors.Is(err, service.ErrInvalidInviteCode):
		abortWithError(c, http.StatusBadRequest, codeInvalidInviteCode, "invalid invite code", nil)
	case errors.Is(err, service.ErrSelfInviteNotAllowed):
		abortWithError(c, http.StatusBadRequest, codeSelfInviteNotAllowed, "cannot activate your own invite code", nil)
	case errors.Is(err, service.ErrUserNotFound):
		abortWithError(c, http.StatusNotFound, codeUserNotFound, "user not found", nil)
	case errors.Is(err, service.ErrJWTInvalid), errors.Is(err, service.ErrJWTExpired):
		abortWithError(c, http.StatusUnauthorized, codeNotAuthenticated, "authentication required", nil)
	case errors.Is(err, context.Canceled):
		logger.Debug("request canceled by client",
			zap.String("path", c.Request.URL.Path),
			zap.Error(err),
		)
		c.AbortWithStatus(statusClientClosedRequest)
	default:
		logger.Error("unhandled error",
			zap.String("path", c.Request.URL.Path),
			zap.Error(err),
		)
		abortWithError(c, http.StatusInternalServerError, codeInternalError, "internal server error", nil)
	}
}
