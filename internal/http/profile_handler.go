package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"referral-system/internal/service"
)

// ProfileHandler sirve el perfil del usuario autenticado y la activación de invites.
type ProfileHandler struct {
	logger   *zap.Logger
	registry *service.InviteRegistry
}

func NewProfileHandler(logger *zap.Logger, registry *service.InviteRegistry) *ProfileHandler {
	registerValidators()
	return &ProfileHandler{
		logger:   logger,
		registry: registry,
	}
}

// GetProfile maneja GET /profile.
func (h *ProfileHandler) GetProfile(c *gin.Context) {
	claims, ok := GetAuthClaims(c)
	if !ok {
		respondError(c, h.logger, service.ErrJWTInvalid)
		return
	}

	profile, err := h.registry.Profile(c.Request.Context(), claims.UserID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, profile)
}

// ActivateInvite maneja POST /profile/activate-invite.
func (h *ProfileHandler) ActivateInvite(c *gin.Context) {
	claims, ok := GetAuthClaims(c)
	if !ok {
		respondError(c, h.logger, service.ErrJWTInvalid)
		return
	}

	var req struct {
		InviteCode string `json:"invite_code" binding:"required,max=16"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("invalid activate invite request", zap.Error(err))
		respondError(c, h.logger, bindingError(err))
		return
	}

	profile, err := h.registry.ActivateInviteForUser(c.Request.Context(), claims.UserID, req.InviteCode)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, profile)
}
