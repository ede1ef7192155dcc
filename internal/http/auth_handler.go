package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"referral-system/internal/domain"
	"referral-system/internal/service"
)

// AuthHandler expone el flujo de login por código de verificación.
type AuthHandler struct {
	logger       *zap.Logger
	authServ     *service.AuthService
	jwtServ      *service.JWTService
	cookieSecure bool
}

func NewAuthHandler(logger *zap.Logger, authServ *service.AuthService, jwtServ *service.JWTService, cookieSecure bool) *AuthHandler {
	registerValidators()
	return &AuthHandler{
		logger:       logger,
		authServ:     authServ,
		jwtServ:      jwtServ,
		cookieSecure: cookieSecure,
	}
}

type sendCodeResponse struct {
	Message     string `json:"message"`
	PhoneNumber string `json:"phone_number"`
	Code        string `json:"code"`
}

type verifyCodeResponse struct {
	domain.User
	IsNewUser bool              `json:"is_new_user"`
	Tokens    service.TokenPair `json:"tokens"`
}

// SendCode maneja POST /auth/send-code.
func (h *AuthHandler) SendCode(c *gin.Context) {
	var req struct {
		PhoneNumber string `json:"phone_number" binding:"required,phone"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("invalid send code request", zap.Error(err))
		respondError(c, h.logger, bindingError(err))
		return
	}

	record, err := h.authServ.SendCode(c.Request.Context(), req.PhoneNumber)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	// El código va en la respuesta: no hay entrega real por SMS.
	c.JSON(http.StatusOK, sendCodeResponse{
		Message:     "verification code sent",
		PhoneNumber: record.PhoneNumber,
		Code:        record.Code,
	})
}

// VerifyCode maneja POST /auth/verify-code.
func (h *AuthHandler) VerifyCode(c *gin.Context) {
	var req struct {
		PhoneNumber string `json:"phone_number" binding:"required,phone"`
		Code        string `json:"code" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("invalid verify code request", zap.Error(err))
		respondError(c, h.logger, bindingError(err))
		return
	}

	res, err := h.authServ.VerifyCode(c.Request.Context(), req.PhoneNumber, req.Code)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	tokens, err := h.issueTokens(c, res.User)
	if err != nil {
		h.logger.Error("jwt issue failed", zap.Error(err))
		abortWithError(c, http.StatusInternalServerError, codeInternalError, "could not issue tokens", nil)
		return
	}
	c.JSON(http.StatusOK, verifyCodeResponse{
		User:      res.User,
		IsNewUser: res.IsNewUser,
		Tokens:    tokens,
	})
}

// Refresh maneja POST /auth/refresh.
func (h *AuthHandler) Refresh(c *gin.Context) {
	var req struct {
		RefreshToken string `json:"refresh_token" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("invalid refresh request", zap.Error(err))
		respondError(c, h.logger, bindingError(err))
		return
	}

	tokens, err := h.jwtServ.RefreshPair(c.Request.Context(), req.RefreshToken)
	if err != nil {
		respondError(c, h.logger, service.ErrJWTInvalid)
		return
	}
	h.setSessionCookie(c, tokens.AccessToken)
	c.JSON(http.StatusOK, gin.H{"tokens": tokens})
}

// Logout maneja POST /auth/logout.
func (h *AuthHandler) Logout(c *gin.Context) {
	var req struct {
		RefreshToken string `json:"refresh_token" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("invalid logout request", zap.Error(err))
		respondError(c, h.logger, bindingError(err))
		return
	}
	if err := h.jwtServ.RevokeRefresh(c.Request.Context(), req.RefreshToken); err != nil {
		h.logger.Debug("logout with unusable refresh token", zap.Error(err))
	}
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(sessionCookieName, "", -1, "/", "", h.cookieSecure, true)
	c.Status(http.StatusNoContent)
}

func (h *AuthHandler) issueTokens(c *gin.Context, user domain.User) (service.TokenPair, error) {
	if h.jwtServ == nil {
		return service.TokenPair{}, errors.New("jwt not configured")
	}
	tokens, err := h.jwtServ.GeneratePair(c.Request.Context(), user)
	if err != nil {
		return service.TokenPair{}, err
	}
	h.setSessionCookie(c, tokens.AccessToken)
	return tokens, nil
}

func (h *AuthHandler) setSessionCookie(c *gin.Context, token string) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(sessionCookieName, token, int(h.jwtServ.AccessTTL().Seconds()), "/", "", h.cookieSecure, true)
}
