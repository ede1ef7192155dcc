package http

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"referral-system/internal/service"
)

const (
	authClaimsKey     = "auth_claims"
	sessionCookieName = "session"
)

// JWTAuthMiddleware valida el access token (header Bearer o cookie de sesión)
// y guarda los claims en el contexto.
func JWTAuthMiddleware(logger *zap.Logger, jwtSvc *service.JWTService) gin.HandlerFunc {
	return func(c *gin.Context) {
		if jwtSvc == nil {
			logger.Error("jwt middleware without jwt service")
			abortWithError(c, http.StatusInternalServerError, codeInternalError, "internal server error", nil)
			return
		}

		token := accessTokenFromRequest(c)
		if token == "" {
			abortWithError(c, http.StatusUnauthorized, codeNotAuthenticated, "authentication required", nil)
			return
		}

		claims, err := jwtSvc.ParseAccessToken(token)
		if err != nil {
			logger.Debug("rejected access token", zap.Error(err))
			abortWithError(c, http.StatusUnauthorized, codeNotAuthenticated, "authentication required", nil)
			return
		}

		c.Set(authClaimsKey, claims)
		c.Next()
	}
}

func accessTokenFromRequest(c *gin.Context) string {
	header := strings.TrimSpace(c.GetHeader("Authorization"))
	if len(header) > len("Bearer ") && strings.HasPrefix(strings.ToLower(header), "bearer ") {
		return strings.TrimSpace(header[len("Bearer "):])
	}
	if cookie, err := c.Cookie(sessionCookieName); err == nil {
		return strings.TrimSpace(cookie)
	}
	return ""
}

// GetAuthClaims obtiene claims de JWT desde el contexto.
func GetAuthClaims(c *gin.Context) (service.Claims, bool) {
	val, ok := c.Get(authClaimsKey)
	if !ok {
		return service.Claims{}, false
	}
	claims, ok := val.(service.Claims)
	return claims, ok
}
