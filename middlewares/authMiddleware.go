package middlewares

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/mmdatafocus/attendance_backend/config"
	"github.com/mmdatafocus/attendance_backend/utils"
)

// ClientInfoMiddleware records the caller's network address and agent
// string into the request context on every request, authenticated or not,
// so the audit producers can read them without touching the HTTP layer.
func ClientInfoMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := utils.SetIpAddressInContext(c.Request.Context(), c.ClientIP())
		ctx = utils.SetUserAgentInContext(ctx, c.Request.UserAgent())
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

// AuthMiddleware validates a Bearer token when present and loads the
// claims into the request context. Requests without a token pass through;
// route groups that need an identity add RequireAuth.
func AuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		auth := c.Request.Header.Get("Authorization")
		if auth == "" {
			c.Next()
			return
		}

		token := strings.TrimPrefix(auth, "Bearer ")

		validate, err := utils.JwtValidate(token)
		if err != nil || !validate.Valid {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Oturum Geçersizdir."})
			c.Abort()
			return
		}

		// A valid signature is not enough: the token must still be live in
		// the session store, otherwise it was revoked by logout or an
		// account change.
		_, exists, err := config.GetRedisValue("Token:" + token)
		if err == nil && !exists && config.GetRedisDB() != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Oturum Geçersizdir."})
			c.Abort()
			return
		}

		claims, ok := validate.Claims.(*utils.JwtCustomClaim)
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Oturum Geçersizdir."})
			c.Abort()
			return
		}

		ctx := utils.SetTokenInContext(c.Request.Context(), token)
		ctx = utils.SetUserIdInContext(ctx, claims.ID)
		// The display name attributed to audit entries is the login email.
		ctx = utils.SetUserNameInContext(ctx, claims.Email)
		ctx = utils.SetUserEmailInContext(ctx, claims.Email)
		ctx = utils.SetRoleInContext(ctx, claims.Role)
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

// RequireAuth rejects requests that carry no authenticated identity.
func RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		userId, ok := utils.GetUserIdFromContext(c.Request.Context())
		if !ok || userId == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Oturum Geçersizdir."})
			c.Abort()
			return
		}
		c.Next()
	}
}

// RequireRole rejects authenticated requests whose role does not match.
func RequireRole(role string) gin.HandlerFunc {
	return func(c *gin.Context) {
		actual, ok := utils.GetRoleFromContext(c.Request.Context())
		if !ok || actual != role {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Oturum Geçersizdir."})
			c.Abort()
			return
		}
		c.Next()
	}
}
