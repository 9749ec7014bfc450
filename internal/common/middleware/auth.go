package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"sorteos-backend/internal/common/auth"
	"sorteos-backend/internal/common/errors"
)

const principalKey = "principal"

// Authenticate resolves an optional bearer token into the request principal.
// Requests without a token pass through; an invalid token is rejected.
func Authenticate(tokens *auth.TokenManager) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := bearerToken(c)
		if raw == "" {
			c.Next()
			return
		}

		principal, err := tokens.Parse(raw)
		if err != nil {
			abortWithError(c, errors.NewUnauthorizedError("invalid or expired token"))
			return
		}

		c.Set(principalKey, principal)
		c.Set(userIDKey, principal.UserID)
		c.Next()
	}
}

func RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, ok := GetPrincipal(c); !ok {
			abortWithError(c, errors.NewUnauthorizedError("token required"))
			return
		}
		c.Next()
	}
}

func RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		principal, ok := GetPrincipal(c)
		if !ok {
			abortWithError(c, errors.NewUnauthorizedError("token required"))
			return
		}
		if !principal.IsAdmin() {
			abortWithError(c, errors.NewForbiddenError("admin access required"))
			return
		}
		c.Next()
	}
}

// GetPrincipal returns the caller resolved by Authenticate.
func GetPrincipal(c *gin.Context) (auth.Principal, bool) {
	v, ok := c.Get(principalKey)
	if !ok {
		return auth.Principal{}, false
	}
	p, ok := v.(auth.Principal)
	return p, ok
}

func bearerToken(c *gin.Context) string {
	header := c.GetHeader("Authorization")
	if header != "" {
		const prefix = "bearer "
		if len(header) > len(prefix) && strings.EqualFold(header[:len(prefix)], prefix) {
			return strings.TrimSpace(header[len(prefix):])
		}
		return ""
	}
	// websocket clients cannot set headers from browsers
	return c.Query("token")
}

func abortWithError(c *gin.Context, appErr *errors.AppError) {
	sendErrorResponse(c, appErr)
	c.Abort()
}
