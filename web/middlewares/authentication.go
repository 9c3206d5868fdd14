package middlewares

import (
	"net/http"
	"strings"

	"accessadmin.com/accessadmin/security"
	"accessadmin.com/accessadmin/web/common"
	"github.com/gin-gonic/gin"
)

const (
	SessionCookie = "accessadmin.session"
	ClaimsKey     = "claims"
)

// Authentication accepts a Bearer token or the session cookie, verifies it
// against secret and stores the claims under ClaimsKey.
func Authentication(secret []byte) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenStr := ""

		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			// Try to get from cookie
			cookie, err := c.Cookie(SessionCookie)
			if err != nil {
				c.AbortWithStatusJSON(http.StatusUnauthorized, common.NewErrorResponse("missing token"))
				return
			}
			tokenStr = cookie
		} else {
			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
				c.AbortWithStatusJSON(http.StatusUnauthorized, common.NewErrorResponse("malformed authorization header"))
				return
			}
			tokenStr = parts[1]
		}

		claims, err := security.ParseIdentityToken(tokenStr, secret)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, common.NewErrorResponse("invalid or expired token"))
			return
		}

		c.Set(ClaimsKey, claims)
		c.Next()
	}
}

// Operator returns the authenticated operator, nil on public routes.
func Operator(c *gin.Context) *security.Operator {
	v, ok := c.Get(ClaimsKey)
	if !ok {
		return nil
	}
	claims, ok := v.(*security.IdentityClaims)
	if !ok {
		return nil
	}
	return &claims.Operator
}
