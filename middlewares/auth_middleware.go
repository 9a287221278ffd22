package middlewares

import (
	"context"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/birchwood-sourdough/orders/services"
	"github.com/birchwood-sourdough/orders/utils"
)

const (
	ContextClaims = "claims"
	ContextToken  = "token"
)

type TokenVerifier interface {
	Verify(ctx context.Context, token, ip string) (*services.AdminClaims, error)
}

// AuthMiddleware admits requests carrying a valid admin token, read from the
// Authorization header or, failing that, the token query parameter.
func AuthMiddleware(verifier TokenVerifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := BearerToken(c)
		if token == "" {
			token = c.Query("token")
		}

		claims, err := verifier.Verify(c.Request.Context(), token, c.ClientIP())
		if err != nil {
			utils.AbortWithError(c, err)
			return
		}

		c.Set(ContextClaims, claims)
		c.Set(ContextToken, token)
		c.Next()
	}
}

func BearerToken(c *gin.Context) string {
	header := c.GetHeader("Authorization")
	if !strings.HasPrefix(header, "Bearer ") {
		return ""
	}
	return strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
}
