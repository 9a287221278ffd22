package middlewares

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/birchwood-sourdough/orders/services"
)

// WebSocketAuthMiddleware checks the token query parameter before an upgrade. Browsers
// cannot set headers on websocket requests, and a JSON body is useless to them, so a
// rejection is a bare 401.
func WebSocketAuthMiddleware(verifier TokenVerifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, err := verifier.Verify(c.Request.Context(), c.Query("token"), c.ClientIP())
		if err != nil {
			c.AbortWithStatus(http.StatusUnauthorized)
			return
		}
		c.Set(ContextClaims, claims)
		c.Next()
	}
}

// Claims returns the admin claims set by the auth middlewares.
func Claims(c *gin.Context) *services.AdminClaims {
	v, ok := c.Get(ContextClaims)
	if !ok {
		return nil
	}
	claims, _ := v.(*services.AdminClaims)
	return claims
}
