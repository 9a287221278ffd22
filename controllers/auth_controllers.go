package controllers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/birchwood-sourdough/orders/middlewares"
	"github.com/birchwood-sourdough/orders/services"
	"github.com/birchwood-sourdough/orders/utils"
)

type Authenticator interface {
	Login(ctx context.Context, password, ip string) (string, time.Time, error)
	Verify(ctx context.Context, token, ip string) (*services.AdminClaims, error)
	Logout(ctx context.Context, token string) error
}

type AuthController struct {
	auth Authenticator
}

func NewAuthController(auth Authenticator) *AuthController {
	return &AuthController{auth: auth}
}

// Login -> return JWT
func (ac *AuthController) Login(c *gin.Context) {
	var input struct {
		Password string `json:"password"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		utils.RespondError(c, invalidBody(err))
		return
	}

	token, expires, err := ac.auth.Login(c.Request.Context(), input.Password, c.ClientIP())
	if err != nil {
		utils.RespondError(c, err)
		return
	}

	utils.RespondJSON(c, http.StatusOK, "Login successful", gin.H{
		"token":     token,
		"expiresAt": expires,
	})
}

func (ac *AuthController) Verify(c *gin.Context) {
	claims, err := ac.auth.Verify(c.Request.Context(), middlewares.BearerToken(c), c.ClientIP())
	if err != nil {
		utils.RespondError(c, err)
		return
	}
	data := gin.H{"role": claims.Role}
	if claims.ExpiresAt != nil {
		data["expiresAt"] = claims.ExpiresAt.Time
	}
	utils.RespondJSON(c, http.StatusOK, "Token valid", data)
}

// Logout revokes the bearer token. Logging out twice succeeds.
func (ac *AuthController) Logout(c *gin.Context) {
	if err := ac.auth.Logout(c.Request.Context(), middlewares.BearerToken(c)); err != nil {
		utils.RespondError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Logged out", nil)
}
