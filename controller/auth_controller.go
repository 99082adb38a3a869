// api/controller/auth_controller.go
package controller

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	warden_errors "github.com/dev-mohitbeniwal/warden/api/errors"
	"github.com/dev-mohitbeniwal/warden/api/service"
	"github.com/dev-mohitbeniwal/warden/api/util"
)

type AuthController struct {
	accessService service.IAccessService
	credentials   *service.CredentialRegistry
}

func NewAuthController(accessService service.IAccessService, credentials *service.CredentialRegistry) *AuthController {
	return &AuthController{
		accessService: accessService,
		credentials:   credentials,
	}
}

// RegisterRoutes registers the API routes for authentication
func (ac *AuthController) RegisterRoutes(r *gin.RouterGroup) {
	auth := r.Group("/auth")
	{
		auth.POST("/login", ac.Login)
		auth.POST("/logout", ac.Logout)
	}
}

type loginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
	MFACode  string `json:"mfa_code,omitempty"`
}

// Login endpoint
func (ac *AuthController) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		util.RespondWithError(c, http.StatusBadRequest, "Invalid login data", err)
		return
	}

	sess, err := ac.accessService.Authenticate(c, service.AuthRequest{
		Username:           req.Username,
		CredentialVerifier: func() bool { return ac.credentials.VerifyPassword(req.Username, req.Password) },
		MFAVerifier:        func() bool { return ac.credentials.VerifyTOTP(req.Username, req.MFACode) },
		AuthMethod:         "password",
		SourceIP:           c.ClientIP(),
		UserAgent:          c.Request.UserAgent(),
	})
	if err != nil {
		switch {
		case errors.Is(err, warden_errors.ErrUserLocked):
			util.RespondWithError(c, http.StatusLocked, "Account locked", err)
		case errors.Is(err, warden_errors.ErrUserInactive):
			util.RespondWithError(c, http.StatusForbidden, "Account inactive", err)
		case errors.Is(err, warden_errors.ErrInvalidCredentials):
			util.RespondWithError(c, http.StatusUnauthorized, "Invalid credentials", err)
		default:
			util.RespondWithError(c, http.StatusInternalServerError, "Authentication failed", err)
		}
		return
	}

	c.JSON(http.StatusOK, sess)
}

type logoutRequest struct {
	SessionID string `json:"session_id" binding:"required"`
}

// Logout endpoint
func (ac *AuthController) Logout(c *gin.Context) {
	var req logoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		util.RespondWithError(c, http.StatusBadRequest, "Invalid logout data", err)
		return
	}

	if err := ac.accessService.Logout(c, req.SessionID); err != nil {
		if errors.Is(err, warden_errors.ErrSessionNotFound) {
			util.RespondWithError(c, http.StatusNotFound, "Session not found", err)
		} else {
			util.RespondWithError(c, http.StatusConflict, "Session already ended", err)
		}
		return
	}

	c.Status(http.StatusNoContent)
}
