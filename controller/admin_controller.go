// api/controller/admin_controller.go
package controller

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/dev-mohitbeniwal/warden/api/catalog"
	warden_errors "github.com/dev-mohitbeniwal/warden/api/errors"
	"github.com/dev-mohitbeniwal/warden/api/model"
	"github.com/dev-mohitbeniwal/warden/api/service"
	"github.com/dev-mohitbeniwal/warden/api/store"
	"github.com/dev-mohitbeniwal/warden/api/util"
)

// AdminController exposes bootstrap and user-lifecycle operations.
type AdminController struct {
	users         *store.UserStore
	permissions   *catalog.PermissionCatalog
	roles         *catalog.RoleGraph
	credentials   *service.CredentialRegistry
	accessService service.IAccessService
	eventBus      *util.EventBus
}

func NewAdminController(
	users *store.UserStore,
	permissions *catalog.PermissionCatalog,
	roles *catalog.RoleGraph,
	credentials *service.CredentialRegistry,
	accessService service.IAccessService,
	eventBus *util.EventBus,
) *AdminController {
	return &AdminController{
		users:         users,
		permissions:   permissions,
		roles:         roles,
		credentials:   credentials,
		accessService: accessService,
		eventBus:      eventBus,
	}
}

// RegisterRoutes registers the administrative API routes
func (ac *AdminController) RegisterRoutes(r *gin.RouterGroup) {
	admin := r.Group("/admin")
	{
		admin.POST("/permissions", ac.RegisterPermission)
		admin.POST("/roles", ac.RegisterRole)
		admin.POST("/users", ac.CreateUser)
		admin.GET("/users/:id", ac.GetUser)
		admin.PUT("/users/:id/tier", ac.UpdateTier)
		admin.POST("/users/:id/unlock", ac.Unlock)
		admin.POST("/users/:id/terminate-sessions", ac.TerminateSessions)
	}
}

// RegisterPermission endpoint
func (ac *AdminController) RegisterPermission(c *gin.Context) {
	var permission model.Permission
	if err := c.ShouldBindJSON(&permission); err != nil {
		util.RespondWithError(c, http.StatusBadRequest, "Invalid permission data", err)
		return
	}

	if err := ac.permissions.Register(permission); err != nil {
		switch {
		case errors.Is(err, warden_errors.ErrPermissionConflict):
			util.RespondWithError(c, http.StatusConflict, "Permission already exists", err)
		case errors.Is(err, warden_errors.ErrInvalidPermissionData):
			util.RespondWithError(c, http.StatusBadRequest, "Invalid permission data", err)
		default:
			util.RespondWithError(c, http.StatusInternalServerError, "Failed to register permission", err)
		}
		return
	}

	c.JSON(http.StatusCreated, permission)
}

// RegisterRole endpoint
func (ac *AdminController) RegisterRole(c *gin.Context) {
	var role model.Role
	if err := c.ShouldBindJSON(&role); err != nil {
		util.RespondWithError(c, http.StatusBadRequest, "Invalid role data", err)
		return
	}

	if err := ac.roles.Register(role); err != nil {
		if errors.Is(err, warden_errors.ErrInvalidRoleData) {
			util.RespondWithError(c, http.StatusBadRequest, "Invalid role data", err)
		} else {
			util.RespondWithError(c, http.StatusInternalServerError, "Failed to register role", err)
		}
		return
	}

	ac.eventBus.Publish(c, util.EventRoleChanged, role.ID)
	c.JSON(http.StatusCreated, role)
}

type createUserRequest struct {
	store.CreateUserRequest
	Password  string `json:"password" binding:"required"`
	EnrollMFA bool   `json:"enroll_mfa,omitempty"`
}

// CreateUser endpoint
func (ac *AdminController) CreateUser(c *gin.Context) {
	var req createUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		util.RespondWithError(c, http.StatusBadRequest, "Invalid user data", err)
		return
	}

	user, err := ac.users.Create(c, req.CreateUserRequest)
	if err != nil {
		switch {
		case errors.Is(err, warden_errors.ErrUserConflict):
			util.RespondWithError(c, http.StatusConflict, "User already exists", err)
		case errors.Is(err, warden_errors.ErrInvalidUserData), errors.Is(err, warden_errors.ErrTierExceedsMaximum):
			util.RespondWithError(c, http.StatusBadRequest, "Invalid user data", err)
		default:
			util.RespondWithError(c, http.StatusInternalServerError, "Failed to create user", err)
		}
		return
	}

	if err := ac.credentials.SetPassword(user.Username, req.Password); err != nil {
		util.RespondWithError(c, http.StatusInternalServerError, "Failed to store credentials", err)
		return
	}

	response := gin.H{"user": user}
	if req.EnrollMFA {
		secret, err := ac.credentials.EnrollTOTP(user.Username, "warden")
		if err != nil {
			util.RespondWithError(c, http.StatusInternalServerError, "Failed to enroll MFA", err)
			return
		}
		response["totp_secret"] = secret
	}

	c.JSON(http.StatusCreated, response)
}

// GetUser endpoint
func (ac *AdminController) GetUser(c *gin.Context) {
	user, err := ac.users.Get(c.Param("id"))
	if err != nil {
		util.RespondWithError(c, http.StatusNotFound, "User not found", err)
		return
	}
	c.JSON(http.StatusOK, user)
}

type updateTierRequest struct {
	Tier model.Tier `json:"tier" binding:"required"`
}

// UpdateTier endpoint
func (ac *AdminController) UpdateTier(c *gin.Context) {
	var req updateTierRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		util.RespondWithError(c, http.StatusBadRequest, "Invalid tier data", err)
		return
	}

	if err := ac.users.UpdateTier(c, c.Param("id"), req.Tier); err != nil {
		switch {
		case errors.Is(err, warden_errors.ErrUserNotFound):
			util.RespondWithError(c, http.StatusNotFound, "User not found", err)
		case errors.Is(err, warden_errors.ErrTierExceedsMaximum):
			util.RespondWithError(c, http.StatusBadRequest, "Tier exceeds user maximum", err)
		default:
			util.RespondWithError(c, http.StatusInternalServerError, "Failed to update tier", err)
		}
		return
	}

	c.Status(http.StatusNoContent)
}

// Unlock endpoint
func (ac *AdminController) Unlock(c *gin.Context) {
	if err := ac.users.ResetFailures(c, c.Param("id")); err != nil {
		if errors.Is(err, warden_errors.ErrUserNotFound) {
			util.RespondWithError(c, http.StatusNotFound, "User not found", err)
		} else {
			util.RespondWithError(c, http.StatusInternalServerError, "Failed to unlock user", err)
		}
		return
	}
	c.Status(http.StatusNoContent)
}

// TerminateSessions endpoint
func (ac *AdminController) TerminateSessions(c *gin.Context) {
	count := ac.accessService.TerminateUserSessions(c, c.Param("id"))
	c.JSON(http.StatusOK, gin.H{"terminated": count})
}
