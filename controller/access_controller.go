// api/controller/access_controller.go
package controller

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/dev-mohitbeniwal/warden/api/model"
	pdp_model "github.com/dev-mohitbeniwal/warden/api/pdp/model"
	"github.com/dev-mohitbeniwal/warden/api/service"
	"github.com/dev-mohitbeniwal/warden/api/util"
	helper_util "github.com/dev-mohitbeniwal/warden/api/util/helper"
)

type AccessController struct {
	accessService service.IAccessService
}

func NewAccessController(accessService service.IAccessService) *AccessController {
	return &AccessController{
		accessService: accessService,
	}
}

// RegisterRoutes registers the API routes for access checks and visibility
func (ac *AccessController) RegisterRoutes(r *gin.RouterGroup) {
	access := r.Group("/access")
	{
		access.POST("/check", ac.CheckAccess)
	}
	r.GET("/audit", ac.GetAuditTrail)
	r.GET("/status", ac.GetStatus)
}

type checkAccessRequest struct {
	SessionID  string         `json:"session_id" binding:"required"`
	Resource   string         `json:"resource" binding:"required"`
	AccessType string         `json:"access_type" binding:"required"`
	Context    map[string]any `json:"context,omitempty"`
}

// CheckAccess endpoint
func (ac *AccessController) CheckAccess(c *gin.Context) {
	var req checkAccessRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		util.RespondWithError(c, http.StatusBadRequest, "Invalid access request", err)
		return
	}

	accessType, err := model.ParseAccessType(req.AccessType)
	if err != nil {
		util.RespondWithError(c, http.StatusBadRequest, "Unknown access type", err)
		return
	}

	decision := ac.accessService.CheckAccess(c, pdp_model.AccessRequest{
		SessionID:  req.SessionID,
		Resource:   req.Resource,
		AccessType: accessType,
		Context:    req.Context,
		Timestamp:  time.Now().UTC(),
	})

	c.JSON(http.StatusOK, decision)
}

// GetAuditTrail endpoint
func (ac *AccessController) GetAuditTrail(c *gin.Context) {
	limit, err := helper_util.GetLimitParam(c, 100)
	if err != nil {
		util.RespondWithError(c, http.StatusBadRequest, "Invalid limit parameter", err)
		return
	}

	c.JSON(http.StatusOK, ac.accessService.AuditTrail(limit))
}

// GetStatus endpoint
func (ac *AccessController) GetStatus(c *gin.Context) {
	c.JSON(http.StatusOK, ac.accessService.Status())
}
