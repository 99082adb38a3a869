// api/controller/controllers.go
package controller

import (
	"github.com/dev-mohitbeniwal/warden/api/catalog"
	"github.com/dev-mohitbeniwal/warden/api/service"
	"github.com/dev-mohitbeniwal/warden/api/store"
	"github.com/dev-mohitbeniwal/warden/api/util"
)

type Controllers struct {
	Auth   *AuthController
	Access *AccessController
	Admin  *AdminController
}

func InitializeControllers(
	accessService service.IAccessService,
	credentials *service.CredentialRegistry,
	users *store.UserStore,
	permissions *catalog.PermissionCatalog,
	roles *catalog.RoleGraph,
	eventBus *util.EventBus,
) *Controllers {
	return &Controllers{
		Auth:   NewAuthController(accessService, credentials),
		Access: NewAccessController(accessService),
		Admin:  NewAdminController(users, permissions, roles, credentials, accessService, eventBus),
	}
}
