// api/catalog/role_graph.go
package catalog

import (
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	warden_errors "github.com/dev-mohitbeniwal/warden/api/errors"
	logger "github.com/dev-mohitbeniwal/warden/api/logging"
	"github.com/dev-mohitbeniwal/warden/api/model"
)

// RoleGraph stores role definitions and resolves transitive permission sets
// over the inherits_from relation. Resolution is cycle-safe: the traversal
// keeps a visited set, so a cyclic inheritance chain terminates instead of
// looping.
type RoleGraph struct {
	mu       sync.RWMutex
	roles    map[string]model.Role
	catalog  *PermissionCatalog
	resolved map[string]map[string]struct{}
}

func NewRoleGraph(catalog *PermissionCatalog) *RoleGraph {
	return &RoleGraph{
		roles:    make(map[string]model.Role),
		catalog:  catalog,
		resolved: make(map[string]map[string]struct{}),
	}
}

// Register adds or replaces a role definition and invalidates the resolution
// cache. Permission ids that reference nothing in the catalog are logged as
// warnings, not rejected.
func (g *RoleGraph) Register(role model.Role) error {
	if role.ID == "" {
		return fmt.Errorf("%w: role ID cannot be empty", warden_errors.ErrInvalidRoleData)
	}
	if !role.Tier.Valid() {
		return fmt.Errorf("%w: invalid tier %d", warden_errors.ErrInvalidRoleData, role.Tier)
	}

	for _, permissionID := range role.Permissions {
		if !g.catalog.Has(permissionID) {
			logger.Warn("Role references unknown permission",
				zap.String("roleID", role.ID),
				zap.String("permissionID", permissionID))
		}
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	now := time.Now().UTC()
	if existing, exists := g.roles[role.ID]; exists {
		role.CreatedAt = existing.CreatedAt
	} else if role.CreatedAt.IsZero() {
		role.CreatedAt = now
	}
	role.UpdatedAt = now
	g.roles[role.ID] = role

	// Any definition change can alter transitive closures, so drop the whole cache.
	g.resolved = make(map[string]map[string]struct{})
	return nil
}

// Get returns the role with the given id.
func (g *RoleGraph) Get(id string) (model.Role, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	role, exists := g.roles[id]
	if !exists {
		return model.Role{}, warden_errors.ErrRoleNotFound
	}
	return role, nil
}

// Has reports whether a role id is registered.
func (g *RoleGraph) Has(id string) bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	_, exists := g.roles[id]
	return exists
}

// ResolvePermissions computes the transitive permission set for a role,
// following inherits_from iteratively. Results are cached until the next
// Register call.
func (g *RoleGraph) ResolvePermissions(roleID string) (map[string]struct{}, error) {
	g.mu.RLock()
	if cached, ok := g.resolved[roleID]; ok {
		g.mu.RUnlock()
		return copySet(cached), nil
	}
	g.mu.RUnlock()

	g.mu.Lock()
	defer g.mu.Unlock()

	if cached, ok := g.resolved[roleID]; ok {
		return copySet(cached), nil
	}

	if _, exists := g.roles[roleID]; !exists {
		return nil, warden_errors.ErrRoleNotFound
	}

	permissions := make(map[string]struct{})
	visited := make(map[string]struct{})
	stack := []string{roleID}

	for len(stack) > 0 {
		current := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if _, seen := visited[current]; seen {
			continue
		}
		visited[current] = struct{}{}

		role, exists := g.roles[current]
		if !exists {
			logger.Warn("Role inherits from unknown role",
				zap.String("roleID", roleID),
				zap.String("missing", current))
			continue
		}

		for _, permissionID := range role.Permissions {
			permissions[permissionID] = struct{}{}
		}
		stack = append(stack, role.InheritsFrom...)
	}

	g.resolved[roleID] = permissions
	return copySet(permissions), nil
}

// ResolvePermissionSet unions the resolved permissions of several roles.
// Unknown role ids are skipped; a user holding a stale role reference should
// not lose access granted by their remaining roles.
func (g *RoleGraph) ResolvePermissionSet(roleIDs []string) map[string]struct{} {
	union := make(map[string]struct{})
	for _, roleID := range roleIDs {
		resolved, err := g.ResolvePermissions(roleID)
		if err != nil {
			logger.Warn("Skipping unresolvable role", zap.String("roleID", roleID), zap.Error(err))
			continue
		}
		for id := range resolved {
			union[id] = struct{}{}
		}
	}
	return union
}

func copySet(in map[string]struct{}) map[string]struct{} {
	out := make(map[string]struct{}, len(in))
	for k := range in {
		out[k] = struct{}{}
	}
	return out
}
