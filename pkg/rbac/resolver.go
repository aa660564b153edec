package rbac

import (
	"context"
	"fmt"
)

// RoleStore is the storage surface the inheritance resolver needs.
type RoleStore interface {
	// GetRoleNode returns the role with its permissions and direct parent
	// edges, or nil when no such role exists.
	GetRoleNode(ctx context.Context, roleID string) (*RoleNode, error)
}

// Resolver walks a role's inheritance graph and aggregates the full
// permission set. The graph is untrusted: it may contain cycles and edges
// to roles that no longer exist, and the resolver must terminate and
// produce a sensible result anyway.
type Resolver struct {
	store RoleStore
}

// NewResolver creates a resolver over the given role store.
func NewResolver(store RoleStore) *Resolver {
	return &Resolver{store: store}
}

// Resolve computes the aggregated permission set for a role.
//
// Traversal is breadth-first with a visited set keyed by role ID, so a
// cycle is simply an edge to an already-visited node and contributes
// nothing new. Parent permissions carried on the edge are unioned as soon
// as the edge is seen; if the parent row itself has since vanished the
// edge's permissions still count and the missing node is skipped without
// error. After the walk, the catalog baseline for the role's name is
// merged in so a system role can never resolve to less than its baseline.
func (r *Resolver) Resolve(ctx context.Context, roleID string) (*ResolvedRole, error) {
	perms := make(map[string]struct{})
	visited := make(map[string]struct{})
	queue := []string{roleID}
	visited[roleID] = struct{}{}

	var roleName string
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]

		node, err := r.store.GetRoleNode(ctx, current)
		if err != nil {
			return nil, fmt.Errorf("failed to load role %s: %w", current, err)
		}
		if node == nil {
			// Dangling reference. Edge permissions were already unioned
			// when the edge was seen, so just skip the node.
			continue
		}
		if current == roleID {
			roleName = node.Name
		}

		for _, p := range node.Permissions {
			perms[p] = struct{}{}
		}
		for _, parent := range node.Parents {
			for _, p := range parent.Permissions {
				perms[p] = struct{}{}
			}
			if _, seen := visited[parent.ID]; seen {
				continue
			}
			visited[parent.ID] = struct{}{}
			queue = append(queue, parent.ID)
		}
	}

	for _, p := range BasePermissions(roleName) {
		perms[p] = struct{}{}
	}

	return &ResolvedRole{
		RoleName:    roleName,
		Permissions: sortedSet(perms),
	}, nil
}
