package services

import (
	"context"

	"github.com/anonto42/letterbox/backend/internal/models"
	"github.com/anonto42/letterbox/backend/internal/repositories"
)

type Resource string

const (
	ResourceContent   Resource = "content"
	ResourceHighlight Resource = "highlight"
	ResourceUser      Resource = "user"
)

type Action string

const (
	ActionDeleteAny    Action = "delete_any"
	ActionRestore      Action = "restore"
	ActionPurge        Action = "purge"
	ActionReview       Action = "review"
	ActionOverrideLock Action = "override_lock"
	ActionManageRoles  Action = "manage_roles"
)

// grants lists, per role, the actions it may perform beyond acting on its own
// content. Admins hold every moderator grant.
var grants = map[models.Role]map[Resource][]Action{
	models.RoleModerator: {
		ResourceContent:   {ActionDeleteAny, ActionRestore, ActionReview},
		ResourceHighlight: {ActionOverrideLock},
	},
	models.RoleAdmin: {
		ResourceContent:   {ActionDeleteAny, ActionRestore, ActionReview, ActionPurge},
		ResourceHighlight: {ActionOverrideLock},
		ResourceUser:      {ActionManageRoles},
	},
}

// Permissions answers role-based permission checks.
type Permissions struct {
	users repositories.UserRepository
}

func NewPermissions(users repositories.UserRepository) *Permissions {
	return &Permissions{users: users}
}

// HasPermission reports whether the user's role grants action on resource.
func (p *Permissions) HasPermission(ctx context.Context, userID uint, resource Resource, action Action) (bool, error) {
	user, err := p.users.GetUserByID(ctx, userID)
	if err != nil {
		return false, err
	}
	for _, a := range grants[user.Role][resource] {
		if a == action {
			return true, nil
		}
	}
	return false, nil
}
