// Package permission implements the authorization collaborator gating EndPoll
// and structural option edits.
package permission

import (
	"context"
	"errors"

	"github.com/agoradev/agora/internal/domain"
)

// RoleChecker allows the poll creator and active team admins to manage a poll.
type RoleChecker struct {
	roles domain.RoleRepository
}

func NewRoleChecker(roles domain.RoleRepository) *RoleChecker {
	return &RoleChecker{roles: roles}
}

func (c *RoleChecker) CanManage(ctx context.Context, actorID string, poll domain.Poll) error {
	if actorID == "" {
		return domain.ErrPermissionDenied
	}
	if actorID == poll.CreatorID {
		return nil
	}

	role, err := c.roles.Find(ctx, actorID, poll.TeamID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.ErrPermissionDenied
		}
		return err
	}

	if role.IsActive && role.Role == domain.RoleAdmin {
		return nil
	}
	return domain.ErrPermissionDenied
}

// AllowAll is the permissive checker used in local runs and tests.
type AllowAll struct{}

func NewAllowAll() AllowAll {
	return AllowAll{}
}

func (AllowAll) CanManage(ctx context.Context, actorID string, poll domain.Poll) error {
	return nil
}

var (
	_ domain.PermissionChecker = (*RoleChecker)(nil)
	_ domain.PermissionChecker = AllowAll{}
)
