package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/agoradev/agora/internal/domain"
)

// RoleRepository reads team role assignments for the permission checker.
type RoleRepository struct {
	db *gorm.DB
}

func NewRoleRepository(db *gorm.DB) *RoleRepository {
	return &RoleRepository{db: db}
}

type userRoleModel struct {
	UserID     string    `gorm:"column:user_id;primaryKey"`
	TeamID     string    `gorm:"column:team_id;primaryKey"`
	Role       string    `gorm:"column:role"`
	AssignedBy string    `gorm:"column:assigned_by"`
	AssignedAt time.Time `gorm:"column:assigned_at"`
	IsActive   bool      `gorm:"column:is_active"`
}

func (userRoleModel) TableName() string {
	return "user_roles"
}

func (r *RoleRepository) Find(ctx context.Context, userID, teamID string) (domain.UserRole, error) {
	var model userRoleModel
	if err := r.db.WithContext(ctx).
		First(&model, "user_id = ? AND team_id = ?", userID, teamID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.UserRole{}, domain.ErrNotFound
		}
		return domain.UserRole{}, fmt.Errorf("gorm roles: find: %w", err)
	}
	return domain.UserRole{
		UserID:     model.UserID,
		TeamID:     model.TeamID,
		Role:       domain.Role(model.Role),
		AssignedBy: model.AssignedBy,
		AssignedAt: model.AssignedAt,
		IsActive:   model.IsActive,
	}, nil
}

var _ domain.RoleRepository = (*RoleRepository)(nil)
