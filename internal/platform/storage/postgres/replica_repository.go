package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/agoradev/agora/internal/domain"
)

// ReplicaRepository tracks every externally-presented copy of a poll.
type ReplicaRepository struct {
	db *gorm.DB
}

func NewReplicaRepository(db *gorm.DB) *ReplicaRepository {
	return &ReplicaRepository{db: db}
}

type replicaModel struct {
	ID           string     `gorm:"column:id;primaryKey"`
	PollID       string     `gorm:"column:poll_id;index"`
	ExternalRef  string     `gorm:"column:external_ref"`
	SharedBy     string     `gorm:"column:shared_by"`
	IsActive     bool       `gorm:"column:is_active"`
	SharedAt     time.Time  `gorm:"column:shared_at"`
	LastSyncedAt *time.Time `gorm:"column:last_synced_at"`
}

func (replicaModel) TableName() string {
	return "view_replicas"
}

func (m replicaModel) toDomain() domain.ViewReplica {
	return domain.ViewReplica{
		ID:           domain.ReplicaID(m.ID),
		PollID:       domain.PollID(m.PollID),
		ExternalRef:  m.ExternalRef,
		SharedBy:     m.SharedBy,
		IsActive:     m.IsActive,
		SharedAt:     m.SharedAt,
		LastSyncedAt: m.LastSyncedAt,
	}
}

func fromDomainReplica(r domain.ViewReplica) replicaModel {
	return replicaModel{
		ID:           string(r.ID),
		PollID:       string(r.PollID),
		ExternalRef:  r.ExternalRef,
		SharedBy:     r.SharedBy,
		IsActive:     r.IsActive,
		SharedAt:     r.SharedAt,
		LastSyncedAt: r.LastSyncedAt,
	}
}

// Create inserts the replica. The unique (poll_id, external_ref) index keeps
// concurrent shares of the same ref down to one row: on conflict the insert
// falls back to reviving a deactivated row, and an active duplicate is
// rejected with ErrValidation.
func (r *ReplicaRepository) Create(ctx context.Context, replica domain.ViewReplica) error {
	model := fromDomainReplica(replica)
	err := r.db.WithContext(ctx).Create(&model).Error
	if err == nil {
		return nil
	}
	if !errors.Is(err, gorm.ErrDuplicatedKey) {
		return fmt.Errorf("gorm replicas: insert: %w", err)
	}

	res := r.db.WithContext(ctx).Model(&replicaModel{}).
		Where("poll_id = ? AND external_ref = ? AND is_active = ?", model.PollID, model.ExternalRef, false).
		Updates(map[string]any{
			"id":             model.ID,
			"shared_by":      model.SharedBy,
			"shared_at":      model.SharedAt,
			"is_active":      true,
			"last_synced_at": nil,
		})
	if res.Error != nil {
		return fmt.Errorf("gorm replicas: reactivate: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%w: already shared at %s", domain.ErrValidation, model.ExternalRef)
	}
	return nil
}

func (r *ReplicaRepository) ListActive(ctx context.Context, pollID domain.PollID) ([]domain.ViewReplica, error) {
	var models []replicaModel
	if err := r.db.WithContext(ctx).
		Where("poll_id = ? AND is_active = ?", pollID, true).
		Order("shared_at ASC").
		Find(&models).Error; err != nil {
		return nil, fmt.Errorf("gorm replicas: list active: %w", err)
	}

	result := make([]domain.ViewReplica, len(models))
	for i, model := range models {
		result[i] = model.toDomain()
	}
	return result, nil
}

func (r *ReplicaRepository) Deactivate(ctx context.Context, pollID domain.PollID, externalRef string) error {
	res := r.db.WithContext(ctx).Model(&replicaModel{}).
		Where("poll_id = ? AND external_ref = ? AND is_active = ?", pollID, externalRef, true).
		Update("is_active", false)
	if res.Error != nil {
		return fmt.Errorf("gorm replicas: deactivate: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *ReplicaRepository) MarkSynced(ctx context.Context, id domain.ReplicaID, at time.Time) error {
	if err := r.db.WithContext(ctx).Model(&replicaModel{}).
		Where("id = ?", id).
		Update("last_synced_at", at).Error; err != nil {
		return fmt.Errorf("gorm replicas: mark synced: %w", err)
	}
	return nil
}

var _ domain.ReplicaRepository = (*ReplicaRepository)(nil)
