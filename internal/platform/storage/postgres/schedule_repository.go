package postgres

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/agoradev/agora/internal/domain"
)

// ScheduleRepository stores one-shot deferred poll actions for the worker tick.
type ScheduleRepository struct {
	db *gorm.DB
}

func NewScheduleRepository(db *gorm.DB) *ScheduleRepository {
	return &ScheduleRepository{db: db}
}

type scheduleModel struct {
	ID        string     `gorm:"column:id;primaryKey"`
	PollID    string     `gorm:"column:poll_id;index"`
	Action    string     `gorm:"column:action"`
	RunAt     time.Time  `gorm:"column:run_at"`
	CreatedBy string     `gorm:"column:created_by"`
	IsActive  bool       `gorm:"column:is_active"`
	CreatedAt time.Time  `gorm:"column:created_at"`
	RanAt     *time.Time `gorm:"column:ran_at"`
}

func (scheduleModel) TableName() string {
	return "scheduled_polls"
}

func (m scheduleModel) toDomain() domain.ScheduledPoll {
	return domain.ScheduledPoll{
		ID:        domain.ScheduleID(m.ID),
		PollID:    domain.PollID(m.PollID),
		Action:    domain.ScheduleAction(m.Action),
		RunAt:     m.RunAt,
		CreatedBy: m.CreatedBy,
		IsActive:  m.IsActive,
		CreatedAt: m.CreatedAt,
		RanAt:     m.RanAt,
	}
}

func fromDomainSchedule(s domain.ScheduledPoll) scheduleModel {
	return scheduleModel{
		ID:        string(s.ID),
		PollID:    string(s.PollID),
		Action:    string(s.Action),
		RunAt:     s.RunAt,
		CreatedBy: s.CreatedBy,
		IsActive:  s.IsActive,
		CreatedAt: s.CreatedAt,
		RanAt:     s.RanAt,
	}
}

func (r *ScheduleRepository) Create(ctx context.Context, schedule domain.ScheduledPoll) error {
	model := fromDomainSchedule(schedule)
	if err := r.db.WithContext(ctx).Create(&model).Error; err != nil {
		return fmt.Errorf("gorm schedules: insert: %w", err)
	}
	return nil
}

func (r *ScheduleRepository) ListDue(ctx context.Context, now time.Time) ([]domain.ScheduledPoll, error) {
	var models []scheduleModel
	if err := r.db.WithContext(ctx).
		Where("is_active = ? AND run_at <= ?", true, now).
		Order("run_at ASC").
		Find(&models).Error; err != nil {
		return nil, fmt.Errorf("gorm schedules: list due: %w", err)
	}

	result := make([]domain.ScheduledPoll, len(models))
	for i, model := range models {
		result[i] = model.toDomain()
	}
	return result, nil
}

// Complete is the claim: the conditional update on is_active guarantees that
// only one worker instance gets to run a given schedule.
func (r *ScheduleRepository) Complete(ctx context.Context, id domain.ScheduleID, ranAt time.Time) error {
	res := r.db.WithContext(ctx).Model(&scheduleModel{}).
		Where("id = ? AND is_active = ?", id, true).
		Updates(map[string]any{
			"is_active": false,
			"ran_at":    ranAt,
		})
	if res.Error != nil {
		return fmt.Errorf("gorm schedules: complete: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

var _ domain.ScheduleRepository = (*ScheduleRepository)(nil)
