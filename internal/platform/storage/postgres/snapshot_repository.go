package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/agoradev/agora/internal/domain"
)

// SnapshotRepository caches derived analytics; the ledger remains the source
// of truth and a lost snapshot is recomputed on the next sync job.
type SnapshotRepository struct {
	db *gorm.DB
}

func NewSnapshotRepository(db *gorm.DB) *SnapshotRepository {
	return &SnapshotRepository{db: db}
}

type snapshotModel struct {
	PollID             string    `gorm:"column:poll_id;primaryKey"`
	TotalVotes         int64     `gorm:"column:total_votes"`
	UniqueVoters       int64     `gorm:"column:unique_voters"`
	ParticipationRate  float64   `gorm:"column:participation_rate"`
	AvgResponseSeconds float64   `gorm:"column:avg_response_seconds"`
	PeakHour           *int      `gorm:"column:peak_hour"`
	LastMilestone      int64     `gorm:"column:last_milestone"`
	UpdatedAt          time.Time `gorm:"column:updated_at"`
}

func (snapshotModel) TableName() string {
	return "analytics_snapshots"
}

func (m snapshotModel) toDomain() domain.AnalyticsSnapshot {
	return domain.AnalyticsSnapshot{
		PollID:                 domain.PollID(m.PollID),
		TotalVotes:             m.TotalVotes,
		UniqueVoters:           m.UniqueVoters,
		ParticipationRate:      m.ParticipationRate,
		AvgResponseTimeSeconds: m.AvgResponseSeconds,
		PeakHour:               m.PeakHour,
		LastMilestone:          m.LastMilestone,
		UpdatedAt:              m.UpdatedAt,
	}
}

func fromDomainSnapshot(s domain.AnalyticsSnapshot) snapshotModel {
	return snapshotModel{
		PollID:             string(s.PollID),
		TotalVotes:         s.TotalVotes,
		UniqueVoters:       s.UniqueVoters,
		ParticipationRate:  s.ParticipationRate,
		AvgResponseSeconds: s.AvgResponseTimeSeconds,
		PeakHour:           s.PeakHour,
		LastMilestone:      s.LastMilestone,
		UpdatedAt:          s.UpdatedAt,
	}
}

func (r *SnapshotRepository) Get(ctx context.Context, pollID domain.PollID) (domain.AnalyticsSnapshot, error) {
	var model snapshotModel
	if err := r.db.WithContext(ctx).
		First(&model, "poll_id = ?", pollID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.AnalyticsSnapshot{}, domain.ErrNotFound
		}
		return domain.AnalyticsSnapshot{}, fmt.Errorf("gorm snapshots: get: %w", err)
	}
	return model.toDomain(), nil
}

func (r *SnapshotRepository) Upsert(ctx context.Context, s domain.AnalyticsSnapshot) error {
	model := fromDomainSnapshot(s)
	if err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "poll_id"}},
			UpdateAll: true,
		}).
		Create(&model).Error; err != nil {
		return fmt.Errorf("gorm snapshots: upsert: %w", err)
	}
	return nil
}

var _ domain.SnapshotRepository = (*SnapshotRepository)(nil)
