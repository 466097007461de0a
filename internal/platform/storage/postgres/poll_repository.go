package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/agoradev/agora/internal/domain"
)

// PollRepository maps the poll aggregate onto GORM tables.
type PollRepository struct {
	db *gorm.DB
}

func NewPollRepository(db *gorm.DB) *PollRepository {
	return &PollRepository{db: db}
}

type pollModel struct {
	ID         string        `gorm:"column:id;primaryKey"`
	Question   string        `gorm:"column:question"`
	TeamID     string        `gorm:"column:team_id"`
	ChannelRef string        `gorm:"column:channel_ref"`
	CreatorID  string        `gorm:"column:creator_id"`
	VoteType   string        `gorm:"column:vote_type"`
	Status     string        `gorm:"column:status"`
	CreatedAt  time.Time     `gorm:"column:created_at"`
	EndedAt    *time.Time    `gorm:"column:ended_at"`
	Options    []optionModel `gorm:"foreignKey:PollID;references:ID"`
}

func (pollModel) TableName() string {
	return "polls"
}

func (m pollModel) toDomain(includeOptions bool) domain.Poll {
	p := domain.Poll{
		ID:         domain.PollID(m.ID),
		Question:   m.Question,
		TeamID:     m.TeamID,
		ChannelRef: m.ChannelRef,
		CreatorID:  m.CreatorID,
		VoteType:   domain.VoteType(m.VoteType),
		Status:     domain.PollStatus(m.Status),
		CreatedAt:  m.CreatedAt,
		EndedAt:    m.EndedAt,
	}

	if includeOptions {
		options := make([]domain.Option, len(m.Options))
		for i, opt := range m.Options {
			options[i] = opt.toDomain()
		}
		p.Options = options
	}

	return p
}

func fromDomainPoll(p domain.Poll) pollModel {
	model := pollModel{
		ID:         string(p.ID),
		Question:   p.Question,
		TeamID:     p.TeamID,
		ChannelRef: p.ChannelRef,
		CreatorID:  p.CreatorID,
		VoteType:   string(p.VoteType),
		Status:     string(p.Status),
		CreatedAt:  p.CreatedAt,
		EndedAt:    p.EndedAt,
	}

	if len(p.Options) > 0 {
		model.Options = make([]optionModel, len(p.Options))
		for i, opt := range p.Options {
			model.Options[i] = fromDomainOption(opt)
		}
	}

	return model
}

func (r *PollRepository) Create(ctx context.Context, p domain.Poll) error {
	model := fromDomainPoll(p)
	if err := r.db.WithContext(ctx).Create(&model).Error; err != nil {
		return fmt.Errorf("gorm polls: insert: %w", err)
	}
	return nil
}

func (r *PollRepository) Update(ctx context.Context, p domain.Poll) error {
	model := fromDomainPoll(p)
	if err := r.db.WithContext(ctx).Model(&pollModel{}).
		Where("id = ?", model.ID).
		Updates(map[string]any{
			"question": model.Question,
			"status":   model.Status,
			"ended_at": model.EndedAt,
		}).Error; err != nil {
		return fmt.Errorf("gorm polls: update: %w", err)
	}
	return nil
}

// End is a compare-and-set on the status column, the same style as the vote
// counter bump: whoever loses the race gets ErrPollAlreadyEnded instead of
// firing the ended side effects a second time.
func (r *PollRepository) End(ctx context.Context, id domain.PollID, endedAt time.Time) error {
	res := r.db.WithContext(ctx).Model(&pollModel{}).
		Where("id = ? AND status = ?", id, string(domain.PollActive)).
		Updates(map[string]any{
			"status":   string(domain.PollEnded),
			"ended_at": endedAt,
		})
	if res.Error != nil {
		return fmt.Errorf("gorm polls: end: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		var count int64
		if err := r.db.WithContext(ctx).Model(&pollModel{}).
			Where("id = ?", id).Count(&count).Error; err != nil {
			return fmt.Errorf("gorm polls: end: %w", err)
		}
		if count == 0 {
			return domain.ErrNotFound
		}
		return domain.ErrPollAlreadyEnded
	}
	return nil
}

func (r *PollRepository) FindByID(ctx context.Context, id domain.PollID) (domain.Poll, error) {
	var model pollModel
	if err := r.db.WithContext(ctx).
		// Options come preloaded in presentation order.
		Preload("Options", func(db *gorm.DB) *gorm.DB {
			return db.Order("order_index ASC")
		}).
		First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.Poll{}, domain.ErrNotFound
		}
		return domain.Poll{}, fmt.Errorf("gorm polls: find by id: %w", err)
	}
	return model.toDomain(true), nil
}

func (r *PollRepository) ListActive(ctx context.Context, teamID string) ([]domain.Poll, error) {
	var models []pollModel
	query := r.db.WithContext(ctx).Where("status = ?", string(domain.PollActive))
	if teamID != "" {
		query = query.Where("team_id = ?", teamID)
	}
	if err := query.Order("created_at DESC").Find(&models).Error; err != nil {
		return nil, fmt.Errorf("gorm polls: list active: %w", err)
	}

	result := make([]domain.Poll, len(models))
	for i, model := range models {
		result[i] = model.toDomain(false)
	}
	return result, nil
}

func (r *PollRepository) Delete(ctx context.Context, id domain.PollID) error {
	// Whole-poll deletion is the only path that touches ledger rows; it stays
	// atomic no matter what a fan-out in flight is doing.
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("poll_id = ?", id).Delete(&voteModel{}).Error; err != nil {
			return err
		}
		if err := tx.Where("poll_id = ?", id).Delete(&participationModel{}).Error; err != nil {
			return err
		}
		if err := tx.Where("poll_id = ?", id).Delete(&optionModel{}).Error; err != nil {
			return err
		}
		if err := tx.Where("poll_id = ?", id).Delete(&replicaModel{}).Error; err != nil {
			return err
		}
		if err := tx.Where("poll_id = ?", id).Delete(&snapshotModel{}).Error; err != nil {
			return err
		}
		res := tx.Where("id = ?", id).Delete(&pollModel{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return domain.ErrNotFound
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.ErrNotFound
		}
		return fmt.Errorf("gorm polls: delete: %w", err)
	}
	return nil
}

var _ domain.PollRepository = (*PollRepository)(nil)
