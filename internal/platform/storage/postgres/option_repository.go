package postgres

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/agoradev/agora/internal/domain"
)

// OptionRepository persists poll options and their cached counters.
type OptionRepository struct {
	db *gorm.DB
}

func NewOptionRepository(db *gorm.DB) *OptionRepository {
	return &OptionRepository{db: db}
}

type optionModel struct {
	ID         string `gorm:"column:id;primaryKey"`
	PollID     string `gorm:"column:poll_id;index"`
	Text       string `gorm:"column:text"`
	OrderIndex int    `gorm:"column:order_index"`
	VoteCount  int64  `gorm:"column:vote_count"`
}

func (optionModel) TableName() string {
	return "poll_options"
}

func (m optionModel) toDomain() domain.Option {
	return domain.Option{
		ID:         domain.OptionID(m.ID),
		PollID:     domain.PollID(m.PollID),
		Text:       m.Text,
		OrderIndex: m.OrderIndex,
		VoteCount:  m.VoteCount,
	}
}

func fromDomainOption(o domain.Option) optionModel {
	return optionModel{
		ID:         string(o.ID),
		PollID:     string(o.PollID),
		Text:       o.Text,
		OrderIndex: o.OrderIndex,
		VoteCount:  o.VoteCount,
	}
}

func (r *OptionRepository) Add(ctx context.Context, o domain.Option) error {
	model := fromDomainOption(o)
	if err := r.db.WithContext(ctx).Create(&model).Error; err != nil {
		return fmt.Errorf("gorm options: insert: %w", err)
	}
	return nil
}

func (r *OptionRepository) Rename(ctx context.Context, id domain.OptionID, text string) error {
	res := r.db.WithContext(ctx).Model(&optionModel{}).
		Where("id = ?", id).
		Update("text", text)
	if res.Error != nil {
		return fmt.Errorf("gorm options: rename: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *OptionRepository) Remove(ctx context.Context, id domain.OptionID) error {
	// The counter guard lives in the DELETE itself so a concurrent vote between
	// check and delete can never orphan ledger rows.
	res := r.db.WithContext(ctx).
		Where("id = ? AND vote_count = 0", id).
		Delete(&optionModel{})
	if res.Error != nil {
		return fmt.Errorf("gorm options: remove: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		var count int64
		if err := r.db.WithContext(ctx).Model(&optionModel{}).
			Where("id = ?", id).Count(&count).Error; err != nil {
			return fmt.Errorf("gorm options: remove recheck: %w", err)
		}
		if count == 0 {
			return domain.ErrNotFound
		}
		return domain.ErrOptionHasVotes
	}
	return nil
}

func (r *OptionRepository) Reorder(ctx context.Context, pollID domain.PollID, order []domain.OptionID) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for idx, optionID := range order {
			res := tx.Model(&optionModel{}).
				Where("id = ? AND poll_id = ?", optionID, pollID).
				Update("order_index", idx)
			if res.Error != nil {
				return res.Error
			}
			if res.RowsAffected == 0 {
				return domain.ErrNotFound
			}
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.ErrNotFound
		}
		return fmt.Errorf("gorm options: reorder: %w", err)
	}
	return nil
}

func (r *OptionRepository) ListByPoll(ctx context.Context, pollID domain.PollID) ([]domain.Option, error) {
	var models []optionModel
	if err := r.db.WithContext(ctx).
		Where("poll_id = ?", pollID).
		Order("order_index ASC").
		Find(&models).Error; err != nil {
		return nil, fmt.Errorf("gorm options: list: %w", err)
	}

	result := make([]domain.Option, len(models))
	for i, model := range models {
		result[i] = model.toDomain()
	}
	return result, nil
}

var _ domain.OptionRepository = (*OptionRepository)(nil)
