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

// VoteRepository owns the append-only ledger. Record runs the whole dedup +
// append + counter bump in one transaction so the invariants hold across
// process instances without any application-level locking.
type VoteRepository struct {
	db *gorm.DB
}

func NewVoteRepository(db *gorm.DB) *VoteRepository {
	return &VoteRepository{db: db}
}

type voteModel struct {
	ID       string    `gorm:"column:id;primaryKey"`
	PollID   string    `gorm:"column:poll_id;index"`
	VoterID  string    `gorm:"column:voter_id"`
	OptionID string    `gorm:"column:option_id;index"`
	CastAt   time.Time `gorm:"column:cast_at"`
}

func (voteModel) TableName() string {
	return "vote_records"
}

type participationModel struct {
	PollID       string    `gorm:"column:poll_id;primaryKey"`
	VoterID      string    `gorm:"column:voter_id;primaryKey"`
	FirstVotedAt time.Time `gorm:"column:first_voted_at"`
}

func (participationModel) TableName() string {
	return "voter_participation"
}

func fromDomainVote(v domain.VoteRecord) voteModel {
	return voteModel{
		ID:       string(v.ID),
		PollID:   string(v.PollID),
		VoterID:  v.VoterID,
		OptionID: string(v.OptionID),
		CastAt:   v.CastAt,
	}
}

func (m voteModel) toDomain() domain.VoteRecord {
	return domain.VoteRecord{
		ID:       domain.VoteID(m.ID),
		PollID:   domain.PollID(m.PollID),
		VoterID:  m.VoterID,
		OptionID: domain.OptionID(m.OptionID),
		CastAt:   m.CastAt,
	}
}

func (r *VoteRepository) Record(ctx context.Context, poll domain.Poll, vote domain.VoteRecord) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		participation := participationModel{
			PollID:       string(vote.PollID),
			VoterID:      vote.VoterID,
			FirstVotedAt: vote.CastAt,
		}

		if poll.VoteType == domain.VoteSingle {
			// Single choice: the participation primary key is the dedup gate.
			if err := tx.Create(&participation).Error; err != nil {
				if errors.Is(err, gorm.ErrDuplicatedKey) {
					return domain.ErrAlreadyVoted
				}
				return err
			}
		} else {
			// Multiple choice keeps one participation row per voter; conflicts
			// are expected and ignored, the per-option gate comes next.
			if err := tx.Clauses(clause.OnConflict{DoNothing: true}).
				Create(&participation).Error; err != nil {
				return err
			}
		}

		model := fromDomainVote(vote)
		if err := tx.Create(&model).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return domain.ErrAlreadyVoted
			}
			return err
		}

		// Counter bump happens in SQL, never read-modify-write in Go.
		res := tx.Model(&optionModel{}).
			Where("id = ? AND poll_id = ?", vote.OptionID, vote.PollID).
			UpdateColumn("vote_count", gorm.Expr("vote_count + ?", 1))
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return domain.ErrNotFound
		}
		return nil
	})

	if err != nil {
		if errors.Is(err, domain.ErrAlreadyVoted) || errors.Is(err, domain.ErrNotFound) {
			return err
		}
		return fmt.Errorf("gorm votes: record: %w", err)
	}
	return nil
}

func (r *VoteRepository) ListByPoll(ctx context.Context, pollID domain.PollID) ([]domain.VoteRecord, error) {
	var models []voteModel
	if err := r.db.WithContext(ctx).
		Where("poll_id = ?", pollID).
		Order("cast_at ASC, id ASC").
		Find(&models).Error; err != nil {
		return nil, fmt.Errorf("gorm votes: list: %w", err)
	}

	records := make([]domain.VoteRecord, len(models))
	for i, model := range models {
		records[i] = model.toDomain()
	}
	return records, nil
}

func (r *VoteRepository) CountByOption(ctx context.Context, pollID domain.PollID) (map[domain.OptionID]int64, error) {
	type row struct {
		OptionID string
		Total    int64
	}
	var rows []row
	if err := r.db.WithContext(ctx).
		Model(&voteModel{}).
		Select("option_id as option_id, COUNT(*) as total").
		Where("poll_id = ?", pollID).
		Group("option_id").
		Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("gorm votes: count by option: %w", err)
	}

	totals := make(map[domain.OptionID]int64, len(rows))
	for _, item := range rows {
		totals[domain.OptionID(item.OptionID)] = item.Total
	}
	return totals, nil
}

var _ domain.VoteRepository = (*VoteRepository)(nil)
