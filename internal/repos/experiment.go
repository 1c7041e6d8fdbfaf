package repos

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/NivaraGame/adaptive-lms/internal/domain"
	apperr "github.com/NivaraGame/adaptive-lms/internal/pkg/errors"
	"github.com/NivaraGame/adaptive-lms/internal/pkg/logger"
)

type ExperimentRepo interface {
	Create(ctx context.Context, tx *gorm.DB, row *domain.Experiment) error
	GetByID(ctx context.Context, tx *gorm.DB, id int64) (*domain.Experiment, error)
	ListByUserID(ctx context.Context, tx *gorm.DB, userID int64) ([]*domain.Experiment, error)
	ActiveByUserAndName(ctx context.Context, tx *gorm.DB, userID int64, name string) (*domain.Experiment, error)
	End(ctx context.Context, tx *gorm.DB, id int64, endedAt time.Time) error
}

type experimentRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewExperimentRepo(db *gorm.DB, baseLog *logger.Logger) ExperimentRepo {
	repoLog := baseLog.With("repo", "ExperimentRepo")
	return &experimentRepo{db: db, log: repoLog}
}

func (r *experimentRepo) Create(ctx context.Context, tx *gorm.DB, row *domain.Experiment) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	return transaction.WithContext(ctx).Create(row).Error
}

func (r *experimentRepo) GetByID(ctx context.Context, tx *gorm.DB, id int64) (*domain.Experiment, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	var row domain.Experiment
	if err := transaction.WithContext(ctx).
		Where("experiment_id = ?", id).
		First(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.ErrNotFound
		}
		return nil, err
	}
	return &row, nil
}

func (r *experimentRepo) ListByUserID(ctx context.Context, tx *gorm.DB, userID int64) ([]*domain.Experiment, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	var results []*domain.Experiment
	if err := transaction.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("started_at DESC").
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (r *experimentRepo) ActiveByUserAndName(ctx context.Context, tx *gorm.DB, userID int64, name string) (*domain.Experiment, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	var row domain.Experiment
	if err := transaction.WithContext(ctx).
		Where("user_id = ? AND experiment_name = ? AND ended_at IS NULL", userID, name).
		Order("started_at DESC").
		First(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.ErrNotFound
		}
		return nil, err
	}
	return &row, nil
}

func (r *experimentRepo) End(ctx context.Context, tx *gorm.DB, id int64, endedAt time.Time) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	res := transaction.WithContext(ctx).
		Model(&domain.Experiment{}).
		Where("experiment_id = ? AND ended_at IS NULL", id).
		Update("ended_at", endedAt)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return apperr.ErrNotFound
	}
	return nil
}
