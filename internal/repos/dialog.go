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

type DialogRepo interface {
	Create(ctx context.Context, tx *gorm.DB, row *domain.Dialog) error
	GetByID(ctx context.Context, tx *gorm.DB, id int64) (*domain.Dialog, error)
	ListByUserID(ctx context.Context, tx *gorm.DB, userID int64, offset, limit int) ([]*domain.Dialog, error)
	End(ctx context.Context, tx *gorm.DB, id int64, endedAt time.Time) error
}

type dialogRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewDialogRepo(db *gorm.DB, baseLog *logger.Logger) DialogRepo {
	repoLog := baseLog.With("repo", "DialogRepo")
	return &dialogRepo{db: db, log: repoLog}
}

func (r *dialogRepo) Create(ctx context.Context, tx *gorm.DB, row *domain.Dialog) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	return transaction.WithContext(ctx).Create(row).Error
}

func (r *dialogRepo) GetByID(ctx context.Context, tx *gorm.DB, id int64) (*domain.Dialog, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	var row domain.Dialog
	if err := transaction.WithContext(ctx).
		Where("dialog_id = ?", id).
		First(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.ErrNotFound
		}
		return nil, err
	}
	return &row, nil
}

func (r *dialogRepo) ListByUserID(ctx context.Context, tx *gorm.DB, userID int64, offset, limit int) ([]*domain.Dialog, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	var results []*domain.Dialog
	if err := transaction.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("started_at DESC").
		Offset(offset).
		Limit(limit).
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (r *dialogRepo) End(ctx context.Context, tx *gorm.DB, id int64, endedAt time.Time) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	res := transaction.WithContext(ctx).
		Model(&domain.Dialog{}).
		Where("dialog_id = ? AND ended_at IS NULL", id).
		Update("ended_at", endedAt)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return apperr.ErrNotFound
	}
	return nil
}
