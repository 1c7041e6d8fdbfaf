package repos

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/NivaraGame/adaptive-lms/internal/domain"
	apperr "github.com/NivaraGame/adaptive-lms/internal/pkg/errors"
	"github.com/NivaraGame/adaptive-lms/internal/pkg/logger"
)

type MetricRepo interface {
	Create(ctx context.Context, tx *gorm.DB, rows []*domain.Metric) ([]*domain.Metric, error)
	GetByID(ctx context.Context, tx *gorm.DB, id int64) (*domain.Metric, error)
	ListByUserID(ctx context.Context, tx *gorm.DB, userID int64, offset, limit int) ([]*domain.Metric, error)
	ListRecentByUserID(ctx context.Context, tx *gorm.DB, userID int64, limit int) ([]*domain.Metric, error)
	ListByMessageID(ctx context.Context, tx *gorm.DB, messageID int64) ([]*domain.Metric, error)
	DeleteByMessageID(ctx context.Context, tx *gorm.DB, messageID int64) error
}

type metricRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewMetricRepo(db *gorm.DB, baseLog *logger.Logger) MetricRepo {
	repoLog := baseLog.With("repo", "MetricRepo")
	return &metricRepo{db: db, log: repoLog}
}

func (r *metricRepo) Create(ctx context.Context, tx *gorm.DB, rows []*domain.Metric) ([]*domain.Metric, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	if len(rows) == 0 {
		return []*domain.Metric{}, nil
	}

	if err := transaction.WithContext(ctx).Create(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *metricRepo) GetByID(ctx context.Context, tx *gorm.DB, id int64) (*domain.Metric, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	var row domain.Metric
	if err := transaction.WithContext(ctx).
		Where("metric_id = ?", id).
		First(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.ErrNotFound
		}
		return nil, err
	}
	return &row, nil
}

func (r *metricRepo) ListByUserID(ctx context.Context, tx *gorm.DB, userID int64, offset, limit int) ([]*domain.Metric, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	var results []*domain.Metric
	if err := transaction.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("timestamp DESC").
		Offset(offset).
		Limit(limit).
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

// ListRecentByUserID returns the newest accuracy/response-time style rows,
// newest first.
func (r *metricRepo) ListRecentByUserID(ctx context.Context, tx *gorm.DB, userID int64, limit int) ([]*domain.Metric, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	var results []*domain.Metric
	if err := transaction.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("timestamp DESC").
		Limit(limit).
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (r *metricRepo) ListByMessageID(ctx context.Context, tx *gorm.DB, messageID int64) ([]*domain.Metric, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	var results []*domain.Metric
	if err := transaction.WithContext(ctx).
		Where("message_id = ?", messageID).
		Order("metric_id ASC").
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (r *metricRepo) DeleteByMessageID(ctx context.Context, tx *gorm.DB, messageID int64) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	return transaction.WithContext(ctx).
		Where("message_id = ?", messageID).
		Delete(&domain.Metric{}).Error
}
