package repos

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/NivaraGame/adaptive-lms/internal/domain"
	apperr "github.com/NivaraGame/adaptive-lms/internal/pkg/errors"
	"github.com/NivaraGame/adaptive-lms/internal/pkg/logger"
)

// ContentFilters narrows catalog queries. Nil fields are ignored.
type ContentFilters struct {
	Topic           *string
	Subtopic        *string
	DifficultyLevel *string
	Format          *string
	ContentType     *string
	ExcludeIDs      []int64
}

type ContentRepo interface {
	Create(ctx context.Context, tx *gorm.DB, row *domain.ContentItem) error
	GetByID(ctx context.Context, tx *gorm.DB, id int64) (*domain.ContentItem, error)
	GetByIDs(ctx context.Context, tx *gorm.DB, ids []int64) ([]*domain.ContentItem, error)
	Update(ctx context.Context, tx *gorm.DB, row *domain.ContentItem) error
	Delete(ctx context.Context, tx *gorm.DB, id int64) error
	List(ctx context.Context, tx *gorm.DB, f ContentFilters, offset, limit int) ([]*domain.ContentItem, int64, error)
	Find(ctx context.Context, tx *gorm.DB, f ContentFilters, limit int) ([]*domain.ContentItem, error)
	Random(ctx context.Context, tx *gorm.DB, f ContentFilters) (*domain.ContentItem, error)
	Topics(ctx context.Context, tx *gorm.DB) ([]string, error)
	NextInTopic(ctx context.Context, tx *gorm.DB, topic string, afterID int64) (*domain.ContentItem, error)
}

type contentRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewContentRepo(db *gorm.DB, baseLog *logger.Logger) ContentRepo {
	repoLog := baseLog.With("repo", "ContentRepo")
	return &contentRepo{db: db, log: repoLog}
}

func applyContentFilters(q *gorm.DB, f ContentFilters) *gorm.DB {
	if f.Topic != nil {
		q = q.Where("topic = ?", *f.Topic)
	}
	if f.Subtopic != nil {
		q = q.Where("subtopic = ?", *f.Subtopic)
	}
	if f.DifficultyLevel != nil {
		q = q.Where("difficulty_level = ?", *f.DifficultyLevel)
	}
	if f.Format != nil {
		q = q.Where("format = ?", *f.Format)
	}
	if f.ContentType != nil {
		q = q.Where("content_type = ?", *f.ContentType)
	}
	if len(f.ExcludeIDs) > 0 {
		q = q.Where("content_id NOT IN ?", f.ExcludeIDs)
	}
	return q
}

func (r *contentRepo) Create(ctx context.Context, tx *gorm.DB, row *domain.ContentItem) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	return transaction.WithContext(ctx).Create(row).Error
}

func (r *contentRepo) GetByID(ctx context.Context, tx *gorm.DB, id int64) (*domain.ContentItem, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	var row domain.ContentItem
	if err := transaction.WithContext(ctx).
		Where("content_id = ?", id).
		First(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.ErrNotFound
		}
		return nil, err
	}
	return &row, nil
}

func (r *contentRepo) GetByIDs(ctx context.Context, tx *gorm.DB, ids []int64) ([]*domain.ContentItem, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	var results []*domain.ContentItem
	if len(ids) == 0 {
		return results, nil
	}
	if err := transaction.WithContext(ctx).
		Where("content_id IN ?", ids).
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (r *contentRepo) Update(ctx context.Context, tx *gorm.DB, row *domain.ContentItem) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	return transaction.WithContext(ctx).Save(row).Error
}

func (r *contentRepo) Delete(ctx context.Context, tx *gorm.DB, id int64) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	res := transaction.WithContext(ctx).
		Where("content_id = ?", id).
		Delete(&domain.ContentItem{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return apperr.ErrNotFound
	}
	return nil
}

func (r *contentRepo) List(ctx context.Context, tx *gorm.DB, f ContentFilters, offset, limit int) ([]*domain.ContentItem, int64, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	q := applyContentFilters(transaction.WithContext(ctx).Model(&domain.ContentItem{}), f)

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var results []*domain.ContentItem
	if err := q.
		Order("content_id ASC").
		Offset(offset).
		Limit(limit).
		Find(&results).Error; err != nil {
		return nil, 0, err
	}
	return results, total, nil
}

func (r *contentRepo) Find(ctx context.Context, tx *gorm.DB, f ContentFilters, limit int) ([]*domain.ContentItem, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	var results []*domain.ContentItem
	if err := applyContentFilters(transaction.WithContext(ctx), f).
		Order("content_id ASC").
		Limit(limit).
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (r *contentRepo) Random(ctx context.Context, tx *gorm.DB, f ContentFilters) (*domain.ContentItem, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	var row domain.ContentItem
	if err := applyContentFilters(transaction.WithContext(ctx), f).
		Order("RANDOM()").
		First(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.ErrNotFound
		}
		return nil, err
	}
	return &row, nil
}

func (r *contentRepo) Topics(ctx context.Context, tx *gorm.DB) ([]string, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	var topics []string
	if err := transaction.WithContext(ctx).
		Model(&domain.ContentItem{}).
		Distinct("topic").
		Order("topic ASC").
		Pluck("topic", &topics).Error; err != nil {
		return nil, err
	}
	return topics, nil
}

func (r *contentRepo) NextInTopic(ctx context.Context, tx *gorm.DB, topic string, afterID int64) (*domain.ContentItem, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	var row domain.ContentItem
	if err := transaction.WithContext(ctx).
		Where("topic = ? AND content_id > ?", topic, afterID).
		Order("content_id ASC").
		First(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.ErrNotFound
		}
		return nil, err
	}
	return &row, nil
}
