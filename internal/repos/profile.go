package repos

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/NivaraGame/adaptive-lms/internal/domain"
	apperr "github.com/NivaraGame/adaptive-lms/internal/pkg/errors"
	"github.com/NivaraGame/adaptive-lms/internal/pkg/logger"
)

type UserProfileRepo interface {
	Create(ctx context.Context, tx *gorm.DB, row *domain.UserProfile) error
	GetByUserID(ctx context.Context, tx *gorm.DB, userID int64) (*domain.UserProfile, error)
	GetByUserIDForUpdate(ctx context.Context, tx *gorm.DB, userID int64) (*domain.UserProfile, error)
	Update(ctx context.Context, tx *gorm.DB, row *domain.UserProfile) error
	DeleteByUserID(ctx context.Context, tx *gorm.DB, userID int64) error
}

type userProfileRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewUserProfileRepo(db *gorm.DB, baseLog *logger.Logger) UserProfileRepo {
	repoLog := baseLog.With("repo", "UserProfileRepo")
	return &userProfileRepo{db: db, log: repoLog}
}

func (r *userProfileRepo) Create(ctx context.Context, tx *gorm.DB, row *domain.UserProfile) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	return transaction.WithContext(ctx).Create(row).Error
}

func (r *userProfileRepo) GetByUserID(ctx context.Context, tx *gorm.DB, userID int64) (*domain.UserProfile, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	var row domain.UserProfile
	if err := transaction.WithContext(ctx).
		Where("user_id = ?", userID).
		First(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.ErrNotFound
		}
		return nil, err
	}
	return &row, nil
}

// GetByUserIDForUpdate locks the row within the given transaction so the
// read-modify-write aggregation cycle is serialized per user.
func (r *userProfileRepo) GetByUserIDForUpdate(ctx context.Context, tx *gorm.DB, userID int64) (*domain.UserProfile, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	q := transaction.WithContext(ctx)
	if transaction.Dialector.Name() == "postgres" {
		q = q.Clauses(clause.Locking{Strength: "UPDATE"})
	}

	var row domain.UserProfile
	if err := q.Where("user_id = ?", userID).First(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.ErrNotFound
		}
		return nil, err
	}
	return &row, nil
}

func (r *userProfileRepo) Update(ctx context.Context, tx *gorm.DB, row *domain.UserProfile) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	return transaction.WithContext(ctx).Save(row).Error
}

func (r *userProfileRepo) DeleteByUserID(ctx context.Context, tx *gorm.DB, userID int64) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	res := transaction.WithContext(ctx).
		Where("user_id = ?", userID).
		Delete(&domain.UserProfile{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return apperr.ErrNotFound
	}
	return nil
}
