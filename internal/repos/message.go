package repos

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/NivaraGame/adaptive-lms/internal/domain"
	apperr "github.com/NivaraGame/adaptive-lms/internal/pkg/errors"
	"github.com/NivaraGame/adaptive-lms/internal/pkg/logger"
)

type MessageRepo interface {
	Create(ctx context.Context, tx *gorm.DB, row *domain.Message) error
	GetByID(ctx context.Context, tx *gorm.DB, id int64) (*domain.Message, error)
	ListByDialogID(ctx context.Context, tx *gorm.DB, dialogID int64, offset, limit int) ([]*domain.Message, error)
	ListByDialogIDUntil(ctx context.Context, tx *gorm.DB, dialogID, untilMessageID int64) ([]*domain.Message, error)
	CountByDialogID(ctx context.Context, tx *gorm.DB, dialogID int64) (int64, error)
	ListRecentByUserID(ctx context.Context, tx *gorm.DB, userID int64, limit int) ([]*domain.Message, error)
	LatestBySenderBefore(ctx context.Context, tx *gorm.DB, dialogID, beforeMessageID int64, senderType string) (*domain.Message, error)
}

type messageRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewMessageRepo(db *gorm.DB, baseLog *logger.Logger) MessageRepo {
	repoLog := baseLog.With("repo", "MessageRepo")
	return &messageRepo{db: db, log: repoLog}
}

func (r *messageRepo) Create(ctx context.Context, tx *gorm.DB, row *domain.Message) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	return transaction.WithContext(ctx).Create(row).Error
}

func (r *messageRepo) GetByID(ctx context.Context, tx *gorm.DB, id int64) (*domain.Message, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	var row domain.Message
	if err := transaction.WithContext(ctx).
		Where("message_id = ?", id).
		First(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.ErrNotFound
		}
		return nil, err
	}
	return &row, nil
}

func (r *messageRepo) ListByDialogID(ctx context.Context, tx *gorm.DB, dialogID int64, offset, limit int) ([]*domain.Message, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	var results []*domain.Message
	if err := transaction.WithContext(ctx).
		Where("dialog_id = ?", dialogID).
		Order("timestamp ASC").
		Offset(offset).
		Limit(limit).
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

// ListByDialogIDUntil returns the dialog history up to and including the
// given message, oldest first.
func (r *messageRepo) ListByDialogIDUntil(ctx context.Context, tx *gorm.DB, dialogID, untilMessageID int64) ([]*domain.Message, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	var results []*domain.Message
	if err := transaction.WithContext(ctx).
		Where("dialog_id = ? AND message_id <= ?", dialogID, untilMessageID).
		Order("timestamp ASC").
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (r *messageRepo) CountByDialogID(ctx context.Context, tx *gorm.DB, dialogID int64) (int64, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	var count int64
	if err := transaction.WithContext(ctx).
		Model(&domain.Message{}).
		Where("dialog_id = ?", dialogID).
		Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// ListRecentByUserID returns the newest messages across all of the user's
// dialogs, newest first.
func (r *messageRepo) ListRecentByUserID(ctx context.Context, tx *gorm.DB, userID int64, limit int) ([]*domain.Message, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	var results []*domain.Message
	if err := transaction.WithContext(ctx).
		Joins("JOIN dialogs ON dialogs.dialog_id = messages.dialog_id").
		Where("dialogs.user_id = ?", userID).
		Order("messages.timestamp DESC").
		Limit(limit).
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (r *messageRepo) LatestBySenderBefore(ctx context.Context, tx *gorm.DB, dialogID, beforeMessageID int64, senderType string) (*domain.Message, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	var row domain.Message
	if err := transaction.WithContext(ctx).
		Where("dialog_id = ? AND message_id < ? AND sender_type = ?", dialogID, beforeMessageID, senderType).
		Order("message_id DESC").
		First(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.ErrNotFound
		}
		return nil, err
	}
	return &row, nil
}
