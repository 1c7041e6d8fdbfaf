package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/NivaraGame/adaptive-lms/internal/domain"
	apperr "github.com/NivaraGame/adaptive-lms/internal/pkg/errors"
	"github.com/NivaraGame/adaptive-lms/internal/pkg/logger"
	"github.com/NivaraGame/adaptive-lms/internal/repos"
)

type DialogService interface {
	Create(ctx context.Context, userID int64, dialogType string, topic *string) (*domain.Dialog, error)
	GetByID(ctx context.Context, id int64) (*domain.Dialog, error)
	ListByUser(ctx context.Context, userID int64, offset, limit int) ([]*domain.Dialog, error)
	End(ctx context.Context, id int64) (*domain.Dialog, error)
}

type dialogService struct {
	db         *gorm.DB
	log        *logger.Logger
	dialogRepo repos.DialogRepo
	userRepo   repos.UserRepo
}

func NewDialogService(db *gorm.DB, baseLog *logger.Logger, dialogRepo repos.DialogRepo, userRepo repos.UserRepo) DialogService {
	return &dialogService{
		db:         db,
		log:        baseLog.With("service", "DialogService"),
		dialogRepo: dialogRepo,
		userRepo:   userRepo,
	}
}

func (s *dialogService) Create(ctx context.Context, userID int64, dialogType string, topic *string) (*domain.Dialog, error) {
	dialogType = strings.TrimSpace(dialogType)
	if dialogType == "" {
		dialogType = "learning"
	}

	if _, err := s.userRepo.GetByID(ctx, nil, userID); err != nil {
		return nil, fmt.Errorf("user %d: %w", userID, err)
	}

	dialog := &domain.Dialog{
		UserID:     userID,
		DialogType: dialogType,
		Topic:      topic,
		StartedAt:  time.Now().UTC(),
	}
	if err := s.dialogRepo.Create(ctx, nil, dialog); err != nil {
		return nil, err
	}
	s.log.Info("Started dialog", "dialog_id", dialog.DialogID, "user_id", userID)
	return dialog, nil
}

func (s *dialogService) GetByID(ctx context.Context, id int64) (*domain.Dialog, error) {
	return s.dialogRepo.GetByID(ctx, nil, id)
}

func (s *dialogService) ListByUser(ctx context.Context, userID int64, offset, limit int) ([]*domain.Dialog, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	return s.dialogRepo.ListByUserID(ctx, nil, userID, offset, limit)
}

func (s *dialogService) End(ctx context.Context, id int64) (*domain.Dialog, error) {
	if err := s.dialogRepo.End(ctx, nil, id, time.Now().UTC()); err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return nil, fmt.Errorf("%w: dialog %d not found or already ended", apperr.ErrNotFound, id)
		}
		return nil, err
	}
	return s.dialogRepo.GetByID(ctx, nil, id)
}
