package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/NivaraGame/adaptive-lms/internal/domain"
	apperr "github.com/NivaraGame/adaptive-lms/internal/pkg/errors"
	"github.com/NivaraGame/adaptive-lms/internal/pkg/logger"
	"github.com/NivaraGame/adaptive-lms/internal/repos"
)

type ExperimentService interface {
	Enroll(ctx context.Context, userID int64, name, variant string) (*domain.Experiment, error)
	GetByID(ctx context.Context, id int64) (*domain.Experiment, error)
	ListByUser(ctx context.Context, userID int64) ([]*domain.Experiment, error)
	End(ctx context.Context, id int64) (*domain.Experiment, error)
}

type experimentService struct {
	db             *gorm.DB
	log            *logger.Logger
	experimentRepo repos.ExperimentRepo
	userRepo       repos.UserRepo
}

func NewExperimentService(db *gorm.DB, baseLog *logger.Logger, experimentRepo repos.ExperimentRepo, userRepo repos.UserRepo) ExperimentService {
	return &experimentService{
		db:             db,
		log:            baseLog.With("service", "ExperimentService"),
		experimentRepo: experimentRepo,
		userRepo:       userRepo,
	}
}

func (s *experimentService) Enroll(ctx context.Context, userID int64, name, variant string) (*domain.Experiment, error) {
	if name == "" || variant == "" {
		return nil, fmt.Errorf("%w: experiment_name and variant_name are required", apperr.ErrInvalidArgument)
	}
	if _, err := s.userRepo.GetByID(ctx, nil, userID); err != nil {
		return nil, fmt.Errorf("user %d: %w", userID, err)
	}

	var exp *domain.Experiment
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		existing, err := s.experimentRepo.ActiveByUserAndName(ctx, tx, userID, name)
		if err == nil {
			return fmt.Errorf("%w: user already enrolled in %q (variant %s)", apperr.ErrConflict, name, existing.VariantName)
		}
		if !errors.Is(err, apperr.ErrNotFound) {
			return err
		}

		exp = &domain.Experiment{
			UserID:         userID,
			ExperimentName: name,
			VariantName:    variant,
			StartedAt:      time.Now().UTC(),
		}
		return s.experimentRepo.Create(ctx, tx, exp)
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("Enrolled user in experiment", "user_id", userID, "experiment", name, "variant", variant)
	return exp, nil
}

func (s *experimentService) GetByID(ctx context.Context, id int64) (*domain.Experiment, error) {
	return s.experimentRepo.GetByID(ctx, nil, id)
}

func (s *experimentService) ListByUser(ctx context.Context, userID int64) ([]*domain.Experiment, error) {
	return s.experimentRepo.ListByUserID(ctx, nil, userID)
}

func (s *experimentService) End(ctx context.Context, id int64) (*domain.Experiment, error) {
	if err := s.experimentRepo.End(ctx, nil, id, time.Now().UTC()); err != nil {
		return nil, err
	}
	return s.experimentRepo.GetByID(ctx, nil, id)
}
