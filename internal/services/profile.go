package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/NivaraGame/adaptive-lms/internal/domain"
	"github.com/NivaraGame/adaptive-lms/internal/metrics"
	apperr "github.com/NivaraGame/adaptive-lms/internal/pkg/errors"
	"github.com/NivaraGame/adaptive-lms/internal/pkg/logger"
	"github.com/NivaraGame/adaptive-lms/internal/repos"
)

// Mastery bands for the weak/strong topic helpers.
const (
	weakTopicThreshold   = 0.5
	strongTopicThreshold = 0.7
	topicListLimit       = 3
)

var validPaces = map[string]struct{}{
	domain.PaceSlow:   {},
	domain.PaceMedium: {},
	domain.PaceFast:   {},
}

// ProfileUpdate carries the caller-editable profile fields; nil means keep.
type ProfileUpdate struct {
	PreferredFormat   *string
	LearningPace      *string
	CurrentDifficulty *string
}

type ProfileService interface {
	GetOrCreate(ctx context.Context, userID int64) (*domain.UserProfile, error)
	Get(ctx context.Context, userID int64) (*domain.UserProfile, error)
	Update(ctx context.Context, userID int64, in ProfileUpdate) (*domain.UserProfile, error)
	Delete(ctx context.Context, userID int64) error
	WeakTopics(ctx context.Context, userID int64) ([]metrics.TopicScore, error)
	StrongTopics(ctx context.Context, userID int64) ([]metrics.TopicScore, error)
}

type profileService struct {
	db          *gorm.DB
	log         *logger.Logger
	profileRepo repos.UserProfileRepo
	userRepo    repos.UserRepo
}

func NewProfileService(db *gorm.DB, baseLog *logger.Logger, profileRepo repos.UserProfileRepo, userRepo repos.UserRepo) ProfileService {
	return &profileService{
		db:          db,
		log:         baseLog.With("service", "ProfileService"),
		profileRepo: profileRepo,
		userRepo:    userRepo,
	}
}

func (s *profileService) GetOrCreate(ctx context.Context, userID int64) (*domain.UserProfile, error) {
	profile, err := s.profileRepo.GetByUserID(ctx, nil, userID)
	if err == nil {
		return profile, nil
	}
	if !errors.Is(err, apperr.ErrNotFound) {
		return nil, err
	}

	if _, err := s.userRepo.GetByID(ctx, nil, userID); err != nil {
		return nil, fmt.Errorf("user %d: %w", userID, err)
	}

	profile = &domain.UserProfile{
		UserID:            userID,
		TopicMastery:      datatypes.JSON([]byte("{}")),
		LearningPace:      domain.PaceMedium,
		CurrentDifficulty: domain.DifficultyNormal,
		LastUpdated:       time.Now().UTC(),
	}
	if err := s.profileRepo.Create(ctx, nil, profile); err != nil {
		return nil, err
	}
	s.log.Info("Created profile", "user_id", userID)
	return profile, nil
}

func (s *profileService) Get(ctx context.Context, userID int64) (*domain.UserProfile, error) {
	return s.profileRepo.GetByUserID(ctx, nil, userID)
}

func (s *profileService) Update(ctx context.Context, userID int64, in ProfileUpdate) (*domain.UserProfile, error) {
	if in.PreferredFormat != nil && *in.PreferredFormat != "" {
		if _, ok := validFormats[*in.PreferredFormat]; !ok {
			return nil, fmt.Errorf("%w: unknown format %q", apperr.ErrInvalidArgument, *in.PreferredFormat)
		}
	}
	if in.LearningPace != nil {
		if _, ok := validPaces[*in.LearningPace]; !ok {
			return nil, fmt.Errorf("%w: unknown pace %q", apperr.ErrInvalidArgument, *in.LearningPace)
		}
	}
	if in.CurrentDifficulty != nil {
		if _, ok := validDifficulties[*in.CurrentDifficulty]; !ok {
			return nil, fmt.Errorf("%w: unknown difficulty %q", apperr.ErrInvalidArgument, *in.CurrentDifficulty)
		}
	}

	var profile *domain.UserProfile
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var txErr error
		profile, txErr = s.profileRepo.GetByUserIDForUpdate(ctx, tx, userID)
		if txErr != nil {
			return txErr
		}
		if in.PreferredFormat != nil {
			if *in.PreferredFormat == "" {
				profile.PreferredFormat = nil
			} else {
				profile.PreferredFormat = in.PreferredFormat
			}
		}
		if in.LearningPace != nil {
			profile.LearningPace = *in.LearningPace
		}
		if in.CurrentDifficulty != nil {
			profile.CurrentDifficulty = *in.CurrentDifficulty
		}
		profile.LastUpdated = time.Now().UTC()
		return s.profileRepo.Update(ctx, tx, profile)
	})
	if err != nil {
		return nil, err
	}
	return profile, nil
}

func (s *profileService) Delete(ctx context.Context, userID int64) error {
	return s.profileRepo.DeleteByUserID(ctx, nil, userID)
}

func (s *profileService) WeakTopics(ctx context.Context, userID int64) ([]metrics.TopicScore, error) {
	mastery, err := s.masteryMap(ctx, userID)
	if err != nil {
		return nil, err
	}
	return metrics.WeakTopics(mastery, weakTopicThreshold, topicListLimit), nil
}

func (s *profileService) StrongTopics(ctx context.Context, userID int64) ([]metrics.TopicScore, error) {
	mastery, err := s.masteryMap(ctx, userID)
	if err != nil {
		return nil, err
	}
	return metrics.StrongTopics(mastery, strongTopicThreshold, topicListLimit), nil
}

func (s *profileService) masteryMap(ctx context.Context, userID int64) (map[string]float64, error) {
	profile, err := s.profileRepo.GetByUserID(ctx, nil, userID)
	if err != nil {
		return nil, err
	}
	return profile.MasteryMap()
}
