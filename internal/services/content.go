package services

import (
	"context"
	"encoding/json"
	"fmt"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/NivaraGame/adaptive-lms/internal/domain"
	apperr "github.com/NivaraGame/adaptive-lms/internal/pkg/errors"
	"github.com/NivaraGame/adaptive-lms/internal/pkg/logger"
	"github.com/NivaraGame/adaptive-lms/internal/repos"
)

var validDifficulties = map[string]struct{}{
	domain.DifficultyEasy:      {},
	domain.DifficultyNormal:    {},
	domain.DifficultyHard:      {},
	domain.DifficultyChallenge: {},
}

var validFormats = map[string]struct{}{
	domain.FormatText:        {},
	domain.FormatVisual:      {},
	domain.FormatVideo:       {},
	domain.FormatInteractive: {},
}

var validContentTypes = map[string]struct{}{
	"lesson":      {},
	"exercise":    {},
	"quiz":        {},
	"explanation": {},
}

// ContentCreate is the payload for adding a catalog item.
type ContentCreate struct {
	Title           string
	Topic           string
	Subtopic        *string
	DifficultyLevel string
	Format          string
	ContentType     string
	ContentData     map[string]interface{}
	ReferenceAnswer interface{}
	Hints           []string
	ExtraData       map[string]interface{}
}

type ContentService interface {
	Create(ctx context.Context, in ContentCreate) (*domain.ContentItem, error)
	GetByID(ctx context.Context, id int64) (*domain.ContentItem, error)
	Delete(ctx context.Context, id int64) error
	List(ctx context.Context, f repos.ContentFilters, offset, limit int) ([]*domain.ContentItem, int64, error)
	Random(ctx context.Context, f repos.ContentFilters) (*domain.ContentItem, error)
	Topics(ctx context.Context) ([]string, error)
	NextInTopic(ctx context.Context, topic string, afterID int64) (*domain.ContentItem, error)
}

type contentService struct {
	db          *gorm.DB
	log         *logger.Logger
	contentRepo repos.ContentRepo
}

func NewContentService(db *gorm.DB, baseLog *logger.Logger, contentRepo repos.ContentRepo) ContentService {
	return &contentService{
		db:          db,
		log:         baseLog.With("service", "ContentService"),
		contentRepo: contentRepo,
	}
}

func (s *contentService) Create(ctx context.Context, in ContentCreate) (*domain.ContentItem, error) {
	if in.Title == "" || in.Topic == "" {
		return nil, fmt.Errorf("%w: title and topic are required", apperr.ErrInvalidArgument)
	}
	if in.DifficultyLevel == "" {
		in.DifficultyLevel = domain.DifficultyNormal
	}
	if in.Format == "" {
		in.Format = domain.FormatText
	}
	if _, ok := validDifficulties[in.DifficultyLevel]; !ok {
		return nil, fmt.Errorf("%w: unknown difficulty %q", apperr.ErrInvalidArgument, in.DifficultyLevel)
	}
	if _, ok := validFormats[in.Format]; !ok {
		return nil, fmt.Errorf("%w: unknown format %q", apperr.ErrInvalidArgument, in.Format)
	}
	if _, ok := validContentTypes[in.ContentType]; !ok {
		return nil, fmt.Errorf("%w: unknown content type %q", apperr.ErrInvalidArgument, in.ContentType)
	}
	if len(in.ContentData) == 0 {
		return nil, fmt.Errorf("%w: content_data is required", apperr.ErrInvalidArgument)
	}

	item := &domain.ContentItem{
		Title:           in.Title,
		Topic:           in.Topic,
		Subtopic:        in.Subtopic,
		DifficultyLevel: in.DifficultyLevel,
		Format:          in.Format,
		ContentType:     in.ContentType,
	}

	var err error
	if item.ContentData, err = marshalJSON(in.ContentData); err != nil {
		return nil, err
	}
	if in.ReferenceAnswer != nil {
		if item.ReferenceAnswer, err = marshalJSON(in.ReferenceAnswer); err != nil {
			return nil, err
		}
	}
	if len(in.Hints) > 0 {
		if item.Hints, err = marshalJSON(in.Hints); err != nil {
			return nil, err
		}
	}
	if in.ExtraData != nil {
		if item.ExtraData, err = marshalJSON(in.ExtraData); err != nil {
			return nil, err
		}
	}

	if err := s.contentRepo.Create(ctx, nil, item); err != nil {
		return nil, err
	}
	s.log.Info("Created content item", "content_id", item.ContentID, "topic", item.Topic)
	return item, nil
}

func (s *contentService) GetByID(ctx context.Context, id int64) (*domain.ContentItem, error) {
	return s.contentRepo.GetByID(ctx, nil, id)
}

func (s *contentService) Delete(ctx context.Context, id int64) error {
	return s.contentRepo.Delete(ctx, nil, id)
}

func (s *contentService) List(ctx context.Context, f repos.ContentFilters, offset, limit int) ([]*domain.ContentItem, int64, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	if err := validateFilters(f); err != nil {
		return nil, 0, err
	}
	return s.contentRepo.List(ctx, nil, f, offset, limit)
}

func (s *contentService) Random(ctx context.Context, f repos.ContentFilters) (*domain.ContentItem, error) {
	if err := validateFilters(f); err != nil {
		return nil, err
	}
	return s.contentRepo.Random(ctx, nil, f)
}

func (s *contentService) Topics(ctx context.Context) ([]string, error) {
	return s.contentRepo.Topics(ctx, nil)
}

func (s *contentService) NextInTopic(ctx context.Context, topic string, afterID int64) (*domain.ContentItem, error) {
	if topic == "" {
		return nil, fmt.Errorf("%w: topic is required", apperr.ErrInvalidArgument)
	}
	return s.contentRepo.NextInTopic(ctx, nil, topic, afterID)
}

func validateFilters(f repos.ContentFilters) error {
	if f.DifficultyLevel != nil {
		if _, ok := validDifficulties[*f.DifficultyLevel]; !ok {
			return fmt.Errorf("%w: unknown difficulty %q", apperr.ErrInvalidArgument, *f.DifficultyLevel)
		}
	}
	if f.Format != nil {
		if _, ok := validFormats[*f.Format]; !ok {
			return fmt.Errorf("%w: unknown format %q", apperr.ErrInvalidArgument, *f.Format)
		}
	}
	if f.ContentType != nil {
		if _, ok := validContentTypes[*f.ContentType]; !ok {
			return fmt.Errorf("%w: unknown content type %q", apperr.ErrInvalidArgument, *f.ContentType)
		}
	}
	return nil
}

func marshalJSON(v interface{}) (datatypes.JSON, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", apperr.ErrInvalidArgument, err)
	}
	return datatypes.JSON(raw), nil
}
