package services

import (
	"context"

	"gorm.io/gorm"

	"github.com/NivaraGame/adaptive-lms/internal/domain"
	"github.com/NivaraGame/adaptive-lms/internal/metrics"
	"github.com/NivaraGame/adaptive-lms/internal/pkg/logger"
	"github.com/NivaraGame/adaptive-lms/internal/repos"
)

type MetricsService interface {
	ProcessMessage(ctx context.Context, messageID int64) (*metrics.Record, error)
	ReprocessBatch(ctx context.Context, messageIDs []int64) *metrics.BatchResult
	GetByID(ctx context.Context, id int64) (*domain.Metric, error)
	ListByUser(ctx context.Context, userID int64, offset, limit int) ([]*domain.Metric, error)
	ListByMessage(ctx context.Context, messageID int64) ([]*domain.Metric, error)
}

type metricsService struct {
	db         *gorm.DB
	log        *logger.Logger
	metricRepo repos.MetricRepo
	workflow   *metrics.Workflow
}

func NewMetricsService(db *gorm.DB, baseLog *logger.Logger, metricRepo repos.MetricRepo, workflow *metrics.Workflow) MetricsService {
	return &metricsService{
		db:         db,
		log:        baseLog.With("service", "MetricsService"),
		metricRepo: metricRepo,
		workflow:   workflow,
	}
}

func (s *metricsService) ProcessMessage(ctx context.Context, messageID int64) (*metrics.Record, error) {
	return s.workflow.ProcessMessage(ctx, messageID)
}

func (s *metricsService) ReprocessBatch(ctx context.Context, messageIDs []int64) *metrics.BatchResult {
	return s.workflow.ReprocessBatch(ctx, messageIDs)
}

func (s *metricsService) GetByID(ctx context.Context, id int64) (*domain.Metric, error) {
	return s.metricRepo.GetByID(ctx, nil, id)
}

func (s *metricsService) ListByUser(ctx context.Context, userID int64, offset, limit int) ([]*domain.Metric, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	return s.metricRepo.ListByUserID(ctx, nil, userID, offset, limit)
}

func (s *metricsService) ListByMessage(ctx context.Context, messageID int64) ([]*domain.Metric, error) {
	return s.metricRepo.ListByMessageID(ctx, nil, messageID)
}
