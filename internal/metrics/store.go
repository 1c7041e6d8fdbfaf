package metrics

import (
	"context"
	"encoding/json"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/NivaraGame/adaptive-lms/internal/domain"
	"github.com/NivaraGame/adaptive-lms/internal/repos"
)

// BuildRows converts a record into metric rows, one per present metric.
// Accuracy and response time rows are omitted when the value is nil.
func BuildRows(rec *Record) []*domain.Metric {
	var rows []*domain.Metric

	var metricCtx datatypes.JSON
	if rec.ContentID != nil {
		raw, _ := json.Marshal(map[string]interface{}{"content_id": *rec.ContentID})
		metricCtx = datatypes.JSON(raw)
	}

	add := func(name string, value float64) {
		v := value
		rows = append(rows, &domain.Metric{
			UserID:       rec.UserID,
			DialogID:     rec.DialogID,
			MessageID:    rec.MessageID,
			MetricName:   name,
			MetricValueF: &v,
			Timestamp:    rec.Timestamp,
			Context:      metricCtx,
		})
	}

	if rec.Accuracy != nil {
		add(domain.MetricAccuracy, *rec.Accuracy)
	}
	if rec.ResponseTime != nil {
		add(domain.MetricResponseTime, *rec.ResponseTime)
	}
	add(domain.MetricAttempts, float64(rec.Attempts))
	add(domain.MetricFollowups, float64(rec.Followups))

	return rows
}

// Store persists the record's metric rows through the repo.
func Store(ctx context.Context, tx *gorm.DB, metricRepo repos.MetricRepo, rec *Record) ([]*domain.Metric, error) {
	return metricRepo.Create(ctx, tx, BuildRows(rec))
}
