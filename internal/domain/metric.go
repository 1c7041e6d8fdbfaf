package domain

import (
	"time"

	"gorm.io/datatypes"
)

// Metric names written by the computation pipeline.
const (
	MetricAccuracy     = "accuracy"
	MetricResponseTime = "response_time"
	MetricAttempts     = "attempts_count"
	MetricFollowups    = "followup_questions"
)

type Metric struct {
	MetricID     int64          `gorm:"column:metric_id;primaryKey;autoIncrement" json:"metric_id"`
	UserID       int64          `gorm:"column:user_id;not null;index:idx_metric_user_ts,priority:1" json:"user_id"`
	User         *User          `gorm:"constraint:OnDelete:CASCADE;foreignKey:UserID;references:UserID" json:"user,omitempty"`
	DialogID     *int64         `gorm:"column:dialog_id;index" json:"dialog_id,omitempty"`
	MessageID    *int64         `gorm:"column:message_id;index" json:"message_id,omitempty"`
	MetricName   string         `gorm:"column:metric_name;size:100;not null;index" json:"metric_name"`
	MetricValueF *float64       `gorm:"column:metric_value_f" json:"metric_value_f,omitempty"`
	MetricValueS *string        `gorm:"column:metric_value_s;size:255" json:"metric_value_s,omitempty"`
	MetricValueJ datatypes.JSON `gorm:"column:metric_value_j;type:jsonb" json:"metric_value_j,omitempty"`
	Timestamp    time.Time      `gorm:"column:timestamp;not null;index:idx_metric_user_ts,priority:2" json:"timestamp"`
	Context      datatypes.JSON `gorm:"column:context;type:jsonb" json:"context,omitempty"`
}

func (Metric) TableName() string { return "metrics" }
