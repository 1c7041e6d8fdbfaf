package domain

import (
	"time"

	"gorm.io/datatypes"
)

type Experiment struct {
	ExperimentID   int64          `gorm:"column:experiment_id;primaryKey;autoIncrement" json:"experiment_id"`
	UserID         int64          `gorm:"column:user_id;not null;index" json:"user_id"`
	User           *User          `gorm:"constraint:OnDelete:CASCADE;foreignKey:UserID;references:UserID" json:"user,omitempty"`
	ExperimentName string         `gorm:"column:experiment_name;size:255;not null;index" json:"experiment_name"`
	VariantName    string         `gorm:"column:variant_name;size:255;not null" json:"variant_name"`
	StartedAt      time.Time      `gorm:"column:started_at;not null" json:"started_at"`
	EndedAt        *time.Time     `gorm:"column:ended_at" json:"ended_at,omitempty"`
	ExtraData      datatypes.JSON `gorm:"column:extra_data;type:jsonb" json:"extra_data,omitempty"`
}

func (Experiment) TableName() string { return "experiments" }
