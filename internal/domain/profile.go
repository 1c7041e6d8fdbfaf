package domain

import (
	"encoding/json"
	"time"

	"gorm.io/datatypes"
)

// Learning pace values.
const (
	PaceSlow   = "slow"
	PaceMedium = "medium"
	PaceFast   = "fast"
)

type UserProfile struct {
	ProfileID         int64          `gorm:"column:profile_id;primaryKey;autoIncrement" json:"profile_id"`
	UserID            int64          `gorm:"column:user_id;not null;uniqueIndex" json:"user_id"`
	User              *User          `gorm:"constraint:OnDelete:CASCADE;foreignKey:UserID;references:UserID" json:"user,omitempty"`
	TopicMastery      datatypes.JSON `gorm:"column:topic_mastery;type:jsonb" json:"topic_mastery,omitempty"`
	PreferredFormat   *string        `gorm:"column:preferred_format;size:20" json:"preferred_format,omitempty"`
	LearningPace      string         `gorm:"column:learning_pace;size:20;not null;default:'medium'" json:"learning_pace"`
	ErrorPatterns     datatypes.JSON `gorm:"column:error_patterns;type:jsonb" json:"error_patterns,omitempty"`
	AvgResponseTime   *float64       `gorm:"column:avg_response_time" json:"avg_response_time,omitempty"`
	AvgAccuracy       *float64       `gorm:"column:avg_accuracy" json:"avg_accuracy,omitempty"`
	TotalInteractions int64          `gorm:"column:total_interactions;not null;default:0" json:"total_interactions"`
	TotalTimeSpent    float64        `gorm:"column:total_time_spent;not null;default:0" json:"total_time_spent"`
	CurrentDifficulty string         `gorm:"column:current_difficulty;size:20;not null;default:'normal'" json:"current_difficulty"`
	LastUpdated       time.Time      `gorm:"column:last_updated;not null" json:"last_updated"`
	ExtraData         datatypes.JSON `gorm:"column:extra_data;type:jsonb" json:"extra_data,omitempty"`
}

func (UserProfile) TableName() string { return "user_profiles" }

// MasteryMap decodes topic_mastery into a fresh map. A nil or empty
// column yields an empty, writable map.
func (p *UserProfile) MasteryMap() (map[string]float64, error) {
	m := map[string]float64{}
	if len(p.TopicMastery) == 0 {
		return m, nil
	}
	if err := json.Unmarshal(p.TopicMastery, &m); err != nil {
		return nil, err
	}
	return m, nil
}

// SetMasteryMap replaces topic_mastery with the given map.
func (p *UserProfile) SetMasteryMap(m map[string]float64) error {
	raw, err := json.Marshal(m)
	if err != nil {
		return err
	}
	p.TopicMastery = datatypes.JSON(raw)
	return nil
}
