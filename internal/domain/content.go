package domain

import (
	"time"

	"gorm.io/datatypes"
)

// Difficulty levels, ordered easiest to hardest.
const (
	DifficultyEasy      = "easy"
	DifficultyNormal    = "normal"
	DifficultyHard      = "hard"
	DifficultyChallenge = "challenge"
)

// Presentation formats.
const (
	FormatText        = "text"
	FormatVisual      = "visual"
	FormatVideo       = "video"
	FormatInteractive = "interactive"
)

type ContentItem struct {
	ContentID       int64          `gorm:"column:content_id;primaryKey;autoIncrement" json:"content_id"`
	Title           string         `gorm:"column:title;size:255;not null" json:"title"`
	Topic           string         `gorm:"column:topic;size:255;not null;index" json:"topic"`
	Subtopic        *string        `gorm:"column:subtopic;size:255;index" json:"subtopic,omitempty"`
	DifficultyLevel string         `gorm:"column:difficulty_level;size:20;not null;default:'normal';index" json:"difficulty_level"`
	Format          string         `gorm:"column:format;size:20;not null;default:'text';index" json:"format"`
	ContentType     string         `gorm:"column:content_type;size:50;not null;index" json:"content_type"` // lesson|exercise|quiz|explanation
	ContentData     datatypes.JSON `gorm:"column:content_data;type:jsonb;not null" json:"content_data"`
	ReferenceAnswer datatypes.JSON `gorm:"column:reference_answer;type:jsonb" json:"reference_answer,omitempty"`
	Hints           datatypes.JSON `gorm:"column:hints;type:jsonb" json:"hints,omitempty"`
	Explanations    datatypes.JSON `gorm:"column:explanations;type:jsonb" json:"explanations,omitempty"`
	Skills          datatypes.JSON `gorm:"column:skills;type:jsonb" json:"skills,omitempty"`
	Prerequisites   datatypes.JSON `gorm:"column:prerequisites;type:jsonb" json:"prerequisites,omitempty"`
	ExtraData       datatypes.JSON `gorm:"column:extra_data;type:jsonb" json:"extra_data,omitempty"`
	CreatedAt       time.Time      `gorm:"column:created_at;not null" json:"created_at"`
	UpdatedAt       time.Time      `gorm:"column:updated_at;not null" json:"updated_at"`
}

func (ContentItem) TableName() string { return "content_items" }
