package domain

import (
	"time"

	"gorm.io/datatypes"
)

type Dialog struct {
	DialogID   int64          `gorm:"column:dialog_id;primaryKey;autoIncrement" json:"dialog_id"`
	UserID     int64          `gorm:"column:user_id;not null;index" json:"user_id"`
	User       *User          `gorm:"constraint:OnDelete:CASCADE;foreignKey:UserID;references:UserID" json:"user,omitempty"`
	DialogType string         `gorm:"column:dialog_type;size:50;not null;default:'learning'" json:"dialog_type"`
	Topic      *string        `gorm:"column:topic;size:255" json:"topic,omitempty"`
	StartedAt  time.Time      `gorm:"column:started_at;not null;index" json:"started_at"`
	EndedAt    *time.Time     `gorm:"column:ended_at" json:"ended_at,omitempty"`
	ExtraData  datatypes.JSON `gorm:"column:extra_data;type:jsonb" json:"extra_data,omitempty"`
}

func (Dialog) TableName() string { return "dialogs" }

type Message struct {
	MessageID  int64          `gorm:"column:message_id;primaryKey;autoIncrement" json:"message_id"`
	DialogID   int64          `gorm:"column:dialog_id;not null;index" json:"dialog_id"`
	Dialog     *Dialog        `gorm:"constraint:OnDelete:CASCADE;foreignKey:DialogID;references:DialogID" json:"dialog,omitempty"`
	SenderType string         `gorm:"column:sender_type;size:20;not null;index" json:"sender_type"` // user|system|assistant
	Content    string         `gorm:"column:content;type:text;not null" json:"content"`
	Timestamp  time.Time      `gorm:"column:timestamp;not null;index" json:"timestamp"`
	IsQuestion bool           `gorm:"column:is_question;not null;default:false" json:"is_question"`
	ExtraData  datatypes.JSON `gorm:"column:extra_data;type:jsonb" json:"extra_data,omitempty"`
}

func (Message) TableName() string { return "messages" }
