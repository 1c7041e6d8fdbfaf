package domain

import (
	"time"
)

type User struct {
	UserID         int64     `gorm:"column:user_id;primaryKey;autoIncrement" json:"user_id"`
	Username       string    `gorm:"column:username;size:100;not null;uniqueIndex" json:"username"`
	Email          string    `gorm:"column:email;size:255;not null;uniqueIndex" json:"email"`
	HashedPassword string    `gorm:"column:hashed_password;size:255;not null" json:"-"`
	CreatedAt      time.Time `gorm:"column:created_at;not null" json:"created_at"`
	UpdatedAt      time.Time `gorm:"column:updated_at;not null" json:"updated_at"`
}

func (User) TableName() string { return "users" }
