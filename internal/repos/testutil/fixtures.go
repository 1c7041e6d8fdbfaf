package testutil

import (
	"context"
	"fmt"
	"testing"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/NivaraGame/adaptive-lms/internal/domain"
)

func SeedUser(tb testing.TB, ctx context.Context, tx *gorm.DB, username string) *domain.User {
	tb.Helper()
	u := &domain.User{
		Username:       username,
		Email:          fmt.Sprintf("%s@example.com", username),
		HashedPassword: "pw",
	}
	if err := tx.WithContext(ctx).Create(u).Error; err != nil {
		tb.Fatalf("seed user: %v", err)
	}
	return u
}

func SeedDialog(tb testing.TB, ctx context.Context, tx *gorm.DB, userID int64, topic string) *domain.Dialog {
	tb.Helper()
	d := &domain.Dialog{
		UserID:     userID,
		DialogType: "learning",
		Topic:      &topic,
		StartedAt:  time.Now().UTC(),
	}
	if err := tx.WithContext(ctx).Create(d).Error; err != nil {
		tb.Fatalf("seed dialog: %v", err)
	}
	return d
}

func SeedMessage(tb testing.TB, ctx context.Context, tx *gorm.DB, dialogID int64, senderType, content string, ts time.Time) *domain.Message {
	tb.Helper()
	m := &domain.Message{
		DialogID:   dialogID,
		SenderType: senderType,
		Content:    content,
		Timestamp:  ts,
		ExtraData:  datatypes.JSON([]byte("{}")),
	}
	if err := tx.WithContext(ctx).Create(m).Error; err != nil {
		tb.Fatalf("seed message: %v", err)
	}
	return m
}

func SeedContent(tb testing.TB, ctx context.Context, tx *gorm.DB, topic, difficulty, format, contentType string) *domain.ContentItem {
	tb.Helper()
	c := &domain.ContentItem{
		Title:           fmt.Sprintf("%s %s %s", topic, difficulty, contentType),
		Topic:           topic,
		DifficultyLevel: difficulty,
		Format:          format,
		ContentType:     contentType,
		ContentData:     datatypes.JSON([]byte(`{"body":"x"}`)),
	}
	if err := tx.WithContext(ctx).Create(c).Error; err != nil {
		tb.Fatalf("seed content: %v", err)
	}
	return c
}

func SeedProfile(tb testing.TB, ctx context.Context, tx *gorm.DB, userID int64) *domain.UserProfile {
	tb.Helper()
	p := &domain.UserProfile{
		UserID:            userID,
		TopicMastery:      datatypes.JSON([]byte("{}")),
		LearningPace:      domain.PaceMedium,
		CurrentDifficulty: domain.DifficultyNormal,
		LastUpdated:       time.Now().UTC(),
	}
	if err := tx.WithContext(ctx).Create(p).Error; err != nil {
		tb.Fatalf("seed profile: %v", err)
	}
	return p
}

func PtrString(v string) *string { return &v }

func PtrInt64(v int64) *int64 { return &v }

func PtrFloat64(v float64) *float64 { return &v }

func PtrTime(v time.Time) *time.Time { return &v }
