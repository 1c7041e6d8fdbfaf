package adaptation

import (
	"context"
	"errors"
	"testing"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/NivaraGame/adaptive-lms/internal/domain"
	apperr "github.com/NivaraGame/adaptive-lms/internal/pkg/errors"
	"github.com/NivaraGame/adaptive-lms/internal/pkg/logger"
)

type fakeProfiles struct {
	row *domain.UserProfile
	err error
}

func (f *fakeProfiles) GetByUserID(ctx context.Context, tx *gorm.DB, userID int64) (*domain.UserProfile, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.row, nil
}

type fakeMetrics struct {
	rows []*domain.Metric
	err  error
}

func (f *fakeMetrics) ListRecentByUserID(ctx context.Context, tx *gorm.DB, userID int64, limit int) ([]*domain.Metric, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.rows, nil
}

type fakeDialogs struct {
	row *domain.Dialog
	err error
}

func (f *fakeDialogs) GetByID(ctx context.Context, tx *gorm.DB, id int64) (*domain.Dialog, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.row, nil
}

type fakeMessages struct {
	count int64
	err   error
}

func (f *fakeMessages) CountByDialogID(ctx context.Context, tx *gorm.DB, dialogID int64) (int64, error) {
	return f.count, f.err
}

func newTestEngine(t *testing.T, profiles ProfileStore, metricStore MetricStore, dialogs DialogStore, messages MessageStore) *Engine {
	t.Helper()
	log, err := logger.New("test")
	if err != nil {
		t.Fatalf("logger: %v", err)
	}
	return NewEngine(log, DefaultConfig(), profiles, metricStore, dialogs, messages)
}

func TestEngineColdStart(t *testing.T) {
	e := newTestEngine(t,
		&fakeProfiles{err: apperr.ErrNotFound},
		&fakeMetrics{},
		&fakeDialogs{err: apperr.ErrNotFound},
		&fakeMessages{},
	)

	rec := e.Recommend(context.Background(), 42, nil)
	if rec.Strategy != StrategyRules {
		t.Fatalf("expected rules strategy, got %s", rec.Strategy)
	}
	if rec.Metadata["cold_start"] != true {
		t.Fatalf("expected cold_start metadata, got %v", rec.Metadata)
	}
	if rec.Difficulty.Target != domain.DifficultyNormal {
		t.Fatalf("cold start should target normal difficulty, got %s", rec.Difficulty.Target)
	}
	if rec.Metadata["is_fallback"] == true {
		t.Fatal("cold start is a real recommendation, not a fallback")
	}
}

func TestEngineFallbackOnStoreError(t *testing.T) {
	e := newTestEngine(t,
		&fakeProfiles{err: apperr.ErrNotFound},
		&fakeMetrics{err: errors.New("connection refused")},
		&fakeDialogs{},
		&fakeMessages{},
	)

	rec := e.Recommend(context.Background(), 42, nil)
	if rec.Strategy != "fallback" {
		t.Fatalf("expected fallback strategy, got %s", rec.Strategy)
	}
	if rec.Confidence != 0.1 {
		t.Fatalf("fallback confidence must be 0.1, got %v", rec.Confidence)
	}
	if rec.Metadata["is_fallback"] != true {
		t.Fatalf("expected is_fallback metadata, got %v", rec.Metadata)
	}
	if rec.Metadata["error"] == "" {
		t.Fatal("fallback should carry the error cause")
	}
	if rec.Difficulty.Target != domain.DifficultyNormal || rec.Format.Format != domain.FormatText || rec.Tempo.Tempo != TempoNormal {
		t.Fatalf("fallback should serve defaults, got %+v", rec)
	}
}

func TestEngineUsesSessionContext(t *testing.T) {
	topic := "fractions"
	dialog := &domain.Dialog{
		DialogID:  7,
		UserID:    42,
		Topic:     &topic,
		StartedAt: time.Now().UTC().Add(-5 * time.Minute),
	}
	profile := &domain.UserProfile{
		UserID:            42,
		TopicMastery:      datatypes.JSON([]byte("{}")),
		LearningPace:      domain.PaceMedium,
		CurrentDifficulty: domain.DifficultyNormal,
	}

	e := newTestEngine(t,
		&fakeProfiles{row: profile},
		&fakeMetrics{},
		&fakeDialogs{row: dialog},
		&fakeMessages{count: 25},
	)

	dialogID := int64(7)
	rec := e.Recommend(context.Background(), 42, &dialogID)
	if rec.Tempo.Tempo != TempoSlow {
		t.Fatalf("25 messages should slow the tempo, got %s", rec.Tempo.Tempo)
	}
}

func TestEngineSetStrategy(t *testing.T) {
	e := newTestEngine(t, &fakeProfiles{err: apperr.ErrNotFound}, &fakeMetrics{}, &fakeDialogs{}, &fakeMessages{})

	if err := e.SetStrategy(StrategyBandit); !errors.Is(err, ErrStrategyNotFound) {
		t.Fatalf("expected ErrStrategyNotFound for unregistered strategy, got %v", err)
	}
	if err := e.SetStrategy(StrategyRules); err != nil {
		t.Fatalf("SetStrategy(rules): %v", err)
	}
	if e.Current() != StrategyRules {
		t.Fatalf("expected rules, got %s", e.Current())
	}
	if got := e.Strategies(); len(got) != 1 || got[0] != StrategyRules {
		t.Fatalf("unexpected registry contents: %v", got)
	}
}

type panickingAdapter struct{}

func (panickingAdapter) Name() Strategy { return StrategyBandit }
func (panickingAdapter) Recommend(ProfileSnapshot, MetricsSummary, *SessionContext) Recommendation {
	panic("not implemented")
}

func TestEngineFallbackOnStrategyPanic(t *testing.T) {
	e := newTestEngine(t, &fakeProfiles{err: apperr.ErrNotFound}, &fakeMetrics{}, &fakeDialogs{}, &fakeMessages{})
	e.Register(panickingAdapter{})
	if err := e.SetStrategy(StrategyBandit); err != nil {
		t.Fatalf("SetStrategy: %v", err)
	}

	rec := e.Recommend(context.Background(), 42, nil)
	if rec.Metadata["is_fallback"] != true {
		t.Fatalf("a panicking strategy must degrade to fallback, got %+v", rec)
	}
}
