package adaptation

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	"github.com/NivaraGame/adaptive-lms/internal/domain"
	apperr "github.com/NivaraGame/adaptive-lms/internal/pkg/errors"
	"github.com/NivaraGame/adaptive-lms/internal/pkg/logger"
)

// Strategy identifies a recommendation algorithm.
type Strategy string

const (
	StrategyRules  Strategy = "rules"
	StrategyBandit Strategy = "bandit"
	StrategyPolicy Strategy = "policy"
)

// ErrStrategyNotFound is returned when switching to an unregistered strategy.
var ErrStrategyNotFound = errors.New("strategy not found")

// Adapter is one pluggable recommendation strategy.
type Adapter interface {
	Name() Strategy
	Recommend(profile ProfileSnapshot, summary MetricsSummary, session *SessionContext) Recommendation
}

// Data access surfaces the engine needs; satisfied by the repos package.
type ProfileStore interface {
	GetByUserID(ctx context.Context, tx *gorm.DB, userID int64) (*domain.UserProfile, error)
}

type MetricStore interface {
	ListRecentByUserID(ctx context.Context, tx *gorm.DB, userID int64, limit int) ([]*domain.Metric, error)
}

type DialogStore interface {
	GetByID(ctx context.Context, tx *gorm.DB, id int64) (*domain.Dialog, error)
}

type MessageStore interface {
	CountByDialogID(ctx context.Context, tx *gorm.DB, dialogID int64) (int64, error)
}

// Engine routes recommendation requests to the active strategy and degrades
// to a safe default answer when anything fails.
type Engine struct {
	log      *logger.Logger
	cfg      Config
	profiles ProfileStore
	metrics  MetricStore
	dialogs  DialogStore
	messages MessageStore

	mu         sync.RWMutex
	strategies map[Strategy]Adapter
	current    Strategy
}

func NewEngine(
	baseLog *logger.Logger,
	cfg Config,
	profiles ProfileStore,
	metricStore MetricStore,
	dialogs DialogStore,
	messages MessageStore,
) *Engine {
	e := &Engine{
		log:        baseLog.With("component", "AdaptationEngine"),
		cfg:        cfg,
		profiles:   profiles,
		metrics:    metricStore,
		dialogs:    dialogs,
		messages:   messages,
		strategies: map[Strategy]Adapter{},
		current:    StrategyRules,
	}
	e.Register(NewRulesAdapter(cfg, baseLog))
	return e
}

// Register adds a strategy to the registry, replacing any previous adapter
// under the same name.
func (e *Engine) Register(a Adapter) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.strategies[a.Name()] = a
}

// SetStrategy switches the active strategy.
func (e *Engine) SetStrategy(s Strategy) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := e.strategies[s]; !ok {
		return fmt.Errorf("%w: %q", ErrStrategyNotFound, s)
	}
	e.current = s
	return nil
}

// Current returns the active strategy name.
func (e *Engine) Current() Strategy {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.current
}

// Strategies lists the registered strategy names.
func (e *Engine) Strategies() []Strategy {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([]Strategy, 0, len(e.strategies))
	for s := range e.strategies {
		out = append(out, s)
	}
	return out
}

// Config returns the threshold configuration the engine runs with.
func (e *Engine) Config() Config {
	return e.cfg
}

// Recommend produces an adaptation decision for the user. It never returns
// an error: any internal failure yields the fallback recommendation instead,
// with the cause recorded in its metadata.
func (e *Engine) Recommend(ctx context.Context, userID int64, dialogID *int64) Recommendation {
	e.mu.RLock()
	adapter, ok := e.strategies[e.current]
	e.mu.RUnlock()
	if !ok {
		return e.fallback(fmt.Errorf("%w: %q", ErrStrategyNotFound, e.current))
	}

	profile, summary, session, err := e.gather(ctx, userID, dialogID)
	if err != nil {
		e.log.Error("Failed to gather recommendation inputs", "user_id", userID, "error", err)
		return e.fallback(err)
	}

	rec, err := e.invoke(adapter, profile, summary, session)
	if err != nil {
		e.log.Error("Strategy failed", "strategy", adapter.Name(), "user_id", userID, "error", err)
		return e.fallback(err)
	}

	if rec.Metadata == nil {
		rec.Metadata = map[string]interface{}{}
	}
	rec.Metadata["strategy"] = string(adapter.Name())
	if profile.TotalInteractions == 0 && summary.SampleCount() == 0 {
		rec.Metadata["cold_start"] = true
	}
	return rec
}

// gather fetches profile, recent metrics and session context concurrently.
// Missing rows degrade to defaults; real failures abort the group.
func (e *Engine) gather(ctx context.Context, userID int64, dialogID *int64) (ProfileSnapshot, MetricsSummary, *SessionContext, error) {
	var (
		profile ProfileSnapshot
		summary MetricsSummary
		session *SessionContext
	)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		row, err := e.profiles.GetByUserID(gctx, nil, userID)
		if errors.Is(err, apperr.ErrNotFound) {
			profile = DefaultProfileSnapshot(e.cfg, userID)
			return nil
		}
		if err != nil {
			return fmt.Errorf("fetch profile: %w", err)
		}
		profile, err = NewProfileSnapshot(row)
		if err != nil {
			return fmt.Errorf("decode profile: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		rows, err := e.metrics.ListRecentByUserID(gctx, nil, userID, e.cfg.RecentMetricsLimit)
		if err != nil {
			return fmt.Errorf("fetch recent metrics: %w", err)
		}
		summary = BuildMetricsSummary(rows)
		return nil
	})

	if dialogID != nil {
		id := *dialogID
		g.Go(func() error {
			dialog, err := e.dialogs.GetByID(gctx, nil, id)
			if errors.Is(err, apperr.ErrNotFound) {
				return nil
			}
			if err != nil {
				return fmt.Errorf("fetch dialog: %w", err)
			}
			count, err := e.messages.CountByDialogID(gctx, nil, id)
			if err != nil {
				return fmt.Errorf("count messages: %w", err)
			}
			sc := &SessionContext{
				DialogID:     dialog.DialogID,
				StartedAt:    dialog.StartedAt,
				MessageCount: int(count),
			}
			if dialog.Topic != nil {
				sc.Topic = *dialog.Topic
			}
			session = sc
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return ProfileSnapshot{}, MetricsSummary{}, nil, err
	}
	return profile, summary, session, nil
}

func (e *Engine) invoke(adapter Adapter, profile ProfileSnapshot, summary MetricsSummary, session *SessionContext) (rec Recommendation, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("strategy %s panicked: %v", adapter.Name(), r)
		}
	}()
	rec = adapter.Recommend(profile, summary, session)
	return rec, nil
}

// fallback is the unconditional safety net: defaults across the board with a
// deliberately low confidence so callers can tell it apart from a real
// recommendation.
func (e *Engine) fallback(cause error) Recommendation {
	now := time.Now().UTC()
	return Recommendation{
		Difficulty: DifficultyDecision{
			Action:     ActionMaintain,
			Current:    e.cfg.DefaultDifficulty,
			Target:     e.cfg.DefaultDifficulty,
			Confidence: 0.1,
			Reasoning:  "Fallback: keeping default difficulty due to system error",
		},
		Format: FormatDecision{
			Format:     e.cfg.DefaultFormat,
			Confidence: 0.1,
			Reasoning:  "Fallback: using default format due to system error",
		},
		Tempo: TempoDecision{
			Tempo:      e.cfg.DefaultTempo,
			Confidence: 0.1,
			Reasoning:  "Fallback: using default tempo due to system error",
		},
		Remediation: []RemediationTopic{},
		Confidence:  0.1,
		Reasoning:   "Fallback recommendation: the adaptation pipeline hit an error, serving safe defaults.",
		Strategy:    "fallback",
		GeneratedAt: now,
		Metadata: map[string]interface{}{
			"strategy":    "fallback",
			"error":       cause.Error(),
			"timestamp":   now.Format(time.RFC3339),
			"is_fallback": true,
		},
	}
}
