package adaptation

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/NivaraGame/adaptive-lms/internal/domain"
	"github.com/NivaraGame/adaptive-lms/internal/platform/envutil"
)

// Config holds every tunable threshold of the decision rules. Each value can
// be overridden independently through the optional YAML file pointed at by
// ADAPTATION_CONFIG_FILE, then through environment variables.
type Config struct {
	AccuracyHigh   float64 `yaml:"accuracy_high"`
	AccuracyMedium float64 `yaml:"accuracy_medium"`
	AccuracyLow    float64 `yaml:"accuracy_low"`

	ResponseTimeFast      float64 `yaml:"response_time_fast"`       // seconds
	ResponseTimeNormalMax float64 `yaml:"response_time_normal_max"` // seconds
	ResponseTimeSlow      float64 `yaml:"response_time_slow"`       // seconds

	MasteryHigh       float64 `yaml:"mastery_high"`
	MasteryMedium     float64 `yaml:"mastery_medium"`
	MasteryStruggling float64 `yaml:"mastery_struggling"`

	FollowupsHigh int `yaml:"followups_high"`
	FollowupsLow  int `yaml:"followups_low"`

	SessionLongMinutes      float64 `yaml:"session_long_minutes"`
	SessionHighInteractions int     `yaml:"session_high_interactions"`
	FatigueRTIncrease       float64 `yaml:"fatigue_rt_increase"` // ratio, 0.3 = +30%

	EMAAlpha      float64 `yaml:"ema_alpha"`
	RollingWindow int     `yaml:"rolling_window"`

	RecentMetricsLimit int `yaml:"recent_metrics_limit"`

	DefaultDifficulty string `yaml:"default_difficulty"`
	DefaultFormat     string `yaml:"default_format"`
	DefaultPace       string `yaml:"default_pace"`
	DefaultTempo      string `yaml:"default_tempo"`
}

// ConfigVersion identifies the threshold schema carried in recommendation
// metadata, so stored decisions can be traced back to the rules that made
// them.
const ConfigVersion = "1.0"

func DefaultConfig() Config {
	return Config{
		AccuracyHigh:   0.8,
		AccuracyMedium: 0.5,
		AccuracyLow:    0.5,

		ResponseTimeFast:      30,
		ResponseTimeNormalMax: 90,
		ResponseTimeSlow:      120,

		MasteryHigh:       0.7,
		MasteryMedium:     0.4,
		MasteryStruggling: 0.4,

		FollowupsHigh: 3,
		FollowupsLow:  1,

		SessionLongMinutes:      60,
		SessionHighInteractions: 20,
		FatigueRTIncrease:       0.3,

		EMAAlpha:      0.3,
		RollingWindow: 10,

		RecentMetricsLimit: 10,

		DefaultDifficulty: domain.DifficultyNormal,
		DefaultFormat:     domain.FormatText,
		DefaultPace:       domain.PaceMedium,
		DefaultTempo:      TempoNormal,
	}
}

// LoadConfig layers the optional YAML file and environment overrides on top
// of the defaults.
func LoadConfig() (Config, error) {
	cfg := DefaultConfig()

	if path := envutil.String("ADAPTATION_CONFIG_FILE", ""); path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("read adaptation config: %w", err)
		}
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return cfg, fmt.Errorf("parse adaptation config: %w", err)
		}
	}

	cfg.AccuracyHigh = envutil.Float64("ADAPT_ACCURACY_HIGH", cfg.AccuracyHigh)
	cfg.AccuracyMedium = envutil.Float64("ADAPT_ACCURACY_MEDIUM", cfg.AccuracyMedium)
	cfg.AccuracyLow = envutil.Float64("ADAPT_ACCURACY_LOW", cfg.AccuracyLow)
	cfg.ResponseTimeFast = envutil.Float64("ADAPT_RESPONSE_TIME_FAST", cfg.ResponseTimeFast)
	cfg.ResponseTimeNormalMax = envutil.Float64("ADAPT_RESPONSE_TIME_NORMAL_MAX", cfg.ResponseTimeNormalMax)
	cfg.ResponseTimeSlow = envutil.Float64("ADAPT_RESPONSE_TIME_SLOW", cfg.ResponseTimeSlow)
	cfg.MasteryHigh = envutil.Float64("ADAPT_MASTERY_HIGH", cfg.MasteryHigh)
	cfg.MasteryMedium = envutil.Float64("ADAPT_MASTERY_MEDIUM", cfg.MasteryMedium)
	cfg.MasteryStruggling = envutil.Float64("ADAPT_MASTERY_STRUGGLING", cfg.MasteryStruggling)
	cfg.FollowupsHigh = envutil.Int("ADAPT_FOLLOWUPS_HIGH", cfg.FollowupsHigh)
	cfg.FollowupsLow = envutil.Int("ADAPT_FOLLOWUPS_LOW", cfg.FollowupsLow)
	cfg.SessionLongMinutes = envutil.Float64("ADAPT_SESSION_LONG_MINUTES", cfg.SessionLongMinutes)
	cfg.SessionHighInteractions = envutil.Int("ADAPT_SESSION_HIGH_INTERACTIONS", cfg.SessionHighInteractions)
	cfg.FatigueRTIncrease = envutil.Float64("ADAPT_FATIGUE_RT_INCREASE", cfg.FatigueRTIncrease)
	cfg.EMAAlpha = envutil.Float64("ADAPT_EMA_ALPHA", cfg.EMAAlpha)
	cfg.RollingWindow = envutil.Int("ADAPT_ROLLING_WINDOW", cfg.RollingWindow)
	cfg.RecentMetricsLimit = envutil.Int("ADAPT_RECENT_METRICS_LIMIT", cfg.RecentMetricsLimit)
	cfg.DefaultDifficulty = envutil.String("ADAPT_DEFAULT_DIFFICULTY", cfg.DefaultDifficulty)
	cfg.DefaultFormat = envutil.String("ADAPT_DEFAULT_FORMAT", cfg.DefaultFormat)
	cfg.DefaultPace = envutil.String("ADAPT_DEFAULT_PACE", cfg.DefaultPace)
	cfg.DefaultTempo = envutil.String("ADAPT_DEFAULT_TEMPO", cfg.DefaultTempo)

	return cfg, nil
}

// Summary exposes the effective thresholds for the inspection endpoint.
func (c Config) Summary() map[string]interface{} {
	return map[string]interface{}{
		"accuracy_high":             c.AccuracyHigh,
		"accuracy_medium":           c.AccuracyMedium,
		"accuracy_low":              c.AccuracyLow,
		"response_time_fast":        c.ResponseTimeFast,
		"response_time_normal_max":  c.ResponseTimeNormalMax,
		"response_time_slow":        c.ResponseTimeSlow,
		"mastery_high":              c.MasteryHigh,
		"mastery_medium":            c.MasteryMedium,
		"mastery_struggling":        c.MasteryStruggling,
		"followups_high":            c.FollowupsHigh,
		"followups_low":             c.FollowupsLow,
		"session_long_minutes":      c.SessionLongMinutes,
		"session_high_interactions": c.SessionHighInteractions,
		"fatigue_rt_increase":       c.FatigueRTIncrease,
		"ema_alpha":                 c.EMAAlpha,
		"rolling_window":            c.RollingWindow,
		"recent_metrics_limit":      c.RecentMetricsLimit,
		"default_difficulty":        c.DefaultDifficulty,
		"default_format":            c.DefaultFormat,
		"default_pace":              c.DefaultPace,
		"default_tempo":             c.DefaultTempo,
	}
}

var difficultyOrder = []string{
	domain.DifficultyEasy,
	domain.DifficultyNormal,
	domain.DifficultyHard,
	domain.DifficultyChallenge,
}

func difficultyIndex(level string) int {
	for i, d := range difficultyOrder {
		if d == level {
			return i
		}
	}
	return 1 // normal
}

// ShiftDifficulty moves a difficulty level by change steps, clamped to the
// easy..challenge scale. Unknown levels are treated as normal.
func ShiftDifficulty(current string, change int) string {
	idx := difficultyIndex(current) + change
	if idx < 0 {
		idx = 0
	}
	if idx > len(difficultyOrder)-1 {
		idx = len(difficultyOrder) - 1
	}
	return difficultyOrder[idx]
}
