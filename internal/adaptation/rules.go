package adaptation

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/NivaraGame/adaptive-lms/internal/domain"
	"github.com/NivaraGame/adaptive-lms/internal/pkg/logger"
)

// Tempo values a recommendation can suggest for session pacing.
const (
	TempoFast   = "fast"
	TempoNormal = "normal"
	TempoSlow   = "slow"
	TempoBreak  = "break"
)

// Difficulty actions.
const (
	ActionIncrease = "increase"
	ActionDecrease = "decrease"
	ActionMaintain = "maintain"
)

// ProfileSnapshot is the decision-facing view of a user profile.
type ProfileSnapshot struct {
	UserID            int64
	TopicMastery      map[string]float64
	CurrentDifficulty string
	PreferredFormat   string
	LearningPace      string
	AvgAccuracy       *float64
	AvgResponseTime   *float64
	TotalInteractions int64
}

// NewProfileSnapshot converts a stored profile row, decoding the mastery map.
func NewProfileSnapshot(p *domain.UserProfile) (ProfileSnapshot, error) {
	mastery, err := p.MasteryMap()
	if err != nil {
		return ProfileSnapshot{}, err
	}
	snap := ProfileSnapshot{
		UserID:            p.UserID,
		TopicMastery:      mastery,
		CurrentDifficulty: p.CurrentDifficulty,
		LearningPace:      p.LearningPace,
		AvgAccuracy:       p.AvgAccuracy,
		AvgResponseTime:   p.AvgResponseTime,
		TotalInteractions: p.TotalInteractions,
	}
	if p.PreferredFormat != nil {
		snap.PreferredFormat = *p.PreferredFormat
	}
	return snap, nil
}

// DefaultProfileSnapshot is the cold-start stand-in for users without a
// stored profile.
func DefaultProfileSnapshot(cfg Config, userID int64) ProfileSnapshot {
	return ProfileSnapshot{
		UserID:            userID,
		TopicMastery:      map[string]float64{},
		CurrentDifficulty: cfg.DefaultDifficulty,
		LearningPace:      cfg.DefaultPace,
	}
}

// MetricsSummary condenses recent metric rows into the inputs the rules
// consume.
type MetricsSummary struct {
	RecentAccuracy []float64
	// RecentResponseTimes is ordered oldest to newest so fatigue detection
	// can compare session halves.
	RecentResponseTimes []float64
	TotalFollowups      int
	TotalAttempts       int
}

// SampleCount is the sample size used for confidence scoring.
func (s MetricsSummary) SampleCount() int {
	if len(s.RecentAccuracy) >= len(s.RecentResponseTimes) {
		return len(s.RecentAccuracy)
	}
	return len(s.RecentResponseTimes)
}

func (s MetricsSummary) hasData() bool {
	return len(s.RecentAccuracy) > 0 || len(s.RecentResponseTimes) > 0
}

// BuildMetricsSummary folds raw metric rows into a summary. Row order does
// not matter; response times are re-sorted chronologically.
func BuildMetricsSummary(rows []*domain.Metric) MetricsSummary {
	var summary MetricsSummary

	type timedValue struct {
		value float64
		ts    time.Time
	}
	var rts []timedValue

	for _, row := range rows {
		if row.MetricValueF == nil {
			continue
		}
		switch row.MetricName {
		case domain.MetricAccuracy:
			summary.RecentAccuracy = append(summary.RecentAccuracy, *row.MetricValueF)
		case domain.MetricResponseTime:
			rts = append(rts, timedValue{value: *row.MetricValueF, ts: row.Timestamp})
		case domain.MetricFollowups:
			summary.TotalFollowups += int(*row.MetricValueF)
		case domain.MetricAttempts:
			summary.TotalAttempts += int(*row.MetricValueF)
		}
	}

	sort.SliceStable(rts, func(i, j int) bool { return rts[i].ts.Before(rts[j].ts) })
	for _, tv := range rts {
		summary.RecentResponseTimes = append(summary.RecentResponseTimes, tv.value)
	}
	return summary
}

// SessionContext describes the in-flight dialog, when there is one.
type SessionContext struct {
	DialogID     int64
	Topic        string
	StartedAt    time.Time
	MessageCount int
	// Now anchors duration math; the zero value means time.Now.
	Now time.Time
}

func (s *SessionContext) DurationMinutes() float64 {
	now := s.Now
	if now.IsZero() {
		now = time.Now().UTC()
	}
	return now.Sub(s.StartedAt).Minutes()
}

// DifficultyDecision is the difficulty adjustment outcome.
type DifficultyDecision struct {
	Action     string  `json:"action"`
	Current    string  `json:"current"`
	Target     string  `json:"target"`
	Confidence float64 `json:"confidence"`
	Reasoning  string  `json:"reasoning"`
}

type FormatDecision struct {
	Format     string  `json:"format"`
	Confidence float64 `json:"confidence"`
	Reasoning  string  `json:"reasoning"`
}

type TempoDecision struct {
	Tempo      string  `json:"tempo"`
	Confidence float64 `json:"confidence"`
	Reasoning  string  `json:"reasoning"`
}

type RemediationTopic struct {
	Topic   string  `json:"topic"`
	Mastery float64 `json:"mastery"`
}

// Recommendation is the combined adaptation decision.
type Recommendation struct {
	Difficulty  DifficultyDecision     `json:"difficulty"`
	Format      FormatDecision         `json:"format"`
	Tempo       TempoDecision          `json:"tempo"`
	Remediation []RemediationTopic     `json:"remediation"`
	Confidence  float64                `json:"confidence"`
	Reasoning   string                 `json:"reasoning"`
	Strategy    Strategy               `json:"strategy"`
	GeneratedAt time.Time              `json:"generated_at"`
	Metadata    map[string]interface{} `json:"metadata,omitempty"`
}

// RulesAdapter implements the deterministic threshold rules.
type RulesAdapter struct {
	cfg Config
	log *logger.Logger
}

func NewRulesAdapter(cfg Config, baseLog *logger.Logger) *RulesAdapter {
	return &RulesAdapter{cfg: cfg, log: baseLog.With("adapter", "RulesAdapter")}
}

func (a *RulesAdapter) Name() Strategy { return StrategyRules }

// Recommend evaluates all rule groups against the snapshot.
func (a *RulesAdapter) Recommend(profile ProfileSnapshot, summary MetricsSummary, session *SessionContext) Recommendation {
	difficulty := a.DecideDifficulty(profile, summary)
	format := a.DecideFormat(profile, summary)
	tempo := a.DecideTempo(profile, session, summary)
	remediation := a.IdentifyRemediation(profile)

	rec := Recommendation{
		Difficulty:  difficulty,
		Format:      format,
		Tempo:       tempo,
		Remediation: remediation,
		Confidence:  (difficulty.Confidence + format.Confidence + tempo.Confidence) / 3,
		Strategy:    StrategyRules,
		GeneratedAt: time.Now().UTC(),
		Metadata: map[string]interface{}{
			"config_version":      ConfigVersion,
			"metrics_sample_size": summary.SampleCount(),
			"has_session_context": session != nil,
		},
	}
	rec.Reasoning = a.overallReasoning(rec, summary)
	return rec
}

// DecideDifficulty applies the performance thresholds in order: strong and
// quick moves up a level, weak or slow moves down, anything in between holds.
func (a *RulesAdapter) DecideDifficulty(profile ProfileSnapshot, summary MetricsSummary) DifficultyDecision {
	current := profile.CurrentDifficulty
	if current == "" {
		current = a.cfg.DefaultDifficulty
	}

	if !summary.hasData() {
		return DifficultyDecision{
			Action:     ActionMaintain,
			Current:    current,
			Target:     current,
			Confidence: 0.3,
			Reasoning:  "no recent performance data",
		}
	}

	avgAcc, hasAcc := mean(summary.RecentAccuracy)
	avgRT, hasRT := mean(summary.RecentResponseTimes)
	confidence := sampleConfidence(summary.SampleCount())

	change := 0
	reasoning := "performance within expected range"
	switch {
	case hasAcc && avgAcc >= a.cfg.AccuracyHigh && (!hasRT || avgRT < a.cfg.ResponseTimeNormalMax):
		change = 1
		reasoning = fmt.Sprintf("high accuracy (%.0f%%) with quick responses", avgAcc*100)
	case (hasAcc && avgAcc < a.cfg.AccuracyLow) || (hasRT && avgRT > a.cfg.ResponseTimeSlow):
		change = -1
		if hasAcc && avgAcc < a.cfg.AccuracyLow {
			reasoning = fmt.Sprintf("low accuracy (%.0f%%)", avgAcc*100)
		} else {
			reasoning = fmt.Sprintf("slow responses (%.0fs average)", avgRT)
		}
	}

	target := ShiftDifficulty(current, change)
	action := ActionMaintain
	switch {
	case change > 0 && target != current:
		action = ActionIncrease
	case change < 0 && target != current:
		action = ActionDecrease
	case change != 0 && target == current:
		reasoning = fmt.Sprintf("already at %s difficulty", current)
	}

	return DifficultyDecision{
		Action:     action,
		Current:    current,
		Target:     target,
		Confidence: confidence,
		Reasoning:  reasoning,
	}
}

// DecideFormat picks a presentation format; an explicit user preference wins
// over every derived signal.
func (a *RulesAdapter) DecideFormat(profile ProfileSnapshot, summary MetricsSummary) FormatDecision {
	if profile.PreferredFormat != "" {
		return FormatDecision{
			Format:     profile.PreferredFormat,
			Confidence: 0.9,
			Reasoning:  "user's stated format preference",
		}
	}

	if !summary.hasData() {
		return FormatDecision{
			Format:     a.cfg.DefaultFormat,
			Confidence: 0.3,
			Reasoning:  "no interaction data, using default format",
		}
	}

	avgAcc, hasAcc := mean(summary.RecentAccuracy)
	avgRT, hasRT := mean(summary.RecentResponseTimes)
	confidence := sampleConfidence(summary.SampleCount())

	switch {
	case summary.TotalFollowups > a.cfg.FollowupsHigh:
		return FormatDecision{
			Format:     domain.FormatVisual,
			Confidence: confidence,
			Reasoning:  fmt.Sprintf("%d followup questions suggest the explanation is not landing", summary.TotalFollowups),
		}
	case hasAcc && avgAcc >= a.cfg.AccuracyHigh && hasRT && avgRT < a.cfg.ResponseTimeFast:
		return FormatDecision{
			Format:     domain.FormatText,
			Confidence: confidence,
			Reasoning:  "strong fast performance, concise text is enough",
		}
	case hasRT && avgRT > a.cfg.ResponseTimeSlow:
		return FormatDecision{
			Format:     domain.FormatVideo,
			Confidence: confidence,
			Reasoning:  fmt.Sprintf("slow responses (%.0fs average), a guided walkthrough may help", avgRT),
		}
	case hasAcc && avgAcc < a.cfg.AccuracyLow:
		return FormatDecision{
			Format:     domain.FormatInteractive,
			Confidence: confidence,
			Reasoning:  fmt.Sprintf("low accuracy (%.0f%%), hands-on practice may help", avgAcc*100),
		}
	default:
		return FormatDecision{
			Format:     domain.FormatText,
			Confidence: confidence,
			Reasoning:  "no strong signal, using text format",
		}
	}
}

// DecideTempo inspects the active session for length, load and fatigue.
func (a *RulesAdapter) DecideTempo(profile ProfileSnapshot, session *SessionContext, summary MetricsSummary) TempoDecision {
	if session == nil {
		return TempoDecision{
			Tempo:      a.cfg.DefaultTempo,
			Confidence: 0.5,
			Reasoning:  "no active session",
		}
	}

	confidence := tempoConfidence(session.MessageCount)

	switch {
	case session.DurationMinutes() > a.cfg.SessionLongMinutes:
		return TempoDecision{
			Tempo:      TempoBreak,
			Confidence: confidence,
			Reasoning:  fmt.Sprintf("session has run %.0f minutes, a break is due", session.DurationMinutes()),
		}
	case session.MessageCount > a.cfg.SessionHighInteractions:
		return TempoDecision{
			Tempo:      TempoSlow,
			Confidence: confidence,
			Reasoning:  fmt.Sprintf("%d messages this session, slowing down", session.MessageCount),
		}
	case a.detectFatigue(summary.RecentResponseTimes):
		return TempoDecision{
			Tempo:      TempoSlow,
			Confidence: confidence,
			Reasoning:  "response times are trending up, likely fatigue",
		}
	case profile.LearningPace == domain.PaceFast && session.MessageCount < a.cfg.SessionHighInteractions/2:
		return TempoDecision{
			Tempo:      TempoFast,
			Confidence: confidence,
			Reasoning:  "fast learner early in the session",
		}
	default:
		return TempoDecision{
			Tempo:      TempoNormal,
			Confidence: confidence,
			Reasoning:  "session within normal bounds",
		}
	}
}

// detectFatigue compares the halves of the chronological response-time
// sequence and flags a significant slowdown.
func (a *RulesAdapter) detectFatigue(chronologicalRTs []float64) bool {
	if len(chronologicalRTs) < 3 {
		return false
	}
	mid := len(chronologicalRTs) / 2
	firstAvg, _ := mean(chronologicalRTs[:mid])
	secondAvg, _ := mean(chronologicalRTs[mid:])
	if firstAvg <= 0 {
		return false
	}
	return secondAvg > firstAvg*(1+a.cfg.FatigueRTIncrease)
}

// IdentifyRemediation lists struggling topics, weakest first.
func (a *RulesAdapter) IdentifyRemediation(profile ProfileSnapshot) []RemediationTopic {
	var out []RemediationTopic
	for topic, mastery := range profile.TopicMastery {
		if mastery < a.cfg.MasteryStruggling {
			out = append(out, RemediationTopic{Topic: topic, Mastery: mastery})
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Mastery != out[j].Mastery {
			return out[i].Mastery < out[j].Mastery
		}
		return out[i].Topic < out[j].Topic
	})
	return out
}

func (a *RulesAdapter) overallReasoning(rec Recommendation, summary MetricsSummary) string {
	var parts []string

	switch rec.Difficulty.Action {
	case ActionIncrease:
		parts = append(parts, fmt.Sprintf("Increasing difficulty to %s: %s", rec.Difficulty.Target, rec.Difficulty.Reasoning))
	case ActionDecrease:
		parts = append(parts, fmt.Sprintf("Decreasing difficulty to %s: %s", rec.Difficulty.Target, rec.Difficulty.Reasoning))
	}

	parts = append(parts, fmt.Sprintf("Using %s format: %s", rec.Format.Format, rec.Format.Reasoning))

	if rec.Tempo.Tempo != TempoNormal {
		parts = append(parts, fmt.Sprintf("Tempo %s: %s", rec.Tempo.Tempo, rec.Tempo.Reasoning))
	}

	if len(rec.Remediation) > 0 {
		topics := make([]string, 0, 2)
		for i, r := range rec.Remediation {
			if i == 2 {
				break
			}
			topics = append(topics, r.Topic)
		}
		parts = append(parts, fmt.Sprintf("Review recommended for %s", strings.Join(topics, ", ")))
	}

	if n := summary.SampleCount(); n > 0 {
		parts = append(parts, fmt.Sprintf("Based on %d recent interactions", n))
	} else {
		parts = append(parts, "Initial recommendation (cold start)")
	}

	return strings.Join(parts, ". ") + "."
}

// sampleConfidence maps sample size to confidence.
func sampleConfidence(n int) float64 {
	switch {
	case n >= 5:
		return 0.9
	case n >= 3:
		return 0.7
	case n > 0:
		return 0.5
	default:
		return 0.3
	}
}

// tempoConfidence grows with session activity, capped at 0.9.
func tempoConfidence(messageCount int) float64 {
	c := 0.5 + float64(messageCount)/20*0.4
	if c > 0.9 {
		return 0.9
	}
	return c
}

func mean(values []float64) (float64, bool) {
	if len(values) == 0 {
		return 0, false
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values)), true
}
