package adaptation

import (
	"math"
	"strings"
	"testing"
	"time"

	"github.com/NivaraGame/adaptive-lms/internal/domain"
	"github.com/NivaraGame/adaptive-lms/internal/pkg/logger"
)

func testAdapter(t *testing.T) *RulesAdapter {
	t.Helper()
	log, err := logger.New("test")
	if err != nil {
		t.Fatalf("logger: %v", err)
	}
	return NewRulesAdapter(DefaultConfig(), log)
}

func repeat(v float64, n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = v
	}
	return out
}

func TestDecideDifficultyIncrease(t *testing.T) {
	a := testAdapter(t)
	profile := ProfileSnapshot{CurrentDifficulty: domain.DifficultyNormal}
	summary := MetricsSummary{
		RecentAccuracy:      repeat(0.9, 5),
		RecentResponseTimes: repeat(40, 5),
	}

	d := a.DecideDifficulty(profile, summary)
	if d.Action != ActionIncrease {
		t.Fatalf("expected increase, got %s (%s)", d.Action, d.Reasoning)
	}
	if d.Target != domain.DifficultyHard {
		t.Fatalf("expected hard, got %s", d.Target)
	}
	if d.Confidence != 0.9 {
		t.Fatalf("expected confidence 0.9 for 5 samples, got %v", d.Confidence)
	}
}

func TestDecideDifficultyDecreaseOnLowAccuracy(t *testing.T) {
	a := testAdapter(t)
	profile := ProfileSnapshot{CurrentDifficulty: domain.DifficultyHard}
	summary := MetricsSummary{RecentAccuracy: repeat(0.3, 3)}

	d := a.DecideDifficulty(profile, summary)
	if d.Action != ActionDecrease || d.Target != domain.DifficultyNormal {
		t.Fatalf("expected decrease to normal, got %s -> %s", d.Action, d.Target)
	}
	if d.Confidence != 0.7 {
		t.Fatalf("expected confidence 0.7 for 3 samples, got %v", d.Confidence)
	}
}

func TestDecideDifficultyDecreaseOnSlowResponses(t *testing.T) {
	a := testAdapter(t)
	profile := ProfileSnapshot{CurrentDifficulty: domain.DifficultyNormal}
	// Accuracy is fine but responses are far past the slow threshold.
	summary := MetricsSummary{
		RecentAccuracy:      repeat(0.6, 4),
		RecentResponseTimes: repeat(150, 4),
	}

	d := a.DecideDifficulty(profile, summary)
	if d.Action != ActionDecrease || d.Target != domain.DifficultyEasy {
		t.Fatalf("expected decrease to easy, got %s -> %s", d.Action, d.Target)
	}
}

func TestDecideDifficultyNoData(t *testing.T) {
	a := testAdapter(t)
	d := a.DecideDifficulty(ProfileSnapshot{CurrentDifficulty: domain.DifficultyNormal}, MetricsSummary{})
	if d.Action != ActionMaintain || d.Target != domain.DifficultyNormal {
		t.Fatalf("expected maintain normal, got %s -> %s", d.Action, d.Target)
	}
	if d.Confidence != 0.3 {
		t.Fatalf("expected confidence 0.3, got %v", d.Confidence)
	}
}

func TestDecideDifficultyClampsAtChallenge(t *testing.T) {
	a := testAdapter(t)
	profile := ProfileSnapshot{CurrentDifficulty: domain.DifficultyChallenge}
	summary := MetricsSummary{
		RecentAccuracy:      repeat(1.0, 5),
		RecentResponseTimes: repeat(20, 5),
	}

	d := a.DecideDifficulty(profile, summary)
	if d.Action != ActionMaintain || d.Target != domain.DifficultyChallenge {
		t.Fatalf("expected to hold at challenge, got %s -> %s", d.Action, d.Target)
	}
}

func TestShiftDifficultyClamping(t *testing.T) {
	if got := ShiftDifficulty(domain.DifficultyEasy, -1); got != domain.DifficultyEasy {
		t.Fatalf("expected easy, got %s", got)
	}
	if got := ShiftDifficulty(domain.DifficultyChallenge, 1); got != domain.DifficultyChallenge {
		t.Fatalf("expected challenge, got %s", got)
	}
	if got := ShiftDifficulty("bogus", 1); got != domain.DifficultyHard {
		t.Fatalf("unknown level should be treated as normal, got %s", got)
	}
}

func TestDecideFormatPreferenceWins(t *testing.T) {
	a := testAdapter(t)
	profile := ProfileSnapshot{PreferredFormat: domain.FormatVideo}
	// Signals that would otherwise pick visual.
	summary := MetricsSummary{RecentAccuracy: repeat(0.9, 5), TotalFollowups: 10}

	f := a.DecideFormat(profile, summary)
	if f.Format != domain.FormatVideo {
		t.Fatalf("expected preferred format to win, got %s", f.Format)
	}
	if f.Confidence != 0.9 {
		t.Fatalf("expected confidence 0.9, got %v", f.Confidence)
	}
}

func TestDecideFormatRuleOrder(t *testing.T) {
	a := testAdapter(t)

	// Followups dominate even with strong accuracy.
	f := a.DecideFormat(ProfileSnapshot{}, MetricsSummary{
		RecentAccuracy:      repeat(0.95, 5),
		RecentResponseTimes: repeat(10, 5),
		TotalFollowups:      4,
	})
	if f.Format != domain.FormatVisual {
		t.Fatalf("expected visual for heavy followups, got %s", f.Format)
	}

	// Strong and fast falls through to text.
	f = a.DecideFormat(ProfileSnapshot{}, MetricsSummary{
		RecentAccuracy:      repeat(0.95, 5),
		RecentResponseTimes: repeat(10, 5),
	})
	if f.Format != domain.FormatText {
		t.Fatalf("expected text for strong fast performance, got %s", f.Format)
	}

	// Slow responses pick video.
	f = a.DecideFormat(ProfileSnapshot{}, MetricsSummary{
		RecentAccuracy:      repeat(0.7, 5),
		RecentResponseTimes: repeat(130, 5),
	})
	if f.Format != domain.FormatVideo {
		t.Fatalf("expected video for slow responses, got %s", f.Format)
	}

	// Low accuracy picks interactive.
	f = a.DecideFormat(ProfileSnapshot{}, MetricsSummary{
		RecentAccuracy:      repeat(0.2, 5),
		RecentResponseTimes: repeat(50, 5),
	})
	if f.Format != domain.FormatInteractive {
		t.Fatalf("expected interactive for low accuracy, got %s", f.Format)
	}
}

func TestDecideFormatNoData(t *testing.T) {
	a := testAdapter(t)
	f := a.DecideFormat(ProfileSnapshot{}, MetricsSummary{})
	if f.Format != domain.FormatText || f.Confidence != 0.3 {
		t.Fatalf("expected default text at 0.3, got %s at %v", f.Format, f.Confidence)
	}
}

func TestDecideTempo(t *testing.T) {
	a := testAdapter(t)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	// No session.
	d := a.DecideTempo(ProfileSnapshot{}, nil, MetricsSummary{})
	if d.Tempo != TempoNormal || d.Confidence != 0.5 {
		t.Fatalf("expected normal/0.5 without session, got %s/%v", d.Tempo, d.Confidence)
	}

	// Long session forces a break.
	d = a.DecideTempo(ProfileSnapshot{}, &SessionContext{
		StartedAt:    now.Add(-90 * time.Minute),
		MessageCount: 5,
		Now:          now,
	}, MetricsSummary{})
	if d.Tempo != TempoBreak {
		t.Fatalf("expected break for long session, got %s", d.Tempo)
	}

	// Heavy message volume slows down.
	d = a.DecideTempo(ProfileSnapshot{}, &SessionContext{
		StartedAt:    now.Add(-10 * time.Minute),
		MessageCount: 25,
		Now:          now,
	}, MetricsSummary{})
	if d.Tempo != TempoSlow {
		t.Fatalf("expected slow for heavy session, got %s", d.Tempo)
	}
	if d.Confidence != 0.9 {
		t.Fatalf("tempo confidence should cap at 0.9, got %v", d.Confidence)
	}

	// Rising response times read as fatigue.
	d = a.DecideTempo(ProfileSnapshot{}, &SessionContext{
		StartedAt:    now.Add(-10 * time.Minute),
		MessageCount: 5,
		Now:          now,
	}, MetricsSummary{RecentResponseTimes: []float64{20, 25, 60, 70}})
	if d.Tempo != TempoSlow {
		t.Fatalf("expected slow for fatigue, got %s", d.Tempo)
	}

	// Fast learners early in a session speed up.
	d = a.DecideTempo(ProfileSnapshot{LearningPace: domain.PaceFast}, &SessionContext{
		StartedAt:    now.Add(-5 * time.Minute),
		MessageCount: 4,
		Now:          now,
	}, MetricsSummary{})
	if d.Tempo != TempoFast {
		t.Fatalf("expected fast tempo, got %s", d.Tempo)
	}
	if math.Abs(d.Confidence-0.58) > 1e-9 {
		t.Fatalf("expected confidence 0.58 for 4 messages, got %v", d.Confidence)
	}
}

func TestDetectFatigue(t *testing.T) {
	a := testAdapter(t)
	if a.detectFatigue([]float64{10, 50}) {
		t.Fatal("fewer than 3 samples should never flag fatigue")
	}
	if !a.detectFatigue([]float64{10, 10, 20, 20}) {
		t.Fatal("doubling response times should flag fatigue")
	}
	if a.detectFatigue([]float64{10, 10, 11, 11}) {
		t.Fatal("a 10% slowdown should not flag fatigue")
	}
}

func TestIdentifyRemediationSorted(t *testing.T) {
	a := testAdapter(t)
	profile := ProfileSnapshot{TopicMastery: map[string]float64{
		"algebra":  0.35,
		"geometry": 0.9,
		"logic":    0.1,
		"sets":     0.39,
	}}

	rem := a.IdentifyRemediation(profile)
	if len(rem) != 3 {
		t.Fatalf("expected 3 remediation topics, got %d", len(rem))
	}
	if rem[0].Topic != "logic" || rem[1].Topic != "algebra" || rem[2].Topic != "sets" {
		t.Fatalf("remediation not sorted weakest first: %+v", rem)
	}
}

func TestBuildMetricsSummary(t *testing.T) {
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	f := func(v float64) *float64 { return &v }

	// Rows arrive newest first, the way the store returns them.
	rows := []*domain.Metric{
		{MetricName: domain.MetricResponseTime, MetricValueF: f(60), Timestamp: base.Add(2 * time.Minute)},
		{MetricName: domain.MetricAccuracy, MetricValueF: f(1), Timestamp: base.Add(2 * time.Minute)},
		{MetricName: domain.MetricFollowups, MetricValueF: f(2), Timestamp: base.Add(2 * time.Minute)},
		{MetricName: domain.MetricResponseTime, MetricValueF: f(30), Timestamp: base},
		{MetricName: domain.MetricAccuracy, MetricValueF: f(0), Timestamp: base},
		{MetricName: domain.MetricAttempts, MetricValueF: f(3), Timestamp: base},
	}

	s := BuildMetricsSummary(rows)
	if len(s.RecentAccuracy) != 2 {
		t.Fatalf("expected 2 accuracy samples, got %d", len(s.RecentAccuracy))
	}
	if len(s.RecentResponseTimes) != 2 || s.RecentResponseTimes[0] != 30 || s.RecentResponseTimes[1] != 60 {
		t.Fatalf("response times not chronological: %v", s.RecentResponseTimes)
	}
	if s.TotalFollowups != 2 || s.TotalAttempts != 3 {
		t.Fatalf("unexpected sums: followups=%d attempts=%d", s.TotalFollowups, s.TotalAttempts)
	}
	if s.SampleCount() != 2 {
		t.Fatalf("expected sample count 2, got %d", s.SampleCount())
	}
}

func TestRecommendColdStartReasoning(t *testing.T) {
	a := testAdapter(t)
	rec := a.Recommend(DefaultProfileSnapshot(DefaultConfig(), 1), MetricsSummary{}, nil)
	if !strings.Contains(rec.Reasoning, "cold start") {
		t.Fatalf("expected cold start mention, got %q", rec.Reasoning)
	}
	if rec.Difficulty.Action != ActionMaintain {
		t.Fatalf("cold start should maintain difficulty, got %s", rec.Difficulty.Action)
	}
}

func TestRecommendMetadata(t *testing.T) {
	a := testAdapter(t)
	profile := DefaultProfileSnapshot(DefaultConfig(), 1)
	summary := MetricsSummary{RecentAccuracy: repeat(0.8, 4), RecentResponseTimes: repeat(40, 4)}

	rec := a.Recommend(profile, summary, &SessionContext{DialogID: 7, StartedAt: time.Now(), MessageCount: 3})
	if rec.Metadata["config_version"] != ConfigVersion {
		t.Fatalf("expected config version %q, got %v", ConfigVersion, rec.Metadata["config_version"])
	}
	if rec.Metadata["metrics_sample_size"] != 4 {
		t.Fatalf("expected sample size 4, got %v", rec.Metadata["metrics_sample_size"])
	}
	if rec.Metadata["has_session_context"] != true {
		t.Fatalf("expected session context flag, got %v", rec.Metadata["has_session_context"])
	}

	rec = a.Recommend(profile, MetricsSummary{}, nil)
	if rec.Metadata["metrics_sample_size"] != 0 || rec.Metadata["has_session_context"] != false {
		t.Fatalf("unexpected metadata without inputs: %v", rec.Metadata)
	}
}

func TestRecommendOverallReasoningMentionsRemediation(t *testing.T) {
	a := testAdapter(t)
	profile := ProfileSnapshot{
		CurrentDifficulty: domain.DifficultyNormal,
		LearningPace:      domain.PaceMedium,
		TopicMastery:      map[string]float64{"logic": 0.1, "algebra": 0.2, "sets": 0.3},
	}
	summary := MetricsSummary{RecentAccuracy: repeat(0.9, 5), RecentResponseTimes: repeat(20, 5)}

	rec := a.Recommend(profile, summary, nil)
	if !strings.Contains(rec.Reasoning, "logic") || !strings.Contains(rec.Reasoning, "algebra") {
		t.Fatalf("expected top-2 remediation topics in reasoning, got %q", rec.Reasoning)
	}
	if strings.Contains(rec.Reasoning, "sets") {
		t.Fatalf("reasoning should only mention the weakest two topics, got %q", rec.Reasoning)
	}
	if !strings.Contains(rec.Reasoning, "Based on 5 recent interactions") {
		t.Fatalf("expected sample size mention, got %q", rec.Reasoning)
	}
}
