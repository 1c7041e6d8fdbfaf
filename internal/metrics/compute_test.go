package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/NivaraGame/adaptive-lms/internal/domain"
	apperr "github.com/NivaraGame/adaptive-lms/internal/pkg/errors"
)

func TestComputeAccuracyScalar(t *testing.T) {
	got, err := ComputeAccuracy("Paris", "paris", ModeExact)
	if err != nil {
		t.Fatalf("ComputeAccuracy: %v", err)
	}
	if got != 1.0 {
		t.Fatalf("expected 1.0, got %v", got)
	}

	got, err = ComputeAccuracy("  42 ", 42.0, ModeBinary)
	if err != nil {
		t.Fatalf("ComputeAccuracy: %v", err)
	}
	if got != 1.0 {
		t.Fatalf("expected numeric match, got %v", got)
	}

	got, err = ComputeAccuracy("london", "paris", ModeExact)
	if err != nil {
		t.Fatalf("ComputeAccuracy: %v", err)
	}
	if got != 0.0 {
		t.Fatalf("expected 0.0, got %v", got)
	}
}

func TestComputeAccuracyObjectKeys(t *testing.T) {
	for _, key := range []string{"answer", "value", "correct"} {
		ref := map[string]interface{}{key: "yes"}
		got, err := ComputeAccuracy("YES", ref, ModeExact)
		if err != nil {
			t.Fatalf("ComputeAccuracy(%s): %v", key, err)
		}
		if got != 1.0 {
			t.Fatalf("key %s: expected 1.0, got %v", key, got)
		}
	}
}

func TestComputeAccuracyList(t *testing.T) {
	ref := []interface{}{
		"four",
		map[string]interface{}{"answer": 4.0},
	}
	got, err := ComputeAccuracy("4", ref, ModeExact)
	if err != nil {
		t.Fatalf("ComputeAccuracy: %v", err)
	}
	if got != 1.0 {
		t.Fatalf("expected match against list element, got %v", got)
	}
}

func TestComputeAccuracyPartialBehavesLikeExact(t *testing.T) {
	got, err := ComputeAccuracy("almost paris", "paris", ModePartial)
	if err != nil {
		t.Fatalf("ComputeAccuracy: %v", err)
	}
	if got != 0.0 {
		t.Fatalf("partial mode should not award partial credit, got %v", got)
	}
}

func TestComputeAccuracyUnknownMode(t *testing.T) {
	_, err := ComputeAccuracy("x", "x", AnswerMode("semantic"))
	if !errors.Is(err, apperr.ErrInvalidArgument) {
		t.Fatalf("expected ErrInvalidArgument, got %v", err)
	}
}

func TestComputeResponseTimeSigned(t *testing.T) {
	delivered := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	got := ComputeResponseTime(delivered, delivered.Add(45*time.Second))
	if got != 45 {
		t.Fatalf("expected 45s, got %v", got)
	}

	// Clock skew stays visible as a negative interval.
	got = ComputeResponseTime(delivered, delivered.Add(-10*time.Second))
	if got != -10 {
		t.Fatalf("expected -10s, got %v", got)
	}
}

func TestComputeAttempts(t *testing.T) {
	if got := ComputeAttempts(nil); got != 1 {
		t.Fatalf("default attempts: expected 1, got %d", got)
	}
	if got := ComputeAttempts(map[string]interface{}{"attempts": 3.0}); got != 3 {
		t.Fatalf("attempts: expected 3, got %d", got)
	}
	if got := ComputeAttempts(map[string]interface{}{"attempt_number": "2"}); got != 2 {
		t.Fatalf("attempt_number: expected 2, got %d", got)
	}
	if got := ComputeAttempts(map[string]interface{}{"attempts": -1.0}); got != 1 {
		t.Fatalf("invalid attempts should default to 1, got %d", got)
	}
}

func TestCountFollowups(t *testing.T) {
	history := []*domain.Message{
		{SenderType: "system"},
		{SenderType: "user"},
		{SenderType: "system"},
		{SenderType: "user"},
		{SenderType: "user"},
	}
	if got := CountFollowups(history); got != 2 {
		t.Fatalf("expected 2 followups, got %d", got)
	}
	if got := CountFollowups(history[:2]); got != 0 {
		t.Fatalf("single user message should yield 0 followups, got %d", got)
	}
	if got := CountFollowups(nil); got != 0 {
		t.Fatalf("empty history should yield 0 followups, got %d", got)
	}
}

func TestComputeNullPropagation(t *testing.T) {
	respondedAt := time.Date(2026, 3, 1, 10, 5, 0, 0, time.UTC)
	rec, err := Compute(Interaction{
		UserID:      1,
		UserAnswer:  "whatever",
		Mode:        ModeExact,
		RespondedAt: respondedAt,
		History:     []*domain.Message{{SenderType: "user"}},
	})
	if err != nil {
		t.Fatalf("Compute: %v", err)
	}
	if rec.Accuracy != nil {
		t.Fatalf("accuracy should be nil without a reference answer, got %v", *rec.Accuracy)
	}
	if rec.ResponseTime != nil {
		t.Fatalf("response time should be nil without a delivery timestamp, got %v", *rec.ResponseTime)
	}
	if rec.Attempts != 1 || rec.Followups != 0 {
		t.Fatalf("unexpected attempts/followups: %d/%d", rec.Attempts, rec.Followups)
	}
}

func TestBuildRowsSkipsNilMetrics(t *testing.T) {
	rec := &Record{UserID: 7, Attempts: 1, Followups: 0, Timestamp: time.Now().UTC()}
	rows := BuildRows(rec)
	if len(rows) != 2 {
		t.Fatalf("expected attempts and followups rows only, got %d rows", len(rows))
	}
	names := map[string]bool{}
	for _, r := range rows {
		names[r.MetricName] = true
	}
	if !names[domain.MetricAttempts] || !names[domain.MetricFollowups] {
		t.Fatalf("unexpected row names: %v", names)
	}
}
