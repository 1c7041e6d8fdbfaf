package metrics

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/NivaraGame/adaptive-lms/internal/domain"
	apperr "github.com/NivaraGame/adaptive-lms/internal/pkg/errors"
)

// AnswerMode selects how a user answer is compared against a reference.
type AnswerMode string

const (
	ModeBinary AnswerMode = "binary"
	ModeExact  AnswerMode = "exact"
	// ModePartial currently scores like ModeExact; fuzzy credit is a
	// planned extension of the comparison table.
	ModePartial AnswerMode = "partial"
)

// Interaction is one answered exchange, assembled from a user message and
// the content item it responds to. Optional parts stay nil and the derived
// metrics for them are skipped rather than defaulted.
type Interaction struct {
	UserID      int64
	DialogID    *int64
	MessageID   *int64
	ContentID   *int64
	Topic       *string
	UserAnswer  string
	Reference   interface{} // decoded reference answer, nil when the content has none
	Mode        AnswerMode
	DeliveredAt *time.Time
	RespondedAt time.Time
	Extra       map[string]interface{}
	History     []*domain.Message // dialog history up to and including this message
}

// Record holds the per-interaction metric values. Accuracy and ResponseTime
// are nil when their inputs were missing.
type Record struct {
	UserID       int64
	DialogID     *int64
	MessageID    *int64
	ContentID    *int64
	Topic        *string
	Accuracy     *float64
	ResponseTime *float64
	Attempts     int
	Followups    int
	Timestamp    time.Time
}

// Compute derives all metrics for a single interaction.
func Compute(in Interaction) (*Record, error) {
	rec := &Record{
		UserID:    in.UserID,
		DialogID:  in.DialogID,
		MessageID: in.MessageID,
		ContentID: in.ContentID,
		Topic:     in.Topic,
		Attempts:  ComputeAttempts(in.Extra),
		Followups: CountFollowups(in.History),
		Timestamp: in.RespondedAt,
	}

	if in.Reference != nil {
		acc, err := ComputeAccuracy(in.UserAnswer, in.Reference, in.Mode)
		if err != nil {
			return nil, err
		}
		rec.Accuracy = &acc
	}

	if in.DeliveredAt != nil {
		rt := ComputeResponseTime(*in.DeliveredAt, in.RespondedAt)
		rec.ResponseTime = &rt
	}

	return rec, nil
}

// ComputeAccuracy scores a user answer against a reference answer.
// The reference may be a scalar, an object carrying the expected value under
// "answer", "value" or "correct", or a list of acceptable answers in either
// shape. Unknown comparison modes are rejected rather than guessed at.
func ComputeAccuracy(userAnswer string, reference interface{}, mode AnswerMode) (float64, error) {
	if mode == "" {
		mode = ModeExact
	}
	switch mode {
	case ModeBinary, ModeExact, ModePartial:
	default:
		return 0, fmt.Errorf("%w: comparison mode %q", apperr.ErrInvalidArgument, mode)
	}

	given := normalizeAnswer(userAnswer)
	for _, accepted := range acceptedAnswers(reference) {
		if given == normalizeAnswer(accepted) {
			return 1.0, nil
		}
	}
	return 0.0, nil
}

// acceptedAnswers flattens a reference answer into candidate strings.
func acceptedAnswers(reference interface{}) []string {
	switch v := reference.(type) {
	case []interface{}:
		var out []string
		for _, el := range v {
			out = append(out, acceptedAnswers(el)...)
		}
		return out
	case map[string]interface{}:
		for _, key := range []string{"answer", "value", "correct"} {
			if inner, ok := v[key]; ok {
				return acceptedAnswers(inner)
			}
		}
		return nil
	default:
		return []string{answerToString(v)}
	}
}

func answerToString(v interface{}) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	default:
		return fmt.Sprint(t)
	}
}

func normalizeAnswer(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// ComputeResponseTime returns the signed interval in seconds between content
// delivery and the user's response. Negative values are preserved so clock
// skew stays visible downstream.
func ComputeResponseTime(deliveredAt, respondedAt time.Time) float64 {
	return respondedAt.Sub(deliveredAt).Seconds()
}

// ComputeAttempts reads the attempt count from interaction metadata,
// defaulting to 1 for a first attempt.
func ComputeAttempts(extra map[string]interface{}) int {
	for _, key := range []string{"attempts", "attempt_number"} {
		if raw, ok := extra[key]; ok {
			if n, ok := toInt(raw); ok && n > 0 {
				return n
			}
		}
	}
	return 1
}

func toInt(v interface{}) (int, bool) {
	switch t := v.(type) {
	case float64:
		return int(t), true
	case int:
		return t, true
	case int64:
		return int(t), true
	case string:
		n, err := strconv.Atoi(strings.TrimSpace(t))
		if err != nil {
			return 0, false
		}
		return n, true
	default:
		return 0, false
	}
}

// CountFollowups counts user messages beyond the first in a dialog slice.
func CountFollowups(history []*domain.Message) int {
	userMessages := 0
	for _, m := range history {
		if m.SenderType == "user" {
			userMessages++
		}
	}
	if userMessages <= 1 {
		return 0
	}
	return userMessages - 1
}
