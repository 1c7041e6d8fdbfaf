package metrics

import (
	"context"
	"errors"
	"math"
	"sort"
	"time"

	"gorm.io/gorm"

	"github.com/NivaraGame/adaptive-lms/internal/domain"
	apperr "github.com/NivaraGame/adaptive-lms/internal/pkg/errors"
	"github.com/NivaraGame/adaptive-lms/internal/pkg/logger"
	"github.com/NivaraGame/adaptive-lms/internal/repos"
)

// EMA folds a new sample into the current value with smoothing factor alpha.
func EMA(current, sample, alpha float64) float64 {
	return alpha*sample + (1-alpha)*current
}

// RollingAverage updates a running average. Until the window is full each
// sample is weighted 1/(n+1); afterwards the weight is fixed at 1/window so
// older history decays.
func RollingAverage(current, sample float64, interactionCount, window int) float64 {
	if interactionCount <= 0 {
		return sample
	}
	var weight float64
	if interactionCount < window {
		weight = 1.0 / float64(interactionCount+1)
	} else {
		weight = 1.0 / float64(window)
	}
	return current*(1-weight) + sample*weight
}

// TopicScore pairs a topic with its mastery value.
type TopicScore struct {
	Topic string  `json:"topic"`
	Score float64 `json:"score"`
}

// WeakTopics returns up to limit topics with mastery below the threshold,
// weakest first.
func WeakTopics(mastery map[string]float64, threshold float64, limit int) []TopicScore {
	var out []TopicScore
	for topic, score := range mastery {
		if score < threshold {
			out = append(out, TopicScore{Topic: topic, Score: score})
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score < out[j].Score
		}
		return out[i].Topic < out[j].Topic
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

// StrongTopics returns up to limit topics with mastery at or above the
// threshold, strongest first.
func StrongTopics(mastery map[string]float64, threshold float64, limit int) []TopicScore {
	var out []TopicScore
	for topic, score := range mastery {
		if score >= threshold {
			out = append(out, TopicScore{Topic: topic, Score: score})
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].Topic < out[j].Topic
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

// Aggregator folds metric records into long-lived user profiles.
type Aggregator struct {
	db       *gorm.DB
	log      *logger.Logger
	profiles repos.UserProfileRepo
	contents repos.ContentRepo
	alpha    float64
	window   int
}

func NewAggregator(db *gorm.DB, baseLog *logger.Logger, profiles repos.UserProfileRepo, contents repos.ContentRepo, alpha float64, window int) *Aggregator {
	return &Aggregator{
		db:       db,
		log:      baseLog.With("component", "Aggregator"),
		profiles: profiles,
		contents: contents,
		alpha:    alpha,
		window:   window,
	}
}

// Apply runs ApplyTx in its own transaction.
func (a *Aggregator) Apply(ctx context.Context, rec *Record) (*domain.UserProfile, error) {
	var profile *domain.UserProfile
	err := a.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var txErr error
		profile, txErr = a.ApplyTx(ctx, tx, rec)
		return txErr
	})
	if err != nil {
		return nil, err
	}
	return profile, nil
}

// ApplyTx updates the user's profile from one record inside the caller's
// transaction. The profile row is locked for the duration so concurrent
// aggregation for the same user serializes.
func (a *Aggregator) ApplyTx(ctx context.Context, tx *gorm.DB, rec *Record) (*domain.UserProfile, error) {
	profile, err := a.profiles.GetByUserIDForUpdate(ctx, tx, rec.UserID)
	if err != nil {
		return nil, err
	}

	topic, err := a.resolveTopic(ctx, tx, rec)
	if err != nil {
		return nil, err
	}

	if rec.Accuracy != nil {
		if topic != "" {
			mastery, err := profile.MasteryMap()
			if err != nil {
				return nil, err
			}
			current := mastery[topic] // zero for a first encounter
			mastery[topic] = round(EMA(current, *rec.Accuracy, a.alpha), 4)
			if err := profile.SetMasteryMap(mastery); err != nil {
				return nil, err
			}
		}

		avgAcc := RollingAverage(deref(profile.AvgAccuracy), *rec.Accuracy, int(profile.TotalInteractions), a.window)
		avgAcc = round(avgAcc, 4)
		profile.AvgAccuracy = &avgAcc
	}

	if rec.ResponseTime != nil {
		avgRT := RollingAverage(deref(profile.AvgResponseTime), *rec.ResponseTime, int(profile.TotalInteractions), a.window)
		avgRT = round(avgRT, 2)
		profile.AvgResponseTime = &avgRT
		if *rec.ResponseTime > 0 {
			profile.TotalTimeSpent += *rec.ResponseTime
		}
	}

	profile.TotalInteractions++
	profile.LastUpdated = time.Now().UTC()

	if err := a.profiles.Update(ctx, tx, profile); err != nil {
		return nil, err
	}
	return profile, nil
}

func (a *Aggregator) resolveTopic(ctx context.Context, tx *gorm.DB, rec *Record) (string, error) {
	if rec.Topic != nil && *rec.Topic != "" {
		return *rec.Topic, nil
	}
	if rec.ContentID == nil {
		return "", nil
	}
	content, err := a.contents.GetByID(ctx, tx, *rec.ContentID)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return "", nil
		}
		return "", err
	}
	return content.Topic, nil
}

func round(v float64, places int) float64 {
	factor := math.Pow(10, float64(places))
	return math.Round(v*factor) / factor
}

func deref(v *float64) float64 {
	if v == nil {
		return 0
	}
	return *v
}
