package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/NivaraGame/adaptive-lms/internal/adaptation"
	redisclient "github.com/NivaraGame/adaptive-lms/internal/clients/redis"
	"github.com/NivaraGame/adaptive-lms/internal/domain"
	apperr "github.com/NivaraGame/adaptive-lms/internal/pkg/errors"
	"github.com/NivaraGame/adaptive-lms/internal/pkg/logger"
	"github.com/NivaraGame/adaptive-lms/internal/repos"
)

const (
	// candidateLimit caps how many items each relaxation tier considers.
	candidateLimit = 10
	// recentExclusionLimit is how many recently shown items are kept out of
	// the candidate pool.
	recentExclusionLimit = 5
	// coldStartConfidence is the fixed confidence for first-time users.
	coldStartConfidence = 0.3
)

// Ranking bonuses. Content types are weighted toward active practice.
const (
	difficultyMatchBonus  = 3.0
	formatMatchBonus      = 2.0
	remediationTopicBonus = 5.0
)

var contentTypeWeights = map[string]float64{
	"exercise":    2.0,
	"quiz":        1.5,
	"lesson":      1.0,
	"explanation": 0.5,
}

// RecommendationRequest selects what to base the next-content pick on.
// The overrides pin difficulty or format regardless of what the engine
// decides; they exist for testing and manual steering.
type RecommendationRequest struct {
	UserID             int64
	DialogID           *int64
	TopicFocus         *string
	OverrideDifficulty *string
	OverrideFormat     *string
}

// RecommendationResult is the selected content plus the adaptation decision
// that drove the selection.
type RecommendationResult struct {
	Content        *domain.ContentItem       `json:"content"`
	Adaptation     adaptation.Recommendation `json:"adaptation"`
	Reasoning      string                    `json:"reasoning"`
	Confidence     float64                   `json:"confidence"`
	RelaxationTier int                       `json:"relaxation_tier"`
	ColdStart      bool                      `json:"cold_start"`
	GeneratedAt    time.Time                 `json:"generated_at"`
}

// HistoryEntry is one previously delivered recommendation, reconstructed
// from the message log.
type HistoryEntry struct {
	MessageID int64     `json:"message_id"`
	DialogID  int64     `json:"dialog_id"`
	ContentID int64     `json:"content_id"`
	Timestamp time.Time `json:"timestamp"`
	Reasoning string    `json:"reasoning,omitempty"`
}

// StrategyInfo describes the engine state for the inspection endpoint.
type StrategyInfo struct {
	Current    string                 `json:"current"`
	Available  []string               `json:"available"`
	Thresholds map[string]interface{} `json:"thresholds"`
}

type RecommendationService interface {
	Next(ctx context.Context, req RecommendationRequest) (*RecommendationResult, error)
	ColdStart(ctx context.Context, userID int64, topic *string) (*RecommendationResult, error)
	History(ctx context.Context, userID int64, limit int) ([]HistoryEntry, error)
	Strategy() StrategyInfo
	SetStrategy(name string) error
}

type recommendationService struct {
	log         *logger.Logger
	engine      *adaptation.Engine
	contentRepo repos.ContentRepo
	messageRepo repos.MessageRepo
	dialogRepo  repos.DialogRepo
	tracker     redisclient.RecentContentTracker // nil when redis is unavailable

	rngMu sync.Mutex
	rng   *rand.Rand
}

// NewRecommendationService builds the service. tracker may be nil; the
// message log then serves as the only source of recently shown content.
// rng may be nil; tests inject a seeded source.
func NewRecommendationService(
	baseLog *logger.Logger,
	engine *adaptation.Engine,
	contentRepo repos.ContentRepo,
	messageRepo repos.MessageRepo,
	dialogRepo repos.DialogRepo,
	tracker redisclient.RecentContentTracker,
	rng *rand.Rand,
) RecommendationService {
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &recommendationService{
		log:         baseLog.With("service", "RecommendationService"),
		engine:      engine,
		contentRepo: contentRepo,
		messageRepo: messageRepo,
		dialogRepo:  dialogRepo,
		tracker:     tracker,
		rng:         rng,
	}
}

func (s *recommendationService) Next(ctx context.Context, req RecommendationRequest) (*RecommendationResult, error) {
	rec := s.engine.Recommend(ctx, req.UserID, req.DialogID)

	// Explicit overrides win over the engine's decision.
	difficulty := rec.Difficulty.Target
	if req.OverrideDifficulty != nil && *req.OverrideDifficulty != "" {
		difficulty = *req.OverrideDifficulty
	}
	format := rec.Format.Format
	if req.OverrideFormat != nil && *req.OverrideFormat != "" {
		format = *req.OverrideFormat
	}

	exclude := s.recentlyShown(ctx, req.UserID)
	topic := s.pickTopic(ctx, req, rec)

	content, tier, err := s.searchContent(ctx, topic, difficulty, format, exclude, rec.Remediation)
	if err != nil {
		return nil, err
	}

	coldStart := rec.Metadata["cold_start"] == true

	result := &RecommendationResult{
		Content:        content,
		Adaptation:     rec,
		Reasoning:      s.selectionReasoning(content, rec, coldStart),
		Confidence:     rec.Confidence,
		RelaxationTier: tier,
		ColdStart:      coldStart,
		GeneratedAt:    time.Now().UTC(),
	}

	s.trackShown(ctx, req.UserID, content.ContentID)

	s.log.Info("Recommended content",
		"user_id", req.UserID,
		"content_id", content.ContentID,
		"tier", tier,
		"strategy", rec.Strategy)
	return result, nil
}

// ColdStart skips the engine and serves random normal-difficulty content,
// biased toward the preferred topic, falling back to anything available.
func (s *recommendationService) ColdStart(ctx context.Context, userID int64, topic *string) (*RecommendationResult, error) {
	normal := domain.DifficultyNormal
	content, err := s.contentRepo.Random(ctx, nil, repos.ContentFilters{Topic: topic, DifficultyLevel: &normal})
	if errors.Is(err, apperr.ErrNotFound) {
		content, err = s.contentRepo.Random(ctx, nil, repos.ContentFilters{})
	}
	if errors.Is(err, apperr.ErrNotFound) {
		return nil, apperr.ErrNoEligibleContent
	}
	if err != nil {
		return nil, err
	}

	result := &RecommendationResult{
		Content:    content,
		Reasoning:  "Welcome! Starting your learning journey with beginner-friendly content.",
		Confidence: coldStartConfidence,
		ColdStart:  true,
		Adaptation: adaptation.Recommendation{
			Strategy:    adaptation.StrategyRules,
			GeneratedAt: time.Now().UTC(),
		},
		GeneratedAt: time.Now().UTC(),
	}
	s.trackShown(ctx, userID, content.ContentID)
	return result, nil
}

// searchContent walks the graduated relaxation ladder: exact match, then
// relax format, then relax difficulty, then topic only, and finally anything
// in the catalog. The topic-bearing tiers are skipped when no topic focus
// exists, so an unfocused search falls from the exact tier straight to the
// random one.
func (s *recommendationService) searchContent(ctx context.Context, topic, difficulty, format string, exclude []int64, remediation []adaptation.RemediationTopic) (*domain.ContentItem, int, error) {
	var topicPtr *string
	if topic != "" {
		topicPtr = &topic
	}

	type tier struct {
		level   int
		filters repos.ContentFilters
	}
	tiers := []tier{
		{1, repos.ContentFilters{Topic: topicPtr, DifficultyLevel: &difficulty, Format: &format, ExcludeIDs: exclude}},
	}
	if topicPtr != nil {
		tiers = append(tiers,
			tier{2, repos.ContentFilters{Topic: topicPtr, DifficultyLevel: &difficulty, ExcludeIDs: exclude}},
			tier{3, repos.ContentFilters{Topic: topicPtr, Format: &format, ExcludeIDs: exclude}},
			tier{4, repos.ContentFilters{Topic: topicPtr, ExcludeIDs: exclude}},
		)
	}

	for _, t := range tiers {
		candidates, err := s.contentRepo.Find(ctx, nil, t.filters, candidateLimit)
		if err != nil {
			return nil, 0, err
		}
		if len(candidates) == 0 {
			continue
		}
		return s.rank(candidates, difficulty, format, remediation), t.level, nil
	}

	// Last tier: anything at all. Prefer unseen items, then give up on the
	// exclusion set before declaring the catalog empty.
	content, err := s.contentRepo.Random(ctx, nil, repos.ContentFilters{ExcludeIDs: exclude})
	if errors.Is(err, apperr.ErrNotFound) {
		content, err = s.contentRepo.Random(ctx, nil, repos.ContentFilters{})
	}
	if errors.Is(err, apperr.ErrNotFound) {
		return nil, 0, apperr.ErrNoEligibleContent
	}
	if err != nil {
		return nil, 0, err
	}
	return content, 5, nil
}

// rank scores candidates additively and returns the best one. A small random
// jitter breaks ties so repeat requests do not always converge on the same
// item.
func (s *recommendationService) rank(candidates []*domain.ContentItem, difficulty, format string, remediation []adaptation.RemediationTopic) *domain.ContentItem {
	if len(candidates) == 1 {
		return candidates[0]
	}

	remediationTopics := map[string]struct{}{}
	for _, r := range remediation {
		remediationTopics[r.Topic] = struct{}{}
	}

	best := candidates[0]
	bestScore := -1e18
	for _, c := range candidates {
		score := 0.0
		if c.DifficultyLevel == difficulty {
			score += difficultyMatchBonus
		}
		if c.Format == format {
			score += formatMatchBonus
		}
		if _, ok := remediationTopics[c.Topic]; ok {
			score += remediationTopicBonus
		}
		score += contentTypeWeights[c.ContentType]
		score += s.jitter()

		if score > bestScore {
			bestScore = score
			best = c
		}
	}
	return best
}

func (s *recommendationService) jitter() float64 {
	s.rngMu.Lock()
	defer s.rngMu.Unlock()
	return s.rng.Float64()*2 - 1
}

// pickTopic resolves the topic focus: an explicit request wins, then the
// weakest remediation topic, then the active dialog's topic, else none.
func (s *recommendationService) pickTopic(ctx context.Context, req RecommendationRequest, rec adaptation.Recommendation) string {
	if req.TopicFocus != nil && *req.TopicFocus != "" {
		return *req.TopicFocus
	}
	if len(rec.Remediation) > 0 {
		return rec.Remediation[0].Topic
	}
	if req.DialogID != nil {
		dialog, err := s.dialogRepo.GetByID(ctx, nil, *req.DialogID)
		if err != nil {
			if !errors.Is(err, apperr.ErrNotFound) {
				s.log.Warn("Failed to read dialog topic", "dialog_id", *req.DialogID, "error", err)
			}
			return ""
		}
		if dialog.Topic != nil {
			return *dialog.Topic
		}
	}
	return ""
}

// recentlyShown resolves the exclusion set, trying the tracker cache first
// and falling back to the message log.
func (s *recommendationService) recentlyShown(ctx context.Context, userID int64) []int64 {
	if s.tracker != nil {
		ids, err := s.tracker.Recent(ctx, userID, recentExclusionLimit)
		if err != nil {
			s.log.Warn("Recent-content tracker unavailable, falling back to message log", "error", err)
		} else if len(ids) > 0 {
			return ids
		}
	}

	messages, err := s.messageRepo.ListRecentByUserID(ctx, nil, userID, 50)
	if err != nil {
		s.log.Warn("Failed to scan message log for recent content", "error", err)
		return nil
	}

	var ids []int64
	seen := map[int64]struct{}{}
	for _, m := range messages {
		id, ok := contentIDFromExtra(m.ExtraData)
		if !ok {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
		if len(ids) == recentExclusionLimit {
			break
		}
	}
	return ids
}

func (s *recommendationService) trackShown(ctx context.Context, userID, contentID int64) {
	if s.tracker == nil {
		return
	}
	if err := s.tracker.Push(ctx, userID, contentID); err != nil {
		s.log.Warn("Failed to record shown content", "user_id", userID, "content_id", contentID, "error", err)
	}
}

func (s *recommendationService) selectionReasoning(content *domain.ContentItem, rec adaptation.Recommendation, coldStart bool) string {
	if coldStart {
		return "Welcome! Starting your learning journey with beginner-friendly content."
	}

	parts := []string{fmt.Sprintf("Selected %q (%s %s %s on %s)",
		content.Title, content.DifficultyLevel, content.Format, content.ContentType, content.Topic)}

	// Cite mastery only when the pick lands on a remediation target.
	for _, r := range rec.Remediation {
		if r.Topic == content.Topic {
			parts = append(parts, fmt.Sprintf("This content addresses %s, where you currently have %.0f%% mastery and need additional practice",
				r.Topic, r.Mastery*100))
			break
		}
	}

	if rec.Tempo.Tempo != adaptation.TempoNormal {
		parts = append(parts, fmt.Sprintf("Suggested tempo: %s (%s)", rec.Tempo.Tempo, rec.Tempo.Reasoning))
	}

	return strings.Join(parts, ". ") + "."
}

func (s *recommendationService) History(ctx context.Context, userID int64, limit int) ([]HistoryEntry, error) {
	if limit <= 0 || limit > 50 {
		limit = 10
	}

	messages, err := s.messageRepo.ListRecentByUserID(ctx, nil, userID, 100)
	if err != nil {
		return nil, err
	}

	var out []HistoryEntry
	for _, m := range messages {
		if m.SenderType != "system" {
			continue
		}
		id, ok := contentIDFromExtra(m.ExtraData)
		if !ok {
			continue
		}
		entry := HistoryEntry{
			MessageID: m.MessageID,
			DialogID:  m.DialogID,
			ContentID: id,
			Timestamp: m.Timestamp,
		}
		var extra map[string]interface{}
		if json.Unmarshal(m.ExtraData, &extra) == nil {
			if reasoning, ok := extra["recommendation_reasoning"].(string); ok {
				entry.Reasoning = reasoning
			}
		}
		out = append(out, entry)
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (s *recommendationService) Strategy() StrategyInfo {
	strategies := s.engine.Strategies()
	available := make([]string, 0, len(strategies))
	for _, st := range strategies {
		available = append(available, string(st))
	}
	return StrategyInfo{
		Current:    string(s.engine.Current()),
		Available:  available,
		Thresholds: s.engine.Config().Summary(),
	}
}

func (s *recommendationService) SetStrategy(name string) error {
	return s.engine.SetStrategy(adaptation.Strategy(name))
}

func contentIDFromExtra(raw []byte) (int64, bool) {
	if len(raw) == 0 {
		return 0, false
	}
	var extra map[string]interface{}
	if err := json.Unmarshal(raw, &extra); err != nil {
		return 0, false
	}
	switch v := extra["content_id"].(type) {
	case float64:
		return int64(v), true
	case string:
		var id int64
		if _, err := fmt.Sscan(v, &id); err == nil {
			return id, true
		}
	}
	return 0, false
}
