package services

import (
	"context"
	"encoding/json"
	"errors"
	"math/rand"
	"strings"
	"testing"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/NivaraGame/adaptive-lms/internal/adaptation"
	redisclient "github.com/NivaraGame/adaptive-lms/internal/clients/redis"
	"github.com/NivaraGame/adaptive-lms/internal/domain"
	apperr "github.com/NivaraGame/adaptive-lms/internal/pkg/errors"
	"github.com/NivaraGame/adaptive-lms/internal/repos"
	"github.com/NivaraGame/adaptive-lms/internal/repos/testutil"
)

type fakeTracker struct {
	recent []int64
	pushed []int64
	err    error
}

func (f *fakeTracker) Push(ctx context.Context, userID, contentID int64) error {
	if f.err != nil {
		return f.err
	}
	f.pushed = append(f.pushed, contentID)
	return nil
}

func (f *fakeTracker) Recent(ctx context.Context, userID int64, limit int) ([]int64, error) {
	if f.err != nil {
		return nil, f.err
	}
	if len(f.recent) > limit {
		return f.recent[:limit], nil
	}
	return f.recent, nil
}

type recFixture struct {
	tx      *gorm.DB
	svc     RecommendationService
	tracker *fakeTracker
}

func newRecFixture(t *testing.T, tracker *fakeTracker) *recFixture {
	t.Helper()
	tx := testutil.Tx(t, testutil.DB(t))
	log := testutil.Logger(t)

	profileRepo := repos.NewUserProfileRepo(tx, log)
	metricRepo := repos.NewMetricRepo(tx, log)
	dialogRepo := repos.NewDialogRepo(tx, log)
	messageRepo := repos.NewMessageRepo(tx, log)
	contentRepo := repos.NewContentRepo(tx, log)

	engine := adaptation.NewEngine(log, adaptation.DefaultConfig(), profileRepo, metricRepo, dialogRepo, messageRepo)

	// A typed nil pointer inside the interface would defeat the service's
	// nil check, so pass an untyped nil when no tracker is wanted.
	var trk redisclient.RecentContentTracker
	if tracker != nil {
		trk = tracker
	}

	svc := NewRecommendationService(log, engine, contentRepo, messageRepo, dialogRepo, trk, rand.New(rand.NewSource(1)))
	return &recFixture{tx: tx, svc: svc, tracker: tracker}
}

// seedActiveUser creates a user with a profile that has prior interactions so
// the engine treats them as a returning learner.
func seedActiveUser(t *testing.T, ctx context.Context, tx *gorm.DB, name, preferredFormat string) *domain.User {
	t.Helper()
	user := testutil.SeedUser(t, ctx, tx, name)
	profile := testutil.SeedProfile(t, ctx, tx, user.UserID)
	profile.TotalInteractions = 5
	if preferredFormat != "" {
		profile.PreferredFormat = &preferredFormat
	}
	if err := tx.WithContext(ctx).Save(profile).Error; err != nil {
		t.Fatalf("update profile: %v", err)
	}
	return user
}

func TestRankScoring(t *testing.T) {
	log := testutil.Logger(t)
	s := &recommendationService{
		log: log,
		rng: rand.New(rand.NewSource(1)),
	}

	strong := &domain.ContentItem{
		ContentID:       1,
		Topic:           "fractions",
		DifficultyLevel: domain.DifficultyNormal,
		Format:          domain.FormatVisual,
		ContentType:     "exercise",
	}
	weak := &domain.ContentItem{
		ContentID:       2,
		Topic:           "geometry",
		DifficultyLevel: domain.DifficultyHard,
		Format:          domain.FormatText,
		ContentType:     "explanation",
	}

	remediation := []adaptation.RemediationTopic{{Topic: "fractions", Mastery: 0.2}}

	// strong scores 3+2+5+2.0 = 12, weak scores 0.5; jitter of +-1 per
	// candidate cannot close that gap.
	for i := 0; i < 20; i++ {
		got := s.rank([]*domain.ContentItem{weak, strong}, domain.DifficultyNormal, domain.FormatVisual, remediation)
		if got.ContentID != strong.ContentID {
			t.Fatalf("iteration %d: expected full match to win, got content %d", i, got.ContentID)
		}
	}
}

func TestRankScoresFullRemediationList(t *testing.T) {
	s := &recommendationService{
		log: testutil.Logger(t),
		rng: rand.New(rand.NewSource(1)),
	}

	// Both candidates miss difficulty and format; only the remediation
	// bonus separates them, and it must apply to the second-weakest topic
	// too, not just the first.
	second := &domain.ContentItem{ContentID: 1, Topic: "decimals", ContentType: "explanation"}
	other := &domain.ContentItem{ContentID: 2, Topic: "geometry", ContentType: "explanation"}
	remediation := []adaptation.RemediationTopic{
		{Topic: "fractions", Mastery: 0.1},
		{Topic: "decimals", Mastery: 0.3},
	}

	for i := 0; i < 20; i++ {
		got := s.rank([]*domain.ContentItem{other, second}, domain.DifficultyNormal, domain.FormatVisual, remediation)
		if got.ContentID != second.ContentID {
			t.Fatalf("iteration %d: expected remediation-list member to win, got content %d", i, got.ContentID)
		}
	}
}

func TestRankSingleCandidate(t *testing.T) {
	s := &recommendationService{log: testutil.Logger(t), rng: rand.New(rand.NewSource(1))}
	only := &domain.ContentItem{ContentID: 9}
	if got := s.rank([]*domain.ContentItem{only}, "", "", nil); got != only {
		t.Fatalf("single candidate must be returned as-is, got %+v", got)
	}
}

func TestNextFullMatch(t *testing.T) {
	ctx := context.Background()
	f := newRecFixture(t, nil)
	user := seedActiveUser(t, ctx, f.tx, "rec_full_match", domain.FormatVisual)

	match := testutil.SeedContent(t, ctx, f.tx, "fractions", domain.DifficultyNormal, domain.FormatVisual, "exercise")
	testutil.SeedContent(t, ctx, f.tx, "fractions", domain.DifficultyNormal, domain.FormatText, "lesson")

	topic := "fractions"
	result, err := f.svc.Next(ctx, RecommendationRequest{UserID: user.UserID, TopicFocus: &topic})
	if err != nil {
		t.Fatalf("Next: %v", err)
	}
	if result.Content.ContentID != match.ContentID {
		t.Fatalf("expected content %d, got %d", match.ContentID, result.Content.ContentID)
	}
	if result.RelaxationTier != 1 {
		t.Fatalf("expected tier 1, got %d", result.RelaxationTier)
	}
	if result.ColdStart {
		t.Fatal("returning user must not be treated as cold start")
	}
	if result.Reasoning == "" {
		t.Fatal("expected selection reasoning")
	}
}

func TestNextRelaxesDifficultyBeforeTopic(t *testing.T) {
	ctx := context.Background()
	f := newRecFixture(t, nil)
	user := seedActiveUser(t, ctx, f.tx, "rec_relax_difficulty", domain.FormatVisual)

	// Nothing in algebra at the target difficulty; the ladder must relax
	// difficulty while holding topic+format before giving up on format.
	visual := testutil.SeedContent(t, ctx, f.tx, "algebra", domain.DifficultyHard, domain.FormatVisual, "lesson")
	testutil.SeedContent(t, ctx, f.tx, "algebra", domain.DifficultyHard, domain.FormatText, "lesson")

	topic := "algebra"
	result, err := f.svc.Next(ctx, RecommendationRequest{UserID: user.UserID, TopicFocus: &topic})
	if err != nil {
		t.Fatalf("Next: %v", err)
	}
	if result.Content.ContentID != visual.ContentID {
		t.Fatalf("expected format-preserving content %d, got %d", visual.ContentID, result.Content.ContentID)
	}
	if result.RelaxationTier != 3 {
		t.Fatalf("expected topic+format tier 3, got %d", result.RelaxationTier)
	}
}

func TestNextFallsToRandomWhenTopicHasNoContent(t *testing.T) {
	ctx := context.Background()
	f := newRecFixture(t, nil)
	user := seedActiveUser(t, ctx, f.tx, "rec_relax", "")

	fallbackItem := testutil.SeedContent(t, ctx, f.tx, "geometry", domain.DifficultyNormal, domain.FormatText, "lesson")

	topic := "algebra"
	result, err := f.svc.Next(ctx, RecommendationRequest{UserID: user.UserID, TopicFocus: &topic})
	if err != nil {
		t.Fatalf("Next: %v", err)
	}
	if result.Content.ContentID != fallbackItem.ContentID {
		t.Fatalf("expected fallback content %d, got %d", fallbackItem.ContentID, result.Content.ContentID)
	}
	if result.RelaxationTier != 5 {
		t.Fatalf("expected random tier 5 after exhausting the topic tiers, got %d", result.RelaxationTier)
	}
}

func TestNextUsesDialogTopic(t *testing.T) {
	ctx := context.Background()
	f := newRecFixture(t, nil)
	user := seedActiveUser(t, ctx, f.tx, "rec_dialog_topic", domain.FormatText)
	dialog := testutil.SeedDialog(t, ctx, f.tx, user.UserID, "geometry")

	geometry := testutil.SeedContent(t, ctx, f.tx, "geometry", domain.DifficultyNormal, domain.FormatText, "lesson")
	testutil.SeedContent(t, ctx, f.tx, "fractions", domain.DifficultyNormal, domain.FormatText, "lesson")

	result, err := f.svc.Next(ctx, RecommendationRequest{UserID: user.UserID, DialogID: &dialog.DialogID})
	if err != nil {
		t.Fatalf("Next: %v", err)
	}
	if result.Content.ContentID != geometry.ContentID {
		t.Fatalf("active dialog topic should constrain the search, got content %d", result.Content.ContentID)
	}
}

func TestNextAppliesOverrides(t *testing.T) {
	ctx := context.Background()
	f := newRecFixture(t, nil)
	user := seedActiveUser(t, ctx, f.tx, "rec_overrides", domain.FormatText)

	hardVisual := testutil.SeedContent(t, ctx, f.tx, "fractions", domain.DifficultyHard, domain.FormatVisual, "exercise")
	testutil.SeedContent(t, ctx, f.tx, "fractions", domain.DifficultyNormal, domain.FormatText, "lesson")

	hard := domain.DifficultyHard
	visual := domain.FormatVisual
	result, err := f.svc.Next(ctx, RecommendationRequest{
		UserID:             user.UserID,
		OverrideDifficulty: &hard,
		OverrideFormat:     &visual,
	})
	if err != nil {
		t.Fatalf("Next: %v", err)
	}
	if result.Content.ContentID != hardVisual.ContentID {
		t.Fatalf("overrides must pin the search, got content %d", result.Content.ContentID)
	}
	if result.RelaxationTier != 1 {
		t.Fatalf("overridden search should hit the exact tier, got %d", result.RelaxationTier)
	}
}

func TestNextReservesLastTierForExhaustedCatalog(t *testing.T) {
	ctx := context.Background()
	tracker := &fakeTracker{}
	f := newRecFixture(t, tracker)
	user := seedActiveUser(t, ctx, f.tx, "rec_exhausted", "")

	only := testutil.SeedContent(t, ctx, f.tx, "geometry", domain.DifficultyNormal, domain.FormatText, "lesson")
	tracker.recent = []int64{only.ContentID}

	topic := "geometry"
	result, err := f.svc.Next(ctx, RecommendationRequest{UserID: user.UserID, TopicFocus: &topic})
	if err != nil {
		t.Fatalf("Next: %v", err)
	}
	if result.Content.ContentID != only.ContentID {
		t.Fatalf("expected the only catalog item back, got %d", result.Content.ContentID)
	}
	if result.RelaxationTier != 5 {
		t.Fatalf("expected last-resort tier 5, got %d", result.RelaxationTier)
	}
}

func TestNextExcludesRecentlyShown(t *testing.T) {
	ctx := context.Background()
	tracker := &fakeTracker{}
	f := newRecFixture(t, tracker)
	user := seedActiveUser(t, ctx, f.tx, "rec_exclude", domain.FormatText)

	shown := testutil.SeedContent(t, ctx, f.tx, "fractions", domain.DifficultyNormal, domain.FormatText, "lesson")
	fresh := testutil.SeedContent(t, ctx, f.tx, "fractions", domain.DifficultyNormal, domain.FormatText, "lesson")
	tracker.recent = []int64{shown.ContentID}

	topic := "fractions"
	result, err := f.svc.Next(ctx, RecommendationRequest{UserID: user.UserID, TopicFocus: &topic})
	if err != nil {
		t.Fatalf("Next: %v", err)
	}
	if result.Content.ContentID != fresh.ContentID {
		t.Fatalf("expected unseen content %d, got %d", fresh.ContentID, result.Content.ContentID)
	}
	if len(tracker.pushed) != 1 || tracker.pushed[0] != fresh.ContentID {
		t.Fatalf("expected shown content to be tracked, got %v", tracker.pushed)
	}
}

func TestNextEmptyCatalog(t *testing.T) {
	ctx := context.Background()
	f := newRecFixture(t, nil)
	user := seedActiveUser(t, ctx, f.tx, "rec_empty", "")

	_, err := f.svc.Next(ctx, RecommendationRequest{UserID: user.UserID})
	if !errors.Is(err, apperr.ErrNoEligibleContent) {
		t.Fatalf("expected ErrNoEligibleContent, got %v", err)
	}
}

func TestNextColdStart(t *testing.T) {
	ctx := context.Background()
	f := newRecFixture(t, nil)
	user := testutil.SeedUser(t, ctx, f.tx, "rec_cold")
	testutil.SeedContent(t, ctx, f.tx, "fractions", domain.DifficultyNormal, domain.FormatText, "lesson")

	result, err := f.svc.Next(ctx, RecommendationRequest{UserID: user.UserID})
	if err != nil {
		t.Fatalf("Next: %v", err)
	}
	if !result.ColdStart {
		t.Fatal("user without profile must be cold start")
	}
	if result.Confidence != result.Adaptation.Confidence {
		t.Fatalf("confidence must be the engine's overall confidence, got %v vs %v",
			result.Confidence, result.Adaptation.Confidence)
	}
	if result.Confidence <= 0 || result.Confidence > 0.5 {
		t.Fatalf("cold start confidence should be low but positive, got %v", result.Confidence)
	}
	if result.Reasoning != "Welcome! Starting your learning journey with beginner-friendly content." {
		t.Fatalf("unexpected cold start reasoning: %q", result.Reasoning)
	}
}

func TestColdStartPrefersNormalDifficulty(t *testing.T) {
	ctx := context.Background()
	f := newRecFixture(t, nil)
	user := testutil.SeedUser(t, ctx, f.tx, "rec_cold_normal")

	normal := testutil.SeedContent(t, ctx, f.tx, "fractions", domain.DifficultyNormal, domain.FormatText, "lesson")
	testutil.SeedContent(t, ctx, f.tx, "fractions", domain.DifficultyEasy, domain.FormatText, "lesson")
	testutil.SeedContent(t, ctx, f.tx, "fractions", domain.DifficultyHard, domain.FormatText, "quiz")

	result, err := f.svc.ColdStart(ctx, user.UserID, nil)
	if err != nil {
		t.Fatalf("ColdStart: %v", err)
	}
	if result.Content.ContentID != normal.ContentID {
		t.Fatalf("expected normal-difficulty content %d, got %d", normal.ContentID, result.Content.ContentID)
	}
	if result.Confidence != 0.3 || !result.ColdStart {
		t.Fatalf("unexpected cold start result: %+v", result)
	}
}

func TestColdStartFallsBackToAnyContent(t *testing.T) {
	ctx := context.Background()
	f := newRecFixture(t, nil)
	user := testutil.SeedUser(t, ctx, f.tx, "rec_cold_any")

	hard := testutil.SeedContent(t, ctx, f.tx, "fractions", domain.DifficultyHard, domain.FormatText, "quiz")

	result, err := f.svc.ColdStart(ctx, user.UserID, nil)
	if err != nil {
		t.Fatalf("ColdStart: %v", err)
	}
	if result.Content.ContentID != hard.ContentID {
		t.Fatalf("expected any-content fallback %d, got %d", hard.ContentID, result.Content.ContentID)
	}
}

func TestNextCitesMasteryForRemediationTarget(t *testing.T) {
	ctx := context.Background()
	f := newRecFixture(t, nil)
	user := testutil.SeedUser(t, ctx, f.tx, "rec_remediation_reasoning")
	profile := testutil.SeedProfile(t, ctx, f.tx, user.UserID)
	profile.TotalInteractions = 5
	if err := profile.SetMasteryMap(map[string]float64{"fractions": 0.2}); err != nil {
		t.Fatalf("set mastery: %v", err)
	}
	if err := f.tx.WithContext(ctx).Save(profile).Error; err != nil {
		t.Fatalf("update profile: %v", err)
	}

	testutil.SeedContent(t, ctx, f.tx, "fractions", domain.DifficultyNormal, domain.FormatText, "lesson")

	result, err := f.svc.Next(ctx, RecommendationRequest{UserID: user.UserID})
	if err != nil {
		t.Fatalf("Next: %v", err)
	}
	if result.Content.Topic != "fractions" {
		t.Fatalf("weakest topic should drive the pick, got %s", result.Content.Topic)
	}
	if !strings.Contains(result.Reasoning, "This content addresses fractions") ||
		!strings.Contains(result.Reasoning, "20% mastery") {
		t.Fatalf("expected remediation mastery citation, got %q", result.Reasoning)
	}
}

func TestColdStartEmptyCatalog(t *testing.T) {
	ctx := context.Background()
	f := newRecFixture(t, nil)
	user := testutil.SeedUser(t, ctx, f.tx, "rec_cold_empty")

	_, err := f.svc.ColdStart(ctx, user.UserID, nil)
	if !errors.Is(err, apperr.ErrNoEligibleContent) {
		t.Fatalf("expected ErrNoEligibleContent, got %v", err)
	}
}

func TestHistoryReadsMessageLog(t *testing.T) {
	ctx := context.Background()
	f := newRecFixture(t, nil)
	user := testutil.SeedUser(t, ctx, f.tx, "rec_history")
	dialog := testutil.SeedDialog(t, ctx, f.tx, user.UserID, "fractions")

	base := time.Now().UTC().Add(-time.Hour)
	older := seedRecommendationMessage(t, ctx, f.tx, dialog.DialogID, 11, "first pick", base)
	newer := seedRecommendationMessage(t, ctx, f.tx, dialog.DialogID, 12, "second pick", base.Add(10*time.Minute))
	// User replies and plain system messages are not recommendations.
	testutil.SeedMessage(t, ctx, f.tx, dialog.DialogID, "user", "my answer", base.Add(5*time.Minute))
	testutil.SeedMessage(t, ctx, f.tx, dialog.DialogID, "system", "hello", base.Add(6*time.Minute))

	entries, err := f.svc.History(ctx, user.UserID, 10)
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 history entries, got %d", len(entries))
	}
	if entries[0].ContentID != 12 || entries[1].ContentID != 11 {
		t.Fatalf("expected newest first (12, 11), got (%d, %d)", entries[0].ContentID, entries[1].ContentID)
	}
	if entries[0].MessageID != newer.MessageID || entries[1].MessageID != older.MessageID {
		t.Fatal("history entries must reference the originating messages")
	}
	if entries[0].Reasoning != "second pick" {
		t.Fatalf("expected reasoning carried through, got %q", entries[0].Reasoning)
	}
}

func TestHistoryLimit(t *testing.T) {
	ctx := context.Background()
	f := newRecFixture(t, nil)
	user := testutil.SeedUser(t, ctx, f.tx, "rec_history_limit")
	dialog := testutil.SeedDialog(t, ctx, f.tx, user.UserID, "fractions")

	base := time.Now().UTC().Add(-time.Hour)
	for i := 0; i < 5; i++ {
		seedRecommendationMessage(t, ctx, f.tx, dialog.DialogID, int64(100+i), "", base.Add(time.Duration(i)*time.Minute))
	}

	entries, err := f.svc.History(ctx, user.UserID, 3)
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(entries) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(entries))
	}
}

func TestStrategyInfoAndSwitch(t *testing.T) {
	f := newRecFixture(t, nil)

	info := f.svc.Strategy()
	if info.Current != "rules" {
		t.Fatalf("expected rules strategy, got %s", info.Current)
	}
	if len(info.Available) != 1 || info.Available[0] != "rules" {
		t.Fatalf("unexpected available strategies: %v", info.Available)
	}
	if len(info.Thresholds) == 0 {
		t.Fatal("expected threshold summary")
	}

	if err := f.svc.SetStrategy("bandit"); !errors.Is(err, adaptation.ErrStrategyNotFound) {
		t.Fatalf("expected ErrStrategyNotFound, got %v", err)
	}
	if err := f.svc.SetStrategy("rules"); err != nil {
		t.Fatalf("SetStrategy(rules): %v", err)
	}
}

func seedRecommendationMessage(t *testing.T, ctx context.Context, tx *gorm.DB, dialogID, contentID int64, reasoning string, ts time.Time) *domain.Message {
	t.Helper()
	extra := map[string]interface{}{"content_id": contentID}
	if reasoning != "" {
		extra["recommendation_reasoning"] = reasoning
	}
	raw, err := json.Marshal(extra)
	if err != nil {
		t.Fatalf("marshal extra: %v", err)
	}
	m := &domain.Message{
		DialogID:   dialogID,
		SenderType: "system",
		Content:    "Here is your next activity",
		Timestamp:  ts,
		ExtraData:  datatypes.JSON(raw),
	}
	if err := tx.WithContext(ctx).Create(m).Error; err != nil {
		t.Fatalf("seed recommendation message: %v", err)
	}
	return m
}
