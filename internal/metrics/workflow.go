package metrics

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/NivaraGame/adaptive-lms/internal/domain"
	apperr "github.com/NivaraGame/adaptive-lms/internal/pkg/errors"
	"github.com/NivaraGame/adaptive-lms/internal/pkg/logger"
	"github.com/NivaraGame/adaptive-lms/internal/repos"
)

// Workflow drives the full pipeline for a message: resolve the interaction,
// compute metrics, persist rows and fold them into the user profile.
type Workflow struct {
	db       *gorm.DB
	log      *logger.Logger
	messages repos.MessageRepo
	dialogs  repos.DialogRepo
	contents repos.ContentRepo
	metrics  repos.MetricRepo
	profiles repos.UserProfileRepo
	agg      *Aggregator
}

func NewWorkflow(
	db *gorm.DB,
	baseLog *logger.Logger,
	messages repos.MessageRepo,
	dialogs repos.DialogRepo,
	contents repos.ContentRepo,
	metricRepo repos.MetricRepo,
	profiles repos.UserProfileRepo,
	agg *Aggregator,
) *Workflow {
	return &Workflow{
		db:       db,
		log:      baseLog.With("component", "MetricsWorkflow"),
		messages: messages,
		dialogs:  dialogs,
		contents: contents,
		metrics:  metricRepo,
		profiles: profiles,
		agg:      agg,
	}
}

// ProcessMessage computes and stores metrics for one user message and
// updates the profile aggregates. Non-user messages are skipped and return
// a nil record.
func (w *Workflow) ProcessMessage(ctx context.Context, messageID int64) (*Record, error) {
	msg, err := w.messages.GetByID(ctx, nil, messageID)
	if err != nil {
		return nil, err
	}
	if msg.SenderType != "user" {
		w.log.Debug("Skipping non-user message", "message_id", messageID, "sender_type", msg.SenderType)
		return nil, nil
	}

	dialog, err := w.dialogs.GetByID(ctx, nil, msg.DialogID)
	if err != nil {
		return nil, err
	}

	if err := w.ensureProfile(ctx, dialog.UserID); err != nil {
		return nil, err
	}

	in, err := w.buildInteraction(ctx, dialog, msg)
	if err != nil {
		return nil, err
	}

	rec, err := Compute(*in)
	if err != nil {
		return nil, err
	}

	err = w.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := Store(ctx, tx, w.metrics, rec); err != nil {
			return err
		}
		_, err := w.agg.ApplyTx(ctx, tx, rec)
		return err
	})
	if err != nil {
		return nil, err
	}

	w.log.Info("Processed message metrics",
		"message_id", messageID,
		"user_id", rec.UserID,
		"has_accuracy", rec.Accuracy != nil,
		"has_response_time", rec.ResponseTime != nil)
	return rec, nil
}

// Reprocess recomputes metric rows for a message, replacing existing rows.
// Profile aggregates are incremental and are not replayed here.
func (w *Workflow) Reprocess(ctx context.Context, messageID int64) (*Record, error) {
	msg, err := w.messages.GetByID(ctx, nil, messageID)
	if err != nil {
		return nil, err
	}
	if msg.SenderType != "user" {
		return nil, nil
	}

	dialog, err := w.dialogs.GetByID(ctx, nil, msg.DialogID)
	if err != nil {
		return nil, err
	}

	in, err := w.buildInteraction(ctx, dialog, msg)
	if err != nil {
		return nil, err
	}

	rec, err := Compute(*in)
	if err != nil {
		return nil, err
	}

	err = w.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := w.metrics.DeleteByMessageID(ctx, tx, messageID); err != nil {
			return err
		}
		_, err := Store(ctx, tx, w.metrics, rec)
		return err
	})
	if err != nil {
		return nil, err
	}
	return rec, nil
}

// BatchResult summarizes a reprocessing run.
type BatchResult struct {
	Processed int              `json:"processed"`
	Skipped   int              `json:"skipped"`
	Failed    map[int64]string `json:"failed,omitempty"`
}

// ReprocessBatch reprocesses messages one at a time. Per-user profile
// updates are read-modify-write, so the batch stays sequential instead of
// fanning out.
func (w *Workflow) ReprocessBatch(ctx context.Context, messageIDs []int64) *BatchResult {
	res := &BatchResult{Failed: map[int64]string{}}
	for _, id := range messageIDs {
		if ctx.Err() != nil {
			res.Failed[id] = ctx.Err().Error()
			continue
		}
		rec, err := w.Reprocess(ctx, id)
		switch {
		case err != nil:
			w.log.Warn("Failed to reprocess message", "message_id", id, "error", err)
			res.Failed[id] = err.Error()
		case rec == nil:
			res.Skipped++
		default:
			res.Processed++
		}
	}
	if len(res.Failed) == 0 {
		res.Failed = nil
	}
	return res
}

func (w *Workflow) ensureProfile(ctx context.Context, userID int64) error {
	_, err := w.profiles.GetByUserID(ctx, nil, userID)
	if err == nil {
		return nil
	}
	if !errors.Is(err, apperr.ErrNotFound) {
		return err
	}

	profile := &domain.UserProfile{
		UserID:            userID,
		TopicMastery:      datatypes.JSON([]byte("{}")),
		LearningPace:      domain.PaceMedium,
		CurrentDifficulty: domain.DifficultyNormal,
		LastUpdated:       time.Now().UTC(),
	}
	if err := w.profiles.Create(ctx, nil, profile); err != nil {
		return err
	}
	w.log.Info("Created default profile", "user_id", userID)
	return nil
}

func (w *Workflow) buildInteraction(ctx context.Context, dialog *domain.Dialog, msg *domain.Message) (*Interaction, error) {
	extra := decodeExtra(msg.ExtraData)

	in := &Interaction{
		UserID:      dialog.UserID,
		DialogID:    &dialog.DialogID,
		MessageID:   &msg.MessageID,
		Topic:       dialog.Topic,
		UserAnswer:  msg.Content,
		Mode:        ModeExact,
		RespondedAt: msg.Timestamp,
		Extra:       extra,
	}

	if raw, ok := extra["content_id"]; ok {
		if id, ok := toInt(raw); ok {
			contentID := int64(id)
			in.ContentID = &contentID

			content, err := w.contents.GetByID(ctx, nil, contentID)
			switch {
			case errors.Is(err, apperr.ErrNotFound):
				w.log.Warn("Message references unknown content", "message_id", msg.MessageID, "content_id", contentID)
			case err != nil:
				return nil, err
			default:
				in.Topic = &content.Topic
				if len(content.ReferenceAnswer) > 0 {
					var ref interface{}
					if err := json.Unmarshal(content.ReferenceAnswer, &ref); err != nil {
						return nil, err
					}
					in.Reference = ref
				}
				if mode, ok := decodeExtra(content.ExtraData)["comparison_mode"].(string); ok && mode != "" {
					in.Mode = AnswerMode(mode)
				}
			}
		}
	}

	if raw, ok := extra["delivered_at"].(string); ok {
		if ts, err := time.Parse(time.RFC3339, raw); err == nil {
			in.DeliveredAt = &ts
		}
	}
	if in.DeliveredAt == nil {
		// Fall back to the timestamp of the system message that delivered
		// the content.
		delivery, err := w.messages.LatestBySenderBefore(ctx, nil, dialog.DialogID, msg.MessageID, "system")
		if err == nil {
			in.DeliveredAt = &delivery.Timestamp
		} else if !errors.Is(err, apperr.ErrNotFound) {
			return nil, err
		}
	}

	history, err := w.messages.ListByDialogIDUntil(ctx, nil, dialog.DialogID, msg.MessageID)
	if err != nil {
		return nil, err
	}
	in.History = history

	return in, nil
}

func decodeExtra(raw datatypes.JSON) map[string]interface{} {
	out := map[string]interface{}{}
	if len(raw) == 0 {
		return out
	}
	_ = json.Unmarshal(raw, &out)
	return out
}
