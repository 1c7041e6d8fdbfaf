package services

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/NivaraGame/adaptive-lms/internal/domain"
	"github.com/NivaraGame/adaptive-lms/internal/metrics"
	apperr "github.com/NivaraGame/adaptive-lms/internal/pkg/errors"
	"github.com/NivaraGame/adaptive-lms/internal/pkg/logger"
	"github.com/NivaraGame/adaptive-lms/internal/repos"
)

var validSenderTypes = map[string]struct{}{
	"user":   {},
	"system": {},
}

// MessageCreate is the payload for posting a message into a dialog.
type MessageCreate struct {
	DialogID   int64
	SenderType string
	Content    string
	IsQuestion bool
	ExtraData  map[string]interface{}
}

type MessageService interface {
	// Create stores the message and, for user messages, runs the metrics
	// pipeline. A metrics failure does not fail the write.
	Create(ctx context.Context, in MessageCreate) (*domain.Message, *metrics.Record, error)
	GetByID(ctx context.Context, id int64) (*domain.Message, error)
	ListByDialog(ctx context.Context, dialogID int64, offset, limit int) ([]*domain.Message, error)
}

type messageService struct {
	db          *gorm.DB
	log         *logger.Logger
	messageRepo repos.MessageRepo
	dialogRepo  repos.DialogRepo
	workflow    *metrics.Workflow
}

func NewMessageService(db *gorm.DB, baseLog *logger.Logger, messageRepo repos.MessageRepo, dialogRepo repos.DialogRepo, workflow *metrics.Workflow) MessageService {
	return &messageService{
		db:          db,
		log:         baseLog.With("service", "MessageService"),
		messageRepo: messageRepo,
		dialogRepo:  dialogRepo,
		workflow:    workflow,
	}
}

func (s *messageService) Create(ctx context.Context, in MessageCreate) (*domain.Message, *metrics.Record, error) {
	if _, ok := validSenderTypes[in.SenderType]; !ok {
		return nil, nil, fmt.Errorf("%w: sender_type must be user or system", apperr.ErrInvalidArgument)
	}
	if in.Content == "" {
		return nil, nil, fmt.Errorf("%w: content is required", apperr.ErrInvalidArgument)
	}

	dialog, err := s.dialogRepo.GetByID(ctx, nil, in.DialogID)
	if err != nil {
		return nil, nil, fmt.Errorf("dialog %d: %w", in.DialogID, err)
	}
	if dialog.EndedAt != nil {
		return nil, nil, fmt.Errorf("%w: dialog %d has ended", apperr.ErrInvalidArgument, in.DialogID)
	}

	msg := &domain.Message{
		DialogID:   in.DialogID,
		SenderType: in.SenderType,
		Content:    in.Content,
		Timestamp:  time.Now().UTC(),
		IsQuestion: in.IsQuestion,
	}
	if in.ExtraData != nil {
		raw, err := json.Marshal(in.ExtraData)
		if err != nil {
			return nil, nil, fmt.Errorf("%w: extra_data is not serializable", apperr.ErrInvalidArgument)
		}
		msg.ExtraData = datatypes.JSON(raw)
	}

	if err := s.messageRepo.Create(ctx, nil, msg); err != nil {
		return nil, nil, err
	}

	var rec *metrics.Record
	if in.SenderType == "user" {
		rec, err = s.workflow.ProcessMessage(ctx, msg.MessageID)
		if err != nil {
			// The message is already persisted; metrics can be rebuilt
			// later through the reprocess endpoint.
			s.log.Warn("Metrics pipeline failed for message", "message_id", msg.MessageID, "error", err)
			rec = nil
		}
	}

	return msg, rec, nil
}

func (s *messageService) GetByID(ctx context.Context, id int64) (*domain.Message, error) {
	return s.messageRepo.GetByID(ctx, nil, id)
}

func (s *messageService) ListByDialog(ctx context.Context, dialogID int64, offset, limit int) ([]*domain.Message, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	if _, err := s.dialogRepo.GetByID(ctx, nil, dialogID); err != nil {
		return nil, fmt.Errorf("dialog %d: %w", dialogID, err)
	}
	return s.messageRepo.ListByDialogID(ctx, nil, dialogID, offset, limit)
}
