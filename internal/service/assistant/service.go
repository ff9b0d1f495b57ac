package assistant

import (
	"context"
	"errors"
	"strings"
	"time"

	"crisisgo/internal/models"
	"crisisgo/internal/service/ai"
	"crisisgo/internal/storage"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var ErrEmptyMessage = errors.New("message is required")

// Service answers chat turns and flags messages that look like emergencies.
// It writes ai-detected rows but never dispatches alerts itself.
type Service struct {
	chat       ai.Provider
	classifier ai.Provider
	settings   storage.SettingsStore
	logs       storage.AlertLogStore
	logger     *zap.Logger
}

// NewService wires the assistant. classifier may be nil to reuse chat.
func NewService(chat, classifier ai.Provider, settings storage.SettingsStore, logs storage.AlertLogStore, logger *zap.Logger) *Service {
	if chat == nil {
		chat = ai.Offline{}
	}
	if classifier == nil {
		classifier = chat
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{chat: chat, classifier: classifier, settings: settings, logs: logs, logger: logger}
}

// Chat generates a reply to message given the prior transcript. Provider
// failures degrade to the fallback reply.
func (s *Service) Chat(ctx context.Context, userID int64, message string, history []models.ChatMessage) (*models.ChatReply, error) {
	if strings.TrimSpace(message) == "" {
		return nil, ErrEmptyMessage
	}

	settings, err := s.settings.GetUserSettings(ctx, userID)
	if err != nil {
		s.logger.Warn("load settings failed, using defaults", zap.Int64("user_id", userID), zap.Error(err))
		def := models.DefaultSettings(userID)
		settings = &def
	}

	transcript := make([]models.ChatMessage, 0, len(history)+1)
	for _, msg := range history {
		if msg.Timestamp.IsZero() {
			msg.Timestamp = time.Now().UTC()
		}
		transcript = append(transcript, msg)
	}
	transcript = append(transcript, models.ChatMessage{Role: models.RoleUser, Content: message, Timestamp: time.Now().UTC()})

	var (
		reply          *ai.Reply
		classification models.Classification
		g              errgroup.Group
	)
	g.Go(func() error {
		r, err := s.chat.Generate(ctx, transcript, settings)
		if err != nil {
			s.logger.Error("generate chat response failed", zap.String("provider", s.chat.Name()), zap.Error(err))
			return nil
		}
		reply = r
		return nil
	})
	g.Go(func() error {
		classification = s.classifier.Classify(ctx, message)
		return nil
	})
	_ = g.Wait()

	if reply == nil {
		reply = &ai.Reply{Message: ai.FallbackReply, Timestamp: time.Now().UTC()}
	}

	if classification.IsEmergency {
		note := "AI detected potential emergency: " + message
		// the row outlives a client that hangs up mid-turn
		if _, err := s.logs.CreateAlertLog(context.WithoutCancel(ctx), models.AlertLog{
			UserID:     userID,
			DispatchID: uuid.NewString(),
			AlertType:  models.AlertManual,
			Status:     models.StatusAIDetected,
			Message:    &note,
		}); err != nil {
			s.logger.Error("record ai-detected alert failed", zap.Int64("user_id", userID), zap.Error(err))
		}
	}

	actions := classification.SuggestedActions
	if actions == nil {
		actions = []string{}
	}
	return &models.ChatReply{
		Message:           reply.Message,
		Timestamp:         reply.Timestamp,
		EmergencyDetected: classification.IsEmergency,
		Severity:          classification.Severity,
		SuggestedActions:  actions,
	}, nil
}

// Analyze classifies a single message without generating a reply. Any
// string is accepted; blank input degrades to the safe default.
func (s *Service) Analyze(ctx context.Context, message string) models.Classification {
	if strings.TrimSpace(message) == "" {
		return models.SafeClassification()
	}
	return s.classifier.Classify(ctx, message)
}
