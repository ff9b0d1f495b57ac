package assistant

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"crisisgo/internal/config"
	"crisisgo/internal/models"
	"crisisgo/internal/service/ai"
	"crisisgo/internal/storage"

	"go.uber.org/zap"
)

type stubProvider struct {
	mu          sync.Mutex
	reply       string
	err         error
	result      models.Classification
	transcripts [][]models.ChatMessage
	settings    []*models.UserSettings
}

func (s *stubProvider) Name() string { return "stub" }

func (s *stubProvider) Generate(_ context.Context, transcript []models.ChatMessage, settings *models.UserSettings) (*ai.Reply, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.transcripts = append(s.transcripts, transcript)
	s.settings = append(s.settings, settings)
	if s.err != nil {
		return nil, s.err
	}
	return &ai.Reply{Message: s.reply}, nil
}

func (s *stubProvider) Classify(context.Context, string) models.Classification {
	if s.result.Severity == "" {
		return models.SafeClassification()
	}
	return s.result
}

func TestChatAppendsMessageToTranscript(t *testing.T) {
	store := storage.NewMemoryStore()
	provider := &stubProvider{reply: "Here to help."}
	svc := NewService(provider, nil, store, store, zap.NewNop())

	history := []models.ChatMessage{
		{Role: models.RoleAssistant, Content: "Hello! How can I assist you today?"},
	}
	reply, err := svc.Chat(context.Background(), 1, "How do I add a contact?", history)
	if err != nil {
		t.Fatalf("chat: %v", err)
	}
	if reply.Message != "Here to help." {
		t.Fatalf("unexpected reply %q", reply.Message)
	}
	if reply.EmergencyDetected || reply.Severity != models.SeverityLow || reply.SuggestedActions == nil {
		t.Fatalf("expected safe classification, got %+v", reply)
	}
	if len(provider.transcripts) != 1 || len(provider.transcripts[0]) != 2 {
		t.Fatalf("expected one call with 2 messages, got %+v", provider.transcripts)
	}
	last := provider.transcripts[0][1]
	if last.Role != models.RoleUser || last.Content != "How do I add a contact?" {
		t.Fatalf("unexpected last message %+v", last)
	}
	if provider.settings[0] == nil || provider.settings[0].AITone != models.ToneCalm {
		t.Fatalf("expected default settings to be passed, got %+v", provider.settings[0])
	}

	logs, err := store.ListAlertLogs(context.Background(), 1)
	if err != nil {
		t.Fatalf("list logs: %v", err)
	}
	if len(logs) != 0 {
		t.Fatalf("expected no alert logs, got %d", len(logs))
	}
}

func TestChatRecordsAIDetectedRow(t *testing.T) {
	store := storage.NewMemoryStore()
	chat := &stubProvider{reply: "Please call emergency services."}
	classifier := &stubProvider{result: models.Classification{
		IsEmergency:      true,
		Severity:         models.SeverityHigh,
		SuggestedActions: []string{"Call 911"},
	}}
	svc := NewService(chat, classifier, store, store, zap.NewNop())

	reply, err := svc.Chat(context.Background(), 1, "my house is on fire", nil)
	if err != nil {
		t.Fatalf("chat: %v", err)
	}
	if !reply.EmergencyDetected || reply.Severity != models.SeverityHigh {
		t.Fatalf("expected emergency, got %+v", reply)
	}

	logs, err := store.ListAlertLogs(context.Background(), 1)
	if err != nil {
		t.Fatalf("list logs: %v", err)
	}
	if len(logs) != 1 {
		t.Fatalf("expected 1 alert log, got %d", len(logs))
	}
	row := logs[0]
	if row.Status != models.StatusAIDetected || row.AlertType != models.AlertManual {
		t.Fatalf("unexpected row %+v", row)
	}
	if row.Message == nil || *row.Message != "AI detected potential emergency: my house is on fire" {
		t.Fatalf("unexpected message %v", row.Message)
	}
	if row.DispatchID == "" {
		t.Fatalf("expected dispatch id")
	}
}

func TestChatGenerationFailureDegrades(t *testing.T) {
	store := storage.NewMemoryStore()
	svc := NewService(&stubProvider{err: errors.New("quota exceeded")}, nil, store, store, zap.NewNop())

	reply, err := svc.Chat(context.Background(), 1, "hello", nil)
	if err != nil {
		t.Fatalf("chat: %v", err)
	}
	if reply.Message != ai.FallbackReply {
		t.Fatalf("expected fallback, got %q", reply.Message)
	}
	if reply.Timestamp.IsZero() {
		t.Fatalf("expected timestamp")
	}
}

func TestChatOfflineProvider(t *testing.T) {
	store := storage.NewMemoryStore()
	svc := NewService(nil, nil, store, store, nil)

	reply, err := svc.Chat(context.Background(), 1, "is it going to rain?", nil)
	if err != nil {
		t.Fatalf("chat: %v", err)
	}
	if reply.EmergencyDetected || reply.Severity != models.SeverityLow || len(reply.SuggestedActions) != 0 {
		t.Fatalf("expected safe default, got %+v", reply)
	}
}

func TestChatRejectsEmptyMessage(t *testing.T) {
	store := storage.NewMemoryStore()
	svc := NewService(&stubProvider{}, nil, store, store, zap.NewNop())
	if _, err := svc.Chat(context.Background(), 1, "   ", nil); !errors.Is(err, ErrEmptyMessage) {
		t.Fatalf("expected ErrEmptyMessage, got %v", err)
	}
}

func TestAnalyzeBlankMessageIsSafe(t *testing.T) {
	store := storage.NewMemoryStore()
	classifier := &stubProvider{result: models.Classification{IsEmergency: true, Severity: models.SeverityHigh}}
	svc := NewService(&stubProvider{}, classifier, store, store, zap.NewNop())

	got := svc.Analyze(context.Background(), "")
	if got.IsEmergency || got.Severity != models.SeverityLow || got.SuggestedActions == nil {
		t.Fatalf("expected safe default, got %+v", got)
	}
}

func TestAnalyzeUsesClassifier(t *testing.T) {
	store := storage.NewMemoryStore()
	classifier := &stubProvider{result: models.Classification{IsEmergency: true, Severity: models.SeverityMedium, SuggestedActions: []string{"Stay put"}}}
	svc := NewService(&stubProvider{}, classifier, store, store, zap.NewNop())

	got := svc.Analyze(context.Background(), "I feel dizzy")
	if !got.IsEmergency || got.Severity != models.SeverityMedium || strings.Join(got.SuggestedActions, ",") != "Stay put" {
		t.Fatalf("unexpected classification %+v", got)
	}
}

// cancellingClassifier flags every message and cancels the turn's context,
// as a client disconnecting mid-request would.
type cancellingClassifier struct {
	stubProvider
	cancel context.CancelFunc
}

func (c *cancellingClassifier) Classify(context.Context, string) models.Classification {
	c.cancel()
	return models.Classification{IsEmergency: true, Severity: models.SeverityHigh, SuggestedActions: []string{"Call 911"}}
}

func TestAIDetectedRowSurvivesCancelledRequest(t *testing.T) {
	store, err := storage.New(&config.Config{Storage: config.StorageConfig{Driver: "sqlite3", DSN: ":memory:"}})
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	defer store.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	classifier := &cancellingClassifier{cancel: cancel}
	svc := NewService(&stubProvider{reply: "ok"}, classifier, store, store, zap.NewNop())

	reply, err := svc.Chat(ctx, 1, "my neighbour collapsed", nil)
	if err != nil {
		t.Fatalf("chat: %v", err)
	}
	if !reply.EmergencyDetected {
		t.Fatalf("expected emergency")
	}
	logs, err := store.ListAlertLogs(context.Background(), 1)
	if err != nil {
		t.Fatalf("list logs: %v", err)
	}
	if len(logs) != 1 || logs[0].Status != models.StatusAIDetected {
		t.Fatalf("expected one ai-detected row, got %+v", logs)
	}
}
