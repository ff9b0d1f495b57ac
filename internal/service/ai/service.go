package ai

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"crisisgo/internal/config"
	"crisisgo/internal/models"

	"github.com/cloudwego/eino-ext/components/model/claude"
	"github.com/cloudwego/eino-ext/components/model/gemini"
	"github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"go.uber.org/zap"
	"google.golang.org/genai"
)

// ErrOffline is returned by Generate when no provider credentials are configured.
var ErrOffline = errors.New("ai provider not configured")

type Reply struct {
	Message   string
	Timestamp time.Time
}

// Provider is one LLM backend able to chat and classify.
type Provider interface {
	Name() string
	Generate(ctx context.Context, transcript []models.ChatMessage, settings *models.UserSettings) (*Reply, error)
	// Classify never fails; problems degrade to models.SafeClassification.
	Classify(ctx context.Context, text string) models.Classification
}

var defaultModels = map[string]string{
	"openai": "gpt-4o",
	"gemini": "gemini-2.5-flash",
	"claude": "claude-3-5-haiku-latest",
}

// modelFactory is swapped in tests.
var modelFactory = newChatModel

func newChatModel(ctx context.Context, provider string, cfg config.ProviderConfig) (model.BaseChatModel, error) {
	modelName := cfg.Model
	if modelName == "" {
		modelName = defaultModels[provider]
	}
	switch provider {
	case "openai":
		return openai.NewChatModel(ctx, &openai.ChatModelConfig{
			BaseURL: cfg.BaseURL,
			Model:   modelName,
			APIKey:  cfg.APIKey,
		})
	case "gemini":
		client, err := genai.NewClient(ctx, &genai.ClientConfig{
			APIKey: cfg.APIKey,
		})
		if err != nil {
			return nil, fmt.Errorf("create gemini client: %w", err)
		}
		return gemini.NewChatModel(ctx, &gemini.Config{
			Client: client,
			Model:  modelName,
		})
	case "claude":
		var baseURL *string
		if cfg.BaseURL != "" {
			baseURL = &cfg.BaseURL
		}
		return claude.NewChatModel(ctx, &claude.Config{
			APIKey:    cfg.APIKey,
			Model:     modelName,
			BaseURL:   baseURL,
			MaxTokens: generateMaxTokens,
		})
	default:
		return nil, fmt.Errorf("invalid provider: %s", provider)
	}
}

// New returns the named provider. An empty name, "offline" or a provider
// without an API key yields the offline provider.
func New(ctx context.Context, cfg *config.Config, name string, logger *zap.Logger) (Provider, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" || name == "offline" {
		return Offline{}, nil
	}
	if _, ok := defaultModels[name]; !ok {
		return nil, fmt.Errorf("invalid provider: %s", name)
	}
	provCfg := cfg.Providers[name]
	if provCfg.APIKey == "" {
		logger.Warn("provider has no api key, running offline", zap.String("provider", name))
		return Offline{}, nil
	}
	chatModel, err := modelFactory(ctx, name, provCfg)
	if err != nil {
		return nil, fmt.Errorf("init %s model: %w", name, err)
	}
	return &chatProvider{name: name, model: chatModel, logger: logger}, nil
}

type chatProvider struct {
	name   string
	model  model.BaseChatModel
	logger *zap.Logger
}

func (p *chatProvider) Name() string { return p.name }

func (p *chatProvider) Generate(ctx context.Context, transcript []models.ChatMessage, settings *models.UserSettings) (*Reply, error) {
	messages := make([]*schema.Message, 0, len(transcript)+1)
	messages = append(messages, &schema.Message{Role: schema.System, Content: systemPrompt(settings)})
	messages = append(messages, convertMessages(transcript)...)

	resp, err := p.model.Generate(ctx, messages,
		model.WithTemperature(generateTemperature),
		model.WithMaxTokens(generateMaxTokens),
	)
	if err != nil {
		return nil, fmt.Errorf("generate %s response: %w", p.name, err)
	}
	content := ""
	if resp != nil {
		content = strings.TrimSpace(resp.Content)
	}
	if content == "" {
		content = FallbackReply
	}
	return &Reply{Message: content, Timestamp: time.Now().UTC()}, nil
}

func (p *chatProvider) Classify(ctx context.Context, text string) models.Classification {
	resp, err := p.model.Generate(ctx, []*schema.Message{
		{Role: schema.System, Content: classifyPrompt},
		{Role: schema.User, Content: text},
	},
		model.WithTemperature(classifyTemperature),
		model.WithMaxTokens(classifyMaxTokens),
	)
	if err != nil {
		p.logger.Warn("emergency classification failed", zap.String("provider", p.name), zap.Error(err))
		return models.SafeClassification()
	}
	if resp == nil {
		return models.SafeClassification()
	}
	result, ok := parseClassification(resp.Content)
	if !ok {
		p.logger.Warn("unparseable classification", zap.String("provider", p.name), zap.String("response", resp.Content))
	}
	return result
}

func convertMessages(transcript []models.ChatMessage) []*schema.Message {
	messages := make([]*schema.Message, 0, len(transcript))
	for _, msg := range transcript {
		var role schema.RoleType
		switch msg.Role {
		case models.RoleAssistant:
			role = schema.Assistant
		case models.RoleSystem:
			role = schema.System
		default:
			role = schema.User
		}
		messages = append(messages, &schema.Message{Role: role, Content: msg.Content})
	}
	return messages
}

// Offline stands in when no LLM is reachable.
type Offline struct{}

func (Offline) Name() string { return "offline" }

func (Offline) Generate(context.Context, []models.ChatMessage, *models.UserSettings) (*Reply, error) {
	return nil, ErrOffline
}

func (Offline) Classify(context.Context, string) models.Classification {
	return models.SafeClassification()
}
