package llm

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.uber.org/fx"

	"github.com/alex-d4v/Tiphys/internal/config"
	"github.com/alex-d4v/Tiphys/pkg/llm/genai"
	"github.com/alex-d4v/Tiphys/pkg/logger"
)

// Module provides the llm fx.Module
var Module = fx.Module("llm",
	fx.Provide(NewService),
)

// Service wraps a Provider and folds transport failures into an
// error-sentinel string, so a failed completion reads as model output and
// downstream parsing fails closed instead of aborting the conversation.
type Service struct {
	provider Provider
	log      *slog.Logger
	timeout  time.Duration
	enabled  bool
}

// NewService creates the LLM service, binding a real client on startup
// when configured.
func NewService(lc fx.Lifecycle, cfg *config.Config, log *slog.Logger) *Service {
	log = log.With(logger.Scope("llm"))
	llmCfg := cfg.LLM

	svc := &Service{log: log, timeout: llmCfg.Timeout}

	if !llmCfg.IsEnabled() {
		log.Info("llm service disabled - no configuration provided")
		return svc
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			log.Info("initializing Google Generative AI chat client",
				slog.String("model", llmCfg.Model),
			)

			client, err := genai.NewClient(ctx, genai.Config{
				APIKey:          llmCfg.GoogleAPIKey,
				Model:           llmCfg.Model,
				Temperature:     llmCfg.Temperature,
				MaxOutputTokens: llmCfg.MaxOutputTokens,
			}, genai.WithLogger(log))
			if err != nil {
				log.Error("failed to initialize chat client", logger.Error(err))
				return nil // Don't fail startup
			}
			svc.provider = &genaiProvider{client: client}
			svc.enabled = true
			return nil
		},
	})

	return svc
}

// NewServiceWithProvider builds a service around an existing provider
// (used by tests).
func NewServiceWithProvider(p Provider, log *slog.Logger) *Service {
	return &Service{provider: p, log: log, enabled: p != nil && p.IsConfigured()}
}

// IsConfigured returns true if a provider is bound
func (s *Service) IsConfigured() bool {
	return s.enabled && s.provider != nil
}

// Generate produces a completion. On failure the returned string is an
// error sentinel, never empty, and the error is logged rather than
// propagated.
func (s *Service) Generate(ctx context.Context, prompt, systemPrompt string) string {
	if !s.IsConfigured() {
		return "[llm error] no language model is configured"
	}

	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	out, err := s.provider.Generate(ctx, GenerateRequest{
		Prompt:       prompt,
		SystemPrompt: systemPrompt,
	})
	if err != nil {
		s.log.Error("completion failed", logger.Error(err))
		return fmt.Sprintf("[llm error] %v", err)
	}
	return out
}

// genaiProvider adapts the genai client to the Provider interface
type genaiProvider struct {
	client *genai.Client
}

func (p *genaiProvider) Generate(ctx context.Context, req GenerateRequest) (string, error) {
	return p.client.Generate(ctx, genai.GenerateRequest{
		Prompt:       req.Prompt,
		SystemPrompt: req.SystemPrompt,
	})
}

func (p *genaiProvider) IsConfigured() bool {
	return p.client != nil
}
