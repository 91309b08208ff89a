package completion

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/sells-group/social-studio/internal/config"
	"github.com/sells-group/social-studio/internal/metrics"
	"github.com/sells-group/social-studio/internal/resilience"
	"github.com/sells-group/social-studio/pkg/anthropic"
	"github.com/sells-group/social-studio/pkg/sambanova"
)

// SambaNova adapts the OpenAI-compatible SambaNova client.
type SambaNova struct {
	client sambanova.Client
}

// NewSambaNova wraps c as a Provider.
func NewSambaNova(c sambanova.Client) *SambaNova {
	return &SambaNova{client: c}
}

// Name implements Provider.
func (p *SambaNova) Name() string { return config.ProviderSambaNova }

// Complete implements Provider.
func (p *SambaNova) Complete(ctx context.Context, system, user, model string, s Sampling) (*Result, error) {
	temp, topP := s.Temperature, s.TopP
	resp, err := p.client.ChatCompletion(ctx, sambanova.ChatRequest{
		Model:       model,
		System:      system,
		User:        user,
		Temperature: &temp,
		TopP:        &topP,
	})
	if err != nil {
		return nil, resilience.ClassifyStatus(err, sambanova.StatusCode(err))
	}
	return &Result{
		Text:             resp.Content,
		Model:            resp.Model,
		PromptTokens:     resp.Usage.PromptTokens,
		CompletionTokens: resp.Usage.CompletionTokens,
	}, nil
}

// Anthropic adapts the Anthropic Messages client. Only temperature is
// forwarded; current Claude models reject temperature and top_p together.
type Anthropic struct {
	client    anthropic.Client
	model     string
	maxTokens int64
}

// NewAnthropic wraps c as a Provider using model unless a request overrides it.
func NewAnthropic(c anthropic.Client, model string, maxTokens int64) *Anthropic {
	if maxTokens <= 0 {
		maxTokens = 2048
	}
	return &Anthropic{client: c, model: model, maxTokens: maxTokens}
}

// Name implements Provider.
func (p *Anthropic) Name() string { return config.ProviderAnthropic }

// Complete implements Provider.
func (p *Anthropic) Complete(ctx context.Context, system, user, model string, s Sampling) (*Result, error) {
	if model == "" {
		model = p.model
	}
	temp := s.Temperature
	if temp > 1 {
		temp = 1
	}

	resp, err := p.client.CreateMessage(ctx, anthropic.MessageRequest{
		Model:       model,
		MaxTokens:   p.maxTokens,
		System:      system,
		Messages:    []anthropic.Message{{Role: "user", Content: user}},
		Temperature: &temp,
	})
	if err != nil {
		return nil, resilience.ClassifyStatus(err, anthropic.StatusCode(err))
	}
	return &Result{
		Text:             resp.Text(),
		Model:            resp.Model,
		PromptTokens:     resp.Usage.InputTokens,
		CompletionTokens: resp.Usage.OutputTokens,
	}, nil
}

// NewFromConfig builds a Client for the configured provider.
func NewFromConfig(cfg *config.Config, m *metrics.Metrics, extra ...Option) (*Client, error) {
	var p Provider
	switch cfg.LLM.Provider {
	case config.ProviderSambaNova:
		p = NewSambaNova(sambanova.NewClient(cfg.SambaNova.Key,
			sambanova.WithBaseURL(cfg.SambaNova.BaseURL),
			sambanova.WithModel(cfg.LLM.Model),
		))
	case config.ProviderAnthropic:
		p = NewAnthropic(anthropic.NewClient(cfg.Anthropic.Key), cfg.Anthropic.Model, cfg.Anthropic.MaxTokens)
	default:
		return nil, eris.Errorf("completion: unknown provider %q", cfg.LLM.Provider)
	}

	opts := []Option{
		WithPolicy(resilience.NewPolicy(cfg.LLM.MaxAttempts, p.Name(), "complete")),
		WithTimeout(cfg.LLM.Timeout()),
		WithMetrics(m),
	}
	return New(p, append(opts, extra...)...), nil
}
