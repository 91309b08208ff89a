// Package completion sends one prompt to a hosted chat model and returns the
// raw reply text.
package completion

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/social-studio/internal/cost"
	"github.com/sells-group/social-studio/internal/metrics"
	"github.com/sells-group/social-studio/internal/resilience"
)

var (
	// ErrInvalidRequest is returned before any network call when a request
	// is missing content or carries out-of-range sampling values.
	ErrInvalidRequest = errors.New("completion: invalid request")
	// ErrTransport matches every upstream failure.
	ErrTransport = errors.New("completion: transport failure")
)

// TransportError carries the provider failure behind ErrTransport.
type TransportError struct {
	Provider string
	Err      error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("completion: %s: %v", e.Provider, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// Is makes errors.Is(err, ErrTransport) true.
func (e *TransportError) Is(target error) bool { return target == ErrTransport }

// Persona describes who the model should act as.
type Persona struct {
	Role      string `yaml:"role"`
	Goal      string `yaml:"goal"`
	Backstory string `yaml:"backstory"`
}

// Sampling holds the sampling parameters of one call.
type Sampling struct {
	Temperature float64
	TopP        float64
}

// Request is one completion call. It is passed by value and never mutated.
type Request struct {
	Persona      Persona
	OutputFormat string
	Content      string
	Sampling     Sampling
	// Model overrides the provider's configured model when set.
	Model string
}

// SystemPrompt renders the persona header followed by the output format
// instructions.
func (r Request) SystemPrompt() string {
	var lines []string
	if r.Persona.Role != "" {
		lines = append(lines, "Role: "+r.Persona.Role)
	}
	if r.Persona.Goal != "" {
		lines = append(lines, "Goal: "+r.Persona.Goal)
	}
	if r.Persona.Backstory != "" {
		lines = append(lines, "Backstory: "+r.Persona.Backstory)
	}
	if r.OutputFormat != "" {
		lines = append(lines, "", r.OutputFormat)
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}

// Validate checks the request without touching the network.
func (r Request) Validate() error {
	switch {
	case r.SystemPrompt() == "":
		return eris.Wrap(ErrInvalidRequest, "system prompt is empty")
	case strings.TrimSpace(r.Content) == "":
		return eris.Wrap(ErrInvalidRequest, "user content is empty")
	case r.Sampling.Temperature < 0 || r.Sampling.Temperature > 2:
		return eris.Wrapf(ErrInvalidRequest, "temperature %.2f outside [0, 2]", r.Sampling.Temperature)
	case r.Sampling.TopP < 0 || r.Sampling.TopP > 1:
		return eris.Wrapf(ErrInvalidRequest, "top_p %.2f outside [0, 1]", r.Sampling.TopP)
	}
	return nil
}

// Result is a successful completion.
type Result struct {
	Text             string
	Model            string
	PromptTokens     int64
	CompletionTokens int64
}

// Completer is the operation callers depend on.
type Completer interface {
	Complete(ctx context.Context, req Request) (*Result, error)
}

// Provider performs one attempt against an upstream API. Retryable failures
// must be returned as *resilience.TransientError.
type Provider interface {
	Name() string
	Complete(ctx context.Context, system, user, model string, s Sampling) (*Result, error)
}

// Client validates requests and runs them against a Provider with a bounded
// retry.
type Client struct {
	provider Provider
	policy   resilience.Policy
	timeout  time.Duration
	metrics  *metrics.Metrics
	cost     *cost.Calculator
}

// Option configures a Client.
type Option func(*Client)

// WithPolicy overrides the retry policy.
func WithPolicy(p resilience.Policy) Option {
	return func(c *Client) { c.policy = p }
}

// WithTimeout bounds each attempt.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.timeout = d }
}

// WithMetrics records call outcomes and token usage.
func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Client) { c.metrics = m }
}

// WithCost prices successful calls into the cost metric.
func WithCost(calc *cost.Calculator) Option {
	return func(c *Client) { c.cost = calc }
}

// New creates a Client over p.
func New(p Provider, opts ...Option) *Client {
	c := &Client{
		provider: p,
		policy:   resilience.NewPolicy(0, p.Name(), "complete"),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Complete sends req and returns the reply text. Validation failures wrap
// ErrInvalidRequest; upstream failures are *TransportError.
func (c *Client) Complete(ctx context.Context, req Request) (*Result, error) {
	name := c.provider.Name()
	if err := req.Validate(); err != nil {
		c.metrics.RecordCompletion(name, "invalid", 0)
		return nil, err
	}

	start := time.Now()
	system := req.SystemPrompt()
	res, err := resilience.DoVal(ctx, c.policy, func(ctx context.Context) (*Result, error) {
		if c.timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, c.timeout)
			defer cancel()
		}
		r, err := c.provider.Complete(ctx, system, req.Content, req.Model, req.Sampling)
		if err != nil {
			return nil, err
		}
		if strings.TrimSpace(r.Text) == "" {
			return nil, resilience.NewTransientError(errors.New("empty completion"), 0)
		}
		return r, nil
	})
	elapsed := time.Since(start)

	if err != nil {
		c.metrics.RecordCompletion(name, "error", elapsed)
		zap.L().Warn("completion: call failed",
			zap.String("provider", name),
			zap.Duration("elapsed", elapsed),
			zap.Error(err),
		)
		return nil, &TransportError{Provider: name, Err: err}
	}

	c.metrics.RecordCompletion(name, "ok", elapsed)
	c.metrics.RecordTokens(name, res.Model, res.PromptTokens, res.CompletionTokens)
	c.metrics.RecordCost(name, res.Model, c.cost.Completion(res.Model, res.PromptTokens, res.CompletionTokens))
	zap.L().Debug("completion: call finished",
		zap.String("provider", name),
		zap.String("model", res.Model),
		zap.Int64("prompt_tokens", res.PromptTokens),
		zap.Int64("completion_tokens", res.CompletionTokens),
		zap.Duration("elapsed", elapsed),
	)
	return res, nil
}
