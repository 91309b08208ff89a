// Package imagegen submits text-to-image predictions and polls them until
// they finish, fail or run out of time.
package imagegen

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/social-studio/internal/config"
	"github.com/sells-group/social-studio/internal/cost"
	"github.com/sells-group/social-studio/internal/metrics"
	"github.com/sells-group/social-studio/internal/resilience"
	"github.com/sells-group/social-studio/pkg/replicate"
)

// Aspect ratios used by the image routes.
const (
	AspectSquare    = "1:1"
	AspectLandscape = "16:9"
)

var (
	// ErrEmptyPrompt is returned before submission for a blank prompt.
	ErrEmptyPrompt = errors.New("imagegen: prompt is empty")
	// ErrJobFailed is returned when the prediction failed, was canceled or
	// finished without an output URL.
	ErrJobFailed = errors.New("imagegen: job failed")
	// ErrTimeout is returned when the poll ceiling is reached first.
	ErrTimeout = errors.New("imagegen: job timed out")
)

var errPending = errors.New("prediction still running")

// State is the lifecycle position of a Job.
type State string

// Job states.
const (
	StateSubmitted State = "submitted"
	StatePolling   State = "polling"
	StateSucceeded State = "succeeded"
	StateFailed    State = "failed"
	StateTimedOut  State = "timed_out"
)

// Job is the outcome of one image request.
type Job struct {
	TraceID      string
	PredictionID string
	State        State
	Polls        int
	URL          string
}

// Requester is the operation callers depend on.
type Requester interface {
	RequestImage(ctx context.Context, prompt, aspectRatio string) (string, error)
}

// Generator runs image predictions against Replicate.
type Generator struct {
	client   replicate.Client
	model    string
	guidance float64
	interval time.Duration
	maxPolls int
	timeout  time.Duration
	metrics  *metrics.Metrics
	cost     *cost.Calculator
}

// Option configures a Generator.
type Option func(*Generator)

// WithModel sets the "owner/name" model to run.
func WithModel(model string) Option {
	return func(g *Generator) { g.model = model }
}

// WithGuidance sets the guidance scale sent with every prompt.
func WithGuidance(v float64) Option {
	return func(g *Generator) { g.guidance = v }
}

// WithPollInterval sets the fixed delay between status checks.
func WithPollInterval(d time.Duration) Option {
	return func(g *Generator) { g.interval = d }
}

// WithMaxPolls caps the number of status checks.
func WithMaxPolls(n int) Option {
	return func(g *Generator) { g.maxPolls = n }
}

// WithTimeout caps the wall time of one request, submission included.
func WithTimeout(d time.Duration) Option {
	return func(g *Generator) { g.timeout = d }
}

// WithMetrics records job outcomes.
func WithMetrics(m *metrics.Metrics) Option {
	return func(g *Generator) { g.metrics = m }
}

// WithCost prices succeeded jobs into the cost metric.
func WithCost(calc *cost.Calculator) Option {
	return func(g *Generator) { g.cost = calc }
}

// New creates a Generator over client.
func New(client replicate.Client, opts ...Option) *Generator {
	g := &Generator{
		client:   client,
		model:    "black-forest-labs/flux-schnell",
		guidance: 3.5,
		interval: 5 * time.Second,
		maxPolls: 60,
		timeout:  5 * time.Minute,
	}
	for _, o := range opts {
		o(g)
	}
	return g
}

// NewFromConfig builds a Generator with its own Replicate client. extra is
// applied after the configured options.
func NewFromConfig(cfg config.ReplicateConfig, m *metrics.Metrics, extra ...Option) *Generator {
	copts := []replicate.Option{replicate.WithRateLimit(cfg.RateLimit)}
	if cfg.BaseURL != "" {
		copts = append(copts, replicate.WithBaseURL(cfg.BaseURL))
	}
	opts := []Option{WithMetrics(m), WithGuidance(cfg.Guidance)}
	if cfg.Model != "" {
		opts = append(opts, WithModel(cfg.Model))
	}
	if cfg.PollIntervalSecs > 0 {
		opts = append(opts, WithPollInterval(cfg.PollInterval()))
	}
	if cfg.MaxPolls > 0 {
		opts = append(opts, WithMaxPolls(cfg.MaxPolls))
	}
	if cfg.TimeoutSecs > 0 {
		opts = append(opts, WithTimeout(cfg.Timeout()))
	}
	return New(replicate.NewClient(cfg.Token, copts...), append(opts, extra...)...)
}

// RequestImage generates one image and returns its URL.
func (g *Generator) RequestImage(ctx context.Context, prompt, aspectRatio string) (string, error) {
	job, err := g.Run(ctx, prompt, aspectRatio)
	if err != nil {
		return "", err
	}
	return job.URL, nil
}

// Run submits a prediction and polls it at a fixed interval until it
// reaches a terminal state, the poll budget is spent or the timeout fires.
// Terminal states are never retried.
func (g *Generator) Run(ctx context.Context, prompt, aspectRatio string) (*Job, error) {
	if strings.TrimSpace(prompt) == "" {
		return nil, ErrEmptyPrompt
	}

	job := &Job{TraceID: uuid.NewString(), State: StateSubmitted}
	log := zap.L().With(zap.String("trace_id", job.TraceID), zap.String("model", g.model))

	parent := ctx
	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}

	pred, err := g.client.CreatePrediction(ctx, g.model, replicate.Input{
		Prompt:      prompt,
		AspectRatio: aspectRatio,
		Guidance:    g.guidance,
	})
	if err != nil {
		g.metrics.RecordImageJob("error", 0)
		return job, eris.Wrap(err, "imagegen: submit")
	}
	job.PredictionID = pred.ID
	log = log.With(zap.String("prediction_id", pred.ID))
	log.Info("imagegen: prediction submitted", zap.String("aspect_ratio", aspectRatio))

	final := pred
	if !settled(pred) {
		job.State = StatePolling
		final, err = g.poll(ctx, pred.URLs.Get, job)
	}

	switch {
	case err == nil:
	case errors.Is(err, errPending), errors.Is(err, context.DeadlineExceeded) && parent.Err() == nil:
		job.State = StateTimedOut
		g.metrics.RecordImageJob("timeout", job.Polls)
		log.Warn("imagegen: poll ceiling reached", zap.Int("polls", job.Polls))
		return job, eris.Wrapf(ErrTimeout, "prediction %s after %d polls", pred.ID, job.Polls)
	default:
		g.metrics.RecordImageJob("error", job.Polls)
		log.Warn("imagegen: poll failed", zap.Int("polls", job.Polls), zap.Error(err))
		return job, eris.Wrap(err, "imagegen: poll")
	}

	urls := final.OutputURLs()
	if final.Status != replicate.StatusSucceeded || len(urls) == 0 {
		job.State = StateFailed
		g.metrics.RecordImageJob("failed", job.Polls)
		log.Warn("imagegen: prediction failed",
			zap.String("status", final.Status),
			zap.ByteString("upstream_error", final.Error),
			zap.Int("polls", job.Polls),
		)
		return job, eris.Wrapf(ErrJobFailed, "prediction %s ended %s", pred.ID, final.Status)
	}

	job.State = StateSucceeded
	job.URL = urls[0]
	g.metrics.RecordImageJob("succeeded", job.Polls)
	g.metrics.RecordCost("replicate", g.model, g.cost.Images(g.model, 1))
	log.Info("imagegen: prediction succeeded", zap.Int("polls", job.Polls))
	return job, nil
}

// poll checks the prediction until it settles. Failed status requests are
// retried within the same budget unless the status code says they cannot
// succeed.
func (g *Generator) poll(ctx context.Context, url string, job *Job) (*replicate.Prediction, error) {
	var final *replicate.Prediction
	err := retry.Do(
		func() error {
			job.Polls++
			p, err := g.client.GetPrediction(ctx, url)
			if err != nil {
				var apiErr *replicate.APIError
				if errors.As(err, &apiErr) && !resilience.IsTransientHTTPStatus(apiErr.StatusCode) {
					return retry.Unrecoverable(err)
				}
				return err
			}
			if settled(p) {
				final = p
				return nil
			}
			return errPending
		},
		retry.Context(ctx),
		retry.Attempts(uint(max(g.maxPolls, 1))),
		retry.Delay(g.interval),
		retry.DelayType(retry.FixedDelay),
		retry.LastErrorOnly(true),
	)
	return final, err
}

// settled reports whether p will not change again. A cancellation in
// progress counts as settled.
func settled(p *replicate.Prediction) bool {
	return p.Terminal() || p.Status == replicate.StatusCancelling
}
