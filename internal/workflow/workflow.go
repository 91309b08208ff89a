// Package workflow turns user text into structured social content. A
// workflow runs one or more prompt stages in order and extracts the reply
// of the last stage into the workflow's schema.
package workflow

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/social-studio/internal/completion"
	"github.com/sells-group/social-studio/internal/extract"
	"github.com/sells-group/social-studio/internal/metrics"
)

var (
	// ErrUnknownKind is returned for a workflow kind with no definition.
	ErrUnknownKind = errors.New("workflow: unknown kind")
	// ErrEmptyInput is returned when the input text is blank.
	ErrEmptyInput = errors.New("workflow: input is empty")
)

// DefaultSampling is used when no sampling is configured.
var DefaultSampling = completion.Sampling{Temperature: 0.7, TopP: 0.9}

// Runner is the operation callers depend on.
type Runner interface {
	Run(ctx context.Context, kind Kind, input string) (extract.Record, error)
}

// Orchestrator runs workflows against a Completer.
type Orchestrator struct {
	completer completion.Completer
	extractor *extract.Extractor
	workflows map[Kind]*Workflow
	sampling  completion.Sampling
	metrics   *metrics.Metrics
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithSampling sets the sampling used by workflows without overrides.
func WithSampling(s completion.Sampling) Option {
	return func(o *Orchestrator) { o.sampling = s }
}

// WithMetrics records workflow outcomes and extraction events.
func WithMetrics(m *metrics.Metrics) Option {
	return func(o *Orchestrator) { o.metrics = m }
}

// WithDefinitions replaces the built-in workflow definitions.
func WithDefinitions(defs map[Kind]*Workflow) Option {
	return func(o *Orchestrator) { o.workflows = defs }
}

// New creates an Orchestrator over the built-in definitions.
func New(c completion.Completer, opts ...Option) (*Orchestrator, error) {
	o := &Orchestrator{
		completer: c,
		sampling:  DefaultSampling,
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.workflows == nil {
		defs, err := ParseDefinitions(builtinDefinitions)
		if err != nil {
			return nil, err
		}
		o.workflows = defs
	}
	var extractOpts []extract.Option
	if o.metrics != nil {
		extractOpts = append(extractOpts, extract.WithObserver(o.metrics.ObserveExtraction))
	}
	o.extractor = extract.New(extractOpts...)
	return o, nil
}

// Workflow returns the definition of kind.
func (o *Orchestrator) Workflow(kind Kind) (*Workflow, bool) {
	wf, ok := o.workflows[kind]
	return wf, ok
}

// Run executes the workflow of kind over input. It fails only for an
// unknown kind or blank input: when a stage cannot be completed the
// remaining stages are skipped and every field of the record is empty.
func (o *Orchestrator) Run(ctx context.Context, kind Kind, input string) (extract.Record, error) {
	wf, ok := o.workflows[kind]
	if !ok {
		return extract.Record{}, eris.Wrapf(ErrUnknownKind, "kind %q", kind)
	}
	if strings.TrimSpace(input) == "" {
		return extract.EmptyRecord(wf.Schema), ErrEmptyInput
	}

	start := time.Now()
	log := zap.L().With(zap.String("workflow", string(kind)))

	outputs, err := o.runSequentialStages(ctx, wf, input)
	if err != nil {
		o.metrics.RecordWorkflow(string(kind), "failed")
		log.Warn("workflow: stage failed",
			zap.Int("completed_stages", len(outputs)),
			zap.Int("stages", len(wf.Stages)),
			zap.Duration("elapsed", time.Since(start)),
			zap.Error(err),
		)
		return extract.EmptyRecord(wf.Schema), nil
	}

	rec := o.extractor.Extract(outputs[len(outputs)-1], wf.Schema)
	outcome := "ok"
	if rec.IsEmpty() {
		outcome = "empty"
	}
	o.metrics.RecordWorkflow(string(kind), outcome)
	log.Info("workflow: run finished",
		zap.String("outcome", outcome),
		zap.Int("stages", len(wf.Stages)),
		zap.Duration("elapsed", time.Since(start)),
	)
	return rec, nil
}

// runSequentialStages completes each stage in order, handing every earlier
// reply to the next stage's task. It stops at the first failure and
// returns the replies gathered so far.
func (o *Orchestrator) runSequentialStages(ctx context.Context, wf *Workflow, input string) ([]string, error) {
	sampling := wf.sampling(o.sampling)
	outputs := make([]string, 0, len(wf.Stages))

	for i, stage := range wf.Stages {
		if err := ctx.Err(); err != nil {
			return outputs, eris.Wrapf(err, "workflow: %s stage %d", wf.Kind, i+1)
		}

		task, err := stage.render(input, outputs)
		if err != nil {
			return outputs, err
		}

		res, err := o.completer.Complete(ctx, completion.Request{
			Persona:      stage.Persona,
			OutputFormat: stage.OutputFormat,
			Content:      task,
			Sampling:     sampling,
			Model:        wf.Model,
		})
		if err != nil {
			return outputs, eris.Wrapf(err, "workflow: %s stage %d", wf.Kind, i+1)
		}

		zap.L().Debug("workflow: stage finished",
			zap.String("workflow", string(wf.Kind)),
			zap.Int("stage", i+1),
			zap.String("role", stage.Persona.Role),
			zap.Int("reply_bytes", len(res.Text)),
		)
		outputs = append(outputs, res.Text)
	}
	return outputs, nil
}
