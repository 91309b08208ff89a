package main

import (
	"github.com/sells-group/social-studio/internal/completion"
	"github.com/sells-group/social-studio/internal/config"
	"github.com/sells-group/social-studio/internal/cost"
	"github.com/sells-group/social-studio/internal/imagegen"
	"github.com/sells-group/social-studio/internal/metrics"
	"github.com/sells-group/social-studio/internal/workflow"
)

// newMetrics returns nil when metrics are disabled.
func newMetrics(c *config.Config) *metrics.Metrics {
	if !c.Metrics.Enabled {
		return nil
	}
	return metrics.New()
}

func newOrchestrator(c *config.Config, m *metrics.Metrics) (*workflow.Orchestrator, error) {
	client, err := completion.NewFromConfig(c, m,
		completion.WithCost(cost.NewCalculator(cost.DefaultRates())),
	)
	if err != nil {
		return nil, err
	}
	return workflow.New(client,
		workflow.WithSampling(completion.Sampling{
			Temperature: c.LLM.Temperature,
			TopP:        c.LLM.TopP,
		}),
		workflow.WithMetrics(m),
	)
}

func newGenerator(c *config.Config, m *metrics.Metrics) *imagegen.Generator {
	return imagegen.NewFromConfig(c.Replicate, m,
		imagegen.WithCost(cost.NewCalculator(cost.DefaultRates())),
	)
}
