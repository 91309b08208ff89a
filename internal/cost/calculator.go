package cost

// Rates holds per-model pricing configuration.
type Rates struct {
	// Models is keyed by the model name reported by the provider.
	Models map[string]ModelRate `yaml:"models" mapstructure:"models"`
	// Images is keyed by "owner/name" prediction model.
	Images map[string]ImageRate `yaml:"images" mapstructure:"images"`
}

// ModelRate holds per-model token pricing (per million tokens).
type ModelRate struct {
	Input  float64 `yaml:"input" mapstructure:"input"`
	Output float64 `yaml:"output" mapstructure:"output"`
}

// ImageRate holds flat per-image pricing.
type ImageRate struct {
	PerImage float64 `yaml:"per_image" mapstructure:"per_image"`
}

// Calculator computes costs for API usage.
type Calculator struct {
	rates Rates
}

// NewCalculator creates a Calculator with the given rates.
func NewCalculator(rates Rates) *Calculator {
	return &Calculator{rates: rates}
}

// Completion computes the cost of one completion call. Unknown models cost 0.
func (c *Calculator) Completion(model string, input, output int64) float64 {
	if c == nil {
		return 0
	}
	rate, ok := c.rates.Models[model]
	if !ok {
		return 0
	}
	return (float64(input)/1e6)*rate.Input + (float64(output)/1e6)*rate.Output
}

// Images computes the cost of n generated images.
func (c *Calculator) Images(model string, n int) float64 {
	if c == nil || n <= 0 {
		return 0
	}
	return float64(n) * c.rates.Images[model].PerImage
}

// DefaultRates returns the default pricing rates.
func DefaultRates() Rates {
	return Rates{
		Models: map[string]ModelRate{
			"Meta-Llama-3.1-8B-Instruct":  {Input: 0.10, Output: 0.20},
			"Meta-Llama-3.3-70B-Instruct": {Input: 0.60, Output: 1.20},
			"claude-haiku-4-5-20251001":   {Input: 1.00, Output: 5.00},
			"claude-sonnet-4-5-20250929":  {Input: 3.00, Output: 15.00},
		},
		Images: map[string]ImageRate{
			"black-forest-labs/flux-schnell": {PerImage: 0.003},
			"black-forest-labs/flux-dev":     {PerImage: 0.025},
		},
	}
}
