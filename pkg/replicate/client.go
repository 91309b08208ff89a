// Package replicate is a minimal client for Replicate model predictions.
package replicate

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"
)

const defaultBaseURL = "https://api.replicate.com/v1"

// Prediction statuses reported by Replicate.
const (
	StatusStarting   = "starting"
	StatusProcessing = "processing"
	StatusSucceeded  = "succeeded"
	StatusFailed     = "failed"
	StatusCanceled   = "canceled"
	StatusCancelling = "cancelling"
)

// Client creates and inspects predictions.
type Client interface {
	CreatePrediction(ctx context.Context, model string, input Input) (*Prediction, error)
	GetPrediction(ctx context.Context, url string) (*Prediction, error)
}

// Input is the model input for an image prediction.
type Input struct {
	Prompt      string  `json:"prompt"`
	AspectRatio string  `json:"aspect_ratio,omitempty"`
	Guidance    float64 `json:"guidance,omitempty"`
}

// Prediction is the state of one model run.
type Prediction struct {
	ID     string          `json:"id"`
	Status string          `json:"status"`
	Output json.RawMessage `json:"output"`
	Error  json.RawMessage `json:"error"`
	URLs   URLs            `json:"urls"`
}

// URLs holds the follow-up endpoints of a prediction.
type URLs struct {
	Get    string `json:"get"`
	Cancel string `json:"cancel"`
}

// Terminal reports whether the prediction will not change again.
func (p *Prediction) Terminal() bool {
	switch p.Status {
	case StatusSucceeded, StatusFailed, StatusCanceled:
		return true
	}
	return false
}

// OutputURLs decodes the output as either a list of URLs or a single URL.
func (p *Prediction) OutputURLs() []string {
	if len(p.Output) == 0 {
		return nil
	}
	var list []string
	if err := json.Unmarshal(p.Output, &list); err == nil {
		return list
	}
	var one string
	if err := json.Unmarshal(p.Output, &one); err == nil && one != "" {
		return []string{one}
	}
	return nil
}

// APIError is returned when Replicate responds with a non-2xx status.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("replicate: HTTP %d: %s", e.StatusCode, e.Body)
}

// Option configures the httpClient.
type Option func(*httpClient)

// WithBaseURL overrides the default base URL.
func WithBaseURL(url string) Option {
	return func(c *httpClient) {
		c.baseURL = url
	}
}

// WithHTTPClient sets a custom *http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

// WithRateLimit overrides the default request rate (10 req/s). A
// non-positive rps disables throttling.
func WithRateLimit(rps float64) Option {
	return func(c *httpClient) {
		if rps > 0 {
			c.limiter = rate.NewLimiter(rate.Limit(rps), max(int(rps), 1))
		} else {
			c.limiter = nil
		}
	}
}

type httpClient struct {
	token   string
	baseURL string
	http    *http.Client
	limiter *rate.Limiter
}

// NewClient creates a new Replicate client.
func NewClient(token string, opts ...Option) Client {
	c := &httpClient{
		token:   token,
		baseURL: defaultBaseURL,
		http: &http.Client{
			Timeout: 30 * time.Second,
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		limiter: rate.NewLimiter(10, 10),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *httpClient) CreatePrediction(ctx context.Context, model string, input Input) (*Prediction, error) {
	body, err := json.Marshal(map[string]any{"input": input})
	if err != nil {
		return nil, eris.Wrap(err, "replicate: marshal prediction")
	}

	url := fmt.Sprintf("%s/models/%s/predictions", c.baseURL, model)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, eris.Wrap(err, "replicate: create request")
	}
	req.Header.Set("Content-Type", "application/json")

	var p Prediction
	if err := c.do(req, &p); err != nil {
		return nil, eris.Wrap(err, "replicate: create prediction")
	}
	if p.ID == "" || p.URLs.Get == "" {
		return nil, eris.New("replicate: create prediction: response missing id or polling url")
	}
	return &p, nil
}

func (c *httpClient) GetPrediction(ctx context.Context, url string) (*Prediction, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, eris.Wrap(err, "replicate: create request")
	}

	var p Prediction
	if err := c.do(req, &p); err != nil {
		return nil, eris.Wrap(err, "replicate: get prediction")
	}
	return &p, nil
}

func (c *httpClient) do(req *http.Request, out any) error {
	if c.limiter != nil {
		if err := c.limiter.Wait(req.Context()); err != nil {
			return eris.Wrap(err, "rate limit")
		}
	}
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.http.Do(req)
	if err != nil {
		return eris.Wrap(err, "execute request")
	}
	defer resp.Body.Close() //nolint:errcheck

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return eris.Wrap(err, "read response body")
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &APIError{StatusCode: resp.StatusCode, Body: string(data)}
	}

	if err := json.Unmarshal(data, out); err != nil {
		return eris.Wrap(err, "decode response")
	}
	return nil
}
