package vibe

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/abdulrahmanalageeli/match-sub002/internal/domain/model"
	"github.com/abdulrahmanalageeli/match-sub002/pkg/logger"
	"github.com/abdulrahmanalageeli/match-sub002/pkg/metrics"
)

type similarityRequest struct {
	A string `json:"a"`
	B string `json:"b"`
}

// similarityResponse carries a similarity in [0, 1].
type similarityResponse struct {
	Similarity float64 `json:"similarity"`
}

// HTTPOption configures an HTTPProvider.
type HTTPOption func(*HTTPProvider)

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) HTTPOption {
	return func(p *HTTPProvider) {
		if d > 0 {
			p.client.SetTimeout(d)
		}
	}
}

// WithRetries sets how many times a failed request is retried.
func WithRetries(n int) HTTPOption {
	return func(p *HTTPProvider) {
		if n >= 0 {
			p.client.SetRetryCount(n)
		}
	}
}

// WithAPIKey sends key as a bearer token.
func WithAPIKey(key string) HTTPOption {
	return func(p *HTTPProvider) {
		if key != "" {
			p.client.SetAuthToken(key)
		}
	}
}

// WithHTTPLogger sets the logger.
func WithHTTPLogger(l logger.Logger) HTTPOption {
	return func(p *HTTPProvider) {
		if l != nil {
			p.logger = l
		}
	}
}

// HTTPProvider asks a text-similarity service to compare two participants'
// free-text answers.
type HTTPProvider struct {
	client *resty.Client
	path   string
	logger logger.Logger
}

// NewHTTPProvider creates a provider posting to baseURL + "/similarity".
func NewHTTPProvider(baseURL string, opts ...HTTPOption) *HTTPProvider {
	client := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(5 * time.Second).
		SetRetryCount(2).
		SetRetryWaitTime(200 * time.Millisecond).
		SetRetryMaxWaitTime(2 * time.Second).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")

	p := &HTTPProvider{
		client: client,
		path:   "/similarity",
		logger: logger.Get().Named("vibe"),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Vibe implements scoring.VibeProvider. Pairs where either side wrote no
// free text score zero without a request.
func (p *HTTPProvider) Vibe(ctx context.Context, a, b model.Participant) (float64, error) {
	ta, tb := Profile(a), Profile(b)
	if ta == "" || tb == "" {
		metrics.RecordVibeLookup("http", "skipped")
		return 0, nil
	}

	var out similarityResponse
	resp, err := p.client.R().
		SetContext(ctx).
		SetBody(similarityRequest{A: ta, B: tb}).
		SetResult(&out).
		Post(p.path)
	if err != nil {
		metrics.RecordVibeLookup("http", "error")
		p.logger.Warn(ctx, "similarity request failed", logger.Error(err))
		return 0, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	if resp.IsError() {
		metrics.RecordVibeLookup("http", "error")
		return 0, fmt.Errorf("%w: status %d", ErrUnavailable, resp.StatusCode())
	}
	metrics.RecordVibeLookup("http", "success")
	return Clamp(out.Similarity * MaxScore), nil
}
