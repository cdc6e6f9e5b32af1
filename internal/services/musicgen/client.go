package musicgen

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"strings"
	"time"

	"reelsmith/internal/services"
)

const (
	defaultHTTPTimeout = 120 * time.Second
	costResource       = "music"
	// ProviderLabel is the name price rules and ledger rows use for this
	// adapter.
	ProviderLabel = "music"
)

// Kind selects the audio category to compose.
type Kind string

const (
	KindMusic Kind = "music"
	KindSFX   Kind = "sfx"
	KindEvent Kind = "event"
)

// Config captures the runtime settings for the music/SFX provider.
type Config struct {
	APIKey         string
	BaseURL        string
	Model          string
	TimeoutSeconds int
	// UnitUSD is the pre-flighted price per 30-second block.
	UnitUSD float64
}

// Client composes background music, scene sound effects, and short timed
// event cues.
type Client struct {
	cfg        Config
	httpClient *http.Client
	retryer    services.Retryer
}

// Option customizes the client.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithRetryer overrides retry behavior (useful for tests).
func WithRetryer(retryer services.Retryer) Option {
	return func(c *Client) {
		c.retryer = retryer
	}
}

// NewClient constructs a music client using the supplied configuration.
func NewClient(cfg Config, opts ...Option) *Client {
	timeout := defaultHTTPTimeout
	if cfg.TimeoutSeconds > 0 {
		timeout = time.Duration(cfg.TimeoutSeconds) * time.Second
	}
	client := &Client{
		cfg: Config{
			APIKey:         strings.TrimSpace(cfg.APIKey),
			BaseURL:        strings.TrimSpace(cfg.BaseURL),
			Model:          strings.TrimSpace(cfg.Model),
			TimeoutSeconds: cfg.TimeoutSeconds,
			UnitUSD:        cfg.UnitUSD,
		},
		httpClient: &http.Client{Timeout: timeout},
	}
	for _, opt := range opts {
		opt(client)
	}
	return client
}

// Request describes one composition call.
type Request struct {
	Prompt  string
	Seconds float64
	Kind    Kind
}

// Track is the composed audio payload.
type Track struct {
	Audio    []byte
	Format   string
	Duration time.Duration
}

type composeRequest struct {
	Model   string  `json:"model"`
	Prompt  string  `json:"prompt"`
	Seconds float64 `json:"seconds"`
	Kind    string  `json:"kind"`
}

type composeResponse struct {
	AudioB64   string `json:"audio_b64"`
	Format     string `json:"format"`
	DurationMS int64  `json:"duration_ms"`
	Error      *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// Compose renders one audio track for the request.
func (c *Client) Compose(ctx context.Context, req Request) (Track, services.Cost, error) {
	var empty Track
	prompt := strings.TrimSpace(req.Prompt)
	if prompt == "" {
		return empty, services.Cost{}, services.Wrap(services.ErrValidation, "music", "compose", "prompt required", nil)
	}
	if req.Seconds <= 0 {
		return empty, services.Cost{}, services.Wrap(services.ErrValidation, "music", "compose", "duration must be positive", nil)
	}
	if c.cfg.BaseURL == "" {
		return empty, services.Cost{}, services.Wrap(services.ErrConfiguration, "music", "compose", "base url required", nil)
	}
	kind := req.Kind
	if kind == "" {
		kind = KindMusic
	}

	payload := composeRequest{
		Model:   c.cfg.Model,
		Prompt:  prompt,
		Seconds: req.Seconds,
		Kind:    string(kind),
	}

	var track Track
	err := c.retryer.Do(ctx, "music compose", func() error {
		var sendErr error
		track, sendErr = c.sendOnce(ctx, payload)
		return sendErr
	})
	if err != nil {
		return empty, services.Cost{}, err
	}

	units := math.Ceil(req.Seconds / 30)
	cost := services.Cost{
		Resource:  costResource,
		Provider:  ProviderLabel,
		Model:     c.cfg.Model,
		Units:     units,
		AmountUSD: units * c.cfg.UnitUSD,
		Metadata:  map[string]string{"kind": string(kind)},
	}
	return track, cost, nil
}

func (c *Client) sendOnce(ctx context.Context, payload composeRequest) (Track, error) {
	var empty Track
	endpoint, err := url.JoinPath(c.cfg.BaseURL, "v1", "music")
	if err != nil {
		return empty, fmt.Errorf("music request: build url: %w", err)
	}
	encoded, err := json.Marshal(payload)
	if err != nil {
		return empty, fmt.Errorf("music request: encode body: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(encoded))
	if err != nil {
		return empty, fmt.Errorf("music request: new request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return empty, fmt.Errorf("music request: http error: %w", err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return empty, fmt.Errorf("music request: read body: %w", err)
	}
	if resp.StatusCode >= http.StatusMultipleChoices {
		retryAfter, _ := services.ParseRetryAfter(resp.Header.Get("Retry-After"))
		return empty, &services.HTTPStatusError{
			StatusCode: resp.StatusCode,
			Body:       strings.TrimSpace(string(body)),
			RetryAfter: retryAfter,
		}
	}

	var decoded composeResponse
	if err := json.Unmarshal(body, &decoded); err != nil {
		return empty, fmt.Errorf("music request: decode response: %w", err)
	}
	if decoded.Error != nil {
		return empty, fmt.Errorf("music request: api error: %s", strings.TrimSpace(decoded.Error.Message))
	}
	audio, err := base64.StdEncoding.DecodeString(decoded.AudioB64)
	if err != nil {
		return empty, fmt.Errorf("music request: decode audio: %w", err)
	}
	if len(audio) == 0 {
		return empty, fmt.Errorf("music request: empty audio payload")
	}

	return Track{
		Audio:    audio,
		Format:   strings.TrimSpace(decoded.Format),
		Duration: time.Duration(decoded.DurationMS) * time.Millisecond,
	}, nil
}
