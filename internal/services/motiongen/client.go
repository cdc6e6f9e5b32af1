package motiongen

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"reelsmith/internal/services"
)

const (
	defaultHTTPTimeout = 300 * time.Second
	costResource       = "motion"
	// ProviderLabel is the name price rules and ledger rows use for this
	// adapter.
	ProviderLabel = "motion"
)

// Config captures the runtime settings for the image-to-video provider.
type Config struct {
	APIKey         string
	BaseURL        string
	Model          string
	TimeoutSeconds int
	// UnitUSD is the pre-flighted price per generated clip.
	UnitUSD float64
}

// Client animates still frames into short motion clips. Providers render at
// a fixed native length; the render engine time-stretches clips to the
// narration duration afterwards.
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

// NewClient constructs a motion client using the supplied configuration.
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

// Request describes one motion generation call. EndFrame, when set, asks the
// provider to interpolate between the two keyframes.
type Request struct {
	StartFrame []byte
	EndFrame   []byte
	Prompt     string
}

// Clip is the generated motion payload at the provider's native length.
type Clip struct {
	Data           []byte
	NativeDuration time.Duration
	Width          int
	Height         int
}

type generateRequest struct {
	Model         string `json:"model"`
	Prompt        string `json:"prompt,omitempty"`
	StartFrameB64 string `json:"start_frame_b64"`
	EndFrameB64   string `json:"end_frame_b64,omitempty"`
}

type generateResponse struct {
	VideoB64   string `json:"video_b64"`
	DurationMS int64  `json:"duration_ms"`
	Width      int    `json:"width"`
	Height     int    `json:"height"`
	Error      *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// Generate animates the start frame (optionally toward the end frame).
func (c *Client) Generate(ctx context.Context, req Request) (Clip, services.Cost, error) {
	var empty Clip
	if len(req.StartFrame) == 0 {
		return empty, services.Cost{}, services.Wrap(services.ErrValidation, "motion", "generate", "start frame required", nil)
	}
	if c.cfg.BaseURL == "" {
		return empty, services.Cost{}, services.Wrap(services.ErrConfiguration, "motion", "generate", "base url required", nil)
	}

	payload := generateRequest{
		Model:         c.cfg.Model,
		Prompt:        strings.TrimSpace(req.Prompt),
		StartFrameB64: base64.StdEncoding.EncodeToString(req.StartFrame),
	}
	if len(req.EndFrame) > 0 {
		payload.EndFrameB64 = base64.StdEncoding.EncodeToString(req.EndFrame)
	}

	var clip Clip
	err := c.retryer.Do(ctx, "motion generate", func() error {
		var sendErr error
		clip, sendErr = c.sendOnce(ctx, payload)
		return sendErr
	})
	if err != nil {
		return empty, services.Cost{}, err
	}

	cost := services.Cost{
		Resource:  costResource,
		Provider:  ProviderLabel,
		Model:     c.cfg.Model,
		Units:     1,
		AmountUSD: c.cfg.UnitUSD,
	}
	return clip, cost, nil
}

func (c *Client) sendOnce(ctx context.Context, payload generateRequest) (Clip, error) {
	var empty Clip
	endpoint, err := url.JoinPath(c.cfg.BaseURL, "v1", "motion")
	if err != nil {
		return empty, fmt.Errorf("motion request: build url: %w", err)
	}
	encoded, err := json.Marshal(payload)
	if err != nil {
		return empty, fmt.Errorf("motion request: encode body: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(encoded))
	if err != nil {
		return empty, fmt.Errorf("motion request: new request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return empty, fmt.Errorf("motion request: http error: %w", err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return empty, fmt.Errorf("motion request: read body: %w", err)
	}
	if resp.StatusCode >= http.StatusMultipleChoices {
		retryAfter, _ := services.ParseRetryAfter(resp.Header.Get("Retry-After"))
		return empty, &services.HTTPStatusError{
			StatusCode: resp.StatusCode,
			Body:       strings.TrimSpace(string(body)),
			RetryAfter: retryAfter,
		}
	}

	var decoded generateResponse
	if err := json.Unmarshal(body, &decoded); err != nil {
		return empty, fmt.Errorf("motion request: decode response: %w", err)
	}
	if decoded.Error != nil {
		return empty, fmt.Errorf("motion request: api error: %s", strings.TrimSpace(decoded.Error.Message))
	}
	data, err := base64.StdEncoding.DecodeString(decoded.VideoB64)
	if err != nil {
		return empty, fmt.Errorf("motion request: decode video: %w", err)
	}
	if len(data) == 0 {
		return empty, fmt.Errorf("motion request: empty video payload")
	}

	return Clip{
		Data:           data,
		NativeDuration: time.Duration(decoded.DurationMS) * time.Millisecond,
		Width:          decoded.Width,
		Height:         decoded.Height,
	}, nil
}
