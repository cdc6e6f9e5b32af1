package speech

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
	costResource       = "narration"
	// ProviderLabel is the name price rules and ledger rows use for this
	// adapter.
	ProviderLabel = "speech"
)

// Config captures the runtime settings for the narration synthesis provider.
type Config struct {
	APIKey         string
	BaseURL        string
	Model          string
	TimeoutSeconds int
	// UnitUSD is the pre-flighted price per 1,000 synthesized characters.
	UnitUSD float64
}

// Client synthesizes narration audio with word-level timing.
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

// NewClient constructs a speech client using the supplied configuration.
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

// Request describes one synthesis call.
type Request struct {
	Text  string
	Voice string
	// Rate is the speed multiplier; 1.0 is the voice's natural pace.
	Rate float64
}

// WordSpan is one word's position in the rendered audio.
type WordSpan struct {
	Word    string `json:"word"`
	StartMS int64  `json:"start_ms"`
	EndMS   int64  `json:"end_ms"`
}

// Clip is the synthesized narration payload.
type Clip struct {
	Audio []byte
	// Format is the container/codec label reported by the provider (e.g. "mp3").
	Format string
	// NominalDuration is the provider's own duration estimate. Callers that
	// care about the real length must probe the rendered audio; inline pacing
	// annotations make this estimate unreliable.
	NominalDuration time.Duration
	Alignment       []WordSpan
}

type synthesizeRequest struct {
	Model string  `json:"model"`
	Voice string  `json:"voice"`
	Text  string  `json:"text"`
	Speed float64 `json:"speed"`
}

type synthesizeResponse struct {
	AudioB64   string     `json:"audio_b64"`
	Format     string     `json:"format"`
	DurationMS int64      `json:"duration_ms"`
	Words      []WordSpan `json:"words"`
	Error      *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// Synthesize renders narration audio for the request text at the given rate.
func (c *Client) Synthesize(ctx context.Context, req Request) (Clip, services.Cost, error) {
	var empty Clip
	text := strings.TrimSpace(req.Text)
	if text == "" {
		return empty, services.Cost{}, services.Wrap(services.ErrValidation, "speech", "synthesize", "text required", nil)
	}
	if c.cfg.BaseURL == "" {
		return empty, services.Cost{}, services.Wrap(services.ErrConfiguration, "speech", "synthesize", "base url required", nil)
	}
	rate := req.Rate
	if rate <= 0 {
		rate = 1.0
	}

	payload := synthesizeRequest{
		Model: c.cfg.Model,
		Voice: strings.TrimSpace(req.Voice),
		Text:  text,
		Speed: rate,
	}

	var clip Clip
	err := c.retryer.Do(ctx, "speech synthesize", func() error {
		var sendErr error
		clip, sendErr = c.sendOnce(ctx, payload)
		return sendErr
	})
	if err != nil {
		return empty, services.Cost{}, err
	}

	units := math.Ceil(float64(len(text)) / 1000)
	cost := services.Cost{
		Resource:  costResource,
		Provider:  ProviderLabel,
		Model:     c.cfg.Model,
		Units:     units,
		AmountUSD: units * c.cfg.UnitUSD,
		Metadata:  map[string]string{"voice": payload.Voice},
	}
	return clip, cost, nil
}

func (c *Client) sendOnce(ctx context.Context, payload synthesizeRequest) (Clip, error) {
	var empty Clip
	endpoint, err := url.JoinPath(c.cfg.BaseURL, "v1", "speech")
	if err != nil {
		return empty, fmt.Errorf("speech request: build url: %w", err)
	}
	encoded, err := json.Marshal(payload)
	if err != nil {
		return empty, fmt.Errorf("speech request: encode body: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(encoded))
	if err != nil {
		return empty, fmt.Errorf("speech request: new request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return empty, fmt.Errorf("speech request: http error: %w", err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return empty, fmt.Errorf("speech request: read body: %w", err)
	}

	if resp.StatusCode == http.StatusUnprocessableEntity {
		if reason := policyReason(body); reason != "" {
			return empty, services.Wrap(services.ErrRestricted, "speech", "synthesize", reason, nil)
		}
	}
	if resp.StatusCode >= http.StatusMultipleChoices {
		retryAfter, _ := services.ParseRetryAfter(resp.Header.Get("Retry-After"))
		return empty, &services.HTTPStatusError{
			StatusCode: resp.StatusCode,
			Body:       strings.TrimSpace(string(body)),
			RetryAfter: retryAfter,
		}
	}

	var decoded synthesizeResponse
	if err := json.Unmarshal(body, &decoded); err != nil {
		return empty, fmt.Errorf("speech request: decode response: %w", err)
	}
	if decoded.Error != nil {
		return empty, fmt.Errorf("speech request: api error: %s", strings.TrimSpace(decoded.Error.Message))
	}
	audio, err := base64.StdEncoding.DecodeString(decoded.AudioB64)
	if err != nil {
		return empty, fmt.Errorf("speech request: decode audio: %w", err)
	}
	if len(audio) == 0 {
		return empty, fmt.Errorf("speech request: empty audio payload")
	}

	return Clip{
		Audio:           audio,
		Format:          strings.TrimSpace(decoded.Format),
		NominalDuration: time.Duration(decoded.DurationMS) * time.Millisecond,
		Alignment:       decoded.Words,
	}, nil
}

func policyReason(body []byte) string {
	var decoded struct {
		Error *struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(body, &decoded); err != nil || decoded.Error == nil {
		return ""
	}
	if decoded.Error.Code != "content_policy" {
		return ""
	}
	if msg := strings.TrimSpace(decoded.Error.Message); msg != "" {
		return msg
	}
	return "prompt rejected by content policy"
}
