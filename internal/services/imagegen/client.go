package imagegen

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
	defaultHTTPTimeout = 120 * time.Second
	costResource       = "image"
	// ProviderLabel is the name price rules and ledger rows use for this
	// adapter.
	ProviderLabel = "image"
)

// Config captures the runtime settings for the image synthesis provider.
type Config struct {
	APIKey         string
	BaseURL        string
	Model          string
	TimeoutSeconds int
	// UnitUSD is the pre-flighted price per generated image.
	UnitUSD float64
}

// Client generates still images from text prompts, optionally biased toward
// a reference image for visual continuity.
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

// NewClient constructs an image client using the supplied configuration.
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

// Reference biases generation toward an existing image.
type Reference struct {
	Data []byte
	// Weight is the influence strength in (0, 1].
	Weight float64
}

// Request describes one image generation call.
type Request struct {
	Prompt      string
	AspectRatio string
	Reference   *Reference
}

// Image is the generated payload.
type Image struct {
	Data   []byte
	Width  int
	Height int
}

type generateRequest struct {
	Model        string  `json:"model"`
	Prompt       string  `json:"prompt"`
	AspectRatio  string  `json:"aspect_ratio"`
	ReferenceB64 string  `json:"reference_b64,omitempty"`
	RefWeight    float64 `json:"reference_weight,omitempty"`
}

type generateResponse struct {
	ImageB64 string `json:"image_b64"`
	Width    int    `json:"width"`
	Height   int    `json:"height"`
	Error    *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// Generate renders one image for the request prompt.
func (c *Client) Generate(ctx context.Context, req Request) (Image, services.Cost, error) {
	var empty Image
	prompt := strings.TrimSpace(req.Prompt)
	if prompt == "" {
		return empty, services.Cost{}, services.Wrap(services.ErrValidation, "images", "generate", "prompt required", nil)
	}
	if c.cfg.BaseURL == "" {
		return empty, services.Cost{}, services.Wrap(services.ErrConfiguration, "images", "generate", "base url required", nil)
	}

	payload := generateRequest{
		Model:       c.cfg.Model,
		Prompt:      prompt,
		AspectRatio: strings.TrimSpace(req.AspectRatio),
	}
	if req.Reference != nil && len(req.Reference.Data) > 0 {
		payload.ReferenceB64 = base64.StdEncoding.EncodeToString(req.Reference.Data)
		payload.RefWeight = req.Reference.Weight
	}

	var image Image
	err := c.retryer.Do(ctx, "image generate", func() error {
		var sendErr error
		image, sendErr = c.sendOnce(ctx, payload)
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
	return image, cost, nil
}

func (c *Client) sendOnce(ctx context.Context, payload generateRequest) (Image, error) {
	var empty Image
	endpoint, err := url.JoinPath(c.cfg.BaseURL, "v1", "images")
	if err != nil {
		return empty, fmt.Errorf("image request: build url: %w", err)
	}
	encoded, err := json.Marshal(payload)
	if err != nil {
		return empty, fmt.Errorf("image request: encode body: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(encoded))
	if err != nil {
		return empty, fmt.Errorf("image request: new request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return empty, fmt.Errorf("image request: http error: %w", err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return empty, fmt.Errorf("image request: read body: %w", err)
	}

	if resp.StatusCode == http.StatusUnprocessableEntity {
		if reason := policyReason(body); reason != "" {
			return empty, services.Wrap(services.ErrRestricted, "images", "generate", reason, nil)
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

	var decoded generateResponse
	if err := json.Unmarshal(body, &decoded); err != nil {
		return empty, fmt.Errorf("image request: decode response: %w", err)
	}
	if decoded.Error != nil {
		return empty, fmt.Errorf("image request: api error: %s", strings.TrimSpace(decoded.Error.Message))
	}
	data, err := base64.StdEncoding.DecodeString(decoded.ImageB64)
	if err != nil {
		return empty, fmt.Errorf("image request: decode image: %w", err)
	}
	if len(data) == 0 {
		return empty, fmt.Errorf("image request: empty image payload")
	}

	return Image{Data: data, Width: decoded.Width, Height: decoded.Height}, nil
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
