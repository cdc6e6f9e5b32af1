package scriptgen

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"reelsmith/internal/services"
)

const (
	jsonResponseType   = "json_object"
	defaultHTTPTimeout = 120 * time.Second
	costResource       = "script"
	// ProviderLabel is the name price rules and ledger rows use for this
	// adapter.
	ProviderLabel = "openrouter"
)

// Config captures the runtime settings required to talk to the script model.
type Config struct {
	APIKey         string
	BaseURL        string
	Model          string
	TimeoutSeconds int
	// UnitUSD is the pre-flighted price of one completion call.
	UnitUSD float64
}

// Client wraps an OpenRouter-compatible chat completion API for the four
// text stages: outline, writer draft, scene breakdown, and quality review.
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

// NewClient constructs a script client using the supplied configuration.
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
	if client.cfg.BaseURL == "" {
		client.cfg.BaseURL = "https://openrouter.ai/api/v1/chat/completions"
	}
	return client
}

// ScenePlan is one scene produced by the breakdown operation.
type ScenePlan struct {
	Narration     string `json:"narration"`
	VisualDesc    string `json:"visual_description"`
	EndVisualDesc string `json:"end_visual_description,omitempty"`
	AudioDesc     string `json:"audio_description,omitempty"`
	Environment   string `json:"environment,omitempty"`
	CharacterRef  string `json:"character_ref,omitempty"`
}

// MusicCue is one timed audio direction from the quality review edit plan.
type MusicCue struct {
	OffsetMS    int64  `json:"offset_ms"`
	Kind        string `json:"kind"` // stinger | riser | drop | silence
	Description string `json:"description"`
}

// EditPlan captures the quality review stage's output: pacing notes plus the
// timed music cues the music-events stage will realize.
type EditPlan struct {
	Notes     string     `json:"notes"`
	MusicMode string     `json:"music_mode,omitempty"` // single | segmented
	Cues      []MusicCue `json:"cues"`
}

// Outline produces a beat outline for the given production brief.
func (c *Client) Outline(ctx context.Context, title, brief string, targetSeconds int) (string, services.Cost, error) {
	prompt := fmt.Sprintf("Title: %s\nTarget length: %d seconds\nBrief: %s", title, targetSeconds, brief)
	var out struct {
		Outline string `json:"outline"`
	}
	cost, err := c.completeInto(ctx, "script outline", outlineSystemPrompt, prompt, &out)
	if err != nil {
		return "", services.Cost{}, err
	}
	if strings.TrimSpace(out.Outline) == "" {
		return "", services.Cost{}, services.Wrap(services.ErrExternalTool, "outline", "complete", "model returned empty outline", nil)
	}
	return out.Outline, cost, nil
}

// Draft expands an approved outline into full narrative prose.
func (c *Client) Draft(ctx context.Context, outline string, wordBudget int) (string, services.Cost, error) {
	prompt := fmt.Sprintf("Word budget: %d\nOutline:\n%s", wordBudget, outline)
	var out struct {
		Draft string `json:"draft"`
	}
	cost, err := c.completeInto(ctx, "script draft", draftSystemPrompt, prompt, &out)
	if err != nil {
		return "", services.Cost{}, err
	}
	if strings.TrimSpace(out.Draft) == "" {
		return "", services.Cost{}, services.Wrap(services.ErrExternalTool, "writer", "complete", "model returned empty draft", nil)
	}
	return out.Draft, cost, nil
}

// Scenes breaks an approved draft into ordered scene plans.
func (c *Client) Scenes(ctx context.Context, draft string, targetSeconds int) ([]ScenePlan, services.Cost, error) {
	prompt := fmt.Sprintf("Target length: %d seconds\nDraft:\n%s", targetSeconds, draft)
	var out struct {
		Scenes []ScenePlan `json:"scenes"`
	}
	cost, err := c.completeInto(ctx, "script scenes", scenesSystemPrompt, prompt, &out)
	if err != nil {
		return nil, services.Cost{}, err
	}
	if len(out.Scenes) == 0 {
		return nil, services.Cost{}, services.Wrap(services.ErrExternalTool, "script", "complete", "model returned no scenes", nil)
	}
	for i, scene := range out.Scenes {
		if strings.TrimSpace(scene.Narration) == "" || strings.TrimSpace(scene.VisualDesc) == "" {
			return nil, services.Cost{}, services.Wrap(services.ErrValidation, "script", "complete",
				fmt.Sprintf("scene %d missing narration or visual description", i), nil)
		}
	}
	return out.Scenes, cost, nil
}

// Review produces the edit plan for an output's scene list.
func (c *Client) Review(ctx context.Context, scenes []ScenePlan, targetSeconds int) (EditPlan, services.Cost, error) {
	encoded, err := json.Marshal(scenes)
	if err != nil {
		return EditPlan{}, services.Cost{}, fmt.Errorf("encode scenes: %w", err)
	}
	prompt := fmt.Sprintf("Target length: %d seconds\nScenes:\n%s", targetSeconds, encoded)
	var plan EditPlan
	cost, err := c.completeInto(ctx, "script review", reviewSystemPrompt, prompt, &plan)
	if err != nil {
		return EditPlan{}, services.Cost{}, err
	}
	for i, cue := range plan.Cues {
		switch cue.Kind {
		case "stinger", "riser", "drop", "silence":
		default:
			return EditPlan{}, services.Cost{}, services.Wrap(services.ErrValidation, "quality_review", "complete",
				fmt.Sprintf("cue %d has unknown kind %q", i, cue.Kind), nil)
		}
	}
	return plan, cost, nil
}

// HealthCheck sends a minimal completion to verify the API key and model are
// usable. It never records cost.
func (c *Client) HealthCheck(ctx context.Context) error {
	if strings.TrimSpace(c.cfg.APIKey) == "" {
		return errors.New("script health: api key required")
	}
	payload := chatCompletionRequest{
		Model: c.cfg.Model,
		Messages: []chatMessage{
			{Role: "system", Content: "You must respond with JSON only."},
			{Role: "user", Content: "Respond with {\"ok\":true}"},
		},
		Temperature:    0,
		ResponseFormat: map[string]string{"type": jsonResponseType},
	}
	var content string
	err := c.retryer.Do(ctx, "script health", func() error {
		var sendErr error
		content, sendErr = c.sendOnce(ctx, payload, "script health")
		return sendErr
	})
	if err != nil {
		return err
	}
	var parsed struct {
		OK bool `json:"ok"`
	}
	if err := DecodeModelJSON(content, &parsed); err != nil {
		return fmt.Errorf("script health: parse payload: %w", err)
	}
	if !parsed.OK {
		return errors.New("script health: unexpected response")
	}
	return nil
}

func (c *Client) completeInto(ctx context.Context, op, systemPrompt, userPrompt string, target any) (services.Cost, error) {
	if strings.TrimSpace(c.cfg.APIKey) == "" {
		return services.Cost{}, services.Wrap(services.ErrConfiguration, "script", op, "api key required", nil)
	}

	payload := chatCompletionRequest{
		Model: c.cfg.Model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: userPrompt},
		},
		Temperature:    0.7,
		ResponseFormat: map[string]string{"type": jsonResponseType},
	}

	var content string
	err := c.retryer.Do(ctx, op, func() error {
		var sendErr error
		content, sendErr = c.sendOnce(ctx, payload, op)
		return sendErr
	})
	if err != nil {
		return services.Cost{}, err
	}

	if err := DecodeModelJSON(content, target); err != nil {
		return services.Cost{}, services.Wrap(services.ErrExternalTool, "script", op, "parse payload", err)
	}

	return services.Cost{
		Resource:  costResource,
		Provider:  ProviderLabel,
		Model:     c.cfg.Model,
		Units:     1,
		AmountUSD: c.cfg.UnitUSD,
		Metadata:  map[string]string{"operation": op},
	}, nil
}

type chatCompletionRequest struct {
	Model          string            `json:"model"`
	Messages       []chatMessage     `json:"messages"`
	Temperature    float64           `json:"temperature"`
	ResponseFormat map[string]string `json:"response_format"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatCompletionResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
			Refusal string `json:"refusal"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

func (c *Client) sendOnce(ctx context.Context, payload chatCompletionRequest, op string) (string, error) {
	encoded, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("%s: encode body: %w", op, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL, bytes.NewReader(encoded))
	if err != nil {
		return "", fmt.Errorf("%s: new request: %w", op, err)
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("%s: http error: %w", op, err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("%s: read body: %w", op, err)
	}
	if resp.StatusCode >= http.StatusMultipleChoices {
		retryAfter, _ := services.ParseRetryAfter(resp.Header.Get("Retry-After"))
		return "", &services.HTTPStatusError{
			StatusCode: resp.StatusCode,
			Body:       strings.TrimSpace(string(body)),
			RetryAfter: retryAfter,
		}
	}

	var completion chatCompletionResponse
	if err := json.Unmarshal(body, &completion); err != nil {
		return "", fmt.Errorf("%s: decode response: %w", op, err)
	}
	if completion.Error != nil {
		return "", fmt.Errorf("%s: api error: %s", op, strings.TrimSpace(completion.Error.Message))
	}
	for _, choice := range completion.Choices {
		if refusal := strings.TrimSpace(choice.Message.Refusal); refusal != "" {
			return "", services.Wrap(services.ErrRestricted, "script", op, refusal, nil)
		}
		if content := strings.TrimSpace(choice.Message.Content); content != "" {
			return content, nil
		}
	}
	return "", fmt.Errorf("%s: empty choices", op)
}

// DecodeModelJSON decodes JSON from a model response, tolerating markdown
// code fences around the payload.
func DecodeModelJSON(content string, target any) error {
	trimmed := strings.TrimSpace(content)
	if trimmed == "" {
		return errors.New("empty payload")
	}
	if err := json.Unmarshal([]byte(trimmed), target); err == nil {
		return nil
	}

	sanitized := trimmed
	if strings.HasPrefix(sanitized, "```") {
		sanitized = strings.TrimPrefix(sanitized, "```json")
		sanitized = strings.TrimPrefix(sanitized, "```")
		if idx := strings.LastIndex(sanitized, "```"); idx >= 0 {
			sanitized = sanitized[:idx]
		}
		sanitized = strings.TrimSpace(sanitized)
	} else {
		start := strings.IndexAny(sanitized, "{[")
		if start > 0 {
			sanitized = sanitized[start:]
		}
	}
	if err := json.Unmarshal([]byte(sanitized), target); err != nil {
		snippet := sanitized
		if len(snippet) > 120 {
			snippet = snippet[:120] + "..."
		}
		return fmt.Errorf("%w (payload snippet: %s)", err, snippet)
	}
	return nil
}
