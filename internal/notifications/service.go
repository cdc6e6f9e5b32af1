package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"reelsmith/internal/config"
)

const userAgent = "Reelsmith/0.1.0"

// Service defines the notification surface exposed to pipeline components.
type Service interface {
	NotifyReviewReady(ctx context.Context, title, stageLabel string) error
	NotifyStageRejected(ctx context.Context, title, stageLabel, feedback string) error
	NotifyRenderCompleted(ctx context.Context, title, path string) error
	NotifyOutputCompleted(ctx context.Context, title string) error
	NotifyError(ctx context.Context, err error, contextLabel string) error
	TestNotification(ctx context.Context) error
}

// NewService builds a notification service backed by ntfy when configured.
// When no ntfy topic is configured, a noop implementation is returned.
func NewService(cfg *config.Config) Service {
	topic := strings.TrimSpace(cfg.Notifications.NtfyTopic)
	if topic == "" {
		return noopService{}
	}

	timeout := time.Duration(cfg.Notifications.RequestTimeout) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &ntfyService{
		endpoint: topic,
		client:   &http.Client{Timeout: timeout},
		review:   cfg.Notifications.Review,
		render:   cfg.Notifications.Render,
		errors:   cfg.Notifications.Errors,
	}
}

type payload struct {
	title    string
	message  string
	tags     []string
	priority string
}

type ntfyService struct {
	endpoint string
	client   *http.Client
	review   bool
	render   bool
	errors   bool
}

func (n *ntfyService) NotifyReviewReady(ctx context.Context, title, stageLabel string) error {
	if !n.review {
		return nil
	}
	data := payload{
		title:   "Reelsmith - Review Ready",
		message: fmt.Sprintf("%s is ready for review: %s", stageLabel, strings.TrimSpace(title)),
		tags:    []string{"reelsmith", "review", "ready"},
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyStageRejected(ctx context.Context, title, stageLabel, feedback string) error {
	if !n.review {
		return nil
	}
	message := fmt.Sprintf("%s rejected: %s", stageLabel, strings.TrimSpace(title))
	if feedback = strings.TrimSpace(feedback); feedback != "" {
		message = fmt.Sprintf("%s\nFeedback: %s", message, feedback)
	}
	data := payload{
		title:   "Reelsmith - Stage Rejected",
		message: message,
		tags:    []string{"reelsmith", "review", "rejected"},
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyRenderCompleted(ctx context.Context, title, path string) error {
	if !n.render {
		return nil
	}
	message := fmt.Sprintf("Render complete: %s", strings.TrimSpace(title))
	if path = strings.TrimSpace(path); path != "" {
		message = fmt.Sprintf("%s\nFile: %s", message, path)
	}
	data := payload{
		title:   "Reelsmith - Render Complete",
		message: message,
		tags:    []string{"reelsmith", "render", "completed"},
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyOutputCompleted(ctx context.Context, title string) error {
	if !n.render {
		return nil
	}
	data := payload{
		title:    "Reelsmith - Complete",
		message:  fmt.Sprintf("Ready to publish: %s", strings.TrimSpace(title)),
		tags:     []string{"reelsmith", "output", "completed"},
		priority: "high",
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyError(ctx context.Context, err error, contextLabel string) error {
	if !n.errors {
		return nil
	}
	var builder strings.Builder
	builder.WriteString("Error")
	if contextLabel = strings.TrimSpace(contextLabel); contextLabel != "" {
		builder.WriteString(" with ")
		builder.WriteString(contextLabel)
	}
	builder.WriteString(": ")
	if err != nil {
		builder.WriteString(strings.TrimSpace(err.Error()))
	} else {
		builder.WriteString("unknown")
	}

	data := payload{
		title:    "Reelsmith - Error",
		message:  builder.String(),
		tags:     []string{"reelsmith", "error", "alert"},
		priority: "high",
	}
	return n.send(ctx, data)
}

func (n *ntfyService) TestNotification(ctx context.Context) error {
	data := payload{
		title:    "Reelsmith - Test",
		message:  "Notification system test",
		tags:     []string{"reelsmith", "test"},
		priority: "low",
	}
	return n.send(ctx, data)
}

func (n *ntfyService) send(ctx context.Context, data payload) error {
	if n == nil || n.client == nil {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, strings.NewReader(data.message))
	if err != nil {
		return fmt.Errorf("build ntfy request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")
	if data.title != "" {
		req.Header.Set("Title", data.title)
	}
	if len(data.tags) > 0 {
		req.Header.Set("Tags", strings.Join(data.tags, ","))
	}
	if data.priority != "" && data.priority != "default" {
		req.Header.Set("Priority", data.priority)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send ntfy notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("ntfy returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

type noopService struct{}

func (noopService) NotifyReviewReady(context.Context, string, string) error           { return nil }
func (noopService) NotifyStageRejected(context.Context, string, string, string) error { return nil }
func (noopService) NotifyRenderCompleted(context.Context, string, string) error       { return nil }
func (noopService) NotifyOutputCompleted(context.Context, string) error               { return nil }
func (noopService) NotifyError(context.Context, error, string) error                  { return nil }
func (noopService) TestNotification(context.Context) error                            { return nil }
