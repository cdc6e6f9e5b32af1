package notifications_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"reelsmith/internal/config"
	"reelsmith/internal/notifications"
)

func TestNewServiceReturnsNoopWhenTopicMissing(t *testing.T) {
	cfg := config.Default()
	cfg.Notifications.NtfyTopic = ""
	svc := notifications.NewService(&cfg)
	if err := svc.NotifyReviewReady(context.Background(), "Example", "Outline"); err != nil {
		t.Fatalf("expected noop notifier to return nil, got %v", err)
	}
}

func TestNtfyServiceFormatsPayloads(t *testing.T) {
	type captured struct {
		title    string
		tags     string
		priority string
		body     string
	}
	var got captured
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		got = captured{
			title:    r.Header.Get("Title"),
			tags:     r.Header.Get("Tags"),
			priority: r.Header.Get("Priority"),
			body:     string(body),
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	cfg := config.Default()
	cfg.Notifications.NtfyTopic = server.URL
	svc := notifications.NewService(&cfg)
	ctx := context.Background()

	if err := svc.NotifyReviewReady(ctx, "Volcano Facts", "Quality Review"); err != nil {
		t.Fatalf("NotifyReviewReady: %v", err)
	}
	if got.title != "Reelsmith - Review Ready" {
		t.Fatalf("unexpected title %q", got.title)
	}
	if got.body != "Quality Review is ready for review: Volcano Facts" {
		t.Fatalf("unexpected body %q", got.body)
	}

	if err := svc.NotifyStageRejected(ctx, "Volcano Facts", "Writer", "too dry"); err != nil {
		t.Fatalf("NotifyStageRejected: %v", err)
	}
	if got.body != "Writer rejected: Volcano Facts\nFeedback: too dry" {
		t.Fatalf("unexpected rejection body %q", got.body)
	}

	if err := svc.NotifyError(ctx, errors.New("boom"), "render (output ab12)"); err != nil {
		t.Fatalf("NotifyError: %v", err)
	}
	if got.priority != "high" {
		t.Fatalf("errors should be high priority, got %q", got.priority)
	}
}

func TestNtfyServiceHonorsEventToggles(t *testing.T) {
	var calls int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls++
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	cfg := config.Default()
	cfg.Notifications.NtfyTopic = server.URL
	cfg.Notifications.Review = false
	svc := notifications.NewService(&cfg)

	if err := svc.NotifyReviewReady(context.Background(), "Example", "Outline"); err != nil {
		t.Fatalf("NotifyReviewReady: %v", err)
	}
	if calls != 0 {
		t.Fatalf("review notifications disabled, got %d calls", calls)
	}
}

func TestNtfyServiceSurfacesHTTPFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "nope", http.StatusForbidden)
	}))
	defer server.Close()

	cfg := config.Default()
	cfg.Notifications.NtfyTopic = server.URL
	svc := notifications.NewService(&cfg)

	if err := svc.TestNotification(context.Background()); err == nil {
		t.Fatal("expected error for non-2xx response")
	}
}
