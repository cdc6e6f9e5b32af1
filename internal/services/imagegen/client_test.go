package imagegen_test

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"reelsmith/internal/services"
	"reelsmith/internal/services/imagegen"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *imagegen.Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return imagegen.NewClient(
		imagegen.Config{APIKey: "key", BaseURL: server.URL, Model: "standard", UnitUSD: 0.04},
		imagegen.WithRetryer(services.Retryer{MaxAttempts: 2, Sleeper: func(time.Duration) {}}),
	)
}

func TestGenerateForwardsReference(t *testing.T) {
	var got map[string]any
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		json.NewEncoder(w).Encode(map[string]any{
			"image_b64": base64.StdEncoding.EncodeToString([]byte("png-bytes")),
			"width":     1080,
			"height":    1920,
		})
	})

	image, cost, err := client.Generate(context.Background(), imagegen.Request{
		Prompt:      "dark harbor, storm light",
		AspectRatio: "9:16",
		Reference:   &imagegen.Reference{Data: []byte("prev-image"), Weight: 0.45},
	})
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	if got["reference_b64"] == "" {
		t.Fatal("expected reference forwarded")
	}
	if got["reference_weight"].(float64) != 0.45 {
		t.Fatalf("unexpected weight: %v", got["reference_weight"])
	}
	if image.Width != 1080 || image.Height != 1920 {
		t.Fatalf("unexpected dims: %dx%d", image.Width, image.Height)
	}
	if cost.AmountUSD != 0.04 {
		t.Fatalf("unexpected cost: %+v", cost)
	}
}

func TestGenerateRestrictedNotRetried(t *testing.T) {
	calls := 0
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusUnprocessableEntity)
		json.NewEncoder(w).Encode(map[string]any{
			"error": map[string]any{"code": "content_policy", "message": "depicts real person"},
		})
	})

	_, _, err := client.Generate(context.Background(), imagegen.Request{Prompt: "someone famous"})
	if !errors.Is(err, services.ErrRestricted) {
		t.Fatalf("expected ErrRestricted, got %v", err)
	}
	if calls != 1 {
		t.Fatalf("restricted prompt must not retry, got %d calls", calls)
	}
	if detail := services.Detail(err); detail == "" || !errors.Is(err, services.ErrRestricted) {
		t.Fatalf("expected reason in detail, got %q", detail)
	}
}
