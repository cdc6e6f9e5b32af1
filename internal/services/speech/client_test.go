package speech_test

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
	"reelsmith/internal/services/speech"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *speech.Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return speech.NewClient(
		speech.Config{APIKey: "key", BaseURL: server.URL, Model: "standard", UnitUSD: 0.015},
		speech.WithRetryer(services.Retryer{MaxAttempts: 2, Sleeper: func(time.Duration) {}}),
	)
}

func TestSynthesizeDecodesClip(t *testing.T) {
	var gotSpeed float64
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		var req map[string]any
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		gotSpeed = req["speed"].(float64)
		json.NewEncoder(w).Encode(map[string]any{
			"audio_b64":   base64.StdEncoding.EncodeToString([]byte("audio-bytes")),
			"format":      "mp3",
			"duration_ms": 4500,
			"words": []map[string]any{
				{"word": "storm", "start_ms": 0, "end_ms": 400},
			},
		})
	})

	clip, cost, err := client.Synthesize(context.Background(), speech.Request{
		Text:  "storm warning",
		Voice: "river",
		Rate:  1.15,
	})
	if err != nil {
		t.Fatalf("Synthesize failed: %v", err)
	}
	if gotSpeed != 1.15 {
		t.Fatalf("expected rate forwarded, got %v", gotSpeed)
	}
	if string(clip.Audio) != "audio-bytes" {
		t.Fatalf("unexpected audio payload: %q", clip.Audio)
	}
	if clip.NominalDuration != 4500*time.Millisecond {
		t.Fatalf("unexpected nominal duration: %v", clip.NominalDuration)
	}
	if len(clip.Alignment) != 1 || clip.Alignment[0].Word != "storm" {
		t.Fatalf("unexpected alignment: %+v", clip.Alignment)
	}
	if cost.Units != 1 || cost.AmountUSD != 0.015 {
		t.Fatalf("unexpected cost: %+v", cost)
	}
}

func TestSynthesizePolicyRefusal(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		json.NewEncoder(w).Encode(map[string]any{
			"error": map[string]any{"code": "content_policy", "message": "violent content"},
		})
	})

	_, _, err := client.Synthesize(context.Background(), speech.Request{Text: "bad text"})
	if !errors.Is(err, services.ErrRestricted) {
		t.Fatalf("expected ErrRestricted, got %v", err)
	}
}

func TestSynthesizeRequiresText(t *testing.T) {
	client := speech.NewClient(speech.Config{BaseURL: "http://127.0.0.1:0"})
	_, _, err := client.Synthesize(context.Background(), speech.Request{Text: "   "})
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestSynthesizeMissingBaseURL(t *testing.T) {
	client := speech.NewClient(speech.Config{})
	_, _, err := client.Synthesize(context.Background(), speech.Request{Text: "hello"})
	if !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
}
