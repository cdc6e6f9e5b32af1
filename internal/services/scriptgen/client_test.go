package scriptgen_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"reelsmith/internal/services"
	"reelsmith/internal/services/scriptgen"
)

func completionBody(t *testing.T, content string) []byte {
	t.Helper()
	body, err := json.Marshal(map[string]any{
		"choices": []map[string]any{
			{"message": map[string]any{"content": content}},
		},
	})
	if err != nil {
		t.Fatalf("marshal completion: %v", err)
	}
	return body
}

func newTestClient(t *testing.T, handler http.HandlerFunc) *scriptgen.Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return scriptgen.NewClient(
		scriptgen.Config{APIKey: "key", BaseURL: server.URL, Model: "test-model", UnitUSD: 0.002},
		scriptgen.WithRetryer(services.Retryer{MaxAttempts: 2, Sleeper: func(time.Duration) {}}),
	)
}

func TestScenesParsesAndCosts(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer key" {
			t.Errorf("missing auth header")
		}
		content := `{"scenes":[
			{"narration":"A storm rolls in.","visual_description":"Dark clouds over a harbor","environment":"harbor"},
			{"narration":"The boats scatter.","visual_description":"Fishing boats in chop","environment":"harbor"}]}`
		w.Write(completionBody(t, content))
	})

	scenes, cost, err := client.Scenes(context.Background(), "draft text", 20)
	if err != nil {
		t.Fatalf("Scenes failed: %v", err)
	}
	if len(scenes) != 2 {
		t.Fatalf("expected 2 scenes, got %d", len(scenes))
	}
	if scenes[1].Environment != "harbor" {
		t.Fatalf("unexpected environment: %q", scenes[1].Environment)
	}
	if cost.AmountUSD != 0.002 || cost.Resource != "script" {
		t.Fatalf("unexpected cost: %+v", cost)
	}
}

func TestScenesRejectsEmptyNarration(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write(completionBody(t, `{"scenes":[{"narration":"","visual_description":"x"}]}`))
	})
	_, _, err := client.Scenes(context.Background(), "draft", 20)
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestReviewValidatesCueKinds(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write(completionBody(t, `{"notes":"ok","cues":[{"offset_ms":500,"kind":"explosion"}]}`))
	})
	_, _, err := client.Review(context.Background(), nil, 20)
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error for unknown cue kind, got %v", err)
	}
}

func TestOutlineRetriesServerError(t *testing.T) {
	calls := 0
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			http.Error(w, "upstream", http.StatusBadGateway)
			return
		}
		w.Write(completionBody(t, `{"outline":"1. hook\n2. turn"}`))
	})

	outline, _, err := client.Outline(context.Background(), "Storm", "a harbor storm", 20)
	if err != nil {
		t.Fatalf("Outline failed: %v", err)
	}
	if calls != 2 {
		t.Fatalf("expected retry, got %d calls", calls)
	}
	if outline == "" {
		t.Fatal("expected outline text")
	}
}

func TestMissingAPIKeyIsConfigurationError(t *testing.T) {
	client := scriptgen.NewClient(scriptgen.Config{BaseURL: "http://127.0.0.1:0", Model: "m"})
	_, _, err := client.Outline(context.Background(), "t", "b", 20)
	if !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
}

func TestDecodeModelJSONStripsFences(t *testing.T) {
	var out struct {
		Outline string `json:"outline"`
	}
	payload := "```json\n{\"outline\":\"beats\"}\n```"
	if err := scriptgen.DecodeModelJSON(payload, &out); err != nil {
		t.Fatalf("DecodeModelJSON failed: %v", err)
	}
	if out.Outline != "beats" {
		t.Fatalf("unexpected outline: %q", out.Outline)
	}
}
