package services_test

import (
	"errors"
	"testing"

	"reelsmith/internal/services"
)

func TestWrapTagsSentinel(t *testing.T) {
	err := services.Wrap(services.ErrRestricted, "images", "generate", "prompt refused", nil)
	if !errors.Is(err, services.ErrRestricted) {
		t.Fatalf("expected ErrRestricted, got %v", err)
	}
}

func TestWrapDefaultsToTransient(t *testing.T) {
	err := services.Wrap(nil, "speech", "synthesize", "", errors.New("boom"))
	if !errors.Is(err, services.ErrTransient) {
		t.Fatalf("expected ErrTransient, got %v", err)
	}
}

func TestIsRetryable(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want bool
	}{
		{"transient", services.Wrap(services.ErrTransient, "a", "b", "", nil), true},
		{"timeout", services.Wrap(services.ErrTimeout, "a", "b", "", nil), true},
		{"restricted", services.Wrap(services.ErrRestricted, "a", "b", "", nil), false},
		{"configuration", services.Wrap(services.ErrConfiguration, "a", "b", "", nil), false},
		{"precondition", services.Wrap(services.ErrPrecondition, "a", "b", "", nil), false},
		{"nil", nil, false},
	}
	for _, tc := range cases {
		if got := services.IsRetryable(tc.err); got != tc.want {
			t.Errorf("%s: IsRetryable = %v, want %v", tc.name, got, tc.want)
		}
	}
}

func TestDetailStripsSentinelPrefix(t *testing.T) {
	err := services.Wrap(services.ErrExternalTool, "render", "concat", "ffmpeg exited 1", nil)
	if got := services.Detail(err); got != "render: concat: ffmpeg exited 1" {
		t.Fatalf("unexpected detail: %q", got)
	}
}
