package services_test

import (
	"errors"
	"strings"
	"testing"

	"redub/internal/services"
)

func TestWrapIncludesContext(t *testing.T) {
	base := errors.New("boom")
	err := services.Wrap(services.ErrExternalTool, "assembly", "mux", "failed", base)
	if err == nil {
		t.Fatal("expected error")
	}
	if !errors.Is(err, services.ErrExternalTool) {
		t.Fatalf("expected marker to be retained, got %v", err)
	}
	if !errors.Is(err, base) {
		t.Fatalf("expected wrapped error to contain base error, got %v", err)
	}
	msg := err.Error()
	for _, fragment := range []string{"assembly", "mux", "failed"} {
		if !strings.Contains(msg, fragment) {
			t.Fatalf("expected %q in error string %q", fragment, msg)
		}
	}
}

func TestRetryable(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"configuration", services.Wrap(services.ErrConfiguration, "tts", "synthesize", "api key missing", nil), false},
		{"content", services.Wrap(services.ErrContent, "enhance", "sanitize", "no usable transcript content", nil), false},
		{"timeout", services.Wrap(services.ErrTimeout, "transcribe", "primary", "timed out", nil), true},
		{"transient", services.Wrap(services.ErrTransient, "download", "fetch", "connection refused", errors.New("dial")), true},
		{"plain", errors.New("unclassified"), false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := services.Retryable(tc.err); got != tc.want {
				t.Fatalf("Retryable(%v) = %v, want %v", tc.err, got, tc.want)
			}
		})
	}
}

func TestMessageStripsMarker(t *testing.T) {
	err := services.Wrap(services.ErrContent, "enhance", "sanitize", "no usable transcript content after cleaning", nil)
	msg := services.Message(err)
	if strings.Contains(msg, services.ErrContent.Error()) {
		t.Fatalf("expected sentinel prefix stripped, got %q", msg)
	}
	if !strings.Contains(msg, "no usable transcript content") {
		t.Fatalf("expected detail preserved, got %q", msg)
	}
}
