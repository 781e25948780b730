package tts

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
)

func TestSynthesizeWritesAudio(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var payload speechRequest
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if payload.Input != "नमस्ते दुनिया" {
			t.Fatalf("unexpected input: %q", payload.Input)
		}
		if payload.Speed != 1.2 {
			t.Fatalf("unexpected speed: %v", payload.Speed)
		}
		if payload.Instructions != "energetic narrator" {
			t.Fatalf("unexpected instructions: %q", payload.Instructions)
		}
		_, _ = w.Write([]byte("mp3-bytes"))
	}))
	defer server.Close()

	dest := filepath.Join(t.TempDir(), "speech", "out.mp3")
	client := NewClient(Config{
		APIKey:      "test",
		BaseURL:     server.URL,
		StylePrompt: "energetic narrator",
	})
	if err := client.Synthesize(context.Background(), "नमस्ते दुनिया", 1.2, dest); err != nil {
		t.Fatalf("Synthesize failed: %v", err)
	}
	data, err := os.ReadFile(dest)
	if err != nil {
		t.Fatalf("read output: %v", err)
	}
	if string(data) != "mp3-bytes" {
		t.Fatalf("unexpected audio payload: %q", data)
	}
}

func TestSynthesizeClampsSpeed(t *testing.T) {
	var gotSpeed float64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var payload speechRequest
		_ = json.NewDecoder(r.Body).Decode(&payload)
		gotSpeed = payload.Speed
		_, _ = w.Write([]byte("audio"))
	}))
	defer server.Close()

	client := NewClient(Config{APIKey: "test", BaseURL: server.URL})
	dest := filepath.Join(t.TempDir(), "out.mp3")
	if err := client.Synthesize(context.Background(), "text", 3.0, dest); err != nil {
		t.Fatalf("Synthesize failed: %v", err)
	}
	if gotSpeed != MaxSpeed {
		t.Fatalf("expected speed clamped to %v, got %v", MaxSpeed, gotSpeed)
	}
}

func TestSynthesizeRejectsErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	client := NewClient(Config{APIKey: "test", BaseURL: server.URL})
	dest := filepath.Join(t.TempDir(), "out.mp3")
	if err := client.Synthesize(context.Background(), "text", 1.0, dest); err == nil {
		t.Fatal("expected error")
	}
	if _, err := os.Stat(dest); !os.IsNotExist(err) {
		t.Fatal("failed synthesis should not leave an output file")
	}
}

func TestClampSpeed(t *testing.T) {
	cases := []struct {
		in   float64
		want float64
	}{
		{0, 1.0},
		{-1, 1.0},
		{0.5, MinSpeed},
		{1.0, 1.0},
		{1.5, 1.5},
		{2.0, MaxSpeed},
	}
	for _, tc := range cases {
		if got := ClampSpeed(tc.in); got != tc.want {
			t.Errorf("ClampSpeed(%v) = %v, want %v", tc.in, got, tc.want)
		}
	}
}
