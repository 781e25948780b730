package vision

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
)

type fakeCaptioner struct {
	gotImages int
	reply     string
	err       error
}

func (f *fakeCaptioner) CompleteVision(_ context.Context, _, _ string, images [][]byte) (string, error) {
	f.gotImages = len(images)
	return f.reply, f.err
}

func stubFrames(t *testing.T, dir string, count int) func(context.Context, string, ...string) error {
	t.Helper()
	return func(ctx context.Context, name string, args ...string) error {
		for i := 1; i <= count; i++ {
			path := filepath.Join(dir, fmt.Sprintf("frame_%04d.png", i))
			if err := os.WriteFile(path, []byte{byte(i)}, 0o644); err != nil {
				return err
			}
		}
		return nil
	}
}

func TestTranscribeSendsFrames(t *testing.T) {
	dir := t.TempDir()
	captioner := &fakeCaptioner{reply: "  caption one\ncaption two  "}
	svc := NewService(Config{FrameSeconds: 2}, captioner)
	svc.WithCommandRunner(stubFrames(t, dir, 3))

	text, err := svc.Transcribe(context.Background(), "/tmp/video.mp4", dir)
	if err != nil {
		t.Fatalf("Transcribe failed: %v", err)
	}
	if text != "caption one\ncaption two" {
		t.Fatalf("unexpected text: %q", text)
	}
	if captioner.gotImages != 3 {
		t.Fatalf("expected 3 frames sent, got %d", captioner.gotImages)
	}
}

func TestTranscribeThinsFrames(t *testing.T) {
	dir := t.TempDir()
	captioner := &fakeCaptioner{reply: "caption"}
	svc := NewService(Config{FrameSeconds: 1, MaxFrames: 5}, captioner)
	svc.WithCommandRunner(stubFrames(t, dir, 20))

	if _, err := svc.Transcribe(context.Background(), "/tmp/video.mp4", dir); err != nil {
		t.Fatalf("Transcribe failed: %v", err)
	}
	if captioner.gotImages != 5 {
		t.Fatalf("expected frames thinned to 5, got %d", captioner.gotImages)
	}
}

func TestTranscribeFailsWithoutFrames(t *testing.T) {
	dir := t.TempDir()
	svc := NewService(Config{}, &fakeCaptioner{})
	svc.WithCommandRunner(func(context.Context, string, ...string) error { return nil })

	if _, err := svc.Transcribe(context.Background(), "/tmp/video.mp4", dir); err == nil {
		t.Fatal("expected error when ffmpeg produced no frames")
	}
}

func TestThinFramesKeepsEndpoints(t *testing.T) {
	frames := []string{"a", "b", "c", "d", "e", "f", "g"}
	picked := thinFrames(frames, 3)
	if len(picked) != 3 || picked[0] != "a" || picked[2] != "g" {
		t.Fatalf("unexpected selection: %v", picked)
	}
}
