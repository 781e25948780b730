package ffprobe

import "testing"

func TestResultHelpers(t *testing.T) {
	result := Result{
		Streams: []Stream{
			{CodecType: "video", Width: 1080, Height: 1920},
			{CodecType: "audio", Channels: 2},
		},
		Format: Format{
			Duration: "58.43",
			Size:     "1000",
		},
	}
	if !result.HasAudio() {
		t.Fatal("expected audio stream")
	}
	video, ok := result.FirstVideo()
	if !ok || video.Width != 1080 || video.Height != 1920 {
		t.Fatalf("unexpected video stream: %#v", video)
	}
	if result.DurationSeconds() != 58.43 {
		t.Fatalf("unexpected duration: %v", result.DurationSeconds())
	}
	if result.SizeBytes() != 1000 {
		t.Fatalf("unexpected size: %d", result.SizeBytes())
	}
}

func TestResultHelpersHandleMissingStreams(t *testing.T) {
	result := Result{
		Format: Format{
			Duration: "bad",
			Size:     "-1",
		},
	}
	if result.HasAudio() {
		t.Fatal("expected no audio stream")
	}
	if _, ok := result.FirstVideo(); ok {
		t.Fatal("expected no video stream")
	}
	if result.DurationSeconds() != 0 {
		t.Fatalf("expected duration 0, got %v", result.DurationSeconds())
	}
	if result.SizeBytes() != 0 {
		t.Fatalf("expected size 0, got %d", result.SizeBytes())
	}
}
