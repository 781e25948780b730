package publish

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"redub/internal/config"
	"redub/internal/logging"
	"redub/internal/queue"
	"redub/internal/services"
)

type fakeUploader struct {
	enabled bool
	err     error
	keys    []string
}

func (f *fakeUploader) Enabled() bool { return f.enabled }

func (f *fakeUploader) Upload(_ context.Context, key, path string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	if _, err := os.Stat(path); err != nil {
		return "", err
	}
	f.keys = append(f.keys, key)
	return "https://cdn.example.com/" + key, nil
}

func finalVideo(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "final.mp4")
	if err := os.WriteFile(path, []byte("mp4"), 0o644); err != nil {
		t.Fatalf("write final video: %v", err)
	}
	return path
}

func TestPublishUploadsAndUpsertsRow(t *testing.T) {
	var rows []sheetRow
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var row sheetRow
		if err := json.NewDecoder(r.Body).Decode(&row); err != nil {
			t.Errorf("decode row: %v", err)
		}
		rows = append(rows, row)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	uploader := &fakeUploader{enabled: true}
	publisher := NewPublisher(uploader, config.Sheets{Enabled: true, WebhookURL: server.URL}, logging.NewNop())
	job := &queue.Job{
		ID:        42,
		SourceURL: "https://example.com/v/42",
		Title:     "Morning Routine Tips!",
		Status:    queue.StatusCompleted,
		FinalFile: finalVideo(t),
	}

	result, err := publisher.Publish(context.Background(), job)
	if err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if !result.Uploaded || !result.SheetUpdated {
		t.Fatalf("expected upload and sheet update, got %+v", result)
	}
	if want := "redub/42-morning-routine-tips.mp4"; len(uploader.keys) != 1 || uploader.keys[0] != want {
		t.Fatalf("expected object key %q, got %v", want, uploader.keys)
	}
	if !strings.HasPrefix(result.URL, "https://cdn.example.com/") {
		t.Fatalf("unexpected published URL %q", result.URL)
	}
	if len(rows) != 1 || rows[0].JobID != 42 || rows[0].VideoURL != result.URL {
		t.Fatalf("unexpected sheet rows %+v", rows)
	}
}

func TestPublishToleratesSheetFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "quota exceeded", http.StatusTooManyRequests)
	}))
	defer server.Close()

	publisher := NewPublisher(&fakeUploader{enabled: true}, config.Sheets{Enabled: true, WebhookURL: server.URL}, logging.NewNop())
	job := &queue.Job{ID: 7, FinalFile: finalVideo(t)}

	result, err := publisher.Publish(context.Background(), job)
	if err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if !result.Uploaded || result.SheetUpdated {
		t.Fatalf("expected upload without sheet update, got %+v", result)
	}
}

func TestPublishFailsWhenUploadFails(t *testing.T) {
	uploader := &fakeUploader{enabled: true, err: services.Wrap(services.ErrTransient, "publish", "upload", "", errors.New("503"))}
	publisher := NewPublisher(uploader, config.Sheets{}, logging.NewNop())
	job := &queue.Job{ID: 7, FinalFile: finalVideo(t)}

	if _, err := publisher.Publish(context.Background(), job); !errors.Is(err, services.ErrTransient) {
		t.Fatalf("expected transient error, got %v", err)
	}
}

func TestPublishRequiresFinalFile(t *testing.T) {
	publisher := NewPublisher(&fakeUploader{enabled: true}, config.Sheets{}, logging.NewNop())
	if _, err := publisher.Publish(context.Background(), &queue.Job{}); !errors.Is(err, services.ErrContent) {
		t.Fatalf("expected content error, got %v", err)
	}
}

func TestEnabledReflectsConfiguration(t *testing.T) {
	if NewPublisher(&fakeUploader{}, config.Sheets{}, logging.NewNop()).Enabled() {
		t.Fatal("expected publisher disabled with no destinations")
	}
	if !NewPublisher(&fakeUploader{}, config.Sheets{Enabled: true, WebhookURL: "https://hooks.example.com/sheet"}, logging.NewNop()).Enabled() {
		t.Fatal("expected publisher enabled with sheet webhook")
	}
}

func TestObjectKeyFallsBackWithoutTitle(t *testing.T) {
	key := objectKey(&queue.Job{ID: 9, FinalFile: "/out/final.mp4"})
	if key != "redub/9-video.mp4" {
		t.Fatalf("unexpected key %q", key)
	}
}
