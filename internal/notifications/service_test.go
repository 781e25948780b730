package notifications

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"redub/internal/testsupport"
)

func newTopicService(t *testing.T, handler http.HandlerFunc) Service {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	cfg := testsupport.NewConfig(t)
	cfg.Notifications.NtfyTopic = server.URL
	return NewService(cfg)
}

func TestNewServiceReturnsNoopWithoutTopic(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	svc := NewService(cfg)
	if err := svc.NotifyError(context.Background(), errors.New("boom"), "download"); err != nil {
		t.Fatalf("noop service should swallow everything: %v", err)
	}
}

func TestNotifyReviewNeededSendsHighPriority(t *testing.T) {
	var gotTitle, gotPriority, gotBody string
	svc := newTopicService(t, func(w http.ResponseWriter, r *http.Request) {
		gotTitle = r.Header.Get("Title")
		gotPriority = r.Header.Get("Priority")
		body, _ := io.ReadAll(r.Body)
		gotBody = string(body)
		w.WriteHeader(http.StatusOK)
	})

	if err := svc.NotifyReviewNeeded(context.Background(), "Village Story", 12); err != nil {
		t.Fatalf("NotifyReviewNeeded: %v", err)
	}
	if gotTitle != "Redub - Review Needed" {
		t.Fatalf("unexpected title %q", gotTitle)
	}
	if gotPriority != "high" {
		t.Fatalf("expected high priority, got %q", gotPriority)
	}
	if gotBody == "" || !containsAll(gotBody, "Village Story", "job 12") {
		t.Fatalf("unexpected body %q", gotBody)
	}
}

func TestNotifyJobCompletedRespectsToggle(t *testing.T) {
	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls++
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(server.Close)

	cfg := testsupport.NewConfig(t)
	cfg.Notifications.NtfyTopic = server.URL
	cfg.Notifications.Completion = false
	svc := NewService(cfg)

	if err := svc.NotifyJobCompleted(context.Background(), "Demo", "/out/final.mp4"); err != nil {
		t.Fatalf("NotifyJobCompleted: %v", err)
	}
	if calls != 0 {
		t.Fatalf("expected suppressed notification, got %d calls", calls)
	}
}

func TestSendReportsServerError(t *testing.T) {
	svc := newTopicService(t, func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "rate limited", http.StatusTooManyRequests)
	})
	if err := svc.TestNotification(context.Background()); err == nil {
		t.Fatal("expected error from 429 response")
	}
}

func containsAll(s string, subs ...string) bool {
	for _, sub := range subs {
		if !strings.Contains(s, sub) {
			return false
		}
	}
	return true
}
