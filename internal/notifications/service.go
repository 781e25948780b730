// Package notifications publishes pipeline events to an ntfy topic. When no
// topic is configured every call is a no-op, so callers never need to guard.
package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"redub/internal/config"
)

const userAgent = "Redub-Go/0.1.0"

// Service defines the notification surface exposed to workflow components.
type Service interface {
	NotifyJobQueued(ctx context.Context, title string) error
	NotifyReviewNeeded(ctx context.Context, title string, jobID int64) error
	NotifyJobCompleted(ctx context.Context, title, finalFile string) error
	NotifyJobPublished(ctx context.Context, title, publishedURL string) error
	NotifyError(ctx context.Context, err error, contextLabel string) error
	TestNotification(ctx context.Context) error
}

// NewService builds a notification service backed by ntfy when configured.
// When no ntfy topic is configured, a noop implementation is returned.
func NewService(cfg *config.Config) Service {
	topic := strings.TrimSpace(cfg.Notifications.NtfyTopic)
	if topic == "" {
		return noopService{}
	}

	timeout := time.Duration(cfg.Notifications.RequestTimeout) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &ntfyService{
		endpoint:   topic,
		client:     &http.Client{Timeout: timeout},
		errors:     cfg.Notifications.Errors,
		completion: cfg.Notifications.Completion,
		review:     cfg.Notifications.Review,
	}
}

type payload struct {
	title    string
	message  string
	tags     []string
	priority string
}

type ntfyService struct {
	endpoint   string
	client     *http.Client
	errors     bool
	completion bool
	review     bool
}

func (n *ntfyService) NotifyJobQueued(ctx context.Context, title string) error {
	data := payload{
		title:   "Redub - Queued",
		message: fmt.Sprintf("Queued: %s", strings.TrimSpace(title)),
		tags:    []string{"redub", "queue"},
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyReviewNeeded(ctx context.Context, title string, jobID int64) error {
	if !n.review {
		return nil
	}
	data := payload{
		title:    "Redub - Review Needed",
		message:  fmt.Sprintf("Script ready for review: %s (job %d)", strings.TrimSpace(title), jobID),
		tags:     []string{"redub", "review"},
		priority: "high",
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyJobCompleted(ctx context.Context, title, finalFile string) error {
	if !n.completion {
		return nil
	}
	message := fmt.Sprintf("Re-voiced video ready: %s", strings.TrimSpace(title))
	if finalFile = strings.TrimSpace(finalFile); finalFile != "" {
		message = fmt.Sprintf("%s\nFile: %s", message, finalFile)
	}
	data := payload{
		title:   "Redub - Complete",
		message: message,
		tags:    []string{"redub", "completed"},
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyJobPublished(ctx context.Context, title, publishedURL string) error {
	if !n.completion {
		return nil
	}
	data := payload{
		title:   "Redub - Published",
		message: fmt.Sprintf("Published: %s\n%s", strings.TrimSpace(title), strings.TrimSpace(publishedURL)),
		tags:    []string{"redub", "published"},
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyError(ctx context.Context, err error, contextLabel string) error {
	if !n.errors {
		return nil
	}
	var builder strings.Builder
	builder.WriteString("Error")
	if contextLabel = strings.TrimSpace(contextLabel); contextLabel != "" {
		builder.WriteString(" with ")
		builder.WriteString(contextLabel)
	}
	builder.WriteString(": ")
	if err != nil {
		builder.WriteString(strings.TrimSpace(err.Error()))
	} else {
		builder.WriteString("unknown")
	}

	data := payload{
		title:    "Redub - Error",
		message:  builder.String(),
		tags:     []string{"redub", "error", "alert"},
		priority: "high",
	}
	return n.send(ctx, data)
}

func (n *ntfyService) TestNotification(ctx context.Context) error {
	data := payload{
		title:    "Redub - Test",
		message:  "Notification system test",
		tags:     []string{"redub", "test"},
		priority: "low",
	}
	return n.send(ctx, data)
}

func (n *ntfyService) send(ctx context.Context, data payload) error {
	if n == nil || n.client == nil {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, strings.NewReader(data.message))
	if err != nil {
		return fmt.Errorf("build ntfy request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")
	if data.title != "" {
		req.Header.Set("Title", data.title)
	}
	if len(data.tags) > 0 {
		req.Header.Set("Tags", strings.Join(data.tags, ","))
	}
	if data.priority != "" && data.priority != "default" {
		req.Header.Set("Priority", data.priority)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send ntfy notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("ntfy returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

type noopService struct{}

func (noopService) NotifyJobQueued(context.Context, string) error            { return nil }
func (noopService) NotifyReviewNeeded(context.Context, string, int64) error  { return nil }
func (noopService) NotifyJobCompleted(context.Context, string, string) error { return nil }
func (noopService) NotifyJobPublished(context.Context, string, string) error { return nil }
func (noopService) NotifyError(context.Context, error, string) error         { return nil }
func (noopService) TestNotification(context.Context) error                   { return nil }
