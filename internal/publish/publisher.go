// Package publish pushes finished videos to object storage and records them
// in the tracking spreadsheet via its row-upsert webhook.
package publish

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"redub/internal/config"
	"redub/internal/logging"
	"redub/internal/queue"
	"redub/internal/services"
	"redub/internal/storage"
)

const defaultSheetsTimeout = 15 * time.Second

// Result reports what a publish attempt accomplished.
type Result struct {
	URL          string
	Uploaded     bool
	SheetUpdated bool
}

// Publisher uploads a job's final video and upserts its spreadsheet row.
type Publisher struct {
	uploader storage.Uploader
	sheets   config.Sheets
	client   *http.Client
	logger   *slog.Logger
}

func NewPublisher(uploader storage.Uploader, sheets config.Sheets, logger *slog.Logger) *Publisher {
	if logger == nil {
		logger = logging.NewNop()
	}
	timeout := defaultSheetsTimeout
	if sheets.TimeoutSeconds > 0 {
		timeout = time.Duration(sheets.TimeoutSeconds) * time.Second
	}
	return &Publisher{
		uploader: uploader,
		sheets:   sheets,
		client:   &http.Client{Timeout: timeout},
		logger:   logging.NewComponentLogger(logger, "publish"),
	}
}

// Enabled reports whether any publish destination is configured.
func (p *Publisher) Enabled() bool {
	return p.uploader.Enabled() || p.sheetsEnabled()
}

func (p *Publisher) sheetsEnabled() bool {
	return p.sheets.Enabled && strings.TrimSpace(p.sheets.WebhookURL) != ""
}

// Publish uploads the final video and upserts the spreadsheet row. The sheet
// update is best effort once the upload succeeded; its failure is logged and
// reflected in the result, not returned.
func (p *Publisher) Publish(ctx context.Context, job *queue.Job) (Result, error) {
	if strings.TrimSpace(job.FinalFile) == "" {
		return Result{}, services.Wrap(services.ErrContent, "publish", "validate inputs", "job has no final video", nil)
	}
	logger := logging.WithContext(ctx, p.logger)

	result := Result{URL: job.PublishedURL}
	if p.uploader.Enabled() {
		url, err := p.uploader.Upload(ctx, objectKey(job), job.FinalFile)
		if err != nil {
			return result, err
		}
		result.URL = url
		result.Uploaded = true
		logger.Info("final video uploaded", logging.String("url", url))
	}
	if p.sheetsEnabled() {
		if err := p.upsertRow(ctx, job, result.URL); err != nil {
			logger.Warn("spreadsheet update failed", logging.Error(err))
		} else {
			result.SheetUpdated = true
		}
	}
	return result, nil
}

// objectKey derives a stable storage key from the job identity and title.
func objectKey(job *queue.Job) string {
	slug := slugify(job.Title)
	if slug == "" {
		slug = "video"
	}
	return fmt.Sprintf("redub/%d-%s%s", job.ID, slug, filepath.Ext(job.FinalFile))
}

func slugify(title string) string {
	var b strings.Builder
	lastDash := true
	for _, r := range strings.ToLower(strings.TrimSpace(title)) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			lastDash = false
		case !lastDash:
			b.WriteByte('-')
			lastDash = true
		}
		if b.Len() >= 48 {
			break
		}
	}
	return strings.Trim(b.String(), "-")
}

type sheetRow struct {
	JobID       int64  `json:"job_id"`
	SourceURL   string `json:"source_url"`
	Title       string `json:"title"`
	Status      string `json:"status"`
	VideoURL    string `json:"video_url,omitempty"`
	PublishedAt string `json:"published_at"`
}

func (p *Publisher) upsertRow(ctx context.Context, job *queue.Job, videoURL string) error {
	payload, err := json.Marshal(sheetRow{
		JobID:       job.ID,
		SourceURL:   job.SourceURL,
		Title:       job.Title,
		Status:      string(job.Status),
		VideoURL:    videoURL,
		PublishedAt: time.Now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		return services.Wrap(services.ErrContent, "publish", "sheet upsert", "", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.sheets.WebhookURL, bytes.NewReader(payload))
	if err != nil {
		return services.Wrap(services.ErrConfiguration, "publish", "sheet upsert", "", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return services.Wrap(services.ErrTransient, "publish", "sheet upsert", "", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= http.StatusMultipleChoices {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		detail := fmt.Sprintf("webhook returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
		return services.Wrap(services.ErrTransient, "publish", "sheet upsert", detail, nil)
	}
	return nil
}
