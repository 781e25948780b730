// Package whisperapi wraps a hosted OpenAI-compatible speech-to-text API,
// the primary transcription source. The secondary source (local WhisperX)
// covers for it when the network or the service is down.
package whisperapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"
)

const (
	defaultBaseURL       = "https://api.openai.com/v1/audio/transcriptions"
	defaultModel         = "whisper-1"
	defaultHTTPTimeout   = 120 * time.Second
	defaultRetryAttempts = 3
	defaultRetryDelay    = 2 * time.Second
)

// Config captures the runtime settings for the hosted transcription API.
type Config struct {
	APIKey         string
	BaseURL        string
	Model          string
	TimeoutSeconds int
}

// Client issues transcription requests against the hosted API.
type Client struct {
	cfg        Config
	httpClient *http.Client

	retryAttempts int
	retryDelay    time.Duration
	sleeper       func(time.Duration)
}

// Option customizes the client.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithRetry overrides the retry attempt count and delay.
func WithRetry(attempts int, delay time.Duration) Option {
	return func(c *Client) {
		c.retryAttempts = attempts
		c.retryDelay = delay
	}
}

// WithSleeper overrides how retry sleeps are performed (useful for tests).
func WithSleeper(sleeper func(time.Duration)) Option {
	return func(c *Client) {
		c.sleeper = sleeper
	}
}

// NewClient constructs a hosted transcription client.
func NewClient(cfg Config, opts ...Option) *Client {
	timeout := defaultHTTPTimeout
	if cfg.TimeoutSeconds > 0 {
		timeout = time.Duration(cfg.TimeoutSeconds) * time.Second
	}
	client := &Client{
		cfg: Config{
			APIKey:         strings.TrimSpace(cfg.APIKey),
			BaseURL:        strings.TrimSpace(cfg.BaseURL),
			Model:          strings.TrimSpace(cfg.Model),
			TimeoutSeconds: cfg.TimeoutSeconds,
		},
		httpClient:    &http.Client{Timeout: timeout},
		retryAttempts: defaultRetryAttempts,
		retryDelay:    defaultRetryDelay,
	}
	for _, opt := range opts {
		opt(client)
	}
	if client.cfg.BaseURL == "" {
		client.cfg.BaseURL = defaultBaseURL
	}
	if client.cfg.Model == "" {
		client.cfg.Model = defaultModel
	}
	return client
}

// Segment is one transcribed span from the verbose JSON response.
type Segment struct {
	Text       string  `json:"text"`
	Start      float64 `json:"start"`
	End        float64 `json:"end"`
	AvgLogProb float64 `json:"avg_logprob"`
}

// Result is the parsed transcription response.
type Result struct {
	Text     string
	Language string
	Segments []Segment
}

type verboseResponse struct {
	Text     string    `json:"text"`
	Language string    `json:"language"`
	Segments []Segment `json:"segments"`
	Error    *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// Transcribe uploads an audio file and returns the timed transcription.
// The language hint is optional; empty lets the service auto-detect.
func (c *Client) Transcribe(ctx context.Context, audioPath, language string) (Result, error) {
	var result Result
	if strings.TrimSpace(audioPath) == "" {
		return result, errors.New("transcribe: audio path required")
	}
	if c.cfg.APIKey == "" {
		return result, errors.New("transcribe: api key required")
	}

	var lastErr error
	for attempt := 1; attempt <= c.attempts(); attempt++ {
		result, lastErr = c.transcribeOnce(ctx, audioPath, language)
		if lastErr == nil {
			return result, nil
		}
		if !retryable(lastErr) || attempt == c.attempts() {
			return Result{}, lastErr
		}
		if err := c.sleep(ctx, c.retryDelay); err != nil {
			return Result{}, err
		}
	}
	return Result{}, lastErr
}

func (c *Client) transcribeOnce(ctx context.Context, audioPath, language string) (Result, error) {
	var result Result

	file, err := os.Open(audioPath)
	if err != nil {
		return result, fmt.Errorf("transcribe: open audio: %w", err)
	}
	defer file.Close()

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile("file", filepath.Base(audioPath))
	if err != nil {
		return result, fmt.Errorf("transcribe: build form: %w", err)
	}
	if _, err := io.Copy(part, file); err != nil {
		return result, fmt.Errorf("transcribe: copy audio: %w", err)
	}
	fields := map[string]string{
		"model":           c.cfg.Model,
		"response_format": "verbose_json",
	}
	if lang := strings.TrimSpace(language); lang != "" {
		fields["language"] = lang
	}
	for key, value := range fields {
		if err := writer.WriteField(key, value); err != nil {
			return result, fmt.Errorf("transcribe: write field %s: %w", key, err)
		}
	}
	if err := writer.Close(); err != nil {
		return result, fmt.Errorf("transcribe: close form: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL, &body)
	if err != nil {
		return result, fmt.Errorf("transcribe: new request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return result, fmt.Errorf("transcribe: http error: %w", err)
	}
	defer resp.Body.Close()
	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return result, fmt.Errorf("transcribe: read body: %w", err)
	}
	if resp.StatusCode >= http.StatusMultipleChoices {
		return result, &httpStatusError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(payload))}
	}

	var decoded verboseResponse
	if err := json.Unmarshal(payload, &decoded); err != nil {
		return result, fmt.Errorf("transcribe: decode response: %w", err)
	}
	if decoded.Error != nil {
		return result, fmt.Errorf("transcribe: api error: %s", strings.TrimSpace(decoded.Error.Message))
	}
	result.Text = strings.TrimSpace(decoded.Text)
	result.Language = decoded.Language
	result.Segments = decoded.Segments
	return result, nil
}

// HealthCheck verifies the API endpoint is configured. A real request needs
// audio, so this only validates credentials are present.
func (c *Client) HealthCheck(_ context.Context) error {
	if c.cfg.APIKey == "" {
		return errors.New("whisperapi health: api key required")
	}
	return nil
}

type httpStatusError struct {
	StatusCode int
	Body       string
}

func (e *httpStatusError) Error() string {
	return fmt.Sprintf("transcribe: http %d: %s", e.StatusCode, e.Body)
}

func retryable(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var statusErr *httpStatusError
	if errors.As(err, &statusErr) {
		return statusErr.StatusCode == http.StatusRequestTimeout ||
			statusErr.StatusCode == http.StatusTooManyRequests ||
			statusErr.StatusCode >= http.StatusInternalServerError
	}
	return strings.Contains(err.Error(), "http error")
}

func (c *Client) attempts() int {
	if c.retryAttempts <= 0 {
		return 1
	}
	return c.retryAttempts
}

func (c *Client) sleep(ctx context.Context, delay time.Duration) error {
	if delay <= 0 {
		return nil
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if c.sleeper != nil {
		c.sleeper(delay)
		return ctx.Err()
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
