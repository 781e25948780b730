// Package tts wraps an OpenAI-compatible speech synthesis API. The synthesis
// stage sends the approved script with a playback speed chosen to land the
// narration inside the video's duration.
package tts

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"
)

const (
	defaultBaseURL     = "https://api.openai.com/v1/audio/speech"
	defaultModel       = "gpt-4o-mini-tts"
	defaultVoice       = "alloy"
	defaultFormat      = "mp3"
	defaultHTTPTimeout = 120 * time.Second

	// MinSpeed and MaxSpeed bound the playback rate the API accepts without
	// audible artifacts. The speed calculator clamps into this range.
	MinSpeed = 0.8
	MaxSpeed = 1.5
)

// Config captures the runtime settings for speech synthesis.
type Config struct {
	APIKey         string
	BaseURL        string
	Model          string
	Voice          string
	StylePrompt    string
	TimeoutSeconds int
}

// Client issues synthesis requests against the hosted API.
type Client struct {
	cfg        Config
	httpClient *http.Client
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

// NewClient constructs a speech synthesis client.
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
			Voice:          strings.TrimSpace(cfg.Voice),
			StylePrompt:    strings.TrimSpace(cfg.StylePrompt),
			TimeoutSeconds: cfg.TimeoutSeconds,
		},
		httpClient: &http.Client{Timeout: timeout},
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
	if client.cfg.Voice == "" {
		client.cfg.Voice = defaultVoice
	}
	return client
}

type speechRequest struct {
	Model          string  `json:"model"`
	Input          string  `json:"input"`
	Voice          string  `json:"voice"`
	Speed          float64 `json:"speed,omitempty"`
	Instructions   string  `json:"instructions,omitempty"`
	ResponseFormat string  `json:"response_format"`
}

// Synthesize converts text to speech at the given playback speed and writes
// the audio to dest. Speed values outside [MinSpeed, MaxSpeed] are clamped.
func (c *Client) Synthesize(ctx context.Context, text string, speed float64, dest string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return errors.New("synthesize: text required")
	}
	if dest == "" {
		return errors.New("synthesize: destination path required")
	}
	if c.cfg.APIKey == "" {
		return errors.New("synthesize: api key required")
	}
	speed = ClampSpeed(speed)

	payload := speechRequest{
		Model:          c.cfg.Model,
		Input:          text,
		Voice:          c.cfg.Voice,
		Speed:          speed,
		Instructions:   c.cfg.StylePrompt,
		ResponseFormat: defaultFormat,
	}
	encoded, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("synthesize: encode body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL, bytes.NewReader(encoded))
	if err != nil {
		return fmt.Errorf("synthesize: new request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("synthesize: http error: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusMultipleChoices {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("synthesize: http %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return fmt.Errorf("synthesize: ensure dest dir: %w", err)
	}
	out, err := os.Create(dest)
	if err != nil {
		return fmt.Errorf("synthesize: create dest: %w", err)
	}
	defer out.Close()
	written, err := io.Copy(out, resp.Body)
	if err != nil {
		return fmt.Errorf("synthesize: write audio: %w", err)
	}
	if written == 0 {
		return errors.New("synthesize: empty audio response")
	}
	return nil
}

// HealthCheck verifies credentials are present.
func (c *Client) HealthCheck(_ context.Context) error {
	if c.cfg.APIKey == "" {
		return errors.New("tts health: api key required")
	}
	return nil
}

// ClampSpeed bounds a playback speed into the range the API supports.
func ClampSpeed(speed float64) float64 {
	if speed <= 0 {
		return 1.0
	}
	if speed < MinSpeed {
		return MinSpeed
	}
	if speed > MaxSpeed {
		return MaxSpeed
	}
	return speed
}
