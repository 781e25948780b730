// Package ytdlp shells out to yt-dlp for video ingestion. The download stage
// uses it to fetch the source short and its metadata into the job's staging
// directory.
package ytdlp

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

const (
	// DefaultFormat prefers a single mp4 with audio so assembly can copy the
	// video stream instead of re-encoding.
	DefaultFormat  = "bv*[ext=mp4]+ba[ext=m4a]/b[ext=mp4]/b"
	defaultCommand = "yt-dlp"
)

// Config captures the runtime settings for yt-dlp.
type Config struct {
	Binary string
	Format string
}

// Metadata is the subset of yt-dlp's JSON dump the pipeline keeps.
type Metadata struct {
	ID         string  `json:"id"`
	Title      string  `json:"title"`
	Duration   float64 `json:"duration"`
	Uploader   string  `json:"uploader"`
	WebpageURL string  `json:"webpage_url"`
}

// Service wraps yt-dlp invocations.
type Service struct {
	cfg           Config
	commandRunner func(ctx context.Context, name string, args ...string) (string, error)
}

// NewService creates a yt-dlp service with the given configuration.
func NewService(cfg Config) *Service {
	if cfg.Binary == "" {
		cfg.Binary = defaultCommand
	}
	if cfg.Format == "" {
		cfg.Format = DefaultFormat
	}
	return &Service{cfg: cfg}
}

// WithCommandRunner sets a custom command runner (for testing). The runner
// returns combined output.
func (s *Service) WithCommandRunner(runner func(ctx context.Context, name string, args ...string) (string, error)) {
	s.commandRunner = runner
}

func (s *Service) run(ctx context.Context, args ...string) (string, error) {
	if s.commandRunner != nil {
		return s.commandRunner(ctx, s.cfg.Binary, args...)
	}
	cmd := exec.CommandContext(ctx, s.cfg.Binary, args...) //nolint:gosec
	var buf bytes.Buffer
	cmd.Stdout = &buf
	cmd.Stderr = &buf
	if err := cmd.Run(); err != nil {
		return buf.String(), fmt.Errorf("%s: %w: %s", s.cfg.Binary, err, strings.TrimSpace(buf.String()))
	}
	return buf.String(), nil
}

// FetchMetadata dumps the video's metadata without downloading it.
func (s *Service) FetchMetadata(ctx context.Context, sourceURL string) (Metadata, error) {
	var meta Metadata
	if strings.TrimSpace(sourceURL) == "" {
		return meta, errors.New("fetch metadata: source url required")
	}
	output, err := s.run(ctx, "--dump-json", "--no-download", "--no-playlist", sourceURL)
	if err != nil {
		return meta, fmt.Errorf("fetch metadata: %w", err)
	}
	// yt-dlp may print warnings before the JSON line; take the first line
	// that parses.
	for _, line := range strings.Split(output, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || line[0] != '{' {
			continue
		}
		if err := json.Unmarshal([]byte(line), &meta); err == nil {
			return meta, nil
		}
	}
	return meta, fmt.Errorf("fetch metadata: no JSON payload in output: %s", summarize(output))
}

// Download fetches the video into destDir and returns the path of the
// downloaded file. The filename is fixed to video.<ext> so resume can find
// prior downloads without guessing titles.
func (s *Service) Download(ctx context.Context, sourceURL, destDir string) (string, error) {
	if strings.TrimSpace(sourceURL) == "" {
		return "", errors.New("download: source url required")
	}
	if destDir == "" {
		return "", errors.New("download: destination directory required")
	}
	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return "", fmt.Errorf("download: ensure dest dir: %w", err)
	}

	template := filepath.Join(destDir, "video.%(ext)s")
	args := []string{
		"--no-playlist",
		"--no-progress",
		"-f", s.cfg.Format,
		"--merge-output-format", "mp4",
		"-o", template,
		sourceURL,
	}
	if _, err := s.run(ctx, args...); err != nil {
		return "", fmt.Errorf("download: %w", err)
	}

	matches, err := filepath.Glob(filepath.Join(destDir, "video.*"))
	if err != nil {
		return "", fmt.Errorf("download: glob output: %w", err)
	}
	for _, match := range matches {
		if ext := strings.ToLower(filepath.Ext(match)); ext == ".part" || ext == ".ytdl" {
			continue
		}
		return match, nil
	}
	return "", errors.New("download: yt-dlp reported success but no output file found")
}

// HealthCheck verifies the yt-dlp binary is resolvable.
func (s *Service) HealthCheck(_ context.Context) error {
	if _, err := exec.LookPath(s.cfg.Binary); err != nil {
		return fmt.Errorf("yt-dlp health: %w", err)
	}
	return nil
}

func summarize(output string) string {
	cleaned := strings.Join(strings.Fields(output), " ")
	const limit = 160
	if len(cleaned) > limit {
		return cleaned[:limit] + "..."
	}
	if cleaned == "" {
		return "<empty>"
	}
	return cleaned
}
