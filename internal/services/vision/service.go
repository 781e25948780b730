// Package vision reads burned-in captions off sampled video frames with a
// multimodal LLM. It is the tertiary transcription source, used when the
// audio track is missing, silent, or both audio sources failed.
package vision

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"
)

const (
	defaultFrameSeconds = 2
	defaultFFmpeg       = "ffmpeg"

	systemPrompt = "You read subtitles and on-screen captions from video frames. " +
		"Transcribe the caption text in the order the frames appear, one line per caption. " +
		"Skip watermarks, usernames, and UI elements. If a caption repeats across frames, output it once. " +
		"Respond with the caption lines only, no commentary."
)

// Captioner is the multimodal completion surface the service needs. The llm
// package's Client satisfies it.
type Captioner interface {
	CompleteVision(ctx context.Context, systemPrompt, userPrompt string, imagesPNG [][]byte) (string, error)
}

// Config captures the runtime settings for frame sampling.
type Config struct {
	// FrameSeconds is the sampling interval between extracted frames.
	FrameSeconds int
	FFmpegBinary string
	// MaxFrames caps how many frames are sent to the model per request.
	MaxFrames int
}

// Service samples frames and asks the captioner to read them.
type Service struct {
	cfg           Config
	captioner     Captioner
	commandRunner func(ctx context.Context, name string, args ...string) error
}

// NewService creates a vision transcription service.
func NewService(cfg Config, captioner Captioner) *Service {
	if cfg.FrameSeconds <= 0 {
		cfg.FrameSeconds = defaultFrameSeconds
	}
	if cfg.FFmpegBinary == "" {
		cfg.FFmpegBinary = defaultFFmpeg
	}
	if cfg.MaxFrames <= 0 {
		cfg.MaxFrames = 30
	}
	return &Service{cfg: cfg, captioner: captioner}
}

// WithCommandRunner sets a custom command runner (for testing).
func (s *Service) WithCommandRunner(runner func(ctx context.Context, name string, args ...string) error) {
	s.commandRunner = runner
}

func (s *Service) run(ctx context.Context, name string, args ...string) error {
	if s.commandRunner != nil {
		return s.commandRunner(ctx, name, args...)
	}
	cmd := exec.CommandContext(ctx, name, args...) //nolint:gosec
	if output, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("%s: %w: %s", name, err, strings.TrimSpace(string(output)))
	}
	return nil
}

// ExtractFrames samples one frame every FrameSeconds into workDir and returns
// the frame paths in timeline order.
func (s *Service) ExtractFrames(ctx context.Context, videoPath, workDir string) ([]string, error) {
	if strings.TrimSpace(videoPath) == "" {
		return nil, errors.New("extract frames: video path required")
	}
	if err := os.MkdirAll(workDir, 0o755); err != nil {
		return nil, fmt.Errorf("extract frames: ensure work dir: %w", err)
	}

	pattern := filepath.Join(workDir, "frame_%04d.png")
	args := []string{
		"-y",
		"-hide_banner",
		"-loglevel", "error",
		"-i", videoPath,
		"-vf", fmt.Sprintf("fps=1/%d", s.cfg.FrameSeconds),
		pattern,
	}
	if err := s.run(ctx, s.cfg.FFmpegBinary, args...); err != nil {
		return nil, fmt.Errorf("extract frames: %w", err)
	}

	matches, err := filepath.Glob(filepath.Join(workDir, "frame_*.png"))
	if err != nil {
		return nil, fmt.Errorf("extract frames: glob output: %w", err)
	}
	sort.Strings(matches)
	return matches, nil
}

// Transcribe samples frames from the video and returns the caption text the
// model read off them. An empty result with nil error means the model found
// no captions.
func (s *Service) Transcribe(ctx context.Context, videoPath, workDir string) (string, error) {
	if s.captioner == nil {
		return "", errors.New("vision transcribe: captioner not configured")
	}
	frames, err := s.ExtractFrames(ctx, videoPath, workDir)
	if err != nil {
		return "", err
	}
	if len(frames) == 0 {
		return "", errors.New("vision transcribe: no frames extracted")
	}
	if len(frames) > s.cfg.MaxFrames {
		frames = thinFrames(frames, s.cfg.MaxFrames)
	}

	images := make([][]byte, 0, len(frames))
	for _, frame := range frames {
		data, err := os.ReadFile(frame)
		if err != nil {
			return "", fmt.Errorf("vision transcribe: read frame: %w", err)
		}
		images = append(images, data)
	}

	userPrompt := fmt.Sprintf("These %d frames were sampled every %d seconds from a short video, in order.", len(images), s.cfg.FrameSeconds)
	text, err := s.captioner.CompleteVision(ctx, systemPrompt, userPrompt, images)
	if err != nil {
		return "", fmt.Errorf("vision transcribe: %w", err)
	}
	return strings.TrimSpace(text), nil
}

// thinFrames picks max evenly spaced frames, always keeping the first and last.
func thinFrames(frames []string, max int) []string {
	if len(frames) <= max || max <= 0 {
		return frames
	}
	picked := make([]string, 0, max)
	step := float64(len(frames)-1) / float64(max-1)
	for i := 0; i < max; i++ {
		picked = append(picked, frames[int(float64(i)*step+0.5)])
	}
	return picked
}
