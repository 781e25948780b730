// Package assembly rebuilds the final video: the original visuals, the
// synthesized narration, and optionally a moving text watermark.
package assembly

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"redub/internal/config"
	"redub/internal/logging"
	"redub/internal/services"
)

type commandRunner func(ctx context.Context, name string, args ...string) (string, error)

// Pipeline drives the ffmpeg re-assembly steps for one job.
type Pipeline struct {
	ffmpeg    string
	watermark config.Watermark
	timeout   time.Duration
	runner    commandRunner
	logger    *slog.Logger
}

func NewPipeline(cfg *config.Config, logger *slog.Logger) *Pipeline {
	if logger == nil {
		logger = logging.NewNop()
	}
	timeout := time.Duration(cfg.Workflow.MediaTimeout) * time.Second
	if timeout <= 0 {
		timeout = 5 * time.Minute
	}
	return &Pipeline{
		ffmpeg:    cfg.FFmpegBinary(),
		watermark: cfg.Watermark,
		timeout:   timeout,
		runner:    runCommand,
		logger:    logging.NewComponentLogger(logger, "assembly"),
	}
}

// WithCommandRunner replaces the external command execution, for tests.
func (p *Pipeline) WithCommandRunner(runner func(ctx context.Context, name string, args ...string) (string, error)) {
	p.runner = runner
}

// StripAudio writes a silent copy of the source video. The video stream is
// copied, never re-encoded.
func (p *Pipeline) StripAudio(ctx context.Context, videoPath, dest string) error {
	return p.run(ctx, "strip audio",
		"-y", "-i", videoPath, "-c:v", "copy", "-an", dest)
}

// Assemble muxes the silent video with the narration and applies the
// watermark when enabled. Intermediate files live next to dest and are
// removed before return on every path.
func (p *Pipeline) Assemble(ctx context.Context, silentVideo, speechPath, dest string) error {
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return services.Wrap(services.ErrExternalTool, "assemble", "prepare output", "", err)
	}
	combined := dest
	if p.watermark.Enabled {
		combined = strings.TrimSuffix(dest, filepath.Ext(dest)) + ".nowm.mp4"
		defer os.Remove(combined)
	}

	err := p.run(ctx, "mux narration",
		"-y", "-i", silentVideo, "-i", speechPath,
		"-c:v", "copy", "-c:a", "aac", "-shortest", combined)
	if err != nil {
		return err
	}
	if !p.watermark.Enabled {
		return nil
	}

	if err := p.applyWatermark(ctx, combined, dest); err != nil {
		// Watermarking is cosmetic; ship the plain mux rather than fail.
		p.logger.Warn("watermark failed, keeping unwatermarked output", logging.Args(logging.Error(err))...)
		if err := os.Rename(combined, dest); err != nil {
			return services.Wrap(services.ErrExternalTool, "assemble", "fallback copy", "", err)
		}
	}
	return nil
}

func (p *Pipeline) applyWatermark(ctx context.Context, source, dest string) error {
	return p.run(ctx, "watermark",
		"-y", "-i", source, "-vf", p.watermarkFilter(), "-c:a", "copy", dest)
}

// watermarkFilter builds a drawtext expression that drifts the text across
// the frame, one sweep per configured interval.
func (p *Pipeline) watermarkFilter() string {
	interval := p.watermark.IntervalSeconds
	if interval <= 0 {
		interval = 8
	}
	text := strings.ReplaceAll(p.watermark.Text, "'", "")
	text = strings.ReplaceAll(text, ":", "\\:")
	return fmt.Sprintf(
		"drawtext=text='%s':fontsize=%d:fontcolor=white@%.2f:x=(w-text_w)*abs(sin(t/%d)):y=(h-text_h)*abs(cos(t/%d))",
		text, p.watermark.FontSize, p.watermark.Opacity, interval, interval)
}

func (p *Pipeline) run(ctx context.Context, step string, args ...string) error {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()
	output, err := p.runner(ctx, p.ffmpeg, args...)
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return services.Wrap(services.ErrTimeout, "assemble", step, fmt.Sprintf("timed out after %s", p.timeout), nil)
		}
		detail := summarize(output)
		if detail != "" {
			err = fmt.Errorf("%w: %s", err, detail)
		}
		return services.Wrap(services.ErrExternalTool, "assemble", step, "", err)
	}
	return nil
}

func runCommand(ctx context.Context, name string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	output, err := cmd.CombinedOutput()
	return string(output), err
}

func summarize(output string) string {
	lines := strings.Split(strings.TrimSpace(output), "\n")
	if len(lines) == 0 {
		return ""
	}
	last := strings.TrimSpace(lines[len(lines)-1])
	if len(last) > 300 {
		last = last[:300]
	}
	return last
}
