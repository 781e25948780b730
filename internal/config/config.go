package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory configuration.
type Paths struct {
	StagingDir string `toml:"staging_dir"`
	OutputDir  string `toml:"output_dir"`
	LogDir     string `toml:"log_dir"`
}

// Pipeline contains target-language and reconciliation settings shared by the
// transcription, enhancement, and script stages.
type Pipeline struct {
	// TargetLanguage is a BCP 47 tag for the dubbed output (e.g. "hi", "es").
	TargetLanguage string `toml:"target_language"`
	// TargetScript is the Unicode script name the sanitizer allows
	// (e.g. "Devanagari", "Latin"). Derived from TargetLanguage when empty.
	TargetScript string `toml:"target_script"`
	// PreferSource picks the authoritative transcript when several sources
	// succeed: "secondary" (local model) or "primary" (hosted service).
	PreferSource string `toml:"prefer_source"`
	// ClosingLine is appended to every generated script.
	ClosingLine string `toml:"closing_line"`
	// ExtraDenyPhrases extends the built-in sanitizer boilerplate deny-list.
	ExtraDenyPhrases []string `toml:"extra_deny_phrases"`
}

// Download contains settings for the yt-dlp ingestion stage.
type Download struct {
	Format         string `toml:"format"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// Transcription contains the dual-source transcription settings.
type Transcription struct {
	// Primary: hosted transcription API.
	PrimaryEnabled bool   `toml:"primary_enabled"`
	PrimaryAPIKey  string `toml:"primary_api_key"`
	PrimaryBaseURL string `toml:"primary_base_url"`
	PrimaryModel   string `toml:"primary_model"`
	// Secondary: local whisper model run through the whisperx runner.
	LocalEnabled bool   `toml:"local_enabled"`
	LocalModel   string `toml:"local_model"`
	// MaxLocalModel caps confidence-retry escalation (inclusive).
	MaxLocalModel string `toml:"max_local_model"`
	CUDAEnabled   bool   `toml:"cuda_enabled"`
	// Visual: optional frame analysis via a vision-capable model.
	VisualEnabled      bool    `toml:"visual_enabled"`
	VisualFrameSeconds int     `toml:"visual_frame_seconds"`
	SourceLanguage     string  `toml:"source_language"`
	ConfidenceLogProb  float64 `toml:"confidence_log_prob"`
	SourceTimeout      int     `toml:"source_timeout_seconds"`
}

// LLM contains shared AI-completion connection settings.
type LLM struct {
	APIKey         string `toml:"api_key"`
	BaseURL        string `toml:"base_url"`
	Model          string `toml:"model"`
	Referer        string `toml:"referer"`
	Title          string `toml:"title"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// TTS contains speech-synthesis service settings.
type TTS struct {
	APIKey         string `toml:"api_key"`
	BaseURL        string `toml:"base_url"`
	Model          string `toml:"model"`
	Voice          string `toml:"voice"`
	StylePrompt    string `toml:"style_prompt"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// Watermark contains moving-overlay settings for the assembly stage.
type Watermark struct {
	Enabled         bool    `toml:"enabled"`
	Text            string  `toml:"text"`
	Opacity         float64 `toml:"opacity"`
	FontSize        int     `toml:"font_size"`
	IntervalSeconds int     `toml:"interval_seconds"`
}

// Storage contains S3-compatible artifact storage settings. When disabled all
// artifacts stay under Paths.OutputDir.
type Storage struct {
	Enabled       bool   `toml:"enabled"`
	Endpoint      string `toml:"endpoint"`
	Region        string `toml:"region"`
	Bucket        string `toml:"bucket"`
	AccessKey     string `toml:"access_key"`
	SecretKey     string `toml:"secret_key"`
	PublicBaseURL string `toml:"public_base_url"`
}

// Sheets contains the spreadsheet row-upsert webhook used for best-effort
// publish bookkeeping.
type Sheets struct {
	Enabled        bool   `toml:"enabled"`
	WebhookURL     string `toml:"webhook_url"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// Notifications contains ntfy push notification settings.
type Notifications struct {
	NtfyTopic      string `toml:"ntfy_topic"`
	RequestTimeout int    `toml:"request_timeout"`
	Errors         bool   `toml:"errors"`
	Completion     bool   `toml:"completion"`
	Review         bool   `toml:"review"`
}

// Workflow contains daemon timing, per-stage timeouts, and sweep intervals.
type Workflow struct {
	QueuePollInterval  int `toml:"queue_poll_interval"`
	ErrorRetryInterval int `toml:"error_retry_interval"`
	HeartbeatInterval  int `toml:"heartbeat_interval"`
	HeartbeatTimeout   int `toml:"heartbeat_timeout"`
	// SweepInterval is the cron cadence (seconds) for the stuck-stage sweeper.
	SweepInterval int `toml:"sweep_interval"`
	// Per-stage execution timeouts in seconds. A stage that exceeds its
	// timeout is abandoned and marked failed.
	DownloadTimeout   int `toml:"download_timeout"`
	TranscribeTimeout int `toml:"transcribe_timeout"`
	EnhanceTimeout    int `toml:"enhance_timeout"`
	ScriptTimeout     int `toml:"script_timeout"`
	SynthesizeTimeout int `toml:"synthesize_timeout"`
	AssembleTimeout   int `toml:"assemble_timeout"`
	// MediaTimeout bounds each single ffmpeg/ffprobe invocation.
	MediaTimeout int `toml:"media_timeout"`
}

// Logging contains log output configuration.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for redub. It is constructed
// once at process start and passed explicitly into the orchestrator and stage
// handlers; nothing reads settings ad hoc at call sites.
type Config struct {
	Paths         Paths         `toml:"paths"`
	Pipeline      Pipeline      `toml:"pipeline"`
	Download      Download      `toml:"download"`
	Transcription Transcription `toml:"transcription"`
	LLM           LLM           `toml:"llm"`
	TTS           TTS           `toml:"tts"`
	Watermark     Watermark     `toml:"watermark"`
	Storage       Storage       `toml:"storage"`
	Sheets        Sheets        `toml:"sheets"`
	Notifications Notifications `toml:"notifications"`
	Workflow      Workflow      `toml:"workflow"`
	Logging       Logging       `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/redub/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned config
// has all path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := expandPath("~/.config/redub/config.toml")
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("redub.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates required directories for daemon operation.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.StagingDir, c.Paths.LogDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	if strings.TrimSpace(c.Paths.OutputDir) != "" {
		// Best-effort so config load survives offline external storage.
		_ = os.MkdirAll(c.Paths.OutputDir, 0o755)
	}
	return nil
}

// FFmpegBinary returns the ffmpeg executable name used by media stages.
func (c *Config) FFmpegBinary() string {
	return "ffmpeg"
}

// FFprobeBinary returns the ffprobe executable name used for media probing.
func (c *Config) FFprobeBinary() string {
	return "ffprobe"
}

// YtdlpBinary returns the yt-dlp executable name used by the download stage.
func (c *Config) YtdlpBinary() string {
	return "yt-dlp"
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}
	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}

// LLMConfig contains common AI-completion settings used across features.
type LLMConfig struct {
	APIKey         string
	BaseURL        string
	Model          string
	Referer        string
	Title          string
	TimeoutSeconds int
}

// GetLLM returns the shared AI-completion connection settings.
func (c *Config) GetLLM() LLMConfig {
	return LLMConfig{
		APIKey:         strings.TrimSpace(c.LLM.APIKey),
		BaseURL:        strings.TrimSpace(c.LLM.BaseURL),
		Model:          strings.TrimSpace(c.LLM.Model),
		Referer:        strings.TrimSpace(c.LLM.Referer),
		Title:          strings.TrimSpace(c.LLM.Title),
		TimeoutSeconds: c.LLM.TimeoutSeconds,
	}
}
