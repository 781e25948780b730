package config

import (
	"fmt"
	"os"
	"strings"

	"golang.org/x/text/language"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	if err := c.normalizePipeline(); err != nil {
		return err
	}
	c.normalizeDownload()
	c.normalizeTranscription()
	c.normalizeLLM()
	c.normalizeTTS()
	c.normalizeWatermark()
	c.normalizeStorage()
	c.normalizeSheets()
	c.normalizeWorkflow()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if c.Paths.StagingDir, err = expandPath(c.Paths.StagingDir); err != nil {
		return fmt.Errorf("paths.staging_dir: %w", err)
	}
	if c.Paths.OutputDir, err = expandPath(c.Paths.OutputDir); err != nil {
		return fmt.Errorf("paths.output_dir: %w", err)
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	return nil
}

// scriptNames maps ISO 15924 script codes (as produced by x/text) to the
// Unicode script names the sanitizer uses with unicode.Scripts.
var scriptNames = map[string]string{
	"Latn": "Latin",
	"Deva": "Devanagari",
	"Cyrl": "Cyrillic",
	"Arab": "Arabic",
	"Hang": "Hangul",
	"Hans": "Han",
	"Hant": "Han",
	"Jpan": "Han",
	"Thai": "Thai",
	"Taml": "Tamil",
	"Telu": "Telugu",
	"Beng": "Bengali",
	"Grek": "Greek",
	"Hebr": "Hebrew",
}

func (c *Config) normalizePipeline() error {
	c.Pipeline.TargetLanguage = strings.TrimSpace(c.Pipeline.TargetLanguage)
	if c.Pipeline.TargetLanguage == "" {
		c.Pipeline.TargetLanguage = defaultTargetLanguage
	}
	tag, err := language.Parse(c.Pipeline.TargetLanguage)
	if err != nil {
		return fmt.Errorf("pipeline.target_language: %w", err)
	}
	c.Pipeline.TargetLanguage = tag.String()

	c.Pipeline.TargetScript = strings.TrimSpace(c.Pipeline.TargetScript)
	if c.Pipeline.TargetScript == "" {
		script, _ := tag.Script()
		name, ok := scriptNames[script.String()]
		if !ok {
			return fmt.Errorf("pipeline.target_script: cannot derive script for language %q, set it explicitly", c.Pipeline.TargetLanguage)
		}
		c.Pipeline.TargetScript = name
	}

	c.Pipeline.PreferSource = strings.ToLower(strings.TrimSpace(c.Pipeline.PreferSource))
	if c.Pipeline.PreferSource == "" {
		c.Pipeline.PreferSource = defaultPreferSource
	}
	c.Pipeline.ClosingLine = strings.TrimSpace(c.Pipeline.ClosingLine)
	if c.Pipeline.ClosingLine == "" {
		c.Pipeline.ClosingLine = defaultClosingLine
	}
	return nil
}

func (c *Config) normalizeDownload() {
	c.Download.Format = strings.TrimSpace(c.Download.Format)
	if c.Download.Format == "" {
		c.Download.Format = defaultDownloadFormat
	}
	if c.Download.TimeoutSeconds <= 0 {
		c.Download.TimeoutSeconds = defaultDownloadTimeout
	}
}

func (c *Config) normalizeTranscription() {
	t := &c.Transcription
	t.PrimaryAPIKey = strings.TrimSpace(t.PrimaryAPIKey)
	if t.PrimaryAPIKey == "" {
		if value, ok := os.LookupEnv("OPENAI_API_KEY"); ok {
			t.PrimaryAPIKey = strings.TrimSpace(value)
		}
	}
	t.PrimaryBaseURL = strings.TrimSpace(t.PrimaryBaseURL)
	if t.PrimaryBaseURL == "" {
		t.PrimaryBaseURL = defaultPrimaryBaseURL
	}
	t.PrimaryModel = strings.TrimSpace(t.PrimaryModel)
	if t.PrimaryModel == "" {
		t.PrimaryModel = defaultPrimaryModel
	}
	t.LocalModel = strings.ToLower(strings.TrimSpace(t.LocalModel))
	if t.LocalModel == "" {
		t.LocalModel = defaultLocalModel
	}
	t.MaxLocalModel = strings.ToLower(strings.TrimSpace(t.MaxLocalModel))
	if t.MaxLocalModel == "" {
		t.MaxLocalModel = defaultMaxLocalModel
	}
	if t.VisualFrameSeconds <= 0 {
		t.VisualFrameSeconds = defaultVisualFrameSeconds
	}
	if t.ConfidenceLogProb == 0 {
		t.ConfidenceLogProb = defaultConfidenceLogProb
	}
	if t.SourceTimeout <= 0 {
		t.SourceTimeout = defaultSourceTimeout
	}
	t.SourceLanguage = strings.TrimSpace(t.SourceLanguage)
}

func (c *Config) normalizeLLM() {
	if c.LLM.APIKey == "" {
		if value, ok := os.LookupEnv("OPENROUTER_API_KEY"); ok {
			c.LLM.APIKey = strings.TrimSpace(value)
		}
	}
	c.LLM.BaseURL = strings.TrimSpace(c.LLM.BaseURL)
	if c.LLM.BaseURL == "" {
		c.LLM.BaseURL = defaultLLMBaseURL
	}
	c.LLM.Model = strings.TrimSpace(c.LLM.Model)
	if c.LLM.Model == "" {
		c.LLM.Model = defaultLLMModel
	}
	c.LLM.Referer = strings.TrimSpace(c.LLM.Referer)
	if c.LLM.Referer == "" {
		c.LLM.Referer = defaultLLMReferer
	}
	c.LLM.Title = strings.TrimSpace(c.LLM.Title)
	if c.LLM.Title == "" {
		c.LLM.Title = defaultLLMTitle
	}
	if c.LLM.TimeoutSeconds <= 0 {
		c.LLM.TimeoutSeconds = defaultLLMTimeoutSeconds
	}
}

func (c *Config) normalizeTTS() {
	if c.TTS.APIKey == "" {
		if value, ok := os.LookupEnv("OPENAI_API_KEY"); ok {
			c.TTS.APIKey = strings.TrimSpace(value)
		}
	}
	c.TTS.BaseURL = strings.TrimSpace(c.TTS.BaseURL)
	if c.TTS.BaseURL == "" {
		c.TTS.BaseURL = defaultTTSBaseURL
	}
	c.TTS.Model = strings.TrimSpace(c.TTS.Model)
	if c.TTS.Model == "" {
		c.TTS.Model = defaultTTSModel
	}
	c.TTS.Voice = strings.TrimSpace(c.TTS.Voice)
	if c.TTS.Voice == "" {
		c.TTS.Voice = defaultTTSVoice
	}
	if c.TTS.TimeoutSeconds <= 0 {
		c.TTS.TimeoutSeconds = defaultTTSTimeoutSeconds
	}
}

func (c *Config) normalizeWatermark() {
	if c.Watermark.Opacity <= 0 || c.Watermark.Opacity > 1 {
		c.Watermark.Opacity = defaultWatermarkOpacity
	}
	if c.Watermark.FontSize <= 0 {
		c.Watermark.FontSize = defaultWatermarkFontSize
	}
	if c.Watermark.IntervalSeconds <= 0 {
		c.Watermark.IntervalSeconds = defaultWatermarkInterval
	}
}

func (c *Config) normalizeStorage() {
	s := &c.Storage
	s.Endpoint = strings.TrimSpace(s.Endpoint)
	s.Region = strings.TrimSpace(s.Region)
	s.Bucket = strings.TrimSpace(s.Bucket)
	s.AccessKey = strings.TrimSpace(s.AccessKey)
	if s.AccessKey == "" {
		if value, ok := os.LookupEnv("AWS_ACCESS_KEY_ID"); ok {
			s.AccessKey = strings.TrimSpace(value)
		}
	}
	s.SecretKey = strings.TrimSpace(s.SecretKey)
	if s.SecretKey == "" {
		if value, ok := os.LookupEnv("AWS_SECRET_ACCESS_KEY"); ok {
			s.SecretKey = strings.TrimSpace(value)
		}
	}
	s.PublicBaseURL = strings.TrimRight(strings.TrimSpace(s.PublicBaseURL), "/")
}

func (c *Config) normalizeSheets() {
	c.Sheets.WebhookURL = strings.TrimSpace(c.Sheets.WebhookURL)
	if c.Sheets.TimeoutSeconds <= 0 {
		c.Sheets.TimeoutSeconds = defaultSheetsTimeout
	}
}

func (c *Config) normalizeWorkflow() {
	w := &c.Workflow
	if w.QueuePollInterval <= 0 {
		w.QueuePollInterval = defaultQueuePollInterval
	}
	if w.ErrorRetryInterval <= 0 {
		w.ErrorRetryInterval = defaultErrorRetryInterval
	}
	if w.HeartbeatInterval <= 0 {
		w.HeartbeatInterval = defaultHeartbeatInterval
	}
	if w.HeartbeatTimeout <= 0 {
		w.HeartbeatTimeout = defaultHeartbeatTimeout
	}
	if w.SweepInterval <= 0 {
		w.SweepInterval = defaultSweepInterval
	}
	if w.DownloadTimeout <= 0 {
		w.DownloadTimeout = defaultDownloadStageTO
	}
	if w.TranscribeTimeout <= 0 {
		w.TranscribeTimeout = defaultTranscribeStageTO
	}
	if w.EnhanceTimeout <= 0 {
		w.EnhanceTimeout = defaultEnhanceStageTO
	}
	if w.ScriptTimeout <= 0 {
		w.ScriptTimeout = defaultScriptStageTO
	}
	if w.SynthesizeTimeout <= 0 {
		w.SynthesizeTimeout = defaultSynthesizeStageTO
	}
	if w.AssembleTimeout <= 0 {
		w.AssembleTimeout = defaultAssembleStageTO
	}
	if w.MediaTimeout <= 0 {
		w.MediaTimeout = defaultMediaTimeout
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}
