package config

const (
	defaultStagingDir = "~/.local/share/redub/staging"
	defaultOutputDir  = "~/redub/output"
	defaultLogDir     = "~/.local/share/redub/logs"

	defaultTargetLanguage = "hi"
	defaultPreferSource   = "secondary"
	defaultClosingLine    = "Follow for more stories like this."

	defaultDownloadFormat  = "mp4"
	defaultDownloadTimeout = 900

	defaultPrimaryBaseURL     = "https://api.openai.com/v1/audio/transcriptions"
	defaultPrimaryModel       = "whisper-1"
	defaultLocalModel         = "small"
	defaultMaxLocalModel      = "large-v3"
	defaultVisualFrameSeconds = 10
	defaultConfidenceLogProb  = -1.5
	defaultSourceTimeout      = 600

	defaultLLMBaseURL        = "https://openrouter.ai/api/v1/chat/completions"
	defaultLLMModel          = "google/gemini-3-flash-preview"
	defaultLLMReferer        = "https://github.com/redub/redub"
	defaultLLMTitle          = "Redub Pipeline"
	defaultLLMTimeoutSeconds = 120

	defaultTTSBaseURL        = "https://api.openai.com/v1/audio/speech"
	defaultTTSModel          = "gpt-4o-mini-tts"
	defaultTTSVoice          = "alloy"
	defaultTTSTimeoutSeconds = 180

	defaultWatermarkOpacity  = 0.35
	defaultWatermarkFontSize = 28
	defaultWatermarkInterval = 8

	defaultSheetsTimeout = 15

	defaultNotifyRequestTimeout = 10

	defaultQueuePollInterval  = 5
	defaultErrorRetryInterval = 10
	defaultHeartbeatInterval  = 15
	defaultHeartbeatTimeout   = 120
	defaultSweepInterval      = 300
	defaultDownloadStageTO    = 1200
	defaultTranscribeStageTO  = 1800
	defaultEnhanceStageTO     = 600
	defaultScriptStageTO      = 300
	defaultSynthesizeStageTO  = 600
	defaultAssembleStageTO    = 900
	defaultMediaTimeout       = 300

	defaultLogFormat = "console"
	defaultLogLevel  = "info"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			StagingDir: defaultStagingDir,
			OutputDir:  defaultOutputDir,
			LogDir:     defaultLogDir,
		},
		Pipeline: Pipeline{
			TargetLanguage: defaultTargetLanguage,
			PreferSource:   defaultPreferSource,
			ClosingLine:    defaultClosingLine,
		},
		Download: Download{
			Format:         defaultDownloadFormat,
			TimeoutSeconds: defaultDownloadTimeout,
		},
		Transcription: Transcription{
			PrimaryEnabled:     true,
			PrimaryBaseURL:     defaultPrimaryBaseURL,
			PrimaryModel:       defaultPrimaryModel,
			LocalEnabled:       true,
			LocalModel:         defaultLocalModel,
			MaxLocalModel:      defaultMaxLocalModel,
			VisualEnabled:      false,
			VisualFrameSeconds: defaultVisualFrameSeconds,
			ConfidenceLogProb:  defaultConfidenceLogProb,
			SourceTimeout:      defaultSourceTimeout,
		},
		LLM: LLM{
			BaseURL:        defaultLLMBaseURL,
			Model:          defaultLLMModel,
			Referer:        defaultLLMReferer,
			Title:          defaultLLMTitle,
			TimeoutSeconds: defaultLLMTimeoutSeconds,
		},
		TTS: TTS{
			BaseURL:        defaultTTSBaseURL,
			Model:          defaultTTSModel,
			Voice:          defaultTTSVoice,
			TimeoutSeconds: defaultTTSTimeoutSeconds,
		},
		Watermark: Watermark{
			Opacity:         defaultWatermarkOpacity,
			FontSize:        defaultWatermarkFontSize,
			IntervalSeconds: defaultWatermarkInterval,
		},
		Sheets: Sheets{
			TimeoutSeconds: defaultSheetsTimeout,
		},
		Notifications: Notifications{
			RequestTimeout: defaultNotifyRequestTimeout,
			Errors:         true,
			Completion:     true,
			Review:         true,
		},
		Workflow: Workflow{
			QueuePollInterval:  defaultQueuePollInterval,
			ErrorRetryInterval: defaultErrorRetryInterval,
			HeartbeatInterval:  defaultHeartbeatInterval,
			HeartbeatTimeout:   defaultHeartbeatTimeout,
			SweepInterval:      defaultSweepInterval,
			DownloadTimeout:    defaultDownloadStageTO,
			TranscribeTimeout:  defaultTranscribeStageTO,
			EnhanceTimeout:     defaultEnhanceStageTO,
			ScriptTimeout:      defaultScriptStageTO,
			SynthesizeTimeout:  defaultSynthesizeStageTO,
			AssembleTimeout:    defaultAssembleStageTO,
			MediaTimeout:       defaultMediaTimeout,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
