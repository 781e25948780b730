package whisperx

// Config captures runtime settings for local WhisperX transcription.
type Config struct {
	// Model is the whisper model tier to start with (e.g. "small").
	Model string
	// CUDAEnabled enables GPU acceleration.
	CUDAEnabled bool
}

// WhisperX configuration constants.
const (
	DefaultModel   = "small"
	CUDAIndexURL   = "https://download.pytorch.org/whl/cu128"
	PypiIndexURL   = "https://pypi.org/simple"
	BatchSize      = "4"
	ChunkSize      = "15"
	Temperature    = "0.0"
	OutputFormat   = "json"
	CPUDevice      = "cpu"
	CUDADevice     = "cuda"
	CPUComputeType = "float32"
)

// Command names for external tools.
const (
	UVXCommand    = "uvx"
	FFmpegCommand = "ffmpeg"
)
