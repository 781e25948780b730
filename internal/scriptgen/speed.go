package scriptgen

const (
	// wordsPerSecond is the natural narration pace the speed math assumes.
	wordsPerSecond = 2.5
	// durationHeadroom leaves room so speech lands just inside the video.
	durationHeadroom = 0.95

	MinSpeed = 0.8
	MaxSpeed = 1.5
)

// SpeechSpeed returns the TTS speed multiplier that fits wordCount words into
// targetSeconds of video. Without a usable target duration the speed is
// neutral.
func SpeechSpeed(wordCount int, targetSeconds float64) float64 {
	if targetSeconds <= 0 || wordCount <= 0 {
		return 1.0
	}
	naturalSeconds := float64(wordCount) / wordsPerSecond
	speed := naturalSeconds / (targetSeconds * durationHeadroom)
	if speed < MinSpeed {
		return MinSpeed
	}
	if speed > MaxSpeed {
		return MaxSpeed
	}
	return speed
}
