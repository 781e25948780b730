// Package whisperx runs WhisperX through uvx for the local transcription
// source. It extracts mono 16kHz WAV audio with ffmpeg, invokes WhisperX with
// a per-call model tier, and loads the JSON output including per-segment
// average log-probabilities used for confidence-based escalation.
package whisperx
