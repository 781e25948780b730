// Package llm provides an OpenRouter-compatible chat client.
//
// This package is used by:
//   - Enhancement stage: clean and reconcile merged transcripts (Complete)
//   - Script stage: generate the narration script (Complete)
//   - Visual transcription source: read burned-in captions off video frames
//     (CompleteVision)
//
// # Configuration
//
// Requires api_key, model, and optionally base_url, referer, title, timeout.
//
// # Entry Points
//
// NewClient: construct client from Config.
// Client.Complete: send system/user prompts, receive plain text.
// Client.CompleteJSON: send system/user prompts, receive JSON response.
// Client.CompleteVision: send prompts plus PNG frames, receive plain text.
// Client.HealthCheck: verify API key and model availability.
//
// # Retry Behaviour
//
// The client retries on HTTP 408/429/5xx errors and network timeouts with
// exponential backoff (base 1s, max 10s, up to 5 attempts by default).
// Context cancellation aborts retries immediately.
package llm
