package config

import (
	"errors"
	"fmt"
	"strings"
	"unicode"
)

// Validate checks semantic constraints that normalization cannot repair.
func (c *Config) Validate() error {
	var problems []string

	if strings.TrimSpace(c.Paths.StagingDir) == "" {
		problems = append(problems, "paths.staging_dir is required")
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		problems = append(problems, "paths.log_dir is required")
	}

	if _, ok := unicode.Scripts[c.Pipeline.TargetScript]; !ok {
		problems = append(problems, fmt.Sprintf("pipeline.target_script: unknown Unicode script %q", c.Pipeline.TargetScript))
	}
	switch c.Pipeline.PreferSource {
	case "primary", "secondary":
	default:
		problems = append(problems, fmt.Sprintf("pipeline.prefer_source: must be \"primary\" or \"secondary\", got %q", c.Pipeline.PreferSource))
	}

	if !c.Transcription.PrimaryEnabled && !c.Transcription.LocalEnabled {
		problems = append(problems, "transcription: at least one of primary_enabled or local_enabled must be true")
	}
	if c.Transcription.ConfidenceLogProb > 0 {
		problems = append(problems, "transcription.confidence_log_prob: must be negative (log probability)")
	}
	if !validLocalModel(c.Transcription.LocalModel) {
		problems = append(problems, fmt.Sprintf("transcription.local_model: unknown model %q", c.Transcription.LocalModel))
	}
	if !validLocalModel(c.Transcription.MaxLocalModel) {
		problems = append(problems, fmt.Sprintf("transcription.max_local_model: unknown model %q", c.Transcription.MaxLocalModel))
	}

	if c.Storage.Enabled {
		if c.Storage.Bucket == "" {
			problems = append(problems, "storage.bucket is required when storage is enabled")
		}
		if c.Storage.Region == "" && c.Storage.Endpoint == "" {
			problems = append(problems, "storage: one of region or endpoint is required when storage is enabled")
		}
	}
	if c.Sheets.Enabled && c.Sheets.WebhookURL == "" {
		problems = append(problems, "sheets.webhook_url is required when sheets sync is enabled")
	}

	if len(problems) > 0 {
		return errors.New("invalid configuration: " + strings.Join(problems, "; "))
	}
	return nil
}

var localModelNames = map[string]struct{}{
	"tiny": {}, "base": {}, "small": {}, "medium": {}, "large-v3": {},
}

func validLocalModel(name string) bool {
	_, ok := localModelNames[name]
	return ok
}
