// Package staging manages per-job working directories under the configured
// staging root. Every job gets one directory ("job-<id>") holding the
// downloaded video, extracted audio, transcripts, narration, and assembly
// intermediates until the final file moves to the output directory.
package staging

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

const jobDirPrefix = "job-"

// JobDir returns the working directory reserved for one job.
func JobDir(stagingRoot string, jobID int64) string {
	return filepath.Join(stagingRoot, fmt.Sprintf("%s%d", jobDirPrefix, jobID))
}

// EnsureJobDir creates the job's working directory if needed.
func EnsureJobDir(stagingRoot string, jobID int64) (string, error) {
	dir := JobDir(stagingRoot, jobID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create job staging dir: %w", err)
	}
	return dir, nil
}

// RemoveJobDir deletes the job's working directory and everything in it.
func RemoveJobDir(stagingRoot string, jobID int64) error {
	return os.RemoveAll(JobDir(stagingRoot, jobID))
}

// jobIDFromDirName parses "job-42" into 42; ok is false for anything else.
func jobIDFromDirName(name string) (int64, bool) {
	if !strings.HasPrefix(name, jobDirPrefix) {
		return 0, false
	}
	id, err := strconv.ParseInt(strings.TrimPrefix(name, jobDirPrefix), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}
