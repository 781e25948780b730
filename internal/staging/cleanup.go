package staging

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"redub/internal/logging"
)

// CleanResult contains the outcome of a cleanup pass.
type CleanResult struct {
	Removed []string
	Errors  []CleanupError
}

// CleanupError pairs a directory path with its cleanup error.
type CleanupError struct {
	Path  string
	Error error
}

// CleanStale removes job directories older than maxAge, regardless of queue
// state. Used by the sweeper to reclaim disk from abandoned runs.
func CleanStale(stagingRoot string, maxAge time.Duration, logger *slog.Logger) CleanResult {
	result := CleanResult{}

	stagingRoot = strings.TrimSpace(stagingRoot)
	if stagingRoot == "" {
		return result
	}

	entries, err := os.ReadDir(stagingRoot)
	if err != nil {
		if !os.IsNotExist(err) {
			result.Errors = append(result.Errors, CleanupError{Path: stagingRoot, Error: err})
		}
		return result
	}

	cutoff := time.Now().Add(-maxAge)

	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		dirPath := filepath.Join(stagingRoot, entry.Name())
		info, err := entry.Info()
		if err != nil {
			result.Errors = append(result.Errors, CleanupError{Path: dirPath, Error: err})
			continue
		}
		if !info.ModTime().Before(cutoff) {
			continue
		}
		if err := os.RemoveAll(dirPath); err != nil {
			result.Errors = append(result.Errors, CleanupError{Path: dirPath, Error: err})
			if logger != nil {
				logger.Warn("failed to remove stale staging directory",
					logging.String("path", dirPath),
					logging.Error(err),
				)
			}
		} else {
			result.Removed = append(result.Removed, dirPath)
			if logger != nil {
				logger.Info("removed stale staging directory",
					logging.String("path", dirPath),
					logging.Duration("age", time.Since(info.ModTime())),
				)
			}
		}
	}

	return result
}

// CleanOrphaned removes job directories whose job no longer exists in the
// queue.
func CleanOrphaned(stagingRoot string, activeJobs map[int64]struct{}, logger *slog.Logger) CleanResult {
	result := CleanResult{}

	stagingRoot = strings.TrimSpace(stagingRoot)
	if stagingRoot == "" {
		return result
	}

	entries, err := os.ReadDir(stagingRoot)
	if err != nil {
		if !os.IsNotExist(err) {
			result.Errors = append(result.Errors, CleanupError{Path: stagingRoot, Error: err})
		}
		return result
	}

	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		jobID, ok := jobIDFromDirName(entry.Name())
		if !ok {
			// Not one of ours; leave it alone.
			continue
		}
		if _, active := activeJobs[jobID]; active {
			continue
		}
		dirPath := filepath.Join(stagingRoot, entry.Name())
		if err := os.RemoveAll(dirPath); err != nil {
			result.Errors = append(result.Errors, CleanupError{Path: dirPath, Error: err})
			if logger != nil {
				logger.Warn("failed to remove orphaned staging directory",
					logging.String("path", dirPath),
					logging.Error(err),
				)
			}
		} else {
			result.Removed = append(result.Removed, dirPath)
			if logger != nil {
				logger.Info("removed orphaned staging directory", logging.String("path", dirPath))
			}
		}
	}

	return result
}

// DirInfo contains metadata about one staging directory.
type DirInfo struct {
	Name    string
	Path    string
	ModTime time.Time
	Size    int64
}

// ListDirectories returns all staging directories with their metadata.
func ListDirectories(stagingRoot string) ([]DirInfo, error) {
	stagingRoot = strings.TrimSpace(stagingRoot)
	if stagingRoot == "" {
		return nil, nil
	}

	entries, err := os.ReadDir(stagingRoot)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var dirs []DirInfo
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		dirPath := filepath.Join(stagingRoot, entry.Name())
		size, _ := dirSize(dirPath)
		dirs = append(dirs, DirInfo{
			Name:    entry.Name(),
			Path:    dirPath,
			ModTime: info.ModTime(),
			Size:    size,
		})
	}

	return dirs, nil
}

func dirSize(path string) (int64, error) {
	var size int64
	err := filepath.Walk(path, func(_ string, info os.FileInfo, err error) error {
		if err != nil {
			return nil
		}
		if !info.IsDir() {
			size += info.Size()
		}
		return nil
	})
	return size, err
}
