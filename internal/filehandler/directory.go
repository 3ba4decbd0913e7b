package filehandler

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/rs/zerolog/log"
)

// ScanOptions configures directory scanning behavior.
type ScanOptions struct {
	// MaxDepth limits recursion depth. 0 = unlimited, 1 = top-level only.
	MaxDepth int

	// Limit caps the number of files returned. 0 = unlimited.
	Limit int

	// SkipDirs lists directory base names that are never descended into.
	// Hidden directories (leading ".") are always skipped.
	SkipDirs []string
}

// ScanDirectoryMedia scans a directory for all supported media files (images AND videos).
// This is a convenience wrapper that calls ScanDirectoryMediaWithOptions with default options.
func ScanDirectoryMedia(dirPath string) ([]*MediaFile, error) {
	return ScanDirectoryMediaWithOptions(dirPath, ScanOptions{})
}

// ScanDirectoryMediaWithOptions scans a directory for photos and videos.
// Recursive scanning is enabled by default (MaxDepth=0 means unlimited).
// Symlinks to files are followed; symlinks to directories are skipped to prevent infinite loops.
// Files are sorted by path for consistent ordering.
func ScanDirectoryMediaWithOptions(dirPath string, opts ScanOptions) ([]*MediaFile, error) {
	log.Debug().
		Str("path", dirPath).
		Int("max_depth", opts.MaxDepth).
		Int("limit", opts.Limit).
		Msg("Scanning directory for media (images + videos)")

	info, err := os.Stat(dirPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("directory not found: %s", dirPath)
		}
		return nil, fmt.Errorf("failed to stat directory: %w", err)
	}

	if !info.IsDir() {
		return nil, fmt.Errorf("path is not a directory: %s", dirPath)
	}

	// Absolute path keeps the depth calculation consistent
	absPath, err := filepath.Abs(dirPath)
	if err != nil {
		return nil, fmt.Errorf("failed to get absolute path: %w", err)
	}
	baseDepth := strings.Count(absPath, string(os.PathSeparator))

	skip := make(map[string]bool, len(opts.SkipDirs))
	for _, name := range opts.SkipDirs {
		skip[name] = true
	}

	var mediaFiles []*MediaFile
	var imageCount, videoCount int
	limitReached := false

	err = filepath.WalkDir(absPath, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			log.Warn().Err(err).Str("path", path).Msg("Error accessing path, skipping")
			return nil
		}

		if d.IsDir() {
			if path == absPath {
				return nil
			}
			if strings.HasPrefix(d.Name(), ".") || skip[d.Name()] {
				return fs.SkipDir
			}
			if opts.MaxDepth > 0 {
				currentDepth := strings.Count(path, string(os.PathSeparator)) - baseDepth
				if currentDepth >= opts.MaxDepth {
					return fs.SkipDir
				}
			}
			return nil
		}

		// Handle symlinks: follow file symlinks, skip directory symlinks
		if d.Type()&fs.ModeSymlink != 0 {
			linkTarget, err := filepath.EvalSymlinks(path)
			if err != nil {
				log.Warn().Err(err).Str("path", path).Msg("Failed to resolve symlink, skipping")
				return nil
			}

			targetInfo, err := os.Stat(linkTarget)
			if err != nil {
				log.Warn().Err(err).Str("path", path).Msg("Failed to stat symlink target, skipping")
				return nil
			}

			if targetInfo.IsDir() {
				log.Debug().Str("path", path).Msg("Skipping symlink to directory")
				return nil
			}
		}

		if opts.Limit > 0 && len(mediaFiles) >= opts.Limit {
			limitReached = true
			return fs.SkipAll
		}

		ext := strings.ToLower(filepath.Ext(d.Name()))
		if !IsSupported(ext) {
			return nil
		}

		mediaFile, err := LoadMediaFile(path)
		if err != nil {
			log.Warn().Err(err).Str("file", d.Name()).Msg("Failed to load media file, skipping")
			return nil
		}

		if IsImage(ext) {
			imageCount++
		} else {
			videoCount++
		}

		mediaFiles = append(mediaFiles, mediaFile)
		return nil
	})

	if err != nil {
		return nil, fmt.Errorf("failed to walk directory: %w", err)
	}

	sort.Slice(mediaFiles, func(i, j int) bool {
		return mediaFiles[i].Path < mediaFiles[j].Path
	})

	logEvent := log.Debug().
		Int("total_media", len(mediaFiles)).
		Int("images", imageCount).
		Int("videos", videoCount).
		Str("directory", dirPath)

	if limitReached {
		logEvent.Bool("limit_reached", true)
	}

	logEvent.Msg("Directory media scan complete")

	return mediaFiles, nil
}
