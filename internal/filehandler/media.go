// Package filehandler provides media file discovery and metadata extraction
// for directory-backed libraries.
//
// Capture time comes from EXIF for images (evanoberholster/imagemeta) and
// falls back to the file modification time for videos and for images
// without a usable date.
package filehandler

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

// SupportedImageExtensions defines the file extensions treated as photos.
var SupportedImageExtensions = map[string]string{
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".gif":  "image/gif",
	".webp": "image/webp",
	".heic": "image/heic",
	".heif": "image/heif",
}

// SupportedVideoExtensions defines the file extensions treated as videos.
var SupportedVideoExtensions = map[string]string{
	".mp4":  "video/mp4",
	".mov":  "video/quicktime",
	".avi":  "video/x-msvideo",
	".webm": "video/webm",
	".mkv":  "video/x-matroska",
	".m4v":  "video/x-m4v",
}

// MediaFile represents a photo or video found on disk.
type MediaFile struct {
	Path     string
	MIMEType string
	Size     int64
	ModTime  time.Time

	// CapturedAt is the EXIF capture time when available, otherwise ModTime.
	CapturedAt time.Time
	// FromEXIF reports whether CapturedAt came from image metadata.
	FromEXIF bool

	Metadata *ImageMetadata
}

// IsVideoFile reports whether the file is a video, based on its MIME type.
func (m *MediaFile) IsVideoFile() bool {
	return strings.HasPrefix(m.MIMEType, "video/")
}

// LoadMediaFile stats a media file and extracts its capture time.
// Metadata failures are logged and never fail the load.
func LoadMediaFile(filePath string) (*MediaFile, error) {
	log.Debug().Str("path", filePath).Msg("Loading media file")

	info, err := os.Stat(filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("file not found: %s", filePath)
		}
		return nil, fmt.Errorf("failed to stat file: %w", err)
	}

	if info.IsDir() {
		return nil, fmt.Errorf("path is a directory, not a file: %s", filePath)
	}

	ext := strings.ToLower(filepath.Ext(filePath))
	mimeType, err := GetMIMEType(ext)
	if err != nil {
		return nil, err
	}

	mediaFile := &MediaFile{
		Path:       filePath,
		MIMEType:   mimeType,
		Size:       info.Size(),
		ModTime:    info.ModTime(),
		CapturedAt: info.ModTime(),
	}

	if IsImage(ext) {
		imgMeta, err := ExtractImageMetadata(filePath)
		if err != nil {
			log.Debug().Err(err).Str("path", filePath).Msg("No image metadata, using modification time")
		} else {
			mediaFile.Metadata = imgMeta
			if imgMeta.HasDate {
				mediaFile.CapturedAt = imgMeta.DateTaken
				mediaFile.FromEXIF = true
			}
		}
	}

	return mediaFile, nil
}

// GetMIMEType returns the MIME type for a given file extension.
func GetMIMEType(ext string) (string, error) {
	ext = strings.ToLower(ext)

	if mimeType, ok := SupportedImageExtensions[ext]; ok {
		return mimeType, nil
	}

	if mimeType, ok := SupportedVideoExtensions[ext]; ok {
		return mimeType, nil
	}

	return "", fmt.Errorf("unsupported file extension: %s", ext)
}

// IsImage returns true if the file extension corresponds to an image.
func IsImage(ext string) bool {
	_, ok := SupportedImageExtensions[strings.ToLower(ext)]
	return ok
}

// IsVideo returns true if the file extension corresponds to a video.
func IsVideo(ext string) bool {
	_, ok := SupportedVideoExtensions[strings.ToLower(ext)]
	return ok
}

// IsSupported returns true if the file extension is supported (image or video).
func IsSupported(ext string) bool {
	return IsImage(ext) || IsVideo(ext)
}

// FormatSize renders a byte count as a short human-readable string.
func FormatSize(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for v := n / unit; v >= unit; v /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(n)/float64(div), "KMGTPE"[exp])
}
