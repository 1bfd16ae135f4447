// Package media identifies uploaded media, decodes still images for editing
// and extracts EXIF metadata that enriches caption prompts.
//
// Images are decoded in pure Go (standard decoders plus golang.org/x/image
// for WebP, BMP and TIFF). Metadata comes from evanoberholster/imagemeta.
// Videos are never decoded; only their kind and MIME type are tracked.
package media

import (
	"fmt"
	"path/filepath"
	"strings"
)

// Kind is the coarse media kind.
type Kind string

const (
	KindImage Kind = "image"
	KindVideo Kind = "video"
)

// SupportedImageExtensions maps image extensions to MIME types.
var SupportedImageExtensions = map[string]string{
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".gif":  "image/gif",
	".webp": "image/webp",
	".bmp":  "image/bmp",
	".tif":  "image/tiff",
	".tiff": "image/tiff",
}

// SupportedVideoExtensions maps video extensions to MIME types.
var SupportedVideoExtensions = map[string]string{
	".mp4":  "video/mp4",
	".mov":  "video/quicktime",
	".avi":  "video/x-msvideo",
	".webm": "video/webm",
	".mkv":  "video/x-matroska",
}

// GetMIMEType returns the MIME type for a file extension.
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

// IsImage reports whether ext is a supported image extension.
func IsImage(ext string) bool {
	_, ok := SupportedImageExtensions[strings.ToLower(ext)]
	return ok
}

// IsVideo reports whether ext is a supported video extension.
func IsVideo(ext string) bool {
	_, ok := SupportedVideoExtensions[strings.ToLower(ext)]
	return ok
}

// DetectKind classifies an upload by its content type, falling back to the
// file name extension when the content type is missing or generic.
func DetectKind(filename, contentType string) (Kind, error) {
	ct := strings.ToLower(strings.TrimSpace(contentType))
	if i := strings.IndexByte(ct, ';'); i >= 0 {
		ct = strings.TrimSpace(ct[:i])
	}
	switch {
	case strings.HasPrefix(ct, "image/"):
		return KindImage, nil
	case strings.HasPrefix(ct, "video/"):
		return KindVideo, nil
	}

	ext := filepath.Ext(filename)
	switch {
	case IsImage(ext):
		return KindImage, nil
	case IsVideo(ext):
		return KindVideo, nil
	}
	return "", fmt.Errorf("unsupported media %q (content type %q)", filename, contentType)
}
