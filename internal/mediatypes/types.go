package mediatypes

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
)

// Kind is the broad media category of an item.
type Kind string

const (
	// KindPhoto is a still image.
	KindPhoto Kind = "photo"
	// KindVideo is a moving picture, with or without sound.
	KindVideo Kind = "video"
	// KindAudio is a sound-only recording.
	KindAudio Kind = "audio"
	// KindUnknown is anything the pipeline does not accept.
	KindUnknown Kind = ""
)

// DefaultMaxUploadSize is the per-item size ceiling (50 MiB).
const DefaultMaxUploadSize int64 = 50 * 1024 * 1024

var (
	// ErrUnsupportedType is returned for items that are neither image, video nor audio.
	ErrUnsupportedType = errors.New("unsupported media type")
	// ErrTooLarge is returned for items above the size ceiling.
	ErrTooLarge = errors.New("file exceeds maximum upload size")
)

// ImageExtensions maps file extensions to whether they are supported image formats.
var ImageExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".gif":  true,
	".bmp":  true,
	".webp": true,
	".tiff": true,
	".tif":  true,
	".heic": true,
	".heif": true,
	".avif": true,
}

// VideoExtensions maps file extensions to whether they are supported video formats.
var VideoExtensions = map[string]bool{
	".mp4":  true,
	".mkv":  true,
	".avi":  true,
	".mov":  true,
	".wmv":  true,
	".webm": true,
	".m4v":  true,
	".mpeg": true,
	".mpg":  true,
	".3gp":  true,
}

// AudioExtensions maps file extensions to whether they are supported audio formats.
var AudioExtensions = map[string]bool{
	".mp3":  true,
	".m4a":  true,
	".aac":  true,
	".wav":  true,
	".ogg":  true,
	".oga":  true,
	".flac": true,
	".opus": true,
	".weba": true,
}

// normalizeExtensions are formats browsers cannot reliably display.
var normalizeExtensions = map[string]bool{
	".heic": true,
	".heif": true,
}

// MimeTypes maps file extensions to their MIME types.
var MimeTypes = map[string]string{
	// Images
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".gif":  "image/gif",
	".bmp":  "image/bmp",
	".webp": "image/webp",
	".tiff": "image/tiff",
	".tif":  "image/tiff",
	".heic": "image/heic",
	".heif": "image/heif",
	".avif": "image/avif",

	// Videos
	".mp4":  "video/mp4",
	".mkv":  "video/x-matroska",
	".avi":  "video/x-msvideo",
	".mov":  "video/quicktime",
	".wmv":  "video/x-ms-wmv",
	".webm": "video/webm",
	".m4v":  "video/x-m4v",
	".mpeg": "video/mpeg",
	".mpg":  "video/mpeg",
	".3gp":  "video/3gpp",

	// Audio
	".mp3":  "audio/mpeg",
	".m4a":  "audio/mp4",
	".aac":  "audio/aac",
	".wav":  "audio/wav",
	".ogg":  "audio/ogg",
	".oga":  "audio/ogg",
	".flac": "audio/flac",
	".opus": "audio/opus",
	".weba": "audio/webm",
}

// Ext returns the lowercase extension of name including the leading dot.
func Ext(name string) string {
	return strings.ToLower(filepath.Ext(name))
}

// KindFromContentType maps a declared MIME type onto a Kind.
// Parameters such as "; codecs=..." are ignored.
func KindFromContentType(contentType string) Kind {
	ct := baseType(contentType)
	switch {
	case strings.HasPrefix(ct, "image/"):
		return KindPhoto
	case strings.HasPrefix(ct, "video/"):
		return KindVideo
	case strings.HasPrefix(ct, "audio/"):
		return KindAudio
	}
	return KindUnknown
}

// KindFromExtension maps a lowercase extension (".mov") onto a Kind.
func KindFromExtension(ext string) Kind {
	switch {
	case ImageExtensions[ext]:
		return KindPhoto
	case VideoExtensions[ext]:
		return KindVideo
	case AudioExtensions[ext]:
		return KindAudio
	}
	return KindUnknown
}

// baseType lowercases a content type and strips its parameters.
func baseType(contentType string) string {
	ct := strings.ToLower(strings.TrimSpace(contentType))
	if i := strings.IndexByte(ct, ';'); i >= 0 {
		ct = strings.TrimSpace(ct[:i])
	}
	return ct
}

// IsGenericType reports whether a declared type says nothing about the
// content.
func IsGenericType(contentType string) bool {
	ct := baseType(contentType)
	return ct == "" || ct == "application/octet-stream"
}

// Classify infers the media kind from the declared content type, falling
// back to the filename extension when the type is absent or not a media type.
func Classify(name, contentType string) Kind {
	if kind := KindFromContentType(contentType); kind != KindUnknown {
		return kind
	}
	return KindFromExtension(Ext(name))
}

// ContentTypeFor returns the declared type when it is meaningful, otherwise
// the type implied by the extension.
func ContentTypeFor(name, declared string) string {
	if declared != "" && !strings.EqualFold(declared, "application/octet-stream") {
		return declared
	}
	return GetMimeType(Ext(name))
}

// NeedsNormalization reports whether an item must get a web-compatible
// derivative before it can be displayed everywhere.
func NeedsNormalization(name, contentType string) bool {
	switch strings.ToLower(contentType) {
	case "image/heic", "image/heif", "image/heic-sequence", "image/heif-sequence":
		return true
	}
	return normalizeExtensions[Ext(name)]
}

// GetMimeType returns the MIME type for a given file extension.
// The extension should be lowercase and include the leading dot (e.g., ".jpg").
// Returns "application/octet-stream" if the extension is not recognized.
func GetMimeType(ext string) string {
	if mime, ok := MimeTypes[ext]; ok {
		return mime
	}
	return "application/octet-stream"
}

// CheckSize validates the item size against maxBytes. A non-positive
// maxBytes selects DefaultMaxUploadSize.
func CheckSize(size, maxBytes int64) error {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxUploadSize
	}
	if size > maxBytes {
		return fmt.Errorf("%w: %d bytes > %d bytes", ErrTooLarge, size, maxBytes)
	}
	return nil
}
