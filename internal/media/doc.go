// Package media turns uploaded payloads into the derived artifacts an asset
// needs besides its original bytes.
//
// The Normalizer converts formats browsers cannot display (HEIC/HEIF) into
// JPEG, trying libvips first and a decode-and-redraw fallback second. The
// PreviewGenerator produces bounded-edge JPEG previews:
//   - Photos: decoded with auto-orientation and fitted inside the box
//   - Videos: one frame sampled through FFmpeg, then treated as a photo
//   - Audio: no preview (ErrNoPreview)
package media
