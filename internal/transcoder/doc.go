// Package transcoder wraps FFmpeg for the ingest pipeline.
//
// It supports:
//   - Container probing (duration, resolution, codec, creation time)
//   - Sampling a single video frame at an offset for previews
//   - Decoding still images FFmpeg understands but Go does not
//
// FFmpeg and FFprobe must be installed and available in the system PATH.
// Payloads are spooled to a work directory for the lifetime of each call.
package transcoder
