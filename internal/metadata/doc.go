// Package metadata derives provenance metadata from uploaded items.
//
// Photos are read through their EXIF block: capture time, GPS position,
// camera and lens, and exposure settings. Videos and audio are probed with
// FFprobe for duration and dimensions. Extraction is best effort; a payload
// that cannot be parsed yields an empty Record rather than an error.
package metadata
