// Package mediatypes provides the shared vocabulary of the ingest pipeline:
// media kinds, extension and MIME tables, the RawItem handle, and the
// pre-flight checks that decide whether an item may enter a batch.
//
// # Kinds
//
// Every accepted item is a photo, a video or an audio recording. The kind is
// taken from the declared content type first and from the extension when the
// type is absent or generic:
//
//	mediatypes.Classify("clip.mov", "")           // KindVideo
//	mediatypes.Classify("x.bin", "image/png")     // KindPhoto
//	mediatypes.Classify("notes.txt", "text/plain") // KindUnknown
//
// Preflight additionally sniffs the leading bytes when both signals fail,
// and enforces the per-item size ceiling.
//
// # Normalization
//
// NeedsNormalization flags formats (HEIC/HEIF) that need a web-compatible
// derivative next to the untouched original.
package mediatypes
