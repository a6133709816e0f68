// Package database provides SQLite storage for the media-ingest application.
//
// It holds two tables:
//   - orphans: blobs stored in the backend for items that were never
//     registered (skipped, removed, abandoned on upgrade or disposal). A
//     separate garbage collector lists them and marks them reclaimed.
//   - batches: one summary row per batch outcome.
//
// The database uses WAL mode and is created on first use.
package database
