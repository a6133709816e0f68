// Package backend defines the storage and library boundary of the ingest
// pipeline and provides HTTP clients for it.
//
// A BlobStore stores bytes and returns an address. A Registrar records the
// stored asset in the user's library or an album, and rejects it with a
// *QuotaViolation when the account's plan is exhausted.
package backend
