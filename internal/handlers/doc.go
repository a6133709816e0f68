// Package handlers provides the HTTP API over upload batches.
//
// It includes handlers for:
//   - Creating batches from multipart uploads and polling their progress
//   - Quota decisions, item retries and removals, batch disposal
//   - Serving local item previews
//   - The orphaned blob ledger and batch history
//   - Health checks, version and metrics
package handlers
