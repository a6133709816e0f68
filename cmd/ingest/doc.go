// Command ingest uploads local media files through the same pipeline the
// server runs and inspects the orphan ledger.
//
// Usage:
//
//	ingest <command> [flags] [args]
//
// Commands:
//
//	upload   Upload FILE... as one batch. Unsupported or oversized files
//	         are skipped. When the plan limit is hit the command prompts
//	         for a decision on a terminal; -on-quota makes the decision
//	         up front (skip-rest, override, upgrade or cancel). -album
//	         adds the uploaded items to an album.
//
//	probe    Print the metadata record of each FILE as JSON without
//	         uploading anything.
//
//	orphans  List stored blobs that were never registered. -all includes
//	         reclaimed ones, -json prints JSON.
//
// Exit status is 0 when every item uploaded, 1 on failure and 2 when the
// batch stopped with items pending or skipped.
//
// Environment:
//
//	INGEST_BLOB_URL, INGEST_API_URL, INGEST_ACCOUNT_ID - Backend (required for upload)
//	INGEST_API_TOKEN    - Bearer token for the backend
//	INGEST_DATABASE_DIR - Orphan ledger directory (default: /database)
//	INGEST_WORKERS      - Parallel file readers
package main
