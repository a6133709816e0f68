// Package startup handles application initialization, configuration loading,
// and startup/shutdown logging.
//
// # Configuration
//
// Configuration is parsed from environment variables with caarlos0/env by
// [ParseConfig]; [LoadConfig] additionally logs the values, checks the backend
// settings and prepares directories. Supported variables:
//
//   - INGEST_PORT: HTTP server port (default: 8080)
//   - INGEST_CACHE_DIR: Cache directory for previews and transcoder spool files (default: /cache)
//   - INGEST_DATABASE_DIR: Directory for the orphan ledger database (default: /database)
//   - INGEST_BLOB_URL: Blob store base URL (required)
//   - INGEST_API_URL: Library API base URL (required)
//   - INGEST_API_TOKEN: Bearer token for both backends
//   - INGEST_ACCOUNT_ID: First segment of every storage path (required)
//   - INGEST_GEOCODE_URL: Nominatim base URL (default: public Nominatim)
//   - INGEST_GEOCODE_ENABLED: Reverse geocode photo coordinates (default: true)
//   - INGEST_GEOCODE_CACHE_TTL: Reverse geocode cache lifetime (default: 24h)
//   - INGEST_MAX_UPLOAD_BYTES: Per-item size ceiling (default: 52428800)
//   - INGEST_PREVIEW_MAX_EDGE: Longest preview edge in pixels (default: 400)
//   - INGEST_HTTP_RETRIES: Attempts per backend request (default: 3)
//   - INGEST_HTTP_TIMEOUT: Backend request timeout (default: 2m)
//   - INGEST_METRICS_ENABLED: Serve /metrics (default: true)
//   - INGEST_UPGRADE_URL: Where clients are sent on the upgrade action
//   - LOG_LEVEL, LOG_HEALTH_CHECKS: Logging controls
//   - MEMORY_LIMIT, MEMORY_RATIO, GOMEMLIMIT: See the memory package
//
// The database directory is required and must be writable. The preview and
// transcode directories under the cache directory are optional: when they
// cannot be written, previews are kept in memory and ffmpeg spools to the OS
// temp directory.
//
// # Build Information
//
// Version, Commit and BuildTime are injected via ldflags and exposed via
// [GetBuildInfo].
//
// # Lifecycle Logging
//
// [LogDatabaseInit], [LogTranscoderInit], [LogMemoryConfig], [LogHTTPRoutes],
// [LogServerStarted] and the shutdown helpers print the banner-style sections
// shown on startup and shutdown.
package startup
