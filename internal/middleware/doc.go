// Package middleware provides HTTP middleware for the ingest server.
//
// It includes:
//   - Request logging in W3C Extended Log Format through the logging package
//   - Prometheus request metrics labelled by route template
//
// Health checks and batch snapshot polling can be left out of the request log.
package middleware
