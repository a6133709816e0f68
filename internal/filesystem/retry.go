package filesystem

import (
	"errors"
	"os"
	"syscall"
	"time"

	"media-ingest/internal/logging"
	"media-ingest/internal/metrics"
)

// RetryConfig configures retry behavior for filesystem operations
type RetryConfig struct {
	MaxRetries     int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration

	// sleep is replaced in tests.
	sleep func(time.Duration)
}

// DefaultRetryConfig returns sensible defaults for NFS retry behavior
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:     3,
		InitialBackoff: 50 * time.Millisecond,
		MaxBackoff:     500 * time.Millisecond,
	}
}

// isStaleError reports whether err is a stale NFS file handle (ESTALE).
func isStaleError(err error) bool {
	var errno syscall.Errno
	return errors.As(err, &errno) && errno == syscall.ESTALE
}

// withRetry runs fn until it succeeds, fails with anything other than
// ESTALE, or runs out of attempts.
func withRetry[T any](op, path string, config RetryConfig, fn func() (T, error)) (T, error) {
	sleep := config.sleep
	if sleep == nil {
		sleep = time.Sleep
	}
	backoff := config.InitialBackoff

	var (
		result T
		err    error
	)
	for attempt := 0; attempt <= config.MaxRetries; attempt++ {
		result, err = fn()
		if err == nil {
			if attempt > 0 {
				logging.Info("%s succeeded on retry %d for %s", op, attempt, path)
			}
			return result, nil
		}
		if !isStaleError(err) {
			return result, err
		}

		metrics.FilesystemStaleErrorsTotal.WithLabelValues(op).Inc()

		// Don't sleep after the last attempt
		if attempt < config.MaxRetries {
			metrics.FilesystemRetriesTotal.WithLabelValues(op).Inc()
			logging.Debug("%s: stale file handle for %s, retrying in %v (attempt %d/%d)",
				op, path, backoff, attempt+1, config.MaxRetries)
			sleep(backoff)

			backoff *= 2
			if backoff > config.MaxBackoff {
				backoff = config.MaxBackoff
			}
		}
	}

	logging.Warn("%s failed after %d retries for %s: %v", op, config.MaxRetries, path, err)
	metrics.FilesystemRetryFailuresTotal.WithLabelValues(op).Inc()
	return result, err
}

// StatWithRetry performs os.Stat, retrying stale file handle errors.
func StatWithRetry(path string, config RetryConfig) (os.FileInfo, error) {
	return withRetry("stat", path, config, func() (os.FileInfo, error) {
		return os.Stat(path)
	})
}

// OpenWithRetry performs os.Open, retrying stale file handle errors.
func OpenWithRetry(path string, config RetryConfig) (*os.File, error) {
	return withRetry("open", path, config, func() (*os.File, error) {
		return os.Open(path)
	})
}
