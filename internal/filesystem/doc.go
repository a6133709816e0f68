/*
Package filesystem wraps os.Stat and os.Open with retries for stale NFS file
handles (ESTALE).

Files handed to the ingest command often live on network mounts. A stale
handle is usually transient, so the operation is retried with exponential
backoff; every other error is returned immediately.

	info, err := filesystem.StatWithRetry(path, filesystem.DefaultRetryConfig())

	f, err := filesystem.OpenWithRetry(path, filesystem.DefaultRetryConfig())
	if err != nil {
		return err
	}
	defer f.Close()

Retries, stale errors and exhausted retries are counted in the
media_ingest_filesystem_* metrics, labeled by operation.
*/
package filesystem
