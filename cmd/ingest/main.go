package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"media-ingest/internal/logging"
)

// exitCode values returned by commands.
const (
	exitOK      = 0
	exitFailure = 1
	// exitPending means the batch stopped with items still pending,
	// for example after a cancelled quota decision.
	exitPending = 2
)

func main() {
	if len(os.Args) < 2 {
		printUsage(os.Stderr)
		os.Exit(exitFailure)
	}

	command := os.Args[1]
	args := os.Args[2:]

	// Create a context that cancels on interrupt signals
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle interrupt signals for graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		fmt.Fprintln(os.Stderr, "\nInterrupted, shutting down...")
		cancel()
	}()

	// Keep stdout for command output
	logging.SetOutput(os.Stderr)
	if os.Getenv("LOG_LEVEL") == "" && os.Getenv("DEBUG") == "" {
		logging.SetLevel(logging.LevelWarn)
	}

	var code int
	switch command {
	case "upload":
		code = runUpload(ctx, args)
	case "probe":
		code = runProbe(ctx, args)
	case "orphans":
		code = runOrphans(ctx, args)
	case "help", "-h", "--help":
		printUsage(os.Stdout)
	default:
		// Sanitize command input using allowlist to break taint chain
		sanitized := sanitizeCommand(command)
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", sanitized) //nolint:gosec // G705 - input is sanitized via allowlist in sanitizeCommand
		printUsage(os.Stderr)
		code = exitFailure
	}

	cancel()
	os.Exit(code)
}

// sanitizeCommand returns a safe representation of a command string for display.
// It uses an allowlist approach, replacing any character that is not alphanumeric,
// a hyphen, or an underscore with '_'.
func sanitizeCommand(cmd string) string {
	var b strings.Builder
	b.Grow(len(cmd))
	for _, r := range cmd {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '-' || r == '_' {
			b.WriteRune(r)
		} else {
			b.WriteRune('_')
		}
	}
	return b.String()
}

func printUsage(w io.Writer) {
	fmt.Fprintln(w, "Media Ingest")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "Usage: ingest <command> [flags] [args]")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "Commands:")
	fmt.Fprintln(w, "  upload [-album ID] [-on-quota ACTION] FILE...  - Upload files as one batch")
	fmt.Fprintln(w, "  probe FILE...                                 - Print the metadata record of each file")
	fmt.Fprintln(w, "  orphans [-all] [-limit N]                     - List stored blobs never registered")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "Quota actions: skip-rest, override, upgrade, cancel (default: prompt on a")
	fmt.Fprintln(w, "terminal, cancel otherwise)")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "Environment:")
	fmt.Fprintln(w, "  INGEST_BLOB_URL, INGEST_API_URL, INGEST_ACCOUNT_ID - Backend (required for upload)")
	fmt.Fprintln(w, "  INGEST_API_TOKEN                                  - Bearer token for the backend")
	fmt.Fprintln(w, "  INGEST_DATABASE_DIR                               - Orphan ledger directory (default: /database)")
	fmt.Fprintln(w, "  INGEST_WORKERS                                    - Parallel file readers")
}
