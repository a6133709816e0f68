package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"text/tabwriter"
	"time"

	"media-ingest/internal/database"
	"media-ingest/internal/geocode"
	"media-ingest/internal/mediatypes"
	"media-ingest/internal/metadata"
	"media-ingest/internal/startup"
	"media-ingest/internal/transcoder"
)

const (
	// Default timeout for database operations
	defaultTimeout = 30 * time.Second

	defaultOrphanLimit = 100
)

// probeResult is one line of probe output.
type probeResult struct {
	File     string          `json:"file"`
	Kind     mediatypes.Kind `json:"kind"`
	Error    string          `json:"error,omitempty"`
	Metadata metadata.Record `json:"metadata"`
}

func runProbe(ctx context.Context, args []string) int {
	if len(args) == 0 {
		fmt.Fprintln(os.Stderr, "Error: no files given")
		return exitFailure
	}

	cfg, err := startup.ParseConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return exitFailure
	}

	trans := transcoder.New("")
	defer trans.Cleanup()

	var geocoder metadata.Geocoder
	if cfg.GeocodeEnabled {
		geocoder = geocode.New(geocode.Options{
			URL:        cfg.GeocodeURL,
			Retries:    cfg.HTTPRetries,
			HTTPClient: &http.Client{Timeout: cfg.HTTPTimeout},
		})
	}

	if failed := probeFiles(ctx, os.Stdout, metadata.NewExtractor(trans, geocoder), cfg.MaxUploadBytes, args); failed > 0 {
		return exitFailure
	}
	return exitOK
}

// extractor is the part of *metadata.Extractor probe uses.
type extractor interface {
	Extract(ctx context.Context, item mediatypes.RawItem, kind mediatypes.Kind) metadata.Record
}

// probeFiles writes one JSON document per path and returns how many could
// not be probed.
func probeFiles(ctx context.Context, w io.Writer, ex extractor, maxBytes int64, paths []string) int {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")

	failed := 0
	for _, path := range paths {
		if ctx.Err() != nil {
			return failed + 1
		}

		res := probeResult{File: path}
		item, err := mediatypes.FromFile(path)
		if err == nil {
			res.Kind, err = mediatypes.Preflight(item, maxBytes)
		}
		if err != nil {
			res.Error = err.Error()
			failed++
		} else {
			res.Metadata = ex.Extract(ctx, item, res.Kind)
		}

		if err := enc.Encode(res); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			return failed + 1
		}
	}
	return failed
}

func runOrphans(ctx context.Context, args []string) int {
	fs := flag.NewFlagSet("orphans", flag.ContinueOnError)
	all := fs.Bool("all", false, "include reclaimed orphans")
	limit := fs.Int("limit", defaultOrphanLimit, "maximum number of orphans to list")
	asJSON := fs.Bool("json", false, "print JSON instead of a table")
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return exitOK
		}
		return exitFailure
	}

	cfg, err := startup.ParseConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return exitFailure
	}

	db, err := database.New(ctx, filepath.Join(cfg.DatabaseDir, "ingest.db"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: Failed to connect to database: %v\n", err)
		fmt.Fprintf(os.Stderr, "Make sure INGEST_DATABASE_DIR is set correctly (current: %s)\n", cfg.DatabaseDir)
		return exitFailure
	}
	defer func() {
		if err := db.Close(); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: failed to close database: %v\n", err)
		}
	}()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	orphans, err := db.ListOrphans(ctx, *all, *limit)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return exitFailure
	}

	if *asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(orphans); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			return exitFailure
		}
		return exitOK
	}
	printOrphans(os.Stdout, orphans)
	return exitOK
}

func printOrphans(w io.Writer, orphans []database.Orphan) {
	if len(orphans) == 0 {
		fmt.Fprintln(w, "No orphans.")
		return
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tROLE\tREASON\tITEM\tRECORDED\tRECLAIMED\tURL")
	for _, o := range orphans {
		reclaimed := "-"
		if o.ReclaimedAt != nil {
			reclaimed = o.ReclaimedAt.Format(time.RFC3339)
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%s\t%s\n",
			o.ID, o.Role, o.Reason, o.ItemName, o.RecordedAt.Format(time.RFC3339), reclaimed, o.URL)
	}
	_ = tw.Flush()
}
