package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"media-ingest/internal/backend"
	"media-ingest/internal/database"
	"media-ingest/internal/geocode"
	"media-ingest/internal/media"
	"media-ingest/internal/mediatypes"
	"media-ingest/internal/metadata"
	"media-ingest/internal/startup"
	"media-ingest/internal/transcoder"
	"media-ingest/internal/upload"
	"media-ingest/internal/workers"

	"golang.org/x/term"
)

const progressInterval = 500 * time.Millisecond

type uploadOptions struct {
	albumID string
	onQuota string
	paths   []string
}

func parseUploadFlags(args []string, stderr io.Writer) (uploadOptions, error) {
	var opts uploadOptions

	fs := flag.NewFlagSet("upload", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVar(&opts.albumID, "album", "", "add the uploaded items to this album")
	fs.StringVar(&opts.onQuota, "on-quota", "", "decision when a plan limit is hit: skip-rest, override, upgrade or cancel")
	if err := fs.Parse(args); err != nil {
		return opts, err
	}

	if opts.onQuota != "" {
		if _, err := upload.ParseAction(opts.onQuota); err != nil {
			return opts, fmt.Errorf("invalid -on-quota %q: %w", opts.onQuota, err)
		}
	}
	opts.paths = fs.Args()
	if len(opts.paths) == 0 {
		return opts, errors.New("no files given")
	}
	return opts, nil
}

func runUpload(ctx context.Context, args []string) int {
	opts, err := parseUploadFlags(args, os.Stderr)
	if err != nil {
		if !errors.Is(err, flag.ErrHelp) {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		return exitFailure
	}

	cfg, err := startup.ParseConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return exitFailure
	}
	if err := cfg.ValidateBackend(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return exitFailure
	}

	items, err := readItems(ctx, opts.paths)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return exitFailure
	}

	if err := media.InitVips(); err == nil {
		defer media.ShutdownVips()
	}
	trans := transcoder.New("")
	defer trans.Cleanup()

	batchOpts := upload.Options{
		AccountID: cfg.AccountID,
		AlbumID:   opts.albumID,
		MaxBytes:  cfg.MaxUploadBytes,
		Upgrade:   upgradeNotice(os.Stdout, cfg.UpgradeURL),
	}
	if db := openLedger(ctx, cfg.DatabaseDir); db != nil {
		defer db.Close()
		batchOpts.Ledger = db
	}

	b := upload.NewBatch(newPipeline(cfg, trans), batchOpts)
	res, err := b.Add(items...)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return exitFailure
	}
	for _, rej := range res.Rejected {
		fmt.Fprintf(os.Stderr, "Skipping %s: %s\n", rej.Name, rej.Reason)
	}
	if len(res.Accepted) == 0 {
		fmt.Fprintln(os.Stderr, "Error: no supported files to upload")
		return exitFailure
	}

	stopProgress := func() {}
	if term.IsTerminal(int(os.Stderr.Fd())) {
		stopProgress = startProgress(b, os.Stderr, progressInterval)
	}

	err = b.Run(ctx)
	for errors.Is(err, upload.ErrBatchPaused) {
		stopProgress()
		action, derr := decideAction(opts.onQuota, b.Snapshot().Paused)
		if derr != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", derr)
			return exitFailure
		}
		if action == upload.ActionOverride && term.IsTerminal(int(os.Stderr.Fd())) {
			stopProgress = startProgress(b, os.Stderr, progressInterval)
		}
		err = b.Resolve(ctx, action)
	}
	stopProgress()

	snap := b.Snapshot()
	printSummary(os.Stdout, snap)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return exitFailure
	}
	return exitCodeFor(snap)
}

// readItems stats every path in parallel. Payloads are read lazily by the
// pipeline.
func readItems(ctx context.Context, paths []string) ([]mediatypes.RawItem, error) {
	items := make([]mediatypes.RawItem, len(paths))
	err := workers.Run(ctx, len(paths), workers.ForIO(16), func(_ context.Context, i int) error {
		item, err := mediatypes.FromFile(paths[i])
		if err != nil {
			return fmt.Errorf("%s: %w", paths[i], err)
		}
		items[i] = item
		return nil
	})
	if err != nil {
		return nil, err
	}
	return items, nil
}

// openLedger opens the orphan ledger if the database directory exists.
// Uploads still work without it; orphans are then only logged.
func openLedger(ctx context.Context, dir string) *database.Database {
	if info, err := os.Stat(dir); err != nil || !info.IsDir() {
		return nil
	}
	db, err := database.New(ctx, filepath.Join(dir, "ingest.db"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: orphan ledger unavailable: %v\n", err)
		return nil
	}
	return db
}

func newPipeline(cfg *startup.Config, trans *transcoder.Transcoder) upload.Pipeline {
	httpClient := &http.Client{Timeout: cfg.HTTPTimeout}

	var geocoder metadata.Geocoder
	if cfg.GeocodeEnabled {
		geocoder = geocode.NewCached(geocode.New(geocode.Options{
			URL:        cfg.GeocodeURL,
			Retries:    cfg.HTTPRetries,
			HTTPClient: httpClient,
		}), cfg.GeocodeCacheTTL)
	}

	blobOpts := backend.Options{
		URL:        cfg.BlobURL,
		Token:      cfg.APIToken,
		Retries:    cfg.HTTPRetries,
		HTTPClient: httpClient,
	}
	apiOpts := blobOpts
	apiOpts.URL = cfg.APIURL

	return upload.Pipeline{
		Extractor:  metadata.NewExtractor(trans, geocoder),
		Normalizer: media.NewNormalizer(media.VipsTranscoder{}, media.SurfaceTranscoder{Decoder: trans}),
		Previews:   media.NewPreviewGenerator(trans, cfg.PreviewMaxEdge),
		Blobs:      backend.NewHTTPBlobStore(blobOpts),
		Registrar:  backend.NewHTTPRegistrar(apiOpts),
	}
}

func upgradeNotice(w io.Writer, upgradeURL string) upload.UpgradeHandler {
	return upload.UpgradeFunc(func(_ context.Context, pause upload.PauseSummary) error {
		if upgradeURL == "" {
			fmt.Fprintf(w, "Upgrade your plan to lift the %s limit, then upload the remaining files again.\n", pause.Kind)
			return nil
		}
		fmt.Fprintf(w, "Upgrade your plan at %s, then upload the remaining files again.\n", upgradeURL)
		return nil
	})
}

// decideAction picks the quota decision: the -on-quota flag wins, then an
// interactive prompt, then cancel.
func decideAction(flagValue string, pause *upload.PauseSummary) (upload.Action, error) {
	if flagValue != "" {
		return upload.ParseAction(flagValue)
	}
	if pause != nil && term.IsTerminal(int(os.Stdin.Fd())) {
		return promptAction(os.Stdin, os.Stderr, *pause)
	}
	return upload.ActionCancel, nil
}

var actionChoices = []upload.Action{
	upload.ActionSkipRest,
	upload.ActionOverride,
	upload.ActionUpgrade,
	upload.ActionCancel,
}

func promptAction(in io.Reader, out io.Writer, pause upload.PauseSummary) (upload.Action, error) {
	fmt.Fprintf(out, "\nPlan limit reached: %s\n", pause.Message)
	fmt.Fprintf(out, "%d uploaded, %d still pending.\n", pause.Succeeded, pause.Pending)
	fmt.Fprintln(out, "  1) skip-rest  - keep what was uploaded, drop the rest")
	fmt.Fprintln(out, "  2) override   - upload the rest anyway")
	fmt.Fprintln(out, "  3) upgrade    - stop here and upgrade the plan")
	fmt.Fprintln(out, "  4) cancel     - stop here, leave the rest pending")

	scanner := bufio.NewScanner(in)
	for {
		fmt.Fprint(out, "Choice [4]: ")
		if !scanner.Scan() {
			if err := scanner.Err(); err != nil {
				return "", err
			}
			return upload.ActionCancel, nil
		}
		action, err := parseChoice(scanner.Text())
		if err == nil {
			return action, nil
		}
		fmt.Fprintf(out, "%v\n", err)
	}
}

// parseChoice accepts a menu number or an action name. Empty input cancels.
func parseChoice(input string) (upload.Action, error) {
	input = strings.ToLower(strings.TrimSpace(input))
	if input == "" {
		return upload.ActionCancel, nil
	}
	if len(input) == 1 && input[0] >= '1' && input[0] <= byte('0'+len(actionChoices)) {
		return actionChoices[input[0]-'1'], nil
	}
	if action, err := upload.ParseAction(input); err == nil {
		return action, nil
	}
	return "", fmt.Errorf("unknown choice %q", input)
}

func startProgress(b *upload.Batch, w io.Writer, interval time.Duration) func() {
	done := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				fmt.Fprintf(w, "\r%s", progressLine(b.Snapshot()))
			}
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			close(done)
			wg.Wait()
			fmt.Fprintf(w, "\r%s\n", progressLine(b.Snapshot()))
		})
	}
}

func progressLine(snap upload.Snapshot) string {
	total := len(snap.Items)
	finished := snap.Succeeded + snap.Failed
	current := ""
	for _, it := range snap.Items {
		if it.Status == upload.StatusUploading {
			current = fmt.Sprintf(" %s %d%%", it.Name, it.Progress)
			break
		}
	}
	return fmt.Sprintf("Uploading %d/%d%s", finished, total, current)
}

func printSummary(w io.Writer, snap upload.Snapshot) {
	for _, it := range snap.Items {
		switch it.Status {
		case upload.StatusSuccess:
			fmt.Fprintf(w, "ok       %s  %s\n", it.Name, it.URL)
		case upload.StatusError:
			fmt.Fprintf(w, "error    %s  %s\n", it.Name, it.Error)
		default:
			fmt.Fprintf(w, "pending  %s\n", it.Name)
		}
	}
	fmt.Fprintf(w, "%d uploaded, %d failed, %d pending, %d skipped\n",
		snap.Succeeded, snap.Failed, snap.Pending, snap.Discarded)
}

func exitCodeFor(snap upload.Snapshot) int {
	switch {
	case snap.Failed > 0:
		return exitFailure
	case snap.Pending > 0 || snap.Discarded > 0:
		return exitPending
	default:
		return exitOK
	}
}
