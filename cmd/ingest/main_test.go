package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"media-ingest/internal/database"
	"media-ingest/internal/mediatypes"
	"media-ingest/internal/metadata"
	"media-ingest/internal/upload"
)

// =============================================================================
// Command Dispatch
// =============================================================================

func TestSanitizeCommand(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"upload", "upload"},
		{"skip-rest", "skip-rest"},
		{"snake_case", "snake_case"},
		{"bad\ncommand", "bad_command"},
		{"../../etc/passwd", "______etc_passwd"},
		{"\x1b[31mred", "__31mred"},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := sanitizeCommand(tt.input); got != tt.want {
				t.Errorf("sanitizeCommand(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestPrintUsage(t *testing.T) {
	var buf bytes.Buffer
	printUsage(&buf)

	out := buf.String()
	for _, want := range []string{"upload", "probe", "orphans", "INGEST_BLOB_URL"} {
		if !strings.Contains(out, want) {
			t.Errorf("usage missing %q", want)
		}
	}
}

// =============================================================================
// Upload
// =============================================================================

func TestParseUploadFlags(t *testing.T) {
	tests := []struct {
		name      string
		args      []string
		wantAlbum string
		wantQuota string
		wantPaths []string
		wantErr   bool
	}{
		{
			name:      "files only",
			args:      []string{"a.jpg", "b.mov"},
			wantPaths: []string{"a.jpg", "b.mov"},
		},
		{
			name:      "album and quota action",
			args:      []string{"-album", "holiday", "-on-quota", "override", "a.jpg"},
			wantAlbum: "holiday",
			wantQuota: "override",
			wantPaths: []string{"a.jpg"},
		},
		{
			name:    "no files",
			args:    []string{"-album", "holiday"},
			wantErr: true,
		},
		{
			name:    "unknown quota action",
			args:    []string{"-on-quota", "later", "a.jpg"},
			wantErr: true,
		},
		{
			name:    "unknown flag",
			args:    []string{"-force", "a.jpg"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts, err := parseUploadFlags(tt.args, io.Discard)
			if tt.wantErr {
				if err == nil {
					t.Fatal("parseUploadFlags() error = nil, want error")
				}
				return
			}
			if err != nil {
				t.Fatalf("parseUploadFlags() error = %v", err)
			}
			if opts.albumID != tt.wantAlbum {
				t.Errorf("albumID = %q, want %q", opts.albumID, tt.wantAlbum)
			}
			if opts.onQuota != tt.wantQuota {
				t.Errorf("onQuota = %q, want %q", opts.onQuota, tt.wantQuota)
			}
			if strings.Join(opts.paths, ",") != strings.Join(tt.wantPaths, ",") {
				t.Errorf("paths = %v, want %v", opts.paths, tt.wantPaths)
			}
		})
	}
}

func TestParseChoice(t *testing.T) {
	tests := []struct {
		input   string
		want    upload.Action
		wantErr bool
	}{
		{"1", upload.ActionSkipRest, false},
		{"2", upload.ActionOverride, false},
		{"3", upload.ActionUpgrade, false},
		{"4", upload.ActionCancel, false},
		{"", upload.ActionCancel, false},
		{"  override \n", upload.ActionOverride, false},
		{"SKIP-REST", upload.ActionSkipRest, false},
		{"5", "", true},
		{"0", "", true},
		{"maybe", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := parseChoice(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("parseChoice(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("parseChoice(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestPromptAction(t *testing.T) {
	pause := upload.PauseSummary{Message: "photo limit reached", Pending: 3, Succeeded: 2}

	tests := []struct {
		name  string
		input string
		want  upload.Action
	}{
		{"number", "2\n", upload.ActionOverride},
		{"reprompts after bad input", "nope\n1\n", upload.ActionSkipRest},
		{"end of input cancels", "", upload.ActionCancel},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out bytes.Buffer
			got, err := promptAction(strings.NewReader(tt.input), &out, pause)
			if err != nil {
				t.Fatalf("promptAction() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("promptAction() = %q, want %q", got, tt.want)
			}
			if !strings.Contains(out.String(), "photo limit reached") {
				t.Error("prompt does not show the quota message")
			}
		})
	}
}

func TestDecideActionFlagWins(t *testing.T) {
	got, err := decideAction("skip-rest", &upload.PauseSummary{})
	if err != nil {
		t.Fatalf("decideAction() error = %v", err)
	}
	if got != upload.ActionSkipRest {
		t.Errorf("decideAction() = %q, want %q", got, upload.ActionSkipRest)
	}
}

func TestExitCodeFor(t *testing.T) {
	tests := []struct {
		name string
		snap upload.Snapshot
		want int
	}{
		{"all uploaded", upload.Snapshot{Succeeded: 3}, exitOK},
		{"failure", upload.Snapshot{Succeeded: 2, Failed: 1}, exitFailure},
		{"pending after cancel", upload.Snapshot{Succeeded: 2, Pending: 1}, exitPending},
		{"skipped", upload.Snapshot{Succeeded: 2, Discarded: 3}, exitPending},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := exitCodeFor(tt.snap); got != tt.want {
				t.Errorf("exitCodeFor() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestProgressLine(t *testing.T) {
	snap := upload.Snapshot{
		Items: []upload.ItemSnapshot{
			{Name: "a.jpg", Status: upload.StatusSuccess},
			{Name: "b.jpg", Status: upload.StatusUploading, Progress: 40},
			{Name: "c.jpg", Status: upload.StatusPending},
		},
		Succeeded: 1,
	}

	want := "Uploading 1/3 b.jpg 40%"
	if got := progressLine(snap); got != want {
		t.Errorf("progressLine() = %q, want %q", got, want)
	}
}

func TestPrintSummary(t *testing.T) {
	snap := upload.Snapshot{
		Items: []upload.ItemSnapshot{
			{Name: "a.jpg", Status: upload.StatusSuccess, URL: "https://blobs/a.jpg"},
			{Name: "b.heic", Status: upload.StatusError, Error: "format normalization failed"},
			{Name: "c.jpg", Status: upload.StatusPending},
		},
		Succeeded: 1,
		Failed:    1,
		Pending:   1,
	}

	var buf bytes.Buffer
	printSummary(&buf, snap)

	out := buf.String()
	for _, want := range []string{
		"ok       a.jpg  https://blobs/a.jpg",
		"error    b.heic  format normalization failed",
		"pending  c.jpg",
		"1 uploaded, 1 failed, 1 pending, 0 skipped",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("summary missing %q:\n%s", want, out)
		}
	}
}

func TestReadItems(t *testing.T) {
	dir := t.TempDir()
	var paths []string
	for _, name := range []string{"a.jpg", "b.png", "c.mp4"} {
		path := filepath.Join(dir, name)
		if err := os.WriteFile(path, []byte(name), 0o644); err != nil {
			t.Fatal(err)
		}
		paths = append(paths, path)
	}

	items, err := readItems(context.Background(), paths)
	if err != nil {
		t.Fatalf("readItems() error = %v", err)
	}
	if len(items) != len(paths) {
		t.Fatalf("len(items) = %d, want %d", len(items), len(paths))
	}
	for i, item := range items {
		if item.Name != filepath.Base(paths[i]) {
			t.Errorf("items[%d].Name = %q, want %q", i, item.Name, filepath.Base(paths[i]))
		}
	}

	if _, err := readItems(context.Background(), append(paths, filepath.Join(dir, "missing.jpg"))); err == nil {
		t.Error("readItems() with a missing file error = nil, want error")
	}
}

func TestOpenLedger(t *testing.T) {
	if db := openLedger(context.Background(), filepath.Join(t.TempDir(), "missing")); db != nil {
		db.Close()
		t.Error("openLedger() on a missing directory returned a database")
	}

	dir := t.TempDir()
	db := openLedger(context.Background(), dir)
	if db == nil {
		t.Fatal("openLedger() = nil, want database")
	}
	defer db.Close()

	if _, err := os.Stat(filepath.Join(dir, "ingest.db")); err != nil {
		t.Errorf("ledger file not created: %v", err)
	}
}

func TestUpgradeNotice(t *testing.T) {
	var buf bytes.Buffer
	pause := upload.PauseSummary{Kind: "photo-limit"}

	if err := upgradeNotice(&buf, "https://example.com/plans").BeginUpgrade(context.Background(), pause); err != nil {
		t.Fatalf("BeginUpgrade() error = %v", err)
	}
	if !strings.Contains(buf.String(), "https://example.com/plans") {
		t.Errorf("notice = %q, want upgrade URL", buf.String())
	}
}

// =============================================================================
// Probe and Orphans
// =============================================================================

type fakeExtractor struct {
	calls int
}

func (f *fakeExtractor) Extract(_ context.Context, _ mediatypes.RawItem, kind mediatypes.Kind) metadata.Record {
	f.calls++
	if kind != mediatypes.KindPhoto {
		return metadata.Record{}
	}
	model := "X100V"
	return metadata.Record{Model: &model}
}

func TestProbeFiles(t *testing.T) {
	dir := t.TempDir()
	photo := filepath.Join(dir, "a.jpg")
	notes := filepath.Join(dir, "notes.txt")
	if err := os.WriteFile(photo, []byte("jpeg"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(notes, []byte("hello"), 0o644); err != nil {
		t.Fatal(err)
	}

	var buf bytes.Buffer
	ex := &fakeExtractor{}
	failed := probeFiles(context.Background(), &buf, ex, mediatypes.DefaultMaxUploadSize, []string{photo, notes})

	if failed != 1 {
		t.Errorf("failed = %d, want 1", failed)
	}
	if ex.calls != 1 {
		t.Errorf("extractor called %d times, want 1", ex.calls)
	}

	dec := json.NewDecoder(&buf)
	var first, second probeResult
	if err := dec.Decode(&first); err != nil {
		t.Fatalf("decode first result: %v", err)
	}
	if err := dec.Decode(&second); err != nil {
		t.Fatalf("decode second result: %v", err)
	}

	if first.Kind != mediatypes.KindPhoto || first.Metadata.Model == nil || *first.Metadata.Model != "X100V" {
		t.Errorf("first result = %+v, want photo with model", first)
	}
	if second.Error == "" {
		t.Error("second result has no error for an unsupported file")
	}
}

func TestProbeFilesCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	ex := &fakeExtractor{}
	if failed := probeFiles(ctx, io.Discard, ex, mediatypes.DefaultMaxUploadSize, []string{"a.jpg"}); failed == 0 {
		t.Error("probeFiles() on a cancelled context reported no failure")
	}
	if ex.calls != 0 {
		t.Errorf("extractor called %d times, want 0", ex.calls)
	}
}

func TestPrintOrphans(t *testing.T) {
	t.Run("empty", func(t *testing.T) {
		var buf bytes.Buffer
		printOrphans(&buf, nil)
		if !strings.Contains(buf.String(), "No orphans.") {
			t.Errorf("output = %q", buf.String())
		}
	})

	t.Run("table", func(t *testing.T) {
		reclaimed := time.Date(2024, 5, 2, 0, 0, 0, 0, time.UTC)
		orphans := []database.Orphan{
			{ID: 1, URL: "https://blobs/a.jpg", Role: "originals", Reason: "skip-rest", ItemName: "a.jpg",
				RecordedAt: time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)},
			{ID: 2, URL: "https://blobs/b.jpg", Role: "web", Reason: "removed", ItemName: "b.jpg",
				RecordedAt: time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC), ReclaimedAt: &reclaimed},
		}

		var buf bytes.Buffer
		printOrphans(&buf, orphans)
		out := buf.String()

		for _, want := range []string{"ID", "skip-rest", "https://blobs/a.jpg", "2024-05-02T00:00:00Z"} {
			if !strings.Contains(out, want) {
				t.Errorf("table missing %q:\n%s", want, out)
			}
		}
		if lines := strings.Count(out, "\n"); lines != 3 {
			t.Errorf("table has %d lines, want 3", lines)
		}
	})
}

func TestRunOrphansBadFlag(t *testing.T) {
	if code := runOrphans(context.Background(), []string{"-bogus"}); code != exitFailure {
		t.Errorf("runOrphans() = %d, want %d", code, exitFailure)
	}
}
