package metrics

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

type mockStatsProvider struct {
	mu    sync.Mutex
	stats Stats
	calls int
}

func (m *mockStatsProvider) GetStats() Stats {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	return m.stats
}

func (m *mockStatsProvider) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

func TestNewCollector(t *testing.T) {
	provider := &mockStatsProvider{}
	collector := NewCollector(provider, "/tmp/test.db", 5*time.Second)

	if collector.statsProvider != provider {
		t.Error("statsProvider not set correctly")
	}
	if collector.dbPath != "/tmp/test.db" {
		t.Errorf("dbPath = %q, want %q", collector.dbPath, "/tmp/test.db")
	}
	if collector.interval != 5*time.Second {
		t.Errorf("interval = %v, want %v", collector.interval, 5*time.Second)
	}
	if collector.stopChan == nil {
		t.Error("stopChan not initialized")
	}
}

func TestCollectUpdatesGauges(t *testing.T) {
	provider := &mockStatsProvider{stats: Stats{
		ActiveBatches:       3,
		PausedBatches:       1,
		PendingItems:        7,
		UnreclaimedOrphans:  2,
		TranscoderProcesses: 1,
	}}
	NewCollector(provider, "", time.Minute).collect()

	tests := []struct {
		name string
		got  float64
		want float64
	}{
		{"BatchesActive", testutil.ToFloat64(BatchesActive), 3},
		{"BatchesPaused", testutil.ToFloat64(BatchesPaused), 1},
		{"ItemsPending", testutil.ToFloat64(ItemsPending), 7},
		{"OrphansUnreclaimed", testutil.ToFloat64(OrphansUnreclaimed), 2},
		{"TranscoderProcessesActive", testutil.ToFloat64(TranscoderProcessesActive), 1},
	}
	for _, tt := range tests {
		if tt.got != tt.want {
			t.Errorf("%s = %v, want %v", tt.name, tt.got, tt.want)
		}
	}
}

func TestCollectWithNilProvider(_ *testing.T) {
	NewCollector(nil, "", time.Minute).collect()
}

func TestCollectDBSize(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "ingest.db")
	if err := os.WriteFile(dbPath, make([]byte, 4096), 0o644); err != nil {
		t.Fatalf("write db: %v", err)
	}
	if err := os.WriteFile(dbPath+"-wal", make([]byte, 100), 0o644); err != nil {
		t.Fatalf("write wal: %v", err)
	}

	NewCollector(nil, dbPath, time.Minute).collect()

	if got := testutil.ToFloat64(DBSizeBytes.WithLabelValues("main")); got != 4096 {
		t.Errorf("main size = %v, want 4096", got)
	}
	if got := testutil.ToFloat64(DBSizeBytes.WithLabelValues("wal")); got != 100 {
		t.Errorf("wal size = %v, want 100", got)
	}
	if got := testutil.ToFloat64(DBSizeBytes.WithLabelValues("shm")); got != 0 {
		t.Errorf("shm size = %v, want 0", got)
	}
}

func TestCollectorStartStop(t *testing.T) {
	provider := &mockStatsProvider{}
	collector := NewCollector(provider, "", 10*time.Millisecond)

	collector.Start()
	deadline := time.Now().Add(2 * time.Second)
	for provider.callCount() < 2 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	collector.Stop()
	collector.Stop()

	if provider.callCount() < 2 {
		t.Errorf("GetStats called %d times, want at least 2", provider.callCount())
	}
}

func TestCollectMemoryMetrics(t *testing.T) {
	NewCollector(nil, "", time.Minute).collectMemoryMetrics()
	if testutil.ToFloat64(GoMemAllocBytes) <= 0 {
		t.Error("GoMemAllocBytes should be positive")
	}
}
