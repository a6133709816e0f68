package metrics

import (
	"os"
	"runtime"
	"sync"
	"time"

	"media-ingest/internal/logging"
)

// StatsProvider interface for collecting stats
type StatsProvider interface {
	GetStats() Stats
}

// Stats holds the current statistics
type Stats struct {
	ActiveBatches       int
	PausedBatches       int
	PendingItems        int
	UnreclaimedOrphans  int
	TranscoderProcesses int
}

// Collector periodically collects and updates metrics
type Collector struct {
	statsProvider StatsProvider
	dbPath        string
	interval      time.Duration
	stopChan      chan struct{}
	stopOnce      sync.Once
}

// NewCollector creates a new metrics collector. dbPath may be empty to skip
// database file sizes.
func NewCollector(provider StatsProvider, dbPath string, interval time.Duration) *Collector {
	return &Collector{
		statsProvider: provider,
		dbPath:        dbPath,
		interval:      interval,
		stopChan:      make(chan struct{}),
	}
}

// Start begins the metrics collection loop
func (c *Collector) Start() {
	go c.collectLoop()
}

// Stop stops the metrics collection. It is safe to call more than once.
func (c *Collector) Stop() {
	c.stopOnce.Do(func() {
		close(c.stopChan)
	})
}

func (c *Collector) collectLoop() {
	// Collect immediately on start
	c.collect()

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.collect()
		case <-c.stopChan:
			return
		}
	}
}

func (c *Collector) collect() {
	c.collectMemoryMetrics()
	c.collectDBSize()

	if c.statsProvider == nil {
		return
	}

	stats := c.statsProvider.GetStats()

	BatchesActive.Set(float64(stats.ActiveBatches))
	BatchesPaused.Set(float64(stats.PausedBatches))
	ItemsPending.Set(float64(stats.PendingItems))
	OrphansUnreclaimed.Set(float64(stats.UnreclaimedOrphans))
	TranscoderProcessesActive.Set(float64(stats.TranscoderProcesses))

	logging.Debug("Metrics collected: batches=%d, paused=%d, pending=%d, orphans=%d",
		stats.ActiveBatches, stats.PausedBatches, stats.PendingItems, stats.UnreclaimedOrphans)
}

func (c *Collector) collectMemoryMetrics() {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	GoMemAllocBytes.Set(float64(m.Alloc))
	GoMemSysBytes.Set(float64(m.Sys))
}

func (c *Collector) collectDBSize() {
	if c.dbPath == "" {
		return
	}
	for file, suffix := range map[string]string{"main": "", "wal": "-wal", "shm": "-shm"} {
		info, err := os.Stat(c.dbPath + suffix)
		if err != nil {
			DBSizeBytes.WithLabelValues(file).Set(0)
			continue
		}
		DBSizeBytes.WithLabelValues(file).Set(float64(info.Size()))
	}
}
