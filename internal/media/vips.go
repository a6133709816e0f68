package media

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"media-ingest/internal/logging"
	"media-ingest/internal/workers"

	"github.com/davidbyttow/govips/v2/vips"
)

// maxVipsThreads caps the libvips worker threads per operation.
const maxVipsThreads = 4

var (
	vipsInitialized bool
	vipsInitMutex   sync.Mutex
	vipsAvailable   bool
)

// errVipsUnavailable is returned by vips-backed operations before InitVips.
var errVipsUnavailable = errors.New("libvips not available")

// vipsSeverity maps a vips message level onto the application log level.
func vipsSeverity(level vips.LogLevel) logging.LogLevel {
	switch level {
	case vips.LogLevelError, vips.LogLevelCritical:
		return logging.LevelError
	case vips.LogLevelWarning:
		return logging.LevelWarn
	case vips.LogLevelMessage, vips.LogLevelInfo:
		return logging.LevelInfo
	default:
		return logging.LevelDebug
	}
}

// vipsLogSettings returns the vips verbosity for the application log level
// and a handler that forwards vips messages into the logging package.
func vipsLogSettings(appLevel logging.LogLevel) (vips.LogLevel, vips.LoggingHandlerFunction) {
	handler := func(domain string, level vips.LogLevel, msg string) {
		switch severity := vipsSeverity(level); {
		case severity < appLevel:
			return
		case severity == logging.LevelError:
			logging.Error("[%s] %s", domain, msg)
		case severity == logging.LevelWarn:
			logging.Warn("[%s] %s", domain, msg)
		default:
			logging.Debug("[%s] %s", domain, msg)
		}
	}

	switch appLevel {
	case logging.LevelDebug:
		return vips.LogLevelInfo, handler
	case logging.LevelInfo:
		return vips.LogLevelWarning, handler
	case logging.LevelWarn:
		return vips.LogLevelError, handler
	default:
		return vips.LogLevelCritical, handler
	}
}

// InitVips initializes the libvips library.
// This should be called once at startup; later calls are no-ops.
func InitVips() error {
	vipsInitMutex.Lock()
	defer vipsInitMutex.Unlock()

	if vipsInitialized {
		return nil
	}

	// Configure vips logging BEFORE Startup() so LOG_LEVEL is respected
	verbosity, handler := vipsLogSettings(logging.GetLevel())
	vips.LoggingSettings(handler, verbosity)

	// Uploads are processed one at a time, so one operation may use the CPUs
	vips.Startup(&vips.Config{
		ConcurrencyLevel: workers.ForCPU(maxVipsThreads),
		MaxCacheMem:      50 * 1024 * 1024,
		MaxCacheSize:     100,
		ReportLeaks:      false,
		CacheTrace:       false,
		CollectStats:     false,
	})

	vipsInitialized = true
	vipsAvailable = true
	logging.Info("libvips initialized successfully (version: %s)", vips.Version)
	return nil
}

// ShutdownVips cleans up libvips resources
func ShutdownVips() {
	vipsInitMutex.Lock()
	defer vipsInitMutex.Unlock()

	if vipsInitialized {
		vips.Shutdown()
		vipsInitialized = false
		vipsAvailable = false
		logging.Info("libvips shutdown complete")
	}
}

// IsVipsAvailable returns whether libvips is initialized and available
func IsVipsAvailable() bool {
	vipsInitMutex.Lock()
	defer vipsInitMutex.Unlock()
	return vipsAvailable
}

// VipsTranscoder re-encodes any format libvips can load (HEIC/HEIF through
// libheif) as JPEG.
type VipsTranscoder struct {
	Quality int
}

// Name identifies the strategy in logs and metrics.
func (VipsTranscoder) Name() string { return "vips" }

// Transcode decodes data with libvips, applies the EXIF orientation and
// exports a JPEG.
func (v VipsTranscoder) Transcode(ctx context.Context, data []byte) ([]byte, error) {
	if !IsVipsAvailable() {
		return nil, errVipsUnavailable
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	ref, err := vips.NewImageFromBuffer(data)
	if err != nil {
		return nil, fmt.Errorf("vips failed to load image: %w", err)
	}
	defer ref.Close()

	if err := ref.AutoRotate(); err != nil {
		return nil, fmt.Errorf("vips auto-rotate failed: %w", err)
	}

	out, _, err := ref.ExportJpeg(&vips.JpegExportParams{
		Quality:        qualityOrDefault(v.Quality, NormalizeQuality),
		StripMetadata:  false,
		OptimizeCoding: true,
	})
	if err != nil {
		return nil, fmt.Errorf("vips export failed: %w", err)
	}
	return out, nil
}

// thumbnailWithVips fits data inside an edge x edge box with libvips. It
// covers payloads the Go decoders refuse, such as HEIC or very large images.
func thumbnailWithVips(data []byte, edge, quality int) ([]byte, error) {
	if !IsVipsAvailable() {
		return nil, errVipsUnavailable
	}

	ref, err := vips.NewImageFromBuffer(data)
	if err != nil {
		return nil, fmt.Errorf("vips failed to load image: %w", err)
	}
	defer ref.Close()

	if err := ref.AutoRotate(); err != nil {
		return nil, fmt.Errorf("vips auto-rotate failed: %w", err)
	}

	targetWidth, targetHeight := fitWithin(ref.Width(), ref.Height(), edge)
	if targetWidth != ref.Width() || targetHeight != ref.Height() {
		if err := ref.Thumbnail(targetWidth, targetHeight, vips.InterestingNone); err != nil {
			return nil, fmt.Errorf("vips thumbnail failed: %w", err)
		}
	}

	out, _, err := ref.ExportJpeg(&vips.JpegExportParams{
		Quality:        quality,
		StripMetadata:  true,
		OptimizeCoding: true,
	})
	if err != nil {
		return nil, fmt.Errorf("vips export failed: %w", err)
	}
	return out, nil
}

// fitWithin scales width x height down to fit an edge x edge box, keeping
// the aspect ratio. Dimensions already inside the box are returned unchanged.
func fitWithin(width, height, edge int) (int, int) {
	if width <= edge && height <= edge {
		return width, height
	}
	if width >= height {
		h := height * edge / width
		if h < 1 {
			h = 1
		}
		return edge, h
	}
	w := width * edge / height
	if w < 1 {
		w = 1
	}
	return w, edge
}

func qualityOrDefault(q, def int) int {
	if q <= 0 || q > 100 {
		return def
	}
	return q
}
