package media

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"time"

	"media-ingest/internal/logging"
	"media-ingest/internal/mediatypes"
	"media-ingest/internal/metrics"

	"github.com/disintegration/imaging"
)

const (
	// DefaultPreviewEdge bounds the longest side of a preview in pixels.
	DefaultPreviewEdge = 400

	// PreviewQuality is the JPEG quality of previews.
	PreviewQuality = 80

	// maxVideoSeek caps how far into a video the preview frame is taken.
	maxVideoSeek = 2 * time.Second
)

// ErrNoPreview is returned for kinds that have no visual preview (audio).
var ErrNoPreview = errors.New("no preview for media kind")

// FrameSampler decodes a single video frame at an offset.
// *transcoder.Transcoder satisfies it.
type FrameSampler interface {
	ExtractFrame(ctx context.Context, data []byte, ext string, at time.Duration) (image.Image, error)
}

// PreviewGenerator creates bounded-edge JPEG previews for photos and videos.
type PreviewGenerator struct {
	sampler FrameSampler
	maxEdge int
}

// NewPreviewGenerator creates a generator. maxEdge <= 0 uses
// DefaultPreviewEdge; a nil sampler disables video previews.
func NewPreviewGenerator(sampler FrameSampler, maxEdge int) *PreviewGenerator {
	if maxEdge <= 0 {
		maxEdge = DefaultPreviewEdge
	}
	return &PreviewGenerator{sampler: sampler, maxEdge: maxEdge}
}

// MaxEdge returns the configured bound on the longest preview side.
func (p *PreviewGenerator) MaxEdge() int {
	return p.maxEdge
}

// VideoSeekOffset is where the preview frame of a video of the given duration
// (in seconds) is taken: 10% into the video, but never later than 2s.
func VideoSeekOffset(duration float64) time.Duration {
	if duration <= 0 {
		return 0
	}
	offset := time.Duration(duration * 0.1 * float64(time.Second))
	if offset > maxVideoSeek {
		return maxVideoSeek
	}
	return offset
}

// Generate returns JPEG preview bytes for the payload. name is only used for
// its extension when a video must be handed to the frame sampler. duration is
// the video length in seconds, 0 if unknown.
func (p *PreviewGenerator) Generate(ctx context.Context, data []byte, name string, kind mediatypes.Kind, duration float64) ([]byte, error) {
	start := time.Now()
	out, err := p.generate(ctx, data, name, kind, duration)

	label := string(kind)
	if label == "" {
		label = "unknown"
	}
	metrics.PreviewDuration.WithLabelValues(label).Observe(time.Since(start).Seconds())
	switch {
	case errors.Is(err, ErrNoPreview):
		metrics.PreviewsTotal.WithLabelValues(label, "skipped").Inc()
	case err != nil:
		metrics.PreviewsTotal.WithLabelValues(label, "error").Inc()
	default:
		metrics.PreviewsTotal.WithLabelValues(label, "success").Inc()
	}
	return out, err
}

func (p *PreviewGenerator) generate(ctx context.Context, data []byte, name string, kind mediatypes.Kind, duration float64) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	switch kind {
	case mediatypes.KindPhoto:
		img, err := decodeImage(data)
		if err != nil {
			logging.Debug("Preview decode failed for %s: %v, trying libvips", name, err)
			out, vipsErr := thumbnailWithVips(data, p.maxEdge, PreviewQuality)
			if vipsErr != nil {
				return nil, fmt.Errorf("preview generation failed: %w", errors.Join(err, vipsErr))
			}
			return out, nil
		}
		return p.encode(img)

	case mediatypes.KindVideo:
		if p.sampler == nil {
			return nil, errors.New("no frame sampler configured")
		}
		at := VideoSeekOffset(duration)
		logging.Debug("Sampling preview frame of %s at %v", name, at)
		img, err := p.sampler.ExtractFrame(ctx, data, mediatypes.Ext(name), at)
		if err != nil {
			return nil, fmt.Errorf("frame extraction failed: %w", err)
		}
		return p.encode(img)

	case mediatypes.KindAudio:
		return nil, ErrNoPreview

	default:
		return nil, fmt.Errorf("%w: %q", ErrNoPreview, kind)
	}
}

// encode fits img inside the preview box and encodes it as JPEG.
// imaging.Fit never upscales.
func (p *PreviewGenerator) encode(img image.Image) ([]byte, error) {
	if img == nil {
		return nil, errors.New("preview source image is nil")
	}
	thumb := imaging.Fit(img, p.maxEdge, p.maxEdge, imaging.Lanczos)

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, thumb, imaging.JPEG, imaging.JPEGQuality(PreviewQuality)); err != nil {
		return nil, fmt.Errorf("failed to encode preview: %w", err)
	}
	return buf.Bytes(), nil
}
