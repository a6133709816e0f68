package media

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/draw"
	"time"

	"media-ingest/internal/logging"
	"media-ingest/internal/metrics"

	"github.com/disintegration/imaging"
)

// NormalizeQuality is the JPEG quality of web-compatible derivatives.
const NormalizeQuality = 90

// ErrNormalizationFailed is returned when neither transcoding strategy could
// produce a JPEG. It aborts the item being uploaded.
var ErrNormalizationFailed = errors.New("format normalization failed")

// Transcoder converts an image payload into JPEG bytes.
type Transcoder interface {
	Name() string
	Transcode(ctx context.Context, data []byte) ([]byte, error)
}

// ImageDecoder decodes a still image Go cannot decode natively.
// *transcoder.Transcoder satisfies it.
type ImageDecoder interface {
	DecodeImage(ctx context.Context, data []byte, ext string) (image.Image, error)
}

// SurfaceTranscoder decodes through the Go image decoders or, failing that,
// through an external decoder, paints the result onto an opaque RGBA surface
// and re-encodes it as JPEG.
type SurfaceTranscoder struct {
	Decoder ImageDecoder
	Ext     string
	Quality int
}

// Name identifies the strategy in logs and metrics.
func (SurfaceTranscoder) Name() string { return "surface" }

// Transcode implements Transcoder.
func (s SurfaceTranscoder) Transcode(ctx context.Context, data []byte) ([]byte, error) {
	img, err := decodeImage(data)
	if err != nil {
		if s.Decoder == nil {
			return nil, err
		}
		logging.Debug("Go decode failed: %v, trying external decoder", err)
		ext := s.Ext
		if ext == "" {
			ext = ".heic"
		}
		img, err = s.Decoder.DecodeImage(ctx, data, ext)
		if err != nil {
			return nil, fmt.Errorf("external decode failed: %w", err)
		}
	}

	b := img.Bounds()
	surface := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(surface, surface.Bounds(), image.White, image.Point{}, draw.Src)
	draw.Draw(surface, surface.Bounds(), img, b.Min, draw.Over)

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, surface, imaging.JPEG, imaging.JPEGQuality(qualityOrDefault(s.Quality, NormalizeQuality))); err != nil {
		return nil, fmt.Errorf("failed to encode jpeg: %w", err)
	}
	return buf.Bytes(), nil
}

// Normalizer produces a web-compatible JPEG from formats browsers cannot
// display. The primary strategy is tried first; the fallback only runs when
// the primary fails.
type Normalizer struct {
	primary  Transcoder
	fallback Transcoder
}

// NewNormalizer creates a Normalizer. Either strategy may be nil.
func NewNormalizer(primary, fallback Transcoder) *Normalizer {
	return &Normalizer{primary: primary, fallback: fallback}
}

// Normalize returns JPEG bytes for data, or an error wrapping
// ErrNormalizationFailed together with the cause from each strategy.
func (n *Normalizer) Normalize(ctx context.Context, data []byte) ([]byte, error) {
	var causes []error
	for _, t := range []Transcoder{n.primary, n.fallback} {
		if t == nil {
			continue
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		start := time.Now()
		out, err := t.Transcode(ctx, data)
		metrics.NormalizationDuration.WithLabelValues(t.Name()).Observe(time.Since(start).Seconds())
		if err == nil && len(out) == 0 {
			err = errors.New("empty output")
		}
		if err == nil {
			metrics.NormalizationsTotal.WithLabelValues(t.Name(), "success").Inc()
			logging.Debug("Normalized %d bytes to %d byte JPEG with %s", len(data), len(out), t.Name())
			return out, nil
		}

		metrics.NormalizationsTotal.WithLabelValues(t.Name(), "error").Inc()
		logging.Debug("Normalization with %s failed: %v", t.Name(), err)
		causes = append(causes, fmt.Errorf("%s: %w", t.Name(), err))
	}

	if len(causes) == 0 {
		return nil, fmt.Errorf("%w: no transcoder configured", ErrNormalizationFailed)
	}
	return nil, fmt.Errorf("%w: %w", ErrNormalizationFailed, errors.Join(causes...))
}
