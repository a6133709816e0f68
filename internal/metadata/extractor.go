package metadata

import (
	"context"
	"fmt"
	"time"

	"media-ingest/internal/logging"
	"media-ingest/internal/mediatypes"
	"media-ingest/internal/metrics"
	"media-ingest/internal/transcoder"
)

// Prober reads container properties of a video or audio payload.
// *transcoder.Transcoder satisfies it.
type Prober interface {
	Probe(ctx context.Context, data []byte, ext string) (*transcoder.VideoInfo, error)
}

// Geocoder resolves coordinates to a human readable place name.
type Geocoder interface {
	PlaceName(ctx context.Context, lat, lon float64) (string, error)
}

// Extractor derives a Record from raw items. Both collaborators are
// optional: without a Prober video and audio yield empty records, without a
// Geocoder no place name is resolved.
type Extractor struct {
	prober   Prober
	geocoder Geocoder
}

// NewExtractor creates an Extractor.
func NewExtractor(prober Prober, geocoder Geocoder) *Extractor {
	return &Extractor{prober: prober, geocoder: geocoder}
}

// Extract reads the item and derives its metadata. It never fails: any
// parse error yields an empty Record.
func (e *Extractor) Extract(ctx context.Context, item mediatypes.RawItem, kind mediatypes.Kind) Record {
	data, err := item.ReadAll()
	if err != nil {
		logging.Debug("Metadata: failed to read %s: %v", item.Name, err)
		metrics.MetadataExtractionsTotal.WithLabelValues(kindLabel(kind), "error").Inc()
		return Record{}
	}
	return e.ExtractFrom(ctx, item, data, kind)
}

// ExtractFrom is Extract for callers that already hold the payload.
func (e *Extractor) ExtractFrom(ctx context.Context, item mediatypes.RawItem, data []byte, kind mediatypes.Kind) Record {
	var (
		rec Record
		err error
	)

	switch kind {
	case mediatypes.KindPhoto:
		rec, err = parsePhoto(data)
		if err == nil {
			e.resolvePlace(ctx, &rec)
		}
	case mediatypes.KindVideo, mediatypes.KindAudio:
		rec, err = e.probe(ctx, item, data)
	default:
		err = fmt.Errorf("no metadata for kind %q", kind)
	}

	if err != nil {
		logging.Debug("Metadata: extraction failed for %s: %v", item.Name, err)
		metrics.MetadataExtractionsTotal.WithLabelValues(kindLabel(kind), "error").Inc()
		return Record{}
	}
	metrics.MetadataExtractionsTotal.WithLabelValues(kindLabel(kind), "success").Inc()
	return rec
}

func (e *Extractor) probe(ctx context.Context, item mediatypes.RawItem, data []byte) (Record, error) {
	if e.prober == nil {
		return Record{}, fmt.Errorf("no prober configured")
	}
	info, err := e.prober.Probe(ctx, data, mediatypes.Ext(item.Name))
	if err != nil {
		return Record{}, err
	}

	var rec Record
	if info.Duration > 0 {
		rec.Duration = ptr(info.Duration)
	}
	if info.HasVideo && info.Width > 0 && info.Height > 0 {
		rec.Width = ptr(info.Width)
		rec.Height = ptr(info.Height)
	}

	switch {
	case !info.CreationTime.IsZero():
		rec.CaptureTime = ptr(info.CreationTime)
	case !item.ModTime.IsZero():
		rec.CaptureTime = ptr(item.ModTime.Truncate(time.Millisecond))
	}
	return rec, nil
}

// resolvePlace fills the place name from the coordinates. Lookup failures
// leave it nil.
func (e *Extractor) resolvePlace(ctx context.Context, rec *Record) {
	if e.geocoder == nil || rec.Latitude == nil || rec.Longitude == nil {
		return
	}
	place, err := e.geocoder.PlaceName(ctx, *rec.Latitude, *rec.Longitude)
	if err != nil {
		logging.Debug("Metadata: reverse geocode of %.5f,%.5f failed: %v", *rec.Latitude, *rec.Longitude, err)
		return
	}
	if place != "" {
		rec.Place = ptr(place)
	}
}

func kindLabel(kind mediatypes.Kind) string {
	if kind == mediatypes.KindUnknown {
		return "unknown"
	}
	return string(kind)
}
