package metadata

import (
	"bytes"
	"fmt"
	"image"
	"math"
	"strings"
	"time"
	"unicode"

	// Decoders for the pixel-dimension fallback
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"github.com/rwcarlsen/goexif/exif"
	"github.com/rwcarlsen/goexif/tiff"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

const exifTimeLayout = "2006:01:02 15:04:05"

// maxRawValues skips array tags (strip offsets, tables) in the raw payload.
const maxRawValues = 16

// Lens tags are read by name so they resolve on any goexif field table.
const (
	lensMake  exif.FieldName = "LensMake"
	lensModel exif.FieldName = "LensModel"
)

// captureTimeFields is the resolution order for the capture timestamp.
var captureTimeFields = []exif.FieldName{
	exif.DateTimeOriginal,
	exif.DateTimeDigitized,
	exif.DateTime,
}

// parsePhoto reads the EXIF block of an image payload.
func parsePhoto(data []byte) (Record, error) {
	if err := checkTagBounds(data); err != nil {
		return Record{}, err
	}
	x, err := exif.Decode(bytes.NewReader(data))
	if err != nil {
		return Record{}, fmt.Errorf("exif decode failed: %w", err)
	}

	rec := Record{
		CaptureTime: captureTime(x),
		Make:        stringTag(x, exif.Make),
		Model:       stringTag(x, exif.Model),
		LensMake:    stringTag(x, lensMake),
		LensModel:   stringTag(x, lensModel),
		Width:       intTag(x, exif.PixelXDimension),
		Height:      intTag(x, exif.PixelYDimension),
		Orientation: intTag(x, exif.Orientation),

		ISO:           intTag(x, exif.ISOSpeedRatings),
		Aperture:      ratTag(x, exif.FNumber),
		FocalLength:   ratTag(x, exif.FocalLength),
		FocalLength35: intTag(x, exif.FocalLengthIn35mmFilm),

		Raw: rawFields(x),
	}

	if lat, long, err := x.LatLong(); err == nil && isCoordinate(lat, 90) && isCoordinate(long, 180) {
		rec.Latitude = ptr(lat)
		rec.Longitude = ptr(long)
	}

	if exposure := ratTag(x, exif.ExposureTime); exposure != nil {
		if s, ok := FormatShutter(*exposure); ok {
			rec.ShutterSpeed = ptr(s)
		}
	}
	if code := intTag(x, exif.Flash); code != nil {
		rec.Flash = ptr(FlashLabel(*code))
	}
	if code := intTag(x, exif.WhiteBalance); code != nil {
		rec.WhiteBalance = ptr(WhiteBalanceLabel(*code))
	}

	if rec.Width == nil || rec.Height == nil {
		rec.Width, rec.Height = intTag(x, exif.ImageWidth), intTag(x, exif.ImageLength)
	}
	if rec.Width == nil || rec.Height == nil {
		if cfg, _, err := image.DecodeConfig(bytes.NewReader(data)); err == nil {
			rec.Width, rec.Height = ptr(cfg.Width), ptr(cfg.Height)
		} else {
			rec.Width, rec.Height = nil, nil
		}
	}

	return rec, nil
}

func captureTime(x *exif.Exif) *time.Time {
	for _, field := range captureTimeFields {
		s := stringTag(x, field)
		if s == nil {
			continue
		}
		ts, err := time.ParseInLocation(exifTimeLayout, *s, time.Local)
		if err != nil || ts.Year() < 1800 {
			continue
		}
		return &ts
	}
	return nil
}

func isCoordinate(v, limit float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0) && math.Abs(v) <= limit
}

func stringTag(x *exif.Exif, name exif.FieldName) *string {
	tag, err := x.Get(name)
	if err != nil || tag.Format() != tiff.StringVal {
		return nil
	}
	s, err := tag.StringVal()
	if err != nil {
		return nil
	}
	if s = sanitizeString(s); s == "" {
		return nil
	}
	return &s
}

func intTag(x *exif.Exif, name exif.FieldName) *int {
	tag, err := x.Get(name)
	if err != nil || tag.Format() != tiff.IntVal || tag.Count == 0 {
		return nil
	}
	v, err := tag.Int(0)
	if err != nil {
		return nil
	}
	return &v
}

func ratTag(x *exif.Exif, name exif.FieldName) *float64 {
	tag, err := x.Get(name)
	if err != nil || tag.Count == 0 {
		return nil
	}
	switch tag.Format() {
	case tiff.RatVal:
		num, den, err := tag.Rat2(0)
		if err != nil || den == 0 {
			return nil
		}
		return ptr(float64(num) / float64(den))
	case tiff.IntVal:
		v, err := tag.Int(0)
		if err != nil {
			return nil
		}
		return ptr(float64(v))
	default:
		return nil
	}
}

// rawWalker collects every EXIF field that can be stored safely.
type rawWalker map[string]any

func (w rawWalker) Walk(name exif.FieldName, tag *tiff.Tag) error {
	if v, ok := sanitizeTag(tag); ok {
		w[string(name)] = v
	}
	return nil
}

func rawFields(x *exif.Exif) map[string]any {
	w := rawWalker{}
	if err := x.Walk(w); err != nil || len(w) == 0 {
		return nil
	}
	return w
}

// sanitizeTag converts a tag into a JSON-safe value. Undefined and other
// binary formats are dropped.
func sanitizeTag(tag *tiff.Tag) (any, bool) {
	count := int(tag.Count)
	if count == 0 {
		return nil, false
	}

	switch tag.Format() {
	case tiff.StringVal:
		s, err := tag.StringVal()
		if err != nil {
			return nil, false
		}
		if s = sanitizeString(s); s == "" {
			return nil, false
		}
		return s, true

	case tiff.IntVal:
		if count > maxRawValues {
			return nil, false
		}
		vals := make([]int64, 0, count)
		for i := 0; i < count; i++ {
			v, err := tag.Int64(i)
			if err != nil {
				return nil, false
			}
			vals = append(vals, v)
		}
		if len(vals) == 1 {
			return vals[0], true
		}
		return vals, true

	case tiff.RatVal:
		if count > maxRawValues {
			return nil, false
		}
		vals := make([]float64, 0, count)
		for i := 0; i < count; i++ {
			num, den, err := tag.Rat2(i)
			if err != nil || den == 0 {
				return nil, false
			}
			vals = append(vals, float64(num)/float64(den))
		}
		if len(vals) == 1 {
			return vals[0], true
		}
		return vals, true

	case tiff.FloatVal:
		if count > maxRawValues {
			return nil, false
		}
		vals := make([]float64, 0, count)
		for i := 0; i < count; i++ {
			v, err := tag.Float(i)
			if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
				return nil, false
			}
			vals = append(vals, v)
		}
		if len(vals) == 1 {
			return vals[0], true
		}
		return vals, true

	default:
		return nil, false
	}
}

// sanitizeString drops NUL bytes, invalid UTF-8 and control characters.
func sanitizeString(s string) string {
	s = strings.ToValidUTF8(s, "")
	s = strings.Map(func(r rune) rune {
		if r == 0 || (unicode.IsControl(r) && r != '\n' && r != '\t') {
			return -1
		}
		return r
	}, s)
	return strings.TrimSpace(s)
}
