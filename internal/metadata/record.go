package metadata

import "time"

// Record is the provenance metadata derived from one item. Every field is
// optional; a nil field means the value was absent or could not be parsed.
// Camera-optics fields are only ever set for photos and Duration only for
// video and audio.
type Record struct {
	CaptureTime *time.Time `json:"captureTime,omitempty"`
	Latitude    *float64   `json:"latitude,omitempty"`
	Longitude   *float64   `json:"longitude,omitempty"`
	Place       *string    `json:"place,omitempty"`

	Make      *string `json:"make,omitempty"`
	Model     *string `json:"model,omitempty"`
	LensMake  *string `json:"lensMake,omitempty"`
	LensModel *string `json:"lensModel,omitempty"`

	Width       *int `json:"width,omitempty"`
	Height      *int `json:"height,omitempty"`
	Orientation *int `json:"orientation,omitempty"`

	ISO           *int     `json:"iso,omitempty"`
	Aperture      *float64 `json:"aperture,omitempty"`
	FocalLength   *float64 `json:"focalLength,omitempty"`
	FocalLength35 *int     `json:"focalLength35mm,omitempty"`
	ShutterSpeed  *string  `json:"shutterSpeed,omitempty"`
	Flash         *string  `json:"flash,omitempty"`
	WhiteBalance  *string  `json:"whiteBalance,omitempty"`

	Duration *float64 `json:"duration,omitempty"`

	Raw map[string]any `json:"raw,omitempty"`
}

// HasOptics reports whether any camera-optics field is set.
func (r Record) HasOptics() bool {
	return r.ISO != nil || r.Aperture != nil || r.FocalLength != nil || r.FocalLength35 != nil
}

// IsEmpty reports whether no field is set.
func (r Record) IsEmpty() bool {
	return r.CaptureTime == nil && r.Latitude == nil && r.Longitude == nil && r.Place == nil &&
		r.Make == nil && r.Model == nil && r.LensMake == nil && r.LensModel == nil &&
		r.Width == nil && r.Height == nil && r.Orientation == nil &&
		!r.HasOptics() && r.ShutterSpeed == nil && r.Flash == nil && r.WhiteBalance == nil &&
		r.Duration == nil && len(r.Raw) == 0
}

func ptr[T any](v T) *T {
	return &v
}
