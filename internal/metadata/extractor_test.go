package metadata

import (
	"context"
	"errors"
	"reflect"
	"regexp"
	"testing"
	"time"

	"media-ingest/internal/mediatypes"
	"media-ingest/internal/transcoder"
)

type fakeProber struct {
	info  *transcoder.VideoInfo
	err   error
	ext   string
	calls int
}

func (f *fakeProber) Probe(_ context.Context, _ []byte, ext string) (*transcoder.VideoInfo, error) {
	f.calls++
	f.ext = ext
	return f.info, f.err
}

type fakeGeocoder struct {
	place string
	err   error
	calls int
}

func (f *fakeGeocoder) PlaceName(_ context.Context, _, _ float64) (string, error) {
	f.calls++
	return f.place, f.err
}

func TestExtractPhotoWithPlace(t *testing.T) {
	geo := &fakeGeocoder{place: "Soho, London, England, United Kingdom"}
	ext := NewExtractor(nil, geo)
	item := mediatypes.FromBytes("IMG_0001.JPG", "image/jpeg", cameraJPEG(t), time.Now())

	rec := ext.Extract(context.Background(), item, mediatypes.KindPhoto)
	if rec.Place == nil || *rec.Place != "Soho, London, England, United Kingdom" {
		t.Errorf("Place = %v, want composed place", rec.Place)
	}
	if geo.calls != 1 {
		t.Errorf("geocoder called %d times, want 1", geo.calls)
	}
}

func TestExtractPhotoGeocodeFailure(t *testing.T) {
	geo := &fakeGeocoder{err: errors.New("service unavailable")}
	item := mediatypes.FromBytes("IMG_0001.JPG", "image/jpeg", cameraJPEG(t), time.Now())

	rec := NewExtractor(nil, geo).Extract(context.Background(), item, mediatypes.KindPhoto)
	if rec.Place != nil {
		t.Errorf("Place = %q, want nil after geocode failure", *rec.Place)
	}
	if rec.Latitude == nil || rec.Make == nil {
		t.Error("extraction should still succeed when geocoding fails")
	}
}

func TestExtractIsDeterministic(t *testing.T) {
	geo := &fakeGeocoder{place: "Somewhere"}
	ext := NewExtractor(nil, geo)
	item := mediatypes.FromBytes("IMG_0001.JPG", "image/jpeg", cameraJPEG(t), time.Now())

	first := ext.Extract(context.Background(), item, mediatypes.KindPhoto)
	second := ext.Extract(context.Background(), item, mediatypes.KindPhoto)
	if !reflect.DeepEqual(first, second) {
		t.Errorf("Extract() not deterministic:\nfirst  %+v\nsecond %+v", first, second)
	}
}

func TestExtractUnparseablePhotoIsEmpty(t *testing.T) {
	item := mediatypes.FromBytes("broken.jpg", "image/jpeg", []byte("definitely not a jpeg"), time.Now())
	rec := NewExtractor(nil, nil).Extract(context.Background(), item, mediatypes.KindPhoto)
	if !rec.IsEmpty() {
		t.Errorf("Extract() = %+v, want empty record", rec)
	}
}

func TestExtractVideo(t *testing.T) {
	created := time.Date(2024, 2, 3, 4, 5, 6, 0, time.UTC)
	modTime := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name        string
		kind        mediatypes.Kind
		info        *transcoder.VideoInfo
		wantTime    time.Time
		wantWidth   bool
		wantSeconds float64
	}{
		{
			name:        "Video with creation tag",
			kind:        mediatypes.KindVideo,
			info:        &transcoder.VideoInfo{Duration: 12.5, Width: 1920, Height: 1080, HasVideo: true, CreationTime: created},
			wantTime:    created,
			wantWidth:   true,
			wantSeconds: 12.5,
		},
		{
			name:        "Video falls back to modification time",
			kind:        mediatypes.KindVideo,
			info:        &transcoder.VideoInfo{Duration: 3, Width: 640, Height: 480, HasVideo: true},
			wantTime:    modTime,
			wantWidth:   true,
			wantSeconds: 3,
		},
		{
			name:        "Audio has no dimensions",
			kind:        mediatypes.KindAudio,
			info:        &transcoder.VideoInfo{Duration: 61.2, Codec: "aac"},
			wantTime:    modTime,
			wantSeconds: 61.2,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			prober := &fakeProber{info: tt.info}
			item := mediatypes.FromBytes("CLIP.MOV", "", []byte("moov"), modTime)

			rec := NewExtractor(prober, nil).Extract(context.Background(), item, tt.kind)
			if prober.ext != ".mov" {
				t.Errorf("prober ext = %q, want .mov", prober.ext)
			}
			if rec.Duration == nil || *rec.Duration != tt.wantSeconds {
				t.Errorf("Duration = %v, want %v", rec.Duration, tt.wantSeconds)
			}
			if rec.CaptureTime == nil || !rec.CaptureTime.Equal(tt.wantTime) {
				t.Errorf("CaptureTime = %v, want %v", rec.CaptureTime, tt.wantTime)
			}
			if (rec.Width != nil) != tt.wantWidth {
				t.Errorf("Width = %v, want set = %v", rec.Width, tt.wantWidth)
			}
			if rec.HasOptics() || rec.ShutterSpeed != nil {
				t.Error("video and audio must never carry camera-optics fields")
			}
		})
	}
}

func TestExtractVideoProbeFailure(t *testing.T) {
	prober := &fakeProber{err: errors.New("ffprobe failed")}
	item := mediatypes.FromBytes("clip.mp4", "video/mp4", []byte("x"), time.Now())

	rec := NewExtractor(prober, nil).Extract(context.Background(), item, mediatypes.KindVideo)
	if !rec.IsEmpty() {
		t.Errorf("Extract() = %+v, want empty record", rec)
	}
}

func TestExtractWithoutProber(t *testing.T) {
	item := mediatypes.FromBytes("clip.mp4", "video/mp4", []byte("x"), time.Now())
	if rec := NewExtractor(nil, nil).Extract(context.Background(), item, mediatypes.KindVideo); !rec.IsEmpty() {
		t.Errorf("Extract() = %+v, want empty record", rec)
	}
}

func TestExtractUnreadableItem(t *testing.T) {
	var item mediatypes.RawItem
	if rec := NewExtractor(nil, nil).Extract(context.Background(), item, mediatypes.KindPhoto); !rec.IsEmpty() {
		t.Errorf("Extract() = %+v, want empty record", rec)
	}
}

func TestFormatShutter(t *testing.T) {
	fraction := regexp.MustCompile(`^1/\d+$`)
	seconds := regexp.MustCompile(`^[\d.]+s$`)

	tests := []struct {
		exposure float64
		want     string
	}{
		{exposure: 1.0 / 8000, want: "1/8000"},
		{exposure: 1.0 / 250, want: "1/250"},
		{exposure: 1.0 / 3, want: "1/3"},
		{exposure: 0.5, want: "1/2"},
		{exposure: 0.7, want: "1/1"},
		{exposure: 1, want: "1s"},
		{exposure: 2.5, want: "2.5s"},
		{exposure: 30, want: "30s"},
	}

	for _, tt := range tests {
		got, ok := FormatShutter(tt.exposure)
		if !ok {
			t.Errorf("FormatShutter(%v) not ok", tt.exposure)
			continue
		}
		if got != tt.want {
			t.Errorf("FormatShutter(%v) = %q, want %q", tt.exposure, got, tt.want)
		}
		re := seconds
		if tt.exposure < 1 {
			re = fraction
		}
		if !re.MatchString(got) {
			t.Errorf("FormatShutter(%v) = %q does not match %s", tt.exposure, got, re)
		}
	}

	for _, bad := range []float64{0, -1} {
		if _, ok := FormatShutter(bad); ok {
			t.Errorf("FormatShutter(%v) should not be ok", bad)
		}
	}
}

func TestLabels(t *testing.T) {
	tests := []struct {
		name string
		got  string
		want string
	}{
		{name: "Flash fired", got: FlashLabel(0x01), want: "Fired"},
		{name: "Flash auto red-eye", got: FlashLabel(0x59), want: "Auto, Fired, Red-eye reduction"},
		{name: "Flash unknown", got: FlashLabel(0x7f), want: "Unknown"},
		{name: "White balance auto", got: WhiteBalanceLabel(0), want: "Auto"},
		{name: "White balance unknown", got: WhiteBalanceLabel(42), want: "Unknown"},
	}

	for _, tt := range tests {
		if tt.got != tt.want {
			t.Errorf("%s: got %q, want %q", tt.name, tt.got, tt.want)
		}
	}
}
