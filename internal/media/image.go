package media

import (
	"bytes"
	"fmt"
	"image"

	"media-ingest/internal/logging"

	// Image format decoders
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

const (
	// MaxImageDimension is the maximum width or height we'll process.
	// Images larger than this are downscaled right after decoding.
	MaxImageDimension = 8192

	// MaxImagePixels is the maximum total pixels (width * height) we'll decode.
	// A 50MP image would be ~50,000,000 pixels, which uses ~200MB in RGBA.
	MaxImagePixels = 50_000_000
)

// ImageDimensions holds image width and height
type ImageDimensions struct {
	Width  int
	Height int
}

// GetImageDimensions returns image dimensions without fully decoding the image
func GetImageDimensions(data []byte) (*ImageDimensions, error) {
	config, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	return &ImageDimensions{
		Width:  config.Width,
		Height: config.Height,
	}, nil
}

// decodeImage decodes data with the registered Go decoders, applying the EXIF
// orientation. Images above MaxImagePixels are refused before decoding.
func decodeImage(data []byte) (image.Image, error) {
	if dims, err := GetImageDimensions(data); err == nil {
		pixels := dims.Width * dims.Height
		if pixels > MaxImagePixels {
			return nil, fmt.Errorf("image too large to decode: %dx%d", dims.Width, dims.Height)
		}
	}

	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}
	return constrain(img, MaxImageDimension), nil
}

// constrain downscales img so neither side exceeds maxDimension.
func constrain(img image.Image, maxDimension int) image.Image {
	b := img.Bounds()
	if b.Dx() <= maxDimension && b.Dy() <= maxDimension {
		return img
	}
	logging.Debug("Constraining large image from %dx%d to fit %d", b.Dx(), b.Dy(), maxDimension)
	return imaging.Fit(img, maxDimension, maxDimension, imaging.Lanczos)
}
