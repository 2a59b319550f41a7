// Package thumb scales uploaded images down to fixed-size JPEG previews.
package thumb

import (
	"fmt"
	"image"
	"io"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/webp"
)

const (
	DefaultMaxSize = 128
	DefaultQuality = 85
)

// Generator resizes images to fit a square bounding box and re-encodes them as JPEG.
type Generator struct {
	MaxSize int
	Quality int
}

func NewGenerator() *Generator {
	return &Generator{MaxSize: DefaultMaxSize, Quality: DefaultQuality}
}

// Generate decodes src, fits it inside MaxSize x MaxSize keeping the aspect
// ratio, and writes a JPEG to dst. Images already inside the box keep their size.
func (g *Generator) Generate(src io.Reader, dst io.Writer) (image.Point, error) {
	img, err := imaging.Decode(src, imaging.AutoOrientation(true))
	if err != nil {
		return image.Point{}, fmt.Errorf("failed to decode image: %w", err)
	}

	thumb := Fit(img, g.MaxSize)

	err = imaging.Encode(dst, thumb, imaging.JPEG, imaging.JPEGQuality(g.Quality))
	if err != nil {
		return image.Point{}, fmt.Errorf("failed to encode thumbnail: %w", err)
	}

	return thumb.Bounds().Size(), nil
}

// Fit scales img down so neither side exceeds maxSize. It never upscales.
func Fit(img image.Image, maxSize int) image.Image {
	b := img.Bounds()
	if b.Dx() <= maxSize && b.Dy() <= maxSize {
		return img
	}
	return imaging.Fit(img, maxSize, maxSize, imaging.Lanczos)
}
