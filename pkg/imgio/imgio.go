// Package imgio loads, converts, and saves the raster images the rest of
// the system works on. Loads always hit the filesystem: baseline-loop paths
// are rewritten between runs, so caching by path would serve stale pixels.
package imgio

import (
	"fmt"
	"image"
	"image/draw"
	_ "image/jpeg" // register JPEG decoding
	"image/png"
	"io"
	"os"
	"path/filepath"

	"github.com/nfnt/resize"
)

// Load reads and decodes a PNG or JPEG image from disk
func Load(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open image: %w", err)
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	return img, nil
}

// Decode decodes an image from a stream
func Decode(r io.Reader) (image.Image, error) {
	img, _, err := image.Decode(r)
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}
	return img, nil
}

// CloneRGBA copies img into a fresh RGBA buffer anchored at the origin.
// The result never aliases the source pixels.
func CloneRGBA(img image.Image) *image.RGBA {
	b := img.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), img, b.Min, draw.Src)
	return dst
}

// ToRGBA returns img as *image.RGBA without copying when it already is one
// and starts at the origin. Use CloneRGBA when the caller will draw on it.
func ToRGBA(img image.Image) *image.RGBA {
	if rgba, ok := img.(*image.RGBA); ok && rgba.Bounds().Min == image.Pt(0, 0) {
		return rgba
	}
	return CloneRGBA(img)
}

// SavePNG encodes img to path, creating parent directories as needed
func SavePNG(path string, img image.Image) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create output dir: %w", err)
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer f.Close()

	if err := png.Encode(f, img); err != nil {
		return fmt.Errorf("encode %s: %w", path, err)
	}
	return nil
}

// Lanczos resamples img to w x h using Lanczos3
func Lanczos(img image.Image, w, h int) image.Image {
	return resize.Resize(uint(w), uint(h), img, resize.Lanczos3)
}
