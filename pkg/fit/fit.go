// Package fit tightens a declared rectangle around the pixels that actually
// contain the target element. A search box is scanned with a luma or color
// predicate and the bounding box of matching pixels, padded and recentered,
// replaces the declared geometry.
package fit

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"math"

	"seer/pkg/geom"
)

// Mode selects the pixel predicate
type Mode string

const (
	ModeLuma  Mode = "luma"
	ModeColor Mode = "color"
)

// Target selects which side of the luma threshold matches
type Target string

const (
	TargetDark  Target = "dark"
	TargetLight Target = "light"
)

// Detection defaults.
const (
	DefaultThreshold   = 160.0
	DefaultTolerance   = 18.0
	DefaultMinPixels   = 30
	DefaultMinCoverage = 0.6
)

// ErrNoMatch reports that the search found too few matching pixels. It is a
// fallback signal, not a failure: callers keep the declared rectangle.
var ErrNoMatch = errors.New("no matching region")

// Spec configures one detection run. Start from DefaultSpec and override;
// a zero Spec is not meaningful.
type Spec struct {
	Mode        Mode
	Threshold   float64     // luma cutoff (0-255), ModeLuma
	Target      Target      // dark matches luma <= threshold, light matches >=
	Color       color.NRGBA // reference color, ModeColor
	Tolerance   float64     // max per-channel distance to Color, ModeColor
	Pad         float64     // grow the detected box on every side
	MinPixels   int         // fewer matches than this is a no-match
	MinCoverage float64     // matches/search-area below this is a no-match
}

// DefaultSpec returns a luma-mode spec with the standard thresholds
func DefaultSpec() Spec {
	return Spec{
		Mode:        ModeLuma,
		Threshold:   DefaultThreshold,
		Target:      TargetDark,
		Tolerance:   DefaultTolerance,
		MinPixels:   DefaultMinPixels,
		MinCoverage: DefaultMinCoverage,
	}
}

// Luma returns the Rec. 709 perceptual brightness of an 8-bit RGB pixel,
// on the 0-255 scale.
func Luma(r, g, b uint8) float64 {
	return 0.2126*float64(r) + 0.7152*float64(g) + 0.0722*float64(b)
}

// Detect scans search (in content coordinates, origin top-left) for pixels
// matching the spec and returns the adjusted rectangle.
//
// The detected bounding box is padded by spec.Pad and clipped to the image.
// When it is strictly smaller than the search box in both dimensions, the
// declared width/height are kept and recentered on the detected box: the
// caller's intended annotation size survives, only its position corrects.
// ErrNoMatch is returned when fewer than MinPixels pixels match or coverage
// of the search box falls below MinCoverage.
func Detect(img image.Image, search geom.Rect, spec Spec) (geom.Rect, error) {
	if search.Empty() {
		return geom.Rect{}, fmt.Errorf("empty search region %vx%v", search.Width, search.Height)
	}

	bounds := img.Bounds()
	content := geom.RectAt(0, 0, float64(bounds.Dx()), float64(bounds.Dy()))
	scan := search.Intersect(content)
	if scan.Empty() {
		return geom.Rect{}, fmt.Errorf("search region (%v,%v %vx%v) outside image",
			search.X, search.Y, search.Width, search.Height)
	}

	match, err := spec.predicate()
	if err != nil {
		return geom.Rect{}, err
	}

	x0 := int(scan.X)
	y0 := int(scan.Y)
	x1 := int(scan.Right())
	y1 := int(scan.Bottom())

	minX, minY := x1, y1
	maxX, maxY := -1, -1
	count := 0
	for y := y0; y < y1; y++ {
		for x := x0; x < x1; x++ {
			r, g, b, _ := img.At(bounds.Min.X+x, bounds.Min.Y+y).RGBA()
			if match(uint8(r>>8), uint8(g>>8), uint8(b>>8)) {
				count++
				if x < minX {
					minX = x
				}
				if y < minY {
					minY = y
				}
				if x > maxX {
					maxX = x
				}
				if y > maxY {
					maxY = y
				}
			}
		}
	}

	minPixels := spec.MinPixels
	if minPixels < 1 {
		minPixels = 1
	}
	if count < minPixels || maxX < 0 {
		return geom.Rect{}, fmt.Errorf("%w: %d matching pixels (min %d)", ErrNoMatch, count, minPixels)
	}
	// Coverage is measured against the declared search box, not the
	// clipped scan area.
	if coverage := float64(count) / search.Area(); coverage < spec.MinCoverage {
		return geom.Rect{}, fmt.Errorf("%w: coverage %.3f below %.3f", ErrNoMatch, coverage, spec.MinCoverage)
	}

	tight := geom.RectAt(float64(minX), float64(minY), float64(maxX-minX+1), float64(maxY-minY+1))
	detected := tight
	if spec.Pad > 0 {
		detected = tight.Expand(spec.Pad).Intersect(content)
	}

	if detected.Width < search.Width && detected.Height < search.Height {
		center := detected.Center()
		recentered := geom.RectAt(
			math.Round(center.X-search.Width/2),
			math.Round(center.Y-search.Height/2),
			search.Width,
			search.Height,
		)
		return recentered.ClampInto(content), nil
	}
	return detected, nil
}

func (s Spec) predicate() (func(r, g, b uint8) bool, error) {
	switch s.Mode {
	case ModeLuma, "":
		threshold := s.Threshold
		if s.Target == TargetLight {
			return func(r, g, b uint8) bool {
				return Luma(r, g, b) >= threshold
			}, nil
		}
		return func(r, g, b uint8) bool {
			return Luma(r, g, b) <= threshold
		}, nil
	case ModeColor:
		ref := s.Color
		tol := math.Max(0, s.Tolerance)
		return func(r, g, b uint8) bool {
			return chanDist(r, ref.R) <= tol && chanDist(g, ref.G) <= tol && chanDist(b, ref.B) <= tol
		}, nil
	default:
		return nil, fmt.Errorf("unknown fit mode %q", s.Mode)
	}
}

func chanDist(a, b uint8) float64 {
	return math.Abs(float64(a) - float64(b))
}
