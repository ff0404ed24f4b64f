package fit

import (
	"errors"
	"image"
	"image/color"
	"testing"

	"seer/pkg/geom"
)

func uniformImage(w, h int, c color.NRGBA) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, c)
		}
	}
	return img
}

func fillBlock(img *image.RGBA, x, y, w, h int, c color.NRGBA) {
	for yy := y; yy < y+h; yy++ {
		for xx := x; xx < x+w; xx++ {
			img.Set(xx, yy, c)
		}
	}
}

var (
	white = color.NRGBA{255, 255, 255, 255}
	black = color.NRGBA{0, 0, 0, 255}
)

func TestDetect_LumaExactRecovery(t *testing.T) {
	// Dark 40x40 block; the search box shares its width but is taller, so
	// the tight box is used as-is (no recentering) and must match the block.
	img := uniformImage(100, 100, white)
	fillBlock(img, 30, 30, 40, 40, black)

	got, err := Detect(img, geom.RectAt(30, 25, 40, 50), DefaultSpec())
	if err != nil {
		t.Fatalf("detect failed: %v", err)
	}
	want := geom.RectAt(30, 30, 40, 40)
	if got != want {
		t.Errorf("expected %v, got %v", want, got)
	}
}

func TestDetect_RecentersKeepingDeclaredSize(t *testing.T) {
	// Block strictly smaller than the search box on both axes: the result
	// keeps the declared 60x60 but centers on the block.
	img := uniformImage(100, 100, white)
	fillBlock(img, 44, 36, 20, 20, black)

	spec := DefaultSpec()
	spec.MinCoverage = 0 // the block covers only ~11% of the search box

	got, err := Detect(img, geom.RectAt(20, 20, 60, 60), spec)
	if err != nil {
		t.Fatalf("detect failed: %v", err)
	}
	want := geom.RectAt(24, 16, 60, 60)
	if got != want {
		t.Errorf("expected %v, got %v", want, got)
	}
}

func TestDetect_CoverageBelowMinIsNoMatch(t *testing.T) {
	img := uniformImage(100, 100, white)
	fillBlock(img, 40, 40, 20, 20, black) // 400 px in a 3600 px search box

	_, err := Detect(img, geom.RectAt(20, 20, 60, 60), DefaultSpec())
	if !errors.Is(err, ErrNoMatch) {
		t.Fatalf("expected ErrNoMatch, got %v", err)
	}
}

func TestDetect_TooFewPixelsIsNoMatch(t *testing.T) {
	img := uniformImage(50, 50, white)
	fillBlock(img, 20, 20, 3, 3, black) // 9 px, under the default 30

	spec := DefaultSpec()
	spec.MinCoverage = 0

	_, err := Detect(img, geom.RectAt(10, 10, 30, 30), spec)
	if !errors.Is(err, ErrNoMatch) {
		t.Fatalf("expected ErrNoMatch, got %v", err)
	}
}

func TestDetect_NoMatchOnAllLight(t *testing.T) {
	img := uniformImage(50, 50, white)

	_, err := Detect(img, geom.RectAt(0, 0, 50, 50), DefaultSpec())
	if !errors.Is(err, ErrNoMatch) {
		t.Fatalf("expected ErrNoMatch on a pure white image, got %v", err)
	}
}

func TestDetect_LightTarget(t *testing.T) {
	img := uniformImage(100, 100, black)
	fillBlock(img, 10, 10, 40, 40, white)

	spec := DefaultSpec()
	spec.Target = TargetLight

	got, err := Detect(img, geom.RectAt(10, 5, 40, 50), spec)
	if err != nil {
		t.Fatalf("detect failed: %v", err)
	}
	want := geom.RectAt(10, 10, 40, 40)
	if got != want {
		t.Errorf("expected %v, got %v", want, got)
	}
}

func TestDetect_ColorMode(t *testing.T) {
	red := color.NRGBA{200, 30, 30, 255}
	img := uniformImage(100, 100, white)
	fillBlock(img, 12, 10, 30, 30, red)

	spec := DefaultSpec()
	spec.Mode = ModeColor
	spec.Color = red

	// Block center is (27,25); declared size 34x34 is kept and recentered.
	got, err := Detect(img, geom.RectAt(8, 8, 34, 34), spec)
	if err != nil {
		t.Fatalf("detect failed: %v", err)
	}
	want := geom.RectAt(10, 8, 34, 34)
	if got != want {
		t.Errorf("expected %v, got %v", want, got)
	}
}

func TestDetect_ColorModeTolerance(t *testing.T) {
	base := color.NRGBA{100, 100, 100, 255}
	near := color.NRGBA{110, 95, 108, 255} // within the default tolerance of 18
	far := color.NRGBA{150, 100, 100, 255} // 50 away on red

	img := uniformImage(60, 60, white)
	fillBlock(img, 10, 10, 20, 40, base)
	fillBlock(img, 30, 10, 10, 40, near)
	fillBlock(img, 40, 10, 10, 40, far)

	spec := DefaultSpec()
	spec.Mode = ModeColor
	spec.Color = base

	// base+near form one 30x40 region; far is scanned but excluded.
	got, err := Detect(img, geom.RectAt(10, 10, 40, 40), spec)
	if err != nil {
		t.Fatalf("detect failed: %v", err)
	}
	want := geom.RectAt(10, 10, 30, 40)
	if got != want {
		t.Errorf("expected %v, got %v", want, got)
	}
}

func TestDetect_WrongColorIsNoMatch(t *testing.T) {
	img := uniformImage(60, 60, white)
	fillBlock(img, 10, 10, 30, 30, color.NRGBA{0, 0, 255, 255})

	spec := DefaultSpec()
	spec.Mode = ModeColor
	spec.Color = color.NRGBA{255, 0, 0, 255}

	_, err := Detect(img, geom.RectAt(10, 10, 30, 30), spec)
	if !errors.Is(err, ErrNoMatch) {
		t.Fatalf("expected ErrNoMatch, got %v", err)
	}
}

func TestDetect_PadExpandsAndClips(t *testing.T) {
	img := uniformImage(100, 100, white)
	fillBlock(img, 30, 30, 40, 40, black)

	spec := DefaultSpec()
	spec.Pad = 3

	got, err := Detect(img, geom.RectAt(30, 20, 40, 60), spec)
	if err != nil {
		t.Fatalf("detect failed: %v", err)
	}
	want := geom.RectAt(27, 27, 46, 46)
	if got != want {
		t.Errorf("expected %v, got %v", want, got)
	}

	// A block at the image corner: padding clips at the edge.
	img2 := uniformImage(100, 100, white)
	fillBlock(img2, 0, 0, 40, 40, black)
	spec.Pad = 5

	got, err = Detect(img2, geom.RectAt(0, 0, 40, 60), spec)
	if err != nil {
		t.Fatalf("detect failed: %v", err)
	}
	want = geom.RectAt(0, 0, 45, 45)
	if got != want {
		t.Errorf("expected %v, got %v", want, got)
	}
}

func TestDetect_EmptySearchRegion(t *testing.T) {
	img := uniformImage(50, 50, white)

	_, err := Detect(img, geom.RectAt(10, 10, 0, 40), DefaultSpec())
	if err == nil {
		t.Fatalf("expected error for empty region")
	}
	if errors.Is(err, ErrNoMatch) {
		t.Errorf("empty region is a config problem, not a no-match")
	}
}

func TestDetect_SearchOutsideImage(t *testing.T) {
	img := uniformImage(50, 50, white)

	_, err := Detect(img, geom.RectAt(100, 100, 20, 20), DefaultSpec())
	if err == nil {
		t.Fatalf("expected error for out-of-image region")
	}
}

func TestDetect_UnknownMode(t *testing.T) {
	img := uniformImage(50, 50, white)

	spec := DefaultSpec()
	spec.Mode = "edges"

	_, err := Detect(img, geom.RectAt(0, 0, 50, 50), spec)
	if err == nil || errors.Is(err, ErrNoMatch) {
		t.Fatalf("expected config error for unknown mode, got %v", err)
	}
}

func TestLuma(t *testing.T) {
	tests := []struct {
		r, g, b uint8
		want    float64
	}{
		{0, 0, 0, 0},
		{255, 255, 255, 255},
		{255, 0, 0, 0.2126 * 255},
		{0, 255, 0, 0.7152 * 255},
	}
	for _, tt := range tests {
		got := Luma(tt.r, tt.g, tt.b)
		if diff := got - tt.want; diff > 1e-9 || diff < -1e-9 {
			t.Errorf("Luma(%d,%d,%d): expected %f, got %f", tt.r, tt.g, tt.b, tt.want, got)
		}
	}
}
