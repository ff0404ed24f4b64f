package diff

import (
	"encoding/json"
	"errors"
	"image"
	"image/color"
	"os"
	"path/filepath"
	"testing"
)

func solidImage(w, h int, c color.NRGBA) *image.RGBA {
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
	diffWhite = color.NRGBA{255, 255, 255, 255}
	diffBlack = color.NRGBA{0, 0, 0, 255}
)

func TestCompare_IdenticalImages(t *testing.T) {
	a := solidImage(50, 50, diffWhite)
	b := solidImage(50, 50, diffWhite)

	m, highlight, err := Compare(a, b, Options{Highlight: true})
	if err != nil {
		t.Fatalf("compare failed: %v", err)
	}
	if m.PercentChanged != 0 || m.AvgDiffPercent != 0 {
		t.Errorf("identical images should diff to zero, got %+v", m)
	}
	if m.HashDistance != 0 {
		t.Errorf("identical images should hash identically, got distance %d", m.HashDistance)
	}
	if m.Width != 50 || m.Height != 50 || m.Resized {
		t.Errorf("unexpected metrics: %+v", m)
	}
	// Nothing changed, so the highlight is just the current image.
	if got := highlight.RGBAAt(25, 25); got != (color.RGBA{255, 255, 255, 255}) {
		t.Errorf("highlight pixel = %v, want untouched white", got)
	}
}

func TestCompare_CountsChangedBlock(t *testing.T) {
	baseline := solidImage(100, 100, diffWhite)
	current := solidImage(100, 100, diffWhite)
	fillBlock(current, 0, 0, 50, 50, diffBlack)

	m, _, err := Compare(baseline, current, Options{})
	if err != nil {
		t.Fatalf("compare failed: %v", err)
	}
	// A white-to-black quarter moves both metrics to exactly 25%.
	if m.PercentChanged != 25 {
		t.Errorf("percent_changed = %g, want 25", m.PercentChanged)
	}
	if m.AvgDiffPercent != 25 {
		t.Errorf("avg_diff_percent = %g, want 25", m.AvgDiffPercent)
	}
}

func TestCompare_IsSymmetric(t *testing.T) {
	a := solidImage(60, 60, diffWhite)
	fillBlock(a, 10, 10, 20, 20, color.NRGBA{200, 40, 90, 255})
	b := solidImage(60, 60, diffWhite)
	fillBlock(b, 25, 25, 20, 20, diffBlack)

	ab, _, err := Compare(a, b, Options{})
	if err != nil {
		t.Fatalf("compare failed: %v", err)
	}
	ba, _, err := Compare(b, a, Options{})
	if err != nil {
		t.Fatalf("compare failed: %v", err)
	}
	if ab.PercentChanged != ba.PercentChanged || ab.AvgDiffPercent != ba.AvgDiffPercent {
		t.Errorf("diff is not symmetric: %+v vs %+v", ab, ba)
	}
}

func TestCompare_NoiseBelowFloorIgnored(t *testing.T) {
	baseline := solidImage(100, 100, diffWhite)

	// A blue-only wobble of 4 units weighs in under the floor.
	quiet := solidImage(100, 100, diffWhite)
	fillBlock(quiet, 0, 0, 10, 10, color.NRGBA{255, 255, 251, 255})

	m, _, err := Compare(baseline, quiet, Options{})
	if err != nil {
		t.Fatalf("compare failed: %v", err)
	}
	if m.PercentChanged != 0 {
		t.Errorf("sub-floor noise should not count, got %g%%", m.PercentChanged)
	}

	// The same wobble on red crosses the floor.
	loud := solidImage(100, 100, diffWhite)
	fillBlock(loud, 0, 0, 10, 10, color.NRGBA{251, 255, 255, 255})

	m, _, err = Compare(baseline, loud, Options{})
	if err != nil {
		t.Fatalf("compare failed: %v", err)
	}
	if m.PercentChanged != 1 {
		t.Errorf("red wobble should mark the 10x10 block, got %g%%", m.PercentChanged)
	}
	if m.AvgDiffPercent <= 0 {
		t.Errorf("avg_diff_percent should be positive, got %g", m.AvgDiffPercent)
	}
}

func TestCompare_SizeMismatch(t *testing.T) {
	a := solidImage(10, 10, diffWhite)
	b := solidImage(20, 20, diffWhite)

	_, _, err := Compare(a, b, Options{})
	var sm *SizeMismatchError
	if !errors.As(err, &sm) {
		t.Fatalf("expected SizeMismatchError, got %v", err)
	}
	if sm.BaselineWidth != 10 || sm.CurrentWidth != 20 {
		t.Errorf("mismatch dims wrong: %+v", sm)
	}
}

func TestCompare_ResizeToBaseline(t *testing.T) {
	a := solidImage(40, 40, diffWhite)
	b := solidImage(80, 80, diffWhite)

	m, _, err := Compare(a, b, Options{Resize: true})
	if err != nil {
		t.Fatalf("compare failed: %v", err)
	}
	if !m.Resized {
		t.Error("expected resized=true")
	}
	if m.Width != 40 || m.Height != 40 {
		t.Errorf("metrics should use the baseline size, got %dx%d", m.Width, m.Height)
	}
	if m.PercentChanged != 0 {
		t.Errorf("uniform images should still match after resampling, got %g%%", m.PercentChanged)
	}
}

func TestCompare_HighlightPaintsChangedPixels(t *testing.T) {
	baseline := solidImage(60, 60, diffWhite)
	current := solidImage(60, 60, diffWhite)
	fillBlock(current, 20, 20, 10, 10, diffBlack)

	_, highlight, err := Compare(baseline, current, Options{Highlight: true})
	if err != nil {
		t.Fatalf("compare failed: %v", err)
	}
	if highlight == nil {
		t.Fatal("expected a highlight image")
	}
	if got := highlight.RGBAAt(25, 25); got != (color.RGBA{255, 0, 0, 255}) {
		t.Errorf("changed pixel = %v, want full red", got)
	}
	if got := highlight.RGBAAt(5, 5); got != (color.RGBA{255, 255, 255, 255}) {
		t.Errorf("unchanged pixel = %v, want the current image's white", got)
	}

	// Without the option no image is built.
	_, none, err := Compare(baseline, current, Options{})
	if err != nil {
		t.Fatalf("compare failed: %v", err)
	}
	if none != nil {
		t.Error("expected no highlight image by default")
	}
}

func TestReport_RoundTrip(t *testing.T) {
	m := &Metrics{
		PercentChanged: 12.34567,
		AvgDiffPercent: 0.00049,
		HashDistance:   3,
		Width:          640,
		Height:         480,
		Resized:        true,
	}
	rep := NewReport("base.png", "cur.png", "d.png", m)
	if rep.PercentChanged != 12.346 {
		t.Errorf("percent_changed not rounded: %g", rep.PercentChanged)
	}
	if rep.AvgDiffPercent != 0 {
		t.Errorf("avg_diff_percent not rounded: %g", rep.AvgDiffPercent)
	}
	if !filepath.IsAbs(rep.Baseline) || !filepath.IsAbs(rep.DiffImage) {
		t.Errorf("report paths should be absolute: %+v", rep)
	}

	path := filepath.Join(t.TempDir(), "reports", "r.json")
	if err := WriteReport(path, rep); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}
	var got Report
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	if got != *rep {
		t.Errorf("round trip mismatch:\n%+v\n%+v", got, *rep)
	}
}
