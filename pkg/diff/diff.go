// Package diff compares two screenshots pixel by pixel and reports how
// much changed, both as a changed-pixel percentage and as an average
// difference magnitude, alongside a perceptual hash distance. It can also
// produce a copy of the current image with every changed pixel painted
// red.
package diff

import (
	"encoding/json"
	"fmt"
	"image"
	"math"
	"os"
	"path/filepath"

	"github.com/corona10/goimagehash"

	"seer/pkg/imgio"
)

// noiseFloor is the minimum weighted per-pixel difference that counts as
// a change. Channel differences are folded with the integer Rec.601 luma
// weights, so a one-unit wobble on a single channel rounds to zero and is
// ignored. The constant is fixed on purpose: diffs stay comparable from
// run to run.
const noiseFloor = 1

// Options control a comparison. The zero value requires equal dimensions
// and skips the highlight image.
type Options struct {
	Resize    bool // resample current to the baseline's size instead of failing
	Highlight bool // build the red-highlight diff image
}

// Metrics is the outcome of one comparison.
type Metrics struct {
	PercentChanged float64 `json:"percent_changed"`
	AvgDiffPercent float64 `json:"avg_diff_percent"`
	HashDistance   int     `json:"hash_distance"`
	Width          int     `json:"width"`
	Height         int     `json:"height"`
	Resized        bool    `json:"resized"`
}

// SizeMismatchError reports comparison inputs whose dimensions differ
// while resizing was not allowed.
type SizeMismatchError struct {
	BaselineWidth, BaselineHeight int
	CurrentWidth, CurrentHeight   int
}

func (e *SizeMismatchError) Error() string {
	return fmt.Sprintf("size mismatch: baseline %dx%d, current %dx%d (enable resize to compare anyway)",
		e.BaselineWidth, e.BaselineHeight, e.CurrentWidth, e.CurrentHeight)
}

// Compare diffs current against baseline. The returned image is non-nil
// only when opts.Highlight is set; it is the (possibly resized) current
// image with changed pixels painted full red.
func Compare(baseline, current image.Image, opts Options) (*Metrics, *image.RGBA, error) {
	bw, bh := baseline.Bounds().Dx(), baseline.Bounds().Dy()
	cw, ch := current.Bounds().Dx(), current.Bounds().Dy()

	resized := false
	if bw != cw || bh != ch {
		if !opts.Resize {
			return nil, nil, &SizeMismatchError{
				BaselineWidth: bw, BaselineHeight: bh,
				CurrentWidth: cw, CurrentHeight: ch,
			}
		}
		current = imgio.Lanczos(current, bw, bh)
		resized = true
	}

	base := imgio.ToRGBA(baseline)
	cur := imgio.ToRGBA(current)

	var highlight *image.RGBA
	if opts.Highlight {
		highlight = imgio.CloneRGBA(cur)
	}

	changed := 0
	var sum int64
	for y := 0; y < bh; y++ {
		bi := y * base.Stride
		ci := y * cur.Stride
		for x := 0; x < bw; x++ {
			dr := absDiff(base.Pix[bi], cur.Pix[ci])
			dg := absDiff(base.Pix[bi+1], cur.Pix[ci+1])
			db := absDiff(base.Pix[bi+2], cur.Pix[ci+2])
			gray := (299*dr + 587*dg + 114*db) / 1000
			sum += int64(gray)
			if gray >= noiseFloor {
				changed++
				if highlight != nil {
					hi := y*highlight.Stride + x*4
					highlight.Pix[hi] = 0xFF
					highlight.Pix[hi+1] = 0
					highlight.Pix[hi+2] = 0
					highlight.Pix[hi+3] = 0xFF
				}
			}
			bi += 4
			ci += 4
		}
	}

	total := bw * bh
	m := &Metrics{
		PercentChanged: float64(changed) / float64(total) * 100,
		AvgDiffPercent: float64(sum) / (255 * float64(total)) * 100,
		Width:          bw,
		Height:         bh,
		Resized:        resized,
	}

	dist, err := hashDistance(base, cur)
	if err != nil {
		return nil, nil, err
	}
	m.HashDistance = dist
	return m, highlight, nil
}

// CompareFiles loads both images and compares them.
func CompareFiles(baselinePath, currentPath string, opts Options) (*Metrics, *image.RGBA, error) {
	baseline, err := imgio.Load(baselinePath)
	if err != nil {
		return nil, nil, err
	}
	current, err := imgio.Load(currentPath)
	if err != nil {
		return nil, nil, err
	}
	return Compare(baseline, current, opts)
}

func absDiff(a, b uint8) int {
	if a > b {
		return int(a - b)
	}
	return int(b - a)
}

// hashDistance is the Hamming distance between the perception hashes of
// the two images. It stays low across compression artifacts and global
// brightness shifts, so it complements the raw pixel counts.
func hashDistance(a, b image.Image) (int, error) {
	ha, err := goimagehash.PerceptionHash(a)
	if err != nil {
		return 0, fmt.Errorf("perception hash: %w", err)
	}
	hb, err := goimagehash.PerceptionHash(b)
	if err != nil {
		return 0, fmt.Errorf("perception hash: %w", err)
	}
	return ha.Distance(hb)
}

// Size is the pixel dimensions block of a report.
type Size struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Report is the on-disk metrics document for one comparison.
type Report struct {
	Baseline       string  `json:"baseline"`
	Current        string  `json:"current"`
	DiffImage      string  `json:"diff_image,omitempty"`
	PercentChanged float64 `json:"percent_changed"`
	AvgDiffPercent float64 `json:"avg_diff_percent"`
	HashDistance   int     `json:"hash_distance"`
	Size           Size    `json:"size"`
	Resized        bool    `json:"resized"`
}

// NewReport builds the report for a comparison, with absolute paths and
// percentages rounded to three decimals.
func NewReport(baselinePath, currentPath, diffPath string, m *Metrics) *Report {
	return &Report{
		Baseline:       absPath(baselinePath),
		Current:        absPath(currentPath),
		DiffImage:      absPath(diffPath),
		PercentChanged: round3(m.PercentChanged),
		AvgDiffPercent: round3(m.AvgDiffPercent),
		HashDistance:   m.HashDistance,
		Size:           Size{Width: m.Width, Height: m.Height},
		Resized:        m.Resized,
	}
}

// WriteReport writes the report as indented JSON, creating parent
// directories as needed.
func WriteReport(path string, rep *Report) error {
	data, err := json.MarshalIndent(rep, "", "  ")
	if err != nil {
		return err
	}
	data = append(data, '\n')
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("write report: %w", err)
		}
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	return nil
}

func round3(v float64) float64 {
	return math.Round(v*1000) / 1000
}

func absPath(p string) string {
	if p == "" {
		return ""
	}
	if abs, err := filepath.Abs(p); err == nil {
		return abs
	}
	return p
}
