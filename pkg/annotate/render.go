package annotate

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"log/slog"
	"math"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fogleman/gg"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"

	"seer/pkg/fit"
	"seer/pkg/geom"
	"seer/pkg/imgio"
)

// Built-in style values. These are scaled with the image resolution when
// an annotation does not set its own; explicit values are used literally.
const (
	defaultStrokeWidth = 3.0
	defaultHeadLen     = 12.0
	defaultHeadWidth   = 8.0
	defaultTextSize    = 14.0
	defaultTextPad     = 4.0

	// referenceDim is the long-edge size at which auto-scale is 1.0.
	referenceDim = 1200.0
	maxAutoScale = 2.0
)

var (
	builtinRectColor  = color.NRGBA{R: 0xFF, G: 0x3B, B: 0x30, A: 0xFF}
	builtinArrowColor = color.NRGBA{R: 0x0A, G: 0x84, B: 0xFF, A: 0xFF}
	builtinTextColor  = color.NRGBA{R: 0xFF, G: 0xFF, B: 0xFF, A: 0xFF}
	builtinDimColor   = color.NRGBA{A: 115} // rgba(0,0,0,0.45)
)

// Config tunes a Renderer. The zero value is usable.
type Config struct {
	Logger *slog.Logger
}

func (c Config) defaults() Config {
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	return c
}

// Renderer draws annotation specs onto images. It holds no per-render
// state, so one Renderer may serve concurrent Render calls.
type Renderer struct {
	log *slog.Logger
}

func New(cfg Config) *Renderer {
	cfg = cfg.defaults()
	return &Renderer{log: cfg.Logger}
}

// Result is the outcome of one render pass.
type Result struct {
	// Image is a mutated copy of the source; the source itself is never
	// written to.
	Image *image.RGBA

	// Elements lists what was actually drawn, in draw order. Skipped
	// annotations leave no element, so indices here are the ones later
	// references resolve against.
	Elements []ResolvedElement

	// Warnings carries per-annotation problems that were recovered
	// locally: skipped descriptors and fit fallbacks.
	Warnings []Warning
}

// Render draws every annotation in spec onto a copy of src, in declaration
// order. A descriptor that cannot be resolved is skipped with a warning;
// the render itself only fails on unusable input.
func (r *Renderer) Render(src image.Image, spec *Spec) (*Result, error) {
	if src == nil {
		return nil, errors.New("render: nil source image")
	}
	if spec == nil {
		return nil, errors.New("render: nil spec")
	}

	canvas := imgio.CloneRGBA(src)
	dc := gg.NewContextForRGBA(canvas)
	baseScale := resolveScale(spec.Defaults, canvas.Bounds().Dx(), canvas.Bounds().Dy())

	res := &Result{Image: canvas, Elements: []ResolvedElement{}}
	reg := newRegistry()

	for i, raw := range spec.Annotations {
		d := raw.withDefaults(spec.Defaults)
		scale := baseScale
		if d.Scale != nil {
			scale = *d.Scale
		}
		warnf := func(msg string) {
			res.Warnings = append(res.Warnings, Warning{Index: i, ID: d.ID, Message: msg})
			r.log.Warn("annotation degraded", "index", i, "id", d.ID, "kind", d.Kind, "detail", msg)
		}

		el, err := renderOne(dc, src, d, spec.Defaults, reg, scale, warnf)
		if err != nil {
			res.Warnings = append(res.Warnings, Warning{Index: i, ID: d.ID, Message: err.Error()})
			r.log.Warn("skipping annotation", "index", i, "id", d.ID, "kind", d.Kind, "reason", err)
			continue
		}
		res.Elements = append(res.Elements, reg.add(el))
	}
	return res, nil
}

// renderOne resolves and draws a single descriptor. An error means the
// descriptor is skipped entirely; warnf reports degradations that still
// produce a drawing.
func renderOne(dc *gg.Context, src image.Image, d Descriptor, def Defaults, reg *registry, scale float64, warnf func(string)) (ResolvedElement, error) {
	if err := validateColors(d); err != nil {
		return ResolvedElement{}, err
	}

	switch d.Kind {
	case KindRect, KindSpotlight:
		rect, err := resolveRect(src, d, def, warnf)
		if err != nil {
			return ResolvedElement{}, err
		}
		if d.Kind == KindRect {
			drawRect(dc, d, rect, scale)
		} else {
			drawSpotlight(dc, d, rect)
		}
		return ResolvedElement{ID: d.ID, Kind: d.Kind, Rect: rect, HasRect: true}, nil

	case KindArrow:
		p1, p2, err := resolveArrowEndpoints(d, reg)
		if err != nil {
			return ResolvedElement{}, err
		}
		drawArrow(dc, d, p1, p2, scale)
		return ResolvedElement{ID: d.ID, Kind: d.Kind, P1: p1, P2: p2}, nil

	case KindText:
		pos, err := resolveTextPosition(d, reg)
		if err != nil {
			return ResolvedElement{}, err
		}
		box, err := drawText(dc, d, pos, scale)
		if err != nil {
			return ResolvedElement{}, err
		}
		return ResolvedElement{ID: d.ID, Kind: d.Kind, Rect: box, HasRect: true}, nil
	}
	return ResolvedElement{}, fmt.Errorf("unhandled kind %q", d.Kind)
}

// validateColors rejects malformed color strings up front so a descriptor
// fails whole instead of half-drawn. Specs built by ParseSpec never trip
// this; it guards hand-built ones.
func validateColors(d Descriptor) error {
	fields := []struct{ name, v string }{
		{"color", d.Color},
		{"fill", d.Fill},
		{"outline_color", d.OutlineColor},
		{"bg", d.Bg},
	}
	for _, f := range fields {
		if f.v == "" {
			continue
		}
		if _, err := ParseColor(f.v); err != nil {
			return fmt.Errorf("%s: %v", f.name, err)
		}
	}
	return nil
}

// resolveRect produces the final rectangle for a rect or spotlight: the
// declared geometry, optionally tightened by fit. Fit scans the pristine
// source, never earlier annotations. A no-match falls back to the declared
// rectangle when there is one.
func resolveRect(src image.Image, d Descriptor, def Defaults, warnf func(string)) (geom.Rect, error) {
	declared, hasDeclared := declaredRect(d)
	spec, region, err := resolveFitSpec(d, def)
	if err != nil {
		return geom.Rect{}, err
	}

	if spec == nil {
		if !hasDeclared {
			return geom.Rect{}, errors.New("missing geometry (x, y, w, h)")
		}
		if declared.Empty() {
			return geom.Rect{}, fmt.Errorf("empty rectangle %gx%g", declared.Width, declared.Height)
		}
		return declared, nil
	}

	bounds := src.Bounds()
	search := geom.RectAt(0, 0, float64(bounds.Dx()), float64(bounds.Dy()))
	fallback, hasFallback := geom.Rect{}, false
	switch {
	case region != nil:
		search = geom.RectAt(region.X, region.Y, region.W, region.H)
		fallback, hasFallback = declared, hasDeclared
	case hasDeclared:
		search = declared
		fallback, hasFallback = declared, true
	}

	if search.Empty() {
		return geom.Rect{}, fmt.Errorf("empty fit region %gx%g", search.Width, search.Height)
	}

	fitted, err := fit.Detect(src, search, *spec)
	if err == nil {
		return fitted, nil
	}
	if errors.Is(err, fit.ErrNoMatch) && hasFallback {
		warnf(fmt.Sprintf("fit found nothing (%v); keeping declared rectangle", err))
		return fallback, nil
	}
	return geom.Rect{}, fmt.Errorf("fit: %v", err)
}

func declaredRect(d Descriptor) (geom.Rect, bool) {
	if d.X == nil || d.Y == nil || d.W == nil || d.H == nil {
		return geom.Rect{}, false
	}
	return geom.RectAt(*d.X, *d.Y, *d.W, *d.H), true
}

// resolveFitSpec merges the built-in, spec-default, and per-annotation fit
// layers into a concrete detection spec. A nil spec means fit is disabled
// for this descriptor.
func resolveFitSpec(d Descriptor, def Defaults) (*fit.Spec, *Region, error) {
	enabled := true
	if def.AutoFit != nil {
		enabled = *def.AutoFit
	}
	if d.Fit != nil {
		enabled = d.Fit.Enabled
	}
	if !enabled {
		return nil, nil, nil
	}

	spec := fit.DefaultSpec()
	colorSet := false
	if def.FitMode != "" {
		spec.Mode = fit.Mode(def.FitMode)
	}
	if def.FitThreshold != nil {
		spec.Threshold = *def.FitThreshold
	}
	if def.FitTarget != "" {
		spec.Target = fit.Target(def.FitTarget)
	}
	if def.FitColor != "" {
		c, err := ParseColor(def.FitColor)
		if err != nil {
			return nil, nil, fmt.Errorf("fit color: %v", err)
		}
		spec.Color = c
		colorSet = true
	}
	if def.FitTolerance != nil {
		spec.Tolerance = *def.FitTolerance
	}
	if def.FitPad != nil {
		spec.Pad = *def.FitPad
	}
	if def.FitMinPixels != nil {
		spec.MinPixels = *def.FitMinPixels
	}
	if def.FitMinCoverage != nil {
		spec.MinCoverage = *def.FitMinCoverage
	}

	var region *Region
	if fs := d.Fit; fs != nil {
		if fs.Mode != "" {
			spec.Mode = fit.Mode(fs.Mode)
		}
		if fs.Threshold != nil {
			spec.Threshold = *fs.Threshold
		}
		if fs.Target != "" {
			spec.Target = fit.Target(fs.Target)
		}
		if fs.Color != "" {
			c, err := ParseColor(fs.Color)
			if err != nil {
				return nil, nil, fmt.Errorf("fit color: %v", err)
			}
			spec.Color = c
			colorSet = true
		}
		if fs.Tolerance != nil {
			spec.Tolerance = *fs.Tolerance
		}
		if fs.Pad != nil {
			spec.Pad = *fs.Pad
		}
		if fs.MinPixels != nil {
			spec.MinPixels = *fs.MinPixels
		}
		if fs.MinCoverage != nil {
			spec.MinCoverage = *fs.MinCoverage
		}
		region = fs.Region
	}

	if spec.Mode == fit.ModeColor && !colorSet {
		return nil, nil, errors.New("fit color mode needs a color")
	}
	return &spec, region, nil
}

// resolveScale computes the style multiplier for an image: an explicit
// scale wins, otherwise the long edge is compared against the reference
// size, capped at 2x and never below 1x.
func resolveScale(def Defaults, w, h int) float64 {
	if def.Scale != nil {
		return *def.Scale
	}
	if def.AutoScale != nil && !*def.AutoScale {
		return 1
	}
	maxDim := math.Max(float64(w), float64(h))
	return math.Min(maxAutoScale, math.Max(1, maxDim/referenceDim))
}

// scaledDefault scales a built-in style value, with a floor so strokes
// stay visible on small images.
func scaledDefault(v, scale, floor float64) float64 {
	return math.Max(floor, math.Round(v*scale))
}

func resolveColor(s string, fallback color.NRGBA) color.NRGBA {
	if s == "" {
		return fallback
	}
	c, err := ParseColor(s)
	if err != nil {
		return fallback
	}
	return c
}

// resolveOutline reports the outline color and extra width for a stroke,
// or false when outlining is turned off. The color contrasts with base
// unless set explicitly.
func resolveOutline(d Descriptor, base color.NRGBA, defWidth float64) (color.NRGBA, float64, bool) {
	enabled := true
	if d.Outline != nil {
		enabled = *d.Outline
	}
	if !enabled {
		return color.NRGBA{}, 0, false
	}
	oc := autoOutline(base)
	if d.OutlineColor != "" {
		oc = resolveColor(d.OutlineColor, oc)
	}
	ow := defWidth
	if d.OutlineWidth != nil {
		ow = *d.OutlineWidth
	}
	return oc, ow, true
}

func strokeWidth(d Descriptor, scale float64) float64 {
	if d.Width != nil {
		return *d.Width
	}
	return scaledDefault(defaultStrokeWidth, scale, 2)
}

func drawRect(dc *gg.Context, d Descriptor, rect geom.Rect, scale float64) {
	stroke := resolveColor(d.Color, builtinRectColor)
	width := strokeWidth(d, scale)

	if d.Fill != "" {
		dc.SetColor(resolveColor(d.Fill, color.NRGBA{}))
		dc.DrawRectangle(rect.X, rect.Y, rect.Width, rect.Height)
		dc.Fill()
	}

	// Outline first, then the stroke over it, leaving a contrasting rim.
	if oc, ow, ok := resolveOutline(d, stroke, math.Max(2, math.Round(0.6*width))); ok {
		dc.SetColor(oc)
		dc.SetLineWidth(width + 2*ow)
		dc.DrawRectangle(rect.X, rect.Y, rect.Width, rect.Height)
		dc.Stroke()
	}

	dc.SetColor(stroke)
	dc.SetLineWidth(width)
	dc.DrawRectangle(rect.X, rect.Y, rect.Width, rect.Height)
	dc.Stroke()
}

// drawSpotlight dims everything outside the rectangle, which itself stays
// untouched. Padding grows the hole; radius rounds its corners.
func drawSpotlight(dc *gg.Context, d Descriptor, rect geom.Rect) {
	dim := resolveColor(d.Color, builtinDimColor)
	if d.Opacity != nil {
		a := *d.Opacity
		if a <= 1 {
			a *= 255
		}
		dim.A = clampByte(math.Round(a))
	}

	hole := rect
	if d.Padding != nil && *d.Padding > 0 {
		hole = hole.Expand(*d.Padding)
	}

	dc.Push()
	if d.Radius != nil && *d.Radius > 0 {
		dc.DrawRoundedRectangle(hole.X, hole.Y, hole.Width, hole.Height, *d.Radius)
	} else {
		dc.DrawRectangle(hole.X, hole.Y, hole.Width, hole.Height)
	}
	dc.Clip()
	dc.InvertMask()
	dc.SetColor(dim)
	dc.DrawRectangle(0, 0, float64(dc.Width()), float64(dc.Height()))
	dc.Fill()
	// gg's Clip is not restored by Pop; reset it so later elements can
	// draw inside the hole.
	dc.ResetClip()
	dc.Pop()
}

func drawArrow(dc *gg.Context, d Descriptor, p1, p2 geom.Point, scale float64) {
	stroke := resolveColor(d.Color, builtinArrowColor)
	width := strokeWidth(d, scale)
	headLen := scaledDefault(defaultHeadLen, scale, 6)
	if d.HeadLen != nil {
		headLen = *d.HeadLen
	}
	headWidth := scaledDefault(defaultHeadWidth, scale, 5)
	if d.HeadWidth != nil {
		headWidth = *d.HeadWidth
	}

	if oc, ow, ok := resolveOutline(d, stroke, math.Max(2, math.Round(0.6*width))); ok {
		strokeArrow(dc, p1, p2, oc, width+2*ow, headLen+2*ow, headWidth+2*ow)
	}
	strokeArrow(dc, p1, p2, stroke, width, headLen, headWidth)
}

// strokeArrow draws a shaft from p1 to the base of a filled triangular
// head whose tip is p2.
func strokeArrow(dc *gg.Context, p1, p2 geom.Point, c color.NRGBA, width, headLen, headWidth float64) {
	angle := math.Atan2(p2.Y-p1.Y, p2.X-p1.X)
	back := geom.Pt(p2.X-headLen*math.Cos(angle), p2.Y-headLen*math.Sin(angle))
	half := headWidth / 2
	left := geom.Pt(back.X+half*math.Cos(angle+math.Pi/2), back.Y+half*math.Sin(angle+math.Pi/2))
	right := geom.Pt(back.X+half*math.Cos(angle-math.Pi/2), back.Y+half*math.Sin(angle-math.Pi/2))

	dc.SetColor(c)
	dc.SetLineWidth(width)
	dc.DrawLine(p1.X, p1.Y, back.X, back.Y)
	dc.Stroke()

	dc.MoveTo(p2.X, p2.Y)
	dc.LineTo(left.X, left.Y)
	dc.LineTo(right.X, right.Y)
	dc.ClosePath()
	dc.Fill()
}

// drawText draws a label whose top-left corner is pos, optionally over a
// background box, with an outline stamped in a circular pattern around the
// glyphs. Returns the text bounding box (without background padding).
func drawText(dc *gg.Context, d Descriptor, pos geom.Point, scale float64) (geom.Rect, error) {
	col := resolveColor(d.Color, builtinTextColor)
	size := scaledDefault(defaultTextSize, scale, 10)
	if d.Size != nil {
		size = *d.Size
	}

	face, err := newFace(size)
	if err != nil {
		return geom.Rect{}, fmt.Errorf("font: %v", err)
	}
	dc.SetFontFace(face)

	w, _ := dc.MeasureString(d.Text)
	metrics := face.Metrics()
	ascent := float64(metrics.Ascent) / 64
	height := float64(metrics.Ascent+metrics.Descent) / 64
	box := geom.RectAt(pos.X, pos.Y, w, height)
	baseline := pos.Y + ascent

	if d.Bg != "" {
		pad := scaledDefault(defaultTextPad, scale, 2)
		if d.Padding != nil {
			pad = *d.Padding
		}
		area := box.Expand(pad)
		dc.SetColor(resolveColor(d.Bg, color.NRGBA{}))
		dc.DrawRectangle(area.X, area.Y, area.Width, area.Height)
		dc.Fill()
	}

	if oc, ow, ok := resolveOutline(d, col, math.Max(1, math.Round(0.12*size))); ok {
		iw := int(ow)
		dc.SetColor(oc)
		for dy := -iw; dy <= iw; dy++ {
			for dx := -iw; dx <= iw; dx++ {
				if dx == 0 && dy == 0 || dx*dx+dy*dy > iw*iw {
					continue
				}
				dc.DrawString(d.Text, pos.X+float64(dx), baseline+float64(dy))
			}
		}
	}

	dc.SetColor(col)
	dc.DrawString(d.Text, pos.X, baseline)
	return box, nil
}

// FileResult describes an annotate run that read and wrote files.
type FileResult struct {
	Path     string            `json:"path"`
	Width    int               `json:"width"`
	Height   int               `json:"height"`
	Elements []ResolvedElement `json:"elements"`
	Warnings []Warning         `json:"warnings,omitempty"`
}

// RenderFile annotates the image at imagePath and writes the result as
// PNG to outPath; an empty outPath derives one next to the input.
func (r *Renderer) RenderFile(imagePath, outPath string, spec *Spec) (*FileResult, error) {
	img, err := imgio.Load(imagePath)
	if err != nil {
		return nil, err
	}
	res, err := r.Render(img, spec)
	if err != nil {
		return nil, err
	}
	if outPath == "" {
		outPath = DefaultOutPath(imagePath)
	}
	if err := imgio.SavePNG(outPath, res.Image); err != nil {
		return nil, err
	}
	if abs, err := filepath.Abs(outPath); err == nil {
		outPath = abs
	}
	b := res.Image.Bounds()
	return &FileResult{
		Path:     outPath,
		Width:    b.Dx(),
		Height:   b.Dy(),
		Elements: res.Elements,
		Warnings: res.Warnings,
	}, nil
}

// DefaultOutPath names the annotated copy of an image: shot.png becomes
// shot.annotated.png.
func DefaultOutPath(imagePath string) string {
	ext := filepath.Ext(imagePath)
	return strings.TrimSuffix(imagePath, ext) + ".annotated.png"
}

var baseFont = sync.OnceValues(func() (*opentype.Font, error) {
	return opentype.Parse(goregular.TTF)
})

func newFace(size float64) (font.Face, error) {
	f, err := baseFont()
	if err != nil {
		return nil, err
	}
	return opentype.NewFace(f, &opentype.FaceOptions{Size: size, DPI: 72, Hinting: font.HintingFull})
}
