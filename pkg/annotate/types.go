// Package annotate renders declarative annotation specifications onto
// screenshots: rectangles, spotlights, arrows, and text, with automatic
// region fitting and geometric anchoring between elements.
package annotate

import (
	"fmt"

	"seer/pkg/geom"
)

// Kind identifies the annotation variant
type Kind string

const (
	KindRect      Kind = "rect"
	KindSpotlight Kind = "spotlight"
	KindArrow     Kind = "arrow"
	KindText      Kind = "text"
)

// Ref is a symbolic reference to an earlier element: an id, a 0-based
// index into the resolved elements, or the literal "nearest".
type Ref struct {
	ID      string
	Index   int
	IsIndex bool
	Nearest bool
}

func (r *Ref) String() string {
	switch {
	case r == nil:
		return "<none>"
	case r.Nearest:
		return "nearest"
	case r.IsIndex:
		return fmt.Sprintf("#%d", r.Index)
	default:
		return r.ID
	}
}

// Region is an explicit search box for fit detection
type Region struct {
	X, Y, W, H float64
}

// FitSpec is the per-descriptor fit configuration as written in the
// document. Field defaults cascade from Defaults.Fit* and the built-in
// constants; unset fields stay nil/empty here.
type FitSpec struct {
	Enabled     bool
	Mode        string
	Threshold   *float64
	Target      string
	Color       string
	Tolerance   *float64
	Pad         *float64
	MinPixels   *int
	MinCoverage *float64
	Region      *Region
}

// Defaults is the spec-level fallback configuration merged under every
// descriptor. Per-descriptor fields always win.
type Defaults struct {
	AutoScale *bool
	Scale     *float64
	AutoFit   *bool

	Color        string
	Width        *float64
	Size         *float64
	TextBg       string
	Outline      *bool
	OutlineColor string
	OutlineWidth *float64

	DimColor   string
	DimOpacity *float64
	DimPadding *float64
	DimRadius  *float64

	FitMode        string
	FitThreshold   *float64
	FitTarget      string
	FitColor       string
	FitTolerance   *float64
	FitPad         *float64
	FitMinPixels   *int
	FitMinCoverage *float64
}

// Descriptor is one annotation instruction. Optional fields are pointers
// (or empty strings) so the defaults merge can tell "unset" from zero.
type Descriptor struct {
	Kind Kind
	ID   string

	X, Y, W, H     *float64
	X1, Y1, X2, Y2 *float64

	Color string
	Fill  string
	Width *float64
	Scale *float64

	Outline      *bool
	OutlineColor string
	OutlineWidth *float64

	Fit *FitSpec

	// spotlight
	Radius  *float64
	Opacity *float64

	// arrow
	From, To           *Ref
	FromPos, ToPos     geom.Position
	HeadLen, HeadWidth *float64

	// text
	Text         string
	Size         *float64
	Bg           string
	Padding      *float64
	Anchor       *Ref
	AnchorPos    geom.Position
	AnchorOffset *geom.Point
}

// Spec is a parsed annotation document
type Spec struct {
	Defaults    Defaults
	Annotations []Descriptor
}

// withDefaults returns a copy of d with unset fields filled from the
// spec-level defaults. Spotlights take their dim_* family instead of the
// shared stroke fields, so a global stroke color never repaints a dim
// overlay.
func (d Descriptor) withDefaults(def Defaults) Descriptor {
	if d.Scale == nil {
		d.Scale = def.Scale
	}
	if d.Width == nil {
		d.Width = def.Width
	}
	if d.Outline == nil {
		d.Outline = def.Outline
	}
	if d.OutlineColor == "" {
		d.OutlineColor = def.OutlineColor
	}
	if d.OutlineWidth == nil {
		d.OutlineWidth = def.OutlineWidth
	}

	switch d.Kind {
	case KindSpotlight:
		if d.Color == "" {
			d.Color = def.DimColor
		}
		if d.Opacity == nil {
			d.Opacity = def.DimOpacity
		}
		if d.Padding == nil {
			d.Padding = def.DimPadding
		}
		if d.Radius == nil {
			d.Radius = def.DimRadius
		}
	case KindText:
		if d.Color == "" {
			d.Color = def.Color
		}
		if d.Size == nil {
			d.Size = def.Size
		}
		if d.Bg == "" {
			d.Bg = def.TextBg
		}
	default:
		if d.Color == "" {
			d.Color = def.Color
		}
	}
	return d
}

// ConfigError reports a descriptor that cannot be processed: missing
// required fields, an empty search box, or an unresolvable reference.
type ConfigError struct {
	Index  int
	ID     string
	Reason string
}

func (e *ConfigError) Error() string {
	if e.ID != "" {
		return fmt.Sprintf("annotation %d (%s): %s", e.Index, e.ID, e.Reason)
	}
	return fmt.Sprintf("annotation %d: %s", e.Index, e.Reason)
}

// Warning records a descriptor-level problem the renderer recovered from
type Warning struct {
	Index   int    `json:"index"`
	ID      string `json:"id,omitempty"`
	Message string `json:"message"`
}
