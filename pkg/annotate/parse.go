package annotate

import (
	"encoding/json"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"seer/pkg/geom"
)

// ParseSpec parses a JSON annotation document. The document is either an
// object with "defaults" and "annotations" or a bare array of annotations.
func ParseSpec(data []byte) (*Spec, error) {
	var root any
	if err := json.Unmarshal(data, &root); err != nil {
		return nil, fmt.Errorf("invalid spec: %w", err)
	}
	return normalizeSpec(root)
}

// ParseSpecYAML parses a YAML annotation document with the same shape
// rules as ParseSpec.
func ParseSpecYAML(data []byte) (*Spec, error) {
	var root any
	if err := yaml.Unmarshal(data, &root); err != nil {
		return nil, fmt.Errorf("invalid spec: %w", err)
	}
	return normalizeSpec(root)
}

// LoadSpec reads a spec file; ".yaml"/".yml" parse as YAML, everything
// else as JSON. The path "-" reads JSON from stdin.
func LoadSpec(path string) (*Spec, error) {
	if path == "-" {
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			return nil, fmt.Errorf("read stdin: %w", err)
		}
		return ParseSpec(data)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read spec: %w", err)
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return ParseSpecYAML(data)
	default:
		return ParseSpec(data)
	}
}

func normalizeSpec(root any) (*Spec, error) {
	spec := &Spec{}
	var items []any

	switch doc := root.(type) {
	case []any:
		items = doc
	case map[string]any:
		if d, ok := doc["defaults"]; ok && d != nil {
			dm, ok := d.(map[string]any)
			if !ok {
				return nil, fmt.Errorf("spec: \"defaults\" must be an object")
			}
			def, err := normalizeDefaults(dm)
			if err != nil {
				return nil, err
			}
			spec.Defaults = def
		}
		anns, ok := doc["annotations"]
		if !ok {
			return nil, fmt.Errorf("spec must be an array or an object with \"annotations\"")
		}
		items, ok = anns.([]any)
		if !ok {
			return nil, fmt.Errorf("spec: \"annotations\" must be an array")
		}
	default:
		return nil, fmt.Errorf("spec must be an array or an object with \"annotations\"")
	}

	seen := map[string]int{}
	for i, item := range items {
		d, err := normalizeDescriptor(i, item)
		if err != nil {
			return nil, err
		}
		if d.ID != "" {
			if prev, dup := seen[d.ID]; dup {
				return nil, &ConfigError{Index: i, ID: d.ID,
					Reason: fmt.Sprintf("duplicate id (first used by annotation %d)", prev)}
			}
			seen[d.ID] = i
		}
		spec.Annotations = append(spec.Annotations, d)
	}
	return spec, nil
}

func normalizeDescriptor(idx int, v any) (Descriptor, error) {
	var d Descriptor
	m, ok := v.(map[string]any)
	if !ok {
		return d, &ConfigError{Index: idx, Reason: "annotation must be an object"}
	}

	p := fieldParser{m: m}
	kindStr := p.str("type")
	d.ID = p.str("id")
	if p.err != nil {
		return d, &ConfigError{Index: idx, ID: d.ID, Reason: p.err.Error()}
	}

	switch strings.ToLower(kindStr) {
	case "rect":
		d.Kind = KindRect
	case "spotlight", "focus", "dim":
		d.Kind = KindSpotlight
	case "arrow":
		d.Kind = KindArrow
	case "text":
		d.Kind = KindText
	case "":
		return d, &ConfigError{Index: idx, ID: d.ID, Reason: `missing "type"`}
	default:
		return d, &ConfigError{Index: idx, ID: d.ID, Reason: fmt.Sprintf("unknown type %q", kindStr)}
	}

	d.X = p.float("x")
	d.Y = p.float("y")
	d.W = p.float("w")
	d.H = p.float("h")
	d.X1 = p.float("x1")
	d.Y1 = p.float("y1")
	d.X2 = p.float("x2")
	d.Y2 = p.float("y2")

	d.Color = p.color("color")
	if d.Color == "" && d.Kind == KindSpotlight {
		d.Color = p.color("dim_color")
	}
	d.Fill = p.color("fill")
	d.Width = p.float("width")
	d.Scale = p.float("scale")
	d.Outline = p.bool("outline")
	d.OutlineColor = p.color("outline_color")
	d.OutlineWidth = p.float("outline_width")

	d.Radius = p.float("radius")
	d.Opacity = p.float("opacity")
	d.Padding = p.float("padding")

	d.From = p.ref("from")
	d.FromPos = p.position("from_pos")
	d.To = p.ref("to")
	d.ToPos = p.position("to_pos")
	d.HeadLen = p.float("head_len")
	d.HeadWidth = p.float("head_width")

	d.Text = p.str("text")
	d.Size = p.float("size")
	d.Bg = p.color("bg")
	if d.Bg == "" {
		d.Bg = p.color("text_bg")
	}
	d.Anchor = p.ref("anchor")
	d.AnchorPos = p.position("anchor_pos")
	d.AnchorOffset = p.offset("anchor_offset")

	fs, err := normalizeFit(m["fit"])
	if err != nil {
		return d, &ConfigError{Index: idx, ID: d.ID, Reason: err.Error()}
	}
	d.Fit = fs

	if p.err != nil {
		return d, &ConfigError{Index: idx, ID: d.ID, Reason: p.err.Error()}
	}
	if d.Kind == KindText && d.Text == "" {
		return d, &ConfigError{Index: idx, ID: d.ID, Reason: `text annotation requires "text"`}
	}
	return d, nil
}

func normalizeDefaults(m map[string]any) (Defaults, error) {
	var def Defaults
	p := fieldParser{m: m}

	def.AutoScale = p.bool("auto_scale")
	def.Scale = p.float("scale")
	def.AutoFit = p.bool("auto_fit")

	def.Color = p.color("color")
	def.Width = p.float("width")
	def.Size = p.float("size")
	def.TextBg = p.color("text_bg")
	def.Outline = p.bool("outline")
	def.OutlineColor = p.color("outline_color")
	def.OutlineWidth = p.float("outline_width")

	def.DimColor = p.color("dim_color")
	def.DimOpacity = p.float("dim_opacity")
	def.DimPadding = p.float("dim_padding")
	def.DimRadius = p.float("dim_radius")

	def.FitMode = p.fitMode("fit_mode")
	def.FitThreshold = p.float("fit_threshold")
	def.FitTarget = p.fitTarget("fit_target")
	def.FitColor = p.color("fit_color")
	def.FitTolerance = p.float("fit_tolerance")
	def.FitPad = p.float("fit_pad")
	def.FitMinPixels = p.int("fit_min_pixels")
	def.FitMinCoverage = p.float("fit_min_coverage")

	if p.err != nil {
		return def, fmt.Errorf("defaults: %v", p.err)
	}
	return def, nil
}

// normalizeFit accepts false (disabled), true or {} (enabled, defaults),
// a bare mode string, or a full configuration object.
func normalizeFit(v any) (*FitSpec, error) {
	switch fv := v.(type) {
	case nil:
		return nil, nil
	case bool:
		return &FitSpec{Enabled: fv}, nil
	case string:
		mode, err := parseFitMode(fv)
		if err != nil {
			return nil, fmt.Errorf("fit: %v", err)
		}
		return &FitSpec{Enabled: true, Mode: mode}, nil
	case map[string]any:
		p := fieldParser{m: fv}
		fs := &FitSpec{Enabled: true}
		fs.Mode = p.fitMode("mode")
		fs.Threshold = p.float("threshold")
		fs.Target = p.fitTarget("target")
		fs.Color = p.color("color")
		if fs.Color == "" {
			fs.Color = p.color("target_color")
		}
		fs.Tolerance = p.float("tolerance")
		fs.Pad = p.float("pad")
		fs.MinPixels = p.int("min_pixels")
		fs.MinCoverage = p.float("min_coverage")

		if rv, ok := fv["region"]; ok && rv != nil {
			rm, ok := rv.(map[string]any)
			if !ok {
				return nil, fmt.Errorf(`fit: "region" must be an object`)
			}
			rp := fieldParser{m: rm}
			x := rp.float("x")
			y := rp.float("y")
			w := rp.float("w")
			h := rp.float("h")
			if rp.err != nil {
				return nil, fmt.Errorf("fit region: %v", rp.err)
			}
			if x == nil || y == nil || w == nil || h == nil {
				return nil, fmt.Errorf(`fit: "region" requires x, y, w, h`)
			}
			fs.Region = &Region{X: *x, Y: *y, W: *w, H: *h}
		}

		if p.err != nil {
			return nil, fmt.Errorf("fit: %v", p.err)
		}
		return fs, nil
	default:
		return nil, fmt.Errorf("fit must be a boolean, mode string, or object")
	}
}

// fieldParser extracts typed optional fields from a decoded map. The first
// bad field sticks as err; later reads become no-ops.
type fieldParser struct {
	m   map[string]any
	err error
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint64:
		return float64(n), true
	}
	return 0, false
}

func (p *fieldParser) float(key string) *float64 {
	if p.err != nil {
		return nil
	}
	v, ok := p.m[key]
	if !ok || v == nil {
		return nil
	}
	f, ok := toFloat(v)
	if !ok {
		p.err = fmt.Errorf("field %q must be a number", key)
		return nil
	}
	return &f
}

func (p *fieldParser) int(key string) *int {
	f := p.float(key)
	if f == nil {
		return nil
	}
	if *f != math.Trunc(*f) {
		p.err = fmt.Errorf("field %q must be an integer", key)
		return nil
	}
	n := int(*f)
	return &n
}

func (p *fieldParser) bool(key string) *bool {
	if p.err != nil {
		return nil
	}
	v, ok := p.m[key]
	if !ok || v == nil {
		return nil
	}
	b, ok := v.(bool)
	if !ok {
		p.err = fmt.Errorf("field %q must be a boolean", key)
		return nil
	}
	return &b
}

func (p *fieldParser) str(key string) string {
	if p.err != nil {
		return ""
	}
	v, ok := p.m[key]
	if !ok || v == nil {
		return ""
	}
	s, ok := v.(string)
	if !ok {
		p.err = fmt.Errorf("field %q must be a string", key)
		return ""
	}
	return s
}

func (p *fieldParser) color(key string) string {
	s := p.str(key)
	if p.err == nil && s != "" {
		if _, err := ParseColor(s); err != nil {
			p.err = fmt.Errorf("field %q: %v", key, err)
			return ""
		}
	}
	return s
}

func (p *fieldParser) position(key string) geom.Position {
	s := p.str(key)
	if p.err != nil || s == "" {
		return ""
	}
	pos, err := geom.ParsePosition(s)
	if err != nil {
		p.err = fmt.Errorf("field %q: %v", key, err)
		return ""
	}
	return pos
}

func parseFitMode(s string) (string, error) {
	norm := strings.ToLower(strings.TrimSpace(s))
	switch norm {
	case "", "luma", "color":
		return norm, nil
	}
	return "", fmt.Errorf("unknown fit mode %q", s)
}

func (p *fieldParser) fitMode(key string) string {
	s := p.str(key)
	if p.err != nil {
		return ""
	}
	mode, err := parseFitMode(s)
	if err != nil {
		p.err = fmt.Errorf("field %q: %v", key, err)
		return ""
	}
	return mode
}

func (p *fieldParser) fitTarget(key string) string {
	s := strings.ToLower(p.str(key))
	if p.err != nil {
		return ""
	}
	switch s {
	case "", "dark", "light":
		return s
	}
	p.err = fmt.Errorf("field %q: target must be dark or light", key)
	return ""
}

func (p *fieldParser) ref(key string) *Ref {
	if p.err != nil {
		return nil
	}
	v, ok := p.m[key]
	if !ok || v == nil {
		return nil
	}
	if s, ok := v.(string); ok {
		s = strings.TrimSpace(s)
		if s == "" {
			p.err = fmt.Errorf("field %q: empty reference", key)
			return nil
		}
		if strings.EqualFold(s, "nearest") {
			return &Ref{Nearest: true}
		}
		return &Ref{ID: s}
	}
	f, ok := toFloat(v)
	if !ok {
		p.err = fmt.Errorf("field %q must be an id, an index, or \"nearest\"", key)
		return nil
	}
	if f != math.Trunc(f) || f < 0 {
		p.err = fmt.Errorf("field %q: index must be a non-negative integer", key)
		return nil
	}
	return &Ref{Index: int(f), IsIndex: true}
}

func (p *fieldParser) offset(key string) *geom.Point {
	if p.err != nil {
		return nil
	}
	v, ok := p.m[key]
	if !ok || v == nil {
		return nil
	}
	arr, ok := v.([]any)
	if !ok || len(arr) != 2 {
		p.err = fmt.Errorf("field %q must be a [dx, dy] pair", key)
		return nil
	}
	dx, ok1 := toFloat(arr[0])
	dy, ok2 := toFloat(arr[1])
	if !ok1 || !ok2 {
		p.err = fmt.Errorf("field %q must be a [dx, dy] pair", key)
		return nil
	}
	return &geom.Point{X: dx, Y: dy}
}
