package annotate

import (
	"encoding/json"
	"fmt"

	"seer/pkg/geom"
)

// ResolvedElement records where a descriptor actually landed after fit and
// anchor resolution. Index is the element's position in registration
// order, which is what numeric references count; skipped descriptors
// never register.
type ResolvedElement struct {
	Index int
	ID    string
	Kind  Kind

	// Rect is the resolved bounding rectangle. HasRect is false for
	// arrows, which resolve to an endpoint pair instead.
	Rect    geom.Rect
	HasRect bool
	P1, P2  geom.Point
}

// MarshalJSON flattens the element to the wire form shared by the CLI and
// tool responses: rectangles as x/y/w/h, arrows as endpoint pairs.
func (e ResolvedElement) MarshalJSON() ([]byte, error) {
	m := map[string]any{
		"index": e.Index,
		"kind":  string(e.Kind),
	}
	if e.ID != "" {
		m["id"] = e.ID
	}
	if e.HasRect {
		m["x"], m["y"] = e.Rect.X, e.Rect.Y
		m["w"], m["h"] = e.Rect.Width, e.Rect.Height
	} else {
		m["x1"], m["y1"] = e.P1.X, e.P1.Y
		m["x2"], m["y2"] = e.P2.X, e.P2.Y
	}
	return json.Marshal(m)
}

// registry is the insertion-ordered set of elements resolved so far within
// one render pass. References only ever see elements added before the
// current descriptor, so forward references cannot resolve.
type registry struct {
	elements []ResolvedElement
	byID     map[string]int
}

func newRegistry() *registry {
	return &registry{byID: map[string]int{}}
}

func (reg *registry) add(el ResolvedElement) ResolvedElement {
	el.Index = len(reg.elements)
	reg.elements = append(reg.elements, el)
	if el.ID != "" {
		reg.byID[el.ID] = el.Index
	}
	return el
}

// lookup resolves an id or index reference. Nearest references go through
// resolvePoint, which needs the referring point.
func (reg *registry) lookup(ref *Ref) (ResolvedElement, error) {
	if ref.IsIndex {
		if ref.Index < 0 || ref.Index >= len(reg.elements) {
			return ResolvedElement{}, fmt.Errorf("no element at index %d (%d resolved so far)",
				ref.Index, len(reg.elements))
		}
		return reg.elements[ref.Index], nil
	}
	i, ok := reg.byID[ref.ID]
	if !ok {
		return ResolvedElement{}, fmt.Errorf("no element with id %q (forward references do not resolve)", ref.ID)
	}
	return reg.elements[i], nil
}

// nearest returns the resolved element with a bounding rectangle whose
// edge lies closest to from. Ties keep the earliest registration.
func (reg *registry) nearest(from geom.Point) (ResolvedElement, bool) {
	best := -1
	bestDist := 0.0
	for i, el := range reg.elements {
		if !el.HasRect {
			continue
		}
		if d := el.Rect.DistTo(from); best == -1 || d < bestDist {
			best = i
			bestDist = d
		}
	}
	if best == -1 {
		return ResolvedElement{}, false
	}
	return reg.elements[best], true
}

// resolvePoint turns a reference plus an optional position name into a
// concrete pixel point. For "nearest" the referring point selects the
// target and, absent an explicit position, the target's nearest edge
// point is returned. Id and index references default to the target's
// center.
func (reg *registry) resolvePoint(ref *Ref, pos geom.Position, from geom.Point) (geom.Point, error) {
	if ref.Nearest {
		el, ok := reg.nearest(from)
		if !ok {
			return geom.Point{}, fmt.Errorf(`"nearest" found no earlier element with a rectangle`)
		}
		if pos != "" {
			return el.Rect.At(pos), nil
		}
		return el.Rect.NearestPoint(from), nil
	}

	el, err := reg.lookup(ref)
	if err != nil {
		return geom.Point{}, err
	}
	if !el.HasRect {
		return geom.Point{}, fmt.Errorf("element %s is an arrow and has no rectangle to anchor to", ref)
	}
	if pos == "" {
		pos = geom.PositionCenter
	}
	return el.Rect.At(pos), nil
}

// resolveArrowEndpoints produces the arrow's start and tip from explicit
// coordinates and/or references. Explicit coordinates win over references;
// non-nearest references resolve first so a "nearest" endpoint can measure
// from the opposite end.
func resolveArrowEndpoints(d Descriptor, reg *registry) (geom.Point, geom.Point, error) {
	var p1, p2 *geom.Point
	if d.X1 != nil && d.Y1 != nil {
		p1 = &geom.Point{X: *d.X1, Y: *d.Y1}
	}
	if d.X2 != nil && d.Y2 != nil {
		p2 = &geom.Point{X: *d.X2, Y: *d.Y2}
	}

	if p1 == nil && d.From != nil && !d.From.Nearest {
		pt, err := reg.resolvePoint(d.From, d.FromPos, geom.Point{})
		if err != nil {
			return geom.Point{}, geom.Point{}, fmt.Errorf(`"from": %v`, err)
		}
		p1 = &pt
	}
	if p2 == nil && d.To != nil && !d.To.Nearest {
		pt, err := reg.resolvePoint(d.To, d.ToPos, geom.Point{})
		if err != nil {
			return geom.Point{}, geom.Point{}, fmt.Errorf(`"to": %v`, err)
		}
		p2 = &pt
	}

	if p1 == nil && d.From != nil && d.From.Nearest {
		if p2 == nil {
			return geom.Point{}, geom.Point{}, fmt.Errorf(`"from": "nearest" needs a resolved opposite endpoint`)
		}
		pt, err := reg.resolvePoint(d.From, d.FromPos, *p2)
		if err != nil {
			return geom.Point{}, geom.Point{}, fmt.Errorf(`"from": %v`, err)
		}
		p1 = &pt
	}
	if p2 == nil && d.To != nil && d.To.Nearest {
		if p1 == nil {
			return geom.Point{}, geom.Point{}, fmt.Errorf(`"to": "nearest" needs a resolved opposite endpoint`)
		}
		pt, err := reg.resolvePoint(d.To, d.ToPos, *p1)
		if err != nil {
			return geom.Point{}, geom.Point{}, fmt.Errorf(`"to": %v`, err)
		}
		p2 = &pt
	}

	if p1 == nil {
		return geom.Point{}, geom.Point{}, fmt.Errorf(`missing start point (x1/y1 or "from")`)
	}
	if p2 == nil {
		return geom.Point{}, geom.Point{}, fmt.Errorf(`missing end point (x2/y2 or "to")`)
	}
	return *p1, *p2, nil
}

// resolveTextPosition resolves the text's anchor point: the declared x/y,
// or an anchored position plus the literal anchor_offset. A declared x/y
// doubles as the referring point for "nearest".
func resolveTextPosition(d Descriptor, reg *registry) (geom.Point, error) {
	var declared *geom.Point
	if d.X != nil && d.Y != nil {
		declared = &geom.Point{X: *d.X, Y: *d.Y}
	}

	if d.Anchor == nil {
		if declared == nil {
			return geom.Point{}, fmt.Errorf(`missing position (x/y or "anchor")`)
		}
		return *declared, nil
	}

	from := geom.Point{}
	if declared != nil {
		from = *declared
	} else if d.Anchor.Nearest {
		return geom.Point{}, fmt.Errorf(`"anchor": "nearest" requires declared x/y as the reference point`)
	}

	pt, err := reg.resolvePoint(d.Anchor, d.AnchorPos, from)
	if err != nil {
		return geom.Point{}, fmt.Errorf(`"anchor": %v`, err)
	}
	if d.AnchorOffset != nil {
		pt = pt.Offset(d.AnchorOffset.X, d.AnchorOffset.Y)
	}
	return pt, nil
}
