package geom

import (
	"fmt"
	"strings"
)

// Position names a fixed location on a rectangle
type Position string

const (
	PositionCenter      Position = "center"
	PositionTop         Position = "top"
	PositionBottom      Position = "bottom"
	PositionLeft        Position = "left"
	PositionRight       Position = "right"
	PositionTopLeft     Position = "top_left"
	PositionTopRight    Position = "top_right"
	PositionBottomLeft  Position = "bottom_left"
	PositionBottomRight Position = "bottom_right"
)

// ParsePosition normalizes a position name ("top", "Top-Left", "bottom_right").
// Hyphens are treated as underscores and case is ignored.
func ParsePosition(s string) (Position, error) {
	norm := strings.ToLower(strings.TrimSpace(s))
	norm = strings.ReplaceAll(norm, "-", "_")
	switch p := Position(norm); p {
	case PositionCenter, PositionTop, PositionBottom, PositionLeft, PositionRight,
		PositionTopLeft, PositionTopRight, PositionBottomLeft, PositionBottomRight:
		return p, nil
	}
	return "", fmt.Errorf("unknown position %q", s)
}

// At returns the named point of the rectangle. Side names sit at the
// midpoint of their edge; corner names at the corner itself.
func (r Rect) At(pos Position) Point {
	switch pos {
	case PositionTop:
		return Point{X: r.X + r.Width/2, Y: r.Y}
	case PositionBottom:
		return Point{X: r.X + r.Width/2, Y: r.Bottom()}
	case PositionLeft:
		return Point{X: r.X, Y: r.Y + r.Height/2}
	case PositionRight:
		return Point{X: r.Right(), Y: r.Y + r.Height/2}
	case PositionTopLeft:
		return Point{X: r.X, Y: r.Y}
	case PositionTopRight:
		return Point{X: r.Right(), Y: r.Y}
	case PositionBottomLeft:
		return Point{X: r.X, Y: r.Bottom()}
	case PositionBottomRight:
		return Point{X: r.Right(), Y: r.Bottom()}
	default:
		return r.Center()
	}
}
