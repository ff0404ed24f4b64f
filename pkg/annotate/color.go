package annotate

import (
	"fmt"
	"image/color"
	"math"
	"strconv"
	"strings"

	"seer/pkg/fit"
)

// ParseColor parses "#RRGGBB", "#RRGGBBAA", or "rgba(r,g,b,a)". In the
// rgba form the alpha may be 0-1 (fractional) or 0-255; channel values are
// clamped to the byte range. Colors are straight (non-premultiplied) alpha.
func ParseColor(value string) (color.NRGBA, error) {
	val := strings.TrimSpace(value)
	if val == "" {
		return color.NRGBA{}, fmt.Errorf("empty color")
	}

	if strings.HasPrefix(val, "#") {
		hexval := val[1:]
		switch len(hexval) {
		case 6, 8:
		default:
			return color.NRGBA{}, fmt.Errorf("unsupported hex color %q", value)
		}
		n, err := strconv.ParseUint(hexval, 16, 64)
		if err != nil {
			return color.NRGBA{}, fmt.Errorf("invalid hex color %q", value)
		}
		if len(hexval) == 6 {
			n = n<<8 | 0xFF
		}
		return color.NRGBA{
			R: uint8(n >> 24),
			G: uint8(n >> 16),
			B: uint8(n >> 8),
			A: uint8(n),
		}, nil
	}

	if strings.HasPrefix(strings.ToLower(val), "rgba(") && strings.HasSuffix(val, ")") {
		parts := strings.Split(val[5:len(val)-1], ",")
		if len(parts) != 4 {
			return color.NRGBA{}, fmt.Errorf("invalid rgba color %q", value)
		}
		var ch [3]uint8
		for i := 0; i < 3; i++ {
			f, err := strconv.ParseFloat(strings.TrimSpace(parts[i]), 64)
			if err != nil {
				return color.NRGBA{}, fmt.Errorf("invalid rgba color %q", value)
			}
			ch[i] = clampByte(math.Trunc(f))
		}
		a, err := strconv.ParseFloat(strings.TrimSpace(parts[3]), 64)
		if err != nil {
			return color.NRGBA{}, fmt.Errorf("invalid rgba color %q", value)
		}
		if a <= 1 {
			a = a * 255
		}
		return color.NRGBA{R: ch[0], G: ch[1], B: ch[2], A: clampByte(math.Round(a))}, nil
	}

	return color.NRGBA{}, fmt.Errorf("unsupported color format %q", value)
}

func clampByte(f float64) uint8 {
	if f < 0 {
		return 0
	}
	if f > 255 {
		return 255
	}
	return uint8(f)
}

// autoOutline picks a contrasting outline color for a stroke or glyph
// color: black over light strokes, white over dark ones.
func autoOutline(c color.NRGBA) color.NRGBA {
	if fit.Luma(c.R, c.G, c.B)/255.0 > 0.6 {
		return color.NRGBA{R: 0, G: 0, B: 0, A: 220}
	}
	return color.NRGBA{R: 255, G: 255, B: 255, A: 220}
}
