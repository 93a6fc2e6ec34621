package normalize

import (
	"encoding/json"
	"strconv"
	"strings"
)

// Size is a width/height pair used for image pixels and physical texture
// scale (inches).
type Size struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Valid reports whether both dimensions are positive.
func (s Size) Valid() bool {
	return s.Width > 0 && s.Height > 0
}

// Ratio is width/height. It is 0 for invalid sizes.
func (s Size) Ratio() float64 {
	if !s.Valid() {
		return 0
	}
	return s.Width / s.Height
}

// SizeOf reads a Size from a Size value or a {width, height} object whose
// members may be numbers or numeric strings.
func SizeOf(v any) (Size, bool) {
	switch x := v.(type) {
	case Size:
		return x, x.Valid()
	case *Size:
		if x == nil {
			return Size{}, false
		}
		return *x, x.Valid()
	case map[string]any:
		w, okW := number(x["width"])
		h, okH := number(x["height"])
		s := Size{Width: w, Height: h}
		return s, okW && okH && s.Valid()
	}
	return Size{}, false
}

func number(v any) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case int:
		return float64(x), true
	case int64:
		return float64(x), true
	case json.Number:
		f, err := x.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
		return f, err == nil
	}
	return 0, false
}
