package schema

import (
	"fmt"
	"regexp"
	"strconv"
)

var hexColorRegexp = regexp.MustCompile(`^#[0-9a-fA-F]{6}$`)

// Color is an 8 bit RGB color.
type Color struct {
	R, G, B uint8
}

// ParseColor parses a #rrggbb string.
func ParseColor(hex string) (Color, error) {
	if !hexColorRegexp.MatchString(hex) {
		return Color{}, fmt.Errorf("invalid color %q: expected #rrggbb", hex)
	}

	val, err := strconv.ParseUint(hex[1:], 16, 32)
	if err != nil {
		return Color{}, fmt.Errorf("invalid color %q: %w", hex, err)
	}

	return Color{
		R: uint8(val >> 16),
		G: uint8(val >> 8),
		B: uint8(val),
	}, nil
}

// Normalized returns the color channels scaled into [0, 1).
func (c Color) Normalized() [3]float64 {
	return [3]float64{float64(c.R) / 256, float64(c.G) / 256, float64(c.B) / 256}
}

func (c Color) String() string {
	return fmt.Sprintf("#%02x%02x%02x", c.R, c.G, c.B)
}

var palette = []Color{
	{0xbf, 0x57, 0x00},
	{0xf8, 0x97, 0x1f},
	{0xff, 0xd6, 0x00},
	{0xa6, 0xcd, 0x57},
	{0x57, 0x9d, 0x42},
	{0x00, 0xa9, 0xb7},
	{0x00, 0x5f, 0x86},
	{0x9c, 0xad, 0xb7},
	{0x33, 0x3f, 0x48},
}

// PaletteColor returns the idx-th color of the default palette.
// The palette wraps around.
func PaletteColor(idx int) Color {
	if idx < 0 {
		idx = -idx
	}
	return palette[idx%len(palette)]
}

// ColorOf returns the color to use for the signal at the given index:
// the one of its plot directive if set, otherwise a palette color.
func (s *Schema) ColorOf(idx int) Color {
	sig := s.signals[idx]
	if sig.Plot != nil && sig.Plot.Color != nil {
		return *sig.Plot.Color
	}
	return PaletteColor(idx)
}
