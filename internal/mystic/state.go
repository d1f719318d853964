package mystic

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Color is an RGB triple in the range the SDK reports (usually 0-255). The wrapper
// does not validate channel values.
type Color struct {
	Red   uint32 `json:"red" yaml:"red"`
	Green uint32 `json:"green" yaml:"green"`
	Blue  uint32 `json:"blue" yaml:"blue"`
}

func (c Color) String() string {
	return fmt.Sprintf("#%02x%02x%02x", c.Red, c.Green, c.Blue)
}

// ParseColor parses "#rrggbb" (the leading # is optional).
func ParseColor(s string) (Color, error) {
	hex := strings.TrimPrefix(s, "#")
	if len(hex) != 6 {
		return Color{}, fmt.Errorf("invalid color %q: want #rrggbb", s)
	}
	v, err := strconv.ParseUint(hex, 16, 32)
	if err != nil {
		return Color{}, fmt.Errorf("invalid color %q: %w", s, err)
	}
	return Color{Red: uint32(v>>16&0xff), Green: uint32(v>>8&0xff), Blue: uint32(v&0xff)}, nil
}

// UnmarshalJSON accepts {"red":..,"green":..,"blue":..} or a "#rrggbb" string.
func (c *Color) UnmarshalJSON(data []byte) error {
	var hex string
	if err := json.Unmarshal(data, &hex); err == nil {
		parsed, err := ParseColor(hex)
		if err != nil {
			return err
		}
		*c = parsed
		return nil
	}

	type plain Color
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	*c = Color(p)
	return nil
}

// ZoneState is a snapshot of a zone's dynamic attributes.
//
// Styles that ignore color, brightness or speed may report placeholder values for them.
type ZoneState struct {
	Style  string `json:"style" yaml:"style"`
	Color  Color  `json:"color" yaml:"color"`
	Bright uint32 `json:"bright" yaml:"bright"`
	Speed  uint32 `json:"speed" yaml:"speed"`
}

// Patch converts the state into a patch with every field set.
func (s ZoneState) Patch() ZoneStatePatch {
	style, color, bright, speed := s.Style, s.Color, s.Bright, s.Speed
	return ZoneStatePatch{Style: &style, Color: &color, Bright: &bright, Speed: &speed}
}

// ZoneStatePatch is a partial ZoneState. Nil fields are left untouched.
type ZoneStatePatch struct {
	Style  *string `json:"style,omitempty" yaml:"style,omitempty"`
	Color  *Color  `json:"color,omitempty" yaml:"color,omitempty"`
	Bright *uint32 `json:"bright,omitempty" yaml:"bright,omitempty"`
	Speed  *uint32 `json:"speed,omitempty" yaml:"speed,omitempty"`
}

// IsEmpty reports whether no field is set.
func (p ZoneStatePatch) IsEmpty() bool {
	return p.Style == nil && p.Color == nil && p.Bright == nil && p.Speed == nil
}

// Apply returns base with the patch's fields overlaid.
func (p ZoneStatePatch) Apply(base ZoneState) ZoneState {
	if p.Style != nil {
		base.Style = *p.Style
	}
	if p.Color != nil {
		base.Color = *p.Color
	}
	if p.Bright != nil {
		base.Bright = *p.Bright
	}
	if p.Speed != nil {
		base.Speed = *p.Speed
	}
	return base
}
