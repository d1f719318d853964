package simulator

import (
	_ "embed"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/dokzlo13/mysticd/internal/mystic"
)

//go:embed default.yaml
var defaultFixture []byte

// Fixture describes the hardware the simulator pretends to control.
type Fixture struct {
	Devices []DeviceFixture `yaml:"devices"`
}

// DeviceFixture is one simulated device.
type DeviceFixture struct {
	Name  string        `yaml:"name"`
	Zones []ZoneFixture `yaml:"zones"`
}

// ZoneFixture is one simulated zone with its capabilities and initial state.
type ZoneFixture struct {
	Name      string           `yaml:"name"`
	MaxBright uint32           `yaml:"max_bright"`
	MaxSpeed  uint32           `yaml:"max_speed"`
	Styles    []StyleFixture   `yaml:"styles"`
	State     mystic.ZoneState `yaml:"state"`
}

// StyleFixture is a style name and whether it honors color. Color defaults to true.
type StyleFixture struct {
	Name  string `yaml:"name"`
	Color *bool  `yaml:"color,omitempty"`
}

// HonorsColor reports whether SetLedColor succeeds while the style is active.
func (s StyleFixture) HonorsColor() bool {
	return s.Color == nil || *s.Color
}

// UnmarshalYAML accepts either a bare style name or a mapping.
func (s *StyleFixture) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind == yaml.ScalarNode {
		return value.Decode(&s.Name)
	}
	type plain StyleFixture
	return value.Decode((*plain)(s))
}

// DefaultFixture returns the built-in fixture: a motherboard and a keyboard.
func DefaultFixture() *Fixture {
	f, err := ParseFixture(defaultFixture)
	if err != nil {
		panic(fmt.Sprintf("simulator: built-in fixture: %v", err))
	}
	return f
}

// LoadFixture reads a fixture file. An empty path yields DefaultFixture.
func LoadFixture(path string) (*Fixture, error) {
	if path == "" {
		return DefaultFixture(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ParseFixture(data)
}

// ParseFixture decodes and validates a YAML fixture.
func ParseFixture(data []byte) (*Fixture, error) {
	var f Fixture
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse fixture: %w", err)
	}
	if err := f.Validate(); err != nil {
		return nil, err
	}
	return &f, nil
}

// Validate checks that every zone has styles and that initial states are reachable.
func (f *Fixture) Validate() error {
	for _, d := range f.Devices {
		if d.Name == "" {
			return fmt.Errorf("fixture: device without name")
		}
		for _, z := range d.Zones {
			if len(z.Styles) == 0 {
				return fmt.Errorf("fixture: zone %s/%s has no styles", d.Name, z.Name)
			}
			if z.State.Style == "" {
				continue
			}
			found := false
			for _, s := range z.Styles {
				if s.Name == z.State.Style {
					found = true
					break
				}
			}
			if !found {
				return fmt.Errorf("fixture: zone %s/%s starts in unknown style %q", d.Name, z.Name, z.State.Style)
			}
			if z.State.Bright > z.MaxBright || z.State.Speed > z.MaxSpeed {
				return fmt.Errorf("fixture: zone %s/%s initial levels exceed maximum", d.Name, z.Name)
			}
		}
	}
	return nil
}
