package route

import (
	"fmt"
	"os"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

type fileStop struct {
	Name string  `yaml:"name" validate:"required"`
	X    float64 `yaml:"x"`
	Y    float64 `yaml:"y"`
}

type fileRoute struct {
	Name  string     `yaml:"name" validate:"required"`
	Stops []fileStop `yaml:"stops" validate:"required,min=2,dive"`
}

// LoadFile reads a YAML route definition:
//
//	name: Kasaragod - Kottayam
//	stops:
//	  - {name: Kasaragod, x: 200, y: 50}
//	  - {name: Kannur, x: 220, y: 150}
func LoadFile(path string) (*Route, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(data)
}

// Parse decodes and validates a YAML route definition.
func Parse(data []byte) (*Route, error) {
	var fr fileRoute
	if err := yaml.Unmarshal(data, &fr); err != nil {
		return nil, fmt.Errorf("decode route: %w", err)
	}
	if err := validator.New().Struct(fr); err != nil {
		return nil, fmt.Errorf("validate route: %w", err)
	}
	stops := make([]Stop, len(fr.Stops))
	for i, s := range fr.Stops {
		stops[i] = Stop{Name: s.Name, X: s.X, Y: s.Y}
	}
	return New(fr.Name, stops)
}
