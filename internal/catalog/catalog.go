package catalog

import (
	"fmt"
	"os"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"paradero/internal/paradero"
)

// DefaultServices are the bus service labels the arrival simulator draws from.
var DefaultServices = []string{"T101", "T102", "T103", "T104", "T105"}

// Catalog holds the mock data used to fill gaps in measurement rows and to
// drive the arrival simulation.
type Catalog struct {
	Addresses []paradero.MockAddress `yaml:"addresses" validate:"dive"`
	Services  []string               `yaml:"services" validate:"dive,required"`
}

// Default returns the built-in catalog.
func Default() *Catalog {
	return &Catalog{
		Addresses: append([]paradero.MockAddress(nil), paradero.DefaultMockAddresses...),
		Services:  append([]string(nil), DefaultServices...),
	}
}

// Load reads a YAML catalog. An empty path returns the default catalog.
// Sections missing from the file keep their defaults.
func Load(path string) (*Catalog, error) {
	if path == "" {
		return Default(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}
	return Parse(data)
}

// Parse decodes and validates a YAML catalog document.
func Parse(data []byte) (*Catalog, error) {
	var c Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}

	for i, a := range c.Addresses {
		if a.Address == "" || a.Commune == "" {
			return nil, fmt.Errorf("catalog address %d: address and commune are required", i)
		}
	}
	if err := validator.New().Struct(c); err != nil {
		return nil, fmt.Errorf("validate catalog: %w", err)
	}

	if len(c.Addresses) == 0 {
		c.Addresses = append([]paradero.MockAddress(nil), paradero.DefaultMockAddresses...)
	}
	if len(c.Services) == 0 {
		c.Services = append([]string(nil), DefaultServices...)
	}
	return &c, nil
}
