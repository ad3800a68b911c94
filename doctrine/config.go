package doctrine

import (
	"os"

	"gopkg.in/yaml.v3"
)

// LoadFile reads a YAML doctrine configuration, overlaying it on
// Default() so an operator's file only needs to name the fields it
// overrides, then validates the result.
func LoadFile(path string) (Doctrine, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Doctrine{}, err
	}
	return Load(raw)
}

// Load parses YAML doctrine bytes over the documented defaults.
func Load(raw []byte) (Doctrine, error) {
	d := Default()
	if err := yaml.Unmarshal(raw, &d); err != nil {
		return Doctrine{}, invalid("yaml", err.Error())
	}
	if err := d.Validate(); err != nil {
		return Doctrine{}, err
	}
	return d, nil
}
