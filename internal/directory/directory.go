package directory

import (
	"fmt"
	"os"

	"repairconnect/internal/models"

	"gopkg.in/yaml.v2"
)

// Directory is the read-only mechanic catalog. It is defined once in a
// YAML file and never mutated by booking, chat or rating flows; a real
// backing source can replace it behind the same interface.
type Directory struct {
	mechanics []*models.Mechanic
	byID      map[string]*models.Mechanic
}

// Load reads the catalog file and validates it.
func Load(path string) (*Directory, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read mechanics file: %w", err)
	}

	var catalog struct {
		Mechanics []*models.Mechanic `yaml:"mechanics"`
	}
	if err := yaml.Unmarshal(data, &catalog); err != nil {
		return nil, fmt.Errorf("parse mechanics file: %w", err)
	}

	return New(catalog.Mechanics)
}

// New builds a directory from an in-memory catalog.
func New(mechanics []*models.Mechanic) (*Directory, error) {
	if err := validate(mechanics); err != nil {
		return nil, err
	}

	byID := make(map[string]*models.Mechanic, len(mechanics))
	for _, m := range mechanics {
		byID[m.ID] = m
	}

	return &Directory{mechanics: mechanics, byID: byID}, nil
}

func validate(mechanics []*models.Mechanic) error {
	seen := make(map[string]bool, len(mechanics))
	for _, m := range mechanics {
		if m.ID == "" {
			return fmt.Errorf("mechanic %q has empty ID", m.Name)
		}
		if seen[m.ID] {
			return fmt.Errorf("duplicate mechanic ID found: %s", m.ID)
		}
		seen[m.ID] = true
	}
	return nil
}

// ListMechanics returns the catalog in file order.
func (d *Directory) ListMechanics() []*models.Mechanic {
	out := make([]*models.Mechanic, len(d.mechanics))
	copy(out, d.mechanics)
	return out
}

// GetMechanic looks a mechanic up by ID.
func (d *Directory) GetMechanic(id string) (*models.Mechanic, bool) {
	m, ok := d.byID[id]
	return m, ok
}
