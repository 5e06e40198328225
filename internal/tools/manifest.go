package tools

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/inkwell-ai/inkwell/pkg/models"
)

// Manifest is the declarative tool catalogue loaded from YAML. Handlers are
// registered in code; the manifest supplies the specs the model sees.
type Manifest struct {
	Tools []models.ToolSpec `yaml:"tools"`
}

// LoadManifest reads a tool manifest from disk.
func LoadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read tool manifest: %w", err)
	}

	var manifest Manifest
	if err := yaml.Unmarshal(data, &manifest); err != nil {
		return nil, fmt.Errorf("parse tool manifest: %w", err)
	}

	for i, spec := range manifest.Tools {
		if spec.Name == "" {
			return nil, fmt.Errorf("tool manifest entry %d has no name", i)
		}
	}
	return &manifest, nil
}

// RegisterAll pairs manifest specs with their code-registered handlers.
// Every spec must have a handler; extra handlers are ignored.
func (m *Manifest) RegisterAll(registry *Registry, handlers map[string]Handler) error {
	for _, spec := range m.Tools {
		handler, ok := handlers[spec.Name]
		if !ok {
			return fmt.Errorf("no handler for manifest tool %s", spec.Name)
		}
		if err := registry.Register(spec, handler); err != nil {
			return err
		}
	}
	return nil
}
