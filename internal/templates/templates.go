// Package templates supplies inspection checklists. Templates are provisioned
// onto the device as JSON and resolved per property at record creation.
package templates

import (
	"context"
	"encoding/json"
	"os"
	"sync"

	"github.com/dukerupert/fieldsync"
)

// Compile-time interface check
var _ fieldsync.TemplateProvider = (*FileProvider)(nil)

// templateFile is the provisioned document layout: an optional default
// checklist plus per-property overrides.
type templateFile struct {
	Default    []fieldsync.InspectionItem            `json:"default"`
	Properties map[string][]fieldsync.InspectionItem `json:"properties"`
}

// FileProvider loads checklist templates from a provisioned JSON file once
// and serves copies.
type FileProvider struct {
	mu   sync.RWMutex
	file templateFile
	path string
}

// NewFileProvider reads and parses the template file.
func NewFileProvider(path string) (*FileProvider, error) {
	p := &FileProvider{path: path}
	if err := p.Reload(); err != nil {
		return nil, err
	}
	return p, nil
}

// Reload re-reads the template file, for provisioning updates without a
// restart.
func (p *FileProvider) Reload() error {
	data, err := os.ReadFile(p.path)
	if err != nil {
		return fieldsync.Internal("reading template file", err)
	}
	var file templateFile
	if err := json.Unmarshal(data, &file); err != nil {
		return fieldsync.Internal("parsing template file", err)
	}

	p.mu.Lock()
	p.file = file
	p.mu.Unlock()
	return nil
}

// Template returns the checklist for a property, falling back to the default
// checklist. Items come back as fresh copies in pending status.
func (p *FileProvider) Template(ctx context.Context, propertyID string) ([]fieldsync.InspectionItem, error) {
	p.mu.RLock()
	source, ok := p.file.Properties[propertyID]
	if !ok {
		source = p.file.Default
	}
	p.mu.RUnlock()

	items := make([]fieldsync.InspectionItem, len(source))
	copy(items, source)
	for i := range items {
		if items[i].Status == "" {
			items[i].Status = fieldsync.ItemStatusPending
		}
		if items[i].Priority == "" {
			items[i].Priority = fieldsync.ItemPriorityMedium
		}
	}
	return items, nil
}
