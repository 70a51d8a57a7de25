package templates

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dukerupert/fieldsync"
)

const testTemplateJSON = `{
	"default": [
		{"id": "roof", "category": "exterior", "required": true, "evidenceType": "photo", "priority": "high"},
		{"id": "hvac", "category": "systems"}
	],
	"properties": {
		"prop-industrial": [
			{"id": "loading-dock", "category": "exterior", "required": true, "status": "pending", "priority": "critical"}
		]
	}
}`

func writeTemplateFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "templates.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestFileProvider_PropertySpecificTemplate(t *testing.T) {
	p, err := NewFileProvider(writeTemplateFile(t, testTemplateJSON))
	require.NoError(t, err)

	items, err := p.Template(context.Background(), "prop-industrial")
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "loading-dock", items[0].ID)
	assert.Equal(t, fieldsync.ItemPriorityCritical, items[0].Priority)
}

func TestFileProvider_DefaultFallback(t *testing.T) {
	p, err := NewFileProvider(writeTemplateFile(t, testTemplateJSON))
	require.NoError(t, err)

	items, err := p.Template(context.Background(), "prop-unknown")
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "roof", items[0].ID)
	assert.Equal(t, fieldsync.EvidenceTypePhoto, items[0].EvidenceType)

	// Missing status and priority take the documented defaults
	assert.Equal(t, fieldsync.ItemStatusPending, items[1].Status)
	assert.Equal(t, fieldsync.ItemPriorityMedium, items[1].Priority)
}

func TestFileProvider_ReturnsCopies(t *testing.T) {
	p, err := NewFileProvider(writeTemplateFile(t, testTemplateJSON))
	require.NoError(t, err)
	ctx := context.Background()

	first, err := p.Template(ctx, "prop-unknown")
	require.NoError(t, err)
	first[0].Status = fieldsync.ItemStatusCompleted
	first[0].Evidence.Notes = "mutated"

	second, err := p.Template(ctx, "prop-unknown")
	require.NoError(t, err)
	assert.Equal(t, fieldsync.ItemStatusPending, second[0].Status)
	assert.Empty(t, second[0].Evidence.Notes)
}

func TestFileProvider_Reload(t *testing.T) {
	path := writeTemplateFile(t, testTemplateJSON)
	p, err := NewFileProvider(path)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(path, []byte(`{"default":[{"id":"only-item"}]}`), 0o644))
	require.NoError(t, p.Reload())

	items, err := p.Template(context.Background(), "prop-unknown")
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "only-item", items[0].ID)
}

func TestFileProvider_Errors(t *testing.T) {
	_, err := NewFileProvider(filepath.Join(t.TempDir(), "missing.json"))
	assert.Equal(t, fieldsync.EINTERNAL, fieldsync.ErrorCode(err))

	_, err = NewFileProvider(writeTemplateFile(t, "not json"))
	assert.Equal(t, fieldsync.EINTERNAL, fieldsync.ErrorCode(err))
}
