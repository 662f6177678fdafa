package prompts

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/therealutkarshpriyadarshi/promptdesk/pkg/models"
)

func TestDefaultCatalog(t *testing.T) {
	c := DefaultCatalog()
	list := c.List()
	require.NotEmpty(t, list)

	for i := 1; i < len(list); i++ {
		assert.Less(t, list[i-1].ID, list[i].ID)
	}
	for _, u := range list {
		assert.True(t, u.Category.IsFeature(), u.ID)
		assert.Equal(t, u.Category == models.CategoryVisionSave, u.AcceptsImage, u.ID)
	}
}

func TestAssembleText(t *testing.T) {
	c := DefaultCatalog()

	p, err := c.Assemble("summarize", "  Go is a language.  ", nil, "")
	require.NoError(t, err)
	assert.Equal(t, "summarize", p.UtilityID)
	assert.Contains(t, p.User, "Go is a language.")
	assert.NotContains(t, p.User, "  Go")
	assert.NotEmpty(t, p.System)
	assert.Nil(t, p.Image)
}

func TestAssembleImage(t *testing.T) {
	c := DefaultCatalog()

	p, err := c.Assemble("alt_text", "", []byte{0x89, 'P', 'N', 'G'}, "")
	require.NoError(t, err)
	assert.Equal(t, "image/png", p.ImageMIME)
	assert.Equal(t, "Write alt text for this image.", p.User)

	p, err = c.Assemble("image_caption", "beach trip", []byte{1}, "image/jpeg")
	require.NoError(t, err)
	assert.Contains(t, p.User, "beach trip")
	assert.Equal(t, "image/jpeg", p.ImageMIME)
}

func TestAssembleErrors(t *testing.T) {
	c := DefaultCatalog()

	_, err := c.Assemble("nope", "x", nil, "")
	assert.ErrorIs(t, err, ErrUnknownUtility)

	_, err = c.Assemble("summarize", "x", []byte{1}, "image/png")
	assert.ErrorIs(t, err, ErrImageNotAccepted)

	_, err = c.Assemble("alt_text", "x", nil, "")
	assert.ErrorIs(t, err, ErrImageRequired)

	_, err = c.Assemble("summarize", "   ", nil, "")
	assert.ErrorIs(t, err, ErrEmptyInput)
}

func TestLoadCatalog(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "catalog.yaml")
	content := `
utilities:
  - id: haiku
    name: Haiku
    category: utility_save
    system: You are a poet.
    template: "Write a haiku about {{.Input}}"
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	c, err := LoadOrDefault(path)
	require.NoError(t, err)

	p, err := c.Assemble("haiku", "autumn", nil, "")
	require.NoError(t, err)
	assert.Equal(t, "Write a haiku about autumn", p.User)
	assert.Equal(t, "You are a poet.", p.System)
}

func TestNewCatalogValidation(t *testing.T) {
	_, err := NewCatalog([]Utility{{ID: "a", Category: models.CategoryHistory, Template: "x"}})
	assert.Error(t, err)

	_, err = NewCatalog([]Utility{
		{ID: "a", Category: models.CategoryUtilitySave, Template: "x"},
		{ID: "a", Category: models.CategoryUtilitySave, Template: "y"},
	})
	assert.Error(t, err)

	_, err = NewCatalog([]Utility{{ID: "a", Category: models.CategoryUtilitySave, Template: "{{.Input"}})
	assert.Error(t, err)
}
