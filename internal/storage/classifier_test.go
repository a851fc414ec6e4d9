package storage

import (
	"errors"
	"testing"

	"github.com/shenikar/incident_documents/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClassifier(t *testing.T) *Classifier {
	t.Helper()
	c, err := NewClassifier(DefaultMaxFileSize)
	require.NoError(t, err)
	return c
}

func TestNewClassifier_RejectsNonPositiveLimit(t *testing.T) {
	_, err := NewClassifier(0)
	assert.Error(t, err)
}

func TestIsAllowed(t *testing.T) {
	c := newTestClassifier(t)

	assert.True(t, c.IsAllowed("rapport.pdf"))
	assert.True(t, c.IsAllowed("PHOTO.JPG"))
	assert.True(t, c.IsAllowed("archive.tar.7z"))
	assert.True(t, c.IsAllowed("server.log"))
	assert.False(t, c.IsAllowed("setup.exe"))
	assert.False(t, c.IsAllowed("README"))
	assert.False(t, c.IsAllowed("trailingdot."))
	assert.False(t, c.IsAllowed(""))
}

func TestCategoryOf(t *testing.T) {
	c := newTestClassifier(t)

	assert.Equal(t, "documents", c.CategoryOf("notes.txt"))
	assert.Equal(t, "images", c.CategoryOf("diagram.png"))
	assert.Equal(t, "spreadsheets", c.CategoryOf("inventory.xlsx"))
	assert.Equal(t, "presentations", c.CategoryOf("review.pptx"))
	assert.Equal(t, "archives", c.CategoryOf("dump.zip"))
	assert.Equal(t, CategoryOther, c.CategoryOf("config.json"))
	assert.Equal(t, CategoryOther, c.CategoryOf("setup.exe"))
	assert.Equal(t, CategoryOther, c.CategoryOf("noext"))
}

func TestValidate(t *testing.T) {
	c, err := NewClassifier(1000)
	require.NoError(t, err)

	assert.NoError(t, c.Validate("notes.txt", 1000))

	err = c.Validate("notes.txt", 1001)
	require.Error(t, err)
	assert.True(t, errors.Is(err, models.ErrValidation))
	assert.Contains(t, err.Error(), "too large")

	err = c.Validate("virus.exe", 10)
	require.Error(t, err)
	assert.True(t, errors.Is(err, models.ErrValidation))
	assert.Contains(t, err.Error(), `"exe"`)

	err = c.Validate("Makefile", 10)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no extension")

	assert.ErrorIs(t, c.Validate("  ", 10), models.ErrValidation)
	assert.ErrorIs(t, c.CheckSize(-1), models.ErrValidation)
}

func TestContentType(t *testing.T) {
	c := newTestClassifier(t)

	assert.Equal(t, "application/pdf", c.ContentType("application/pdf", "a.pdf", nil))
	assert.Equal(t, "application/pdf", c.ContentType("", "a.pdf", nil))
	assert.Equal(t, "application/pdf", c.ContentType(models.DefaultContentType, "a.pdf", nil))
	assert.Equal(t, "image/png", c.ContentType("", "noext", []byte("\x89PNG\r\n\x1a\n")))
	assert.Equal(t, models.DefaultContentType, c.ContentType("", "noext", nil))
}

func TestCategories(t *testing.T) {
	c := newTestClassifier(t)

	cats := c.Categories()

	assert.Len(t, cats, 6)
	assert.Equal(t, []string{"7z", "rar", "zip"}, cats["archives"])
	assert.Equal(t, []string{"json", "log", "xml"}, cats[CategoryOther])
}
