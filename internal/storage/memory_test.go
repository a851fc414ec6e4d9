package storage

import (
	"bytes"
	"context"
	"io"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shenikar/incident_documents/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore_PutGetRoundTrip(t *testing.T) {
	store := NewMemoryStore("test-bucket")
	ctx := context.Background()
	content := bytes.Repeat([]byte("incident"), 1000)
	meta := ObjectMeta{IncidentID: uuid.New(), OriginalFilename: "rapport.pdf", UploadedAt: time.Now()}

	size, err := store.Put(ctx, "incident_x/a.pdf", content, meta)
	require.NoError(t, err)
	assert.Equal(t, int64(len(content)), size)

	rc, err := store.Get(ctx, "incident_x/a.pdf")
	require.NoError(t, err)
	defer rc.Close()
	got, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, content, got)

	stored, ok := store.Meta("incident_x/a.pdf")
	require.True(t, ok)
	assert.Equal(t, meta.IncidentID, stored.IncidentID)
}

func TestMemoryStore_PutCopiesInput(t *testing.T) {
	store := NewMemoryStore("test-bucket")
	ctx := context.Background()
	content := []byte("original")

	_, err := store.Put(ctx, "k", content, ObjectMeta{})
	require.NoError(t, err)
	content[0] = 'X'

	rc, err := store.Get(ctx, "k")
	require.NoError(t, err)
	got, _ := io.ReadAll(rc)
	assert.Equal(t, "original", string(got))
}

func TestMemoryStore_OverwriteSameKey(t *testing.T) {
	store := NewMemoryStore("test-bucket")
	ctx := context.Background()

	_, err := store.Put(ctx, "k", []byte("first"), ObjectMeta{})
	require.NoError(t, err)
	size, err := store.Put(ctx, "k", []byte("second!"), ObjectMeta{})
	require.NoError(t, err)

	assert.Equal(t, int64(7), size)
	assert.Equal(t, []string{"k"}, store.Keys())
}

func TestMemoryStore_GetMissingKey(t *testing.T) {
	store := NewMemoryStore("test-bucket")

	_, err := store.Get(context.Background(), "missing")

	assert.ErrorIs(t, err, models.ErrNotFound)
	assert.NotErrorIs(t, err, models.ErrStore)
}

func TestMemoryStore_DeleteIsIdempotent(t *testing.T) {
	store := NewMemoryStore("test-bucket")
	ctx := context.Background()
	_, err := store.Put(ctx, "k", []byte("data"), ObjectMeta{})
	require.NoError(t, err)

	require.NoError(t, store.Delete(ctx, "k"))
	require.NoError(t, store.Delete(ctx, "k"))
	require.NoError(t, store.Delete(ctx, "never-existed"))

	_, err = store.Get(ctx, "k")
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestMemoryStore_RejectsEmptyKeyAndCancelledContext(t *testing.T) {
	store := NewMemoryStore("test-bucket")

	_, err := store.Put(context.Background(), "", []byte("x"), ObjectMeta{})
	assert.ErrorIs(t, err, models.ErrStore)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = store.Put(ctx, "k", []byte("x"), ObjectMeta{})
	assert.ErrorIs(t, err, models.ErrStore)
	assert.Empty(t, store.Keys())
}

func TestMemoryStore_Probe(t *testing.T) {
	result := NewMemoryStore("docs").Probe(context.Background())

	assert.True(t, result.OK())
	assert.Equal(t, BackendMemory, result.Backend)
	assert.Equal(t, "docs", result.Bucket)
}

func TestObjectMetaTags(t *testing.T) {
	id := uuid.New()
	meta := ObjectMeta{
		IncidentID:       id,
		OriginalFilename: "Panne réseau.pdf",
		UploadedAt:       time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC),
		UploadedBy:       "User",
	}

	tags := meta.Tags()

	assert.Equal(t, id.String(), tags["incident_id"])
	assert.Equal(t, "Panne reseau.pdf", tags["original_filename"])
	assert.Equal(t, "2024-01-02T03:04:05Z", tags["upload_date"])
	assert.Equal(t, "User", tags["uploaded_by"])
}
