package index

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	nderrors "github.com/notedex/notedex/internal/errors"
	"github.com/notedex/notedex/internal/vault"
)

func TestRecordStoreRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".notedex", "records.json")

	rs := NewRecordStore(path)
	require.NoError(t, rs.Load())
	assert.Equal(t, 0, rs.Len())

	rec := Record{
		ContentHash: vault.HashContent("hello"),
		ChunkCount:  3,
		IndexedAt:   time.Now().UTC().Truncate(time.Second),
		Metadata:    vault.Metadata{Title: "Hello", Tags: []string{"greeting"}},
	}
	rs.Put("hello.md", rec)
	require.True(t, rs.Dirty())
	require.NoError(t, rs.Save())
	assert.False(t, rs.Dirty())

	restored := NewRecordStore(path)
	require.NoError(t, restored.Load())
	assert.Equal(t, 1, restored.Len())

	got, ok := restored.Get("hello.md")
	require.True(t, ok)
	assert.Equal(t, rec.ContentHash, got.ContentHash)
	assert.Equal(t, rec.ChunkCount, got.ChunkCount)
	assert.Equal(t, rec.Metadata.Title, got.Metadata.Title)
	assert.Equal(t, rec.Metadata.Tags, got.Metadata.Tags)
}

func TestRecordStoreEnvelopeShape(t *testing.T) {
	path := filepath.Join(t.TempDir(), "records.json")

	rs := NewRecordStore(path)
	rs.Put("a.md", Record{ContentHash: "abc", ChunkCount: 1, IndexedAt: time.Now()})
	require.NoError(t, rs.Save())

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var envelope map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(data, &envelope))
	assert.Contains(t, envelope, "version")
	assert.Contains(t, envelope, "updatedAt")
	assert.Contains(t, envelope, "notes")

	var version int
	require.NoError(t, json.Unmarshal(envelope["version"], &version))
	assert.Equal(t, recordsVersion, version)
}

func TestRecordStoreLoadMissingFile(t *testing.T) {
	rs := NewRecordStore(filepath.Join(t.TempDir(), "nope.json"))
	require.NoError(t, rs.Load())
	assert.Equal(t, 0, rs.Len())
}

func TestRecordStoreLoadCorrupt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "records.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))

	rs := NewRecordStore(path)
	err := rs.Load()
	require.Error(t, err)
	assert.Equal(t, nderrors.ErrCodeRecordsCorrupt, nderrors.CodeOf(err))
}

func TestRecordStoreLoadWrongVersion(t *testing.T) {
	path := filepath.Join(t.TempDir(), "records.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"version":99,"notes":{}}`), 0o644))

	rs := NewRecordStore(path)
	err := rs.Load()
	require.Error(t, err)
	assert.Equal(t, nderrors.ErrCodeRecordsCorrupt, nderrors.CodeOf(err))
}

func TestRecordStoreDelete(t *testing.T) {
	rs := NewRecordStore(filepath.Join(t.TempDir(), "records.json"))
	rs.Put("a.md", Record{ChunkCount: 2})

	rec, ok := rs.Delete("a.md")
	require.True(t, ok)
	assert.Equal(t, 2, rec.ChunkCount)
	assert.Equal(t, 0, rs.Len())

	_, ok = rs.Delete("a.md")
	assert.False(t, ok)
}
