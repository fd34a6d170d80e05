package ledger

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/datasud/idgo/internal/catalogsync/db/dberror"
	"github.com/datasud/idgo/internal/catalogsync/db/models"
	"github.com/datasud/idgo/internal/common/apperrors"
	"github.com/datasud/idgo/internal/common/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDiff(t *testing.T) {
	tests := []struct {
		name    string
		prev    []string
		next    []string
		removed []string
		added   []string
		kept    []string
	}{
		{
			name:    "partial overlap",
			prev:    []string{"a", "b", "c"},
			next:    []string{"b", "c", "d"},
			removed: []string{"a"},
			added:   []string{"d"},
			kept:    []string{"b", "c"},
		},
		{
			name:    "first import",
			prev:    nil,
			next:    []string{"x", "y"},
			removed: []string{},
			added:   []string{"x", "y"},
			kept:    []string{},
		},
		{
			name:    "content removed",
			prev:    []string{"x"},
			next:    []string{},
			removed: []string{"x"},
			added:   []string{},
			kept:    []string{},
		},
		{
			name:    "duplicates collapse",
			prev:    []string{"a", "a"},
			next:    []string{"b", "b", "a"},
			removed: []string{},
			added:   []string{"b"},
			kept:    []string{"a"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := Diff(tt.prev, tt.next)
			assert.Equal(t, tt.removed, d.Removed)
			assert.Equal(t, tt.added, d.Added)
			assert.Equal(t, tt.kept, d.Kept)
		})
	}
	assert.True(t, Diff([]string{"a"}, []string{"a"}).Empty())
}

func TestIndexByBasename(t *testing.T) {
	idx := IndexByBasename([]string{"communes_ab12cd3", "routes_x9y8z7w", "not-a-table"})
	assert.Equal(t, "communes_ab12cd3", idx["communes"])
	assert.Equal(t, "routes_x9y8z7w", idx["routes"])
	assert.Equal(t, "not-a-table", idx["not-a-table"])
}

func TestDatasetExtent(t *testing.T) {
	assert.Nil(t, DatasetExtent(nil))
	got := DatasetExtent(map[string]*models.Extent{
		"a": {MinX: 0, MinY: 0, MaxX: 1, MaxY: 1, EPSG: 4171},
		"b": nil,
		"c": {MinX: -2, MinY: 0.5, MaxX: 0.5, MaxY: 3, EPSG: 4171},
	})
	assert.Equal(t, &models.Extent{MinX: -2, MinY: 0, MaxX: 1, MaxY: 3, EPSG: 4171}, got)
}

func TestSnapshot(t *testing.T) {
	a, err := NewSnapshot(map[string]any{"title": "Eau", "tags": []string{"x"}})
	require.NoError(t, err)
	b, err := NewSnapshot(map[string]any{"tags": []string{"x"}, "title": "Eau"})
	require.NoError(t, err)
	assert.Equal(t, a.Digest, b.Digest)
	assert.Len(t, a.Digest, 128)

	c, err := NewSnapshot(map[string]any{"title": "Sol"})
	require.NoError(t, err)
	assert.NotEqual(t, a.Digest, c.Digest)

	raw, err := Decode(a.Data)
	require.NoError(t, err)
	assert.JSONEq(t, `{"tags":["x"],"title":"Eau"}`, string(raw))

	raw, err = Decode(nil)
	assert.NoError(t, err)
	assert.Nil(t, raw)
}

func TestFileDigest(t *testing.T) {
	p := filepath.Join(t.TempDir(), "f.txt")
	require.NoError(t, os.WriteFile(p, []byte("abc"), 0o600))
	d, err := FileDigest(p)
	require.NoError(t, err)
	assert.Equal(t, "ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad", d)

	_, err = FileDigest(filepath.Join(t.TempDir(), "missing"))
	assert.Error(t, err)
}

type stubReader struct {
	entry *models.ResourceLedger
	err   apperrors.Error
}

func (s stubReader) GetResourceLedger(context.Context, uuid.UUID) (*models.ResourceLedger, apperrors.Error) {
	return s.entry, s.err
}

func (s stubReader) ListResourceLedgersByDataset(context.Context, uuid.UUID) ([]*models.ResourceLedger, apperrors.Error) {
	return nil, s.err
}

func (s stubReader) GetDatasetLedger(context.Context, uuid.UUID) (*models.DatasetLedger, apperrors.Error) {
	return nil, s.err
}

func TestResourceEntry(t *testing.T) {
	ctx := context.Background()

	e, err := ResourceEntry(ctx, stubReader{err: dberror.ErrNotFound.Msg("ledger entry not found")}, uuid.New())
	assert.NoError(t, err)
	assert.Nil(t, e)
	assert.Equal(t, []string{}, Tables(e))

	_, err = ResourceEntry(ctx, stubReader{err: dberror.ErrDatabase}, uuid.New())
	assert.ErrorIs(t, err, dberror.ErrDatabase)

	want := &models.ResourceLedger{Tables: []string{"t_abcdefg"}}
	e, err = ResourceEntry(ctx, stubReader{entry: want}, uuid.New())
	require.NoError(t, err)
	assert.Equal(t, []string{"t_abcdefg"}, Tables(e))

	d, err := DatasetEntry(ctx, stubReader{err: dberror.ErrNotFound}, uuid.New())
	assert.NoError(t, err)
	assert.Nil(t, d)
}
