package models

import (
	"testing"

	"github.com/datasud/idgo/internal/catalogsync/catcommon"
	"github.com/datasud/idgo/internal/common/uuid"
	"github.com/stretchr/testify/assert"
)

func TestExtentUnion(t *testing.T) {
	a := &Extent{MinX: 0, MinY: 0, MaxX: 2, MaxY: 2, EPSG: 4171}
	b := &Extent{MinX: -1, MinY: 1, MaxX: 1, MaxY: 5, EPSG: 4171}

	assert.Equal(t, &Extent{MinX: -1, MinY: 0, MaxX: 2, MaxY: 5, EPSG: 4171}, a.Union(b))
	assert.Equal(t, a, a.Union(nil))
	assert.NotSame(t, a, a.Union(nil))
	var none *Extent
	assert.Equal(t, b, none.Union(b))
	assert.Nil(t, none.Union(nil))
}

func TestResourceSourceKind(t *testing.T) {
	r := &Resource{}
	kind, ok := r.SourceKind()
	assert.True(t, ok)
	assert.Equal(t, catcommon.SourceNone, kind)

	r.DlURL = "https://example.org/data.zip"
	kind, ok = r.SourceKind()
	assert.True(t, ok)
	assert.Equal(t, catcommon.SourceDownload, kind)

	r.UpFile = "data.zip"
	_, ok = r.SourceKind()
	assert.False(t, ok)
}

func TestResourceClone(t *testing.T) {
	ds := uuid.New()
	r := &Resource{DatasetID: &ds, AllowedUsers: []string{"bob"}, AllowedOrgs: []uuid.UUID{uuid.New()}}
	c := r.Clone()
	c.AllowedUsers[0] = "alice"
	*c.DatasetID = uuid.New()
	assert.Equal(t, "bob", r.AllowedUsers[0])
	assert.Equal(t, ds, *r.DatasetID)
}
