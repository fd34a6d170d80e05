package uuid

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	id := New()
	assert.NotEqual(t, uuid.Nil, id)
	assert.True(t, IsUUIDv7(id))
}

func TestParse(t *testing.T) {
	validUUID := "123e4567-e89b-12d3-a456-426614174000"
	id, err := Parse(validUUID)
	assert.NoError(t, err)
	assert.Equal(t, validUUID, id.String())

	_, err = Parse("invalid-uuid")
	assert.Error(t, err)
}

func TestParseAll(t *testing.T) {
	a, b := New(), New()
	ids, err := ParseAll(Strings([]UUID{a, b}))
	require.NoError(t, err)
	assert.Equal(t, []UUID{a, b}, ids)

	_, err = ParseAll([]string{a.String(), "nope"})
	assert.Error(t, err)

	ids, err = ParseAll(nil)
	require.NoError(t, err)
	assert.Empty(t, ids)
}

func TestNullRoundTrip(t *testing.T) {
	assert.False(t, Null(nil).Valid)
	assert.Nil(t, Ptr(NullUUID{}))

	id := New()
	n := Null(&id)
	assert.True(t, n.Valid)
	p := Ptr(n)
	if assert.NotNil(t, p) {
		assert.Equal(t, id, *p)
	}
}
