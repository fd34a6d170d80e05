package common

import (
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewTableName(t *testing.T) {
	tests := []struct {
		name     string
		basename string
		wantBase string
	}{
		{"plain", "communes", "communes"},
		{"accents and spaces", "Réseau Routier 2024", "reseau_routier_2024"},
		{"leading digit", "2024-parcelles", "t_2024_parcelles"},
		{"empty", "", "layer"},
		{"punctuation only", "---", "layer"},
		{"long", strings.Repeat("a", 80), strings.Repeat("a", MAX_BASENAME_LEN)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NewTableName(tt.basename)
			require.NoError(t, err)
			assert.True(t, TableNamePattern.MatchString(got), got)
			assert.Equal(t, tt.wantBase, TableBasename(got))
			assert.Len(t, got, len(tt.wantBase)+1+TABLE_SUFFIX_LEN)
		})
	}
}

func TestCatalogSlug(t *testing.T) {
	tests := []struct {
		name  string
		title string
		want  string
	}{
		{"accents and punctuation", "Plan Local d'Urbanisme", "plan-local-d-urbanisme"},
		{"leading digit", "2024 Budget primitif", "2024-budget-primitif"},
		{"underscores", "reseau_cyclable  (v2)", "reseau-cyclable-v2"},
		{"punctuation only", "!!!", ""},
		{"empty", "", ""},
		{"long", strings.Repeat("é", 90) + " " + strings.Repeat("b", 30), strings.Repeat("e", 90) + "-" + strings.Repeat("b", 9)},
		{"cut on a separator", strings.Repeat("a", 99) + " b", strings.Repeat("a", 99)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := CatalogSlug(tt.title)
			assert.Equal(t, tt.want, got)
			assert.LessOrEqual(t, len(got), MAX_SLUG_LEN)
		})
	}
}

func TestNewTableNameIsRandom(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 1000; i++ {
		name, err := NewTableName("layer")
		require.NoError(t, err)
		assert.False(t, seen[name], "duplicate table name %s", name)
		seen[name] = true
	}
}

func TestTableBasename(t *testing.T) {
	assert.Equal(t, "communes", TableBasename("communes_ab12cd3"))
	assert.Equal(t, "", TableBasename("communes"))
	assert.Equal(t, "", TableBasename("communes_AB12CD3"))
	assert.Equal(t, "", TableBasename("communes_ab12cd"))
}

func TestRandomCode(t *testing.T) {
	tests := []struct {
		name    string
		length  int
		wantErr bool
	}{
		{"Valid length", TABLE_SUFFIX_LEN, false},
		{"Zero length", 0, true},
		{"Negative length", -1, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := randomCode(tt.length)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Len(t, got, tt.length)
			for _, c := range got {
				assert.True(t, strings.ContainsRune(CHARS, c))
			}
		})
	}
}

func TestSecureRandomInt(t *testing.T) {
	_, err := secureRandomInt(0)
	assert.Error(t, err)
	_, err = secureRandomInt(math.MaxInt32 + 1)
	assert.Error(t, err)
	for i := 0; i < 100; i++ {
		n, err := secureRandomInt(len(CHARS))
		require.NoError(t, err)
		assert.True(t, n >= 0 && n < len(CHARS))
	}
}
