// Package common provides utilities for generating unique identifiers and handling common operations.
// It mints the spatial table names that GIS imports write into, using secure random number generation.
package common

import (
	"crypto/rand"
	"encoding/binary"
	"fmt"
	"math"
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Constants for table name generation
const (
	TABLE_SUFFIX_LEN = 7  // Length of the random suffix appended to a layer basename
	MAX_BASENAME_LEN = 54 // Keeps generated names under the PostgreSQL identifier limit
	MAX_SLUG_LEN     = 100

	LOWER_LETTERS = "abcdefghijklmnopqrstuvwxyz"
	DIGITS        = "0123456789"
	CHARS         = LOWER_LETTERS + DIGITS
)

// TableNamePattern matches a generated table name and captures its basename.
var TableNamePattern = regexp.MustCompile(`^(\w+)_[a-z0-9]{7}$`)

var (
	nonWord     = regexp.MustCompile(`[^a-z0-9_]+`)
	nonAlphaNum = regexp.MustCompile(`[^a-z0-9]+`)
)

// secureRandomInt generates a cryptographically secure random number between 0 and max.
// Returns an error if random number generation fails.
func secureRandomInt(max int) (int, error) {
	if max <= 0 {
		return 0, fmt.Errorf("max must be positive, got %d", max)
	}
	if max > math.MaxInt32 {
		return 0, fmt.Errorf("max too large: %d", max)
	}

	// Find the largest multiple of max within uint64 to avoid modulo bias
	limit := (math.MaxUint64 / uint64(max)) * uint64(max)

	for {
		var buf [8]byte
		if _, err := rand.Read(buf[:]); err != nil {
			return 0, fmt.Errorf("failed to generate random bytes: %w", err)
		}
		n := binary.BigEndian.Uint64(buf[:])
		if n < limit {
			if n > uint64(math.MaxInt) {
				continue
			}
			return int(n % uint64(max)), nil
		}
	}
}

// NewTableName returns basename followed by an underscore and a random suffix.
// The basename is slugified first, so the result always matches TableNamePattern.
func NewTableName(basename string) (string, error) {
	suffix, err := randomCode(TABLE_SUFFIX_LEN)
	if err != nil {
		return "", fmt.Errorf("failed to generate table name: %w", err)
	}
	return Slugify(basename) + "_" + suffix, nil
}

// TableBasename returns the basename of a generated table name, or "" if
// name was not produced by NewTableName.
func TableBasename(name string) string {
	m := TableNamePattern.FindStringSubmatch(name)
	if m == nil {
		return ""
	}
	return m[1]
}

func foldAccents(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return folded
}

// Slugify lowercases s, strips accents and replaces every run of characters
// that are not valid in an unquoted identifier with an underscore.
func Slugify(s string) string {
	out := nonWord.ReplaceAllString(strings.ToLower(foldAccents(s)), "_")
	out = strings.Trim(out, "_")
	if out == "" {
		out = "layer"
	}
	if out[0] >= '0' && out[0] <= '9' {
		out = "t_" + out
	}
	if len(out) > MAX_BASENAME_LEN {
		out = strings.TrimRight(out[:MAX_BASENAME_LEN], "_")
	}
	return out
}

// CatalogSlug is the catalog name derived from a title: lowercase, without
// accents, every other run of characters turned into a hyphen. It may be
// empty; callers validate it.
func CatalogSlug(title string) string {
	out := nonAlphaNum.ReplaceAllString(strings.ToLower(foldAccents(title)), "-")
	out = strings.Trim(out, "-")
	if len(out) > MAX_SLUG_LEN {
		out = strings.TrimRight(out[:MAX_SLUG_LEN], "-")
	}
	return out
}

// randomCode generates a random lowercase alphanumeric string of a given length.
// Returns an error if length is invalid or random generation fails.
func randomCode(length int) (string, error) {
	if length <= 0 {
		return "", fmt.Errorf("length must be positive, got %d", length)
	}

	result := make([]byte, length)
	for i := 0; i < length; i++ {
		idx, err := secureRandomInt(len(CHARS))
		if err != nil {
			return "", fmt.Errorf("failed to generate character at position %d: %w", i, err)
		}
		result[i] = CHARS[idx]
	}

	return string(result), nil
}
