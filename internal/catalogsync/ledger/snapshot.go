package ledger

import (
	"crypto/sha256"
	"crypto/sha512"
	"encoding/hex"
	"io"
	"os"

	"github.com/anand-gl/jsoncanonicalizer"
	"github.com/golang/snappy"
	jsonitor "github.com/json-iterator/go"
)

var json = jsonitor.ConfigCompatibleWithStandardLibrary

// Snapshot is the canonical form of the metadata last published for an entity.
type Snapshot struct {
	Digest string // hex SHA-512 of the canonical JSON
	Data   []byte // snappy-compressed canonical JSON
}

// NewSnapshot canonicalizes payload so that equivalent documents share a digest.
func NewSnapshot(payload any) (Snapshot, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Snapshot{}, err
	}
	canonical, err := jsoncanonicalizer.Transform(raw)
	if err != nil {
		return Snapshot{}, err
	}
	sum := sha512.Sum512(canonical)
	return Snapshot{
		Digest: hex.EncodeToString(sum[:]),
		Data:   snappy.Encode(nil, canonical),
	}, nil
}

// Decode returns the canonical JSON stored in a snapshot.
func Decode(data []byte) ([]byte, error) {
	if len(data) == 0 {
		return nil, nil
	}
	return snappy.Decode(nil, data)
}

// FileDigest returns the hex SHA-256 of a file's content.
func FileDigest(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
