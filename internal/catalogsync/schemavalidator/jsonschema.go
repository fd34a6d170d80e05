package schemavalidator

import (
	"bytes"
	"fmt"
	"io"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"github.com/tidwall/gjson"
)

// Schema is a compiled JSON schema.
type Schema struct {
	s *jsonschema.Schema
}

// CompileSchema compiles an inline JSON schema. References to other documents
// are not allowed.
func CompileSchema(schema []byte) (*Schema, error) {
	if !gjson.ValidBytes(schema) {
		return nil, fmt.Errorf("schema is not valid JSON")
	}
	compiler := jsonschema.NewCompiler()
	// Allow schemas with $id to refer to themselves
	compiler.LoadURL = func(url string) (io.ReadCloser, error) {
		if url == "inline://schema" {
			return io.NopCloser(bytes.NewReader(schema)), nil
		}
		return nil, fmt.Errorf("unsupported schema ref: %s", url)
	}
	if err := compiler.AddResource("inline://schema", bytes.NewReader(schema)); err != nil {
		return nil, err
	}
	s, err := compiler.Compile("inline://schema")
	if err != nil {
		return nil, err
	}
	return &Schema{s: s}, nil
}

// Validate checks a decoded document: maps, slices and scalars as produced by
// a JSON or YAML decoder.
func (s *Schema) Validate(doc any) error {
	return s.s.Validate(doc)
}
