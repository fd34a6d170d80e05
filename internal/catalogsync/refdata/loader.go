// Package refdata loads the reference tables of the local store (licenses,
// categories, data types, supports, coordinate systems and file formats) from
// YAML documents and keeps the remote catalog in line with them.
package refdata

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/mitchellh/mapstructure"
	"gopkg.in/yaml.v3"

	"github.com/datasud/idgo/internal/catalogsync/db/models"
	"github.com/datasud/idgo/internal/catalogsync/schemavalidator"
)

// Kind names a reference table.
type Kind string

const (
	KindLicense        Kind = "License"
	KindCategory       Kind = "Category"
	KindDataType       Kind = "DataType"
	KindSupport        Kind = "Support"
	KindSupportedCrs   Kind = "SupportedCrs"
	KindResourceFormat Kind = "ResourceFormat"
)

// Kinds lists the reference tables in the order they are applied.
var Kinds = []Kind{KindLicense, KindCategory, KindDataType, KindSupport, KindSupportedCrs, KindResourceFormat}

// Set is the content of one or more reference data documents.
type Set struct {
	Licenses        []*models.License
	Categories      []*models.Category
	DataTypes       []*models.DataType
	Supports        []*models.Support
	SupportedCrs    []*models.SupportedCrs
	ResourceFormats []*models.ResourceFormat
}

// Len returns the number of items in the set.
func (s *Set) Len() int {
	return len(s.Licenses) + len(s.Categories) + len(s.DataTypes) +
		len(s.Supports) + len(s.SupportedCrs) + len(s.ResourceFormats)
}

//go:embed document.schema.json
var documentSchema []byte

var (
	compiled     *schemavalidator.Schema
	compileErr   error
	compiledOnce sync.Once
)

func schema() (*schemavalidator.Schema, error) {
	compiledOnce.Do(func() {
		compiled, compileErr = schemavalidator.CompileSchema(documentSchema)
	})
	return compiled, compileErr
}

// Parse reads a stream of YAML documents of the form
//
//	kind: Category
//	items:
//	  - slug: environnement
//	    name: Environnement
//
// Empty documents are skipped. Items of the same kind accumulate across
// documents.
func Parse(data []byte) (*Set, error) {
	s, err := schema()
	if err != nil {
		return nil, ErrRefData.MsgErr("unable to compile document schema", err)
	}

	set := &Set{}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	for n := 1; ; n++ {
		var doc map[string]any
		if err := dec.Decode(&doc); err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, ErrInvalidDocument.MsgErr(fmt.Sprintf("document %d", n), err)
		}
		if len(doc) == 0 {
			continue
		}
		if err := s.Validate(doc); err != nil {
			return nil, ErrInvalidDocument.MsgErr(fmt.Sprintf("document %d", n), err)
		}
		if err := set.add(Kind(doc["kind"].(string)), doc["items"].([]any)); err != nil {
			return nil, ErrInvalidDocument.MsgErr(fmt.Sprintf("document %d", n), err)
		}
	}
	return set, nil
}

func (s *Set) add(kind Kind, items []any) error {
	switch kind {
	case KindLicense:
		return decodeItems(items, &s.Licenses)
	case KindCategory:
		return decodeItems(items, &s.Categories)
	case KindDataType:
		return decodeItems(items, &s.DataTypes)
	case KindSupport:
		return decodeItems(items, &s.Supports)
	case KindSupportedCrs:
		return decodeItems(items, &s.SupportedCrs)
	case KindResourceFormat:
		return decodeItems(items, &s.ResourceFormats)
	}
	return ErrUnknownKind.Msg(string(kind))
}

func decodeItems[T any](items []any, out *[]*T) error {
	for i, item := range items {
		v := new(T)
		dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
			Result:           v,
			WeaklyTypedInput: true,
			ErrorUnused:      true,
		})
		if err != nil {
			return err
		}
		if err := dec.Decode(item); err != nil {
			return fmt.Errorf("item %d: %w", i+1, err)
		}
		if err := schemavalidator.V().Struct(v); err != nil {
			if field, msg, ok := schemavalidator.FirstError(err); ok {
				return fmt.Errorf("item %d: %s: %s", i+1, field, msg)
			}
			return fmt.Errorf("item %d: %w", i+1, err)
		}
		*out = append(*out, v)
	}
	return nil
}
