// Package jsonschema validates tool arguments against their declared JSON
// Schema using gojsonschema.
package jsonschema

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/fwojciec/dispatch"
	"github.com/xeipuuv/gojsonschema"
)

const rootField = "(root)"

// Schema is a compiled parameter schema.
type Schema struct {
	schema *gojsonschema.Schema
}

// Compile parses and compiles raw. An empty raw accepts any object.
func Compile(raw json.RawMessage) (*Schema, error) {
	if len(raw) == 0 {
		raw = json.RawMessage(`{"type":"object"}`)
	}
	s, err := gojsonschema.NewSchema(gojsonschema.NewBytesLoader(raw))
	if err != nil {
		return nil, fmt.Errorf("compile schema: %v: %w", err, dispatch.ErrValidation)
	}
	return &Schema{schema: s}, nil
}

// Validate checks args and returns a *dispatch.ArgumentError naming the
// offending field when they do not conform. Empty args are treated as {}.
func (s *Schema) Validate(args json.RawMessage) error {
	if len(args) == 0 {
		args = json.RawMessage(`{}`)
	}
	result, err := s.schema.Validate(gojsonschema.NewBytesLoader(args))
	if err != nil {
		return &dispatch.ArgumentError{Reason: "arguments are not valid JSON"}
	}
	if result.Valid() {
		return nil
	}

	errs := result.Errors()
	sort.SliceStable(errs, func(i, j int) bool {
		fi, fj := field(errs[i]), field(errs[j])
		if fi != fj {
			return fi < fj
		}
		return errs[i].Type() < errs[j].Type()
	})

	first := errs[0]
	reason := first.Description()
	if n := len(errs) - 1; n > 0 {
		reason = fmt.Sprintf("%s (and %d more)", reason, n)
	}
	return &dispatch.ArgumentError{Field: field(first), Reason: reason}
}

// field names the argument an error is about. Errors on the root object,
// such as a missing required property, name the property instead.
func field(e gojsonschema.ResultError) string {
	f := e.Field()
	if f != rootField {
		return f
	}
	if p, ok := e.Details()["property"].(string); ok {
		return p
	}
	return ""
}
