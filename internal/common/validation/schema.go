// Package validation shape-checks inbound JSON payloads against JSON Schema
// documents before they reach the dispatch engine.
package validation

import (
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// Result reports the outcome of a schema check.
type Result struct {
	Valid  bool
	Errors []string
}

// ErrorMessage joins the individual violations into one diagnostic.
func (r *Result) ErrorMessage() string {
	return strings.Join(r.Errors, "; ")
}

// ValidateJSON checks a raw JSON document against a JSON Schema document.
func ValidateJSON(schema string, document []byte) (*Result, error) {
	schemaLoader := gojsonschema.NewStringLoader(schema)
	documentLoader := gojsonschema.NewBytesLoader(document)

	result, err := gojsonschema.Validate(schemaLoader, documentLoader)
	if err != nil {
		return nil, fmt.Errorf("schema validation: %w", err)
	}

	if result.Valid() {
		return &Result{Valid: true}, nil
	}

	out := &Result{Valid: false}
	for _, desc := range result.Errors() {
		out.Errors = append(out.Errors, desc.String())
	}
	return out, nil
}
