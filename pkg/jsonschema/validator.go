// Package jsonschema validates response bodies against JSON Schema documents.
package jsonschema

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// ValidationErrors is the list of problems found in one document.
type ValidationErrors []error

// Error implements the error interface for ValidationErrors
func (ve ValidationErrors) Error() string {
	msgs := ve.Messages()
	return strings.Join(msgs, "; ")
}

// Messages returns each error as a plain string.
func (ve ValidationErrors) Messages() []string {
	msgs := make([]string, 0, len(ve))
	for _, err := range ve {
		msgs = append(msgs, err.Error())
	}
	return msgs
}

// ValidateWithErrors validates jsonStr against schemaStr and returns every
// leaf validation error. Schema and document parse failures are reported as
// a single-element ValidationErrors.
func ValidateWithErrors(jsonStr, schemaStr string) (bool, ValidationErrors) {
	schema, data, err := prepare(jsonStr, schemaStr)
	if err != nil {
		return false, ValidationErrors{err}
	}

	err = schema.Validate(data)
	if err == nil {
		return true, nil
	}

	var verr *jsonschema.ValidationError
	if errors.As(err, &verr) {
		return false, flatten(verr)
	}
	return false, ValidationErrors{err}
}

func prepare(jsonStr, schemaStr string) (*jsonschema.Schema, interface{}, error) {
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("schema.json", strings.NewReader(schemaStr)); err != nil {
		return nil, nil, fmt.Errorf("invalid schema: %w", err)
	}
	schema, err := compiler.Compile("schema.json")
	if err != nil {
		return nil, nil, fmt.Errorf("invalid schema: %w", err)
	}

	var data interface{}
	if err := json.Unmarshal([]byte(jsonStr), &data); err != nil {
		return nil, nil, fmt.Errorf("invalid JSON: %w", err)
	}
	return schema, data, nil
}

// flatten walks the cause tree and keeps only leaf errors, which carry the
// specific keyword that failed.
func flatten(err *jsonschema.ValidationError) ValidationErrors {
	if len(err.Causes) == 0 {
		loc := err.InstanceLocation
		if loc == "" {
			loc = "/"
		}
		return ValidationErrors{fmt.Errorf("%s: %s", loc, err.Message)}
	}

	var out ValidationErrors
	for _, cause := range err.Causes {
		out = append(out, flatten(cause)...)
	}
	return out
}
