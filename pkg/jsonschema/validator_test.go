package jsonschema

import (
	"strings"
	"testing"
)

const userSchema = `{
	"type": "object",
	"properties": {
		"name": { "type": "string" },
		"age": { "type": "integer" }
	},
	"required": ["name"]
}`

func TestValidateWithErrors_Cases(t *testing.T) {
	tests := []struct {
		name          string
		schema        string
		json          string
		expectedValid bool
		expectedError bool
	}{
		{
			name:          "Valid simple object",
			schema:        userSchema,
			json:          `{"name": "John Doe", "age": 30}`,
			expectedValid: true,
		},
		{
			name:          "Missing required property",
			schema:        userSchema,
			json:          `{"age": 30}`,
			expectedValid: false,
		},
		{
			name:          "Wrong type",
			schema:        userSchema,
			json:          `{"name": "John", "age": "thirty"}`,
			expectedValid: false,
		},
		{
			name:          "Invalid JSON document",
			schema:        userSchema,
			json:          `{"name": `,
			expectedError: true,
		},
		{
			name:          "Invalid schema",
			schema:        `{"type": 12}`,
			json:          `{}`,
			expectedError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			valid, errs := ValidateWithErrors(tt.json, tt.schema)
			if tt.expectedError {
				if valid || len(errs) != 1 {
					t.Errorf("expected a single parse error, got valid=%v errs=%v", valid, errs)
				}
				return
			}
			if valid != tt.expectedValid {
				t.Errorf("ValidateWithErrors() = %v, want %v (errs: %v)", valid, tt.expectedValid, errs)
			}
			if !valid && len(errs) == 0 {
				t.Error("an invalid document must report at least one error")
			}
		})
	}
}

func TestValidateWithErrors(t *testing.T) {
	valid, errs := ValidateWithErrors(`{"name": "John", "age": 30}`, userSchema)
	if !valid || len(errs) != 0 {
		t.Errorf("expected valid document, got %v", errs)
	}

	valid, errs = ValidateWithErrors(`{"age": "old"}`, userSchema)
	if valid {
		t.Fatal("expected invalid document")
	}
	if len(errs) < 2 {
		t.Fatalf("expected at least 2 errors (required + type), got %d: %v", len(errs), errs)
	}

	joined := errs.Error()
	if !strings.Contains(joined, "/age") {
		t.Errorf("expected error to mention /age, got %q", joined)
	}
	if len(errs.Messages()) != len(errs) {
		t.Errorf("Messages() length mismatch")
	}
}

func TestValidateWithErrors_BadJSON(t *testing.T) {
	valid, errs := ValidateWithErrors(`not json`, userSchema)
	if valid {
		t.Fatal("expected invalid")
	}
	if len(errs) != 1 || !strings.Contains(errs[0].Error(), "invalid JSON") {
		t.Errorf("expected single invalid JSON error, got %v", errs)
	}
}
