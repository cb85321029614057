package validation

import (
	"fmt"
	"sort"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// ValidationError describes one field that failed schema validation.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

// ValidationResult is the outcome of validating a document against a schema.
type ValidationResult struct {
	Valid  bool              `json:"valid"`
	Errors []ValidationError `json:"errors,omitempty"`
}

// Error joins the field errors into a single line, sorted by field name.
func (r *ValidationResult) Error() string {
	if r == nil || r.Valid {
		return ""
	}
	parts := make([]string, 0, len(r.Errors))
	for _, e := range r.Errors {
		parts = append(parts, fmt.Sprintf("%s: %s", e.Field, e.Message))
	}
	sort.Strings(parts)
	return strings.Join(parts, "; ")
}

// RequiredStringsSchema builds a JSON schema for an object whose listed properties
// must all be present as non-empty strings.
func RequiredStringsSchema(required []string) map[string]interface{} {
	props := make(map[string]interface{}, len(required))
	req := make([]interface{}, 0, len(required))
	for _, name := range required {
		props[name] = map[string]interface{}{
			"type":      "string",
			"minLength": 1,
		}
		req = append(req, name)
	}
	return map[string]interface{}{
		"type":       "object",
		"properties": props,
		"required":   req,
	}
}

// ValidateStrings validates a flat string map against schema.
func ValidateStrings(doc map[string]string, schema map[string]interface{}) (*ValidationResult, error) {
	data := make(map[string]interface{}, len(doc))
	for k, v := range doc {
		data[k] = v
	}

	result, err := gojsonschema.Validate(gojsonschema.NewGoLoader(schema), gojsonschema.NewGoLoader(data))
	if err != nil {
		return nil, fmt.Errorf("validation error: %w", err)
	}

	out := &ValidationResult{Valid: result.Valid()}
	for _, desc := range result.Errors() {
		field := desc.Field()
		if desc.Type() == "required" {
			if p, ok := desc.Details()["property"].(string); ok {
				field = p
			}
		}
		out.Errors = append(out.Errors, ValidationError{
			Field:   field,
			Message: desc.Description(),
			Code:    strings.ToUpper(desc.Type()),
		})
	}
	return out, nil
}
