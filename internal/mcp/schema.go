// Package mcp implements the tool registry and dispatcher described in
// spec.md §4.D: static tool registration, the ten-step dispatch contract,
// and the two wire transports (stdio JSON-RPC, HTTP JSON-RPC) in §6.
package mcp

import (
	"fmt"
)

// FieldType is the subset of JSON Schema primitive types this validator
// understands; good enough for the flat, shallow argument shapes every
// tool in spec.md §4.D accepts.
type FieldType string

const (
	TypeString  FieldType = "string"
	TypeNumber  FieldType = "number"
	TypeInteger FieldType = "integer"
	TypeBoolean FieldType = "boolean"
	TypeObject  FieldType = "object"
	TypeArray   FieldType = "array"
	TypeAny     FieldType = "any"
)

// Field describes one argument.
type Field struct {
	Type     FieldType
	Required bool
}

// Schema is a flat field-name -> Field map, enough to validate the tool
// argument objects spec.md §4.D describes (no nested schema composition).
type Schema struct {
	Fields map[string]Field
}

// FieldError names the offending field path, mirroring spec.md §4.D step 3.
type FieldError struct {
	Field   string
	Message string
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Validate checks args against the schema, returning the first violation.
func (s Schema) Validate(args map[string]any) *FieldError {
	for name, field := range s.Fields {
		v, present := args[name]
		if !present {
			if field.Required {
				return &FieldError{Field: name, Message: "required field missing"}
			}
			continue
		}
		if !matchesType(v, field.Type) {
			return &FieldError{Field: name, Message: fmt.Sprintf("expected %s", field.Type)}
		}
	}
	return nil
}

func matchesType(v any, t FieldType) bool {
	if v == nil || t == TypeAny {
		return true
	}
	switch t {
	case TypeString:
		_, ok := v.(string)
		return ok
	case TypeNumber, TypeInteger:
		switch v.(type) {
		case float64, float32, int, int64:
			return true
		default:
			return false
		}
	case TypeBoolean:
		_, ok := v.(bool)
		return ok
	case TypeObject:
		_, ok := v.(map[string]any)
		return ok
	case TypeArray:
		_, ok := v.([]any)
		return ok
	default:
		return true
	}
}
