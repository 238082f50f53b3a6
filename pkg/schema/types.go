package schema

import (
	"fmt"
	"reflect"
)

// Type validates a prop value.
type Type interface {
	// Name returns the type string (e.g. "string", "[int]").
	Name() string
	// Validate checks if a value conforms to this type.
	Validate(value any) error
}

type basicType struct {
	name  string
	check func(any) bool
}

func (t basicType) Name() string { return t.name }

func (t basicType) Validate(value any) error {
	if !t.check(value) {
		return fmt.Errorf("expected %s, got %T", t.name, value)
	}
	return nil
}

type sliceType struct {
	elem Type
}

func (t sliceType) Name() string { return "[" + t.elem.Name() + "]" }

func (t sliceType) Validate(value any) error {
	rv := reflect.ValueOf(value)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return fmt.Errorf("expected slice, got %T", value)
	}
	for i := 0; i < rv.Len(); i++ {
		if err := t.elem.Validate(rv.Index(i).Interface()); err != nil {
			return fmt.Errorf("element %d: %w", i, err)
		}
	}
	return nil
}

// String accepts strings.
func String() Type {
	return basicType{name: "string", check: func(v any) bool {
		_, ok := v.(string)
		return ok
	}}
}

// Int accepts integers, and whole floats as produced by JSON decoding.
func Int() Type {
	return basicType{name: "int", check: func(v any) bool {
		switch n := v.(type) {
		case int, int8, int16, int32, int64:
			return true
		case float64:
			return n == float64(int64(n))
		}
		return false
	}}
}

// Float accepts any number.
func Float() Type {
	return basicType{name: "float", check: func(v any) bool {
		switch v.(type) {
		case float32, float64, int, int8, int16, int32, int64:
			return true
		}
		return false
	}}
}

// Bool accepts booleans.
func Bool() Type {
	return basicType{name: "bool", check: func(v any) bool {
		_, ok := v.(bool)
		return ok
	}}
}

// Object accepts nested prop maps, such as style declarations.
func Object() Type {
	return basicType{name: "object", check: func(v any) bool {
		_, ok := v.(map[string]any)
		return ok
	}}
}

// Slice accepts slices whose elements all match elem.
func Slice(elem Type) Type {
	return sliceType{elem: elem}
}

// ParseType converts a type string to a Type.
// Supports "string", "int", "float", "bool", "object" and slices like "[string]".
func ParseType(typeStr string) (Type, error) {
	if len(typeStr) > 2 && typeStr[0] == '[' && typeStr[len(typeStr)-1] == ']' {
		elem, err := ParseType(typeStr[1 : len(typeStr)-1])
		if err != nil {
			return nil, err
		}
		return Slice(elem), nil
	}
	switch typeStr {
	case "string":
		return String(), nil
	case "int":
		return Int(), nil
	case "float":
		return Float(), nil
	case "bool":
		return Bool(), nil
	case "object":
		return Object(), nil
	default:
		return nil, fmt.Errorf("unsupported type: %s", typeStr)
	}
}

// Schema maps prop names to their types.
type Schema map[string]Type

// ParseTypeMap converts a map of prop names to type strings into a Schema.
func ParseTypeMap(typeMap map[string]string) (Schema, error) {
	result := make(Schema, len(typeMap))
	for key, typeStr := range typeMap {
		t, err := ParseType(typeStr)
		if err != nil {
			return nil, fmt.Errorf("prop %s: %w", key, err)
		}
		result[key] = t
	}
	return result, nil
}

// ValidateProps checks the props that the schema declares.
// Undeclared props pass, and nil values pass since they mean removal.
func ValidateProps(s Schema, props map[string]any) error {
	var errs []error
	for key, value := range props {
		t, ok := s[key]
		if !ok || value == nil {
			continue
		}
		if err := t.Validate(value); err != nil {
			errs = append(errs, &ValidationError{Key: key, Reason: err.Error(), Value: value})
		}
	}
	return aggregate(errs)
}
