package schema

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"slices"
)

var errRepeatedArity = errors.New("repeated field must hold exactly one element schema")

// Primitive is the tag of a scalar field.
type Primitive string

const (
	// String fields default to "".
	String Primitive = "string"
	// Number fields default to 0.
	Number Primitive = "number"
	// Boolean fields default to false.
	Boolean Primitive = "boolean"
)

// Validate reports whether p is a known tag.
func (p Primitive) Validate() error {
	switch p {
	case String, Number, Boolean:
		return nil
	default:
		return fmt.Errorf("unknown primitive type %q", string(p))
	}
}

// Type is the declared type of one field.
//
// Exactly one variant is set: Primitive is non-empty for scalar fields,
// otherwise Nested holds the record schema and Repeated tells whether the
// field holds a sequence of such records.
type Type struct {
	Primitive Primitive
	Nested    Schema
	Repeated  bool
}

// Prim returns a primitive field type.
func Prim(p Primitive) Type {
	return Type{Primitive: p}
}

// Record returns a nested record field type.
func Record(s Schema) Type {
	if s == nil {
		s = Schema{}
	}
	return Type{Nested: s}
}

// ListOf returns a repeated nested record field type.
func ListOf(s Schema) Type {
	if s == nil {
		s = Schema{}
	}
	return Type{Nested: s, Repeated: true}
}

// IsPrimitive reports whether t is a scalar type.
func (t Type) IsPrimitive() bool {
	return t.Primitive != ""
}

// Clone returns a deep copy.
func (t Type) Clone() Type {
	if t.IsPrimitive() {
		return t
	}
	return Type{Nested: t.Nested.Clone(), Repeated: t.Repeated}
}

// Equal reports whether both types describe the same shape.
func (t Type) Equal(o Type) bool {
	if t.IsPrimitive() || o.IsPrimitive() {
		return t.Primitive == o.Primitive
	}
	return t.Repeated == o.Repeated && t.Nested.Equal(o.Nested)
}

func (t Type) String() string {
	switch {
	case t.IsPrimitive():
		return string(t.Primitive)
	case t.Repeated:
		return "[]record"
	default:
		return "record"
	}
}

// MarshalJSON implements json.Marshaler.
func (t Type) MarshalJSON() ([]byte, error) {
	switch {
	case t.IsPrimitive():
		return json.Marshal(string(t.Primitive))
	case t.Repeated:
		return json.Marshal([]Schema{t.nested()})
	default:
		return json.Marshal(t.nested())
	}
}

// UnmarshalJSON implements json.Unmarshaler.
func (t *Type) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return errors.New("empty type descriptor")
	}
	switch data[0] {
	case '"':
		var p Primitive
		if err := json.Unmarshal(data, &p); err != nil {
			return err
		}
		if err := p.Validate(); err != nil {
			return err
		}
		*t = Prim(p)
	case '{':
		var s Schema
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*t = Record(s)
	case '[':
		var elems []Schema
		if err := json.Unmarshal(data, &elems); err != nil {
			return err
		}
		if len(elems) != 1 {
			return errRepeatedArity
		}
		*t = ListOf(elems[0])
	default:
		return fmt.Errorf("invalid type descriptor %s", data)
	}
	return nil
}

func (t Type) nested() Schema {
	if t.Nested == nil {
		return Schema{}
	}
	return t.Nested
}

// Schema maps field names to their declared type.
//
// A nil Schema means "no schema yet"; an empty non-nil Schema accepts records
// with no fields.
type Schema map[string]Type

// Clone returns a deep copy. Cloning nil returns nil.
func (s Schema) Clone() Schema {
	if s == nil {
		return nil
	}
	out := make(Schema, len(s))
	for k, v := range s {
		out[k] = v.Clone()
	}
	return out
}

// Equal reports whether both schemas declare the same fields with the same types.
func (s Schema) Equal(o Schema) bool {
	return maps.EqualFunc(s, o, Type.Equal)
}

// Fields returns the field names in sorted order.
func (s Schema) Fields() []string {
	return slices.Sorted(maps.Keys(s))
}

// Validate checks that every primitive tag is known, recursively.
func (s Schema) Validate() error {
	for _, name := range s.Fields() {
		if name == "" {
			return errors.New("field name is required")
		}
		t := s[name]
		if t.IsPrimitive() {
			if err := t.Primitive.Validate(); err != nil {
				return fmt.Errorf("field %q: %w", name, err)
			}
			continue
		}
		if err := t.Nested.Validate(); err != nil {
			return fmt.Errorf("field %q: %w", name, err)
		}
	}
	return nil
}

// Parse decodes a schema descriptor from JSON.
func Parse(data []byte) (Schema, error) {
	var s Schema
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("failed to parse schema: %w", err)
	}
	if s == nil {
		return nil, errors.New("schema must be a JSON object")
	}
	return s, nil
}
