// Converts between schema descriptors and JSON Schema documents.

package schema

import (
	"fmt"
	"reflect"

	"github.com/invopop/jsonschema"
)

// ToJSONSchema renders s as a JSON Schema document describing a data unit.
//
// Every declared field is required and no other field is allowed, which is
// the shape [Reconcile] produces.
func ToJSONSchema(s Schema) *jsonschema.Schema {
	out := objectSchema(s)
	out.Version = jsonschema.Version
	return out
}

func objectSchema(s Schema) *jsonschema.Schema {
	props := jsonschema.NewProperties()
	names := s.Fields()
	for _, name := range names {
		props.Set(name, typeSchema(s[name]))
	}
	return &jsonschema.Schema{
		Type:                 "object",
		Properties:           props,
		Required:             names,
		AdditionalProperties: jsonschema.FalseSchema,
	}
}

func typeSchema(t Type) *jsonschema.Schema {
	switch {
	case t.Repeated:
		return &jsonschema.Schema{Type: "array", Items: objectSchema(t.Nested)}
	case !t.IsPrimitive():
		return objectSchema(t.Nested)
	}
	return &jsonschema.Schema{Type: string(t.Primitive)}
}

// FromType derives a schema from the exported fields of struct type T.
//
// Field names follow the json tags. Strings map to [String], integers and
// floats to [Number], bools to [Boolean], structs and maps to nested records
// and slices of structs to repeated records. Other kinds (time.Time, slices of
// scalars) are declared as [String].
func FromType[T any]() (Schema, error) {
	t := reflect.TypeFor[T]()
	if t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t.Kind() != reflect.Struct {
		return nil, fmt.Errorf("type must be a struct or pointer to struct, got %s", t.Kind())
	}
	r := jsonschema.Reflector{Anonymous: true, DoNotReference: true, ExpandedStruct: true}
	return fromJSONSchema(r.ReflectFromType(t)), nil
}

func fromJSONSchema(js *jsonschema.Schema) Schema {
	out := Schema{}
	if js == nil || js.Properties == nil {
		return out
	}
	for pair := js.Properties.Oldest(); pair != nil; pair = pair.Next() {
		out[pair.Key] = fromProperty(pair.Value)
	}
	return out
}

func fromProperty(p *jsonschema.Schema) Type {
	switch p.Type {
	case "integer", "number":
		return Prim(Number)
	case "boolean":
		return Prim(Boolean)
	case "object":
		return Record(fromJSONSchema(p))
	case "array":
		if p.Items != nil && p.Items.Type == "object" {
			return ListOf(fromJSONSchema(p.Items))
		}
		return Prim(String)
	default:
		return Prim(String)
	}
}
