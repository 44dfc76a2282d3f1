// Package schema describes and enforces the shape of data units.
//
// # Overview
//
// A [Schema] maps field names to a [Type]. A Type is one of three variants:
// a primitive tag ([String], [Number], [Boolean]), a nested record schema, or
// a repeated nested record schema (a sequence of records sharing one schema).
//
// A [Unit] is an open-ended record decoded from JSON. [Reconcile] forces a
// Unit to match a Schema: unknown fields are dropped, missing or falsy
// fields receive [Default], and nested record sequences are reconciled
// element by element.
//
// # Evolution
//
// Schemas only grow. [Combine] merges two schemas with the latest definition
// winning on conflict, and [IsCompatible] only requires that a candidate
// carries every field of the reference.
//
// # Wire Form
//
// Primitive fields encode as their tag string, nested records as an object
// and repeated records as a one-element array holding the element schema:
//
//	{"name": "string", "address": {"city": "string"}, "tags": [{"label": "string"}]}
package schema
