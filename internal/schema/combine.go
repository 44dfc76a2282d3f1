package schema

// Combine returns the union of a and b.
//
// Every field of either input is present in the result. When both declare a
// field as a record (nested or repeated), the record schemas are combined
// recursively and b decides whether the field is repeated. Any other conflict
// is resolved in favor of b. Neither input is modified.
func Combine(a, b Schema) Schema {
	out := a.Clone()
	if out == nil {
		out = make(Schema, len(b))
	}
	for name, tb := range b {
		ta, ok := out[name]
		if !ok || ta.IsPrimitive() || tb.IsPrimitive() {
			out[name] = tb.Clone()
			continue
		}
		out[name] = Type{Nested: Combine(ta.Nested, tb.Nested), Repeated: tb.Repeated}
	}
	return out
}

// IsCompatible reports whether candidate can stand in for reference.
//
// Every field declared by reference must be declared by candidate; when both
// declare a field as a record the check recurses into the record schemas.
// Fields only known to candidate are ignored. A field whose type differs is
// accepted because [Combine] lets the latest declaration override earlier
// ones, so differing tags are an expected product of evolution.
func IsCompatible(candidate, reference Schema) bool {
	for name, tr := range reference {
		tc, ok := candidate[name]
		if !ok {
			return false
		}
		if tc.IsPrimitive() || tr.IsPrimitive() {
			continue
		}
		if !IsCompatible(tc.Nested, tr.Nested) {
			return false
		}
	}
	return true
}

// Missing returns the fields of reference that candidate lacks, as dotted
// paths, in sorted order. It is empty exactly when IsCompatible is true.
func Missing(candidate, reference Schema) []string {
	var out []string
	for _, name := range reference.Fields() {
		tr := reference[name]
		tc, ok := candidate[name]
		if !ok {
			out = append(out, name)
			continue
		}
		if tc.IsPrimitive() || tr.IsPrimitive() {
			continue
		}
		for _, sub := range Missing(tc.Nested, tr.Nested) {
			out = append(out, name+"."+sub)
		}
	}
	return out
}
