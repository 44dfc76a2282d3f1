package schema

import (
	"encoding/json"
	"reflect"
	"slices"
	"testing"
)

func mustParse(t *testing.T, s string) Schema {
	t.Helper()
	sc, err := Parse([]byte(s))
	if err != nil {
		t.Fatalf("Parse(%s) failed: %v", s, err)
	}
	return sc
}

func TestType(t *testing.T) {
	t.Run("UnmarshalJSON", func(t *testing.T) {
		t.Run("valid", func(t *testing.T) {
			tests := []struct {
				name string
				in   string
				want Type
			}{
				{"string", `"string"`, Prim(String)},
				{"number", `"number"`, Prim(Number)},
				{"boolean", `"boolean"`, Prim(Boolean)},
				{"record", `{"city":"string"}`, Record(Schema{"city": Prim(String)})},
				{"empty record", `{}`, Record(Schema{})},
				{"repeated", `[{"label":"string"}]`, ListOf(Schema{"label": Prim(String)})},
			}
			for _, tt := range tests {
				t.Run(tt.name, func(t *testing.T) {
					var got Type
					if err := json.Unmarshal([]byte(tt.in), &got); err != nil {
						t.Fatalf("Unmarshal failed: %v", err)
					}
					if !got.Equal(tt.want) {
						t.Errorf("got %v, want %v", got, tt.want)
					}
				})
			}
		})
		t.Run("invalid", func(t *testing.T) {
			for _, in := range []string{`"date"`, `[]`, `[{}, {}]`, `3`, `null`, `true`} {
				t.Run(in, func(t *testing.T) {
					var got Type
					if err := json.Unmarshal([]byte(in), &got); err == nil {
						t.Errorf("Unmarshal(%s) succeeded with %v, want error", in, got)
					}
				})
			}
		})
	})

	t.Run("MarshalJSON", func(t *testing.T) {
		s := Schema{
			"name": Prim(String),
			"addr": Record(Schema{"zip": Prim(Number)}),
			"tags": ListOf(Schema{"on": Prim(Boolean)}),
		}
		data, err := json.Marshal(s)
		if err != nil {
			t.Fatalf("Marshal failed: %v", err)
		}
		want := `{"addr":{"zip":"number"},"name":"string","tags":[{"on":"boolean"}]}`
		if string(data) != want {
			t.Errorf("Marshal = %s, want %s", data, want)
		}
		back := mustParse(t, string(data))
		if !back.Equal(s) {
			t.Errorf("round trip = %v, want %v", back, s)
		}
	})

	t.Run("Zero", func(t *testing.T) {
		tests := []struct {
			name string
			typ  Type
			want any
		}{
			{"string", Prim(String), ""},
			{"number", Prim(Number), float64(0)},
			{"boolean", Prim(Boolean), false},
			{"record", Record(Schema{"a": Prim(String)}), map[string]any{}},
			{"repeated", ListOf(Schema{"a": Prim(String)}), []any{}},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				if got := tt.typ.Zero(); !reflect.DeepEqual(got, tt.want) {
					t.Errorf("Zero() = %#v, want %#v", got, tt.want)
				}
			})
		}
	})
}

func TestParse(t *testing.T) {
	for _, in := range []string{`null`, `[]`, `"string"`, `{"a":"uuid"}`, `{`} {
		if _, err := Parse([]byte(in)); err == nil {
			t.Errorf("Parse(%s) succeeded, want error", in)
		}
	}
}

func TestDefault(t *testing.T) {
	s := Schema{"age": Prim(Number)}
	if got := Default(s, "age"); got != float64(0) {
		t.Errorf("Default(age) = %#v, want 0", got)
	}
	if got := Default(s, "missing"); got != nil {
		t.Errorf("Default(missing) = %#v, want nil", got)
	}
}

func TestCombine(t *testing.T) {
	t.Run("union", func(t *testing.T) {
		a := mustParse(t, `{"name":"string","addr":{"city":"string"}}`)
		b := mustParse(t, `{"age":"number","addr":{"zip":"number"}}`)
		got := Combine(a, b)
		want := mustParse(t, `{"name":"string","age":"number","addr":{"city":"string","zip":"number"}}`)
		if !got.Equal(want) {
			t.Errorf("Combine = %v, want %v", got, want)
		}
	})
	t.Run("latest wins", func(t *testing.T) {
		tests := []struct {
			name string
			a, b string
			want string
		}{
			{"primitive tags", `{"x":"string"}`, `{"x":"number"}`, `{"x":"number"}`},
			{"primitive to record", `{"x":"string"}`, `{"x":{"y":"string"}}`, `{"x":{"y":"string"}}`},
			{"record to primitive", `{"x":{"y":"string"}}`, `{"x":"boolean"}`, `{"x":"boolean"}`},
			{"record to repeated", `{"x":{"y":"string"}}`, `{"x":[{"z":"number"}]}`, `{"x":[{"y":"string","z":"number"}]}`},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				got := Combine(mustParse(t, tt.a), mustParse(t, tt.b))
				if want := mustParse(t, tt.want); !got.Equal(want) {
					t.Errorf("Combine = %v, want %v", got, want)
				}
			})
		}
	})
	t.Run("nil inputs", func(t *testing.T) {
		b := Schema{"a": Prim(String)}
		if got := Combine(nil, b); !got.Equal(b) || got == nil {
			t.Errorf("Combine(nil, b) = %v", got)
		}
		if got := Combine(nil, nil); got == nil || len(got) != 0 {
			t.Errorf("Combine(nil, nil) = %#v, want empty schema", got)
		}
	})
	t.Run("inputs untouched", func(t *testing.T) {
		a := mustParse(t, `{"addr":{"city":"string"}}`)
		b := mustParse(t, `{"addr":{"zip":"number"}}`)
		_ = Combine(a, b)
		if len(a["addr"].Nested) != 1 || len(b["addr"].Nested) != 1 {
			t.Errorf("Combine mutated its inputs: a=%v b=%v", a, b)
		}
	})
	t.Run("idempotent union", func(t *testing.T) {
		pairs := [][2]string{
			{`{}`, `{}`},
			{`{"a":"string"}`, `{"b":"number"}`},
			{`{"a":"string"}`, `{"a":"number"}`},
			{`{"a":{"x":"string"}}`, `{"a":[{"y":"boolean"}],"b":"string"}`},
			{`{"a":[{"x":{"deep":"number"}}]}`, `{"a":[{"x":{"deeper":"string"}}]}`},
		}
		for _, p := range pairs {
			a, b := mustParse(t, p[0]), mustParse(t, p[1])
			ab := Combine(a, b)
			if got := Combine(a, ab); !got.Equal(ab) {
				t.Errorf("Combine(A, Combine(A, B)) = %v, want %v (A=%s B=%s)", got, ab, p[0], p[1])
			}
		}
	})
}

func TestIsCompatible(t *testing.T) {
	schemas := []string{
		`{}`,
		`{"name":"string"}`,
		`{"name":"string","addr":{"city":"string"}}`,
		`{"tags":[{"label":"string","meta":{"k":"number"}}]}`,
	}
	t.Run("reflexive", func(t *testing.T) {
		for _, s := range schemas {
			sc := mustParse(t, s)
			if !IsCompatible(sc, sc) {
				t.Errorf("IsCompatible(S, S) = false for %s", s)
			}
		}
	})
	t.Run("supersets stay compatible", func(t *testing.T) {
		extras := []string{`{}`, `{"age":"number"}`, `{"name":"number"}`, `{"addr":"string"}`, `{"tags":[{"extra":"boolean"}]}`}
		for _, s := range schemas {
			for _, e := range extras {
				sc := mustParse(t, s)
				if !IsCompatible(Combine(sc, mustParse(t, e)), sc) {
					t.Errorf("IsCompatible(Combine(%s, %s), S) = false", s, e)
				}
			}
		}
	})
	t.Run("asymmetric", func(t *testing.T) {
		small := mustParse(t, `{"name":"string"}`)
		big := mustParse(t, `{"name":"string","age":"number"}`)
		if !IsCompatible(big, small) {
			t.Error("candidate with extra fields should be compatible")
		}
		if IsCompatible(small, big) {
			t.Error("candidate missing a reference field should be incompatible")
		}
		if got := Missing(small, big); !slices.Equal(got, []string{"age"}) {
			t.Errorf("Missing = %v, want [age]", got)
		}
	})
	t.Run("nested missing", func(t *testing.T) {
		cand := mustParse(t, `{"addr":{"city":"string"}}`)
		ref := mustParse(t, `{"addr":{"city":"string","zip":"number"}}`)
		if IsCompatible(cand, ref) {
			t.Error("nested missing field should be incompatible")
		}
		if got := Missing(cand, ref); !slices.Equal(got, []string{"addr.zip"}) {
			t.Errorf("Missing = %v, want [addr.zip]", got)
		}
	})
}

func TestReconcile(t *testing.T) {
	s := mustParse(t, `{"name":"string","age":"number","ok":"boolean","addr":{"city":"string"},"tags":[{"label":"string","n":"number"}]}`)

	t.Run("fills and drops", func(t *testing.T) {
		u := Unit{"name": "a", "junk": 1.0}
		Reconcile(u, s)
		want := Unit{
			"name": "a",
			"age":  float64(0),
			"ok":   false,
			"addr": map[string]any{"city": ""},
			"tags": []any{},
		}
		if !reflect.DeepEqual(u, want) {
			t.Errorf("Reconcile = %#v, want %#v", u, want)
		}
	})

	t.Run("repeated elements", func(t *testing.T) {
		u := Unit{
			"name": "a",
			"tags": []any{
				map[string]any{"label": "x", "drop": true},
				map[string]any{},
				"not a record",
			},
		}
		Reconcile(u, s)
		tags := u["tags"].([]any)
		if want := map[string]any{"label": "x", "n": float64(0)}; !reflect.DeepEqual(tags[0], want) {
			t.Errorf("tags[0] = %#v, want %#v", tags[0], want)
		}
		if want := map[string]any{"label": "", "n": float64(0)}; !reflect.DeepEqual(tags[1], want) {
			t.Errorf("tags[1] = %#v, want %#v", tags[1], want)
		}
		if tags[2] != "not a record" {
			t.Errorf("tags[2] = %#v, want untouched", tags[2])
		}
	})

	// A present but falsy value is treated exactly like an absent one. The
	// default is written back, which matters when the field type changed.
	t.Run("falsy counts as missing", func(t *testing.T) {
		typed := Schema{"n": Prim(Number), "s": Prim(String), "b": Prim(Boolean)}
		u := Unit{"n": "", "s": false, "b": float64(0)}
		Reconcile(u, typed)
		want := Unit{"n": float64(0), "s": "", "b": false}
		if !reflect.DeepEqual(u, want) {
			t.Errorf("Reconcile = %#v, want %#v", u, want)
		}
		keep := Unit{"n": "7", "s": true, "b": float64(1)}
		Reconcile(keep, typed)
		if want := (Unit{"n": "7", "s": true, "b": float64(1)}); !reflect.DeepEqual(keep, want) {
			t.Errorf("truthy values changed: %#v", keep)
		}
	})

	t.Run("idempotent", func(t *testing.T) {
		inputs := []Unit{
			{},
			{"name": "a"},
			{"name": "", "age": 3.0, "addr": map[string]any{"x": 1.0}},
			{"tags": []any{map[string]any{"label": "l"}, map[string]any{"n": 2.0, "z": "z"}}},
			{"addr": "wrong kind", "tags": map[string]any{"label": "single"}},
		}
		for _, in := range inputs {
			once := in.Clone()
			Reconcile(once, s)
			twice := once.Clone()
			Reconcile(twice, s)
			if !reflect.DeepEqual(once, twice) {
				t.Errorf("not idempotent for %#v: once=%#v twice=%#v", in, once, twice)
			}
		}
	})

	t.Run("empty schema", func(t *testing.T) {
		u := Unit{"a": 1.0}
		Reconcile(u, Schema{})
		if len(u) != 0 {
			t.Errorf("Reconcile with empty schema = %#v, want empty", u)
		}
	})
}

func TestUnitClone(t *testing.T) {
	u := Unit{"addr": map[string]any{"city": "x"}, "tags": []any{map[string]any{"l": "a"}}}
	c := u.Clone()
	c["addr"].(map[string]any)["city"] = "y"
	c["tags"].([]any)[0].(map[string]any)["l"] = "b"
	if u["addr"].(map[string]any)["city"] != "x" || u["tags"].([]any)[0].(map[string]any)["l"] != "a" {
		t.Errorf("Clone shares state with original: %#v", u)
	}
}
