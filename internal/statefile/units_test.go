package statefile

import (
	"errors"
	"slices"
	"testing"

	"github.com/maruel/sfdb/internal/fsys"
	"github.com/maruel/sfdb/internal/schema"
)

// numbered returns a container with units {n: 1} to {n: count}, two per
// shard.
func numbered(t *testing.T, m *fsys.Memory, count int) *Container {
	t.Helper()
	c := mustNew(t, m, "nums", &Options{Limit: 2})
	if err := c.ExtendUnitType(schema.Schema{"n": schema.Prim(schema.Number)}); err != nil {
		t.Fatal(err)
	}
	for i := 1; i <= count; i++ {
		if err := c.Push(schema.Unit{"n": float64(i)}); err != nil {
			t.Fatal(err)
		}
	}
	return c
}

func TestRetrieve(t *testing.T) {
	m := fsys.NewMemory()
	numbered(t, m, 5)
	c := mustNew(t, m, "nums", nil)
	if c.Len() != 1 {
		t.Fatalf("Len() = %d, want only the newest shard in memory", c.Len())
	}
	for i := range 5 {
		u, err := c.At(i)
		if err != nil {
			t.Fatalf("At(%d) failed: %v", i, err)
		}
		if u["n"] != float64(i+1) {
			t.Errorf("At(%d) = %v", i, u)
		}
	}
	for _, i := range []int{-1, 5} {
		if _, err := c.At(i); !errors.Is(err, ErrIndexOutOfRange) {
			t.Errorf("At(%d) = %v, want ErrIndexOutOfRange", i, err)
		}
	}

	u, _ := c.At(0)
	u["n"] = float64(100)
	if again, _ := c.At(0); again["n"] != float64(1) {
		t.Error("At returned a unit shared with the container")
	}

	got, err := c.Find(func(u schema.Unit) bool { return u["n"].(float64) > 2 })
	if err != nil {
		t.Fatal(err)
	}
	var ns []float64
	for _, u := range got {
		ns = append(ns, u["n"].(float64))
	}
	if !slices.Equal(ns, []float64{3, 4, 5}) {
		t.Errorf("Find() = %v, want [3 4 5]", ns)
	}
}

func TestManipulate(t *testing.T) {
	t.Run("push rolls over", func(t *testing.T) {
		m := fsys.NewMemory()
		c := numbered(t, m, 5)
		if got := seqs(c); !slices.Equal(got, []int{1, 2, 3}) {
			t.Errorf("shards = %v, want [1 2 3]", got)
		}
		if c.Meta().Crack != 3 {
			t.Errorf("crack = %d, want 3", c.Meta().Crack)
		}
		for _, s := range c.Shards() {
			if s.Len() > 2 {
				t.Errorf("shard %d holds %d units", s.Seq, s.Len())
			}
		}
	})

	t.Run("push reconciles", func(t *testing.T) {
		m := fsys.NewMemory()
		c := numbered(t, m, 0)
		if err := c.Push(schema.Unit{"extra": true}, nil); err != nil {
			t.Fatal(err)
		}
		for i := range 2 {
			u, err := c.At(i)
			if err != nil {
				t.Fatal(err)
			}
			if len(u) != 1 || u["n"] != float64(0) {
				t.Errorf("At(%d) = %v, want {n:0}", i, u)
			}
		}
	})

	t.Run("update", func(t *testing.T) {
		m := fsys.NewMemory()
		numbered(t, m, 5)
		c := mustNew(t, m, "nums", nil)
		if err := c.Update(1, func(u schema.Unit) {
			u["n"] = float64(20)
			u["junk"] = "x"
		}); err != nil {
			t.Fatal(err)
		}
		c2 := mustNew(t, m, "nums", nil)
		u, err := c2.At(1)
		if err != nil {
			t.Fatal(err)
		}
		if len(u) != 1 || u["n"] != float64(20) {
			t.Errorf("At(1) = %v, want {n:20}", u)
		}
		if err := c2.Update(9, func(schema.Unit) {}); !errors.Is(err, ErrIndexOutOfRange) {
			t.Errorf("Update(9) = %v", err)
		}
	})

	t.Run("remove", func(t *testing.T) {
		m := fsys.NewMemory()
		numbered(t, m, 5)
		c := mustNew(t, m, "nums", nil)
		if err := c.Remove(0); err != nil {
			t.Fatal(err)
		}
		c2 := mustNew(t, m, "nums", nil)
		if n, err := c2.Count(); err != nil || n != 4 {
			t.Errorf("Count() = %d, %v; want 4", n, err)
		}
		if u, err := c2.At(0); err != nil || u["n"] != float64(2) {
			t.Errorf("At(0) = %v, %v; want {n:2}", u, err)
		}
		// Emptied shards are kept.
		if err := c2.Remove(0); err != nil {
			t.Fatal(err)
		}
		if got := seqs(c2); !slices.Equal(got, []int{1, 2, 3}) {
			t.Errorf("shards = %v, want [1 2 3]", got)
		}
	})

	t.Run("sequence range", func(t *testing.T) {
		m := fsys.NewMemory()
		m.Put(shardPath("full", MaxSeq), rawShard("full", MaxSeq, `{}`, `[{}]`))
		c := mustNew(t, m, "full", &Options{Limit: 1})
		if err := c.Push(schema.Unit{}); !errors.Is(err, ErrSequenceRange) {
			t.Fatalf("Push() = %v, want ErrSequenceRange", err)
		}
		if got := seqs(c); !slices.Equal(got, []int{MaxSeq}) {
			t.Errorf("shards = %v", got)
		}
	})
}
