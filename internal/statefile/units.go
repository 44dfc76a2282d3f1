// Default unit access strategies.

package statefile

import (
	"slices"

	"github.com/maruel/sfdb/internal/schema"
)

// IndexRetriever addresses units by their global index, oldest shard first.
type IndexRetriever struct{}

// At implements Retriever. The shards walked to reach i stay loaded.
func (IndexRetriever) At(c *Container, i int) (schema.Unit, error) {
	s, j, err := c.Locate(i)
	if err != nil {
		return nil, err
	}
	return s.units[j].Clone(), nil
}

// Find implements Retriever.
func (IndexRetriever) Find(c *Container, pred func(schema.Unit) bool) ([]schema.Unit, error) {
	var out []schema.Unit
	err := c.loader.TmpLoadAll(c, func() error {
		for _, s := range c.shards {
			for _, u := range s.units {
				if pred == nil || pred(u) {
					out = append(out, u.Clone())
				}
			}
		}
		return nil
	})
	return out, err
}

// AppendManipulator appends to the newest shard and rolls over to a new one
// when it holds Container.Limit units.
type AppendManipulator struct{}

// Push implements Manipulator.
//
// When a rollover fails, the units appended so far are persisted and the
// rollover error is returned.
func (AppendManipulator) Push(c *Container, units ...schema.Unit) error {
	s := c.Newest()
	if _, err := c.Load(s); err != nil {
		return err
	}
	var touched []*Shard
	for _, u := range units {
		if s.Len() >= c.Limit() {
			ns, err := c.Rollover()
			if err != nil {
				if len(touched) != 0 {
					if perr := c.persist(touched...); perr != nil {
						return perr
					}
				}
				return err
			}
			s = ns
		}
		u = u.Clone()
		if u == nil {
			u = schema.Unit{}
		}
		c.Reconcile(u)
		s.units = append(s.units, u)
		if !slices.Contains(touched, s) {
			touched = append(touched, s)
		}
	}
	return c.persist(touched...)
}

// Update implements Manipulator.
func (AppendManipulator) Update(c *Container, i int, fn func(schema.Unit)) error {
	s, j, err := c.Locate(i)
	if err != nil {
		return err
	}
	fn(s.units[j])
	c.Reconcile(s.units[j])
	return c.persist(s)
}

// Remove implements Manipulator. Shards are never merged or deleted, even
// when they become empty.
func (AppendManipulator) Remove(c *Container, i int) error {
	s, j, err := c.Locate(i)
	if err != nil {
		return err
	}
	s.units = slices.Delete(s.units, j, j+1)
	return c.persist(s)
}
