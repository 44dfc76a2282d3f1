// Pluggable collaborators of a Container.

package statefile

import "github.com/maruel/sfdb/internal/schema"

// Loader brings shards into memory.
type Loader interface {
	// LoadCrack reads s, validates it with Container.ValidateShard and sets
	// its units, reconciled to the container schema. It returns the
	// validated document; the container adopts its metadata when s is the
	// newest shard.
	LoadCrack(c *Container, s *Shard) (*Document, error)
	// TmpLoadAll loads every shard for the duration of fn. Shards that are
	// rejected stay unloaded. Shards loaded only for fn may be released
	// afterward.
	TmpLoadAll(c *Container, fn func() error) error
}

// Saver persists a container.
type Saver interface {
	// Save writes the metadata, schema and every loaded shard.
	Save(c *Container) error
	// SaveCrack writes only the shard at position i of Container.Shards.
	SaveCrack(c *Container, i int) error
}

// Deferrer is implemented by savers that decide themselves when a dirty
// container with the simul flag off gets saved.
type Deferrer interface {
	// Defer is called after each deferred mutation. It reports whether the
	// container was saved.
	Defer(c *Container) (bool, error)
}

// Retriever reads units. Returned units are copies.
type Retriever interface {
	At(c *Container, i int) (schema.Unit, error)
	Find(c *Container, pred func(schema.Unit) bool) ([]schema.Unit, error)
}

// Manipulator mutates units. Every unit it stores must be reconciled to the
// container schema.
type Manipulator interface {
	Push(c *Container, units ...schema.Unit) error
	Update(c *Container, i int, fn func(schema.Unit)) error
	Remove(c *Container, i int) error
}
