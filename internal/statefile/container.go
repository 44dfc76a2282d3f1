package statefile

import (
	"cmp"
	"fmt"
	"log/slog"
	"path/filepath"
	"regexp"
	"slices"
	"strings"

	"github.com/maruel/sfdb/internal/codec"
	"github.com/maruel/sfdb/internal/fsys"
	"github.com/maruel/sfdb/internal/schema"
)

// DefaultLimit is the number of units a shard holds before rollover when no
// limit was ever set.
const DefaultLimit = 100

// Options configures a Container. The zero value is usable.
type Options struct {
	// Codec serializes shards. Defaults to codec.JSON.
	Codec codec.Codec
	// Limit is the rollover size used until one is recorded with SetLimit.
	// Defaults to DefaultLimit.
	Limit int
	// Passkey is set, hashed, on a newly created substate.
	Passkey string
	// Deferred creates a new substate with the simul flag off.
	Deferred bool

	Loader      Loader
	Saver       Saver
	Retriever   Retriever
	Manipulator Manipulator
}

// Container is the state file container of one substate.
type Container struct {
	layer   fsys.Layer
	base    string
	dir     string
	codec   codec.Codec
	pattern *regexp.Regexp

	meta     Meta
	unittype schema.Schema
	shards   []*Shard
	limit    int
	dirty    bool

	loader      Loader
	saver       Saver
	retriever   Retriever
	manipulator Manipulator
}

// New opens the substate stored under dir/substate.
//
// Existing shards are discovered and the newest one is loaded; its metadata
// and schema become the container's. A failure to load the newest shard is
// returned. When no shard exists, a first empty one is created and saved.
func New(layer fsys.Layer, dir, substate string, opts *Options) (*Container, error) {
	if substate == "" {
		return nil, errSubstateRequired
	}
	if strings.ContainsAny(substate, `/\`) || substate == "." || substate == ".." {
		return nil, fmt.Errorf("%w: %q", errSubstateInvalid, substate)
	}
	var o Options
	if opts != nil {
		o = *opts
	}
	if o.Codec == nil {
		o.Codec = codec.JSON
	}
	c := &Container{
		layer:       layer,
		base:        dir,
		dir:         filepath.Join(dir, substate),
		codec:       o.Codec,
		pattern:     shardPattern(substate, o.Codec.Ext()),
		meta:        Meta{Substate: substate, Crack: 1, Simul: !o.Deferred},
		limit:       cmp.Or(max(o.Limit, 0), DefaultLimit),
		loader:      o.Loader,
		saver:       o.Saver,
		retriever:   o.Retriever,
		manipulator: o.Manipulator,
	}
	if c.loader == nil {
		c.loader = &LazyLoader{}
	}
	if c.saver == nil {
		c.saver = &FileSaver{}
	}
	if c.retriever == nil {
		c.retriever = IndexRetriever{}
	}
	if c.manipulator == nil {
		c.manipulator = AppendManipulator{}
	}
	if err := c.discover(); err != nil {
		return nil, err
	}
	if len(c.shards) == 0 {
		if err := c.create(o.Passkey); err != nil {
			return nil, err
		}
		slog.Info("Created substate", "substate", substate, "dir", c.dir)
		return c, nil
	}
	if err := c.adopt(c.Newest()); err != nil {
		return nil, err
	}
	slog.Debug("Opened substate", "substate", substate, "shards", len(c.shards), "crack", c.meta.Crack)
	return c, nil
}

// adopt loads s as the newest shard and takes over its metadata. The shard
// schema is merged into the container's before its units are reconciled so
// fields added by another writer survive; units already in memory are
// reconciled to the merged schema.
func (c *Container) adopt(s *Shard) error {
	f, err := c.layer.Get(s.Path)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", s.Path, err)
	}
	head, err := c.ValidateShard(f.Content, s.Path)
	if err != nil {
		shardRejections(err).Inc()
		return fmt.Errorf("failed to load newest shard %s: %w", s.Path, err)
	}
	if !c.unittype.Equal(head.Unittype) {
		c.unittype = schema.Combine(c.unittype, head.Unittype)
		for _, o := range c.shards {
			for _, u := range o.units {
				c.Reconcile(u)
			}
		}
	}
	doc, err := c.loader.LoadCrack(c, s)
	if err != nil {
		return fmt.Errorf("failed to load newest shard %s: %w", s.Path, err)
	}
	c.meta = doc.Meta.Clone()
	if c.meta.Limit > 0 {
		c.limit = c.meta.Limit
	}
	return nil
}

// discover tracks every shard file of the substate, oldest first.
func (c *Container) discover() error {
	names, err := c.layer.ReadDir(c.dir)
	if err != nil {
		return fmt.Errorf("failed to list %s: %w", c.dir, err)
	}
	var found []*Shard
	for _, name := range names {
		if seq, ok := matchSeq(c.pattern, name); ok {
			found = append(found, &Shard{Path: filepath.Join(c.dir, name), Seq: seq})
		}
	}
	slices.SortStableFunc(found, func(a, b *Shard) int { return cmp.Compare(a.Seq, b.Seq) })
	for _, s := range found {
		if err := c.track(s.Path); err != nil {
			return err
		}
	}
	c.shards = found
	return nil
}

func (c *Container) track(p string) error {
	f, err := c.layer.Create(p)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", p, err)
	}
	c.layer.Add(p, f)
	return nil
}

// create initializes an empty substate and saves it regardless of the simul
// flag.
func (c *Container) create(passkey string) error {
	if _, err := c.Rollover(); err != nil {
		return err
	}
	c.unittype = schema.Schema{}
	if passkey != "" {
		h, err := hashPasskey(passkey)
		if err != nil {
			return err
		}
		c.meta.Passkey = h
	}
	return c.save()
}

// Substate returns the partition name.
func (c *Container) Substate() string {
	return c.meta.Substate
}

// Dir returns the directory holding the shard files.
func (c *Container) Dir() string {
	return c.dir
}

// Codec returns the shard serialization.
func (c *Container) Codec() codec.Codec {
	return c.codec
}

// Layer returns the file layer.
func (c *Container) Layer() fsys.Layer {
	return c.layer
}

// Shards returns the shards, oldest first. The slice is owned by the
// container.
func (c *Container) Shards() []*Shard {
	return c.shards
}

// ShardPath returns the path of the shard file with sequence number seq.
func (c *Container) ShardPath(seq int) string {
	return filepath.Join(c.dir, shardName(seq, c.meta.Substate, c.codec.Ext()))
}

// Newest returns the most recent shard.
func (c *Container) Newest() *Shard {
	if len(c.shards) == 0 {
		return nil
	}
	return c.shards[len(c.shards)-1]
}

// Dirty reports whether changes are waiting for a deferred save.
func (c *Container) Dirty() bool {
	return c.dirty
}

// Len returns the number of units currently in memory.
func (c *Container) Len() int {
	n := 0
	for _, s := range c.shards {
		n += s.Len()
	}
	return n
}

// Count loads every shard and returns the total number of units. Rejected
// shards are not counted.
func (c *Container) Count() (int, error) {
	n := 0
	err := c.loader.TmpLoadAll(c, func() error {
		n = c.Len()
		return nil
	})
	return n, err
}

// UnitType returns a copy of the current schema.
func (c *Container) UnitType() schema.Schema {
	return c.unittype.Clone()
}

// ExtendUnitType merges ext into the schema, reconciles every unit of every
// shard to the result and saves the container.
//
// Shards are loaded before the schema changes, so older shards are validated
// against the schema they were written for. When the save fails the schema
// and the units are left as they were.
func (c *Container) ExtendUnitType(ext schema.Schema) error {
	if err := ext.Validate(); err != nil {
		return fmt.Errorf("invalid schema extension: %w", err)
	}
	return c.loader.TmpLoadAll(c, func() error {
		prev := c.unittype
		backup := make(map[*Shard][]schema.Unit, len(c.shards))
		c.unittype = schema.Combine(c.unittype, ext)
		for _, s := range c.shards {
			if !s.Loaded() {
				continue
			}
			backup[s] = s.units
			units := make([]schema.Unit, len(s.units))
			for i, u := range s.units {
				units[i] = u.Clone()
				c.Reconcile(units[i])
			}
			s.units = units
		}
		if err := c.save(); err != nil {
			// Shards not yet rewritten still carry the previous schema.
			c.unittype = prev
			for s, units := range backup {
				s.units = units
			}
			return err
		}
		return nil
	})
}

// Reconcile conforms u to the current schema in place.
func (c *Container) Reconcile(u schema.Unit) {
	schema.Reconcile(u, c.unittype)
	unitsReconciled.Inc()
}

// Load makes sure s is in memory. It returns false when the shard was
// rejected; the rejection is logged and the shard stays unloaded.
func (c *Container) Load(s *Shard) (bool, error) {
	if s.Loaded() {
		return true, nil
	}
	if _, err := c.loader.LoadCrack(c, s); err != nil {
		if IsRejection(err) {
			slog.Warn("Skipping rejected shard", "path", s.Path, "err", err)
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// Rollover creates the shard following the newest one and makes it the
// newest. It fails with ErrSequenceRange past MaxSeq.
func (c *Container) Rollover() (*Shard, error) {
	next := 1
	if n := c.Newest(); n != nil {
		next = n.Seq + 1
	}
	if next > MaxSeq {
		return nil, fmt.Errorf("%w: %d", ErrSequenceRange, next)
	}
	p := c.ShardPath(next)
	if err := c.track(p); err != nil {
		return nil, err
	}
	s := &Shard{Path: p, Seq: next}
	s.SetUnits(nil)
	c.shards = append(c.shards, s)
	c.meta.Crack = next
	return s, nil
}

// Document returns the document to write for s, stamped with the current
// metadata and schema.
func (c *Container) Document(s *Shard) *Document {
	m := c.meta.Clone()
	m.Crack = s.Seq
	u := c.unittype
	if u == nil {
		u = schema.Schema{}
	}
	d := s.units
	if d == nil {
		d = []schema.Unit{}
	}
	return &Document{Meta: &m, Unittype: u, Data: d}
}

// WriteShard encodes s and writes it through the file layer.
func (c *Container) WriteShard(s *Shard) error {
	data, err := c.codec.Marshal(c.Document(s))
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", s.Path, err)
	}
	if err := c.layer.Write(s.Path, data); err != nil {
		shardWriteErrors.Inc()
		return fmt.Errorf("failed to write %s: %w", s.Path, err)
	}
	shardWrites.Inc()
	return nil
}

// Refresh tracks shards created by another writer since the container was
// opened. When a newer shard appeared it is loaded and its metadata adopted.
// It returns the number of shards added.
func (c *Container) Refresh() (int, error) {
	names, err := c.layer.ReadDir(c.dir)
	if err != nil {
		return 0, fmt.Errorf("failed to list %s: %w", c.dir, err)
	}
	known := make(map[int]bool, len(c.shards))
	for _, s := range c.shards {
		known[s.Seq] = true
	}
	prev := c.Newest()
	added := 0
	for _, name := range names {
		seq, ok := matchSeq(c.pattern, name)
		if !ok || known[seq] {
			continue
		}
		p := filepath.Join(c.dir, name)
		if err := c.track(p); err != nil {
			return added, err
		}
		c.shards = append(c.shards, &Shard{Path: p, Seq: seq})
		added++
	}
	if added == 0 {
		return 0, nil
	}
	slices.SortStableFunc(c.shards, func(a, b *Shard) int { return cmp.Compare(a.Seq, b.Seq) })
	if newest := c.Newest(); newest != prev {
		if err := c.adopt(newest); err != nil {
			c.shards = slices.DeleteFunc(c.shards, func(s *Shard) bool { return s == newest })
			return added - 1, err
		}
	}
	slog.Debug("Refreshed substate", "substate", c.meta.Substate, "added", added)
	return added, nil
}

// Flush saves the whole container.
func (c *Container) Flush() error {
	return c.save()
}

func (c *Container) save() error {
	if err := c.saver.Save(c); err != nil {
		return err
	}
	c.dirty = false
	return nil
}

// persist records a mutation of the touched shards, or of the metadata when
// none is given.
//
// With simul set, the touched shards (or the whole container) are written
// now; a failed write leaves the container dirty. Otherwise the container is
// marked dirty and a Deferrer saver may decide to save.
func (c *Container) persist(touched ...*Shard) error {
	if !c.meta.Simul {
		c.dirty = true
		d, ok := c.saver.(Deferrer)
		if !ok {
			return nil
		}
		saved, err := d.Defer(c)
		if saved && err == nil {
			c.dirty = false
		}
		return err
	}
	if len(touched) == 0 {
		if err := c.save(); err != nil {
			c.dirty = true
			return err
		}
		return nil
	}
	for _, s := range touched {
		i := slices.Index(c.shards, s)
		if i < 0 {
			continue
		}
		if err := c.saver.SaveCrack(c, i); err != nil {
			c.dirty = true
			return err
		}
	}
	return nil
}

// At returns a copy of the unit at global index i, counting from the oldest
// shard.
func (c *Container) At(i int) (schema.Unit, error) {
	return c.retriever.At(c, i)
}

// Find returns copies of the units matching pred, oldest first.
func (c *Container) Find(pred func(schema.Unit) bool) ([]schema.Unit, error) {
	return c.retriever.Find(c, pred)
}

// Push appends units, reconciled to the schema.
func (c *Container) Push(units ...schema.Unit) error {
	if len(units) == 0 {
		return nil
	}
	return c.manipulator.Push(c, units...)
}

// Update calls fn on the unit at global index i and reconciles the result.
func (c *Container) Update(i int, fn func(schema.Unit)) error {
	return c.manipulator.Update(c, i, fn)
}

// Remove deletes the unit at global index i.
func (c *Container) Remove(i int) error {
	return c.manipulator.Remove(c, i)
}

// Locate returns the shard holding global index i and the index within it,
// loading shards as needed.
func (c *Container) Locate(i int) (*Shard, int, error) {
	if i < 0 {
		return nil, 0, fmt.Errorf("%w: %d", ErrIndexOutOfRange, i)
	}
	j := i
	for _, s := range c.shards {
		ok, err := c.Load(s)
		if err != nil {
			return nil, 0, err
		}
		if !ok {
			continue
		}
		if j < s.Len() {
			return s, j, nil
		}
		j -= s.Len()
	}
	return nil, 0, fmt.Errorf("%w: %d", ErrIndexOutOfRange, i)
}
