package statefile

import (
	"fmt"
	"log/slog"
)

// LazyLoader reads shards from the file layer on demand.
//
// Shards stay loaded once LoadCrack returned. TmpLoadAll releases the shards
// it loaded unless Keep is set.
type LazyLoader struct {
	// Keep leaves the shards loaded by TmpLoadAll in memory.
	Keep bool
}

// LoadCrack implements Loader.
func (l *LazyLoader) LoadCrack(c *Container, s *Shard) (*Document, error) {
	f, err := c.Layer().Get(s.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", s.Path, err)
	}
	doc, err := c.ValidateShard(f.Content, s.Path)
	if err != nil {
		shardRejections(err).Inc()
		return nil, err
	}
	for _, u := range doc.Data {
		c.Reconcile(u)
	}
	s.SetUnits(doc.Data)
	shardLoads.Inc()
	return doc, nil
}

// TmpLoadAll implements Loader.
func (l *LazyLoader) TmpLoadAll(c *Container, fn func() error) error {
	var tmp []*Shard
	defer func() {
		for _, s := range tmp {
			s.Release()
		}
	}()
	for _, s := range c.Shards() {
		if s.Loaded() {
			continue
		}
		if _, err := l.LoadCrack(c, s); err != nil {
			if IsRejection(err) {
				slog.Warn("Skipping rejected shard", "path", s.Path, "err", err)
				continue
			}
			return err
		}
		if !l.Keep {
			tmp = append(tmp, s)
		}
	}
	return fn()
}
