package statefile

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/time/rate"
)

// Committer records written files, typically in a version history.
type Committer interface {
	Commit(ctx context.Context, msg string, files []string) error
}

// FileSaver writes shards through the container's file layer.
type FileSaver struct {
	// History, when set, gets a commit for every save. A failed commit is
	// logged; the files are already written.
	History Committer
}

// Save implements Saver. Every loaded shard is written; unloaded shards are
// unchanged on disk.
func (f *FileSaver) Save(c *Container) error {
	var errs []error
	var written []*Shard
	for _, s := range c.Shards() {
		if !s.Loaded() {
			continue
		}
		if err := c.WriteShard(s); err != nil {
			errs = append(errs, err)
			continue
		}
		written = append(written, s)
	}
	f.commit(c, written)
	return errors.Join(errs...)
}

// SaveCrack implements Saver.
func (f *FileSaver) SaveCrack(c *Container, i int) error {
	shards := c.Shards()
	if i < 0 || i >= len(shards) {
		return fmt.Errorf("%w: shard %d", ErrIndexOutOfRange, i)
	}
	s := shards[i]
	if !s.Loaded() {
		return fmt.Errorf("shard %s is not loaded", s.Path)
	}
	if err := c.WriteShard(s); err != nil {
		return err
	}
	f.commit(c, []*Shard{s})
	return nil
}

func (f *FileSaver) commit(c *Container, shards []*Shard) {
	if f.History == nil || len(shards) == 0 {
		return
	}
	files := make([]string, 0, len(shards))
	seqs := make([]int, 0, len(shards))
	for _, s := range shards {
		files = append(files, s.Path)
		seqs = append(seqs, s.Seq)
	}
	msg := fmt.Sprintf("sfdb: save %s %v", c.Substate(), seqs)
	if err := f.History.Commit(context.Background(), msg, files); err != nil {
		slog.Error("Failed to commit shard history", "substate", c.Substate(), "err", err)
	}
}

// BatchSaver saves deferred changes at most at a given rate.
//
// With the simul flag off, the first mutation is saved right away and the
// ones following within the interval only leave the container dirty. Call
// Container.Flush to save what is left.
type BatchSaver struct {
	inner   Saver
	limiter *rate.Limiter
}

// NewBatchSaver wraps inner, saving at most burst times per every. A nil
// inner means a FileSaver without history.
func NewBatchSaver(inner Saver, every time.Duration, burst int) *BatchSaver {
	if inner == nil {
		inner = &FileSaver{}
	}
	return &BatchSaver{inner: inner, limiter: rate.NewLimiter(rate.Every(every), max(burst, 1))}
}

// Save implements Saver.
func (b *BatchSaver) Save(c *Container) error {
	return b.inner.Save(c)
}

// SaveCrack implements Saver.
func (b *BatchSaver) SaveCrack(c *Container, i int) error {
	return b.inner.SaveCrack(c, i)
}

// Defer implements Deferrer.
func (b *BatchSaver) Defer(c *Container) (bool, error) {
	if !b.limiter.Allow() {
		deferredSaves.Inc()
		return false, nil
	}
	return true, b.inner.Save(c)
}
