package statefile

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/fsnotify/fsnotify"

	"github.com/maruel/sfdb/internal/codec"
)

// Op is the kind of change to a shard file.
type Op int

const (
	// OpCreated is a new shard file, including one moved into place.
	OpCreated Op = iota + 1
	// OpWritten is a write to an existing shard file.
	OpWritten
	// OpRemoved is a shard file removed or moved away.
	OpRemoved
)

func (o Op) String() string {
	switch o {
	case OpCreated:
		return "created"
	case OpWritten:
		return "written"
	case OpRemoved:
		return "removed"
	default:
		return fmt.Sprintf("Op(%d)", int(o))
	}
}

// Event is a change to a shard file of a substate.
type Event struct {
	Op   Op
	Path string
	Seq  int
}

// Watch reports changes to the shard files of dir/substate until ctx is
// done. Files that are not shards of the substate, like temporary files of an
// atomic write, are ignored. The directory must exist.
func Watch(ctx context.Context, dir, substate string, cd codec.Codec) (<-chan Event, error) {
	if cd == nil {
		cd = codec.JSON
	}
	sub := filepath.Join(dir, substate)
	re := shardPattern(substate, cd.Ext())
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}
	if err := w.Add(sub); err != nil {
		_ = w.Close()
		return nil, fmt.Errorf("failed to watch %s: %w", sub, err)
	}
	ch := make(chan Event, 16)
	go func() {
		defer close(ch)
		defer func() { _ = w.Close() }()
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-w.Events:
				if !ok {
					return
				}
				seq, ok := matchSeq(re, filepath.Base(event.Name))
				if !ok {
					continue
				}
				var op Op
				switch {
				case event.Has(fsnotify.Create):
					op = OpCreated
				case event.Has(fsnotify.Write):
					op = OpWritten
				case event.Has(fsnotify.Remove), event.Has(fsnotify.Rename):
					op = OpRemoved
				default:
					continue
				}
				select {
				case ch <- Event{Op: op, Path: event.Name, Seq: seq}:
				case <-ctx.Done():
					return
				}
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				slog.WarnContext(ctx, "Error watching substate", "dir", sub, "err", err)
			}
		}
	}()
	return ch, nil
}

// Watch reports changes to the container's shard files. Call Refresh to pick
// up shards created by another writer.
func (c *Container) Watch(ctx context.Context) (<-chan Event, error) {
	return Watch(ctx, c.base, c.meta.Substate, c.codec)
}
