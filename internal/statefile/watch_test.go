package statefile

import (
	"testing"
	"time"

	"github.com/maruel/sfdb/internal/fsys"
	"github.com/maruel/sfdb/internal/history"
	"github.com/maruel/sfdb/internal/schema"
)

func TestWatch(t *testing.T) {
	dir := t.TempDir()
	c, err := New(fsys.NewDisk(), dir, "orders", &Options{Limit: 1})
	if err != nil {
		t.Fatal(err)
	}
	ch, err := c.Watch(t.Context())
	if err != nil {
		t.Fatalf("Watch failed: %v", err)
	}
	if err := c.Push(schema.Unit{}, schema.Unit{}); err != nil {
		t.Fatal(err)
	}
	timeout := time.After(10 * time.Second)
	for {
		select {
		case ev, ok := <-ch:
			if !ok {
				t.Fatal("watch channel closed")
			}
			if ev.Seq == 2 && ev.Op != OpRemoved {
				return
			}
		case <-timeout:
			t.Fatal("no event for the new shard")
		}
	}
}

func TestFileSaverHistory(t *testing.T) {
	dir := t.TempDir()
	repo, err := history.Open(dir, "", "")
	if err != nil {
		t.Fatal(err)
	}
	c, err := New(fsys.NewDisk(), dir, "orders", &Options{Saver: &FileSaver{History: repo}})
	if err != nil {
		t.Fatal(err)
	}
	if err := c.Push(schema.Unit{}); err != nil {
		t.Fatal(err)
	}
	commits, err := repo.Log(t.Context(), c.Newest().Path, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(commits) != 2 {
		t.Fatalf("Log returned %d commits, want 2", len(commits))
	}
	if commits[0].Message != "sfdb: save orders [1]" {
		t.Errorf("commit message = %q", commits[0].Message)
	}
	old, err := repo.FileAt(t.Context(), commits[1].Hash, c.Newest().Path)
	if err != nil {
		t.Fatal(err)
	}
	doc, err := c.ValidateShard(old, c.Newest().Path)
	if err != nil || len(doc.Data) != 0 {
		t.Errorf("first commit = %v, %v; want an empty shard", doc, err)
	}
}
