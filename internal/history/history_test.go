package history

import (
	"os"
	"path/filepath"
	"testing"
)

func TestRepo(t *testing.T) {
	t.Run("Open initializes", func(t *testing.T) {
		dir := t.TempDir()
		if _, err := Open(dir, "", ""); err != nil {
			t.Fatalf("Open failed: %v", err)
		}
		if _, err := os.Stat(filepath.Join(dir, ".git")); err != nil {
			t.Errorf(".git not created: %v", err)
		}
		// Reopening an existing repository works.
		if _, err := Open(dir, "", ""); err != nil {
			t.Fatalf("second Open failed: %v", err)
		}
	})

	t.Run("Log empty", func(t *testing.T) {
		r, err := Open(t.TempDir(), "", "")
		if err != nil {
			t.Fatal(err)
		}
		commits, err := r.Log(t.Context(), "", 0)
		if err != nil || len(commits) != 0 {
			t.Errorf("Log on empty repo = %v, %v; want empty, nil", commits, err)
		}
	})

	t.Run("Commit, Log and FileAt", func(t *testing.T) {
		dir := t.TempDir()
		ctx := t.Context()
		r, err := Open(dir, "Tester", "t@example.com")
		if err != nil {
			t.Fatal(err)
		}
		p := filepath.Join(dir, "orders", "sf.1.orders.json")
		if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
			t.Fatal(err)
		}
		for _, content := range []string{"v1", "v2", "v2"} {
			if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
				t.Fatal(err)
			}
			if err := r.Commit(ctx, "save "+content+"\n\ndetails", []string{p}); err != nil {
				t.Fatalf("Commit failed: %v", err)
			}
		}
		commits, err := r.Log(ctx, p, 10)
		if err != nil {
			t.Fatalf("Log failed: %v", err)
		}
		// The third commit had no change and was skipped.
		if len(commits) != 2 {
			t.Fatalf("Log returned %d commits, want 2", len(commits))
		}
		if commits[0].Message != "save v2" || commits[0].Body != "details" || commits[0].Author != "Tester" {
			t.Errorf("newest commit = %+v", commits[0])
		}
		old, err := r.FileAt(ctx, commits[1].Hash, p)
		if err != nil {
			t.Fatalf("FileAt failed: %v", err)
		}
		if string(old) != "v1" {
			t.Errorf("FileAt(old) = %q, want v1", old)
		}
		head, err := r.FileAt(ctx, "HEAD", p)
		if err != nil || string(head) != "v2" {
			t.Errorf("FileAt(HEAD) = %q, %v; want v2", head, err)
		}
	})

	t.Run("outside paths rejected", func(t *testing.T) {
		r, err := Open(t.TempDir(), "", "")
		if err != nil {
			t.Fatal(err)
		}
		outside := filepath.Join(t.TempDir(), "x")
		if err := r.Commit(t.Context(), "m", []string{outside}); err == nil {
			t.Error("Commit outside the repository succeeded")
		}
	})
}
