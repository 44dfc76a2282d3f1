// Package history versions a data directory with git so every persisted
// shard write can be inspected and recovered later.
//
// It uses go-git, so no git binary is needed.
package history

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	gogit "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
)

// maxHistory caps the number of commits returned by Log.
const maxHistory = 1000

// Commit is one entry of the history.
type Commit struct {
	Hash       string    `json:"hash"`
	Message    string    `json:"message"` // Subject line.
	Body       string    `json:"body"`
	Author     string    `json:"author"`
	AuthorDate time.Time `json:"author_date"`
}

// Repo is a git repository rooted at a data directory.
type Repo struct {
	dir   string
	name  string
	email string

	mu   sync.Mutex
	repo *gogit.Repository
}

// Open opens the repository at dir, initializing it when needed.
//
// name and email identify the committer; they default to "sfdb" and
// "sfdb@localhost".
func Open(dir, name, email string) (*Repo, error) {
	if name == "" {
		name = "sfdb"
	}
	if email == "" {
		email = "sfdb@localhost"
	}
	if err := os.MkdirAll(dir, 0o755); err != nil { //nolint:gosec // G301: 0o755 is intentional for data directories
		return nil, fmt.Errorf("failed to create repo directory: %w", err)
	}
	repo, err := gogit.PlainOpen(dir)
	if err != nil {
		repo, err = gogit.PlainInit(dir, false)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize git repo: %w", err)
		}
		cfg, err := repo.Config()
		if err != nil {
			return nil, fmt.Errorf("failed to read git config: %w", err)
		}
		cfg.User.Name = name
		cfg.User.Email = email
		if err := repo.SetConfig(cfg); err != nil {
			return nil, fmt.Errorf("failed to write git config: %w", err)
		}
	}
	return &Repo{dir: dir, name: name, email: email, repo: repo}, nil
}

// Dir returns the repository root.
func (r *Repo) Dir() string {
	return r.dir
}

// Commit stages files and commits them with msg.
//
// files are filesystem paths inside the repository. Nothing is committed
// when the staged files did not change.
func (r *Repo) Commit(_ context.Context, msg string, files []string) error {
	if len(files) == 0 {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	w, err := r.repo.Worktree()
	if err != nil {
		return fmt.Errorf("failed to get worktree: %w", err)
	}
	for _, f := range files {
		rel, err := r.rel(f)
		if err != nil {
			return err
		}
		if _, err := w.Add(rel); err != nil {
			return fmt.Errorf("failed to stage %s: %w", rel, err)
		}
	}
	status, err := w.Status()
	if err != nil {
		return fmt.Errorf("failed to get worktree status: %w", err)
	}
	if !hasStaged(status) {
		return nil
	}
	sig := &object.Signature{Name: r.name, Email: r.email, When: time.Now()}
	if _, err := w.Commit(msg, &gogit.CommitOptions{Author: sig, Committer: sig}); err != nil {
		return fmt.Errorf("failed to commit: %w", err)
	}
	return nil
}

// Log returns the commits touching path, newest first, at most n of them.
// An empty path lists every commit. n <= 0 or above 1000 means 1000.
func (r *Repo) Log(_ context.Context, path string, n int) ([]*Commit, error) {
	if n <= 0 || n > maxHistory {
		n = maxHistory
	}
	opts := &gogit.LogOptions{}
	if path != "" && path != "." {
		rel, err := r.rel(path)
		if err != nil {
			return nil, err
		}
		opts.FileName = &rel
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	iter, err := r.repo.Log(opts)
	if err != nil {
		if errors.Is(err, plumbing.ErrReferenceNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read log: %w", err)
	}
	defer iter.Close()

	var commits []*Commit
	for range n {
		c, err := iter.Next()
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, fmt.Errorf("failed to read log: %w", err)
		}
		subject, body, _ := strings.Cut(c.Message, "\n")
		commits = append(commits, &Commit{
			Hash:       c.Hash.String(),
			Message:    subject,
			Body:       strings.TrimSpace(body),
			Author:     c.Author.Name,
			AuthorDate: c.Author.When,
		})
	}
	return commits, nil
}

// FileAt returns the content of path at commit hash. "HEAD" is accepted.
func (r *Repo) FileAt(_ context.Context, hash, path string) ([]byte, error) {
	rel, err := r.rel(path)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	h := plumbing.NewHash(hash)
	if hash == "HEAD" {
		ref, err := r.repo.Head()
		if err != nil {
			return nil, fmt.Errorf("failed to resolve HEAD: %w", err)
		}
		h = ref.Hash()
	}
	c, err := r.repo.CommitObject(h)
	if err != nil {
		return nil, fmt.Errorf("failed to get commit: %w", err)
	}
	f, err := c.File(rel)
	if err != nil {
		return nil, fmt.Errorf("failed to get file at commit: %w", err)
	}
	reader, err := f.Reader()
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer func() { _ = reader.Close() }()
	return io.ReadAll(reader)
}

// hasStaged ignores untracked files, which other substates may leave around.
func hasStaged(status gogit.Status) bool {
	for _, s := range status {
		if s.Staging != gogit.Unmodified && s.Staging != gogit.Untracked {
			return true
		}
	}
	return false
}

// rel returns the filesystem path p relative to the repository root, slash
// separated.
func (r *Repo) rel(p string) (string, error) {
	root, err := filepath.Abs(r.dir)
	if err != nil {
		return "", err
	}
	abs, err := filepath.Abs(p)
	if err != nil {
		return "", err
	}
	rel, err := filepath.Rel(root, abs)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%s is outside of %s", p, r.dir)
	}
	return filepath.ToSlash(rel), nil
}
