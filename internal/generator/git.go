package generator

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/util"
	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/storage/memory"

	"integctl/internal/spec"
	"integctl/pkg/logging"
)

// Cloner checks out a git source into the root of fs.
type Cloner interface {
	Clone(ctx context.Context, fs billy.Filesystem, src spec.GitSource) error
}

// GitCloner clones with go-git. Repository metadata is kept in memory, so
// only the checked out files land in fs.
type GitCloner struct{}

// Clone implements Cloner with a shallow single-branch clone.
func (GitCloner) Clone(ctx context.Context, fs billy.Filesystem, src spec.GitSource) error {
	opts := &git.CloneOptions{
		URL:          src.Repository,
		Depth:        1,
		SingleBranch: true,
	}
	if src.Branch != "" {
		opts.ReferenceName = plumbing.NewBranchReferenceName(src.Branch)
	}
	if _, err := git.CloneContext(ctx, memory.NewStorage(), fs, opts); err != nil {
		return fmt.Errorf("failed to clone %s: %w", src.Repository, err)
	}
	return nil
}

// scaffoldWithGit clones the spec's repository and takes the project from
// its root or the configured subdirectory.
func (g *Generator) scaffoldWithGit(ctx context.Context, s spec.ApplicationSpec) error {
	src := *s.Git
	staging := s.Name + "-clone"
	if err := util.RemoveAll(g.fs, staging); err != nil {
		return err
	}
	defer func() {
		if err := util.RemoveAll(g.fs, staging); err != nil {
			logging.Warn("Generator", "Failed to remove clone directory %s: %v", staging, err)
		}
	}()

	checkout, err := g.fs.Chroot(staging)
	if err != nil {
		return err
	}
	logging.Info("Generator", "Cloning %s for %s", src.Repository, s.Name)
	if err := g.cloner.Clone(ctx, checkout, src); err != nil {
		return err
	}

	root := staging
	if src.Subdirectory != "" {
		root = g.fs.Join(staging, filepath.ToSlash(src.Subdirectory))
	}
	if info, err := g.fs.Stat(root); err != nil || !info.IsDir() {
		return fmt.Errorf("directory %q not found in %s", src.Subdirectory, src.Repository)
	}
	return copyTree(g.fs, root, s.Name)
}

// copyTree copies the files below from to to, keeping executable bits.
func copyTree(fs billy.Filesystem, from, to string) error {
	return util.Walk(fs, from, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(from, path)
		if err != nil {
			return err
		}
		target := fs.Join(to, filepath.ToSlash(rel))
		if info.IsDir() {
			return fs.MkdirAll(target, 0755)
		}

		data, err := util.ReadFile(fs, path)
		if err != nil {
			return err
		}
		mode := os.FileMode(0644)
		if info.Mode()&0111 != 0 {
			mode = 0755
		}
		return util.WriteFile(fs, target, data, mode)
	})
}
