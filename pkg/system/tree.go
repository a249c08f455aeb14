// pkg/system/tree.go
package system

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/arc-language/aspkg/pkg/core"
)

// CreateDirectoryTree lays out the base directories of a new basedir and
// links bin, sbin, lib and lib64 into usr. Existing entries are left alone.
func (m *Manager) CreateDirectoryTree(ctx context.Context) (*core.Result, error) {
	res := core.NewResult("dir-tree", "")

	if err := os.MkdirAll(m.basedir, 0755); err != nil {
		return res, core.NewError("dir-tree", "", fmt.Errorf("%w: %v", core.ErrIOError, err))
	}

	unlock, err := m.lock(ctx)
	if err != nil {
		return res, err
	}
	defer unlock()

	m.logger.Printf("Creating directory tree in %s", m.basedir)
	for _, d := range baseTree {
		p := filepath.Join(m.basedir, filepath.FromSlash(d))
		if err := os.MkdirAll(p, 0755); err != nil {
			res.Warn("mkdir", "/"+d, err)
		}
	}

	for _, link := range treeLinks {
		name, target := link[0], link[1]
		p := filepath.Join(m.basedir, name)
		if _, err := os.Lstat(p); err == nil {
			continue
		} else if !errors.Is(err, os.ErrNotExist) {
			res.Warn("symlink", "/"+name, err)
			continue
		}
		if err := os.Symlink(target, p); err != nil {
			res.Warn("symlink", "/"+name, err)
			continue
		}
		m.logger.Printf("  ✓ /%s -> %s", name, target)
	}

	if err := m.registry.Init(); err != nil {
		res.Warn("registry", "", err)
	}
	if n := len(res.Warnings); n > 0 {
		m.logger.Printf("  ⚠️  Warning: %d entries could not be created", n)
	}
	return res, nil
}
