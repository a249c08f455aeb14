// pkg/system/garbage.go
package system

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/arc-language/aspkg/pkg/asp"
	"github.com/arc-language/aspkg/pkg/aspname"
	"github.com/arc-language/aspkg/pkg/core"
)

// OrphanFiles lists files under basedir that no installed ASP owns
func (m *Manager) OrphanFiles(ctx context.Context, opts *OrphanOptions) ([]string, *core.Result, error) {
	if opts == nil {
		opts = &OrphanOptions{}
	}
	start := time.Now()
	res := core.NewResult("orphans", "")

	m.logger.Printf("Step 1: Collecting candidate files...")
	candidates, err := m.orphanCandidates(ctx, opts.LibOnly, res)
	if err != nil {
		return nil, res, err
	}
	m.logger.Printf("  ✓ %d candidates", len(candidates))

	m.logger.Printf("Step 2: Loading file lists...")
	lists, err := m.registry.AllFileLists()
	if err != nil {
		return nil, res, core.NewError("orphans", "", err)
	}
	owned := make(map[string]struct{})
	for _, files := range lists {
		for _, p := range m.canonical(files) {
			owned[p] = struct{}{}
		}
		for _, p := range files {
			owned[p] = struct{}{}
		}
	}

	m.logger.Printf("Step 3: Matching...")
	var orphans []string
	var size int64
	total := len(candidates)
	for i, p := range candidates {
		if err := ctx.Err(); err != nil {
			return nil, res, err
		}
		if _, ok := owned[p]; !ok {
			orphans = append(orphans, p)
			if info, err := os.Lstat(m.resolve(p)); err == nil && info.Mode().IsRegular() {
				size += info.Size()
			}
		}
		if opts.Progress != nil {
			opts.Progress(Progress{
				Index:   i + 1,
				Total:   total,
				Percent: float64(i+1) / float64(total) * 100,
				Bytes:   size,
				Path:    p,
			})
		}
	}

	sort.Strings(orphans)
	m.metrics.orphans.Set(float64(len(orphans)))
	m.metrics.observe("orphans", start, len(res.Warnings), nil)
	m.logger.Printf("  ✓ %d orphaned files (%d bytes)", len(orphans), size)
	return orphans, res, nil
}

// orphanCandidates walks basedir and returns rooted non-directory paths.
// Symlinks to directories are neither candidates nor descended into.
func (m *Manager) orphanCandidates(ctx context.Context, libOnly bool, res *core.Result) ([]string, error) {
	reserved := toSet(ReservedDirs)

	root := m.basedir
	if libOnly {
		root = filepath.Join(m.basedir, filepath.FromSlash(LibDir))
	}

	var out []string
	err := filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			if p == root {
				return err
			}
			res.Warn("walk", m.rooted(p), err)
			if d != nil && d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		if d.IsDir() {
			if p == root {
				return nil
			}
			if libOnly {
				return fs.SkipDir
			}
			rel, _ := filepath.Rel(m.basedir, p)
			if _, ok := reserved[rel]; ok {
				return fs.SkipDir
			}
			return nil
		}

		if d.Type()&fs.ModeSymlink != 0 {
			if info, err := os.Stat(p); err == nil && info.IsDir() {
				return nil
			}
		}

		out = append(out, m.rooted(p))
		return nil
	})
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) && libOnly {
			return nil, nil
		}
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, err
		}
		return nil, core.NewError("orphans", "", err)
	}
	return out, nil
}

// StalePackages returns installed ASPs built more than age before now
func (m *Manager) StalePackages(age time.Duration, now time.Time) ([]string, *core.Result) {
	res := core.NewResult("stale", "")

	names, err := m.registry.InstalledNames()
	if err != nil {
		res.Warn("stale", "", err)
		return nil, res
	}

	var stale []string
	for _, n := range names {
		parsed, err := aspname.Parse(n)
		if err != nil {
			res.Warn("parse", n, err)
			continue
		}
		if parsed.IsOlderThan(age, now) {
			stale = append(stale, n)
		}
	}
	return stale, res
}

// MissingFiles reports registry entries whose path is gone from basedir
func (m *Manager) MissingFiles(ctx context.Context) (map[string][]string, *core.Result, error) {
	res := core.NewResult("missing-files", "")

	lists, err := m.registry.AllFileLists()
	if err != nil {
		return nil, res, core.NewError("missing-files", "", err)
	}

	missing := make(map[string][]string)
	for _, name := range sortedKeys(lists) {
		for _, p := range lists[name] {
			if err := ctx.Err(); err != nil {
				return missing, res, err
			}
			if _, err := os.Lstat(m.resolve(p)); err != nil {
				if !errors.Is(err, os.ErrNotExist) {
					res.Warn("stat", p, err)
					continue
				}
				missing[name] = append(missing[name], p)
			}
		}
	}
	return missing, res, nil
}

// BrokenFiles reports files whose sha512 differs from the recorded sum.
// Missing files and ASPs without sums are not reported here.
func (m *Manager) BrokenFiles(ctx context.Context) (map[string][]string, *core.Result, error) {
	res := core.NewResult("broken", "")

	names, err := m.registry.InstalledNames()
	if err != nil {
		return nil, res, core.NewError("broken", "", err)
	}

	broken := make(map[string][]string)
	for _, name := range names {
		sums, err := m.registry.Checksums(name)
		if err != nil {
			if !errors.Is(err, core.ErrUnknownPackage) {
				res.Warn("sums", name, err)
			}
			continue
		}

		for _, p := range sortedKeys(sums) {
			if err := ctx.Err(); err != nil {
				return broken, res, err
			}
			abs := m.resolve(p)
			info, err := os.Lstat(abs)
			if err != nil || !info.Mode().IsRegular() {
				continue
			}
			sum, err := asp.HashFile(abs)
			if err != nil {
				res.Warn("hash", p, err)
				continue
			}
			if !strings.EqualFold(sum, sums[p]) {
				broken[name] = append(broken[name], p)
			}
		}
	}
	return broken, res, nil
}

// DuplicatePackages maps package names to their installed ASPs when more
// than one is installed
func (m *Manager) DuplicatePackages() (map[string][]string, error) {
	groups, _, err := m.aspsOf()
	if err != nil {
		return nil, err
	}
	dups := make(map[string][]string)
	for name, asps := range groups {
		if len(asps) < 2 {
			continue
		}
		for _, a := range asps {
			dups[name] = append(dups[name], a.ASPName())
		}
	}
	return dups, nil
}

// SharedPaths maps paths claimed by more than one ASP to their owners
func (m *Manager) SharedPaths() (map[string][]string, error) {
	lists, err := m.registry.AllFileLists()
	if err != nil {
		return nil, err
	}
	owners := make(map[string][]string)
	for _, name := range sortedKeys(lists) {
		for _, p := range lists[name] {
			owners[p] = append(owners[p], name)
		}
	}
	for p, o := range owners {
		if len(o) < 2 {
			delete(owners, p)
		}
	}
	return owners, nil
}
