// pkg/system/remove.go
package system

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/arc-language/aspkg/pkg/aspname"
	"github.com/arc-language/aspkg/pkg/core"
)

// Remove deletes the files of an installed ASP and drops its registration.
// Shared objects stay on disk and are reported in Retained.
func (m *Manager) Remove(ctx context.Context, aspName string, opts *RemoveOptions) (*RemoveResult, error) {
	if opts == nil {
		opts = &RemoveOptions{}
	}
	start := time.Now()
	aspName = aspname.Normalize(aspName)

	if !m.registry.IsInstalled(aspName) {
		err := core.NewError("remove", aspName, core.ErrUnknownPackage)
		m.metrics.observe("remove", start, 0, err)
		return &RemoveResult{Result: core.NewResult("remove", aspName)}, err
	}

	unlock, err := m.lock(ctx)
	if err != nil {
		m.metrics.observe("remove", start, 0, err)
		return &RemoveResult{Result: core.NewResult("remove", aspName)}, err
	}
	defer unlock()

	res, err := m.remove(ctx, aspName, opts)
	m.metrics.observe("remove", start, len(res.Warnings), err)
	m.updateInstalledGauge()
	return res, err
}

// remove does the work of Remove; the caller holds the lock
func (m *Manager) remove(ctx context.Context, aspName string, opts *RemoveOptions) (*RemoveResult, error) {
	res := &RemoveResult{Result: core.NewResult("remove", aspName)}

	m.logger.Printf("Removing package: %s", aspName)

	files, err := m.registry.FileList(aspName)
	if err != nil {
		return res, core.NewError("remove", aspName, err)
	}

	var partial bool
	if opts.MetadataOnly {
		m.logger.Printf("Step 1: Leaving %d files in place (metadata only)", len(files))
	} else {
		m.logger.Printf("Step 1: Removing %d listed paths...", len(files))
		partial, err = m.removeFiles(ctx, files, opts.Exclude, res)
		if err != nil {
			return res, core.NewError("remove", aspName, err)
		}
	}

	m.logger.Printf("Step 2: Removing registry entries...")
	if err := m.registry.DeleteAll(aspName); err != nil {
		return res, core.NewError("remove", aspName, fmt.Errorf("%w: %v", core.ErrIOError, err))
	}
	m.logger.Printf("  ✓ Registration of %s removed", aspName)

	if partial {
		return res, core.NewError("remove", aspName, core.ErrPartialRemoval)
	}
	return res, nil
}

// removeFiles deletes the canonical forms of files, skipping exclude,
// shared objects and links to shared objects. It reports whether any
// deletion failed.
func (m *Manager) removeFiles(ctx context.Context, files, exclude []string, res *RemoveResult) (bool, error) {
	excluded := toSet(m.canonical(exclude))

	var targets []string
	seen := make(map[string]struct{})
	for _, p := range m.canonical(files) {
		if _, dup := seen[p]; dup {
			continue
		}
		seen[p] = struct{}{}
		if _, ok := excluded[p]; ok {
			res.Excluded++
			continue
		}
		targets = append(targets, p)
	}
	if res.Excluded > 0 {
		m.logger.Printf("  Skipping %d paths still owned by another package", res.Excluded)
	}

	// Shared objects may still be loaded by other packages. A link is
	// classified by what it points to, so soname links stay with their
	// library. Files that cannot be classified are kept too.
	kept := targets[:0]
	for _, p := range targets {
		so, err := m.scanner.IsSharedObject(m.follow(p))
		if err != nil && !errors.Is(err, os.ErrNotExist) {
			res.Warn("elf", p, err)
			so = true
		}
		if so {
			res.Retained = append(res.Retained, p)
			m.logger.Printf("  ⚠️  Warning: keeping shared object %s", p)
			continue
		}
		kept = append(kept, p)
	}
	targets = kept
	m.metrics.retainedSOs.Add(float64(len(res.Retained)))

	// Deepest first, so directories are empty when reached
	sort.Sort(sort.Reverse(sort.StringSlice(targets)))

	partial := false
	for _, p := range targets {
		if err := ctx.Err(); err != nil {
			return partial, err
		}

		abs := m.resolve(p)
		info, err := os.Lstat(abs)
		if err != nil {
			if !errors.Is(err, os.ErrNotExist) {
				res.Warn("stat", p, err)
				partial = true
			}
			continue
		}

		if info.IsDir() {
			// non-empty directories are still in use
			if err := os.Remove(abs); err == nil {
				res.Removed = append(res.Removed, p)
			}
			continue
		}

		if err := os.Remove(abs); err != nil {
			res.Warn("unlink", p, err)
			partial = true
			continue
		}
		res.Removed = append(res.Removed, p)
	}

	m.metrics.filesRemoved.Add(float64(len(res.Removed)))
	m.logger.Printf("  ✓ Removed %d paths, kept %d shared objects", len(res.Removed), len(res.Retained))
	return partial, nil
}

// Reduce removes the superseded ASPs of a package while protecting every
// path owned by keep. All removals run under one lock.
func (m *Manager) Reduce(ctx context.Context, keep string, superseded []string) (*ReduceResult, error) {
	start := time.Now()
	keep = aspname.Normalize(keep)

	res := &ReduceResult{
		Result:  core.NewResult("reduce", keep),
		Keep:    keep,
		Removed: make(map[string]*RemoveResult),
	}

	var olds []string
	seen := map[string]struct{}{keep: {}}
	for _, s := range superseded {
		s = aspname.Normalize(s)
		if _, dup := seen[s]; dup {
			continue
		}
		seen[s] = struct{}{}
		olds = append(olds, s)
	}

	unlock, err := m.lock(ctx)
	if err != nil {
		m.metrics.observe("reduce", start, 0, err)
		return res, err
	}
	defer unlock()

	keepFiles, err := m.registry.FileList(keep)
	if err != nil {
		err = core.NewError("reduce", keep, err)
		m.metrics.observe("reduce", start, 0, err)
		return res, err
	}

	m.logger.Printf("Reducing %d ASPs onto %s", len(olds), keep)

	var first error
	for i, old := range olds {
		m.logger.Printf("[%d/%d] %s", i+1, len(olds), old)
		if !m.registry.IsInstalled(old) {
			err := core.NewError("reduce", old, core.ErrUnknownPackage)
			res.Warn("reduce", old, err)
			if first == nil {
				first = err
			}
			continue
		}

		r, err := m.remove(ctx, old, &RemoveOptions{Exclude: keepFiles})
		res.Removed[old] = r
		res.Merge(r.Result)
		if err != nil && first == nil {
			first = err
		}
	}

	m.metrics.observe("reduce", start, len(res.Warnings), first)
	m.updateInstalledGauge()
	return res, first
}
