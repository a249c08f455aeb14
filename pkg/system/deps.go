// pkg/system/deps.go
package system

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"sort"
	"strings"
	"time"

	"github.com/arc-language/aspkg/pkg/aspname"
	"github.com/arc-language/aspkg/pkg/core"
	"github.com/arc-language/aspkg/pkg/registry"
)

// AnalyzeASP returns the NEEDED libraries of every ELF file owned by
// aspName, keyed by rooted path. The registry cache is used unless
// opts.Force; a fresh analysis is written back to it. Reading the cache
// takes no lock, rebuilding it holds the basedir lock so an Install of the
// same name cannot interleave with the write.
func (m *Manager) AnalyzeASP(ctx context.Context, aspName string, opts *AnalyzeOptions) (map[string][]string, *core.Result, error) {
	if opts == nil {
		opts = &AnalyzeOptions{}
	}
	aspName = aspname.Normalize(aspName)
	res := core.NewResult("analyze", aspName)

	if !opts.Force {
		if deps, ok := m.cachedDeps(aspName, res); ok {
			return deps, res, nil
		}
	}

	unlock, err := m.lock(ctx)
	if err != nil {
		return nil, res, core.NewError("analyze", aspName, err)
	}
	defer unlock()

	// another process may have written it while we waited
	if !opts.Force {
		if deps, ok := m.cachedDeps(aspName, res); ok {
			return deps, res, nil
		}
	}
	deps, err := m.analyze(ctx, aspName, res)
	return deps, res, err
}

func (m *Manager) cachedDeps(aspName string, res *core.Result) (map[string][]string, bool) {
	if !m.registry.Has(registry.DepCache, aspName) {
		return nil, false
	}
	deps, err := m.registry.DepCache(aspName)
	if err != nil {
		res.Warn("cache", "", err)
		m.logger.Printf("  ⚠️  Warning: unreadable dependency cache of %s, rebuilding", aspName)
		return nil, false
	}
	return deps, true
}

// analyze scans the files of aspName and replaces its cache. The caller
// holds the basedir lock.
func (m *Manager) analyze(ctx context.Context, aspName string, res *core.Result) (map[string][]string, error) {
	files, err := m.registry.FileList(aspName)
	if err != nil {
		return nil, core.NewError("analyze", aspName, err)
	}

	m.logger.Printf("Analyzing %s (%d files)", aspName, len(files))
	deps := make(map[string][]string)
	for _, p := range m.canonical(files) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		libs, isELF, err := m.scanner.Scan(m.resolve(p))
		if err != nil {
			if !errors.Is(err, os.ErrNotExist) {
				res.Warn("elf", p, err)
			}
			continue
		}
		if !isELF {
			continue
		}
		if libs == nil {
			libs = []string{}
		}
		deps[p] = libs
	}

	if err := m.registry.WriteDepCache(aspName, deps); err != nil {
		return deps, core.NewError("analyze", aspName, fmt.Errorf("%w: %v", core.ErrIOError, err))
	}
	m.logger.Printf("  ✓ %d ELF files analyzed", len(deps))
	return deps, nil
}

// GenerateAll builds the dependency cache of every installed ASP. With
// force, existing caches are rebuilt.
func (m *Manager) GenerateAll(ctx context.Context, force bool) (*core.Result, error) {
	start := time.Now()
	res := core.NewResult("generate", "")

	unlock, err := m.lock(ctx)
	if err != nil {
		return res, err
	}
	defer unlock()

	names, err := m.registry.InstalledNames()
	if err != nil {
		return res, core.NewError("generate", "", fmt.Errorf("%w: %v", core.ErrIOError, err))
	}

	failed := 0
	for i, name := range names {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		if !force && m.registry.Has(registry.DepCache, name) {
			continue
		}
		m.logger.Printf("[%d/%d] Generating dependencies of %s", i+1, len(names), name)
		if _, err := m.analyze(ctx, name, res); err != nil {
			res.Warn("generate", name, err)
			failed++
		}
	}

	var result error
	if failed > 0 {
		result = core.NewError("generate", "", fmt.Errorf("%w: %d of %d ASPs", core.ErrAnalysisIncomplete, failed, len(names)))
	}
	m.metrics.observe("generate", start, len(res.Warnings), result)
	return res, result
}

// libMatches reports whether the rooted path p satisfies the NEEDED entry
// lib. A bare soname matches by basename, a lib with a slash by suffix.
func libMatches(p, lib string) bool {
	if strings.Contains(lib, "/") {
		return p == lib || strings.HasSuffix(p, "/"+strings.TrimPrefix(lib, "/"))
	}
	return path.Base(p) == lib
}

// ReverseDependents finds the ASPs with ELF files that need a library
// provided by aspName, matched against every path aspName lists. Paths
// also shipped by the latest installed ASP of the same package are not
// counted, since removing aspName keeps them.
func (m *Manager) ReverseDependents(ctx context.Context, aspName string) (map[string][]DependencyEdge, *core.Result, error) {
	aspName = aspname.Normalize(aspName)
	res := core.NewResult("dependents", aspName)

	files, err := m.registry.FileList(aspName)
	if err != nil {
		return nil, res, core.NewError("dependents", aspName, err)
	}
	// every listed path counts, so soname links match as well as the
	// files they point to
	targets := toSet(m.canonical(files))

	if parsed, err := aspname.Parse(aspName); err == nil {
		if latest, ok := m.LatestInstalled(parsed.Name); ok && latest != aspName {
			latestFiles, err := m.registry.FileList(latest)
			if err != nil {
				res.Warn("dependents", latest, err)
			}
			for _, p := range m.canonical(latestFiles) {
				delete(targets, p)
			}
		}
	}

	m.logger.Printf("Finding dependents of %s (%d provided paths)", aspName, len(targets))

	names, err := m.registry.InstalledNames()
	if err != nil {
		return nil, res, core.NewError("dependents", aspName, fmt.Errorf("%w: %v", core.ErrIOError, err))
	}

	dependents := make(map[string][]DependencyEdge)
	incomplete := 0
	for _, other := range names {
		if other == aspName {
			continue
		}
		if err := ctx.Err(); err != nil {
			return dependents, res, err
		}
		deps, r, err := m.AnalyzeASP(ctx, other, nil)
		res.Merge(r)
		if err != nil {
			res.Warn("dependents", other, err)
			incomplete++
			continue
		}
		if edges := matchEdges(other, deps, aspName, targets); len(edges) > 0 {
			dependents[other] = edges
		}
	}

	if incomplete > 0 {
		return dependents, res, core.NewError("dependents", aspName, fmt.Errorf("%w: %d ASPs not analyzed", core.ErrAnalysisIncomplete, incomplete))
	}
	return dependents, res, nil
}

// matchEdges links every NEEDED entry in consumerDeps to a provider path in
// providerFiles
func matchEdges(consumer string, consumerDeps map[string][]string, provider string, providerFiles map[string]struct{}) []DependencyEdge {
	var edges []DependencyEdge
	for _, elfPath := range sortedKeys(consumerDeps) {
		for _, lib := range consumerDeps[elfPath] {
			for p := range providerFiles {
				if libMatches(p, lib) {
					edges = append(edges, DependencyEdge{
						Consumer:     consumer,
						ElfPath:      elfPath,
						NeededLib:    lib,
						Provider:     provider,
						ProviderPath: p,
					})
				}
			}
		}
	}
	sort.SliceStable(edges, func(i, j int) bool {
		if edges[i].ElfPath != edges[j].ElfPath {
			return edges[i].ElfPath < edges[j].ElfPath
		}
		if edges[i].NeededLib != edges[j].NeededLib {
			return edges[i].NeededLib < edges[j].NeededLib
		}
		return edges[i].ProviderPath < edges[j].ProviderPath
	})
	return edges
}

// Dependencies finds the installed ASPs that provide a library needed by
// aspName
func (m *Manager) Dependencies(ctx context.Context, aspName string) (map[string][]DependencyEdge, *core.Result, error) {
	aspName = aspname.Normalize(aspName)
	res := core.NewResult("depends-on", aspName)

	deps, r, err := m.AnalyzeASP(ctx, aspName, nil)
	res.Merge(r)
	if err != nil {
		return nil, res, err
	}

	lists, err := m.registry.AllFileLists()
	if err != nil {
		return nil, res, core.NewError("depends-on", aspName, fmt.Errorf("%w: %v", core.ErrIOError, err))
	}

	providers := make(map[string][]DependencyEdge)
	for _, other := range sortedKeys(lists) {
		if other == aspName {
			continue
		}
		if err := ctx.Err(); err != nil {
			return providers, res, err
		}
		if edges := matchEdges(aspName, deps, other, toSet(lists[other])); len(edges) > 0 {
			providers[other] = edges
		}
	}
	return providers, res, nil
}

// MissingProviders reports, per installed ASP, the NEEDED libraries that no
// installed file provides. ASPs without a dependency cache are skipped with
// a warning.
func (m *Manager) MissingProviders(ctx context.Context) (map[string][]MissingLib, *core.Result, error) {
	res := core.NewResult("missing", "")

	lists, err := m.registry.AllFileLists()
	if err != nil {
		return nil, res, core.NewError("missing", "", fmt.Errorf("%w: %v", core.ErrIOError, err))
	}

	provided := make(map[string]struct{})
	var providedPaths []string
	for _, files := range lists {
		for _, f := range files {
			provided[path.Base(f)] = struct{}{}
			providedPaths = append(providedPaths, f)
		}
	}

	missing := make(map[string][]MissingLib)
	for _, name := range sortedKeys(lists) {
		if err := ctx.Err(); err != nil {
			return missing, res, err
		}
		if !m.registry.Has(registry.DepCache, name) {
			res.Warn("missing", name, errors.New("no dependency cache"))
			m.logger.Printf("  ⚠️  Warning: %s has no dependency cache", name)
			continue
		}
		deps, err := m.registry.DepCache(name)
		if err != nil {
			res.Warn("missing", name, err)
			continue
		}

		for _, elfPath := range sortedKeys(deps) {
			for _, lib := range deps[elfPath] {
				if isProvided(lib, provided, providedPaths) {
					continue
				}
				missing[name] = append(missing[name], MissingLib{ElfPath: elfPath, Lib: lib})
			}
		}
	}
	return missing, res, nil
}

func isProvided(lib string, basenames map[string]struct{}, paths []string) bool {
	if !strings.Contains(lib, "/") {
		_, ok := basenames[lib]
		return ok
	}
	for _, p := range paths {
		if libMatches(p, lib) {
			return true
		}
	}
	return false
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
