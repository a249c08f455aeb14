// pkg/system/manager.go
package system

import (
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"

	securejoin "github.com/cyphar/filepath-securejoin"

	"github.com/arc-language/aspkg/pkg/aspname"
	"github.com/arc-language/aspkg/pkg/core"
	"github.com/arc-language/aspkg/pkg/elfscan"
	"github.com/arc-language/aspkg/pkg/registry"
)

// NewManager creates an engine for cfg.Basedir
func NewManager(cfg *Config) *Manager {
	if cfg == nil {
		cfg = &Config{}
	}

	// Set defaults
	if cfg.Basedir == "" {
		cfg.Basedir = core.DefaultBasedir
	}
	if cfg.HookInterpreter == "" {
		cfg.HookInterpreter = core.DefaultHookInterpreter
	}
	if cfg.HookTimeout == 0 {
		cfg.HookTimeout = core.DefaultHookTimeout
	}
	if cfg.LockTimeout == 0 {
		cfg.LockTimeout = core.DefaultLockTimeout
	}
	if cfg.Metrics == nil {
		cfg.Metrics = NewMetrics()
	}

	basedir, err := filepath.Abs(cfg.Basedir)
	if err != nil {
		basedir = filepath.Clean(cfg.Basedir)
	}

	// Setup logger
	logger := cfg.Logger
	if logger == nil {
		if cfg.Debug {
			logger = log.New(os.Stdout, "[ASPKG] ", log.LstdFlags)
		} else {
			logger = log.New(io.Discard, "", 0)
		}
	}

	m := &Manager{
		config:   cfg,
		basedir:  basedir,
		logger:   logger,
		registry: registry.New(basedir),
		scanner:  elfscan.New(cfg.ElfReader),
		metrics:  cfg.Metrics,
	}

	if cfg.Debug {
		m.logger.Printf("Initialized system Manager")
		m.logger.Printf("  Basedir: %s", basedir)
		m.logger.Printf("  Registry: %s", m.registry.Dir(registry.FileList))
		m.logger.Printf("  HookInterpreter: %s", cfg.HookInterpreter)
		m.logger.Printf("  PreserveModes: %v", cfg.PreserveModes)
	}

	return m
}

// Basedir returns the managed root
func (m *Manager) Basedir() string { return m.basedir }

// Registry returns the metadata store
func (m *Manager) Registry() *registry.Registry { return m.registry }

// Metrics returns the operation metrics
func (m *Manager) Metrics() *Metrics { return m.metrics }

// resolve maps a rooted list entry to its location on disk. Symlinks in
// the parent directories are followed without leaving basedir; the final
// component is kept, so a symlink entry names the link itself.
func (m *Manager) resolve(rooted string) string {
	rel := strings.TrimPrefix(filepath.FromSlash(rooted), string(filepath.Separator))
	dir, base := filepath.Split(rel)
	parent, err := securejoin.SecureJoin(m.basedir, dir)
	if err != nil {
		return filepath.Join(m.basedir, rel)
	}
	return filepath.Join(parent, base)
}

// follow resolves every symlink of a rooted entry, the final component
// included, without leaving basedir. It names the file a link stands for.
func (m *Manager) follow(rooted string) string {
	rel := strings.TrimPrefix(filepath.FromSlash(rooted), string(filepath.Separator))
	abs, err := securejoin.SecureJoin(m.basedir, rel)
	if err != nil {
		return m.resolve(rooted)
	}
	return abs
}

// rooted maps an absolute path under basedir back to "/usr/bin/foo" form
func (m *Manager) rooted(abs string) string {
	rel, err := filepath.Rel(m.basedir, abs)
	if err != nil || rel == "." {
		return "/"
	}
	return "/" + filepath.ToSlash(rel)
}

// canonical resolves rooted entries and returns their rooted canonical
// forms. Two entries naming the same file through different symlinked
// directories map to the same string.
func (m *Manager) canonical(paths []string) []string {
	out := make([]string, 0, len(paths))
	for _, p := range paths {
		out = append(out, m.rooted(m.resolve(p)))
	}
	return out
}

// aspsOf groups installed ASP names by logical package name. Names that
// do not parse are returned separately.
func (m *Manager) aspsOf() (map[string][]*aspname.Name, []string, error) {
	names, err := m.registry.InstalledNames()
	if err != nil {
		return nil, nil, err
	}
	groups := make(map[string][]*aspname.Name)
	var bad []string
	for _, n := range names {
		parsed, err := aspname.Parse(n)
		if err != nil {
			bad = append(bad, n)
			continue
		}
		groups[parsed.Name] = append(groups[parsed.Name], parsed)
	}
	for _, g := range groups {
		aspname.Sort(g)
	}
	return groups, bad, nil
}

func toSet(items []string) map[string]struct{} {
	set := make(map[string]struct{}, len(items))
	for _, i := range items {
		set[i] = struct{}{}
	}
	return set
}
