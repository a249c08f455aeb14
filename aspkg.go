// aspkg.go
package aspkg

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/arc-language/aspkg/pkg/asp"
	"github.com/arc-language/aspkg/pkg/aspname"
	"github.com/arc-language/aspkg/pkg/core"
	"github.com/arc-language/aspkg/pkg/elfscan"
	"github.com/arc-language/aspkg/pkg/pkginfo"
	"github.com/arc-language/aspkg/pkg/system"
)

// Re-export engine types for convenience
type (
	Config        = core.Config
	PackageInfo   = core.PackageInfo
	InfoProvider  = core.InfoProvider
	Fetcher       = core.Fetcher
	Warning       = core.Warning
	Result        = core.Result
	InstallResult = system.InstallResult
	RemoveResult  = system.RemoveResult
	ReduceResult  = system.ReduceResult
	Metrics       = system.Metrics
)

// DefaultConfig returns a configuration with sensible defaults
func DefaultConfig() *Config {
	return core.DefaultConfig()
}

// Option customises a Manager beyond what Config can express
type Option func(*options)

type options struct {
	info      core.InfoProvider
	fetcher   core.Fetcher
	elfReader elfscan.ElfReader
	metrics   *system.Metrics
	logger    *log.Logger
}

// WithInfoProvider replaces the TOML store named by Config.InfoDir
func WithInfoProvider(p core.InfoProvider) Option {
	return func(o *options) { o.info = p }
}

// WithFetcher replaces the repository named by Config.RepositoryDir
func WithFetcher(f core.Fetcher) Option {
	return func(o *options) { o.fetcher = f }
}

// WithElfReader replaces the debug/elf reader
func WithElfReader(r elfscan.ElfReader) Option {
	return func(o *options) { o.elfReader = r }
}

// WithMetrics shares a metrics set between managers
func WithMetrics(m *system.Metrics) Option {
	return func(o *options) { o.metrics = m }
}

// WithLogger sets a custom logger
func WithLogger(l *log.Logger) Option {
	return func(o *options) { o.logger = l }
}

// Manager runs package-level workflows on one basedir
type Manager struct {
	engine  *system.Manager
	config  *Config
	info    core.InfoProvider
	fetcher core.Fetcher
	logger  *log.Logger
}

// NewManager creates a Manager for config.Basedir
func NewManager(config *Config, opts ...Option) (*Manager, error) {
	if config == nil {
		config = core.DefaultConfig()
	}

	var o options
	for _, opt := range opts {
		opt(&o)
	}

	if o.info == nil && config.InfoDir != "" {
		o.info = pkginfo.NewStore(config.InfoDir)
	}
	if o.fetcher == nil && config.RepositoryDir != "" {
		o.fetcher = pkginfo.NewRepository(config.RepositoryDir)
	}

	logger := o.logger
	if logger == nil {
		if config.Debug {
			logger = log.New(os.Stdout, "[ASPKG] ", log.LstdFlags)
		} else {
			logger = log.New(io.Discard, "", 0)
		}
	}

	if config.Basedir == "" {
		return nil, fmt.Errorf("basedir is required")
	}

	engine := system.NewManager(&system.Config{
		Basedir:         config.Basedir,
		ElfReader:       o.elfReader,
		Info:            o.info,
		HookInterpreter: config.HookInterpreter,
		HookTimeout:     config.HookTimeout,
		LockTimeout:     config.LockTimeout,
		PreserveModes:   !config.NormalizeModes,
		OwnerUID:        config.OwnerUID,
		OwnerGID:        config.OwnerGID,
		Metrics:         o.metrics,
		Debug:           config.Debug,
		Logger:          logger,
	})

	return &Manager{
		engine:  engine,
		config:  config,
		info:    o.info,
		fetcher: o.fetcher,
		logger:  logger,
	}, nil
}

// Engine returns the underlying engine for ASP-level operations
func (m *Manager) Engine() *system.Manager { return m.engine }

// Metrics returns the engine metrics
func (m *Manager) Metrics() *system.Metrics { return m.engine.Metrics() }

// PackageResult reports an InstallPackage run
type PackageResult struct {
	Path    string
	Install *system.InstallResult
	Reduce  *system.ReduceResult // nil unless older ASPs were reduced
}

// InstallPackage installs target, which is either an ASP file or a
// package name resolved through the repository. When the package is
// reducible, previously installed ASPs of it are reduced onto the new one.
func (m *Manager) InstallPackage(ctx context.Context, target string, force bool) (*PackageResult, error) {
	path, err := m.resolveTarget(target)
	if err != nil {
		return nil, err
	}
	res := &PackageResult{Path: path}

	name, err := aspname.Parse(path)
	if err != nil && !force {
		return res, core.NewError("install", filepath.Base(path), fmt.Errorf("%w: %w", core.ErrInvalidPackage, err))
	}

	var info *core.PackageInfo
	var previous []string
	if name != nil {
		if m.info != nil {
			info, _ = m.info.Info(name.Name)
		}
		if previous, err = m.engine.InstalledOf(name.Name); err != nil {
			return res, core.NewError("install", name.Name, err)
		}
	}

	res.Install, err = m.engine.Install(ctx, path, &system.InstallOptions{Force: force})
	if err != nil {
		return res, err
	}

	if info == nil || !info.Reducible || len(previous) == 0 {
		return res, nil
	}

	m.logger.Printf("Reducing %d previous ASPs of %s", len(previous), name.Name)
	res.Reduce, err = m.engine.Reduce(ctx, res.Install.Package, previous)
	return res, err
}

// resolveTarget maps a file path or a package name to an ASP file
func (m *Manager) resolveTarget(target string) (string, error) {
	if target == "" {
		return "", fmt.Errorf("package name is required")
	}
	if _, err := os.Stat(target); err == nil {
		return target, nil
	}
	if strings.HasSuffix(target, asp.Extension) || strings.ContainsRune(target, os.PathSeparator) {
		return "", core.NewError("install", target, fmt.Errorf("%w: no such file", core.ErrCorruptArchive))
	}
	if m.fetcher == nil {
		return "", core.NewError("install", target, fmt.Errorf("%w: no repository configured", core.ErrUnknownPackage))
	}

	path, err := m.fetcher.FetchLatest(target)
	if err != nil {
		return "", err
	}
	m.logger.Printf("Resolved '%s' -> '%s'", target, path)
	return path, nil
}

// RemovePackage removes every installed ASP of a package, newest first.
// Without force the package must be marked removable.
func (m *Manager) RemovePackage(ctx context.Context, name string, force bool) ([]*system.RemoveResult, error) {
	if name == "" {
		return nil, fmt.Errorf("package name is required")
	}

	if m.info != nil && !force {
		info, err := m.info.Info(name)
		if err != nil {
			return nil, core.NewError("remove", name, fmt.Errorf("%w: %w", core.ErrPackageBlocked, err))
		}
		if !info.Removable {
			return nil, core.NewError("remove", name, fmt.Errorf("%w: %s is not removable", core.ErrPackageBlocked, name))
		}
	}

	asps, err := m.engine.InstalledOf(name)
	if err != nil {
		return nil, core.NewError("remove", name, err)
	}
	if len(asps) == 0 {
		return nil, core.NewError("remove", name, core.ErrUnknownPackage)
	}

	var results []*system.RemoveResult
	var first error
	for i := len(asps) - 1; i >= 0; i-- {
		r, err := m.engine.Remove(ctx, asps[i], nil)
		results = append(results, r)
		if err != nil && first == nil {
			first = err
		}
	}
	return results, first
}

// LatestInstalled returns the newest installed ASP of a package
func (m *Manager) LatestInstalled(name string) (string, bool) {
	return m.engine.LatestInstalled(name)
}

// Installed lists every installed ASP
func (m *Manager) Installed() ([]string, error) {
	return m.engine.Installed()
}

// Info returns the package record, when an info provider is configured
func (m *Manager) Info(name string) (*core.PackageInfo, error) {
	if m.info == nil {
		return nil, fmt.Errorf("no package info configured")
	}
	return m.info.Info(name)
}
