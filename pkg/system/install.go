// pkg/system/install.go
package system

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"sort"
	"time"

	"golang.org/x/sys/unix"

	"github.com/arc-language/aspkg/pkg/archive"
	"github.com/arc-language/aspkg/pkg/asp"
	"github.com/arc-language/aspkg/pkg/aspname"
	"github.com/arc-language/aspkg/pkg/core"
	"github.com/arc-language/aspkg/pkg/registry"
)

// Install installs the ASP at archivePath into the basedir
func (m *Manager) Install(ctx context.Context, archivePath string, opts *InstallOptions) (*InstallResult, error) {
	if opts == nil {
		opts = &InstallOptions{}
	}
	start := time.Now()

	res := &InstallResult{
		Result: core.NewResult("install", aspname.Normalize(archivePath)),
		State:  StateOpened,
	}

	err := m.install(ctx, archivePath, opts, res)
	if err != nil {
		res.FailedAt = res.State
		res.State = StateFailed
		m.logger.Printf("✗ Install of %s failed at %s: %v", res.Package, res.FailedAt, err)
	} else {
		m.logger.Printf("✓ Package %s installed successfully", res.Package)
	}

	m.metrics.observe("install", start, len(res.Warnings), err)
	m.updateInstalledGauge()
	return res, err
}

func (m *Manager) install(ctx context.Context, archivePath string, opts *InstallOptions, res *InstallResult) error {
	m.logger.Printf("Starting install of: %s", archivePath)
	m.logger.Printf("  Basedir: %s", m.basedir)
	m.logger.Printf("  Force: %v", opts.Force)

	// 1. Open and validate
	m.logger.Printf("Step 1: Opening package...")
	pkg, err := asp.Open(archivePath)
	if pkg == nil {
		return core.NewError("install", res.Package, fmt.Errorf("%w: %w", core.ErrInvalidPackage, err))
	}
	if err != nil {
		if !opts.Force {
			return core.NewError("install", res.Package, fmt.Errorf("%w: %w", core.ErrInvalidPackage, err))
		}
		res.Warn("verify", archivePath, err)
		m.logger.Printf("  ⚠️  Warning: %v (forced)", err)
	}

	name, nameErr := pkg.Name()
	if nameErr != nil {
		if !opts.Force {
			return core.NewError("install", res.Package, fmt.Errorf("%w: %w", core.ErrInvalidPackage, nameErr))
		}
		res.Warn("parse", archivePath, nameErr)
	}
	aspName := pkg.ASPName()
	res.Package = aspName

	if pkg.Verified() {
		m.logger.Printf("  ✓ Integrity manifest verified")
	} else {
		m.logger.Printf("  ⚠️  Warning: %s has no integrity manifest", aspName)
	}
	res.State = StateValidated

	// 2. Policy
	if !opts.Force && m.config.Info != nil && name != nil {
		m.logger.Printf("Step 2: Checking package policy...")
		info, err := m.config.Info.Info(name.Name)
		if err != nil {
			return core.NewError("install", aspName, fmt.Errorf("%w: no package info: %w", core.ErrPackageBlocked, err))
		}
		if info.Deprecated {
			return core.NewError("install", aspName, fmt.Errorf("%w: %s is deprecated", core.ErrPackageBlocked, name.Name))
		}
		if info.NonInstallable {
			return core.NewError("install", aspName, fmt.Errorf("%w: %s is not installable", core.ErrPackageBlocked, name.Name))
		}
		m.logger.Printf("  ✓ Package may be installed")
	} else {
		m.logger.Printf("Step 2: Skipping package policy check")
	}

	if err := ctx.Err(); err != nil {
		return err
	}

	unlock, err := m.lock(ctx)
	if err != nil {
		return err
	}
	defer unlock()

	// A reinstall of the same name overwrites the registration; keep the
	// old one so a failed attempt can put it back
	previous, err := m.registry.Snapshot(aspName)
	if err != nil {
		return core.NewError("install", aspName, fmt.Errorf("%w: %w", core.ErrMetadataInstall, err))
	}
	if len(previous) > 0 {
		m.logger.Printf("  %s is already registered, reinstalling", aspName)
	}

	// 3. Metadata
	m.logger.Printf("Step 3: Installing package metadata...")
	if err := m.stageMetadata(pkg, aspName, res); err != nil {
		m.rollback(aspName, previous, res)
		return err
	}
	res.State = StateMetadataStaged
	m.logger.Printf("  ✓ Metadata staged (%d files listed)", len(res.Files))

	// 4. Payload
	m.logger.Printf("Step 4: Extracting payload...")
	if err := m.extractPayload(ctx, pkg, aspName, res); err != nil {
		m.rollback(aspName, previous, res)
		return err
	}
	res.State = StatePayloadExtracted

	// From here on the package stays installed on failure
	// 5. Permissions
	m.logger.Printf("Step 5: Fixing ownership and permissions...")
	m.fixPermissions(res)
	res.State = StatePermissionsFixed

	// 6. Post-install hook
	if pkg.Has(asp.MemberPostInstall) && !opts.SkipHook {
		m.logger.Printf("Step 6: Running post-install script...")
		if err := m.runHook(ctx, pkg, aspName); err != nil {
			res.Flagged = true
			return core.NewError("install", aspName, err)
		}
		m.logger.Printf("  ✓ Post-install script finished")
	} else {
		m.logger.Printf("Step 6: No post-install script to run")
	}
	res.State = StatePostInstallRun
	res.State = StateCommitted
	return nil
}

// stageMetadata writes the registry entries of pkg. The file list is
// required; the other members are best-effort.
func (m *Manager) stageMetadata(pkg *asp.Package, aspName string, res *InstallResult) error {
	files, err := pkg.FileList()
	if err != nil {
		return core.NewError("install", aspName, fmt.Errorf("%w: file list: %w", core.ErrMetadataInstall, err))
	}
	if err := m.registry.WriteFileList(aspName, files); err != nil {
		return core.NewError("install", aspName, fmt.Errorf("%w: %w", core.ErrMetadataInstall, err))
	}
	res.Files = files

	for _, item := range []struct {
		kind   registry.Kind
		member string
	}{
		{registry.Checksums, asp.MemberChecksums},
		{registry.BuildLog, asp.MemberBuildLogs},
	} {
		if err := m.copyMember(pkg, item.member, item.kind, aspName); err != nil {
			if asp.IsMemberNotFound(err) {
				m.logger.Printf("  No %s in package", item.member)
				continue
			}
			res.Warn("metadata "+item.kind.String(), item.member, err)
			m.logger.Printf("  ⚠️  Warning: %s: %v", item.member, err)
		}
	}

	// A stale cache from an earlier install of the same name must not survive
	if err := m.registry.Delete(registry.DepCache, aspName); err != nil {
		res.Warn("metadata deps", "", err)
	}
	if pkg.Has(asp.MemberDeps) {
		data, err := pkg.ReadMember(asp.MemberDeps)
		if err == nil {
			var deps map[string][]string
			if deps, err = asp.ParseDeps(data); err == nil {
				err = m.registry.WriteDepCache(aspName, deps)
			}
		}
		if err != nil {
			res.Warn("metadata deps", asp.MemberDeps, err)
			m.logger.Printf("  ⚠️  Warning: dependency cache: %v", err)
		}
	}

	return nil
}

func (m *Manager) copyMember(pkg *asp.Package, member string, kind registry.Kind, aspName string) error {
	rc, err := pkg.Stream(member)
	if err != nil {
		return err
	}
	defer rc.Close()
	return m.registry.WriteRaw(kind, aspName, rc)
}

func (m *Manager) extractPayload(ctx context.Context, pkg *asp.Package, aspName string, res *InstallResult) error {
	member, ok := pkg.PayloadMember()
	if !ok {
		return core.NewError("install", aspName, fmt.Errorf("payload: %w", core.ErrMemberNotFound))
	}

	rc, err := pkg.Stream(member)
	if err != nil {
		return core.NewError("install", aspName, err)
	}
	defer rc.Close()

	opts := &archive.ExtractOptions{
		OnWrite: func(p string) { res.Written = append(res.Written, p) },
		Logger:  m.logger,
	}
	if !m.config.PreserveModes {
		opts.Mode = core.DefaultInstallMode
	}

	stats, err := archive.Extract(ctx, rc, archive.DetectCompression(member), m.basedir, opts)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return core.NewError("install", aspName, err)
		}
		return core.NewError("install", aspName, fmt.Errorf("%w: extracting payload: %w", core.ErrIOError, err))
	}

	m.logger.Printf("  ✓ Extraction complete:")
	m.logger.Printf("    - %d files", stats.Files)
	m.logger.Printf("    - %d directories", stats.Dirs)
	m.logger.Printf("    - %d symlinks", stats.Symlinks)
	return nil
}

// rollback removes what a failed install wrote, deepest paths first, and
// puts back the registry entries held in previous, dropping the staged
// ones. Files of an earlier install that the failed one overwrote are gone
// afterwards; MissingFiles reports them.
func (m *Manager) rollback(aspName string, previous registry.Snapshot, res *InstallResult) {
	m.logger.Printf("  Rolling back %d written paths", len(res.Written))

	written := append([]string(nil), res.Written...)
	sort.Sort(sort.Reverse(sort.StringSlice(written)))
	for _, p := range written {
		info, err := os.Lstat(p)
		if err != nil {
			continue
		}
		if info.IsDir() {
			// only directories this install created, and only when empty
			os.Remove(p)
			continue
		}
		if err := os.Remove(p); err != nil {
			res.Warn("rollback", m.rooted(p), err)
		}
	}

	if err := m.registry.Restore(aspName, previous); err != nil {
		res.Warn("rollback", "", err)
	}
}

// fixPermissions applies owner and mode to each listed directory and file
// that is not a symlink. Directories are the parents of listed files.
func (m *Manager) fixPermissions(res *InstallResult) {
	dirSet := make(map[string]struct{})
	for _, f := range res.Files {
		if d := path.Dir(f); d != "/" {
			dirSet[d] = struct{}{}
		}
	}
	dirs := make([]string, 0, len(dirSet))
	for d := range dirSet {
		dirs = append(dirs, d)
	}
	sort.Strings(dirs)

	before := len(res.Warnings)
	fixed := 0
	for _, p := range append(dirs, res.Files...) {
		abs := m.resolve(p)
		info, err := os.Lstat(abs)
		if err != nil {
			res.Warn("chown", p, fmt.Errorf("%w: %v", core.ErrIOError, err))
			continue
		}
		if info.Mode()&os.ModeSymlink != 0 {
			continue
		}
		if err := unix.Lchown(abs, m.config.OwnerUID, m.config.OwnerGID); err != nil {
			res.Warn("chown", p, fmt.Errorf("%w: %v", core.ErrIOError, err))
		}
		if !m.config.PreserveModes {
			if err := os.Chmod(abs, core.DefaultInstallMode); err != nil {
				res.Warn("chmod", p, fmt.Errorf("%w: %v", core.ErrIOError, err))
			}
		}
		fixed++
	}

	if n := len(res.Warnings) - before; n > 0 {
		m.logger.Printf("  ⚠️  Warning: %d permission problems", n)
	}
	m.logger.Printf("  ✓ %d paths fixed", fixed)
}

func (m *Manager) updateInstalledGauge() {
	if names, err := m.registry.InstalledNames(); err == nil {
		m.metrics.installedASPs.Set(float64(len(names)))
	}
}
