package aspkg

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"github.com/arc-language/aspkg/pkg/asp"
	"github.com/arc-language/aspkg/pkg/core"
	"github.com/arc-language/aspkg/pkg/elfscan/elfscantest"
	"github.com/arc-language/aspkg/pkg/pkginfo"
)

type fixture struct {
	m       *Manager
	basedir string
	repo    string
	info    *pkginfo.Store
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		basedir: t.TempDir(),
		repo:    t.TempDir(),
	}
	infoDir := t.TempDir()
	f.info = pkginfo.NewStore(infoDir)

	cfg := DefaultConfig()
	cfg.Basedir = f.basedir
	cfg.InfoDir = infoDir
	cfg.RepositoryDir = f.repo
	cfg.LockTimeout = time.Second
	cfg.OwnerUID = os.Getuid()
	cfg.OwnerGID = os.Getgid()

	m, err := NewManager(cfg, WithElfReader(elfscantest.Reader{}))
	if err != nil {
		t.Fatalf("NewManager() error = %v", err)
	}
	f.m = m
	return f
}

// publish builds an ASP into the repository
func (f *fixture) publish(t *testing.T, name string, files map[string]string) string {
	t.Helper()
	destdir := t.TempDir()
	for p, body := range files {
		full := filepath.Join(destdir, p)
		os.MkdirAll(filepath.Dir(full), 0755)
		if err := os.WriteFile(full, []byte(body), 0644); err != nil {
			t.Fatal(err)
		}
	}
	out := filepath.Join(f.repo, name)
	if _, err := (&asp.Builder{DestDir: destdir}).Build(out); err != nil {
		t.Fatal(err)
	}
	return out
}

func (f *fixture) setInfo(t *testing.T, info *core.PackageInfo) {
	t.Helper()
	if err := f.info.Save(info); err != nil {
		t.Fatal(err)
	}
}

func TestInstallPackageByName(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.setInfo(t, &core.PackageInfo{Name: "bar", Reducible: true, Removable: true})

	f.publish(t, "bar-1.0-20240101.asp", map[string]string{"usr/bin/bar": "1.0", "usr/share/bar/old": "1.0"})
	if _, err := f.m.InstallPackage(ctx, "bar", false); err != nil {
		t.Fatalf("InstallPackage() error = %v", err)
	}

	f.publish(t, "bar-1.2-20240301.asp", map[string]string{"usr/bin/bar": "1.2"})
	res, err := f.m.InstallPackage(ctx, "bar", false)
	if err != nil {
		t.Fatalf("InstallPackage() error = %v", err)
	}
	if filepath.Base(res.Path) != "bar-1.2-20240301.asp" {
		t.Errorf("Path = %q, want the newest ASP", res.Path)
	}
	if res.Reduce == nil {
		t.Fatal("reducible package was not reduced")
	}

	installed, _ := f.m.Installed()
	if !reflect.DeepEqual(installed, []string{"bar-1.2-20240301"}) {
		t.Errorf("Installed() = %v", installed)
	}
	if _, err := os.Stat(filepath.Join(f.basedir, "usr/bin/bar")); err != nil {
		t.Error("file shared with the new ASP was removed")
	}
	if _, err := os.Stat(filepath.Join(f.basedir, "usr/share/bar/old")); err == nil {
		t.Error("file of the superseded ASP survived")
	}
}

func TestInstallPackageNotReducible(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.setInfo(t, &core.PackageInfo{Name: "bar"})

	first := f.publish(t, "bar-1.0-20240101.asp", map[string]string{"usr/bin/bar": "1.0"})
	second := f.publish(t, "bar-1.2-20240301.asp", map[string]string{"usr/bin/bar": "1.2"})
	for _, p := range []string{first, second} {
		if _, err := f.m.InstallPackage(ctx, p, false); err != nil {
			t.Fatal(err)
		}
	}

	installed, _ := f.m.Installed()
	if len(installed) != 2 {
		t.Errorf("Installed() = %v, want both ASPs", installed)
	}
	if latest, _ := f.m.LatestInstalled("bar"); latest != "bar-1.2-20240301" {
		t.Errorf("LatestInstalled() = %q", latest)
	}
}

func TestInstallPackageBlocked(t *testing.T) {
	f := newFixture(t)
	f.setInfo(t, &core.PackageInfo{Name: "bar", Deprecated: true})
	f.publish(t, "bar-1.0-20240101.asp", map[string]string{"usr/bin/bar": "1.0"})

	_, err := f.m.InstallPackage(context.Background(), "bar", false)
	if !errors.Is(err, ErrPackageBlocked) {
		t.Fatalf("InstallPackage() error = %v, want ErrPackageBlocked", err)
	}
	if _, err := f.m.InstallPackage(context.Background(), "bar", true); err != nil {
		t.Errorf("forced InstallPackage() error = %v", err)
	}
}

func TestInstallPackageUnknownName(t *testing.T) {
	f := newFixture(t)
	_, err := f.m.InstallPackage(context.Background(), "nope", false)
	if !errors.Is(err, ErrUnknownPackage) {
		t.Errorf("InstallPackage() error = %v, want ErrUnknownPackage", err)
	}
}

func TestRemovePackage(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.setInfo(t, &core.PackageInfo{Name: "bar"})

	for _, name := range []string{"bar-1.0-20240101.asp", "bar-1.2-20240301.asp"} {
		if _, err := f.m.InstallPackage(ctx, f.publish(t, name, map[string]string{"usr/bin/" + name: "x"}), false); err != nil {
			t.Fatal(err)
		}
	}

	if _, err := f.m.RemovePackage(ctx, "bar", false); !errors.Is(err, ErrPackageBlocked) {
		t.Fatalf("RemovePackage() error = %v, want ErrPackageBlocked", err)
	}

	results, err := f.m.RemovePackage(ctx, "bar", true)
	if err != nil {
		t.Fatalf("RemovePackage(force) error = %v", err)
	}
	if len(results) != 2 || results[0].Package != "bar-1.2-20240301" {
		t.Errorf("RemovePackage() removed %d ASPs, first %q; want newest first", len(results), results[0].Package)
	}
	if installed, _ := f.m.Installed(); len(installed) != 0 {
		t.Errorf("Installed() = %v", installed)
	}

	if _, err := f.m.RemovePackage(ctx, "bar", true); !errors.Is(err, ErrUnknownPackage) {
		t.Errorf("RemovePackage() of nothing error = %v", err)
	}
}
