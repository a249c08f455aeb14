package system

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/arc-language/aspkg/pkg/core"
	"github.com/arc-language/aspkg/pkg/elfscan/elfscantest"
	"github.com/arc-language/aspkg/pkg/registry"
)

func TestRemove(t *testing.T) {
	m := newTestManager(t)
	mustInstall(t, m, buildASP(t, "foo-1.0-20240101.asp", fooFiles()))

	res, err := m.Remove(context.Background(), "foo-1.0-20240101.asp", nil)
	if err != nil {
		t.Fatalf("Remove() error = %v", err)
	}

	if want := []string{"/usr/lib/libfoo.so.1"}; !reflect.DeepEqual(res.Retained, want) {
		t.Errorf("Retained = %v, want %v", res.Retained, want)
	}
	if want := []string{"/usr/share/foo/README", "/usr/bin/foo"}; !reflect.DeepEqual(res.Removed, want) {
		t.Errorf("Removed = %v, want %v", res.Removed, want)
	}
	if exists(m, "/usr/bin/foo") || exists(m, "/usr/share/foo/README") {
		t.Error("listed files survived removal")
	}
	if !exists(m, "/usr/lib/libfoo.so.1") {
		t.Error("shared object was deleted")
	}
	for _, kind := range registry.Kinds {
		if m.Registry().Has(kind, "foo-1.0-20240101") {
			t.Errorf("%s entry survived removal", kind)
		}
	}

	if got := metricCounterValue(t, m.Metrics().filesRemoved); got != 2 {
		t.Errorf("files removed counter = %v, want 2", got)
	}
	if got := metricCounterValue(t, m.Metrics().retainedSOs); got != 1 {
		t.Errorf("retained counter = %v, want 1", got)
	}
}

func TestRemoveUnknown(t *testing.T) {
	m := newTestManager(t)

	_, err := m.Remove(context.Background(), "nope-1.0-20240101", nil)
	if !errors.Is(err, core.ErrUnknownPackage) {
		t.Fatalf("Remove() error = %v, want ErrUnknownPackage", err)
	}
	// no lock file, no registry directory: nothing was touched
	entries, _ := os.ReadDir(m.Basedir())
	if len(entries) != 0 {
		t.Errorf("basedir was modified: %v", entries)
	}
}

func TestRemoveMetadataOnly(t *testing.T) {
	m := newTestManager(t)
	mustInstall(t, m, buildASP(t, "foo-1.0-20240101.asp", fooFiles()))

	res, err := m.Remove(context.Background(), "foo-1.0-20240101", &RemoveOptions{MetadataOnly: true})
	if err != nil {
		t.Fatalf("Remove() error = %v", err)
	}
	if len(res.Removed) != 0 {
		t.Errorf("Removed = %v, want none", res.Removed)
	}
	if !exists(m, "/usr/bin/foo") {
		t.Error("files deleted in metadata-only mode")
	}
	if m.Registry().IsInstalled("foo-1.0-20240101") {
		t.Error("registration survived")
	}
}

func TestRemoveExclude(t *testing.T) {
	m := newTestManager(t)
	mustInstall(t, m, buildASP(t, "foo-1.0-20240101.asp", fooFiles()))

	res, err := m.Remove(context.Background(), "foo-1.0-20240101", &RemoveOptions{
		Exclude: []string{"/usr/share/foo/README"},
	})
	if err != nil {
		t.Fatalf("Remove() error = %v", err)
	}
	if res.Excluded != 1 {
		t.Errorf("Excluded = %d, want 1", res.Excluded)
	}
	if !exists(m, "/usr/share/foo/README") {
		t.Error("excluded file was deleted")
	}
	if exists(m, "/usr/bin/foo") {
		t.Error("/usr/bin/foo survived")
	}
}

func TestRemoveSymlinkEntry(t *testing.T) {
	m := newTestManager(t)
	mustInstall(t, m, buildASP(t, "foo-1.0-20240101.asp", fooFiles()))

	// the ASP lists a symlink; removal must drop the link, not its target
	target := filepath.Join(t.TempDir(), "target")
	if err := os.WriteFile(target, []byte("keep"), 0644); err != nil {
		t.Fatal(err)
	}
	link := filepath.Join(m.Basedir(), "usr/bin/foo")
	os.Remove(link)
	if err := os.Symlink(target, link); err != nil {
		t.Fatal(err)
	}

	if _, err := m.Remove(context.Background(), "foo-1.0-20240101", nil); err != nil {
		t.Fatalf("Remove() error = %v", err)
	}
	if exists(m, "/usr/bin/foo") {
		t.Error("symlink survived")
	}
	if _, err := os.Stat(target); err != nil {
		t.Errorf("symlink target deleted: %v", err)
	}
}

func TestRemoveSonameLinks(t *testing.T) {
	tests := []struct {
		name     string
		link     string
		target   string
		wantKept bool
	}{
		{"relative link to library", "usr/lib/libz.so.1", "libz.so.1.3", true},
		{"absolute link to library", "usr/lib/libz.so", "/usr/lib/libz.so.1.3", true},
		{"link through a directory", "usr/lib64/libz.so.1", "../lib/libz.so.1.3", true},
		{"link to documentation", "usr/share/zlib/NEWS", "README", false},
		{"dangling link", "usr/lib/libgone.so.1", "libgone.so.1.0", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := newTestManager(t)
			files := map[string][]byte{
				"usr/lib/libz.so.1.3":   elfscantest.Shared("libc.so.6"),
				"usr/share/zlib/README": []byte("zlib\n"),
			}
			mustInstall(t, m, buildASP(t, "zlib-1.3-20240101.asp", files, withSymlink(t, tt.link, tt.target)))

			res, err := m.Remove(context.Background(), "zlib-1.3-20240101", nil)
			if err != nil {
				t.Fatalf("Remove() error = %v", err)
			}

			link := "/" + tt.link
			if _, err := os.Lstat(filepath.Join(m.Basedir(), tt.link)); (err == nil) != tt.wantKept {
				t.Errorf("link on disk = %v, want %v", err == nil, tt.wantKept)
			}
			if got := contains(res.Retained, link); got != tt.wantKept {
				t.Errorf("Retained = %v, link retained = %v, want %v", res.Retained, got, tt.wantKept)
			}
			if got := contains(res.Removed, link); got == tt.wantKept {
				t.Errorf("Removed = %v, link removed = %v, want %v", res.Removed, got, !tt.wantKept)
			}
			if !exists(m, "/usr/lib/libz.so.1.3") {
				t.Error("library was deleted")
			}
			if exists(m, "/usr/share/zlib/README") {
				t.Error("README survived removal")
			}
		})
	}
}

// typeErrReader finds ELF files but cannot read their type
type typeErrReader struct{ elfscantest.Reader }

func (typeErrReader) TypeName(path string) (string, error) {
	return "", fmt.Errorf("%s: truncated section headers", path)
}

func TestRemoveKeepsUnclassifiedELF(t *testing.T) {
	m := newTestManager(t, func(c *Config) { c.ElfReader = typeErrReader{} })
	mustInstall(t, m, buildASP(t, "foo-1.0-20240101.asp", fooFiles()))

	res, err := m.Remove(context.Background(), "foo-1.0-20240101", nil)
	if err != nil {
		t.Fatalf("Remove() error = %v", err)
	}

	want := []string{"/usr/bin/foo", "/usr/lib/libfoo.so.1"}
	if !reflect.DeepEqual(res.Retained, want) {
		t.Errorf("Retained = %v, want %v", res.Retained, want)
	}
	if !reflect.DeepEqual(res.Removed, []string{"/usr/share/foo/README"}) {
		t.Errorf("Removed = %v", res.Removed)
	}
	if len(res.Warnings) != 2 {
		t.Errorf("warnings = %v, want one per unreadable ELF file", res.Warnings)
	}
	if !exists(m, "/usr/bin/foo") || !exists(m, "/usr/lib/libfoo.so.1") {
		t.Error("unclassified ELF file was deleted")
	}
}

func contains(list []string, item string) bool {
	for _, s := range list {
		if s == item {
			return true
		}
	}
	return false
}

func TestRemovePartial(t *testing.T) {
	if os.Getuid() == 0 {
		t.Skip("root ignores directory permissions")
	}
	m := newTestManager(t)
	mustInstall(t, m, buildASP(t, "foo-1.0-20240101.asp", fooFiles()))

	dir := filepath.Join(m.Basedir(), "usr/share/foo")
	if err := os.Chmod(dir, 0555); err != nil {
		t.Fatal(err)
	}
	defer os.Chmod(dir, 0755)

	res, err := m.Remove(context.Background(), "foo-1.0-20240101", nil)
	if !errors.Is(err, core.ErrPartialRemoval) {
		t.Fatalf("Remove() error = %v, want ErrPartialRemoval", err)
	}
	if len(res.Warnings) == 0 {
		t.Error("no warning for the undeletable file")
	}
	if m.Registry().IsInstalled("foo-1.0-20240101") {
		t.Error("registration must be dropped even when files remain")
	}
}

// reduceFiles returns n shared and unique files for one version
func reduceFiles(version string, shared, unique int) map[string][]byte {
	files := make(map[string][]byte)
	for i := 0; i < shared; i++ {
		files[fmt.Sprintf("usr/share/bar/shared%d", i)] = []byte(version)
	}
	for i := 0; i < unique; i++ {
		files[fmt.Sprintf("usr/share/bar/%s-only%d", version, i)] = []byte(version)
	}
	return files
}

func TestReduce(t *testing.T) {
	m := newTestManager(t)
	mustInstall(t, m, buildASP(t, "bar-1.0-20240101.asp", reduceFiles("1.0", 8, 2)))
	mustInstall(t, m, buildASP(t, "bar-2.0-20240201.asp", reduceFiles("2.0", 8, 2)))

	shared, err := m.SharedPaths()
	if err != nil {
		t.Fatal(err)
	}
	if len(shared) != 8 {
		t.Fatalf("SharedPaths() = %d paths, want 8", len(shared))
	}

	res, err := m.Reduce(context.Background(), "bar-2.0-20240201.asp", []string{"bar-1.0-20240101", "bar-2.0-20240201"})
	if err != nil {
		t.Fatalf("Reduce() error = %v", err)
	}
	if len(res.Removed) != 1 {
		t.Fatalf("Removed = %v, want one ASP", res.Removed)
	}
	old := res.Removed["bar-1.0-20240101"]
	if old == nil {
		t.Fatal("no result for bar-1.0-20240101")
	}
	if old.Excluded != 8 {
		t.Errorf("Excluded = %d, want 8", old.Excluded)
	}

	keep, err := m.Files("bar-2.0-20240201")
	if err != nil {
		t.Fatal(err)
	}
	for _, p := range keep {
		if !exists(m, p) {
			t.Errorf("%s of the kept ASP was deleted", p)
		}
	}
	for _, p := range []string{"/usr/share/bar/1.0-only0", "/usr/share/bar/1.0-only1"} {
		if exists(m, p) {
			t.Errorf("%s survived reduce", p)
		}
	}

	installed, _ := m.Installed()
	if !reflect.DeepEqual(installed, []string{"bar-2.0-20240201"}) {
		t.Errorf("Installed() = %v", installed)
	}
	if shared, _ := m.SharedPaths(); len(shared) != 0 {
		t.Errorf("SharedPaths() after reduce = %v", shared)
	}
}

func TestReduceUnknownKeep(t *testing.T) {
	m := newTestManager(t)
	mustInstall(t, m, buildASP(t, "bar-1.0-20240101.asp", reduceFiles("1.0", 1, 1)))

	_, err := m.Reduce(context.Background(), "bar-2.0-20240201", []string{"bar-1.0-20240101"})
	if !errors.Is(err, core.ErrUnknownPackage) {
		t.Fatalf("Reduce() error = %v, want ErrUnknownPackage", err)
	}
	if !m.Registry().IsInstalled("bar-1.0-20240101") {
		t.Error("old ASP removed although keep is unknown")
	}
}
