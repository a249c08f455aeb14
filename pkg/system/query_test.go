package system

import (
	"context"
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func TestQueries(t *testing.T) {
	m := newTestManager(t)
	mustInstall(t, m, buildASP(t, "bar-1.0-20240101.asp", reduceFiles("1.0", 1, 0)))
	mustInstall(t, m, buildASP(t, "bar-1.10-20240101.asp", reduceFiles("1.10", 1, 0)))
	mustInstall(t, m, buildASP(t, "bar-1.9-20240101.asp", reduceFiles("1.9", 1, 0)))
	mustInstall(t, m, buildASP(t, "foo-1.0-20240101.asp", fooFiles()))

	of, err := m.InstalledOf("bar")
	if err != nil {
		t.Fatal(err)
	}
	if want := []string{"bar-1.0-20240101", "bar-1.9-20240101", "bar-1.10-20240101"}; !reflect.DeepEqual(of, want) {
		t.Errorf("InstalledOf() = %v, want %v", of, want)
	}

	if latest, ok := m.LatestInstalled("bar"); !ok || latest != "bar-1.10-20240101" {
		t.Errorf("LatestInstalled() = %q, %v", latest, ok)
	}
	if _, ok := m.LatestInstalled("nope"); ok {
		t.Error("LatestInstalled(nope) found something")
	}

	rec, err := m.Record("foo-1.0-20240101.asp")
	if err != nil {
		t.Fatalf("Record() error = %v", err)
	}
	if len(rec.FileList) != 3 || len(rec.Checksums) != 3 || rec.DepCache != nil {
		t.Errorf("Record() = %+v", rec)
	}
	if _, err := m.Record("nope-1.0-20240101"); !IsUnknown(err) {
		t.Errorf("Record(nope) error = %v", err)
	}
}

func TestOwners(t *testing.T) {
	m := newTestManager(t)
	mustInstall(t, m, buildASP(t, "bar-1.0-20240101.asp", reduceFiles("1.0", 1, 0)))
	mustInstall(t, m, buildASP(t, "bar-1.9-20240101.asp", reduceFiles("1.9", 1, 0)))
	mustInstall(t, m, buildASP(t, "foo-1.0-20240101.asp", fooFiles()))

	owners, err := m.Owners([]string{"/usr/share/bar/shared0", "usr/bin/foo", "/usr/bin/nope"})
	if err != nil {
		t.Fatalf("Owners() error = %v", err)
	}
	want := map[string][]string{
		"/usr/share/bar/shared0": {"bar-1.0-20240101", "bar-1.9-20240101"},
		"usr/bin/foo":            {"foo-1.0-20240101"},
	}
	if !reflect.DeepEqual(owners, want) {
		t.Errorf("Owners() = %v, want %v", owners, want)
	}
}

func TestFindFiles(t *testing.T) {
	m := newTestManager(t)
	mustInstall(t, m, buildASP(t, "foo-1.0-20240101.asp", fooFiles()))

	tests := []struct {
		query string
		mode  FindMode
		want  []string
	}{
		{"foo", FindPlain, []string{"/usr/bin/foo"}},
		{"foo", FindSub, []string{"/usr/bin/foo", "/usr/lib/libfoo.so.1"}},
		{"lib", FindBeg, []string{"/usr/lib/libfoo.so.1"}},
		{"ME", FindEnd, []string{"/usr/share/foo/README"}},
		{`^lib.*\.so\.[0-9]+$`, FindRe, []string{"/usr/lib/libfoo.so.1"}},
		{"*.so.?", FindFm, []string{"/usr/lib/libfoo.so.1"}},
		{"nothing", FindSub, nil},
	}
	for _, tt := range tests {
		found, err := m.FindFiles(tt.query, tt.mode)
		if err != nil {
			t.Errorf("FindFiles(%q, %s) error = %v", tt.query, tt.mode, err)
			continue
		}
		if got := found["foo-1.0-20240101"]; !reflect.DeepEqual(got, tt.want) {
			t.Errorf("FindFiles(%q, %s) = %v, want %v", tt.query, tt.mode, got, tt.want)
		}
	}

	if _, err := m.FindFiles("(", FindRe); err == nil {
		t.Error("FindFiles with a bad regexp succeeded")
	}
	if _, err := m.FindFiles("x", FindMode("glob")); err == nil {
		t.Error("FindFiles with an unknown mode succeeded")
	}
}

func TestCreateDirectoryTree(t *testing.T) {
	m := newTestManager(t)
	res, err := m.CreateDirectoryTree(context.Background())
	if err != nil {
		t.Fatalf("CreateDirectoryTree() error = %v", err)
	}
	if len(res.Warnings) != 0 {
		t.Errorf("warnings = %v", res.Warnings)
	}

	for _, d := range []string{"usr/bin", "usr/lib", "var/log/packages/sums", "tmp"} {
		if info, err := os.Stat(filepath.Join(m.Basedir(), d)); err != nil || !info.IsDir() {
			t.Errorf("%s not created", d)
		}
	}
	for _, link := range treeLinks {
		target, err := os.Readlink(filepath.Join(m.Basedir(), link[0]))
		if err != nil || target != link[1] {
			t.Errorf("%s -> %q, %v; want %s", link[0], target, err, link[1])
		}
	}

	// a second run leaves everything in place
	if _, err := m.CreateDirectoryTree(context.Background()); err != nil {
		t.Errorf("second CreateDirectoryTree() error = %v", err)
	}
}

func TestInstallThroughLibSymlink(t *testing.T) {
	m := newTestManager(t)
	if _, err := m.CreateDirectoryTree(context.Background()); err != nil {
		t.Fatal(err)
	}
	// /lib is a symlink to usr/lib, so both entries name one file
	mustInstall(t, m, buildASP(t, "foo-1.0-20240101.asp", map[string][]byte{
		"lib/libx.so": []byte("x"),
	}))
	if !exists(m, "/usr/lib/libx.so") {
		t.Fatal("payload did not follow the lib symlink")
	}

	orphans, _, err := m.OrphanFiles(context.Background(), &OrphanOptions{LibOnly: true})
	if err != nil {
		t.Fatal(err)
	}
	if len(orphans) != 0 {
		t.Errorf("OrphanFiles() = %v, want none", orphans)
	}
}
