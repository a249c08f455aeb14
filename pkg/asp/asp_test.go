package asp

import (
	"archive/tar"
	"errors"
	"io"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/arc-language/aspkg/pkg/archive"
	"github.com/arc-language/aspkg/pkg/core"
)

func buildTestPackage(t *testing.T, b *Builder, name string) string {
	t.Helper()
	if b.DestDir == "" {
		b.DestDir = t.TempDir()
		for rel, body := range map[string]string{
			"usr/bin/foo":         "#!/bin/sh\necho foo\n",
			"usr/lib/libfoo.so.1": "lib",
		} {
			p := filepath.Join(b.DestDir, rel)
			if err := os.MkdirAll(filepath.Dir(p), 0755); err != nil {
				t.Fatal(err)
			}
			if err := os.WriteFile(p, []byte(body), 0644); err != nil {
				t.Fatal(err)
			}
		}
	}
	out := filepath.Join(t.TempDir(), name)
	if _, err := b.Build(out); err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	return out
}

func TestBuildAndOpen(t *testing.T) {
	path := buildTestPackage(t, &Builder{
		Deps:        map[string][]string{"usr/bin/foo": {"libc.so.6"}},
		PostInstall: []byte("import sys\n"),
	}, "foo-1.0-20240101.asp")

	p, err := Open(path)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	if !p.Verified() {
		t.Error("Verified() = false, want true")
	}
	if p.ASPName() != "foo-1.0-20240101" {
		t.Errorf("ASPName() = %q", p.ASPName())
	}
	if n, err := p.Name(); err != nil || n.Name != "foo" {
		t.Errorf("Name() = %v, %v", n, err)
	}

	for _, m := range []string{MemberFileList, MemberChecksums, MemberDeps, MemberPayload, MemberPostInstall, "./" + MemberManifest} {
		if !p.Has(m) {
			t.Errorf("Has(%q) = false", m)
		}
	}
	if p.Has(MemberBuildLogs) {
		t.Error("Has(build logs) = true, want false")
	}

	files, err := p.FileList()
	if err != nil {
		t.Fatalf("FileList() error = %v", err)
	}
	want := []string{"/usr/bin/foo", "/usr/lib/libfoo.so.1"}
	if !reflect.DeepEqual(files, want) {
		t.Errorf("FileList() = %v, want %v", files, want)
	}

	data, err := p.ReadMember(MemberDeps)
	if err != nil {
		t.Fatal(err)
	}
	deps, err := ParseDeps(data)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(deps["/usr/bin/foo"], []string{"libc.so.6"}) {
		t.Errorf("deps = %v", deps)
	}

	rc, err := p.Stream(MemberPostInstall)
	if err != nil {
		t.Fatal(err)
	}
	script, _ := io.ReadAll(rc)
	rc.Close()
	if string(script) != "import sys\n" {
		t.Errorf("post_install = %q", script)
	}

	member, ok := p.PayloadMember()
	if !ok || member != MemberPayload {
		t.Errorf("PayloadMember() = %q, %v", member, ok)
	}
}

func TestBuildZstdPayload(t *testing.T) {
	path := buildTestPackage(t, &Builder{Payload: archive.Zstd}, "foo-1.0-20240101.asp")
	p, err := Open(path)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	member, ok := p.PayloadMember()
	if !ok || member != MemberPayloadZstd {
		t.Errorf("PayloadMember() = %q, %v", member, ok)
	}
}

func TestPayloadEntries(t *testing.T) {
	for _, c := range []archive.Compression{archive.XZ, archive.Zstd} {
		t.Run(string(c), func(t *testing.T) {
			p, err := Open(buildTestPackage(t, &Builder{Payload: c}, "foo-1.0-20240101.asp"))
			if err != nil {
				t.Fatal(err)
			}
			entries, err := p.PayloadEntries()
			if err != nil {
				t.Fatalf("PayloadEntries() error = %v", err)
			}

			var files []string
			for _, e := range entries {
				if e.Type == tar.TypeReg {
					files = append(files, RootPath(e.Name))
				}
			}
			want := []string{"/usr/bin/foo", "/usr/lib/libfoo.so.1"}
			if !reflect.DeepEqual(files, want) {
				t.Errorf("payload files = %v, want %v", files, want)
			}
		})
	}
}

func TestStreamMissingMember(t *testing.T) {
	path := buildTestPackage(t, &Builder{}, "foo-1.0-20240101.asp")
	p, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	_, err = p.Stream(MemberPostInstall)
	if !errors.Is(err, core.ErrMemberNotFound) {
		t.Errorf("Stream() error = %v, want ErrMemberNotFound", err)
	}
	if !IsMemberNotFound(err) {
		t.Error("IsMemberNotFound() = false")
	}
}

func TestOpenCorrupt(t *testing.T) {
	dir := t.TempDir()

	garbage := filepath.Join(dir, "foo-1.0-20240101.asp")
	if err := os.WriteFile(garbage, []byte("definitely not a tar archive, but long enough to fill a header block? no."), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := Open(garbage); !errors.Is(err, core.ErrCorruptArchive) {
		t.Errorf("Open(garbage) error = %v, want ErrCorruptArchive", err)
	}

	empty := filepath.Join(dir, "empty-1.0-20240101.asp")
	if err := os.WriteFile(empty, nil, 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := Open(empty); !errors.Is(err, core.ErrCorruptArchive) {
		t.Errorf("Open(empty) error = %v, want ErrCorruptArchive", err)
	}

	if _, err := Open(filepath.Join(dir, "missing.asp")); !errors.Is(err, core.ErrCorruptArchive) {
		t.Errorf("Open(missing) error = %v, want ErrCorruptArchive", err)
	}
}

func TestOpenChecksumMismatch(t *testing.T) {
	path := filepath.Join(t.TempDir(), "foo-1.0-20240101.asp")
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	tw := tar.NewWriter(f)
	write := func(name string, body []byte) {
		if err := tw.WriteHeader(&tar.Header{Name: name, Mode: 0644, Size: int64(len(body)), Typeflag: tar.TypeReg}); err != nil {
			t.Fatal(err)
		}
		if _, err := tw.Write(body); err != nil {
			t.Fatal(err)
		}
	}
	lst, _ := archive.Compress([]byte("/usr/bin/foo\n"), archive.XZ)
	write("./"+MemberFileList, lst)
	write("./"+MemberManifest, FormatChecksums(map[string]string{MemberFileList: "00ff"}))
	tw.Close()
	f.Close()

	p, err := Open(path)
	if !errors.Is(err, core.ErrChecksumMismatch) {
		t.Fatalf("Open() error = %v, want ErrChecksumMismatch", err)
	}
	if p == nil || p.Verified() {
		t.Error("package should be returned unverified")
	}
}

func TestOpenWithoutManifest(t *testing.T) {
	path := buildTestPackage(t, &Builder{NoManifest: true}, "foo-1.0-20240101.asp")
	p, err := Open(path)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	if p.Verified() {
		t.Error("Verified() = true without a manifest")
	}
}

func TestParseFileList(t *testing.T) {
	got := ParseFileList([]byte("  ./usr/bin/b\n\n/usr/bin/a\nusr/bin/b\n/\n"))
	want := []string{"/usr/bin/a", "/usr/bin/b"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("ParseFileList() = %v, want %v", got, want)
	}
}

func TestParseChecksums(t *testing.T) {
	sums, err := ParseChecksums([]byte("ABCD *./usr/bin/a\nef01  /usr/bin/b\n"))
	if err != nil {
		t.Fatal(err)
	}
	if sums["/usr/bin/a"] != "abcd" || sums["/usr/bin/b"] != "ef01" {
		t.Errorf("ParseChecksums() = %v", sums)
	}
	if _, err := ParseChecksums([]byte("abcd\n")); err == nil {
		t.Error("expected error for line without path")
	}
}
