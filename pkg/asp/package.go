// pkg/asp/package.go
package asp

import (
	"archive/tar"
	"crypto/sha512"
	"encoding/hex"
	"errors"
	"fmt"
	"hash"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/arc-language/aspkg/pkg/archive"
	"github.com/arc-language/aspkg/pkg/aspname"
	"github.com/arc-language/aspkg/pkg/core"
)

// Package is an opened ASP file. Members are read lazily from disk; the
// Package holds no open file between calls.
type Package struct {
	path     string
	name     *aspname.Name
	nameErr  error
	members  map[string]archive.Entry
	order    []string
	verified bool
}

// Open indexes the container at path and runs its integrity check.
// The returned Package is usable even when the error wraps
// ErrChecksumMismatch, so a forced install can proceed.
func Open(path string) (*Package, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, core.NewError("open", filepath.Base(path), fmt.Errorf("%w: %v", core.ErrCorruptArchive, err))
	}
	defer f.Close()

	p := &Package{
		path:    path,
		members: make(map[string]archive.Entry),
	}
	p.name, p.nameErr = aspname.Parse(path)

	tr := tar.NewReader(f)
	for {
		header, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, core.NewError("open", filepath.Base(path), fmt.Errorf("%w: %v", core.ErrCorruptArchive, err))
		}
		name := archive.CleanMemberName(header.Name)
		if name == "" {
			continue
		}
		if _, dup := p.members[name]; !dup {
			p.order = append(p.order, name)
		}
		p.members[name] = archive.Entry{
			Name:     header.Name,
			Size:     header.Size,
			Mode:     header.Mode,
			Type:     header.Typeflag,
			Linkname: header.Linkname,
		}
	}

	if len(p.members) == 0 {
		return nil, core.NewError("open", filepath.Base(path), fmt.Errorf("%w: empty container", core.ErrCorruptArchive))
	}

	if err := p.Verify(); err != nil {
		return p, err
	}
	return p, nil
}

// Path returns the file the package was opened from
func (p *Package) Path() string { return p.path }

// Name returns the parsed file name and the parse error, if any
func (p *Package) Name() (*aspname.Name, error) { return p.name, p.nameErr }

// ASPName is the registry key for this package
func (p *Package) ASPName() string {
	if p.name != nil {
		return p.name.ASPName()
	}
	return aspname.Normalize(p.path)
}

// Verified reports whether an integrity manifest was present and matched
func (p *Package) Verified() bool { return p.verified }

// Has reports whether member is present
func (p *Package) Has(member string) bool {
	_, ok := p.members[archive.CleanMemberName(member)]
	return ok
}

// Members lists member names in archive order
func (p *Package) Members() []string {
	out := make([]string, len(p.order))
	copy(out, p.order)
	return out
}

// PayloadMember returns the name of the destdir payload member
func (p *Package) PayloadMember() (string, bool) {
	for _, m := range payloadMembers {
		if p.Has(m) {
			return m, true
		}
	}
	return "", false
}

// PayloadEntries lists the destdir payload without extracting it
func (p *Package) PayloadEntries() ([]archive.Entry, error) {
	member, ok := p.PayloadMember()
	if !ok {
		return nil, fmt.Errorf("payload: %w", core.ErrMemberNotFound)
	}
	rc, err := p.Stream(member)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	entries, err := archive.List(rc, archive.DetectCompression(member))
	if err != nil {
		return entries, fmt.Errorf("%w: %s: %v", core.ErrCorruptArchive, member, err)
	}
	return entries, nil
}

// Stream returns a single-pass reader over the raw bytes of member.
// The caller must Close it.
func (p *Package) Stream(member string) (io.ReadCloser, error) {
	want := archive.CleanMemberName(member)
	if _, ok := p.members[want]; !ok {
		return nil, fmt.Errorf("%s: %w", member, core.ErrMemberNotFound)
	}

	f, err := os.Open(p.path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrCorruptArchive, err)
	}

	tr := tar.NewReader(f)
	for {
		header, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("%w: %v", core.ErrCorruptArchive, err)
		}
		if archive.CleanMemberName(header.Name) == want {
			return &memberReader{Reader: tr, file: f}, nil
		}
	}

	f.Close()
	return nil, fmt.Errorf("%s: %w", member, core.ErrMemberNotFound)
}

// ReadMember returns the decompressed contents of member. The codec is
// chosen from the member name.
func (p *Package) ReadMember(member string) ([]byte, error) {
	rc, err := p.Stream(member)
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return archive.Decompress(rc, archive.DetectCompression(member))
}

// FileList returns the parsed DESTDIR.lst member
func (p *Package) FileList() ([]string, error) {
	data, err := p.ReadMember(MemberFileList)
	if err != nil {
		return nil, err
	}
	return ParseFileList(data), nil
}

// Verify checks every member listed in the package.sha512 manifest. A
// package without a manifest is accepted but stays unverified.
func (p *Package) Verify() error {
	p.verified = false
	if !p.Has(MemberManifest) {
		return nil
	}

	data, err := p.ReadMember(MemberManifest)
	if err != nil {
		return err
	}
	expected, err := ParseChecksums(data)
	if err != nil {
		return core.NewError("verify", p.ASPName(), fmt.Errorf("%w: %v", core.ErrChecksumMismatch, err))
	}

	actual, err := p.hashMembers(expected)
	if err != nil {
		return err
	}

	var bad []string
	for member, want := range expected {
		got, ok := actual[member]
		if !ok || !strings.EqualFold(got, want) {
			bad = append(bad, strings.TrimPrefix(member, "/"))
		}
	}
	if len(bad) > 0 {
		sort.Strings(bad)
		return core.NewError("verify", p.ASPName(), fmt.Errorf("%w: %s", core.ErrChecksumMismatch, strings.Join(bad, ", ")))
	}

	p.verified = true
	return nil
}

// hashMembers computes sha512 of every wanted member in one pass
func (p *Package) hashMembers(wanted map[string]string) (map[string]string, error) {
	f, err := os.Open(p.path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrCorruptArchive, err)
	}
	defer f.Close()

	sums := make(map[string]string)
	tr := tar.NewReader(f)
	for {
		header, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %v", core.ErrCorruptArchive, err)
		}
		key := RootPath(header.Name)
		if _, ok := wanted[key]; !ok {
			continue
		}
		h := sha512.New()
		if _, err := io.Copy(h, tr); err != nil {
			return nil, fmt.Errorf("%w: %v", core.ErrCorruptArchive, err)
		}
		sums[key] = hex.EncodeToString(h.Sum(nil))
	}
	return sums, nil
}

// HashFile returns the hex sha512 of the file at path
func HashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	return hashReader(sha512.New(), f)
}

func hashReader(h hash.Hash, r io.Reader) (string, error) {
	if _, err := io.Copy(h, r); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// IsMemberNotFound reports whether err means an absent member
func IsMemberNotFound(err error) bool {
	return errors.Is(err, core.ErrMemberNotFound)
}

type memberReader struct {
	io.Reader
	file *os.File
}

func (m *memberReader) Close() error {
	return m.file.Close()
}
