// pkg/elfscan/scanner.go
package elfscan

import (
	"bytes"
	"debug/elf"
	"fmt"
	"io"
	"os"
	"sort"
)

// TypeSharedObject is the TypeName of an ET_DYN object
const TypeSharedObject = "ET_DYN"

var elfMagic = []byte(elf.ELFMAG)

// ElfReader decodes the fields the scanner needs
type ElfReader interface {
	IsELF(path string) (bool, error)
	TypeName(path string) (string, error)
	NeededLibs(path string) ([]string, error)
}

// DebugElfReader implements ElfReader with debug/elf
type DebugElfReader struct{}

// IsELF checks the four magic bytes
func (DebugElfReader) IsELF(path string) (bool, error) {
	f, err := os.Open(path)
	if err != nil {
		return false, err
	}
	defer f.Close()

	magic := make([]byte, len(elfMagic))
	if _, err := io.ReadFull(f, magic); err != nil {
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			return false, nil
		}
		return false, err
	}
	return bytes.Equal(magic, elfMagic), nil
}

// TypeName returns the ELF header type, e.g. "ET_EXEC" or "ET_DYN"
func (DebugElfReader) TypeName(path string) (string, error) {
	f, err := elf.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	return f.Type.String(), nil
}

// NeededLibs returns the DT_NEEDED entries of the dynamic section
func (DebugElfReader) NeededLibs(path string) ([]string, error) {
	f, err := elf.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	libs, err := f.ImportedLibraries()
	if err != nil {
		// static binaries have no dynamic section
		if f.Section(".dynamic") == nil {
			return nil, nil
		}
		return nil, err
	}
	return libs, nil
}

// Scanner classifies installed files
type Scanner struct {
	Reader ElfReader
}

// New returns a Scanner over r, or over debug/elf when r is nil
func New(r ElfReader) *Scanner {
	if r == nil {
		r = DebugElfReader{}
	}
	return &Scanner{Reader: r}
}

// IsELF reports whether path is a regular, non-symlink ELF file
func (s *Scanner) IsELF(path string) (bool, error) {
	info, err := os.Lstat(path)
	if err != nil {
		return false, err
	}
	if !info.Mode().IsRegular() {
		return false, nil
	}
	return s.Reader.IsELF(path)
}

// IsSharedObject reports whether path is a regular ELF file of type ET_DYN
func (s *Scanner) IsSharedObject(path string) (bool, error) {
	ok, err := s.IsELF(path)
	if err != nil || !ok {
		return false, err
	}
	typ, err := s.Reader.TypeName(path)
	if err != nil {
		return false, fmt.Errorf("reading ELF type of %s: %w", path, err)
	}
	return typ == TypeSharedObject, nil
}

// Scan returns the sorted NEEDED entries of path and whether it is ELF
func (s *Scanner) Scan(path string) ([]string, bool, error) {
	ok, err := s.IsELF(path)
	if err != nil || !ok {
		return nil, false, err
	}
	libs, err := s.Reader.NeededLibs(path)
	if err != nil {
		return nil, true, fmt.Errorf("reading NEEDED of %s: %w", path, err)
	}
	sort.Strings(libs)
	return libs, true, nil
}
