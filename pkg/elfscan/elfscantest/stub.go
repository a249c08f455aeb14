// pkg/elfscan/elfscantest/stub.go

// Package elfscantest provides a text-driven ElfReader for tests that need
// ELF classification without real binaries.
package elfscantest

import (
	"bufio"
	"fmt"
	"os"
	"strings"
)

// Magic starts every stub ELF file
const Magic = "\x7fELF"

// Content renders a stub ELF file of the given type needing libs
func Content(typ string, libs ...string) []byte {
	return []byte(fmt.Sprintf("%s type=%s needed=%s\n", Magic, typ, strings.Join(libs, ",")))
}

// Exec is shorthand for an ET_EXEC stub
func Exec(libs ...string) []byte { return Content("ET_EXEC", libs...) }

// Shared is shorthand for an ET_DYN stub
func Shared(libs ...string) []byte { return Content("ET_DYN", libs...) }

// Reader implements elfscan.ElfReader over stub files
type Reader struct{}

func (Reader) header(path string) (map[string]string, bool, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, false, err
	}
	defer f.Close()

	line, err := bufio.NewReader(f).ReadString('\n')
	if err != nil && line == "" {
		return nil, false, nil
	}
	if !strings.HasPrefix(line, Magic+" ") {
		return nil, false, nil
	}

	fields := make(map[string]string)
	for _, kv := range strings.Fields(strings.TrimPrefix(line, Magic)) {
		k, v, _ := strings.Cut(kv, "=")
		fields[k] = v
	}
	return fields, true, nil
}

func (r Reader) IsELF(path string) (bool, error) {
	_, ok, err := r.header(path)
	return ok, err
}

func (r Reader) TypeName(path string) (string, error) {
	fields, ok, err := r.header(path)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", fmt.Errorf("%s: not an ELF stub", path)
	}
	return fields["type"], nil
}

func (r Reader) NeededLibs(path string) ([]string, error) {
	fields, ok, err := r.header(path)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%s: not an ELF stub", path)
	}
	if fields["needed"] == "" {
		return nil, nil
	}
	return strings.Split(fields["needed"], ","), nil
}
