// pkg/pkginfo/store.go
package pkginfo

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/arc-language/aspkg/pkg/core"
)

// Store reads package records from <dir>/<name>.toml
type Store struct {
	dir string
}

// NewStore creates a Store over dir
func NewStore(dir string) *Store {
	return &Store{dir: dir}
}

// Info loads the record for a logical package name
func (s *Store) Info(name string) (*core.PackageInfo, error) {
	if name == "" || strings.ContainsRune(name, '/') {
		return nil, fmt.Errorf("pkginfo: invalid package name %q", name)
	}
	path := filepath.Join(s.dir, name+".toml")

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, core.NewError("info", name, core.ErrUnknownPackage)
		}
		return nil, fmt.Errorf("pkginfo: reading %s: %w", path, err)
	}

	var info core.PackageInfo
	if _, err := toml.Decode(string(data), &info); err != nil {
		return nil, fmt.Errorf("pkginfo: failed to parse '%s': %w", name, err)
	}
	if info.Name == "" {
		info.Name = name
	}

	return &info, nil
}

// Save writes info as <dir>/<info.Name>.toml
func (s *Store) Save(info *core.PackageInfo) error {
	if err := os.MkdirAll(s.dir, 0755); err != nil {
		return fmt.Errorf("pkginfo: creating %s: %w", s.dir, err)
	}

	f, err := os.Create(filepath.Join(s.dir, info.Name+".toml"))
	if err != nil {
		return fmt.Errorf("pkginfo: %w", err)
	}
	defer f.Close()

	if err := toml.NewEncoder(f).Encode(info); err != nil {
		return fmt.Errorf("pkginfo: encoding '%s': %w", info.Name, err)
	}
	return nil
}

// Names lists every package with a record
func (s *Store) Names() ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("pkginfo: %w", err)
	}

	var names []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".toml") {
			names = append(names, strings.TrimSuffix(e.Name(), ".toml"))
		}
	}
	sort.Strings(names)
	return names, nil
}
