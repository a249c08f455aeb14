// pkg/system/query.go
package system

import (
	"errors"
	"fmt"
	"path"
	"regexp"
	"sort"
	"strings"

	"github.com/arc-language/aspkg/pkg/aspname"
	"github.com/arc-language/aspkg/pkg/core"
	"github.com/arc-language/aspkg/pkg/registry"
)

// Record is the registry view of one installed ASP
type Record struct {
	ASPName   string
	FileList  []string
	Checksums map[string]string
	DepCache  map[string][]string // nil when not analyzed
}

// Record reads every registry entry of aspName
func (m *Manager) Record(aspName string) (*Record, error) {
	aspName = aspname.Normalize(aspName)
	files, err := m.registry.FileList(aspName)
	if err != nil {
		return nil, err
	}

	rec := &Record{ASPName: aspName, FileList: files}
	if m.registry.Has(registry.Checksums, aspName) {
		if rec.Checksums, err = m.registry.Checksums(aspName); err != nil {
			return nil, err
		}
	}
	if m.registry.Has(registry.DepCache, aspName) {
		if rec.DepCache, err = m.registry.DepCache(aspName); err != nil {
			return nil, err
		}
	}
	return rec, nil
}

// Installed lists every installed ASP name
func (m *Manager) Installed() ([]string, error) {
	return m.registry.InstalledNames()
}

// InstalledOf lists the installed ASPs of a package, oldest first
func (m *Manager) InstalledOf(pkgName string) ([]string, error) {
	groups, _, err := m.aspsOf()
	if err != nil {
		return nil, err
	}
	var out []string
	for _, n := range groups[pkgName] {
		out = append(out, n.ASPName())
	}
	return out, nil
}

// LatestInstalled returns the newest installed ASP of a package
func (m *Manager) LatestInstalled(pkgName string) (string, bool) {
	groups, _, err := m.aspsOf()
	if err != nil {
		return "", false
	}
	latest := aspname.Latest(groups[pkgName])
	if latest == nil {
		return "", false
	}
	return latest.ASPName(), true
}

// Files returns the file list of an installed ASP
func (m *Manager) Files(aspName string) ([]string, error) {
	return m.registry.FileList(aspname.Normalize(aspName))
}

// Owners maps each of paths to the installed ASPs that list it. Paths no
// ASP lists are left out.
func (m *Manager) Owners(paths []string) (map[string][]string, error) {
	return m.registry.OwnersOf(paths)
}

// FindFiles searches the basenames of every installed file. The result
// maps ASP names to matching paths.
func (m *Manager) FindFiles(query string, mode FindMode) (map[string][]string, error) {
	match, err := matcher(query, mode)
	if err != nil {
		return nil, err
	}

	lists, err := m.registry.AllFileLists()
	if err != nil {
		return nil, err
	}

	found := make(map[string][]string)
	for name, files := range lists {
		for _, p := range files {
			if match(path.Base(p)) {
				found[name] = append(found[name], p)
			}
		}
		sort.Strings(found[name])
		if len(found[name]) == 0 {
			delete(found, name)
		}
	}
	return found, nil
}

func matcher(query string, mode FindMode) (func(string) bool, error) {
	switch mode {
	case FindPlain, "":
		return func(b string) bool { return b == query }, nil
	case FindSub:
		return func(b string) bool { return strings.Contains(b, query) }, nil
	case FindBeg:
		return func(b string) bool { return strings.HasPrefix(b, query) }, nil
	case FindEnd:
		return func(b string) bool { return strings.HasSuffix(b, query) }, nil
	case FindRe:
		re, err := regexp.Compile(query)
		if err != nil {
			return nil, fmt.Errorf("find: %w", err)
		}
		return re.MatchString, nil
	case FindFm:
		if _, err := path.Match(query, ""); err != nil {
			return nil, fmt.Errorf("find: %w", err)
		}
		return func(b string) bool {
			ok, _ := path.Match(query, b)
			return ok
		}, nil
	default:
		return nil, errors.New("find: unknown mode " + string(mode))
	}
}

// IsUnknown reports whether err means the ASP is not installed
func IsUnknown(err error) bool {
	return errors.Is(err, core.ErrUnknownPackage)
}
