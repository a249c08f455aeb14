// pkg/pkginfo/repository.go
package pkginfo

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/arc-language/aspkg/pkg/asp"
	"github.com/arc-language/aspkg/pkg/aspname"
	"github.com/arc-language/aspkg/pkg/core"
)

// Repository serves ASP files from a local directory
type Repository struct {
	dir string
}

// NewRepository creates a Repository over dir
func NewRepository(dir string) *Repository {
	return &Repository{dir: dir}
}

// Versions returns the parsed names of every ASP of package name, oldest
// first. Files that do not parse are ignored.
func (r *Repository) Versions(name string) ([]*aspname.Name, error) {
	entries, err := os.ReadDir(r.dir)
	if err != nil {
		return nil, fmt.Errorf("repository: %w", err)
	}

	var found []*aspname.Name
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != asp.Extension {
			continue
		}
		n, err := aspname.Parse(e.Name())
		if err != nil || n.Name != name {
			continue
		}
		found = append(found, n)
	}
	aspname.Sort(found)
	return found, nil
}

// FetchLatest returns the path of the newest ASP of package name
func (r *Repository) FetchLatest(name string) (string, error) {
	versions, err := r.Versions(name)
	if err != nil {
		return "", err
	}
	latest := aspname.Latest(versions)
	if latest == nil {
		return "", core.NewError("fetch", name, core.ErrUnknownPackage)
	}
	return filepath.Join(r.dir, latest.Raw), nil
}
