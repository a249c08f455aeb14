// pkg/registry/registry.go
package registry

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/arc-language/aspkg/pkg/archive"
	"github.com/arc-language/aspkg/pkg/asp"
	"github.com/arc-language/aspkg/pkg/core"
)

// Kind selects one of the four parallel stores
type Kind int

const (
	FileList Kind = iota
	Checksums
	BuildLog
	DepCache
)

// Kinds lists every store, FileList first
var Kinds = []Kind{FileList, Checksums, BuildLog, DepCache}

// Default locations relative to basedir
const (
	PackagesDir  = "var/log/packages"
	BuildLogsDir = "var/log/packages/buildlogs"
	SumsDir      = "var/log/packages/sums"
	DepsDir      = "var/log/packages/deps"

	// EntryExt is appended to the ASP name to form an entry file name
	EntryExt = ".xz"
)

func (k Kind) String() string {
	switch k {
	case FileList:
		return "files"
	case Checksums:
		return "sums"
	case BuildLog:
		return "buildlogs"
	case DepCache:
		return "deps"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Registry stores installed-package metadata under a basedir
type Registry struct {
	basedir string
	dirs    map[Kind]string
}

// New creates a Registry rooted at basedir
func New(basedir string) *Registry {
	return &Registry{
		basedir: basedir,
		dirs: map[Kind]string{
			FileList:  filepath.Join(basedir, PackagesDir),
			BuildLog:  filepath.Join(basedir, BuildLogsDir),
			Checksums: filepath.Join(basedir, SumsDir),
			DepCache:  filepath.Join(basedir, DepsDir),
		},
	}
}

// Dir returns the directory holding entries of kind
func (r *Registry) Dir(kind Kind) string {
	return r.dirs[kind]
}

// Init creates the four store directories
func (r *Registry) Init() error {
	for _, k := range Kinds {
		if err := os.MkdirAll(r.dirs[k], 0755); err != nil {
			return fmt.Errorf("registry: creating %s: %w", r.dirs[k], err)
		}
	}
	return nil
}

// EntryPath returns the file holding aspName's entry of kind
func (r *Registry) EntryPath(kind Kind, aspName string) string {
	return filepath.Join(r.dirs[kind], aspName+EntryExt)
}

// Write compresses data and stores it as aspName's entry of kind
func (r *Registry) Write(kind Kind, aspName string, data []byte) error {
	packed, err := archive.Compress(data, archive.XZ)
	if err != nil {
		return fmt.Errorf("registry: %w", err)
	}
	return r.WriteRaw(kind, aspName, bytes.NewReader(packed))
}

// WriteRaw stores an already xz-compressed stream verbatim. The entry is
// written to a temporary file in the same directory and renamed into
// place, so readers see either the old entry or the complete new one.
func (r *Registry) WriteRaw(kind Kind, aspName string, src io.Reader) error {
	if err := validName(aspName); err != nil {
		return err
	}
	dir := r.dirs[kind]
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("registry: creating %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, "."+aspName+".*.tmp")
	if err != nil {
		return fmt.Errorf("registry: creating temp entry: %w", err)
	}
	tmpName := tmp.Name()
	cleanup := func() {
		tmp.Close()
		os.Remove(tmpName)
	}

	if _, err := io.Copy(tmp, src); err != nil {
		cleanup()
		return fmt.Errorf("registry: writing %s %s: %w", kind, aspName, err)
	}
	if err := tmp.Sync(); err != nil {
		cleanup()
		return fmt.Errorf("registry: syncing %s %s: %w", kind, aspName, err)
	}
	if err := tmp.Chmod(0644); err != nil {
		cleanup()
		return fmt.Errorf("registry: chmod %s %s: %w", kind, aspName, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("registry: closing %s %s: %w", kind, aspName, err)
	}
	if err := os.Rename(tmpName, r.EntryPath(kind, aspName)); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("registry: committing %s %s: %w", kind, aspName, err)
	}
	return nil
}

// Read returns the decompressed entry of kind for aspName
func (r *Registry) Read(kind Kind, aspName string) ([]byte, error) {
	f, err := os.Open(r.EntryPath(kind, aspName))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, core.NewError("registry "+kind.String(), aspName, core.ErrUnknownPackage)
		}
		return nil, fmt.Errorf("registry: %w", err)
	}
	defer f.Close()

	data, err := archive.Decompress(f, archive.XZ)
	if err != nil {
		return nil, fmt.Errorf("registry: reading %s %s: %w", kind, aspName, err)
	}
	return data, nil
}

// Delete removes aspName's entry of kind. A missing entry is not an error.
func (r *Registry) Delete(kind Kind, aspName string) error {
	if err := os.Remove(r.EntryPath(kind, aspName)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("registry: deleting %s %s: %w", kind, aspName, err)
	}
	return nil
}

// Has reports whether aspName has an entry of kind
func (r *Registry) Has(kind Kind, aspName string) bool {
	_, err := os.Stat(r.EntryPath(kind, aspName))
	return err == nil
}

// List returns the sorted ASP names present in the kind store
func (r *Registry) List(kind Kind) ([]string, error) {
	entries, err := os.ReadDir(r.dirs[kind])
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("registry: listing %s: %w", kind, err)
	}

	var names []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || strings.HasPrefix(name, ".") || !strings.HasSuffix(name, EntryExt) {
			continue
		}
		names = append(names, strings.TrimSuffix(name, EntryExt))
	}
	sort.Strings(names)
	return names, nil
}

// InstalledNames returns the names present in the FileList store
func (r *Registry) InstalledNames() ([]string, error) {
	return r.List(FileList)
}

// IsInstalled reports whether aspName has a file list
func (r *Registry) IsInstalled(aspName string) bool {
	return r.Has(FileList, aspName)
}

// DeleteAll removes every entry of aspName and returns the first failure
func (r *Registry) DeleteAll(aspName string) error {
	var first error
	// FileList last: it is the installed marker
	for i := len(Kinds) - 1; i >= 0; i-- {
		if err := r.Delete(Kinds[i], aspName); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// Snapshot holds the stored entries of one ASP, still compressed
type Snapshot map[Kind][]byte

// Snapshot copies every existing entry of aspName. An ASP that is not
// registered yields an empty Snapshot.
func (r *Registry) Snapshot(aspName string) (Snapshot, error) {
	snap := make(Snapshot)
	for _, kind := range Kinds {
		data, err := os.ReadFile(r.EntryPath(kind, aspName))
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return nil, fmt.Errorf("registry: %w", err)
		}
		snap[kind] = data
	}
	return snap, nil
}

// Restore replaces the entries of aspName with snap. Kinds missing from
// snap are deleted.
func (r *Registry) Restore(aspName string, snap Snapshot) error {
	// FileList last, so the ASP only looks installed once the rest is back
	for i := len(Kinds) - 1; i >= 0; i-- {
		kind := Kinds[i]
		data, ok := snap[kind]
		if !ok {
			if err := r.Delete(kind, aspName); err != nil {
				return err
			}
			continue
		}
		if err := r.WriteRaw(kind, aspName, bytes.NewReader(data)); err != nil {
			return err
		}
	}
	return nil
}

// FileList returns aspName's sorted, rooted file list
func (r *Registry) FileList(aspName string) ([]string, error) {
	data, err := r.Read(FileList, aspName)
	if err != nil {
		return nil, err
	}
	return asp.ParseFileList(data), nil
}

// WriteFileList stores files as aspName's file list
func (r *Registry) WriteFileList(aspName string, files []string) error {
	return r.Write(FileList, aspName, asp.FormatFileList(files))
}

// Checksums returns aspName's path -> sha512 map
func (r *Registry) Checksums(aspName string) (map[string]string, error) {
	data, err := r.Read(Checksums, aspName)
	if err != nil {
		return nil, err
	}
	return asp.ParseChecksums(data)
}

// DepCache returns aspName's cached dependency map
func (r *Registry) DepCache(aspName string) (map[string][]string, error) {
	data, err := r.Read(DepCache, aspName)
	if err != nil {
		return nil, err
	}
	return asp.ParseDeps(data)
}

// WriteDepCache stores deps as aspName's dependency cache
func (r *Registry) WriteDepCache(aspName string, deps map[string][]string) error {
	data, err := asp.FormatDeps(deps)
	if err != nil {
		return fmt.Errorf("registry: encoding deps for %s: %w", aspName, err)
	}
	return r.Write(DepCache, aspName, data)
}

// AllFileLists reads the file list of every installed ASP
func (r *Registry) AllFileLists() (map[string][]string, error) {
	names, err := r.InstalledNames()
	if err != nil {
		return nil, err
	}
	lists := make(map[string][]string, len(names))
	for _, name := range names {
		files, err := r.FileList(name)
		if err != nil {
			return nil, err
		}
		lists[name] = files
	}
	return lists, nil
}

// OwnersOf maps each of paths to the ASPs whose file lists contain it.
// It reads every file list once; batch lookups instead of calling it per
// path.
func (r *Registry) OwnersOf(paths []string) (map[string][]string, error) {
	want := make(map[string]string, len(paths))
	for _, p := range paths {
		want[asp.RootPath(p)] = p
	}

	lists, err := r.AllFileLists()
	if err != nil {
		return nil, err
	}

	owners := make(map[string][]string)
	names := make([]string, 0, len(lists))
	for name := range lists {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		for _, f := range lists[name] {
			if orig, ok := want[f]; ok {
				owners[orig] = append(owners[orig], name)
			}
		}
	}
	return owners, nil
}

func validName(aspName string) error {
	if aspName == "" || aspName == "." || aspName == ".." || strings.ContainsRune(aspName, '/') {
		return fmt.Errorf("registry: invalid ASP name %q", aspName)
	}
	return nil
}
