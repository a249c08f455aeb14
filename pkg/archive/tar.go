// pkg/archive/tar.go
package archive

import (
	"archive/tar"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	securejoin "github.com/cyphar/filepath-securejoin"
)

// Entry describes one tar member
type Entry struct {
	Name     string
	Size     int64
	Mode     int64
	Type     byte
	Linkname string
}

// ExtractOptions configures Extract
type ExtractOptions struct {
	// Mode, when non-zero, replaces the permission bits of every extracted
	// file and directory. Otherwise header modes are kept.
	Mode os.FileMode

	// OnWrite is called with the absolute path of every file, link and newly
	// created directory, in extraction order.
	OnWrite func(path string)

	Logger *log.Logger
}

// ExtractStats summarises an extraction
type ExtractStats struct {
	Files    int
	Dirs     int
	Symlinks int
	Links    int
	Skipped  int
}

// Extract unpacks a tar stream compressed with c into dest. Member paths
// are confined to dest: ".." components and symlinks that point outside
// cannot place files elsewhere. Ownership is never taken from the archive.
func Extract(ctx context.Context, r io.Reader, c Compression, dest string, opts *ExtractOptions) (*ExtractStats, error) {
	if opts == nil {
		opts = &ExtractOptions{}
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	record := opts.OnWrite
	if record == nil {
		record = func(string) {}
	}

	dr, err := NewReader(r, c)
	if err != nil {
		return nil, err
	}
	defer dr.Close()
	tarReader := tar.NewReader(dr)

	stats := &ExtractStats{}

	for {
		if err := ctx.Err(); err != nil {
			return stats, err
		}

		header, err := tarReader.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return stats, fmt.Errorf("reading tar entry: %w", err)
		}

		cleanPath := CleanMemberName(header.Name)
		if cleanPath == "" {
			continue
		}

		parent, err := securejoin.SecureJoin(dest, filepath.Dir(cleanPath))
		if err != nil {
			return stats, fmt.Errorf("resolving %s: %w", cleanPath, err)
		}
		targetPath := filepath.Join(parent, filepath.Base(cleanPath))

		switch header.Typeflag {
		case tar.TypeDir:
			created, err := mkdirAll(targetPath, record)
			if err != nil {
				return stats, fmt.Errorf("creating directory %s: %w", targetPath, err)
			}
			if opts.Mode != 0 {
				if err := os.Chmod(targetPath, opts.Mode); err != nil {
					return stats, fmt.Errorf("chmod %s: %w", targetPath, err)
				}
			}
			if created {
				stats.Dirs++
			}
			logger.Printf("    📁 %s/", cleanPath)

		case tar.TypeSymlink:
			if _, err := mkdirAll(parent, record); err != nil {
				return stats, fmt.Errorf("creating parent directory for symlink: %w", err)
			}
			if err := removeNonDir(targetPath); err != nil {
				return stats, err
			}
			if err := os.Symlink(header.Linkname, targetPath); err != nil {
				return stats, fmt.Errorf("creating symlink %s -> %s: %w", targetPath, header.Linkname, err)
			}
			record(targetPath)
			stats.Symlinks++
			logger.Printf("    🔗 %s -> %s", cleanPath, header.Linkname)

		case tar.TypeLink:
			if _, err := mkdirAll(parent, record); err != nil {
				return stats, fmt.Errorf("creating parent directory for link: %w", err)
			}
			source, err := securejoin.SecureJoin(dest, CleanMemberName(header.Linkname))
			if err != nil {
				return stats, fmt.Errorf("resolving link target %s: %w", header.Linkname, err)
			}
			if err := removeNonDir(targetPath); err != nil {
				return stats, err
			}
			if err := os.Link(source, targetPath); err != nil {
				return stats, fmt.Errorf("creating hard link %s: %w", targetPath, err)
			}
			record(targetPath)
			stats.Links++

		case tar.TypeReg:
			if _, err := mkdirAll(parent, record); err != nil {
				return stats, fmt.Errorf("creating parent directory: %w", err)
			}
			mode := os.FileMode(header.Mode).Perm()
			if opts.Mode != 0 {
				mode = opts.Mode
			}
			written, err := writeFile(targetPath, tarReader, mode, record)
			if err != nil {
				return stats, err
			}
			if written != header.Size {
				return stats, fmt.Errorf("file size mismatch for %s: expected %d, got %d", targetPath, header.Size, written)
			}
			stats.Files++
			logger.Printf("    📄 %s (%d bytes)", cleanPath, header.Size)

		default:
			stats.Skipped++
			logger.Printf("    ⚠️  Skipping unsupported file type %v for %s", header.Typeflag, cleanPath)
		}
	}

	return stats, nil
}

// List returns the members of a tar stream compressed with c
func List(r io.Reader, c Compression) ([]Entry, error) {
	dr, err := NewReader(r, c)
	if err != nil {
		return nil, err
	}
	defer dr.Close()

	var entries []Entry
	tarReader := tar.NewReader(dr)
	for {
		header, err := tarReader.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return entries, fmt.Errorf("reading tar entry: %w", err)
		}
		entries = append(entries, Entry{
			Name:     header.Name,
			Size:     header.Size,
			Mode:     header.Mode,
			Type:     header.Typeflag,
			Linkname: header.Linkname,
		})
	}
	return entries, nil
}

// Pack writes the tree under src as a tar stream compressed with c. Member
// names carry a "./" prefix. It returns every non-directory path in rooted
// form ("/usr/bin/foo"), sorted.
func Pack(src string, w io.Writer, c Compression) ([]string, error) {
	cw, err := NewWriter(w, c)
	if err != nil {
		return nil, err
	}
	tw := tar.NewWriter(cw)

	var files []string
	walkErr := filepath.WalkDir(src, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(src, p)
		if err != nil {
			return err
		}
		if rel == "." {
			return nil
		}
		rel = filepath.ToSlash(rel)

		info, err := d.Info()
		if err != nil {
			return err
		}
		link := ""
		if info.Mode()&fs.ModeSymlink != 0 {
			if link, err = os.Readlink(p); err != nil {
				return err
			}
		}
		header, err := tar.FileInfoHeader(info, link)
		if err != nil {
			return err
		}
		header.Name = "./" + rel
		header.Uid, header.Gid = 0, 0
		header.Uname, header.Gname = "", ""
		if d.IsDir() {
			header.Name += "/"
		}
		if err := tw.WriteHeader(header); err != nil {
			return err
		}

		if !d.IsDir() {
			files = append(files, "/"+rel)
		}
		if !info.Mode().IsRegular() {
			return nil
		}

		f, err := os.Open(p)
		if err != nil {
			return err
		}
		defer f.Close()
		_, err = io.Copy(tw, f)
		return err
	})
	if walkErr != nil {
		return nil, fmt.Errorf("packing %s: %w", src, walkErr)
	}

	if err := tw.Close(); err != nil {
		return nil, fmt.Errorf("closing tar: %w", err)
	}
	if err := cw.Close(); err != nil {
		return nil, fmt.Errorf("closing compressor: %w", err)
	}

	sort.Strings(files)
	return files, nil
}

// CleanMemberName strips "./" and leading slashes and rejects names that
// are empty or the archive root.
func CleanMemberName(name string) string {
	clean := path.Clean("/" + strings.TrimPrefix(name, "./"))
	clean = strings.TrimPrefix(clean, "/")
	if clean == "" || clean == "." {
		return ""
	}
	return clean
}

// mkdirAll creates dir and reports each directory it had to create
func mkdirAll(dir string, record func(string)) (bool, error) {
	if info, err := os.Stat(dir); err == nil {
		if !info.IsDir() {
			return false, fmt.Errorf("%s exists and is not a directory", dir)
		}
		return false, nil
	}
	if _, err := mkdirAll(filepath.Dir(dir), record); err != nil {
		return false, err
	}
	if err := os.Mkdir(dir, 0755); err != nil && !errors.Is(err, fs.ErrExist) {
		return false, err
	}
	record(dir)
	return true, nil
}

// removeNonDir unlinks an existing file or symlink at p so it can be
// replaced without writing through it. Running binaries are replaced this
// way rather than truncated.
func removeNonDir(p string) error {
	info, err := os.Lstat(p)
	if err != nil {
		return nil
	}
	if info.IsDir() {
		return fmt.Errorf("cannot replace directory %s", p)
	}
	if err := os.Remove(p); err != nil {
		return fmt.Errorf("replacing %s: %w", p, err)
	}
	return nil
}

func writeFile(p string, r io.Reader, mode os.FileMode, record func(string)) (int64, error) {
	if err := removeNonDir(p); err != nil {
		return 0, err
	}
	outFile, err := os.OpenFile(p, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, mode)
	if err != nil {
		return 0, fmt.Errorf("creating file %s: %w", p, err)
	}
	record(p)

	written, err := io.Copy(outFile, r)
	closeErr := outFile.Close()
	if err != nil {
		return written, fmt.Errorf("writing file %s: %w", p, err)
	}
	if closeErr != nil {
		return written, fmt.Errorf("closing file %s: %w", p, closeErr)
	}
	// umask may have narrowed the mode on create
	if err := os.Chmod(p, mode); err != nil {
		return written, fmt.Errorf("chmod %s: %w", p, err)
	}
	return written, nil
}
