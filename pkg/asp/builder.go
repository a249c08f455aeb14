// pkg/asp/builder.go
package asp

import (
	"archive/tar"
	"bytes"
	"crypto/sha512"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/arc-language/aspkg/pkg/archive"
)

// Builder assembles an ASP from a populated destdir
type Builder struct {
	DestDir     string              // Tree to package
	Payload     archive.Compression // XZ (default) or Zstd
	Deps        map[string][]string // Optional precomputed dependency map
	BuildLogDir string              // Optional directory packed as the build log
	PostInstall []byte              // Optional post_install.py contents
	NoManifest  bool                // Omit package.sha512
}

// Build writes the package to out and returns the packaged file list
func (b *Builder) Build(out string) ([]string, error) {
	payloadCodec := b.Payload
	if payloadCodec == archive.None {
		payloadCodec = archive.XZ
	}
	payloadName := MemberPayload
	if payloadCodec == archive.Zstd {
		payloadName = MemberPayloadZstd
	}

	var payload bytes.Buffer
	files, err := archive.Pack(b.DestDir, &payload, payloadCodec)
	if err != nil {
		return nil, fmt.Errorf("packing destdir: %w", err)
	}

	sums := make(map[string]string)
	for _, f := range files {
		full := filepath.Join(b.DestDir, filepath.FromSlash(f))
		info, err := os.Lstat(full)
		if err != nil {
			return nil, err
		}
		if !info.Mode().IsRegular() {
			continue
		}
		sum, err := HashFile(full)
		if err != nil {
			return nil, fmt.Errorf("hashing %s: %w", f, err)
		}
		sums[f] = sum
	}

	type member struct {
		name string
		data []byte
	}
	var members []member

	add := func(name string, plain []byte, c archive.Compression) error {
		data, err := archive.Compress(plain, c)
		if err != nil {
			return fmt.Errorf("compressing %s: %w", name, err)
		}
		members = append(members, member{name, data})
		return nil
	}

	if err := add(MemberFileList, FormatFileList(files), archive.XZ); err != nil {
		return nil, err
	}
	if err := add(MemberChecksums, FormatChecksums(sums), archive.XZ); err != nil {
		return nil, err
	}
	if b.Deps != nil {
		deps, err := FormatDeps(b.Deps)
		if err != nil {
			return nil, err
		}
		if err := add(MemberDeps, deps, archive.XZ); err != nil {
			return nil, err
		}
	}
	if b.BuildLogDir != "" {
		var logs bytes.Buffer
		if _, err := archive.Pack(b.BuildLogDir, &logs, archive.XZ); err != nil {
			return nil, fmt.Errorf("packing build logs: %w", err)
		}
		members = append(members, member{MemberBuildLogs, logs.Bytes()})
	}
	members = append(members, member{payloadName, payload.Bytes()})
	if b.PostInstall != nil {
		members = append(members, member{MemberPostInstall, b.PostInstall})
	}

	if !b.NoManifest {
		manifest := make(map[string]string, len(members))
		for _, m := range members {
			sum := sha512.Sum512(m.data)
			manifest[m.name] = fmt.Sprintf("%x", sum[:])
		}
		members = append(members, member{MemberManifest, FormatChecksums(manifest)})
	}

	if err := os.MkdirAll(filepath.Dir(out), 0755); err != nil {
		return nil, err
	}
	f, err := os.Create(out)
	if err != nil {
		return nil, err
	}

	if err := writeContainer(f, func(tw *tar.Writer) error {
		now := time.Now()
		dirs := map[string]bool{}
		for _, m := range members {
			if dir := filepath.Dir(m.name); dir != "." && !dirs[dir] {
				dirs[dir] = true
				if err := tw.WriteHeader(&tar.Header{
					Name: "./" + dir + "/", Typeflag: tar.TypeDir, Mode: 0755, ModTime: now,
				}); err != nil {
					return err
				}
			}
			if err := tw.WriteHeader(&tar.Header{
				Name: "./" + m.name, Typeflag: tar.TypeReg, Mode: 0644, Size: int64(len(m.data)), ModTime: now,
			}); err != nil {
				return err
			}
			if _, err := tw.Write(m.data); err != nil {
				return err
			}
		}
		return nil
	}); err != nil {
		f.Close()
		os.Remove(out)
		return nil, fmt.Errorf("writing %s: %w", out, err)
	}
	if err := f.Close(); err != nil {
		return nil, err
	}

	return files, nil
}

func writeContainer(w io.Writer, fn func(*tar.Writer) error) error {
	tw := tar.NewWriter(w)
	if err := fn(tw); err != nil {
		return err
	}
	return tw.Close()
}
