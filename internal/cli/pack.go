// internal/cli/pack.go
package cli

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/arc-language/aspkg/pkg/archive"
	"github.com/arc-language/aspkg/pkg/asp"
	"github.com/arc-language/aspkg/pkg/aspname"
	"github.com/arc-language/aspkg/pkg/elfscan"
	"github.com/arc-language/aspkg/pkg/platform"
)

var (
	packName        string
	packVersion     string
	packStatus      string
	packZstd        bool
	packPostInstall string
	packLogs        string
	packNoDeps      bool
)

var packCmd = &cobra.Command{
	Use:   "pack <destdir> <outdir>",
	Short: "Build an ASP from a populated destdir",
	Long: `Build an ASP from a populated destdir. The file is named
(name)-(version)-(status)-(timestamp)-(host).asp and written to outdir.

Examples:
  aspkg pack --name=foo --version=1.0 /tmp/foo-destdir ./out
  aspkg pack --name=foo --version=1.0 --post-install=post_install.py --zstd /tmp/foo-destdir ./out`,
	Args: cobra.ExactArgs(2),
	RunE: runPack,
}

func init() {
	packCmd.Flags().StringVar(&packName, "name", "", "package name")
	packCmd.Flags().StringVar(&packVersion, "version", "", "package version")
	packCmd.Flags().StringVar(&packStatus, "status", "", "build status")
	packCmd.Flags().BoolVar(&packZstd, "zstd", false, "compress the payload with zstd instead of xz")
	packCmd.Flags().StringVar(&packPostInstall, "post-install", "", "post-install script to embed")
	packCmd.Flags().StringVar(&packLogs, "logs", "", "build log directory to embed")
	packCmd.Flags().BoolVar(&packNoDeps, "no-deps", false, "do not precompute the dependency map")
	packCmd.MarkFlagRequired("name")
	packCmd.MarkFlagRequired("version")
}

func runPack(cmd *cobra.Command, args []string) error {
	destdir, outdir := args[0], args[1]

	plat, err := platform.Detect()
	if err != nil {
		return err
	}

	name := &aspname.Name{
		Name:      packName,
		Version:   packVersion,
		Status:    packStatus,
		Stamp:     time.Now().UTC().Format("20060102.150405.000000"),
		HostInfo:  plat.Triplet,
		Ext:       asp.Extension,
		Bracketed: true,
	}
	// Round-trip through the parser so a name that could never be
	// installed is refused here.
	if _, err := aspname.Parse(name.Format()); err != nil {
		return err
	}

	b := &asp.Builder{DestDir: destdir, BuildLogDir: packLogs}
	if packZstd {
		b.Payload = archive.Zstd
	}
	if packPostInstall != "" {
		if b.PostInstall, err = os.ReadFile(packPostInstall); err != nil {
			return fmt.Errorf("reading post-install script: %w", err)
		}
	}
	if !packNoDeps {
		if b.Deps, err = scanDestdir(destdir); err != nil {
			return err
		}
	}

	out := filepath.Join(outdir, name.Format())
	files, err := b.Build(out)
	if err != nil {
		return fmt.Errorf("building %s: %w", name.Format(), err)
	}

	fmt.Printf("✓ Built %s (%d files)\n", out, len(files))
	return nil
}

// scanDestdir maps every ELF file of destdir, rooted, to its NEEDED list
func scanDestdir(destdir string) (map[string][]string, error) {
	scanner := elfscan.New(nil)
	deps := make(map[string][]string)

	err := filepath.WalkDir(destdir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.Type().IsRegular() {
			return nil
		}
		libs, isELF, err := scanner.Scan(p)
		if err != nil {
			fmt.Fprintf(os.Stderr, "  ⚠️  Warning: %v\n", err)
			return nil
		}
		if !isELF {
			return nil
		}
		rel, err := filepath.Rel(destdir, p)
		if err != nil {
			return err
		}
		if libs == nil {
			libs = []string{}
		}
		deps[asp.RootPath(filepath.ToSlash(rel))] = libs
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scanning %s: %w", destdir, err)
	}
	return deps, nil
}
