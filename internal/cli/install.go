// internal/cli/install.go
package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/arc-language/aspkg/pkg/system"
)

var (
	installForce   bool
	removeExclude  []string
	removeMetaOnly bool
	uninstallForce bool
)

var installCmd = &cobra.Command{
	Use:   "install [asp-or-package...]",
	Short: "Install one or more packages",
	Long: `Install ASP files, or the newest ASP of a package from the repository.
Reducible packages replace their previously installed ASPs.

Examples:
  aspkg install ./(glibc)-(2.38)-()-(20240101.120000.000000)-(x86_64-pc-linux-gnu).asp
  aspkg install glibc
  aspkg install --basedir=/mnt/target --force glibc`,
	Args: cobra.MinimumNArgs(1),
	RunE: runInstall,
}

var removeCmd = &cobra.Command{
	Use:   "remove [asp...]",
	Short: "Remove installed ASPs",
	Long: `Remove installed ASPs by name. Shared objects are kept on disk and
reported, since other packages may still load them.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runRemove,
}

var uninstallCmd = &cobra.Command{
	Use:   "uninstall [package...]",
	Short: "Remove every installed ASP of a package",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runUninstall,
}

var reduceCmd = &cobra.Command{
	Use:   "reduce <keep-asp> <old-asp...>",
	Short: "Remove superseded ASPs without touching files of the kept one",
	Args:  cobra.MinimumNArgs(2),
	RunE:  runReduce,
}

func init() {
	installCmd.Flags().BoolVarP(&installForce, "force", "f", false, "install despite integrity or policy failures")
	removeCmd.Flags().StringSliceVar(&removeExclude, "exclude", nil, "paths to keep on disk")
	removeCmd.Flags().BoolVar(&removeMetaOnly, "metadata-only", false, "drop the registration, leave files in place")
	uninstallCmd.Flags().BoolVarP(&uninstallForce, "force", "f", false, "remove packages not marked removable")
}

func runInstall(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	m, err := getManager()
	if err != nil {
		return err
	}

	var failed error
	for _, target := range args {
		fmt.Printf("\nInstalling %s...\n", target)

		res, err := m.InstallPackage(ctx, target, installForce)
		if res != nil && res.Install != nil {
			printWarnings(res.Install.Result)
		}
		if res != nil && res.Reduce != nil {
			printWarnings(res.Reduce.Result)
		}
		if err != nil {
			fmt.Fprintf(os.Stderr, "✗ Failed to install %s: %v\n", target, err)
			if res != nil && res.Install != nil && res.Install.Flagged {
				fmt.Fprintf(os.Stderr, "  Package files stay installed; run 'aspkg remove %s' to undo\n", res.Install.Package)
			}
			if failed == nil {
				failed = err
			}
			continue
		}

		fmt.Printf("✓ Successfully installed %s\n", res.Install.Package)
		if res.Reduce != nil {
			fmt.Printf("  Reduced %d previous ASPs\n", len(res.Reduce.Removed))
		}
	}

	return failed
}

func runRemove(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	m, err := getManager()
	if err != nil {
		return err
	}

	opts := &system.RemoveOptions{Exclude: removeExclude, MetadataOnly: removeMetaOnly}

	var failed error
	for _, name := range args {
		res, err := m.Engine().Remove(ctx, name, opts)
		printWarnings(res.Result)
		if err != nil {
			fmt.Fprintf(os.Stderr, "✗ Failed to remove %s: %v\n", name, err)
			if failed == nil {
				failed = err
			}
			continue
		}
		reportRemoval(res)
	}
	return failed
}

func runUninstall(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	m, err := getManager()
	if err != nil {
		return err
	}

	var failed error
	for _, name := range args {
		results, err := m.RemovePackage(ctx, name, uninstallForce)
		for _, res := range results {
			printWarnings(res.Result)
			reportRemoval(res)
		}
		if err != nil {
			fmt.Fprintf(os.Stderr, "✗ Failed to uninstall %s: %v\n", name, err)
			if failed == nil {
				failed = err
			}
		}
	}
	return failed
}

func runReduce(cmd *cobra.Command, args []string) error {
	m, err := getManager()
	if err != nil {
		return err
	}

	res, err := m.Engine().Reduce(context.Background(), args[0], args[1:])
	printWarnings(res.Result)
	for _, name := range args[1:] {
		if r, ok := res.Removed[name]; ok {
			reportRemoval(r)
		}
	}
	return err
}

func reportRemoval(res *system.RemoveResult) {
	fmt.Printf("✓ Removed %s: %d paths deleted", res.Package, len(res.Removed))
	if res.Excluded > 0 {
		fmt.Printf(", %d kept for another package", res.Excluded)
	}
	fmt.Println()
	for _, so := range res.Retained {
		fmt.Printf("  kept shared object %s\n", so)
	}
}
