// internal/cli/deps.go
package cli

import (
	"context"
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/arc-language/aspkg/pkg/system"
)

var depsForce bool

var depsCmd = &cobra.Command{
	Use:   "deps",
	Short: "Inspect shared-library dependencies between installed ASPs",
}

var depsGenerateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Build the dependency cache of every installed ASP",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		m, err := getManager()
		if err != nil {
			return err
		}
		res, err := m.Engine().GenerateAll(context.Background(), depsForce)
		printWarnings(res)
		if err != nil {
			return err
		}
		fmt.Println("✓ Dependency caches are up to date")
		return nil
	},
}

var depsShowCmd = &cobra.Command{
	Use:   "show <asp>",
	Short: "Show the NEEDED libraries of every ELF file in an ASP",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		m, err := getManager()
		if err != nil {
			return err
		}
		deps, res, err := m.Engine().AnalyzeASP(context.Background(), args[0], &system.AnalyzeOptions{Force: depsForce})
		printWarnings(res)
		if err != nil {
			return err
		}

		paths := make([]string, 0, len(deps))
		for p := range deps {
			paths = append(paths, p)
		}
		sort.Strings(paths)
		for _, p := range paths {
			fmt.Printf("%s\n", p)
			for _, lib := range deps[p] {
				fmt.Printf("  %s\n", lib)
			}
		}
		return nil
	},
}

var depsOnCmd = &cobra.Command{
	Use:   "depends-on <asp>",
	Short: "Show the installed ASPs an ASP loads libraries from",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		m, err := getManager()
		if err != nil {
			return err
		}
		edges, res, err := m.Engine().Dependencies(context.Background(), args[0])
		printWarnings(res)
		printEdges(edges, func(e system.DependencyEdge) string {
			return fmt.Sprintf("%s needs %s from %s", e.ElfPath, e.NeededLib, e.ProviderPath)
		})
		return err
	},
}

var depsRevCmd = &cobra.Command{
	Use:   "dependents <asp>",
	Short: "Show the installed ASPs that load libraries from an ASP",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		m, err := getManager()
		if err != nil {
			return err
		}
		edges, res, err := m.Engine().ReverseDependents(context.Background(), args[0])
		printWarnings(res)
		printEdges(edges, func(e system.DependencyEdge) string {
			return fmt.Sprintf("%s needs %s (%s)", e.ElfPath, e.NeededLib, e.ProviderPath)
		})
		return err
	},
}

var depsMissingCmd = &cobra.Command{
	Use:   "missing",
	Short: "Show NEEDED libraries no installed ASP provides",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		m, err := getManager()
		if err != nil {
			return err
		}
		missing, res, err := m.Engine().MissingProviders(context.Background())
		printWarnings(res)
		if err != nil {
			return err
		}
		if len(missing) == 0 {
			fmt.Println("✓ Every needed library is provided")
			return nil
		}

		asps := make([]string, 0, len(missing))
		for a := range missing {
			asps = append(asps, a)
		}
		sort.Strings(asps)
		for _, a := range asps {
			fmt.Printf("%s:\n", a)
			for _, l := range missing[a] {
				fmt.Printf("  %s: %s\n", l.ElfPath, l.Lib)
			}
		}
		return nil
	},
}

func init() {
	depsGenerateCmd.Flags().BoolVarP(&depsForce, "force", "f", false, "rescan ASPs that already have a cache")
	depsShowCmd.Flags().BoolVarP(&depsForce, "force", "f", false, "rescan instead of reading the cache")

	depsCmd.AddCommand(depsGenerateCmd)
	depsCmd.AddCommand(depsShowCmd)
	depsCmd.AddCommand(depsOnCmd)
	depsCmd.AddCommand(depsRevCmd)
	depsCmd.AddCommand(depsMissingCmd)
}

func printEdges(edges map[string][]system.DependencyEdge, line func(system.DependencyEdge) string) {
	if len(edges) == 0 {
		fmt.Println("None")
		return
	}

	keys := make([]string, 0, len(edges))
	for k := range edges {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Printf("%s:\n", k)
		for _, e := range edges[k] {
			fmt.Printf("  %s\n", line(e))
		}
	}
}
