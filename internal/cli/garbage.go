// internal/cli/garbage.go
package cli

import (
	"context"
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/spf13/cobra"

	"github.com/arc-language/aspkg/pkg/system"
)

var (
	orphansLibOnly  bool
	orphansProgress bool
	staleAge        time.Duration
)

var garbageCmd = &cobra.Command{
	Use:   "garbage",
	Short: "Find files and packages left behind",
}

var orphansCmd = &cobra.Command{
	Use:   "orphans",
	Short: "List files no installed ASP owns",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		m, err := getManager()
		if err != nil {
			return err
		}

		opts := &system.OrphanOptions{LibOnly: orphansLibOnly}
		if orphansProgress {
			opts.Progress = func(p system.Progress) {
				fmt.Fprintf(os.Stderr, "\r  %5.1f%% (%d/%d) %d bytes orphaned", p.Percent, p.Index, p.Total, p.Bytes)
			}
		}

		orphans, res, err := m.Engine().OrphanFiles(context.Background(), opts)
		if orphansProgress {
			fmt.Fprintln(os.Stderr)
		}
		printWarnings(res)
		if err != nil {
			return err
		}
		for _, p := range orphans {
			fmt.Println(p)
		}
		return nil
	},
}

var staleCmd = &cobra.Command{
	Use:   "stale",
	Short: "List installed ASPs built longer ago than --age",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		m, err := getManager()
		if err != nil {
			return err
		}
		stale, res := m.Engine().StalePackages(staleAge, time.Now())
		printWarnings(res)
		for _, a := range stale {
			fmt.Println(a)
		}
		return nil
	},
}

var missingFilesCmd = &cobra.Command{
	Use:   "missing",
	Short: "List registered files that are gone from disk",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		m, err := getManager()
		if err != nil {
			return err
		}
		missing, res, err := m.Engine().MissingFiles(context.Background())
		printWarnings(res)
		printGroups(missing)
		return err
	},
}

var brokenCmd = &cobra.Command{
	Use:   "broken",
	Short: "List installed files whose checksum changed",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		m, err := getManager()
		if err != nil {
			return err
		}
		broken, res, err := m.Engine().BrokenFiles(context.Background())
		printWarnings(res)
		printGroups(broken)
		return err
	},
}

var duplicatesCmd = &cobra.Command{
	Use:   "duplicates",
	Short: "List packages with more than one installed ASP",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		m, err := getManager()
		if err != nil {
			return err
		}
		dups, err := m.Engine().DuplicatePackages()
		if err != nil {
			return err
		}
		printGroups(dups)
		return nil
	},
}

var sharedCmd = &cobra.Command{
	Use:   "shared",
	Short: "List paths owned by more than one installed ASP",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		m, err := getManager()
		if err != nil {
			return err
		}
		shared, err := m.Engine().SharedPaths()
		if err != nil {
			return err
		}
		printGroups(shared)
		return nil
	},
}

func init() {
	orphansCmd.Flags().BoolVar(&orphansLibOnly, "lib-only", false, "only look at the top level of usr/lib")
	orphansCmd.Flags().BoolVar(&orphansProgress, "progress", false, "report scan progress on stderr")
	staleCmd.Flags().DurationVar(&staleAge, "age", system.DefaultStaleAge, "minimum build age")

	garbageCmd.AddCommand(orphansCmd)
	garbageCmd.AddCommand(staleCmd)
	garbageCmd.AddCommand(missingFilesCmd)
	garbageCmd.AddCommand(brokenCmd)
	garbageCmd.AddCommand(duplicatesCmd)
	garbageCmd.AddCommand(sharedCmd)
}

// printGroups prints a map of lists sorted by key
func printGroups(groups map[string][]string) {
	keys := make([]string, 0, len(groups))
	for k := range groups {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		fmt.Printf("%s:\n", k)
		for _, v := range groups[k] {
			fmt.Printf("  %s\n", v)
		}
	}
}
