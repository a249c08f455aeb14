// internal/cli/list.go
package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/arc-language/aspkg/pkg/aspname"
	"github.com/arc-language/aspkg/pkg/system"
)

var findMode string

var listCmd = &cobra.Command{
	Use:   "list [package]",
	Short: "List installed ASPs",
	Long:  `List installed ASPs, optionally only those of one package, oldest first.`,
	Args:  cobra.MaximumNArgs(1),
	RunE:  runList,
}

var filesCmd = &cobra.Command{
	Use:   "files <asp>",
	Short: "List the files owned by an installed ASP",
	Args:  cobra.ExactArgs(1),
	RunE:  runFiles,
}

var findCmd = &cobra.Command{
	Use:   "find <query>",
	Short: "Find which installed ASPs own files matching a query",
	Long: `Match the query against file basenames of every installed ASP.

Modes:
  plain  exact basename (default)
  sub    substring
  beg    prefix
  end    suffix
  re     regular expression
  fm     shell pattern`,
	Args: cobra.ExactArgs(1),
	RunE: runFind,
}

var ownerCmd = &cobra.Command{
	Use:   "owner <path...>",
	Short: "Show which installed ASPs list the given paths",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runOwner,
}

func init() {
	findCmd.Flags().StringVarP(&findMode, "mode", "m", string(system.FindPlain), "match mode: plain, sub, beg, end, re, fm")
}

func runList(cmd *cobra.Command, args []string) error {
	m, err := getManager()
	if err != nil {
		return err
	}

	var names []string
	if len(args) == 1 {
		names, err = m.Engine().InstalledOf(args[0])
	} else {
		names, err = m.Installed()
	}
	if err != nil {
		return err
	}

	if len(names) == 0 {
		fmt.Println("No packages installed")
		return nil
	}

	fmt.Printf("Installed ASPs (%d):\n", len(names))
	for _, name := range names {
		n, err := aspname.Parse(name)
		if err != nil {
			fmt.Printf("  %s\n", name)
			continue
		}
		fmt.Printf("  %-30s %-15s %s\n", n.Name, n.Version, n.Timestamp.Format("2006-01-02 15:04:05"))
	}
	return nil
}

func runFiles(cmd *cobra.Command, args []string) error {
	m, err := getManager()
	if err != nil {
		return err
	}

	files, err := m.Engine().Files(aspname.Normalize(args[0]))
	if err != nil {
		return err
	}
	for _, f := range files {
		fmt.Println(f)
	}
	return nil
}

func runFind(cmd *cobra.Command, args []string) error {
	m, err := getManager()
	if err != nil {
		return err
	}

	matches, err := m.Engine().FindFiles(args[0], system.FindMode(findMode))
	if err != nil {
		return err
	}
	if len(matches) == 0 {
		fmt.Printf("No installed file matches '%s'\n", args[0])
		return nil
	}

	printGroups(matches)
	return nil
}

func runOwner(cmd *cobra.Command, args []string) error {
	m, err := getManager()
	if err != nil {
		return err
	}

	owners, err := m.Engine().Owners(args)
	if err != nil {
		return err
	}
	for _, p := range args {
		if _, ok := owners[p]; !ok {
			fmt.Printf("%s: not owned by any installed ASP\n", p)
		}
	}

	printGroups(owners)
	return nil
}
