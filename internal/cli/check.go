// internal/cli/check.go
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/arc-language/aspkg/pkg/asp"
	"github.com/arc-language/aspkg/pkg/aspname"
)

var checkList bool

var checkCmd = &cobra.Command{
	Use:   "check <file.asp...>",
	Short: "Verify the integrity of ASP files",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runCheck,
}

var parseNameCmd = &cobra.Command{
	Use:   "parse-name <name...>",
	Short: "Show how ASP file names are parsed",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runParseName,
}

func init() {
	checkCmd.Flags().BoolVarP(&checkList, "list", "l", false, "list the payload entries of each ASP")
}

func runCheck(cmd *cobra.Command, args []string) error {
	var failed error
	for _, path := range args {
		pkg, err := asp.Open(path)
		if pkg == nil {
			fmt.Fprintf(os.Stderr, "✗ %s: %v\n", path, err)
			if failed == nil {
				failed = err
			}
			continue
		}

		fmt.Printf("%s\n", pkg.ASPName())
		for _, member := range pkg.Members() {
			fmt.Printf("  %s\n", member)
		}

		switch {
		case err != nil:
			fmt.Fprintf(os.Stderr, "✗ %v\n", err)
			if failed == nil {
				failed = err
			}
		case pkg.Verified():
			fmt.Println("✓ Checksums match")
		default:
			fmt.Println("⚠️  No integrity manifest, nothing verified")
		}

		if _, err := pkg.FileList(); err != nil {
			fmt.Fprintf(os.Stderr, "✗ %v\n", err)
			if failed == nil {
				failed = err
			}
		}

		if checkList {
			entries, err := pkg.PayloadEntries()
			if err != nil {
				fmt.Fprintf(os.Stderr, "✗ %v\n", err)
				if failed == nil {
					failed = err
				}
				continue
			}
			for _, e := range entries {
				fmt.Printf("  %s\n", asp.RootPath(e.Name))
			}
		}
	}
	return failed
}

func runParseName(cmd *cobra.Command, args []string) error {
	var failed error
	for _, arg := range args {
		n, err := aspname.Parse(arg)
		if err != nil {
			fmt.Fprintf(os.Stderr, "✗ %v\n", err)
			if failed == nil {
				failed = err
			}
			continue
		}

		fmt.Printf("%s\n", n.Raw)
		fmt.Printf("  Name:      %s\n", n.Name)
		fmt.Printf("  Version:   %s %v\n", n.Version, n.VersionFields)
		if n.Bracketed {
			fmt.Printf("  Status:    %s\n", n.Status)
			fmt.Printf("  Host:      %s\n", n.HostInfo)
		}
		fmt.Printf("  Timestamp: %s\n", n.Timestamp.Format("2006-01-02 15:04:05.000000"))
		fmt.Printf("  Key:       %s\n", n.ASPName())
	}

	return failed
}
