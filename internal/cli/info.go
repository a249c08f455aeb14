// internal/cli/info.go
package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/arc-language/aspkg/pkg/system"
)

var infoCmd = &cobra.Command{
	Use:   "info <package>",
	Short: "Show package information",
	Long:  `Show the package record and every installed ASP of a package.`,
	Args:  cobra.ExactArgs(1),
	RunE:  runInfo,
}

func runInfo(cmd *cobra.Command, args []string) error {
	m, err := getManager()
	if err != nil {
		return err
	}
	name := args[0]

	fmt.Printf("Package: %s\n", name)

	info, err := m.Info(name)
	if err != nil {
		fmt.Printf("Record: none (%v)\n", err)
	} else {
		if info.Description != "" {
			fmt.Printf("Description: %s\n", info.Description)
		}
		fmt.Printf("Removable: %v\n", info.Removable)
		fmt.Printf("Reducible: %v\n", info.Reducible)
		fmt.Printf("Installable: %v\n", info.Installable())
		fmt.Printf("Tags: %s\n", joinOrDash(info.Tags))
	}

	asps, err := m.Engine().InstalledOf(name)
	if err != nil {
		return err
	}
	if len(asps) == 0 {
		fmt.Println("Installed: no")
		return nil
	}

	fmt.Printf("Installed ASPs (%d):\n", len(asps))
	for _, a := range asps {
		rec, err := m.Engine().Record(a)
		if err != nil {
			if system.IsUnknown(err) {
				continue
			}
			return err
		}
		cached := "no"
		if rec.DepCache != nil {
			cached = "yes"
		}
		fmt.Printf("  %s  (%d files, %d checksums, dep cache: %s)\n",
			a, len(rec.FileList), len(rec.Checksums), cached)
	}
	return nil
}

// joinOrDash renders a list for the info view
func joinOrDash(items []string) string {
	if len(items) == 0 {
		return "-"
	}
	return strings.Join(items, ", ")
}
