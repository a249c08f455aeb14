// internal/cli/version.go
package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/arc-language/aspkg/pkg/platform"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("aspkg version %s\n", rootCmd.Version)
		fmt.Println("ASP package manager")
		if p, err := platform.Detect(); err == nil {
			fmt.Printf("Platform: %s\n", p)
		}
	},
}
