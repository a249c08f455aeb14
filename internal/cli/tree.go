// internal/cli/tree.go
package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var dirTreeCmd = &cobra.Command{
	Use:   "dir-tree",
	Short: "Create the base directory tree and registry under basedir",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		m, err := getManager()
		if err != nil {
			return err
		}
		res, err := m.Engine().CreateDirectoryTree(context.Background())
		printWarnings(res)
		if err != nil {
			return err
		}
		fmt.Printf("✓ Directory tree ready in %s\n", m.Engine().Basedir())
		return nil
	},
}
