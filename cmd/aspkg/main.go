// cmd/aspkg/main.go
package main

import (
	"fmt"
	"os"

	"github.com/arc-language/aspkg/internal/cli"
	"github.com/arc-language/aspkg/pkg/core"
)

func main() {
	if err := cli.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(core.ExitCode(err))
	}
}
