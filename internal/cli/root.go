// internal/cli/root.go
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/arc-language/aspkg"
	"github.com/arc-language/aspkg/pkg/core"
)

var (
	cfgFile string
	basedir string
	debug   bool
	config  *core.Config
	manager *aspkg.Manager
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "aspkg",
	Short: "ASP package manager",
	Long: `aspkg - ASP package manager

Installs and removes ASP packages inside a basedir, tracks which files
belong to which package, follows shared-library dependencies between
packages and finds garbage left behind.`,
	Version:       "0.1.0",
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute executes the root command. Metrics are exported whether or not
// the command succeeded.
func Execute() error {
	err := rootCmd.Execute()
	writeMetrics()
	return err
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is /etc/aspkg/config.yaml, then $HOME/.config/aspkg/config.yaml)")
	rootCmd.PersistentFlags().StringVarP(&basedir, "basedir", "b", "", "root of the managed system (default /)")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")

	// Add commands
	rootCmd.AddCommand(installCmd)
	rootCmd.AddCommand(removeCmd)
	rootCmd.AddCommand(uninstallCmd)
	rootCmd.AddCommand(reduceCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(filesCmd)
	rootCmd.AddCommand(findCmd)
	rootCmd.AddCommand(ownerCmd)
	rootCmd.AddCommand(infoCmd)
	rootCmd.AddCommand(depsCmd)
	rootCmd.AddCommand(garbageCmd)
	rootCmd.AddCommand(checkCmd)
	rootCmd.AddCommand(parseNameCmd)
	rootCmd.AddCommand(packCmd)
	rootCmd.AddCommand(dirTreeCmd)
	rootCmd.AddCommand(versionCmd)
}

func initConfig() {
	var err error
	config, err = core.LoadConfig(cfgFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		config = core.DefaultConfig()
	}

	// Override config with flags
	if basedir != "" {
		config.Basedir = basedir
	}
	if debug {
		config.Debug = true
	}
}

// getManager lazily builds the Manager for the configured basedir
func getManager() (*aspkg.Manager, error) {
	if manager != nil {
		return manager, nil
	}
	m, err := aspkg.NewManager(config)
	if err != nil {
		return nil, fmt.Errorf("initializing manager: %w", err)
	}
	manager = m
	return manager, nil
}

func writeMetrics() {
	if manager == nil || config.MetricsTextfile == "" {
		return
	}
	if err := manager.Metrics().WriteTextfile(config.MetricsTextfile); err != nil {
		fmt.Fprintf(os.Stderr, "⚠️  Warning: %v\n", err)
	}
}

// printWarnings lists the warnings collected by an operation
func printWarnings(res *core.Result) {
	if res == nil {
		return
	}
	for _, w := range res.Warnings {
		fmt.Fprintf(os.Stderr, "  ⚠️  %s\n", w)
	}
}
