// pkg/platform/resolver.go
package platform

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"slices"
)

// knownInterpreters are tried in order when the configured one is missing
var knownInterpreters = []string{"python3", "python"}

// ResolveInterpreter finds the program that runs post-install scripts.
// Priority:
// 1. An absolute path, if executable
// 2. The configured name looked up in PATH
// 3. The first known interpreter in PATH
func ResolveInterpreter(configured string) (string, error) {
	if filepath.IsAbs(configured) {
		info, err := os.Stat(configured)
		if err != nil {
			return "", fmt.Errorf("interpreter %s: %w", configured, err)
		}
		if info.Mode()&0111 == 0 {
			return "", fmt.Errorf("interpreter %s is not executable", configured)
		}
		return configured, nil
	}

	var candidates []string
	if configured != "" {
		candidates = append(candidates, configured)
	}
	for _, name := range knownInterpreters {
		if !slices.Contains(candidates, name) {
			candidates = append(candidates, name)
		}
	}

	for _, name := range candidates {
		if path, err := exec.LookPath(name); err == nil {
			return path, nil
		}
	}

	return "", fmt.Errorf("no script interpreter available (tried %v)", candidates)
}

func onPath(cmd string) bool {
	_, err := exec.LookPath(cmd)
	return err == nil
}
