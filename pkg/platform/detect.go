// pkg/platform/detect.go
package platform

import (
	"fmt"
	"runtime"
)

// Platform represents the detected build host
type Platform struct {
	OS           string   // linux
	Arch         string   // amd64, arm64, 386, arm, riscv64
	Triplet      string   // GNU host triplet written into ASP names
	Interpreters []string // Hook interpreters found in PATH
}

var triplets = map[string]string{
	"amd64":   "x86_64-pc-linux-gnu",
	"386":     "i686-pc-linux-gnu",
	"arm64":   "aarch64-unknown-linux-gnu",
	"arm":     "arm-unknown-linux-gnueabihf",
	"riscv64": "riscv64-unknown-linux-gnu",
	"ppc64le": "powerpc64le-unknown-linux-gnu",
}

// Detect detects the current platform and available hook interpreters
func Detect() (*Platform, error) {
	p := &Platform{
		OS:           runtime.GOOS,
		Arch:         runtime.GOARCH,
		Interpreters: []string{},
	}

	if p.OS != "linux" {
		return nil, fmt.Errorf("unsupported operating system: %s", p.OS)
	}

	triplet, ok := triplets[p.Arch]
	if !ok {
		triplet = p.Arch + "-unknown-linux-gnu"
	}
	p.Triplet = triplet

	for _, name := range knownInterpreters {
		if onPath(name) {
			p.Interpreters = append(p.Interpreters, name)
		}
	}

	return p, nil
}

// String returns a string representation of the platform
func (p *Platform) String() string {
	return fmt.Sprintf("%s/%s (%s, interpreters: %v)",
		p.OS, p.Arch, p.Triplet, p.Interpreters)
}
