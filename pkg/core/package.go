// pkg/core/package.go
package core

// PackageInfo describes how a logical package may be handled
type PackageInfo struct {
	Name           string   `toml:"name"`
	Description    string   `toml:"description"`
	Removable      bool     `toml:"removable"`       // may be removed without --force
	Deprecated     bool     `toml:"deprecated"`      // refuse to install without --force
	NonInstallable bool     `toml:"non_installable"` // refuse to install without --force
	Reducible      bool     `toml:"reducible"`       // older ASPs are reduced after install
	Tags           []string `toml:"tags"`
}

// Installable reports whether the package may be installed without force
func (p *PackageInfo) Installable() bool {
	return !p.Deprecated && !p.NonInstallable
}
