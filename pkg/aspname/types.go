// pkg/aspname/types.go
package aspname

import "time"

// Name is a parsed ASP file name. It is immutable once parsed.
type Name struct {
	Name          string    // Logical package name (e.g. "glibc")
	Version       string    // Version string as written (e.g. "2.38.1")
	VersionFields []string  // Version split on separators (e.g. ["2" "38" "1"])
	Status        string    // Build status, bracketed form only
	Timestamp     time.Time // Build time, UTC
	Stamp         string    // Build time as written
	HostInfo      string    // Host triplet, bracketed form only
	Ext           string    // Extension that was stripped (".asp", ".xz" or "")
	Bracketed     bool      // Parsed from the (name)-(version)-... form
	Raw           string    // Input basename
}
