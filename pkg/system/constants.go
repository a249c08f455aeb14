// pkg/system/constants.go
package system

import "time"

// ReservedDirs are top-level directories skipped by the orphan scan
var ReservedDirs = []string{
	"boot", "dev", "etc", "home", "lost+found", "mnt",
	"proc", "root", "run", "sys", "var", "tmp",
}

// LibDir is the only directory scanned with OrphanOptions.LibOnly
const LibDir = "usr/lib"

// DefaultStaleAge is the StalePackages threshold used by the CLI
const DefaultStaleAge = 30 * 24 * time.Hour

// LockFile is created in the registry's package directory
const LockFile = ".aspkg.lock"

// hookPath is the PATH given to post-install scripts
const hookPath = "/usr/sbin:/usr/bin:/sbin:/bin"

// baseTree is created by CreateDirectoryTree
var baseTree = []string{
	"boot", "dev", "etc", "home", "mnt", "proc", "root", "run", "sys", "tmp",
	"usr/bin", "usr/sbin", "usr/lib", "usr/include", "usr/share",
	"var/cache", "var/lib", "var/log/packages/buildlogs",
	"var/log/packages/sums", "var/log/packages/deps",
}

// treeLinks are created by CreateDirectoryTree when absent
var treeLinks = [][2]string{
	{"bin", "usr/bin"},
	{"sbin", "usr/sbin"},
	{"lib", "usr/lib"},
	{"lib64", "usr/lib"},
}
