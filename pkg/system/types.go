// pkg/system/types.go
package system

import (
	"log"
	"sync"
	"time"

	"github.com/arc-language/aspkg/pkg/core"
	"github.com/arc-language/aspkg/pkg/elfscan"
	"github.com/arc-language/aspkg/pkg/registry"
)

// Config configures the engine for one basedir
type Config struct {
	Basedir         string            // Managed root (default: /)
	ElfReader       elfscan.ElfReader // Default: debug/elf
	Info            core.InfoProvider // Optional package policy source
	HookInterpreter string            // Runs post_install.py (default: python3)
	HookTimeout     time.Duration
	LockTimeout     time.Duration
	PreserveModes   bool // Keep payload modes instead of core.DefaultInstallMode
	OwnerUID        int  // Owner applied by the permission pass
	OwnerGID        int
	Metrics         *Metrics
	Debug           bool        // Enable debug logging
	Logger          *log.Logger // Custom logger (optional)
}

// Manager runs install, remove and analysis operations against a basedir
type Manager struct {
	config   *Config
	basedir  string
	logger   *log.Logger
	registry *registry.Registry
	scanner  *elfscan.Scanner
	metrics  *Metrics
	mu       sync.Mutex
}

// InstallOptions configures Install
type InstallOptions struct {
	Force    bool // Install despite integrity, name or policy failures
	SkipHook bool // Do not run post_install.py
}

// InstallState is a step of the install state machine
type InstallState int

const (
	StateOpened InstallState = iota
	StateValidated
	StateMetadataStaged
	StatePayloadExtracted
	StatePermissionsFixed
	StatePostInstallRun
	StateCommitted
	StateFailed
)

func (s InstallState) String() string {
	switch s {
	case StateOpened:
		return "opened"
	case StateValidated:
		return "validated"
	case StateMetadataStaged:
		return "metadata-staged"
	case StatePayloadExtracted:
		return "payload-extracted"
	case StatePermissionsFixed:
		return "permissions-fixed"
	case StatePostInstallRun:
		return "post-install-run"
	case StateCommitted:
		return "committed"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// InstallResult reports the outcome of Install
type InstallResult struct {
	*core.Result
	State    InstallState
	FailedAt InstallState // Last state reached before failing
	// Flagged is set when the payload stayed installed after a failure;
	// a corrective Remove is up to the caller.
	Flagged bool
	Files   []string // Installed file list
	Written []string // Paths written by extraction, for rollback
}

// RemoveOptions configures Remove
type RemoveOptions struct {
	Exclude      []string // Rooted paths that must survive
	MetadataOnly bool     // Drop the registration, leave files in place
}

// RemoveResult reports the outcome of Remove
type RemoveResult struct {
	*core.Result
	Removed  []string // Rooted paths deleted
	Retained []string // Shared objects kept on disk
	Excluded int      // Paths skipped because of Exclude
}

// ReduceResult reports the outcome of Reduce
type ReduceResult struct {
	*core.Result
	Keep    string
	Removed map[string]*RemoveResult
}

// AnalyzeOptions configures AnalyzeASP
type AnalyzeOptions struct {
	Force bool // Rebuild the dependency cache
}

// DependencyEdge links an ELF file of a consumer to the library it needs
type DependencyEdge struct {
	Consumer     string
	ElfPath      string
	NeededLib    string
	Provider     string
	ProviderPath string
}

// MissingLib is a NEEDED entry no installed ASP provides
type MissingLib struct {
	ElfPath string
	Lib     string
}

// Progress is reported for every candidate during an orphan scan
type Progress struct {
	Index   int
	Total   int
	Percent float64
	Bytes   int64 // Running size of orphaned regular files
	Path    string
}

// OrphanOptions configures OrphanFiles
type OrphanOptions struct {
	LibOnly  bool // Only usr/lib, depth 1
	Progress func(Progress)
}

// FindMode selects how FindFiles matches basenames
type FindMode string

const (
	FindPlain FindMode = "plain"
	FindSub   FindMode = "sub"
	FindBeg   FindMode = "beg"
	FindEnd   FindMode = "end"
	FindRe    FindMode = "re"
	FindFm    FindMode = "fm"
)
