// pkg/core/errors.go
package core

import (
	"errors"
	"fmt"
)

var (
	// ErrMalformedName indicates a filename that is not an ASP name
	ErrMalformedName = errors.New("malformed package name")

	// ErrCorruptArchive indicates the ASP container could not be read
	ErrCorruptArchive = errors.New("corrupt archive")

	// ErrChecksumMismatch indicates a failed package integrity check
	ErrChecksumMismatch = errors.New("checksum mismatch")

	// ErrMemberNotFound indicates the ASP has no member with the requested name
	ErrMemberNotFound = errors.New("archive member not found")

	// ErrInvalidPackage indicates the package failed validation
	ErrInvalidPackage = errors.New("invalid package")

	// ErrPackageBlocked indicates the package is deprecated or not installable
	ErrPackageBlocked = errors.New("package blocked")

	// ErrMetadataInstall indicates a required registry write failed
	ErrMetadataInstall = errors.New("metadata install failed")

	// ErrPostInstallFailed indicates the post-install hook did not succeed
	ErrPostInstallFailed = errors.New("post-install script failed")

	// ErrUnknownPackage indicates the package is not known to the registry
	ErrUnknownPackage = errors.New("unknown package")

	// ErrPartialRemoval indicates some files could not be removed
	ErrPartialRemoval = errors.New("partial removal")

	// ErrAnalysisIncomplete indicates some dependency caches could not be built
	ErrAnalysisIncomplete = errors.New("dependency analysis incomplete")

	// ErrIOError indicates a filesystem operation failed
	ErrIOError = errors.New("i/o error")

	// ErrLocked indicates the basedir lock could not be acquired in time
	ErrLocked = errors.New("basedir is locked")
)

// Error wraps an error with additional context
type Error struct {
	Op      string // Operation that failed
	Package string // ASP name if applicable
	Err     error  // Underlying error
}

func (e *Error) Error() string {
	if e.Package != "" {
		return fmt.Sprintf("%s %s: %v", e.Op, e.Package, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// NewError is a shorthand for &Error{...}
func NewError(op, pkg string, err error) error {
	return &Error{Op: op, Package: pkg, Err: err}
}

var exitCodes = []struct {
	err  error
	code int
}{
	{ErrCorruptArchive, 1},
	{ErrMalformedName, 2},
	{ErrInvalidPackage, 2},
	{ErrChecksumMismatch, 3},
	{ErrMemberNotFound, 4},
	{ErrIOError, 5},
	{ErrPackageBlocked, 6},
	{ErrPostInstallFailed, 8},
	{ErrMetadataInstall, 10},
	{ErrUnknownPackage, 11},
	{ErrPartialRemoval, 12},
	{ErrAnalysisIncomplete, 13},
	{ErrLocked, 14},
}

// ExitCode maps an error to the small integer status reported by the CLI.
// The first matching kind in the table wins, so an invalid package caused by
// a corrupt archive reports the archive code.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	for _, c := range exitCodes {
		if errors.Is(err, c.err) {
			return c.code
		}
	}
	return 1
}
