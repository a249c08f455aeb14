// errors.go
package aspkg

import "github.com/arc-language/aspkg/pkg/core"

var (
	ErrMalformedName      = core.ErrMalformedName
	ErrCorruptArchive     = core.ErrCorruptArchive
	ErrChecksumMismatch   = core.ErrChecksumMismatch
	ErrMemberNotFound     = core.ErrMemberNotFound
	ErrInvalidPackage     = core.ErrInvalidPackage
	ErrPackageBlocked     = core.ErrPackageBlocked
	ErrMetadataInstall    = core.ErrMetadataInstall
	ErrPostInstallFailed  = core.ErrPostInstallFailed
	ErrUnknownPackage     = core.ErrUnknownPackage
	ErrPartialRemoval     = core.ErrPartialRemoval
	ErrAnalysisIncomplete = core.ErrAnalysisIncomplete
	ErrIOError            = core.ErrIOError
	ErrLocked             = core.ErrLocked
)

// Error wraps an error with additional context
type Error = core.Error

// ExitCode maps an error to the CLI exit status
func ExitCode(err error) int {
	return core.ExitCode(err)
}
