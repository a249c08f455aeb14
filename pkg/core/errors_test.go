package core

import (
	"errors"
	"fmt"
	"testing"
)

func TestExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, 0},
		{"corrupt", ErrCorruptArchive, 1},
		{"malformed", ErrMalformedName, 2},
		{"invalid", NewError("install", "foo", ErrInvalidPackage), 2},
		{"invalid by corruption", fmt.Errorf("%w: %w", ErrInvalidPackage, ErrCorruptArchive), 1},
		{"checksum", NewError("verify", "foo", fmt.Errorf("%w: payload", ErrChecksumMismatch)), 3},
		{"member", ErrMemberNotFound, 4},
		{"io", ErrIOError, 5},
		{"blocked", ErrPackageBlocked, 6},
		{"hook", ErrPostInstallFailed, 8},
		{"metadata", ErrMetadataInstall, 10},
		{"unknown", NewError("remove", "foo", ErrUnknownPackage), 11},
		{"partial", ErrPartialRemoval, 12},
		{"analysis", ErrAnalysisIncomplete, 13},
		{"locked", ErrLocked, 14},
		{"other", errors.New("boom"), 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ExitCode(tt.err); got != tt.want {
				t.Errorf("ExitCode(%v) = %d, want %d", tt.err, got, tt.want)
			}
		})
	}
}

func TestErrorFormat(t *testing.T) {
	err := NewError("remove", "foo-1.0-20240101", ErrUnknownPackage)
	if got, want := err.Error(), "remove foo-1.0-20240101: unknown package"; got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
	if !errors.Is(err, ErrUnknownPackage) {
		t.Error("errors.Is(err, ErrUnknownPackage) = false")
	}

	var e *Error
	if !errors.As(err, &e) || e.Package != "foo-1.0-20240101" {
		t.Errorf("errors.As() = %v", e)
	}

	if got := NewError("lock", "", ErrLocked).Error(); got != "lock: basedir is locked" {
		t.Errorf("Error() = %q", got)
	}
}

func TestResult(t *testing.T) {
	r := NewResult("remove", "foo")
	if r.Status() != "ok" {
		t.Errorf("Status() = %q, want ok", r.Status())
	}

	other := NewResult("remove", "bar")
	other.Warn("unlink", "/usr/bin/bar", errors.New("busy"))
	r.Merge(other)
	r.Merge(nil)

	if r.Status() != "partial" || len(r.Warnings) != 1 {
		t.Fatalf("after Merge: %+v", r)
	}
	if got := r.Warnings[0].String(); got != "unlink /usr/bin/bar: busy" {
		t.Errorf("Warning.String() = %q", got)
	}
}
