// pkg/core/result.go
package core

import "fmt"

// Warning is a non-fatal failure collected during a bulk operation
type Warning struct {
	Op   string
	Path string
	Err  error
}

func (w Warning) String() string {
	if w.Path != "" {
		return fmt.Sprintf("%s %s: %v", w.Op, w.Path, w.Err)
	}
	return fmt.Sprintf("%s: %v", w.Op, w.Err)
}

// Result carries the accumulated warnings of one operation next to its
// returned error.
type Result struct {
	Op       string
	Package  string
	Warnings []Warning
}

// NewResult creates an empty result for op
func NewResult(op, pkg string) *Result {
	return &Result{Op: op, Package: pkg}
}

// Warn records a warning
func (r *Result) Warn(op, path string, err error) {
	r.Warnings = append(r.Warnings, Warning{Op: op, Path: path, Err: err})
}

// Merge appends the warnings of other
func (r *Result) Merge(other *Result) {
	if other == nil {
		return
	}
	r.Warnings = append(r.Warnings, other.Warnings...)
}

// Status is "ok" when nothing was collected, "partial" otherwise
func (r *Result) Status() string {
	if len(r.Warnings) == 0 {
		return "ok"
	}
	return "partial"
}
