// pkg/core/interface.go
package core

// InfoProvider answers package-level policy questions
type InfoProvider interface {
	// Info returns the record for a logical package name (e.g. "glibc")
	Info(name string) (*PackageInfo, error)
}

// Fetcher makes the latest ASP of a package available locally
type Fetcher interface {
	// FetchLatest returns the path of a local copy of the newest ASP
	FetchLatest(name string) (string, error)
}
