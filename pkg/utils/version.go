// Package utils holds small shared helpers that don't warrant a package of
// their own.
package utils

// Build metadata, stamped via -ldflags at release time.
var (
	Version   = "dev"
	Commit    = "HEAD"
	BuildTime = "unknown"
)
